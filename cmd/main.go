// 程序入口：读取配置、初始化依赖并启动网格服务；路由注册在 internal/api
package main

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"pyxgrid/internal/api"
	"pyxgrid/internal/cache"
	"pyxgrid/internal/config"
	"pyxgrid/internal/geoip"
	"pyxgrid/internal/logger"
	"pyxgrid/internal/middleware"
	"pyxgrid/internal/migrate"
	"pyxgrid/internal/snyder"
	"pyxgrid/internal/store"
	"pyxgrid/internal/utils"
	"pyxgrid/internal/version"
)

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
	l := logger.Setup()
	l.Debug("log_init_ok", "commit", version.Commit)

	cfg, err := config.FromEnv()
	if err != nil {
		l.Error("config_error", "err", err)
		os.Exit(1)
	}
	l.Debug("config_api_base", "base", cfg.Server.APIBase)

	ctx := context.Background()
	// 背景：投影常数在首次使用时计算，启动时预热
	snyder.Init()

	deps := api.Deps{Proj: snyder.Instance(), Grid: cfg.Grid}

	db, err := utils.OpenPostgres(ctx, cfg.Postgres)
	switch {
	case err != nil:
		l.Error("db_open_error", "err", err)
		os.Exit(1)
	case db == nil:
		l.Info("db_disabled")
	default:
		defer db.Close()
		l.Info("db_open_ok")
		sctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		err := migrate.EnsureSchema(sctx, db)
		cancel()
		if err != nil {
			l.Error("schema_error", "err", err)
			os.Exit(1)
		}
		deps.Store = store.AttachDB(db)
	}

	rc, err := utils.OpenRedis(ctx, cfg.Redis)
	switch {
	case err != nil:
		// 背景：Redis 仅作二级缓存，不可用时退回进程内缓存
		l.Error("redis_ping_error", "err", err)
	case rc == nil:
		l.Info("redis_disabled")
	default:
		defer rc.Close()
		l.Info("redis_ping_ok")
	}
	deps.Cache = cache.New(cfg.Cache.Size, time.Duration(cfg.Cache.TTLSec)*time.Second, rc, cfg.Redis.Prefix)

	if cfg.GeoIP.Path != "" {
		loc, err := geoip.Open(cfg.GeoIP.Path, cfg.GeoIP.Lang)
		if err != nil {
			l.Error("geoip_open_error", "path", cfg.GeoIP.Path, "err", err)
		} else {
			defer loc.Close()
			if md, err := loc.Metadata(); err == nil {
				l.Info("geoip_ready", "type", md.DatabaseType, "build", time.Unix(int64(md.BuildEpoch), 0).UTC().Format(time.RFC3339))
			}
			deps.GeoIP = loc
		}
	} else {
		l.Info("geoip_disabled")
	}

	mux := http.NewServeMux()
	base := strings.TrimSuffix(cfg.Server.APIBase, "/")
	mux.Handle(base+"/", http.StripPrefix(base, api.BuildRoutes(deps)))
	mux.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "text/plain; charset=utf-8")
		w.Header().Set("cache-control", "no-store")
		_, _ = w.Write([]byte(version.Commit + "\n"))
	})

	handler := logger.AccessMiddleware(l)(mux)
	handler = middleware.Wrap(handler, cfg.RateLimit)
	s := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if cfg.TLS.Enabled {
		if err := utils.EnsureSelfSignedCert(cfg.TLS.CertPath, cfg.TLS.KeyPath, "pyxgrid.local"); err != nil {
			l.Error("tls_cert_error", "err", err)
			os.Exit(1)
		}
		l.Info("listening_tls", "addr", cfg.Server.Addr, "cert", cfg.TLS.CertPath)
		if err := s.ListenAndServeTLS(cfg.TLS.CertPath, cfg.TLS.KeyPath); err != nil && err != http.ErrServerClosed {
			l.Error("serve_error", "err", err)
			os.Exit(1)
		}
		return
	}
	l.Info("listening", "addr", cfg.Server.Addr)
	if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		l.Error("serve_error", "err", err)
		os.Exit(1)
	}
}
