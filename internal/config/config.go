// 包 config：服务配置，先读可选的 YAML 文件，再由环境变量覆盖
// 约束：环境变量名与既有部署保持一致（ADDR、PG_*、REDIS_*、TLS_* 等）；未设置的字段取默认值
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"pyxgrid/internal/index"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Grid      GridConfig      `yaml:"grid"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Redis     RedisConfig     `yaml:"redis"`
	Cache     CacheConfig     `yaml:"cache"`
	GeoIP     GeoIPConfig     `yaml:"geoip"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	TLS       TLSConfig       `yaml:"tls"`
}

type ServerConfig struct {
	Addr    string `yaml:"addr"`
	APIBase string `yaml:"api_base"`
}

// GridConfig：请求未给出分辨率时的默认值
type GridConfig struct {
	DefaultResolution int `yaml:"default_resolution"`
	// VertexResolution：GeoJSON 顶点换算成单元地址时使用的分辨率
	VertexResolution int `yaml:"vertex_resolution"`
	// MaxRasterResolution：栅格化请求允许的最大分辨率
	MaxRasterResolution int `yaml:"max_raster_resolution"`
}

type PostgresConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Host         string `yaml:"host"`
	Port         string `yaml:"port"`
	User         string `yaml:"user"`
	Password     string `yaml:"password"`
	Database     string `yaml:"database"`
	SSLMode      string `yaml:"sslmode"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type CacheConfig struct {
	Size   int `yaml:"size"`
	TTLSec int `yaml:"ttl_s"`
}

type GeoIPConfig struct {
	Path string `yaml:"path"`
	// Lang：地名语言，缺省 en
	Lang string `yaml:"lang"`
}

type RateLimitConfig struct {
	Enabled bool `yaml:"enabled"`
	QPS     int  `yaml:"qps"`
}

type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertPath string `yaml:"cert_path"`
	KeyPath  string `yaml:"key_path"`
}

// Default：无文件、无环境变量时的配置
func Default() *Config {
	return &Config{
		Server: ServerConfig{Addr: ":8080", APIBase: "/api"},
		Grid:   GridConfig{DefaultResolution: 10, VertexResolution: 16, MaxRasterResolution: 14},
		Postgres: PostgresConfig{
			Host: "localhost", Port: "5432", User: "postgres", Database: "pyxgrid", SSLMode: "disable",
			MaxOpenConns: 50, MaxIdleConns: 25,
		},
		Redis:     RedisConfig{Host: "127.0.0.1", Port: "6379", Prefix: "grid:"},
		Cache:     CacheConfig{Size: 4096, TTLSec: 3600},
		RateLimit: RateLimitConfig{QPS: 200},
		TLS:       TLSConfig{CertPath: "data/certs/server.crt", KeyPath: "data/certs/server.key"},
	}
}

// Load：path 为空时只使用默认值与环境变量
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.overlayEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv：读取 GRID_CONFIG 指向的文件（可为空）
func FromEnv() (*Config, error) { return Load(os.Getenv("GRID_CONFIG")) }

type lookupFunc func(string) (string, bool)

func (c *Config) overlayEnv(lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var firstErr error
	num := func(key string, dst *int) {
		v, ok := lookup(key)
		if !ok || v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("env %s=%q: %w", key, v, err)
			}
			return
		}
		*dst = n
	}
	flag := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = strings.EqualFold(v, "true") || v == "1"
		}
	}

	str("ADDR", &c.Server.Addr)
	str("API_BASE", &c.Server.APIBase)

	num("GRID_DEFAULT_RESOLUTION", &c.Grid.DefaultResolution)
	num("GRID_VERTEX_RESOLUTION", &c.Grid.VertexResolution)
	num("GRID_MAX_RASTER_RESOLUTION", &c.Grid.MaxRasterResolution)

	flag("PG_ENABLE", &c.Postgres.Enabled)
	str("PG_HOST", &c.Postgres.Host)
	str("PG_PORT", &c.Postgres.Port)
	str("PG_USER", &c.Postgres.User)
	str("PG_PASSWORD", &c.Postgres.Password)
	str("PG_DB", &c.Postgres.Database)
	str("PG_SSLMODE", &c.Postgres.SSLMode)
	num("PG_MAX_OPEN_CONNS", &c.Postgres.MaxOpenConns)
	num("PG_MAX_IDLE_CONNS", &c.Postgres.MaxIdleConns)

	flag("REDIS_ENABLE", &c.Redis.Enabled)
	str("REDIS_HOST", &c.Redis.Host)
	str("REDIS_PORT", &c.Redis.Port)
	str("REDIS_PASS", &c.Redis.Password)
	num("REDIS_DB", &c.Redis.DB)
	str("REDIS_PREFIX", &c.Redis.Prefix)

	num("GRID_CACHE_SIZE", &c.Cache.Size)
	num("GRID_CACHE_TTL_S", &c.Cache.TTLSec)

	str("GEOIP_PATH", &c.GeoIP.Path)
	str("GEOIP_LANG", &c.GeoIP.Lang)

	flag("RATE_LIMIT_ENABLED", &c.RateLimit.Enabled)
	num("RATE_LIMIT_QPS", &c.RateLimit.QPS)

	flag("TLS_ENABLE", &c.TLS.Enabled)
	str("TLS_CERT_PATH", &c.TLS.CertPath)
	str("TLS_KEY_PATH", &c.TLS.KeyPath)
	return firstErr
}

// Validate：分辨率须在 [1, MaxResolution] 内，缓存与限速参数须为正
func (c *Config) Validate() error {
	for name, res := range map[string]int{
		"grid.default_resolution":    c.Grid.DefaultResolution,
		"grid.vertex_resolution":     c.Grid.VertexResolution,
		"grid.max_raster_resolution": c.Grid.MaxRasterResolution,
	} {
		if res < 1 || res > index.MaxResolution {
			return fmt.Errorf("%s=%d out of [1, %d]", name, res, index.MaxResolution)
		}
	}
	if c.Cache.Size <= 0 || c.Cache.TTLSec <= 0 {
		return fmt.Errorf("cache size=%d ttl=%d must be positive", c.Cache.Size, c.Cache.TTLSec)
	}
	if c.RateLimit.Enabled && c.RateLimit.QPS <= 0 {
		return fmt.Errorf("rate_limit.qps=%d must be positive", c.RateLimit.QPS)
	}
	if !strings.HasPrefix(c.Server.APIBase, "/") {
		return fmt.Errorf("server.api_base %q must start with /", c.Server.APIBase)
	}
	return nil
}

// RedisAddr：host:port
func (c RedisConfig) Addr() string { return c.Host + ":" + c.Port }

// DSN：postgres:// 形式的连接串
func (c PostgresConfig) DSN() string {
	dsn := "postgres://" + c.User
	if c.Password != "" {
		dsn += ":" + c.Password
	}
	return dsn + "@" + c.Host + ":" + c.Port + "/" + c.Database + "?sslmode=" + c.SSLMode
}
