// 包 middleware：入口限速
package middleware

import (
	"net/http"
	"sync"
	"time"

	"pyxgrid/internal/config"
	"pyxgrid/internal/logger"
)

// TokenBucket：按秒补满的令牌桶
// 背景：栅格化请求开销远大于单点投影，峰值时在入口丢弃超额请求
// 约束：不排队，超额直接返回 429
type TokenBucket struct {
	capacity int
	tokens   int
	lastSec  int64
	mu       sync.Mutex
	now      func() time.Time
}

func NewTokenBucket(qps int) *TokenBucket {
	tb := &TokenBucket{capacity: qps, tokens: qps, now: time.Now}
	tb.lastSec = tb.now().Unix()
	return tb
}

func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	nowSec := tb.now().Unix()
	if tb.lastSec != nowSec {
		tb.lastSec = nowSec
		tb.tokens = tb.capacity
	}
	if tb.tokens > 0 {
		tb.tokens--
		return true
	}
	return false
}

// Wrap：未启用时原样返回 next
func Wrap(next http.Handler, cfg config.RateLimitConfig) http.Handler {
	if !cfg.Enabled || cfg.QPS <= 0 {
		return next
	}
	tb := NewTokenBucket(cfg.QPS)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !tb.Allow() {
			logger.L().Debug("rate_limited", "path", r.URL.Path, "remote", r.RemoteAddr)
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
