package middleware

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimitConfig tunes the fixed-window limiter.
type RateLimitConfig struct {
	// Prefix namespaces the limiter's Redis keys.
	Prefix string
	// Limit is the number of requests allowed per window per client IP.
	Limit int
	// Window is the fixed window length.
	Window time.Duration
}

// RateLimit applies a Redis-backed fixed-window limit per client IP and
// route. The limiter fails open: a Redis error lets the request through
// rather than turning a cache outage into an auth outage.
func RateLimit(client redis.UniversalClient, cfg RateLimitConfig) func(http.Handler) http.Handler {
	if cfg.Prefix == "" {
		cfg.Prefix = "bb"
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 60
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			window := time.Now().Unix() / int64(cfg.Window/time.Second)
			key := fmt.Sprintf("%s:rl:%s:%s:%d", cfg.Prefix, r.URL.Path, clientIP(r), window)

			count, err := client.Incr(r.Context(), key).Result()
			if err != nil {
				log.Printf("authkit middleware: rate limiter unavailable: %v", err)
				next.ServeHTTP(w, r)
				return
			}
			if count == 1 {
				client.Expire(r.Context(), key, cfg.Window)
			}

			if count > int64(cfg.Limit) {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", fmt.Sprintf("%d", int(cfg.Window/time.Second)))
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"too many requests"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
