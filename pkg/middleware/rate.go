// Package middleware provides HTTP middleware for the campusmart API.
package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/shashiranjanraj/campusmart/pkg/cache"
	"github.com/shashiranjanraj/campusmart/pkg/logger"
	"github.com/shashiranjanraj/campusmart/pkg/response"
)

// RateLimit allows each client IP at most max requests per window. Counters
// live in store, so every replica sharing a Redis instance shares the limit.
// A failing store lets the request through.
//
//	r.Use(middleware.RateLimit(cacheStore, 100, time.Minute))
func RateLimit(store cache.Store, max int, window time.Duration) func(http.Handler) http.Handler {
	secs := int64(window / time.Second)
	if secs < 1 {
		secs = 1
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bucket := time.Now().Unix() / secs
			key := fmt.Sprintf("campusmart:rate:%s:%d", clientIP(r), bucket)

			n, err := store.Incr(r.Context(), key, window)
			if err != nil {
				logger.WithCtx(r.Context()).Warn("rate limit: counter unavailable", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if n > int64(max) {
				w.Header().Set("Retry-After", fmt.Sprintf("%d", secs))
				response.Error(w, http.StatusTooManyRequests, "Too Many Requests")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.SplitN(fwd, ",", 2)[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
