package ratelimit

import (
	"fmt"
	"net"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/docbase-tech/docbase/core/logger"
)

// Middleware wraps a handler with the limiter. Callers are keyed by their
// API key when one is presented, otherwise by remote address, so one noisy
// anonymous client cannot exhaust the allowance of authenticated ones.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := callerKey(r)
		ok, remaining := l.Allow(key)
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", l.limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
		if !ok {
			logger.FromContext(r.Context()).Warnf("Warning 4290: rate limit exceeded for %s", key)
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusTooManyRequests)
			body, _ := json.MarshalWithOption(map[string]interface{}{
				"error":   true,
				"message": "rate limit exceeded, try again later",
			}, json.DisableHTMLEscape())
			w.Write(body)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func callerKey(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	if key := r.URL.Query().Get("api_key"); key != "" {
		return key
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
