package middleware

import (
	"net/http"

	"go.uber.org/zap"

	"forgeproxy/pkg/auth"
	"forgeproxy/pkg/common"
)

// RateLimit applies per-client token-bucket limiting. Clients are keyed by
// API key when present, otherwise by remote address (RealIP should run
// earlier in the chain so that address is the real client).
func RateLimit(limiter auth.RateLimiter, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(APIKeyHeader)
			if key == "" {
				key = r.RemoteAddr
			}

			allowed, err := limiter.Allow(r.Context(), key)
			if err != nil {
				logger.Error("rate limiter failure", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				logger.Warn("rate limit exceeded",
					zap.String("client", key),
					zap.String("path", r.URL.Path),
					zap.String("method", r.Method),
				)
				common.RespondError(w, http.StatusTooManyRequests, "Rate limit exceeded, please try again later")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
