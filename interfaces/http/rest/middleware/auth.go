package middleware

import (
	"crypto/subtle"
	"net/http"

	"go.uber.org/zap"

	"forgeproxy/pkg/common"
)

// APIKeyHeader carries the client's key.
const APIKeyHeader = "X-API-Key"

// APIKeyAuth enforces static API-key authentication when enabled. The
// callback endpoints are mounted outside this middleware: the workflow
// engine calls back unauthenticated.
func APIKeyAuth(enabled bool, apiKey string, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(APIKeyHeader)
			if key == "" || subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) != 1 {
				logger.Warn("authentication failed: invalid or missing API key",
					zap.String("path", r.URL.Path),
					zap.String("method", r.Method),
					zap.String("remoteAddr", r.RemoteAddr),
				)
				common.RespondError(w, http.StatusUnauthorized, "Invalid or missing API key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
