package middleware

import (
	"crypto/subtle"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"jdcportal/internal/pkg/response"
)

// CronSecret protects the scheduler trigger with a shared secret, sent either
// as "Authorization: Bearer <secret>" or in the X-Cron-Secret header.
func CronSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			logCronAuthFailure(c, http.StatusInternalServerError, "secret_not_configured")
			response.Abort(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Cron secret is not configured")
			return
		}

		provided := strings.TrimSpace(c.GetHeader("X-Cron-Secret"))
		if provided == "" {
			authHeader := c.GetHeader("Authorization")
			if authHeader == "" {
				logCronAuthFailure(c, http.StatusUnauthorized, "missing_auth")
				response.Abort(c, http.StatusUnauthorized, "AUTH_MISSING", "Authorization header is required")
				return
			}
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				logCronAuthFailure(c, http.StatusUnauthorized, "invalid_auth_format")
				response.Abort(c, http.StatusUnauthorized, "AUTH_INVALID", "Authorization header must be 'Bearer <secret>'")
				return
			}
			provided = strings.TrimSpace(parts[1])
		}

		if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
			logCronAuthFailure(c, http.StatusForbidden, "invalid_secret")
			response.Abort(c, http.StatusForbidden, "AUTH_INVALID", "Invalid cron secret")
			return
		}

		c.Next()
	}
}

func logCronAuthFailure(c *gin.Context, status int, reason string) {
	log.Printf("cron_auth status=%d request_id=%s client_ip=%s reason=%s", status, requestID(c), c.ClientIP(), reason)
}
