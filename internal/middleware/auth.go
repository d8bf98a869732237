package middleware

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"jdcportal/internal/pkg/jwt"
	"jdcportal/internal/pkg/response"
)

const SessionCookie = "session"

// Context keys set by SessionAuth.
const (
	CtxUserID  = "user_id"
	CtxEmail   = "email"
	CtxRole    = "role"
	CtxSectors = "sectors"
)

// ErrSessionRevoked is returned by an AccessLookup when the session's user no longer exists.
var ErrSessionRevoked = errors.New("session user no longer exists")

// Access is the caller's stored role and sectors.
type Access struct {
	Email   string
	Role    string
	Sectors []string
}

// AccessLookup loads the current access of a session's user from the profile store.
type AccessLookup interface {
	SessionAccess(ctx context.Context, uid string) (*Access, error)
}

// SessionAuth accepts the session cookie, or an Authorization bearer token for
// API clients, and stores the caller identity in the gin context. With a
// lookup, role and sectors come from the profile store on every request so an
// access change applies to sessions already issued; the token claims are only
// used without one.
func SessionAuth(jwtService *jwt.Service, lookup AccessLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := sessionToken(c)
		if !ok {
			response.Abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
			return
		}

		claims, err := jwtService.ValidateToken(token)
		if err != nil || claims.UserID == "" {
			response.Abort(c, http.StatusUnauthorized, "INVALID_TOKEN", "Session is invalid or expired")
			return
		}

		access := &Access{Email: claims.Email, Role: claims.Role, Sectors: claims.Sectors}
		if lookup != nil {
			access, err = lookup.SessionAccess(c.Request.Context(), claims.UserID)
			if errors.Is(err, ErrSessionRevoked) {
				response.Abort(c, http.StatusUnauthorized, "INVALID_TOKEN", "Session is invalid or expired")
				return
			}
			if err != nil {
				log.Printf("session_lookup_error user_id=%s err=%v", claims.UserID, err)
				response.Abort(c, http.StatusInternalServerError, "SESSION_LOOKUP_FAILED", "Failed to load session")
				return
			}
		}

		c.Set(CtxUserID, claims.UserID)
		c.Set(CtxEmail, access.Email)
		c.Set(CtxRole, access.Role)
		c.Set(CtxSectors, access.Sectors)
		c.Next()
	}
}

func sessionToken(c *gin.Context) (string, bool) {
	if cookie, err := c.Cookie(SessionCookie); err == nil && cookie != "" {
		return cookie, true
	}
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") && strings.TrimSpace(parts[1]) != "" {
		return strings.TrimSpace(parts[1]), true
	}
	return "", false
}

// Identity returns what SessionAuth stored; empty values when unauthenticated.
func Identity(c *gin.Context) (userID, role string, sectors []string) {
	userID = c.GetString(CtxUserID)
	role = c.GetString(CtxRole)
	sectors = c.GetStringSlice(CtxSectors)
	return userID, role, sectors
}
