package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"jdcportal/internal/pkg/response"
)

// RequireRole ensures that the authenticated user has one of the given roles.
// Role names compare case-insensitively.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(CtxRole)
		if role == "" {
			response.Abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "Role not found in session")
			return
		}

		for _, r := range roles {
			if strings.EqualFold(strings.TrimSpace(role), r) {
				c.Next()
				return
			}
		}
		response.Abort(c, http.StatusForbidden, "FORBIDDEN", "Access denied: insufficient permissions")
	}
}

// AdminOnly middleware requires admin role
func AdminOnly() gin.HandlerFunc {
	return RequireRole("Admin")
}

// CanReadSector reports whether the caller is an admin or assigned to sector.
func CanReadSector(c *gin.Context, sector string) bool {
	_, role, sectors := Identity(c)
	if strings.EqualFold(strings.TrimSpace(role), "Admin") {
		return true
	}
	for _, s := range sectors {
		if strings.EqualFold(strings.TrimSpace(s), strings.TrimSpace(sector)) {
			return true
		}
	}
	return false
}
