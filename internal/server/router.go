// Package server assembles the HTTP surface of the portal.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"jdcportal/internal/domain/auth"
	"jdcportal/internal/domain/installation"
	"jdcportal/internal/domain/notification"
	"jdcportal/internal/domain/sheetsync"
	"jdcportal/internal/domain/shipment"
	"jdcportal/internal/domain/ticket"
	"jdcportal/internal/domain/user"
	"jdcportal/internal/middleware"
	jwtsvc "jdcportal/internal/pkg/jwt"
	"jdcportal/internal/scheduler"
)

type Handlers struct {
	Auth          *auth.Handler
	Users         *user.Handler
	Installations *installation.Handler
	Shipments     *shipment.Handler
	Tickets       *ticket.Handler
	Notifications *notification.Handler
	Sync          *sheetsync.Handler
	Scheduler     *scheduler.Handler
}

type Options struct {
	JWT *jwtsvc.Service
	// Access resolves role and sectors from the profile store per request.
	Access      middleware.AccessLookup
	CronSecret  string
	CORSOrigins string
	// AccessLog enables gin's request logger; tests leave it off.
	AccessLog bool
}

// NewRouter mounts every handler. Routes under /api need a session except the
// scheduler trigger, which is guarded by the cron secret.
func NewRouter(opts Options, h Handlers) *gin.Engine {
	r := gin.New()
	if opts.AccessLog {
		r.Use(gin.Logger())
	}
	r.Use(middleware.ErrorLogger(), middleware.CORS(opts.CORSOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	h.Auth.RegisterPublicRoutes(r)

	api := r.Group("/api")
	h.Scheduler.RegisterRoutes(api, middleware.CronSecret(opts.CronSecret))

	protected := api.Group("")
	protected.Use(middleware.SessionAuth(opts.JWT, opts.Access))
	{
		admin := protected.Group("/admin")
		admin.Use(middleware.AdminOnly())

		adminRoot := protected.Group("")
		adminRoot.Use(middleware.AdminOnly())

		h.Users.RegisterRoutes(protected, admin)
		h.Installations.RegisterRoutes(protected)
		h.Shipments.RegisterRoutes(protected)
		h.Tickets.RegisterRoutes(protected)
		notification.RegisterRoutes(protected, h.Notifications)
		h.Sync.RegisterRoutes(adminRoot)
	}

	return r
}
