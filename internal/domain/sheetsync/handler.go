package sheetsync

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"jdcportal/internal/pkg/response"
)

type Handler struct {
	engine *Engine
}

func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

// RegisterRoutes mounts the manual trigger; admin must already require the Admin role.
func (h *Handler) RegisterRoutes(admin *gin.RouterGroup) {
	admin.POST("/sync-installations", h.Sync)
	admin.GET("/sync-installations", h.Sync)
}

// Sync runs every sector, or only ?sector= when given.
// @Summary		Synchroniser les installations
// @Description	Recopie les feuilles Google de chaque secteur. Un secteur en échec porte un message d'erreur générique sans bloquer les autres.
// @Tags		Synchronisation
// @Security	SessionCookie
// @Param		sector	query	string	false	"Limiter à un secteur"
// @Success		200	{object}		map[string]interface{} "Compteurs ou erreur par secteur"
// @Failure		403	{object}		map[string]interface{} "Réservé aux admins"
// @Failure		503	{object}		map[string]interface{} "Aucune feuille configurée"
// @Router		/api/sync-installations [POST]
func (h *Handler) Sync(c *gin.Context) {
	ctx := c.Request.Context()

	if sector := strings.TrimSpace(c.Query("sector")); sector != "" {
		res, err := h.engine.SyncSector(ctx, sector)
		response.Success(c, http.StatusOK, map[string]SectorOutcome{sector: {Result: res, Err: err}})
		return
	}

	if len(h.engine.sheets) == 0 {
		response.Error(c, http.StatusServiceUnavailable, "SYNC_NOT_CONFIGURED", "No installation sheet is configured")
		return
	}
	response.Success(c, http.StatusOK, h.engine.SyncAll(ctx))
}
