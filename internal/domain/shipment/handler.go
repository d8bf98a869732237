package shipment

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"jdcportal/internal/pkg/response"
)

type Handler struct {
	repo *Repository
}

func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

func (h *Handler) RegisterRoutes(protected *gin.RouterGroup) {
	protected.GET("/shipments", h.List)
}

// List returns shipments, optionally scoped with ?sector=.
// @Summary		Expéditions CTN
// @Tags		Expéditions
// @Security	SessionCookie
// @Param		sector	query	string	false	"Secteur"
// @Success		200	{object}		map[string]interface{} "shipments"
// @Router		/api/shipments [GET]
func (h *Handler) List(c *gin.Context) {
	sector := strings.TrimSpace(c.Query("sector"))
	items, err := h.repo.ListBySector(c.Request.Context(), sector)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "FETCH_FAILED", "Failed to list shipments")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"shipments": items})
}
