package ticket

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"jdcportal/internal/domain/user"
	"jdcportal/internal/middleware"
	"jdcportal/internal/pkg/response"
)

type Handler struct {
	repo *Repository
}

func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

func (h *Handler) RegisterRoutes(protected *gin.RouterGroup) {
	protected.GET("/tickets", h.List)
}

// List returns tickets of ?sector=. Without a sector, non-admins get the
// tickets of their own sectors.
// @Summary		Tickets SAP
// @Tags		Tickets
// @Security	SessionCookie
// @Param		sector	query	string	false	"Secteur"
// @Success		200	{object}		map[string]interface{} "tickets"
// @Failure		403	{object}		map[string]interface{} "Secteur non autorisé"
// @Router		/api/tickets [GET]
func (h *Handler) List(c *gin.Context) {
	sector := strings.TrimSpace(c.Query("sector"))
	if sector != "" && !middleware.CanReadSector(c, sector) {
		response.Error(c, http.StatusForbidden, "FORBIDDEN", "Sector not accessible")
		return
	}

	items, err := h.repo.ListBySector(c.Request.Context(), sector)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "FETCH_FAILED", "Failed to list tickets")
		return
	}

	_, role, _ := middleware.Identity(c)
	if sector == "" && !user.IsAdmin(role) {
		visible := items[:0]
		for _, t := range items {
			if t.Sector != "" && middleware.CanReadSector(c, t.Sector) {
				visible = append(visible, t)
			}
		}
		items = visible
	}
	response.Success(c, http.StatusOK, gin.H{"tickets": items})
}
