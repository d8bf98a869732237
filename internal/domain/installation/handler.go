package installation

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"jdcportal/internal/pkg/response"
)

// SectorGuard decides whether the caller in c may read a sector.
type SectorGuard func(c *gin.Context, sector string) bool

type Handler struct {
	service *Service
	canRead SectorGuard
}

func NewHandler(service *Service, canRead SectorGuard) *Handler {
	return &Handler{service: service, canRead: canRead}
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *Handler) RegisterRoutes(protected *gin.RouterGroup) {
	g := protected.Group("/installations")
	{
		g.GET("/:sector", h.List)
		g.PATCH("/:sector/:id/status", h.UpdateStatus)
	}
}

// List returns a sector's installations with their CTN flag.
// @Summary		Installations d'un secteur
// @Description	Liste les installations du secteur, triées par code client, avec hasCTN renseigné.
// @Tags		Installations
// @Security	SessionCookie
// @Param		sector	path	string	true	"Secteur (insensible à la casse)"
// @Success		200	{object}		map[string]interface{} "installations"
// @Failure		401	{object}		map[string]interface{} "Session requise"
// @Failure		403	{object}		map[string]interface{} "Secteur non autorisé"
// @Failure		500	{object}		map[string]interface{} "Erreur serveur"
// @Router		/api/installations/{sector} [GET]
func (h *Handler) List(c *gin.Context) {
	sector := strings.TrimSpace(c.Param("sector"))
	if h.canRead != nil && !h.canRead(c, sector) {
		response.Error(c, http.StatusForbidden, "FORBIDDEN", "Sector not accessible")
		return
	}

	items, err := h.service.ListWithShipments(c.Request.Context(), sector)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "FETCH_FAILED", "Failed to list installations")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"installations": items})
}

// UpdateStatus changes the status of one installation.
// @Summary		Modifier le statut
// @Tags		Installations
// @Security	SessionCookie
// @Param		sector	path	string	true	"Secteur"
// @Param		id		path	string	true	"ID de l'installation"
// @Param		request	body	statusRequest	true	"Nouveau statut"
// @Success		200	{object}		Installation
// @Failure		400	{object}		map[string]interface{} "Statut inconnu"
// @Failure		403	{object}		map[string]interface{} "Secteur non autorisé"
// @Failure		404	{object}		map[string]interface{} "Installation introuvable"
// @Failure		409	{object}		map[string]interface{} "Modifiée entre-temps"
// @Router		/api/installations/{sector}/{id}/status [PATCH]
func (h *Handler) UpdateStatus(c *gin.Context) {
	sector := strings.TrimSpace(c.Param("sector"))
	if h.canRead != nil && !h.canRead(c, sector) {
		response.Error(c, http.StatusForbidden, "FORBIDDEN", "Sector not accessible")
		return
	}

	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	inst, err := h.service.UpdateStatus(c.Request.Context(), sector, c.Param("id"), Status(strings.TrimSpace(req.Status)))
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidStatus):
			response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Unknown status")
		case errors.Is(err, ErrNotFound):
			response.Error(c, http.StatusNotFound, "NOT_FOUND", "Installation not found")
		case errors.Is(err, ErrStaleWrite):
			response.Error(c, http.StatusConflict, "CONFLICT", "Installation was modified, reload and retry")
		default:
			response.Error(c, http.StatusInternalServerError, "UPDATE_FAILED", "Failed to update installation")
		}
		return
	}
	response.Success(c, http.StatusOK, inst)
}
