package notification

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"jdcportal/internal/domain/user"
	"jdcportal/internal/middleware"
	"jdcportal/internal/pkg/response"
	"jdcportal/internal/pkg/validator"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// List returns the notifications visible to ?userId= (default: the caller).
// Only admins may list on behalf of another user.
// @Summary		Fil de notifications
// @Description	Notifications visibles par l'utilisateur (ciblage direct, rôle, secteur ou "all"), les plus récentes d'abord, avec le nombre de non lues.
// @Tags		Notifications
// @Security	SessionCookie
// @Param		userId	query	string	false	"Utilisateur ciblé (admin uniquement)"
// @Success		200	{object}		ListResponse
// @Failure		401	{object}		map[string]interface{} "Session requise"
// @Failure		403	{object}		map[string]interface{} "Réservé aux admins"
// @Failure		500	{object}		map[string]interface{} "Erreur serveur"
// @Router		/api/notifications/list [GET]
func (h *Handler) List(c *gin.Context) {
	uid, role, sectors := middleware.Identity(c)
	if uid == "" {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "User not authenticated")
		return
	}

	target := strings.TrimSpace(c.Query("userId"))
	viewer := Viewer{UserID: uid, Role: role, Sectors: sectors}
	if target != "" && target != uid {
		if !user.IsAdmin(role) {
			response.Error(c, http.StatusForbidden, "FORBIDDEN", "Cannot read another user's notifications")
			return
		}
		v, err := h.viewerFor(c, target)
		if err != nil {
			response.Error(c, http.StatusInternalServerError, "FETCH_FAILED", "Failed to get notifications")
			return
		}
		viewer = v
	}

	list, err := h.service.ListFor(c.Request.Context(), viewer)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "FETCH_FAILED", "Failed to get notifications")
		return
	}
	response.Success(c, http.StatusOK, ListResponse{
		Notifications: list,
		UnreadCount:   UnreadCount(list),
	})
}

func (h *Handler) viewerFor(c *gin.Context, uid string) (Viewer, error) {
	v := Viewer{UserID: uid}
	if h.service.profiles == nil {
		return v, nil
	}
	p, err := h.service.profiles.GetByUID(c.Request.Context(), uid)
	if errors.Is(err, user.ErrNotFound) {
		return v, nil
	}
	if err != nil {
		return v, err
	}
	v.Role = string(p.Role)
	v.Sectors = p.Sectors
	return v, nil
}

// MarkAsRead is idempotent.
// @Summary		Marquer comme lue
// @Tags		Notifications
// @Security	SessionCookie
// @Param		id	path	string	true	"ID de la notification"
// @Success		200	{object}		map[string]interface{} "Notification lue"
// @Failure		404	{object}		map[string]interface{} "Notification introuvable"
// @Router		/api/notifications/{id}/read [POST]
func (h *Handler) MarkAsRead(c *gin.Context) {
	err := h.service.MarkRead(c.Request.Context(), c.Param("id"))
	switch {
	case err == nil:
		response.Success(c, http.StatusOK, gin.H{"status": "read"})
	case errors.Is(err, ErrMissingID):
		response.Error(c, http.StatusBadRequest, "INVALID_ID", "Notification id is required")
	case errors.Is(err, ErrNotificationNotFound):
		response.Error(c, http.StatusNotFound, "NOT_FOUND", "Notification not found")
	default:
		response.Error(c, http.StatusInternalServerError, "UPDATE_FAILED", "Failed to mark as read")
	}
}

// @Summary		Tout marquer comme lu
// @Description	Marque comme lues toutes les notifications visibles par l'appelant.
// @Tags		Notifications
// @Security	SessionCookie
// @Success		200	{object}		map[string]interface{} "Nombre de notifications mises à jour"
// @Router		/api/notifications/mark-all-read [POST]
func (h *Handler) MarkAllAsRead(c *gin.Context) {
	uid, _, _ := middleware.Identity(c)
	if uid == "" {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "User not authenticated")
		return
	}

	updated, err := h.service.MarkAllRead(c.Request.Context(), uid)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "UPDATE_FAILED", "Failed to mark as read")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"status": "all_read", "updated": updated})
}

// @Summary		Supprimer une notification
// @Tags		Notifications
// @Security	SessionCookie
// @Param		id	path	string	true	"ID de la notification"
// @Success		200	{object}		map[string]interface{} "Résultat de la suppression"
// @Failure		400	{object}		map[string]interface{} "ID manquant"
// @Router		/api/notifications/{id} [DELETE]
func (h *Handler) Delete(c *gin.Context) {
	res, err := h.service.DeleteByID(c.Request.Context(), c.Param("id"))
	switch {
	case err == nil:
		response.Success(c, http.StatusOK, res)
	case errors.Is(err, ErrMissingID):
		response.Error(c, http.StatusBadRequest, "INVALID_ID", res.Message)
	default:
		response.Error(c, http.StatusInternalServerError, "DELETE_FAILED", res.Message)
	}
}

// Create is the admin manual trigger.
// @Summary		Créer une notification
// @Description	Déclenchement manuel par un admin, ciblant un utilisateur, des rôles ou des secteurs.
// @Tags		Notifications
// @Security	SessionCookie
// @Param		request	body	CreateNotificationRequest	true	"Notification"
// @Success		201	{object}		map[string]interface{} "id"
// @Failure		400	{object}		map[string]interface{} "Requête invalide"
// @Failure		403	{object}		map[string]interface{} "Réservé aux admins"
// @Router		/api/notifications [POST]
func (h *Handler) Create(c *gin.Context) {
	var req CreateNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if fields := validator.Validate(&req); fields != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid notification", fields)
		return
	}

	id, err := h.service.Create(c.Request.Context(), req.ToEntity())
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
			return
		}
		response.Error(c, http.StatusInternalServerError, "CREATE_FAILED", "Failed to create notification")
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"id": id})
}
