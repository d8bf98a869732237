package user

import (
	"errors"
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

type updateAccessRequest struct {
	Role              string   `json:"role" binding:"required"`
	Sectors           []string `json:"sectors"`
	IsSheetsProcessor *bool    `json:"isSheetsProcessor"`
	IsGmailProcessor  *bool    `json:"isGmailProcessor"`
}

func (h *Handler) RegisterRoutes(protected, admin *gin.RouterGroup) {
	protected.GET("/me", h.Me)

	users := admin.Group("/users")
	{
		users.GET("", h.List)
		users.PATCH("/:uid", h.UpdateAccess)
	}
}

// @Summary		Mon profil
// @Tags		Utilisateurs
// @Security	SessionCookie
// @Success		200	{object}		Profile
// @Failure		404	{object}		map[string]interface{} "Profil introuvable"
// @Router		/api/me [GET]
func (h *Handler) Me(c *gin.Context) {
	uid := c.GetString("user_id")
	if uid == "" {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "User not authenticated")
		return
	}

	p, err := h.repo.GetByUID(c.Request.Context(), uid)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.Error(c, http.StatusNotFound, "NOT_FOUND", "Profile not found")
			return
		}
		response.Error(c, http.StatusInternalServerError, "FETCH_FAILED", "Failed to load profile")
		return
	}

	response.Success(c, http.StatusOK, p)
}

// @Summary		Lister les profils
// @Tags		Utilisateurs
// @Security	SessionCookie
// @Success		200	{object}		map[string]interface{} "profiles"
// @Failure		403	{object}		map[string]interface{} "Réservé aux admins"
// @Router		/api/admin/users [GET]
func (h *Handler) List(c *gin.Context) {
	profiles, err := h.repo.List(c.Request.Context())
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "FETCH_FAILED", "Failed to list users")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"users": profiles})
}

// UpdateAccess sets role, sectors and processor flags. The change applies to
// open sessions on their next request.
// @Summary		Modifier les accès
// @Tags		Utilisateurs
// @Security	SessionCookie
// @Param		uid		path	string				true	"UID du profil"
// @Param		request	body	updateAccessRequest	true	"Rôle, secteurs, traitements"
// @Success		200	{object}		Profile
// @Failure		400	{object}		map[string]interface{} "Rôle inconnu"
// @Failure		404	{object}		map[string]interface{} "Profil introuvable"
// @Router		/api/admin/users/{uid} [PATCH]
func (h *Handler) UpdateAccess(c *gin.Context) {
	uid := strings.TrimSpace(c.Param("uid"))
	if uid == "" {
		response.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid user id")
		return
	}

	var req updateAccessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	role, ok := ParseRole(req.Role)
	if !ok {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Unknown role")
		return
	}

	ctx := c.Request.Context()
	p, err := h.repo.UpdateAccess(ctx, uid, role, cleanSectors(req.Sectors))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.Error(c, http.StatusNotFound, "NOT_FOUND", "Profile not found")
			return
		}
		response.Error(c, http.StatusInternalServerError, "UPDATE_FAILED", "Failed to update profile")
		return
	}

	if req.IsSheetsProcessor != nil {
		if err := h.repo.SetProcessor(ctx, uid, ProcessorSheets, *req.IsSheetsProcessor); err != nil {
			response.Error(c, http.StatusInternalServerError, "UPDATE_FAILED", "Failed to update profile")
			return
		}
		p.IsSheetsProcessor = *req.IsSheetsProcessor
	}
	if req.IsGmailProcessor != nil {
		if err := h.repo.SetProcessor(ctx, uid, ProcessorGmail, *req.IsGmailProcessor); err != nil {
			response.Error(c, http.StatusInternalServerError, "UPDATE_FAILED", "Failed to update profile")
			return
		}
		p.IsGmailProcessor = *req.IsGmailProcessor
	}

	response.Success(c, http.StatusOK, p)
}

func cleanSectors(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]bool{}
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[strings.ToLower(s)] {
			continue
		}
		seen[strings.ToLower(s)] = true
		out = append(out, s)
	}
	return out
}
