package scheduler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"jdcportal/internal/pkg/response"
)

type Handler struct {
	scheduler *Scheduler
}

func NewHandler(s *Scheduler) *Handler {
	return &Handler{scheduler: s}
}

// RegisterRoutes mounts the cron trigger; guard must check the shared secret.
func (h *Handler) RegisterRoutes(api *gin.RouterGroup, guard gin.HandlerFunc) {
	api.POST("/scheduled-tasks", guard, h.Trigger)
	api.GET("/scheduled-tasks", guard, h.States)
}

// Trigger runs one tick. The tick is detached from the request so a cron
// client hanging up does not cancel a sync halfway.
// @Summary		Déclencher les tâches planifiées
// @Tags		Planificateur
// @Param		X-Cron-Secret	header	string	true	"Secret partagé du cron"
// @Success		200	{object}		map[string]interface{} "Rapport par tâche"
// @Failure		401	{object}		map[string]interface{} "Secret invalide"
// @Failure		409	{object}		map[string]interface{} "Tick déjà en cours"
// @Router		/api/scheduled-tasks [POST]
func (h *Handler) Trigger(c *gin.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), h.scheduler.TickTimeout())
	defer cancel()

	reports, err := h.scheduler.Tick(ctx)
	if err != nil {
		if errors.Is(err, ErrTickInProgress) {
			response.Error(c, http.StatusConflict, "TICK_IN_PROGRESS", "A scheduler tick is already running")
			return
		}
		response.Error(c, http.StatusInternalServerError, "TICK_FAILED", "Scheduler tick could not start")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"tasks": reports})
}

// @Summary		État des tâches planifiées
// @Tags		Planificateur
// @Param		X-Cron-Secret	header	string	true	"Secret partagé du cron"
// @Success		200	{object}		map[string]interface{} "states"
// @Router		/api/scheduled-tasks [GET]
func (h *Handler) States(c *gin.Context) {
	states, err := h.scheduler.store.List(c.Request.Context())
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "FETCH_FAILED", "Failed to load task states")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"states": states})
}
