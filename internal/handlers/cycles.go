package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jwebster45206/companion-engine/internal/engine"
)

// CycleHandler lets operators run an automation cycle on demand.
type CycleHandler struct {
	automation *engine.AutomationService
	logger     *slog.Logger
}

func NewCycleHandler(automation *engine.AutomationService, logger *slog.Logger) *CycleHandler {
	return &CycleHandler{automation: automation, logger: logger}
}

// Run handles POST /v1/story-cycles
func (h *CycleHandler) Run(c *gin.Context) {
	summary, err := h.automation.RunCycle(c.Request.Context())
	switch {
	case err == nil:
		c.JSON(http.StatusOK, summary)
	case errors.Is(err, engine.ErrCycleInProgress):
		respondError(c, http.StatusConflict, "A story cycle is already running.")
	default:
		_ = c.Error(err)
		h.logger.Error("Manual story cycle failed", "error", err)
		respondError(c, http.StatusInternalServerError, "Story cycle failed.")
	}
}

// Status handles GET /v1/story-cycles
func (h *CycleHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"running": h.automation.Running()})
}
