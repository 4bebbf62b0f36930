package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jwebster45206/companion-engine/internal/engine"
	"github.com/jwebster45206/companion-engine/internal/services/queue"
	"github.com/jwebster45206/companion-engine/pkg/storage"
	"github.com/jwebster45206/companion-engine/pkg/story"
)

const defaultPromptPeek = 20

// PromptQueue is the pending prompt queue a chat layer reads from.
type PromptQueue interface {
	Peek(ctx context.Context, characterID uuid.UUID, limit int) ([]string, error)
	Depth(ctx context.Context, characterID uuid.UUID) (int, error)
	Dequeue(ctx context.Context, characterID uuid.UUID) ([]string, error)
	Clear(ctx context.Context, characterID uuid.UUID) error
}

// CheckRequest carries the conversation signals for a single trigger scan.
// With FromHistory set the signals are rebuilt from the stored dialog instead.
type CheckRequest struct {
	Message                  string `json:"message"`
	ConversationLength       int    `json:"conversation_length"`
	TimeSinceLastInteraction int    `json:"time_since_last_interaction"`
	Mood                     string `json:"mood"`
	FromHistory              bool   `json:"from_history"`
}

type PromptsResponse struct {
	CharacterID uuid.UUID `json:"character_id"`
	Depth       int       `json:"depth"`
	Prompts     []string  `json:"prompts"`
}

// DrainResponse hands the consumed prompts to the chat layer, raw and pre-rendered.
type DrainResponse struct {
	CharacterID uuid.UUID `json:"character_id"`
	Prompts     []string  `json:"prompts"`
	Formatted   string    `json:"formatted"`
}

// StoryHandler serves story event management and per-character scans.
type StoryHandler struct {
	service    *engine.Service
	automation *engine.AutomationService
	storage    storage.Storage
	prompts    PromptQueue
	logger     *slog.Logger
}

func NewStoryHandler(svc *engine.Service, automation *engine.AutomationService, st storage.Storage, logger *slog.Logger) *StoryHandler {
	return &StoryHandler{
		service:    svc,
		automation: automation,
		storage:    st,
		logger:     logger,
	}
}

// WithPrompts enables the story-prompts endpoints
func (h *StoryHandler) WithPrompts(p PromptQueue) *StoryHandler {
	h.prompts = p
	return h
}

// ListEvents handles GET /v1/story-events
func (h *StoryHandler) ListEvents(c *gin.Context) {
	events, err := h.service.ListActiveStoryEvents(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		respondError(c, http.StatusInternalServerError, "Failed to list story events.")
		return
	}
	c.JSON(http.StatusOK, events)
}

// CreateEvent handles POST /v1/story-events
func (h *StoryHandler) CreateEvent(c *gin.Context) {
	var def story.Definition
	if err := c.ShouldBindJSON(&def); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body.")
		return
	}

	ev, err := h.service.CreateStoryEvent(c.Request.Context(), def)
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, ev)
	case errors.Is(err, engine.ErrInvalidEvent):
		respondError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, storage.ErrDuplicateName):
		respondError(c, http.StatusConflict, "A story event with that name already exists.")
	default:
		_ = c.Error(err)
		respondError(c, http.StatusInternalServerError, "Failed to create story event.")
	}
}

// SeedDefaults handles POST /v1/story-events/defaults
func (h *StoryHandler) SeedDefaults(c *gin.Context) {
	result, err := h.automation.InitializeDefaultEvents(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		respondError(c, http.StatusInternalServerError, "Failed to seed default story events.")
		return
	}
	c.JSON(http.StatusOK, result)
}

// Personalize handles POST /v1/characters/:id/personalized-events
func (h *StoryHandler) Personalize(c *gin.Context) {
	id, ok := characterID(c)
	if !ok {
		return
	}

	result, err := h.automation.CreatePersonalizedEvents(c.Request.Context(), id)
	if err != nil {
		h.engineError(c, err, "Failed to create personalized story events.")
		return
	}
	c.JSON(http.StatusOK, result)
}

// Check handles POST /v1/characters/:id/story-check
func (h *StoryHandler) Check(c *gin.Context) {
	id, ok := characterID(c)
	if !ok {
		return
	}

	// An empty body scans with zero signals
	var req CheckRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(c, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if req.ConversationLength < 0 || req.TimeSinceLastInteraction < 0 {
		respondError(c, http.StatusBadRequest, "conversation_length and time_since_last_interaction must not be negative.")
		return
	}

	ctx := c.Request.Context()
	ch, err := h.storage.GetCharacter(ctx, id)
	if err != nil {
		_ = c.Error(err)
		respondError(c, http.StatusInternalServerError, "Failed to load character.")
		return
	}
	if ch == nil {
		respondError(c, http.StatusNotFound, "Character not found.")
		return
	}

	var sc *story.Context
	if req.FromHistory {
		sc, err = h.automation.BuildContext(ctx, ch)
		if err != nil {
			_ = c.Error(err)
			respondError(c, http.StatusInternalServerError, "Failed to load conversation history.")
			return
		}
	} else {
		sc = &story.Context{
			Character:                ch,
			LastUserMessage:          req.Message,
			ConversationLength:       req.ConversationLength,
			TimeSinceLastInteraction: req.TimeSinceLastInteraction,
		}
	}
	if req.Mood != "" {
		sc.MessageAnalysis = &story.MessageAnalysis{Mood: req.Mood}
	}

	result, err := h.service.CheckAndTriggerEvents(ctx, sc)
	if err != nil {
		h.engineError(c, err, "Story check failed.")
		return
	}
	c.JSON(http.StatusOK, result)
}

// Trigger handles POST /v1/characters/:id/story-events/:name/trigger
func (h *StoryHandler) Trigger(c *gin.Context) {
	id, ok := characterID(c)
	if !ok {
		return
	}

	firing, err := h.automation.TriggerEventForCharacter(c.Request.Context(), id, c.Param("name"))
	if err != nil {
		h.engineError(c, err, "Failed to trigger story event.")
		return
	}
	c.JSON(http.StatusOK, firing)
}

// Progress handles GET /v1/characters/:id/story-progress
func (h *StoryHandler) Progress(c *gin.Context) {
	id, ok := characterID(c)
	if !ok {
		return
	}

	progress, err := h.service.GetCharacterStoryProgress(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		respondError(c, http.StatusInternalServerError, "Failed to load story progress.")
		return
	}
	if progress == nil {
		progress = []*story.Progress{}
	}
	c.JSON(http.StatusOK, progress)
}

func (h *StoryHandler) promptsEnabled(c *gin.Context) bool {
	if h.prompts == nil {
		respondError(c, http.StatusNotImplemented, "Prompt queue is not configured.")
		return false
	}
	return true
}

// Prompts handles GET /v1/characters/:id/story-prompts?limit=N
func (h *StoryHandler) Prompts(c *gin.Context) {
	if !h.promptsEnabled(c) {
		return
	}
	id, ok := characterID(c)
	if !ok {
		return
	}

	limit := defaultPromptPeek
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respondError(c, http.StatusBadRequest, "limit must be a positive integer.")
			return
		}
		limit = n
	}

	ctx := c.Request.Context()
	prompts, err := h.prompts.Peek(ctx, id, limit)
	if err != nil {
		_ = c.Error(err)
		respondError(c, http.StatusInternalServerError, "Failed to read prompt queue.")
		return
	}
	depth, err := h.prompts.Depth(ctx, id)
	if err != nil {
		_ = c.Error(err)
		respondError(c, http.StatusInternalServerError, "Failed to read prompt queue.")
		return
	}
	if prompts == nil {
		prompts = []string{}
	}

	c.JSON(http.StatusOK, PromptsResponse{
		CharacterID: id,
		Depth:       depth,
		Prompts:     prompts,
	})
}

// DrainPrompts handles POST /v1/characters/:id/story-prompts/drain
func (h *StoryHandler) DrainPrompts(c *gin.Context) {
	if !h.promptsEnabled(c) {
		return
	}
	id, ok := characterID(c)
	if !ok {
		return
	}

	prompts, err := h.prompts.Dequeue(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		respondError(c, http.StatusInternalServerError, "Failed to drain prompt queue.")
		return
	}
	if prompts == nil {
		prompts = []string{}
	}

	c.JSON(http.StatusOK, DrainResponse{
		CharacterID: id,
		Prompts:     prompts,
		Formatted:   queue.FormatEvents(prompts),
	})
}

// ClearPrompts handles DELETE /v1/characters/:id/story-prompts
func (h *StoryHandler) ClearPrompts(c *gin.Context) {
	if !h.promptsEnabled(c) {
		return
	}
	id, ok := characterID(c)
	if !ok {
		return
	}

	if err := h.prompts.Clear(c.Request.Context(), id); err != nil {
		_ = c.Error(err)
		respondError(c, http.StatusInternalServerError, "Failed to clear prompt queue.")
		return
	}
	h.logger.Info("Story prompt queue cleared", "character_id", id.String())
	c.Status(http.StatusNoContent)
}

func (h *StoryHandler) engineError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, engine.ErrCharacterNotFound), errors.Is(err, engine.ErrEventNotFound):
		respondError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, engine.ErrEventNotEligible), errors.Is(err, engine.ErrScanInProgress):
		respondError(c, http.StatusConflict, err.Error())
	default:
		_ = c.Error(err)
		h.logger.Error(fallback, "error", err)
		respondError(c, http.StatusInternalServerError, fallback)
	}
}
