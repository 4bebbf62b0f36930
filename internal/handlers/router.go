package handlers

import (
	"log/slog"

	"github.com/gin-gonic/gin"
)

// Router collects the handlers mounted by SetupRouter. Nil handlers are skipped.
type Router struct {
	Health *HealthHandler
	Story  *StoryHandler
	Cycles *CycleHandler
	Events *EventsHandler
	Logger *slog.Logger
}

// SetupRouter builds the gin engine for the HTTP API
func (rt *Router) SetupRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(rt.Logger))

	if rt.Health != nil {
		r.GET("/health", rt.Health.Get)
	}

	v1 := r.Group("/v1")
	if rt.Story != nil {
		v1.GET("/story-events", rt.Story.ListEvents)
		v1.POST("/story-events", rt.Story.CreateEvent)
		v1.POST("/story-events/defaults", rt.Story.SeedDefaults)

		chars := v1.Group("/characters/:id")
		chars.POST("/story-check", rt.Story.Check)
		chars.POST("/personalized-events", rt.Story.Personalize)
		chars.POST("/story-events/:name/trigger", rt.Story.Trigger)
		chars.GET("/story-progress", rt.Story.Progress)
		chars.GET("/story-prompts", rt.Story.Prompts)
		chars.DELETE("/story-prompts", rt.Story.ClearPrompts)
		chars.POST("/story-prompts/drain", rt.Story.DrainPrompts)
	}
	if rt.Cycles != nil {
		v1.GET("/story-cycles", rt.Cycles.Status)
		v1.POST("/story-cycles", rt.Cycles.Run)
	}
	if rt.Events != nil {
		v1.GET("/events/cycles", rt.Events.StreamCycles)
		v1.GET("/events/characters/:id", rt.Events.StreamCharacter)
	}

	return r
}
