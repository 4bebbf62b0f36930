package story

import (
	"github.com/jwebster45206/companion-engine/pkg/character"
)

// MessageAnalysis carries what an upstream analyser detected in the last message
type MessageAnalysis struct {
	Mood      string   `json:"mood,omitempty"`
	Sentiment string   `json:"sentiment,omitempty"`
	Topics    []string `json:"topics,omitempty"`
}

// Context is the snapshot a scan evaluates triggers against.
// A nil CurrentNeeds means the needs were not loaded yet.
type Context struct {
	Character                *character.Character
	LastUserMessage          string
	CurrentNeeds             []*character.Need
	ConversationLength       int
	TimeSinceLastInteraction int // minutes
	MessageAnalysis          *MessageAnalysis
}

// Mood returns the detected mood, or "" when no analysis is attached
func (c *Context) Mood() string {
	if c.MessageAnalysis == nil {
		return ""
	}
	return c.MessageAnalysis.Mood
}

// Need finds the need of the given type
func (c *Context) Need(t character.NeedType) *character.Need {
	for _, n := range c.CurrentNeeds {
		if n != nil && n.Type == t {
			return n
		}
	}
	return nil
}
