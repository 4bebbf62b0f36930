package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLastUserMessage(t *testing.T) {
	tests := []struct {
		name     string
		messages []Message
		expected string
	}{
		{
			name:     "no messages",
			messages: nil,
			expected: "",
		},
		{
			name: "newest user message wins",
			messages: []Message{
				{Role: ChatRoleAgent, Content: "I missed you"},
				{Role: ChatRoleUser, Content: "hello again"},
				{Role: ChatRoleUser, Content: "first hello"},
			},
			expected: "hello again",
		},
		{
			name: "only assistant messages",
			messages: []Message{
				{Role: ChatRoleAgent, Content: "anyone there?"},
				{Role: ChatRoleSystem, Content: "STORY EVENT: rain"},
			},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, LastUserMessage(tt.messages))
		})
	}
}
