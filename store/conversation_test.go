package store

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveTitle(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"short", "What are my courses?", "What are my courses?"},
		{"exactly thirty", strings.Repeat("a", 30), strings.Repeat("a", 30)},
		{"thirty one", strings.Repeat("a", 31), strings.Repeat("a", 30) + "..."},
		{"empty", "", ""},
		{"multibyte", strings.Repeat("中", 31), strings.Repeat("中", 30) + "..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DeriveTitle(tt.input))
		})
	}
}

func TestTemporaryIDs(t *testing.T) {
	msg := NewUserMessage("hi", time.Now())
	assert.True(t, IsTemporaryID(msg.ID))
	assert.Equal(t, RoleUser, msg.Role)
	assert.Equal(t, MessageStatusPending, msg.Status)

	reply := NewAssistantMessage("hello", time.Now())
	assert.False(t, IsTemporaryID(reply.ID))
	assert.Equal(t, RoleAssistant, reply.Role)
	assert.Equal(t, MessageStatusSent, reply.Status)

	conv := NewTemporaryConversation(msg, time.Now())
	assert.True(t, conv.IsTemporary())
	assert.Equal(t, "hi", conv.Title)
	require.Len(t, conv.Messages, 1)

	assert.NotEqual(t, NewTemporaryConversationID(), NewTemporaryConversationID())
	assert.False(t, IsTemporaryID("conv_42"))
}

func TestConversation_Clone(t *testing.T) {
	now := time.Now()
	orig := &Conversation{ID: "c1", Messages: []*ChatMessage{{ID: "m1", Content: "a"}}}
	cp := orig.Clone()
	cp.Messages[0].Content = "changed"
	cp.Append(now, &ChatMessage{ID: "m2"})

	assert.Equal(t, "a", orig.Messages[0].Content)
	assert.Len(t, orig.Messages, 1)
	assert.Nil(t, (*Conversation)(nil).Clone())
}

func TestConversation_InsertAfter(t *testing.T) {
	now := time.Now()
	c := &Conversation{ID: "c1", Messages: []*ChatMessage{{ID: "u1"}, {ID: "u2"}}}

	c.InsertAfter("u1", &ChatMessage{ID: "a1"}, now)
	c.InsertAfter("u2", &ChatMessage{ID: "a2"}, now)
	c.InsertAfter("missing", &ChatMessage{ID: "x"}, now)

	ids := make([]string, 0, len(c.Messages))
	for _, m := range c.Messages {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"u1", "a1", "u2", "a2", "x"}, ids)
	assert.Equal(t, now, c.UpdatedAt)
}

func TestConversation_SetMessageStatus(t *testing.T) {
	c := &Conversation{Messages: []*ChatMessage{{ID: "u1", Status: MessageStatusPending}}}

	assert.True(t, c.SetMessageStatus("u1", MessageStatusFailed))
	assert.Equal(t, MessageStatusFailed, c.Message("u1").Status)
	assert.False(t, c.SetMessageStatus("nope", MessageStatusFailed))
	assert.Nil(t, c.Message("nope"))
}
