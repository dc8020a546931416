package store

import (
	"time"
)

// TitleMaxLength is the number of runes of the first message kept in a derived title.
const TitleMaxLength = 30

// Conversation is the local view of a backend conversation.
// Messages may be empty when the conversation was loaded as a summary.
type Conversation struct {
	CreatedAt time.Time
	UpdatedAt time.Time
	ID        string
	Title     string
	Messages  []*ChatMessage
}

// NewTemporaryConversation creates the placeholder shown while the first message
// of a new thread is in flight.
func NewTemporaryConversation(first *ChatMessage, now time.Time) *Conversation {
	return &Conversation{
		ID:        NewTemporaryConversationID(),
		Title:     DeriveTitle(first.Content),
		Messages:  []*ChatMessage{first},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsTemporary reports whether the conversation has not been confirmed by the backend yet.
func (c *Conversation) IsTemporary() bool {
	return IsTemporaryID(c.ID)
}

// HasMessages reports whether message bodies are loaded.
func (c *Conversation) HasMessages() bool {
	return c != nil && len(c.Messages) > 0
}

// Clone returns a deep copy, so callers can mutate it without touching the store.
func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	cp := *c
	if c.Messages != nil {
		cp.Messages = make([]*ChatMessage, len(c.Messages))
		for i, m := range c.Messages {
			cp.Messages[i] = m.Clone()
		}
	}
	return &cp
}

// Append adds messages at the end and bumps UpdatedAt.
func (c *Conversation) Append(now time.Time, msgs ...*ChatMessage) {
	c.Messages = append(c.Messages, msgs...)
	c.UpdatedAt = now
}

// InsertAfter places msg right after the message with the given id.
// If the id is not present, msg is appended.
func (c *Conversation) InsertAfter(id string, msg *ChatMessage, now time.Time) {
	idx := c.messageIndex(id)
	if idx < 0 {
		c.Append(now, msg)
		return
	}
	c.Messages = append(c.Messages, nil)
	copy(c.Messages[idx+2:], c.Messages[idx+1:])
	c.Messages[idx+1] = msg
	c.UpdatedAt = now
}

// SetMessageStatus updates the status of the message with the given id.
func (c *Conversation) SetMessageStatus(id string, status MessageStatus) bool {
	idx := c.messageIndex(id)
	if idx < 0 {
		return false
	}
	c.Messages[idx].Status = status
	return true
}

// Message returns the message with the given id, or nil.
func (c *Conversation) Message(id string) *ChatMessage {
	if idx := c.messageIndex(id); idx >= 0 {
		return c.Messages[idx]
	}
	return nil
}

func (c *Conversation) messageIndex(id string) int {
	for i, m := range c.Messages {
		if m.ID == id {
			return i
		}
	}
	return -1
}

// DeriveTitle truncates text to TitleMaxLength runes and appends "..." when it was cut.
func DeriveTitle(text string) string {
	runes := []rune(text)
	if len(runes) <= TitleMaxLength {
		return text
	}
	return string(runes[:TitleMaxLength]) + "..."
}
