package store

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lithammer/shortuuid/v4"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// MessageStatus tracks the delivery state of a locally created message.
// Messages fetched from the backend are always MessageStatusSent.
type MessageStatus string

const (
	MessageStatusSent    MessageStatus = ""
	MessageStatusPending MessageStatus = "pending"
	MessageStatusFailed  MessageStatus = "failed"
)

const (
	// TemporaryPrefix marks ids minted on the client before the backend confirmed them.
	// Server ids never start with it.
	TemporaryPrefix = "temp_"

	tempMessagePrefix      = TemporaryPrefix + "msg_"
	tempConversationPrefix = TemporaryPrefix + "conv_"
	assistantMessagePrefix = "msg_"
)

// ChatMessage is one turn of a conversation.
type ChatMessage struct {
	Timestamp time.Time
	ID        string
	Role      Role
	Content   string
	Status    MessageStatus
}

// Clone returns a copy of the message.
func (m *ChatMessage) Clone() *ChatMessage {
	if m == nil {
		return nil
	}
	c := *m
	return &c
}

// NewUserMessage builds an optimistic user message with a temporary id.
func NewUserMessage(content string, now time.Time) *ChatMessage {
	return &ChatMessage{
		ID:        NewTemporaryMessageID(),
		Role:      RoleUser,
		Content:   content,
		Timestamp: now,
		Status:    MessageStatusPending,
	}
}

// NewAssistantMessage builds the local record of a reply returned by the backend.
func NewAssistantMessage(content string, now time.Time) *ChatMessage {
	return &ChatMessage{
		ID:        assistantMessagePrefix + uuid.NewString(),
		Role:      RoleAssistant,
		Content:   content,
		Timestamp: now,
	}
}

// NewTemporaryMessageID mints an id for a message the backend has not seen yet.
func NewTemporaryMessageID() string {
	return tempMessagePrefix + shortuuid.New()
}

// NewTemporaryConversationID mints an id for a conversation the backend has not created yet.
func NewTemporaryConversationID() string {
	return tempConversationPrefix + shortuuid.New()
}

// IsTemporaryID reports whether id was generated locally.
func IsTemporaryID(id string) bool {
	return strings.HasPrefix(id, TemporaryPrefix)
}
