// Package gateway talks to the supervaani backend, which owns conversations
// and generates assistant replies. Every call is a single request/response
// exchange; nothing is retried here.
package gateway

import (
	"context"

	"github.com/hrygo/supervaani/store"
)

// Operation names, used in errors, logs and metrics.
const (
	OpSendMessage       = "send_message"
	OpListConversations = "list_conversations"
	OpListMessages      = "list_messages"
	OpEndSession        = "end_session"
)

// SendResult is the backend reply to a user message.
type SendResult struct {
	AssistantText string
	// ConversationID is always the canonical id, whether newly minted or pre-existing.
	ConversationID string
}

// ConversationPage is one page of conversation summaries. Summaries carry no messages.
type ConversationPage struct {
	Items   []*store.Conversation
	HasMore bool
}

// Gateway is the backend contract the sync core depends on.
type Gateway interface {
	// SendMessage posts text. An empty conversationID starts a new conversation.
	SendMessage(ctx context.Context, text, conversationID string) (*SendResult, error)
	// ListConversations returns summaries in backend order.
	ListConversations(ctx context.Context, limit, offset int) (*ConversationPage, error)
	// ListMessages returns the full ordered history of one conversation.
	ListMessages(ctx context.Context, conversationID string) ([]*store.ChatMessage, error)
	// EndSession tells the backend the user is leaving. Callers treat it as best-effort.
	EndSession(ctx context.Context) error
}
