package chat

import (
	"context"
	"fmt"
	"sync"

	"github.com/hrygo/supervaani/gateway"
	"github.com/hrygo/supervaani/store"
)

type sendCall struct {
	text           string
	conversationID string
}

// mockGateway is a test double for gateway.Gateway that records every call.
type mockGateway struct {
	sendFunc     func(ctx context.Context, text, conversationID string) (*gateway.SendResult, error)
	listFunc     func(ctx context.Context, limit, offset int) (*gateway.ConversationPage, error)
	messagesFunc func(ctx context.Context, conversationID string) ([]*store.ChatMessage, error)
	endFunc      func(ctx context.Context) error

	mu           sync.Mutex
	sends        []sendCall
	listOffsets  []int
	messageCalls []string
	ends         int
}

func (m *mockGateway) SendMessage(ctx context.Context, text, conversationID string) (*gateway.SendResult, error) {
	m.mu.Lock()
	m.sends = append(m.sends, sendCall{text: text, conversationID: conversationID})
	m.mu.Unlock()
	if m.sendFunc != nil {
		return m.sendFunc(ctx, text, conversationID)
	}
	id := conversationID
	if id == "" {
		id = "conv_42"
	}
	return &gateway.SendResult{AssistantText: "reply to " + text, ConversationID: id}, nil
}

func (m *mockGateway) ListConversations(ctx context.Context, limit, offset int) (*gateway.ConversationPage, error) {
	m.mu.Lock()
	m.listOffsets = append(m.listOffsets, offset)
	m.mu.Unlock()
	if m.listFunc != nil {
		return m.listFunc(ctx, limit, offset)
	}
	return &gateway.ConversationPage{}, nil
}

func (m *mockGateway) ListMessages(ctx context.Context, conversationID string) ([]*store.ChatMessage, error) {
	m.mu.Lock()
	m.messageCalls = append(m.messageCalls, conversationID)
	m.mu.Unlock()
	if m.messagesFunc != nil {
		return m.messagesFunc(ctx, conversationID)
	}
	return []*store.ChatMessage{}, nil
}

func (m *mockGateway) EndSession(ctx context.Context) error {
	m.mu.Lock()
	m.ends++
	m.mu.Unlock()
	if m.endFunc != nil {
		return m.endFunc(ctx)
	}
	return nil
}

func (m *mockGateway) sendCalls() []sendCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sendCall(nil), m.sends...)
}

func (m *mockGateway) listCalls() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.listOffsets...)
}

func (m *mockGateway) messagesCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.messageCalls...)
}

// summaries builds n conversation summaries with ids conv_<start>..conv_<start+n-1>.
func summaries(start, n int) []*store.Conversation {
	out := make([]*store.Conversation, 0, n)
	for i := start; i < start+n; i++ {
		out = append(out, &store.Conversation{ID: fmt.Sprintf("conv_%d", i), Title: fmt.Sprintf("title %d", i)})
	}
	return out
}
