package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/supervaani/chat"
	"github.com/hrygo/supervaani/gateway"
	"github.com/hrygo/supervaani/store"
)

type mockGateway struct {
	listErr  error
	listFunc func(ctx context.Context) (*gateway.ConversationPage, error)
	sendFunc func(ctx context.Context, text, id string) (*gateway.SendResult, error)

	mu    sync.Mutex
	lists int
	ends  int
}

func (m *mockGateway) SendMessage(ctx context.Context, text, id string) (*gateway.SendResult, error) {
	if m.sendFunc != nil {
		return m.sendFunc(ctx, text, id)
	}
	if id == "" {
		id = "conv_1"
	}
	return &gateway.SendResult{AssistantText: text, ConversationID: id}, nil
}

func (m *mockGateway) ListConversations(ctx context.Context, _, _ int) (*gateway.ConversationPage, error) {
	m.mu.Lock()
	m.lists++
	m.mu.Unlock()
	if m.listFunc != nil {
		return m.listFunc(ctx)
	}
	if m.listErr != nil {
		return nil, m.listErr
	}
	return &gateway.ConversationPage{Items: []*store.Conversation{{ID: "conv_1"}, {ID: "conv_2"}}}, nil
}

func (m *mockGateway) ListMessages(context.Context, string) ([]*store.ChatMessage, error) {
	return nil, nil
}

func (m *mockGateway) EndSession(context.Context) error {
	m.mu.Lock()
	m.ends++
	m.mu.Unlock()
	return nil
}

func (m *mockGateway) counts() (lists, ends int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lists, m.ends
}

func newManager(gw *mockGateway) (*Manager, *chat.Client) {
	client := chat.NewClient(gw, store.New(), chat.Options{})
	return NewManager(client, gw, nil), client
}

func TestManager_LoadsOnceWhenAuthenticated(t *testing.T) {
	gw := &mockGateway{}
	m, client := newManager(gw)
	assert.Equal(t, StatusUnknown, m.Status())

	m.SetStatus(StatusUnknown)
	m.SetStatus(StatusAuthenticated)
	m.SetStatus(StatusAuthenticated)
	m.Wait()

	lists, ends := gw.counts()
	assert.Equal(t, 1, lists)
	assert.Zero(t, ends)
	assert.Equal(t, 2, client.Store().Len())
}

func TestManager_UnknownTriggersNothing(t *testing.T) {
	gw := &mockGateway{}
	m, _ := newManager(gw)

	m.SetStatus(StatusUnauthenticated)
	m.SetStatus(StatusUnknown)
	m.Wait()

	lists, ends := gw.counts()
	assert.Zero(t, lists)
	assert.Zero(t, ends)
}

func TestManager_SignOut(t *testing.T) {
	gw := &mockGateway{}
	m, client := newManager(gw)
	m.SetStatus(StatusAuthenticated)
	m.Wait()
	_, err := client.Send(context.Background(), "hi")
	require.NoError(t, err)

	m.SetStatus(StatusUnauthenticated)
	m.Wait()

	_, ends := gw.counts()
	assert.Equal(t, 1, ends)
	assert.Zero(t, client.Store().Len())
	assert.Nil(t, client.Store().Current())

	m.SetStatus(StatusAuthenticated)
	m.Wait()
	lists, _ := gw.counts()
	assert.Equal(t, 2, lists, "signing in again reloads")
}

func TestManager_Close(t *testing.T) {
	t.Run("authenticated", func(t *testing.T) {
		gw := &mockGateway{}
		m, _ := newManager(gw)
		m.SetStatus(StatusAuthenticated)
		m.Close()
		m.Close()
		m.Wait()

		_, ends := gw.counts()
		assert.Equal(t, 1, ends)

		m.SetStatus(StatusUnauthenticated)
		m.Wait()
		_, ends = gw.counts()
		assert.Equal(t, 1, ends, "no transitions after close")
	})

	t.Run("not authenticated", func(t *testing.T) {
		gw := &mockGateway{}
		m, _ := newManager(gw)
		m.SetStatus(StatusUnauthenticated)
		m.Close()
		m.Wait()

		_, ends := gw.counts()
		assert.Zero(t, ends)
	})
}

func TestManager_LoadFailureIsContained(t *testing.T) {
	gw := &mockGateway{listErr: errors.New("backend down")}
	m, client := newManager(gw)

	m.SetStatus(StatusAuthenticated)
	m.Wait()

	assert.Equal(t, StatusAuthenticated, m.Status())
	assert.Zero(t, client.Store().Len())
}

func summaries() *gateway.ConversationPage {
	return &gateway.ConversationPage{Items: []*store.Conversation{{ID: "conv_1"}, {ID: "conv_2"}}}
}

func TestManager_SignOutDuringInitialLoad(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	gw := &mockGateway{listFunc: func(context.Context) (*gateway.ConversationPage, error) {
		once.Do(func() { close(started) })
		<-release
		return summaries(), nil
	}}
	m, client := newManager(gw)

	m.SetStatus(StatusAuthenticated)
	<-started
	m.SetStatus(StatusUnauthenticated)
	close(release)
	m.Wait()

	assert.Equal(t, StatusUnauthenticated, m.Status())
	assert.Zero(t, client.Store().Len(), "a page for the signed-out user is dropped")
	assert.False(t, client.Pager().HasMore())
}

func TestManager_SignOutCancelsInitialLoad(t *testing.T) {
	started := make(chan struct{})
	cancelled := make(chan error, 1)
	gw := &mockGateway{listFunc: func(ctx context.Context) (*gateway.ConversationPage, error) {
		close(started)
		<-ctx.Done()
		cancelled <- ctx.Err()
		return nil, ctx.Err()
	}}
	m, client := newManager(gw)

	m.SetStatus(StatusAuthenticated)
	<-started
	m.SetStatus(StatusUnauthenticated)
	m.Wait()

	assert.ErrorIs(t, <-cancelled, context.Canceled)
	assert.Zero(t, client.Store().Len())
}

func TestManager_CloseCancelsBackgroundWork(t *testing.T) {
	started := make(chan struct{})
	gw := &mockGateway{listFunc: func(ctx context.Context) (*gateway.ConversationPage, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	m, _ := newManager(gw)
	m.SetStatus(StatusAuthenticated)
	<-started

	m.Close()
	done := make(chan struct{})
	go func() {
		m.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Wait did not return after Close")
	}
	_, ends := gw.counts()
	assert.Equal(t, 1, ends)
}

func TestManager_ReauthenticateDuringSend(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	gw := &mockGateway{
		listFunc: func(context.Context) (*gateway.ConversationPage, error) { return summaries(), nil },
		sendFunc: func(context.Context, string, string) (*gateway.SendResult, error) {
			close(started)
			<-release
			return &gateway.SendResult{AssistantText: "late", ConversationID: "conv_9"}, nil
		},
	}
	m, client := newManager(gw)
	m.SetStatus(StatusAuthenticated)
	m.Wait()

	sent := make(chan error, 1)
	go func() {
		_, err := client.Send(context.Background(), "question")
		sent <- err
	}()
	<-started

	m.SetStatus(StatusUnauthenticated)
	m.SetStatus(StatusAuthenticated)
	m.Wait()
	close(release)

	require.ErrorIs(t, <-sent, chat.ErrConversationDiscarded)
	list := client.Store().List()
	require.Len(t, list, 2)
	for _, c := range list {
		assert.False(t, c.IsTemporary())
	}
	lists, ends := gw.counts()
	assert.Equal(t, 2, lists)
	assert.Equal(t, 1, ends)
}
