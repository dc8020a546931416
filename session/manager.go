// Package session ties the chat client to the user's authentication state.
package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hrygo/supervaani/chat"
	"github.com/hrygo/supervaani/gateway"
)

// Status is the authentication state reported by the identity layer.
type Status string

const (
	StatusUnknown         Status = "unknown"
	StatusUnauthenticated Status = "unauthenticated"
	StatusAuthenticated   Status = "authenticated"
)

// Manager loads the conversation list when the user signs in and ends the
// backend session when the user signs out or the client shuts down.
type Manager struct {
	client  *chat.Client
	gateway gateway.Gateway
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	status  Status
	closed  bool
	// endAuth cancels work started for the current authenticated period.
	endAuth context.CancelFunc
}

// NewManager creates a Manager in StatusUnknown.
func NewManager(client *chat.Client, gw gateway.Gateway, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		client:  client,
		gateway: gw,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		status:  StatusUnknown,
	}
}

// Status returns the current session status.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// SetStatus records a status change. Entering StatusAuthenticated loads the
// first page of conversations in the background. Leaving it ends the backend
// session and drops local state. Repeating the current status does nothing.
func (m *Manager) SetStatus(status Status) {
	m.mu.Lock()
	if m.closed || status == m.status {
		m.mu.Unlock()
		return
	}
	prev := m.status
	m.status = status
	var authCtx context.Context
	if status == StatusAuthenticated {
		authCtx, m.endAuth = context.WithCancel(m.ctx)
	} else if prev == StatusAuthenticated {
		m.endAuth()
		m.endAuth = nil
	}
	m.mu.Unlock()

	m.logger.Info("session status changed", "from", prev, "to", status)

	switch {
	case status == StatusAuthenticated:
		m.loadConversations(authCtx)
	case prev == StatusAuthenticated:
		m.endSession()
		m.client.Reset()
	}
}

// Close tears the session down, ending it on the backend if the user is
// signed in. Background loads are cancelled. Close is idempotent.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	authenticated := m.status == StatusAuthenticated
	m.mu.Unlock()

	m.cancel()
	if authenticated {
		m.endSession()
	}
}

// Wait blocks until all background work started by the Manager is done.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (m *Manager) loadConversations(ctx context.Context) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := m.client.LoadFirstPage(ctx); err != nil {
			m.logger.Debug("initial conversation load failed", "error", err)
		}
	}()
}

func (m *Manager) endSession() {
	done := gateway.EndSessionAsync(m.gateway, m.logger)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		<-done
	}()
}
