// Package devserver is an in-memory stand-in for the supervaani backend.
// It speaks the same HTTP/JSON contract, so the client can be exercised
// locally and in tests without the real retrieval and generation stack.
package devserver

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/hrygo/supervaani/store"
)

// timeLayout matches SQLite's CURRENT_TIMESTAMP, which is what the real backend returns.
const timeLayout = "2006-01-02 15:04:05"

// Options configures a Server.
type Options struct {
	// Reply produces the assistant text for a user message. Defaults to an echo.
	Reply  func(text string) string
	Now    func() time.Time
	Logger *slog.Logger
}

type message struct {
	Timestamp time.Time
	ID        string
	Role      string
	Content   string
}

type conversation struct {
	CreatedAt time.Time
	UpdatedAt time.Time
	ID        string
	Title     string
	Messages  []message
}

// Server holds per-user conversations in memory.
type Server struct {
	echo   *echo.Echo
	reply  func(string) string
	now    func() time.Time
	logger *slog.Logger

	mu     sync.Mutex
	users  map[string]map[string]*conversation
	leaves map[string]int
	last   time.Time
}

// New creates a Server with its routes registered.
func New(opts Options) *Server {
	s := &Server{
		reply:  opts.Reply,
		now:    opts.Now,
		logger: opts.Logger,
		users:  make(map[string]map[string]*conversation),
		leaves: make(map[string]int),
	}
	if s.reply == nil {
		s.reply = func(text string) string { return "You said: " + text }
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	api := e.Group("/api/:userID")
	api.POST("/supervaani", s.handleSend)
	api.GET("/conversations", s.handleListConversations)
	api.GET("/conversations/:conversationID", s.handleListMessages)
	api.POST("/leave", s.handleLeave)

	s.echo = e
	return s
}

// Handler exposes the routes, e.g. for httptest.NewServer.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves on addr until Shutdown.
func (s *Server) Start(addr string) error {
	s.logger.Info("devserver listening", "addr", addr)
	return s.echo.Start(addr)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Leaves returns how many times userID signalled the end of a session.
func (s *Server) Leaves(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.leaves[userID]
}

// Seed creates one conversation per title for userID, each with a single exchange.
// Later titles are more recent. It returns the new ids in creation order.
func (s *Server) Seed(userID string, titles ...string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(titles))
	for _, title := range titles {
		c := s.createLocked(userID, title)
		s.appendLocked(c, "user", title)
		s.appendLocked(c, "assistant", s.reply(title))
		ids = append(ids, c.ID)
	}
	return ids
}

type sendRequest struct {
	UserMessage    *string `json:"user_message"`
	ConversationID string  `json:"conversation_id"`
}

func (s *Server) handleSend(c echo.Context) error {
	if c.Request().Header.Get(echo.HeaderContentType) != echo.MIMEApplicationJSON {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Not a JSON"})
	}
	var req sendRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Not a JSON"})
	}
	if req.UserMessage == nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Missing user_message"})
	}
	userID := param(c, "userID")
	text := *req.UserMessage

	s.mu.Lock()
	conv := s.users[userID][req.ConversationID]
	if conv == nil {
		conv = s.createLocked(userID, store.DeriveTitle(text))
	}
	s.appendLocked(conv, "user", text)
	answer := s.reply(text)
	s.appendLocked(conv, "assistant", answer)
	id := conv.ID
	s.mu.Unlock()

	return c.JSON(http.StatusOK, map[string]string{
		"supervaani_message": answer,
		"conversation_id":    id,
	})
}

func (s *Server) handleListConversations(c echo.Context) error {
	limit := intQuery(c, "limit", 10)
	if limit == 0 {
		limit = 10
	}
	offset := intQuery(c, "offset", 0)
	userID := param(c, "userID")

	s.mu.Lock()
	all := make([]*conversation, 0, len(s.users[userID]))
	for _, conv := range s.users[userID] {
		all = append(all, conv)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].UpdatedAt.Equal(all[j].UpdatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].UpdatedAt.After(all[j].UpdatedAt)
	})

	page := make([]map[string]string, 0, limit)
	for i := offset; i < len(all) && len(page) < limit; i++ {
		page = append(page, map[string]string{
			"id":         all[i].ID,
			"title":      all[i].Title,
			"created_at": all[i].CreatedAt.Format(timeLayout),
			"updated_at": all[i].UpdatedAt.Format(timeLayout),
		})
	}
	s.mu.Unlock()

	return c.JSON(http.StatusOK, map[string]any{
		"conversations": page,
		// Same heuristic as the production backend: a full page implies more.
		"has_more": len(page) == limit,
	})
}

func (s *Server) handleListMessages(c echo.Context) error {
	userID := param(c, "userID")
	convID := param(c, "conversationID")

	s.mu.Lock()
	msgs := make([]map[string]string, 0)
	if conv := s.users[userID][convID]; conv != nil {
		for _, m := range conv.Messages {
			msgs = append(msgs, map[string]string{
				"id":        m.ID,
				"role":      m.Role,
				"content":   m.Content,
				"timestamp": m.Timestamp.Format(timeLayout),
			})
		}
	}
	s.mu.Unlock()

	return c.JSON(http.StatusOK, map[string]any{"messages": msgs})
}

func (s *Server) handleLeave(c echo.Context) error {
	userID := param(c, "userID")
	s.mu.Lock()
	s.leaves[userID]++
	s.mu.Unlock()
	s.logger.Info("user session ended", "user", userID)
	return c.JSON(http.StatusOK, map[string]string{"supervaani_message": "User session ended"})
}

func (s *Server) createLocked(userID, title string) *conversation {
	now := s.tickLocked()
	conv := &conversation{
		ID:        "conv_" + uuid.NewString(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if s.users[userID] == nil {
		s.users[userID] = make(map[string]*conversation)
	}
	s.users[userID][conv.ID] = conv
	return conv
}

func (s *Server) appendLocked(conv *conversation, role, content string) {
	now := s.tickLocked()
	conv.Messages = append(conv.Messages, message{
		ID:        "msg_" + role + "_" + uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: now,
	})
	conv.UpdatedAt = now
}

// tickLocked returns a strictly increasing time so ordering stays stable
// even when the clock does not advance between requests.
func (s *Server) tickLocked() time.Time {
	t := s.now().Truncate(time.Second)
	if !t.After(s.last) {
		t = s.last.Add(time.Second)
	}
	s.last = t
	return t
}

func param(c echo.Context, name string) string {
	v := c.Param(name)
	if u, err := url.PathUnescape(v); err == nil {
		return u
	}
	return v
}

func intQuery(c echo.Context, name string, def int) int {
	v, err := strconv.Atoi(c.QueryParam(name))
	if err != nil || v < 0 {
		return def
	}
	return v
}
