package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/hrygo/supervaani/identity"
	"github.com/hrygo/supervaani/metrics"
	"github.com/hrygo/supervaani/store"
)

const (
	// DefaultTimeout bounds each backend call. Replies are generated by an LLM, so it is generous.
	DefaultTimeout = 90 * time.Second

	maxErrorBody = 512
)

// Config configures an HTTPGateway.
type Config struct {
	// BaseURL is the backend origin, e.g. https://supervaani.plaksha.edu.in
	BaseURL string
	// Timeout applies to each call; <= 0 selects DefaultTimeout.
	Timeout time.Duration
	// RateLimit caps outgoing requests per second; 0 disables limiting.
	RateLimit float64
	// Burst is the limiter bucket size; <= 0 means 1.
	Burst int
	// UserAgent is sent with every request when set.
	UserAgent string

	HTTPClient *http.Client
	Identity   identity.Provider
	Metrics    *metrics.Exporter
	Logger     *slog.Logger
}

// HTTPGateway implements Gateway over the backend's HTTP/JSON API.
type HTTPGateway struct {
	client    *http.Client
	identity  identity.Provider
	limiter   *rate.Limiter
	metrics   *metrics.Exporter
	logger    *slog.Logger
	baseURL   string
	userAgent string
	timeout   time.Duration
}

// NewHTTPGateway creates a gateway for cfg.BaseURL.
func NewHTTPGateway(cfg Config) (*HTTPGateway, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("invalid backend url %q", cfg.BaseURL)
	}

	g := &HTTPGateway{
		client:    cfg.HTTPClient,
		identity:  cfg.Identity,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
		baseURL:   base,
		userAgent: cfg.UserAgent,
		timeout:   cfg.Timeout,
	}
	if g.client == nil {
		g.client = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	if g.identity == nil {
		g.identity = identity.None()
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	if g.timeout <= 0 {
		g.timeout = DefaultTimeout
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return g, nil
}

type sendRequest struct {
	UserMessage    string `json:"user_message"`
	ConversationID string `json:"conversation_id,omitempty"`
}

type sendResponse struct {
	SupervaaniMessage string `json:"supervaani_message"`
	ConversationID    string `json:"conversation_id"`
}

type conversationJSON struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type listConversationsResponse struct {
	Conversations []conversationJSON `json:"conversations"`
	HasMore       bool               `json:"has_more"`
}

type messageJSON struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

type listMessagesResponse struct {
	Messages []messageJSON `json:"messages"`
}

func (g *HTTPGateway) SendMessage(ctx context.Context, text, conversationID string) (*SendResult, error) {
	userID, ok := g.userID(ctx)
	if !ok {
		return nil, errors.Wrap(ErrIdentityUnavailable, OpSendMessage)
	}

	var resp sendResponse
	req := &sendRequest{UserMessage: text, ConversationID: conversationID}
	if err := g.do(ctx, OpSendMessage, http.MethodPost, userID, "/supervaani", req, &resp); err != nil {
		return nil, err
	}
	if resp.ConversationID == "" {
		return nil, &TransportError{Op: OpSendMessage, Err: errors.New("response has no conversation_id")}
	}
	return &SendResult{
		AssistantText:  resp.SupervaaniMessage,
		ConversationID: resp.ConversationID,
	}, nil
}

func (g *HTTPGateway) ListConversations(ctx context.Context, limit, offset int) (*ConversationPage, error) {
	userID, ok := g.userID(ctx)
	if !ok {
		return &ConversationPage{}, nil
	}

	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))

	var resp listConversationsResponse
	if err := g.do(ctx, OpListConversations, http.MethodGet, userID, "/conversations?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}

	page := &ConversationPage{
		Items:   make([]*store.Conversation, 0, len(resp.Conversations)),
		HasMore: resp.HasMore,
	}
	for _, c := range resp.Conversations {
		page.Items = append(page.Items, &store.Conversation{
			ID:        c.ID,
			Title:     c.Title,
			CreatedAt: g.parseTime(c.CreatedAt),
			UpdatedAt: g.parseTime(c.UpdatedAt),
		})
	}
	return page, nil
}

func (g *HTTPGateway) ListMessages(ctx context.Context, conversationID string) ([]*store.ChatMessage, error) {
	userID, ok := g.userID(ctx)
	if !ok {
		return []*store.ChatMessage{}, nil
	}

	var resp listMessagesResponse
	path := "/conversations/" + url.PathEscape(conversationID)
	if err := g.do(ctx, OpListMessages, http.MethodGet, userID, path, nil, &resp); err != nil {
		return nil, err
	}

	msgs := make([]*store.ChatMessage, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		msgs = append(msgs, &store.ChatMessage{
			ID:        m.ID,
			Role:      store.Role(m.Role),
			Content:   m.Content,
			Timestamp: g.parseTime(m.Timestamp),
		})
	}
	return msgs, nil
}

func (g *HTTPGateway) EndSession(ctx context.Context) error {
	userID, ok := g.userID(ctx)
	if !ok {
		return nil
	}
	return g.do(ctx, OpEndSession, http.MethodPost, userID, "/leave", nil, nil)
}

func (g *HTTPGateway) userID(ctx context.Context) (string, bool) {
	email, ok := g.identity.Identity(ctx)
	if !ok || email == "" {
		return "", false
	}
	return identity.UserID(email), true
}

// do performs one exchange. in is JSON-encoded when non-nil; out is decoded when non-nil.
func (g *HTTPGateway) do(ctx context.Context, op, method, userID, path string, in, out any) (err error) {
	start := time.Now()
	defer func() {
		g.metrics.RecordGatewayRequest(op, time.Since(start), err)
		if err != nil {
			g.logger.Debug("backend request failed", "op", op, "error", err)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if g.limiter != nil {
		if werr := g.limiter.Wait(ctx); werr != nil {
			return classify(ctx, op, werr)
		}
	}

	var body io.Reader = http.NoBody
	if in != nil {
		b, merr := json.Marshal(in)
		if merr != nil {
			return errors.Wrapf(merr, "failed to marshal %s request", op)
		}
		body = bytes.NewReader(b)
	}

	endpoint := g.baseURL + "/api/" + userID + path
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return errors.Wrapf(err, "failed to construct %s request", op)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if g.userAgent != "" {
		req.Header.Set("User-Agent", g.userAgent)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return classify(ctx, op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &TransportError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return classify(ctx, op, errors.Wrap(err, "failed to decode response"))
	}
	return nil
}

func classify(ctx context.Context, op string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Op: op, Err: err}
	}
	return &TransportError{Op: op, Err: err}
}

// The backend serialises with Python's isoformat(), which omits the zone.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
}

func (g *HTTPGateway) parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	g.logger.Debug("unparseable timestamp from backend", "value", s)
	return time.Time{}
}
