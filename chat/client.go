package chat

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/hrygo/supervaani/gateway"
	"github.com/hrygo/supervaani/metrics"
	"github.com/hrygo/supervaani/store"
)

// Client is the state a chat front-end binds to: the store, the input buffer,
// the pager and the send pipeline.
type Client struct {
	store    *store.Store
	pager    *Pager
	pipeline *Pipeline
	metrics  *metrics.Exporter
	opening  atomic.Int32

	mu    sync.Mutex
	input string
}

// NewClient wires a Pager and a Pipeline over st.
func NewClient(gw gateway.Gateway, st *store.Store, opts Options) *Client {
	opts = opts.withDefaults()
	c := &Client{
		store:    st,
		pager:    NewPager(gw, st, opts),
		pipeline: NewPipeline(gw, st, opts),
		metrics:  opts.Metrics,
	}
	onChange := opts.OnChange
	st.SetOnChange(func() {
		c.metrics.SetConversations(st.Len())
		if onChange != nil {
			onChange()
		}
	})
	return c
}

// Store returns the conversation store the client writes to.
func (c *Client) Store() *store.Store { return c.store }

// Pager returns the client's pagination controller.
func (c *Client) Pager() *Pager { return c.pager }

// Pipeline returns the client's send pipeline.
func (c *Client) Pipeline() *Pipeline { return c.pipeline }

// Input returns the text waiting to be sent.
func (c *Client) Input() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.input
}

// SetInput replaces the text waiting to be sent.
func (c *Client) SetInput(s string) {
	c.mu.Lock()
	c.input = s
	c.mu.Unlock()
}

// SendInput sends the input buffer. The buffer is cleared only after the
// backend replied, and only if it was not edited in the meantime, so a failed
// message can be resubmitted as is.
func (c *Client) SendInput(ctx context.Context) (*store.Conversation, error) {
	text := c.Input()
	conv, err := c.pipeline.Send(ctx, text)
	if err != nil || conv == nil {
		return conv, err
	}
	c.mu.Lock()
	if c.input == text {
		c.input = ""
	}
	c.mu.Unlock()
	return conv, nil
}

// Send sends text regardless of the input buffer.
func (c *Client) Send(ctx context.Context, text string) (*store.Conversation, error) {
	return c.pipeline.Send(ctx, text)
}

// NewConversation deselects the current conversation. Nothing is created
// until the first message is sent.
func (c *Client) NewConversation() {
	c.store.SetCurrent(nil)
	c.SetInput("")
}

// LoadFirstPage reloads the conversation list from the start.
func (c *Client) LoadFirstPage(ctx context.Context) error {
	return c.pager.LoadFirstPage(ctx)
}

// LoadNextPage appends the next page of conversations.
func (c *Client) LoadNextPage(ctx context.Context) (bool, error) {
	return c.pager.LoadNextPage(ctx)
}

// OpenConversation makes id current, loading its history if needed.
func (c *Client) OpenConversation(ctx context.Context, id string) (*store.Conversation, error) {
	c.opening.Add(1)
	defer c.opening.Add(-1)
	return c.pager.OpenConversation(ctx, id)
}

// Loading reports whether any backend request started by the client is in flight.
func (c *Client) Loading() bool {
	return c.pager.Loading() || c.pipeline.Pending() > 0 || c.opening.Load() > 0
}

// Reset drops all local state, as on logout.
func (c *Client) Reset() {
	c.pager.Reset()
	c.pipeline.Reset()
	c.store.Reset()
	c.SetInput("")
}
