package chat

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"

	"github.com/hrygo/supervaani/gateway"
	"github.com/hrygo/supervaani/metrics"
	"github.com/hrygo/supervaani/store"
)

// ErrConversationNotFound is returned by OpenConversation for an id that is
// neither cached nor known to the backend.
var ErrConversationNotFound = errors.New("conversation not found")

// Pager walks the backend conversation list with an offset cursor and loads
// message histories lazily.
type Pager struct {
	gateway  gateway.Gateway
	store    *store.Store
	logger   *slog.Logger
	metrics  *metrics.Exporter
	opens    singleflight.Group
	pageSize int

	mu      sync.Mutex
	offset  int
	hasMore bool
	loading bool
	// generation is bumped by LoadFirstPage and Reset; a page response
	// started under an older generation is dropped.
	generation uint64

	// commit serializes page writes to the store with Reset.
	commit sync.Mutex
}

// NewPager creates a Pager that fills st from gw.
func NewPager(gw gateway.Gateway, st *store.Store, opts Options) *Pager {
	opts = opts.withDefaults()
	return &Pager{
		gateway:  gw,
		store:    st,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		pageSize: opts.PageSize,
	}
}

// LoadFirstPage fetches the first page, replaces the conversation list with it
// and clears the current conversation. On failure the store is left untouched.
// A page that arrives after Reset or a newer LoadFirstPage is dropped.
func (p *Pager) LoadFirstPage(ctx context.Context) error {
	p.mu.Lock()
	p.generation++
	gen := p.generation
	p.mu.Unlock()

	page, err := p.gateway.ListConversations(ctx, p.pageSize, 0)
	p.metrics.RecordPageLoad("first", err)
	if err != nil {
		p.logger.Error("failed to load conversations", "error", err)
		return err
	}

	p.commit.Lock()
	defer p.commit.Unlock()
	if !p.apply(gen, func() {
		p.offset = len(page.Items)
		p.hasMore = page.HasMore
	}) {
		p.logger.Debug("dropping stale first page")
		return nil
	}
	p.store.ReplaceAll(page.Items)
	p.store.SetCurrent(nil)
	return nil
}

// LoadNextPage appends the next page to the end of the list.
// It is a no-op, reporting false, when nothing more is available or another
// page load is still in flight. On failure the cursor is unchanged so the
// caller may try again.
func (p *Pager) LoadNextPage(ctx context.Context) (bool, error) {
	p.mu.Lock()
	if !p.hasMore || p.loading {
		p.mu.Unlock()
		return false, nil
	}
	p.loading = true
	offset, gen := p.offset, p.generation
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.loading = false
		p.mu.Unlock()
	}()

	page, err := p.gateway.ListConversations(ctx, p.pageSize, offset)
	p.metrics.RecordPageLoad("next", err)
	if err != nil {
		p.logger.Error("failed to load more conversations", "offset", offset, "error", err)
		return false, err
	}

	p.commit.Lock()
	defer p.commit.Unlock()
	if !p.apply(gen, func() {
		p.offset += len(page.Items)
		p.hasMore = page.HasMore
	}) {
		p.logger.Debug("dropping stale conversation page", "offset", offset)
		return false, nil
	}
	p.store.Append(page.Items)
	return true, nil
}

// apply runs fn under mu if gen is still the current generation.
func (p *Pager) apply(gen uint64, fn func()) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.generation {
		return false
	}
	fn()
	return true
}

// OpenConversation makes id current, fetching its messages first unless they
// are already cached. Concurrent opens of the same id share one request.
func (p *Pager) OpenConversation(ctx context.Context, id string) (*store.Conversation, error) {
	if c, ok := p.store.Get(id); ok && c.HasMessages() {
		p.store.SetCurrent(c)
		return c, nil
	}

	v, err, _ := p.opens.Do(id, func() (any, error) {
		return p.gateway.ListMessages(ctx, id)
	})
	if err != nil {
		p.logger.Error("failed to load conversation", "conversation_id", id, "error", err)
		return nil, err
	}
	msgs, _ := v.([]*store.ChatMessage)

	fill := func(c *store.Conversation) {
		if c.HasMessages() {
			return
		}
		c.Messages = make([]*store.ChatMessage, len(msgs))
		for i, m := range msgs {
			c.Messages[i] = m.Clone()
		}
	}

	if _, ok := p.store.Modify(id, fill); !ok {
		if len(msgs) == 0 {
			return nil, errors.Wrap(ErrConversationNotFound, id)
		}
		c := &store.Conversation{ID: id}
		fill(c)
		c.Title = store.DeriveTitle(msgs[0].Content)
		c.CreatedAt = msgs[0].Timestamp
		c.UpdatedAt = msgs[len(msgs)-1].Timestamp
		p.store.SetCurrent(c)
		return p.store.Current(), nil
	}

	p.store.SetCurrent(&store.Conversation{ID: id})
	return p.store.Current(), nil
}

// Reset forgets the cursor and drops page loads still in flight; the next
// LoadNextPage is a no-op until LoadFirstPage runs.
func (p *Pager) Reset() {
	p.commit.Lock()
	defer p.commit.Unlock()
	p.mu.Lock()
	p.generation++
	p.offset = 0
	p.hasMore = false
	p.mu.Unlock()
}

// HasMore reports whether the backend has conversations beyond the cursor.
func (p *Pager) HasMore() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hasMore
}

// Offset is the number of conversations loaded so far.
func (p *Pager) Offset() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.offset
}

// Loading reports whether a next-page load is in flight.
func (p *Pager) Loading() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loading
}
