package chat

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/supervaani/gateway"
	"github.com/hrygo/supervaani/metrics"
	"github.com/hrygo/supervaani/store"
)

// ErrConversationDiscarded is returned when a reply arrives for a conversation
// that was dropped from the store while the request was in flight, e.g. on logout.
var ErrConversationDiscarded = errors.New("conversation discarded before reply arrived")

// Pipeline sends user messages with optimistic local updates.
//
// The user message is visible in the store before the backend call starts.
// Round trips for the same conversation run one at a time in submission order;
// every local write applies to the latest stored state, so overlapping sends
// never drop each other's messages. On failure the optimistic message stays
// in place, marked failed, and nothing is retried.
//
// A reply moves its conversation to the front of the list but makes it current
// only if it already was, under its temporary or real id. A conversation the
// user opened while the request was in flight stays current.
type Pipeline struct {
	gateway gateway.Gateway
	store   *store.Store
	lanes   *lanes
	logger  *slog.Logger
	metrics *metrics.Exporter
	now     func() time.Time
	pending atomic.Int32
}

// NewPipeline creates a send pipeline writing to st.
func NewPipeline(gw gateway.Gateway, st *store.Store, opts Options) *Pipeline {
	opts = opts.withDefaults()
	return &Pipeline{
		gateway: gw,
		store:   st,
		lanes:   newLanes(),
		logger:  opts.Logger,
		metrics: opts.Metrics,
		now:     opts.Now,
	}
}

// Send submits text to the current conversation, or starts a new one when
// none is current. Blank text is ignored: no store change, no request, and a
// nil conversation with a nil error.
func (p *Pipeline) Send(ctx context.Context, text string) (*store.Conversation, error) {
	if strings.TrimSpace(text) == "" {
		p.metrics.RecordSend(metrics.OutcomeIgnored)
		return nil, nil
	}

	p.pending.Add(1)
	p.metrics.SendStarted()
	defer func() {
		p.pending.Add(-1)
		p.metrics.SendFinished()
	}()

	now := p.now()
	msg := store.NewUserMessage(text, now)
	conv, created := p.store.AppendToCurrent(msg, func() *store.Conversation {
		return store.NewTemporaryConversation(msg, now)
	})
	p.logger.Debug("optimistic message added",
		"conversation_id", conv.ID, "message_id", msg.ID, "new_conversation", created)

	l, storeID, serverID, err := p.lanes.acquire(ctx, conv.ID)
	if err != nil {
		p.fail(p.lanes.resolve(conv.ID), msg.ID, err)
		return nil, err
	}
	defer p.lanes.release(l)

	res, err := p.gateway.SendMessage(ctx, text, serverID)
	if err != nil {
		p.fail(storeID, msg.ID, err)
		return nil, err
	}

	p.lanes.reconciled(l, res.ConversationID)
	reply := store.NewAssistantMessage(res.AssistantText, p.now())
	final := p.store.Reconcile(storeID, func(latest *store.Conversation) *store.Conversation {
		if latest == nil {
			return nil
		}
		if latest.Message(msg.ID) == nil {
			latest.Messages = restoreMessages(conv.Messages, latest.Messages)
		}
		latest.ID = res.ConversationID
		latest.SetMessageStatus(msg.ID, store.MessageStatusSent)
		latest.InsertAfter(msg.ID, reply, reply.Timestamp)
		if latest.Title == "" {
			latest.Title = store.DeriveTitle(text)
		}
		return latest
	})
	if final == nil {
		p.metrics.RecordSend(metrics.OutcomeFailed)
		p.logger.Warn("reply arrived for a discarded conversation", "conversation_id", res.ConversationID)
		return nil, ErrConversationDiscarded
	}

	p.metrics.RecordSend(metrics.OutcomeSuccess)
	if storeID != final.ID {
		p.logger.Debug("conversation reconciled", "temporary_id", storeID, "conversation_id", final.ID)
	}
	return final, nil
}

// Pending returns the number of sends waiting for the backend.
func (p *Pipeline) Pending() int {
	return int(p.pending.Load())
}

// Reset forgets temporary id aliases. Used on logout together with Store.Reset.
func (p *Pipeline) Reset() {
	p.lanes.reset()
}

func (p *Pipeline) fail(conversationID, messageID string, err error) {
	outcome := metrics.OutcomeFailed
	if gateway.IsTimeout(err) {
		outcome = metrics.OutcomeTimeout
	}
	p.metrics.RecordSend(outcome)
	p.store.Modify(conversationID, func(c *store.Conversation) {
		c.SetMessageStatus(messageID, store.MessageStatusFailed)
	})
	p.logger.Error("failed to send message",
		"conversation_id", conversationID, "message_id", messageID, "error", err)
}

// restoreMessages rebuilds a history that was replaced by a bare summary while
// a send was in flight: the snapshot taken at the optimistic append, followed
// by any messages in current that the snapshot does not have.
func restoreMessages(snapshot, current []*store.ChatMessage) []*store.ChatMessage {
	out := make([]*store.ChatMessage, 0, len(snapshot)+len(current))
	seen := make(map[string]struct{}, len(snapshot))
	for _, m := range snapshot {
		seen[m.ID] = struct{}{}
		out = append(out, m.Clone())
	}
	for _, m := range current {
		if _, ok := seen[m.ID]; !ok {
			out = append(out, m)
		}
	}
	return out
}
