package chat

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/hrygo/supervaani/store"
)

// lane serializes backend round trips for one conversation. A lane opened
// under a temporary id keeps serving the conversation after the backend
// assigns its real id, so queued sends reuse that id instead of starting a
// second backend conversation.
type lane struct {
	// sem admits one round trip at a time; waiters are served in arrival order.
	sem  *semaphore.Weighted
	keys []string
	// storeID is the id the conversation is currently stored under.
	storeID string
	// serverID is the backend id, empty until the first reply for a new conversation.
	serverID string
	refs     int
}

type lanes struct {
	mu   sync.Mutex
	byID map[string]*lane
	// aliases maps a reconciled temporary id to its real id. Entries outlive
	// their lane so late arrivals holding the temporary id still find the real one.
	aliases map[string]string
}

func newLanes() *lanes {
	return &lanes{
		byID:    make(map[string]*lane),
		aliases: make(map[string]string),
	}
}

// acquire blocks until the caller owns the lane for id, returning the ids to use.
func (ls *lanes) acquire(ctx context.Context, id string) (l *lane, storeID, serverID string, err error) {
	ls.mu.Lock()
	key := id
	if real, ok := ls.aliases[id]; ok {
		key = real
	}
	l = ls.byID[key]
	if l == nil {
		l = &lane{sem: semaphore.NewWeighted(1), keys: []string{key}, storeID: key}
		if !store.IsTemporaryID(key) {
			l.serverID = key
		}
		ls.byID[key] = l
	}
	l.refs++
	ls.mu.Unlock()

	if err := l.sem.Acquire(ctx, 1); err != nil {
		ls.drop(l)
		return nil, "", "", err
	}

	ls.mu.Lock()
	storeID, serverID = l.storeID, l.serverID
	ls.mu.Unlock()
	return l, storeID, serverID, nil
}

// reconciled records that the conversation now lives under realID.
func (ls *lanes) reconciled(l *lane, realID string) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if l.storeID != realID {
		ls.aliases[l.storeID] = realID
		if _, ok := ls.byID[realID]; !ok {
			ls.byID[realID] = l
			l.keys = append(l.keys, realID)
		}
	}
	l.storeID = realID
	l.serverID = realID
}

func (ls *lanes) release(l *lane) {
	l.sem.Release(1)
	ls.drop(l)
}

func (ls *lanes) drop(l *lane) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	l.refs--
	if l.refs > 0 {
		return
	}
	for _, k := range l.keys {
		if ls.byID[k] == l {
			delete(ls.byID, k)
		}
	}
}

// resolve returns the id the conversation known as id is stored under now.
func (ls *lanes) resolve(id string) string {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if real, ok := ls.aliases[id]; ok {
		return real
	}
	return id
}

func (ls *lanes) reset() {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.aliases = make(map[string]string)
}
