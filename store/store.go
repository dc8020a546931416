package store

import (
	"sync"
)

// Store is the in-memory client view of the user's conversations.
//
// The list is ordered most-recently-touched first, except for pages appended by
// pagination which keep the backend order at the tail. The current conversation
// is a reference into the list, so the two can never diverge.
// All getters return deep copies.
type Store struct {
	conversations []*Conversation
	currentID     string
	onChange      func()

	mu sync.RWMutex
}

// New creates an empty Store.
func New() *Store {
	return &Store{}
}

// SetOnChange registers fn to be called after every mutation.
// fn runs outside the store lock and may read from the store.
func (s *Store) SetOnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Upsert inserts c or replaces the entry with the same id, and moves it to the front.
func (s *Store) Upsert(c *Conversation) {
	if c == nil {
		return
	}
	s.mu.Lock()
	s.removeLocked(c.ID)
	s.pushFrontLocked(c.Clone())
	s.mu.Unlock()
	s.changed()
}

// Replace swaps the entry with the same id in place without reordering.
// It returns false if no such entry exists.
func (s *Store) Replace(c *Conversation) bool {
	if c == nil {
		return false
	}
	s.mu.Lock()
	idx := s.indexLocked(c.ID)
	if idx >= 0 {
		s.conversations[idx] = c.Clone()
	}
	s.mu.Unlock()
	if idx < 0 {
		return false
	}
	s.changed()
	return true
}

// RemoveByID evicts the conversation with the given id.
// Removing the current conversation clears current.
func (s *Store) RemoveByID(id string) bool {
	s.mu.Lock()
	removed := s.removeLocked(id)
	if removed && s.currentID == id {
		s.currentID = ""
	}
	s.mu.Unlock()
	if removed {
		s.changed()
	}
	return removed
}

// ReplaceAll drops every known conversation and installs list in order.
// An entry of list without messages keeps the messages already loaded for
// its id. Current is cleared unless it is part of list.
func (s *Store) ReplaceAll(list []*Conversation) {
	s.mu.Lock()
	loaded := make(map[string][]*ChatMessage)
	for _, c := range s.conversations {
		if c.HasMessages() {
			loaded[c.ID] = c.Messages
		}
	}
	s.conversations = make([]*Conversation, 0, len(list))
	seen := make(map[string]struct{}, len(list))
	for _, c := range list {
		if c == nil {
			continue
		}
		if _, ok := seen[c.ID]; ok {
			continue
		}
		seen[c.ID] = struct{}{}
		nc := c.Clone()
		if msgs, ok := loaded[c.ID]; ok && !nc.HasMessages() {
			nc.Messages = msgs
		}
		s.conversations = append(s.conversations, nc)
	}
	if _, ok := seen[s.currentID]; !ok {
		s.currentID = ""
	}
	s.mu.Unlock()
	s.changed()
}

// Append adds conversations at the end of the list, keeping their order.
// Ids already present are skipped. It returns the number of entries added.
func (s *Store) Append(list []*Conversation) int {
	s.mu.Lock()
	added := 0
	for _, c := range list {
		if c == nil || s.indexLocked(c.ID) >= 0 {
			continue
		}
		s.conversations = append(s.conversations, c.Clone())
		added++
	}
	s.mu.Unlock()
	if added > 0 {
		s.changed()
	}
	return added
}

// Get returns a copy of the conversation with the given id.
func (s *Store) Get(id string) (*Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.indexLocked(id)
	if idx < 0 {
		return nil, false
	}
	return s.conversations[idx].Clone(), true
}

// List returns copies of all conversations in order.
func (s *Store) List() []*Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Conversation, len(s.conversations))
	for i, c := range s.conversations {
		out[i] = c.Clone()
	}
	return out
}

// Len returns the number of known conversations.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conversations)
}

// Current returns a copy of the current conversation, or nil.
func (s *Store) Current() *Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.currentID == "" {
		return nil
	}
	idx := s.indexLocked(s.currentID)
	if idx < 0 {
		return nil
	}
	return s.conversations[idx].Clone()
}

// CurrentID returns the id of the current conversation, or "".
func (s *Store) CurrentID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentID
}

// SetCurrent makes c the current conversation; nil clears it.
// A conversation that is not in the list yet is inserted at the front.
func (s *Store) SetCurrent(c *Conversation) {
	s.mu.Lock()
	if c == nil {
		s.currentID = ""
	} else {
		if s.indexLocked(c.ID) < 0 {
			s.pushFrontLocked(c.Clone())
		}
		s.currentID = c.ID
	}
	s.mu.Unlock()
	s.changed()
}

// Touch applies fn to the stored conversation and moves it to the front.
// fn sees the latest state, so concurrent writers never overwrite each other.
func (s *Store) Touch(id string, fn func(c *Conversation)) (*Conversation, bool) {
	return s.mutate(id, true, fn)
}

// Modify applies fn to the stored conversation in place, keeping its position.
func (s *Store) Modify(id string, fn func(c *Conversation)) (*Conversation, bool) {
	return s.mutate(id, false, fn)
}

// AppendToCurrent appends msg to the current conversation and moves it to the front.
// Without a current conversation, create builds one that is inserted and made current.
// Both branches run under one lock, so concurrent senders always see each other's writes.
func (s *Store) AppendToCurrent(msg *ChatMessage, create func() *Conversation) (c *Conversation, created bool) {
	s.mu.Lock()
	idx := -1
	if s.currentID != "" {
		idx = s.indexLocked(s.currentID)
	}
	if idx >= 0 {
		cur := s.conversations[idx]
		cur.Append(msg.Timestamp, msg.Clone())
		if idx > 0 {
			copy(s.conversations[1:idx+1], s.conversations[:idx])
			s.conversations[0] = cur
		}
		c = cur.Clone()
	} else {
		nc := create()
		s.removeLocked(nc.ID)
		s.pushFrontLocked(nc.Clone())
		s.currentID = nc.ID
		c, created = nc.Clone(), true
	}
	s.mu.Unlock()
	s.changed()
	return c, created
}

// Reconcile replaces the entry stored under oldID with the conversation built by fn.
// fn receives a copy of the latest entry for oldID (nil if it is gone) and returns
// the canonical conversation. The result is placed at the front, oldID is evicted,
// and current follows the entry if it pointed at oldID.
func (s *Store) Reconcile(oldID string, fn func(latest *Conversation) *Conversation) *Conversation {
	s.mu.Lock()
	var latest *Conversation
	if idx := s.indexLocked(oldID); idx >= 0 {
		latest = s.conversations[idx].Clone()
	}
	final := fn(latest)
	if final == nil {
		s.mu.Unlock()
		return nil
	}
	wasCurrent := s.currentID == oldID || s.currentID == final.ID
	s.removeLocked(oldID)
	s.removeLocked(final.ID)
	s.pushFrontLocked(final.Clone())
	if wasCurrent {
		s.currentID = final.ID
	}
	s.mu.Unlock()
	s.changed()
	return final.Clone()
}

// Reset forgets all conversations and the current selection.
func (s *Store) Reset() {
	s.mu.Lock()
	s.conversations = nil
	s.currentID = ""
	s.mu.Unlock()
	s.changed()
}

func (s *Store) mutate(id string, promote bool, fn func(c *Conversation)) (*Conversation, bool) {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return nil, false
	}
	c := s.conversations[idx]
	fn(c)
	if promote && idx > 0 {
		copy(s.conversations[1:idx+1], s.conversations[:idx])
		s.conversations[0] = c
	}
	out := c.Clone()
	s.mu.Unlock()
	s.changed()
	return out, true
}

func (s *Store) indexLocked(id string) int {
	for i, c := range s.conversations {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) removeLocked(id string) bool {
	idx := s.indexLocked(id)
	if idx < 0 {
		return false
	}
	s.conversations = append(s.conversations[:idx], s.conversations[idx+1:]...)
	return true
}

func (s *Store) pushFrontLocked(c *Conversation) {
	s.conversations = append(s.conversations, nil)
	copy(s.conversations[1:], s.conversations)
	s.conversations[0] = c
}

func (s *Store) changed() {
	s.mu.RLock()
	fn := s.onChange
	s.mu.RUnlock()
	if fn != nil {
		fn()
	}
}
