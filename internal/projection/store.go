// Package projection maintains the memory-resident view of known
// conversations plus bounded history buffers of recent canonical
// messages and receipts. Everything here is rebuilt from transport
// snapshots after a restart; nothing is persisted.
package projection

import (
	"strings"
	"sync"
)

// Capacities of the history buffers.
const (
	MessageHistorySize = 100
	ReceiptHistorySize = 200
)

// ChatKind distinguishes 1:1 conversations from groups.
type ChatKind string

const (
	KindDirect ChatKind = "direct"
	KindGroup  ChatKind = "group"
)

const groupServer = "g.us"

// KindOf infers the conversation kind from its JID.
func KindOf(jid string) ChatKind {
	if strings.HasSuffix(jid, "@"+groupServer) {
		return KindGroup
	}
	return KindDirect
}

// Chat is the derived summary of one conversation.
type Chat struct {
	JID           string   `json:"jid"`
	Kind          ChatKind `json:"kind"`
	Name          *string  `json:"name"`
	UnreadCount   int      `json:"unreadCount"`
	Archived      bool     `json:"archived"`
	Muted         bool     `json:"muted"`
	LastMessage   *string  `json:"lastMessage"`
	LastTimestamp *int64   `json:"lastTimestamp"`
}

// SnapshotEntry is one conversation summary from a bulk transport
// snapshot. The snapshot vocabulary does not include message bodies,
// so last-message fields are absent here on purpose.
type SnapshotEntry struct {
	JID         string
	Name        *string
	UnreadCount int
	Archived    bool
	Muted       bool
}

// Store is the chat projection, keyed by conversation JID. Entries are
// created on first sight and mutated in place; they are never removed.
type Store struct {
	mu    sync.RWMutex
	chats map[string]*Chat
}

// NewStore creates an empty projection store.
func NewStore() *Store {
	return &Store{chats: make(map[string]*Chat)}
}

// ApplySnapshot inserts or updates the metadata fields each entry
// supplies. Last-message fields are left untouched: the snapshot does
// not speak about message content.
func (s *Store) ApplySnapshot(entries []SnapshotEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		c, ok := s.chats[e.JID]
		if !ok {
			c = &Chat{JID: e.JID, Kind: KindOf(e.JID)}
			s.chats[e.JID] = c
		}
		c.Name = e.Name
		c.UnreadCount = e.UnreadCount
		c.Archived = e.Archived
		c.Muted = e.Muted
	}
}

// ApplyMessage records the latest message text and timestamp for a
// conversation, creating a default entry if the conversation is
// unknown. Updates older than the recorded last timestamp are ignored
// so out-of-order delivery cannot regress the displayed last message.
// Reports whether the update was applied.
func (s *Store) ApplyMessage(jid, body string, ts int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[jid]
	if !ok {
		c = &Chat{JID: jid, Kind: KindOf(jid)}
		s.chats[jid] = c
	}
	if c.LastTimestamp != nil && ts < *c.LastTimestamp {
		return false
	}
	c.LastMessage = &body
	c.LastTimestamp = &ts
	return true
}

// List returns a point-in-time copy of all projections. Order is not
// significant.
func (s *Store) List() []Chat {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Chat, 0, len(s.chats))
	for _, c := range s.chats {
		out = append(out, *c)
	}
	return out
}

// Get returns a copy of the projection for jid, if known.
func (s *Store) Get(jid string) (Chat, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chats[jid]
	if !ok {
		return Chat{}, false
	}
	return *c, true
}

// Len returns the number of known conversations.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chats)
}
