// internal/chat/presence.go
// PresenceStore: last-known online/offline state per user. Seeded from the
// online-users snapshot at startup, then kept current by single-user upserts
// from the presence topic. Entries are never expired locally; the server is
// the authority on who is online.

package chat

import (
	"sort"
	"sync"
)

// PresenceStore holds per-user presence. Safe for concurrent use.
type PresenceStore struct {
	mu    sync.Mutex
	users map[string]PresenceEvent
}

// NewPresenceStore returns an empty presence store.
func NewPresenceStore() *PresenceStore {
	return &PresenceStore{users: make(map[string]PresenceEvent)}
}

// ApplySnapshot seeds presence from the online-users map: user id to
// last-seen epoch millis. Every user in the snapshot is online; users
// already tracked but absent from it are left untouched.
func (p *PresenceStore) ApplySnapshot(lastSeen map[string]int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, seen := range lastSeen {
		p.users[id] = PresenceEvent{UserID: id, Online: true, LastSeen: seen}
	}
}

// Upsert applies a single presence change.
func (p *PresenceStore) Upsert(ev PresenceEvent) {
	realtimeEventsTotal.WithLabelValues(string(KindPresenceChanged)).Inc()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.users[ev.UserID] = ev
}

// Get returns the tracked presence for a user; ok is false when the user
// has never been seen.
func (p *PresenceStore) Get(userID string) (PresenceEvent, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ev, ok := p.users[userID]
	return ev, ok
}

// IsOnline reports whether the user is currently marked online.
func (p *PresenceStore) IsOnline(userID string) bool {
	ev, ok := p.Get(userID)
	return ok && ev.Online
}

// Online returns the ids of all users currently online, sorted.
func (p *PresenceStore) Online() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]string, 0, len(p.users))
	for id, ev := range p.users {
		if ev.Online {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
