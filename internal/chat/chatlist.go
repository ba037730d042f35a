// internal/chat/chatlist.go
// ChatList: the sidebar's view of every conversation, with last-message
// previews, most-recent-first ordering and client-local unread counters.

package chat

import (
	"sort"
	"strings"
	"sync"
)

// ChatList holds the user's conversations in display order together with
// their unread counters. Safe for concurrent use.
type ChatList struct {
	mu     sync.Mutex
	chats  []Chat
	unread map[string]int64
}

// NewChatList returns an empty chat list.
func NewChatList() *ChatList {
	return &ChatList{unread: make(map[string]int64)}
}

// Replace swaps in a freshly fetched chat list and resorts it. Unread
// counters survive the swap; counters for chats that vanished are dropped.
func (l *ChatList) Replace(chats []Chat) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.chats = make([]Chat, len(chats))
	copy(l.chats, chats)
	sortByLatest(l.chats)

	keep := make(map[string]int64, len(l.chats))
	for _, c := range l.chats {
		if n, ok := l.unread[c.ID]; ok {
			keep[c.ID] = n
		}
	}
	l.unread = keep
}

// UpdateLastMessage sets a chat's last message and moves it into its new
// sorted position. Unknown chat ids are ignored; a full list refresh picks
// those up.
func (l *ChatList) UpdateLastMessage(chatID string, msg Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.chats {
		if l.chats[i].ID == chatID {
			m := msg
			l.chats[i].LastMessage = &m
			sortByLatest(l.chats)
			return
		}
	}
}

// Chats returns a copy of the conversations in display order.
func (l *ChatList) Chats() []Chat {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Chat, len(l.chats))
	copy(out, l.chats)
	return out
}

// Get returns the chat with the given id.
func (l *ChatList) Get(chatID string) (Chat, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.chats {
		if l.chats[i].ID == chatID {
			return l.chats[i], true
		}
	}
	return Chat{}, false
}

// Filter returns the chats whose title matches the keyword, case folded.
// An empty keyword returns everything.
func (l *ChatList) Filter(keyword, selfID string) []Chat {
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	chats := l.Chats()
	if keyword == "" {
		return chats
	}
	out := chats[:0]
	for _, c := range chats {
		if strings.Contains(strings.ToLower(c.Title(selfID)), keyword) {
			out = append(out, c)
		}
	}
	return out
}

// IncrementUnread bumps the local unread counter for a chat and returns the
// new value.
func (l *ChatList) IncrementUnread(chatID string) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.unread[chatID]++
	unreadIncrementsTotal.Inc()
	return l.unread[chatID]
}

// SetUnread overwrites a chat's counter with the server's authoritative
// value.
func (l *ChatList) SetUnread(chatID string, count int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if count <= 0 {
		delete(l.unread, chatID)
		return
	}
	l.unread[chatID] = count
}

// ResetUnread zeroes a chat's counter, typically after marking it read.
func (l *ChatList) ResetUnread(chatID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.unread, chatID)
}

// Unread returns the counter for one chat.
func (l *ChatList) Unread(chatID string) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.unread[chatID]
}

// TotalUnread sums the counters across all chats.
func (l *ChatList) TotalUnread() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	var total int64
	for _, n := range l.unread {
		total += n
	}
	return total
}

// sortByLatest orders chats most-recent-message first. Chats without any
// message sink to the bottom; ties keep their relative order.
func sortByLatest(chats []Chat) {
	sort.SliceStable(chats, func(i, j int) bool {
		a, b := chats[i].LastMessage, chats[j].LastMessage
		if a == nil {
			return false
		}
		if b == nil {
			return true
		}
		return a.SentAt.After(b.SentAt)
	})
}
