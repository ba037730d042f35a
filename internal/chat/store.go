// internal/chat/store.go
// MessageStore: the canonical message sequence and pagination state for the
// active conversation. All merge operations are total, preserve ascending
// order and id uniqueness, and never panic.

package chat

import (
	"sort"
	"sync"
)

// MergeMode selects how a fetched page folds into the sequence.
type MergeMode string

const (
	// MergeReplace starts a conversation fresh from its most recent page.
	MergeReplace MergeMode = "replace"
	// MergePrepend unions an older page in front of the loaded sequence.
	MergePrepend MergeMode = "prepend"
)

// OrderPolicy decides where realtime messages land in the sequence.
type OrderPolicy int

const (
	// OrderArrival appends pushed messages in transport arrival order. This
	// trusts the broker to deliver a conversation's messages in send order.
	OrderArrival OrderPolicy = iota
	// OrderTimestamp inserts pushed messages by SentAt with a stable
	// tie-break, for transports that may replay out of order on reconnect.
	OrderTimestamp
)

// Store holds the message sequence and pagination state for the currently
// active conversation, plus a latest-message side channel for pushes that
// target other conversations. Safe for concurrent use.
type Store struct {
	mu         sync.Mutex
	policy     OrderPolicy
	chatID     string
	messages   []Message
	ids        map[string]struct{}
	pagination Pagination
	latest     *Message

	obsMu     sync.Mutex
	observers map[int]func()
	nextObs   int
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithOrderPolicy overrides the default arrival-order append policy.
func WithOrderPolicy(p OrderPolicy) StoreOption {
	return func(s *Store) { s.policy = p }
}

// NewStore returns an empty store with no active conversation.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		ids:       make(map[string]struct{}),
		observers: make(map[int]func()),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe registers a change callback and returns its unsubscribe func.
// Callbacks run synchronously after each mutation, outside the store lock.
func (s *Store) Subscribe(fn func()) func() {
	s.obsMu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.obsMu.Unlock()
	return func() {
		s.obsMu.Lock()
		delete(s.observers, id)
		s.obsMu.Unlock()
	}
}

func (s *Store) notify() {
	s.obsMu.Lock()
	fns := make([]func(), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.obsMu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// ResetForChat clears the sequence and pagination state and makes chatID the
// active conversation. Called on every conversation switch.
func (s *Store) ResetForChat(chatID string) {
	s.mu.Lock()
	s.chatID = chatID
	s.messages = nil
	s.ids = make(map[string]struct{})
	s.pagination = Pagination{ChatID: chatID}
	s.latest = nil
	s.mu.Unlock()
	s.notify()
}

// ApplyPageResult merges a fetched page into the sequence. The page's data is
// newest-first as served and is reversed to oldest-first before merging.
// Results for a conversation that is no longer active are dropped; the return
// value reports whether the page was applied.
func (s *Store) ApplyPageResult(chatID string, page PageResult, mode MergeMode) bool {
	s.mu.Lock()
	if chatID == "" || chatID != s.chatID {
		s.mu.Unlock()
		staleResultsTotal.Inc()
		return false
	}

	incoming := reverseCopy(page.Data)

	switch mode {
	case MergePrepend:
		// Older page goes in front; drop anything already loaded.
		merged := make([]Message, 0, len(incoming)+len(s.messages))
		for _, m := range incoming {
			if _, ok := s.ids[m.ID]; ok {
				continue
			}
			merged = append(merged, m)
		}
		s.messages = append(merged, s.messages...)
	default:
		// Replace: the incoming page wins, but realtime arrivals that
		// predate the fetch are kept in front, deduplicated by id.
		incomingIDs := make(map[string]struct{}, len(incoming))
		for _, m := range incoming {
			incomingIDs[m.ID] = struct{}{}
		}
		merged := make([]Message, 0, len(incoming)+len(s.messages))
		for _, m := range s.messages {
			if _, ok := incomingIDs[m.ID]; ok {
				continue
			}
			merged = append(merged, m)
		}
		s.messages = append(merged, incoming...)
	}

	s.ids = make(map[string]struct{}, len(s.messages))
	for _, m := range s.messages {
		s.ids[m.ID] = struct{}{}
	}

	s.pagination = Pagination{
		ChatID:            chatID,
		HighestPageLoaded: max(s.pagination.HighestPageLoaded, page.CurrentPage),
		TotalPages:        page.TotalPages,
		PageSize:          page.PageSize,
		TotalElements:     page.TotalElements,
	}
	s.mu.Unlock()

	pagesFetchedTotal.WithLabelValues(string(mode)).Inc()
	s.notify()
	return true
}

// ApplyRealtimeMessage folds a pushed message into the store. For the active
// conversation the message is appended (or inserted by timestamp, depending
// on the order policy); for any other conversation only the latest-message
// side channel is updated. Idempotent by message id: redelivery is a no-op on
// the sequence. Returns whether the sequence changed.
func (s *Store) ApplyRealtimeMessage(msg Message) bool {
	s.mu.Lock()
	latest := msg
	s.latest = &latest

	if msg.ChatID != s.chatID || s.chatID == "" {
		s.mu.Unlock()
		s.notify()
		return false
	}
	if _, ok := s.ids[msg.ID]; ok {
		s.mu.Unlock()
		s.notify()
		return false
	}

	if s.policy == OrderTimestamp {
		// First index whose timestamp is strictly later; equal timestamps
		// keep arrival order.
		i := sort.Search(len(s.messages), func(i int) bool {
			return s.messages[i].SentAt.After(msg.SentAt)
		})
		s.messages = append(s.messages, Message{})
		copy(s.messages[i+1:], s.messages[i:])
		s.messages[i] = msg
	} else {
		s.messages = append(s.messages, msg)
	}
	s.ids[msg.ID] = struct{}{}
	s.mu.Unlock()
	s.notify()
	return true
}

// ApplyDeletion removes the message with the given id from the sequence.
// No-op when the id is not loaded.
func (s *Store) ApplyDeletion(messageID string) bool {
	s.mu.Lock()
	if _, ok := s.ids[messageID]; !ok {
		s.mu.Unlock()
		return false
	}
	for i := range s.messages {
		if s.messages[i].ID == messageID {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			break
		}
	}
	delete(s.ids, messageID)
	s.mu.Unlock()
	s.notify()
	return true
}

// ActiveChat returns the currently active conversation id, "" when none.
func (s *Store) ActiveChat() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chatID
}

// Messages returns a copy of the current sequence, oldest first.
func (s *Store) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Pagination returns the current pagination state.
func (s *Store) Pagination() Pagination {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pagination
}

// Latest returns the most recently pushed message across all conversations,
// nil when none has arrived since the last reset.
func (s *Store) Latest() *Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil {
		return nil
	}
	cp := *s.latest
	return &cp
}

// Contains reports whether the message id is loaded in the sequence.
func (s *Store) Contains(messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[messageID]
	return ok
}

func reverseCopy(in []Message) []Message {
	out := make([]Message, len(in))
	for i, m := range in {
		out[len(in)-1-i] = m
	}
	return out
}
