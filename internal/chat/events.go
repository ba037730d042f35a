// internal/chat/events.go
// Typed realtime events decoded and validated at the transport boundary.
// Each topic carries a closed set of variants; anything that fails to decode
// is dropped by the caller without touching the stores.

package chat

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Global validator instance
var validate = validator.New()

// EventKind tags the decoded realtime event variants.
type EventKind string

const (
	KindMessageCreated  EventKind = "message_created"
	KindMessageDeleted  EventKind = "message_deleted"
	KindTypingChanged   EventKind = "typing_changed"
	KindPresenceChanged EventKind = "presence_changed"
	KindUnreadChanged   EventKind = "unread_changed"
)

// Event is any decoded realtime event.
type Event interface {
	Kind() EventKind
}

// MessageCreated wraps a full message pushed on a chat topic.
type MessageCreated struct {
	Message Message
}

func (MessageCreated) Kind() EventKind { return KindMessageCreated }

// MessageDeleted is a tombstone pushed on a chat topic.
type MessageDeleted struct {
	ChatID    string `json:"chatId" validate:"required"`
	MessageID string `json:"deletedId" validate:"required"`
}

func (MessageDeleted) Kind() EventKind { return KindMessageDeleted }

// TypingEvent reports one user starting or stopping typing in a chat.
type TypingEvent struct {
	ChatID      string `json:"chatId" validate:"required"`
	UserID      string `json:"userId" validate:"required"`
	DisplayName string `json:"displayName"`
	Typing      bool   `json:"typing"`
}

func (TypingEvent) Kind() EventKind { return KindTypingChanged }

// PresenceEvent is a single-user presence upsert. LastSeen is epoch millis,
// matching the server's presence payload.
type PresenceEvent struct {
	UserID      string `json:"userId" validate:"required"`
	DisplayName string `json:"displayName"`
	Online      bool   `json:"online"`
	LastSeen    int64  `json:"lastSeen"`
}

func (PresenceEvent) Kind() EventKind { return KindPresenceChanged }

// LastSeenTime converts the epoch-millis timestamp; zero when never seen.
func (e PresenceEvent) LastSeenTime() time.Time {
	if e.LastSeen == 0 {
		return time.Time{}
	}
	return time.UnixMilli(e.LastSeen)
}

// UnreadEvent is the server's authoritative unread count for one chat.
type UnreadEvent struct {
	ChatID      string `json:"chatId" validate:"required"`
	UnreadCount int64  `json:"unreadCount" validate:"gte=0"`
}

func (UnreadEvent) Kind() EventKind { return KindUnreadChanged }

// DecodeChatEvent decodes a chat topic payload into either a MessageCreated
// or a MessageDeleted. Deletions are identified by the deletedId field; every
// other payload must be a valid full message.
func DecodeChatEvent(data []byte) (Event, error) {
	var probe struct {
		DeletedID string `json:"deletedId"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		malformedEventsTotal.Inc()
		return nil, fmt.Errorf("decode chat event: %w", err)
	}
	if probe.DeletedID != "" {
		var ev MessageDeleted
		if err := json.Unmarshal(data, &ev); err != nil {
			malformedEventsTotal.Inc()
			return nil, fmt.Errorf("decode delete event: %w", err)
		}
		if err := validate.Struct(ev); err != nil {
			malformedEventsTotal.Inc()
			return nil, fmt.Errorf("invalid delete event: %w", err)
		}
		return ev, nil
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		malformedEventsTotal.Inc()
		return nil, fmt.Errorf("decode message event: %w", err)
	}
	if err := msg.Validate(); err != nil {
		malformedEventsTotal.Inc()
		return nil, fmt.Errorf("invalid message event: %w", err)
	}
	return MessageCreated{Message: msg}, nil
}

// DecodeTypingEvent decodes a typing topic payload.
func DecodeTypingEvent(data []byte) (TypingEvent, error) {
	var ev TypingEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		malformedEventsTotal.Inc()
		return ev, fmt.Errorf("decode typing event: %w", err)
	}
	if err := validate.Struct(ev); err != nil {
		malformedEventsTotal.Inc()
		return ev, fmt.Errorf("invalid typing event: %w", err)
	}
	return ev, nil
}

// DecodePresenceEvent decodes a presence topic payload.
func DecodePresenceEvent(data []byte) (PresenceEvent, error) {
	var ev PresenceEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		malformedEventsTotal.Inc()
		return ev, fmt.Errorf("decode presence event: %w", err)
	}
	if err := validate.Struct(ev); err != nil {
		malformedEventsTotal.Inc()
		return ev, fmt.Errorf("invalid presence event: %w", err)
	}
	return ev, nil
}

// DecodeUnreadEvent decodes an unread queue payload.
func DecodeUnreadEvent(data []byte) (UnreadEvent, error) {
	var ev UnreadEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		malformedEventsTotal.Inc()
		return ev, fmt.Errorf("decode unread event: %w", err)
	}
	if err := validate.Struct(ev); err != nil {
		malformedEventsTotal.Inc()
		return ev, fmt.Errorf("invalid unread event: %w", err)
	}
	return ev, nil
}
