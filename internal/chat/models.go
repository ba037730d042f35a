// internal/chat/models.go

package chat

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// MessageType mirrors the server-side message type enum.
type MessageType string

const (
	TypeText    MessageType = "TEXT"
	TypeImage   MessageType = "IMAGE"
	TypeVideo   MessageType = "VIDEO"
	TypeAudio   MessageType = "AUDIO"
	TypeFile    MessageType = "FILE"
	TypeLink    MessageType = "LINK"
	TypeSticker MessageType = "STICKER"
)

var (
	ErrEmptyMessage = errors.New("message has neither content nor attachments")
	ErrNoMessageID  = errors.New("message id is missing")
	ErrNoChatID     = errors.New("chat id is missing")
)

// UserInfo is the sender/member projection the server embeds in responses.
type UserInfo struct {
	ID             string `json:"id"`
	FullName       string `json:"fullName"`
	Email          string `json:"email,omitempty"`
	ProfilePicture string `json:"profilePicture,omitempty"`
}

// Attachment describes one uploaded file hanging off a message. The upload
// itself happens against the asset host before the message is sent; the chat
// core only ever sees the resulting descriptor.
type Attachment struct {
	ID         string `json:"id"`
	URL        string `json:"url"`
	FileName   string `json:"fileName"`
	MimeType   string `json:"mimeType"`
	Size       int64  `json:"size"`
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
	DurationMs int64  `json:"durationMs,omitempty"`
}

// Message is a single chat message as delivered by page fetches and realtime
// pushes. IDs are assigned by the server; the client never invents one for a
// persisted message.
type Message struct {
	ID          string                 `json:"id"`
	ChatID      string                 `json:"chatId"`
	Sender      *UserInfo              `json:"sender,omitempty"`
	Type        MessageType            `json:"type"`
	Content     string                 `json:"content,omitempty"`
	Attachments []Attachment           `json:"attachments,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	SentAt      time.Time              `json:"timeStamp"`
}

// SenderID returns the sender's user id, or "" when the sender is absent.
func (m *Message) SenderID() string {
	if m.Sender == nil {
		return ""
	}
	return m.Sender.ID
}

// Validate enforces the wire invariants: server-assigned ids and at least one
// of content or attachments. A sticker carries its emoji as textual content,
// so it falls under the content check.
func (m *Message) Validate() error {
	if m.ID == "" {
		return ErrNoMessageID
	}
	if m.ChatID == "" {
		return ErrNoChatID
	}
	if strings.TrimSpace(m.Content) == "" && len(m.Attachments) == 0 {
		return ErrEmptyMessage
	}
	return nil
}

// Chat is one conversation from the user's chat list.
type Chat struct {
	ID          string     `json:"id"`
	ChatName    string     `json:"chatName,omitempty"`
	Group       bool       `json:"group"`
	Users       []UserInfo `json:"users,omitempty"`
	CreatedBy   *UserInfo  `json:"createdBy,omitempty"`
	LastMessage *Message   `json:"lastMessage,omitempty"`
}

// IsGroup reports whether the chat is a group conversation. Some older chats
// miss the flag, so more than two members also counts.
func (c *Chat) IsGroup() bool {
	return c.Group || len(c.Users) > 2
}

// Partner returns the other member of a one-to-one chat, nil for groups.
func (c *Chat) Partner(selfID string) *UserInfo {
	if c.IsGroup() {
		return nil
	}
	for i := range c.Users {
		if c.Users[i].ID != selfID {
			return &c.Users[i]
		}
	}
	return nil
}

// Title resolves the display name: the group name, or the partner's name.
func (c *Chat) Title(selfID string) string {
	if c.IsGroup() {
		if c.ChatName != "" {
			return c.ChatName
		}
		return "Group Chat"
	}
	if p := c.Partner(selfID); p != nil {
		return p.FullName
	}
	return c.ChatName
}

// Pagination tracks how much of a conversation's history is loaded. Pages are
// 1-indexed and page 1 is the most recent page.
type Pagination struct {
	ChatID            string
	HighestPageLoaded int
	TotalPages        int
	PageSize          int
	TotalElements     int64
}

// PageResult is the server's paged message response. Data is newest-first
// within the page; the store reverses it before merging.
type PageResult struct {
	Data          []Message `json:"data"`
	CurrentPage   int       `json:"currentPage"`
	TotalPages    int       `json:"totalPages"`
	PageSize      int       `json:"pageSize"`
	TotalElements int64     `json:"totalElements"`
}

// SendMessageRequest is the payload published to the message channel.
type SendMessageRequest struct {
	ChatID      string                 `json:"chatId" validate:"required"`
	SenderID    string                 `json:"senderId" validate:"required"`
	Type        MessageType            `json:"type" validate:"required"`
	Content     string                 `json:"content,omitempty"`
	Attachments []Attachment           `json:"attachments"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// PreviewText renders the one-line chat list preview for a message, in the
// style of the sidebar: "You: hello" or "Anna sent 3 photos".
func PreviewText(m *Message, selfID string) string {
	if m == nil {
		return "Send the first message!"
	}
	sender := "Someone"
	if m.Sender != nil {
		if m.Sender.ID == selfID {
			sender = "You"
		} else if m.Sender.FullName != "" {
			sender = m.Sender.FullName
		}
	}
	if trimmed := strings.TrimSpace(m.Content); trimmed != "" && m.Type != TypeSticker {
		return sender + ": " + truncate(trimmed, 70)
	}

	count := func(prefix string) int {
		n := 0
		for _, att := range m.Attachments {
			if strings.HasPrefix(att.MimeType, prefix) {
				n++
			}
		}
		return n
	}

	switch m.Type {
	case TypeImage:
		return fmt.Sprintf("%s sent %s", sender, plural(max(count("image/"), 1), "photo", "photos"))
	case TypeVideo:
		return fmt.Sprintf("%s sent %s", sender, plural(max(count("video/"), 1), "video", "videos"))
	case TypeAudio:
		return sender + " sent a voice message"
	case TypeFile:
		return fmt.Sprintf("%s sent %s", sender, plural(max(len(m.Attachments), 1), "file", "files"))
	case TypeSticker:
		if m.Content != "" {
			return sender + " sent " + m.Content
		}
		return sender + " sent a sticker"
	case TypeLink:
		return sender + " shared a link"
	}
	if len(m.Attachments) > 0 {
		return fmt.Sprintf("%s sent %s", sender, plural(len(m.Attachments), "attachment", "attachments"))
	}
	return sender + " sent a message"
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "…"
}

func plural(n int, singular, pluralForm string) string {
	if n == 1 {
		return "a " + singular
	}
	return fmt.Sprintf("%d %s", n, pluralForm)
}
