// internal/chat/ingest.go
// Ingest: routes decoded realtime events into the stores and fires the
// side effects the conversation view expects — mark-as-read for the active
// chat, unread counters for the rest, and the chat list resort either way.

package chat

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const markReadTimeout = 10 * time.Second

// ReadMarker acknowledges a conversation as read up to a message.
type ReadMarker interface {
	MarkRead(ctx context.Context, chatID, lastMessageID string) error
}

// Ingest applies realtime events. One instance serves the whole session.
type Ingest struct {
	store  *Store
	chats  *ChatList
	marker ReadMarker
	log    zerolog.Logger
	selfID string

	mu         sync.Mutex
	lastMarked map[string]string
	wg         sync.WaitGroup
}

// NewIngest wires the event sink to the stores. selfID is the signed-in
// user, used to tell own messages apart from everyone else's.
func NewIngest(store *Store, chats *ChatList, marker ReadMarker, log zerolog.Logger, selfID string) *Ingest {
	return &Ingest{
		store:      store,
		chats:      chats,
		marker:     marker,
		log:        log.With().Str("component", "ingest").Logger(),
		selfID:     selfID,
		lastMarked: make(map[string]string),
	}
}

// OnMessage handles a pushed message. For the active conversation it lands
// in the store and the chat is acknowledged read; for any other conversation
// the local unread counter is bumped unless the message is our own. The chat
// list preview and ordering update in every case.
func (g *Ingest) OnMessage(msg Message) {
	realtimeEventsTotal.WithLabelValues(string(KindMessageCreated)).Inc()

	fromSelf := msg.SenderID() == g.selfID
	active := g.store.ActiveChat() == msg.ChatID

	g.store.ApplyRealtimeMessage(msg)

	switch {
	case active && !fromSelf:
		g.markRead(msg.ChatID, msg.ID)
	case !active && !fromSelf:
		g.chats.IncrementUnread(msg.ChatID)
	}

	g.chats.UpdateLastMessage(msg.ChatID, msg)
}

// OnMessageDeleted removes a deleted message from the active sequence.
func (g *Ingest) OnMessageDeleted(ev MessageDeleted) {
	realtimeEventsTotal.WithLabelValues(string(KindMessageDeleted)).Inc()
	if g.store.ActiveChat() != ev.ChatID {
		return
	}
	g.store.ApplyDeletion(ev.MessageID)
}

// OnUnread overwrites a chat's local counter with the server's count.
func (g *Ingest) OnUnread(ev UnreadEvent) {
	realtimeEventsTotal.WithLabelValues(string(KindUnreadChanged)).Inc()
	g.chats.SetUnread(ev.ChatID, ev.UnreadCount)
}

// MarkChatRead acknowledges the active conversation up to its newest loaded
// message and zeroes the local counter. Called when a conversation is
// opened.
func (g *Ingest) MarkChatRead(chatID string) {
	msgs := g.store.Messages()
	if len(msgs) == 0 {
		g.chats.ResetUnread(chatID)
		return
	}
	g.markRead(chatID, msgs[len(msgs)-1].ID)
}

// markRead fires the acknowledgement without blocking the event path.
// Repeat acknowledgements for the same message are absorbed, so a burst of
// pushes costs one request.
func (g *Ingest) markRead(chatID, messageID string) {
	g.mu.Lock()
	if g.lastMarked[chatID] == messageID {
		g.mu.Unlock()
		return
	}
	g.lastMarked[chatID] = messageID
	g.mu.Unlock()

	g.chats.ResetUnread(chatID)

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), markReadTimeout)
		defer cancel()
		if err := g.marker.MarkRead(ctx, chatID, messageID); err != nil {
			markReadFailuresTotal.Inc()
			g.log.Warn().Err(err).Str("chatId", chatID).Msg("mark read failed")
			g.mu.Lock()
			if g.lastMarked[chatID] == messageID {
				delete(g.lastMarked, chatID)
			}
			g.mu.Unlock()
		}
	}()
}

// Wait blocks until in-flight acknowledgements finish. Used on shutdown and
// in tests.
func (g *Ingest) Wait() {
	g.wg.Wait()
}
