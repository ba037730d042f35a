// internal/chat/ingest_test.go

package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMarker struct {
	mu    sync.Mutex
	calls []string // "chatID/messageID"
	err   error
}

func (m *fakeMarker) MarkRead(ctx context.Context, chatID, lastMessageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, chatID+"/"+lastMessageID)
	return m.err
}

func (m *fakeMarker) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func (m *fakeMarker) last() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return ""
	}
	return m.calls[len(m.calls)-1]
}

func newTestIngest(selfID string) (*Store, *ChatList, *fakeMarker, *Ingest) {
	s := NewStore()
	l := NewChatList()
	m := &fakeMarker{}
	return s, l, m, NewIngest(s, l, m, zerolog.Nop(), selfID)
}

func seedChats(l *ChatList) {
	l.Replace([]Chat{
		{ID: "c1", Users: []UserInfo{{ID: "me"}, {ID: "u2"}}, LastMessage: ptrMsg(testMsg(1, "c1", "u2"))},
		{ID: "c2", Users: []UserInfo{{ID: "me"}, {ID: "u3"}}, LastMessage: ptrMsg(testMsg(2, "c2", "u3"))},
	})
}

func ptrMsg(m Message) *Message { return &m }

func TestIngestActiveChatAppendsAndMarksRead(t *testing.T) {
	s, l, m, g := newTestIngest("me")
	seedChats(l)
	s.ResetForChat("c1")

	g.OnMessage(testMsg(10, "c1", "u2"))
	g.Wait()

	assert.Equal(t, []string{"m10"}, ids(s.Messages()))
	assert.Equal(t, "c1/m10", m.last())
	assert.Zero(t, l.Unread("c1"))
}

func TestIngestInactiveChatIncrementsUnread(t *testing.T) {
	s, l, m, g := newTestIngest("me")
	seedChats(l)
	s.ResetForChat("c1")

	g.OnMessage(testMsg(10, "c2", "u3"))
	g.OnMessage(testMsg(11, "c2", "u3"))
	g.Wait()

	assert.Empty(t, s.Messages())
	assert.Equal(t, int64(2), l.Unread("c2"))
	assert.Zero(t, m.count())

	latest := s.Latest()
	require.NotNil(t, latest)
	assert.Equal(t, "m11", latest.ID)
}

func TestIngestOwnMessageInOtherChatLeavesUnreadAlone(t *testing.T) {
	s, l, _, g := newTestIngest("me")
	seedChats(l)
	s.ResetForChat("c1")

	g.OnMessage(testMsg(10, "c2", "me"))
	g.Wait()

	assert.Zero(t, l.Unread("c2"))
}

func TestIngestAlwaysResortsChatList(t *testing.T) {
	s, l, _, g := newTestIngest("me")
	seedChats(l)
	s.ResetForChat("c1")

	// c2 currently holds the newest message; a push into c1 must move it up.
	require.Equal(t, "c2", l.Chats()[0].ID)
	g.OnMessage(testMsg(10, "c1", "u2"))
	g.Wait()

	chats := l.Chats()
	assert.Equal(t, "c1", chats[0].ID)
	require.NotNil(t, chats[0].LastMessage)
	assert.Equal(t, "m10", chats[0].LastMessage.ID)
}

func TestIngestMarkReadDebouncesRepeatAcks(t *testing.T) {
	s, _, m, g := newTestIngest("me")
	s.ResetForChat("c1")

	g.OnMessage(testMsg(10, "c1", "u2"))
	g.Wait()
	require.Equal(t, 1, m.count())

	// Redelivery of the same message must not ack again.
	g.OnMessage(testMsg(10, "c1", "u2"))
	g.Wait()
	assert.Equal(t, 1, m.count())

	g.OnMessage(testMsg(11, "c1", "u2"))
	g.Wait()
	assert.Equal(t, 2, m.count())
}

func TestIngestMarkReadFailureAllowsRetry(t *testing.T) {
	s, _, m, g := newTestIngest("me")
	s.ResetForChat("c1")
	m.err = errors.New("network down")

	g.OnMessage(testMsg(10, "c1", "u2"))
	g.Wait()
	require.Equal(t, 1, m.count())

	m.mu.Lock()
	m.err = nil
	m.mu.Unlock()

	g.MarkChatRead("c1")
	require.Eventually(t, func() bool { return m.count() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "c1/m10", m.last())
}

func TestIngestDeletionOnlyForActiveChat(t *testing.T) {
	s, _, _, g := newTestIngest("me")
	s.ResetForChat("c1")
	s.ApplyRealtimeMessage(testMsg(1, "c1", "u2"))
	s.ApplyRealtimeMessage(testMsg(2, "c1", "u2"))

	g.OnMessageDeleted(MessageDeleted{ChatID: "c2", MessageID: "m1"})
	assert.Equal(t, []string{"m1", "m2"}, ids(s.Messages()))

	g.OnMessageDeleted(MessageDeleted{ChatID: "c1", MessageID: "m1"})
	assert.Equal(t, []string{"m2"}, ids(s.Messages()))
}

func TestIngestUnreadEventOverridesLocalCounter(t *testing.T) {
	_, l, _, g := newTestIngest("me")
	seedChats(l)
	l.IncrementUnread("c2")

	g.OnUnread(UnreadEvent{ChatID: "c2", UnreadCount: 7})
	assert.Equal(t, int64(7), l.Unread("c2"))

	g.OnUnread(UnreadEvent{ChatID: "c2", UnreadCount: 0})
	assert.Zero(t, l.Unread("c2"))
}

func TestIngestMarkChatReadUsesNewestLoadedMessage(t *testing.T) {
	s, l, m, g := newTestIngest("me")
	seedChats(l)
	l.IncrementUnread("c1")
	s.ResetForChat("c1")
	s.ApplyPageResult("c1", PageResult{Data: newestFirst("c1", 5, 1), CurrentPage: 1, TotalPages: 1, PageSize: 20, TotalElements: 5}, MergeReplace)

	g.MarkChatRead("c1")
	g.Wait()

	assert.Equal(t, "c1/m5", m.last())
	assert.Zero(t, l.Unread("c1"))
}
