// internal/chat/chatlist_test.go

package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatListSortsMostRecentFirst(t *testing.T) {
	l := NewChatList()
	l.Replace([]Chat{
		{ID: "a", LastMessage: ptrMsg(testMsg(1, "a", "u1"))},
		{ID: "b", LastMessage: ptrMsg(testMsg(5, "b", "u1"))},
		{ID: "c"}, // never messaged
		{ID: "d", LastMessage: ptrMsg(testMsg(3, "d", "u1"))},
	})

	chats := l.Chats()
	require.Len(t, chats, 4)
	assert.Equal(t, "b", chats[0].ID)
	assert.Equal(t, "d", chats[1].ID)
	assert.Equal(t, "a", chats[2].ID)
	assert.Equal(t, "c", chats[3].ID, "chats without messages sink to the bottom")
}

func TestChatListUpdateLastMessageResorts(t *testing.T) {
	l := NewChatList()
	l.Replace([]Chat{
		{ID: "a", LastMessage: ptrMsg(testMsg(1, "a", "u1"))},
		{ID: "b", LastMessage: ptrMsg(testMsg(5, "b", "u1"))},
	})

	l.UpdateLastMessage("a", testMsg(9, "a", "u1"))
	chats := l.Chats()
	assert.Equal(t, "a", chats[0].ID)
	assert.Equal(t, "m9", chats[0].LastMessage.ID)

	// Unknown chat ids are ignored.
	l.UpdateLastMessage("zzz", testMsg(10, "zzz", "u1"))
	assert.Len(t, l.Chats(), 2)
}

func TestChatListUnreadCounters(t *testing.T) {
	l := NewChatList()
	l.Replace([]Chat{{ID: "a"}, {ID: "b"}})

	assert.Equal(t, int64(1), l.IncrementUnread("a"))
	assert.Equal(t, int64(2), l.IncrementUnread("a"))
	l.IncrementUnread("b")
	assert.Equal(t, int64(3), l.TotalUnread())

	l.SetUnread("a", 7)
	assert.Equal(t, int64(7), l.Unread("a"))
	l.SetUnread("a", 0)
	assert.Zero(t, l.Unread("a"))

	l.ResetUnread("b")
	assert.Zero(t, l.TotalUnread())
}

func TestChatListReplaceKeepsCountersForSurvivingChats(t *testing.T) {
	l := NewChatList()
	l.Replace([]Chat{{ID: "a"}, {ID: "b"}})
	l.IncrementUnread("a")
	l.IncrementUnread("b")

	l.Replace([]Chat{{ID: "a"}, {ID: "c"}})
	assert.Equal(t, int64(1), l.Unread("a"))
	assert.Zero(t, l.Unread("b"))
}

func TestChatListFilterByTitle(t *testing.T) {
	l := NewChatList()
	l.Replace([]Chat{
		{ID: "g1", Group: true, ChatName: "Weekend Hikers"},
		{ID: "d1", Users: []UserInfo{{ID: "me"}, {ID: "u2", FullName: "Anna Nguyen"}}},
		{ID: "d2", Users: []UserInfo{{ID: "me"}, {ID: "u3", FullName: "Bob Tran"}}},
	})

	hits := l.Filter("anna", "me")
	require.Len(t, hits, 1)
	assert.Equal(t, "d1", hits[0].ID)

	assert.Len(t, l.Filter("", "me"), 3)
	assert.Empty(t, l.Filter("nobody", "me"))
}
