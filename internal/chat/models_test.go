// internal/chat/models_test.go

package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessageValidate(t *testing.T) {
	valid := testMsg(1, "c1", "u2")
	assert.NoError(t, valid.Validate())

	noID := valid
	noID.ID = ""
	assert.ErrorIs(t, noID.Validate(), ErrNoMessageID)

	noChat := valid
	noChat.ChatID = ""
	assert.ErrorIs(t, noChat.Validate(), ErrNoChatID)

	empty := valid
	empty.Content = "   "
	assert.ErrorIs(t, empty.Validate(), ErrEmptyMessage)

	attachmentOnly := empty
	attachmentOnly.Attachments = []Attachment{{ID: "a1", URL: "u", MimeType: "image/png"}}
	assert.NoError(t, attachmentOnly.Validate())
}

func TestChatTitleAndPartner(t *testing.T) {
	direct := Chat{ID: "d1", Users: []UserInfo{{ID: "me", FullName: "Me"}, {ID: "u2", FullName: "Anna"}}}
	assert.False(t, direct.IsGroup())
	assert.Equal(t, "Anna", direct.Title("me"))
	assert.Equal(t, "u2", direct.Partner("me").ID)

	group := Chat{ID: "g1", Group: true, ChatName: "Hikers"}
	assert.True(t, group.IsGroup())
	assert.Equal(t, "Hikers", group.Title("me"))
	assert.Nil(t, group.Partner("me"))

	unnamed := Chat{ID: "g2", Users: []UserInfo{{ID: "me"}, {ID: "a"}, {ID: "b"}}}
	assert.True(t, unnamed.IsGroup(), "three members imply a group even without the flag")
	assert.Equal(t, "Group Chat", unnamed.Title("me"))
}

func TestPreviewText(t *testing.T) {
	anna := &UserInfo{ID: "u2", FullName: "Anna"}

	cases := []struct {
		name string
		msg  *Message
		want string
	}{
		{"nil message", nil, "Send the first message!"},
		{"own text", &Message{Sender: &UserInfo{ID: "me"}, Type: TypeText, Content: "hello"}, "You: hello"},
		{"their text", &Message{Sender: anna, Type: TypeText, Content: "hi there"}, "Anna: hi there"},
		{"voice", &Message{Sender: anna, Type: TypeAudio, Attachments: []Attachment{{MimeType: "audio/ogg"}}}, "Anna sent a voice message"},
		{"one photo", &Message{Sender: anna, Type: TypeImage, Attachments: []Attachment{{MimeType: "image/png"}}}, "Anna sent a photo"},
		{"three photos", &Message{Sender: anna, Type: TypeImage, Attachments: []Attachment{
			{MimeType: "image/png"}, {MimeType: "image/png"}, {MimeType: "image/jpeg"},
		}}, "Anna sent 3 photos"},
		{"files", &Message{Sender: anna, Type: TypeFile, Attachments: []Attachment{{MimeType: "application/pdf"}}}, "Anna sent a file"},
		{"sticker", &Message{Sender: anna, Type: TypeSticker, Content: "🔥"}, "Anna sent 🔥"},
		{"link", &Message{Sender: anna, Type: TypeLink, Attachments: []Attachment{{URL: "https://x"}}}, "Anna shared a link"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, PreviewText(tc.msg, "me"))
		})
	}
}

func TestPreviewTextTruncatesLongContent(t *testing.T) {
	long := make([]rune, 120)
	for i := range long {
		long[i] = 'a'
	}
	got := PreviewText(&Message{Sender: &UserInfo{ID: "me"}, Type: TypeText, Content: string(long)}, "me")
	assert.Len(t, []rune(got), len([]rune("You: "))+70+1)
}
