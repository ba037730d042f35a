// internal/realtime/topics.go
// Broker destination layout. Subscriptions use the /group and /user spaces;
// client publishes go to the /app space.

package realtime

import "fmt"

// ChatTopic carries full messages and deletion tombstones for one chat.
func ChatTopic(chatID string) string {
	return fmt.Sprintf("/group/%s", chatID)
}

// TypingTopic carries typing start/stop events for one chat.
func TypingTopic(chatID string) string {
	return fmt.Sprintf("/group/%s/typing", chatID)
}

// PresenceTopic carries single-user presence changes, session wide.
const PresenceTopic = "/group/presence"

// UnreadQueue is the per-user queue of authoritative unread counts.
const UnreadQueue = "/user/queue/unread"

// SendMessageDest receives outgoing messages.
const SendMessageDest = "/app/message"

// TypingStartDest and TypingStopDest receive the local user's typing state.
const (
	TypingStartDest = "/app/typing/start"
	TypingStopDest  = "/app/typing/stop"
)
