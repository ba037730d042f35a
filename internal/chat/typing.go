// internal/chat/typing.go
// Tracker: typing state in both directions. Outbound, it debounces the
// signed-in user's keystrokes into start/stop signals; inbound, it keeps the
// set of remote users currently typing per conversation. Remote entries have
// no local expiry: the sender's own stop signal clears them.

package chat

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// TypingTimeout is the keystroke inactivity window after which a stop
// signal is sent.
const TypingTimeout = 3 * time.Second

// TypingSignaler publishes the local user's typing state to a conversation.
type TypingSignaler interface {
	SendTyping(chatID string, typing bool) error
}

// Tracker owns typing state for the session. Safe for concurrent use.
type Tracker struct {
	signaler TypingSignaler
	log      zerolog.Logger
	selfID   string
	timeout  time.Duration

	mu         sync.Mutex
	activeChat string
	typingSent bool
	stopTimer  *time.Timer
	remote     map[string]map[string]string // chatID -> userID -> display name
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithTypingTimeout overrides the inactivity window.
func WithTypingTimeout(d time.Duration) TrackerOption {
	return func(t *Tracker) {
		if d > 0 {
			t.timeout = d
		}
	}
}

// NewTracker returns a tracker publishing through the signaler.
func NewTracker(signaler TypingSignaler, log zerolog.Logger, selfID string, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		signaler: signaler,
		log:      log.With().Str("component", "typing").Logger(),
		selfID:   selfID,
		timeout:  TypingTimeout,
		remote:   make(map[string]map[string]string),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// SetActiveChat switches the conversation the composer is attached to,
// sending a stop for the previous one if a start is outstanding.
func (t *Tracker) SetActiveChat(chatID string) {
	t.mu.Lock()
	prev := t.activeChat
	wasTyping := t.typingSent
	t.activeChat = chatID
	t.typingSent = false
	t.cancelTimerLocked()
	t.mu.Unlock()

	if wasTyping && prev != "" {
		t.signal(prev, false)
	}
}

// InputChanged reacts to the composer's text. The first keystroke of a
// non-empty draft sends one start signal; every keystroke re-arms the
// inactivity timer; clearing the draft sends an immediate stop.
func (t *Tracker) InputChanged(text string) {
	t.mu.Lock()
	chatID := t.activeChat
	if chatID == "" {
		t.mu.Unlock()
		return
	}

	if text == "" {
		wasTyping := t.typingSent
		t.typingSent = false
		t.cancelTimerLocked()
		t.mu.Unlock()
		if wasTyping {
			t.signal(chatID, false)
		}
		return
	}

	sendStart := !t.typingSent
	t.typingSent = true
	t.cancelTimerLocked()
	t.stopTimer = time.AfterFunc(t.timeout, func() { t.timedStop(chatID) })
	t.mu.Unlock()

	if sendStart {
		t.signal(chatID, true)
	}
}

// MessageSent stops typing immediately: sending the message is the end of
// the draft.
func (t *Tracker) MessageSent() {
	t.stopNow()
}

// Detach stops typing when the composer leaves the conversation view.
func (t *Tracker) Detach() {
	t.stopNow()
}

func (t *Tracker) stopNow() {
	t.mu.Lock()
	chatID := t.activeChat
	wasTyping := t.typingSent
	t.typingSent = false
	t.cancelTimerLocked()
	t.mu.Unlock()

	if wasTyping && chatID != "" {
		t.signal(chatID, false)
	}
}

// timedStop fires from the inactivity timer. The conversation may have
// switched since the timer was armed, so it only acts when still current.
func (t *Tracker) timedStop(chatID string) {
	t.mu.Lock()
	if t.activeChat != chatID || !t.typingSent {
		t.mu.Unlock()
		return
	}
	t.typingSent = false
	t.stopTimer = nil
	t.mu.Unlock()

	t.signal(chatID, false)
}

func (t *Tracker) cancelTimerLocked() {
	if t.stopTimer != nil {
		t.stopTimer.Stop()
		t.stopTimer = nil
	}
}

func (t *Tracker) signal(chatID string, typing bool) {
	if err := t.signaler.SendTyping(chatID, typing); err != nil {
		t.log.Warn().Err(err).Str("chatId", chatID).Bool("typing", typing).Msg("typing signal failed")
	}
}

// OnTypingEvent applies a remote typing change. The local user's own echoes
// are ignored.
func (t *Tracker) OnTypingEvent(ev TypingEvent) {
	realtimeEventsTotal.WithLabelValues(string(KindTypingChanged)).Inc()
	if ev.UserID == t.selfID {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if ev.Typing {
		if t.remote[ev.ChatID] == nil {
			t.remote[ev.ChatID] = make(map[string]string)
		}
		t.remote[ev.ChatID][ev.UserID] = ev.DisplayName
		return
	}
	delete(t.remote[ev.ChatID], ev.UserID)
	if len(t.remote[ev.ChatID]) == 0 {
		delete(t.remote, ev.ChatID)
	}
}

// SetActiveTypers replaces a conversation's remote typer set from a
// snapshot, as fetched when the conversation is opened.
func (t *Tracker) SetActiveTypers(chatID string, typers map[string]string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	set := make(map[string]string, len(typers))
	for id, name := range typers {
		if id == t.selfID {
			continue
		}
		set[id] = name
	}
	if len(set) == 0 {
		delete(t.remote, chatID)
		return
	}
	t.remote[chatID] = set
}

// ClearChat drops a conversation's remote typers, e.g. when it is closed.
func (t *Tracker) ClearChat(chatID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.remote, chatID)
}

// Typers returns the display names of remote users typing in chatID,
// sorted for stable rendering. Users without a display name show as their
// id.
func (t *Tracker) Typers(chatID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	set := t.remote[chatID]
	if len(set) == 0 {
		return nil
	}
	names := make([]string, 0, len(set))
	for id, name := range set {
		if name == "" {
			name = id
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
