// internal/chat/grouping.go
// Render hints for a message sequence: day dividers and sender-run
// boundaries, precomputed so the view layer stays a dumb loop.

package chat

import "time"

// RenderHint carries the per-message presentation flags for one position in
// an oldest-first sequence.
type RenderHint struct {
	// ShowDateDivider is set on the first message of each calendar day.
	ShowDateDivider bool
	// FirstFromSender is set when the previous message has a different
	// sender, or sits across a day divider.
	FirstFromSender bool
	// LastFromSender is set when the next message has a different sender,
	// or sits across a day divider.
	LastFromSender bool
}

// RenderHints computes presentation flags for an oldest-first sequence.
// Messages with a nil sender (system notices) always stand alone.
func RenderHints(msgs []Message) []RenderHint {
	hints := make([]RenderHint, len(msgs))
	for i := range msgs {
		h := RenderHint{FirstFromSender: true, LastFromSender: true}

		if i == 0 || !sameDay(msgs[i-1].SentAt, msgs[i].SentAt) {
			h.ShowDateDivider = true
		}

		if i > 0 && !h.ShowDateDivider && sameSender(&msgs[i-1], &msgs[i]) {
			h.FirstFromSender = false
		}
		if i < len(msgs)-1 && sameDay(msgs[i].SentAt, msgs[i+1].SentAt) && sameSender(&msgs[i], &msgs[i+1]) {
			h.LastFromSender = false
		}

		hints[i] = h
	}
	return hints
}

func sameSender(a, b *Message) bool {
	if a.Sender == nil || b.Sender == nil {
		return false
	}
	return a.Sender.ID == b.Sender.ID
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Local().Date()
	by, bm, bd := b.Local().Date()
	return ay == by && am == bm && ad == bd
}
