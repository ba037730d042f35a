// internal/chat/focus.go
// Resolver: jump-to-message. Given a target message id, it pages backwards
// through history until the message is loaded, then hands it to the view to
// scroll to. A newer request or a conversation switch cancels the search.

package chat

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// FocusState is the lifecycle of a jump-to-message request.
type FocusState int

const (
	// FocusIdle means no request is pending.
	FocusIdle FocusState = iota
	// FocusSearching means older pages are being loaded to find the target.
	FocusSearching
	// FocusFound means the target is loaded and has been handed to the view.
	FocusFound
	// FocusExhausted means the full history was loaded without finding the
	// target, typically because it was deleted.
	FocusExhausted
)

// focusRetryInterval paces re-checks while another fetch holds the
// paginator.
const focusRetryInterval = 50 * time.Millisecond

// Resolver drives pagination until a target message is in the store.
type Resolver struct {
	store     *Store
	paginator *Paginator
	log       zerolog.Logger

	onFound     func(chatID, messageID string)
	onExhausted func(chatID, messageID string)

	mu     sync.Mutex
	state  FocusState
	chatID string
	target string
	gen    uint64

	changed chan struct{}
	unsub   func()
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithFoundHandler sets the callback fired when the target message is
// loaded. It runs on the resolver's goroutine.
func WithFoundHandler(fn func(chatID, messageID string)) ResolverOption {
	return func(r *Resolver) { r.onFound = fn }
}

// WithExhaustedHandler sets the callback fired when history runs out
// without the target. It runs on the resolver's goroutine.
func WithExhaustedHandler(fn func(chatID, messageID string)) ResolverOption {
	return func(r *Resolver) { r.onExhausted = fn }
}

// NewResolver wires the resolver to the store and paginator.
func NewResolver(store *Store, paginator *Paginator, log zerolog.Logger, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		store:     store,
		paginator: paginator,
		log:       log.With().Str("component", "focus").Logger(),
		changed:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.unsub = store.Subscribe(func() {
		select {
		case r.changed <- struct{}{}:
		default:
		}
	})
	return r
}

// Close detaches the resolver from the store and cancels any search.
func (r *Resolver) Close() {
	r.Cancel()
	if r.unsub != nil {
		r.unsub()
	}
}

// State returns the current focus state.
func (r *Resolver) State() FocusState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Target returns the conversation and message of the current or last
// request.
func (r *Resolver) Target() (chatID, messageID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.chatID, r.target
}

// Cancel drops any pending search and returns to idle.
func (r *Resolver) Cancel() {
	r.mu.Lock()
	r.gen++
	r.state = FocusIdle
	r.chatID = ""
	r.target = ""
	r.mu.Unlock()
}

// Request starts resolving messageID within chatID. The newest request wins:
// any search still running is abandoned. The caller is expected to have the
// conversation open already; the search runs on its own goroutine and
// reports through the found/exhausted handlers.
func (r *Resolver) Request(ctx context.Context, chatID, messageID string) {
	r.mu.Lock()
	r.gen++
	gen := r.gen
	r.state = FocusSearching
	r.chatID = chatID
	r.target = messageID
	r.mu.Unlock()

	go r.run(ctx, gen, chatID, messageID)
}

func (r *Resolver) run(ctx context.Context, gen uint64, chatID, messageID string) {
	for {
		if r.stale(gen) || ctx.Err() != nil {
			return
		}
		if r.store.ActiveChat() != chatID {
			r.finish(gen, FocusIdle)
			return
		}
		if r.store.Contains(messageID) {
			if r.finish(gen, FocusFound) && r.onFound != nil {
				r.onFound(chatID, messageID)
			}
			return
		}
		if !r.paginator.CanLoadMore() {
			r.log.Debug().Str("chatId", chatID).Str("messageId", messageID).Msg("history exhausted without target")
			if r.finish(gen, FocusExhausted) && r.onExhausted != nil {
				r.onExhausted(chatID, messageID)
			}
			return
		}

		fetched, err := r.paginator.LoadOlder(ctx, chatID)
		if err != nil {
			r.log.Warn().Err(err).Str("chatId", chatID).Msg("focus search fetch failed")
			r.finish(gen, FocusIdle)
			return
		}
		if !fetched {
			// Another fetch holds the paginator. Wait for the store to move
			// or for a beat to pass, then re-check.
			t := time.NewTimer(focusRetryInterval)
			select {
			case <-r.changed:
				t.Stop()
			case <-t.C:
			case <-ctx.Done():
				t.Stop()
				return
			}
		}
	}
}

// finish transitions to the terminal state if this search is still current.
func (r *Resolver) finish(gen uint64, state FocusState) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if gen != r.gen {
		return false
	}
	r.state = state
	return true
}

func (r *Resolver) stale(gen uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return gen != r.gen
}
