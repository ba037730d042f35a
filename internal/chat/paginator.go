// internal/chat/paginator.go
// Paginator: drives history fetches for the active conversation. One fetch
// may be in flight at a time; overlapping triggers are dropped silently. The
// older-page loading indicator is held up for a minimum duration so fast
// responses do not flash it, but merges always land immediately.

package chat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultPageSize is the server's message page size.
const DefaultPageSize = 20

// MinFetchDuration is the floor for how long the older-page indicator stays
// visible once shown.
const MinFetchDuration = 1 * time.Second

// NearTopThreshold is the scroll offset, in viewport units from the top, at
// or below which an older page is requested.
const NearTopThreshold = 20

// PageFetcher retrieves one page of a conversation's history. Pages are
// 1-indexed; page 1 holds the most recent messages.
type PageFetcher interface {
	FetchPage(ctx context.Context, chatID string, page, size int) (PageResult, error)
}

// Viewport abstracts the scrollable message view for anchor preservation.
// Offset is distance from the top of the content; height is total content
// height, both in whatever unit the view uses.
type Viewport interface {
	ScrollState() (offset, height int)
	SetScrollOffset(offset int)
}

// Paginator owns page fetching for the store's active conversation.
type Paginator struct {
	store   *Store
	fetcher PageFetcher
	log     zerolog.Logger

	pageSize    int
	minDuration time.Duration

	mu           sync.Mutex
	inFlight     bool
	loadingOlder bool
}

// PaginatorOption configures a Paginator.
type PaginatorOption func(*Paginator)

// WithPageSize overrides the default page size.
func WithPageSize(n int) PaginatorOption {
	return func(p *Paginator) {
		if n > 0 {
			p.pageSize = n
		}
	}
}

// WithMinFetchDuration overrides the indicator floor. Zero disables it,
// which tests rely on.
func WithMinFetchDuration(d time.Duration) PaginatorOption {
	return func(p *Paginator) { p.minDuration = d }
}

// NewPaginator returns a paginator bound to the store and fetcher.
func NewPaginator(store *Store, fetcher PageFetcher, log zerolog.Logger, opts ...PaginatorOption) *Paginator {
	p := &Paginator{
		store:       store,
		fetcher:     fetcher,
		log:         log.With().Str("component", "paginator").Logger(),
		pageSize:    DefaultPageSize,
		minDuration: MinFetchDuration,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// LoadInitial resets the store to chatID and fetches its most recent page.
// Concurrent with another fetch it is dropped and reports that via the bool.
func (p *Paginator) LoadInitial(ctx context.Context, chatID string) (bool, error) {
	if !p.acquire(false) {
		return false, nil
	}
	defer p.release()

	p.store.ResetForChat(chatID)

	page, err := p.fetcher.FetchPage(ctx, chatID, 1, p.pageSize)
	if err != nil {
		p.log.Error().Err(err).Str("chatId", chatID).Msg("initial page fetch failed")
		return false, fmt.Errorf("load initial page: %w", err)
	}
	p.store.ApplyPageResult(chatID, page, MergeReplace)
	return true, nil
}

// LoadOlder fetches the next older page for chatID and prepends it. The
// first return value reports whether a fetch actually ran: it is false when
// another fetch is in flight, when chatID is not the active conversation, or
// when the history is exhausted. On fetch failure pagination state is left
// untouched, so the same page can be retried.
func (p *Paginator) LoadOlder(ctx context.Context, chatID string) (bool, error) {
	pg := p.store.Pagination()
	if chatID == "" || chatID != p.store.ActiveChat() {
		return false, nil
	}
	if pg.HighestPageLoaded == 0 || pg.HighestPageLoaded >= pg.TotalPages {
		return false, nil
	}
	if !p.acquire(true) {
		return false, nil
	}
	start := time.Now()
	defer func() {
		// Hold the indicator (and the in-flight guard) up to the floor so
		// rapid fetches do not flicker. The merge has already landed.
		if remaining := p.minDuration - time.Since(start); remaining > 0 {
			t := time.NewTimer(remaining)
			select {
			case <-t.C:
			case <-ctx.Done():
				t.Stop()
			}
		}
		p.release()
	}()

	nextPage := pg.HighestPageLoaded + 1
	page, err := p.fetcher.FetchPage(ctx, chatID, nextPage, p.pageSize)
	if err != nil {
		p.log.Error().Err(err).Str("chatId", chatID).Int("page", nextPage).Msg("older page fetch failed")
		return false, fmt.Errorf("load older page %d: %w", nextPage, err)
	}
	p.store.ApplyPageResult(chatID, page, MergePrepend)
	return true, nil
}

// CanLoadMore reports whether older history remains for the active
// conversation.
func (p *Paginator) CanLoadMore() bool {
	pg := p.store.Pagination()
	return pg.HighestPageLoaded > 0 && pg.HighestPageLoaded < pg.TotalPages
}

// LoadingOlder reports whether the older-page indicator should be shown.
func (p *Paginator) LoadingOlder() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loadingOlder
}

// InFlight reports whether any fetch is currently running.
func (p *Paginator) InFlight() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inFlight
}

// OnScroll triggers an older-page load when the view is scrolled near the
// top. The load runs asynchronously with scroll anchoring; overlapping
// triggers are absorbed by the in-flight guard.
func (p *Paginator) OnScroll(ctx context.Context, chatID string, v Viewport) {
	offset, _ := v.ScrollState()
	if offset > NearTopThreshold || !p.CanLoadMore() || p.InFlight() {
		return
	}
	go func() {
		err := PreserveAnchor(v, func() error {
			_, err := p.LoadOlder(ctx, chatID)
			return err
		})
		if err != nil {
			p.log.Warn().Err(err).Str("chatId", chatID).Msg("scroll-triggered load failed")
		}
	}()
}

// PreserveAnchor runs fn, then shifts the viewport offset by the content
// growth so the message that sat at the top before the call stays put.
func PreserveAnchor(v Viewport, fn func() error) error {
	offset, oldHeight := v.ScrollState()
	err := fn()
	_, newHeight := v.ScrollState()
	if delta := newHeight - oldHeight; delta > 0 {
		v.SetScrollOffset(offset + delta)
	}
	return err
}

// acquire takes the in-flight guard, and the indicator with it when older is
// set. Returns false when a fetch is already running.
func (p *Paginator) acquire(older bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inFlight {
		return false
	}
	p.inFlight = true
	p.loadingOlder = older
	return true
}

func (p *Paginator) release() {
	p.mu.Lock()
	p.inFlight = false
	p.loadingOlder = false
	p.mu.Unlock()
}
