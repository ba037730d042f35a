// internal/session/session.go
// Session: the signed-in user's view of the whole system. It owns the REST
// and broker clients plus every chat-side store, routes realtime payloads to
// them, and keeps the broker subscription set in step with the chat list.

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/TuongNguyen09/web-chat/internal/api"
	"github.com/TuongNguyen09/web-chat/internal/chat"
	"github.com/TuongNguyen09/web-chat/internal/realtime"
)

var ErrNotStarted = errors.New("session not started")

// Options configures a Session.
type Options struct {
	APIBaseURL       string
	WSURL            string
	Email            string
	Password         string
	PageSize         int
	MinFetchDuration time.Duration
	TypingTimeout    time.Duration
	ReconnectDelay   time.Duration
	OrderPolicy      chat.OrderPolicy
}

// Session wires the transport layers to the chat stores.
type Session struct {
	opts Options
	log  zerolog.Logger

	api *api.Client
	rt  *realtime.Client

	self  chat.UserInfo
	token TokenInfo

	store     *chat.Store
	chats     *chat.ChatList
	paginator *chat.Paginator
	ingest    *chat.Ingest
	resolver  *chat.Resolver
	tracker   *chat.Tracker
	presence  *chat.PresenceStore

	started bool
}

// New returns an unstarted session.
func New(opts Options, log zerolog.Logger) *Session {
	return &Session{
		opts: opts,
		log:  log.With().Str("component", "session").Logger(),
		api:  api.NewClient(opts.APIBaseURL, log),
	}
}

// Start signs in, connects to the broker, loads the chat list and seeds
// unread and presence state. After it returns the session is live: realtime
// events flow into the stores.
func (s *Session) Start(ctx context.Context) error {
	login, err := s.api.Login(ctx, s.opts.Email, s.opts.Password)
	if err != nil {
		return fmt.Errorf("sign in: %w", err)
	}
	s.token, err = ParseToken(login.Token)
	if err != nil {
		return err
	}

	s.self = login.User
	if s.self.ID == "" {
		if s.self, err = s.api.CurrentUser(ctx); err != nil {
			return fmt.Errorf("load profile: %w", err)
		}
	}
	if s.self.ID == "" {
		s.self.ID = s.token.UserID
	}

	s.store = chat.NewStore(chat.WithOrderPolicy(s.opts.OrderPolicy))
	s.chats = chat.NewChatList()
	s.presence = chat.NewPresenceStore()
	s.paginator = chat.NewPaginator(s.store, s.api, s.log,
		chat.WithPageSize(s.opts.PageSize),
		chat.WithMinFetchDuration(s.opts.MinFetchDuration),
	)
	s.ingest = chat.NewIngest(s.store, s.chats, s.api, s.log, s.self.ID)
	s.resolver = chat.NewResolver(s.store, s.paginator, s.log)
	s.tracker = chat.NewTracker(s, s.log, s.self.ID,
		chat.WithTypingTimeout(s.opts.TypingTimeout),
	)

	s.rt = realtime.NewClient(s.opts.WSURL, s.token.Raw, s.log,
		realtime.WithReconnectDelay(s.opts.ReconnectDelay),
	)
	if err := s.rt.Start(ctx); err != nil {
		return fmt.Errorf("connect broker: %w", err)
	}

	if err := s.rt.Subscribe(realtime.PresenceTopic, s.onPresencePayload); err != nil {
		return err
	}
	if err := s.rt.Subscribe(realtime.UnreadQueue, s.onUnreadPayload); err != nil {
		return err
	}

	if err := s.RefreshChats(ctx); err != nil {
		return err
	}
	if err := s.RefreshUnread(ctx); err != nil {
		s.log.Warn().Err(err).Msg("unread seed failed")
	}
	if snap, err := s.api.PresenceSnapshot(ctx); err != nil {
		s.log.Warn().Err(err).Msg("presence seed failed")
	} else {
		s.presence.ApplySnapshot(snap)
	}

	s.started = true
	s.log.Info().Str("userId", s.self.ID).Msg("session started")
	return nil
}

// Close tears the session down.
func (s *Session) Close() error {
	if s.tracker != nil {
		s.tracker.Detach()
	}
	if s.resolver != nil {
		s.resolver.Close()
	}
	if s.ingest != nil {
		s.ingest.Wait()
	}
	if s.rt != nil {
		return s.rt.Close()
	}
	return nil
}

// Self returns the signed-in user.
func (s *Session) Self() chat.UserInfo { return s.self }

// Store exposes the message store for rendering.
func (s *Session) Store() *chat.Store { return s.store }

// ChatList exposes the sidebar state.
func (s *Session) ChatList() *chat.ChatList { return s.chats }

// Tracker exposes typing state for rendering and composer hooks.
func (s *Session) Tracker() *chat.Tracker { return s.tracker }

// Presence exposes presence state for rendering.
func (s *Session) Presence() *chat.PresenceStore { return s.presence }

// Paginator exposes loading state for rendering.
func (s *Session) Paginator() *chat.Paginator { return s.paginator }

// FocusState reports the jump-to-message lifecycle for rendering.
func (s *Session) FocusState() chat.FocusState {
	if s.resolver == nil {
		return chat.FocusIdle
	}
	return s.resolver.State()
}

// RefreshChats reloads the chat list and reconciles broker subscriptions
// with it.
func (s *Session) RefreshChats(ctx context.Context) error {
	chats, err := s.api.Chats(ctx, "")
	if err != nil {
		return fmt.Errorf("load chats: %w", err)
	}
	s.chats.Replace(chats)
	s.syncTopics(chats)
	return nil
}

// RefreshUnread replaces local counters with the server's counts.
func (s *Session) RefreshUnread(ctx context.Context) error {
	counts, err := s.api.UnreadCounts(ctx)
	if err != nil {
		return fmt.Errorf("load unread: %w", err)
	}
	for chatID, n := range counts {
		s.chats.SetUnread(chatID, n)
	}
	return nil
}

// syncTopics diffs the wanted destination set against the live subscription
// set: new chats gain message and typing subscriptions, removed chats lose
// theirs. Session-wide topics are never touched here.
func (s *Session) syncTopics(chats []chat.Chat) {
	want := make(map[string]realtime.Handler, 2*len(chats))
	for _, c := range chats {
		want[realtime.ChatTopic(c.ID)] = s.onChatPayload
		want[realtime.TypingTopic(c.ID)] = s.onTypingPayload
	}

	current := make(map[string]bool)
	for _, dest := range s.rt.Subscriptions() {
		current[dest] = true
	}

	for dest, handler := range want {
		if current[dest] {
			continue
		}
		if err := s.rt.Subscribe(dest, handler); err != nil {
			s.log.Warn().Err(err).Str("destination", dest).Msg("subscribe failed")
		}
	}
	for dest := range current {
		if dest == realtime.PresenceTopic || dest == realtime.UnreadQueue {
			continue
		}
		if _, ok := want[dest]; ok {
			continue
		}
		if err := s.rt.Unsubscribe(dest); err != nil {
			s.log.Warn().Err(err).Str("destination", dest).Msg("unsubscribe failed")
		}
	}
}

func (s *Session) onChatPayload(body []byte) {
	ev, err := chat.DecodeChatEvent(body)
	if err != nil {
		s.log.Warn().Err(err).Msg("dropped chat payload")
		return
	}
	switch ev := ev.(type) {
	case chat.MessageCreated:
		s.ingest.OnMessage(ev.Message)
	case chat.MessageDeleted:
		s.ingest.OnMessageDeleted(ev)
	}
}

func (s *Session) onTypingPayload(body []byte) {
	ev, err := chat.DecodeTypingEvent(body)
	if err != nil {
		s.log.Warn().Err(err).Msg("dropped typing payload")
		return
	}
	s.tracker.OnTypingEvent(ev)
}

func (s *Session) onPresencePayload(body []byte) {
	ev, err := chat.DecodePresenceEvent(body)
	if err != nil {
		s.log.Warn().Err(err).Msg("dropped presence payload")
		return
	}
	s.presence.Upsert(ev)
}

func (s *Session) onUnreadPayload(body []byte) {
	ev, err := chat.DecodeUnreadEvent(body)
	if err != nil {
		s.log.Warn().Err(err).Msg("dropped unread payload")
		return
	}
	s.ingest.OnUnread(ev)
}

// Open makes chatID the active conversation: loads its most recent page,
// marks it read, seeds the typing snapshot and, for one-to-one chats, the
// partner's presence. A non-empty focusMessageID starts a jump-to-message
// search once the initial page is in.
func (s *Session) Open(ctx context.Context, chatID, focusMessageID string) error {
	if !s.started {
		return ErrNotStarted
	}

	s.resolver.Cancel()
	s.tracker.SetActiveChat(chatID)

	ran, err := s.paginator.LoadInitial(ctx, chatID)
	if err != nil {
		return err
	}
	if !ran {
		return errors.New("another load is in progress")
	}
	s.ingest.MarkChatRead(chatID)

	if typers, err := s.api.ActiveTypers(ctx, chatID); err != nil {
		s.log.Debug().Err(err).Str("chatId", chatID).Msg("typing snapshot failed")
	} else {
		s.tracker.SetActiveTypers(chatID, typers)
	}

	if c, ok := s.chats.Get(chatID); ok && !c.IsGroup() {
		if partner := c.Partner(s.self.ID); partner != nil {
			if ev, err := s.api.PresenceByUser(ctx, partner.ID); err == nil {
				s.presence.Upsert(ev)
			}
		}
	}

	if focusMessageID != "" {
		s.resolver.Request(ctx, chatID, focusMessageID)
	}
	return nil
}

// LoadOlder pulls the next older page for the active conversation. The bool
// reports whether a fetch ran.
func (s *Session) LoadOlder(ctx context.Context) (bool, error) {
	if !s.started {
		return false, ErrNotStarted
	}
	return s.paginator.LoadOlder(ctx, s.store.ActiveChat())
}

// JumpTo starts resolving a message in the active conversation.
func (s *Session) JumpTo(ctx context.Context, messageID string) error {
	if !s.started {
		return ErrNotStarted
	}
	chatID := s.store.ActiveChat()
	if chatID == "" {
		return errors.New("no active chat")
	}
	s.resolver.Request(ctx, chatID, messageID)
	return nil
}

// SendMessage publishes a text message to the active conversation. The
// message appears in the store when the broker echoes it back with its
// server-assigned id.
func (s *Session) SendMessage(content string) error {
	return s.publish(chat.TypeText, content)
}

// SendSticker publishes a sticker; the emoji travels as the content.
func (s *Session) SendSticker(emoji string) error {
	return s.publish(chat.TypeSticker, emoji)
}

func (s *Session) publish(msgType chat.MessageType, content string) error {
	if !s.started {
		return ErrNotStarted
	}
	chatID := s.store.ActiveChat()
	if chatID == "" {
		return errors.New("no active chat")
	}

	req := chat.SendMessageRequest{
		ChatID:   chatID,
		SenderID: s.self.ID,
		Type:     msgType,
		Content:  content,
	}
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	if err := s.rt.Send(realtime.SendMessageDest, body); err != nil {
		return err
	}
	s.tracker.MessageSent()
	return nil
}

// DeleteMessage removes one of the user's own messages. The store updates
// when the deletion push comes back on the chat topic.
func (s *Session) DeleteMessage(ctx context.Context, messageID string) error {
	if !s.started {
		return ErrNotStarted
	}
	return s.api.DeleteMessage(ctx, messageID)
}

// SendTyping publishes the local user's typing state. Implements the typing
// tracker's signaler contract.
func (s *Session) SendTyping(chatID string, typing bool) error {
	dest := realtime.TypingStopDest
	if typing {
		dest = realtime.TypingStartDest
	}
	body, err := json.Marshal(map[string]string{"chatId": chatID})
	if err != nil {
		return err
	}
	return s.rt.Send(dest, body)
}
