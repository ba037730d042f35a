// cmd/chat/main.go
// Terminal chat client. Signs in, connects to the broker and drives the
// conversation from stdin:
//
//	/open <n> [messageId]  open the n-th chat, optionally jumping to a message
//	/older                 load the next older page
//	/jump <messageId>      jump to a message in the open chat
//	/delete <messageId>    delete one of your messages
//	/sticker <emoji>       send a sticker
//	/unread                show unread counters
//	/who                   show who is online and typing
//	/search <keyword>      filter the chat list
//	/quit                  exit
//
// Any other input is sent to the open chat as a text message.
package main

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/TuongNguyen09/web-chat/internal/chat"
	"github.com/TuongNguyen09/web-chat/internal/config"
	"github.com/TuongNguyen09/web-chat/internal/session"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := newLogger(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, log)
	}

	policy := chat.OrderArrival
	if cfg.OrderPolicy == "timestamp" {
		policy = chat.OrderTimestamp
	}

	sess := session.New(session.Options{
		APIBaseURL:       cfg.APIBaseURL,
		WSURL:            cfg.WSURL,
		Email:            cfg.Email,
		Password:         cfg.Password,
		PageSize:         cfg.PageSize,
		MinFetchDuration: cfg.MinFetchDuration,
		TypingTimeout:    cfg.TypingTimeout,
		ReconnectDelay:   cfg.ReconnectDelay,
		OrderPolicy:      policy,
	}, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := sess.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("session start failed")
	}
	defer sess.Close()

	app := &app{sess: sess, log: log, out: os.Stdout}
	app.unsubscribe = sess.Store().Subscribe(app.onStoreChange)
	defer app.unsubscribe()

	fmt.Fprintf(app.out, "Signed in as %s\n\n", sess.Self().FullName)
	app.printChats(sess.ChatList().Chats())

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Fprint(app.out, "> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" {
			return
		}
		app.handle(ctx, line)
	}
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(lvl).
		With().Timestamp().Logger()
}

func serveMetrics(addr string, log zerolog.Logger) {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	log.Info().Str("addr", addr).Msg("metrics listener up")
	if err := http.ListenAndServe(addr, r); err != nil {
		log.Error().Err(err).Msg("metrics listener failed")
	}
}

type app struct {
	sess        *session.Session
	log         zerolog.Logger
	out         *os.File
	unsubscribe func()
}

// onStoreChange re-renders the tail of the open conversation. Store
// callbacks run on whatever goroutine mutated it; rendering is just writes
// to stdout, so no coordination is needed here.
func (a *app) onStoreChange() {
	if a.sess.Store().ActiveChat() == "" {
		return
	}
	if a.sess.Paginator().LoadingOlder() {
		fmt.Fprintln(a.out, "loading older messages…")
	}
}

func (a *app) handle(ctx context.Context, line string) {
	if !strings.HasPrefix(line, "/") {
		// Composing: the draft notifies typing, sending clears it.
		a.sess.Tracker().InputChanged(line)
		if err := a.sess.SendMessage(line); err != nil {
			fmt.Fprintf(a.out, "send failed: %v\n", err)
		}
		return
	}

	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch cmd {
	case "/open":
		a.open(ctx, rest)
	case "/older":
		a.older(ctx)
	case "/jump":
		if rest == "" {
			fmt.Fprintln(a.out, "usage: /jump <messageId>")
			return
		}
		if err := a.sess.JumpTo(ctx, rest); err != nil {
			fmt.Fprintf(a.out, "jump failed: %v\n", err)
		}
	case "/delete":
		if rest == "" {
			fmt.Fprintln(a.out, "usage: /delete <messageId>")
			return
		}
		if err := a.sess.DeleteMessage(ctx, rest); err != nil {
			fmt.Fprintf(a.out, "delete failed: %v\n", err)
		}
	case "/sticker":
		if rest == "" {
			fmt.Fprintln(a.out, "usage: /sticker <emoji>")
			return
		}
		if err := a.sess.SendSticker(rest); err != nil {
			fmt.Fprintf(a.out, "send failed: %v\n", err)
		}
	case "/unread":
		a.printUnread()
	case "/who":
		a.printWho()
	case "/search":
		a.printChats(a.sess.ChatList().Filter(rest, a.sess.Self().ID))
	default:
		fmt.Fprintf(a.out, "unknown command %s\n", cmd)
	}
}

func (a *app) open(ctx context.Context, args string) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		fmt.Fprintln(a.out, "usage: /open <n> [messageId]")
		return
	}

	chats := a.sess.ChatList().Chats()
	idx, err := strconv.Atoi(fields[0])
	if err != nil || idx < 1 || idx > len(chats) {
		fmt.Fprintf(a.out, "no chat #%s\n", fields[0])
		return
	}
	target := chats[idx-1]

	focus := ""
	if len(fields) > 1 {
		focus = fields[1]
	}

	if err := a.sess.Open(ctx, target.ID, focus); err != nil {
		fmt.Fprintf(a.out, "open failed: %v\n", err)
		return
	}
	fmt.Fprintf(a.out, "— %s —\n", target.Title(a.sess.Self().ID))
	a.printMessages()
}

func (a *app) older(ctx context.Context) {
	ran, err := a.sess.LoadOlder(ctx)
	if err != nil {
		fmt.Fprintf(a.out, "load failed: %v\n", err)
		return
	}
	if !ran {
		fmt.Fprintln(a.out, "nothing more to load")
		return
	}
	a.printMessages()
}

func (a *app) printMessages() {
	msgs := a.sess.Store().Messages()
	hints := chat.RenderHints(msgs)
	selfID := a.sess.Self().ID

	for i, m := range msgs {
		if hints[i].ShowDateDivider {
			fmt.Fprintf(a.out, "  ─── %s ───\n", m.SentAt.Local().Format("Mon, Jan 2"))
		}
		name := "?"
		if m.Sender != nil {
			name = m.Sender.FullName
			if m.Sender.ID == selfID {
				name = "you"
			}
		}
		if hints[i].FirstFromSender {
			fmt.Fprintf(a.out, "%s %s:\n", m.SentAt.Local().Format("15:04"), name)
		}
		body := m.Content
		if body == "" && len(m.Attachments) > 0 {
			body = fmt.Sprintf("[%d attachment(s)]", len(m.Attachments))
		}
		fmt.Fprintf(a.out, "  %s  (%s)\n", body, m.ID)
	}

	pg := a.sess.Store().Pagination()
	if pg.HighestPageLoaded < pg.TotalPages {
		fmt.Fprintf(a.out, "  … %d older page(s), /older to load\n", pg.TotalPages-pg.HighestPageLoaded)
	}
}

func (a *app) printChats(chats []chat.Chat) {
	selfID := a.sess.Self().ID
	for i, c := range chats {
		badge := ""
		if n := a.sess.ChatList().Unread(c.ID); n > 0 {
			badge = fmt.Sprintf(" (%d unread)", n)
		}
		fmt.Fprintf(a.out, "%2d. %-24s %s%s\n", i+1, c.Title(selfID), chat.PreviewText(c.LastMessage, selfID), badge)
	}
}

func (a *app) printUnread() {
	total := a.sess.ChatList().TotalUnread()
	fmt.Fprintf(a.out, "%d unread in total\n", total)
	for _, c := range a.sess.ChatList().Chats() {
		if n := a.sess.ChatList().Unread(c.ID); n > 0 {
			fmt.Fprintf(a.out, "  %s: %d\n", c.Title(a.sess.Self().ID), n)
		}
	}
}

func (a *app) printWho() {
	online := a.sess.Presence().Online()
	fmt.Fprintf(a.out, "online: %s\n", strings.Join(online, ", "))
	if active := a.sess.Store().ActiveChat(); active != "" {
		if typers := a.sess.Tracker().Typers(active); len(typers) > 0 {
			fmt.Fprintf(a.out, "typing: %s\n", strings.Join(typers, ", "))
		}
	}
}
