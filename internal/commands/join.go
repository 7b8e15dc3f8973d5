package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/khetumewada/WebChat/internal/backend"
	"github.com/khetumewada/WebChat/internal/models"
	"github.com/khetumewada/WebChat/internal/search"
	"github.com/khetumewada/WebChat/internal/session"
	"github.com/khetumewada/WebChat/internal/view"
	"github.com/khetumewada/WebChat/internal/ws"
)

type JoinOptions struct {
	Session session.Config
	In      io.Reader
	Out     io.Writer
	Logger  *slog.Logger
	// Dialer overrides the websocket dialer.
	Dialer session.Dialer
}

// console serializes writes from the session loop and the input loop.
type console struct {
	mu  sync.Mutex
	out io.Writer
}

func (c *console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.out, format, args...)
}

// Join runs an interactive terminal client for one room. Every input line
// is typed into the composer and submitted. Lines starting with a slash are
// commands:
//
//	/search TEXT   filter the message list
//	/users TEXT    search users
//	/open N        start a conversation with result N
//	/reconnect     retry after automatic reconnects gave up
//	/quit          leave
func Join(ctx context.Context, opts JoinOptions) error {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	con := &console{out: opts.Out}
	userID := string(opts.Session.CurrentUserID)

	client, err := backend.New(opts.Session.Origin, backend.WithHeader(ws.UserHeader, userID))
	if err != nil {
		return err
	}

	room := view.NewRoom()
	if history, err := client.History(ctx, opts.Session.ChatID); err != nil {
		logger.Warn("failed to load history", "chat_id", opts.Session.ChatID, "error", err)
	} else {
		for _, m := range history {
			room.AppendHistory(m.Content, m.Own, m.Timestamp)
		}
		for _, m := range room.Messages() {
			con.printf("%s\n", formatMessage(m))
		}
	}

	dialer := opts.Dialer
	if dialer == nil {
		dialer = session.WebsocketDialer{Header: map[string][]string{ws.UserHeader: {userID}}}
	}

	sess, err := session.New(opts.Session, dialer, room,
		session.WithLogger(logger),
		session.WithHooks(session.Hooks{
			OnStatus: func(s view.Status) {
				con.printf("-- %s\n", formatStatus(s))
			},
			OnMessage: func(m view.Message) {
				con.printf("%s\n", formatMessage(m))
			},
			OnTyping: func(t view.Typing) {
				if t.Visible {
					con.printf("   %s\n", t.Text)
				}
			},
		}),
	)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	dropdown := view.NewDropdown()
	users := search.NewController(client, dropdown, func(href string) {
		chatID, err := client.Open(ctx, href)
		if err != nil {
			con.printf("!! %v\n", err)
			return
		}
		con.printf("-- conversation ready: rejoin with --chat %s\n", chatID)
	}, logger)

	// The input loop is not joined: a blocked read must not hold up
	// shutdown.
	go func() {
		defer cancel()
		scanner := bufio.NewScanner(opts.In)
		for scanner.Scan() {
			if quit := handleLine(ctx, scanner.Text(), sess, room, users, dropdown, con); quit {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			logger.Error("failed to read input", "error", err)
		}
	}()

	return sess.Run(ctx)
}

func handleLine(ctx context.Context, line string, sess *session.Session, room *view.Room,
	users *search.Controller, dropdown *view.Dropdown, con *console) bool {
	cmd, arg, _ := strings.Cut(line, " ")
	switch cmd {
	case "/quit":
		return true
	case "/reconnect":
		sess.Reconnect()
	case "/search":
		room.Filter(arg)
		for _, m := range room.Messages() {
			if !m.Hidden {
				con.printf("%s\n", formatMessage(m))
			}
		}
	case "/users":
		users.Input(ctx, arg)
		users.Wait()
		for i, row := range dropdown.Shown() {
			if row.Href == "" {
				con.printf("   %s\n", row.HTML)
				continue
			}
			con.printf("   %d) %s\n", i+1, row.Href)
		}
	case "/open":
		n, err := strconv.Atoi(strings.TrimSpace(arg))
		if err != nil || !users.Select(n-1) {
			con.printf("!! no such result: %q\n", arg)
		}
	default:
		sess.Keystroke(line)
		if !sess.Submit() && strings.TrimSpace(line) != "" {
			con.printf("!! not sent: %s\n", formatStatus(room.Status()))
		}
	}
	return false
}

func formatMessage(m view.Message) string {
	arrow := "<"
	if m.Direction == view.DirectionSent {
		arrow = ">"
	}
	return fmt.Sprintf("[%s] %s %s", m.Time, arrow, m.Text)
}

func formatStatus(s view.Status) string {
	if s.State == models.StateDisconnected && s.CanRetry {
		return "disconnected (type /reconnect to retry)"
	}
	return s.State.String()
}
