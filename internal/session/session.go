package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"

	"github.com/khetumewada/WebChat/internal/models"
	"github.com/khetumewada/WebChat/internal/view"
)

const (
	DefaultMaxReconnectAttempts = 5
	// NoReconnects turns automatic reconnects off. Zero means the default.
	NoReconnects = -1
	DefaultReconnectStep        = 3 * time.Second
	DefaultTypingIdle           = time.Second

	writeWait = 10 * time.Second
)

type Config struct {
	// Origin is the scheme and host of the hosting page, e.g. https://chat.example.com.
	Origin        string
	ChatID        string
	CurrentUserID models.UserID

	MaxReconnectAttempts int
	ReconnectStep        time.Duration
	TypingIdle           time.Duration
}

func (c *Config) Validate() error {
	if c.ChatID == "" {
		return errors.New("chat id is required")
	}
	if c.CurrentUserID == "" {
		return errors.New("current user id is required")
	}
	if c.MaxReconnectAttempts == 0 {
		c.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if c.MaxReconnectAttempts < NoReconnects {
		return errors.New("max reconnect attempts must be positive or NoReconnects")
	}
	if c.ReconnectStep == 0 {
		c.ReconnectStep = DefaultReconnectStep
	}
	if c.TypingIdle == 0 {
		c.TypingIdle = DefaultTypingIdle
	}
	if c.ReconnectStep < 0 || c.TypingIdle < 0 {
		return errors.New("durations must be positive")
	}
	return nil
}

// Hooks are called from the session loop after the room has been updated.
type Hooks struct {
	OnStatus  func(view.Status)
	OnMessage func(view.Message)
	OnTyping  func(view.Typing)
}

type Option func(*Session)

func WithClock(c clock.Clock) Option {
	return func(s *Session) { s.clock = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

func WithHooks(h Hooks) Option {
	return func(s *Session) { s.hooks = h }
}

// Session keeps a single socket to one chat room alive and mirrors what
// happens on it into a view.Room. All session state is owned by the loop
// started with Run; the exported methods only post events to it.
type Session struct {
	cfg    Config
	url    string
	dialer Dialer
	room   *view.Room
	clock  clock.Clock
	logger *slog.Logger
	hooks  Hooks

	events chan event
	done   chan struct{}

	// postMu orders post against teardown: once closed is set nothing new
	// lands in events.
	postMu sync.RWMutex
	closed bool

	// Loop-owned.
	state     models.ConnectionState
	attempts  int
	exhausted bool
	conn      Conn
	gen       uint64
	retry     *clock.Timer
	typing    *debouncer

	stateSeen    atomic.Int32
	attemptsSeen atomic.Int32
}

func New(cfg Config, dialer Dialer, room *view.Room, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	u, err := RoomURL(cfg.Origin, cfg.ChatID)
	if err != nil {
		return nil, err
	}

	s := &Session{
		cfg:    cfg,
		url:    u,
		dialer: dialer,
		room:   room,
		clock:  clock.New(),
		logger: slog.Default(),
		events: make(chan event, 64),
		done:   make(chan struct{}),
		state:  models.StateDisconnected,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("chat_id", cfg.ChatID)
	s.typing = newDebouncer(s.clock, cfg.TypingIdle, func(token uint64) {
		s.post(typingIdleEvent{token: token})
	})
	return s, nil
}

// URL is the socket address the session connects to.
func (s *Session) URL() string {
	return s.url
}

func (s *Session) State() models.ConnectionState {
	return models.ConnectionState(s.stateSeen.Load())
}

// Attempts is the number of consecutive failed connections since the last
// successful open.
func (s *Session) Attempts() int {
	return int(s.attemptsSeen.Load())
}

// Run connects and processes events until ctx is done. On return every
// timer is stopped and the socket is closed.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer s.teardown()

	s.connect(ctx)

	for {
		select {
		case ev := <-s.events:
			s.handle(ctx, ev)
		case <-ctx.Done():
			return nil
		}
	}
}

// Submit sends the composer text as a chat message and clears the
// composer. It does nothing unless the socket is open and the trimmed text
// is non-empty, and reports whether a message was sent.
func (s *Session) Submit() bool {
	reply := make(chan bool, 1)
	if !s.post(submitEvent{reply: reply}) {
		return false
	}
	select {
	case ok := <-reply:
		return ok
	case <-s.done:
		return false
	}
}

// Keystroke records the composer value after an input event and
// broadcasts that the local user is typing.
func (s *Session) Keystroke(value string) {
	s.post(keystrokeEvent{value: value})
}

// Reconnect is the manual retry control. It resets the attempt counter and
// connects at once unless a socket is already open or opening.
func (s *Session) Reconnect() {
	s.post(reconnectEvent{})
}

type event interface{}

type (
	dialedEvent struct {
		gen  uint64
		conn Conn
		err  error
	}
	frameEvent struct {
		gen  uint64
		data []byte
	}
	closedEvent struct {
		gen uint64
		err error
	}
	retryEvent struct {
		gen uint64
	}
	typingIdleEvent struct {
		token uint64
	}
	submitEvent struct {
		reply chan bool
	}
	keystrokeEvent struct {
		value string
	}
	reconnectEvent struct{}
)

func (s *Session) post(ev event) bool {
	s.postMu.RLock()
	defer s.postMu.RUnlock()
	if s.closed {
		return false
	}
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	}
}

func (s *Session) handle(ctx context.Context, ev event) {
	switch ev := ev.(type) {
	case dialedEvent:
		s.handleDialed(ev)
	case frameEvent:
		if ev.gen == s.gen && s.conn != nil {
			s.handleFrame(ev.data)
		}
	case closedEvent:
		if ev.gen != s.gen || s.conn == nil {
			return
		}
		s.logger.Info("connection closed", "error", ev.err)
		_ = s.conn.Close()
		s.conn = nil
		s.handleClose()
	case retryEvent:
		if ev.gen != s.gen || s.state != models.StateDisconnected {
			return
		}
		s.retry = nil
		s.connect(ctx)
	case reconnectEvent:
		if s.state != models.StateDisconnected {
			return
		}
		s.stopRetry()
		s.setAttempts(0)
		s.exhausted = false
		s.connect(ctx)
	case submitEvent:
		ev.reply <- s.handleSubmit()
	case keystrokeEvent:
		s.handleKeystroke(ev.value)
	case typingIdleEvent:
		if !s.typing.fired(ev.token) {
			return
		}
		if s.state == models.StateConnected {
			_ = s.send(models.Typing{IsTyping: false})
		}
	default:
		s.logger.Error("unhandled session event", "event", fmt.Sprintf("%T", ev))
	}
}

func (s *Session) connect(ctx context.Context) {
	s.gen++
	gen := s.gen
	s.setState(models.StateConnecting)
	s.logger.Info("connecting", "url", s.url, "attempt", s.attempts)

	go func() {
		conn, err := s.dialer.Dial(ctx, s.url)
		if !s.post(dialedEvent{gen: gen, conn: conn, err: err}) && conn != nil {
			_ = conn.Close()
		}
	}()
}

func (s *Session) handleDialed(ev dialedEvent) {
	if ev.gen != s.gen {
		if ev.conn != nil {
			_ = ev.conn.Close()
		}
		return
	}
	if ev.err != nil {
		s.logger.Warn("connect failed", "error", ev.err)
		s.handleClose()
		return
	}

	s.conn = ev.conn
	s.exhausted = false
	s.setAttempts(0)
	s.setState(models.StateConnected)
	s.logger.Info("connected")

	go s.readPump(ev.gen, ev.conn)
}

func (s *Session) readPump(gen uint64, conn Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.post(closedEvent{gen: gen, err: err})
			return
		}
		if !s.post(frameEvent{gen: gen, data: data}) {
			return
		}
	}
}

// handleClose applies the linear backoff: the Nth consecutive failure
// waits N*ReconnectStep, and after MaxReconnectAttempts the session stays
// disconnected until Reconnect is called.
func (s *Session) handleClose() {
	s.typing.stop()
	attempts := s.attempts + 1

	if attempts > s.cfg.MaxReconnectAttempts {
		s.exhausted = true
		s.setAttempts(attempts)
		s.setState(models.StateDisconnected)
		s.logger.Warn("giving up reconnecting", "attempts", attempts-1)
		return
	}

	delay := time.Duration(attempts) * s.cfg.ReconnectStep
	gen := s.gen
	s.retry = s.clock.AfterFunc(delay, func() {
		s.post(retryEvent{gen: gen})
	})
	s.setAttempts(attempts)
	s.setState(models.StateDisconnected)
	s.logger.Info("reconnect scheduled", "attempt", attempts, "delay", delay)
}

func (s *Session) handleFrame(data []byte) {
	frame, err := models.DecodeFrame(data)
	if err != nil {
		s.logger.Warn("dropping frame", "error", err)
		return
	}

	switch f := frame.(type) {
	case models.ChatMessage:
		own := f.SenderID != "" && f.SenderID == s.cfg.CurrentUserID
		s.room.AppendMessage(f.Message, own, s.clock.Now())
		if s.hooks.OnMessage != nil {
			msgs := s.room.Messages()
			s.hooks.OnMessage(msgs[len(msgs)-1])
		}
	case models.TypingIndicator:
		s.room.SetTyping(f.IsTyping, f.User)
		if s.hooks.OnTyping != nil {
			s.hooks.OnTyping(s.room.Typing())
		}
	default:
		s.logger.Warn("dropping frame", "type", frame.FrameType())
	}
}

func (s *Session) handleSubmit() bool {
	text := strings.TrimSpace(s.room.Input())
	if text == "" || s.state != models.StateConnected {
		return false
	}
	if err := s.send(models.ChatMessage{Message: text}); err != nil {
		return false
	}
	s.room.SetInput("")
	return true
}

func (s *Session) handleKeystroke(value string) {
	s.room.SetInput(value)
	if s.state != models.StateConnected {
		return
	}
	s.typing.reset()
	_ = s.send(models.Typing{IsTyping: true})
}

func (s *Session) send(frame models.Frame) error {
	if s.conn == nil {
		return errors.New("not connected")
	}
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		// The read pump notices the broken socket and drives the reconnect.
		s.logger.Warn("write failed", "type", frame.FrameType(), "error", err)
		return err
	}
	return nil
}

func (s *Session) setState(state models.ConnectionState) {
	s.state = state
	s.stateSeen.Store(int32(state))
	status := view.Status{State: state, CanRetry: state == models.StateDisconnected && s.exhausted}
	s.room.SetStatus(status)
	if s.hooks.OnStatus != nil {
		s.hooks.OnStatus(status)
	}
}

func (s *Session) setAttempts(n int) {
	s.attempts = n
	s.attemptsSeen.Store(int32(n))
}

func (s *Session) stopRetry() {
	if s.retry != nil {
		s.retry.Stop()
		s.retry = nil
	}
}

func (s *Session) teardown() {
	close(s.done)
	s.postMu.Lock()
	s.closed = true
	s.postMu.Unlock()
	s.drain()

	s.stopRetry()
	s.typing.stop()
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	s.setState(models.StateDisconnected)
	s.logger.Debug("session closed")
}

// drain discards events queued before teardown. Sockets from dials that
// finished too late are closed here since the loop will never see them.
func (s *Session) drain() {
	for {
		select {
		case ev := <-s.events:
			switch ev := ev.(type) {
			case dialedEvent:
				if ev.conn != nil {
					_ = ev.conn.Close()
				}
			case submitEvent:
				ev.reply <- false
			}
		default:
			return
		}
	}
}
