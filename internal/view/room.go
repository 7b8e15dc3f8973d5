// Package view holds the headless page model of a chat room: the message
// list, typing indicator, connection status and composer. Callers mutate it
// through the same operations the page script performs on the DOM and
// render it with Render.
package view

import (
	"strings"
	"sync"
	"time"

	"github.com/khetumewada/WebChat/internal/content"
	"github.com/khetumewada/WebChat/internal/models"
)

// TimeFormat is the hour:minute display stamp of a message.
const TimeFormat = "3:04 PM"

type Direction string

const (
	DirectionSent     Direction = "sent"
	DirectionReceived Direction = "received"
)

// Message is one rendered entry of the message list.
type Message struct {
	Text      string // plain text as received
	HTML      string // escaped body, possibly with <mark> highlights
	Time      string
	Direction Direction
	Hidden    bool
}

type Typing struct {
	Text    string
	Visible bool
}

type Status struct {
	State models.ConnectionState
	// CanRetry is set once automatic reconnects are exhausted.
	CanRetry bool
}

// InputEnabled reports whether the composer and send button accept input.
func (s Status) InputEnabled() bool {
	return s.State == models.StateConnected
}

type Room struct {
	mu        sync.RWMutex
	messages  []Message
	scrollTop int
	typing    Typing
	status    Status
	input     string
	query     string
}

func NewRoom() *Room {
	return &Room{}
}

// AppendMessage is the only path by which message text reaches the room.
// It escapes text, stamps the local time and scrolls to the newest entry.
func (r *Room) AppendMessage(text string, own bool, at time.Time) {
	dir := DirectionReceived
	if own {
		dir = DirectionSent
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.messages = append(r.messages, r.filtered(Message{
		Text:      text,
		Time:      at.Format(TimeFormat),
		Direction: dir,
	}))
	r.scrollTop = len(r.messages)
}

// AppendHistory adds a message whose display time was stamped elsewhere.
func (r *Room) AppendHistory(text string, own bool, stamp string) {
	dir := DirectionReceived
	if own {
		dir = DirectionSent
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.messages = append(r.messages, r.filtered(Message{
		Text:      text,
		Time:      stamp,
		Direction: dir,
	}))
	r.scrollTop = len(r.messages)
}

// SetTyping shows or hides the single typing indicator. The latest caller
// wins; hiding keeps the previous label.
func (r *Room) SetTyping(show bool, label string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if show {
		r.typing.Text = label + " is typing..."
	}
	r.typing.Visible = show
}

func (r *Room) SetStatus(s Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = s
}

// Filter hides messages that do not contain query and highlights the
// matches in the rest. Highlighting always starts again from the escaped
// plain text. The filter stays active for messages appended later.
func (r *Room) Filter(query string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.query = strings.TrimSpace(query)
	for i := range r.messages {
		r.messages[i] = r.filtered(r.messages[i])
	}
}

// filtered renders m against the current query. Caller holds r.mu.
func (r *Room) filtered(m Message) Message {
	html, ok := content.Match(m.Text, r.query)
	m.Hidden = !ok
	m.HTML = html
	return m
}

func (r *Room) SetInput(value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.input = value
}

func (r *Room) Input() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.input
}

func (r *Room) Messages() []Message {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}

// Visible returns the plain text of every message not hidden by the filter.
func (r *Room) Visible() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for _, m := range r.messages {
		if !m.Hidden {
			out = append(out, m.Text)
		}
	}
	return out
}

func (r *Room) Typing() Typing {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.typing
}

func (r *Room) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// ScrollTop is the index just past the last revealed message.
func (r *Room) ScrollTop() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.scrollTop
}
