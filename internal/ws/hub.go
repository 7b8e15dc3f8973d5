package ws

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/khetumewada/WebChat/internal/chat"
	"github.com/khetumewada/WebChat/internal/models"
)

var ErrForbidden = errors.New("not a member of this chat")

// Directory is the part of the user store the hub needs.
type Directory interface {
	GetUser(id models.UserID) (models.User, error)
	SetPresence(id models.UserID, presence models.Presence) error
}

type Hub struct {
	// Map of chatID -> Chat object
	chats map[string]*chat.Chat

	// Map of connectionID -> outbound frames
	conns map[string]chan models.Frame

	// Open connections per user, for presence
	online map[models.UserID]int

	dir         Directory
	historySize int
	clock       clock.Clock
	logger      *slog.Logger

	mu sync.RWMutex
}

type HubOption func(*Hub)

func WithClock(c clock.Clock) HubOption {
	return func(h *Hub) { h.clock = c }
}

func WithLogger(l *slog.Logger) HubOption {
	return func(h *Hub) { h.logger = l }
}

func NewHub(dir Directory, historySize int, opts ...HubOption) *Hub {
	h := &Hub{
		chats:       make(map[string]*chat.Chat),
		conns:       make(map[string]chan models.Frame),
		online:      make(map[models.UserID]int),
		dir:         dir,
		historySize: historySize,
		clock:       clock.New(),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Authorize reports whether userID may use chatID. Direct-message rooms are
// limited to their two participants; every other room is open.
func (h *Hub) Authorize(chatID string, userID models.UserID) error {
	if chatID == "" {
		return fmt.Errorf("empty chat id: %w", ErrForbidden)
	}
	if isDM(chatID) && !isUserInDM(userID, chatID) {
		return fmt.Errorf("chat %s: %w", chatID, ErrForbidden)
	}
	return nil
}

// Join registers a new connection of user in chatID and returns its ID and
// the channel its outbound frames arrive on.
func (h *Hub) Join(chatID string, user models.User) (string, chan models.Frame, error) {
	if err := h.Authorize(chatID, user.ID); err != nil {
		return "", nil, err
	}

	connID := uuid.NewString()
	ch := make(chan models.Frame, 100)

	h.mu.Lock()
	c := h.getOrCreateChat(chatID)
	h.conns[connID] = ch
	h.online[user.ID]++
	if h.online[user.ID] == 1 {
		h.setPresence(user.ID, true)
	}
	h.mu.Unlock()

	c.Join(connID, user.ID)
	return connID, ch, nil
}

func (h *Hub) Leave(chatID, connID string, userID models.UserID) {
	h.mu.RLock()
	c, ok := h.chats[chatID]
	h.mu.RUnlock()
	if ok {
		c.Leave(connID)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.conns[connID]; ok {
		close(ch)
		delete(h.conns, connID)
	}

	if h.online[userID] > 0 {
		h.online[userID]--
	}
	if h.online[userID] == 0 {
		delete(h.online, userID)
		h.setPresence(userID, false)
	}
}

// Dispatch handles a frame a client sent into chatID.
func (h *Hub) Dispatch(chatID, connID string, user models.User, frame models.Frame) {
	h.mu.RLock()
	c, ok := h.chats[chatID]
	h.mu.RUnlock()

	if !ok {
		return
	}

	switch f := frame.(type) {
	case models.ChatMessage:
		if strings.TrimSpace(f.Message) == "" {
			return
		}
		c.AddRecord(chat.Record{
			SenderID:  user.ID,
			Sender:    user.UserName,
			Content:   f.Message,
			Timestamp: h.clock.Now().Unix(),
		})
	case models.Typing:
		c.Typing(connID, user.UserName, f.IsTyping)
	default:
		h.logger.Warn("ignoring client frame", "chat_id", chatID, "type", frame.FrameType())
	}
}

// History returns up to count of the latest records of chatID.
func (h *Hub) History(chatID string, count int) []chat.Record {
	h.mu.RLock()
	c, ok := h.chats[chatID]
	h.mu.RUnlock()

	if !ok {
		return []chat.Record{}
	}
	return c.GetLastRecords(count)
}

func (h *Hub) getOrCreateChat(id string) *chat.Chat {
	if c, ok := h.chats[id]; ok {
		return c
	}
	c := chat.New(chat.Config{
		ID:         id,
		MaxRecords: h.historySize,
		Deliver:    h.deliver,
	})
	h.chats[id] = c
	return c
}

// Ensure makes sure chatID exists, so history and start-chat work before
// anyone has connected.
func (h *Hub) Ensure(chatID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.getOrCreateChat(chatID)
}

func (h *Hub) deliver(connID string, frame models.Frame) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ch, ok := h.conns[connID]
	if !ok {
		return
	}

	select {
	case ch <- frame:
	default:
		h.logger.Warn("dropping frame for slow connection", "conn_id", connID, "type", frame.FrameType())
	}
}

// setPresence must be called with h.mu held.
func (h *Hub) setPresence(id models.UserID, online bool) {
	p := models.Presence{Online: online, LastSeen: h.clock.Now().Unix()}
	if err := h.dir.SetPresence(id, p); err != nil {
		h.logger.Error("failed to update presence", "user_id", id, "online", online, "error", err)
	}
}

// Helpers

// DMID returns the room shared by two users.
func DMID(u1, u2 models.UserID) string {
	ids := []string{string(u1), string(u2)}
	sort.Strings(ids)
	return fmt.Sprintf("dm_%s_%s", ids[0], ids[1])
}

func isDM(chatID string) bool {
	return strings.HasPrefix(chatID, "dm_")
}

func isUserInDM(userID models.UserID, chatID string) bool {
	if !isDM(chatID) {
		return false
	}
	parts := strings.Split(chatID[3:], "_")
	if len(parts) != 2 {
		return false
	}
	return parts[0] == string(userID) || parts[1] == string(userID)
}
