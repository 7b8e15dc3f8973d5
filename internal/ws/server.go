package ws

import (
	"errors"
	"log"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/khetumewada/WebChat/internal/models"
)

// UserHeader carries the caller's ID. It stands in for a login session.
const UserHeader = "X-User-ID"

// CallerID returns the user a request acts for: the X-User-ID header, or
// the user query parameter for clients that cannot set headers.
func CallerID(r *http.Request) models.UserID {
	if id := r.Header.Get(UserHeader); id != "" {
		return models.UserID(id)
	}
	return models.UserID(r.URL.Query().Get("user"))
}

type Server struct {
	hub      *Hub
	dir      Directory
	logger   *slog.Logger
	upgrader *websocket.Upgrader
}

func NewServer(hub *Hub, dir Directory, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		hub:    hub,
		dir:    dir,
		logger: logger,
		upgrader: &websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for now
			},
		},
	}
}

// HandleConnections serves GET /ws/chat/{id}/.
func (s *Server) HandleConnections(w http.ResponseWriter, r *http.Request) {
	chatID := r.PathValue("id")

	user, err := s.dir.GetUser(CallerID(r))
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := s.hub.Authorize(chatID, user.ID); err != nil {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("error upgrading to websocket: %v", err)
		return
	}

	conn, err := NewConnection(s.hub, ws, chatID, user, s.logger)
	if err != nil {
		s.logger.Error("failed to join chat", "chat_id", chatID, "user_id", user.ID, "error", err)
		_ = ws.Close()
		return
	}

	s.logger.Info("connection opened", "chat_id", chatID, "user_id", user.ID, "conn_id", conn.ID())
	err = conn.Handle(r.Context())
	if err != nil && !isNormalClose(err) {
		s.logger.Warn("connection closed with error", "conn_id", conn.ID(), "error", err)
		return
	}
	s.logger.Info("connection closed", "conn_id", conn.ID())
}

func isNormalClose(err error) bool {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code == websocket.CloseNormalClosure || ce.Code == websocket.CloseGoingAway
	}
	return errors.Is(err, websocket.ErrCloseSent)
}
