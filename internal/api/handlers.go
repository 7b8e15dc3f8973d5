package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/c-pro/geche"

	"github.com/khetumewada/WebChat/internal/chat"
	"github.com/khetumewada/WebChat/internal/content"
	"github.com/khetumewada/WebChat/internal/models"
	"github.com/khetumewada/WebChat/internal/ws"
)

const (
	searchLimit     = 10
	historyTimeFmt  = "03:04 PM"
	defaultCacheTTL = 30 * time.Second
)

type Directory interface {
	GetUser(id models.UserID) (models.User, error)
	SearchUsers(query string, exclude models.UserID, limit int) ([]models.User, error)
	Version() uint64
}

type Rooms interface {
	Authorize(chatID string, userID models.UserID) error
	Ensure(chatID string)
	History(chatID string, count int) []chat.Record
}

type API struct {
	dir         Directory
	rooms       Rooms
	historySize int
	searchCache geche.Geche[string, []models.SearchUser]
	logger      *slog.Logger
}

type Config struct {
	HistorySize    int
	SearchCacheTTL time.Duration
	Logger         *slog.Logger
}

// New wires the handlers. ctx bounds the search cache's cleanup goroutine.
func New(ctx context.Context, dir Directory, rooms Rooms, config Config) *API {
	ttl := config.SearchCacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &API{
		dir:         dir,
		rooms:       rooms,
		historySize: config.HistorySize,
		searchCache: geche.NewMapTTLCache[string, []models.SearchUser](ctx, ttl, time.Minute),
		logger:      logger,
	}
}

type ctxKey struct{}

// RequireUser resolves the caller and rejects unknown users.
func (a *API) RequireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := a.dir.GetUser(ws.CallerID(r))
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, user)))
	}
}

func caller(r *http.Request) models.User {
	u, _ := r.Context().Value(ctxKey{}).(models.User)
	return u
}

// SearchUsersHandler serves GET /api/search-users/?q=.
func (a *API) SearchUsersHandler(w http.ResponseWriter, r *http.Request) {
	me := caller(r)
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		a.writeJSON(w, models.SearchResponse{Users: []models.SearchUser{}})
		return
	}

	key := fmt.Sprintf("%d|%s|%s", a.dir.Version(), me.ID, strings.ToLower(q))
	if cached, err := a.searchCache.Get(key); err == nil {
		a.writeJSON(w, models.SearchResponse{Users: cached})
		return
	}

	users, err := a.dir.SearchUsers(q, me.ID, searchLimit)
	if err != nil {
		a.logger.Error("user search failed", "query", q, "error", err)
		http.Error(w, "Search failed", http.StatusInternalServerError)
		return
	}

	results := make([]models.SearchUser, 0, len(users))
	for _, u := range users {
		results = append(results, toSearchUser(u))
	}
	a.searchCache.Set(key, results)

	a.writeJSON(w, models.SearchResponse{Users: results})
}

func toSearchUser(u models.User) models.SearchUser {
	fullName := u.FullName
	if fullName == "" {
		fullName = u.UserName
	}
	res := models.SearchUser{
		ID:       u.ID,
		UserName: u.UserName,
		FullName: fullName,
		Initials: content.Initials(u.FullName, u.UserName),
		Online:   u.Presence.Online,
	}
	if u.ProfileImage != "" {
		img := u.ProfileImage
		res.ProfileImage = &img
	}
	return res
}

// HistoryHandler serves GET /api/chat/{id}/messages/.
func (a *API) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	me := caller(r)
	chatID := r.PathValue("id")

	if err := a.rooms.Authorize(chatID, me.ID); err != nil {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	records := a.rooms.History(chatID, a.historySize)
	messages := make([]models.HistoryMessage, 0, len(records))
	for _, rec := range records {
		messages = append(messages, models.HistoryMessage{
			ID:        int64(rec.Seq) + 1,
			Sender:    rec.Sender,
			Content:   rec.Content,
			Timestamp: time.Unix(rec.Timestamp, 0).UTC().Format(historyTimeFmt),
			Own:       rec.SenderID == me.ID,
		})
	}

	a.writeJSON(w, models.HistoryResponse{Messages: messages})
}

// StartChatHandler serves GET /start-chat/{id}/ and redirects to the direct
// conversation with that user.
func (a *API) StartChatHandler(w http.ResponseWriter, r *http.Request) {
	me := caller(r)
	other, err := a.dir.GetUser(models.UserID(r.PathValue("id")))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			http.Error(w, "User not found", http.StatusNotFound)
			return
		}
		a.logger.Error("failed to load user", "user_id", r.PathValue("id"), "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	if other.ID == me.ID {
		http.Error(w, "You cannot chat with yourself.", http.StatusBadRequest)
		return
	}

	chatID := ws.DMID(me.ID, other.ID)
	a.rooms.Ensure(chatID)
	a.logger.Info("started conversation", "chat_id", chatID, "user_id", me.ID, "with", other.ID)
	http.Redirect(w, r, "/chat/"+chatID+"/", http.StatusFound)
}

func (a *API) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Error("failed to encode response", "error", err)
	}
}
