package http

import (
	"context"
	"log"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/khetumewada/WebChat/internal/api"
	"github.com/khetumewada/WebChat/internal/ws"
)

type APIServer struct {
	server *http.Server
	wg     sync.WaitGroup
}

func NewAPIServer(apiHandlers *api.API, wsServer *ws.Server, addr string) *APIServer {
	mux := http.NewServeMux()

	// API endpoints
	mux.HandleFunc("GET /api/search-users/", apiHandlers.RequireUser(apiHandlers.SearchUsersHandler))
	mux.HandleFunc("GET /api/chat/{id}/messages/", apiHandlers.RequireUser(apiHandlers.HistoryHandler))
	mux.HandleFunc("GET /start-chat/{id}/", apiHandlers.RequireUser(apiHandlers.StartChatHandler))

	// WebSocket endpoint
	mux.HandleFunc("GET /ws/chat/{id}/", wsServer.HandleConnections)

	if addr == "" {
		addr = ":8080"
	}

	return &APIServer{
		server: &http.Server{
			Addr:     addr,
			Handler:  mux,
			ErrorLog: slog.NewLogLogger(slog.Default().Handler(), slog.LevelWarn),
		},
	}
}

func (s *APIServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *APIServer) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown.
func (s *APIServer) Serve(ln net.Listener) error {
	log.Printf("Server started on %s", ln.Addr())
	s.wg.Add(1)
	defer s.wg.Done()

	if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *APIServer) Shutdown(ctx context.Context) error {
	defer s.wg.Wait()
	return s.server.Shutdown(ctx)
}
