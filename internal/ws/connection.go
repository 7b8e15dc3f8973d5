package ws

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/khetumewada/WebChat/internal/models"
)

type wsConnection interface {
	Close() error
	WriteJSON(v interface{}) error
	ReadMessage() (messageType int, p []byte, err error)
}

type messageHub interface {
	Join(chatID string, user models.User) (string, chan models.Frame, error)
	Leave(chatID, connID string, userID models.UserID)
	Dispatch(chatID, connID string, user models.User, frame models.Frame)
}

// Connection is one socket of one user in one room.
type Connection struct {
	ws         wsConnection
	hub        messageHub
	chatID     string
	connID     string
	user       models.User
	logger     *slog.Logger
	fromClient chan models.Frame
	fromServer chan models.Frame
	errorCh    chan error
}

func NewConnection(
	hub messageHub,
	ws wsConnection,
	chatID string,
	user models.User,
	logger *slog.Logger,
) (*Connection, error) {
	connID, fromServer, err := hub.Join(chatID, user)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Connection{
		ws:         ws,
		hub:        hub,
		chatID:     chatID,
		connID:     connID,
		user:       user,
		logger:     logger.With("chat_id", chatID, "conn_id", connID, "user_id", user.ID),
		fromClient: make(chan models.Frame),
		fromServer: fromServer,
		errorCh:    make(chan error, 2),
	}, nil
}

func (c *Connection) ID() string {
	return c.connID
}

func (c *Connection) Handle(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		close(c.fromClient)
		close(c.errorCh)
		c.hub.Leave(c.chatID, c.connID, c.user.ID)
	}()

	var wg sync.WaitGroup
	wg.Go(func() {
		c.errorCh <- c.pumpMessages(ctx)
		cancel()
	})

	wg.Go(func() {
		c.errorCh <- c.mainLoop(ctx)
		cancel()
	})

	var err error
	select {
	case err = <-c.errorCh:
	case <-ctx.Done():
	}
	_ = c.ws.Close()
	wg.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

func (c *Connection) pumpMessages(ctx context.Context) error {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return err
		}

		frame, err := models.DecodeFrame(data)
		if err != nil {
			c.logger.Warn("dropping malformed frame", "error", err)
			continue
		}

		select {
		case c.fromClient <- frame:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Connection) mainLoop(ctx context.Context) error {
	for {
		select {
		case frame := <-c.fromClient:
			c.hub.Dispatch(c.chatID, c.connID, c.user, frame)
		case frame, ok := <-c.fromServer:
			if !ok {
				return nil
			}
			if err := c.ws.WriteJSON(frame); err != nil {
				return err
			}
		case <-ctx.Done():
			return nil
		}
	}
}
