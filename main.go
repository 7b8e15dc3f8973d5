package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net"
	oshttp "net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/khetumewada/WebChat/internal/api"
	"github.com/khetumewada/WebChat/internal/commands"
	"github.com/khetumewada/WebChat/internal/config"
	"github.com/khetumewada/WebChat/internal/http"
	"github.com/khetumewada/WebChat/internal/models"
	"github.com/khetumewada/WebChat/internal/session"
	"github.com/khetumewada/WebChat/internal/storage"
	"github.com/khetumewada/WebChat/internal/stubs"
	"github.com/khetumewada/WebChat/internal/ws"
)

// listeners lets tests serve on ports they already hold.
type listeners struct {
	api   net.Listener
	admin net.Listener
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:           "webchat",
		Short:         "Chat room relay and terminal client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
			return cfg.Validate()
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	root.PersistentFlags().StringVar(&cfg.Origin, "origin", cfg.Origin, "relay base URL (env WEBCHAT_ORIGIN)")

	root.AddCommand(
		newServeCmd(cfg),
		newJoinCmd(cfg),
		newSearchCmd(cfg),
		newAddUserCmd(cfg),
	)
	return root
}

func newServeCmd(cfg *config.Config) *cobra.Command {
	var seed bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the chat relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), cfg, seed, listeners{})
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&cfg.APIAddr, "addr", cfg.APIAddr, "API and websocket listen address (env WEBCHAT_ADDR)")
	flags.StringVar(&cfg.AdminAddr, "admin-addr", cfg.AdminAddr, "admin API listen address (env WEBCHAT_ADMIN_ADDR)")
	flags.StringVar(&cfg.DBFile, "db", cfg.DBFile, "user directory file (env WEBCHAT_DB)")
	flags.DurationVar(&cfg.SearchCacheTTL, "search-cache-ttl", cfg.SearchCacheTTL, "user search cache TTL (env WEBCHAT_SEARCH_CACHE_TTL)")
	flags.IntVar(&cfg.HistorySize, "history", cfg.HistorySize, "messages kept per room (env WEBCHAT_HISTORY_SIZE)")
	flags.BoolVar(&seed, "seed", false, "add demo users to an empty directory")
	return cmd
}

func newJoinCmd(cfg *config.Config) *cobra.Command {
	var chatID, userID string
	cmd := &cobra.Command{
		Use:   "join",
		Short: "Join a chat room from the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return commands.Join(cmd.Context(), commands.JoinOptions{
				Session: session.Config{
					Origin:               cfg.Origin,
					ChatID:               chatID,
					CurrentUserID:        models.UserID(userID),
					MaxReconnectAttempts: reconnectLimit(cfg.MaxReconnects),
					ReconnectStep:        cfg.ReconnectStep,
					TypingIdle:           cfg.TypingIdle,
				},
				In:  cmd.InOrStdin(),
				Out: cmd.OutOrStdout(),
			})
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&chatID, "chat", "", "chat room ID")
	flags.StringVar(&userID, "user", "", "your user ID")
	flags.DurationVar(&cfg.ReconnectStep, "reconnect-step", cfg.ReconnectStep, "reconnect backoff step (env WEBCHAT_RECONNECT_STEP)")
	flags.IntVar(&cfg.MaxReconnects, "max-reconnects", cfg.MaxReconnects, "automatic reconnect attempts, 0 disables them (env WEBCHAT_MAX_RECONNECTS)")
	flags.DurationVar(&cfg.TypingIdle, "typing-idle", cfg.TypingIdle, "quiet time before typing stops (env WEBCHAT_TYPING_IDLE)")
	_ = cmd.MarkFlagRequired("chat")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

// reconnectLimit maps the configured count onto the session setting, where
// zero would mean the default.
func reconnectLimit(n int) int {
	if n == 0 {
		return session.NoReconnects
	}
	return n
}

func newSearchCmd(cfg *config.Config) *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Search users and print the result dropdown",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return commands.Search(cmd.Context(), cfg.Origin, userID, strings.Join(args, " "), cmd.OutOrStdout(), slog.Default())
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "your user ID")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newAddUserCmd(cfg *config.Config) *cobra.Command {
	var req api.AddUserRequest
	cmd := &cobra.Command{
		Use:   "add-user NAME",
		Short: "Create a user on a running relay",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Username = args[0]
			return commands.AddUser(cmd.Context(), cfg.AdminAddr, req, cmd.OutOrStdout())
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&req.FullName, "full-name", "", "full name")
	flags.StringVar(&req.ProfileImage, "profile-image", "", "profile image URL")
	flags.StringVar(&cfg.AdminAddr, "admin-addr", cfg.AdminAddr, "admin API address (env WEBCHAT_ADMIN_ADDR)")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, seed bool, ls listeners) error {
	bbStorage, err := storage.NewBboltStorage(cfg.DBFile)
	if err != nil {
		return err
	}
	defer func() { _ = bbStorage.Close() }()

	if seed {
		if err := stubs.Seed(bbStorage); err != nil {
			return err
		}
	}

	logger := slog.Default()
	hub := ws.NewHub(bbStorage, cfg.HistorySize, ws.WithLogger(logger))
	wsServer := ws.NewServer(hub, bbStorage, logger)
	apiHandlers := api.New(ctx, bbStorage, hub, api.Config{
		HistorySize:    cfg.HistorySize,
		SearchCacheTTL: cfg.SearchCacheTTL,
		Logger:         logger,
	})

	adminServer := http.NewAdminServer(api.NewAdminHandler(bbStorage, logger), cfg.AdminAddr)
	apiServer := http.NewAPIServer(apiHandlers, wsServer, cfg.APIAddr)

	g, gCtx := errgroup.WithContext(ctx)

	// Start Admin Server
	g.Go(func() error {
		var err error
		if ls.admin != nil {
			err = adminServer.Serve(ls.admin)
		} else {
			err = adminServer.Start()
		}
		if err != nil && err != oshttp.ErrServerClosed {
			return err
		}
		return nil
	})

	// Start API Server
	g.Go(func() error {
		var err error
		if ls.api != nil {
			err = apiServer.Serve(ls.api)
		} else {
			err = apiServer.Start()
		}
		if err != nil && err != oshttp.ErrServerClosed {
			return err
		}
		return nil
	})

	// Wait for context cancellation (signal)
	g.Go(func() error {
		<-gCtx.Done()
		log.Println("Shutting down servers...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := adminServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("Admin server shutdown error: %v", err)
		}
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("API server shutdown error: %v", err)
		}
		return nil
	})

	return g.Wait()
}

func run(ctx context.Context, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	root := newRootCmd(cfg)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Application error: %v", err)
	}
}
