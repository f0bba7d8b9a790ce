package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"cabotin-go/internal/auth"
	"cabotin-go/internal/chat"
	"cabotin-go/internal/game"
	"cabotin-go/internal/logging"
)

var serveConsole bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the game dashboard",
	Long: `Load the word model, migrate the database and serve the dashboard API.
With --console, chat lines of the form "nick: message" are read from stdin.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveConsole, "console", false, "read chat lines from stdin")
	rootCmd.AddCommand(serveCmd)
}

func newChatHandler(service game.GameService) *chat.Handler {
	return chat.NewHandler(service, chat.Options{
		BotName:     cfg.BotName,
		AwakeWindow: cfg.AwakeWindow,
		Duration:    cfg.GameDuration,
		Logger:      logger,
	})
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	service, cleanup, err := newGameService(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	authService := auth.NewService([]byte(cfg.AdminJWTSecret), cfg.AdminJWTExpiration)
	if !authService.Enabled() {
		logger.Warn("ADMIN_JWT_SECRET is empty, admin endpoints are disabled")
	}

	router := game.NewHandler(service, authService, cfg.GameDuration, logger).Routes()
	router.Handler(http.MethodPost, "/auth/refresh",
		authService.RequireAdmin(http.HandlerFunc(auth.NewHandler(authService).RefreshToken)))

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           logging.Middleware(logger, router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("dashboard listening", "addr", server.Addr, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	if serveConsole {
		go func() {
			if err := chatLoop(ctx, newChatHandler(service), os.Stdin, cmd.OutOrStdout(), prefixedNick); err != nil {
				logger.Error("console chat stopped", "error", err)
			}
		}()
	}

	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return nil
}
