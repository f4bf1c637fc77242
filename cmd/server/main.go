package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chat-core/infrastructure/rest"
	"chat-core/infrastructure/ws"
	"chat-core/internal"
	"chat-core/observability"
	"chat-core/repositories"
	"chat-core/runtime"
	"chat-core/runtime/workers"
	"chat-core/services"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

const shutdownTimeout = 10 * time.Second

func main() {
	// The main function acts as a thin wrapper.
	// Its only responsibility is to call run() and handle the OS exit code.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// Deferred cleanups (database close, sequence release) always execute before exiting.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()

	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return exitConfig, err
	}

	logger := logs.GetLoggerFromString(config.LogLevel)

	ctx := context.Background()

	// 2. Database (BadgerDB)
	db, err := badger.Open(buildBadgerOpts(config, logger, ctx))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		// Defer ensures the database lock is released and buffers are flushed before the function returns.
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Repositories & Services
	userRepository := repositories.NewUserRepository(db)
	messageRepository, err := repositories.NewMessageRepository(db, logger, config.LimitMessages)
	if err != nil {
		return exitRuntime, fmt.Errorf("message repository init failed: %w", err)
	}
	defer func() { _ = messageRepository.Close() }()

	roomRepository, err := repositories.NewRoomRepository(db, userRepository, logger)
	if err != nil {
		return exitRuntime, fmt.Errorf("room repository init failed: %w", err)
	}
	defer func() { _ = roomRepository.Close() }()

	monitor := observability.NewMonitor(logger)
	hub := runtime.NewHub(logger, runtime.NoopRelay{}, monitor)

	authService := services.NewAuthService(userRepository, config.AuthTokenDuration)
	roomService := services.NewRoomService(roomRepository)
	chatService := services.NewChatService(logger, messageRepository, hub, monitor)

	if logger.Enabled(ctx, slog.LevelDebug) {
		debugPort := 8081
		logger.Info("Debug store inspector available",
			"url", fmt.Sprintf("http://localhost:%d/inspect", debugPort))
		internal.StartDebugServer(db, debugPort, internal.DefaultMapper, func() map[string]any {
			stats := monitor.Latest()
			return map[string]any{
				"sessions":  stats.SessionsActive,
				"delivered": stats.EventsDelivered,
				"dropped":   stats.EventsDropped,
				"persisted": stats.MessagesPersisted,
			}
		})
	}

	// 4. HTTP Server (REST + websocket gateway)
	gateway := ws.NewGateway(logger, authService, roomService, chatService, monitor,
		config.ConnectionBufferSize, config.DeliveryTimeout)
	router := rest.NewRouter(logger, authService,
		rest.NewHandlers(logger, authService, roomService, chatService,
			userRepository, messageRepository, monitor),
		gateway.Handle)

	srv := &http.Server{
		Addr:    config.Addr(),
		Handler: router,
	}

	// 5. Background workers
	sup := workers.NewSupervisor(logger).Add(
		workers.NewBadgerGCWorker(db, config.GCInterval, logger),
		workers.NewStatsWorker(monitor, config.MetricInterval, logger),
	)

	// 6. Context & Signals
	// NotifyContext captures OS signals and cancels the context to trigger a shutdown.
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go sup.Run(ctx)

	errChan := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", "address", config.Addr(), "at", time.Now().UTC())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	// The execution blocks here until either a signal is received or the server crashes.
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		return exitRuntime, err
	}

	// 8. Final Cleanup (Graceful Shutdown)
	// Stop accepting new connections first, then close live sessions and workers.
	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown failed", "err", err)
	}
	hub.Shutdown()
	sup.Stop()
	logger.Info("Program stopped cleanly")

	return exitOK, nil
}

func buildBadgerOpts(config internal.Config, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)

	if logger.Enabled(ctx, slog.LevelDebug) {
		options = options.WithLoggingLevel(badger.DEBUG).
			WithBypassLockGuard(true)
	} else {
		options = options.WithLoggingLevel(badger.INFO)
	}

	return options
}
