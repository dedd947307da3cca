package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/splitpot/api/internal/config"
	"github.com/splitpot/api/internal/database"
	"github.com/splitpot/api/internal/handler"
	"github.com/splitpot/api/internal/hub"
	"github.com/splitpot/api/internal/metrics"
	"github.com/splitpot/api/internal/middleware"
	"github.com/splitpot/api/internal/repository"
	"github.com/splitpot/api/internal/service"
	"github.com/splitpot/api/internal/ws"
	"github.com/splitpot/api/pkg/logging"
)

func main() {
	logging.Setup()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if cfg.IsDevelopment() {
		logging.SetupWithLevel(slog.LevelDebug)
	}

	db := database.NewSurrealDB(database.Config{
		Host:      cfg.Database.Host,
		Port:      cfg.Database.Port,
		User:      cfg.Database.User,
		Password:  cfg.Database.Password,
		Namespace: cfg.Database.Namespace,
		Database:  cfg.Database.Database,
	})

	ctx := context.Background()
	if err := db.Connect(ctx); err != nil {
		slog.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	slog.Info("connected to database",
		slog.String("host", cfg.Database.Host),
		slog.String("database", cfg.Database.Database),
	)

	// The admin passcode lives for exactly one server process. It is
	// printed once here and never stored in plaintext.
	plaintext, passcode, err := service.GeneratePasscode()
	if err != nil {
		slog.Error("failed to generate admin passcode", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Info("admin passcode generated for this process", slog.String("passcode", plaintext))

	// Initialize repositories
	eventRepo := repository.NewEventRepository(db)
	participantRepo := repository.NewParticipantRepository(db)
	expenseRepo := repository.NewExpenseRepository(db)
	involvedRepo := repository.NewInvolvedRepository(db)

	// Initialize the broadcast hub
	broadcastHub := hub.New(cfg.Sync.SubscriberBuffer, cfg.Sync.HeartbeatInterval, slog.Default())
	defer broadcastHub.Close()

	syncService := service.NewSyncService(service.SyncServiceConfig{
		Events:          eventRepo,
		Participants:    participantRepo,
		Expenses:        expenseRepo,
		Involveds:       involvedRepo,
		DB:              db,
		Hub:             broadcastHub,
		Passcode:        passcode,
		Logger:          slog.Default(),
		LongPollTimeout: cfg.Sync.LongPollTimeout,
	})

	wsHandler := ws.NewHandler(broadcastHub, syncService, passcode, slog.Default())

	// Set up routes
	mux := http.NewServeMux()
	handler.NewEventHandler(syncService).Register(mux)
	mux.HandleFunc("GET /ws", wsHandler.Serve)
	mux.HandleFunc("GET /healthz", handler.Health(db))
	mux.Handle("GET /metrics", metrics.Handler())

	// Apply middleware chain
	chained := middleware.Chain(mux,
		middleware.RequestID,
		middleware.Logger,
		middleware.Recovery,
		middleware.Metrics,
		middleware.CORS(cfg.Server.AllowedOrigins),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      chained,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		slog.Info("starting server",
			slog.String("port", cfg.Server.Port),
			slog.String("env", cfg.Server.Env),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", slog.String("error", err.Error()))
	}

	slog.Info("server exited")
}
