package cmd

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"duo-checkin-backend/internal/config"
	"duo-checkin-backend/internal/handlers"
	"duo-checkin-backend/internal/policy"
	"duo-checkin-backend/internal/repository"
	"duo-checkin-backend/internal/repository/local"
	"duo-checkin-backend/internal/repository/postgres"
	"duo-checkin-backend/internal/repository/postgres/migrations"
	"duo-checkin-backend/internal/services"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func Run() {
	// Load configuration
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logger
	setupLogger(cfg.Log.Level)

	loc, err := cfg.Location()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid calendar timezone")
	}
	eval := policy.NewEvaluator(policy.SystemClock{Location: loc})

	// Select the storage backend once for the whole process
	store, err := openStore(context.Background(), cfg)
	if err != nil {
		log.Fatal().Err(err).Str("mode", cfg.Storage.Mode).Msg("Failed to open store")
	}
	log.Info().Str("mode", cfg.Storage.Mode).Msg("Store opened")

	jwtSecret := cfg.JWT.Secret
	if jwtSecret == "" {
		// Only reachable in local mode; tokens then live as long as the process.
		jwtSecret = randomSecret()
		log.Warn().Msg("No JWT secret configured, using an ephemeral one")
	}

	// Initialize services
	dispatchOpts := services.DispatcherOptions{
		Attempts:      cfg.Dispatch.Attempts,
		Timeout:       cfg.Dispatch.Timeout,
		RatePerMinute: cfg.Dispatch.RatePerMinute,
	}
	if cfg.APNs.Enabled() {
		pusher, err := services.NewAPNsPusher(cfg.APNs)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create APNs client")
		}
		dispatchOpts.Pusher = pusher
	}
	wsHub := services.NewWSHub(store)
	dispatchOpts.Presence = wsHub
	dispatcher := services.NewDispatcher(store, eval, dispatchOpts)
	app := services.NewApp(store, eval, dispatcher, jwtSecret)

	var mealImages *services.MealImageService
	if cfg.AWS.S3Enabled() {
		mealImages, err = services.NewMealImageService(context.Background(), cfg.AWS, eval)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create meal image service")
		}
	}

	scheduler := services.NewScheduler()
	if cfg.Reminders.Schedule != "" {
		if err := scheduler.Register(cfg.Reminders.Schedule, services.NewCheckInReminderJob(store, dispatcher)); err != nil {
			log.Fatal().Err(err).Msg("Failed to register check-in reminder")
		}
	}
	scheduler.Start()

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handlers.NewRouter(app, wsHub, mealImages),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// Shutdown HTTP server
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	wsHub.CloseAll()
	scheduler.Stop(ctx)

	// Pending deliveries still need the store
	if err := dispatcher.Close(ctx); err != nil {
		log.Error().Err(err).Msg("Dispatcher did not drain")
	}
	if err := store.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close store")
	}

	log.Info().Msg("Server exited")
}

// openStore opens the backend named by storage.mode
func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	if cfg.Storage.Mode == config.ModeLocal {
		store, err := local.Open(cfg.Storage.Local.Path)
		if err != nil {
			return nil, err
		}
		return store, nil
	}

	remote := cfg.Storage.Remote
	db, err := pgxpool.New(ctx, remote.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	log.Info().Msg("Database connection established")

	if err := postgres.Migrate(ctx, db, migrations.FS); err != nil {
		db.Close()
		return nil, err
	}
	return postgres.New(db, postgres.Options{
		CallTimeout: remote.CallTimeout,
		MaxRetries:  remote.MaxRetries,
	}), nil
}

func randomSecret() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// setupLogger configures zerolog logger
func setupLogger(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
