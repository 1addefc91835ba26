package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/orthocare/orthocare"
	"github.com/orthocare/orthocare/internal/api"
	"github.com/orthocare/orthocare/internal/auth"
	"github.com/orthocare/orthocare/internal/config"
	"github.com/orthocare/orthocare/internal/database"
	"github.com/orthocare/orthocare/internal/metrics"
	"github.com/orthocare/orthocare/internal/patients"
	"github.com/orthocare/orthocare/internal/sqlite"
	"github.com/orthocare/orthocare/internal/transcribe"
)

var version = "dev"

// store is what every backend provides.
type store interface {
	patients.Store
	auth.Store
	api.HealthChecker
	Close()
}

func main() {
	var overrides config.Overrides
	cmd := &cobra.Command{
		Use:           "orthocare",
		Short:         "Patient records and dictation transcription server",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(overrides)
		},
	}
	f := cmd.Flags()
	f.StringVar(&overrides.EnvFile, "env-file", "", "path to .env file (default .env)")
	f.StringVar(&overrides.HTTPAddr, "listen", "", "HTTP listen address")
	f.StringVar(&overrides.LogLevel, "log-level", "", "log level")
	f.StringVar(&overrides.StoreDriver, "store", "", "store driver: sqlite, postgres or memory")
	f.StringVar(&overrides.DatabaseURL, "database-url", "", "PostgreSQL connection URL")
	f.StringVar(&overrides.SQLitePath, "sqlite-path", "", "SQLite database file")

	if err := cmd.Execute(); err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("orthocare failed")
	}
}

func run(overrides config.Overrides) error {
	startTime := time.Now()

	// Config
	cfg, err := config.Load(overrides)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Logger
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)
	log.Info().Str("version", version).Str("store", cfg.StoreDriver).Msg("orthocare starting")

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Store
	dbLog := log.With().Str("component", "database").Logger()
	db, pool, err := openStore(ctx, cfg, dbLog)
	if err != nil {
		return err
	}
	defer db.Close()

	// Auth
	authSvc := auth.NewService(db, cfg.SessionTTL, log)
	if cfg.AdminEmail != "" {
		created, err := authSvc.EnsureUser(ctx, cfg.AdminEmail, cfg.AdminPassword, cfg.AdminName)
		if err != nil {
			return fmt.Errorf("bootstrap admin user: %w", err)
		}
		if created {
			log.Info().Str("email", cfg.AdminEmail).Msg("admin user created")
		}
	}
	go purgeSessions(ctx, authSvc, log)

	// Transcription
	trSvc := transcribe.NewService(newProvider(cfg), transcribe.DefaultOptions(cfg.TranscribeLanguage), cfg.TranscribeTimeout, log)
	if !trSvc.Configured() {
		log.Warn().Str("provider", cfg.TranscribeProvider).Msg("transcription provider not configured; dictation disabled")
	}

	prometheus.MustRegister(metrics.NewCollector(pool, trSvc.Configured))

	// HTTP Server
	httpLog := log.With().Str("component", "http").Logger()
	srv := api.NewServer(cfg, api.Deps{
		Patients:    db,
		Auth:        authSvc,
		Transcriber: trSvc,
		Health:      db,
		Version:     version,
		StartTime:   startTime,
	}, httpLog)

	// Start HTTP server in background
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	// Wait for shutdown signal or server error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server error")
		}
	}

	// Graceful shutdown with 10s timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}

	log.Info().Msg("orthocare stopped")
	return nil
}

// openStore returns the pool alongside the store so pool gauges can be
// exported; it is nil for SQLite and memory.
func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (store, *pgxpool.Pool, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		db, err := database.Connect(ctx, cfg.DatabaseURL, log)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to database: %w", err)
		}
		if err := db.InitSchema(ctx, orthocare.SchemaSQL); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("init schema: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return db, db.Pool, nil
	case config.DriverMemory:
		log.Warn().Msg("memory store selected; records are lost on exit")
		return newMemoryStore(), nil, nil
	default:
		db, err := sqlite.Open(ctx, cfg.SQLitePath, log)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		return db, nil, nil
	}
}

type (
	patientMemory = patients.MemoryStore
	userMemory    = auth.MemoryStore
)

// memoryStore serves demos and local trials without a database file.
type memoryStore struct {
	*patientMemory
	*userMemory
}

func newMemoryStore() memoryStore {
	return memoryStore{patients.NewMemoryStore(), auth.NewMemoryStore()}
}

func (memoryStore) HealthCheck(ctx context.Context) error { return nil }
func (memoryStore) Close()                                {}

// newProvider returns nil when the selected provider lacks credentials.
func newProvider(cfg *config.Config) transcribe.Provider {
	if !cfg.TranscriptionConfigured() {
		return nil
	}
	switch cfg.TranscribeProvider {
	case config.ProviderWhisper:
		return transcribe.NewWhisperClient(cfg.WhisperURL, cfg.TranscribeModel, cfg.TranscribeTimeout)
	default:
		return transcribe.NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.TranscribeModel, cfg.TranscribeTimeout)
	}
}

func purgeSessions(ctx context.Context, svc *auth.Service, log zerolog.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := svc.PurgeExpired(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("session purge failed")
				continue
			}
			if n > 0 {
				log.Debug().Int64("purged", n).Msg("expired sessions removed")
			}
		}
	}
}
