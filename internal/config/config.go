package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"

	ProviderOpenAI  = "openai"
	ProviderWhisper = "whisper"
)

type Config struct {
	StoreDriver string `env:"STORE_DRIVER" envDefault:"sqlite"`
	DatabaseURL string `env:"DATABASE_URL"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"./data/orthocare.sqlite"`

	HTTPAddr     string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"60s"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
	CORSOrigins  []string      `env:"CORS_ORIGINS" envSeparator:","`

	TranscribeProvider string        `env:"TRANSCRIBE_PROVIDER" envDefault:"openai"`
	OpenAIAPIKey       string        `env:"OPENAI_API_KEY"`
	OpenAIBaseURL      string        `env:"OPENAI_BASE_URL"`
	TranscribeModel    string        `env:"TRANSCRIBE_MODEL" envDefault:"whisper-1"`
	WhisperURL         string        `env:"WHISPER_URL"`
	TranscribeLanguage string        `env:"TRANSCRIBE_LANGUAGE" envDefault:"en"`
	TranscribeTimeout  time.Duration `env:"TRANSCRIBE_TIMEOUT" envDefault:"30s"`

	SessionTTL          time.Duration `env:"SESSION_TTL" envDefault:"336h"`
	SessionCookieSecure bool          `env:"SESSION_COOKIE_SECURE" envDefault:"false"`
	AdminEmail          string        `env:"ADMIN_EMAIL"`
	AdminPassword       string        `env:"ADMIN_PASSWORD"`
	AdminName           string        `env:"ADMIN_NAME" envDefault:"Administrator"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Overrides holds CLI flag values that take priority over env vars.
type Overrides struct {
	EnvFile     string
	HTTPAddr    string
	LogLevel    string
	StoreDriver string
	DatabaseURL string
	SQLitePath  string
}

// Load reads configuration from .env file, environment variables, and CLI overrides.
// Priority: CLI flags > environment variables > .env file > struct defaults.
func Load(overrides Overrides) (*Config, error) {
	// Load .env file (silent if missing)
	envFile := overrides.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	// Apply CLI overrides (non-empty values win)
	if overrides.HTTPAddr != "" {
		cfg.HTTPAddr = overrides.HTTPAddr
	}
	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}
	if overrides.StoreDriver != "" {
		cfg.StoreDriver = overrides.StoreDriver
	}
	if overrides.DatabaseURL != "" {
		cfg.DatabaseURL = overrides.DatabaseURL
	}
	if overrides.SQLitePath != "" {
		cfg.SQLitePath = overrides.SQLitePath
	}

	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	cfg.TranscribeProvider = strings.ToLower(strings.TrimSpace(cfg.TranscribeProvider))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects combinations the server cannot start with.
// A missing transcription credential is not an error: the server still serves
// the patient list and reports the transcription check as degraded.
func (c *Config) Validate() error {
	var errs []error

	switch c.StoreDriver {
	case DriverSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH is required when STORE_DRIVER=sqlite"))
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when STORE_DRIVER=postgres"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q (want sqlite, postgres or memory)", c.StoreDriver))
	}

	switch c.TranscribeProvider {
	case ProviderOpenAI, ProviderWhisper:
	default:
		errs = append(errs, fmt.Errorf("unknown TRANSCRIBE_PROVIDER %q (want openai or whisper)", c.TranscribeProvider))
	}

	if c.TranscribeTimeout <= 0 {
		errs = append(errs, errors.New("TRANSCRIBE_TIMEOUT must be positive"))
	} else if c.WriteTimeout <= c.TranscribeTimeout {
		errs = append(errs, fmt.Errorf("HTTP_WRITE_TIMEOUT (%s) must exceed TRANSCRIBE_TIMEOUT (%s)", c.WriteTimeout, c.TranscribeTimeout))
	}

	if (c.AdminEmail == "") != (c.AdminPassword == "") {
		errs = append(errs, errors.New("ADMIN_EMAIL and ADMIN_PASSWORD must be set together"))
	}

	return errors.Join(errs...)
}

// TranscriptionConfigured reports whether the selected provider has what it
// needs to make an upstream call.
func (c *Config) TranscriptionConfigured() bool {
	switch c.TranscribeProvider {
	case ProviderOpenAI:
		return c.OpenAIAPIKey != ""
	case ProviderWhisper:
		return c.WhisperURL != ""
	}
	return false
}
