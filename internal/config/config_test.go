package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	cleanup := setEnvs(t, map[string]string{
		"STORE_DRIVER":   "postgres",
		"DATABASE_URL":   "postgres://localhost/test",
		"OPENAI_API_KEY": "sk-test",
	})
	defer cleanup()

	t.Run("defaults", func(t *testing.T) {
		cfg, err := Load(Overrides{EnvFile: "nonexistent.env"})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.HTTPAddr != ":8080" {
			t.Errorf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
		}
		if cfg.LogLevel != "info" {
			t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
		}
		if cfg.TranscribeProvider != ProviderOpenAI {
			t.Errorf("TranscribeProvider = %q, want openai", cfg.TranscribeProvider)
		}
		if cfg.TranscribeModel != "whisper-1" {
			t.Errorf("TranscribeModel = %q, want whisper-1", cfg.TranscribeModel)
		}
		if cfg.TranscribeLanguage != "en" {
			t.Errorf("TranscribeLanguage = %q, want en", cfg.TranscribeLanguage)
		}
		if cfg.TranscribeTimeout != 30*time.Second {
			t.Errorf("TranscribeTimeout = %s, want 30s", cfg.TranscribeTimeout)
		}
		if cfg.SessionTTL != 14*24*time.Hour {
			t.Errorf("SessionTTL = %s, want 336h", cfg.SessionTTL)
		}
		if !cfg.TranscriptionConfigured() {
			t.Error("TranscriptionConfigured = false with OPENAI_API_KEY set")
		}
	})

	t.Run("cli_overrides_take_priority", func(t *testing.T) {
		cfg, err := Load(Overrides{
			EnvFile:     "nonexistent.env",
			HTTPAddr:    ":9090",
			LogLevel:    "debug",
			StoreDriver: "SQLite",
			SQLitePath:  "/tmp/override.sqlite",
		})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.HTTPAddr != ":9090" {
			t.Errorf("HTTPAddr = %q, want :9090", cfg.HTTPAddr)
		}
		if cfg.LogLevel != "debug" {
			t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
		}
		if cfg.StoreDriver != DriverSQLite {
			t.Errorf("StoreDriver = %q, want sqlite", cfg.StoreDriver)
		}
		if cfg.SQLitePath != "/tmp/override.sqlite" {
			t.Errorf("SQLitePath = %q, want override", cfg.SQLitePath)
		}
	})

	t.Run("empty_overrides_use_env", func(t *testing.T) {
		cfg, err := Load(Overrides{EnvFile: "nonexistent.env"})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.DatabaseURL != "postgres://localhost/test" {
			t.Errorf("DatabaseURL = %q, want env value", cfg.DatabaseURL)
		}
	})
}

func TestLoadPostgresWithoutURL(t *testing.T) {
	cleanup := setEnvs(t, map[string]string{
		"STORE_DRIVER": "postgres",
		"DATABASE_URL": "",
	})
	defer cleanup()
	os.Unsetenv("DATABASE_URL")

	_, err := Load(Overrides{EnvFile: "nonexistent.env"})
	if err == nil {
		t.Error("expected error when postgres is selected without DATABASE_URL")
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			StoreDriver:        DriverSQLite,
			SQLitePath:         "x.sqlite",
			TranscribeProvider: ProviderOpenAI,
			TranscribeTimeout:  30 * time.Second,
			WriteTimeout:       60 * time.Second,
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"unknown_driver", func(c *Config) { c.StoreDriver = "mongo" }, true},
		{"memory_driver", func(c *Config) { c.StoreDriver, c.SQLitePath = DriverMemory, "" }, false},
		{"unknown_provider", func(c *Config) { c.TranscribeProvider = "azure" }, true},
		{"write_timeout_too_short", func(c *Config) { c.WriteTimeout = 30 * time.Second }, true},
		{"admin_email_without_password", func(c *Config) { c.AdminEmail = "a@b.c" }, true},
		{"admin_pair", func(c *Config) { c.AdminEmail, c.AdminPassword = "a@b.c", "secret" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(&c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTranscriptionConfigured(t *testing.T) {
	c := Config{TranscribeProvider: ProviderWhisper}
	if c.TranscriptionConfigured() {
		t.Error("whisper without WHISPER_URL should not be configured")
	}
	c.WhisperURL = "http://localhost:8000/v1/audio/transcriptions"
	if !c.TranscriptionConfigured() {
		t.Error("whisper with WHISPER_URL should be configured")
	}
}

// setEnvs sets environment variables and returns a cleanup function.
func setEnvs(t *testing.T, envs map[string]string) func() {
	t.Helper()
	originals := make(map[string]string)
	unset := make([]string, 0)

	for k, v := range envs {
		if orig, ok := os.LookupEnv(k); ok {
			originals[k] = orig
		} else {
			unset = append(unset, k)
		}
		os.Setenv(k, v)
	}

	return func() {
		for k, v := range originals {
			os.Setenv(k, v)
		}
		for _, k := range unset {
			os.Unsetenv(k)
		}
	}
}
