// Command dictate records a voice note, sends it to an orthocare server for
// transcription and fills a patient form from the result.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var version = "dev"

type globalFlags struct {
	server   string
	token    string
	email    string
	password string
	logLevel string
}

func main() {
	var g globalFlags
	root := &cobra.Command{
		Use:           "dictate",
		Short:         "Dictate patient notes into an orthocare form",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&g.server, "server", envOr("ORTHOCARE_URL", "http://localhost:8080"), "orthocare server base URL")
	pf.StringVar(&g.token, "token", os.Getenv("ORTHOCARE_TOKEN"), "session token")
	pf.StringVar(&g.email, "email", "", "sign in with this email when no token is given")
	pf.StringVar(&g.password, "password", os.Getenv("ORTHOCARE_PASSWORD"), "password for --email")
	pf.StringVar(&g.logLevel, "log-level", "warn", "log level")

	root.AddCommand(formCmd(&g), fieldCmd(&g), parseCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "dictate:", err)
		os.Exit(1)
	}
}

func (g *globalFlags) logger() zerolog.Logger {
	level, err := zerolog.ParseLevel(g.logLevel)
	if err != nil {
		level = zerolog.WarnLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger().Level(level)
}

// session returns a token, signing in when only credentials were given.
func (g *globalFlags) session(ctx context.Context) (*apiClient, error) {
	c := newAPIClient(g.server, g.token)
	if c.token != "" {
		return c, nil
	}
	if g.email == "" {
		return nil, fmt.Errorf("either --token or --email is required")
	}
	if err := c.signIn(ctx, g.email, g.password); err != nil {
		return nil, err
	}
	return c, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
