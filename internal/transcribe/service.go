package transcribe

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// Service is the server-side entry point: it re-validates the payload,
// bounds the upstream wait and delegates to the configured Provider.
type Service struct {
	provider Provider
	opts     Options
	timeout  time.Duration
	log      zerolog.Logger
}

// NewService wraps provider. A nil provider yields a Service that reports
// ErrNotConfigured on every call.
func NewService(provider Provider, opts Options, timeout time.Duration, log zerolog.Logger) *Service {
	return &Service{
		provider: provider,
		opts:     opts,
		timeout:  timeout,
		log:      log.With().Str("component", "transcribe").Logger(),
	}
}

// Configured reports whether an upstream provider is available.
func (s *Service) Configured() bool {
	return s != nil && s.provider != nil
}

// ProviderName returns the provider name for health output.
func (s *Service) ProviderName() string {
	if !s.Configured() {
		return ""
	}
	return s.provider.Name()
}

// Transcribe validates a and sends it upstream.
func (s *Service) Transcribe(ctx context.Context, a Audio) (*Result, error) {
	if !s.Configured() {
		return nil, ErrNotConfigured
	}
	if err := Validate(a); err != nil {
		return nil, err
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	res, err := s.provider.Transcribe(ctx, a, s.opts)
	elapsed := time.Since(start)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = timeoutError()
		}
		s.log.Warn().Err(err).
			Str("provider", s.provider.Name()).
			Str("content_type", a.ContentType).
			Int64("size", a.Size).
			Dur("elapsed", elapsed).
			Msg("transcription failed")
		return nil, err
	}

	s.log.Info().
		Str("provider", s.provider.Name()).
		Str("model", s.provider.Model()).
		Str("content_type", a.ContentType).
		Int64("size", a.Size).
		Float64("audio_duration", res.Duration).
		Int("text_len", len(res.Text)).
		Dur("elapsed", elapsed).
		Msg("transcription complete")
	return res, nil
}
