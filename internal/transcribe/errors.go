package transcribe

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInvalidInput covers a missing, oversized or wrongly typed payload.
	ErrInvalidInput = errors.New("invalid audio input")

	ErrMissingAudio  = fmt.Errorf("%w: no audio file provided", ErrInvalidInput)
	ErrAudioTooLarge = fmt.Errorf("%w: audio exceeds %d bytes", ErrInvalidInput, MaxAudioBytes)
	ErrAudioType     = fmt.Errorf("%w: unsupported audio content type", ErrInvalidInput)

	// ErrTranscriptionUnavailable means the upstream call succeeded but
	// returned no usable text.
	ErrTranscriptionUnavailable = errors.New("no transcription text received")

	// ErrNotConfigured is returned by the server when no provider credential
	// or endpoint is set.
	ErrNotConfigured = errors.New("transcription provider not configured")
)

// CodeInvalidAudio tags the server's own payload rejections so clients can
// tell them apart from a provider that answered 400.
const CodeInvalidAudio = "invalid_audio"

// UpstreamError is a failure reported by (or on the way to) the remote
// transcription service.
type UpstreamError struct {
	Message    string
	StatusCode int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("transcription upstream error (status %d): %s", e.StatusCode, e.Message)
}

// NewUpstreamError defaults a missing status to 500.
func NewUpstreamError(message string, status int) *UpstreamError {
	if status < 400 || status > 599 {
		status = http.StatusInternalServerError
	}
	return &UpstreamError{Message: message, StatusCode: status}
}

// timeoutError is what callers see when the bounded wait expires.
func timeoutError() *UpstreamError {
	return &UpstreamError{Message: "transcription timed out", StatusCode: http.StatusGatewayTimeout}
}
