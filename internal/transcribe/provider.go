package transcribe

import (
	"bytes"
	"context"
	"io"
)

// Provider is the interface for speech-to-text backends.
type Provider interface {
	Transcribe(ctx context.Context, audio Audio, opts Options) (*Result, error)
	Name() string  // "openai", "whisper"
	Model() string // model identifier for logs
}

// Options are per-request decoding options sent upstream.
type Options struct {
	Language    string
	Temperature float64
	Prompt      string // domain vocabulary hint
}

// DefaultOptions pins the language and asks for greedy decoding so the
// extractor downstream sees consistent phrasing.
func DefaultOptions(language string) Options {
	if language == "" {
		language = "en"
	}
	return Options{Language: language, Temperature: 0}
}

// Result is the common transcription result from any provider.
type Result struct {
	Text     string  `json:"text"`
	Duration float64 `json:"duration,omitempty"` // seconds, 0 if not reported
	Language string  `json:"language,omitempty"`
}

// Audio is one recorded payload on its way to a transcription backend.
type Audio struct {
	Reader      io.Reader
	Size        int64
	Filename    string
	ContentType string
}

// BytesAudio wraps an in-memory recording.
func BytesAudio(data []byte, filename, contentType string) Audio {
	return Audio{
		Reader:      bytes.NewReader(data),
		Size:        int64(len(data)),
		Filename:    filename,
		ContentType: contentType,
	}
}
