package dictation

import (
	"errors"

	"github.com/orthocare/orthocare/internal/capture"
	"github.com/orthocare/orthocare/internal/transcribe"
)

// userMessage is the single place internal errors become text for the
// person dictating.
func userMessage(err error) string {
	var upstream *transcribe.UpstreamError
	switch {
	case errors.Is(err, capture.ErrPermissionDenied):
		return "Microphone access denied. Please enable microphone access and try again."
	case errors.Is(err, capture.ErrDeviceUnavailable):
		return "No microphone found. Connect an audio input device and try again."
	case errors.Is(err, transcribe.ErrInvalidInput):
		return "The recording could not be processed. Please try again."
	case errors.Is(err, transcribe.ErrTranscriptionUnavailable):
		return "No transcription text received. Please try again."
	case errors.As(err, &upstream):
		if upstream.Message != "" {
			return "Transcription failed: " + upstream.Message
		}
		return "Transcription failed. Please try again."
	case errors.Is(err, errRecording):
		return "Recording error occurred"
	}
	return "Transcription failed. Please try again."
}
