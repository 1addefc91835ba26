package api

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/orthocare/orthocare/internal/metrics"
	"github.com/orthocare/orthocare/internal/transcribe"
)

// Error bodies returned to the dictation client.
const (
	msgNoAudio       = "No audio file provided"
	msgAudioTooLarge = "Audio file too large. Maximum size is 25MB."
	msgAudioType     = "Invalid audio file type"
)

// multipartOverhead pads the body limit for boundaries and part headers.
const multipartOverhead = 1 << 20

// Transcriber is the server-side transcription service.
type Transcriber interface {
	Transcribe(ctx context.Context, a transcribe.Audio) (*transcribe.Result, error)
	Configured() bool
	ProviderName() string
}

type TranscribeHandler struct {
	svc Transcriber
	log zerolog.Logger
}

func NewTranscribeHandler(svc Transcriber, log zerolog.Logger) *TranscribeHandler {
	return &TranscribeHandler{svc: svc, log: log.With().Str("handler", "transcribe").Logger()}
}

func (h *TranscribeHandler) Routes(r chi.Router) {
	r.Post("/transcribe", h.Transcribe)
}

// Transcribe handles POST /api/v1/transcribe with a multipart "audio" part.
func (h *TranscribeHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	if !h.svc.Configured() {
		WriteError(w, http.StatusInternalServerError, transcribe.ErrNotConfigured.Error())
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, transcribe.MaxAudioBytes+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeInvalidAudio(w, msgAudioTooLarge)
			return
		}
		writeInvalidAudio(w, msgNoAudio)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("audio")
	if err != nil {
		writeInvalidAudio(w, msgNoAudio)
		return
	}
	defer file.Close()

	if header.Size == 0 {
		writeInvalidAudio(w, msgNoAudio)
		return
	}
	if header.Size > transcribe.MaxAudioBytes {
		writeInvalidAudio(w, msgAudioTooLarge)
		return
	}
	contentType, err := partContentType(file, header)
	if err != nil {
		writeInvalidAudio(w, msgNoAudio)
		return
	}
	if !transcribe.AllowedType(contentType) {
		writeInvalidAudio(w, msgAudioType)
		return
	}
	metrics.AudioUploadBytes.Observe(float64(header.Size))

	provider := h.svc.ProviderName()
	start := time.Now()
	res, err := h.svc.Transcribe(r.Context(), transcribe.Audio{
		Reader:      file,
		Size:        header.Size,
		Filename:    header.Filename,
		ContentType: contentType,
	})
	metrics.TranscriptionDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.TranscriptionsTotal.WithLabelValues(provider, outcome(err)).Inc()
		h.writeTranscribeError(w, err)
		return
	}
	metrics.TranscriptionsTotal.WithLabelValues(provider, "ok").Inc()
	WriteJSON(w, http.StatusOK, res)
}

// partContentType trusts the declared part type unless it is missing or
// generic, in which case the leading bytes are sniffed.
func partContentType(file multipart.File, header *multipart.FileHeader) (string, error) {
	declared := transcribe.MediaType(header.Header.Get("Content-Type"))
	if declared != "" && declared != "application/octet-stream" {
		return declared, nil
	}
	mt, err := mimetype.DetectReader(file)
	if err != nil {
		return "", err
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return mt.String(), nil
}

func (h *TranscribeHandler) writeTranscribeError(w http.ResponseWriter, err error) {
	var up *transcribe.UpstreamError
	switch {
	case errors.Is(err, transcribe.ErrAudioTooLarge):
		writeInvalidAudio(w, msgAudioTooLarge)
	case errors.Is(err, transcribe.ErrAudioType):
		writeInvalidAudio(w, msgAudioType)
	case errors.Is(err, transcribe.ErrInvalidInput):
		writeInvalidAudio(w, msgNoAudio)
	case errors.Is(err, transcribe.ErrNotConfigured):
		WriteError(w, http.StatusInternalServerError, err.Error())
	case errors.As(err, &up):
		WriteError(w, up.StatusCode, up.Message)
	default:
		h.log.Error().Err(err).Msg("transcription failed")
		WriteError(w, http.StatusInternalServerError, "Transcription failed")
	}
}

// writeInvalidAudio rejects the upload itself, as opposed to passing a
// provider's 4xx through.
func writeInvalidAudio(w http.ResponseWriter, msg string) {
	WriteJSON(w, http.StatusBadRequest, ErrorResponse{Error: msg, Code: transcribe.CodeInvalidAudio})
}

func outcome(err error) string {
	var up *transcribe.UpstreamError
	switch {
	case errors.Is(err, transcribe.ErrInvalidInput):
		return "invalid"
	case errors.As(err, &up) && up.StatusCode == http.StatusGatewayTimeout:
		return "timeout"
	case errors.As(err, &up):
		return "upstream_error"
	default:
		return "error"
	}
}
