package transcribe

import (
	"mime"
	"strings"
)

// MaxAudioBytes is the upstream limit for a single transcription request.
const MaxAudioBytes = 25 << 20

// AllowedTypes lists the containers the recorder produces and the upstream
// accepts. Membership is decided by top-level category, so any audio/* or
// video/* type passes; browsers tag audio-only webm as video/webm.
var AllowedTypes = []string{
	"audio/webm",
	"audio/ogg",
	"audio/mp4",
	"audio/mpeg",
	"audio/wav",
	"video/webm",
}

// MediaType strips parameters such as ";codecs=opus" and lowercases.
func MediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt, _, _ = strings.Cut(contentType, ";")
	}
	return strings.ToLower(strings.TrimSpace(mt))
}

// AllowedType reports whether contentType shares a top-level category with
// one of AllowedTypes.
func AllowedType(contentType string) bool {
	category, _, ok := strings.Cut(MediaType(contentType), "/")
	if !ok || category == "" {
		return false
	}
	for _, t := range AllowedTypes {
		if strings.HasPrefix(t, category+"/") {
			return true
		}
	}
	return false
}

// Validate checks a payload before any network call is made.
func Validate(a Audio) error {
	if a.Reader == nil || a.Size <= 0 {
		return ErrMissingAudio
	}
	if a.Size > MaxAudioBytes {
		return ErrAudioTooLarge
	}
	if !AllowedType(a.ContentType) {
		return ErrAudioType
	}
	return nil
}
