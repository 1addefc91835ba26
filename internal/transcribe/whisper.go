package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

// WhisperClient calls an OpenAI-compatible /v1/audio/transcriptions endpoint
// over plain multipart (speaches, whisper.cpp server, faster-whisper-server).
type WhisperClient struct {
	url     string
	model   string
	timeout time.Duration
	client  *http.Client
}

// whisperResponse is the verbose_json response body.
type whisperResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
}

// NewWhisperClient creates a new Whisper HTTP client.
func NewWhisperClient(url, model string, timeout time.Duration) *WhisperClient {
	return &WhisperClient{
		url:     url,
		model:   model,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}
}

func (wc *WhisperClient) Name() string  { return "whisper" }
func (wc *WhisperClient) Model() string { return wc.model }

// Transcribe sends the audio to the Whisper API and returns the result.
// Only non-default parameters are sent, so this works with any
// OpenAI-compatible server.
func (wc *WhisperClient) Transcribe(ctx context.Context, audio Audio, opts Options) (*Result, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := createAudioPart(w, "file", audio)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, audio.Reader); err != nil {
		return nil, fmt.Errorf("copy audio data: %w", err)
	}

	if wc.model != "" {
		w.WriteField("model", wc.model)
	}
	lang := opts.Language
	if lang == "" {
		lang = "en"
	}
	w.WriteField("language", lang)
	w.WriteField("temperature", fmt.Sprintf("%.2f", opts.Temperature))
	w.WriteField("response_format", "verbose_json")
	if opts.Prompt != "" {
		w.WriteField("prompt", opts.Prompt)
	}
	w.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, wc.url, &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := wc.client.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, timeoutError()
		}
		return nil, NewUpstreamError(fmt.Sprintf("whisper request: %v", err), http.StatusBadGateway)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, NewUpstreamError("Whisper API error: "+upstreamMessage(body), resp.StatusCode)
	}

	var result whisperResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, NewUpstreamError(fmt.Sprintf("decode response: %v", err), http.StatusBadGateway)
	}

	return &Result{
		Text:     strings.TrimSpace(result.Text),
		Duration: result.Duration,
		Language: result.Language,
	}, nil
}

// createAudioPart is multipart.Writer.CreateFormFile with the declared
// content type instead of application/octet-stream.
func createAudioPart(w *multipart.Writer, field string, audio Audio) (io.Writer, error) {
	filename := audio.Filename
	if filename == "" {
		filename = "recording"
	}
	contentType := audio.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	h.Set("Content-Type", contentType)
	return w.CreatePart(h)
}

// upstreamMessage pulls a human message out of an error body. It accepts
// {"error":"..."}, {"error":{"message":"..."}}, {"detail":"..."} and falls
// back to the raw text.
func upstreamMessage(body []byte) string {
	var generic map[string]json.RawMessage
	if json.Unmarshal(body, &generic) == nil {
		for _, key := range []string{"error", "detail", "message"} {
			raw, ok := generic[key]
			if !ok {
				continue
			}
			var s string
			if json.Unmarshal(raw, &s) == nil && s != "" {
				return s
			}
			var nested struct {
				Message string `json:"message"`
			}
			if json.Unmarshal(raw, &nested) == nil && nested.Message != "" {
				return nested.Message
			}
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	if msg == "" {
		msg = "empty response"
	}
	return msg
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}
