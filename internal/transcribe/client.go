package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// DefaultClientTimeout bounds one round trip to the server, including the
// server's own upstream wait.
const DefaultClientTimeout = 45 * time.Second

// Client posts recordings to the server's transcription endpoint.
type Client struct {
	url    string
	token  string
	client *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithToken sends a bearer session token.
func WithToken(token string) ClientOption {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.client = hc }
}

// NewClient targets the transcription endpoint at url, for example
// http://localhost:8080/api/v1/transcribe.
func NewClient(url string, opts ...ClientOption) *Client {
	c := &Client{
		url:    url,
		client: &http.Client{Timeout: DefaultClientTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Transcribe uploads a as the multipart field "audio". Invalid payloads are
// rejected before any request is made.
func (c *Client) Transcribe(ctx context.Context, a Audio) (*Result, error) {
	if err := Validate(a); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := createAudioPart(w, "audio", a)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, a.Reader); err != nil {
		return nil, fmt.Errorf("copy audio data: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, timeoutError()
		}
		return nil, NewUpstreamError(err.Error(), 0)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, NewUpstreamError(fmt.Sprintf("read response: %v", err), 0)
	}

	if resp.StatusCode != http.StatusOK {
		if errorCode(body) == CodeInvalidAudio {
			return nil, fmt.Errorf("%w: %s", ErrInvalidInput, upstreamMessage(body))
		}
		return nil, NewUpstreamError(upstreamMessage(body), resp.StatusCode)
	}

	var res Result
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, NewUpstreamError(fmt.Sprintf("decode response: %v", err), http.StatusBadGateway)
	}
	res.Text = strings.TrimSpace(res.Text)
	if res.Text == "" {
		return nil, ErrTranscriptionUnavailable
	}
	return &res, nil
}

func errorCode(body []byte) string {
	var v struct {
		Code string `json:"code"`
	}
	json.Unmarshal(body, &v)
	return v.Code
}
