package transcribe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"
)

const defaultOpenAIModel = "whisper-1"

// OpenAIProvider transcribes through the official OpenAI SDK. Setting a base
// URL points it at any compatible host (DeepInfra, Groq, a local proxy).
type OpenAIProvider struct {
	client openai.Client
	model  string
}

// NewOpenAIProvider builds a provider. The SDK's own retries are disabled:
// a failed dictation is retried by the user re-recording, never silently.
func NewOpenAIProvider(apiKey, baseURL, model string, timeout time.Duration) *OpenAIProvider {
	if model == "" {
		model = defaultOpenAIModel
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(timeout))
	}
	return &OpenAIProvider{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

func (p *OpenAIProvider) Name() string  { return "openai" }
func (p *OpenAIProvider) Model() string { return p.model }

func (p *OpenAIProvider) Transcribe(ctx context.Context, audio Audio, opts Options) (*Result, error) {
	filename := audio.Filename
	if filename == "" {
		filename = "recording"
	}
	params := openai.AudioTranscriptionNewParams{
		File:           openai.File(audio.Reader, filename, MediaType(audio.ContentType)),
		Model:          openai.AudioModel(p.model),
		ResponseFormat: openai.AudioResponseFormatVerboseJSON,
		Temperature:    param.NewOpt(opts.Temperature),
	}
	if opts.Language != "" {
		params.Language = param.NewOpt(opts.Language)
	}
	if opts.Prompt != "" {
		params.Prompt = param.NewOpt(opts.Prompt)
	}

	resp, err := p.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return nil, classifyOpenAIError(ctx, err)
	}
	if resp == nil {
		return nil, ErrTranscriptionUnavailable
	}
	return &Result{
		Text:     strings.TrimSpace(resp.Text),
		Duration: resp.Duration,
		Language: resp.Language,
	}, nil
}

func classifyOpenAIError(ctx context.Context, err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = http.StatusText(apiErr.StatusCode)
		}
		return NewUpstreamError("OpenAI API error: "+msg, apiErr.StatusCode)
	}
	if isTimeout(ctx, err) {
		return timeoutError()
	}
	return NewUpstreamError(fmt.Sprintf("openai request: %v", err), http.StatusInternalServerError)
}
