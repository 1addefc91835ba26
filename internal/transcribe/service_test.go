package transcribe

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type mockProvider struct {
	calls int
	opts  Options
	fn    func(ctx context.Context) (*Result, error)
}

func (m *mockProvider) Name() string  { return "mock" }
func (m *mockProvider) Model() string { return "mock-1" }
func (m *mockProvider) Transcribe(ctx context.Context, a Audio, opts Options) (*Result, error) {
	m.calls++
	m.opts = opts
	return m.fn(ctx)
}

func TestServiceNotConfigured(t *testing.T) {
	s := NewService(nil, DefaultOptions(""), time.Second, zerolog.Nop())
	if s.Configured() {
		t.Error("Configured() = true with nil provider")
	}
	_, err := s.Transcribe(context.Background(), BytesAudio([]byte("x"), "a.wav", "audio/wav"))
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}
}

func TestServiceValidatesBeforeProvider(t *testing.T) {
	p := &mockProvider{fn: func(context.Context) (*Result, error) { return &Result{Text: "x"}, nil }}
	s := NewService(p, DefaultOptions("en"), time.Second, zerolog.Nop())

	_, err := s.Transcribe(context.Background(), BytesAudio([]byte("x"), "a.pdf", "application/pdf"))
	if !errors.Is(err, ErrAudioType) {
		t.Errorf("err = %v, want ErrAudioType", err)
	}
	if p.calls != 0 {
		t.Errorf("provider calls = %d, want 0", p.calls)
	}
}

func TestServicePinsDeterministicOptions(t *testing.T) {
	p := &mockProvider{fn: func(context.Context) (*Result, error) { return &Result{Text: "hello"}, nil }}
	s := NewService(p, DefaultOptions(""), time.Second, zerolog.Nop())

	res, err := s.Transcribe(context.Background(), BytesAudio([]byte("x"), "a.webm", "video/webm"))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Text != "hello" {
		t.Errorf("Text = %q", res.Text)
	}
	if p.opts.Language != "en" || p.opts.Temperature != 0 {
		t.Errorf("opts = %+v, want language en temperature 0", p.opts)
	}
}

func TestServiceTimeout(t *testing.T) {
	p := &mockProvider{fn: func(ctx context.Context) (*Result, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	s := NewService(p, DefaultOptions("en"), 20*time.Millisecond, zerolog.Nop())

	_, err := s.Transcribe(context.Background(), BytesAudio([]byte("x"), "a.wav", "audio/wav"))
	var ue *UpstreamError
	if !errors.As(err, &ue) || ue.StatusCode != http.StatusGatewayTimeout {
		t.Errorf("err = %v, want UpstreamError 504", err)
	}
}

func TestWhisperClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
			return
		}
		for field, want := range map[string]string{
			"model":           "whisper-1",
			"language":        "en",
			"temperature":     "0.00",
			"response_format": "verbose_json",
		} {
			if got := r.FormValue(field); got != want {
				t.Errorf("%s = %q, want %q", field, got, want)
			}
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile: %v", err)
			return
		}
		defer f.Close()
		if hdr.Filename != "recording.wav" {
			t.Errorf("filename = %q", hdr.Filename)
		}
		io.WriteString(w, `{"text":"procedure is closed reduction","language":"en","duration":2.1}`)
	}))
	defer srv.Close()

	wc := NewWhisperClient(srv.URL, "whisper-1", 5*time.Second)
	res, err := wc.Transcribe(context.Background(), BytesAudio([]byte("RIFF"), "recording.wav", "audio/wav"), DefaultOptions("en"))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Text != "procedure is closed reduction" || res.Duration != 2.1 {
		t.Errorf("res = %+v", res)
	}
}

func TestWhisperClientUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		io.WriteString(w, `{"detail":"model loading"}`)
	}))
	defer srv.Close()

	wc := NewWhisperClient(srv.URL, "", time.Second)
	_, err := wc.Transcribe(context.Background(), BytesAudio([]byte("x"), "a.wav", "audio/wav"), Options{})
	var ue *UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("err = %v, want *UpstreamError", err)
	}
	if ue.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("StatusCode = %d", ue.StatusCode)
	}
	if !strings.Contains(ue.Message, "model loading") {
		t.Errorf("Message = %q", ue.Message)
	}
}

func TestAllowedType(t *testing.T) {
	tests := []struct {
		ct   string
		want bool
	}{
		{"audio/webm;codecs=opus", true},
		{"audio/x-m4a", true},
		{"video/webm", true},
		{"VIDEO/MP4", true},
		{"application/octet-stream", false},
		{"text/plain", false},
		{"", false},
		{"audio", false},
	}
	for _, tt := range tests {
		if got := AllowedType(tt.ct); got != tt.want {
			t.Errorf("AllowedType(%q) = %v, want %v", tt.ct, got, tt.want)
		}
	}
}

func TestNewUpstreamErrorDefaultsStatus(t *testing.T) {
	if got := NewUpstreamError("x", 0).StatusCode; got != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d, want 500", got)
	}
	if got := NewUpstreamError("x", 429).StatusCode; got != 429 {
		t.Errorf("StatusCode = %d, want 429", got)
	}
}
