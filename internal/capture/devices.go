package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/go-audio/wav"
)

// ReaderDevice exposes an already-open PCM source (stdin, a pipe from
// arecord or sox) as a device. It can be opened once.
type ReaderDevice struct {
	mu     sync.Mutex
	r      io.Reader
	format Format
	opened bool
}

// NewReaderDevice wraps r, which must carry s16le PCM in format f.
func NewReaderDevice(r io.Reader, f Format) *ReaderDevice {
	return &ReaderDevice{r: r, format: f}
}

func (d *ReaderDevice) Open(ctx context.Context, c Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.r == nil || d.opened {
		return nil, ErrDeviceUnavailable
	}
	if d.format.SampleRate <= 0 || d.format.Channels <= 0 {
		return nil, fmt.Errorf("%w: invalid format %+v", ErrDeviceUnavailable, d.format)
	}
	d.opened = true
	return &readerStream{r: d.r, format: d.format}, nil
}

type readerStream struct {
	mu     sync.Mutex
	r      io.Reader
	format Format
	closed bool
}

func (s *readerStream) Format() Format { return s.format }

// Read returns EOF once the stream is closed. A Read already blocked on the
// underlying reader is not interrupted; the Recorder discards what it
// returns.
func (s *readerStream) Read(p []byte) (int, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return 0, io.EOF
	}
	return s.r.Read(p)
}

func (s *readerStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if c, ok := s.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// WAVFileDevice plays a WAV file as if it were a microphone. With Realtime
// set, samples are released at the file's playback rate so the elapsed
// counter tracks audio time.
type WAVFileDevice struct {
	Path     string
	Realtime bool
}

func (d WAVFileDevice) Open(ctx context.Context, c Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(d.Path)
	switch {
	case errors.Is(err, os.ErrPermission):
		return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, d.Path)
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: %s is not a valid wav file", ErrDeviceUnavailable, d.Path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrDeviceUnavailable, d.Path, err)
	}

	format := Format{SampleRate: int(dec.SampleRate), Channels: int(dec.NumChans)}
	pcm := intsToPCM16(buf.Data, int(dec.BitDepth))
	s := &pcmStream{r: bytes.NewReader(pcm), format: format, done: make(chan struct{})}
	if d.Realtime {
		s.pace = format.BytesPerSecond() / 10
	}
	return s, nil
}

// pcmStream serves decoded PCM, optionally in 100ms slices.
type pcmStream struct {
	r      *bytes.Reader
	format Format
	pace   int // bytes per 100ms, 0 = unpaced
	once   sync.Once
	done   chan struct{}
}

func (s *pcmStream) Format() Format { return s.format }

func (s *pcmStream) Read(p []byte) (int, error) {
	select {
	case <-s.done:
		return 0, io.EOF
	default:
	}
	if s.pace > 0 {
		if len(p) > s.pace {
			p = p[:s.pace]
		}
		select {
		case <-time.After(100 * time.Millisecond):
		case <-s.done:
			return 0, io.EOF
		}
	}
	return s.r.Read(p)
}

func (s *pcmStream) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}
