package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/orthocare/orthocare/internal/transcribe"
)

// DefaultTimeslice is the chunk and elapsed-counter granularity.
const DefaultTimeslice = time.Second

// Blob is one finished recording.
type Blob struct {
	Data     []byte
	MIMEType string
	Filename string
	Duration time.Duration
}

// Empty reports whether nothing was captured.
func (b Blob) Empty() bool { return len(b.Data) == 0 }

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithConstraints overrides VoiceConstraints.
func WithConstraints(c Constraints) RecorderOption {
	return func(r *Recorder) { r.constraints = c }
}

// WithEncoders sets the encoder registry.
func WithEncoders(reg *Registry) RecorderOption {
	return func(r *Recorder) { r.encoders = reg }
}

// WithTimeslice changes the chunk interval (tests use milliseconds).
func WithTimeslice(d time.Duration) RecorderOption {
	return func(r *Recorder) { r.timeslice = d }
}

// WithMaxBytes caps the encoded recording size. Once the buffered audio
// would encode past n bytes the recording ends as if the input ran dry.
// The default is transcribe.MaxAudioBytes; n <= 0 removes the cap.
func WithMaxBytes(n int) RecorderOption {
	return func(r *Recorder) { r.maxBytes = n }
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) RecorderOption {
	return func(r *Recorder) { r.log = log.With().Str("component", "capture").Logger() }
}

// WithTickHandler is called with the elapsed seconds after every timeslice.
func WithTickHandler(fn func(elapsed int)) RecorderOption {
	return func(r *Recorder) { r.onTick = fn }
}

// WithErrorHandler is called when the stream fails mid-recording. The
// stream is released before the handler runs.
func WithErrorHandler(fn func(error)) RecorderOption {
	return func(r *Recorder) { r.onError = fn }
}

// Recorder drives one Device through start/stop/cleanup. It is safe for
// concurrent use.
type Recorder struct {
	device      Device
	constraints Constraints
	encoders    *Registry
	timeslice   time.Duration
	maxBytes    int
	log         zerolog.Logger
	onTick      func(int)
	onError     func(error)

	mu        sync.Mutex
	session   *recording
	opening   bool
	epoch     uint64 // bumped by Cleanup
	elapsed   int
	startedAt time.Time
}

// recording is the state owned by one Start..Stop span.
type recording struct {
	stream  Stream
	format  Format
	pending []byte
	chunks  [][]byte
	size    int // PCM bytes collected
	budget  int // PCM bytes allowed, 0 for no cap
	stop    chan struct{}
	ended   chan struct{} // closed when the stream hits EOF or fails
	endOnce sync.Once
}

func (s *recording) end() { s.endOnce.Do(func() { close(s.ended) }) }

// flush moves pending bytes into a new chunk. Caller holds the lock.
func (s *recording) flush() {
	if len(s.pending) == 0 {
		return
	}
	s.chunks = append(s.chunks, s.pending)
	s.pending = nil
}

// NewRecorder creates a recorder for device.
func NewRecorder(device Device, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		device:      device,
		constraints: VoiceConstraints(),
		timeslice:   DefaultTimeslice,
		maxBytes:    transcribe.MaxAudioBytes,
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.encoders == nil {
		r.encoders = NewRegistry()
	}
	return r
}

// Start acquires the device and begins collecting audio. The lock is not
// held while the device opens, so Cleanup can run during a slow Open; the
// opened stream is then released and ErrStartAborted returned.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.session != nil || r.opening {
		r.mu.Unlock()
		return ErrBusy
	}
	r.opening = true
	epoch := r.epoch
	r.mu.Unlock()

	stream, err := r.device.Open(ctx, r.constraints)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.opening = false
	if err != nil {
		return err
	}
	if r.epoch != epoch {
		if err := stream.Close(); err != nil {
			r.log.Warn().Err(err).Msg("release input device")
		}
		return ErrStartAborted
	}

	s := &recording{
		stream: stream,
		format: stream.Format(),
		stop:   make(chan struct{}),
		ended:  make(chan struct{}),
	}
	if r.maxBytes > 0 {
		s.budget = r.encoders.Select().MaxPCM(r.maxBytes, s.format)
	}
	r.session = s
	r.elapsed = 0
	r.startedAt = time.Now()

	go r.readLoop(s)
	go r.tickLoop(s)

	r.log.Debug().
		Int("sample_rate", s.format.SampleRate).
		Int("channels", s.format.Channels).
		Int("max_pcm_bytes", s.budget).
		Msg("recording started")
	return nil
}

// Stop finalizes the recording and releases the device. Calling Stop while
// not recording returns an empty Blob and no error.
func (r *Recorder) Stop() (Blob, error) {
	r.mu.Lock()
	s := r.session
	if s == nil {
		r.mu.Unlock()
		return Blob{}, nil
	}
	s.flush()
	chunks := s.chunks
	started := r.startedAt
	r.detach(s)
	r.mu.Unlock()

	if err := s.stream.Close(); err != nil {
		r.log.Warn().Err(err).Msg("release input device")
	}

	var pcm bytes.Buffer
	for _, c := range chunks {
		pcm.Write(c)
	}
	if pcm.Len() == 0 {
		return Blob{}, nil
	}

	enc := r.encoders.Select()
	data, err := enc.Encode(pcm.Bytes(), s.format)
	if err != nil {
		return Blob{}, fmt.Errorf("encode %s: %w", enc.MIMEType(), err)
	}

	duration := time.Duration(float64(pcm.Len()) / float64(s.format.BytesPerSecond()) * float64(time.Second))
	r.log.Debug().
		Int("chunks", len(chunks)).
		Int("bytes", len(data)).
		Dur("wall", time.Since(started)).
		Dur("audio", duration).
		Msg("recording stopped")

	return Blob{
		Data:     data,
		MIMEType: enc.MIMEType(),
		Filename: "recording." + enc.Extension(),
		Duration: duration,
	}, nil
}

// Cleanup discards any active recording, releases the device and resets
// the counters. It is safe to call any number of times.
func (r *Recorder) Cleanup() {
	r.mu.Lock()
	r.epoch++
	s := r.session
	if s != nil {
		r.detach(s)
	}
	r.elapsed = 0
	r.startedAt = time.Time{}
	r.mu.Unlock()

	if s != nil {
		if err := s.stream.Close(); err != nil {
			r.log.Warn().Err(err).Msg("release input device")
		}
	}
}

// detach ends s as the active session. Caller holds the lock.
func (r *Recorder) detach(s *recording) {
	r.release(s)
	s.end()
}

// release drops s without closing Ended.
func (r *Recorder) release(s *recording) {
	close(s.stop)
	s.pending, s.chunks = nil, nil
	r.session = nil
}

// Recording reports whether a recording is active.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session != nil
}

// Elapsed returns whole seconds recorded so far.
func (r *Recorder) Elapsed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.elapsed
}

// Buffered returns the number of PCM bytes collected in the active session.
func (r *Recorder) Buffered() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session == nil {
		return 0
	}
	return r.session.size
}

// Ended is closed when the active stream runs dry (EOF or failure), the
// size cap is reached or the recording is stopped. It returns a closed channel when idle.
func (r *Recorder) Ended() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return r.session.ended
}

func (r *Recorder) readLoop(s *recording) {
	buf := make([]byte, 8192)
	for {
		n, err := s.stream.Read(buf)
		r.mu.Lock()
		if r.session != s {
			r.mu.Unlock()
			return
		}
		if s.budget > 0 && s.size+n > s.budget {
			n = s.budget - s.size
		}
		if n > 0 {
			s.pending = append(s.pending, buf[:n]...)
			s.size += n
		}
		size, full := s.size, s.budget > 0 && s.size >= s.budget
		r.mu.Unlock()

		if full {
			r.log.Info().Int("bytes", size).Msg("recording size limit reached")
			s.end()
			return
		}

		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) {
			s.end()
			return
		}
		r.fail(s, err)
		return
	}
}

// fail releases the device after a read error and reports it. Ended is
// closed only after the error handler ran.
func (r *Recorder) fail(s *recording, err error) {
	r.mu.Lock()
	if r.session != s {
		r.mu.Unlock()
		return
	}
	r.release(s)
	r.elapsed = 0
	onError := r.onError
	r.mu.Unlock()

	s.stream.Close()
	r.log.Warn().Err(err).Msg("recording error")
	if onError != nil {
		onError(err)
	}
	s.end()
}

func (r *Recorder) tickLoop(s *recording) {
	t := time.NewTicker(r.timeslice)
	defer t.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-t.C:
			r.mu.Lock()
			if r.session != s {
				r.mu.Unlock()
				return
			}
			s.flush()
			r.elapsed++
			elapsed := r.elapsed
			onTick := r.onTick
			r.mu.Unlock()
			if onTick != nil {
				onTick(elapsed)
			}
		}
	}
}
