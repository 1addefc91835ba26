package capture

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orthocare/orthocare/internal/transcribe"
)

// pipeDevice hands out pipe-backed streams and counts acquisitions.
type pipeDevice struct {
	mu      sync.Mutex
	opens   int
	err     error
	format  Format
	streams []*pipeStream
}

func (d *pipeDevice) Open(ctx context.Context, c Constraints) (Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	d.opens++
	pr, pw := io.Pipe()
	s := &pipeStream{pr: pr, pw: pw, format: d.format}
	d.streams = append(d.streams, s)
	return s, nil
}

func (d *pipeDevice) last() *pipeStream {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.streams[len(d.streams)-1]
}

type pipeStream struct {
	pr     *io.PipeReader
	pw     *io.PipeWriter
	format Format
	mu     sync.Mutex
	closed bool
}

func (s *pipeStream) Read(p []byte) (int, error) { return s.pr.Read(p) }
func (s *pipeStream) Format() Format             { return s.format }
func (s *pipeStream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return s.pr.Close()
}
func (s *pipeStream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func samples(vals ...int16) []byte {
	out := make([]byte, 2*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(v))
	}
	return out
}

func newTestDevice() *pipeDevice {
	return &pipeDevice{format: Format{SampleRate: 16000, Channels: 1}}
}

func TestRecorderStartStop(t *testing.T) {
	dev := newTestDevice()
	rec := NewRecorder(dev, WithTimeslice(10*time.Millisecond))

	require.NoError(t, rec.Start(context.Background()))
	require.True(t, rec.Recording())

	s := dev.last()
	parts := [][]byte{samples(1, 2, 3), samples(-4, 5), samples(600, -700, 8, 9)}
	var want []byte
	for _, p := range parts {
		_, err := s.pw.Write(p)
		require.NoError(t, err)
		want = append(want, p...)
		time.Sleep(15 * time.Millisecond)
	}
	require.Eventually(t, func() bool { return rec.Buffered() == len(want) }, time.Second, 5*time.Millisecond)

	blob, err := rec.Stop()
	require.NoError(t, err)
	assert.False(t, rec.Recording())
	assert.True(t, s.isClosed(), "device must be released on stop")
	assert.Equal(t, "audio/wav", blob.MIMEType)
	assert.Equal(t, "recording.wav", blob.Filename)

	dec := wav.NewDecoder(bytes.NewReader(blob.Data))
	require.True(t, dec.IsValidFile())
	buf, err := dec.FullPCMBuffer()
	require.NoError(t, err)
	assert.Equal(t, pcm16ToInts(want), buf.Data, "chunks must be concatenated in capture order")
}

func TestRecorderStartErrors(t *testing.T) {
	for _, want := range []error{ErrPermissionDenied, ErrDeviceUnavailable} {
		dev := newTestDevice()
		dev.err = want
		rec := NewRecorder(dev)
		err := rec.Start(context.Background())
		assert.ErrorIs(t, err, want)
		assert.False(t, rec.Recording())
	}
}

func TestRecorderSecondStartIsRejected(t *testing.T) {
	dev := newTestDevice()
	rec := NewRecorder(dev)
	require.NoError(t, rec.Start(context.Background()))
	defer rec.Cleanup()

	assert.ErrorIs(t, rec.Start(context.Background()), ErrBusy)
	assert.Equal(t, 1, dev.opens)
}

// gateDevice blocks in Open until release is closed.
type gateDevice struct {
	opening chan struct{}
	release chan struct{}
	stream  *pipeStream
}

func newGateDevice() *gateDevice {
	pr, pw := io.Pipe()
	return &gateDevice{
		opening: make(chan struct{}),
		release: make(chan struct{}),
		stream:  &pipeStream{pr: pr, pw: pw, format: Format{SampleRate: 16000, Channels: 1}},
	}
}

func (d *gateDevice) Open(ctx context.Context, c Constraints) (Stream, error) {
	close(d.opening)
	<-d.release
	return d.stream, nil
}

func TestRecorderCleanupDuringSlowOpen(t *testing.T) {
	dev := newGateDevice()
	rec := NewRecorder(dev)
	started := make(chan error, 1)
	go func() { started <- rec.Start(context.Background()) }()
	<-dev.opening

	assert.ErrorIs(t, rec.Start(context.Background()), ErrBusy)

	cleaned := make(chan struct{})
	go func() {
		rec.Cleanup()
		close(cleaned)
	}()
	select {
	case <-cleaned:
	case <-time.After(time.Second):
		t.Fatal("Cleanup blocked behind a pending Open")
	}

	close(dev.release)
	assert.ErrorIs(t, <-started, ErrStartAborted)
	assert.False(t, rec.Recording())
	assert.True(t, dev.stream.isClosed(), "stream opened after cleanup must be released")
}

func TestRecorderStopWhenIdle(t *testing.T) {
	rec := NewRecorder(newTestDevice())
	blob, err := rec.Stop()
	assert.NoError(t, err)
	assert.True(t, blob.Empty())
}

func TestRecorderStopWithoutAudio(t *testing.T) {
	dev := newTestDevice()
	rec := NewRecorder(dev)
	require.NoError(t, rec.Start(context.Background()))
	blob, err := rec.Stop()
	assert.NoError(t, err)
	assert.True(t, blob.Empty())
	assert.True(t, dev.last().isClosed())
}

func TestRecorderCleanupIdempotent(t *testing.T) {
	dev := newTestDevice()
	var ticks sync.WaitGroup
	ticks.Add(1)
	var once sync.Once
	rec := NewRecorder(dev,
		WithTimeslice(5*time.Millisecond),
		WithTickHandler(func(int) { once.Do(ticks.Done) }),
	)

	rec.Cleanup() // idle
	require.NoError(t, rec.Start(context.Background()))
	s := dev.last()
	go s.pw.Write(samples(1, 2, 3, 4))
	ticks.Wait()
	require.Greater(t, rec.Elapsed(), 0)

	for i := 0; i < 3; i++ {
		rec.Cleanup()
		assert.False(t, rec.Recording())
		assert.Equal(t, 0, rec.Elapsed())
		assert.Equal(t, 0, rec.Buffered())
	}
	assert.True(t, s.isClosed())

	// Nothing captured before cleanup may leak into the next recording.
	require.NoError(t, rec.Start(context.Background()))
	blob, err := rec.Stop()
	require.NoError(t, err)
	assert.True(t, blob.Empty())
}

func TestRecorderReadErrorReleasesDevice(t *testing.T) {
	dev := newTestDevice()
	errs := make(chan error, 1)
	rec := NewRecorder(dev, WithErrorHandler(func(err error) { errs <- err }))
	require.NoError(t, rec.Start(context.Background()))

	s := dev.last()
	boom := errors.New("usb unplugged")
	s.pw.CloseWithError(boom)

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, boom)
	case <-time.After(time.Second):
		t.Fatal("error handler not called")
	}
	assert.False(t, rec.Recording())
	assert.True(t, s.isClosed())
}

func TestRecorderEndedOnEOF(t *testing.T) {
	dev := newTestDevice()
	rec := NewRecorder(dev)
	require.NoError(t, rec.Start(context.Background()))
	s := dev.last()
	go func() {
		s.pw.Write(samples(10, 20))
		s.pw.Close()
	}()

	select {
	case <-rec.Ended():
	case <-time.After(time.Second):
		t.Fatal("Ended not closed after EOF")
	}
	blob, err := rec.Stop()
	require.NoError(t, err)
	assert.False(t, blob.Empty())
}

func TestRecorderStopsAtSizeLimit(t *testing.T) {
	f := Format{SampleRate: 48000, Channels: 1}
	dev := NewReaderDevice(bytes.NewReader(make([]byte, 300*f.BytesPerSecond())), f)
	rec := NewRecorder(dev)
	require.NoError(t, rec.Start(context.Background()))

	select {
	case <-rec.Ended():
	case <-time.After(10 * time.Second):
		t.Fatal("recording did not end at the size limit")
	}
	blob, err := rec.Stop()
	require.NoError(t, err)
	assert.LessOrEqual(t, len(blob.Data), transcribe.MaxAudioBytes)
	assert.Greater(t, blob.Duration, 270*time.Second)
	require.NoError(t, transcribe.Validate(transcribe.BytesAudio(blob.Data, blob.Filename, blob.MIMEType)))
}

func TestMaxDurationRecordingValidates(t *testing.T) {
	f := Format{SampleRate: 48000, Channels: 1}
	limit := MaxDuration(WAVEncoder{}, f, transcribe.MaxAudioBytes)
	assert.Equal(t, 273*time.Second, limit)

	pcm := make([]byte, int(limit/time.Second)*f.BytesPerSecond())
	data, err := WAVEncoder{}.Encode(pcm, f)
	require.NoError(t, err)
	assert.Len(t, data, len(pcm)+wavHeaderSize)
	require.NoError(t, transcribe.Validate(transcribe.BytesAudio(data, "recording.wav", "audio/wav")))
}

func TestWAVMaxPCM(t *testing.T) {
	tests := []struct {
		max      int
		channels int
		want     int
	}{
		{1044, 1, 1000},
		{1045, 1, 1000},
		{1047, 2, 1000},
		{44, 1, 0},
		{10, 1, 0},
	}
	for _, tt := range tests {
		got := WAVEncoder{}.MaxPCM(tt.max, Format{SampleRate: 8000, Channels: tt.channels})
		assert.Equal(t, tt.want, got, "MaxPCM(%d, %d ch)", tt.max, tt.channels)
	}
}

func TestRegistrySelectFallsBack(t *testing.T) {
	reg := NewRegistry()
	assert.Equal(t, "audio/wav", reg.Select().MIMEType())
	assert.False(t, reg.Supported("audio/webm;codecs=opus"))

	reg.Register(fakeEncoder{mime: "audio/ogg;codecs=opus"})
	assert.Equal(t, "audio/ogg;codecs=opus", reg.Select().MIMEType())

	reg.Register(fakeEncoder{mime: "audio/webm;codecs=opus"})
	assert.Equal(t, "audio/webm;codecs=opus", reg.Select().MIMEType())
}

type fakeEncoder struct{ mime string }

func (e fakeEncoder) MIMEType() string                            { return e.mime }
func (e fakeEncoder) Extension() string                           { return "bin" }
func (e fakeEncoder) Encode(pcm []byte, _ Format) ([]byte, error) { return pcm, nil }
func (e fakeEncoder) MaxPCM(n int, _ Format) int                  { return n }

func TestWAVFileDevice(t *testing.T) {
	want := samples(100, -100, 200, -200, 300)
	data, err := WAVEncoder{}.Encode(want, Format{SampleRate: 8000, Channels: 1})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "dictation.wav")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	stream, err := WAVFileDevice{Path: path}.Open(context.Background(), VoiceConstraints())
	require.NoError(t, err)
	defer stream.Close()

	assert.Equal(t, Format{SampleRate: 8000, Channels: 1}, stream.Format())
	got, err := io.ReadAll(stream)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestWAVFileDeviceMissing(t *testing.T) {
	_, err := WAVFileDevice{Path: filepath.Join(t.TempDir(), "nope.wav")}.Open(context.Background(), VoiceConstraints())
	assert.ErrorIs(t, err, ErrDeviceUnavailable)
}

func TestReaderDeviceOpensOnce(t *testing.T) {
	dev := NewReaderDevice(bytes.NewReader(samples(1, 2)), Format{SampleRate: 16000, Channels: 1})
	s, err := dev.Open(context.Background(), VoiceConstraints())
	require.NoError(t, err)
	_, err = dev.Open(context.Background(), VoiceConstraints())
	assert.ErrorIs(t, err, ErrDeviceUnavailable)

	require.NoError(t, s.Close())
	n, err := s.Read(make([]byte, 4))
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, io.EOF)
}

func TestFormatDuration(t *testing.T) {
	tests := map[int]string{0: "00:00", 7: "00:07", 65: "01:05", 600: "10:00", -3: "00:00"}
	for in, want := range tests {
		assert.Equal(t, want, FormatDuration(in), "FormatDuration(%d)", in)
	}
}
