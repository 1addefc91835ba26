// Package dictation turns a recording into form input. A Controller owns one
// recording session at a time, sends the finished audio for transcription
// and applies the text either verbatim to one field or through the field
// extractor to the whole form.
package dictation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/orthocare/orthocare/internal/capture"
	"github.com/orthocare/orthocare/internal/extract"
	"github.com/orthocare/orthocare/internal/transcribe"
)

// State of the recording session.
type State int

const (
	Idle State = iota
	Recording
	Processing
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Processing:
		return "processing"
	case Error:
		return "error"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

var errRecording = errors.New("recording failed")

// Recorder is the capture side the controller drives.
type Recorder interface {
	Start(ctx context.Context) error
	Stop() (capture.Blob, error)
	Cleanup()
	Elapsed() int
}

// Transcriber turns audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, a transcribe.Audio) (*transcribe.Result, error)
}

// Snapshot is the observable session state.
type Snapshot struct {
	State     State
	StartedAt time.Time
	Elapsed   int
	LastError string
}

// Option configures a Controller.
type Option func(*Controller)

// SingleField binds the controller to one field; text is assigned verbatim.
func SingleField(name string) Option {
	return func(c *Controller) { c.field = name }
}

// WithChangeHandler is called after every state change, outside the lock.
func WithChangeHandler(fn func(Snapshot)) Option {
	return func(c *Controller) { c.onChange = fn }
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Controller) { c.log = log.With().Str("component", "dictation").Logger() }
}

// Controller coordinates capture, transcription and form updates. Without
// SingleField it runs in whole-form mode.
type Controller struct {
	rec      Recorder
	tr       Transcriber
	sink     FormSink
	field    string
	onChange func(Snapshot)
	log      zerolog.Logger

	mu        sync.Mutex
	state     State
	startedAt time.Time
	lastError string
	starting  bool
	gen       uint64 // bumped by Start and Cleanup; stale results compare against it
	cancel    context.CancelFunc
	done      chan struct{}
}

// New creates a controller in whole-form mode unless SingleField is given.
func New(rec Recorder, tr Transcriber, sink FormSink, opts ...Option) *Controller {
	c := &Controller{
		rec:  rec,
		tr:   tr,
		sink: sink,
		log:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start begins a recording. It is a no-op while a recording or
// transcription is already in flight, or while the device is still
// opening. The lock is released while the device opens so Cleanup and
// Snapshot stay responsive.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state == Recording || c.state == Processing || c.starting {
		c.mu.Unlock()
		return nil
	}
	c.gen++
	gen := c.gen
	c.starting = true
	c.lastError = ""
	c.mu.Unlock()

	err := c.rec.Start(ctx)

	c.mu.Lock()
	c.starting = false
	if c.gen != gen {
		if err == nil {
			c.rec.Cleanup()
		}
		c.mu.Unlock()
		c.log.Debug().Msg("session torn down while the device was opening")
		return nil
	}
	if err != nil {
		c.rec.Cleanup()
		c.failLocked(err)
		c.mu.Unlock()
		c.notifyFailure()
		return err
	}
	c.state = Recording
	c.startedAt = time.Now()
	if e, ok := c.rec.(ender); ok {
		go c.stopWhenEnded(gen, e.Ended())
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snap)
	return nil
}

// ender is implemented by recorders that end on their own, at end of input
// or at the size cap.
type ender interface {
	Ended() <-chan struct{}
}

func (c *Controller) stopWhenEnded(gen uint64, ended <-chan struct{}) {
	<-ended
	c.stop(gen)
}

// Stop ends the recording and starts transcription in the background. It
// is a no-op unless recording.
func (c *Controller) Stop() {
	c.stop(0)
}

// stop ends the recording of session gen, or of any session when gen is 0.
func (c *Controller) stop(gen uint64) {
	c.mu.Lock()
	if c.state != Recording || (gen != 0 && gen != c.gen) {
		c.mu.Unlock()
		return
	}
	blob, err := c.rec.Stop()
	if err != nil {
		c.failLocked(err)
		c.mu.Unlock()
		c.notifyFailure()
		return
	}
	if blob.Empty() {
		c.state = Idle
		snap := c.snapshotLocked()
		c.mu.Unlock()
		c.log.Debug().Msg("nothing recorded")
		c.notify(snap)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.state = Processing
	c.cancel = cancel
	c.done = done
	gen = c.gen
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snap)
	go c.process(ctx, gen, blob, done)
}

// Toggle starts when idle and stops when recording.
func (c *Controller) Toggle(ctx context.Context) error {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()

	switch state {
	case Recording:
		c.Stop()
	case Idle, Error:
		return c.Start(ctx)
	}
	return nil
}

// RecordingFailed reports a capture failure that happened mid-recording,
// for example from capture.WithErrorHandler.
func (c *Controller) RecordingFailed(err error) {
	c.mu.Lock()
	if c.state != Recording {
		c.mu.Unlock()
		return
	}
	c.rec.Cleanup()
	c.failLocked(fmt.Errorf("%w: %v", errRecording, err))
	c.mu.Unlock()
	c.notifyFailure()
}

// Cleanup tears the session down: the recording is discarded, the device
// released and any in-flight transcription is cancelled and its result
// ignored. Safe to call repeatedly.
func (c *Controller) Cleanup() {
	c.mu.Lock()
	c.gen++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.done = nil
	c.rec.Cleanup()
	c.state = Idle
	c.startedAt = time.Time{}
	c.lastError = ""
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snap)
}

// Wait blocks until the in-flight transcription, if any, has finished.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastError returns the user-facing message of the last failure.
func (c *Controller) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastError
}

func (c *Controller) process(ctx context.Context, gen uint64, blob capture.Blob, done chan struct{}) {
	defer close(done)

	res, err := c.tr.Transcribe(ctx, transcribe.BytesAudio(blob.Data, blob.Filename, blob.MIMEType))

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		c.log.Debug().Msg("discarding transcription for torn-down session")
		return
	}
	c.cancel = nil
	if err == nil && res == nil {
		err = transcribe.ErrTranscriptionUnavailable
	}
	if err != nil {
		c.failLocked(err)
		c.mu.Unlock()
		c.notifyFailure()
		return
	}

	applied := c.applyLocked(res.Text)
	c.state = Idle
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.log.Debug().Int("fields", applied).Dur("audio", blob.Duration).Msg("dictation applied")
	c.notify(snap)
}

// applyLocked writes text into the sink and returns how many fields were set.
func (c *Controller) applyLocked(text string) int {
	if c.field != "" {
		c.sink.Set(c.field, text)
		return 1
	}
	fields := extract.Parse(text)
	for _, f := range fields.Present() {
		c.sink.Set(string(f), fields[f])
	}
	return len(fields)
}

// failLocked records err and passes through Error back to Idle. The
// intermediate Error snapshot is delivered by notifyFailure.
func (c *Controller) failLocked(err error) {
	c.lastError = userMessage(err)
	c.state = Idle
	c.startedAt = time.Time{}
	c.log.Warn().Err(err).Msg("dictation failed")
}

func (c *Controller) notifyFailure() {
	snap := c.Snapshot()
	if snap.State != Idle {
		c.notify(snap)
		return
	}
	errSnap := snap
	errSnap.State = Error
	c.notify(errSnap)
	c.notify(snap)
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		State:     c.state,
		StartedAt: c.startedAt,
		Elapsed:   c.rec.Elapsed(),
		LastError: c.lastError,
	}
}

func (c *Controller) notify(s Snapshot) {
	if c.onChange != nil {
		c.onChange(s)
	}
}
