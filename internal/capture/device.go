// Package capture records microphone-style PCM input into a single encoded
// audio blob.
//
// A Device hands out an exclusive Stream of interleaved signed 16-bit
// little-endian samples. The Recorder owns that stream for the duration of
// one recording, collects it in one-second chunks and releases it on Stop,
// on a read error and on Cleanup.
package capture

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrPermissionDenied means the input exists but access was refused.
	ErrPermissionDenied = errors.New("microphone access denied")

	// ErrDeviceUnavailable means there is no usable input device.
	ErrDeviceUnavailable = errors.New("no audio input device available")

	// ErrBusy is returned by Start while a recording is already active.
	ErrBusy = errors.New("recording already in progress")

	// ErrStartAborted is returned by Start when Cleanup ran while the device
	// was still opening.
	ErrStartAborted = errors.New("recording start cancelled")
)

// Constraints are the capture settings requested from a device. Devices
// that cannot honour a setting ignore it and report what they actually
// deliver through Stream.Format.
type Constraints struct {
	EchoCancellation bool
	NoiseSuppression bool
	AutoGainControl  bool
	SampleRate       int
	Channels         int
	BitRate          int // target for compressed encoders, bits per second
}

// VoiceConstraints favours speech clarity: processing enabled, mono, 48 kHz.
func VoiceConstraints() Constraints {
	return Constraints{
		EchoCancellation: true,
		NoiseSuppression: true,
		AutoGainControl:  true,
		SampleRate:       48000,
		Channels:         1,
		BitRate:          128000,
	}
}

// Format describes the PCM a Stream delivers.
type Format struct {
	SampleRate int
	Channels   int
}

// BytesPerSecond for 16-bit interleaved PCM.
func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.Channels * 2
}

// Stream is an open input handle. Close releases the device.
type Stream interface {
	io.ReadCloser
	Format() Format
}

// Device opens input streams.
type Device interface {
	Open(ctx context.Context, c Constraints) (Stream, error)
}
