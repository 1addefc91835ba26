package capture

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/orcaman/writerseeker"
)

// PreferredMIMETypes is the container preference order, best first.
var PreferredMIMETypes = []string{
	"audio/webm;codecs=opus",
	"audio/webm",
	"audio/ogg;codecs=opus",
	"audio/mp4",
	"audio/wav",
}

// Encoder turns raw PCM into a container the transcription service accepts.
type Encoder interface {
	MIMEType() string
	Extension() string
	Encode(pcm []byte, f Format) ([]byte, error)
	// MaxPCM is the largest PCM length, in whole frames, whose encoding
	// stays within maxEncoded bytes.
	MaxPCM(maxEncoded int, f Format) int
}

// Registry holds the encoders available in this build.
type Registry struct {
	encoders map[string]Encoder
}

// NewRegistry registers encs by MIME type. WAV is always present so
// selection can never fail.
func NewRegistry(encs ...Encoder) *Registry {
	r := &Registry{encoders: make(map[string]Encoder)}
	r.Register(WAVEncoder{})
	for _, e := range encs {
		r.Register(e)
	}
	return r
}

// Register adds or replaces the encoder for e.MIMEType().
func (r *Registry) Register(e Encoder) {
	r.encoders[e.MIMEType()] = e
}

// Supported reports whether mimeType has an encoder.
func (r *Registry) Supported(mimeType string) bool {
	_, ok := r.encoders[mimeType]
	return ok
}

// Select returns the most preferred supported encoder, falling back to WAV.
func (r *Registry) Select() Encoder {
	for _, mt := range PreferredMIMETypes {
		if e, ok := r.encoders[mt]; ok {
			return e
		}
	}
	return WAVEncoder{}
}

// WAVEncoder writes 16-bit PCM WAV.
type WAVEncoder struct{}

func (WAVEncoder) MIMEType() string  { return "audio/wav" }
func (WAVEncoder) Extension() string { return "wav" }

// wavHeaderSize is the canonical RIFF/fmt/data header go-audio/wav writes.
const wavHeaderSize = 44

func (WAVEncoder) MaxPCM(maxEncoded int, f Format) int {
	frame := 2 * f.Channels
	if frame <= 0 || maxEncoded <= wavHeaderSize {
		return 0
	}
	return (maxEncoded - wavHeaderSize) / frame * frame
}

func (WAVEncoder) Encode(pcm []byte, f Format) ([]byte, error) {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return nil, fmt.Errorf("invalid format %+v", f)
	}
	ws := &writerseeker.WriterSeeker{}
	enc := wav.NewEncoder(ws, f.SampleRate, 16, f.Channels, 1)

	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: f.Channels, SampleRate: f.SampleRate},
		Data:           pcm16ToInts(pcm),
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("encoder write buffer: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoder close: %w", err)
	}
	out, err := io.ReadAll(ws.Reader())
	if err != nil {
		return nil, fmt.Errorf("reading wav into memory: %w", err)
	}
	return out, nil
}

// pcm16ToInts decodes little-endian int16 samples. A trailing odd byte is
// dropped.
func pcm16ToInts(pcm []byte) []int {
	out := make([]int, len(pcm)/2)
	for i := range out {
		out[i] = int(int16(binary.LittleEndian.Uint16(pcm[2*i:])))
	}
	return out
}

// intsToPCM16 is the inverse of pcm16ToInts, rescaling from bitDepth.
func intsToPCM16(samples []int, bitDepth int) []byte {
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		switch {
		case bitDepth > 16:
			s >>= bitDepth - 16
		case bitDepth == 8:
			s = (s - 128) << 8
		case bitDepth < 16:
			s <<= 16 - bitDepth
		}
		binary.LittleEndian.PutUint16(out[2*i:], uint16(int16(s)))
	}
	return out
}
