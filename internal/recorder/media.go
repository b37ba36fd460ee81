package recorder

import (
	"context"
	"errors"
	"io"
)

var (
	ErrPermissionDenied = errors.New("microphone permission denied")
	ErrNoMicrophone     = errors.New("no microphone available")
	ErrQuotaExceeded    = errors.New("audio quota exceeded")
	ErrUploadFailed     = errors.New("audio upload failed")
	ErrEmptyRecording   = errors.New("recording captured no audio")
	ErrNotRecording     = errors.New("not recording")
)

// Microphone acquires an input stream. Implementations return an error
// wrapping ErrPermissionDenied when the user or the platform refuses access.
type Microphone interface {
	Open(ctx context.Context) (Stream, error)
}

// Stream yields mono PCM16LE audio. Reads unblock with an error once every
// track has been stopped.
type Stream interface {
	io.Reader
	SampleRate() int
	Tracks() []Track
}

type Track interface {
	Stop()
}

// Visualizer receives frequency-domain levels (0..255 per bin) on every
// refresh tick.
type Visualizer interface {
	Render(levels []uint8) error
}

type VisualizerFunc func(levels []uint8) error

func (f VisualizerFunc) Render(levels []uint8) error { return f(levels) }
