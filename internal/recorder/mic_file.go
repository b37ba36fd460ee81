package recorder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ent0n29/lingua/internal/audio"
)

// FileMicrophone replays a WAV or raw PCM16LE file as if it were captured
// live. With Realtime set, reads are paced at the file's sample rate.
type FileMicrophone struct {
	Path       string
	SampleRate int
	Realtime   bool
}

func (m FileMicrophone) Open(ctx context.Context) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(m.Path)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return nil, fmt.Errorf("%w: %v", ErrPermissionDenied, err)
		}
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %v", ErrNoMicrophone, err)
		}
		return nil, err
	}

	pcm, rate := raw, m.SampleRate
	if strings.EqualFold(filepath.Ext(m.Path), ".wav") {
		pcm, rate, err = audio.DecodeWAV(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", m.Path, err)
		}
	}
	if rate <= 0 {
		rate = audio.DefaultSampleRate
	}
	return &fileStream{
		r:        bytes.NewReader(pcm),
		rate:     rate,
		realtime: m.Realtime,
		stopped:  make(chan struct{}),
	}, nil
}

type fileStream struct {
	r        *bytes.Reader
	rate     int
	realtime bool
	stopped  chan struct{}
	once     sync.Once
}

func (s *fileStream) Read(p []byte) (int, error) {
	select {
	case <-s.stopped:
		return 0, io.ErrClosedPipe
	default:
	}
	n, err := s.r.Read(p)
	if s.realtime && n > 0 {
		pace := time.Duration(n/2) * time.Second / time.Duration(s.rate)
		select {
		case <-time.After(pace):
		case <-s.stopped:
		}
	}
	return n, err
}

func (s *fileStream) SampleRate() int { return s.rate }
func (s *fileStream) Tracks() []Track { return []Track{s} }

func (s *fileStream) Stop() {
	s.once.Do(func() { close(s.stopped) })
}
