package recorder

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// session is one microphone-capture attempt. It owns the stream and the
// analyser from acquisition until release.
type session struct {
	id        string
	startedAt time.Time

	stream   Stream
	analyser *analyser

	mu      sync.Mutex
	pending []byte
	chunks  [][]byte

	cancel   context.CancelFunc
	wg       sync.WaitGroup
	released sync.Once
}

func newSession(analyserSize int) *session {
	return &session{id: uuid.NewString(), analyser: newAnalyser(analyserSize)}
}

func (s *session) capture(p []byte) {
	s.mu.Lock()
	s.pending = append(s.pending, p...)
	s.mu.Unlock()
	s.analyser.Write(p)
}

// cut closes the pending bytes into a chunk.
func (s *session) cut() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return
	}
	s.chunks = append(s.chunks, s.pending)
	s.pending = nil
}

// release stops the capture goroutines, stops every track, flushes the last
// partial chunk and releases the analyser. Safe to call more than once.
func (s *session) release() {
	s.released.Do(func() {
		defer s.analyser.Release()
		defer s.cut()
		if s.cancel != nil {
			s.cancel()
		}
		if s.stream != nil {
			for _, tr := range s.stream.Tracks() {
				stopTrack(tr)
			}
		}
		s.wg.Wait()
	})
}

func (s *session) payload() ([]byte, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return bytes.Join(s.chunks, nil), len(s.chunks)
}

func stopTrack(tr Track) {
	defer func() { _ = recover() }()
	tr.Stop()
}
