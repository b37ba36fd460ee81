package history

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"
)

// Store is the capped, ordered local chat log. Every Append is written through
// to the backend before it returns.
type Store struct {
	mu       sync.RWMutex
	backend  Backend
	key      string
	capacity int
	messages []Message
	now      func() time.Time
}

type Options struct {
	Key      string
	Capacity int
}

// Open loads the log persisted under opts.Key. An unreadable log is logged and
// replaced by an empty one so the client can still start offline.
func Open(backend Backend, opts Options) (*Store, error) {
	if backend == nil {
		backend = NewMemoryBackend()
	}
	if opts.Key == "" {
		opts.Key = DefaultKey
	}
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}

	s := &Store{
		backend:  backend,
		key:      opts.Key,
		capacity: opts.Capacity,
		now:      func() time.Time { return time.Now().UTC() },
	}

	raw, ok, err := backend.Get(opts.Key)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	if ok && len(raw) > 0 {
		var msgs []Message
		if err := json.Unmarshal(raw, &msgs); err != nil {
			log.Printf("history: discarding unreadable log under %q: %v", opts.Key, err)
		} else {
			s.messages = msgs
		}
	}
	// A smaller capacity than the one the log was written with still holds.
	s.messages = evict(s.messages, s.capacity)
	return s, nil
}

// Append adds msg at the end of the log, dropping the oldest entries beyond
// capacity. The stored copy is returned with its timestamp filled in.
func (s *Store) Append(msg Message) (Message, error) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = evict(append(s.messages, msg), s.capacity)

	raw, err := json.Marshal(s.messages)
	if err != nil {
		return msg, fmt.Errorf("encode history: %w", err)
	}
	if err := s.backend.Put(s.key, raw); err != nil {
		return msg, fmt.Errorf("persist history: %w", err)
	}
	return msg, nil
}

// LoadAll returns the log oldest-first.
func (s *Store) LoadAll() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

func (s *Store) Capacity() int { return s.capacity }

func (s *Store) Close() error {
	return s.backend.Close()
}

func evict(msgs []Message, capacity int) []Message {
	if len(msgs) <= capacity {
		return msgs
	}
	kept := make([]Message, capacity)
	copy(kept, msgs[len(msgs)-capacity:])
	return kept
}
