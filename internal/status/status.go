// Package status carries user-facing signals from the client core to whatever
// presents them. The core only emits; it never renders.
package status

import (
	"sync"
	"time"

	"github.com/ent0n29/lingua/internal/history"
)

type Kind string

const (
	KindMessage          Kind = "message"
	KindTyping           Kind = "typing"
	KindRecordingState   Kind = "recording_state"
	KindRecordingElapsed Kind = "recording_elapsed"
	KindPermissionDenied Kind = "permission_denied"
	KindQuotaExceeded    Kind = "quota_exceeded"
	KindDispatchError    Kind = "dispatch_error"
	KindUploadFailed     Kind = "upload_failed"
	KindOnline           Kind = "online"
	KindOffline          Kind = "offline"
	KindNotification     Kind = "notification"
	KindInfo             Kind = "info"
)

type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Event is a single transient signal.
type Event struct {
	Kind    Kind
	Level   Level
	Text    string
	Title   string
	Active  bool
	State   string
	Elapsed time.Duration
	Message *history.Message
	At      time.Time
}

type Sink interface {
	Emit(Event)
}

type SinkFunc func(Event)

func (f SinkFunc) Emit(ev Event) { f(ev) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})

// Multi fans one event out to several sinks in order.
type Multi []Sink

func (m Multi) Emit(ev Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(ev)
		}
	}
}

// Emit stamps ev and delivers it, tolerating a nil sink.
func Emit(s Sink, ev Event) {
	if s == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	if ev.Level == "" {
		ev.Level = LevelInfo
	}
	s.Emit(ev)
}

// Recorder keeps every event it receives. Safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *Recorder) Count(kind Kind) int {
	n := 0
	for _, ev := range r.Events() {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

// Last returns the most recent event of kind.
func (r *Recorder) Last(kind Kind) (Event, bool) {
	events := r.Events()
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Kind == kind {
			return events[i], true
		}
	}
	return Event{}, false
}

// Typing reports whether the most recent typing signal left the indicator on.
func (r *Recorder) Typing() bool {
	ev, ok := r.Last(KindTyping)
	return ok && ev.Active
}
