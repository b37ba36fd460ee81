package quota

import "sync"

// DefaultLimit matches the agent service's default daily audio allowance.
const DefaultLimit = 10

// State is a snapshot of the current period's usage. Consumed is the last
// figure the server disclosed; Pending counts uploads sent since then whose
// response carried no figure.
type State struct {
	Consumed int `json:"consumed"`
	Limit    int `json:"limit"`
	Pending  int `json:"pending,omitempty"`
}

// Remaining is the allowance left per the server's last figure.
func (s State) Remaining() int {
	if s.Consumed >= s.Limit {
		return 0
	}
	return s.Limit - s.Consumed
}

// Displayed folds the local estimate in, for presentation only.
func (s State) Displayed() int {
	n := s.Consumed + s.Pending
	if n > s.Limit {
		return s.Limit
	}
	return n
}

// Tracker bounds audio messages per period. Gating uses only the server's
// figures; NoteSent feeds the display estimate and is discarded by Reconcile.
type Tracker struct {
	mu       sync.Mutex
	consumed int
	pending  int
	limit    int
}

func NewTracker(limit int) *Tracker {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Tracker{limit: limit}
}

func (t *Tracker) CanSend() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.consumed < t.limit
}

// Reconcile applies the server's remaining allowance; nil leaves state untouched.
func (t *Tracker) Reconcile(remaining *int) {
	if remaining == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.consumed = t.limit - *remaining
	t.pending = 0
}

func (t *Tracker) NoteSent() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending++
}

func (t *Tracker) Snapshot() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return State{Consumed: t.consumed, Limit: t.limit, Pending: t.pending}
}
