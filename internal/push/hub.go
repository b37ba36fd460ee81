package push

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("subscriber not found")

const queueSize = 32

// Subscriber describes one connected push channel.
type Subscriber struct {
	ID             string    `json:"subscriber_id"`
	UserID         string    `json:"user_id"`
	ConnectedAt    time.Time `json:"connected_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// Subscription is handed to the connection that owns a subscriber. C is
// closed when the subscriber is removed or expires.
type Subscription struct {
	Subscriber
	C <-chan any
}

type entry struct {
	info Subscriber
	out  chan any
}

// Hub fans notifications out to per-user subscribers. Slow subscribers drop
// messages instead of blocking publishers.
type Hub struct {
	mu                sync.RWMutex
	subs              map[string]*entry
	byUser            map[string]map[string]struct{}
	inactivityTimeout time.Duration
	onExpire          func(Subscriber)
	onDrop            func(Subscriber)
}

func NewHub(inactivityTimeout time.Duration) *Hub {
	if inactivityTimeout <= 0 {
		inactivityTimeout = 10 * time.Minute
	}
	return &Hub{
		subs:              make(map[string]*entry),
		byUser:            make(map[string]map[string]struct{}),
		inactivityTimeout: inactivityTimeout,
	}
}

func (h *Hub) SetExpireHook(hook func(Subscriber)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onExpire = hook
}

// SetDropHook is called when a message is dropped for a full queue.
func (h *Hub) SetDropHook(hook func(Subscriber)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onDrop = hook
}

func (h *Hub) Subscribe(userID string) *Subscription {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		userID = "anonymous"
	}
	now := time.Now().UTC()
	e := &entry{
		info: Subscriber{
			ID:             uuid.NewString(),
			UserID:         userID,
			ConnectedAt:    now,
			LastActivityAt: now,
		},
		out: make(chan any, queueSize),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs[e.info.ID] = e
	if h.byUser[userID] == nil {
		h.byUser[userID] = make(map[string]struct{})
	}
	h.byUser[userID][e.info.ID] = struct{}{}
	return &Subscription{Subscriber: e.info, C: e.out}
}

func (h *Hub) Unsubscribe(id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[id]; !ok {
		return ErrNotFound
	}
	h.removeLocked(id)
	return nil
}

// Touch records activity (a pong or inbound frame) for a subscriber.
func (h *Hub) Touch(id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	e, ok := h.subs[id]
	if !ok {
		return ErrNotFound
	}
	e.info.LastActivityAt = time.Now().UTC()
	return nil
}

// Publish queues msg for every subscriber of userID and returns how many
// accepted it.
func (h *Hub) Publish(userID string, msg any) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := 0
	for id := range h.byUser[strings.TrimSpace(userID)] {
		if h.offerLocked(h.subs[id], msg) {
			delivered++
		}
	}
	return delivered
}

// Broadcast queues msg for all subscribers.
func (h *Hub) Broadcast(msg any) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := 0
	for _, e := range h.subs {
		if h.offerLocked(e, msg) {
			delivered++
		}
	}
	return delivered
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) CountUser(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byUser[strings.TrimSpace(userID)])
}

func (h *Hub) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				h.expireInactive()
			}
		}
	}()
}

func (h *Hub) expireInactive() {
	now := time.Now().UTC()
	var expired []Subscriber

	h.mu.Lock()
	for id, e := range h.subs {
		if now.Sub(e.info.LastActivityAt) < h.inactivityTimeout {
			continue
		}
		expired = append(expired, e.info)
		h.removeLocked(id)
	}
	hook := h.onExpire
	h.mu.Unlock()

	if hook != nil {
		for _, s := range expired {
			hook(s)
		}
	}
}

func (h *Hub) offerLocked(e *entry, msg any) bool {
	if e == nil {
		return false
	}
	select {
	case e.out <- msg:
		return true
	default:
		if h.onDrop != nil {
			h.onDrop(e.info)
		}
		return false
	}
}

func (h *Hub) removeLocked(id string) {
	e, ok := h.subs[id]
	if !ok {
		return
	}
	delete(h.subs, id)
	if set := h.byUser[e.info.UserID]; set != nil {
		delete(set, id)
		if len(set) == 0 {
			delete(h.byUser, e.info.UserID)
		}
	}
	close(e.out)
}
