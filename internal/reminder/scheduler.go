package reminder

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/ent0n29/lingua/internal/memory"
	"github.com/ent0n29/lingua/internal/protocol"
)

const (
	DailyTitle = "Daily practice"
	DailyText  = "It's time to practice English! 🎯"
)

// Publisher delivers notifications to connected clients.
type Publisher interface {
	Publish(userID string, msg any) int
	Broadcast(msg any) int
}

// Store is the part of memory.Store the scheduler needs.
type Store interface {
	DueReminders(ctx context.Context, now time.Time) ([]memory.Reminder, error)
	MarkReminderDelivered(ctx context.Context, id int64, at time.Time) error
}

type Config struct {
	User     string
	Hour     int
	Minute   int
	Interval time.Duration
	Location *time.Location
}

// Scheduler sends the daily practice nudge and any one-off reminders whose
// time has come. Each one-off reminder is delivered once.
type Scheduler struct {
	cfg   Config
	store Store
	pub   Publisher
	now   func() time.Time

	mu        sync.Mutex
	nextDaily time.Time
	onFire    func(kind string, delivered int)
}

func New(cfg Config, store Store, pub Publisher) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if strings.TrimSpace(cfg.User) == "" {
		cfg.User = "junior"
	}
	return &Scheduler{cfg: cfg, store: store, pub: pub, now: time.Now}
}

// SetFireHook observes every delivery attempt. kind is "daily" or "reminder".
func (s *Scheduler) SetFireHook(hook func(kind string, delivered int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onFire = hook
}

// NextDaily returns the next daily nudge after t.
func (s *Scheduler) NextDaily(t time.Time) time.Time {
	local := t.In(s.cfg.Location)
	y, m, d := local.Date()
	next := time.Date(y, m, d, s.cfg.Hour, s.cfg.Minute, 0, 0, s.cfg.Location)
	if !next.After(local) {
		next = time.Date(y, m, d+1, s.cfg.Hour, s.cfg.Minute, 0, 0, s.cfg.Location)
	}
	return next
}

// Run ticks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	log.Printf("reminder: daily nudge for %s at %02d:%02d, checking every %s", s.cfg.User, s.cfg.Hour, s.cfg.Minute, s.cfg.Interval)
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	s.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

func (s *Scheduler) Tick(ctx context.Context) {
	now := s.now()

	s.mu.Lock()
	if s.nextDaily.IsZero() {
		s.nextDaily = s.NextDaily(now)
	}
	fireDaily := !now.Before(s.nextDaily)
	if fireDaily {
		s.nextDaily = s.NextDaily(now)
	}
	hook := s.onFire
	s.mu.Unlock()

	if fireDaily {
		n := s.pub.Publish(s.cfg.User, protocol.Notification{
			Type:  protocol.TypeNotification,
			Title: DailyTitle,
			Body:  DailyText,
		})
		log.Printf("reminder: daily nudge sent to %d subscriber(s) of %s", n, s.cfg.User)
		if hook != nil {
			hook("daily", n)
		}
	}

	due, err := s.store.DueReminders(ctx, now)
	if err != nil {
		log.Printf("reminder: load due reminders: %v", err)
		return
	}
	for _, r := range due {
		n := s.pub.Broadcast(protocol.Notification{
			Type:  protocol.TypeNotification,
			Title: r.Title,
			Body:  r.Description,
		})
		if err := s.store.MarkReminderDelivered(ctx, r.ID, now); err != nil {
			log.Printf("reminder: mark %d delivered: %v", r.ID, err)
			continue
		}
		if hook != nil {
			hook("reminder", n)
		}
	}
}
