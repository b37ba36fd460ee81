package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore is a simple in-process store for local/dev use.
type InMemoryStore struct {
	mu        sync.RWMutex
	messages  map[string][]MessageRecord
	lessons   []Lesson
	reminders []Reminder

	lastLessonID   int64
	lastReminderID int64
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{messages: make(map[string][]MessageRecord)}
}

func (s *InMemoryStore) SaveMessage(_ context.Context, record MessageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	s.messages[record.UserID] = append(s.messages[record.UserID], record)
	return nil
}

func (s *InMemoryStore) History(_ context.Context, userID string, limit int) ([]MessageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	arr := s.messages[userID]
	if len(arr) == 0 {
		return nil, nil
	}
	if limit <= 0 || limit > len(arr) {
		limit = len(arr)
	}
	out := make([]MessageRecord, limit)
	copy(out, arr[len(arr)-limit:])
	return out, nil
}

func (s *InMemoryStore) CreateLesson(_ context.Context, lesson Lesson) (Lesson, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastLessonID++
	lesson.ID = s.lastLessonID
	if lesson.CreatedAt.IsZero() {
		lesson.CreatedAt = time.Now().UTC()
	}
	s.lessons = append(s.lessons, lesson)
	return lesson, nil
}

func (s *InMemoryStore) ListLessons(_ context.Context) ([]Lesson, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Lesson, len(s.lessons))
	copy(out, s.lessons)
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *InMemoryStore) GetLesson(_ context.Context, id int64) (Lesson, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, l := range s.lessons {
		if l.ID == id {
			return l, nil
		}
	}
	return Lesson{}, ErrNotFound
}

func (s *InMemoryStore) CreateReminder(_ context.Context, reminder Reminder) (Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastReminderID++
	reminder.ID = s.lastReminderID
	reminder.DeliveredAt = nil
	if reminder.CreatedAt.IsZero() {
		reminder.CreatedAt = time.Now().UTC()
	}
	s.reminders = append(s.reminders, reminder)
	return reminder, nil
}

func (s *InMemoryStore) ListReminders(_ context.Context) ([]Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Reminder, len(s.reminders))
	copy(out, s.reminders)
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *InMemoryStore) GetReminder(_ context.Context, id int64) (Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.reminderIndex(id); i >= 0 {
		return s.reminders[i], nil
	}
	return Reminder{}, ErrNotFound
}

func (s *InMemoryStore) DeleteReminder(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.reminderIndex(id)
	if i < 0 {
		return ErrNotFound
	}
	s.reminders = append(s.reminders[:i], s.reminders[i+1:]...)
	return nil
}

func (s *InMemoryStore) DueReminders(_ context.Context, now time.Time) ([]Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Reminder
	for _, r := range s.reminders {
		if r.RemindAt != nil && r.DeliveredAt == nil && !r.RemindAt.After(now) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *InMemoryStore) MarkReminderDelivered(_ context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.reminderIndex(id)
	if i < 0 {
		return ErrNotFound
	}
	at = at.UTC()
	s.reminders[i].DeliveredAt = &at
	return nil
}

func (s *InMemoryStore) reminderIndex(id int64) int {
	for i, r := range s.reminders {
		if r.ID == id {
			return i
		}
	}
	return -1
}

func (s *InMemoryStore) Close() error { return nil }
