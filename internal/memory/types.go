package memory

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

const (
	SenderUser  = "user"
	SenderAgent = "agent"
)

// MessageRecord stores one side of a tutoring exchange.
type MessageRecord struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Sender      string    `json:"sender"`
	Text        string    `json:"text"`
	PIIRedacted bool      `json:"pii_redacted"`
	CreatedAt   time.Time `json:"created_at"`
}

type Lesson struct {
	ID          int64     `json:"id"`
	Phrase      string    `json:"phrase"`
	Translation string    `json:"translation,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Reminder is a one-off notification. DeliveredAt is set once it has been
// pushed.
type Reminder struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	RemindAt    *time.Time `json:"remind_at,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Store persists messages, lessons and reminders. Lists of lessons and
// reminders are newest first; History is chronological.
type Store interface {
	SaveMessage(ctx context.Context, record MessageRecord) error
	History(ctx context.Context, userID string, limit int) ([]MessageRecord, error)

	CreateLesson(ctx context.Context, lesson Lesson) (Lesson, error)
	ListLessons(ctx context.Context) ([]Lesson, error)
	GetLesson(ctx context.Context, id int64) (Lesson, error)

	CreateReminder(ctx context.Context, reminder Reminder) (Reminder, error)
	ListReminders(ctx context.Context) ([]Reminder, error)
	GetReminder(ctx context.Context, id int64) (Reminder, error)
	DeleteReminder(ctx context.Context, id int64) error
	DueReminders(ctx context.Context, now time.Time) ([]Reminder, error)
	MarkReminderDelivered(ctx context.Context, id int64, at time.Time) error

	Close() error
}
