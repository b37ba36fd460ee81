package memory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists tutoring data in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			sender TEXT NOT NULL,
			text TEXT NOT NULL,
			pii_redacted BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_user_created ON messages (user_id, created_at);`,
		`CREATE TABLE IF NOT EXISTS lessons (
			id BIGSERIAL PRIMARY KEY,
			phrase TEXT NOT NULL,
			translation TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE TABLE IF NOT EXISTS reminders (
			id BIGSERIAL PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			remind_at TIMESTAMPTZ,
			delivered_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_reminders_due ON reminders (remind_at) WHERE delivered_at IS NULL;`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) SaveMessage(ctx context.Context, record MessageRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO messages (id, user_id, sender, text, pii_redacted, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		record.ID,
		record.UserID,
		record.Sender,
		record.Text,
		record.PIIRedacted,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save message: %w", err)
	}
	return nil
}

func (s *PostgresStore) History(ctx context.Context, userID string, limit int) ([]MessageRecord, error) {
	if limit <= 0 {
		limit = 1000
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, sender, text, pii_redacted, created_at
		 FROM messages WHERE user_id=$1 ORDER BY created_at DESC, id DESC LIMIT $2`,
		userID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	items := make([]MessageRecord, 0, 16)
	for rows.Next() {
		var r MessageRecord
		if err := rows.Scan(&r.ID, &r.UserID, &r.Sender, &r.Text, &r.PIIRedacted, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history rows: %w", err)
	}

	// Reverse into chronological order.
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	return items, nil
}

func (s *PostgresStore) CreateLesson(ctx context.Context, lesson Lesson) (Lesson, error) {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO lessons (phrase, translation) VALUES ($1, $2) RETURNING id, created_at`,
		lesson.Phrase,
		lesson.Translation,
	).Scan(&lesson.ID, &lesson.CreatedAt)
	if err != nil {
		return Lesson{}, fmt.Errorf("create lesson: %w", err)
	}
	return lesson, nil
}

func (s *PostgresStore) ListLessons(ctx context.Context) ([]Lesson, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, phrase, translation, created_at FROM lessons ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query lessons: %w", err)
	}
	lessons, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Lesson, error) {
		var l Lesson
		err := row.Scan(&l.ID, &l.Phrase, &l.Translation, &l.CreatedAt)
		return l, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan lessons: %w", err)
	}
	return lessons, nil
}

func (s *PostgresStore) GetLesson(ctx context.Context, id int64) (Lesson, error) {
	var l Lesson
	err := s.pool.QueryRow(ctx,
		`SELECT id, phrase, translation, created_at FROM lessons WHERE id=$1`, id,
	).Scan(&l.ID, &l.Phrase, &l.Translation, &l.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lesson{}, ErrNotFound
	}
	if err != nil {
		return Lesson{}, fmt.Errorf("get lesson: %w", err)
	}
	return l, nil
}

const reminderColumns = `id, title, description, remind_at, delivered_at, created_at`

func scanReminder(row pgx.Row) (Reminder, error) {
	var r Reminder
	err := row.Scan(&r.ID, &r.Title, &r.Description, &r.RemindAt, &r.DeliveredAt, &r.CreatedAt)
	return r, err
}

func (s *PostgresStore) CreateReminder(ctx context.Context, reminder Reminder) (Reminder, error) {
	r, err := scanReminder(s.pool.QueryRow(ctx,
		`INSERT INTO reminders (title, description, remind_at) VALUES ($1, $2, $3) RETURNING `+reminderColumns,
		reminder.Title,
		reminder.Description,
		reminder.RemindAt,
	))
	if err != nil {
		return Reminder{}, fmt.Errorf("create reminder: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) ListReminders(ctx context.Context) ([]Reminder, error) {
	return s.queryReminders(ctx, `SELECT `+reminderColumns+` FROM reminders ORDER BY id DESC`)
}

func (s *PostgresStore) GetReminder(ctx context.Context, id int64) (Reminder, error) {
	r, err := scanReminder(s.pool.QueryRow(ctx, `SELECT `+reminderColumns+` FROM reminders WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Reminder{}, ErrNotFound
	}
	if err != nil {
		return Reminder{}, fmt.Errorf("get reminder: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) DeleteReminder(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM reminders WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete reminder: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DueReminders(ctx context.Context, now time.Time) ([]Reminder, error) {
	return s.queryReminders(ctx,
		`SELECT `+reminderColumns+` FROM reminders
		 WHERE delivered_at IS NULL AND remind_at IS NOT NULL AND remind_at <= $1
		 ORDER BY remind_at, id`,
		now,
	)
}

func (s *PostgresStore) MarkReminderDelivered(ctx context.Context, id int64, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `UPDATE reminders SET delivered_at=$2 WHERE id=$1`, id, at.UTC())
	if err != nil {
		return fmt.Errorf("mark reminder delivered: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) queryReminders(ctx context.Context, sql string, args ...any) ([]Reminder, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query reminders: %w", err)
	}
	defer rows.Close()

	var out []Reminder
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reminder row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reminder rows: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
