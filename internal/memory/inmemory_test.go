package memory

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestInMemoryHistoryIsChronologicalPerUser(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	for _, rec := range []MessageRecord{
		{UserID: "junior", Sender: SenderUser, Text: "I goed home"},
		{UserID: "maria", Sender: SenderUser, Text: "hola"},
		{UserID: "junior", Sender: SenderAgent, Text: "Correction: I went home."},
	} {
		if err := s.SaveMessage(ctx, rec); err != nil {
			t.Fatalf("SaveMessage() error = %v", err)
		}
	}

	got, err := s.History(ctx, "junior", 0)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(got) != 2 || got[0].Sender != SenderUser || got[1].Sender != SenderAgent {
		t.Fatalf("History() = %+v", got)
	}
	if got[0].ID == "" || got[0].CreatedAt.IsZero() {
		t.Fatalf("record defaults not filled: %+v", got[0])
	}

	last, _ := s.History(ctx, "junior", 1)
	if len(last) != 1 || last[0].Text != "Correction: I went home." {
		t.Fatalf("History(limit 1) = %+v", last)
	}
	if none, _ := s.History(ctx, "nobody", 0); len(none) != 0 {
		t.Fatalf("History(nobody) = %+v", none)
	}
}

func TestInMemoryLessonsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	first, _ := s.CreateLesson(ctx, Lesson{Phrase: "Good morning", Translation: "Bom dia"})
	second, _ := s.CreateLesson(ctx, Lesson{Phrase: "Thank you"})
	if first.ID != 1 || second.ID != 2 {
		t.Fatalf("ids = %d, %d", first.ID, second.ID)
	}

	list, err := s.ListLessons(ctx)
	if err != nil {
		t.Fatalf("ListLessons() error = %v", err)
	}
	if len(list) != 2 || list[0].ID != 2 || list[1].ID != 1 {
		t.Fatalf("ListLessons() = %+v", list)
	}

	got, err := s.GetLesson(ctx, 1)
	if err != nil || got.Translation != "Bom dia" {
		t.Fatalf("GetLesson(1) = %+v, %v", got, err)
	}
	if _, err := s.GetLesson(ctx, 99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetLesson(99) error = %v, want ErrNotFound", err)
	}
}

func TestInMemoryRemindersLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	due, _ := s.CreateReminder(ctx, Reminder{Title: "Irregular verbs", RemindAt: &past})
	later, _ := s.CreateReminder(ctx, Reminder{Title: "Listening", RemindAt: &future})
	undated, _ := s.CreateReminder(ctx, Reminder{Title: "Someday"})

	list, _ := s.ListReminders(ctx)
	if len(list) != 3 || list[0].ID != undated.ID || list[2].ID != due.ID {
		t.Fatalf("ListReminders() = %+v", list)
	}

	ready, err := s.DueReminders(ctx, now)
	if err != nil {
		t.Fatalf("DueReminders() error = %v", err)
	}
	if len(ready) != 1 || ready[0].ID != due.ID {
		t.Fatalf("DueReminders() = %+v", ready)
	}
	if err := s.MarkReminderDelivered(ctx, due.ID, now); err != nil {
		t.Fatalf("MarkReminderDelivered() error = %v", err)
	}
	if ready, _ := s.DueReminders(ctx, now); len(ready) != 0 {
		t.Fatalf("delivered reminder still due: %+v", ready)
	}
	if ready, _ := s.DueReminders(ctx, future); len(ready) != 1 || ready[0].ID != later.ID {
		t.Fatalf("DueReminders(future) = %+v", ready)
	}

	if err := s.DeleteReminder(ctx, later.ID); err != nil {
		t.Fatalf("DeleteReminder() error = %v", err)
	}
	if _, err := s.GetReminder(ctx, later.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetReminder(deleted) error = %v", err)
	}
	if err := s.DeleteReminder(ctx, later.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second DeleteReminder() error = %v", err)
	}
}

func TestNewStoreWithoutURLIsInMemory(t *testing.T) {
	s, err := NewStore(context.Background(), "  ")
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	defer s.Close()
	if _, ok := s.(*InMemoryStore); !ok {
		t.Fatalf("NewStore() = %T, want *InMemoryStore", s)
	}
}
