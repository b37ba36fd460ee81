package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ent0n29/lingua/internal/memory"
	"github.com/ent0n29/lingua/internal/protocol"
)

func (s *Server) handleCreateReminder(w http.ResponseWriter, r *http.Request) {
	var req protocol.ReminderCreate
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		respondError(w, http.StatusBadRequest, "missing_title", "title is required")
		return
	}
	rem, err := s.store.CreateReminder(r.Context(), memory.Reminder{
		Title:       req.Title,
		Description: strings.TrimSpace(req.Description),
		RemindAt:    req.RemindAt,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "reminder_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, reminderOut(rem))
}

func (s *Server) handleListReminders(w http.ResponseWriter, r *http.Request) {
	rems, err := s.store.ListReminders(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "reminders_failed", err.Error())
		return
	}
	out := make([]protocol.Reminder, 0, len(rems))
	for _, rem := range rems {
		out = append(out, reminderOut(rem))
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetReminder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	rem, err := s.store.GetReminder(r.Context(), id)
	if errors.Is(err, memory.ErrNotFound) {
		respondError(w, http.StatusNotFound, "reminder_not_found", "Reminder not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "reminder_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, reminderOut(rem))
}

func (s *Server) handleDeleteReminder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	err := s.store.DeleteReminder(r.Context(), id)
	if errors.Is(err, memory.ErrNotFound) {
		respondError(w, http.StatusNotFound, "reminder_not_found", "Reminder not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "reminder_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Reminder deleted successfully"})
}

func reminderOut(r memory.Reminder) protocol.Reminder {
	return protocol.Reminder{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		RemindAt:    r.RemindAt,
		CreatedAt:   r.CreatedAt,
	}
}
