package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ent0n29/lingua/internal/memory"
	"github.com/ent0n29/lingua/internal/protocol"
)

func (s *Server) handleListLessons(w http.ResponseWriter, r *http.Request) {
	lessons, err := s.store.ListLessons(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "lessons_failed", err.Error())
		return
	}
	out := make([]protocol.Lesson, 0, len(lessons))
	for _, l := range lessons {
		out = append(out, lessonOut(l))
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateLesson(w http.ResponseWriter, r *http.Request) {
	var req protocol.LessonCreate
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	req.Phrase = strings.TrimSpace(req.Phrase)
	if req.Phrase == "" {
		respondError(w, http.StatusBadRequest, "missing_phrase", "phrase is required")
		return
	}
	lesson, err := s.store.CreateLesson(r.Context(), memory.Lesson{
		Phrase:      req.Phrase,
		Translation: strings.TrimSpace(req.Translation),
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "lesson_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, lessonOut(lesson))
}

func (s *Server) handleSpeak(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	lesson, err := s.store.GetLesson(r.Context(), id)
	if errors.Is(err, memory.ErrNotFound) {
		respondError(w, http.StatusNotFound, "lesson_not_found", "Lesson not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "lesson_failed", err.Error())
		return
	}

	ref, err := s.synthesizeTo(r.Context(), fmt.Sprintf("lesson_%d", id), lesson.Phrase)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "tts_failed", fmt.Sprintf("TTS generation failed: %v", err))
		return
	}
	respondJSON(w, http.StatusOK, protocol.SpeakResponse{Text: lesson.Phrase, AudioURL: ref})
}

func lessonOut(l memory.Lesson) protocol.Lesson {
	return protocol.Lesson{
		ID:          l.ID,
		Phrase:      l.Phrase,
		Translation: l.Translation,
		CreatedAt:   l.CreatedAt,
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := strings.TrimSpace(chi.URLParam(r, "id"))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_id", fmt.Sprintf("invalid id %q", raw))
		return 0, false
	}
	return id, true
}
