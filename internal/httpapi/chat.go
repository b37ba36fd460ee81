package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ent0n29/lingua/internal/brain"
	"github.com/ent0n29/lingua/internal/memory"
	"github.com/ent0n29/lingua/internal/policy"
	"github.com/ent0n29/lingua/internal/protocol"
	"github.com/ent0n29/lingua/internal/speech"
	"github.com/ent0n29/lingua/internal/usage"
)

const (
	historyTimeLayout = "2006-01-02 15:04:05"
	maxUploadBytes    = 25 << 20
)

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	var req protocol.SendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		if errors.Is(err, errEmptyBody) {
			respondError(w, http.StatusBadRequest, "invalid_request", "request body is required")
			return
		}
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	req.User = normalizeUser(req.User)
	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" {
		respondError(w, http.StatusBadRequest, "missing_text", "text is required")
		return
	}

	ctx := r.Context()
	if err := s.saveMessage(ctx, req.User, memory.SenderUser, req.Text); err != nil {
		respondError(w, http.StatusInternalServerError, "store_failed", err.Error())
		return
	}

	reply := s.askTutor(ctx, req.User, req.Text)
	if err := s.saveMessage(ctx, req.User, memory.SenderAgent, reply.Text); err != nil {
		respondError(w, http.StatusInternalServerError, "store_failed", err.Error())
		return
	}

	out := protocol.SendMessageResponse{Response: reply.Text, Correction: reply.Correction}
	if s.cfg.SpeakReplies {
		if ref, err := s.synthesizeTo(ctx, "reply_"+uuid.NewString(), reply.Text); err != nil {
			log.Printf("httpapi: reply speech for %s failed: %v", req.User, err)
		} else {
			out.AudioURL = ref
		}
	}
	s.metrics.ObserveStage("send_message", time.Since(started))
	respondJSON(w, http.StatusOK, out)
}

// askTutor never fails: brain errors become a visible agent reply.
func (s *Server) askTutor(ctx context.Context, user, text string) brain.Response {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.BrainTimeout)
	defer cancel()

	started := time.Now()
	reply, err := s.brain.Reply(ctx, brain.Request{User: user, Text: text})
	if err != nil {
		code := "reply_failed"
		if errors.Is(err, context.DeadlineExceeded) {
			code = "timeout"
		}
		s.metrics.BrainErrors.WithLabelValues(code).Inc()
		log.Printf("httpapi: brain reply for %s failed: %v", user, err)
		return brain.Response{Text: fmt.Sprintf("(Agent error) %v", err)}
	}
	s.metrics.ObserveReplyLatency(time.Since(started))
	return reply
}

func (s *Server) saveMessage(ctx context.Context, user, sender, text string) error {
	stored, redacted := policy.RedactPII(text)
	err := s.store.SaveMessage(ctx, memory.MessageRecord{
		UserID:      user,
		Sender:      sender,
		Text:        stored,
		PIIRedacted: redacted,
	})
	if err != nil {
		return fmt.Errorf("save %s message: %w", sender, err)
	}
	s.metrics.Messages.WithLabelValues(sender).Inc()
	return nil
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	user := normalizeUser(chi.URLParam(r, "user"))
	records, err := s.store.History(r.Context(), user, 0)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "history_failed", err.Error())
		return
	}
	out := make([]protocol.HistoryEntry, 0, len(records))
	for _, rec := range records {
		out = append(out, protocol.HistoryEntry{
			Sender:    rec.Sender,
			Text:      rec.Text,
			CreatedAt: rec.CreatedAt.UTC().Format(historyTimeLayout),
		})
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleAudioUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.metrics.Uploads.WithLabelValues("invalid").Inc()
		respondError(w, http.StatusBadRequest, "invalid_upload", err.Error())
		return
	}
	file, header, err := r.FormFile("audio")
	if err != nil {
		s.metrics.Uploads.WithLabelValues("invalid").Inc()
		respondError(w, http.StatusBadRequest, "missing_audio", "form field audio is required")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		s.metrics.Uploads.WithLabelValues("invalid").Inc()
		respondError(w, http.StatusBadRequest, "invalid_upload", err.Error())
		return
	}
	if len(data) == 0 {
		s.metrics.Uploads.WithLabelValues("invalid").Inc()
		respondError(w, http.StatusBadRequest, "empty_audio", "audio is empty")
		return
	}

	ctx := r.Context()
	user := normalizeUser(r.FormValue("user"))

	// A failed write must not spend the allowance.
	ext := strings.ToLower(filepath.Ext(header.Filename))
	if ext == "" || len(ext) > 6 {
		ext = ".wav"
	}
	name := "upload_" + uuid.NewString() + ext
	if err := s.writeAudio(name, data); err != nil {
		s.metrics.Uploads.WithLabelValues("error").Inc()
		respondError(w, http.StatusInternalServerError, "store_failed", err.Error())
		return
	}

	left, err := s.usage.Consume(ctx, user)
	if err != nil {
		s.removeAudio(name)
		if errors.Is(err, usage.ErrExhausted) {
			s.metrics.Uploads.WithLabelValues("exhausted").Inc()
			respondError(w, http.StatusTooManyRequests, "quota_exceeded", "Daily audio limit reached")
			return
		}
		s.metrics.Uploads.WithLabelValues("error").Inc()
		respondError(w, http.StatusInternalServerError, "usage_failed", err.Error())
		return
	}

	out := protocol.UploadResponse{AudioURL: "/audio/" + name, UsageLeft: &left}

	started := time.Now()
	transcript, err := s.speech.Transcribe(ctx, speech.Clip{Data: data, Filename: header.Filename})
	if err != nil {
		s.metrics.SpeechErrors.WithLabelValues("transcribe").Inc()
		log.Printf("httpapi: transcribe upload for %s failed: %v", user, err)
	} else {
		s.metrics.ObserveStage("transcribe", time.Since(started))
		out.Transcript = transcript
	}

	if s.cfg.SpeakReplies && out.Transcript != "" {
		if ref, err := s.synthesizeTo(ctx, "echo_"+uuid.NewString(), out.Transcript); err != nil {
			log.Printf("httpapi: echo speech for %s failed: %v", user, err)
		} else {
			out.AudioResponseURL = ref
		}
	}

	s.metrics.Uploads.WithLabelValues("ok").Inc()
	respondJSON(w, http.StatusOK, out)
}

// synthesizeTo speaks text into <base>.<ext> under the audio dir and returns
// its /audio/ URL.
func (s *Server) synthesizeTo(ctx context.Context, base, text string) (string, error) {
	started := time.Now()
	clip, err := s.speech.Synthesize(ctx, text)
	if err != nil {
		s.metrics.SpeechErrors.WithLabelValues("synthesize").Inc()
		return "", err
	}
	s.metrics.ObserveStage("synthesize", time.Since(started))
	name := base + "." + clip.Ext
	if err := s.writeAudio(name, clip.Data); err != nil {
		return "", err
	}
	return "/audio/" + name, nil
}

func (s *Server) writeAudio(name string, data []byte) error {
	if err := s.ensureAudioDir(); err != nil {
		return fmt.Errorf("create audio dir: %w", err)
	}
	path := filepath.Join(s.cfg.AudioDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

func (s *Server) removeAudio(name string) {
	if err := os.Remove(filepath.Join(s.cfg.AudioDir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("httpapi: remove %s: %v", name, err)
	}
}

func normalizeUser(user string) string {
	user = strings.TrimSpace(user)
	if user == "" {
		return "anonymous"
	}
	return user
}
