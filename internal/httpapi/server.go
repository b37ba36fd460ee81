package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/ent0n29/lingua/internal/brain"
	"github.com/ent0n29/lingua/internal/config"
	"github.com/ent0n29/lingua/internal/memory"
	"github.com/ent0n29/lingua/internal/observability"
	"github.com/ent0n29/lingua/internal/push"
	"github.com/ent0n29/lingua/internal/speech"
	"github.com/ent0n29/lingua/internal/usage"
)

// Deps are the collaborators behind the HTTP surface.
type Deps struct {
	Store   memory.Store
	Brain   brain.Adapter
	Speech  speech.Provider
	Usage   usage.Counter
	Hub     *push.Hub
	Metrics *observability.Metrics
}

type Server struct {
	cfg      config.Config
	store    memory.Store
	brain    brain.Adapter
	speech   speech.Provider
	usage    usage.Counter
	hub      *push.Hub
	metrics  *observability.Metrics
	upgrader websocket.Upgrader
	audio    http.Handler
}

func New(cfg config.Config, deps Deps) *Server {
	if strings.TrimSpace(cfg.AudioDir) == "" {
		cfg.AudioDir = "audio"
	}
	return &Server{
		cfg:     cfg,
		store:   deps.Store,
		brain:   deps.Brain,
		speech:  deps.Speech,
		usage:   deps.Usage,
		hub:     deps.Hub,
		metrics: deps.Metrics,
		audio:   http.StripPrefix("/audio/", http.FileServer(http.Dir(cfg.AudioDir))),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})
	r.Get("/v1/perf/latency", s.handlePerfLatency)

	r.Post("/send_message", s.handleSendMessage)
	r.Get("/history/{user}", s.handleHistory)
	r.Post("/audio/upload", s.handleAudioUpload)
	r.Get("/audio/*", s.audio.ServeHTTP)

	r.Route("/lessons", func(r chi.Router) {
		r.Get("/", s.handleListLessons)
		r.Post("/", s.handleCreateLesson)
	})
	r.Get("/speak/{id}", s.handleSpeak)

	r.Route("/reminders", func(r chi.Router) {
		r.Get("/", s.handleListReminders)
		r.Post("/", s.handleCreateReminder)
		r.Get("/{id}", s.handleGetReminder)
		r.Delete("/{id}", s.handleDeleteReminder)
	})

	r.Get("/push/ws", s.handlePushWS)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":           "ok",
		"store":            storeMode(s.store),
		"daily_limit":      s.usage.Limit(),
		"push_connections": s.hub.Count(),
	})
}

func storeMode(store memory.Store) string {
	switch store.(type) {
	case *memory.PostgresStore:
		return "postgres"
	case *memory.InMemoryStore:
		return "in-memory"
	default:
		return "custom"
	}
}

// ensureAudioDir creates the audio directory on first write.
func (s *Server) ensureAudioDir() error {
	return os.MkdirAll(s.cfg.AudioDir, 0o755)
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
