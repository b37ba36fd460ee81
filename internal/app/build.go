package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ent0n29/lingua/internal/brain"
	"github.com/ent0n29/lingua/internal/config"
	"github.com/ent0n29/lingua/internal/httpapi"
	"github.com/ent0n29/lingua/internal/memory"
	"github.com/ent0n29/lingua/internal/observability"
	"github.com/ent0n29/lingua/internal/push"
	"github.com/ent0n29/lingua/internal/reminder"
	"github.com/ent0n29/lingua/internal/speech"
	"github.com/ent0n29/lingua/internal/usage"
)

type BuildResult struct {
	Config    config.Config
	API       *httpapi.Server
	Hub       *push.Hub
	Reminders *reminder.Scheduler
	Metrics   *observability.Metrics

	// Cleanup should be called on shutdown to release external resources (DB, Redis, model clients).
	Cleanup func() error
}

// Build wires the tutor agent service from cfg.
func Build(ctx context.Context, cfg config.Config) (*BuildResult, error) {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	memoryStore, err := memory.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("memory store init failed: %w", err)
	}

	adapter, closeBrain, err := brain.NewAdapter(ctx, brain.Config{
		Mode:         cfg.BrainMode,
		GeminiAPIKey: cfg.GeminiAPIKey,
		GeminiModel:  cfg.GeminiModel,
		Temperature:  cfg.GeminiTemperature,
		HTTPURL:      cfg.BrainHTTPURL,
		Timeout:      cfg.BrainTimeout,
	})
	if err != nil {
		_ = memoryStore.Close()
		return nil, fmt.Errorf("brain adapter init failed: %w", err)
	}

	speechProvider, err := speech.NewProvider(speech.Config{
		Mode:     cfg.SpeechProvider,
		APIKey:   cfg.OpenAIAPIKey,
		BaseURL:  cfg.OpenAIBaseURL,
		STTModel: cfg.STTModel,
		TTSModel: cfg.TTSModel,
		Voice:    cfg.TTSVoice,
	})
	if err != nil {
		_ = closeBrain()
		_ = memoryStore.Close()
		return nil, fmt.Errorf("speech provider init failed: %w", err)
	}

	counter, err := usage.NewCounter(ctx, cfg.RedisURL, cfg.DailyAudioLimit)
	if err != nil {
		_ = closeBrain()
		_ = memoryStore.Close()
		return nil, fmt.Errorf("usage counter init failed: %w", err)
	}

	hub := push.NewHub(cfg.PushInactivityTimeout)
	hub.SetExpireHook(func(push.Subscriber) {
		metrics.PushEvents.WithLabelValues("expired").Inc()
		metrics.PushConnections.Set(float64(hub.Count()))
	})
	hub.SetDropHook(func(push.Subscriber) {
		metrics.PushEvents.WithLabelValues("dropped").Inc()
	})

	scheduler := reminder.New(reminder.Config{
		User:     cfg.ReminderUser,
		Hour:     cfg.ReminderHour,
		Minute:   cfg.ReminderMinute,
		Interval: cfg.ReminderInterval,
		Location: time.Local,
	}, memoryStore, hub)
	scheduler.SetFireHook(func(kind string, _ int) {
		metrics.Reminders.WithLabelValues(kind).Inc()
	})

	api := httpapi.New(cfg, httpapi.Deps{
		Store:   memoryStore,
		Brain:   adapter,
		Speech:  speechProvider,
		Usage:   counter,
		Hub:     hub,
		Metrics: metrics,
	})

	cleanup := func() error {
		var errs []string
		if err := counter.Close(); err != nil {
			errs = append(errs, err.Error())
		}
		if err := closeBrain(); err != nil {
			errs = append(errs, err.Error())
		}
		if err := memoryStore.Close(); err != nil {
			errs = append(errs, err.Error())
		}
		if len(errs) > 0 {
			return fmt.Errorf("%s", strings.Join(errs, "; "))
		}
		return nil
	}

	return &BuildResult{
		Config:    cfg,
		API:       api,
		Hub:       hub,
		Reminders: scheduler,
		Metrics:   metrics,
		Cleanup:   cleanup,
	}, nil
}
