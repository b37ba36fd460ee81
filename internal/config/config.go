package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config contains all runtime settings for the tutor agent service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string
	AllowAnyOrigin   bool

	AudioDir string

	BrainMode         string
	GeminiAPIKey      string
	GeminiModel       string
	GeminiTemperature float64
	BrainHTTPURL      string
	BrainTimeout      time.Duration

	SpeechProvider string
	OpenAIAPIKey   string
	OpenAIBaseURL  string
	STTModel       string
	TTSModel       string
	TTSVoice       string
	SpeakReplies   bool

	DatabaseURL string
	RedisURL    string

	DailyAudioLimit int

	ReminderEnabled  bool
	ReminderUser     string
	ReminderHour     int
	ReminderMinute   int
	ReminderInterval time.Duration

	PushInactivityTimeout time.Duration
}

// Load reads an optional .env file, then environment variables, and applies
// safe defaults.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("config: .env not loaded: %v", err)
	}

	cfg := Config{
		BindAddr:              envOrDefault("APP_BIND_ADDR", ":8000"),
		MetricsNamespace:      envOrDefault("APP_METRICS_NAMESPACE", "lingua"),
		AudioDir:              envOrDefault("AUDIO_DIR", "audio"),
		BrainMode:             envOrDefault("BRAIN_MODE", "auto"),
		GeminiAPIKey:          firstNonEmpty(stringsTrimSpace("GEMINI_API_KEY"), stringsTrimSpace("GOOGLE_API_KEY")),
		GeminiModel:           envOrDefault("GEMINI_MODEL", "gemini-2.5-flash"),
		GeminiTemperature:     0.7,
		BrainHTTPURL:          stringsTrimSpace("BRAIN_HTTP_URL"),
		SpeechProvider:        envOrDefault("SPEECH_PROVIDER", "auto"),
		OpenAIAPIKey:          stringsTrimSpace("OPENAI_API_KEY"),
		OpenAIBaseURL:         stringsTrimSpace("OPENAI_BASE_URL"),
		STTModel:              envOrDefault("STT_MODEL", "whisper-1"),
		TTSModel:              envOrDefault("TTS_MODEL", "tts-1"),
		TTSVoice:              envOrDefault("TTS_VOICE", "alloy"),
		DatabaseURL:           stringsTrimSpace("DATABASE_URL"),
		RedisURL:              stringsTrimSpace("REDIS_URL"),
		DailyAudioLimit:       10,
		ReminderEnabled:       true,
		ReminderUser:          envOrDefault("DEFAULT_USER", "junior"),
		ReminderHour:          20,
		ReminderMinute:        0,
		ReminderInterval:      30 * time.Second,
		ShutdownTimeout:       15 * time.Second,
		BrainTimeout:          60 * time.Second,
		PushInactivityTimeout: 10 * time.Minute,
	}

	var err error
	if cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout); err != nil {
		return Config{}, err
	}
	if cfg.BrainTimeout, err = durationFromEnv("BRAIN_TIMEOUT", cfg.BrainTimeout); err != nil {
		return Config{}, err
	}
	if cfg.ReminderInterval, err = durationFromEnv("REMINDER_CHECK_INTERVAL", cfg.ReminderInterval); err != nil {
		return Config{}, err
	}
	if cfg.PushInactivityTimeout, err = durationFromEnv("PUSH_INACTIVITY_TIMEOUT", cfg.PushInactivityTimeout); err != nil {
		return Config{}, err
	}
	if cfg.DailyAudioLimit, err = intFromEnv("DAILY_AUDIO_LIMIT", cfg.DailyAudioLimit); err != nil {
		return Config{}, err
	}
	if cfg.ReminderHour, err = intFromEnv("REMINDER_HOUR", cfg.ReminderHour); err != nil {
		return Config{}, err
	}
	if cfg.ReminderMinute, err = intFromEnv("REMINDER_MINUTE", cfg.ReminderMinute); err != nil {
		return Config{}, err
	}
	if cfg.GeminiTemperature, err = floatFromEnv("GEMINI_TEMPERATURE", cfg.GeminiTemperature); err != nil {
		return Config{}, err
	}
	if cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin); err != nil {
		return Config{}, err
	}
	if cfg.SpeakReplies, err = boolFromEnv("SPEAK_REPLIES", cfg.SpeakReplies); err != nil {
		return Config{}, err
	}
	if cfg.ReminderEnabled, err = boolFromEnv("REMINDER_ENABLED", cfg.ReminderEnabled); err != nil {
		return Config{}, err
	}

	if cfg.DailyAudioLimit <= 0 {
		return Config{}, fmt.Errorf("DAILY_AUDIO_LIMIT must be positive")
	}
	if cfg.ReminderHour < 0 || cfg.ReminderHour > 23 {
		return Config{}, fmt.Errorf("REMINDER_HOUR must be within 0-23")
	}
	if cfg.ReminderMinute < 0 || cfg.ReminderMinute > 59 {
		return Config{}, fmt.Errorf("REMINDER_MINUTE must be within 0-59")
	}
	if cfg.ReminderInterval < time.Second {
		return Config{}, fmt.Errorf("REMINDER_CHECK_INTERVAL must be at least 1s")
	}
	if cfg.PushInactivityTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("PUSH_INACTIVITY_TIMEOUT must be at least 5s")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return f, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
