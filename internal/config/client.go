package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Client holds settings for the terminal client.
type Client struct {
	BaseURL string   `toml:"base_url"`
	User    string   `toml:"user"`
	Timeout Duration `toml:"timeout"`
	Offline bool     `toml:"offline"`
	NoColor bool     `toml:"no_color"`

	History  ClientHistory  `toml:"history"`
	Quota    ClientQuota    `toml:"quota"`
	Recorder ClientRecorder `toml:"recorder"`
	Push     ClientPush     `toml:"push"`
}

type ClientHistory struct {
	// Location is a directory for JSON files or a path ending in .db,
	// .sqlite or .sqlite3. Empty keeps history in memory only.
	Location string `toml:"location"`
	Key      string `toml:"key"`
	Capacity int    `toml:"capacity"`
}

type ClientQuota struct {
	DailyLimit int `toml:"daily_limit"`
}

type ClientRecorder struct {
	// Source is "command" or "file".
	Source      string   `toml:"source"`
	Command     string   `toml:"command"`
	Args        []string `toml:"args"`
	File        string   `toml:"file"`
	SampleRate  int      `toml:"sample_rate"`
	MaxDuration Duration `toml:"max_duration"`
	Visualize   bool     `toml:"visualize"`
}

type ClientPush struct {
	Enabled bool `toml:"enabled"`
}

// Duration decodes TOML strings such as "30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

func DefaultClient() Client {
	return Client{
		BaseURL: "http://localhost:8000",
		User:    "junior",
		Timeout: Duration{60 * time.Second},
		History: ClientHistory{
			Location: filepath.Join(defaultDataDir(), "history.db"),
			Key:      "chatHistory",
			Capacity: 100,
		},
		Quota: ClientQuota{DailyLimit: 10},
		Recorder: ClientRecorder{
			Source:     "command",
			SampleRate: 16000,
			Visualize:  true,
		},
		Push: ClientPush{Enabled: true},
	}
}

// DefaultClientPath is where LoadClient looks when no path is given.
func DefaultClientPath() string {
	return filepath.Join(defaultDataDir(), "config.toml")
}

// LoadClient reads the TOML file at path over the defaults and then applies
// LINGUA_* environment overrides. A missing file is not an error.
func LoadClient(path string) (Client, error) {
	cfg := DefaultClient()
	if path == "" {
		path = DefaultClientPath()
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Client{}, fmt.Errorf("decode %s: %w", path, err)
	}
	if err := cfg.applyEnv(); err != nil {
		return Client{}, err
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		return Client{}, fmt.Errorf("base_url is required")
	}
	if strings.TrimSpace(cfg.User) == "" {
		cfg.User = "anonymous"
	}
	if cfg.History.Capacity <= 0 {
		return Client{}, fmt.Errorf("history.capacity must be positive")
	}
	switch cfg.Recorder.Source {
	case "command", "file":
	default:
		return Client{}, fmt.Errorf("recorder.source must be command or file, got %q", cfg.Recorder.Source)
	}
	return cfg, nil
}

func (c *Client) applyEnv() error {
	c.BaseURL = envOrDefault("LINGUA_BASE_URL", c.BaseURL)
	c.User = envOrDefault("LINGUA_USER", c.User)
	c.History.Location = envOrDefault("LINGUA_HISTORY", c.History.Location)
	c.Recorder.Source = envOrDefault("LINGUA_RECORDER_SOURCE", c.Recorder.Source)
	c.Recorder.File = envOrDefault("LINGUA_RECORDER_FILE", c.Recorder.File)

	var err error
	if c.Timeout.Duration, err = durationFromEnv("LINGUA_TIMEOUT", c.Timeout.Duration); err != nil {
		return err
	}
	if c.Quota.DailyLimit, err = intFromEnv("LINGUA_DAILY_LIMIT", c.Quota.DailyLimit); err != nil {
		return err
	}
	if c.Offline, err = boolFromEnv("LINGUA_OFFLINE", c.Offline); err != nil {
		return err
	}
	if c.NoColor, err = boolFromEnv("NO_COLOR", c.NoColor); err != nil {
		// NO_COLOR only needs to be present.
		c.NoColor = true
	}
	return nil
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "lingua")
	}
	return ".lingua"
}
