package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ent0n29/lingua/internal/agent"
	"github.com/ent0n29/lingua/internal/observability"
)

type options struct {
	baseURL        string
	userID         string
	turns          int
	wavPath        string
	interTurnDelay time.Duration
	turnTimeout    time.Duration
	texts          []string
	verbose        bool
}

var defaultUtterances = []string{
	"Yesterday I goed to the market with my friend.",
	"She don't like coffee in the morning.",
	"How I can improve my pronunciation?",
	"I am living here since three years.",
}

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "lingua-perf: %v\n", err)
		os.Exit(2)
	}
	if err := run(cfg, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "lingua-perf: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (options, error) {
	var cfg options
	var textsRaw string
	var interTurnMS int
	var turnTimeoutMS int

	fs := flag.NewFlagSet("lingua-perf", flag.ContinueOnError)
	fs.StringVar(&cfg.baseURL, "base-url", "http://127.0.0.1:8000", "agent service base URL")
	fs.StringVar(&cfg.userID, "user", "perf-replay", "user the synthetic turns are sent as")
	fs.IntVar(&cfg.turns, "turns", 10, "number of turns to replay")
	fs.StringVar(&cfg.wavPath, "wav", "", "optional WAV file uploaded as a voice message on every turn")
	fs.IntVar(&interTurnMS, "inter-turn-ms", 180, "delay between turns in milliseconds")
	fs.IntVar(&turnTimeoutMS, "turn-timeout-ms", 60000, "timeout per turn in milliseconds")
	fs.StringVar(&textsRaw, "texts", "", "utterances separated by '|' (optional)")
	fs.BoolVar(&cfg.verbose, "verbose", true, "print replay progress")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	cfg.baseURL = strings.TrimRight(strings.TrimSpace(cfg.baseURL), "/")
	if cfg.baseURL == "" {
		return options{}, fmt.Errorf("base-url is required")
	}
	if cfg.turns <= 0 {
		return options{}, fmt.Errorf("turns must be > 0")
	}
	if interTurnMS < 0 {
		interTurnMS = 0
	}
	if turnTimeoutMS < 1000 {
		turnTimeoutMS = 1000
	}
	cfg.interTurnDelay = time.Duration(interTurnMS) * time.Millisecond
	cfg.turnTimeout = time.Duration(turnTimeoutMS) * time.Millisecond

	if strings.TrimSpace(textsRaw) == "" {
		cfg.texts = append([]string(nil), defaultUtterances...)
	} else {
		for _, part := range strings.Split(textsRaw, "|") {
			t := strings.TrimSpace(part)
			if t != "" {
				cfg.texts = append(cfg.texts, t)
			}
		}
		if len(cfg.texts) == 0 {
			return options{}, fmt.Errorf("texts produced no non-empty utterances")
		}
	}
	return cfg, nil
}

func run(cfg options, out io.Writer) error {
	client := agent.New(agent.Config{BaseURL: cfg.baseURL, User: cfg.userID, Timeout: cfg.turnTimeout})

	var clip *agent.Audio
	if cfg.wavPath != "" {
		data, err := os.ReadFile(cfg.wavPath)
		if err != nil {
			return fmt.Errorf("read wav: %w", err)
		}
		clip = &agent.Audio{Data: data, Filename: filepath.Base(cfg.wavPath), ContentType: "audio/wav"}
	}

	var textLatency, uploadLatency []time.Duration
	for i := 0; i < cfg.turns; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.turnTimeout)
		text := cfg.texts[i%len(cfg.texts)]

		started := time.Now()
		if _, err := client.SendMessage(ctx, text); err != nil {
			cancel()
			return fmt.Errorf("turn %d send_message: %w", i+1, err)
		}
		textLatency = append(textLatency, time.Since(started))
		if cfg.verbose {
			fmt.Fprintf(out, "lingua-perf: turn %d/%d text=%q %s\n", i+1, cfg.turns, text, textLatency[len(textLatency)-1].Round(time.Millisecond))
		}

		if clip != nil {
			started = time.Now()
			res, err := client.UploadAudio(ctx, *clip)
			if err != nil {
				cancel()
				return fmt.Errorf("turn %d audio upload: %w", i+1, err)
			}
			uploadLatency = append(uploadLatency, time.Since(started))
			if cfg.verbose && res.UsageLeft != nil {
				fmt.Fprintf(out, "lingua-perf: turn %d upload usage_left=%d\n", i+1, *res.UsageLeft)
			}
		}
		cancel()

		if cfg.interTurnDelay > 0 && i < cfg.turns-1 {
			time.Sleep(cfg.interTurnDelay)
		}
	}

	fmt.Fprintln(out, summarize("send_message", textLatency))
	if len(uploadLatency) > 0 {
		fmt.Fprintln(out, summarize("audio_upload", uploadLatency))
	}

	snapshot, err := fetchServerStages(cfg.baseURL)
	if err != nil {
		return fmt.Errorf("fetch server stages: %w", err)
	}
	for _, st := range snapshot.Stages {
		fmt.Fprintf(out, "server %-13s n=%-4d p50=%.1fms p95=%.1fms", st.Stage, st.Samples, st.P50MS, st.P95MS)
		if st.TargetP95MS > 0 {
			fmt.Fprintf(out, " target=%.0fms", st.TargetP95MS)
		}
		fmt.Fprintln(out)
	}
	return nil
}

func fetchServerStages(baseURL string) (observability.StageSnapshot, error) {
	httpClient := &http.Client{Timeout: 10 * time.Second}
	resp, err := httpClient.Get(baseURL + "/v1/perf/latency")
	if err != nil {
		return observability.StageSnapshot{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return observability.StageSnapshot{}, fmt.Errorf("status %d", resp.StatusCode)
	}
	var snapshot observability.StageSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		return observability.StageSnapshot{}, err
	}
	return snapshot, nil
}

// summarize reports nearest-rank percentiles.
func summarize(name string, samples []time.Duration) string {
	if len(samples) == 0 {
		return fmt.Sprintf("client %-13s n=0", name)
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return fmt.Sprintf("client %-13s n=%-4d p50=%s p95=%s max=%s", name, len(sorted),
		percentile(sorted, 0.50).Round(time.Millisecond),
		percentile(sorted, 0.95).Round(time.Millisecond),
		sorted[len(sorted)-1].Round(time.Millisecond))
}

func percentile(sorted []time.Duration, q float64) time.Duration {
	idx := int(q*float64(len(sorted))+0.999999) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
