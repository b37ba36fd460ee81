package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	"github.com/ent0n29/lingua/internal/agent"
	"github.com/ent0n29/lingua/internal/config"
	"github.com/ent0n29/lingua/internal/console"
	"github.com/ent0n29/lingua/internal/dispatch"
	"github.com/ent0n29/lingua/internal/history"
	"github.com/ent0n29/lingua/internal/protocol"
	"github.com/ent0n29/lingua/internal/quota"
	"github.com/ent0n29/lingua/internal/recorder"
	"github.com/ent0n29/lingua/internal/status"
)

// Client is the assembled terminal client.
type Client struct {
	Config     config.Client
	Agent      *agent.Client
	History    *history.Store
	Quota      *quota.Tracker
	Dispatcher *dispatch.Dispatcher
	Recorder   *recorder.Controller
	Console    *console.Console
	Push       *agent.Subscriber

	wg         sync.WaitGroup
	stopPush   context.CancelFunc
	closeStore func() error
}

// BuildClient wires the client from cfg, rendering to out.
func BuildClient(cfg config.Client, out io.Writer) (*Client, error) {
	backend, err := history.NewBackend(cfg.History.Location)
	if err != nil {
		return nil, fmt.Errorf("history backend init failed: %w", err)
	}
	store, err := history.Open(backend, history.Options{Key: cfg.History.Key, Capacity: cfg.History.Capacity})
	if err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("history store init failed: %w", err)
	}

	agentClient := agent.New(agent.Config{
		BaseURL: cfg.BaseURL,
		User:    cfg.User,
		Timeout: cfg.Timeout.Duration,
	})

	opts := []console.Option{console.WithURLResolver(agentClient.ResolveURL)}
	if cfg.NoColor {
		opts = append(opts, console.WithPlainText())
	}
	con := console.New(out, opts...)

	tracker := quota.NewTracker(cfg.Quota.DailyLimit)
	dispatcher := dispatch.New(agentClient, store, tracker, con)

	var vis recorder.Visualizer
	if cfg.Recorder.Visualize {
		vis = con
	}
	controller := recorder.NewController(microphone(cfg.Recorder), dispatcher, tracker, vis, con, recorder.Config{
		MaxDuration: cfg.Recorder.MaxDuration.Duration,
	})

	c := &Client{
		Config:     cfg,
		Agent:      agentClient,
		History:    store,
		Quota:      tracker,
		Dispatcher: dispatcher,
		Recorder:   controller,
		Console:    con,
		closeStore: store.Close,
	}
	if cfg.Push.Enabled && !cfg.Offline {
		c.Push = agent.NewSubscriber(agentClient, c.onPush, nil)
	}
	return c, nil
}

func microphone(cfg config.ClientRecorder) recorder.Microphone {
	if cfg.Source == "file" {
		return recorder.FileMicrophone{Path: cfg.File, SampleRate: cfg.SampleRate, Realtime: true}
	}
	if strings.TrimSpace(cfg.Command) == "" {
		return recorder.DefaultCommandMicrophone(cfg.SampleRate)
	}
	return recorder.CommandMicrophone{Command: cfg.Command, Args: cfg.Args, SampleRate: cfg.SampleRate}
}

// Start replays the saved conversation and opens the push channel. Replay
// never touches the network.
func (c *Client) Start(ctx context.Context) {
	c.Console.Replay(c.History.LoadAll())
	if c.Push == nil {
		return
	}
	pushCtx, cancel := context.WithCancel(ctx)
	c.stopPush = cancel
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		_ = c.Push.Run(pushCtx)
	}()
}

func (c *Client) onPush(msg any) {
	switch m := msg.(type) {
	case protocol.Notification:
		c.Console.Emit(status.Event{Kind: status.KindNotification, Title: m.Title, Text: m.Body})
	case protocol.SystemEvent:
		log.Printf("push: %s %s", m.Code, m.Detail)
	}
}

// Close stops recording and the push channel, then releases the store.
func (c *Client) Close() error {
	c.Recorder.Close()
	if c.stopPush != nil {
		c.stopPush()
	}
	c.wg.Wait()
	return c.closeStore()
}
