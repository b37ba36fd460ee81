// Package recorder drives one microphone capture at a time from acquisition
// through upload, releasing the stream and the analysis tap on every exit path.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/ent0n29/lingua/internal/agent"
	"github.com/ent0n29/lingua/internal/audio"
	"github.com/ent0n29/lingua/internal/dispatch"
	"github.com/ent0n29/lingua/internal/status"
)

type State string

const (
	StateIdle       State = "idle"
	StateRequesting State = "requesting"
	StateRecording  State = "recording"
	StateStopping   State = "stopping"
	StateProcessing State = "processing"
	StateError      State = "error"
)

// Uploader hands a finished clip to the agent. *dispatch.Dispatcher
// satisfies it.
type Uploader interface {
	SendAudio(ctx context.Context, clip agent.Audio) (dispatch.UploadResult, error)
}

// Gate reports whether another audio message may be sent. *quota.Tracker
// satisfies it.
type Gate interface {
	CanSend() bool
}

type Config struct {
	ChunkInterval   time.Duration
	RefreshInterval time.Duration
	ElapsedInterval time.Duration
	// MaxDuration stops the recording automatically. Zero disables it.
	MaxDuration  time.Duration
	AnalyserSize int
}

func (c Config) withDefaults() Config {
	if c.ChunkInterval <= 0 {
		c.ChunkInterval = 100 * time.Millisecond
	}
	if c.RefreshInterval <= 0 {
		c.RefreshInterval = time.Second / 60
	}
	if c.ElapsedInterval <= 0 {
		c.ElapsedInterval = time.Second
	}
	if c.AnalyserSize <= 0 {
		c.AnalyserSize = 256
	}
	return c
}

// Result describes a finished recording.
type Result struct {
	SessionID string
	Duration  time.Duration
	Chunks    int
	Bytes     int
	Upload    dispatch.UploadResult
}

type Controller struct {
	mic      Microphone
	vis      Visualizer
	uploader Uploader
	gate     Gate
	sink     status.Sink
	cfg      Config
	now      func() time.Time

	mu    sync.Mutex
	state State
	sess  *session

	background sync.WaitGroup
}

func NewController(mic Microphone, uploader Uploader, gate Gate, vis Visualizer, sink status.Sink, cfg Config) *Controller {
	if sink == nil {
		sink = status.Discard
	}
	return &Controller{
		mic:      mic,
		vis:      vis,
		uploader: uploader,
		gate:     gate,
		sink:     sink,
		cfg:      cfg.withDefaults(),
		now:      time.Now,
		state:    StateIdle,
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start opens the microphone and begins capturing. It is a no-op returning nil
// unless the controller is idle.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return nil
	}
	sess := newSession(c.cfg.AnalyserSize)
	c.sess = sess
	c.state = StateRequesting
	c.mu.Unlock()
	c.emitState(StateRequesting)

	stream, err := c.mic.Open(ctx)
	if err != nil {
		sess.release()
		c.fail(sess)
		if errors.Is(err, ErrPermissionDenied) {
			status.Emit(c.sink, status.Event{Kind: status.KindPermissionDenied, Level: status.LevelError, Text: "Microphone access was denied."})
		} else {
			status.Emit(c.sink, status.Event{Kind: status.KindInfo, Level: status.LevelError, Text: "Could not open the microphone: " + err.Error()})
		}
		return fmt.Errorf("open microphone: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sess.stream = stream
	sess.cancel = cancel
	sess.startedAt = c.now()

	sess.wg.Add(2)
	c.mu.Lock()
	c.state = StateRecording
	c.mu.Unlock()
	c.emitState(StateRecording)

	go c.readLoop(runCtx, sess)
	go c.tickLoop(runCtx, sess)
	return nil
}

// Stop ends the active recording, releases the microphone, and uploads the
// clip unless the quota is exhausted. It always leaves the controller idle.
func (c *Controller) Stop(ctx context.Context) (Result, error) {
	c.mu.Lock()
	sess := c.sess
	if c.state != StateRecording || sess == nil {
		c.mu.Unlock()
		return Result{}, ErrNotRecording
	}
	c.state = StateStopping
	c.mu.Unlock()
	c.emitState(StateStopping)
	return c.finish(ctx, sess)
}

// Cancel ends the active recording without uploading anything.
func (c *Controller) Cancel() {
	c.mu.Lock()
	sess := c.sess
	if c.state != StateRecording || sess == nil {
		c.mu.Unlock()
		return
	}
	c.state = StateStopping
	c.mu.Unlock()
	sess.release()
	c.toIdle(sess)
}

// Close cancels any recording and waits for automatic stops to complete.
func (c *Controller) Close() {
	c.Cancel()
	c.background.Wait()
}

func (c *Controller) finish(ctx context.Context, sess *session) (Result, error) {
	sess.release()

	pcm, chunks := sess.payload()
	res := Result{
		SessionID: sess.id,
		Duration:  c.now().Sub(sess.startedAt),
		Chunks:    chunks,
		Bytes:     len(pcm),
	}

	if !c.setState(sess, StateProcessing) {
		return res, ErrNotRecording
	}

	if c.gate != nil && !c.gate.CanSend() {
		status.Emit(c.sink, status.Event{Kind: status.KindQuotaExceeded, Level: status.LevelWarn, Text: "You have used today's audio messages."})
		c.toIdle(sess)
		return res, ErrQuotaExceeded
	}
	if len(pcm) == 0 {
		status.Emit(c.sink, status.Event{Kind: status.KindInfo, Level: status.LevelWarn, Text: "Nothing was recorded."})
		c.fail(sess)
		return res, ErrEmptyRecording
	}

	wav, err := audio.EncodeWAVPCM16LE(pcm, sess.stream.SampleRate())
	if err != nil {
		c.fail(sess)
		return res, fmt.Errorf("encode recording: %w", err)
	}

	up, err := c.uploader.SendAudio(ctx, agent.Audio{
		Data:        wav,
		Filename:    "recording-" + sess.id + ".wav",
		ContentType: "audio/wav",
	})
	if err != nil {
		status.Emit(c.sink, status.Event{Kind: status.KindUploadFailed, Level: status.LevelError, Text: dispatch.Describe(err)})
		c.fail(sess)
		return res, fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}
	res.Upload = up
	c.toIdle(sess)
	return res, nil
}

// autoStop runs when the stream ends by itself or the ceiling is reached.
func (c *Controller) autoStop(sess *session, reason string) {
	c.mu.Lock()
	if c.sess != sess || c.state != StateRecording {
		c.mu.Unlock()
		return
	}
	c.state = StateStopping
	c.background.Add(1)
	c.mu.Unlock()
	c.emitState(StateStopping)
	status.Emit(c.sink, status.Event{Kind: status.KindInfo, Text: reason})

	go func() {
		defer c.background.Done()
		if _, err := c.finish(context.Background(), sess); err != nil {
			log.Printf("recorder: session %s: %v", sess.id, err)
		}
	}()
}

func (c *Controller) readLoop(ctx context.Context, sess *session) {
	defer sess.wg.Done()
	rate := sess.stream.SampleRate()
	if rate <= 0 {
		rate = audio.DefaultSampleRate
	}
	// 20 ms frames.
	buf := make([]byte, rate/50*2)
	for {
		n, err := sess.stream.Read(buf)
		if n > 0 {
			sess.capture(buf[:n])
		}
		if err != nil {
			if ctx.Err() == nil {
				if !errors.Is(err, io.EOF) {
					log.Printf("recorder: read: %v", err)
				}
				c.autoStop(sess, "Recording ended.")
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func (c *Controller) tickLoop(ctx context.Context, sess *session) {
	defer sess.wg.Done()
	chunk := time.NewTicker(c.cfg.ChunkInterval)
	defer chunk.Stop()
	refresh := time.NewTicker(c.cfg.RefreshInterval)
	defer refresh.Stop()
	elapsed := time.NewTicker(c.cfg.ElapsedInterval)
	defer elapsed.Stop()

	var ceiling <-chan time.Time
	if c.cfg.MaxDuration > 0 {
		t := time.NewTimer(c.cfg.MaxDuration)
		defer t.Stop()
		ceiling = t.C
	}

	var renderFailures int
	for {
		select {
		case <-ctx.Done():
			return
		case <-chunk.C:
			sess.cut()
		case <-refresh.C:
			if err := c.render(sess); err != nil {
				renderFailures++
				if renderFailures == 1 {
					log.Printf("recorder: visualizer: %v", err)
				}
			}
		case <-elapsed.C:
			status.Emit(c.sink, status.Event{Kind: status.KindRecordingElapsed, Elapsed: c.now().Sub(sess.startedAt)})
		case <-ceiling:
			c.autoStop(sess, fmt.Sprintf("Recording stopped at the %s limit.", c.cfg.MaxDuration))
			ceiling = nil
		}
	}
}

func (c *Controller) render(sess *session) (err error) {
	if c.vis == nil {
		return nil
	}
	levels := sess.analyser.Levels()
	if levels == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return c.vis.Render(levels)
}

// setState moves sess to next if it is still the active session.
func (c *Controller) setState(sess *session, next State) bool {
	c.mu.Lock()
	if c.sess != sess {
		c.mu.Unlock()
		return false
	}
	c.state = next
	c.mu.Unlock()
	c.emitState(next)
	return true
}

func (c *Controller) fail(sess *session) {
	if c.setState(sess, StateError) {
		c.toIdle(sess)
	}
}

func (c *Controller) toIdle(sess *session) {
	c.mu.Lock()
	if c.sess != sess {
		c.mu.Unlock()
		return
	}
	c.sess = nil
	c.state = StateIdle
	c.mu.Unlock()
	c.emitState(StateIdle)
}

func (c *Controller) emitState(s State) {
	status.Emit(c.sink, status.Event{Kind: status.KindRecordingState, State: string(s), Active: s == StateRecording})
}
