package recorder

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ent0n29/lingua/internal/agent"
	"github.com/ent0n29/lingua/internal/audio"
	"github.com/ent0n29/lingua/internal/dispatch"
	"github.com/ent0n29/lingua/internal/status"
)

type fakeTrack struct {
	stopped atomic.Int32
	onStop  func()
}

func (t *fakeTrack) Stop() {
	if t.stopped.Add(1) == 1 && t.onStop != nil {
		t.onStop()
	}
}

type pipeStream struct {
	r      *io.PipeReader
	w      *io.PipeWriter
	tracks []*fakeTrack
}

func newPipeStream() *pipeStream {
	r, w := io.Pipe()
	s := &pipeStream{r: r, w: w}
	s.tracks = []*fakeTrack{
		{onStop: func() { _ = r.Close() }},
		{},
	}
	return s
}

func (s *pipeStream) Read(p []byte) (int, error) { return s.r.Read(p) }
func (s *pipeStream) SampleRate() int             { return 8000 }
func (s *pipeStream) Tracks() []Track {
	out := make([]Track, len(s.tracks))
	for i, tr := range s.tracks {
		out[i] = tr
	}
	return out
}

func (s *pipeStream) allStopped() bool {
	for _, tr := range s.tracks {
		if tr.stopped.Load() == 0 {
			return false
		}
	}
	return true
}

type fakeMic struct {
	mu     sync.Mutex
	opens  int
	err    error
	block  chan struct{}
	stream *pipeStream
}

func (m *fakeMic) Open(ctx context.Context) (Stream, error) {
	m.mu.Lock()
	m.opens++
	block := m.block
	m.mu.Unlock()
	if block != nil {
		<-block
	}
	if m.err != nil {
		return nil, m.err
	}
	m.stream = newPipeStream()
	return m.stream, nil
}

type fakeUploader struct {
	mu    sync.Mutex
	clips []agent.Audio
	res   dispatch.UploadResult
	err   error
}

func (u *fakeUploader) SendAudio(_ context.Context, clip agent.Audio) (dispatch.UploadResult, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.clips = append(u.clips, clip)
	return u.res, u.err
}

type gate bool

func (g gate) CanSend() bool { return bool(g) }

func fastConfig() Config {
	return Config{
		ChunkInterval:   5 * time.Millisecond,
		RefreshInterval: 2 * time.Millisecond,
		ElapsedInterval: 10 * time.Millisecond,
		AnalyserSize:    64,
	}
}

func pcmOf(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(i % 251)
	}
	return out
}

func TestRecordAndUpload(t *testing.T) {
	mic := &fakeMic{}
	up := &fakeUploader{res: dispatch.UploadResult{AudioURL: "/audio/x.wav"}}
	rec := &status.Recorder{}
	var renders atomic.Int32
	vis := VisualizerFunc(func(levels []uint8) error {
		renders.Add(1)
		if len(levels) != 32 {
			return errors.New("unexpected bin count")
		}
		return nil
	})
	c := NewController(mic, up, gate(true), vis, rec, fastConfig())

	require.NoError(t, c.Start(context.Background()))
	assert.Equal(t, StateRecording, c.State())

	first, second := pcmOf(640), pcmOf(320)
	_, err := mic.stream.w.Write(first)
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	_, err = mic.stream.w.Write(second)
	require.NoError(t, err)
	time.Sleep(30 * time.Millisecond)

	res, err := c.Stop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateIdle, c.State())
	assert.Equal(t, "/audio/x.wav", res.Upload.AudioURL)
	assert.Equal(t, 960, res.Bytes)
	assert.GreaterOrEqual(t, res.Chunks, 2, "capture must be cut into interval chunks")
	assert.True(t, mic.stream.allStopped())
	assert.Positive(t, renders.Load())
	assert.Positive(t, rec.Count(status.KindRecordingElapsed))

	require.Len(t, up.clips, 1)
	assert.Equal(t, "audio/wav", up.clips[0].ContentType)
	pcm, rate, err := audio.DecodeWAV(bytes.NewReader(up.clips[0].Data))
	require.NoError(t, err)
	assert.Equal(t, 8000, rate)
	assert.Equal(t, append(append([]byte{}, first...), second...), pcm)

	var states []string
	for _, ev := range rec.Events() {
		if ev.Kind == status.KindRecordingState {
			states = append(states, ev.State)
		}
	}
	assert.Equal(t, []string{"requesting", "recording", "stopping", "processing", "idle"}, states)
}

func TestStartWhileActiveIsNoop(t *testing.T) {
	mic := &fakeMic{}
	c := NewController(mic, &fakeUploader{}, gate(true), nil, nil, fastConfig())
	require.NoError(t, c.Start(context.Background()))
	require.NoError(t, c.Start(context.Background()))
	assert.Equal(t, 1, mic.opens)
	c.Cancel()
	assert.Equal(t, StateIdle, c.State())
	assert.True(t, mic.stream.allStopped())
}

func TestStartDuringPermissionPromptIsNoop(t *testing.T) {
	mic := &fakeMic{block: make(chan struct{})}
	c := NewController(mic, &fakeUploader{}, gate(true), nil, nil, fastConfig())

	done := make(chan error, 1)
	go func() { done <- c.Start(context.Background()) }()
	require.Eventually(t, func() bool { return c.State() == StateRequesting }, time.Second, time.Millisecond)

	require.NoError(t, c.Start(context.Background()))
	_, err := c.Stop(context.Background())
	assert.ErrorIs(t, err, ErrNotRecording)

	close(mic.block)
	require.NoError(t, <-done)
	assert.Equal(t, 1, mic.opens)
	c.Close()
}

func TestPermissionDenied(t *testing.T) {
	mic := &fakeMic{err: ErrPermissionDenied}
	up := &fakeUploader{}
	rec := &status.Recorder{}
	c := NewController(mic, up, gate(true), nil, rec, fastConfig())

	err := c.Start(context.Background())
	require.ErrorIs(t, err, ErrPermissionDenied)
	assert.Equal(t, StateIdle, c.State())
	assert.Equal(t, 1, rec.Count(status.KindPermissionDenied))
	assert.Equal(t, 1, mic.opens, "no automatic retry")
	assert.Empty(t, up.clips)

	// A later start may try again.
	mic.err = nil
	require.NoError(t, c.Start(context.Background()))
	c.Cancel()
}

func TestQuotaExhaustedSkipsUpload(t *testing.T) {
	mic := &fakeMic{}
	up := &fakeUploader{}
	rec := &status.Recorder{}
	c := NewController(mic, up, gate(false), nil, rec, fastConfig())

	require.NoError(t, c.Start(context.Background()))
	_, _ = mic.stream.w.Write(pcmOf(320))

	_, err := c.Stop(context.Background())
	require.ErrorIs(t, err, ErrQuotaExceeded)
	assert.Empty(t, up.clips)
	assert.Equal(t, 1, rec.Count(status.KindQuotaExceeded))
	assert.Equal(t, StateIdle, c.State())
	assert.True(t, mic.stream.allStopped())
}

func TestUploadFailureReleasesEverything(t *testing.T) {
	mic := &fakeMic{}
	up := &fakeUploader{err: &agent.DispatchError{Op: "audio_upload", Kind: agent.KindStatus, StatusCode: 500}}
	rec := &status.Recorder{}
	c := NewController(mic, up, gate(true), nil, rec, fastConfig())

	require.NoError(t, c.Start(context.Background()))
	sess := c.sess
	_, _ = mic.stream.w.Write(pcmOf(320))

	_, err := c.Stop(context.Background())
	require.ErrorIs(t, err, ErrUploadFailed)
	de, ok := agent.AsDispatchError(err)
	require.True(t, ok)
	assert.Equal(t, 500, de.StatusCode)

	assert.True(t, mic.stream.allStopped())
	assert.True(t, sess.analyser.Released())
	assert.Equal(t, 1, rec.Count(status.KindUploadFailed))
	assert.Equal(t, StateIdle, c.State())
	ev, _ := rec.Last(status.KindRecordingState)
	assert.Equal(t, "idle", ev.State)
}

func TestVisualizerPanicDoesNotAbort(t *testing.T) {
	mic := &fakeMic{}
	up := &fakeUploader{}
	var calls atomic.Int32
	vis := VisualizerFunc(func([]uint8) error {
		calls.Add(1)
		panic("canvas gone")
	})
	c := NewController(mic, up, gate(true), vis, nil, fastConfig())

	require.NoError(t, c.Start(context.Background()))
	_, _ = mic.stream.w.Write(pcmOf(320))
	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, time.Millisecond)
	assert.Equal(t, StateRecording, c.State())

	_, err := c.Stop(context.Background())
	require.NoError(t, err)
	assert.Len(t, up.clips, 1)
}

func TestEmptyRecording(t *testing.T) {
	mic := &fakeMic{}
	up := &fakeUploader{}
	c := NewController(mic, up, gate(true), nil, nil, fastConfig())

	require.NoError(t, c.Start(context.Background()))
	_, err := c.Stop(context.Background())
	require.ErrorIs(t, err, ErrEmptyRecording)
	assert.Empty(t, up.clips)
	assert.Equal(t, StateIdle, c.State())
}

func TestStreamEndStopsAutomatically(t *testing.T) {
	mic := &fakeMic{}
	up := &fakeUploader{}
	c := NewController(mic, up, gate(true), nil, nil, fastConfig())

	require.NoError(t, c.Start(context.Background()))
	_, _ = mic.stream.w.Write(pcmOf(320))
	_ = mic.stream.w.Close()

	require.Eventually(t, func() bool { return c.State() == StateIdle }, time.Second, time.Millisecond)
	c.Close()
	require.Len(t, up.clips, 1)
	assert.True(t, mic.stream.allStopped())
}

func TestMaxDurationCeiling(t *testing.T) {
	mic := &fakeMic{}
	up := &fakeUploader{}
	rec := &status.Recorder{}
	cfg := fastConfig()
	cfg.MaxDuration = 20 * time.Millisecond
	c := NewController(mic, up, gate(true), nil, rec, cfg)

	require.NoError(t, c.Start(context.Background()))
	_, _ = mic.stream.w.Write(pcmOf(320))
	require.Eventually(t, func() bool { return c.State() == StateIdle }, time.Second, time.Millisecond)
	c.Close()
	assert.Len(t, up.clips, 1)
}

func TestFileMicrophone(t *testing.T) {
	dir := t.TempDir()
	pcm := pcmOf(1600)
	path := filepath.Join(dir, "clip.wav")
	require.NoError(t, audio.WriteWAVPCM16LEFile(path, pcm, 8000))

	up := &fakeUploader{}
	c := NewController(FileMicrophone{Path: path}, up, gate(true), nil, nil, fastConfig())
	require.NoError(t, c.Start(context.Background()))
	require.Eventually(t, func() bool { return c.State() == StateIdle }, time.Second, time.Millisecond)
	c.Close()

	require.Len(t, up.clips, 1)
	got, rate, err := audio.DecodeWAV(bytes.NewReader(up.clips[0].Data))
	require.NoError(t, err)
	assert.Equal(t, 8000, rate)
	assert.Equal(t, pcm, got)
}

func TestFileMicrophoneMissing(t *testing.T) {
	_, err := FileMicrophone{Path: filepath.Join(t.TempDir(), "nope.wav")}.Open(context.Background())
	assert.ErrorIs(t, err, ErrNoMicrophone)
}

func TestFileMicrophoneUnreadable(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores file permissions")
	}
	path := filepath.Join(t.TempDir(), "locked.pcm")
	require.NoError(t, os.WriteFile(path, pcmOf(10), 0o000))
	_, err := FileMicrophone{Path: path}.Open(context.Background())
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestCommandMicrophoneMissingBinary(t *testing.T) {
	_, err := CommandMicrophone{Command: "lingua-no-such-recorder"}.Open(context.Background())
	assert.ErrorIs(t, err, ErrNoMicrophone)
}

func TestAnalyserWindowAndRelease(t *testing.T) {
	a := newAnalyser(100)
	assert.Len(t, a.window, 64)
	a.Write([]byte{0x00})
	a.Write([]byte{0x40, 0x00, 0x40})
	assert.Equal(t, 2, a.pos)
	assert.Len(t, a.Levels(), 32)

	a.Release()
	a.Write(pcmOf(10))
	assert.Nil(t, a.Levels())
}
