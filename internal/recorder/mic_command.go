package recorder

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/ent0n29/lingua/internal/audio"
)

// CommandMicrophone captures raw PCM16LE mono audio from an external program's
// stdout, such as arecord or sox.
type CommandMicrophone struct {
	Command    string
	Args       []string
	SampleRate int
}

// DefaultCommandMicrophone returns an arecord capture, or sox when arecord is
// not installed.
func DefaultCommandMicrophone(sampleRate int) CommandMicrophone {
	if sampleRate <= 0 {
		sampleRate = audio.DefaultSampleRate
	}
	rate := strconv.Itoa(sampleRate)
	if _, err := exec.LookPath("arecord"); err == nil {
		return CommandMicrophone{
			Command:    "arecord",
			Args:       []string{"-q", "-t", "raw", "-f", "S16_LE", "-c", "1", "-r", rate},
			SampleRate: sampleRate,
		}
	}
	return CommandMicrophone{
		Command:    "sox",
		Args:       []string{"-q", "-d", "-t", "raw", "-b", "16", "-e", "signed-integer", "-c", "1", "-r", rate, "-"},
		SampleRate: sampleRate,
	}
}

func (m CommandMicrophone) Open(ctx context.Context) (Stream, error) {
	if strings.TrimSpace(m.Command) == "" {
		return nil, ErrNoMicrophone
	}
	path, err := exec.LookPath(m.Command)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoMicrophone, err)
	}

	cmd := exec.Command(path, m.Args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, classifyCaptureError(err, "")
	}

	s := &commandStream{cmd: cmd, r: bufio.NewReader(stdout), rate: m.SampleRate}
	if s.rate <= 0 {
		s.rate = audio.DefaultSampleRate
	}

	// Wait for the first audio bytes so a refused device fails here instead of
	// mid-recording.
	peeked := make(chan error, 1)
	go func() {
		_, err := s.r.Peek(2)
		peeked <- err
	}()
	select {
	case err := <-peeked:
		if err != nil {
			_ = cmd.Wait()
			return nil, classifyCaptureError(err, stderr.String())
		}
	case <-ctx.Done():
		s.Stop()
		return nil, ctx.Err()
	}
	return s, nil
}

type commandStream struct {
	cmd  *exec.Cmd
	r    *bufio.Reader
	rate int
	once sync.Once
}

func (s *commandStream) Read(p []byte) (int, error) { return s.r.Read(p) }
func (s *commandStream) SampleRate() int             { return s.rate }
func (s *commandStream) Tracks() []Track             { return []Track{s} }

// Stop kills the capture process and reaps it.
func (s *commandStream) Stop() {
	s.once.Do(func() {
		if s.cmd.Process != nil {
			_ = s.cmd.Process.Kill()
		}
		_ = s.cmd.Wait()
	})
}

func classifyCaptureError(err error, stderr string) error {
	msg := strings.ToLower(stderr)
	switch {
	case strings.Contains(msg, "permission denied"), strings.Contains(msg, "not permitted"):
		return fmt.Errorf("%w: %s", ErrPermissionDenied, strings.TrimSpace(stderr))
	case strings.Contains(msg, "no such file"), strings.Contains(msg, "no such device"), strings.Contains(msg, "no default audio device"):
		return fmt.Errorf("%w: %s", ErrNoMicrophone, strings.TrimSpace(stderr))
	case errors.Is(err, io.EOF) && stderr != "":
		return fmt.Errorf("capture exited: %s", strings.TrimSpace(stderr))
	}
	return err
}
