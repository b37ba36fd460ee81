// Package console renders chat turns, status signals and recording levels to
// a terminal.
package console

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/ent0n29/lingua/internal/history"
	"github.com/ent0n29/lingua/internal/protocol"
	"github.com/ent0n29/lingua/internal/quota"
	"github.com/ent0n29/lingua/internal/status"
)

const barWidth = 32

var barGlyphs = []rune(" ▁▂▃▄▅▆▇█")

type styles struct {
	user       lipgloss.Style
	agent      lipgloss.Style
	correction lipgloss.Style
	audio      lipgloss.Style
	info       lipgloss.Style
	warn       lipgloss.Style
	err        lipgloss.Style
	notice     lipgloss.Style
	bar        lipgloss.Style
	dim        lipgloss.Style
}

func colorStyles() styles {
	return styles{
		user:       lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true),
		agent:      lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
		correction: lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Italic(true),
		audio:      lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		info:       lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		warn:       lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		err:        lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		notice:     lipgloss.NewStyle().Foreground(lipgloss.Color("213")).Bold(true),
		bar:        lipgloss.NewStyle().Foreground(lipgloss.Color("45")),
		dim:        lipgloss.NewStyle().Faint(true),
	}
}

func plainStyles() styles {
	s := lipgloss.NewStyle()
	return styles{user: s, agent: s, correction: s, audio: s, info: s, warn: s, err: s, notice: s, bar: s, dim: s}
}

// Console is a status.Sink and a recorder.Visualizer. Safe for concurrent use.
type Console struct {
	mu      sync.Mutex
	out     io.Writer
	st      styles
	resolve func(string) string

	barOpen bool
	elapsed time.Duration
	typing  bool
}

type Option func(*Console)

// WithPlainText disables colors and emphasis.
func WithPlainText() Option {
	return func(c *Console) { c.st = plainStyles() }
}

// WithURLResolver rewrites audio references before they are printed.
func WithURLResolver(fn func(string) string) Option {
	return func(c *Console) { c.resolve = fn }
}

func New(out io.Writer, opts ...Option) *Console {
	c := &Console{out: out, st: colorStyles()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Emit renders one status event.
func (c *Console) Emit(ev status.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch ev.Kind {
	case status.KindMessage:
		if ev.Message != nil {
			c.lineLocked(c.formatMessage(*ev.Message))
		}
	case status.KindTyping:
		if ev.Active && !c.typing {
			c.lineLocked(c.st.dim.Render("tutor is typing..."))
		}
		c.typing = ev.Active
	case status.KindRecordingState:
		c.recordingStateLocked(ev.State)
	case status.KindRecordingElapsed:
		c.elapsed = ev.Elapsed
	case status.KindNotification:
		title := ev.Title
		if title == "" {
			title = "Reminder"
		}
		c.lineLocked(c.st.notice.Render("🔔 "+title) + " " + ev.Text)
	default:
		if ev.Text != "" {
			c.lineLocked(c.banner(ev.Level, ev.Text))
		}
	}
}

// Render draws the live level bar on a single rewritten line.
func (c *Console) Render(levels []uint8) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	line := fmt.Sprintf("\r%s %s %s", c.st.err.Render("●"), c.st.bar.Render(LevelBar(levels, barWidth)), formatElapsed(c.elapsed))
	if _, err := io.WriteString(c.out, line); err != nil {
		return err
	}
	c.barOpen = true
	return nil
}

// Replay prints a stored conversation without touching the network.
func (c *Console) Replay(msgs []history.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(msgs) == 0 {
		c.lineLocked(c.st.info.Render("No saved conversation yet. Say hello!"))
		return
	}
	c.lineLocked(c.st.dim.Render(fmt.Sprintf("-- %d saved messages --", len(msgs))))
	for _, m := range msgs {
		c.lineLocked(c.formatMessage(m))
	}
}

func (c *Console) Lessons(lessons []protocol.Lesson) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(lessons) == 0 {
		c.lineLocked(c.st.info.Render("No lessons yet. Add one with /lesson add <phrase> | <translation>"))
		return
	}
	for _, l := range lessons {
		line := fmt.Sprintf("%s %s", c.st.dim.Render(fmt.Sprintf("#%d", l.ID)), l.Phrase)
		if l.Translation != "" {
			line += c.st.info.Render(" (" + l.Translation + ")")
		}
		c.lineLocked(line)
	}
}

func (c *Console) Quota(s quota.State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	used := s.Displayed()
	left := s.Limit - used
	line := fmt.Sprintf("Audio messages today: %d/%d used, %d left", used, s.Limit, left)
	if left <= 0 {
		c.lineLocked(c.st.warn.Render(line))
		return
	}
	c.lineLocked(c.st.info.Render(line))
}

// Audio prints a playable reference.
func (c *Console) Audio(label, ref string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lineLocked(c.st.audio.Render("♪ " + label + ": " + c.url(ref)))
}

func (c *Console) Info(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lineLocked(c.banner(status.LevelInfo, fmt.Sprintf(format, args...)))
}

func (c *Console) Error(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lineLocked(c.banner(status.LevelError, fmt.Sprintf(format, args...)))
}

func (c *Console) recordingStateLocked(state string) {
	switch state {
	case "requesting":
		c.lineLocked(c.st.info.Render("Waiting for the microphone..."))
	case "recording":
		c.elapsed = 0
		c.lineLocked(c.st.err.Render("● Recording") + c.st.dim.Render("  (/stop to send)"))
	case "processing":
		c.lineLocked(c.st.info.Render("Sending your voice message..."))
	}
}

func (c *Console) formatMessage(m history.Message) string {
	var b strings.Builder
	if m.Sender == history.SenderUser {
		b.WriteString(c.st.user.Render("you"))
	} else {
		b.WriteString(c.st.agent.Render("tutor"))
	}
	b.WriteString(c.st.dim.Render(" " + m.Timestamp.Local().Format("15:04")))
	b.WriteString("  ")
	b.WriteString(m.Text)
	if m.Correction != "" {
		b.WriteString("\n    ")
		b.WriteString(c.st.correction.Render("✎ " + m.Correction))
	}
	if m.AudioURL != "" {
		b.WriteString("\n    ")
		b.WriteString(c.st.audio.Render("♪ " + c.url(m.AudioURL)))
	}
	return b.String()
}

func (c *Console) banner(level status.Level, text string) string {
	switch level {
	case status.LevelError:
		return c.st.err.Render("✗ " + text)
	case status.LevelWarn:
		return c.st.warn.Render("! " + text)
	default:
		return c.st.info.Render("· " + text)
	}
}

func (c *Console) url(ref string) string {
	if c.resolve == nil {
		return ref
	}
	return c.resolve(ref)
}

// lineLocked ends an open level bar before writing a full line.
func (c *Console) lineLocked(s string) {
	if c.barOpen {
		_, _ = io.WriteString(c.out, "\n")
		c.barOpen = false
	}
	_, _ = io.WriteString(c.out, s+"\n")
}

// LevelBar maps byte magnitudes onto width block glyphs.
func LevelBar(levels []uint8, width int) string {
	if width <= 0 {
		return ""
	}
	out := make([]rune, width)
	for i := range out {
		out[i] = barGlyphs[0]
	}
	if len(levels) == 0 {
		return string(out)
	}
	for i := range out {
		// Average the bins that fall into this column.
		lo := i * len(levels) / width
		hi := (i + 1) * len(levels) / width
		if hi <= lo {
			hi = lo + 1
		}
		if hi > len(levels) {
			hi = len(levels)
		}
		sum := 0
		for _, v := range levels[lo:hi] {
			sum += int(v)
		}
		avg := sum / (hi - lo)
		out[i] = barGlyphs[avg*(len(barGlyphs)-1)/255]
	}
	return string(out)
}

func formatElapsed(d time.Duration) string {
	d = d.Truncate(time.Second)
	return fmt.Sprintf("%02d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}
