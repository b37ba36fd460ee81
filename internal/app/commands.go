package app

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/ent0n29/lingua/internal/dispatch"
	"github.com/ent0n29/lingua/internal/recorder"
)

const helpText = `Type a message to chat with your tutor, or:
  /rec                      start recording a voice message
  /stop                     stop recording and send it
  /cancel                   discard the current recording
  /lessons                  list saved phrases
  /lesson add <phrase> | <translation>
  /speak <id>               hear a saved phrase
  /history                  show the saved conversation
  /quota                    show today's audio allowance
  /quit                     leave`

// Handle runs one line of input. It reports true when the user asked to quit.
// Failures are rendered to the console; the loop always continues.
func (c *Client) Handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, "/") {
		// The dispatcher renders both turns and any error itself.
		_, _ = c.Dispatcher.SendText(ctx, line)
		return false
	}

	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	switch strings.ToLower(cmd) {
	case "/quit", "/exit":
		return true
	case "/help":
		c.Console.Info("%s", helpText)
	case "/rec":
		c.startRecording(ctx)
	case "/stop":
		c.stopRecording(ctx)
	case "/cancel":
		c.Recorder.Cancel()
	case "/lessons":
		lessons, err := c.Agent.ListLessons(ctx)
		if err != nil {
			c.Console.Error("%s", dispatch.Describe(err))
			return false
		}
		c.Console.Lessons(lessons)
	case "/lesson":
		c.addLesson(ctx, rest)
	case "/speak":
		c.speak(ctx, rest)
	case "/history":
		c.Console.Replay(c.History.LoadAll())
	case "/quota":
		c.Console.Quota(c.Quota.Snapshot())
	default:
		c.Console.Error("Unknown command %s. Try /help.", cmd)
	}
	return false
}

func (c *Client) startRecording(ctx context.Context) {
	err := c.Recorder.Start(ctx)
	if err == nil || errors.Is(err, recorder.ErrPermissionDenied) {
		return
	}
	if errors.Is(err, recorder.ErrNoMicrophone) {
		c.Console.Error("No microphone found. Configure [recorder] in the client config.")
	}
}

func (c *Client) stopRecording(ctx context.Context) {
	_, err := c.Recorder.Stop(ctx)
	switch {
	case err == nil:
		c.Console.Quota(c.Quota.Snapshot())
	case errors.Is(err, recorder.ErrNotRecording):
		c.Console.Info("Not recording. Start with /rec.")
	}
}

func (c *Client) addLesson(ctx context.Context, args string) {
	verb, body, _ := strings.Cut(args, " ")
	if verb != "add" {
		c.Console.Error("Usage: /lesson add <phrase> | <translation>")
		return
	}
	phrase, translation, _ := strings.Cut(body, "|")
	phrase = strings.TrimSpace(phrase)
	if phrase == "" {
		c.Console.Error("Usage: /lesson add <phrase> | <translation>")
		return
	}
	lesson, err := c.Agent.CreateLesson(ctx, phrase, strings.TrimSpace(translation))
	if err != nil {
		c.Console.Error("%s", dispatch.Describe(err))
		return
	}
	c.Console.Info("Saved lesson #%d: %s", lesson.ID, lesson.Phrase)
}

func (c *Client) speak(ctx context.Context, arg string) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		c.Console.Error("Usage: /speak <lesson id>")
		return
	}
	res, err := c.Agent.Speak(ctx, id)
	if err != nil {
		c.Console.Error("%s", dispatch.Describe(err))
		return
	}
	c.Console.Audio(res.Text, res.AudioURL)
}
