package console

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ent0n29/lingua/internal/history"
	"github.com/ent0n29/lingua/internal/protocol"
	"github.com/ent0n29/lingua/internal/quota"
	"github.com/ent0n29/lingua/internal/status"
)

func TestLevelBar(t *testing.T) {
	assert.Equal(t, "    ", LevelBar(nil, 4))
	assert.Equal(t, "", LevelBar([]uint8{255}, 0))

	bar := []rune(LevelBar([]uint8{0, 0, 255, 255}, 2))
	require.Len(t, bar, 2)
	assert.Equal(t, ' ', bar[0])
	assert.Equal(t, '█', bar[1])

	assert.Len(t, []rune(LevelBar(make([]uint8, 32), barWidth)), barWidth)
	assert.Len(t, []rune(LevelBar([]uint8{128}, 8)), 8)
}

func TestMessagesAndCorrections(t *testing.T) {
	var out bytes.Buffer
	c := New(&out, WithPlainText(), WithURLResolver(func(ref string) string { return "http://tutor" + ref }))

	c.Emit(status.Event{Kind: status.KindMessage, Message: &history.Message{
		Sender:     history.SenderAgent,
		Text:       "Nice try!",
		Correction: "I went to the park.",
		AudioURL:   "/audio/reply_1.mp3",
		Timestamp:  time.Now(),
	}})

	got := out.String()
	assert.Contains(t, got, "tutor")
	assert.Contains(t, got, "Nice try!")
	assert.Contains(t, got, "✎ I went to the park.")
	assert.Contains(t, got, "http://tutor/audio/reply_1.mp3")
}

func TestLevelBarLineIsClosedBeforeNextLine(t *testing.T) {
	var out bytes.Buffer
	c := New(&out, WithPlainText())

	require.NoError(t, c.Render([]uint8{255, 255}))
	c.Emit(status.Event{Kind: status.KindRecordingElapsed, Elapsed: 3 * time.Second})
	require.NoError(t, c.Render([]uint8{0, 0}))
	c.Emit(status.Event{Kind: status.KindInfo, Level: status.LevelWarn, Text: "Nothing was recorded."})

	got := out.String()
	assert.True(t, strings.HasPrefix(got, "\r"))
	assert.Contains(t, got, "00:03")
	assert.Contains(t, got, "\n! Nothing was recorded.\n")
}

func TestTypingIndicatorPrintsOnce(t *testing.T) {
	var out bytes.Buffer
	c := New(&out, WithPlainText())
	c.Emit(status.Event{Kind: status.KindTyping, Active: true})
	c.Emit(status.Event{Kind: status.KindTyping, Active: true})
	c.Emit(status.Event{Kind: status.KindTyping, Active: false})
	assert.Equal(t, 1, strings.Count(out.String(), "typing"))
}

func TestReplayLessonsAndQuota(t *testing.T) {
	var out bytes.Buffer
	c := New(&out, WithPlainText())

	c.Replay(nil)
	assert.Contains(t, out.String(), "No saved conversation")

	out.Reset()
	c.Replay([]history.Message{
		{Sender: history.SenderUser, Text: "hello", Timestamp: time.Now()},
		{Sender: history.SenderAgent, Text: "hi there", Timestamp: time.Now()},
	})
	assert.Contains(t, out.String(), "2 saved messages")
	assert.Contains(t, out.String(), "you")

	out.Reset()
	c.Lessons([]protocol.Lesson{{ID: 3, Phrase: "Good night", Translation: "Boa noite"}})
	assert.Contains(t, out.String(), "#3 Good night (Boa noite)")

	out.Reset()
	c.Quota(quota.State{Consumed: 10, Limit: 10})
	assert.Contains(t, out.String(), "10/10 used, 0 left")
}

func TestNotificationBanner(t *testing.T) {
	var out bytes.Buffer
	c := New(&out, WithPlainText())
	c.Emit(status.Event{Kind: status.KindNotification, Title: "Daily practice", Text: "It's time to practice English!"})
	assert.Contains(t, out.String(), "🔔 Daily practice It's time to practice English!")
}
