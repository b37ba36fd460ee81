package agent

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ent0n29/lingua/internal/protocol"
)

func TestSendMessage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/send_message", r.URL.Path)
		var req protocol.SendMessageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, protocol.SendMessageRequest{User: "junior", Text: "Hello"}, req)
		_ = json.NewEncoder(w).Encode(protocol.SendMessageResponse{Response: "Hi! How can I help?"})
	}))
	defer ts.Close()

	c := New(Config{BaseURL: ts.URL + "/", User: "junior"})
	res, err := c.SendMessage(context.Background(), "Hello")
	require.NoError(t, err)
	assert.Equal(t, "Hi! How can I help?", res.Response)
}

func TestSendMessageNonSuccessStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"boom"}`, http.StatusInternalServerError)
	}))
	defer ts.Close()

	_, err := New(Config{BaseURL: ts.URL}).SendMessage(context.Background(), "Hello")
	de, ok := AsDispatchError(err)
	require.True(t, ok, "error = %v", err)
	assert.Equal(t, KindStatus, de.Kind)
	assert.Equal(t, http.StatusInternalServerError, de.StatusCode)
	assert.False(t, IsTransport(err))
}

func TestSendMessageTransportFailure(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	_, err := New(Config{BaseURL: url, Timeout: time.Second}).SendMessage(context.Background(), "Hello")
	require.Error(t, err)
	assert.True(t, IsTransport(err))
}

func TestSendMessageUndecodableBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "<html>")
	}))
	defer ts.Close()

	_, err := New(Config{BaseURL: ts.URL}).SendMessage(context.Background(), "Hello")
	assert.True(t, IsTransport(err))
}

func TestUploadAudioMultipart(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/audio/upload", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "junior", r.FormValue("user"))

		f, hdr, err := r.FormFile("audio")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "RIFFdata", string(data))
		assert.Equal(t, "clip.wav", hdr.Filename)
		assert.Equal(t, "audio/wav", hdr.Header.Get("Content-Type"))

		_, _ = io.WriteString(w, `{"audio_url":"/audio/clip.wav","transcript":"hello there","usage_left":4}`)
	}))
	defer ts.Close()

	c := New(Config{BaseURL: ts.URL, User: "junior"})
	res, err := c.UploadAudio(context.Background(), Audio{Data: []byte("RIFFdata"), Filename: "clip.wav"})
	require.NoError(t, err)
	assert.Equal(t, "/audio/clip.wav", res.AudioURL)
	assert.Equal(t, "hello there", res.Transcript)
	require.NotNil(t, res.UsageLeft)
	assert.Equal(t, 4, *res.UsageLeft)
}

func TestLessonsAndSpeak(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/lessons/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			var in protocol.LessonCreate
			require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
			_ = json.NewEncoder(w).Encode(protocol.Lesson{ID: 3, Phrase: in.Phrase, Translation: in.Translation})
			return
		}
		_, _ = io.WriteString(w, `[{"id":2,"phrase":"good morning"},{"id":1,"phrase":"thanks","translation":"obrigado"}]`)
	})
	mux.HandleFunc("/speak/2", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"text":"good morning","audio_url":"/audio/lesson_2.mp3"}`)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	c := New(Config{BaseURL: ts.URL})
	ctx := context.Background()

	lessons, err := c.ListLessons(ctx)
	require.NoError(t, err)
	require.Len(t, lessons, 2)
	assert.Equal(t, int64(2), lessons[0].ID)

	created, err := c.CreateLesson(ctx, "see you", "até logo")
	require.NoError(t, err)
	assert.Equal(t, "até logo", created.Translation)

	spoken, err := c.Speak(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, ts.URL+"/audio/lesson_2.mp3", c.ResolveURL(spoken.AudioURL))
}

func TestResolveURL(t *testing.T) {
	c := New(Config{BaseURL: "http://localhost:8000/"})
	assert.Equal(t, "", c.ResolveURL(" "))
	assert.Equal(t, "http://localhost:8000/audio/a.mp3", c.ResolveURL("audio/a.mp3"))
	assert.Equal(t, "https://cdn.test/a.mp3", c.ResolveURL("https://cdn.test/a.mp3"))
}

func TestPushURL(t *testing.T) {
	got, err := New(Config{BaseURL: "https://tutor.test/api", User: "junior"}).PushURL()
	require.NoError(t, err)
	assert.Equal(t, "wss://tutor.test/api/push/ws?user=junior", got)
}

func TestSubscriberDeliversNotifications(t *testing.T) {
	upgrader := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "junior", r.URL.Query().Get("user"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteJSON(protocol.Notification{Type: protocol.TypeNotification, Title: "Reminder", Body: "It's time to practice English!"})
		_, _, _ = conn.ReadMessage()
	}))
	defer ts.Close()

	got := make(chan any, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub := NewSubscriber(New(Config{BaseURL: ts.URL, User: "junior"}), func(msg any) {
		select {
		case got <- msg:
		default:
		}
	}, nil)
	done := make(chan error, 1)
	go func() { done <- sub.Run(ctx) }()

	select {
	case msg := <-got:
		n, ok := msg.(protocol.Notification)
		require.True(t, ok, "msg = %T", msg)
		assert.True(t, strings.HasPrefix(n.Body, "It's time"))
	case <-time.After(3 * time.Second):
		t.Fatalf("no notification received")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatalf("subscriber did not stop")
	}
}
