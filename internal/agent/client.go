package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/ent0n29/lingua/internal/protocol"
)

// Audio is a recorded clip ready for upload.
type Audio struct {
	Data        []byte
	Filename    string
	ContentType string
}

type Config struct {
	BaseURL    string
	User       string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client talks to the agent service over HTTP. It never retries.
type Client struct {
	baseURL string
	user    string
	client  *http.Client
}

func New(cfg Config) *Client {
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	user := strings.TrimSpace(cfg.User)
	if user == "" {
		user = "anonymous"
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		user:    user,
		client:  client,
	}
}

func (c *Client) User() string    { return c.user }
func (c *Client) BaseURL() string { return c.baseURL }

// SendMessage posts one text turn and returns the agent reply.
func (c *Client) SendMessage(ctx context.Context, text string) (protocol.SendMessageResponse, error) {
	var out protocol.SendMessageResponse
	err := c.doJSON(ctx, "send_message", http.MethodPost, "/send_message", protocol.SendMessageRequest{
		User: c.user,
		Text: text,
	}, &out)
	return out, err
}

// UploadAudio posts a clip as multipart form data.
func (c *Client) UploadAudio(ctx context.Context, clip Audio) (protocol.UploadResponse, error) {
	const op = "audio_upload"
	var out protocol.UploadResponse

	filename := clip.Filename
	if filename == "" {
		filename = "recording.wav"
	}
	contentType := clip.ContentType
	if contentType == "" {
		contentType = "audio/wav"
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	// CreateFormFile hardcodes application/octet-stream; the agent wants the real type.
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="audio"; filename=%q`, filename))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return out, transportError(op, fmt.Errorf("create form file: %w", err))
	}
	if _, err := part.Write(clip.Data); err != nil {
		return out, transportError(op, fmt.Errorf("write audio: %w", err))
	}
	if err := w.WriteField("user", c.user); err != nil {
		return out, transportError(op, fmt.Errorf("write user field: %w", err))
	}
	if err := w.Close(); err != nil {
		return out, transportError(op, fmt.Errorf("close multipart: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/upload", &buf)
	if err != nil {
		return out, transportError(op, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return out, c.do(op, req, &out)
}

func (c *Client) ListLessons(ctx context.Context) ([]protocol.Lesson, error) {
	var out []protocol.Lesson
	err := c.doJSON(ctx, "list_lessons", http.MethodGet, "/lessons/", nil, &out)
	return out, err
}

func (c *Client) CreateLesson(ctx context.Context, phrase, translation string) (protocol.Lesson, error) {
	var out protocol.Lesson
	err := c.doJSON(ctx, "create_lesson", http.MethodPost, "/lessons/", protocol.LessonCreate{
		Phrase:      phrase,
		Translation: translation,
	}, &out)
	return out, err
}

func (c *Client) Speak(ctx context.Context, lessonID int64) (protocol.SpeakResponse, error) {
	var out protocol.SpeakResponse
	err := c.doJSON(ctx, "speak", http.MethodGet, fmt.Sprintf("/speak/%d", lessonID), nil, &out)
	return out, err
}

// ResolveURL turns a server-relative audio reference into an absolute URL.
func (c *Client) ResolveURL(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	if u, err := url.Parse(ref); err == nil && u.IsAbs() {
		return ref
	}
	if !strings.HasPrefix(ref, "/") {
		ref = "/" + ref
	}
	return c.baseURL + ref
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return transportError(op, fmt.Errorf("marshal request: %w", err))
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return transportError(op, fmt.Errorf("create request: %w", err))
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(op, req, out)
}

func (c *Client) do(op string, req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	res, err := c.client.Do(req)
	if err != nil {
		return transportError(op, fmt.Errorf("send request: %w", err))
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 4<<10))
		return statusError(op, res.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return transportError(op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}
