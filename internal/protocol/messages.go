package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// MessageType identifies push channel payload variants.
type MessageType string

const (
	TypeNotification MessageType = "notification"
	TypeSystemEvent  MessageType = "system_event"
)

var ErrUnsupportedType = errors.New("unsupported message type")

// SendMessageRequest is the body of POST /send_message.
type SendMessageRequest struct {
	User string `json:"user"`
	Text string `json:"text"`
}

// SendMessageResponse is the agent reply to a text turn.
type SendMessageResponse struct {
	Response   string `json:"response"`
	Correction string `json:"correction,omitempty"`
	AudioURL   string `json:"audio_url,omitempty"`
}

// UploadResponse is returned by POST /audio/upload.
type UploadResponse struct {
	AudioURL         string `json:"audio_url"`
	AudioResponseURL string `json:"audio_response_url,omitempty"`
	Transcript       string `json:"transcript,omitempty"`
	UsageLeft        *int   `json:"usage_left,omitempty"`
}

type Lesson struct {
	ID          int64     `json:"id"`
	Phrase      string    `json:"phrase"`
	Translation string    `json:"translation,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

type LessonCreate struct {
	Phrase      string `json:"phrase"`
	Translation string `json:"translation,omitempty"`
}

type SpeakResponse struct {
	Text     string `json:"text"`
	AudioURL string `json:"audio_url"`
}

// HistoryEntry is one row of GET /history/{user}.
type HistoryEntry struct {
	Sender    string `json:"sender"`
	Text      string `json:"text"`
	CreatedAt string `json:"created_at"`
}

type Reminder struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	RemindAt    *time.Time `json:"remind_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

type ReminderCreate struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	RemindAt    *time.Time `json:"remind_at,omitempty"`
}

type Envelope struct {
	Type MessageType `json:"type"`
}

// Notification is the push payload shown to the user.
type Notification struct {
	Type  MessageType `json:"type"`
	Title string      `json:"title"`
	Body  string      `json:"body"`
}

type SystemEvent struct {
	Type   MessageType `json:"type"`
	Code   string      `json:"code"`
	Detail string      `json:"detail,omitempty"`
}

// DefaultNotification is used when a push arrives without a usable payload.
func DefaultNotification() Notification {
	return Notification{Type: TypeNotification, Title: "Reminder", Body: "Time to study!"}
}

// ParsePushMessage decodes a push channel frame. Frames without a type are
// treated as bare {title, body} notifications.
func ParsePushMessage(raw []byte) (any, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return DefaultNotification(), nil
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeNotification, "":
		var msg Notification
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		msg.Type = TypeNotification
		if strings.TrimSpace(msg.Title) == "" && strings.TrimSpace(msg.Body) == "" {
			return DefaultNotification(), nil
		}
		return msg, nil
	case TypeSystemEvent:
		var msg SystemEvent
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.Code == "" {
			return nil, errors.New("invalid system_event")
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}
