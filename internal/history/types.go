package history

import "time"

type Sender string

const (
	SenderUser  Sender = "user"
	SenderAgent Sender = "agent"
)

// DefaultCapacity bounds the persisted log.
const DefaultCapacity = 100

// DefaultKey is the storage key the log is persisted under.
const DefaultKey = "chatHistory"

// Message is one persisted chat turn. Messages are never edited after Append.
type Message struct {
	Sender     Sender    `json:"sender"`
	Text       string    `json:"text"`
	Correction string    `json:"correction,omitempty"`
	AudioURL   string    `json:"audioUrl,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
