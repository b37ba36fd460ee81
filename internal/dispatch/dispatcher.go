// Package dispatch sends chat turns and voice clips to the tutor agent.
package dispatch

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/ent0n29/lingua/internal/agent"
	"github.com/ent0n29/lingua/internal/history"
	"github.com/ent0n29/lingua/internal/protocol"
	"github.com/ent0n29/lingua/internal/quota"
	"github.com/ent0n29/lingua/internal/reliability"
	"github.com/ent0n29/lingua/internal/status"
)

// VoiceMessageText stands in for a transcript the agent did not return.
const VoiceMessageText = "[voice message]"

// Agent is the remote side of a dispatch.
type Agent interface {
	SendMessage(ctx context.Context, text string) (protocol.SendMessageResponse, error)
	UploadAudio(ctx context.Context, clip agent.Audio) (protocol.UploadResponse, error)
}

type Reply struct {
	Text       string
	Correction string
	AudioURL   string
}

type UploadResult struct {
	AudioURL         string
	AudioResponseURL string
	Transcript       string
	UsageLeft        *int
	Reply            Reply
	// ReplyErr is set when the upload landed but the follow-up reply failed.
	// The failure is already recorded as a placeholder in the store.
	ReplyErr error
}

// Dispatcher sends user turns to the agent and keeps the local store and the
// status surface in step with each exchange. It never retries.
type Dispatcher struct {
	agent Agent
	store *history.Store
	quota *quota.Tracker
	sink  status.Sink

	mu     sync.Mutex
	online *bool

	// typingMu orders indicator transitions across overlapping calls.
	typingMu sync.Mutex
	inflight int
}

func New(a Agent, store *history.Store, tracker *quota.Tracker, sink status.Sink) *Dispatcher {
	if sink == nil {
		sink = status.Discard
	}
	return &Dispatcher{agent: a, store: store, quota: tracker, sink: sink}
}

// SendText echoes text into the store, asks the agent, and appends exactly one
// reply or one error placeholder. Blank input is ignored.
func (d *Dispatcher) SendText(ctx context.Context, text string) (Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Reply{}, nil
	}
	d.append(history.Message{Sender: history.SenderUser, Text: text})
	return d.exchange(ctx, text, "")
}

// SendAudio uploads a clip. On upload failure nothing is appended and the
// error is returned for the caller to report. On success the quota is
// reconciled, the clip is appended as the user's turn, and a completion
// message is exchanged for the agent's reply.
func (d *Dispatcher) SendAudio(ctx context.Context, clip agent.Audio) (UploadResult, error) {
	res, err := d.call(func() (any, error) { return d.agent.UploadAudio(ctx, clip) }, "audio_upload")
	if err != nil {
		d.track(err)
		return UploadResult{}, err
	}
	d.track(nil)
	up := res.(protocol.UploadResponse)

	if d.quota != nil {
		if up.UsageLeft != nil {
			d.quota.Reconcile(up.UsageLeft)
		} else {
			d.quota.NoteSent()
		}
	}

	transcript := strings.TrimSpace(up.Transcript)
	userText := transcript
	if userText == "" {
		userText = VoiceMessageText
	}
	d.append(history.Message{Sender: history.SenderUser, Text: userText, AudioURL: up.AudioURL})

	out := UploadResult{
		AudioURL:         up.AudioURL,
		AudioResponseURL: up.AudioResponseURL,
		Transcript:       transcript,
		UsageLeft:        up.UsageLeft,
	}
	out.Reply, out.ReplyErr = d.exchange(ctx, userText, up.AudioResponseURL)
	return out, nil
}

func (d *Dispatcher) exchange(ctx context.Context, text, audioOverride string) (Reply, error) {
	res, err := d.call(func() (any, error) { return d.agent.SendMessage(ctx, text) }, "send_message")
	d.track(err)
	if err != nil {
		d.append(history.Message{Sender: history.SenderAgent, Text: "(error) " + err.Error()})
		status.Emit(d.sink, status.Event{Kind: status.KindDispatchError, Level: status.LevelError, Text: Describe(err)})
		return Reply{}, err
	}

	msg := res.(protocol.SendMessageResponse)
	reply := Reply{Text: msg.Response, Correction: msg.Correction, AudioURL: msg.AudioURL}
	if audioOverride != "" {
		reply.AudioURL = audioOverride
	}
	d.append(history.Message{
		Sender:     history.SenderAgent,
		Text:       reply.Text,
		Correction: reply.Correction,
		AudioURL:   reply.AudioURL,
	})
	return reply, nil
}

// call runs one network exchange with the composing indicator raised. The
// indicator stays up while any call is in flight and is lowered when the last
// one exits. A panicking agent is reported as a transport failure instead of
// escaping.
func (d *Dispatcher) call(fn func() (any, error), op string) (out any, err error) {
	d.beginTyping()
	defer d.endTyping()
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = &agent.DispatchError{Op: op, Kind: agent.KindTransport, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	out, err = fn()
	if err != nil {
		if _, ok := agent.AsDispatchError(err); !ok {
			err = &agent.DispatchError{Op: op, Kind: agent.KindTransport, Err: err}
		}
	}
	return out, err
}

func (d *Dispatcher) beginTyping() {
	d.typingMu.Lock()
	defer d.typingMu.Unlock()
	d.inflight++
	if d.inflight == 1 {
		status.Emit(d.sink, status.Event{Kind: status.KindTyping, Active: true})
	}
}

func (d *Dispatcher) endTyping() {
	d.typingMu.Lock()
	defer d.typingMu.Unlock()
	d.inflight--
	if d.inflight == 0 {
		status.Emit(d.sink, status.Event{Kind: status.KindTyping, Active: false})
	}
}

func (d *Dispatcher) append(msg history.Message) {
	if d.store != nil {
		stored, err := d.store.Append(msg)
		if err != nil {
			log.Printf("dispatch: %v", err)
			status.Emit(d.sink, status.Event{Kind: status.KindInfo, Level: status.LevelWarn, Text: "History could not be saved on this device."})
		}
		msg = stored
	}
	status.Emit(d.sink, status.Event{Kind: status.KindMessage, Message: &msg})
}

// track emits online/offline only when reachability changes.
func (d *Dispatcher) track(err error) {
	online := !agent.IsTransport(err)
	d.mu.Lock()
	changed := d.online == nil || *d.online != online
	d.online = &online
	d.mu.Unlock()
	if !changed {
		return
	}
	if online {
		status.Emit(d.sink, status.Event{Kind: status.KindOnline, Text: "Connected to the tutor."})
		return
	}
	status.Emit(d.sink, status.Event{Kind: status.KindOffline, Level: status.LevelWarn, Text: "Offline: showing saved history."})
}

// Describe renders a dispatch failure for a status banner.
func Describe(err error) string {
	de, ok := agent.AsDispatchError(err)
	if !ok {
		return "Message failed: " + err.Error()
	}
	if de.Kind == agent.KindTransport {
		return "Could not reach the tutor. Check your connection and send again."
	}
	if reliability.IsRetryableHTTPStatus(de.StatusCode) {
		return fmt.Sprintf("The tutor is having trouble (HTTP %d). Send again in a moment.", de.StatusCode)
	}
	return fmt.Sprintf("The tutor rejected the message (HTTP %d).", de.StatusCode)
}
