package agent

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ent0n29/lingua/internal/protocol"
	"github.com/ent0n29/lingua/internal/reliability"
)

// PushURL derives the websocket push endpoint for the client's user.
func (c *Client) PushURL() (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http", "":
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/push/ws"
	q := u.Query()
	q.Set("user", c.user)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Subscriber keeps a push connection open, reconnecting with capped backoff.
// Push frames are independent of chat dispatch, so reconnecting here does not
// retry any user message.
type Subscriber struct {
	client      *Client
	dialer      *websocket.Dialer
	onMessage   func(any)
	onConnected func(bool)
	baseBackoff time.Duration
	maxBackoff  time.Duration
}

func NewSubscriber(client *Client, onMessage func(any), onConnected func(bool)) *Subscriber {
	return &Subscriber{
		client:      client,
		dialer:      &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		onMessage:   onMessage,
		onConnected: onConnected,
		baseBackoff: 500 * time.Millisecond,
		maxBackoff:  30 * time.Second,
	}
}

// Run blocks until ctx is cancelled.
func (s *Subscriber) Run(ctx context.Context) error {
	attempt := 0
	for {
		connected, err := s.runOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			attempt = 0
		}
		wait := reliability.ExponentialBackoff(attempt, s.baseBackoff, s.maxBackoff)
		attempt++
		log.Printf("push: connection lost (%v), reconnecting in %s", err, wait)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (s *Subscriber) runOnce(ctx context.Context) (bool, error) {
	target, err := s.client.PushURL()
	if err != nil {
		return false, err
	}
	conn, _, err := s.dialer.DialContext(ctx, target, nil)
	if err != nil {
		return false, fmt.Errorf("dial push: %w", err)
	}
	defer conn.Close()

	s.setConnected(true)
	defer s.setConnected(false)

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return true, err
		}
		if msgType != websocket.TextMessage {
			continue
		}
		msg, err := protocol.ParsePushMessage(data)
		if err != nil {
			log.Printf("push: dropping frame: %v", err)
			continue
		}
		if s.onMessage != nil {
			s.onMessage(msg)
		}
	}
}

func (s *Subscriber) setConnected(v bool) {
	if s.onConnected != nil {
		s.onConnected(v)
	}
}
