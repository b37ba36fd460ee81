package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ent0n29/lingua/internal/protocol"
)

const (
	pushReadTimeout  = 120 * time.Second
	pushPingInterval = 30 * time.Second
	pushWriteTimeout = 10 * time.Second
)

func (s *Server) handlePushWS(w http.ResponseWriter, r *http.Request) {
	user := normalizeUser(r.URL.Query().Get("user"))

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sub := s.hub.Subscribe(user)
	defer func() { _ = s.hub.Unsubscribe(sub.ID) }()
	s.metrics.PushEvents.WithLabelValues("connected").Inc()
	s.metrics.PushConnections.Set(float64(s.hub.Count()))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	hello := protocol.SystemEvent{Type: protocol.TypeSystemEvent, Code: "subscribed", Detail: sub.ID}
	_ = conn.SetWriteDeadline(time.Now().Add(pushWriteTimeout))
	if err := conn.WriteJSON(hello); err != nil {
		return
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ping := time.NewTicker(pushPingInterval)
		defer ping.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ping.C:
				_ = conn.SetWriteDeadline(time.Now().Add(pushWriteTimeout))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					cancel()
					return
				}
			case msg, ok := <-sub.C:
				if !ok {
					// Expired by the janitor.
					_ = conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseGoingAway, "inactive"),
						time.Now().Add(time.Second))
					cancel()
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(pushWriteTimeout))
				if err := conn.WriteJSON(msg); err != nil {
					s.metrics.PushEvents.WithLabelValues("write_error").Inc()
					cancel()
					return
				}
				s.metrics.PushEvents.WithLabelValues("delivered").Inc()
			}
		}
	}()

	conn.SetReadLimit(4 << 10)
	_ = conn.SetReadDeadline(time.Now().Add(pushReadTimeout))
	conn.SetPongHandler(func(string) error {
		_ = s.hub.Touch(sub.ID)
		return conn.SetReadDeadline(time.Now().Add(pushReadTimeout))
	})

	go func() {
		<-ctx.Done()
		// Unblock ReadMessage when the writer gives up.
		_ = conn.SetReadDeadline(time.Now())
	}()

	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			break
		}
		_ = s.hub.Touch(sub.ID)
		_ = conn.SetReadDeadline(time.Now().Add(pushReadTimeout))
	}

	cancel()
	<-writerDone
	_ = s.hub.Unsubscribe(sub.ID)
	s.metrics.PushEvents.WithLabelValues("disconnected").Inc()
	s.metrics.PushConnections.Set(float64(s.hub.Count()))
}
