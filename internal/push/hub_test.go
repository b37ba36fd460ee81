package push

import (
	"context"
	"testing"
	"time"
)

func TestHubPublishReachesOnlyThatUser(t *testing.T) {
	h := NewHub(time.Minute)
	a := h.Subscribe("junior")
	b := h.Subscribe("junior")
	other := h.Subscribe("maria")

	if n := h.Publish("junior", "practice"); n != 2 {
		t.Fatalf("Publish() delivered = %d, want 2", n)
	}
	for _, sub := range []*Subscription{a, b} {
		select {
		case msg := <-sub.C:
			if msg != "practice" {
				t.Fatalf("msg = %v", msg)
			}
		default:
			t.Fatalf("subscriber %s got nothing", sub.ID)
		}
	}
	select {
	case msg := <-other.C:
		t.Fatalf("other user received %v", msg)
	default:
	}
}

func TestHubBroadcastAndUnsubscribe(t *testing.T) {
	h := NewHub(time.Minute)
	a := h.Subscribe("junior")
	h.Subscribe("maria")
	if n := h.Broadcast("hello"); n != 2 {
		t.Fatalf("Broadcast() delivered = %d, want 2", n)
	}

	if err := h.Unsubscribe(a.ID); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}
	if err := h.Unsubscribe(a.ID); err != ErrNotFound {
		t.Fatalf("second Unsubscribe() error = %v, want ErrNotFound", err)
	}
	<-a.C
	if _, ok := <-a.C; ok {
		t.Fatalf("channel should be closed after unsubscribe")
	}
	if h.CountUser("junior") != 0 || h.Count() != 1 {
		t.Fatalf("counts = %d/%d", h.CountUser("junior"), h.Count())
	}
}

func TestHubDropsWhenQueueFull(t *testing.T) {
	h := NewHub(time.Minute)
	var drops int
	h.SetDropHook(func(Subscriber) { drops++ })
	h.Subscribe("junior")
	for i := 0; i < queueSize; i++ {
		h.Publish("junior", i)
	}
	if n := h.Publish("junior", "overflow"); n != 0 {
		t.Fatalf("Publish() on full queue delivered = %d", n)
	}
	if drops != 1 {
		t.Fatalf("drops = %d, want 1", drops)
	}
}

func TestHubJanitorExpiresInactive(t *testing.T) {
	h := NewHub(30 * time.Millisecond)
	expired := make(chan string, 1)
	h.SetExpireHook(func(s Subscriber) { expired <- s.ID })
	sub := h.Subscribe("junior")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.StartJanitor(ctx, 10*time.Millisecond)

	select {
	case id := <-expired:
		if id != sub.ID {
			t.Fatalf("expired %s, want %s", id, sub.ID)
		}
	case <-time.After(time.Second):
		t.Fatalf("subscriber was not expired")
	}
	if _, ok := <-sub.C; ok {
		t.Fatalf("channel should be closed after expiry")
	}
}
