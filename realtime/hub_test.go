package realtime

import (
	"testing"
	"time"
)

func TestHubFanOut(t *testing.T) {
	hub := NewHub(4)
	a := hub.Subscribe("u1")
	b := hub.Subscribe("u2")

	hub.Publish(OrderChanged{OrderID: "o1"})

	for _, c := range []*Client{a, b} {
		select {
		case ev := <-c.Events():
			if ev.Kind() != KindOrderChanged {
				t.Fatalf("kind = %s", ev.Kind())
			}
		case <-time.After(time.Second):
			t.Fatalf("client %s got nothing", c.UserID)
		}
	}
}

func TestHubPublishDoesNotBlock(t *testing.T) {
	hub := NewHub(1)
	slow := hub.Subscribe("slow")

	finished := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			hub.Publish(ChallengeChanged{ChallengeID: "c1"})
		}
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
	if hub.Dropped() != 9 {
		t.Fatalf("dropped = %d, want 9", hub.Dropped())
	}
	if len(slow.Events()) != 1 {
		t.Fatalf("buffered = %d, want 1", len(slow.Events()))
	}
}

func TestHubUnsubscribe(t *testing.T) {
	hub := NewHub(2)
	c := hub.Subscribe("u1")
	hub.Unsubscribe(c)
	hub.Unsubscribe(c)

	if hub.Count() != 0 {
		t.Fatalf("count = %d", hub.Count())
	}
	if _, ok := <-c.Events(); ok {
		t.Fatal("channel should be closed")
	}
	hub.Publish(PuzzlesChanged{UserID: "u1"})
}
