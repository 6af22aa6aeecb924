package syncclient

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSessionRefreshesOnConnectAndHandlesEvents(t *testing.T) {
	release := make(chan struct{})
	tokens := make(chan string, 4)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokens <- r.URL.Query().Get("token")
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, ":\n\n")
		fmt.Fprint(w, "event: puzzlesChanged\ndata: {\"user_id\":\"u1\"}\n\n")
		w.(http.Flusher).Flush()

		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	f := newFakeFetcher()
	f.puzzles = 3
	sess, err := NewSession(srv.URL+"/stream", "tok", NewSync("u1", f))
	if err != nil {
		t.Fatalf("new session: %v", err)
	}

	if err := sess.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := sess.Connect(context.Background()); err != ErrAlreadyConnected {
		t.Fatalf("second connect = %v, want ErrAlreadyConnected", err)
	}

	select {
	case tok := <-tokens:
		if tok != "tok" {
			t.Fatalf("token = %q", tok)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("stream never requested")
	}

	// one balance fetch from the connect refresh, one from the event
	deadline := time.Now().Add(5 * time.Second)
	for {
		orders, challenges, balance, _ := f.counts()
		if orders >= 1 && challenges >= 1 && balance >= 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("counts = %d %d %d", orders, challenges, balance)
		}
		time.Sleep(10 * time.Millisecond)
	}

	sess.Close()
	sess.Close()
}
