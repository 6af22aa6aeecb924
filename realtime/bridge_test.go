package realtime

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		in   Mutation
		want []ChangeEvent
	}{
		{
			name: "order insert",
			in:   Mutation{Collection: CollectionOrders, Op: OpInsert, ID: "o1"},
			want: []ChangeEvent{OrderChanged{OrderID: "o1", Op: OpInsert}},
		},
		{
			name: "order delete",
			in:   Mutation{Collection: CollectionOrders, Op: OpDelete, ID: "o1"},
			want: []ChangeEvent{OrderChanged{OrderID: "o1", Op: OpDelete}},
		},
		{
			name: "challenge score touch",
			in:   Mutation{Collection: CollectionChallenges, Op: OpUpdate, ID: "c1", Fields: []string{"updated_at"}},
			want: []ChangeEvent{ChallengeChanged{ChallengeID: "c1", Op: OpUpdate}},
		},
		{
			name: "challenge roster change",
			in:   Mutation{Collection: CollectionChallenges, Op: OpUpdate, ID: "c1", Fields: []string{"participants_count", "updated_at"}},
			want: []ChangeEvent{
				ChallengeChanged{ChallengeID: "c1", Op: OpUpdate},
				ChallengeParticipantsChanged{ChallengeID: "c1"},
			},
		},
		{
			name: "balance change",
			in:   Mutation{Collection: CollectionUsers, Op: OpUpdate, ID: "u1", Fields: []string{"puzzles", "updated_at"}},
			want: []ChangeEvent{PuzzlesChanged{UserID: "u1"}},
		},
		{
			name: "profile change without balance",
			in:   Mutation{Collection: CollectionUsers, Op: OpUpdate, ID: "u1", Fields: []string{"first_name"}},
			want: nil,
		},
		{
			name: "unwatched table",
			in:   Mutation{Collection: "items", Op: OpUpdate, ID: "i1"},
			want: nil,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.in)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("Classify() = %#v, want %#v", got, tc.want)
			}
		})
	}
}

type recorder struct {
	mu     sync.Mutex
	events []ChangeEvent
}

func (r *recorder) Publish(ev ChangeEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) snapshot() []ChangeEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ChangeEvent(nil), r.events...)
}

// scriptedSource fails its first attempt, then connects, delivers one
// mutation, drops, reconnects and blocks until cancelled.
type scriptedSource struct {
	mu       sync.Mutex
	attempts int
}

func (s *scriptedSource) Listen(ctx context.Context, onConnect func(), fn func(Mutation)) error {
	s.mu.Lock()
	s.attempts++
	attempt := s.attempts
	s.mu.Unlock()

	switch attempt {
	case 1:
		return errors.New("connection refused")
	case 2:
		onConnect()
		fn(Mutation{Collection: CollectionUsers, Op: OpUpdate, ID: "u1", Fields: []string{"puzzles"}})
		return errors.New("connection reset")
	default:
		onConnect()
		<-ctx.Done()
		return ctx.Err()
	}
}

func TestBridgeReconnects(t *testing.T) {
	rec := &recorder{}
	bridge := NewBridge(&scriptedSource{}, rec)
	bridge.newBackOff = func() backoff.BackOff { return backoff.NewConstantBackOff(time.Millisecond) }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		bridge.Run(ctx)
		close(done)
	}()

	want := []ChangeEvent{
		PuzzlesChanged{UserID: "u1"},
		Resync{},
	}
	deadline := time.After(2 * time.Second)
	for {
		if got := rec.snapshot(); len(got) >= len(want) {
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("published %#v, want %#v", got, want)
			}
			break
		}
		select {
		case <-deadline:
			t.Fatalf("timed out, published %#v", rec.snapshot())
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("bridge did not stop after cancel")
	}
}
