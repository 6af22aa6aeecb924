package workers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"puzzle-bar/services"
)

type fakeExpirer struct {
	mu      sync.Mutex
	cutoffs []time.Time
	n       int
	err     error
}

func (f *fakeExpirer) ExpirePending(_ context.Context, cutoff time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoffs = append(f.cutoffs, cutoff)
	return f.n, f.err
}

func (f *fakeExpirer) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cutoffs)
}

func TestSweepPendingOrders(t *testing.T) {
	exp := &fakeExpirer{n: 3}
	before := time.Now()

	if got := SweepPendingOrders(context.Background(), exp, 30*time.Minute); got != 3 {
		t.Fatalf("expired = %d, want 3", got)
	}
	cutoff := exp.cutoffs[0]
	if cutoff.After(before.Add(-30*time.Minute).Add(time.Second)) || cutoff.Before(before.Add(-31*time.Minute)) {
		t.Fatalf("cutoff %s not ttl before now", cutoff)
	}

	exp.err = errors.New("db down")
	if got := SweepPendingOrders(context.Background(), exp, time.Minute); got != 0 {
		t.Fatalf("expired on error = %d", got)
	}
}

func TestStartOrderSweeperRuns(t *testing.T) {
	exp := &fakeExpirer{}
	sched, err := StartOrderSweeper(context.Background(), exp, time.Minute, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("StartOrderSweeper: %v", err)
	}
	defer sched.Shutdown()

	deadline := time.Now().Add(2 * time.Second)
	for exp.calls() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("sweeper never ran")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

type fakeAuditor struct {
	mu    sync.Mutex
	runs  int
	fixed []*services.InconsistentStateError
}

func (f *fakeAuditor) AuditAll(context.Context) ([]*services.InconsistentStateError, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs++
	return f.fixed, nil
}

func TestAuditRostersStopsOnCancel(t *testing.T) {
	aud := &fakeAuditor{fixed: []*services.InconsistentStateError{{ChallengeID: "c1", Counter: 3, RosterSize: 2}}}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		AuditRosters(ctx, aud, 10*time.Millisecond)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("AuditRosters did not stop")
	}
	aud.mu.Lock()
	defer aud.mu.Unlock()
	if aud.runs == 0 {
		t.Fatal("auditor never ran")
	}
}
