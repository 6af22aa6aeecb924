package syncclient

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"puzzle-bar/models"
	"puzzle-bar/realtime"
)

type fakeFetcher struct {
	mu         sync.Mutex
	orders     int
	challenges int
	balance    int
	rosters    map[string]int
	puzzles    int64
	upcoming   []models.Challenge
	past       []models.Challenge
	ordersErr  error
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{rosters: map[string]int{}}
}

func (f *fakeFetcher) Orders(context.Context) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders++
	if f.ordersErr != nil {
		return nil, f.ordersErr
	}
	return []models.Order{{ID: "o1", Status: models.OrderStatusOrdered}}, nil
}

func (f *fakeFetcher) Challenges(context.Context) ([]models.Challenge, []models.Challenge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.challenges++
	up := append([]models.Challenge(nil), f.upcoming...)
	past := append([]models.Challenge(nil), f.past...)
	return up, past, nil
}

func (f *fakeFetcher) Roster(_ context.Context, challengeID string) ([]models.Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rosters[challengeID]++
	return []models.Participant{{ID: "p1", ChallengeID: challengeID}}, nil
}

func (f *fakeFetcher) Balance(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balance++
	return f.puzzles, nil
}

func (f *fakeFetcher) counts() (orders, challenges, balance int, rosters map[string]int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make(map[string]int, len(f.rosters))
	for k, v := range f.rosters {
		cp[k] = v
	}
	return f.orders, f.challenges, f.balance, cp
}

func TestParticipantsChangedOnlyRefetchesOpenPanel(t *testing.T) {
	ctx := context.Background()
	f := newFakeFetcher()
	s := NewSync("u1", f)

	if err := s.OpenChallenge(ctx, "Y"); err != nil {
		t.Fatalf("open: %v", err)
	}

	t.Run("other challenge", func(t *testing.T) {
		if err := s.Handle(ctx, realtime.ChallengeParticipantsChanged{ChallengeID: "X"}); err != nil {
			t.Fatalf("handle: %v", err)
		}
		if _, _, _, r := f.counts(); r["X"] != 0 || r["Y"] != 1 {
			t.Fatalf("rosters = %v", r)
		}
	})

	t.Run("open challenge", func(t *testing.T) {
		if err := s.Handle(ctx, realtime.ChallengeParticipantsChanged{ChallengeID: "Y"}); err != nil {
			t.Fatalf("handle: %v", err)
		}
		if _, _, _, r := f.counts(); r["Y"] != 2 {
			t.Fatalf("rosters = %v", r)
		}
		if got := s.Snapshot().Roster; len(got) != 1 || got[0].ChallengeID != "Y" {
			t.Fatalf("roster = %+v", got)
		}
	})

	t.Run("closed panel", func(t *testing.T) {
		s.CloseChallenge()
		if err := s.Handle(ctx, realtime.ChallengeParticipantsChanged{ChallengeID: "Y"}); err != nil {
			t.Fatalf("handle: %v", err)
		}
		if _, _, _, r := f.counts(); r["Y"] != 2 {
			t.Fatalf("rosters = %v", r)
		}
	})
}

func TestPuzzlesChangedOnlyForCurrentUser(t *testing.T) {
	ctx := context.Background()
	f := newFakeFetcher()
	f.puzzles = 12
	s := NewSync("u1", f)

	s.Handle(ctx, realtime.PuzzlesChanged{UserID: "u2"})
	if _, _, b, _ := f.counts(); b != 0 {
		t.Fatalf("balance fetched %d times for another user", b)
	}

	s.Handle(ctx, realtime.PuzzlesChanged{UserID: "u1"})
	if _, _, b, _ := f.counts(); b != 1 {
		t.Fatalf("balance fetched %d times, want 1", b)
	}
	if got := s.Snapshot().Balance; got != 12 {
		t.Fatalf("balance = %d, want 12", got)
	}
}

func TestChallengeChangedSortsPartitions(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2026, 3, d, 0, 0, 0, 0, time.UTC) }
	f := newFakeFetcher()
	f.upcoming = []models.Challenge{
		{ID: "late", Date: day(20), Time: "21:00"},
		{ID: "early", Date: day(20), Time: "19:00"},
		{ID: "first", Date: day(18), Time: "22:00"},
	}
	f.past = []models.Challenge{
		{ID: "oldest", Date: day(1), Time: "20:00"},
		{ID: "newest", Date: day(10), Time: "20:00"},
	}
	s := NewSync("u1", f)

	if err := s.Handle(context.Background(), realtime.ChallengeChanged{ChallengeID: "early"}); err != nil {
		t.Fatalf("handle: %v", err)
	}

	v := s.Snapshot()
	wantUp := []string{"first", "early", "late"}
	for i, id := range wantUp {
		if v.Upcoming[i].ID != id {
			t.Fatalf("upcoming[%d] = %s, want %s", i, v.Upcoming[i].ID, id)
		}
	}
	if v.Past[0].ID != "newest" || v.Past[1].ID != "oldest" {
		t.Fatalf("past = %s, %s", v.Past[0].ID, v.Past[1].ID)
	}
}

func TestHandleIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFakeFetcher()
	s := NewSync("u1", f)

	for i := 0; i < 3; i++ {
		if err := s.Handle(ctx, realtime.OrderChanged{OrderID: "o1"}); err != nil {
			t.Fatalf("handle: %v", err)
		}
	}
	if got := s.Snapshot().Orders; len(got) != 1 || got[0].ID != "o1" {
		t.Fatalf("orders = %+v", got)
	}
}

func TestRefreshAll(t *testing.T) {
	ctx := context.Background()
	f := newFakeFetcher()
	f.ordersErr = errors.New("gateway down")
	s := NewSync("u1", f)
	s.OpenChallenge(ctx, "Y")

	if err := s.RefreshAll(ctx); err == nil {
		t.Fatal("expected the orders error to surface")
	}

	orders, challenges, balance, rosters := f.counts()
	if orders != 1 || challenges != 1 || balance != 1 || rosters["Y"] != 2 {
		t.Fatalf("counts = %d %d %d %v, want every view refetched", orders, challenges, balance, rosters)
	}
}

func TestResyncRefetchesEveryView(t *testing.T) {
	ctx := context.Background()
	f := newFakeFetcher()
	f.puzzles = 5
	s := NewSync("u1", f)
	if err := s.OpenChallenge(ctx, "c1"); err != nil {
		t.Fatalf("open: %v", err)
	}

	if err := s.Handle(ctx, realtime.Resync{}); err != nil {
		t.Fatalf("handle: %v", err)
	}

	orders, challenges, balance, rosters := f.counts()
	if orders != 1 || challenges != 1 || balance != 1 || rosters["c1"] != 2 {
		t.Fatalf("counts = %d %d %d %v, want every view refetched", orders, challenges, balance, rosters)
	}
	if got := s.Snapshot().Balance; got != 5 {
		t.Fatalf("balance = %d, want 5", got)
	}
}
