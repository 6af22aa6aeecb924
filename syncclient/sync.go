// Package syncclient keeps a client's view models in step with the server's
// change stream by refetching whatever an event touches.
package syncclient

import (
	"context"
	"fmt"
	"sync"

	"puzzle-bar/models"
	"puzzle-bar/realtime"
	"puzzle-bar/utils"
)

// Fetcher loads the current server state of each tracked view.
type Fetcher interface {
	Orders(ctx context.Context) ([]models.Order, error)
	Challenges(ctx context.Context) (upcoming, past []models.Challenge, err error)
	Roster(ctx context.Context, challengeID string) ([]models.Participant, error)
	Balance(ctx context.Context) (int64, error)
}

// View is a copy of the tracked state at one point in time.
type View struct {
	Orders        []models.Order
	Upcoming      []models.Challenge
	Past          []models.Challenge
	OpenChallenge string
	Roster        []models.Participant
	Balance       int64
}

// Sync reconciles View against the server. Every handler refetches full
// state instead of applying a delta, so events may arrive in any order or
// more than once.
type Sync struct {
	userID  string
	fetcher Fetcher

	mu   sync.Mutex
	view View
}

func NewSync(userID string, fetcher Fetcher) *Sync {
	return &Sync{userID: userID, fetcher: fetcher}
}

// Handle refetches the views affected by ev.
func (s *Sync) Handle(ctx context.Context, ev realtime.ChangeEvent) error {
	switch e := ev.(type) {
	case realtime.OrderChanged:
		return s.refreshOrders(ctx)
	case realtime.ChallengeChanged:
		return s.refreshChallenges(ctx)
	case realtime.ChallengeParticipantsChanged:
		s.mu.Lock()
		open := s.view.OpenChallenge
		s.mu.Unlock()
		if open == "" || open != e.ChallengeID {
			return nil
		}
		return s.refreshRoster(ctx, open)
	case realtime.PuzzlesChanged:
		if e.UserID != s.userID {
			return nil
		}
		return s.refreshBalance(ctx)
	case realtime.Resync:
		return s.RefreshAll(ctx)
	}
	return fmt.Errorf("unhandled change event %T", ev)
}

// RefreshAll refetches every tracked view. Events missed while
// disconnected are not replayed, so this runs on every (re)connect.
func (s *Sync) RefreshAll(ctx context.Context) error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	keep(s.refreshOrders(ctx))
	keep(s.refreshChallenges(ctx))
	keep(s.refreshBalance(ctx))

	s.mu.Lock()
	open := s.view.OpenChallenge
	s.mu.Unlock()
	if open != "" {
		keep(s.refreshRoster(ctx, open))
	}
	return firstErr
}

// OpenChallenge marks the detail panel of challengeID as open and loads its roster.
func (s *Sync) OpenChallenge(ctx context.Context, challengeID string) error {
	s.mu.Lock()
	s.view.OpenChallenge = challengeID
	s.view.Roster = nil
	s.mu.Unlock()
	return s.refreshRoster(ctx, challengeID)
}

func (s *Sync) CloseChallenge() {
	s.mu.Lock()
	s.view.OpenChallenge = ""
	s.view.Roster = nil
	s.mu.Unlock()
}

func (s *Sync) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.view
	v.Orders = append([]models.Order(nil), s.view.Orders...)
	v.Upcoming = append([]models.Challenge(nil), s.view.Upcoming...)
	v.Past = append([]models.Challenge(nil), s.view.Past...)
	v.Roster = append([]models.Participant(nil), s.view.Roster...)
	return v
}

func (s *Sync) refreshOrders(ctx context.Context) error {
	orders, err := s.fetcher.Orders(ctx)
	if err != nil {
		return fmt.Errorf("refresh orders: %w", err)
	}
	s.mu.Lock()
	s.view.Orders = orders
	s.mu.Unlock()
	return nil
}

func (s *Sync) refreshChallenges(ctx context.Context) error {
	upcoming, past, err := s.fetcher.Challenges(ctx)
	if err != nil {
		return fmt.Errorf("refresh challenges: %w", err)
	}
	models.SortByStart(upcoming, true)
	models.SortByStart(past, false)

	s.mu.Lock()
	s.view.Upcoming = upcoming
	s.view.Past = past
	s.mu.Unlock()
	return nil
}

func (s *Sync) refreshRoster(ctx context.Context, challengeID string) error {
	roster, err := s.fetcher.Roster(ctx, challengeID)
	if err != nil {
		return fmt.Errorf("refresh roster %s: %w", challengeID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// the panel may have been switched while the fetch was in flight
	if s.view.OpenChallenge != challengeID {
		utils.LogDebug("[SYNC] dropping stale roster of %s", challengeID)
		return nil
	}
	s.view.Roster = roster
	return nil
}

func (s *Sync) refreshBalance(ctx context.Context) error {
	balance, err := s.fetcher.Balance(ctx)
	if err != nil {
		return fmt.Errorf("refresh balance: %w", err)
	}
	s.mu.Lock()
	s.view.Balance = balance
	s.mu.Unlock()
	return nil
}
