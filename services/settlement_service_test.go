package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"puzzle-bar/models"
)

func TestComputePayout(t *testing.T) {
	t.Run("example", func(t *testing.T) {
		if got := ComputePayout(50, 100, 40); got != 20 {
			t.Fatalf("payout = %d, want 20", got)
		}
	})

	t.Run("bounded and monotonic for every score", func(t *testing.T) {
		configs := []struct{ maxScore, maxPayout int64 }{
			{100, 40}, {7, 3}, {3, 100}, {1, 1}, {250, 999},
		}
		for _, cfg := range configs {
			prev := int64(-1)
			for score := int64(0); score <= cfg.maxScore; score++ {
				got := ComputePayout(score, cfg.maxScore, cfg.maxPayout)
				if got < 0 || got > cfg.maxPayout {
					t.Fatalf("payout(%d/%d, %d) = %d out of range", score, cfg.maxScore, cfg.maxPayout, got)
				}
				if got < prev {
					t.Fatalf("payout decreased at score %d", score)
				}
				// floor: got <= exact < got+1
				if got*cfg.maxScore > score*cfg.maxPayout || (got+1)*cfg.maxScore <= score*cfg.maxPayout {
					t.Fatalf("payout(%d/%d, %d) = %d is not the floor", score, cfg.maxScore, cfg.maxPayout, got)
				}
				prev = got
			}
			if ComputePayout(cfg.maxScore, cfg.maxScore, cfg.maxPayout) != cfg.maxPayout {
				t.Fatalf("max score must pay max payout")
			}
		}
	})

	t.Run("clamps out of range scores", func(t *testing.T) {
		if got := ComputePayout(-5, 100, 40); got != 0 {
			t.Errorf("negative score payout = %d", got)
		}
		if got := ComputePayout(150, 100, 40); got != 40 {
			t.Errorf("over max payout = %d", got)
		}
		if got := ComputePayout(10, 0, 40); got != 0 {
			t.Errorf("zero max score payout = %d", got)
		}
	})
}

func TestSetScore(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	roster := NewRosterService(db)
	settlement := NewSettlementService(db)

	user := seedUser(t, db, 0)
	challenge := seedChallenge(t, db, 100, 40, time.Now().Add(24*time.Hour))
	p, err := roster.Join(ctx, challenge.ID, user.ID)
	if err != nil {
		t.Fatalf("join: %v", err)
	}

	updated, err := settlement.SetScore(ctx, challenge.ID, p.ID, 50)
	if err != nil {
		t.Fatalf("SetScore: %v", err)
	}
	if updated.Score != 50 || updated.Payout != 20 {
		t.Fatalf("score/payout = %d/%d, want 50/20", updated.Score, updated.Payout)
	}

	updated, err = settlement.SetScore(ctx, challenge.ID, p.ID, 500)
	if err != nil {
		t.Fatalf("SetScore clamp: %v", err)
	}
	if updated.Score != 100 || updated.Payout != 40 {
		t.Fatalf("clamped score/payout = %d/%d, want 100/40", updated.Score, updated.Payout)
	}

	t.Run("unknown participant", func(t *testing.T) {
		_, err := settlement.SetScore(ctx, challenge.ID, "missing", 10)
		var nf *NotFoundError
		if !errors.As(err, &nf) || nf.Entity != "participant" {
			t.Fatalf("err = %v, want participant NotFoundError", err)
		}
	})

	t.Run("unknown challenge", func(t *testing.T) {
		_, err := settlement.SetScore(ctx, "missing", p.ID, 10)
		var nf *NotFoundError
		if !errors.As(err, &nf) || nf.Entity != "challenge" {
			t.Fatalf("err = %v, want challenge NotFoundError", err)
		}
	})
}

func TestConfirmCompletionCreditsOnce(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	roster := NewRosterService(db)
	settlement := NewSettlementService(db)

	user := seedUser(t, db, 5)
	challenge := seedChallenge(t, db, 100, 40, time.Now())
	p, err := roster.Join(ctx, challenge.ID, user.ID)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := settlement.SetScore(ctx, challenge.ID, p.ID, 50); err != nil {
		t.Fatalf("SetScore: %v", err)
	}

	first, err := settlement.ConfirmCompletion(ctx, challenge.ID, p.ID)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if first.Credited != 20 || first.Balance != 25 || !first.Participant.HasCompleted {
		t.Fatalf("first confirm = %+v", first)
	}

	second, err := settlement.ConfirmCompletion(ctx, challenge.ID, p.ID)
	if err != nil {
		t.Fatalf("second confirm: %v", err)
	}
	if second.Credited != 0 {
		t.Fatalf("second confirm credited %d", second.Credited)
	}
	if got := balanceOf(t, db, user.ID); got != 25 {
		t.Fatalf("balance = %d, want 25", got)
	}
}

func TestConfirmCompletionMissingUser(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	settlement := NewSettlementService(db)
	challenge := seedChallenge(t, db, 10, 10, time.Now())

	orphan := models.Participant{ID: "p-orphan", ChallengeID: challenge.ID, UserID: "ghost", Position: 1, Payout: 5}
	if err := db.Create(&orphan).Error; err != nil {
		t.Fatalf("seed participant: %v", err)
	}

	_, err := settlement.ConfirmCompletion(ctx, challenge.ID, orphan.ID)
	var nf *NotFoundError
	if !errors.As(err, &nf) || nf.Entity != "user" {
		t.Fatalf("err = %v, want user NotFoundError", err)
	}

	var reloaded models.Participant
	db.First(&reloaded, "id = ?", orphan.ID)
	if reloaded.HasCompleted {
		t.Fatal("participant must not be marked complete when the user is missing")
	}
}

func TestMarkComplete(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	settlement := NewSettlementService(db)
	challenge := seedChallenge(t, db, 10, 10, time.Now())

	done, err := settlement.MarkComplete(ctx, challenge.ID)
	if err != nil {
		t.Fatalf("MarkComplete: %v", err)
	}
	if done.IsActive {
		t.Fatal("challenge still active")
	}

	if _, err := settlement.MarkComplete(ctx, "missing"); err == nil {
		t.Fatal("expected NotFoundError")
	}
}
