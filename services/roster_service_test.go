package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"puzzle-bar/models"
)

func counterOf(t *testing.T, ctx context.Context, svc *RosterService, challengeID string) (int, int) {
	t.Helper()
	var c models.Challenge
	if err := svc.DB.First(&c, "id = ?", challengeID).Error; err != nil {
		t.Fatalf("load challenge: %v", err)
	}
	var n int64
	svc.DB.Model(&models.Participant{}).Where("challenge_id = ?", challengeID).Count(&n)
	return c.ParticipantsCount, int(n)
}

func TestRosterCounterFollowsMutations(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewRosterService(db)
	challenge := seedChallenge(t, db, 100, 40, time.Now().Add(time.Hour))

	var participants []*models.Participant
	for i := 0; i < 4; i++ {
		u := seedUser(t, db, 0)
		p, err := svc.Join(ctx, challenge.ID, u.ID)
		if err != nil {
			t.Fatalf("join %d: %v", i, err)
		}
		participants = append(participants, p)
		if counter, size := counterOf(t, ctx, svc, challenge.ID); counter != size || size != i+1 {
			t.Fatalf("after join %d: counter=%d size=%d", i, counter, size)
		}
	}

	if _, err := svc.Remove(ctx, challenge.ID, participants[1].ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := svc.Leave(ctx, challenge.ID, participants[3].ID, participants[3].UserID); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if counter, size := counterOf(t, ctx, svc, challenge.ID); counter != 2 || size != 2 {
		t.Fatalf("after removals: counter=%d size=%d", counter, size)
	}

	t.Run("remove unknown participant leaves counter", func(t *testing.T) {
		_, err := svc.Remove(ctx, challenge.ID, participants[1].ID)
		var nf *NotFoundError
		if !errors.As(err, &nf) {
			t.Fatalf("err = %v, want NotFoundError", err)
		}
		if counter, _ := counterOf(t, ctx, svc, challenge.ID); counter != 2 {
			t.Fatalf("counter = %d", counter)
		}
	})

	t.Run("leave requires ownership", func(t *testing.T) {
		_, err := svc.Leave(ctx, challenge.ID, participants[0].ID, participants[2].UserID)
		var nf *NotFoundError
		if !errors.As(err, &nf) {
			t.Fatalf("err = %v, want NotFoundError", err)
		}
	})
}

func TestRosterDuplicateJoin(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewRosterService(db)
	challenge := seedChallenge(t, db, 100, 40, time.Now())
	user := seedUser(t, db, 0)

	if _, err := svc.Join(ctx, challenge.ID, user.ID); err != nil {
		t.Fatalf("join: %v", err)
	}
	_, err := svc.Join(ctx, challenge.ID, user.ID)
	var dup *DuplicateParticipantError
	if !errors.As(err, &dup) {
		t.Fatalf("err = %v, want DuplicateParticipantError", err)
	}
	if counter, size := counterOf(t, ctx, svc, challenge.ID); counter != 1 || size != 1 {
		t.Fatalf("counter=%d size=%d", counter, size)
	}
}

func TestRosterJoinUnknown(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewRosterService(db)
	challenge := seedChallenge(t, db, 100, 40, time.Now())
	user := seedUser(t, db, 0)

	var nf *NotFoundError
	if _, err := svc.Join(ctx, "missing", user.ID); !errors.As(err, &nf) || nf.Entity != "challenge" {
		t.Fatalf("err = %v", err)
	}
	if _, err := svc.Join(ctx, challenge.ID, "missing"); !errors.As(err, &nf) || nf.Entity != "user" {
		t.Fatalf("err = %v", err)
	}
}

func TestRosterListPartitions(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewRosterService(db)
	settlement := NewSettlementService(db)
	challenge := seedChallenge(t, db, 10, 10, time.Now())

	var ids []string
	for i := 0; i < 3; i++ {
		u := seedUser(t, db, 0)
		p, err := svc.Join(ctx, challenge.ID, u.ID)
		if err != nil {
			t.Fatalf("join: %v", err)
		}
		ids = append(ids, p.ID)
	}
	if _, err := settlement.ConfirmCompletion(ctx, challenge.ID, ids[1]); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	all, err := svc.List(ctx, challenge.ID, RosterAll)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all.Current) != 2 || all.Current[0].ID != ids[0] || all.Current[1].ID != ids[2] {
		t.Fatalf("current = %+v", all.Current)
	}
	if len(all.Past) != 1 || all.Past[0].ID != ids[1] {
		t.Fatalf("past = %+v", all.Past)
	}
	if all.Current[0].User == nil {
		t.Fatal("participant user not loaded")
	}

	current, _ := svc.List(ctx, challenge.ID, ParseRosterFilter("current"))
	if len(current.Current) != 2 || len(current.Past) != 0 {
		t.Fatalf("current filter = %+v", current)
	}
	past, _ := svc.List(ctx, challenge.ID, ParseRosterFilter("past"))
	if len(past.Current) != 0 || len(past.Past) != 1 {
		t.Fatalf("past filter = %+v", past)
	}
}

func TestRosterReconcile(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewRosterService(db)
	challenge := seedChallenge(t, db, 10, 10, time.Now())
	u := seedUser(t, db, 0)
	if _, err := svc.Join(ctx, challenge.ID, u.ID); err != nil {
		t.Fatalf("join: %v", err)
	}

	db.Model(&models.Challenge{}).Where("id = ?", challenge.ID).Update("participants_count", 7)

	fixed, err := svc.AuditAll(ctx)
	if err != nil {
		t.Fatalf("AuditAll: %v", err)
	}
	if len(fixed) != 1 || fixed[0].Counter != 7 || fixed[0].RosterSize != 1 {
		t.Fatalf("fixed = %+v", fixed)
	}
	if counter, size := counterOf(t, ctx, svc, challenge.ID); counter != size {
		t.Fatalf("counter=%d size=%d", counter, size)
	}

	again, err := svc.AuditAll(ctx)
	if err != nil || len(again) != 0 {
		t.Fatalf("second audit = %v, %v", again, err)
	}
}
