package services

import (
	"context"
	"errors"

	"puzzle-bar/models"
	"puzzle-bar/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RosterFilter string

const (
	RosterAll     RosterFilter = "all"
	RosterCurrent RosterFilter = "current"
	RosterPast    RosterFilter = "past"
)

// ParseRosterFilter defaults to RosterAll for empty or unknown input.
func ParseRosterFilter(s string) RosterFilter {
	switch RosterFilter(s) {
	case RosterCurrent, RosterPast:
		return RosterFilter(s)
	}
	return RosterAll
}

// Roster is a challenge's participants split by completion, each part in
// join order.
type Roster struct {
	ChallengeID string               `json:"challenge_id"`
	Count       int                  `json:"participants_count"`
	Current     []models.Participant `json:"current"`
	Past        []models.Participant `json:"past"`
}

// RosterService owns the participant list of every challenge and keeps
// challenges.participants_count equal to its length.
type RosterService struct {
	DB *gorm.DB
}

func NewRosterService(db *gorm.DB) *RosterService {
	return &RosterService{DB: db}
}

// Join adds userID to the challenge with score and payout at zero.
func (s *RosterService) Join(ctx context.Context, challengeID, userID string) (*models.Participant, error) {
	var participant models.Participant

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var challenge models.Challenge
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&challenge, "id = ?", challengeID).Error; err != nil {
			return lookupErr(err, "challenge", challengeID)
		}

		var userCount int64
		if err := tx.Model(&models.User{}).Where("id = ?", userID).Count(&userCount).Error; err != nil {
			return err
		}
		if userCount == 0 {
			return notFound("user", userID)
		}

		var existing int64
		if err := tx.Model(&models.Participant{}).
			Where("challenge_id = ? AND user_id = ?", challengeID, userID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return &DuplicateParticipantError{ChallengeID: challengeID, UserID: userID}
		}

		var lastPosition int64
		if err := tx.Model(&models.Participant{}).
			Where("challenge_id = ?", challengeID).
			Select("COALESCE(MAX(position), 0)").
			Scan(&lastPosition).Error; err != nil {
			return err
		}

		participant = models.Participant{
			ID:          uuid.NewString(),
			ChallengeID: challengeID,
			UserID:      userID,
			Position:    lastPosition + 1,
		}
		if err := tx.Create(&participant).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return &DuplicateParticipantError{ChallengeID: challengeID, UserID: userID}
			}
			return err
		}

		return tx.Model(&models.Challenge{}).
			Where("id = ?", challengeID).
			Update("participants_count", gorm.Expr("participants_count + 1")).Error
	})
	if err != nil {
		return nil, err
	}

	utils.LogInfo("[ROSTER] user %s joined challenge %s", userID, challengeID)
	return &participant, nil
}

// Leave removes a participant on behalf of the user who owns the entry.
func (s *RosterService) Leave(ctx context.Context, challengeID, participantID, userID string) (*models.Challenge, error) {
	return s.remove(ctx, challengeID, participantID, userID)
}

// Remove is the staff variant of Leave and ignores ownership.
func (s *RosterService) Remove(ctx context.Context, challengeID, participantID string) (*models.Challenge, error) {
	return s.remove(ctx, challengeID, participantID, "")
}

func (s *RosterService) remove(ctx context.Context, challengeID, participantID, ownerID string) (*models.Challenge, error) {
	var challenge models.Challenge

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&challenge, "id = ?", challengeID).Error; err != nil {
			return lookupErr(err, "challenge", challengeID)
		}

		q := tx.Where("id = ? AND challenge_id = ?", participantID, challengeID)
		if ownerID != "" {
			q = q.Where("user_id = ?", ownerID)
		}
		var participant models.Participant
		if err := q.First(&participant).Error; err != nil {
			return lookupErr(err, "participant", participantID)
		}
		if participant.HasCompleted {
			utils.LogWarn("[ROSTER] removing completed participant %s from challenge %s (payout %d already credited)",
				participant.ID, challengeID, participant.Payout)
		}

		res := tx.Where("id = ?", participant.ID).Delete(&models.Participant{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return notFound("participant", participantID)
		}

		if err := tx.Model(&models.Challenge{}).
			Where("id = ?", challengeID).
			Update("participants_count", gorm.Expr("participants_count - 1")).Error; err != nil {
			return err
		}
		return tx.First(&challenge, "id = ?", challengeID).Error
	})
	if err != nil {
		return nil, err
	}

	utils.LogInfo("[ROSTER] participant %s left challenge %s", participantID, challengeID)
	return &challenge, nil
}

// List returns the roster partitioned by completion. If the cached counter
// has drifted from the roster it is corrected and the drift logged.
func (s *RosterService) List(ctx context.Context, challengeID string, filter RosterFilter) (*Roster, error) {
	db := s.DB.WithContext(ctx)

	var challenge models.Challenge
	if err := db.First(&challenge, "id = ?", challengeID).Error; err != nil {
		return nil, lookupErr(err, "challenge", challengeID)
	}

	var participants []models.Participant
	if err := db.Preload("User").
		Where("challenge_id = ?", challengeID).
		Order("position ASC").Order("id ASC").
		Find(&participants).Error; err != nil {
		return nil, err
	}

	if challenge.ParticipantsCount != len(participants) {
		drift, err := s.Reconcile(ctx, challengeID)
		if err != nil {
			utils.LogError("[ROSTER] failed to reconcile challenge %s: %v", challengeID, err)
		} else if drift != nil {
			utils.LogWarn("[ROSTER] %v", drift)
		}
	}

	roster := &Roster{ChallengeID: challengeID, Count: len(participants)}
	for _, p := range participants {
		if p.HasCompleted {
			if filter != RosterCurrent {
				roster.Past = append(roster.Past, p)
			}
			continue
		}
		if filter != RosterPast {
			roster.Current = append(roster.Current, p)
		}
	}
	return roster, nil
}

// Reconcile recomputes participants_count from the roster. It returns a
// non-nil InconsistentStateError describing the drift when a correction
// was made.
func (s *RosterService) Reconcile(ctx context.Context, challengeID string) (*InconsistentStateError, error) {
	var drift *InconsistentStateError

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var challenge models.Challenge
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&challenge, "id = ?", challengeID).Error; err != nil {
			return lookupErr(err, "challenge", challengeID)
		}

		var size int64
		if err := tx.Model(&models.Participant{}).Where("challenge_id = ?", challengeID).Count(&size).Error; err != nil {
			return err
		}
		if int(size) == challenge.ParticipantsCount {
			return nil
		}

		drift = &InconsistentStateError{ChallengeID: challengeID, Counter: challenge.ParticipantsCount, RosterSize: int(size)}
		return tx.Model(&models.Challenge{}).Where("id = ?", challengeID).Update("participants_count", size).Error
	})
	if err != nil {
		return nil, err
	}
	return drift, nil
}

// AuditAll reconciles every challenge whose counter disagrees with its roster
// and returns the corrections made.
func (s *RosterService) AuditAll(ctx context.Context) ([]*InconsistentStateError, error) {
	var drifted []string
	if err := s.DB.WithContext(ctx).Model(&models.Challenge{}).
		Where("participants_count <> (SELECT COUNT(*) FROM challenge_participants cp WHERE cp.challenge_id = challenges.id)").
		Pluck("id", &drifted).Error; err != nil {
		return nil, err
	}

	var fixed []*InconsistentStateError
	for _, id := range drifted {
		drift, err := s.Reconcile(ctx, id)
		if err != nil {
			return fixed, err
		}
		if drift != nil {
			fixed = append(fixed, drift)
		}
	}
	return fixed, nil
}
