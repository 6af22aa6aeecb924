package services

import (
	"context"
	"time"

	"puzzle-bar/models"
	"puzzle-bar/utils"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettlementService scores participants and pays out puzzles.
type SettlementService struct {
	DB *gorm.DB
}

func NewSettlementService(db *gorm.DB) *SettlementService {
	return &SettlementService{DB: db}
}

// ComputePayout returns floor(score / maxScore * maxPayout) with score clamped
// to [0, maxScore]. Integer arithmetic keeps the floor exact.
func ComputePayout(score, maxScore, maxPayout int64) int64 {
	if maxScore <= 0 || maxPayout <= 0 {
		return 0
	}
	score = clampScore(score, maxScore)
	return score * maxPayout / maxScore
}

func clampScore(score, maxScore int64) int64 {
	if score < 0 {
		return 0
	}
	if score > maxScore {
		return maxScore
	}
	return score
}

// Settlement is the outcome of ConfirmCompletion.
type Settlement struct {
	Participant models.Participant `json:"participant"`
	Balance     int64              `json:"balance"`
	Credited    int64              `json:"credited"`
}

// SetScore records a score and its derived payout in one statement.
func (s *SettlementService) SetScore(ctx context.Context, challengeID, participantID string, score int64) (*models.Participant, error) {
	var updated models.Participant

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var challenge models.Challenge
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&challenge, "id = ?", challengeID).Error; err != nil {
			return lookupErr(err, "challenge", challengeID)
		}

		clamped := clampScore(score, challenge.MaxScore)
		if clamped != score {
			utils.LogWarn("[SETTLEMENT] score %d for participant %s clamped to %d", score, participantID, clamped)
		}
		payout := ComputePayout(clamped, challenge.MaxScore, challenge.MaxPayout)

		res := tx.Model(&models.Participant{}).
			Where("id = ? AND challenge_id = ?", participantID, challengeID).
			Updates(map[string]interface{}{"score": clamped, "payout": payout})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return notFound("participant", participantID)
		}

		if err := touchChallenge(tx, challengeID); err != nil {
			return err
		}
		return tx.First(&updated, "id = ?", participantID).Error
	})
	if err != nil {
		return nil, err
	}

	utils.LogInfo("[SETTLEMENT] participant %s scored %d, payout %d", participantID, updated.Score, updated.Payout)
	return &updated, nil
}

// ConfirmCompletion marks a participant complete and credits their payout.
// The credit is applied only by the call that flips has_completed, so
// repeated or concurrent confirmations pay out at most once.
func (s *SettlementService) ConfirmCompletion(ctx context.Context, challengeID, participantID string) (*Settlement, error) {
	var result Settlement

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var participant models.Participant
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND challenge_id = ?", participantID, challengeID).
			First(&participant).Error; err != nil {
			return lookupErr(err, "participant", participantID)
		}

		var user models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&user, "id = ?", participant.UserID).Error; err != nil {
			return lookupErr(err, "user", participant.UserID)
		}

		flip := tx.Model(&models.Participant{}).
			Where("id = ? AND has_completed = ?", participant.ID, false).
			Update("has_completed", true)
		if flip.Error != nil {
			return flip.Error
		}

		if flip.RowsAffected == 1 && participant.Payout > 0 {
			if err := tx.Model(&models.User{}).
				Where("id = ?", user.ID).
				Update("puzzles", gorm.Expr("puzzles + ?", participant.Payout)).Error; err != nil {
				return err
			}
			result.Credited = participant.Payout
		}

		if flip.RowsAffected == 1 {
			if err := touchChallenge(tx, challengeID); err != nil {
				return err
			}
		}

		if err := tx.First(&result.Participant, "id = ?", participant.ID).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).Where("id = ?", user.ID).Select("puzzles").Scan(&result.Balance).Error
	})
	if err != nil {
		return nil, err
	}

	if result.Credited > 0 {
		utils.LogInfo("[SETTLEMENT] credited %d puzzles to user %s (challenge %s)", result.Credited, result.Participant.UserID, challengeID)
	} else {
		utils.LogDebug("[SETTLEMENT] participant %s already settled or zero payout", participantID)
	}
	return &result, nil
}

// MarkComplete closes a challenge. Participants stay as history.
func (s *SettlementService) MarkComplete(ctx context.Context, challengeID string) (*models.Challenge, error) {
	var challenge models.Challenge
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Challenge{}).Where("id = ?", challengeID).Update("is_active", false)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return notFound("challenge", challengeID)
		}
		return tx.First(&challenge, "id = ?", challengeID).Error
	})
	if err != nil {
		return nil, err
	}
	utils.LogInfo("[SETTLEMENT] challenge %s marked complete", challengeID)
	return &challenge, nil
}

// touchChallenge bumps updated_at so change-feed subscribers of the
// challenge see participant-level updates.
func touchChallenge(tx *gorm.DB, challengeID string) error {
	return tx.Model(&models.Challenge{}).Where("id = ?", challengeID).Update("updated_at", time.Now()).Error
}
