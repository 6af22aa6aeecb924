package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"puzzle-bar/models"
	"puzzle-bar/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const dateLayout = "2006-01-02"

type ChallengeService struct {
	DB *gorm.DB
}

func NewChallengeService(db *gorm.DB) *ChallengeService {
	return &ChallengeService{DB: db}
}

type challengeInput struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Date        *string `json:"date"` // YYYY-MM-DD
	Time        *string `json:"time"` // HH:MM
	MaxPayout   *int64  `json:"max_payout"`
	MaxScore    *int64  `json:"max_score"`
	GameID      *string `json:"game_id"`
}

// apply copies the set fields onto c.
func (in challengeInput) apply(c *models.Challenge) error {
	if in.Name != nil {
		c.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		c.Description = *in.Description
	}
	if in.Date != nil {
		d, err := time.Parse(dateLayout, *in.Date)
		if err != nil {
			return errors.New("date must be YYYY-MM-DD")
		}
		c.Date = d
	}
	if in.Time != nil {
		if _, err := time.Parse(models.ClockLayout, *in.Time); err != nil {
			return errors.New("time must be HH:MM")
		}
		c.Time = *in.Time
	}
	if in.MaxPayout != nil {
		c.MaxPayout = *in.MaxPayout
	}
	if in.MaxScore != nil {
		c.MaxScore = *in.MaxScore
	}
	if in.GameID != nil {
		c.GameID = *in.GameID
	}

	switch {
	case c.Name == "":
		return errors.New("name is required")
	case c.GameID == "":
		return errors.New("game_id is required")
	case c.MaxScore <= 0:
		return errors.New("max_score must be positive")
	case c.MaxPayout < 0:
		return errors.New("max_payout must not be negative")
	case c.Date.IsZero() || c.Time == "":
		return errors.New("date and time are required")
	}
	return nil
}

func (s *ChallengeService) CreateChallenge(c *fiber.Ctx) error {
	var in challengeInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}

	challenge := models.Challenge{ID: uuid.NewString(), IsActive: true}
	if err := in.apply(&challenge); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var games int64
	s.DB.Model(&models.Game{}).Where("id = ?", challenge.GameID).Count(&games)
	if games == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "game not found"})
	}

	if err := s.DB.Create(&challenge).Error; err != nil {
		utils.LogError("[CHALLENGE] create failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create challenge"})
	}
	return c.Status(fiber.StatusCreated).JSON(challenge)
}

func (s *ChallengeService) GetChallenge(c *fiber.Ctx) error {
	var challenge models.Challenge
	err := s.DB.Preload("Game").
		Preload("Participants", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Participants.User").
		First(&challenge, "id = ?", c.Params("id")).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "challenge not found"})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load challenge"})
	}
	return c.JSON(challenge)
}

// Upcoming returns active challenges, soonest first.
func (s *ChallengeService) Upcoming(ctx context.Context) ([]models.Challenge, error) {
	return s.listByActive(ctx, true)
}

// Past returns completed challenges, most recent first.
func (s *ChallengeService) Past(ctx context.Context) ([]models.Challenge, error) {
	return s.listByActive(ctx, false)
}

func (s *ChallengeService) listByActive(ctx context.Context, active bool) ([]models.Challenge, error) {
	var challenges []models.Challenge
	if err := s.DB.WithContext(ctx).Preload("Game").
		Where("is_active = ?", active).
		Find(&challenges).Error; err != nil {
		return nil, err
	}
	models.SortByStart(challenges, active)
	return challenges, nil
}

func (s *ChallengeService) GetUpcoming(c *fiber.Ctx) error {
	challenges, err := s.Upcoming(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load challenges"})
	}
	return c.JSON(challenges)
}

func (s *ChallengeService) GetPast(c *fiber.Ctx) error {
	challenges, err := s.Past(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load challenges"})
	}
	return c.JSON(challenges)
}

// NextActive is the active challenge with the earliest start.
func (s *ChallengeService) NextActive(ctx context.Context) (*models.Challenge, error) {
	upcoming, err := s.Upcoming(ctx)
	if err != nil {
		return nil, err
	}
	if len(upcoming) == 0 {
		return nil, notFound("challenge", "next")
	}
	return &upcoming[0], nil
}

func (s *ChallengeService) GetNext(c *fiber.Ctx) error {
	next, err := s.NextActive(c.UserContext())
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no upcoming challenge"})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load challenge"})
	}
	return c.JSON(next)
}

// UpdateChallenge edits a challenge. When the score or payout limits change,
// payouts of participants not yet confirmed are recomputed in the same
// transaction.
func (s *ChallengeService) UpdateChallenge(c *fiber.Ctx) error {
	var in challengeInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}

	var challenge models.Challenge
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&challenge, "id = ?", c.Params("id")).Error; err != nil {
			return lookupErr(err, "challenge", c.Params("id"))
		}
		oldScore, oldPayout := challenge.MaxScore, challenge.MaxPayout
		if err := in.apply(&challenge); err != nil {
			return &fiber.Error{Code: fiber.StatusBadRequest, Message: err.Error()}
		}

		if err := tx.Model(&models.Challenge{}).Where("id = ?", challenge.ID).Updates(map[string]interface{}{
			"name":        challenge.Name,
			"description": challenge.Description,
			"date":        challenge.Date,
			"time":        challenge.Time,
			"max_payout":  challenge.MaxPayout,
			"max_score":   challenge.MaxScore,
			"game_id":     challenge.GameID,
		}).Error; err != nil {
			return err
		}

		if oldScore == challenge.MaxScore && oldPayout == challenge.MaxPayout {
			return nil
		}
		var open []models.Participant
		if err := tx.Where("challenge_id = ? AND has_completed = ?", challenge.ID, false).Find(&open).Error; err != nil {
			return err
		}
		for _, p := range open {
			score := clampScore(p.Score, challenge.MaxScore)
			if err := tx.Model(&models.Participant{}).Where("id = ?", p.ID).Updates(map[string]interface{}{
				"score":  score,
				"payout": ComputePayout(score, challenge.MaxScore, challenge.MaxPayout),
			}).Error; err != nil {
				return err
			}
		}
		return nil
	})

	var nf *NotFoundError
	var fe *fiber.Error
	switch {
	case errors.As(err, &nf):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": nf.Error()})
	case errors.As(err, &fe):
		return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
	case err != nil:
		utils.LogError("[CHALLENGE] update %s failed: %v", c.Params("id"), err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to update challenge"})
	}
	return c.JSON(challenge)
}

// DeleteChallenge removes a challenge and its roster.
func (s *ChallengeService) DeleteChallenge(c *fiber.Ctx) error {
	id := c.Params("id")
	var deleted int64
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("challenge_id = ?", id).Delete(&models.Participant{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&models.Challenge{})
		deleted = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to delete challenge"})
	}
	if deleted == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "challenge not found"})
	}
	return c.JSON(fiber.Map{"message": "challenge deleted"})
}
