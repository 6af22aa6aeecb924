package services

import (
	"errors"
	"strconv"
	"strings"

	"puzzle-bar/models"
	"puzzle-bar/storage"
	"puzzle-bar/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type GameService struct {
	DB     *gorm.DB
	Images storage.ImageStore
}

func NewGameService(db *gorm.DB, images storage.ImageStore) *GameService {
	return &GameService{DB: db, Images: images}
}

// CreateGame adds a game from a multipart form with an optional image.
func (s *GameService) CreateGame(c *fiber.Ctx) error {
	name := strings.TrimSpace(c.FormValue("name"))
	if name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "name is required"})
	}
	required, err := strconv.Atoi(c.FormValue("participants_required", "1"))
	if err != nil || required < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "participants_required must be a positive number"})
	}

	game := models.Game{
		ID:                   uuid.NewString(),
		Name:                 name,
		Description:          c.FormValue("description"),
		ParticipantsRequired: required,
	}

	if fh, err := c.FormFile("image"); err == nil && fh.Size > 0 {
		img, err := s.Images.Upload(c.UserContext(), fh, storage.ObjectKey("games", name, fh.Filename))
		if err != nil {
			utils.LogError("[GAME] image upload failed: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to upload image"})
		}
		game.ImageURL, game.ImageKey = img.URL, img.Key
	}

	if err := s.DB.Create(&game).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create game"})
	}
	return c.Status(fiber.StatusCreated).JSON(game)
}

func (s *GameService) GetAllGames(c *fiber.Ctx) error {
	var games []models.Game
	if err := s.DB.Order("name ASC").Find(&games).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load games"})
	}
	return c.JSON(games)
}

func (s *GameService) GetGameByID(c *fiber.Ctx) error {
	var game models.Game
	err := s.DB.First(&game, "id = ?", c.Params("id")).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "game not found"})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load game"})
	}
	return c.JSON(game)
}

func (s *GameService) UpdateGame(c *fiber.Ctx) error {
	var game models.Game
	if err := s.DB.First(&game, "id = ?", c.Params("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "game not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load game"})
	}

	updates := map[string]interface{}{}
	if v := strings.TrimSpace(c.FormValue("name")); v != "" {
		updates["name"] = v
		game.Name = v
	}
	if v := c.FormValue("description"); v != "" {
		updates["description"] = v
	}
	if v := c.FormValue("participants_required"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "participants_required must be a positive number"})
		}
		updates["participants_required"] = n
	}

	oldKey := ""
	if fh, err := c.FormFile("image"); err == nil && fh.Size > 0 {
		img, err := s.Images.Upload(c.UserContext(), fh, storage.ObjectKey("games", game.Name, fh.Filename))
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to upload image"})
		}
		updates["image_url"], updates["image_key"] = img.URL, img.Key
		oldKey = game.ImageKey
	}

	if len(updates) > 0 {
		if err := s.DB.Model(&models.Game{}).Where("id = ?", game.ID).Updates(updates).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to update game"})
		}
	}
	if oldKey != "" {
		if err := s.Images.Delete(c.UserContext(), oldKey); err != nil {
			utils.LogWarn("[GAME] could not delete image %s: %v", oldKey, err)
		}
	}

	s.DB.First(&game, "id = ?", game.ID)
	return c.JSON(game)
}

// DeleteGame refuses to delete a game that still has challenges.
func (s *GameService) DeleteGame(c *fiber.Ctx) error {
	id := c.Params("id")

	var inUse int64
	s.DB.Model(&models.Challenge{}).Where("game_id = ?", id).Count(&inUse)
	if inUse > 0 {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "game is used by challenges"})
	}

	var game models.Game
	if err := s.DB.First(&game, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "game not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load game"})
	}
	if err := s.DB.Delete(&game).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to delete game"})
	}
	if game.ImageKey != "" {
		if err := s.Images.Delete(c.UserContext(), game.ImageKey); err != nil {
			utils.LogWarn("[GAME] could not delete image %s: %v", game.ImageKey, err)
		}
	}
	return c.JSON(fiber.Map{"message": "game deleted"})
}
