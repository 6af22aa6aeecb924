package services

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"puzzle-bar/models"
	"puzzle-bar/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserService struct {
	DB *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{DB: db}
}

// Balance returns a user's puzzle count.
func (s *UserService) Balance(ctx context.Context, userID string) (int64, error) {
	var user models.User
	if err := s.DB.WithContext(ctx).Select("id", "puzzles").First(&user, "id = ?", userID).Error; err != nil {
		return 0, lookupErr(err, "user", userID)
	}
	return user.Puzzles, nil
}

func (s *UserService) GetMe(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	var user models.User
	err := s.DB.First(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "user not found"})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load user"})
	}
	return c.JSON(user)
}

// SyncProfile upserts the caller's profile as forwarded by the gateway.
// Balance and role are never taken from the request.
func (s *UserService) SyncProfile(c *fiber.Ctx) error {
	var body struct {
		Username  string `json:"username"`
		Email     string `json:"email"`
		FirstName string `json:"firstname"`
		LastName  string `json:"lastname"`
		ImageURL  string `json:"image_url"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	if body.Username == "" || body.Email == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "username and email are required"})
	}

	userID, _ := c.Locals("user_id").(string)
	user := models.User{
		ID:        userID,
		Username:  strings.TrimSpace(body.Username),
		Email:     strings.ToLower(strings.TrimSpace(body.Email)),
		FirstName: body.FirstName,
		LastName:  body.LastName,
		ImageURL:  body.ImageURL,
		Role:      models.RoleUser,
	}

	err := s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "email", "first_name", "last_name", "image_url", "updated_at"}),
	}).Create(&user).Error
	if err != nil {
		utils.LogError("[USER] profile sync for %s failed: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to sync profile"})
	}

	s.DB.First(&user, "id = ?", userID)
	return c.JSON(user)
}

// GetAllUsers lists users for admins, optionally filtered with ?q= on
// username or email.
func (s *UserService) GetAllUsers(c *fiber.Ctx) error {
	limit, err := strconv.Atoi(c.Query("limit", "50"))
	if err != nil || limit <= 0 || limit > 200 {
		limit = 50
	}

	db := s.DB.Model(&models.User{}).Order("username ASC").Limit(limit)
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		term := "%" + strings.ToLower(q) + "%"
		db = db.Where("LOWER(username) LIKE ? OR LOWER(email) LIKE ?", term, term)
	}

	var users []models.User
	if err := db.Find(&users).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "search failed"})
	}
	return c.JSON(users)
}

func (s *UserService) UpdateUserRole(c *fiber.Ctx) error {
	var body struct {
		Role models.Role `json:"role"`
	}
	if err := c.BodyParser(&body); err != nil || !body.Role.Valid() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "role must be user, employee or admin"})
	}

	res := s.DB.Model(&models.User{}).Where("id = ?", c.Params("userId")).Update("role", body.Role)
	if res.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to update role"})
	}
	if res.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "user not found"})
	}

	utils.LogInfo("[USER] %s is now %s", c.Params("userId"), body.Role)
	var user models.User
	s.DB.First(&user, "id = ?", c.Params("userId"))
	return c.JSON(user)
}
