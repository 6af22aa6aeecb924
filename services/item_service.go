package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"puzzle-bar/models"
	"puzzle-bar/storage"
	"puzzle-bar/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ItemService struct {
	DB     *gorm.DB
	Images storage.ImageStore
}

func NewItemService(db *gorm.DB, images storage.ImageStore) *ItemService {
	return &ItemService{DB: db, Images: images}
}

// PriceCart resolves item ids and quantities into a Cart priced from the
// menu. Unknown or unavailable items reject the whole cart.
func (s *ItemService) PriceCart(ctx context.Context, quantities map[string]int64) (Cart, error) {
	if len(quantities) == 0 {
		return nil, &InvalidCartError{Reason: "cart is empty"}
	}
	ids := make([]string, 0, len(quantities))
	for id := range quantities {
		ids = append(ids, id)
	}

	var items []models.Item
	if err := s.DB.WithContext(ctx).Where("id IN ?", ids).Find(&items).Error; err != nil {
		return nil, err
	}
	byID := make(map[string]models.Item, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}

	cart := make(Cart, len(quantities))
	for id, qty := range quantities {
		it, ok := byID[id]
		if !ok || !it.Available {
			return nil, &InvalidCartError{Reason: fmt.Sprintf("item %s is not on the menu", id)}
		}
		cart[id] = CartLine{Name: it.Name, UnitPrice: it.Price, Quantity: qty}
	}
	return cart, nil
}

func (s *ItemService) CreateItem(c *fiber.Ctx) error {
	price, err := decimal.NewFromString(c.FormValue("price"))
	if err != nil || price.IsNegative() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "price must be a non-negative number"})
	}
	category := c.FormValue("category")
	if !models.ValidCategory(category) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown category"})
	}
	name := strings.TrimSpace(c.FormValue("name"))
	if name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "name is required"})
	}

	item := models.Item{
		ID:        uuid.NewString(),
		Name:      name,
		Category:  category,
		Price:     price.Round(2),
		Allergens: c.FormValue("allergens"),
		Available: true,
	}

	if fh, err := c.FormFile("image"); err == nil && fh.Size > 0 {
		img, err := s.Images.Upload(c.UserContext(), fh, storage.ObjectKey("items", name, fh.Filename))
		if err != nil {
			utils.LogError("[ITEM] image upload failed: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to upload image"})
		}
		item.ImageURL, item.ImageKey = img.URL, img.Key
	}

	if err := s.DB.Create(&item).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create item"})
	}
	return c.Status(fiber.StatusCreated).JSON(item)
}

// GetAllItems lists the menu, optionally filtered by ?category=.
func (s *ItemService) GetAllItems(c *fiber.Ctx) error {
	q := s.DB.Order("category ASC").Order("name ASC")
	if cat := c.Query("category"); cat != "" {
		q = q.Where("category = ?", cat)
	}
	var items []models.Item
	if err := q.Find(&items).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load items"})
	}
	return c.JSON(items)
}

func (s *ItemService) GetItem(c *fiber.Ctx) error {
	var item models.Item
	err := s.DB.First(&item, "id = ?", c.Params("id")).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "item not found"})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load item"})
	}
	return c.JSON(item)
}

// GetMultipleItems loads the items named in {"ids": [...]}, e.g. to render a cart.
func (s *ItemService) GetMultipleItems(c *fiber.Ctx) error {
	var body struct {
		IDs []string `json:"ids"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	var items []models.Item
	if len(body.IDs) > 0 {
		if err := s.DB.Where("id IN ?", body.IDs).Find(&items).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load items"})
		}
	}
	return c.JSON(items)
}

func (s *ItemService) UpdateItem(c *fiber.Ctx) error {
	var item models.Item
	if err := s.DB.First(&item, "id = ?", c.Params("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "item not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load item"})
	}

	updates := map[string]interface{}{}
	if v := strings.TrimSpace(c.FormValue("name")); v != "" {
		updates["name"] = v
		item.Name = v
	}
	if v := c.FormValue("category"); v != "" {
		if !models.ValidCategory(v) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown category"})
		}
		updates["category"] = v
	}
	if v := c.FormValue("price"); v != "" {
		price, err := decimal.NewFromString(v)
		if err != nil || price.IsNegative() {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "price must be a non-negative number"})
		}
		updates["price"] = price.Round(2)
	}
	if v := c.FormValue("allergens"); v != "" {
		updates["allergens"] = v
	}
	if v := c.FormValue("available"); v != "" {
		updates["available"] = v == "true"
	}

	oldKey := ""
	if fh, err := c.FormFile("image"); err == nil && fh.Size > 0 {
		img, err := s.Images.Upload(c.UserContext(), fh, storage.ObjectKey("items", item.Name, fh.Filename))
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to upload image"})
		}
		updates["image_url"], updates["image_key"] = img.URL, img.Key
		oldKey = item.ImageKey
	}

	if len(updates) > 0 {
		if err := s.DB.Model(&models.Item{}).Where("id = ?", item.ID).Updates(updates).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to update item"})
		}
	}
	if oldKey != "" {
		s.dropImage(c.UserContext(), oldKey)
	}

	s.DB.First(&item, "id = ?", item.ID)
	return c.JSON(item)
}

func (s *ItemService) DeleteItem(c *fiber.Ctx) error {
	var item models.Item
	if err := s.DB.First(&item, "id = ?", c.Params("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "item not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load item"})
	}
	if err := s.DB.Delete(&item).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to delete item"})
	}
	s.dropImage(c.UserContext(), item.ImageKey)
	return c.JSON(fiber.Map{"message": "item deleted"})
}

func (s *ItemService) dropImage(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.Images.Delete(ctx, key); err != nil {
		utils.LogWarn("[ITEM] could not delete image %s: %v", key, err)
	}
}
