package services

import (
	"context"
	"errors"

	"puzzle-bar/models"
	"puzzle-bar/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type OrderService struct {
	DB       *gorm.DB
	Checkout *CheckoutService
}

func NewOrderService(db *gorm.DB, checkout *CheckoutService) *OrderService {
	return &OrderService{DB: db, Checkout: checkout}
}

func (s *OrderService) withDetails(ctx context.Context) *gorm.DB {
	return s.DB.WithContext(ctx).Preload("Items").Preload("User")
}

// ListAll returns every order, newest first.
func (s *OrderService) ListAll(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	err := s.withDetails(ctx).Order("display_id DESC").Find(&orders).Error
	return orders, err
}

func (s *OrderService) ListByUser(ctx context.Context, userID string) ([]models.Order, error) {
	var orders []models.Order
	err := s.withDetails(ctx).Where("user_id = ?", userID).Order("display_id DESC").Find(&orders).Error
	return orders, err
}

func (s *OrderService) GetAllOrders(c *fiber.Ctx) error {
	orders, err := s.ListAll(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load orders"})
	}
	return c.JSON(orders)
}

// GetMyOrders lists the caller's orders.
func (s *OrderService) GetMyOrders(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	orders, err := s.ListByUser(c.UserContext(), userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load orders"})
	}
	return c.JSON(orders)
}

func (s *OrderService) GetOrdersByUser(c *fiber.Ctx) error {
	orders, err := s.ListByUser(c.UserContext(), c.Params("userId"))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load orders"})
	}
	return c.JSON(orders)
}

// GetOrder returns an order to staff or to the customer who placed it.
func (s *OrderService) GetOrder(c *fiber.Ctx) error {
	var order models.Order
	err := s.withDetails(c.UserContext()).First(&order, "id = ?", c.Params("id")).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "order not found"})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load order"})
	}

	userID, _ := c.Locals("user_id").(string)
	if order.UserID != userID && !hasStaffRole(c) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "order not found"})
	}
	return c.JSON(order)
}

// UpdateOrderStatus moves an order along Ordered -> In Progress -> Completed.
func (s *OrderService) UpdateOrderStatus(c *fiber.Ctx) error {
	var body struct {
		Status models.OrderStatus `json:"status"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}

	var order models.Order
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&order, "id = ?", c.Params("id")).Error; err != nil {
			return lookupErr(err, "order", c.Params("id"))
		}
		if !order.Status.CanAdvanceTo(body.Status) {
			return &InvalidTransitionError{From: string(order.Status), To: string(body.Status)}
		}
		res := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", order.ID, order.Status).
			Update("status", body.Status)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return &InvalidTransitionError{From: string(order.Status), To: string(body.Status)}
		}
		order.Status = body.Status
		return nil
	})

	var nf *NotFoundError
	var bad *InvalidTransitionError
	switch {
	case errors.As(err, &nf):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": nf.Error()})
	case errors.As(err, &bad):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": bad.Error()})
	case err != nil:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to update order"})
	}

	utils.LogInfo("[ORDER] #%d -> %s", order.DisplayID, order.Status)
	return c.JSON(order)
}

// DeleteOrder removes an order. Pending orders go through compensation so
// their redeemed puzzles are returned.
func (s *OrderService) DeleteOrder(c *fiber.Ctx) error {
	id := c.Params("id")

	var order models.Order
	if err := s.DB.First(&order, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "order not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load order"})
	}

	if order.Status == models.OrderStatusPending {
		if _, err := s.Checkout.Compensate(c.UserContext(), id); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to delete order"})
		}
		return c.JSON(fiber.Map{"message": "order deleted"})
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", id).Delete(&models.OrderItem{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&models.Order{}).Error
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to delete order"})
	}
	return c.JSON(fiber.Map{"message": "order deleted"})
}

func hasStaffRole(c *fiber.Ctx) bool {
	roles, _ := c.Locals("user_roles").([]string)
	for _, r := range roles {
		if models.Role(r).IsStaff() {
			return true
		}
	}
	return false
}
