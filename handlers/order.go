package handlers

import (
	"time"

	"puzzle-bar/middleware"
	"puzzle-bar/services"

	"github.com/gofiber/fiber/v2"
)

type OrderHandlers struct {
	Orders   *services.OrderService
	Checkout *services.CheckoutService
	Items    *services.ItemService
	Users    *services.UserService
}

func SetupOrderRoutes(router fiber.Router, h *OrderHandlers) {
	router.Get("/orders/mine", h.Orders.GetMyOrders)
	router.Get("/orders/:id", h.Orders.GetOrder)

	router.Post("/checkout/quote", h.Quote)
	router.Post("/checkout", h.StartCheckout)
	router.Post("/checkout/:orderId/confirm", h.ConfirmPayment)
	router.Post("/checkout/:orderId/cancel", h.CancelPayment)

	staff := router.Group("/staff", middleware.RequireStaff())
	staff.Get("/orders", h.Orders.GetAllOrders)
	staff.Get("/orders/user/:userId", h.Orders.GetOrdersByUser)
	staff.Put("/orders/:id/status", h.Orders.UpdateOrderStatus)
	staff.Delete("/orders/:id", h.Orders.DeleteOrder)
}

type checkoutBody struct {
	Items   map[string]int64 `json:"items"` // item id -> quantity
	Puzzles int64            `json:"puzzles"`
	Table   int              `json:"table"`
}

// Quote prices a cart and reports how many puzzles may be redeemed on it.
func (h *OrderHandlers) Quote(c *fiber.Ctx) error {
	var body checkoutBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	cart, err := h.Items.PriceCart(c.UserContext(), body.Items)
	if err != nil {
		return respondError(c, err)
	}

	userID, _ := c.Locals("user_id").(string)
	balance, err := h.Users.Balance(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err)
	}

	subtotal := cart.Subtotal()
	return c.JSON(fiber.Map{
		"subtotal":    subtotal,
		"balance":     balance,
		"max_puzzles": h.Checkout.MaxRedeemable(subtotal, balance),
		"per_puzzle":  h.Checkout.Config.DiscountPerPuzzle,
		"currency":    h.Checkout.Config.Currency,
	})
}

func (h *OrderHandlers) StartCheckout(c *fiber.Ctx) error {
	var body checkoutBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	if body.Table < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "table must not be negative"})
	}

	cart, err := h.Items.PriceCart(c.UserContext(), body.Items)
	if err != nil {
		return respondError(c, err)
	}

	userID, _ := c.Locals("user_id").(string)
	res, err := h.Checkout.Checkout(c.UserContext(), services.CheckoutRequest{
		UserID:     userID,
		Cart:       cart,
		Redemption: body.Puzzles,
		Table:      body.Table,
		Time:       time.Now(),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(res)
}

func (h *OrderHandlers) ConfirmPayment(c *fiber.Ctx) error {
	if err := h.ownsOrder(c); err != nil {
		return respondError(c, err)
	}
	order, err := h.Checkout.ConfirmPayment(c.UserContext(), c.Params("orderId"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(order)
}

func (h *OrderHandlers) CancelPayment(c *fiber.Ctx) error {
	if err := h.ownsOrder(c); err != nil {
		return respondError(c, err)
	}
	if err := h.Checkout.CancelPayment(c.UserContext(), c.Params("orderId")); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "order cancelled"})
}

// ownsOrder rejects payment callbacks for another customer's order. An
// order that no longer exists passes so repeated callbacks stay harmless.
func (h *OrderHandlers) ownsOrder(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	var owner string
	if err := h.Checkout.DB.WithContext(c.UserContext()).
		Table("orders").Select("user_id").Where("id = ?", c.Params("orderId")).Scan(&owner).Error; err != nil {
		return err
	}
	if owner != "" && owner != userID {
		return &services.NotFoundError{Entity: "order", ID: c.Params("orderId")}
	}
	return nil
}
