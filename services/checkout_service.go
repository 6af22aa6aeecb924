package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"puzzle-bar/models"
	"puzzle-bar/payments"
	"puzzle-bar/utils"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CartLine is one cart entry keyed by item id in a Cart.
type CartLine struct {
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"price"`
	Quantity  int64           `json:"quantity"`
}

type Cart map[string]CartLine

// Subtotal is the undiscounted sum of price times quantity.
func (c Cart) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, line := range c {
		total = total.Add(line.UnitPrice.Mul(decimal.NewFromInt(line.Quantity)))
	}
	return total
}

type CheckoutRequest struct {
	UserID     string
	Cart       Cart
	Redemption int64
	Table      int
	Time       time.Time
}

type CheckoutResult struct {
	OrderID     string          `json:"orderId"`
	DisplayID   int64           `json:"displayId"`
	SessionID   string          `json:"sessionId"`
	RedirectURL string          `json:"redirectUrl"`
	Discount    decimal.Decimal `json:"discount"`
}

type CheckoutConfig struct {
	Currency          string
	DiscountPerPuzzle decimal.Decimal
	PaymentTimeout    time.Duration
	RetryDelay        time.Duration
}

// CheckoutService turns a cart into a pending order and a hosted payment
// session, and settles or compensates the order once the payment outcome
// is known.
type CheckoutService struct {
	DB       *gorm.DB
	Payments payments.Provider
	Config   CheckoutConfig
}

func NewCheckoutService(db *gorm.DB, provider payments.Provider, cfg CheckoutConfig) *CheckoutService {
	return &CheckoutService{DB: db, Payments: provider, Config: cfg}
}

// Discount is the fixed amount taken off for redeeming p puzzles.
func (s *CheckoutService) Discount(p int64) decimal.Decimal {
	return s.Config.DiscountPerPuzzle.Mul(decimal.NewFromInt(p))
}

// MaxRedeemable is the largest redemption allowed for a cart subtotal and a
// balance: the discount may not exceed the subtotal.
func (s *CheckoutService) MaxRedeemable(subtotal decimal.Decimal, balance int64) int64 {
	if !s.Config.DiscountPerPuzzle.IsPositive() || balance <= 0 {
		return 0
	}
	byCart := subtotal.Div(s.Config.DiscountPerPuzzle).Floor().IntPart()
	if byCart < balance {
		return byCart
	}
	return balance
}

// Checkout creates a pending order, opens a payment session and debits the
// redeemed puzzles. On any failure after the order exists the order is
// removed and the balance left as it was.
func (s *CheckoutService) Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	lines, err := s.validateCart(req.Cart)
	if err != nil {
		return nil, err
	}
	subtotal := req.Cart.Subtotal()

	var user models.User
	if err := s.DB.WithContext(ctx).First(&user, "id = ?", req.UserID).Error; err != nil {
		return nil, lookupErr(err, "user", req.UserID)
	}

	maxRedeem := s.MaxRedeemable(subtotal, user.Puzzles)
	switch {
	case req.Redemption < 0:
		return nil, &InvalidRedemptionError{Requested: req.Redemption, Max: maxRedeem, Reason: "redemption must not be negative"}
	case req.Redemption > user.Puzzles:
		return nil, &InvalidRedemptionError{Requested: req.Redemption, Max: maxRedeem, Reason: "insufficient balance"}
	case s.Discount(req.Redemption).GreaterThan(subtotal):
		return nil, &InvalidRedemptionError{Requested: req.Redemption, Max: maxRedeem, Reason: "discount exceeds cart total"}
	}

	order, err := s.createPendingOrder(ctx, req, lines)
	if err != nil {
		return nil, err
	}

	session, err := s.openSession(ctx, order, req.Redemption)
	if err != nil {
		s.discard(ctx, order.ID)
		utils.LogError("[CHECKOUT] payment session for order %s failed: %v", order.ID, err)
		return nil, &PaymentSessionError{Err: err}
	}

	// The redemption is recorded on the order together with the debit so a
	// later compensation never returns more than was taken.
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		attach := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", order.ID, models.OrderStatusPending).
			Updates(map[string]interface{}{
				"payment_session_id": session.ID,
				"puzzles_redeemed":   req.Redemption,
			})
		if attach.Error != nil {
			return attach.Error
		}
		if attach.RowsAffected == 0 {
			return fmt.Errorf("order %s expired before payment started", order.ID)
		}

		if req.Redemption > 0 {
			debit := tx.Model(&models.User{}).
				Where("id = ? AND puzzles >= ?", req.UserID, req.Redemption).
				Update("puzzles", gorm.Expr("puzzles - ?", req.Redemption))
			if debit.Error != nil {
				return debit.Error
			}
			if debit.RowsAffected == 0 {
				return &InvalidRedemptionError{Requested: req.Redemption, Max: maxRedeem, Reason: "insufficient balance"}
			}
		}
		return nil
	})
	if err != nil {
		s.discard(ctx, order.ID)
		return nil, err
	}

	utils.LogInfo("[CHECKOUT] order #%d (%s) awaiting payment, session %s, redeemed %d",
		order.DisplayID, order.ID, session.ID, req.Redemption)

	return &CheckoutResult{
		OrderID:     order.ID,
		DisplayID:   order.DisplayID,
		SessionID:   session.ID,
		RedirectURL: session.URL,
		Discount:    s.Discount(req.Redemption),
	}, nil
}

func (s *CheckoutService) validateCart(cart Cart) ([]models.OrderItem, error) {
	if len(cart) == 0 {
		return nil, &InvalidCartError{Reason: "cart is empty"}
	}

	ids := make([]string, 0, len(cart))
	for id := range cart {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	lines := make([]models.OrderItem, 0, len(cart))
	for _, id := range ids {
		line := cart[id]
		if line.Quantity < 1 {
			return nil, &InvalidCartError{Reason: fmt.Sprintf("quantity for %s must be at least 1", id)}
		}
		if line.UnitPrice.IsNegative() {
			return nil, &InvalidCartError{Reason: fmt.Sprintf("price for %s must not be negative", id)}
		}
		lines = append(lines, models.OrderItem{
			ID:        uuid.NewString(),
			ItemID:    id,
			Name:      line.Name,
			UnitPrice: line.UnitPrice,
			Quantity:  line.Quantity,
		})
	}
	return lines, nil
}

func (s *CheckoutService) createPendingOrder(ctx context.Context, req CheckoutRequest, lines []models.OrderItem) (*models.Order, error) {
	orderTime := req.Time
	if orderTime.IsZero() {
		orderTime = time.Now()
	}

	order := &models.Order{
		ID:     uuid.NewString(),
		UserID: req.UserID,
		Time:   orderTime,
		Status: models.OrderStatusPending,
		Table:  req.Table,
	}
	for i := range lines {
		lines[i].OrderID = order.ID
	}
	order.Items = lines

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// serializes display numbering across concurrent checkouts
		if tx.Dialector.Name() == "postgres" {
			if err := tx.Exec("LOCK TABLE orders IN SHARE ROW EXCLUSIVE MODE").Error; err != nil {
				return err
			}
		}
		var last int64
		if err := tx.Model(&models.Order{}).Select("COALESCE(MAX(display_id), 0)").Scan(&last).Error; err != nil {
			return err
		}
		order.DisplayID = last + 1
		return tx.Create(order).Error
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// openSession creates the coupon and the session under the payment timeout,
// retrying the pair once after a short backoff.
func (s *CheckoutService) openSession(ctx context.Context, order *models.Order, redemption int64) (*payments.Session, error) {
	items := make([]payments.LineItem, 0, len(order.Items))
	for _, it := range order.Items {
		amount, err := payments.MinorUnits(it.UnitPrice, s.Config.Currency)
		if err != nil {
			return nil, err
		}
		items = append(items, payments.LineItem{Name: it.Name, UnitAmount: amount, Quantity: it.Quantity})
	}

	var amountOff int64
	if redemption > 0 {
		var err error
		if amountOff, err = payments.MinorUnits(s.Discount(redemption), s.Config.Currency); err != nil {
			return nil, err
		}
	}

	var session *payments.Session
	attempt := func() error {
		callCtx, cancel := context.WithTimeout(ctx, s.paymentTimeout())
		defer cancel()

		couponID := ""
		if amountOff > 0 {
			id, err := s.Payments.CreateCoupon(callCtx, amountOff, s.Config.Currency)
			if err != nil {
				return err
			}
			couponID = id
		}

		created, err := s.Payments.CreateSession(callCtx, payments.SessionRequest{
			Currency:  s.Config.Currency,
			Items:     items,
			CouponID:  couponID,
			Reference: order.ID,
		})
		if err != nil {
			return err
		}
		session = created
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.retryDelay()
	if err := backoff.Retry(attempt, backoff.WithContext(backoff.WithMaxRetries(bo, 1), ctx)); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *CheckoutService) paymentTimeout() time.Duration {
	if s.Config.PaymentTimeout > 0 {
		return s.Config.PaymentTimeout
	}
	return 15 * time.Second
}

func (s *CheckoutService) retryDelay() time.Duration {
	if s.Config.RetryDelay > 0 {
		return s.Config.RetryDelay
	}
	return 500 * time.Millisecond
}

// ConfirmPayment settles an order whose payment session reports paid. Any
// other outcome, including a provider error, compensates the order.
// Confirming an order that already left Pending returns it unchanged.
func (s *CheckoutService) ConfirmPayment(ctx context.Context, orderID string) (*models.Order, error) {
	var order models.Order
	if err := s.DB.WithContext(ctx).First(&order, "id = ?", orderID).Error; err != nil {
		return nil, lookupErr(err, "order", orderID)
	}
	if order.Status != models.OrderStatusPending {
		return &order, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, s.paymentTimeout())
	status, err := s.sessionStatus(callCtx, order.PaymentSessionID)
	cancel()

	if err != nil || status != payments.StatusPaid {
		if err != nil {
			utils.LogWarn("[CHECKOUT] could not verify payment for order %s: %v", orderID, err)
		}
		if _, cerr := s.Compensate(ctx, orderID); cerr != nil {
			return nil, cerr
		}
		return nil, &PaymentFailedError{OrderID: orderID, SessionID: order.PaymentSessionID, Err: err}
	}

	settled, err := s.markPaid(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !settled {
		// settled or compensated elsewhere between the status check and now
		utils.LogWarn("[CHECKOUT] order %s paid but no longer pending", orderID)
	}

	if err := s.DB.WithContext(ctx).Preload("Items").First(&order, "id = ?", orderID).Error; err != nil {
		return nil, lookupErr(err, "order", orderID)
	}
	utils.LogInfo("[CHECKOUT] ✅ order #%d paid", order.DisplayID)
	return &order, nil
}

// markPaid moves a pending order to Ordered. It reports false when the
// order already left Pending.
func (s *CheckoutService) markPaid(ctx context.Context, orderID string) (bool, error) {
	res := s.DB.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, models.OrderStatusPending).
		Update("status", models.OrderStatusOrdered)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *CheckoutService) sessionStatus(ctx context.Context, sessionID string) (payments.SessionStatus, error) {
	if sessionID == "" {
		return payments.StatusUnpaid, nil
	}
	return s.Payments.GetSessionStatus(ctx, sessionID)
}

// CancelPayment compensates an order whose customer abandoned the payment.
func (s *CheckoutService) CancelPayment(ctx context.Context, orderID string) error {
	_, err := s.Compensate(ctx, orderID)
	return err
}

// Compensate deletes a still-pending order and returns its redeemed puzzles.
// Only the call that actually deletes the order credits the balance, so
// running it twice is harmless. It reports whether it did anything.
func (s *CheckoutService) Compensate(ctx context.Context, orderID string) (bool, error) {
	var credited int64
	done := false

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.Order
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND status = ?", orderID, models.OrderStatusPending).
			First(&order).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		if err := tx.Where("order_id = ?", order.ID).Delete(&models.OrderItem{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ? AND status = ?", order.ID, models.OrderStatusPending).Delete(&models.Order{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return nil
		}
		done = true

		if order.PuzzlesRedeemed > 0 {
			if err := tx.Model(&models.User{}).
				Where("id = ?", order.UserID).
				Update("puzzles", gorm.Expr("puzzles + ?", order.PuzzlesRedeemed)).Error; err != nil {
				return err
			}
			credited = order.PuzzlesRedeemed
		}
		return nil
	})
	if err != nil {
		utils.LogError("[CHECKOUT] compensation for order %s failed: %v", orderID, err)
		return false, err
	}

	if done {
		utils.LogInfo("[CHECKOUT] order %s discarded, %d puzzles returned", orderID, credited)
	} else {
		utils.LogDebug("[CHECKOUT] order %s already settled or compensated", orderID)
	}
	return done, nil
}

// ExpirePending resolves pending orders created before cutoff. Orders whose
// session turns out paid are settled, the rest are compensated. An order
// whose status cannot be fetched is left for the next sweep. It returns how
// many orders were discarded.
func (s *CheckoutService) ExpirePending(ctx context.Context, cutoff time.Time) (int, error) {
	var stale []models.Order
	if err := s.DB.WithContext(ctx).Model(&models.Order{}).
		Select("id", "payment_session_id").
		Where("status = ? AND created_at < ?", models.OrderStatusPending, cutoff).
		Find(&stale).Error; err != nil {
		return 0, err
	}

	expired := 0
	for _, order := range stale {
		callCtx, cancel := context.WithTimeout(ctx, s.paymentTimeout())
		status, err := s.sessionStatus(callCtx, order.PaymentSessionID)
		cancel()
		if err != nil {
			utils.LogWarn("[CHECKOUT] skipping stale order %s, payment status unknown: %v", order.ID, err)
			continue
		}

		if status == payments.StatusPaid {
			if _, err := s.markPaid(ctx, order.ID); err != nil {
				utils.LogError("[CHECKOUT] settling paid stale order %s: %v", order.ID, err)
			} else {
				utils.LogInfo("[CHECKOUT] stale order %s was paid, settled", order.ID)
			}
			continue
		}

		done, err := s.Compensate(ctx, order.ID)
		if err != nil {
			continue
		}
		if done {
			expired++
		}
	}
	return expired, nil
}

// discard drops an order that never got a debit. Nothing is credited.
func (s *CheckoutService) discard(ctx context.Context, orderID string) {
	err := s.DB.WithContext(context.WithoutCancel(ctx)).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", orderID).Delete(&models.OrderItem{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", orderID).Delete(&models.Order{}).Error
	})
	if err != nil {
		utils.LogError("[CHECKOUT] failed to discard order %s: %v", orderID, err)
	}
}
