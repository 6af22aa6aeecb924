// Package payments wraps the hosted checkout provider behind a small
// interface so the checkout flow can run against a fake in tests.
package payments

import "context"

type SessionStatus string

const (
	StatusPaid   SessionStatus = "paid"
	StatusUnpaid SessionStatus = "unpaid"
)

// LineItem is one priced line of a hosted checkout. UnitAmount is in the
// currency's minor unit.
type LineItem struct {
	Name       string
	UnitAmount int64
	Quantity   int64
}

type SessionRequest struct {
	Currency  string
	Items     []LineItem
	CouponID  string
	Reference string // order id, echoed back by the provider as client reference
}

type Session struct {
	ID  string
	URL string
}

type Provider interface {
	// CreateCoupon creates a single-use fixed amount discount.
	CreateCoupon(ctx context.Context, amountOff int64, currency string) (string, error)
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
	GetSessionStatus(ctx context.Context, sessionID string) (SessionStatus, error)
}
