package payments

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// StripeProvider creates hosted Stripe Checkout sessions.
type StripeProvider struct {
	api        *client.API
	successURL string
	cancelURL  string
}

func NewStripeProvider(secretKey, successURL, cancelURL string, timeout time.Duration) *StripeProvider {
	api := &client.API{}
	api.Init(secretKey, stripe.NewBackends(&http.Client{Timeout: timeout}))
	return &StripeProvider{api: api, successURL: successURL, cancelURL: cancelURL}
}

func (p *StripeProvider) CreateCoupon(ctx context.Context, amountOff int64, cur string) (string, error) {
	params := &stripe.CouponParams{
		AmountOff: stripe.Int64(amountOff),
		Currency:  stripe.String(strings.ToLower(cur)),
		Duration:  stripe.String(string(stripe.CouponDurationOnce)),
	}
	params.Context = ctx

	coupon, err := p.api.Coupons.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe coupon: %w", err)
	}
	return coupon.ID, nil
}

func (p *StripeProvider) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	cur := strings.ToLower(req.Currency)
	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(req.Items))
	for _, it := range req.Items {
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(cur),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(it.Name),
				},
				UnitAmount: stripe.Int64(it.UnitAmount),
			},
			Quantity: stripe.Int64(it.Quantity),
		})
	}

	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems:          lineItems,
		SuccessURL:         stripe.String(p.successURL),
		CancelURL:          stripe.String(p.cancelURL),
	}
	if req.Reference != "" {
		params.ClientReferenceID = stripe.String(req.Reference)
	}
	if req.CouponID != "" {
		params.Discounts = []*stripe.CheckoutSessionDiscountParams{
			{Coupon: stripe.String(req.CouponID)},
		}
	}
	params.Context = ctx

	s, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe checkout session: %w", err)
	}
	return &Session{ID: s.ID, URL: s.URL}, nil
}

func (p *StripeProvider) GetSessionStatus(ctx context.Context, sessionID string) (SessionStatus, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	s, err := p.api.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		return "", fmt.Errorf("stripe session %s: %w", sessionID, err)
	}
	if s.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid {
		return StatusPaid, nil
	}
	return StatusUnpaid, nil
}
