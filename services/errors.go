package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// NotFoundError is returned when a referenced record does not exist.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

type DuplicateParticipantError struct {
	ChallengeID string
	UserID      string
}

func (e *DuplicateParticipantError) Error() string {
	return fmt.Sprintf("user %s already joined challenge %s", e.UserID, e.ChallengeID)
}

// InvalidRedemptionError rejects a puzzle redemption before any side effect.
type InvalidRedemptionError struct {
	Requested int64
	Max       int64
	Reason    string
}

func (e *InvalidRedemptionError) Error() string {
	return fmt.Sprintf("cannot redeem %d puzzles (max %d): %s", e.Requested, e.Max, e.Reason)
}

type InvalidCartError struct {
	Reason string
}

func (e *InvalidCartError) Error() string {
	return "invalid cart: " + e.Reason
}

// PaymentSessionError means the provider could not create a payment session.
type PaymentSessionError struct {
	Err error
}

func (e *PaymentSessionError) Error() string {
	return fmt.Sprintf("payment session could not be created: %v", e.Err)
}

func (e *PaymentSessionError) Unwrap() error { return e.Err }

// PaymentFailedError means the session for an order did not end up paid.
// The order has been discarded and any redeemed puzzles returned.
type PaymentFailedError struct {
	OrderID   string
	SessionID string
	Err       error
}

func (e *PaymentFailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("payment for order %s failed: %v", e.OrderID, e.Err)
	}
	return fmt.Sprintf("payment for order %s was not completed", e.OrderID)
}

func (e *PaymentFailedError) Unwrap() error { return e.Err }

// InconsistentStateError reports a challenge whose cached participant counter
// disagreed with its roster.
type InconsistentStateError struct {
	ChallengeID string
	Counter     int
	RosterSize  int
}

func (e *InconsistentStateError) Error() string {
	return fmt.Sprintf("challenge %s counter %d does not match roster size %d", e.ChallengeID, e.Counter, e.RosterSize)
}

type InvalidTransitionError struct {
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot move order from %q to %q", e.From, e.To)
}

func notFound(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// lookupErr maps gorm's missing-record error to a NotFoundError.
func lookupErr(err error, entity, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound(entity, id)
	}
	return err
}
