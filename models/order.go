package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "Pending"
	OrderStatusOrdered    OrderStatus = "Ordered"
	OrderStatusInProgress OrderStatus = "In Progress"
	OrderStatusCompleted  OrderStatus = "Completed"
)

// CanAdvanceTo reports whether staff may move an order from s to next.
// Pending orders only leave that state through payment confirmation.
func (s OrderStatus) CanAdvanceTo(next OrderStatus) bool {
	switch s {
	case OrderStatusOrdered:
		return next == OrderStatusInProgress || next == OrderStatusCompleted
	case OrderStatusInProgress:
		return next == OrderStatusCompleted
	}
	return false
}

// Order is a placed bar order. PuzzlesRedeemed is the loyalty debit taken
// at checkout and is returned if the payment never completes.
type Order struct {
	ID               string      `json:"id" gorm:"primaryKey;type:uuid"`
	DisplayID        int64       `json:"display_id" gorm:"not null;uniqueIndex"`
	UserID           string      `json:"user_id" gorm:"type:uuid;not null;index"`
	Time             time.Time   `json:"time" gorm:"not null"`
	Status           OrderStatus `json:"status" gorm:"type:varchar(16);not null;default:'Pending';index"`
	Table            int         `json:"table" gorm:"column:table_number;not null"`
	PuzzlesRedeemed  int64       `json:"puzzles_redeemed" gorm:"not null;default:0"`
	PaymentSessionID string      `json:"payment_session_id,omitempty" gorm:"index"`

	Items []OrderItem `json:"items" gorm:"foreignKey:OrderID"`
	User  *User       `json:"user,omitempty" gorm:"foreignKey:UserID"`

	Timestamps
}

// Subtotal is the undiscounted sum of the order lines.
func (o Order) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range o.Items {
		total = total.Add(it.UnitPrice.Mul(decimal.NewFromInt(it.Quantity)))
	}
	return total
}

type OrderItem struct {
	ID        string          `json:"id" gorm:"primaryKey;type:uuid"`
	OrderID   string          `json:"order_id" gorm:"type:uuid;not null;index"`
	ItemID    string          `json:"item_id" gorm:"type:uuid;not null"`
	Name      string          `json:"name" gorm:"not null"`
	UnitPrice decimal.Decimal `json:"unit_price" gorm:"type:numeric(10,2);not null"`
	Quantity  int64           `json:"quantity" gorm:"not null;check:quantity >= 1"`
}
