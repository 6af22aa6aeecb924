package models

import "github.com/shopspring/decimal"

const (
	CategoryAlcoholic    = "Alcoholics"
	CategoryNonAlcoholic = "Non-Alcoholics"
	CategoryFood         = "Food"
	CategorySnacks       = "Snacks"
)

// ValidCategory reports whether c is one of the menu categories.
func ValidCategory(c string) bool {
	switch c {
	case CategoryAlcoholic, CategoryNonAlcoholic, CategoryFood, CategorySnacks:
		return true
	}
	return false
}

// Item is a menu entry.
type Item struct {
	ID        string          `json:"id" gorm:"primaryKey;type:uuid"`
	Name      string          `json:"name" gorm:"not null"`
	Category  string          `json:"category" gorm:"index;not null"`
	Price     decimal.Decimal `json:"price" gorm:"type:numeric(10,2);not null"`
	Allergens string          `json:"allergens"` // comma separated
	ImageURL  string          `json:"image_url"`
	ImageKey  string          `json:"-"`
	Available bool            `json:"available" gorm:"default:true"`

	Timestamps
}
