package payments

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestMinorUnits(t *testing.T) {
	cases := []struct {
		amount   string
		currency string
		want     int64
	}{
		{"10.50", "EUR", 1050},
		{"2", "EUR", 200},
		{"0.005", "EUR", 1},
		{"1500", "JPY", 1500},
		{"3.2", "usd", 320},
	}
	for _, tc := range cases {
		t.Run(tc.amount+tc.currency, func(t *testing.T) {
			got, err := MinorUnits(decimal.RequireFromString(tc.amount), tc.currency)
			if err != nil {
				t.Fatalf("MinorUnits: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %d, want %d", got, tc.want)
			}
		})
	}
}

func TestMinorUnitsUnknownCurrency(t *testing.T) {
	if _, err := MinorUnits(decimal.NewFromInt(1), "XYZ1"); err == nil {
		t.Fatal("expected error for malformed currency")
	}
}
