package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func day(d int) time.Time {
	return time.Date(2026, time.March, d, 0, 0, 0, 0, time.UTC)
}

func TestSortByStart(t *testing.T) {
	cs := []Challenge{
		{ID: "late", Date: day(2), Time: "21:00"},
		{ID: "early", Date: day(2), Time: "18:30"},
		{ID: "first", Date: day(1), Time: "23:00"},
	}

	SortByStart(cs, true)
	if cs[0].ID != "first" || cs[1].ID != "early" || cs[2].ID != "late" {
		t.Fatalf("ascending = %v %v %v", cs[0].ID, cs[1].ID, cs[2].ID)
	}

	SortByStart(cs, false)
	if cs[0].ID != "late" || cs[2].ID != "first" {
		t.Fatalf("descending = %v %v %v", cs[0].ID, cs[1].ID, cs[2].ID)
	}
}

func TestStartsAtBadClock(t *testing.T) {
	c := Challenge{Date: day(5), Time: "soon"}
	if !c.StartsAt().Equal(day(5)) {
		t.Fatalf("StartsAt = %s", c.StartsAt())
	}
}

func TestOrderStatusTransitions(t *testing.T) {
	allowed := map[[2]OrderStatus]bool{
		{OrderStatusOrdered, OrderStatusInProgress}:   true,
		{OrderStatusOrdered, OrderStatusCompleted}:    true,
		{OrderStatusInProgress, OrderStatusCompleted}: true,
	}
	all := []OrderStatus{OrderStatusPending, OrderStatusOrdered, OrderStatusInProgress, OrderStatusCompleted}
	for _, from := range all {
		for _, to := range all {
			if got := from.CanAdvanceTo(to); got != allowed[[2]OrderStatus{from, to}] {
				t.Errorf("%s -> %s = %v", from, to, got)
			}
		}
	}
}

func TestOrderSubtotal(t *testing.T) {
	o := Order{Items: []OrderItem{
		{UnitPrice: decimal.RequireFromString("3.50"), Quantity: 2},
		{UnitPrice: decimal.RequireFromString("0.99"), Quantity: 3},
	}}
	if !o.Subtotal().Equal(decimal.RequireFromString("9.97")) {
		t.Fatalf("subtotal = %s", o.Subtotal())
	}
}

func TestRoles(t *testing.T) {
	if RoleUser.IsStaff() || !RoleEmployee.IsStaff() || !RoleAdmin.IsStaff() {
		t.Fatal("staff roles wrong")
	}
	if Role("owner").Valid() {
		t.Fatal("unknown role accepted")
	}
}
