package domain

import (
	"testing"
	"time"
)

func TestCartTotals(t *testing.T) {
	cart := &Cart{Items: []CartItem{
		{ProductID: "a", PriceCents: 250, Quantity: 2},
		{ProductID: "b", PriceCents: 1000, Quantity: 1},
	}}

	if got := cart.TotalCents(); got != 1500 {
		t.Errorf("Expected total 1500, got %d", got)
	}
	if got := cart.Count(); got != 3 {
		t.Errorf("Expected count 3, got %d", got)
	}

	var empty *Cart
	if empty.TotalCents() != 0 || empty.Count() != 0 || !empty.IsEmpty() {
		t.Error("Expected nil cart to be empty")
	}
}

func TestAuthSessionIsExpired(t *testing.T) {
	now := time.Now()
	s := &AuthSession{ExpiresAt: now.Add(time.Minute)}

	if s.IsExpired(now) {
		t.Error("Expected session to be valid")
	}
	if !s.IsExpired(now.Add(time.Minute)) {
		t.Error("Expected session to be expired at its deadline")
	}

	var missing *AuthSession
	if !missing.IsExpired(now) {
		t.Error("Expected nil session to be expired")
	}
}

func TestProductInStock(t *testing.T) {
	p := &Product{Stock: 2}
	if !p.InStock(2) {
		t.Error("Expected 2 units in stock")
	}
	if p.InStock(3) || p.InStock(0) {
		t.Error("Expected out of range quantities to be rejected")
	}
}
