package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ashureev/storefront/internal/auth"
	"github.com/ashureev/storefront/internal/store"
	"github.com/go-chi/chi/v5"
)

type checkoutRequest struct {
	ShippingAddress string `json:"shipping_address"`
}

// Checkout converts the cart into an order.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	var req checkoutRequest
	if err := decodeJSON(r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	address := strings.TrimSpace(req.ShippingAddress)
	if address == "" {
		Error(w, http.StatusBadRequest, "shipping address required")
		return
	}

	order, err := h.repo.CreateOrderFromCart(r.Context(), userID, address)
	switch {
	case errors.Is(err, store.ErrEmptyCart):
		Error(w, http.StatusBadRequest, "cart is empty")
		return
	case errors.Is(err, store.ErrInsufficientStock):
		Error(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		slog.Error("Checkout failed", "error", err, "user_id", userID)
		Error(w, http.StatusInternalServerError, "checkout failed")
		return
	}

	slog.Info("Order placed", "user_id", userID, "order_id", order.ID, "total_cents", order.TotalCents)
	JSON(w, http.StatusCreated, order)
}

// ListOrders returns the shopper's orders.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	orders, err := h.repo.ListOrders(r.Context(), userID)
	if err != nil {
		slog.Error("Failed to list orders", "error", err, "user_id", userID)
		Error(w, http.StatusInternalServerError, "failed to load orders")
		return
	}
	JSON(w, http.StatusOK, orders)
}

// GetOrder returns one of the shopper's orders.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	orderID := chi.URLParam(r, "id")

	order, err := h.repo.GetOrder(r.Context(), userID, orderID)
	if err != nil {
		slog.Error("Failed to get order", "error", err, "user_id", userID, "order_id", orderID)
		Error(w, http.StatusInternalServerError, "failed to load order")
		return
	}
	if order == nil {
		Error(w, http.StatusNotFound, "order not found")
		return
	}
	JSON(w, http.StatusOK, order)
}
