package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/ashureev/storefront/internal/auth"
	"github.com/ashureev/storefront/internal/store"
	"github.com/go-chi/chi/v5"
)

type cartItemRequest struct {
	Quantity int `json:"quantity"`
}

// GetCart returns the shopper's cart.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	h.writeCart(w, r, http.StatusOK)
}

// SetCartItem sets the quantity of one product. Zero removes the line.
func (h *Handler) SetCartItem(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	productID := chi.URLParam(r, "productID")

	var req cartItemRequest
	if err := decodeJSON(r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Quantity < 0 {
		Error(w, http.StatusBadRequest, "quantity must not be negative")
		return
	}

	err := h.repo.SetCartItem(r.Context(), userID, productID, req.Quantity)
	switch {
	case errors.Is(err, store.ErrProductNotFound):
		Error(w, http.StatusNotFound, "product not found")
		return
	case errors.Is(err, store.ErrInsufficientStock):
		Error(w, http.StatusConflict, "insufficient stock")
		return
	case err != nil:
		slog.Error("Failed to update cart", "error", err, "user_id", userID, "product_id", productID)
		Error(w, http.StatusInternalServerError, "failed to update cart")
		return
	}

	h.writeCart(w, r, http.StatusOK)
}

// RemoveCartItem drops a product from the cart.
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	productID := chi.URLParam(r, "productID")

	if err := h.repo.RemoveCartItem(r.Context(), userID, productID); err != nil {
		slog.Error("Failed to remove cart item", "error", err, "user_id", userID, "product_id", productID)
		Error(w, http.StatusInternalServerError, "failed to update cart")
		return
	}

	h.writeCart(w, r, http.StatusOK)
}

// ClearCart empties the cart.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	if err := h.repo.ClearCart(r.Context(), userID); err != nil {
		slog.Error("Failed to clear cart", "error", err, "user_id", userID)
		Error(w, http.StatusInternalServerError, "failed to clear cart")
		return
	}

	h.writeCart(w, r, http.StatusOK)
}

func (h *Handler) writeCart(w http.ResponseWriter, r *http.Request, status int) {
	userID := auth.UserIDFromContext(r.Context())

	cart, err := h.repo.GetCart(r.Context(), userID)
	if err != nil {
		slog.Error("Failed to get cart", "error", err, "user_id", userID)
		Error(w, http.StatusInternalServerError, "failed to load cart")
		return
	}

	JSON(w, status, map[string]interface{}{
		"user_id":     cart.UserID,
		"items":       cart.Items,
		"count":       cart.Count(),
		"total_cents": cart.TotalCents(),
	})
}
