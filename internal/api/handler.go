// Package api provides HTTP handlers for the storefront API.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/ashureev/storefront/internal/auth"
	"github.com/ashureev/storefront/internal/store"
	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 1 << 20

// Handler provides common handler utilities.
type Handler struct {
	repo   store.Repository
	tokens *auth.TokenManager
	hasher *auth.Hasher
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(repo store.Repository, tokens *auth.TokenManager, hasher *auth.Hasher) *Handler {
	return &Handler{
		repo:   repo,
		tokens: tokens,
		hasher: hasher,
	}
}

// RegisterRoutes registers every storefront route under /api.
func (h *Handler) RegisterRoutes(r chi.Router) {
	requireAuth := auth.Middleware(h.tokens, h.repo)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", h.Register)
		r.Post("/auth/login", h.Login)
		r.Get("/products", h.ListProducts)
		r.Get("/products/{id}", h.GetProduct)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Get("/auth/me", h.Me)
			r.Post("/auth/logout", h.Logout)

			r.Get("/cart", h.GetCart)
			r.Delete("/cart", h.ClearCart)
			r.Put("/cart/items/{productID}", h.SetCartItem)
			r.Delete("/cart/items/{productID}", h.RemoveCartItem)

			r.Post("/orders", h.Checkout)
			r.Get("/orders", h.ListOrders)
			r.Get("/orders/{id}", h.GetOrder)
		})
	})
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("empty request body")
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
