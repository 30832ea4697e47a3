package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// ListProducts returns the catalog.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.repo.ListProducts(r.Context())
	if err != nil {
		slog.Error("Failed to list products", "error", err)
		Error(w, http.StatusInternalServerError, "failed to load products")
		return
	}
	JSON(w, http.StatusOK, products)
}

// GetProduct returns a single product.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	product, err := h.repo.GetProduct(r.Context(), id)
	if err != nil {
		slog.Error("Failed to get product", "error", err, "product_id", id)
		Error(w, http.StatusInternalServerError, "failed to load product")
		return
	}
	if product == nil {
		Error(w, http.StatusNotFound, "product not found")
		return
	}
	JSON(w, http.StatusOK, product)
}
