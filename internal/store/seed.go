package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ashureev/storefront/internal/domain"
)

// DemoCatalog is inserted into an empty database on startup.
var DemoCatalog = []domain.Product{
	{ID: "1", Name: "Canvas Tote", Description: "Heavy cotton tote bag.", PriceCents: 1800, Stock: 40},
	{ID: "2", Name: "Ceramic Mug", Description: "Stoneware mug, 350ml.", PriceCents: 1200, Stock: 60},
	{ID: "3", Name: "Desk Lamp", Description: "Dimmable LED lamp.", PriceCents: 4900, Stock: 15},
	{ID: "4", Name: "Linen Notebook", Description: "A5 dotted notebook.", PriceCents: 950, Stock: 120},
	{ID: "5", Name: "Wool Beanie", Description: "Merino wool beanie.", PriceCents: 2500, Stock: 30},
}

// SeedCatalog inserts DemoCatalog when the products table is empty.
// Returns the number of products inserted.
func SeedCatalog(ctx context.Context, repo Repository) (int, error) {
	n, err := repo.CountProducts(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		slog.Debug("Catalog already populated, skipping seed", "products", n)
		return 0, nil
	}

	for i := range DemoCatalog {
		product := DemoCatalog[i]
		if err := repo.UpsertProduct(ctx, &product); err != nil {
			return i, fmt.Errorf("seed product %s: %w", product.ID, err)
		}
	}
	return len(DemoCatalog), nil
}
