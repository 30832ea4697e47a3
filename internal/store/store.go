// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/ashureev/storefront/internal/domain"
)

var (
	// ErrEmailTaken is returned when a user with the same email exists.
	ErrEmailTaken = errors.New("email already registered")
	// ErrProductNotFound is returned when a referenced product does not exist.
	ErrProductNotFound = errors.New("product not found")
	// ErrInsufficientStock is returned when a quantity exceeds available stock.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrEmptyCart is returned when checking out an empty cart.
	ErrEmptyCart = errors.New("cart is empty")
)

// Repository defines the interface for persisting storefront data.
// Lookups return nil, nil when the record does not exist.
type Repository interface {
	// CreateUser inserts a new user. Returns ErrEmailTaken on duplicate email.
	CreateUser(ctx context.Context, user *domain.User) error

	// GetUser retrieves a user by ID.
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// GetUserByEmail retrieves a user by normalized email.
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)

	// CreateSession records an issued access token.
	CreateSession(ctx context.Context, session *domain.AuthSession) error

	// GetSession retrieves an auth session by ID.
	GetSession(ctx context.Context, sessionID string) (*domain.AuthSession, error)

	// DeleteSession removes an auth session. Deleting a missing session is not an error.
	DeleteSession(ctx context.Context, sessionID string) error

	// DeleteExpiredSessions removes sessions that expired before now.
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)

	// ListProducts returns the catalog ordered by name.
	ListProducts(ctx context.Context) ([]*domain.Product, error)

	// GetProduct retrieves a product by ID.
	GetProduct(ctx context.Context, productID string) (*domain.Product, error)

	// UpsertProduct creates or updates a catalog entry.
	UpsertProduct(ctx context.Context, product *domain.Product) error

	// CountProducts returns the catalog size.
	CountProducts(ctx context.Context) (int, error)

	// GetCart returns the user's cart priced at current catalog prices.
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)

	// SetCartItem sets the quantity of a product in the cart. A quantity of
	// zero or less removes the line.
	SetCartItem(ctx context.Context, userID, productID string, quantity int) error

	// RemoveCartItem removes a product from the cart.
	RemoveCartItem(ctx context.Context, userID, productID string) error

	// ClearCart removes every line from the cart.
	ClearCart(ctx context.Context, userID string) error

	// CreateOrderFromCart converts the cart into an order in one transaction.
	CreateOrderFromCart(ctx context.Context, userID, shippingAddress string) (*domain.Order, error)

	// ListOrders returns the user's orders, newest first.
	ListOrders(ctx context.Context, userID string) ([]*domain.Order, error)

	// GetOrder retrieves an order owned by the user.
	GetOrder(ctx context.Context, userID, orderID string) (*domain.Order, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
