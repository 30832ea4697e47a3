package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/ashureev/storefront/internal/domain"
)

// AuthResult is returned by Register and Login.
type AuthResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *domain.User `json:"user"`
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, email, password, name string) (*AuthResult, error) {
	var out AuthResult
	if err := c.Do(ctx, http.MethodPost, "/api/auth/register", credentials{Email: email, Password: password, Name: name}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	var out AuthResult
	if err := c.Do(ctx, http.MethodPost, "/api/auth/login", credentials{Email: email, Password: password}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Me returns the user behind the current token.
func (c *Client) Me(ctx context.Context) (*domain.User, error) {
	var out domain.User
	if err := c.Do(ctx, http.MethodGet, "/api/auth/me", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MeWithToken returns the user behind token, ignoring the token source.
func (c *Client) MeWithToken(ctx context.Context, token string) (*domain.User, error) {
	var out domain.User
	if err := c.send(ctx, http.MethodGet, "/api/auth/me", token, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout revokes token on the server.
func (c *Client) Logout(ctx context.Context, token string) error {
	return c.send(ctx, http.MethodPost, "/api/auth/logout", token, nil, nil)
}

// Products lists the catalog.
func (c *Client) Products(ctx context.Context) ([]*domain.Product, error) {
	var out []*domain.Product
	if err := c.Do(ctx, http.MethodGet, "/api/products", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Product fetches a single product.
func (c *Client) Product(ctx context.Context, id string) (*domain.Product, error) {
	var out domain.Product
	if err := c.Do(ctx, http.MethodGet, "/api/products/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Cart fetches the current cart.
func (c *Client) Cart(ctx context.Context) (*domain.Cart, error) {
	var out domain.Cart
	if err := c.Do(ctx, http.MethodGet, "/api/cart", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetCartItem sets the quantity of productID and returns the updated cart.
func (c *Client) SetCartItem(ctx context.Context, productID string, quantity int) (*domain.Cart, error) {
	var out domain.Cart
	body := map[string]int{"quantity": quantity}
	if err := c.Do(ctx, http.MethodPut, "/api/cart/items/"+url.PathEscape(productID), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RemoveCartItem removes productID and returns the updated cart.
func (c *Client) RemoveCartItem(ctx context.Context, productID string) (*domain.Cart, error) {
	var out domain.Cart
	if err := c.Do(ctx, http.MethodDelete, "/api/cart/items/"+url.PathEscape(productID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ClearCart empties the cart.
func (c *Client) ClearCart(ctx context.Context) (*domain.Cart, error) {
	var out domain.Cart
	if err := c.Do(ctx, http.MethodDelete, "/api/cart", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Checkout places an order for the current cart.
func (c *Client) Checkout(ctx context.Context, shippingAddress string) (*domain.Order, error) {
	var out domain.Order
	body := map[string]string{"shipping_address": shippingAddress}
	if err := c.Do(ctx, http.MethodPost, "/api/orders", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Orders lists the user's orders.
func (c *Client) Orders(ctx context.Context) ([]*domain.Order, error) {
	var out []*domain.Order
	if err := c.Do(ctx, http.MethodGet, "/api/orders", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Order fetches one order.
func (c *Client) Order(ctx context.Context, id string) (*domain.Order, error) {
	var out domain.Order
	if err := c.Do(ctx, http.MethodGet, "/api/orders/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
