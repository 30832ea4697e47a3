// Package cart holds the shopper's cart on the application shell side.
package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/ashureev/storefront/internal/domain"
)

// ErrEmptyCart is returned when checking out with nothing in the cart.
var ErrEmptyCart = errors.New("cart is empty")

// API is the subset of the storefront API the provider calls.
type API interface {
	Cart(ctx context.Context) (*domain.Cart, error)
	SetCartItem(ctx context.Context, productID string, quantity int) (*domain.Cart, error)
	RemoveCartItem(ctx context.Context, productID string) (*domain.Cart, error)
	ClearCart(ctx context.Context) (*domain.Cart, error)
	Checkout(ctx context.Context, shippingAddress string) (*domain.Order, error)
}

// State is a snapshot of the cart.
type State struct {
	Items      []domain.CartItem
	Count      int
	TotalCents int64
}

// Provider mirrors the server-side cart and notifies on every change.
type Provider struct {
	api    API
	logger *slog.Logger

	mu    sync.RWMutex
	items []domain.CartItem
	// gen changes on Reset; server results from an older gen are dropped.
	gen uint64

	subMu   sync.Mutex
	subs    map[int]func(State)
	nextSub int
}

// NewProvider creates an empty cart provider.
func NewProvider(api API, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		api:    api,
		logger: logger,
		subs:   make(map[int]func(State)),
	}
}

// State returns the current cart snapshot.
func (p *Provider) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return snapshot(p.items)
}

// Count returns the number of units in the cart.
func (p *Provider) Count() int {
	return p.State().Count
}

// Quantity returns the quantity of productID in the cart.
func (p *Provider) Quantity(productID string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, item := range p.items {
		if item.ProductID == productID {
			return item.Quantity
		}
	}
	return 0
}

// Load fetches the cart from the server.
func (p *Provider) Load(ctx context.Context) error {
	gen := p.generation()
	c, err := p.api.Cart(ctx)
	if err != nil {
		return fmt.Errorf("load cart: %w", err)
	}
	p.replace(gen, c)
	return nil
}

// Add increases the quantity of productID by qty.
func (p *Provider) Add(ctx context.Context, productID string, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("add to cart: quantity must be positive, got %d", qty)
	}
	return p.SetQuantity(ctx, productID, p.Quantity(productID)+qty)
}

// SetQuantity sets the quantity of productID. Zero removes the line.
func (p *Provider) SetQuantity(ctx context.Context, productID string, qty int) error {
	if qty < 0 {
		return fmt.Errorf("set quantity: negative quantity %d", qty)
	}
	gen := p.generation()
	c, err := p.api.SetCartItem(ctx, productID, qty)
	if err != nil {
		return fmt.Errorf("set quantity of %s: %w", productID, err)
	}
	p.replace(gen, c)
	return nil
}

// Remove drops productID from the cart.
func (p *Provider) Remove(ctx context.Context, productID string) error {
	gen := p.generation()
	c, err := p.api.RemoveCartItem(ctx, productID)
	if err != nil {
		return fmt.Errorf("remove %s: %w", productID, err)
	}
	p.replace(gen, c)
	return nil
}

// Clear empties the cart on the server.
func (p *Provider) Clear(ctx context.Context) error {
	gen := p.generation()
	c, err := p.api.ClearCart(ctx)
	if err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	p.replace(gen, c)
	return nil
}

// Checkout places an order for the cart contents. The cart is emptied on
// success.
func (p *Provider) Checkout(ctx context.Context, shippingAddress string) (*domain.Order, error) {
	if p.Count() == 0 {
		return nil, ErrEmptyCart
	}
	if strings.TrimSpace(shippingAddress) == "" {
		return nil, errors.New("checkout: shipping address is required")
	}

	gen := p.generation()
	order, err := p.api.Checkout(ctx, shippingAddress)
	if err != nil {
		return nil, fmt.Errorf("checkout: %w", err)
	}
	p.logger.Info("Order placed", "order_id", order.ID, "total_cents", order.TotalCents)
	p.replace(gen, nil)
	return order, nil
}

// Reset clears the local cart without calling the server. Requests still in
// flight no longer update the cart once Reset returns.
func (p *Provider) Reset() {
	p.mu.Lock()
	p.gen++
	if len(p.items) == 0 {
		p.mu.Unlock()
		return
	}
	p.items = nil
	p.mu.Unlock()

	p.notify(State{})
}

func (p *Provider) generation() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.gen
}

func (p *Provider) replace(gen uint64, c *domain.Cart) {
	var items []domain.CartItem
	if c != nil {
		items = append(items, c.Items...)
	}

	p.mu.Lock()
	if gen != p.gen {
		p.mu.Unlock()
		p.logger.Debug("Discarded cart from before reset")
		return
	}
	p.items = items
	state := snapshot(items)
	p.mu.Unlock()

	p.notify(state)
}

// Subscribe registers fn to be called after every change. The returned
// function removes the subscription.
func (p *Provider) Subscribe(fn func(State)) func() {
	p.subMu.Lock()
	defer p.subMu.Unlock()

	p.nextSub++
	id := p.nextSub
	p.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			p.subMu.Lock()
			delete(p.subs, id)
			p.subMu.Unlock()
		})
	}
}

func (p *Provider) notify(state State) {
	p.subMu.Lock()
	subs := make([]func(State), 0, len(p.subs))
	for _, fn := range p.subs {
		subs = append(subs, fn)
	}
	p.subMu.Unlock()

	for _, fn := range subs {
		fn(state)
	}
}

func snapshot(items []domain.CartItem) State {
	c := &domain.Cart{Items: append([]domain.CartItem(nil), items...)}
	return State{
		Items:      c.Items,
		Count:      c.Count(),
		TotalCents: c.TotalCents(),
	}
}
