package cart_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/storefront/internal/cart"
	"github.com/ashureev/storefront/internal/domain"
)

var prices = map[string]int64{"1": 1800, "2": 1200}

type fakeAPI struct {
	items       map[string]int
	order       []string
	checkouts   int
	checkoutErr error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{items: make(map[string]int)}
}

func (f *fakeAPI) cart() *domain.Cart {
	c := &domain.Cart{UserID: "u1"}
	for _, id := range f.order {
		if qty := f.items[id]; qty > 0 {
			c.Items = append(c.Items, domain.CartItem{ProductID: id, PriceCents: prices[id], Quantity: qty})
		}
	}
	return c
}

func (f *fakeAPI) Cart(context.Context) (*domain.Cart, error) { return f.cart(), nil }

func (f *fakeAPI) SetCartItem(_ context.Context, id string, qty int) (*domain.Cart, error) {
	if _, ok := prices[id]; !ok {
		return nil, errors.New("product not found")
	}
	if _, seen := f.items[id]; !seen {
		f.order = append(f.order, id)
	}
	f.items[id] = qty
	return f.cart(), nil
}

func (f *fakeAPI) RemoveCartItem(_ context.Context, id string) (*domain.Cart, error) {
	f.items[id] = 0
	return f.cart(), nil
}

func (f *fakeAPI) ClearCart(context.Context) (*domain.Cart, error) {
	f.items = make(map[string]int)
	f.order = nil
	return f.cart(), nil
}

func (f *fakeAPI) Checkout(_ context.Context, address string) (*domain.Order, error) {
	if f.checkoutErr != nil {
		return nil, f.checkoutErr
	}
	f.checkouts++
	total := f.cart().TotalCents()
	f.items = make(map[string]int)
	f.order = nil
	return &domain.Order{ID: "o-1", TotalCents: total, ShippingAddress: address, Status: domain.OrderStatusPending}, nil
}

func TestAddAccumulates(t *testing.T) {
	p := cart.NewProvider(newFakeAPI(), nil)
	ctx := context.Background()

	require.NoError(t, p.Add(ctx, "1", 1))
	require.NoError(t, p.Add(ctx, "1", 2))
	require.NoError(t, p.Add(ctx, "2", 1))

	state := p.State()
	assert.Equal(t, 4, state.Count)
	assert.Equal(t, int64(3*1800+1200), state.TotalCents)
	assert.Equal(t, 3, p.Quantity("1"))
}

func TestAddRejectsNonPositive(t *testing.T) {
	p := cart.NewProvider(newFakeAPI(), nil)
	assert.Error(t, p.Add(context.Background(), "1", 0))
	assert.Error(t, p.SetQuantity(context.Background(), "1", -1))
}

func TestRemoveAndClear(t *testing.T) {
	p := cart.NewProvider(newFakeAPI(), nil)
	ctx := context.Background()
	require.NoError(t, p.Add(ctx, "1", 1))
	require.NoError(t, p.Add(ctx, "2", 2))

	require.NoError(t, p.Remove(ctx, "1"))
	assert.Equal(t, 2, p.Count())

	require.NoError(t, p.Clear(ctx))
	assert.Zero(t, p.Count())
}

func TestLoadReplacesLocalState(t *testing.T) {
	api := newFakeAPI()
	_, _ = api.SetCartItem(context.Background(), "2", 5)

	p := cart.NewProvider(api, nil)
	require.NoError(t, p.Load(context.Background()))
	assert.Equal(t, 5, p.Count())
}

func TestCheckoutEmptiesCart(t *testing.T) {
	api := newFakeAPI()
	p := cart.NewProvider(api, nil)
	ctx := context.Background()

	_, err := p.Checkout(ctx, "1 Main St")
	assert.ErrorIs(t, err, cart.ErrEmptyCart)

	require.NoError(t, p.Add(ctx, "1", 2))
	_, err = p.Checkout(ctx, "  ")
	assert.Error(t, err)

	order, err := p.Checkout(ctx, "1 Main St")
	require.NoError(t, err)
	assert.Equal(t, int64(3600), order.TotalCents)
	assert.Zero(t, p.Count())
	assert.Equal(t, 1, api.checkouts)
}

func TestCheckoutFailureKeepsCart(t *testing.T) {
	api := newFakeAPI()
	p := cart.NewProvider(api, nil)
	require.NoError(t, p.Add(context.Background(), "1", 1))

	api.checkoutErr = errors.New("insufficient stock")
	_, err := p.Checkout(context.Background(), "1 Main St")
	require.Error(t, err)
	assert.Equal(t, 1, p.Count())
}

func TestResetNotifiesOnlyWhenNonEmpty(t *testing.T) {
	p := cart.NewProvider(newFakeAPI(), nil)

	var states []cart.State
	unsubscribe := p.Subscribe(func(s cart.State) { states = append(states, s) })
	defer unsubscribe()

	p.Reset()
	assert.Empty(t, states)

	require.NoError(t, p.Add(context.Background(), "1", 1))
	p.Reset()
	require.Len(t, states, 2)
	assert.Equal(t, 1, states[0].Count)
	assert.Zero(t, states[1].Count)
	assert.Zero(t, p.Count())
}

type gatedAPI struct {
	*fakeAPI
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedAPI) Cart(ctx context.Context) (*domain.Cart, error) {
	g.once.Do(func() { close(g.started) })
	<-g.release
	return g.fakeAPI.Cart(ctx)
}

func TestResetDiscardsInFlightLoad(t *testing.T) {
	api := &gatedAPI{fakeAPI: newFakeAPI(), started: make(chan struct{}), release: make(chan struct{})}
	_, _ = api.SetCartItem(context.Background(), "1", 3)
	p := cart.NewProvider(api, nil)

	var notified int
	unsubscribe := p.Subscribe(func(cart.State) { notified++ })
	defer unsubscribe()

	done := make(chan error, 1)
	go func() { done <- p.Load(context.Background()) }()

	<-api.started
	p.Reset()
	close(api.release)
	require.NoError(t, <-done)

	assert.Zero(t, p.Count())
	assert.Zero(t, notified)

	require.NoError(t, p.Load(context.Background()))
	assert.Equal(t, 3, p.Count())
}
