package layout_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/storefront/internal/apiclient"
	"github.com/ashureev/storefront/internal/cart"
	"github.com/ashureev/storefront/internal/guard"
	"github.com/ashureev/storefront/internal/layout"
	"github.com/ashureev/storefront/internal/navigation"
	"github.com/ashureev/storefront/internal/session"
)

const waitFor = 2 * time.Second

// backend is a minimal storefront API. Every authenticated endpoint answers
// 401 once expired is set.
type backend struct {
	srv     *httptest.Server
	expired atomic.Bool
	revokes atomic.Int32
	hold    chan struct{}

	cartHold     chan struct{}
	cartRequests atomic.Int32
	cartServed   atomic.Int32

	revokeHold     chan struct{}
	revokeRejected atomic.Bool
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	b := &backend{}
	mux := http.NewServeMux()

	authed := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if b.expired.Load() || r.Header.Get("Authorization") != "Bearer good" {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
				return
			}
			next(w, r)
		}
	}

	mux.HandleFunc("/api/auth/me", authed(func(w http.ResponseWriter, _ *http.Request) {
		if b.hold != nil {
			<-b.hold
		}
		writeJSON(w, http.StatusOK, map[string]string{"id": "u1", "email": "a@example.com", "name": "A"})
	}))
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"token": "good",
			"user":  map[string]string{"id": "u1", "email": "a@example.com"},
		})
	})
	mux.HandleFunc("/api/auth/logout", func(w http.ResponseWriter, _ *http.Request) {
		b.revokes.Add(1)
		if b.revokeHold != nil {
			<-b.revokeHold
		}
		if b.revokeRejected.Load() {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/api/cart", authed(func(w http.ResponseWriter, _ *http.Request) {
		b.cartRequests.Add(1)
		if b.cartHold != nil {
			<-b.cartHold
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"user_id": "u1",
			"items":   []map[string]interface{}{{"product_id": "1", "price_cents": 1800, "quantity": 3}},
		})
		b.cartServed.Add(1)
	}))
	mux.HandleFunc("/api/orders", authed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, []interface{}{})
	}))
	mux.HandleFunc("/api/products", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "boom"})
	})

	b.srv = httptest.NewServer(mux)
	t.Cleanup(b.srv.Close)
	return b
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type shell struct {
	client  *apiclient.Client
	session *session.Provider
	cart    *cart.Provider
	router  *navigation.Router
	layout  *layout.RootLayout
}

func newShell(t *testing.T, b *backend, token, initial string) *shell {
	t.Helper()
	store := &session.MemoryTokenStore{}
	require.NoError(t, store.Save(token))

	client := apiclient.New(b.srv.URL)
	sess := session.NewProvider(client, store, nil)
	client.SetTokenSource(sess)
	carts := cart.NewProvider(client, nil)
	router := navigation.NewRouter(initial, nil)

	return &shell{
		client:  client,
		session: sess,
		cart:    carts,
		router:  router,
		layout: layout.New(layout.Deps{
			Session:      sess,
			Cart:         carts,
			Router:       router,
			Stack:        navigation.DefaultStack(),
			Interceptors: client.Interceptors(),
		}),
	}
}

func waitFrame(t *testing.T, m *layout.Mounted, cond func(layout.Frame) bool) layout.Frame {
	t.Helper()
	require.Eventually(t, func() bool { return cond(m.Frame()) }, waitFor, 5*time.Millisecond,
		"last frame: %+v", m.Frame())
	return m.Frame()
}

func TestLoadingFrameHoldsRoute(t *testing.T) {
	b := newBackend(t)
	b.hold = make(chan struct{})
	s := newShell(t, b, "good", "/(auth)/login")

	m := s.layout.Mount(context.Background())
	defer m.Unmount()

	frame := m.Frame()
	assert.True(t, frame.Loading)
	assert.Empty(t, frame.Screen)
	assert.Equal(t, layout.DefaultBackground, frame.Background)
	assert.Equal(t, "/(auth)/login", s.router.Path())

	close(b.hold)

	frame = waitFrame(t, m, func(f layout.Frame) bool { return !f.Loading && f.Path == guard.TabsPath })
	assert.Equal(t, "(tabs)", frame.Screen)
	require.NotNil(t, frame.User)
	assert.Equal(t, "u1", frame.User.ID)
}

func TestSignedOutRedirectsToLogin(t *testing.T) {
	b := newBackend(t)
	s := newShell(t, b, "", "/(tabs)")

	m := s.layout.Mount(context.Background())
	defer m.Unmount()

	frame := waitFrame(t, m, func(f layout.Frame) bool { return f.Path == guard.LoginPath })
	assert.False(t, frame.Loading)
	assert.Nil(t, frame.User)
	assert.Equal(t, "(auth)", frame.Screen)
	assert.Equal(t, "login", frame.Params["screen"])
	assert.False(t, frame.Options.HeaderShown)
	assert.Equal(t, 1, s.router.Depth())
}

func TestRejectedStoredTokenRedirectsToLogin(t *testing.T) {
	b := newBackend(t)
	s := newShell(t, b, "stale", "/my-orders")

	m := s.layout.Mount(context.Background())
	defer m.Unmount()

	waitFrame(t, m, func(f layout.Frame) bool { return f.Path == guard.LoginPath })
	assert.Empty(t, s.session.Token())
}

func TestSignedInStaysOnRoute(t *testing.T) {
	b := newBackend(t)
	s := newShell(t, b, "good", "/(tabs)")

	m := s.layout.Mount(context.Background())
	defer m.Unmount()

	waitFrame(t, m, func(f layout.Frame) bool { return f.User != nil && f.CartCount == 3 })

	s.router.Push("/checkout")
	frame := waitFrame(t, m, func(f layout.Frame) bool { return f.Path == "/checkout" })
	assert.Equal(t, "checkout", frame.Screen)
	assert.Equal(t, navigation.PresentationModal, frame.Options.Presentation)
	assert.Equal(t, "Checkout", frame.Options.Title)

	s.router.Push("/order-details/o-7")
	frame = waitFrame(t, m, func(f layout.Frame) bool { return f.Path == "/order-details/o-7" })
	assert.Equal(t, "o-7", frame.Params["id"])
	assert.True(t, frame.Options.HeaderShown)

	s.router.Push("/(auth)/signup")
	waitFrame(t, m, func(f layout.Frame) bool { return f.Path == guard.TabsPath })
}

func TestUnauthorizedResponseLogsOutAndRedirects(t *testing.T) {
	b := newBackend(t)
	s := newShell(t, b, "good", "/(tabs)")

	m := s.layout.Mount(context.Background())
	defer m.Unmount()

	waitFrame(t, m, func(f layout.Frame) bool { return f.User != nil && f.CartCount == 3 })

	b.expired.Store(true)
	_, err := s.client.Orders(context.Background())
	require.Error(t, err)
	assert.True(t, apiclient.IsUnauthorized(err))

	frame := waitFrame(t, m, func(f layout.Frame) bool { return f.Path == guard.LoginPath })
	assert.Nil(t, frame.User)
	assert.Zero(t, frame.CartCount)
	assert.False(t, s.session.State().SignedIn())

	s.session.Wait()
	assert.Equal(t, int32(1), b.revokes.Load())
}

func TestOtherErrorsKeepSession(t *testing.T) {
	b := newBackend(t)
	s := newShell(t, b, "good", "/(tabs)")

	m := s.layout.Mount(context.Background())
	defer m.Unmount()

	waitFrame(t, m, func(f layout.Frame) bool { return f.User != nil })

	_, err := s.client.Products(context.Background())
	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, apiclient.StatusCode(err))
	assert.True(t, s.session.State().SignedIn())
	assert.Equal(t, guard.TabsPath, s.router.Path())
}

func TestConcurrentUnauthorizedResponses(t *testing.T) {
	b := newBackend(t)
	s := newShell(t, b, "good", "/(tabs)")

	m := s.layout.Mount(context.Background())
	defer m.Unmount()

	waitFrame(t, m, func(f layout.Frame) bool { return f.User != nil })

	var notified atomic.Int32
	unsubscribe := s.session.Subscribe(func(session.State) { notified.Add(1) })
	defer unsubscribe()

	b.expired.Store(true)
	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.client.Cart(context.Background())
		}()
	}
	wg.Wait()

	waitFrame(t, m, func(f layout.Frame) bool { return f.Path == guard.LoginPath })
	assert.Equal(t, int32(1), notified.Load())
}

func TestUnmountReleasesInterceptor(t *testing.T) {
	b := newBackend(t)
	s := newShell(t, b, "good", "/(tabs)")

	m := s.layout.Mount(context.Background())
	waitFrame(t, m, func(f layout.Frame) bool { return f.User != nil })
	require.Equal(t, 1, s.client.Interceptors().Len())

	m.Unmount()
	m.Unmount()
	assert.Zero(t, s.client.Interceptors().Len())

	b.expired.Store(true)
	_, err := s.client.Orders(context.Background())
	require.Error(t, err)
	assert.True(t, apiclient.IsUnauthorized(err))
	assert.True(t, s.session.State().SignedIn())
}

func TestFrameSubscribersSeeRedirect(t *testing.T) {
	b := newBackend(t)
	s := newShell(t, b, "", "/(tabs)")

	var mu sync.Mutex
	var paths []string
	m := s.layout.Mount(context.Background())
	defer m.Unmount()
	unsubscribe := m.Subscribe(func(f layout.Frame) {
		mu.Lock()
		paths = append(paths, f.Path)
		mu.Unlock()
	})
	defer unsubscribe()

	waitFrame(t, m, func(f layout.Frame) bool { return f.Path == guard.LoginPath })

	_, err := s.session.Login(context.Background(), "a@example.com", "secret123")
	require.NoError(t, err)
	waitFrame(t, m, func(f layout.Frame) bool { return f.Path == guard.TabsPath && f.User != nil })

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, paths)
	assert.Equal(t, guard.TabsPath, paths[len(paths)-1])
}

func TestCartLoadAfterLogoutIsDiscarded(t *testing.T) {
	b := newBackend(t)
	b.cartHold = make(chan struct{})
	s := newShell(t, b, "good", "/(tabs)")

	m := s.layout.Mount(context.Background())
	defer m.Unmount()

	waitFrame(t, m, func(f layout.Frame) bool { return f.User != nil })
	require.Eventually(t, func() bool { return b.cartRequests.Load() == 1 }, waitFor, 5*time.Millisecond)

	s.session.Logout()
	waitFrame(t, m, func(f layout.Frame) bool { return f.Path == guard.LoginPath && f.User == nil })

	close(b.cartHold)
	require.Eventually(t, func() bool { return b.cartServed.Load() == 1 }, waitFor, 5*time.Millisecond)

	assert.Never(t, func() bool {
		return s.cart.Count() != 0 || m.Frame().CartCount != 0
	}, 200*time.Millisecond, 5*time.Millisecond)
}

func TestRejectedRevokeKeepsNewSession(t *testing.T) {
	b := newBackend(t)
	b.revokeHold = make(chan struct{})
	b.revokeRejected.Store(true)
	s := newShell(t, b, "good", "/(tabs)")

	m := s.layout.Mount(context.Background())
	defer m.Unmount()

	waitFrame(t, m, func(f layout.Frame) bool { return f.User != nil })

	s.session.Logout()
	require.Eventually(t, func() bool { return b.revokes.Load() == 1 }, waitFor, 5*time.Millisecond)

	_, err := s.session.Login(context.Background(), "a@example.com", "secret123")
	require.NoError(t, err)

	close(b.revokeHold)
	s.session.Wait()

	assert.True(t, s.session.State().SignedIn())
	waitFrame(t, m, func(f layout.Frame) bool { return f.Path == guard.TabsPath && f.User != nil })
}
