package session_test

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/storefront/internal/apiclient"
	"github.com/ashureev/storefront/internal/domain"
	"github.com/ashureev/storefront/internal/session"
)

var shopper = &domain.User{ID: "u1", Email: "a@example.com", Name: "A"}

type fakeAPI struct {
	mu       sync.Mutex
	meErr    error
	loginErr error
	revoked  []string
	meCalls  int
	block    chan struct{}
}

func (f *fakeAPI) MeWithToken(_ context.Context, token string) (*domain.User, error) {
	f.mu.Lock()
	f.meCalls++
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	if f.meErr != nil {
		return nil, f.meErr
	}
	if token != "good" {
		return nil, &apiclient.ResponseError{StatusCode: http.StatusUnauthorized}
	}
	return shopper, nil
}

func (f *fakeAPI) Login(_ context.Context, email, _ string) (*apiclient.AuthResult, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &apiclient.AuthResult{Token: "good", User: &domain.User{ID: "u1", Email: email}}, nil
}

func (f *fakeAPI) Register(_ context.Context, email, _, name string) (*apiclient.AuthResult, error) {
	return &apiclient.AuthResult{Token: "good", User: &domain.User{ID: "u2", Email: email, Name: name}}, nil
}

func (f *fakeAPI) Logout(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked = append(f.revoked, token)
	return nil
}

func (f *fakeAPI) revokedTokens() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.revoked...)
}

func TestProviderStartsLoading(t *testing.T) {
	p := session.NewProvider(&fakeAPI{}, &session.MemoryTokenStore{}, nil)
	state := p.State()
	assert.True(t, state.Loading)
	assert.Nil(t, state.User)
	assert.False(t, state.SignedIn())
}

func TestResolveWithoutToken(t *testing.T) {
	api := &fakeAPI{}
	p := session.NewProvider(api, &session.MemoryTokenStore{}, nil)

	require.NoError(t, p.Resolve(context.Background()))
	assert.Equal(t, session.State{}, p.State())
	assert.Zero(t, api.meCalls)
}

func TestResolveWithStoredToken(t *testing.T) {
	store := &session.MemoryTokenStore{}
	require.NoError(t, store.Save("good"))
	p := session.NewProvider(&fakeAPI{}, store, nil)

	var states []session.State
	p.Subscribe(func(s session.State) { states = append(states, s) })

	require.NoError(t, p.Resolve(context.Background()))
	assert.True(t, p.State().SignedIn())
	assert.Equal(t, "good", p.Token())
	require.Len(t, states, 1)
	assert.Equal(t, "u1", states[0].User.ID)
}

func TestResolveRejectedTokenClearsStore(t *testing.T) {
	store := &session.MemoryTokenStore{}
	require.NoError(t, store.Save("stale"))
	p := session.NewProvider(&fakeAPI{}, store, nil)

	require.NoError(t, p.Resolve(context.Background()))
	assert.Equal(t, session.State{}, p.State())

	token, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestResolveTransportErrorKeepsStoredToken(t *testing.T) {
	store := &session.MemoryTokenStore{}
	require.NoError(t, store.Save("good"))
	p := session.NewProvider(&fakeAPI{meErr: errors.New("connection refused")}, store, nil)

	err := p.Resolve(context.Background())
	require.Error(t, err)
	assert.False(t, p.State().Loading)
	assert.Nil(t, p.State().User)
	assert.Empty(t, p.Token())

	token, _ := store.Load()
	assert.Equal(t, "good", token)
}

func TestLogoutDuringResolveWins(t *testing.T) {
	store := &session.MemoryTokenStore{}
	require.NoError(t, store.Save("good"))
	api := &fakeAPI{block: make(chan struct{})}
	p := session.NewProvider(api, store, nil)

	done := make(chan error, 1)
	go func() { done <- p.Resolve(context.Background()) }()

	require.Eventually(t, func() bool {
		api.mu.Lock()
		defer api.mu.Unlock()
		return api.meCalls == 1
	}, time.Second, 5*time.Millisecond)

	p.Logout()
	close(api.block)
	require.NoError(t, <-done)

	assert.Equal(t, session.State{}, p.State())
}

func TestLoginAndLogout(t *testing.T) {
	api := &fakeAPI{}
	store := &session.MemoryTokenStore{}
	p := session.NewProvider(api, store, nil)
	require.NoError(t, p.Resolve(context.Background()))

	user, err := p.Login(context.Background(), "a@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	assert.True(t, p.State().SignedIn())

	saved, _ := store.Load()
	assert.Equal(t, "good", saved)

	p.Logout()
	p.Wait()
	assert.Equal(t, session.State{}, p.State())
	assert.Empty(t, p.Token())
	assert.Equal(t, []string{"good"}, api.revokedTokens())

	saved, _ = store.Load()
	assert.Empty(t, saved)
}

func TestLoginFailureLeavesSignedOut(t *testing.T) {
	api := &fakeAPI{loginErr: &apiclient.ResponseError{StatusCode: http.StatusUnauthorized, Message: "invalid credentials"}}
	p := session.NewProvider(api, &session.MemoryTokenStore{}, nil)
	require.NoError(t, p.Resolve(context.Background()))

	_, err := p.Login(context.Background(), "a@example.com", "wrong")
	require.Error(t, err)
	assert.True(t, apiclient.IsUnauthorized(err))
	assert.False(t, p.State().SignedIn())
}

func TestRegisterSignsIn(t *testing.T) {
	p := session.NewProvider(&fakeAPI{}, &session.MemoryTokenStore{}, nil)
	require.NoError(t, p.Resolve(context.Background()))

	user, err := p.Register(context.Background(), "b@example.com", "secret123", "B")
	require.NoError(t, err)
	assert.Equal(t, "u2", user.ID)
	assert.Equal(t, "B", p.State().User.Name)
}

func TestLogoutIsIdempotent(t *testing.T) {
	api := &fakeAPI{}
	p := session.NewProvider(api, &session.MemoryTokenStore{}, nil)
	require.NoError(t, p.Resolve(context.Background()))
	_, err := p.Login(context.Background(), "a@example.com", "secret123")
	require.NoError(t, err)

	var notified atomic.Int32
	unsubscribe := p.Subscribe(func(session.State) { notified.Add(1) })
	defer unsubscribe()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Logout()
		}()
	}
	wg.Wait()
	p.Logout()
	p.Wait()

	assert.Equal(t, int32(1), notified.Load())
	assert.Len(t, api.revokedTokens(), 1)
	assert.Equal(t, session.State{}, p.State())
}

func TestUnsubscribe(t *testing.T) {
	p := session.NewProvider(&fakeAPI{}, &session.MemoryTokenStore{}, nil)

	var calls int
	unsubscribe := p.Subscribe(func(session.State) { calls++ })
	unsubscribe()
	unsubscribe()

	require.NoError(t, p.Resolve(context.Background()))
	assert.Zero(t, calls)
}

func TestFileTokenStore(t *testing.T) {
	store := session.NewFileTokenStore(filepath.Join(t.TempDir(), "shell", "token"))

	token, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, token)

	require.NoError(t, store.Save("abc.def.ghi"))
	token, err = store.Load()
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", token)

	require.NoError(t, store.Clear())
	require.NoError(t, store.Clear())
	token, err = store.Load()
	require.NoError(t, err)
	assert.Empty(t, token)
}
