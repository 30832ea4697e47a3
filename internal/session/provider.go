// Package session tracks who is signed in to the application shell.
//
// A Provider starts in the loading state, resolves the stored credential
// once, and afterwards changes only through Login, Register and Logout.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/storefront/internal/apiclient"
	"github.com/ashureev/storefront/internal/domain"
)

const defaultRevokeTimeout = 5 * time.Second

// State is a snapshot of the session.
type State struct {
	User    *domain.User
	Loading bool
}

// SignedIn reports whether the session is resolved with a user.
func (s State) SignedIn() bool {
	return !s.Loading && s.User != nil
}

// API is the subset of the storefront API the provider calls.
type API interface {
	MeWithToken(ctx context.Context, token string) (*domain.User, error)
	Login(ctx context.Context, email, password string) (*apiclient.AuthResult, error)
	Register(ctx context.Context, email, password, name string) (*apiclient.AuthResult, error)
	Logout(ctx context.Context, token string) error
}

// Provider owns the session state and the access token.
type Provider struct {
	api    API
	store  TokenStore
	logger *slog.Logger

	mu    sync.RWMutex
	state State
	token string
	epoch uint64

	subMu   sync.Mutex
	subs    map[int]func(State)
	nextSub int

	revokeTimeout time.Duration
	revokes       sync.WaitGroup
}

// NewProvider creates a provider in the loading state.
func NewProvider(api API, store TokenStore, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		api:           api,
		store:         store,
		logger:        logger,
		state:         State{Loading: true},
		subs:          make(map[int]func(State)),
		revokeTimeout: defaultRevokeTimeout,
	}
}

// State returns the current session snapshot.
func (p *Provider) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Token returns the current access token, or "" when signed out.
func (p *Provider) Token() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.token
}

// Resolve performs the launch credential check. The session always leaves
// the loading state, with a user only when the stored token is accepted.
// A Logout that happens while the check is in flight wins.
func (p *Provider) Resolve(ctx context.Context) error {
	p.mu.RLock()
	epoch := p.epoch
	p.mu.RUnlock()

	token, err := p.store.Load()
	if err != nil {
		p.logger.Warn("Failed to load stored token", "error", err)
		p.settle(epoch, "", nil)
		return fmt.Errorf("load token: %w", err)
	}
	if token == "" {
		p.settle(epoch, "", nil)
		return nil
	}

	user, err := p.api.MeWithToken(ctx, token)
	if err != nil {
		if apiclient.IsUnauthorized(err) {
			p.logger.Info("Stored token rejected")
			if clearErr := p.store.Clear(); clearErr != nil {
				p.logger.Warn("Failed to clear stored token", "error", clearErr)
			}
			p.settle(epoch, "", nil)
			return nil
		}
		p.settle(epoch, "", nil)
		return fmt.Errorf("verify stored token: %w", err)
	}

	p.settle(epoch, token, user)
	return nil
}

func (p *Provider) settle(epoch uint64, token string, user *domain.User) {
	p.mu.Lock()
	if p.epoch != epoch || !p.state.Loading {
		p.mu.Unlock()
		return
	}
	p.token = token
	p.state = State{User: user}
	state := p.state
	p.mu.Unlock()

	if user != nil {
		p.logger.Info("Session restored", "user_id", user.ID)
	}
	p.notify(state)
}

// Login signs in with email and password.
func (p *Provider) Login(ctx context.Context, email, password string) (*domain.User, error) {
	result, err := p.api.Login(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if err := p.signIn(result); err != nil {
		return nil, err
	}
	return result.User, nil
}

// Register creates an account and signs in with it.
func (p *Provider) Register(ctx context.Context, email, password, name string) (*domain.User, error) {
	result, err := p.api.Register(ctx, email, password, name)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	if err := p.signIn(result); err != nil {
		return nil, err
	}
	return result.User, nil
}

func (p *Provider) signIn(result *apiclient.AuthResult) error {
	if result == nil || result.Token == "" || result.User == nil {
		return errors.New("sign in: incomplete auth response")
	}
	if err := p.store.Save(result.Token); err != nil {
		p.logger.Warn("Failed to persist token", "error", err)
	}

	p.mu.Lock()
	p.epoch++
	p.token = result.Token
	p.state = State{User: result.User}
	state := p.state
	p.mu.Unlock()

	p.logger.Info("Signed in", "user_id", result.User.ID)
	p.notify(state)
	return nil
}

// Logout ends the session locally and revokes the token on the server in
// the background. It is safe to call concurrently and repeatedly; only the
// first call after a sign-in notifies subscribers.
func (p *Provider) Logout() {
	p.mu.Lock()
	if !p.state.Loading && p.state.User == nil && p.token == "" {
		p.mu.Unlock()
		return
	}
	token := p.token
	var userID string
	if p.state.User != nil {
		userID = p.state.User.ID
	}
	p.epoch++
	p.token = ""
	p.state = State{}
	state := p.state
	p.mu.Unlock()

	if err := p.store.Clear(); err != nil {
		p.logger.Warn("Failed to clear stored token", "error", err)
	}
	p.logger.Info("Signed out", "user_id", userID)
	p.notify(state)

	if token != "" {
		p.revokes.Add(1)
		go p.revoke(token)
	}
}

func (p *Provider) revoke(token string) {
	defer p.revokes.Done()

	// The session is already over locally; a 401 here must not end a newer one.
	ctx, cancel := context.WithTimeout(apiclient.SkipInterceptors(context.Background()), p.revokeTimeout)
	defer cancel()

	if err := p.api.Logout(ctx, token); err != nil {
		p.logger.Debug("Server token revoke failed", "error", err)
	}
}

// Wait blocks until background token revocations finish.
func (p *Provider) Wait() {
	p.revokes.Wait()
}

// Subscribe registers fn to be called with the new state after every
// change. The returned function removes the subscription.
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
