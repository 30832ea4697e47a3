// Package guard keeps the active route consistent with the session: signed-in
// users are kept out of the auth group and signed-out users are kept in it.
package guard

import (
	"log/slog"

	"github.com/ashureev/storefront/internal/domain"
	"github.com/ashureev/storefront/internal/navigation"
)

const (
	// AuthGroup is the first segment of the unauthenticated-only routes.
	AuthGroup = "(auth)"
	// TabsPath is the tab navigator signed-in users land on.
	TabsPath = "/(tabs)"
	// LoginPath is where signed-out users are sent.
	LoginPath = "/(auth)/login"
)

// Action is the outcome of a redirect decision.
type Action int

const (
	// ActionNone leaves the route as is.
	ActionNone Action = iota
	// ActionToTabs replaces the route with TabsPath.
	ActionToTabs
	// ActionToLogin replaces the route with LoginPath.
	ActionToLogin
)

func (a Action) String() string {
	switch a {
	case ActionToTabs:
		return "to_tabs"
	case ActionToLogin:
		return "to_login"
	default:
		return "none"
	}
}

// Target returns the path the action navigates to, or "" for ActionNone.
func (a Action) Target() string {
	switch a {
	case ActionToTabs:
		return TabsPath
	case ActionToLogin:
		return LoginPath
	default:
		return ""
	}
}

// Decide returns the redirect needed for the given session and route.
// Applying the returned action and deciding again always yields ActionNone.
func Decide(user *domain.User, loading bool, segments navigation.Segments) Action {
	if loading {
		return ActionNone
	}

	inAuthGroup := segments.First() == AuthGroup
	switch {
	case user != nil && inAuthGroup:
		return ActionToTabs
	case user == nil && !inAuthGroup:
		return ActionToLogin
	default:
		return ActionNone
	}
}

// Navigator replaces the active route.
type Navigator interface {
	Replace(path string)
}

// Guard applies Decide through a Navigator.
type Guard struct {
	nav    Navigator
	logger *slog.Logger
}

// New creates a guard that redirects through nav.
func New(nav Navigator, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{nav: nav, logger: logger}
}

// Evaluate decides and, when needed, replaces the route. It returns the
// action taken.
func (g *Guard) Evaluate(user *domain.User, loading bool, segments navigation.Segments) Action {
	action := Decide(user, loading, segments)
	if action == ActionNone {
		return action
	}

	g.logger.Info("Session guard redirect",
		"from", segments.Path(),
		"to", action.Target(),
		"signed_in", user != nil)
	g.nav.Replace(action.Target())
	return action
}
