// Package interceptor installs the global unauthorized-response handler on the
// shared API client. A 401 from any call ends the local session and the
// original error still reaches the caller.
package interceptor

import (
	"log/slog"
	"sync"

	"github.com/ashureev/storefront/internal/apiclient"
)

// Registry is the interceptor surface of the shared HTTP client.
type Registry interface {
	Use(onResponse apiclient.ResponseHandler, onError apiclient.ErrorHandler) apiclient.InterceptorID
	Eject(id apiclient.InterceptorID) bool
}

// Registration is an installed interceptor. Release removes it.
type Registration struct {
	reg    Registry
	id     apiclient.InterceptorID
	logger *slog.Logger

	once     sync.Once
	mu       sync.RWMutex
	released bool
}

// Install registers a handler on reg that calls logout for every failed
// response carrying status 401. Successful responses and other errors pass
// through untouched.
func Install(reg Registry, logout func(), logger *slog.Logger) *Registration {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registration{reg: reg, logger: logger}

	onError := func(err error) (*apiclient.Response, error) {
		if !apiclient.IsUnauthorized(err) {
			return nil, err
		}
		// Held across logout so Release waits for an in-flight call and
		// nothing logs out once Release has returned. logout must not
		// call Release.
		r.mu.RLock()
		defer r.mu.RUnlock()
		if !r.released {
			r.logger.Warn("Unauthorized response, ending session", "error", err)
			logout()
		}
		return nil, err
	}

	r.id = reg.Use(nil, onError)
	return r
}

// Release ejects the handler. Safe to call more than once.
func (r *Registration) Release() {
	r.once.Do(func() {
		r.mu.Lock()
		r.released = true
		r.mu.Unlock()

		if !r.reg.Eject(r.id) {
			r.logger.Debug("Unauthorized interceptor already ejected", "id", r.id)
		}
	})
}

// Active reports whether the handler is still installed.
func (r *Registration) Active() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return !r.released
}
