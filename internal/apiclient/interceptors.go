package apiclient

import (
	"context"
	"sync"
)

// InterceptorID identifies a registered interceptor for later ejection.
type InterceptorID int

// ResponseHandler observes a successful response. Returning an error turns
// the call into a failure for the handlers that follow.
type ResponseHandler func(*Response) (*Response, error)

// ErrorHandler observes a failed call. It may return the error (possibly
// replaced) to keep the call failed, or a response with a nil error to
// recover it.
type ErrorHandler func(error) (*Response, error)

type skipInterceptorsKey struct{}

// SkipInterceptors returns a context whose calls bypass the interceptor
// chain. Errors still reach the caller.
func SkipInterceptors(ctx context.Context) context.Context {
	return context.WithValue(ctx, skipInterceptorsKey{}, true)
}

func interceptorsSkipped(ctx context.Context) bool {
	skip, _ := ctx.Value(skipInterceptorsKey{}).(bool)
	return skip
}

type interceptor struct {
	id         InterceptorID
	onResponse ResponseHandler
	onError    ErrorHandler
}

// Interceptors is an ordered registry of response observers shared by every
// call made through a Client.
type Interceptors struct {
	mu      sync.RWMutex
	nextID  InterceptorID
	entries []interceptor
}

// Use appends an interceptor pair. Either handler may be nil to pass through.
func (i *Interceptors) Use(onResponse ResponseHandler, onError ErrorHandler) InterceptorID {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.nextID++
	i.entries = append(i.entries, interceptor{
		id:         i.nextID,
		onResponse: onResponse,
		onError:    onError,
	})
	return i.nextID
}

// Eject removes an interceptor. Returns false if id was not registered.
func (i *Interceptors) Eject(id InterceptorID) bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	for idx, entry := range i.entries {
		if entry.id == id {
			i.entries = append(i.entries[:idx:idx], i.entries[idx+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of registered interceptors.
func (i *Interceptors) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.entries)
}

// apply runs the chain in registration order against a snapshot taken at
// call completion, so handlers ejected mid-flight are not invoked afterwards.
func (i *Interceptors) apply(resp *Response, err error) (*Response, error) {
	i.mu.RLock()
	chain := make([]interceptor, len(i.entries))
	copy(chain, i.entries)
	i.mu.RUnlock()

	for _, entry := range chain {
		if err != nil {
			if entry.onError != nil {
				resp, err = entry.onError(err)
			}
			continue
		}
		if entry.onResponse != nil {
			resp, err = entry.onResponse(resp)
		}
	}
	return resp, err
}
