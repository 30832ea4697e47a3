package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ashureev/storefront/internal/domain"
)

type contextKey int

const (
	userIDKey contextKey = iota
	sessionIDKey
)

// SessionLookup resolves the server-side session behind a token.
type SessionLookup interface {
	GetSession(ctx context.Context, sessionID string) (*domain.AuthSession, error)
}

// UserIDFromContext extracts the authenticated user ID from the request context.
func UserIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(userIDKey).(string); ok {
		return v
	}
	return ""
}

// SessionIDFromContext extracts the auth session ID from the request context.
func SessionIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(sessionIDKey).(string); ok {
		return v
	}
	return ""
}

// WithIdentity returns a context carrying the given user and session IDs.
func WithIdentity(ctx context.Context, userID, sessionID string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}
	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}
	return token, true
}

// Middleware rejects requests without a valid, unrevoked access token with 401.
func Middleware(tokens *TokenManager, sessions SessionLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r.Header.Get("Authorization"))
			if !ok {
				unauthorized(w)
				return
			}

			claims, err := tokens.Parse(token)
			if err != nil {
				unauthorized(w)
				return
			}

			session, err := sessions.GetSession(r.Context(), claims.SessionID())
			if err != nil {
				slog.Error("Failed to load auth session", "error", err, "session_id", claims.SessionID())
				http.Error(w, `{"error":"failed to verify session"}`, http.StatusInternalServerError)
				return
			}
			if session == nil || session.UserID != claims.UserID() || session.IsExpired(tokens.now()) {
				unauthorized(w)
				return
			}

			ctx := WithIdentity(r.Context(), claims.UserID(), claims.SessionID())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
}
