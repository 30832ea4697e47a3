package api

import (
	"errors"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/ashureev/storefront/internal/auth"
	"github.com/ashureev/storefront/internal/domain"
	"github.com/ashureev/storefront/internal/store"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

type authResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *domain.User `json:"user"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an account and signs the shopper in.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	email := normalizeEmail(req.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		Error(w, http.StatusBadRequest, "invalid email")
		return
	}

	hash, err := h.hasher.Hash(req.Password)
	if errors.Is(err, auth.ErrPasswordTooShort) {
		Error(w, http.StatusBadRequest, "password too short")
		return
	}
	if errors.Is(err, auth.ErrPasswordTooLong) {
		Error(w, http.StatusBadRequest, "password too long")
		return
	}
	if err != nil {
		slog.Error("Failed to hash password", "error", err)
		Error(w, http.StatusInternalServerError, "failed to create account")
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}

	user := &domain.User{Email: email, Name: name, PasswordHash: hash}
	if err := h.repo.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			Error(w, http.StatusConflict, "email already registered")
			return
		}
		slog.Error("Failed to create user", "error", err)
		Error(w, http.StatusInternalServerError, "failed to create account")
		return
	}

	slog.Info("User registered", "user_id", user.ID)
	h.issueSession(w, r, user, http.StatusCreated)
}

// Login exchanges credentials for an access token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.repo.GetUserByEmail(r.Context(), normalizeEmail(req.Email))
	if err != nil {
		slog.Error("Failed to look up user", "error", err)
		Error(w, http.StatusInternalServerError, "failed to sign in")
		return
	}
	if user == nil || h.hasher.Verify(user.PasswordHash, req.Password) != nil {
		Error(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	h.issueSession(w, r, user, http.StatusOK)
}

func (h *Handler) issueSession(w http.ResponseWriter, r *http.Request, user *domain.User, status int) {
	token, claims, err := h.tokens.Issue(user.ID)
	if err != nil {
		slog.Error("Failed to issue token", "error", err, "user_id", user.ID)
		Error(w, http.StatusInternalServerError, "failed to sign in")
		return
	}

	session := &domain.AuthSession{
		ID:        claims.SessionID(),
		UserID:    user.ID,
		ExpiresAt: claims.ExpiresAt.Time,
		CreatedAt: claims.IssuedAt.Time,
	}
	if err := h.repo.CreateSession(r.Context(), session); err != nil {
		slog.Error("Failed to persist session", "error", err, "user_id", user.ID)
		Error(w, http.StatusInternalServerError, "failed to sign in")
		return
	}

	slog.Info("Session issued", "user_id", user.ID, "session_id", session.ID)
	JSON(w, status, authResponse{Token: token, ExpiresAt: session.ExpiresAt, User: user})
}

// Me returns the authenticated shopper.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	user, err := h.repo.GetUser(r.Context(), userID)
	if err != nil {
		slog.Error("Failed to get user", "error", err, "user_id", userID)
		Error(w, http.StatusInternalServerError, "failed to load user")
		return
	}
	if user == nil {
		Error(w, http.StatusUnauthorized, "user not found")
		return
	}

	JSON(w, http.StatusOK, user)
}

// Logout revokes the session behind the presented token.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	sessionID := auth.SessionIDFromContext(r.Context())
	if err := h.repo.DeleteSession(r.Context(), sessionID); err != nil {
		slog.Error("Failed to revoke session", "error", err, "session_id", sessionID)
		Error(w, http.StatusInternalServerError, "failed to sign out")
		return
	}

	slog.Info("Session revoked", "user_id", auth.UserIDFromContext(r.Context()), "session_id", sessionID)
	w.WriteHeader(http.StatusNoContent)
}
