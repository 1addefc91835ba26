package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/orthocare/orthocare/internal/auth"
	"github.com/orthocare/orthocare/internal/metrics"
)

// Authenticator is the subset of auth.Service the HTTP layer uses.
type Authenticator interface {
	SignIn(ctx context.Context, email, password string) (*auth.Grant, error)
	SignOut(ctx context.Context, token string) error
	CurrentUser(ctx context.Context, token string) (*auth.User, error)
}

type AuthHandler struct {
	auth         Authenticator
	secureCookie bool
	log          zerolog.Logger
}

func NewAuthHandler(a Authenticator, secureCookie bool, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:         a,
		secureCookie: secureCookie,
		log:          log.With().Str("handler", "auth").Logger(),
	}
}

// Routes registers the public sign-in and sign-out endpoints.
func (h *AuthHandler) Routes(r chi.Router) {
	r.Post("/auth/signin", h.SignIn)
	r.Post("/auth/signout", h.SignOut)
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignIn handles POST /api/v1/auth/signin.
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		WriteError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	g, err := h.auth.SignIn(r.Context(), req.Email, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		metrics.SignInsTotal.WithLabelValues("rejected").Inc()
		WriteError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	if err != nil {
		metrics.SignInsTotal.WithLabelValues("error").Inc()
		h.log.Error().Err(err).Msg("sign-in failed")
		WriteError(w, http.StatusInternalServerError, "sign-in failed")
		return
	}
	metrics.SignInsTotal.WithLabelValues("ok").Inc()

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    g.Token,
		Path:     "/",
		Expires:  g.ExpiresAt,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	WriteJSON(w, http.StatusOK, g)
}

// SignOut handles POST /api/v1/auth/signout. It always clears the cookie.
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.SignOut(r.Context(), SessionToken(r)); err != nil {
		h.log.Error().Err(err).Msg("sign-out failed")
		WriteError(w, http.StatusInternalServerError, "sign-out failed")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/v1/auth/me behind SessionAuth.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFrom(r.Context())
	if u == nil {
		WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	WriteJSON(w, http.StatusOK, u)
}
