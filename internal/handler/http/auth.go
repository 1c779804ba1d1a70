package http

import (
	"log/slog"
	"net/http"

	"github.com/comeencasa/restaurant-api/internal/auth"
	"github.com/comeencasa/restaurant-api/internal/service"
	apperrors "github.com/comeencasa/restaurant-api/pkg/errors"
	"github.com/comeencasa/restaurant-api/pkg/httputil"
	"github.com/comeencasa/restaurant-api/pkg/middleware"
	"github.com/comeencasa/restaurant-api/pkg/validator"
)

// AuthHandler handles registration, login and the token lifecycle.
type AuthHandler struct {
	service *service.AuthService
	logger  *slog.Logger
}

// NewAuthHandler creates a new auth HTTP handler.
func NewAuthHandler(svc *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{service: svc, logger: logger}
}

// --- Request DTOs ---

// RegisterRequest is the JSON request body for registration. bcrypt only
// looks at the first 72 bytes of a password, so longer ones are refused.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Username string `json:"username" validate:"required,alphanum,min=3,max=50"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// LoginRequest accepts either an email or a username.
type LoginRequest struct {
	Email    string `json:"email" validate:"required_without=Username,omitempty,email"`
	Username string `json:"username" validate:"required_without=Email,omitempty,max=50"`
	Password string `json:"password" validate:"required,max=72"`
}

// RefreshRequest is the JSON request body for token refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// --- Handlers ---

// Register handles POST /api/v1/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	result, err := h.service.Register(r.Context(), service.RegisterInput{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	switch res := result.(type) {
	case service.RegisterCreated:
		httputil.WriteData(w, http.StatusCreated, res.User)
	case service.RegisterConflict:
		value := req.Email
		if res.Field == "username" {
			value = req.Username
		}
		httputil.WriteError(w, r, apperrors.AlreadyExists("user", res.Field, value), h.logger)
	}
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	result, err := h.service.Login(r.Context(), service.LoginInput{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	switch res := result.(type) {
	case service.LoginSucceeded:
		httputil.WriteData(w, http.StatusOK, res.Tokens)
	case service.LoginRejected:
		httputil.WriteChallenge(w, r, "Bearer", "incorrect username, email or password")
	}
}

// Refresh handles POST /api/v1/auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	tokens, err := h.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, tokens)
}

// Logout handles POST /api/v1/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFromContext(r.Context())
	if err := h.service.Logout(r.Context(), middleware.UserIDFromContext(r.Context()), claims); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
