package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/MaxMateus/ms-auth/internal/auth"
	"github.com/MaxMateus/ms-auth/internal/models"
	"github.com/MaxMateus/ms-auth/internal/services"
	pkghttp "github.com/MaxMateus/ms-auth/pkg/http"
)

// AuthServiceInterface defines the interface for auth business logic
type AuthServiceInterface interface {
	Login(ctx context.Context, email, password string) (*services.AuthResponse, error)
	Logout(ctx context.Context, tokenString string) error
	Refresh(ctx context.Context, tokenString string) (*services.AuthResponse, error)
	Me(ctx context.Context, userID string) (*services.UserResponse, error)
}

// RegisterServiceInterface defines the interface for account creation
type RegisterServiceInterface interface {
	Register(ctx context.Context, input services.RegisterInput) (*models.User, error)
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service  AuthServiceInterface
	register RegisterServiceInterface
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthServiceInterface, register RegisterServiceInterface) *AuthHandler {
	return &AuthHandler{
		service:  service,
		register: register,
	}
}

// Request DTOs

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest represents the request body for registration
type RegisterRequest struct {
	Name         string `json:"name" validate:"required,min=1,max=255"`
	Email        string `json:"email" validate:"required,email"`
	Password     string `json:"password" validate:"required,min=8,max=128"`
	Cpf          string `json:"cpf" validate:"required"`
	Phone        string `json:"phone" validate:"required"`
	Birthdate    string `json:"birthdate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Gender       string `json:"gender,omitempty" validate:"omitempty,oneof=male female other"`
	AcceptTerms  bool   `json:"accept_terms" validate:"required"`
	Street       string `json:"street,omitempty"`
	Number       string `json:"number,omitempty"`
	Complement   string `json:"complement,omitempty"`
	Neighborhood string `json:"neighborhood,omitempty"`
	City         string `json:"city,omitempty"`
	State        string `json:"state,omitempty" validate:"omitempty,len=2"`
	ZipCode      string `json:"zip_code,omitempty"`
}

// RegisterResponse represents the response body for registration
type RegisterResponse struct {
	User    *services.UserResponse `json:"user"`
	Message string                 `json:"message"`
}

// Register handles account creation
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteUnprocessable(w, err.Error())
		return
	}

	input := services.RegisterInput{
		Name:         req.Name,
		Email:        req.Email,
		Password:     req.Password,
		Cpf:          req.Cpf,
		Phone:        req.Phone,
		Gender:       req.Gender,
		AcceptTerms:  req.AcceptTerms,
		Street:       req.Street,
		Number:       req.Number,
		Complement:   req.Complement,
		Neighborhood: req.Neighborhood,
		City:         req.City,
		State:        strings.ToUpper(req.State),
		ZipCode:      req.ZipCode,
	}
	if req.Birthdate != "" {
		birthdate, err := time.Parse("2006-01-02", req.Birthdate)
		if err != nil {
			pkghttp.WriteUnprocessable(w, "birthdate must be a date in the format 2006-01-02")
			return
		}
		input.Birthdate = &birthdate
	}

	user, err := h.register.Register(r.Context(), input)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, RegisterResponse{
		User:    services.NewUserResponse(user),
		Message: "Account created. Check your email for the verification code.",
	})
}

// Login handles user login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteUnprocessable(w, err.Error())
		return
	}

	resp, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// Logout revokes the authenticated caller's token
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	tokenString := auth.RawTokenFromContext(r)
	if tokenString == "" {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	if err := h.service.Logout(r.Context(), tokenString); err != nil {
		writeAuthError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

// Refresh exchanges the presented bearer token for a fresh one. The route is
// public: the token being rotated arrives in the Authorization header and
// the exchange itself decides whether it is still live.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	tokenString, ok := BearerToken(r)
	if !ok {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	resp, err := h.service.Refresh(r.Context(), tokenString)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// Me returns the authenticated caller's profile
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	record := auth.TokenFromContext(r)
	if record == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	resp, err := h.service.Me(r.Context(), record.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "User not found")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// BearerToken extracts the bearer token from the Authorization header
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// writeAuthError maps service errors to HTTP responses. Credential and
// token failures stay deliberately vague.
func writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidCredentials):
		pkghttp.WriteUnauthorized(w, "Invalid credentials")
	case errors.Is(err, models.ErrAccountNotVerified):
		pkghttp.WriteError(w, http.StatusForbidden, "account_not_verified", "Account email is not verified")
	case errors.Is(err, models.ErrTokenInvalid), errors.Is(err, models.ErrMalformedToken):
		pkghttp.WriteUnauthorized(w, "Invalid or expired token")
	case errors.Is(err, models.ErrInvalidCpf):
		pkghttp.WriteUnprocessable(w, "Invalid CPF")
	case errors.Is(err, models.ErrConflict):
		pkghttp.WriteConflict(w, "Account already exists")
	case errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteBadRequest(w, "Invalid request")
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}
