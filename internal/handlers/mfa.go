package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MaxMateus/ms-auth/internal/auth"
	"github.com/MaxMateus/ms-auth/internal/models"
	pkghttp "github.com/MaxMateus/ms-auth/pkg/http"
)

// MfaServiceInterface defines the interface for verification business logic
type MfaServiceInterface interface {
	Send(ctx context.Context, channel models.Channel, destination, authenticatedUserID string) error
	Verify(ctx context.Context, channel models.Channel, destination, code, authenticatedUserID string) (*models.MfaMethod, error)
	ListMethods(ctx context.Context, userID string) ([]*models.MfaMethod, error)
}

// MfaHandler handles verification-code HTTP requests
type MfaHandler struct {
	service   MfaServiceInterface
	validator auth.TokenValidator
}

// NewMfaHandler creates a new MfaHandler
func NewMfaHandler(service MfaServiceInterface, validator auth.TokenValidator) *MfaHandler {
	return &MfaHandler{
		service:   service,
		validator: validator,
	}
}

// Request DTOs

// SendCodeRequest represents the request body for sending a verification code
type SendCodeRequest struct {
	Channel     string `json:"channel" validate:"required,oneof=email sms whatsapp"`
	Destination string `json:"destination" validate:"required"`
}

// VerifyCodeRequest represents the request body for verifying a code
type VerifyCodeRequest struct {
	Channel     string `json:"channel" validate:"required,oneof=email sms whatsapp"`
	Destination string `json:"destination" validate:"required"`
	Code        string `json:"code" validate:"required,len=6,numeric"`
}

// MfaMethodResponse represents a verification method in the HTTP response
type MfaMethodResponse struct {
	ID          string `json:"id"`
	Channel     string `json:"channel"`
	Destination string `json:"destination"`
	Verified    bool   `json:"verified"`
	CreatedAt   string `json:"created_at"`
}

// NewMfaMethodResponse maps a method record to its response shape
func NewMfaMethodResponse(method *models.MfaMethod) *MfaMethodResponse {
	return &MfaMethodResponse{
		ID:          method.ID,
		Channel:     string(method.Channel),
		Destination: method.Destination,
		Verified:    method.Verified,
		CreatedAt:   method.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// callerID resolves the authenticated user, if any. The send and verify
// routes are public so the email flow works pre-login, but other channels
// need an identity; a bearer token is honored when present and valid.
func (h *MfaHandler) callerID(r *http.Request) string {
	if record := auth.TokenFromContext(r); record != nil {
		return record.UserID
	}
	tokenString, ok := BearerToken(r)
	if !ok {
		return ""
	}
	record, err := h.validator.Validate(r.Context(), tokenString)
	if err != nil {
		return ""
	}
	return record.UserID
}

// Send issues a verification code for a channel/destination pair
func (h *MfaHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req SendCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteUnprocessable(w, err.Error())
		return
	}

	err := h.service.Send(r.Context(), models.Channel(req.Channel), req.Destination, h.callerID(r))
	if err != nil {
		writeMfaError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"message": "Verification code sent"})
}

// Verify consumes a verification code and marks the method verified
func (h *MfaHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteUnprocessable(w, err.Error())
		return
	}

	method, err := h.service.Verify(r.Context(), models.Channel(req.Channel), req.Destination, req.Code, h.callerID(r))
	if err != nil {
		writeMfaError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, NewMfaMethodResponse(method))
}

// VerifyLink handles the link embedded in verification emails. It renders a
// small HTML page instead of JSON since the click comes from a mail client.
func (h *MfaHandler) VerifyLink(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	code := r.URL.Query().Get("code")
	if email == "" || code == "" {
		writeVerifyPage(w, http.StatusBadRequest, "Link inválido", "O link de verificação está incompleto. Solicite um novo código.")
		return
	}

	_, err := h.service.Verify(r.Context(), models.ChannelEmail, email, code, "")
	if err != nil {
		writeVerifyPage(w, http.StatusUnprocessableEntity, "Verificação falhou", "O código é inválido ou expirou. Solicite um novo código.")
		return
	}

	writeVerifyPage(w, http.StatusOK, "E-mail verificado", "Sua conta foi ativada. Você já pode fazer login.")
}

// ListMethods returns the authenticated caller's verification methods
func (h *MfaHandler) ListMethods(w http.ResponseWriter, r *http.Request) {
	record := auth.TokenFromContext(r)
	if record == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	methods, err := h.service.ListMethods(r.Context(), record.UserID)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	out := make([]*MfaMethodResponse, 0, len(methods))
	for _, method := range methods {
		out = append(out, NewMfaMethodResponse(method))
	}
	pkghttp.WriteJSON(w, http.StatusOK, map[string]any{"methods": out})
}

// writeMfaError maps verification errors to HTTP responses. Invalid,
// expired and consumed codes all come back identical.
func writeMfaError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrUnsupportedChannel):
		pkghttp.WriteUnprocessable(w, "Unsupported channel")
	case errors.Is(err, models.ErrMethodOwnerNotFound):
		pkghttp.WriteNotFound(w, "Account not found")
	case errors.Is(err, models.ErrAuthenticationRequired):
		pkghttp.WriteUnauthorized(w, "Authentication required")
	case errors.Is(err, models.ErrInvalidCode):
		pkghttp.WriteUnprocessable(w, "Invalid or expired code")
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}

func writeVerifyPage(w http.ResponseWriter, statusCode int, title, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusCode)
	fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="pt-BR">
<head>
    <meta charset="UTF-8">
    <title>%s</title>
    <style>
        body { font-family: Arial, sans-serif; color: #333; display: flex; justify-content: center; padding-top: 80px; }
        .card { max-width: 480px; padding: 32px; border: 1px solid #eee; border-radius: 8px; text-align: center; }
    </style>
</head>
<body>
    <div class="card">
        <h1>%s</h1>
        <p>%s</p>
    </div>
</body>
</html>
`, title, title, message)
}
