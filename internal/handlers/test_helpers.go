package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MaxMateus/ms-auth/internal/auth"
	"github.com/MaxMateus/ms-auth/internal/models"
	"github.com/MaxMateus/ms-auth/internal/services"
	pkghttp "github.com/MaxMateus/ms-auth/pkg/http"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithAuthContext attaches a validated token record to the request context,
// the way the auth middleware would for authenticated endpoints
func WithAuthContext(req *http.Request, userID, tokenString string) *http.Request {
	record := &models.AccessToken{
		ID:        "token-1",
		UserID:    userID,
		ClientID:  "test-client",
		Scopes:    []string{"*"},
		ExpiresAt: time.Now().Add(time.Hour),
	}
	return req.WithContext(auth.NewContext(req.Context(), record, tokenString))
}

// AssertJSONResponse decodes a JSON response body after checking the status
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, out interface{}) {
	t.Helper()
	require.Equal(t, expectedStatus, w.Code, "unexpected status, body: %s", w.Body.String())
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
}

// AssertErrorResponse checks the status code and machine-readable error code
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedCode string) {
	t.Helper()
	require.Equal(t, expectedStatus, w.Code, "unexpected status, body: %s", w.Body.String())
	var resp pkghttp.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, expectedCode, resp.Error)
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	LoginFunc   func(ctx context.Context, email, password string) (*services.AuthResponse, error)
	LogoutFunc  func(ctx context.Context, tokenString string) error
	RefreshFunc func(ctx context.Context, tokenString string) (*services.AuthResponse, error)
	MeFunc      func(ctx context.Context, userID string) (*services.UserResponse, error)
}

func (m *MockAuthService) Login(ctx context.Context, email, password string) (*services.AuthResponse, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, email, password)
	}
	return nil, models.ErrInvalidCredentials
}

func (m *MockAuthService) Logout(ctx context.Context, tokenString string) error {
	if m.LogoutFunc != nil {
		return m.LogoutFunc(ctx, tokenString)
	}
	return nil
}

func (m *MockAuthService) Refresh(ctx context.Context, tokenString string) (*services.AuthResponse, error) {
	if m.RefreshFunc != nil {
		return m.RefreshFunc(ctx, tokenString)
	}
	return nil, models.ErrTokenInvalid
}

func (m *MockAuthService) Me(ctx context.Context, userID string) (*services.UserResponse, error) {
	if m.MeFunc != nil {
		return m.MeFunc(ctx, userID)
	}
	return nil, models.ErrNotFound
}

// MockRegisterService implements RegisterServiceInterface for testing
type MockRegisterService struct {
	RegisterFunc func(ctx context.Context, input services.RegisterInput) (*models.User, error)
}

func (m *MockRegisterService) Register(ctx context.Context, input services.RegisterInput) (*models.User, error) {
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, input)
	}
	return nil, models.ErrInternalServer
}

// MockMfaService implements MfaServiceInterface for testing
type MockMfaService struct {
	SendFunc        func(ctx context.Context, channel models.Channel, destination, authenticatedUserID string) error
	VerifyFunc      func(ctx context.Context, channel models.Channel, destination, code, authenticatedUserID string) (*models.MfaMethod, error)
	ListMethodsFunc func(ctx context.Context, userID string) ([]*models.MfaMethod, error)
}

func (m *MockMfaService) Send(ctx context.Context, channel models.Channel, destination, authenticatedUserID string) error {
	if m.SendFunc != nil {
		return m.SendFunc(ctx, channel, destination, authenticatedUserID)
	}
	return nil
}

func (m *MockMfaService) Verify(ctx context.Context, channel models.Channel, destination, code, authenticatedUserID string) (*models.MfaMethod, error) {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, channel, destination, code, authenticatedUserID)
	}
	return nil, models.ErrInvalidCode
}

func (m *MockMfaService) ListMethods(ctx context.Context, userID string) ([]*models.MfaMethod, error) {
	if m.ListMethodsFunc != nil {
		return m.ListMethodsFunc(ctx, userID)
	}
	return []*models.MfaMethod{}, nil
}

// MockTokenValidator implements auth.TokenValidator for testing
type MockTokenValidator struct {
	ValidateFunc func(ctx context.Context, tokenString string) (*models.AccessToken, error)
}

func (m *MockTokenValidator) Validate(ctx context.Context, tokenString string) (*models.AccessToken, error) {
	if m.ValidateFunc != nil {
		return m.ValidateFunc(ctx, tokenString)
	}
	return nil, models.ErrTokenInvalid
}
