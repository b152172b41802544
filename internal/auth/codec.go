package auth

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/MaxMateus/ms-auth/internal/models"
)

// ExtractTokenID pulls the jti out of a bearer token string without
// verifying its signature. It is a pre-filter only: cryptographic validity
// is irrelevant here because every lookup is checked against the
// access_tokens table, which only matches tokens the authority issued.
func ExtractTokenID(tokenString string) (string, error) {
	parts := strings.Split(tokenString, ".")
	if len(parts) != 3 {
		return "", models.ErrMalformedToken
	}

	payload, err := decodeSegment(parts[1])
	if err != nil {
		return "", models.ErrMalformedToken
	}

	var claims struct {
		Jti string `json:"jti"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return "", models.ErrMalformedToken
	}

	if claims.Jti == "" {
		return "", models.ErrMalformedToken
	}

	return claims.Jti, nil
}

// decodeSegment decodes a base64url JWT segment, tolerating both padded and
// unpadded forms.
func decodeSegment(segment string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(segment, "="))
}
