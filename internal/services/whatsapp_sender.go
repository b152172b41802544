package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// WhatsappCodeSender sends verification codes through the Meta WhatsApp
// Cloud API. No pack provides a WhatsApp SDK, so this talks to the Graph
// API over plain HTTP.
type WhatsappCodeSender struct {
	httpClient  *http.Client
	apiURL      string
	accessToken string
}

// NewWhatsappCodeSender creates a new WhatsApp code sender. apiURL is the
// Graph API messages endpoint for the business phone number, e.g.
// https://graph.facebook.com/v19.0/{phone-number-id}/messages.
func NewWhatsappCodeSender(apiURL, accessToken string) *WhatsappCodeSender {
	return &WhatsappCodeSender{
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		apiURL:      apiURL,
		accessToken: accessToken,
	}
}

type whatsappMessage struct {
	MessagingProduct string       `json:"messaging_product"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Text             whatsappText `json:"text"`
}

type whatsappText struct {
	Body string `json:"body"`
}

// SendCode sends the verification code to the given phone number
func (s *WhatsappCodeSender) SendCode(ctx context.Context, destination, code string) error {
	payload := whatsappMessage{
		MessagingProduct: "whatsapp",
		To:               destination,
		Type:             "text",
		Text:             whatsappText{Body: fmt.Sprintf(codeMessage, code)},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode whatsapp payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build whatsapp request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.accessToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Keep a short excerpt of the API error for the logs
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("whatsapp API returned %d: %s", resp.StatusCode, string(excerpt))
	}

	return nil
}
