package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MaxMateus/ms-auth/internal/models"
	"github.com/MaxMateus/ms-auth/pkg/logger"
)

// Verification codes expire five minutes after being issued. The dispatch
// messages state this so the recipient knows how long they have.
const codeMessage = "Seu código de verificação é %s. Ele expira em 5 minutos."

// CodeSender delivers a verification code over a single channel
type CodeSender interface {
	SendCode(ctx context.Context, destination, code string) error
}

// CodeDispatcher routes a verification code to the sender for its channel.
// Delivery runs after the code is already persisted, so failures are logged
// and swallowed rather than rolled back; the user can always re-request.
type CodeDispatcher struct {
	email    CodeSender
	sms      CodeSender
	whatsapp CodeSender
	logger   *slog.Logger
}

// NewCodeDispatcher creates a new CodeDispatcher
func NewCodeDispatcher(email, sms, whatsapp CodeSender, log *slog.Logger) *CodeDispatcher {
	return &CodeDispatcher{
		email:    email,
		sms:      sms,
		whatsapp: whatsapp,
		logger:   log,
	}
}

// Dispatch delivers the code over the given channel. Always returns nil for
// supported channels; delivery failures are logged only.
func (d *CodeDispatcher) Dispatch(ctx context.Context, channel models.Channel, destination, code string) error {
	var sender CodeSender
	switch channel {
	case models.ChannelEmail:
		sender = d.email
	case models.ChannelSms:
		sender = d.sms
	case models.ChannelWhatsapp:
		sender = d.whatsapp
	default:
		return fmt.Errorf("%w: %s", models.ErrUnsupportedChannel, channel)
	}

	if err := sender.SendCode(ctx, destination, code); err != nil {
		d.logger.Error("verification code dispatch failed",
			slog.String("channel", string(channel)),
			slog.String("destination", logger.SanitizedDestination(destination)),
			slog.Any("error", err))
		return nil
	}

	d.logger.Info("verification code dispatched",
		slog.String("channel", string(channel)),
		slog.String("destination", logger.SanitizedDestination(destination)))
	return nil
}
