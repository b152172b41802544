package models

import "github.com/MaxMateus/ms-auth/pkg/contact"

// Channel identifies a verification delivery channel.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelSms      Channel = "sms"
	ChannelWhatsapp Channel = "whatsapp"
)

// Channels lists every supported channel.
var Channels = []Channel{ChannelEmail, ChannelSms, ChannelWhatsapp}

func (c Channel) String() string {
	return string(c)
}

// Valid reports whether c is a supported channel.
func (c Channel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelSms, ChannelWhatsapp:
		return true
	}
	return false
}

// RequiresAuthentication reports whether send/verify on this channel need an
// authenticated caller. The email channel resolves its owner by destination
// address so a not-yet-logged-in user can verify their registration.
func (c Channel) RequiresAuthentication() bool {
	return c != ChannelEmail
}

// ActivatesAccount reports whether verifying this channel flips the owning
// account from pending_verification to active. Only email does.
func (c Channel) ActivatesAccount() bool {
	return c == ChannelEmail
}

// Normalize applies the channel's destination normalization rule.
func (c Channel) Normalize(destination string) string {
	switch c {
	case ChannelEmail:
		return contact.NormalizeEmail(destination)
	case ChannelSms, ChannelWhatsapp:
		return contact.NormalizePhone(destination)
	}
	return destination
}
