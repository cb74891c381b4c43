package channel

import (
	"context"
	"errors"
	"strings"

	"github.com/FayceMOTIV/fastgross-pro-sub006/internal/model"
)

// ErrNotConfigured marks a send that failed because the tenant (or the
// process) lacks the integration settings for the channel. Distinct from a
// transport failure: the same call will keep failing until an operator
// fixes configuration.
var ErrNotConfigured = errors.New("channel integration not configured")

// Message is one rendered outbound message. TenantID selects per-tenant
// integration settings where the transport needs them.
type Message struct {
	TenantID string
	To       string
	Subject  string
	Body     string
}

// Result is the uniform success marker returned by every sender.
type Result struct {
	Channel    model.Channel
	ProviderID string
}

// Sender performs exactly one outbound call per invocation and never
// retries internally. Retries belong to the caller's batch handling.
type Sender interface {
	Send(ctx context.Context, msg Message) (*Result, error)
}

// Registry maps a channel to its sender, so adding a channel stays a
// one-line wiring change.
type Registry map[model.Channel]Sender

// digitsOnly strips a phone number down to its digits for SMS and
// WhatsApp transports.
func digitsOnly(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
