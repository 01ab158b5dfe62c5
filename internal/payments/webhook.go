// Package payments verifies and dispatches Stripe webhook events for
// BarkBook subscriptions and payments.
package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

var (
	ErrNotConfigured    = errors.New("stripe configuration incomplete")
	ErrMissingSignature = errors.New("missing stripe signature")
	ErrInvalidSignature = errors.New("webhook signature verification failed")
)

// Event types acted on. Everything else is acknowledged and ignored.
const (
	PaymentSucceeded      stripe.EventType = "payment_intent.succeeded"
	PaymentFailed         stripe.EventType = "payment_intent.payment_failed"
	SubscriptionCreated   stripe.EventType = "customer.subscription.created"
	SubscriptionUpdated   stripe.EventType = "customer.subscription.updated"
	SubscriptionDeleted   stripe.EventType = "customer.subscription.deleted"
	InvoicePaymentSuccess stripe.EventType = "invoice.payment_succeeded"
	InvoicePaymentFailed  stripe.EventType = "invoice.payment_failed"
)

// Outcome reports what happened to one delivered event.
type Outcome struct {
	EventID  string           `json:"event_id"`
	Type     stripe.EventType `json:"type"`
	ObjectID string           `json:"object_id,omitempty"`
	Handled  bool             `json:"handled"`
}

// Webhooks verifies Stripe signatures and dispatches events.
type Webhooks struct {
	secret string
	logger *slog.Logger
}

// NewWebhooks returns a handler for the signing secret. An empty secret is
// allowed; every event is then rejected with ErrNotConfigured.
func NewWebhooks(secret string, logger *slog.Logger) *Webhooks {
	if logger == nil {
		logger = slog.Default()
	}
	return &Webhooks{secret: secret, logger: logger}
}

// Configured reports whether a signing secret is set.
func (w *Webhooks) Configured() bool {
	return w.secret != ""
}

// Handle verifies payload against the Stripe-Signature header and logs the event.
func (w *Webhooks) Handle(ctx context.Context, payload []byte, signature string) (Outcome, error) {
	if !w.Configured() {
		return Outcome{}, ErrNotConfigured
	}
	if signature == "" {
		return Outcome{}, ErrMissingSignature
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, w.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		w.logger.Warn("stripe signature rejected", "error", err)
		return Outcome{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	out := Outcome{EventID: event.ID, Type: event.Type, ObjectID: objectID(event)}
	log := w.logger.With("event_id", event.ID, "type", string(event.Type), "object_id", out.ObjectID)

	switch event.Type {
	case PaymentSucceeded:
		log.Info("payment succeeded")
	case PaymentFailed:
		log.Warn("payment failed")
	case SubscriptionCreated, SubscriptionUpdated:
		log.Info("subscription changed")
	case SubscriptionDeleted:
		log.Info("subscription cancelled")
	case InvoicePaymentSuccess:
		log.Info("invoice paid")
	case InvoicePaymentFailed:
		log.Warn("invoice payment failed")
	default:
		log.Debug("unhandled stripe event")
		return out, nil
	}

	out.Handled = true
	return out, nil
}

func objectID(event stripe.Event) string {
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return ""
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(event.Data.Raw, &obj); err != nil {
		return ""
	}
	return obj.ID
}
