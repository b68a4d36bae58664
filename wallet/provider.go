// Package wallet wraps the external wallet/identity SDK behind a small
// capability interface. The SDK handle is injected at construction; nothing
// in this module reads it from ambient global state.
package wallet

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/digimartpay/digipay-go/domain"
)

// AuthScopes are the provider permissions a checkout session requests.
var AuthScopes = []string{"username", "payments", "wallet_address"}

// PaymentData is the request handed to the provider when starting a payment.
type PaymentData struct {
	Amount   decimal.Decimal
	Memo     string
	Metadata map[string]any
}

type EventKind string

const (
	// EventApprovalReady signals the provider payment is awaiting server-side
	// approval.
	EventApprovalReady EventKind = "approval_ready"
	// EventCompletionReady signals on-chain submission happened and the
	// server may complete; carries the chain transaction id.
	EventCompletionReady EventKind = "completion_ready"
	// EventCancelled signals the user abandoned the provider payment.
	EventCancelled EventKind = "cancelled"
	// EventFailed signals the provider reported an error.
	EventFailed EventKind = "failed"
)

// Event is one step of a provider payment attempt. For a single attempt,
// approval always precedes completion, and at most one of cancelled or failed
// is delivered; the stream closes after the last event.
type Event struct {
	Kind              EventKind
	ProviderPaymentID string
	ChainTxID         string
	Err               error
}

// Provider is the capability set the session needs from the wallet SDK.
type Provider interface {
	// Authenticate suspends until the external provider resolves or rejects.
	// Incomplete payments reported by the provider during authentication are
	// delivered through the notify callback and are informational only.
	Authenticate(ctx context.Context, scopes []string, notify func(providerPaymentID string)) (domain.AuthenticatedUser, error)

	// CreatePayment starts a provider payment and returns its event stream.
	// The call itself only fails on submission problems; payment outcomes
	// arrive as events.
	CreatePayment(ctx context.Context, data PaymentData) (<-chan Event, error)
}
