package wallet

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/digimartpay/digipay-go/domain"
)

// SDK is the callback-style surface exposed by the external provider. Bridge
// adapts it to the Provider event-stream interface.
type SDK interface {
	Authenticate(scopes []string, onIncompletePaymentFound func(providerPaymentID string)) (AuthResult, error)
	CreatePayment(amount string, memo string, metadata map[string]any, callbacks Callbacks) error
}

// AuthResult is the raw provider authentication response.
type AuthResult struct {
	AccessToken string
	UID         string
	Username    string
}

// Callbacks mirrors the provider SDK callback set. The provider guarantees at
// most one terminal callback per payment; Bridge relies on that precondition
// rather than policing it.
type Callbacks struct {
	OnReadyForServerApproval   func(providerPaymentID string)
	OnReadyForServerCompletion func(providerPaymentID, chainTxID string)
	OnCancel                   func(providerPaymentID string)
	OnError                    func(err error, providerPaymentID string)
}

// Bridge turns a callback-style SDK handle into a Provider.
type Bridge struct {
	sdk    SDK
	logger zerolog.Logger
}

func NewBridge(sdk SDK, logger zerolog.Logger) *Bridge {
	return &Bridge{
		sdk:    sdk,
		logger: logger.With().Str("component", "wallet_bridge").Logger(),
	}
}

func (b *Bridge) Authenticate(ctx context.Context, scopes []string, notify func(providerPaymentID string)) (domain.AuthenticatedUser, error) {
	type result struct {
		user domain.AuthenticatedUser
		err  error
	}
	ch := make(chan result, 1)

	go func() {
		auth, err := b.sdk.Authenticate(scopes, func(providerPaymentID string) {
			b.logger.Info().Str("provider_payment_id", providerPaymentID).Msg("Incomplete payment reported during authentication")
			if notify != nil {
				notify(providerPaymentID)
			}
		})
		if err != nil {
			ch <- result{err: &domain.AdapterError{Message: err.Error()}}
			return
		}
		ch <- result{user: domain.AuthenticatedUser{
			UID:         auth.UID,
			Username:    auth.Username,
			AccessToken: auth.AccessToken,
		}}
	}()

	select {
	case <-ctx.Done():
		return domain.AuthenticatedUser{}, ctx.Err()
	case r := <-ch:
		return r.user, r.err
	}
}

func (b *Bridge) CreatePayment(ctx context.Context, data PaymentData) (<-chan Event, error) {
	events := make(chan Event, 4)

	var once sync.Once
	terminate := func(e Event) {
		once.Do(func() {
			events <- e
			close(events)
		})
	}

	callbacks := Callbacks{
		OnReadyForServerApproval: func(providerPaymentID string) {
			events <- Event{Kind: EventApprovalReady, ProviderPaymentID: providerPaymentID}
		},
		OnReadyForServerCompletion: func(providerPaymentID, chainTxID string) {
			terminate(Event{Kind: EventCompletionReady, ProviderPaymentID: providerPaymentID, ChainTxID: chainTxID})
		},
		OnCancel: func(providerPaymentID string) {
			terminate(Event{Kind: EventCancelled, ProviderPaymentID: providerPaymentID})
		},
		OnError: func(err error, providerPaymentID string) {
			terminate(Event{Kind: EventFailed, ProviderPaymentID: providerPaymentID, Err: &domain.AdapterError{Message: err.Error()}})
		},
	}

	if err := b.sdk.CreatePayment(data.Amount.String(), data.Memo, data.Metadata, callbacks); err != nil {
		return nil, &domain.AdapterError{Message: err.Error()}
	}

	return events, nil
}
