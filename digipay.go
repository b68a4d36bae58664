// Package digipay is an embeddable checkout session for collecting one
// cryptocurrency payment. A host constructs a Session from a Config, opens
// it, forwards operator intents from its own presentation layer and receives
// outcomes through the configured hooks.
package digipay

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/digimartpay/digipay-go/domain"
	"github.com/digimartpay/digipay-go/gateway"
	"github.com/digimartpay/digipay-go/internal/session"
	"github.com/digimartpay/digipay-go/wallet"
)

// Action re-exports the operator intent type consumed by Session.Submit.
type Action = session.Action

// Operator intents a presentation layer can submit.
const (
	ActionSubmitAddress  = session.ActionSubmitAddress
	ActionProceed        = session.ActionProceed
	ActionLogin          = session.ActionLogin
	ActionLogout         = session.ActionLogout
	ActionPayNow         = session.ActionPayNow
	ActionConfirmSent    = session.ActionConfirmSent
	ActionCancel         = session.ActionCancel
	ActionBack           = session.ActionBack
	ActionRetry          = session.ActionRetry
	ActionChangeCurrency = session.ActionChangeCurrency
	ActionClose          = session.ActionClose
)

// Config is the construction-time configuration. Exactly one of MerchantKey,
// LinkSlug, InvoiceRef and TransactionRef must be set.
type Config struct {
	MerchantKey    string
	LinkSlug       string
	InvoiceRef     string
	TransactionRef string

	// Amount is a decimal string in the merchant settlement currency.
	// Required unless resuming via TransactionRef.
	Amount      string
	Currency    string
	Currencies  []string
	Description string
	Customer    *domain.Customer
	// Metadata is passed through to the backend and the wallet provider
	// untouched.
	Metadata map[string]any

	OnSuccess func(*domain.Transaction)
	OnCancel  func()
	OnError   func(message string)

	// Wallet is the injected wallet-provider capability. Required.
	Wallet wallet.Provider
	// Renderer receives presentation commands. Optional; nil renders
	// nothing.
	Renderer domain.Renderer

	APIURL     string
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     *zerolog.Logger
}

// Session manages exactly one payment attempt per open/close cycle.
type Session struct {
	machine *session.Machine
}

// New validates the configuration and builds a session. Configuration errors
// abort before any view is shown; they are returned and, when an OnError hook
// is set, also reported through it.
func New(cfg Config) (*Session, error) {
	s, err := build(cfg)
	if err != nil && cfg.OnError != nil {
		cfg.OnError(err.Error())
	}
	return s, err
}

func build(cfg Config) (*Session, error) {
	mode, err := domain.ResolveAddressing(domain.Selectors{
		MerchantKey:    cfg.MerchantKey,
		LinkSlug:       cfg.LinkSlug,
		InvoiceRef:     cfg.InvoiceRef,
		TransactionRef: cfg.TransactionRef,
	})
	if err != nil {
		return nil, err
	}

	if cfg.Wallet == nil {
		return nil, &domain.ConfigurationError{Reason: "wallet provider is required"}
	}

	var amount decimal.Decimal
	switch {
	case cfg.Amount != "":
		amount, err = decimal.NewFromString(cfg.Amount)
		if err != nil || amount.IsNegative() || amount.IsZero() {
			return nil, &domain.ConfigurationError{Reason: "amount must be a positive decimal string"}
		}
	case mode.Kind != domain.ModeTransactionRef:
		// Resuming by transaction ref reads the amount from the backend
		// snapshot; every other mode needs it up front.
		return nil, &domain.ConfigurationError{Reason: "amount is required"}
	}

	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	gw := gateway.New(gateway.Config{
		BaseURL:    cfg.APIURL,
		Timeout:    cfg.Timeout,
		HTTPClient: cfg.HTTPClient,
	}, mode, logger)

	machine := session.New(session.Config{
		Mode:        mode,
		BaseAmount:  amount,
		Currency:    cfg.Currency,
		Currencies:  cfg.Currencies,
		Description: cfg.Description,
		Customer:    cfg.Customer,
		Metadata:    cfg.Metadata,
		OnSuccess:   cfg.OnSuccess,
		OnCancel:    cfg.OnCancel,
		OnError:     cfg.OnError,
	}, gw, cfg.Wallet, cfg.Renderer, nil, logger)

	return &Session{machine: machine}, nil
}

// Open runs the checkout until it reaches a terminal state, Close is called,
// or ctx is cancelled. Re-opening after a close starts a fresh session from
// the loading state.
func (s *Session) Open(ctx context.Context) error {
	return s.machine.Open(ctx)
}

// Close dismisses the checkout and discards all session data. Idempotent and
// safe to call from any state and any goroutine.
func (s *Session) Close() {
	s.machine.Close()
}

// Submit forwards an operator intent from the presentation layer.
func (s *Session) Submit(a Action) {
	s.machine.Submit(a)
}
