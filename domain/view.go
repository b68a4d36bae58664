package domain

import "github.com/shopspring/decimal"

type View string

const (
	ViewLoading              View = "loading"
	ViewInitial              View = "initial"
	ViewWalletAddressDisplay View = "wallet_address_display"
	ViewAuthApproval         View = "auth_approval"
	ViewAuthenticated        View = "authenticated"
	ViewSuccess              View = "success"
	ViewError                View = "error"
)

// Snapshot is the full displayable state of the session at one instant. The
// session emits a fresh snapshot on every state change; renderers must not
// retain references to mutate it.
type Snapshot struct {
	View            View
	Merchant        MerchantContext
	Description     string
	Amount          decimal.Decimal
	Currency        string
	FormattedAmount string
	Currencies      []string
	// Converting is set while a display-currency conversion is in flight;
	// renderers show a skeleton over the amount.
	Converting bool
	// Verifying is set between server approval and completion on the wallet
	// address view.
	Verifying        bool
	CountdownSeconds int
	Transaction      *Transaction
	User             *AuthenticatedUser
	// Notice is a non-fatal informational line, e.g. an incomplete payment
	// reported during provider authentication.
	Notice string
	// AddressError is the inline validation message for the wallet address
	// input on the initial view.
	AddressError string
	ErrorMessage string
}

// Renderer is the presentation command surface. The session never touches
// presentation primitives; it issues Render on every state change and
// RenderTick once per countdown second so implementations can update the
// timer field without re-rendering the view.
type Renderer interface {
	Render(s Snapshot)
	RenderTick(secondsRemaining int)
}

// NopRenderer discards all render commands. It backs headless sessions and
// tests that only observe hooks.
type NopRenderer struct{}

func (NopRenderer) Render(Snapshot) {}
func (NopRenderer) RenderTick(int)  {}
