package session

// ActionKind identifies an operator intent forwarded by the presentation
// surface. The session treats them as opaque signals; all meaning lives in
// the state machine.
type ActionKind string

const (
	// ActionSubmitAddress carries the current wallet address input.
	ActionSubmitAddress ActionKind = "submit_address"
	// ActionProceed starts the guest payment with the submitted address.
	ActionProceed ActionKind = "proceed"
	// ActionLogin starts wallet-provider authentication.
	ActionLogin ActionKind = "login"
	// ActionLogout discards the authenticated identity.
	ActionLogout ActionKind = "logout"
	// ActionPayNow starts the authenticated payment.
	ActionPayNow ActionKind = "pay_now"
	// ActionConfirmSent reports the operator sent funds to the deposit
	// address.
	ActionConfirmSent ActionKind = "confirm_sent"
	// ActionCancel abandons the displayed payment.
	ActionCancel ActionKind = "cancel"
	// ActionBack leaves the deposit address view.
	ActionBack ActionKind = "back"
	// ActionRetry restarts a failed session from scratch.
	ActionRetry ActionKind = "retry"
	// ActionChangeCurrency carries the newly selected display currency.
	ActionChangeCurrency ActionKind = "change_currency"
	// ActionClose dismisses the checkout.
	ActionClose ActionKind = "close"
)

type Action struct {
	Kind  ActionKind
	Value string
}
