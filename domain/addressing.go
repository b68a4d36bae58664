package domain

type AddressingKind string

const (
	ModeMerchantKey    AddressingKind = "merchant_key"
	ModeLinkSlug       AddressingKind = "link_slug"
	ModeInvoice        AddressingKind = "invoice"
	ModeTransactionRef AddressingKind = "transaction_ref"
)

// AddressingMode fixes how the session identifies itself to the backend for
// its whole lifetime. Exactly one of the four selectors produces a mode;
// every gateway call reads it to pick routes and headers.
type AddressingMode struct {
	Kind  AddressingKind
	Value string
}

// Selectors holds the raw construction-time identity inputs.
type Selectors struct {
	MerchantKey    string
	LinkSlug       string
	InvoiceRef     string
	TransactionRef string
}

// ResolveAddressing validates the mutually exclusive selector set and returns
// the single active mode. Zero selectors and more than one selector both fail
// construction.
func ResolveAddressing(s Selectors) (AddressingMode, error) {
	var modes []AddressingMode
	if s.MerchantKey != "" {
		modes = append(modes, AddressingMode{Kind: ModeMerchantKey, Value: s.MerchantKey})
	}
	if s.LinkSlug != "" {
		modes = append(modes, AddressingMode{Kind: ModeLinkSlug, Value: s.LinkSlug})
	}
	if s.InvoiceRef != "" {
		modes = append(modes, AddressingMode{Kind: ModeInvoice, Value: s.InvoiceRef})
	}
	if s.TransactionRef != "" {
		modes = append(modes, AddressingMode{Kind: ModeTransactionRef, Value: s.TransactionRef})
	}

	switch len(modes) {
	case 0:
		return AddressingMode{}, &ConfigurationError{Reason: "missing identity: one of merchant key, link slug, invoice ref or transaction ref is required"}
	case 1:
		return modes[0], nil
	default:
		return AddressingMode{}, &ConfigurationError{Reason: "ambiguous identity: merchant key, link slug, invoice ref and transaction ref are mutually exclusive"}
	}
}
