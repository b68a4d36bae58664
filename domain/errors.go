package domain

import "fmt"

// ConfigurationError reports bad construction-time input. It is fatal and
// surfaced before any view is shown.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

// CapabilityError reports an operation invoked under an addressing mode that
// does not support it. This is a programming error, not a user-flow outcome.
type CapabilityError struct {
	Operation string
	Mode      AddressingKind
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("operation %q is not available in %s mode", e.Operation, e.Mode)
}

// GatewayError reports a rejected backend call. Message carries the backend
// error envelope text when present, otherwise a generic fallback.
type GatewayError struct {
	Status  int
	Message string
}

func (e *GatewayError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("gateway request failed with status %d", e.Status)
}

// AdapterError reports a wallet-provider failure, either a rejected call or
// an error event from the provider.
type AdapterError struct {
	Message string
}

func (e *AdapterError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "wallet provider call failed"
}

// InvariantViolation reports an impossible internal state, such as a
// completion event arriving with no recorded transaction. It is fatal for the
// session and surfaced as a generic error.
type InvariantViolation struct {
	Detail string
}

func (e *InvariantViolation) Error() string {
	return "internal session error: " + e.Detail
}
