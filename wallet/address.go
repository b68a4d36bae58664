package wallet

import "regexp"

// addressPattern matches a provider wallet address: exactly 56 characters,
// uppercase letters and digits only.
var addressPattern = regexp.MustCompile(`^[A-Z0-9]{56}$`)

// ValidAddress reports whether s is an acceptable wallet address. Validation
// happens client-side before any network call.
func ValidAddress(s string) bool {
	return addressPattern.MatchString(s)
}
