// Package validate holds the pure field checks run before any network call
// is attempted. Nothing here touches the gateway or mutates form state.
package validate

import "regexp"

// Field names used by the registration form.
const (
	FieldUsername        = "username"
	FieldEmail           = "email"
	FieldPassword        = "password"
	FieldConfirmPassword = "confirmPassword"
	FieldReferralCode    = "referralCode"
)

const (
	msgRequired          = "This field is required."
	msgInvalidEmail      = "Please enter a valid email address."
	msgPasswordTooShort  = "Password must be at least 8 characters long."
	msgPasswordsMismatch = "Passwords do not match."

	minPasswordLength = 8
)

// Deliberately loose: local@domain.tld shape only, the server owns the
// authoritative check.
var emailShape = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Values maps field names to their current form values.
type Values map[string]string

// Field validates a single named field against the form and returns a
// human-readable error message, or the empty string when the value is valid.
func Field(name, value string, form Values) string {
	if value == "" {
		return msgRequired
	}
	switch name {
	case FieldEmail:
		if !emailShape.MatchString(value) {
			return msgInvalidEmail
		}
	case FieldPassword:
		if len(value) < minPasswordLength {
			return msgPasswordTooShort
		}
	case FieldConfirmPassword:
		if value != form[FieldPassword] {
			return msgPasswordsMismatch
		}
	}
	return ""
}

// All re-validates every field in the form, including fields that never fired
// a change-triggered check, and returns the per-field error mapping. An empty
// map means the form may be submitted.
func All(form Values) map[string]string {
	errs := make(map[string]string)
	for name, value := range form {
		if msg := Field(name, value, form); msg != "" {
			errs[name] = msg
		}
	}
	return errs
}
