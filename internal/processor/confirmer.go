// Package processor wraps the external payment processor's client-side
// confirmation call and translates its result vocabulary into the
// registration flow's vocabulary.
package processor

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// Outcome classifies a confirmation attempt.
type Outcome string

const (
	// OutcomeSucceeded means the payment intent reached the processor's
	// terminal "succeeded" status.
	OutcomeSucceeded Outcome = "succeeded"
	// OutcomeRequiresAction means the processor needs further user input;
	// the payment step must be re-presented, not advanced.
	OutcomeRequiresAction Outcome = "requires_action"
	// OutcomeFailed means the processor reported an explicit error, e.g. a
	// hard decline.
	OutcomeFailed Outcome = "failed"
)

// Result is consumed exactly once by the registration flow.
type Result struct {
	Outcome  Outcome
	IntentID string
	Reason   string
}

// Form is the processor-owned payment element holding card details. Submit
// flushes its pending field-level validation and tokenization; a failure
// there aborts confirmation before any remote call.
type Form interface {
	Submit(ctx context.Context) error
}

// Confirmer performs the processor's client-side confirmation call. It holds
// no state across invocations.
type Confirmer interface {
	Confirm(ctx context.Context, clientSecret string, form Form) (Result, error)
}

// StaticConfirmer simulates a processor that approves every payment. Used by
// the CLI against the sandbox and in tests.
type StaticConfirmer struct{}

// Confirm approves the payment with the intent id carried by the secret, or
// a synthetic one when the secret is opaque.
func (StaticConfirmer) Confirm(ctx context.Context, clientSecret string, form Form) (Result, error) {
	if form != nil {
		if err := form.Submit(ctx); err != nil {
			return Result{Outcome: OutcomeFailed, Reason: err.Error()}, nil
		}
	}
	intentID := IntentIDFromSecret(clientSecret)
	if intentID == "" {
		intentID = "pi_" + uuid.NewString()
	}
	return Result{Outcome: OutcomeSucceeded, IntentID: intentID}, nil
}

// IntentIDFromSecret extracts the payment intent id from a secret of the
// form "<intent-id>_secret_<nonce>". It returns empty for other shapes.
func IntentIDFromSecret(clientSecret string) string {
	id, _, found := strings.Cut(clientSecret, "_secret_")
	if !found {
		return ""
	}
	return id
}
