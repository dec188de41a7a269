package registration

import (
	"errors"
	"fmt"
)

// Stage identifies where in the flow a failure happened.
type Stage string

const (
	StageValidate         Stage = "validate"
	StageInitiate         Stage = "initiate"
	StagePayment          Stage = "payment"
	StageFinalize         Stage = "finalize"
	StagePostPaymentLogin Stage = "postPaymentLogin"
)

// Kind classifies a failure independent of where it happened.
type Kind string

const (
	// KindValidation: local check failed, no network call was made.
	KindValidation Kind = "validation"
	// KindTransport: the backend call itself failed (network or HTTP error).
	KindTransport Kind = "transport"
	// KindContract: the call succeeded but the response is missing a
	// required field, e.g. an absent client secret.
	KindContract Kind = "contract"
	// KindPayment: the processor declined or wants further user action.
	KindPayment Kind = "payment"
	// KindConsistency: payment was captured but finalize failed. Never
	// retried as a fresh attempt; a new initiate would charge again.
	KindConsistency Kind = "consistency"
	// KindAuth: the post-payment credential login failed. The account
	// exists and is paid for.
	KindAuth Kind = "auth"
)

// FlowError is a stage-tagged failure surfaced by the flow. Nothing below
// the flow boundary reaches the caller unwrapped.
type FlowError struct {
	Stage  Stage
	Kind   Kind
	Reason string
	// Fields carries the per-field error mapping for validation failures.
	Fields map[string]string
	// Retryable reports whether re-submitting the same step is safe.
	Retryable bool
}

func (e *FlowError) Error() string {
	return fmt.Sprintf("%s: %s", e.Stage, e.Reason)
}

// ErrAbandoned is returned when an asynchronous result resolves after the
// flow attempt that issued it was abandoned; its result was discarded.
var ErrAbandoned = errors.New("registration attempt abandoned")

// ErrInFlight is returned when a step is submitted while the previous
// submission is still running.
var ErrInFlight = errors.New("a submission is already in flight")

// ErrInvalidState is returned when a step is invoked from a state that does
// not allow it.
var ErrInvalidState = errors.New("operation not allowed in current state")

// AsFlowError unwraps err into a FlowError when it is one.
func AsFlowError(err error) (*FlowError, bool) {
	var fe *FlowError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
