// Package registration drives the two-phase paid-signup state machine:
// collect details, obtain a payment intent, confirm the payment, finalize
// the account, establish a session. The machine has no rendering dependency;
// a UI layer observes it through transition events.
package registration

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/refera-net/refera/internal/api"
	"github.com/refera-net/refera/internal/processor"
	"github.com/refera-net/refera/internal/validate"
)

// State of the registration flow.
type State string

const (
	StateCollectingDetails State = "collecting_details"
	StateAwaitingPayment   State = "awaiting_payment"
	StateFinalizing        State = "finalizing"
	StateAuthenticated     State = "authenticated"
	StateFailed            State = "failed"
)

const consistencyMessage = "Your payment was captured, but finalizing your registration failed. " +
	"Please contact support instead of starting a new registration."

// Backend is the slice of the remote surface the flow needs.
type Backend interface {
	InitiateRegistration(ctx context.Context, req api.RegistrationIntentRequest) (api.RegistrationIntentResponse, error)
	ConfirmRegistration(ctx context.Context, req api.ConfirmRegistrationRequest) error
}

// Authenticator establishes the session after a finalized registration.
type Authenticator interface {
	Login(ctx context.Context, identifier, password string) (api.Identity, error)
}

// Transition is emitted after every settled step so a rendering layer can
// react without the flow knowing about rendering.
type Transition struct {
	From  State
	To    State
	Stage Stage
	Err   *FlowError
}

// Flow is a single in-flight registration attempt. One instance per attempt;
// it is not meant to be reused after Authenticated or Abandon.
type Flow struct {
	backend   Backend
	confirmer processor.Confirmer
	auth      Authenticator
	logger    *slog.Logger
	notify    func(Transition)

	mu           sync.Mutex
	state        State
	inFlight     bool
	attempt      string
	draft        Draft
	clientSecret string
	intentID     string
	identity     api.Identity
	fieldErrors  map[string]string
	lastErr      *FlowError
}

// Option configures a Flow.
type Option func(*Flow)

// WithNotify registers a transition observer. Called synchronously with the
// flow lock released.
func WithNotify(fn func(Transition)) Option {
	return func(f *Flow) { f.notify = fn }
}

// New builds a flow in the CollectingDetails state.
func New(backend Backend, confirmer processor.Confirmer, auth Authenticator, logger *slog.Logger, opts ...Option) *Flow {
	f := &Flow{
		backend:   backend,
		confirmer: confirmer,
		auth:      auth,
		logger:    logger,
		state:     StateCollectingDetails,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// State returns the current flow state.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// FieldErrors returns the per-field error mapping from the last validation.
func (f *Flow) FieldErrors() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fieldErrors
}

// LastError returns the most recent stage-tagged failure, if any.
func (f *Flow) LastError() *FlowError {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastErr
}

// Identity returns the authenticated identity once the flow completed.
func (f *Flow) Identity() (api.Identity, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != StateAuthenticated {
		return api.Identity{}, false
	}
	return f.identity, true
}

// SubmitDetails validates the draft and initiates registration with the
// backend. No network call is made unless every field passes aggregate
// validation. On success the flow holds the client secret and awaits
// payment; confirmPassword is dropped, email and password are retained for
// finalize and the post-payment login.
func (f *Flow) SubmitDetails(ctx context.Context, draft Draft) error {
	f.mu.Lock()
	if f.inFlight {
		f.mu.Unlock()
		return ErrInFlight
	}
	if f.state != StateCollectingDetails && f.state != StateAwaitingPayment {
		f.mu.Unlock()
		return ErrInvalidState
	}

	if errs := validate.All(draft.values()); len(errs) > 0 {
		f.fieldErrors = errs
		flowErr := &FlowError{
			Stage:     StageValidate,
			Kind:      KindValidation,
			Reason:    "please correct the highlighted fields",
			Fields:    errs,
			Retryable: true,
		}
		f.lastErr = flowErr
		f.mu.Unlock()
		return flowErr
	}
	f.fieldErrors = nil

	token := uuid.NewString()
	f.inFlight = true
	f.attempt = token
	f.mu.Unlock()

	res, err := f.backend.InitiateRegistration(ctx, api.RegistrationIntentRequest{
		Email:        draft.Email,
		Username:     draft.Username,
		Password:     draft.Password,
		ReferralCode: draft.ReferralCode,
	})

	f.mu.Lock()
	if f.attempt != token {
		f.mu.Unlock()
		return ErrAbandoned
	}
	f.inFlight = false
	if err != nil {
		return f.settleFailure(StageInitiate, KindTransport, err.Error(), true)
	}
	if res.ClientSecret == "" {
		// The call succeeded, the response did not: a contract violation,
		// not a transport error.
		return f.settleFailure(StageInitiate, KindContract, "no client secret", true)
	}

	draft.ConfirmPassword = ""
	f.draft = draft
	f.clientSecret = res.ClientSecret
	f.settleTransition(StateAwaitingPayment, StageInitiate)
	return nil
}

// ClientSecret returns the payment secret for the awaiting-payment step.
func (f *Flow) ClientSecret() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clientSecret
}

// SubmitPayment hands the client secret to the confirmation adapter and, on
// a succeeded payment, finalizes the registration and logs the new identity
// in. A declined or action-required payment leaves the flow on the payment
// step for another attempt.
func (f *Flow) SubmitPayment(ctx context.Context, form processor.Form) error {
	f.mu.Lock()
	if f.inFlight {
		f.mu.Unlock()
		return ErrInFlight
	}
	if f.state != StateAwaitingPayment {
		f.mu.Unlock()
		return ErrInvalidState
	}
	token := uuid.NewString()
	f.inFlight = true
	f.attempt = token
	secret := f.clientSecret
	f.mu.Unlock()

	res, err := f.confirmer.Confirm(ctx, secret, form)

	f.mu.Lock()
	if f.attempt != token {
		f.mu.Unlock()
		return ErrAbandoned
	}
	if err != nil {
		f.inFlight = false
		return f.settleFailure(StagePayment, KindTransport, err.Error(), true)
	}
	switch res.Outcome {
	case processor.OutcomeFailed:
		f.inFlight = false
		return f.settleFailure(StagePayment, KindPayment, res.Reason, true)
	case processor.OutcomeRequiresAction:
		// Re-present the payment form; never advance on a non-terminal status.
		f.inFlight = false
		return f.settleFailure(StagePayment, KindPayment, "payment requires further action", true)
	}

	// The in-flight guard stays held through finalize and login.
	f.intentID = res.IntentID
	f.settleTransition(StateFinalizing, StagePayment)
	return f.finalize(ctx, token)
}

// RetryFinalize re-invokes the finalize call after a post-payment failure.
// It reuses the stored payment intent id, which the backend treats
// idempotently, so retrying can never double-create the account or charge
// again.
func (f *Flow) RetryFinalize(ctx context.Context) error {
	f.mu.Lock()
	if f.inFlight {
		f.mu.Unlock()
		return ErrInFlight
	}
	if f.state != StateFinalizing {
		f.mu.Unlock()
		return ErrInvalidState
	}
	token := uuid.NewString()
	f.inFlight = true
	f.attempt = token
	f.mu.Unlock()

	return f.finalize(ctx, token)
}

// finalize converts the confirmed payment into a permanent account and then
// establishes the session with the retained credentials. Callers hold the
// in-flight guard and pass their attempt token.
func (f *Flow) finalize(ctx context.Context, token string) error {
	f.mu.Lock()
	req := api.ConfirmRegistrationRequest{
		Email:           f.draft.Email,
		Username:        f.draft.Username,
		Password:        f.draft.Password,
		ReferralCode:    f.draft.ReferralCode,
		PaymentIntentID: f.intentID,
	}
	email, password := f.draft.Email, f.draft.Password
	f.mu.Unlock()

	err := f.backend.ConfirmRegistration(ctx, req)

	f.mu.Lock()
	if f.attempt != token {
		f.mu.Unlock()
		return ErrAbandoned
	}
	if err != nil {
		// Money has moved. Surface it as such and keep the flow on the
		// finalize step; RetryFinalize is the only way forward.
		f.inFlight = false
		f.logger.Error("finalize failed after captured payment",
			slog.String("payment_intent_id", req.PaymentIntentID),
			slog.Any("error", err))
		return f.settleFailure(StageFinalize, KindConsistency, consistencyMessage, false)
	}
	f.mu.Unlock()

	// Fresh credential login with the just-created account's credentials.
	identity, err := f.auth.Login(ctx, email, password)

	f.mu.Lock()
	if f.attempt != token {
		f.mu.Unlock()
		return ErrAbandoned
	}
	f.inFlight = false
	if err != nil {
		// The user paid and the account exists; this must never read as
		// "registration failed".
		from := f.state
		f.state = StateFailed
		flowErr := &FlowError{
			Stage:  StagePostPaymentLogin,
			Kind:   KindAuth,
			Reason: "your account was created and your payment received, but signing you in failed: " + err.Error(),
		}
		f.lastErr = flowErr
		f.mu.Unlock()
		f.emit(Transition{From: from, To: StateFailed, Stage: StagePostPaymentLogin, Err: flowErr})
		return flowErr
	}

	f.identity = identity
	f.draft.wipe()
	f.clientSecret = ""
	f.settleTransition(StateAuthenticated, StagePostPaymentLogin)
	return nil
}

// Abandon discards the attempt. Any in-flight remote result that resolves
// afterwards is dropped instead of being applied to a dead flow.
func (f *Flow) Abandon() {
	f.mu.Lock()
	f.attempt = ""
	f.inFlight = false
	f.draft.wipe()
	f.clientSecret = ""
	f.mu.Unlock()
}

// settleFailure records a failure, releases the lock and notifies. The flow
// state is unchanged: every recoverable failure leaves the form on the step
// that failed.
func (f *Flow) settleFailure(stage Stage, kind Kind, reason string, retryable bool) error {
	flowErr := &FlowError{Stage: stage, Kind: kind, Reason: reason, Retryable: retryable}
	f.lastErr = flowErr
	state := f.state
	f.mu.Unlock()
	f.emit(Transition{From: state, To: state, Stage: stage, Err: flowErr})
	return flowErr
}

// settleTransition moves to a new state, releases the lock and notifies.
func (f *Flow) settleTransition(to State, stage Stage) {
	from := f.state
	f.state = to
	f.lastErr = nil
	f.mu.Unlock()
	f.emit(Transition{From: from, To: to, Stage: stage})
}

func (f *Flow) emit(t Transition) {
	if f.notify != nil {
		f.notify(t)
	}
}
