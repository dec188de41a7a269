package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const confirmTimeout = 30 * time.Second

// HTTPConfirmer confirms payment intents against a Stripe-style processor
// API. Redirect-based flows are suppressed; the registration flow owns
// navigation, not the processor.
type HTTPConfirmer struct {
	baseURL string
	httpc   *http.Client
}

// NewHTTPConfirmer builds a confirmer rooted at the processor's base URL.
func NewHTTPConfirmer(baseURL string) *HTTPConfirmer {
	return &HTTPConfirmer{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc: &http.Client{
			Timeout: confirmTimeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

type confirmResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Confirm flushes the payment form, then invokes the processor's confirm
// call with the client secret and classifies the response. An explicit
// processor error maps to Failed; the "succeeded" status maps to Succeeded;
// every other status means the processor wants more from the user.
func (c *HTTPConfirmer) Confirm(ctx context.Context, clientSecret string, form Form) (Result, error) {
	if form != nil {
		if err := form.Submit(ctx); err != nil {
			return Result{Outcome: OutcomeFailed, Reason: err.Error()}, nil
		}
	}

	intentID := IntentIDFromSecret(clientSecret)
	if intentID == "" {
		return Result{}, fmt.Errorf("malformed client secret")
	}

	body := url.Values{}
	body.Set("client_secret", clientSecret)

	endpoint := fmt.Sprintf("%s/v1/payment_intents/%s/confirm", c.baseURL, intentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(body.Encode()))
	if err != nil {
		return Result{}, fmt.Errorf("build confirm request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("confirm payment: %w", err)
	}
	defer resp.Body.Close()

	var decoded confirmResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Result{}, fmt.Errorf("decode confirm response: %w", err)
	}

	switch {
	case decoded.Error != nil:
		reason := decoded.Error.Message
		if reason == "" {
			reason = "An unexpected error occurred during payment."
		}
		return Result{Outcome: OutcomeFailed, Reason: reason}, nil
	case decoded.Status == string(OutcomeSucceeded):
		return Result{Outcome: OutcomeSucceeded, IntentID: decoded.ID}, nil
	default:
		return Result{Outcome: OutcomeRequiresAction, IntentID: decoded.ID, Reason: decoded.Status}, nil
	}
}
