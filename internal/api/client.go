// Package api exposes the platform's remote operations as typed calls over
// the gateway. It mirrors the backend contract one method per endpoint and
// holds no state of its own.
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/refera-net/refera/internal/gateway"
)

// Client wraps the gateway with the platform's endpoint surface.
type Client struct {
	gw *gateway.Client
}

// NewClient builds an API client on top of an existing gateway.
func NewClient(gw *gateway.Client) *Client {
	return &Client{gw: gw}
}

// Login authenticates with an email-or-username identifier. The result may
// carry a two-factor-required marker instead of a credential pair.
func (c *Client) Login(ctx context.Context, identifier, password string) (LoginResult, error) {
	req := map[string]string{"login_identifier": identifier, "password": password}
	var res LoginResult
	if err := c.gw.Do(ctx, http.MethodPost, "/users/login/", req, &res); err != nil {
		return LoginResult{}, err
	}
	return res, nil
}

// VerifyTwoFactor exchanges a TOTP token for the credential pair after a
// two-factor-required login response.
func (c *Client) VerifyTwoFactor(ctx context.Context, userID, token string) (LoginResult, error) {
	req := map[string]string{"user_id": userID, "token": token}
	var res LoginResult
	if err := c.gw.Do(ctx, http.MethodPost, "/users/2fa/verify/", req, &res); err != nil {
		return LoginResult{}, err
	}
	return res, nil
}

// InitiateRegistration reserves the account shell and returns the payment
// client secret for this registration attempt.
func (c *Client) InitiateRegistration(ctx context.Context, req RegistrationIntentRequest) (RegistrationIntentResponse, error) {
	var res RegistrationIntentResponse
	if err := c.gw.Do(ctx, http.MethodPost, "/users/register/", req, &res); err != nil {
		return RegistrationIntentResponse{}, err
	}
	return res, nil
}

// ConfirmRegistration converts a confirmed payment into a permanent account.
// The backend treats repeated calls with the same payment intent id as one.
func (c *Client) ConfirmRegistration(ctx context.Context, req ConfirmRegistrationRequest) error {
	return c.gw.Do(ctx, http.MethodPost, "/users/register/confirm/", req, nil)
}

// GetProfile fetches the authoritative identity for the bearer credential.
func (c *Client) GetProfile(ctx context.Context) (Identity, error) {
	var identity Identity
	if err := c.gw.Do(ctx, http.MethodGet, "/users/profile/", nil, &identity); err != nil {
		return Identity{}, err
	}
	return identity, nil
}

// ChangePassword rotates the password for the authenticated user.
func (c *Client) ChangePassword(ctx context.Context, current, next string) error {
	req := map[string]string{"current_password": current, "new_password": next}
	return c.gw.Do(ctx, http.MethodPost, "/users/password/change/", req, nil)
}

// RequestPasswordReset asks the backend to email a reset token.
func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	return c.gw.Do(ctx, http.MethodPost, "/users/password/request-reset/", map[string]string{"email": email}, nil)
}

// ResetPassword consumes a reset token.
func (c *Client) ResetPassword(ctx context.Context, token, password string) error {
	req := map[string]string{"token": token, "password": password}
	return c.gw.Do(ctx, http.MethodPost, "/users/password/reset/", req, nil)
}

// SetPin registers a transaction PIN for the authenticated user.
func (c *Client) SetPin(ctx context.Context, pin string) error {
	return c.gw.Do(ctx, http.MethodPost, "/users/pin/set/", map[string]string{"pin": pin}, nil)
}

// VerifyPin checks a transaction PIN.
func (c *Client) VerifyPin(ctx context.Context, pin string) error {
	return c.gw.Do(ctx, http.MethodPost, "/users/pin/verify/", map[string]string{"pin": pin}, nil)
}

// GetDashboardStats returns the referral earnings summary.
func (c *Client) GetDashboardStats(ctx context.Context) (DashboardStats, error) {
	var stats DashboardStats
	if err := c.gw.Do(ctx, http.MethodGet, "/dashboard/stats/", nil, &stats); err != nil {
		return DashboardStats{}, err
	}
	return stats, nil
}

// GetTeamTree returns the referral downline.
func (c *Client) GetTeamTree(ctx context.Context) ([]TeamMember, error) {
	var tree []TeamMember
	if err := c.gw.Do(ctx, http.MethodGet, "/team/tree/", nil, &tree); err != nil {
		return nil, err
	}
	return tree, nil
}

// SubmitKYC uploads verification documents as a multipart request.
func (c *Client) SubmitKYC(ctx context.Context, sub KYCSubmission) error {
	files := []gateway.FilePart{
		{Field: "document_front", Filename: "document_front.jpg", Content: sub.DocumentFront},
		{Field: "document_back", Filename: "document_back.jpg", Content: sub.DocumentBack},
		{Field: "selfie", Filename: "selfie.jpg", Content: sub.Selfie},
	}
	return c.gw.Upload(ctx, "/kyc/submit/", nil, files, nil)
}

// GetKYCStatus reports the current verification state.
func (c *Client) GetKYCStatus(ctx context.Context) (KYCStatus, error) {
	var status KYCStatus
	if err := c.gw.Do(ctx, http.MethodGet, "/kyc/status/", nil, &status); err != nil {
		return KYCStatus{}, err
	}
	return status, nil
}

// ListTransactions returns the authenticated user's ledger entries.
func (c *Client) ListTransactions(ctx context.Context) ([]Transaction, error) {
	var txs []Transaction
	if err := c.gw.Do(ctx, http.MethodGet, "/transactions/", nil, &txs); err != nil {
		return nil, err
	}
	return txs, nil
}

// GetTransaction fetches a single ledger entry.
func (c *Client) GetTransaction(ctx context.Context, id string) (Transaction, error) {
	var tx Transaction
	if err := c.gw.Do(ctx, http.MethodGet, fmt.Sprintf("/transactions/%s/", id), nil, &tx); err != nil {
		return Transaction{}, err
	}
	return tx, nil
}

// CreateWithdrawal files a payout request.
func (c *Client) CreateWithdrawal(ctx context.Context, input WithdrawalInput) error {
	return c.gw.Do(ctx, http.MethodPost, "/withdrawals/", input, nil)
}

// ListWithdrawals returns the user's payout requests.
func (c *Client) ListWithdrawals(ctx context.Context) ([]Withdrawal, error) {
	var ws []Withdrawal
	if err := c.gw.Do(ctx, http.MethodGet, "/withdrawals/", nil, &ws); err != nil {
		return nil, err
	}
	return ws, nil
}

// Admin moderation surface. Authorization is decided server-side by the role
// on the bearer credential; these are plain calls like any other.

// GetAdminStats returns the moderation dashboard summary.
func (c *Client) GetAdminStats(ctx context.Context) (AdminStats, error) {
	var stats AdminStats
	if err := c.gw.Do(ctx, http.MethodGet, "/admin/stats/", nil, &stats); err != nil {
		return AdminStats{}, err
	}
	return stats, nil
}

// AdminListUsers returns every registered user.
func (c *Client) AdminListUsers(ctx context.Context) ([]Identity, error) {
	var users []Identity
	if err := c.gw.Do(ctx, http.MethodGet, "/admin/users/", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// AdminUpdateUser patches a user record and returns the updated copy.
func (c *Client) AdminUpdateUser(ctx context.Context, userID string, patch map[string]any) (Identity, error) {
	var user Identity
	if err := c.gw.Do(ctx, http.MethodPatch, fmt.Sprintf("/admin/users/%s/", userID), patch, &user); err != nil {
		return Identity{}, err
	}
	return user, nil
}

// AdminCreateUser provisions a user without the paid-signup flow.
func (c *Client) AdminCreateUser(ctx context.Context, fields map[string]any) (Identity, error) {
	var user Identity
	if err := c.gw.Do(ctx, http.MethodPost, "/admin/users/", fields, &user); err != nil {
		return Identity{}, err
	}
	return user, nil
}

// AdminListWithdrawals returns all pending and processed payout requests.
func (c *Client) AdminListWithdrawals(ctx context.Context) ([]Withdrawal, error) {
	var ws []Withdrawal
	if err := c.gw.Do(ctx, http.MethodGet, "/admin/withdrawals/", nil, &ws); err != nil {
		return nil, err
	}
	return ws, nil
}

// AdminApproveWithdrawal releases a payout.
func (c *Client) AdminApproveWithdrawal(ctx context.Context, id string) error {
	return c.gw.Do(ctx, http.MethodPost, fmt.Sprintf("/withdrawals/%s/approve/", id), nil, nil)
}

// AdminDenyWithdrawal rejects a payout with a reason.
func (c *Client) AdminDenyWithdrawal(ctx context.Context, id, reason string) error {
	return c.gw.Do(ctx, http.MethodPost, fmt.Sprintf("/withdrawals/%s/deny/", id), map[string]string{"reason": reason}, nil)
}

// AdminListKYCRequests returns pending verification submissions.
func (c *Client) AdminListKYCRequests(ctx context.Context) ([]KYCRequest, error) {
	var reqs []KYCRequest
	if err := c.gw.Do(ctx, http.MethodGet, "/admin/kyc/requests/", nil, &reqs); err != nil {
		return nil, err
	}
	return reqs, nil
}

// AdminProcessKYC approves or rejects a verification submission.
func (c *Client) AdminProcessKYC(ctx context.Context, id, action, reason string) error {
	req := map[string]string{"action": action}
	if reason != "" {
		req["reason"] = reason
	}
	return c.gw.Do(ctx, http.MethodPost, fmt.Sprintf("/admin/kyc/process/%s/", id), req, nil)
}

// AdminListTransactions returns the platform-wide ledger.
func (c *Client) AdminListTransactions(ctx context.Context) ([]Transaction, error) {
	var txs []Transaction
	if err := c.gw.Do(ctx, http.MethodGet, "/admin/transactions/", nil, &txs); err != nil {
		return nil, err
	}
	return txs, nil
}
