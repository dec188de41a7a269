package api

// Identity is the client's cached copy of the server-side user record. The
// server is the source of truth; security-relevant fields (role, balance,
// status) are only ever updated from server responses.
type Identity struct {
	ID               string `json:"id"`
	Email            string `json:"email"`
	Username         string `json:"username"`
	ReferralCode     string `json:"referral_code"`
	FirstName        string `json:"firstName"`
	LastName         string `json:"lastName"`
	IsKYCVerified    bool   `json:"is_kyc_verified"`
	Balance          string `json:"balance"`
	HasPin           bool   `json:"hasPin"`
	Is2FAEnabled     bool   `json:"is2faEnabled"`
	Role             string `json:"role"`
	Status           string `json:"status"`
	WithdrawalStatus string `json:"withdrawalStatus"`
}

// Roles and account states used across the platform.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"

	StatusActive = "active"
	StatusFrozen = "frozen"
)

// LoginResult is the login response: a credential pair with the identity
// fields merged in, or a two-factor-required marker with no credentials.
type LoginResult struct {
	TwoFactorRequired bool   `json:"two_factor_required"`
	UserID            string `json:"user_id"`
	AccessToken       string `json:"access_token"`
	RefreshToken      string `json:"refresh_token"`
	Identity
}

// RegistrationIntentRequest reserves an account shell server-side. It carries
// the draft minus confirmPassword, which never leaves the client.
type RegistrationIntentRequest struct {
	Email        string `json:"email"`
	Username     string `json:"username"`
	Password     string `json:"password"`
	ReferralCode string `json:"referralCode"`
}

// RegistrationIntentResponse returns the payment-processor client secret
// authorizing this registration's payment.
type RegistrationIntentResponse struct {
	ClientSecret string `json:"clientSecret"`
}

// ConfirmRegistrationRequest finalizes a paid registration. It must be
// idempotent server-side, keyed by PaymentIntentID.
type ConfirmRegistrationRequest struct {
	Email           string `json:"email"`
	Username        string `json:"username"`
	Password        string `json:"password"`
	ReferralCode    string `json:"referralCode"`
	PaymentIntentID string `json:"paymentIntentId"`
}

// DashboardStats summarizes a user's referral earnings.
type DashboardStats struct {
	TotalEarnings   string `json:"totalEarnings"`
	TotalTeamSize   int    `json:"totalTeamSize"`
	DirectReferrals int    `json:"directReferrals"`
}

// TeamMember is a node in the referral downline tree.
type TeamMember struct {
	ID                string       `json:"id"`
	Name              string       `json:"name"`
	Username          string       `json:"username"`
	Level             int          `json:"level"`
	JoinDate          string       `json:"joinDate"`
	TotalEarningsFrom string       `json:"totalEarningsFrom"`
	Children          []TeamMember `json:"children"`
}

// Transaction is a ledger entry. Monetary values are strings from the backend.
type Transaction struct {
	ID        string `json:"id"`
	CreatedAt string `json:"created_at"`
	TxType    string `json:"tx_type"`
	Reference string `json:"reference"`
	Amount    string `json:"amount"`
	Status    string `json:"status"`
}

// KYCStatus reports the verification state of the current user.
type KYCStatus struct {
	Status          string  `json:"status"`
	RejectionReason *string `json:"rejection_reason"`
}

// KYCSubmission captures the documents uploaded for verification.
type KYCSubmission struct {
	DocumentFront []byte
	DocumentBack  []byte
	Selfie        []byte
}

// KYCRequest is a pending verification as seen by an admin.
type KYCRequest struct {
	ID               string `json:"id"`
	UserID           string `json:"userId"`
	UserName         string `json:"userName"`
	UserEmail        string `json:"userEmail"`
	DateSubmitted    string `json:"dateSubmitted"`
	DocumentFrontURL string `json:"documentFrontUrl"`
	DocumentBackURL  string `json:"documentBackUrl"`
	SelfieURL        string `json:"selfieUrl"`
}

// WithdrawalInput is the user-provided payout destination.
type WithdrawalInput struct {
	Amount        string `json:"amount"`
	BankName      string `json:"bank_name"`
	AccountNumber string `json:"account_number"`
	AccountName   string `json:"account_name"`
}

// Withdrawal is a payout request with its moderation state.
type Withdrawal struct {
	ID            string `json:"id"`
	UserID        string `json:"userId"`
	UserName      string `json:"userName"`
	UserEmail     string `json:"userEmail"`
	Amount        string `json:"amount"`
	Date          string `json:"date"`
	Status        string `json:"status"`
	BankName      string `json:"bank_name"`
	AccountNumber string `json:"account_number"`
	AccountName   string `json:"account_name"`
}

// AdminStats is the moderation dashboard summary.
type AdminStats struct {
	TotalUsers                int    `json:"totalUsers"`
	TotalUserReferralEarnings string `json:"totalUserReferralEarnings"`
	PendingWithdrawalsCount   int    `json:"pendingWithdrawalsCount"`
	ProtocolBalance           string `json:"protocolBalance"`
}
