package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/refera-net/refera/internal/api"
	"github.com/refera-net/refera/internal/gateway"
)

// Backend is the slice of the remote surface the session manager needs.
type Backend interface {
	Login(ctx context.Context, identifier, password string) (api.LoginResult, error)
	VerifyTwoFactor(ctx context.Context, userID, token string) (api.LoginResult, error)
	GetProfile(ctx context.Context) (api.Identity, error)
}

// TwoFactorRequiredError is returned by Login when the account has a second
// factor enabled. The caller completes the login with CompleteTwoFactor.
type TwoFactorRequiredError struct {
	UserID string
}

func (e *TwoFactorRequiredError) Error() string {
	return "two-factor verification required"
}

// Manager owns the current session: the cached identity plus the persisted
// credential pair. It is the only writer of the credential store.
type Manager struct {
	mu       sync.Mutex
	backend  Backend
	store    CredentialStore
	logger   *slog.Logger
	identity *api.Identity
}

// NewManager builds a session manager over a backend and a credential store.
func NewManager(backend Backend, store CredentialStore, logger *slog.Logger) *Manager {
	return &Manager{backend: backend, store: store, logger: logger}
}

// Login authenticates with the identifier/password pair, persists the
// returned credentials and caches the merged identity.
func (m *Manager) Login(ctx context.Context, identifier, password string) (api.Identity, error) {
	res, err := m.backend.Login(ctx, identifier, password)
	if err != nil {
		return api.Identity{}, err
	}
	if res.TwoFactorRequired {
		return api.Identity{}, &TwoFactorRequiredError{UserID: res.UserID}
	}
	return m.establish(ctx, res)
}

// AdminLogin delegates to Login. The authorization level is determined
// server-side by the returned identity's role, not by a different endpoint.
func (m *Manager) AdminLogin(ctx context.Context, identifier, password string) (api.Identity, error) {
	return m.Login(ctx, identifier, password)
}

// CompleteTwoFactor finishes a login that returned TwoFactorRequiredError.
func (m *Manager) CompleteTwoFactor(ctx context.Context, userID, token string) (api.Identity, error) {
	res, err := m.backend.VerifyTwoFactor(ctx, userID, token)
	if err != nil {
		return api.Identity{}, err
	}
	return m.establish(ctx, res)
}

func (m *Manager) establish(ctx context.Context, res api.LoginResult) (api.Identity, error) {
	creds := Credentials{Access: res.AccessToken, Refresh: res.RefreshToken}
	if err := m.store.Save(ctx, creds); err != nil {
		return api.Identity{}, fmt.Errorf("persist credentials: %w", err)
	}

	m.mu.Lock()
	identity := res.Identity
	m.identity = &identity
	m.mu.Unlock()

	return identity, nil
}

// Logout destroys the session. Both persisted credential slots are cleared
// even when the in-memory state was already gone, so a rejected credential
// can never be retried forever.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	m.identity = nil
	m.mu.Unlock()

	if err := m.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	return nil
}

// DropIfUnauthorized tears the session down when err is a credential
// rejection from any call, the same implicit logout a failed refresh
// performs. It reports whether the session was dropped.
func (m *Manager) DropIfUnauthorized(ctx context.Context, err error) bool {
	if !gateway.IsUnauthorized(err) {
		return false
	}
	m.logger.Warn("credential rejected, discarding session", "error", err)
	if logoutErr := m.Logout(ctx); logoutErr != nil {
		m.logger.Warn("clear credentials after rejection", "error", logoutErr)
	}
	return true
}

// RefreshFromServer initializes the session at process start from persisted
// credentials. A rejected or expired credential performs an implicit logout
// and reports "no session" rather than an error.
func (m *Manager) RefreshFromServer(ctx context.Context) (*api.Identity, error) {
	creds, err := m.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	if creds.Access == "" {
		return nil, nil
	}

	identity, err := m.backend.GetProfile(ctx)
	if err != nil {
		m.logger.Warn("session check failed, discarding credentials", "error", err)
		if logoutErr := m.Logout(ctx); logoutErr != nil {
			return nil, logoutErr
		}
		return nil, nil
	}

	m.mu.Lock()
	m.identity = &identity
	m.mu.Unlock()

	return &identity, nil
}

// IdentityPatch carries the fields a local, optimistic patch may touch.
// Security-relevant fields (role, balance, status) are deliberately not
// representable here; they only change via server responses.
type IdentityPatch struct {
	FirstName    *string
	LastName     *string
	Username     *string
	Email        *string
	HasPin       *bool
	Is2FAEnabled *bool
}

// PatchIdentityLocally applies an optimistic local patch to the cached
// identity. It is a no-op when no session is alive.
func (m *Manager) PatchIdentityLocally(patch IdentityPatch) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.identity == nil {
		return
	}
	if patch.FirstName != nil {
		m.identity.FirstName = *patch.FirstName
	}
	if patch.LastName != nil {
		m.identity.LastName = *patch.LastName
	}
	if patch.Username != nil {
		m.identity.Username = *patch.Username
	}
	if patch.Email != nil {
		m.identity.Email = *patch.Email
	}
	if patch.HasPin != nil {
		m.identity.HasPin = *patch.HasPin
	}
	if patch.Is2FAEnabled != nil {
		m.identity.Is2FAEnabled = *patch.Is2FAEnabled
	}
}

// Identity returns the cached identity and whether a session is alive.
func (m *Manager) Identity() (api.Identity, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.identity == nil {
		return api.Identity{}, false
	}
	return *m.identity, true
}

// IsAdmin reports whether the live session belongs to an admin.
func (m *Manager) IsAdmin() bool {
	identity, ok := m.Identity()
	return ok && identity.Role == api.RoleAdmin
}
