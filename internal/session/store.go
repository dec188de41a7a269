// Package session owns the authenticated identity and the persisted
// credential pair. The credential pair is written here and only here; the
// gateway reads it through the TokenSource view.
package session

import "context"

// Credentials is the persisted credential pair. Refresh may be empty when
// the backend does not issue one.
type Credentials struct {
	Access  string `json:"accessToken"`
	Refresh string `json:"refreshToken,omitempty"`
}

// CredentialStore persists the credential pair across process restarts.
// Load returns zero credentials, not an error, when nothing is stored.
type CredentialStore interface {
	Load(ctx context.Context) (Credentials, error)
	Save(ctx context.Context, creds Credentials) error
	Clear(ctx context.Context) error
}

// TokenSource is the gateway-facing read-only view over a credential store.
type TokenSource struct {
	store CredentialStore
}

// NewTokenSource wraps a store for the gateway.
func NewTokenSource(store CredentialStore) TokenSource {
	return TokenSource{store: store}
}

// AccessToken returns the persisted access credential, or empty when no
// session is alive.
func (t TokenSource) AccessToken(ctx context.Context) (string, error) {
	creds, err := t.store.Load(ctx)
	if err != nil {
		return "", err
	}
	return creds.Access, nil
}
