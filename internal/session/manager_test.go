package session

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/refera-net/refera/internal/api"
	"github.com/refera-net/refera/internal/gateway"
	"github.com/refera-net/refera/internal/logging"
)

type fakeBackend struct {
	loginResult   api.LoginResult
	loginErr      error
	profileResult api.Identity
	profileErr    error
	loginCalls    int
	profileCalls  int
}

func (f *fakeBackend) Login(_ context.Context, _, _ string) (api.LoginResult, error) {
	f.loginCalls++
	return f.loginResult, f.loginErr
}

func (f *fakeBackend) VerifyTwoFactor(_ context.Context, _, _ string) (api.LoginResult, error) {
	return f.loginResult, f.loginErr
}

func (f *fakeBackend) GetProfile(_ context.Context) (api.Identity, error) {
	f.profileCalls++
	return f.profileResult, f.profileErr
}

func newManager(t *testing.T, backend *fakeBackend) (*Manager, CredentialStore) {
	t.Helper()
	store := NewFileStore(filepath.Join(t.TempDir(), "credentials.json"))
	return NewManager(backend, store, logging.Discard()), store
}

func TestLoginPersistsCredentialsAndIdentity(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{loginResult: api.LoginResult{
		AccessToken:  "acc-1",
		RefreshToken: "ref-1",
		Identity:     api.Identity{ID: "u1", Email: "a@b.com", Role: api.RoleUser},
	}}
	manager, store := newManager(t, backend)

	identity, err := manager.Login(ctx, "a@b.com", "longpass1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if identity.ID != "u1" {
		t.Fatalf("unexpected identity %+v", identity)
	}

	creds, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if creds.Access != "acc-1" || creds.Refresh != "ref-1" {
		t.Fatalf("credentials not persisted: %+v", creds)
	}
	if _, ok := manager.Identity(); !ok {
		t.Fatal("expected live session")
	}
}

func TestLoginTwoFactorRequired(t *testing.T) {
	backend := &fakeBackend{loginResult: api.LoginResult{TwoFactorRequired: true, UserID: "u1"}}
	manager, store := newManager(t, backend)

	_, err := manager.Login(context.Background(), "a@b.com", "longpass1")
	var tfa *TwoFactorRequiredError
	if !errors.As(err, &tfa) {
		t.Fatalf("expected TwoFactorRequiredError, got %v", err)
	}
	if tfa.UserID != "u1" {
		t.Fatalf("unexpected user id %q", tfa.UserID)
	}

	// No credentials may be persisted from an unfinished login.
	creds, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if creds.Access != "" {
		t.Fatalf("credentials persisted before second factor: %+v", creds)
	}
}

func TestLogoutClearsBothSlots(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{loginResult: api.LoginResult{
		AccessToken: "acc-1", RefreshToken: "ref-1",
		Identity: api.Identity{ID: "u1"},
	}}
	manager, store := newManager(t, backend)

	if _, err := manager.Login(ctx, "a@b.com", "longpass1"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := manager.Logout(ctx); err != nil {
		t.Fatalf("logout: %v", err)
	}

	creds, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if creds.Access != "" || creds.Refresh != "" {
		t.Fatalf("credential slots survived logout: %+v", creds)
	}
	if _, ok := manager.Identity(); ok {
		t.Fatal("identity survived logout")
	}
}

func TestRefreshFromServerSuccess(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{profileResult: api.Identity{ID: "u1", Role: api.RoleAdmin}}
	manager, store := newManager(t, backend)
	if err := store.Save(ctx, Credentials{Access: "acc-1"}); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	identity, err := manager.RefreshFromServer(ctx)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if identity == nil || identity.ID != "u1" {
		t.Fatalf("unexpected identity %+v", identity)
	}
	if !manager.IsAdmin() {
		t.Fatal("expected admin role from server")
	}
}

func TestRefreshFromServerFailureIsImplicitLogout(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{profileErr: errors.New("credential rejected")}
	manager, store := newManager(t, backend)
	if err := store.Save(ctx, Credentials{Access: "expired", Refresh: "stale"}); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	identity, err := manager.RefreshFromServer(ctx)
	if err != nil {
		t.Fatalf("refresh must not surface the rejection: %v", err)
	}
	if identity != nil {
		t.Fatalf("expected no session, got %+v", identity)
	}

	// Both slots must be gone or the next start would retry a dead credential.
	creds, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if creds.Access != "" || creds.Refresh != "" {
		t.Fatalf("credentials survived failed refresh: %+v", creds)
	}
}

func TestRefreshFromServerWithoutCredentials(t *testing.T) {
	backend := &fakeBackend{}
	manager, _ := newManager(t, backend)

	identity, err := manager.RefreshFromServer(context.Background())
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if identity != nil {
		t.Fatalf("expected no session, got %+v", identity)
	}
	if backend.profileCalls != 0 {
		t.Fatal("profile must not be fetched without a credential")
	}
}

func TestDropIfUnauthorizedClearsSession(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{loginResult: api.LoginResult{
		AccessToken: "acc-1", RefreshToken: "ref-1",
		Identity: api.Identity{ID: "u1"},
	}}
	manager, store := newManager(t, backend)
	if _, err := manager.Login(ctx, "a@b.com", "longpass1"); err != nil {
		t.Fatalf("login: %v", err)
	}

	rejection := &gateway.APIError{Status: http.StatusUnauthorized, Detail: "token expired"}
	if !manager.DropIfUnauthorized(ctx, rejection) {
		t.Fatal("expected a 401 to drop the session")
	}
	creds, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if creds.Access != "" || creds.Refresh != "" {
		t.Fatalf("credentials survived a rejected call: %+v", creds)
	}
	if _, ok := manager.Identity(); ok {
		t.Fatal("identity survived a rejected call")
	}
}

func TestDropIfUnauthorizedIgnoresOtherErrors(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{loginResult: api.LoginResult{
		AccessToken: "acc-1",
		Identity:    api.Identity{ID: "u1"},
	}}
	manager, store := newManager(t, backend)
	if _, err := manager.Login(ctx, "a@b.com", "longpass1"); err != nil {
		t.Fatalf("login: %v", err)
	}

	if manager.DropIfUnauthorized(ctx, errors.New("dial tcp: refused")) {
		t.Fatal("a transport error must not drop the session")
	}
	if manager.DropIfUnauthorized(ctx, &gateway.APIError{Status: http.StatusForbidden}) {
		t.Fatal("a 403 must not drop the session")
	}
	creds, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if creds.Access != "acc-1" {
		t.Fatalf("credentials lost on a non-credential error: %+v", creds)
	}
}

func TestPatchIdentityLocallyCannotTouchSecurityFields(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{loginResult: api.LoginResult{
		AccessToken: "acc-1",
		Identity:    api.Identity{ID: "u1", FirstName: "Al", Role: api.RoleUser, Balance: "10.00", Status: api.StatusActive},
	}}
	manager, _ := newManager(t, backend)
	if _, err := manager.Login(ctx, "a@b.com", "longpass1"); err != nil {
		t.Fatalf("login: %v", err)
	}

	name := "Alice"
	manager.PatchIdentityLocally(IdentityPatch{FirstName: &name})

	identity, ok := manager.Identity()
	if !ok {
		t.Fatal("expected live session")
	}
	if identity.FirstName != "Alice" {
		t.Fatalf("patch not applied: %+v", identity)
	}
	if identity.Role != api.RoleUser || identity.Balance != "10.00" || identity.Status != api.StatusActive {
		t.Fatalf("security fields changed: %+v", identity)
	}
}
