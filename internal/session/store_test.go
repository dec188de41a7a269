package session

import (
	"context"
	"path/filepath"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(filepath.Join(t.TempDir(), "nested", "credentials.json"))

	creds, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load empty: %v", err)
	}
	if creds.Access != "" || creds.Refresh != "" {
		t.Fatalf("expected zero credentials, got %+v", creds)
	}

	if err := store.Save(ctx, Credentials{Access: "acc-1", Refresh: "ref-1"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	creds, err = store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if creds.Access != "acc-1" || creds.Refresh != "ref-1" {
		t.Fatalf("unexpected credentials %+v", creds)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	creds, err = store.Load(ctx)
	if err != nil {
		t.Fatalf("load after clear: %v", err)
	}
	if creds.Access != "" {
		t.Fatalf("expected cleared store, got %+v", creds)
	}

	// Clearing an already empty store is not an error.
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("double clear: %v", err)
	}
}

func newRedisStore(t *testing.T) (*RedisStore, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisStore(client), func() {
		client.Close()
		mr.Close()
	}
}

func TestRedisStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, cleanup := newRedisStore(t)
	defer cleanup()

	if err := store.Save(ctx, Credentials{Access: "acc-1", Refresh: "ref-1"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	creds, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if creds.Access != "acc-1" || creds.Refresh != "ref-1" {
		t.Fatalf("unexpected credentials %+v", creds)
	}

	// Saving without a refresh token clears the refresh slot.
	if err := store.Save(ctx, Credentials{Access: "acc-2"}); err != nil {
		t.Fatalf("save without refresh: %v", err)
	}
	creds, err = store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if creds.Access != "acc-2" || creds.Refresh != "" {
		t.Fatalf("stale refresh slot survived: %+v", creds)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	creds, err = store.Load(ctx)
	if err != nil {
		t.Fatalf("load after clear: %v", err)
	}
	if creds.Access != "" || creds.Refresh != "" {
		t.Fatalf("expected cleared store, got %+v", creds)
	}
}

func TestTokenSourceReadsStore(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(filepath.Join(t.TempDir(), "credentials.json"))
	source := NewTokenSource(store)

	token, err := source.AccessToken(ctx)
	if err != nil {
		t.Fatalf("access token: %v", err)
	}
	if token != "" {
		t.Fatalf("expected empty token, got %q", token)
	}

	if err := store.Save(ctx, Credentials{Access: "acc-9"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	token, err = source.AccessToken(ctx)
	if err != nil {
		t.Fatalf("access token: %v", err)
	}
	if token != "acc-9" {
		t.Fatalf("expected acc-9, got %q", token)
	}
}
