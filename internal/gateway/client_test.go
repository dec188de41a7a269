package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/refera-net/refera/internal/logging"
)

type staticTokens string

func (s staticTokens) AccessToken(context.Context) (string, error) {
	return string(s), nil
}

func TestDoAttachesBearerCredential(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	client := New(srv.URL, staticTokens("tok-1"), logging.Discard())
	var out struct {
		OK bool `json:"ok"`
	}
	if err := client.Do(context.Background(), http.MethodGet, "/users/profile/", nil, &out); err != nil {
		t.Fatalf("do: %v", err)
	}
	if gotAuth != "Bearer tok-1" {
		t.Fatalf("expected bearer header, got %q", gotAuth)
	}
	if !out.OK {
		t.Fatal("expected decoded response")
	}
}

func TestDoOmitsHeaderWithoutCredential(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := New(srv.URL, staticTokens(""), logging.Discard())
	if err := client.Do(context.Background(), http.MethodPost, "/users/password/request-reset/", map[string]string{"email": "a@b.com"}, nil); err != nil {
		t.Fatalf("do: %v", err)
	}
	if gotAuth != "" {
		t.Fatalf("expected no Authorization header, got %q", gotAuth)
	}
}

func TestDoNormalizesDetailErrors(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		detail string
	}{
		{"detail field", http.StatusBadRequest, `{"detail":"referral code unknown"}`, "referral code unknown"},
		{"message field", http.StatusConflict, `{"message":"username taken"}`, "username taken"},
		{"garbage body", http.StatusInternalServerError, `<html>`, "Request failed with status 500"},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			w.Write([]byte(tc.body))
		}))

		client := New(srv.URL, nil, logging.Discard())
		err := client.Do(context.Background(), http.MethodPost, "/users/register/", map[string]string{}, nil)
		srv.Close()

		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("%s: expected APIError, got %v", tc.name, err)
		}
		if apiErr.Status != tc.status || apiErr.Detail != tc.detail {
			t.Fatalf("%s: got status=%d detail=%q", tc.name, apiErr.Status, apiErr.Detail)
		}
	}
}

func TestIsUnauthorized(t *testing.T) {
	if !IsUnauthorized(&APIError{Status: http.StatusUnauthorized, Detail: "expired"}) {
		t.Fatal("expected 401 to be unauthorized")
	}
	if IsUnauthorized(&APIError{Status: http.StatusForbidden}) {
		t.Fatal("403 is not a credential rejection")
	}
	if IsUnauthorized(errors.New("dial tcp: refused")) {
		t.Fatal("transport errors are not credential rejections")
	}
}

func TestDoTransportErrorIsNotAPIError(t *testing.T) {
	client := New("http://127.0.0.1:1", nil, logging.Discard())
	err := client.Do(context.Background(), http.MethodGet, "/users/profile/", nil, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		t.Fatalf("transport failure must not normalize to APIError: %v", err)
	}
}
