package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/refera-net/refera/internal/gateway"
	"github.com/refera-net/refera/internal/logging"
)

type recordedRequest struct {
	method string
	path   string
	body   map[string]any
}

func newRecordingClient(t *testing.T, status int, response string) (*Client, *recordedRequest, func()) {
	t.Helper()
	rec := &recordedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.method = r.Method
		rec.path = r.URL.Path
		rec.body = nil
		if r.Body != nil {
			var body map[string]any
			if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
				rec.body = body
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(response))
	}))
	client := NewClient(gateway.New(srv.URL, nil, logging.Discard()))
	return client, rec, srv.Close
}

func TestLoginPayloadAndMergedIdentity(t *testing.T) {
	client, rec, cleanup := newRecordingClient(t, http.StatusOK,
		`{"access_token":"acc","refresh_token":"ref","id":"u1","email":"a@b.com","username":"alice","role":"user","balance":"100.00"}`)
	defer cleanup()

	res, err := client.Login(context.Background(), "a@b.com", "longpass1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if rec.path != "/users/login/" || rec.method != http.MethodPost {
		t.Fatalf("unexpected call %s %s", rec.method, rec.path)
	}
	if rec.body["login_identifier"] != "a@b.com" || rec.body["password"] != "longpass1" {
		t.Fatalf("unexpected payload: %v", rec.body)
	}
	if res.AccessToken != "acc" || res.RefreshToken != "ref" {
		t.Fatalf("unexpected credential pair: %+v", res)
	}
	if res.Identity.Role != "user" || res.Identity.Balance != "100.00" {
		t.Fatalf("identity fields not merged: %+v", res.Identity)
	}
	if res.TwoFactorRequired {
		t.Fatal("unexpected two-factor marker")
	}
}

func TestLoginTwoFactorMarker(t *testing.T) {
	client, _, cleanup := newRecordingClient(t, http.StatusOK, `{"two_factor_required":true,"user_id":"u1"}`)
	defer cleanup()

	res, err := client.Login(context.Background(), "a@b.com", "longpass1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if !res.TwoFactorRequired || res.UserID != "u1" {
		t.Fatalf("expected two-factor marker, got %+v", res)
	}
	if res.AccessToken != "" {
		t.Fatal("no credentials may accompany a two-factor marker")
	}
}

func TestInitiateRegistrationPayload(t *testing.T) {
	client, rec, cleanup := newRecordingClient(t, http.StatusOK, `{"clientSecret":"sec_123"}`)
	defer cleanup()

	res, err := client.InitiateRegistration(context.Background(), RegistrationIntentRequest{
		Email: "a@b.com", Username: "alice", Password: "longpass1", ReferralCode: "R1",
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if rec.path != "/users/register/" {
		t.Fatalf("unexpected path %s", rec.path)
	}
	for key, want := range map[string]string{"email": "a@b.com", "username": "alice", "password": "longpass1", "referralCode": "R1"} {
		if rec.body[key] != want {
			t.Fatalf("field %s: want %q got %v", key, want, rec.body[key])
		}
	}
	if _, present := rec.body["confirmPassword"]; present {
		t.Fatal("confirmPassword must never be sent")
	}
	if res.ClientSecret != "sec_123" {
		t.Fatalf("unexpected secret %q", res.ClientSecret)
	}
}

func TestConfirmRegistrationPayload(t *testing.T) {
	client, rec, cleanup := newRecordingClient(t, http.StatusNoContent, "")
	defer cleanup()

	err := client.ConfirmRegistration(context.Background(), ConfirmRegistrationRequest{
		Email: "a@b.com", Username: "alice", Password: "longpass1", ReferralCode: "R1", PaymentIntentID: "pi_1",
	})
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if rec.path != "/users/register/confirm/" {
		t.Fatalf("unexpected path %s", rec.path)
	}
	if rec.body["paymentIntentId"] != "pi_1" {
		t.Fatalf("unexpected intent id: %v", rec.body["paymentIntentId"])
	}
}

func TestAdminUpdateUserUsesPatch(t *testing.T) {
	client, rec, cleanup := newRecordingClient(t, http.StatusOK, `{"id":"u2","status":"frozen"}`)
	defer cleanup()

	user, err := client.AdminUpdateUser(context.Background(), "u2", map[string]any{"status": "frozen"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if rec.method != http.MethodPatch || rec.path != "/admin/users/u2/" {
		t.Fatalf("unexpected call %s %s", rec.method, rec.path)
	}
	if user.Status != "frozen" {
		t.Fatalf("unexpected user %+v", user)
	}
}
