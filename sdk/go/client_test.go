package zerolagsdk

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type stubSigner struct{ signed string }

func (s *stubSigner) Address() string { return "0xabc" }

func (s *stubSigner) SignMessage(_ context.Context, message string) (string, error) {
	s.signed = message
	return "0xsig", nil
}

func TestLoginKeepsToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/nonce", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"nonce": "Sign this message: 00"})
	})
	mux.HandleFunc("/api/auth/verify", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["signature"] != "0xsig" || body["address"] != "0xabc" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":{"code":"signature_mismatch","message":"Signature verification failed"}}`))
			return
		}
		w.Write([]byte(`{"success":true,"user":{"address":"0xabc","authenticated":true},"token":"tok"}`))
	})
	mux.HandleFunc("/api/stats", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"totalTasks":2,"currentStreak":1}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL + "/api/")
	signer := &stubSigner{}
	sess, err := c.Login(context.Background(), signer)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if signer.signed != "Sign this message: 00" {
		t.Fatalf("signed %q", signer.signed)
	}
	if !sess.Success || c.Token != "tok" {
		t.Fatalf("unexpected session %+v token %q", sess, c.Token)
	}
	stats, err := c.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalTasks != 2 || stats.CurrentStreak != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestAPIErrorMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"code":"nonce_not_found","message":"No nonce found"}}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL).Verify(context.Background(), "0xabc", "0xsig")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest || apiErr.Message() != "No nonce found" {
		t.Fatalf("unexpected error %+v", apiErr)
	}
}
