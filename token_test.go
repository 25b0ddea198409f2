package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signTestToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign test token: %v", err)
	}
	return signed
}

func writeAuthJSON(w http.ResponseWriter, access, refresh, expiresAt string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"access_token":            access,
		"refresh_token":           refresh,
		"access_token_expires_at": expiresAt,
	})
}

func TestEnsureValidNoCredentialLogsIn(t *testing.T) {
	var loginCalls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/login" {
			t.Errorf("unexpected path: %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		atomic.AddInt32(&loginCalls, 1)
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode login body: %v", err)
		}
		if body["username"] != "user" || body["password"] != "pass" {
			t.Errorf("unexpected login body: %v", body)
		}
		writeAuthJSON(w, "acc-1", "ref-1", time.Now().Add(time.Hour).Format(time.RFC3339))
	}))
	defer srv.Close()

	m := NewTokenManager(srv.URL, "user", "pass", srv.Client())
	if err := m.EnsureValid(context.Background()); err != nil {
		t.Fatalf("EnsureValid: %v", err)
	}
	if got := m.AccessToken(); got != "acc-1" {
		t.Errorf("access token = %q, want acc-1", got)
	}
	if n := atomic.LoadInt32(&loginCalls); n != 1 {
		t.Errorf("login calls = %d, want 1", n)
	}
}

func TestEnsureValidFarFromExpiryMakesNoCall(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "should not be called", http.StatusInternalServerError)
	}))
	defer srv.Close()

	now := time.Now()
	m := NewTokenManager(srv.URL, "user", "pass", srv.Client())
	m.now = func() time.Time { return now }
	m.cred = &credential{accessToken: "acc", refreshToken: "ref", expiresAt: now.Add(6 * time.Minute)}

	if err := m.EnsureValid(context.Background()); err != nil {
		t.Fatalf("EnsureValid: %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 0 {
		t.Errorf("network calls = %d, want 0", n)
	}
}

func TestEnsureValidNearExpiryRefreshes(t *testing.T) {
	var refreshCalls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/refresh" {
			t.Errorf("unexpected path: %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		atomic.AddInt32(&refreshCalls, 1)
		if got := r.Header.Get("Authorization"); got != "Bearer ref-old" {
			t.Errorf("refresh Authorization = %q, want Bearer ref-old", got)
		}
		writeAuthJSON(w, "acc-new", "ref-new", time.Now().Add(time.Hour).Format(time.RFC3339))
	}))
	defer srv.Close()

	now := time.Now()
	m := NewTokenManager(srv.URL, "user", "pass", srv.Client())
	m.now = func() time.Time { return now }
	m.cred = &credential{accessToken: "acc-old", refreshToken: "ref-old", expiresAt: now.Add(4 * time.Minute)}

	if err := m.EnsureValid(context.Background()); err != nil {
		t.Fatalf("EnsureValid: %v", err)
	}
	if got := m.AccessToken(); got != "acc-new" {
		t.Errorf("access token = %q, want acc-new", got)
	}
	if n := atomic.LoadInt32(&refreshCalls); n != 1 {
		t.Errorf("refresh calls = %d, want 1", n)
	}
}

func TestLoginRejectedIsAuthFailure(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusUnauthorized} {
		t.Run(fmt.Sprintf("status_%d", status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
				_ = json.NewEncoder(w).Encode(map[string]string{"msg": "bad credentials"})
			}))
			defer srv.Close()

			m := NewTokenManager(srv.URL, "user", "wrong", srv.Client())
			err := m.EnsureValid(context.Background())
			if err == nil {
				t.Fatal("EnsureValid succeeded, want auth failure")
			}
			if kind := errorKindOf(err); kind != errAuthFailure {
				t.Errorf("error kind = %s, want auth_failure", kind)
			}
			if m.AccessToken() != "" {
				t.Error("credential populated after rejected login")
			}
		})
	}
}

func TestRefreshFailureKeepsStaleCredential(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	now := time.Now()
	m := NewTokenManager(srv.URL, "user", "pass", srv.Client())
	m.now = func() time.Time { return now }
	m.cred = &credential{accessToken: "acc-stale", refreshToken: "ref", expiresAt: now.Add(time.Minute)}

	err := m.EnsureValid(context.Background())
	if err == nil {
		t.Fatal("EnsureValid succeeded, want transport error")
	}
	if kind := errorKindOf(err); kind != errTransport {
		t.Errorf("error kind = %s, want transport", kind)
	}
	if got := m.AccessToken(); got != "acc-stale" {
		t.Errorf("access token = %q, want stale credential kept", got)
	}
}

func TestTokenExpiryFallsBackToJWTClaim(t *testing.T) {
	exp := time.Now().Add(45 * time.Minute).Truncate(time.Second)
	access := signTestToken(t, exp)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// No access_token_expires_at in the response.
		writeAuthJSON(w, access, "ref-1", "")
	}))
	defer srv.Close()

	m := NewTokenManager(srv.URL, "user", "pass", srv.Client())
	if err := m.EnsureValid(context.Background()); err != nil {
		t.Fatalf("EnsureValid: %v", err)
	}
	if !m.cred.expiresAt.Equal(exp) {
		t.Errorf("expiresAt = %s, want %s from JWT exp claim", m.cred.expiresAt, exp)
	}
}

func TestTokenExpiryUnknownIsZero(t *testing.T) {
	if got := tokenExpiry("", "not-a-jwt"); !got.IsZero() {
		t.Errorf("tokenExpiry = %s, want zero time", got)
	}
}
