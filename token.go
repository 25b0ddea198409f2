package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// expiryMargin is how close to expiry an access token may get before it is
// refreshed instead of used.
const expiryMargin = 5 * time.Minute

type credential struct {
	accessToken  string
	refreshToken string
	expiresAt    time.Time
}

// TokenManager owns the single process-wide credential pair. All credential
// reads and writes go through its mutex, so concurrent handlers cannot race
// a refresh against a fetch.
type TokenManager struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
	now        func() time.Time

	mu   sync.Mutex
	cred *credential
}

func NewTokenManager(baseURL, username, password string, httpClient *http.Client) *TokenManager {
	return &TokenManager{
		baseURL:    strings.TrimRight(baseURL, "/"),
		username:   username,
		password:   password,
		httpClient: httpClient,
		now:        time.Now,
	}
}

type authResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    string `json:"access_token_expires_at"`
}

// EnsureValid makes the credential usable: logs in when none exists, refreshes
// when it is near expiry, and does nothing otherwise. A refresh failure leaves
// the stale credential in place.
func (m *TokenManager) EnsureValid(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cred == nil {
		return m.loginLocked(ctx)
	}
	if m.now().After(m.cred.expiresAt.Add(-expiryMargin)) {
		return m.refreshLocked(ctx)
	}
	return nil
}

// Refresh forces a refresh cycle regardless of expiry. Used after the server
// rejects an access token the expiry math still considered valid.
func (m *TokenManager) Refresh(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cred == nil {
		return m.loginLocked(ctx)
	}
	return m.refreshLocked(ctx)
}

func (m *TokenManager) AccessToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cred == nil {
		return ""
	}
	return m.cred.accessToken
}

func (m *TokenManager) loginLocked(ctx context.Context) error {
	payload, err := json.Marshal(map[string]string{
		"username": m.username,
		"password": m.password,
	})
	if err != nil {
		return fetchErrf(errTransport, "marshal login payload: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/login", bytes.NewReader(payload))
	if err != nil {
		return fetchErrf(errTransport, "build login request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fetchErrf(errTransport, "login request failed: %v", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		cred, err := m.decodeCredential(resp.Body)
		if err != nil {
			return err
		}
		m.cred = cred
		log.Printf("login ok: expires_at=%s", cred.expiresAt.Format(time.RFC3339))
		return nil
	case http.StatusBadRequest, http.StatusUnauthorized:
		return fetchErrf(errAuthFailure, "login rejected: %s", readServerMessage(resp.Body))
	default:
		return fetchErrf(errTransport, "login unexpected status: %d", resp.StatusCode)
	}
}

func (m *TokenManager) refreshLocked(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/refresh", nil)
	if err != nil {
		return fetchErrf(errTransport, "build refresh request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+m.cred.refreshToken)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fetchErrf(errTransport, "refresh request failed: %v", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		cred, err := m.decodeCredential(resp.Body)
		if err != nil {
			return err
		}
		m.cred = cred
		log.Printf("token refreshed: expires_at=%s", cred.expiresAt.Format(time.RFC3339))
		return nil
	case http.StatusBadRequest, http.StatusUnauthorized:
		return fetchErrf(errAuthFailure, "refresh rejected: %s", readServerMessage(resp.Body))
	default:
		return fetchErrf(errTransport, "refresh unexpected status: %d", resp.StatusCode)
	}
}

func (m *TokenManager) decodeCredential(r io.Reader) (*credential, error) {
	var body authResponse
	if err := json.NewDecoder(r).Decode(&body); err != nil {
		return nil, fetchErrf(errMalformedResponse, "decode auth response: %v", err)
	}
	if body.AccessToken == "" || body.RefreshToken == "" {
		return nil, fetchErrf(errMalformedResponse, "auth response missing tokens")
	}
	return &credential{
		accessToken:  body.AccessToken,
		refreshToken: body.RefreshToken,
		expiresAt:    tokenExpiry(body.ExpiresAt, body.AccessToken),
	}, nil
}

// tokenExpiry prefers the server-provided timestamp and falls back to the
// access token's own exp claim. A zero time means the token counts as near
// expiry on its next use.
func tokenExpiry(raw, accessToken string) time.Time {
	if t, err := time.Parse(time.RFC3339, strings.TrimSpace(raw)); err == nil {
		return t
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time
		}
	}
	return time.Time{}
}
