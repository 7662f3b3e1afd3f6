package api

import (
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestGenerateAndParseToken(t *testing.T) {
	now := time.Now()
	signed, err := GenerateAccessToken("phone", "garage", testJWTSecret, time.Hour, now)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}

	claims, err := ParseToken(signed, testJWTSecret)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.Subject != "phone" {
		t.Errorf("Subject = %q, want phone", claims.Subject)
	}
	if claims.DoorID != "garage" {
		t.Errorf("DoorID = %q, want garage", claims.DoorID)
	}
	if claims.Issuer != tokenIssuer {
		t.Errorf("Issuer = %q, want %q", claims.Issuer, tokenIssuer)
	}
	if claims.ID == "" {
		t.Error("token ID not set")
	}
	if got := claims.ExpiresAt.Sub(now); got < 59*time.Minute || got > time.Hour+time.Second {
		t.Errorf("expiry in %v, want about 1h", got)
	}
}

func TestGenerateAccessToken_DefaultTTL(t *testing.T) {
	now := time.Now()
	signed, err := GenerateAccessToken("phone", "", testJWTSecret, 0, now)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}
	claims, err := ParseToken(signed, testJWTSecret)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if got := claims.ExpiresAt.Sub(now); got < defaultTokenTTL-time.Second || got > defaultTokenTTL+time.Second {
		t.Errorf("expiry in %v, want %v", got, defaultTokenTTL)
	}
}

func TestParseToken_Rejects(t *testing.T) {
	now := time.Now()

	expired, err := GenerateAccessToken("phone", "", testJWTSecret, time.Minute, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}
	otherSecret, err := GenerateAccessToken("phone", "", "another-secret-key-that-is-long-enough", time.Hour, now)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}
	noSubject, err := GenerateAccessToken("", "", testJWTSecret, time.Hour, now)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    "someone-else",
		Subject:   "phone",
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	})
	wrongIssuer, err := foreign.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}

	noExpiry := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:  tokenIssuer,
		Subject: "phone",
	})
	unbounded, err := noExpiry.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   "phone",
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	})
	none, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{"expired", expired},
		{"wrong secret", otherSecret},
		{"missing subject", noSubject},
		{"wrong issuer", wrongIssuer},
		{"no expiry", unbounded},
		{"alg none", none},
		{"garbage", "not.a.token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseToken(tt.token, testJWTSecret); !errors.Is(err, ErrTokenInvalid) {
				t.Errorf("ParseToken() error = %v, want ErrTokenInvalid", err)
			}
		})
	}
}

func issueToken(t *testing.T, srv *Server, body string) (*tokenResponse, int) {
	t.Helper()
	w := do(t, srv.Handler(), http.MethodPost, "/auth/token", testAPIKey, strings.NewReader(body))
	if w.Code != http.StatusOK {
		return nil, w.Code
	}
	var resp tokenResponse
	decodeBody(t, w, &resp)
	return &resp, w.Code
}

func TestIssueToken(t *testing.T) {
	srv, _ := testServer(t)

	resp, code := issueToken(t, srv, `{"subject":"phone","ttl_minutes":30}`)
	if code != http.StatusOK {
		t.Fatalf("status = %d, want %d", code, http.StatusOK)
	}
	if resp.TokenType != "Bearer" || resp.ExpiresIn != 30*60 {
		t.Errorf("response = %+v", resp)
	}

	claims, err := ParseToken(resp.AccessToken, testJWTSecret)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.Subject != "phone" || claims.DoorID != "garage" {
		t.Errorf("claims = %+v", claims)
	}

	// The token authenticates protected routes.
	w := do(t, srv.Handler(), http.MethodGet, "/status", resp.AccessToken, nil)
	if w.Code != http.StatusOK {
		t.Errorf("GET /status with token status = %d", w.Code)
	}
}

func TestIssueToken_Defaults(t *testing.T) {
	srv, _ := testServer(t)

	resp, code := issueToken(t, srv, "")
	if code != http.StatusOK {
		t.Fatalf("status = %d, want %d", code, http.StatusOK)
	}
	// testDeps configures a 15 minute TTL.
	if resp.ExpiresIn != 15*60 {
		t.Errorf("ExpiresIn = %d, want %d", resp.ExpiresIn, 15*60)
	}
	claims, err := ParseToken(resp.AccessToken, testJWTSecret)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.Subject != "client" {
		t.Errorf("Subject = %q, want client", claims.Subject)
	}
}

func TestIssueToken_BadRequests(t *testing.T) {
	srv, _ := testServer(t)

	for _, body := range []string{`{`, `{"ttl_minutes":-5}`, `{"ttl_minutes":100000}`} {
		if _, code := issueToken(t, srv, body); code != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, want %d", body, code, http.StatusBadRequest)
		}
	}
}

func TestIssueToken_TokenCannotMint(t *testing.T) {
	srv, _ := testServer(t)

	resp, _ := issueToken(t, srv, `{"subject":"phone"}`)
	if resp == nil {
		t.Fatal("initial token not issued")
	}

	w := do(t, srv.Handler(), http.MethodPost, "/auth/token", resp.AccessToken, nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
}

func TestIssueToken_NotConfigured(t *testing.T) {
	srv, _ := testServerWith(t, func(d *Deps) { d.Security.JWT.Secret = "" })

	w := do(t, srv.Handler(), http.MethodPost, "/auth/token", testAPIKey, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestAuthenticate_TokensIgnoredWithoutSecret(t *testing.T) {
	signed, err := GenerateAccessToken("phone", "", testJWTSecret, time.Hour, time.Now())
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}
	srv, _ := testServerWith(t, func(d *Deps) { d.Security.JWT.Secret = "" })

	if _, ok := srv.authenticate("Bearer " + signed); ok {
		t.Error("token accepted with token issuance disabled")
	}
	p, ok := srv.authenticate("Bearer " + testAPIKey)
	if !ok || p.Kind != principalAPIKey {
		t.Errorf("api key principal = %+v, %v", p, ok)
	}
}

func TestTicketStore(t *testing.T) {
	store := newTicketStore()
	now := time.Now()

	ticket := store.issue("phone", now)
	entry, ok := store.consume(ticket, now.Add(time.Second))
	if !ok || entry.subject != "phone" {
		t.Errorf("consume() = %+v, %v; want phone, true", entry, ok)
	}
	if _, ok := store.consume(ticket, now.Add(time.Second)); ok {
		t.Error("ticket consumed twice")
	}

	late := store.issue("phone", now)
	if _, ok := store.consume(late, now.Add(ticketTTL+time.Second)); ok {
		t.Error("expired ticket accepted")
	}
}

func TestTicketStore_Sweep(t *testing.T) {
	store := newTicketStore()
	now := time.Now()

	store.issue("a", now.Add(-2*ticketTTL))
	store.issue("b", now)
	store.sweep(now)

	if n := store.size(); n != 1 {
		t.Errorf("size() after sweep = %d, want 1", n)
	}
}
