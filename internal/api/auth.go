package api

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Auth constants.
const (
	// tokenIssuer is stamped into and required on every access token.
	tokenIssuer = "piopener"

	// defaultTokenTTL applies when neither the request nor the config sets one.
	defaultTokenTTL = 60 * time.Minute

	// maxTokenTTL caps the lifetime a caller may request.
	maxTokenTTL = 24 * time.Hour

	// ticketTTL is how long a WebSocket ticket is valid.
	ticketTTL = 60 * time.Second

	// ticketBytes is the number of random bytes used for WebSocket tickets.
	ticketBytes = 32
)

// Principal kinds.
const (
	principalAPIKey = "api_key"
	principalToken  = "token"
)

// principal identifies the caller of a protected route.
type principal struct {
	Kind    string
	Subject string
}

// Claims are the JWT claims carried by access tokens issued by /auth/token.
type Claims struct {
	jwt.RegisteredClaims
	DoorID string `json:"door,omitempty"`
}

// GenerateAccessToken creates a signed HS256 access token for subject.
func GenerateAccessToken(subject, doorID, secret string, ttl time.Duration, now time.Time) (string, error) {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		DoorID: doorID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing access token: %w", err)
	}
	return signed, nil
}

// ParseToken validates a token's signature, expiry and issuer and returns
// its claims.
func ParseToken(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	return claims, nil
}

// authenticate resolves an Authorization header value to a principal.
func (s *Server) authenticate(header string) (principal, bool) {
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return principal{}, false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return principal{}, false
	}

	if s.secCfg.APIKey != "" && subtle.ConstantTimeCompare([]byte(token), []byte(s.secCfg.APIKey)) == 1 {
		return principal{Kind: principalAPIKey, Subject: principalAPIKey}, true
	}

	if s.secCfg.JWT.Secret == "" {
		return principal{}, false
	}
	claims, err := ParseToken(token, s.secCfg.JWT.Secret)
	if err != nil {
		s.logger.Debug("bearer token rejected", "error", err)
		return principal{}, false
	}
	return principal{Kind: principalToken, Subject: claims.Subject}, true
}

// tokenRequest is the optional request body for POST /auth/token.
type tokenRequest struct {
	Subject    string `json:"subject"`
	TTLMinutes int    `json:"ttl_minutes"`
}

// tokenResponse is the response body for POST /auth/token.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// handleIssueToken mints a short-lived access token. Only the api key may
// mint tokens, so a token cannot be used to extend itself.
func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	if s.secCfg.JWT.Secret == "" {
		writeNotFound(w, "token issuance is not configured")
		return
	}
	if p, _ := principalFrom(r.Context()); p.Kind != principalAPIKey {
		writeForbidden(w, "tokens can only be issued with the api key")
		return
	}

	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	ttl := time.Duration(s.secCfg.JWT.AccessTokenTTL) * time.Minute
	if req.TTLMinutes < 0 {
		writeBadRequest(w, "ttl_minutes must not be negative")
		return
	}
	if req.TTLMinutes > 0 {
		ttl = time.Duration(req.TTLMinutes) * time.Minute
	}
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	if ttl > maxTokenTTL {
		writeBadRequest(w, fmt.Sprintf("ttl_minutes must not exceed %d", int(maxTokenTTL.Minutes())))
		return
	}

	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		subject = "client"
	}

	signed, err := GenerateAccessToken(subject, s.doorID, s.secCfg.JWT.Secret, ttl, time.Now())
	if err != nil {
		s.logger.Error("failed to issue access token", "error", err)
		writeInternalError(w, "failed to generate token")
		return
	}

	s.logger.Info("access token issued", "subject", subject, "ttl", ttl.String())
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   int(ttl.Seconds()),
	})
}

// ticketStore holds pending WebSocket authentication tickets.
// Tickets are single-use and expire after ticketTTL.
type ticketStore struct {
	tickets map[string]ticketEntry
	mu      sync.Mutex
}

type ticketEntry struct {
	subject   string
	expiresAt time.Time
}

func newTicketStore() *ticketStore {
	return &ticketStore{tickets: make(map[string]ticketEntry)}
}

// issue stores a fresh ticket for subject.
func (t *ticketStore) issue(subject string, now time.Time) string {
	ticket := generateTicket()
	t.mu.Lock()
	t.tickets[ticket] = ticketEntry{subject: subject, expiresAt: now.Add(ticketTTL)}
	t.mu.Unlock()
	return ticket
}

// consume validates and removes a ticket.
func (t *ticketStore) consume(ticket string, now time.Time) (ticketEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.tickets[ticket]
	if !ok {
		return ticketEntry{}, false
	}
	delete(t.tickets, ticket)
	return entry, now.Before(entry.expiresAt)
}

// sweep drops expired tickets.
func (t *ticketStore) sweep(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for ticket, entry := range t.tickets {
		if now.After(entry.expiresAt) {
			delete(t.tickets, ticket)
		}
	}
}

func (t *ticketStore) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.tickets)
}

// handleWSTicket generates a single-use WebSocket authentication ticket.
// Browsers cannot set headers on a WebSocket upgrade, so they trade their
// bearer token for a ticket and pass it as a query parameter.
func (s *Server) handleWSTicket(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())
	ticket := s.tickets.issue(p.Subject, time.Now())

	writeJSON(w, http.StatusOK, map[string]any{
		"ticket":     ticket,
		"expires_in": int(ticketTTL.Seconds()),
	})
}

// generateTicket creates a cryptographically random ticket string.
func generateTicket() string {
	b := make([]byte, ticketBytes)
	//nolint:errcheck // crypto/rand.Read always returns len(b) on supported platforms
	rand.Read(b)
	return hex.EncodeToString(b)
}

// cleanTicketsLoop sweeps expired tickets until the context is cancelled.
func (s *Server) cleanTicketsLoop(ctx context.Context) {
	ticker := time.NewTicker(ticketTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.tickets.sweep(now)
		}
	}
}
