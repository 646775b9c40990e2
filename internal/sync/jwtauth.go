package sync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"syntrix/internal/auth"
)

// JWTAuthMonitor adapts auth.TokenService's RS256 token pairs to the
// AuthMonitor interface the engine needs: whether a user is currently
// logged in, and the ability to refresh a token before it expires
// (spec §4.2: stream (re)opens are gated on login state).
type JWTAuthMonitor struct {
	tokens *auth.TokenService

	mu     sync.RWMutex
	user   *auth.User
	pair   *auth.TokenPair
	claims *auth.Claims
}

// NewJWTAuthMonitor creates a monitor with no logged-in user. Call
// SetSession after a successful login.
func NewJWTAuthMonitor(tokens *auth.TokenService) *JWTAuthMonitor {
	return &JWTAuthMonitor{tokens: tokens}
}

// SetSession records a freshly issued token pair for user, validating the
// access token so IsLoggedIn can check its expiry without re-parsing it
// on every call.
func (m *JWTAuthMonitor) SetSession(user *auth.User, pair *auth.TokenPair) error {
	claims, err := m.tokens.ValidateToken(pair.AccessToken)
	if err != nil {
		return fmt.Errorf("jwtauth: validate issued token: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.user = user
	m.pair = pair
	m.claims = claims
	return nil
}

// ClearSession logs the current user out.
func (m *JWTAuthMonitor) ClearSession() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user = nil
	m.pair = nil
	m.claims = nil
}

// IsLoggedIn reports whether a session is active and its access token
// has not yet expired.
func (m *JWTAuthMonitor) IsLoggedIn() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.claims == nil {
		return false
	}
	exp, err := m.claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return time.Now().Before(exp.Time)
}

// RefreshToken reissues a token pair for the current user. There is no
// remote token-refresh endpoint wired into this engine's interfaces
// (spec marks the auth client as external), so this re-signs locally via
// the same TokenService that issued the original session; a real
// deployment would instead call its auth service's refresh endpoint here.
func (m *JWTAuthMonitor) RefreshToken(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return ErrLoggedOut
	}

	pair, err := m.tokens.GenerateTokenPair(m.user)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCouldNotPersistAuthInfo, err)
	}
	claims, err := m.tokens.ValidateToken(pair.AccessToken)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCouldNotPersistAuthInfo, err)
	}

	m.pair = pair
	m.claims = claims
	return nil
}
