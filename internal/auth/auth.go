// Package auth implements password hashing and JWT-backed sessions.
//
// Tokens are HS256 JWTs carrying the session ID, so logout and expiry
// sweeps revoke access server-side regardless of the token's exp claim.
package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rotisserie/eris"
	"golang.org/x/crypto/bcrypt"

	"github.com/courseforge/courseforge/internal/model"
	"github.com/courseforge/courseforge/internal/store"
)

var (
	// ErrInvalidCredentials is returned for a wrong email or password.
	ErrInvalidCredentials = eris.New("auth: invalid credentials")
	// ErrInvalidToken is returned for malformed, forged, or revoked tokens.
	ErrInvalidToken = eris.New("auth: invalid token")
	// ErrSessionExpired is returned when the backing session has lapsed.
	ErrSessionExpired = eris.New("auth: session expired")
)

// HashPassword hashes a plaintext password with bcrypt. Cost values outside
// bcrypt's valid range fall back to the library default.
func HashPassword(password string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", eris.Wrap(err, "auth: hash password")
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches the stored bcrypt hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Manager issues and verifies session tokens.
type Manager struct {
	secret []byte
	ttl    time.Duration
	store  store.Store
}

// NewManager returns a Manager signing tokens with secret. Sessions live for
// ttl; a non-positive ttl defaults to 7 days.
func NewManager(secret string, ttl time.Duration, st store.Store) *Manager {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Manager{secret: []byte(secret), ttl: ttl, store: st}
}

// Issue creates a session for the user and returns a signed token for it.
func (m *Manager) Issue(ctx context.Context, userID string) (string, *model.Session, error) {
	session, err := m.store.CreateSession(ctx, userID, m.ttl)
	if err != nil {
		return "", nil, eris.Wrap(err, "auth: create session")
	}

	claims := jwt.RegisteredClaims{
		Subject:   userID,
		ID:        session.ID,
		IssuedAt:  jwt.NewNumericDate(session.CreatedAt),
		ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", nil, eris.Wrap(err, "auth: sign token")
	}
	return token, session, nil
}

// Verify validates a token and returns the user it belongs to. The backing
// session must still exist and be unexpired.
func (m *Manager) Verify(ctx context.Context, token string) (*model.User, error) {
	claims, err := m.parse(token)
	if err != nil {
		return nil, err
	}

	session, err := m.store.GetSession(ctx, claims.ID)
	if err != nil {
		if eris.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, eris.Wrap(err, "auth: load session")
	}
	if time.Now().UTC().After(session.ExpiresAt) {
		return nil, ErrSessionExpired
	}
	if session.UserID != claims.Subject {
		return nil, ErrInvalidToken
	}

	user, err := m.store.GetUser(ctx, session.UserID)
	if err != nil {
		if eris.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, eris.Wrap(err, "auth: load user")
	}
	return user, nil
}

// Revoke deletes the session behind a token. An already-revoked or invalid
// token is not an error for the caller logging out.
func (m *Manager) Revoke(ctx context.Context, token string) error {
	claims, err := m.parse(token)
	if err != nil {
		return nil
	}
	if err := m.store.DeleteSession(ctx, claims.ID); err != nil && !eris.Is(err, store.ErrNotFound) {
		return eris.Wrap(err, "auth: delete session")
	}
	return nil
}

func (m *Manager) parse(token string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, eris.Errorf("auth: unexpected signing method %s", t.Method.Alg())
		}
		return m.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.ID == "" || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
