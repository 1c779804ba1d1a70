package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Default token lifetimes.
const (
	DefaultAccessTTL  = 30 * time.Minute
	DefaultRefreshTTL = 1008 * time.Minute
)

// AccessClaims are the registered claims carried by both token kinds. The
// subject is the user id in decimal.
type AccessClaims struct {
	jwt.RegisteredClaims
}

// UserID parses the subject.
func (c *AccessClaims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: subject %q", ErrMalformed, c.Subject)
	}
	return id, nil
}

// ExpiresAtTime returns exp, or the zero time when absent.
func (c *AccessClaims) ExpiresAtTime() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// Issued is a freshly signed token with the claims callers need to persist
// or denylist it.
type Issued struct {
	Token     string
	ID        string
	ExpiresAt time.Time
}

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
}

// Option customises a Manager.
type Option func(*Manager)

// WithClock replaces time.Now for issuing and verifying tokens.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// Manager issues and verifies HS256 tokens. Access and refresh tokens are
// signed with different secrets, so one can never pass as the other.
type Manager struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
	now           func() time.Time
}

// NewManager returns a Manager. Non-positive TTLs fall back to the defaults.
func NewManager(cfg ManagerConfig, opts ...Option) *Manager {
	m := &Manager{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		issuer:        cfg.Issuer,
		now:           time.Now,
	}
	if m.accessTTL <= 0 {
		m.accessTTL = DefaultAccessTTL
	}
	if m.refreshTTL <= 0 {
		m.refreshTTL = DefaultRefreshTTL
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AccessTTL returns the default access token lifetime.
func (m *Manager) AccessTTL() time.Duration { return m.accessTTL }

// RefreshTTL returns the default refresh token lifetime.
func (m *Manager) RefreshTTL() time.Duration { return m.refreshTTL }

// IssueAccess signs an access token for userID. ttl <= 0 uses the default.
func (m *Manager) IssueAccess(userID int64, ttl time.Duration) (Issued, error) {
	if ttl <= 0 {
		ttl = m.accessTTL
	}
	return m.issue(userID, ttl, m.accessSecret)
}

// IssueRefresh signs a refresh token for userID. ttl <= 0 uses the default.
func (m *Manager) IssueRefresh(userID int64, ttl time.Duration) (Issued, error) {
	if ttl <= 0 {
		ttl = m.refreshTTL
	}
	return m.issue(userID, ttl, m.refreshSecret)
}

// issue encodes whole-second iat/exp. iat is rounded down and exp up, so the
// token lives at least ttl and exp is always after iat.
func (m *Manager) issue(userID int64, ttl time.Duration, secret []byte) (Issued, error) {
	now := m.now().UTC()
	claims := &AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now.Truncate(time.Second)),
			ExpiresAt: jwt.NewNumericDate(ceilSecond(now.Add(ttl))),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return Issued{}, fmt.Errorf("sign token: %w", err)
	}
	return Issued{Token: signed, ID: claims.ID, ExpiresAt: claims.ExpiresAt.Time}, nil
}

func ceilSecond(t time.Time) time.Time {
	whole := t.Truncate(time.Second)
	if whole.Before(t) {
		whole = whole.Add(time.Second)
	}
	return whole
}

// VerifyAccess verifies a token signed with the access secret.
func (m *Manager) VerifyAccess(token string) (*AccessClaims, error) {
	return m.Verify(token, m.accessSecret)
}

// VerifyRefresh verifies a token signed with the refresh secret.
func (m *Manager) VerifyRefresh(token string) (*AccessClaims, error) {
	return m.Verify(token, m.refreshSecret)
}

// Verify checks the signature against secret, then exp. Only HS256 is
// accepted. Errors are ErrInvalidSignature, ErrExpired or ErrMalformed.
func (m *Manager) Verify(token string, secret []byte) (*AccessClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	claims := &AccessClaims{}
	_, err := jwt.NewParser(opts...).ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		return nil, classify(err)
	}

	if _, err := claims.UserID(); err != nil {
		return nil, err
	}
	return claims, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	default:
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}
