package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/comeencasa/restaurant-api/internal/domain"
	apperrors "github.com/comeencasa/restaurant-api/pkg/errors"
	"github.com/comeencasa/restaurant-api/pkg/httputil"
	"github.com/comeencasa/restaurant-api/pkg/logger"
	"github.com/comeencasa/restaurant-api/pkg/middleware"
)

const (
	bearerChallenge = "Bearer"
	basicChallenge  = `Basic realm="admin"`

	invalidTokenMessage = "invalid or expired token"
)

// UserLookup resolves a token subject to a user.
type UserLookup interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
}

// AccessVerifier verifies access tokens.
type AccessVerifier interface {
	VerifyAccess(token string) (*AccessClaims, error)
}

type claimsKey struct{}

// ClaimsFromContext returns the verified access claims set by the bearer
// middleware.
func ClaimsFromContext(ctx context.Context) (*AccessClaims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*AccessClaims)
	return c, ok
}

// BearerGuard authenticates requests carrying an access token.
type BearerGuard struct {
	verifier AccessVerifier
	users    UserLookup
	denylist Denylist
}

// NewBearerGuard returns a guard. denylist may be nil.
func NewBearerGuard(verifier AccessVerifier, users UserLookup, denylist Denylist) *BearerGuard {
	return &BearerGuard{verifier: verifier, users: users, denylist: denylist}
}

// Authenticate walks header → token → claims → user → role. requiredRole ""
// accepts any role. Store errors other than not-found are returned wrapped.
func (g *BearerGuard) Authenticate(ctx context.Context, header, requiredRole string) (*domain.User, *AccessClaims, error) {
	if header == "" {
		return nil, nil, ErrMissingToken
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || scheme != "Bearer" || strings.TrimSpace(token) == "" {
		return nil, nil, ErrInvalidScheme
	}

	claims, err := g.verifier.VerifyAccess(strings.TrimSpace(token))
	if err != nil {
		return nil, nil, err
	}

	if g.denylist != nil {
		revoked, err := g.denylist.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, nil, err
		}
		if revoked {
			return nil, nil, ErrRevoked
		}
	}

	userID, err := claims.UserID()
	if err != nil {
		return nil, nil, err
	}
	user, err := g.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil, ErrUserNotFound
		}
		return nil, nil, fmt.Errorf("resolve token subject: %w", err)
	}

	if requiredRole != "" && user.Role != requiredRole {
		return nil, nil, ErrForbidden
	}
	return user, claims, nil
}

// Require returns middleware that admits only callers with a valid access
// token and, when role is not empty, that role.
func (g *BearerGuard) Require(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, claims, err := g.Authenticate(r.Context(), r.Header.Get("Authorization"), role)
			if err != nil {
				writeGuardError(w, r, err, bearerChallenge)
				return
			}

			ctx := middleware.WithIdentity(r.Context(), middleware.Identity{
				UserID:   user.ID,
				Username: user.Username,
				Role:     user.Role,
			})
			ctx = context.WithValue(ctx, claimsKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BasicAuthGuard admits callers presenting one of a fixed set of
// username/password pairs.
type BasicAuthGuard struct {
	credentials map[string]string
}

// NewBasicAuthGuard copies credentials; later changes to the map have no
// effect.
func NewBasicAuthGuard(credentials map[string]string) *BasicAuthGuard {
	creds := make(map[string]string, len(credentials))
	for u, p := range credentials {
		creds[u] = p
	}
	return &BasicAuthGuard{credentials: creds}
}

// Authenticate checks a Basic Authorization header and returns the
// username. Every configured pair is compared so timing does not depend on
// which username matched.
func (g *BasicAuthGuard) Authenticate(header string) (string, error) {
	username, password, ok := parseBasic(header)
	if !ok {
		return "", ErrInvalidCredentials
	}

	gotUser := sha256.Sum256([]byte(username))
	gotPass := sha256.Sum256([]byte(password))
	matched := 0
	for u, p := range g.credentials {
		wantUser := sha256.Sum256([]byte(u))
		wantPass := sha256.Sum256([]byte(p))
		matched |= subtle.ConstantTimeCompare(gotUser[:], wantUser[:]) &
			subtle.ConstantTimeCompare(gotPass[:], wantPass[:])
	}
	if matched != 1 {
		return "", ErrInvalidCredentials
	}
	return username, nil
}

func parseBasic(header string) (username, password string, ok bool) {
	const prefix = "Basic "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", "", false
	}
	decoded, err := base64.StdEncoding.DecodeString(header[len(prefix):])
	if err != nil {
		return "", "", false
	}
	return strings.Cut(string(decoded), ":")
}

// Middleware admits only requests with valid admin credentials.
func (g *BasicAuthGuard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, err := g.Authenticate(r.Header.Get("Authorization"))
		if err != nil {
			logger.FromContext(r.Context()).WarnContext(r.Context(), "admin authentication failed",
				slog.String("path", r.URL.Path),
			)
			httputil.WriteChallenge(w, r, basicChallenge, "invalid admin credentials")
			return
		}

		ctx := middleware.WithIdentity(r.Context(), middleware.Identity{
			Username: username,
			Role:     domain.RoleAdmin,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeGuardError(w http.ResponseWriter, r *http.Request, err error, challenge string) {
	l := logger.FromContext(r.Context())
	switch {
	case errors.Is(err, ErrForbidden):
		l.WarnContext(r.Context(), "access denied", slog.String("path", r.URL.Path))
		httputil.WriteError(w, r, apperrors.Forbidden("insufficient permissions"), l)
	case IsUnauthenticated(err):
		l.InfoContext(r.Context(), "authentication failed",
			slog.String("reason", err.Error()),
			slog.String("path", r.URL.Path),
		)
		httputil.WriteChallenge(w, r, challenge, invalidTokenMessage)
	default:
		httputil.WriteError(w, r, err, l)
	}
}
