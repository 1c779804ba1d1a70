package auth

import "errors"

// Sentinel errors returned by the password, token and guard components.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrMissingToken       = errors.New("missing authorization header")
	ErrInvalidScheme      = errors.New("invalid authorization scheme")
	ErrMalformed          = errors.New("malformed token")
	ErrInvalidSignature   = errors.New("invalid token signature")
	ErrExpired            = errors.New("token expired")
	ErrRevoked            = errors.New("token revoked")
	ErrUserNotFound       = errors.New("token subject not found")
	ErrForbidden          = errors.New("insufficient role")
)

// IsUnauthenticated reports whether err means the caller could not be
// authenticated, as opposed to an infrastructure failure.
func IsUnauthenticated(err error) bool {
	for _, target := range []error{
		ErrInvalidCredentials, ErrMissingToken, ErrInvalidScheme, ErrMalformed,
		ErrInvalidSignature, ErrExpired, ErrRevoked, ErrUserNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
