package middleware

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/comeencasa/restaurant-api/pkg/logger"
)

type contextKey int

const identityKey contextKey = iota

// Identity is the authenticated caller attached to a request.
type Identity struct {
	UserID   int64
	Username string
	Role     string
}

// WithIdentity stores id in ctx and re-scopes the request logger with the
// caller's user_id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	ctx = context.WithValue(ctx, identityKey, id)
	ctx = logger.WithUserID(ctx, strconv.FormatInt(id.UserID, 10))
	l := logger.FromContext(ctx).With(slog.Int64("user_id", id.UserID))
	return logger.NewContext(ctx, l)
}

// IdentityFromContext returns the caller set by WithIdentity.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// UserIDFromContext returns the caller's id, or 0 when unauthenticated.
func UserIDFromContext(ctx context.Context) int64 {
	id, _ := IdentityFromContext(ctx)
	return id.UserID
}

// RoleFromContext returns the caller's role, or "".
func RoleFromContext(ctx context.Context) string {
	id, _ := IdentityFromContext(ctx)
	return id.Role
}
