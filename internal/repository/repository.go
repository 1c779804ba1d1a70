package repository

import (
	"context"
	"time"

	"github.com/comeencasa/restaurant-api/internal/domain"
	"github.com/comeencasa/restaurant-api/pkg/pagination"
)

// UserRepository is the credential store.
type UserRepository interface {
	// Create inserts user and sets its ID and CreatedAt. A duplicate email or
	// username yields an AlreadyExists error naming the field.
	Create(ctx context.Context, user *domain.User) error

	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)

	// Delete removes the user and, by cascade, their tokens and orders.
	Delete(ctx context.Context, id int64) error
}

// RefreshTokenRepository persists hashes of issued refresh tokens.
type RefreshTokenRepository interface {
	Create(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) error
	GetByHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error)

	// Revoke marks a single unrevoked token as revoked. It returns NotFound
	// when the token does not exist or was already revoked.
	Revoke(ctx context.Context, tokenHash string) error

	// RevokeByUserID revokes every active token of the user.
	RevokeByUserID(ctx context.Context, userID int64) error
}

// MenuRepository persists menu items.
type MenuRepository interface {
	Create(ctx context.Context, item *domain.MenuItem) error
	GetByID(ctx context.Context, id int64) (*domain.MenuItem, error)

	// GetByIDs returns the items found, keyed by id. Missing ids are absent.
	GetByIDs(ctx context.Context, ids []int64) (map[int64]domain.MenuItem, error)

	List(ctx context.Context, filter domain.MenuFilter, page pagination.Params) ([]domain.MenuItem, int, error)
	Update(ctx context.Context, item *domain.MenuItem) error

	// Delete fails with Conflict when orders still reference the item.
	Delete(ctx context.Context, id int64) error
}

// OrderRepository persists orders and their items.
type OrderRepository interface {
	// Create inserts the order and its items in one transaction.
	Create(ctx context.Context, order *domain.Order) error
	GetByID(ctx context.Context, id int64) (*domain.Order, error)
	List(ctx context.Context, filter domain.OrderFilter, page pagination.Params) ([]domain.Order, int, error)

	// UpdateStatus moves the order from one status to another. It returns
	// Conflict when the stored status is no longer from.
	UpdateStatus(ctx context.Context, id int64, from, to string) (*domain.Order, error)
}
