package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolation(t *testing.T) {
	err := fmt.Errorf("insert user: %w", &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

	constraint, ok := IsUniqueViolation(err)
	assert.True(t, ok)
	assert.Equal(t, "users_email_key", constraint)

	_, ok = IsUniqueViolation(&pgconn.PgError{Code: "23503"})
	assert.False(t, ok)

	_, ok = IsUniqueViolation(errors.New("23505"))
	assert.False(t, ok)
}

func TestIsForeignKeyViolation(t *testing.T) {
	assert.True(t, IsForeignKeyViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsForeignKeyViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsForeignKeyViolation(nil))
}
