package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUser_JSONOmitsPasswordHash(t *testing.T) {
	u := User{ID: 1, Username: "ana", Email: "ana@example.com", PasswordHash: "$2a$12$secret", Role: RoleUser}

	b, err := json.Marshal(u)
	require.NoError(t, err)

	assert.NotContains(t, string(b), "secret")
	assert.NotContains(t, string(b), "password")
	assert.Contains(t, string(b), `"username":"ana"`)
}

func TestTokenPair_JSONFieldNames(t *testing.T) {
	b, err := json.Marshal(TokenPair{AccessToken: "a", RefreshToken: "r", TokenType: TokenTypeBearer, UserID: 9})
	require.NoError(t, err)

	assert.JSONEq(t, `{"access_token":"a","refresh_token":"r","token_type":"bearer","user_id":9}`, string(b))
}
