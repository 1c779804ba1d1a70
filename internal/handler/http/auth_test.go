package http

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comeencasa/restaurant-api/internal/domain"
)

func TestRegister_Created(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/auth/register", map[string]string{
		"email":    "ana@example.com",
		"username": "ana",
		"password": "correct-horse",
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	body := rec.Body.String()
	assert.NotContains(t, body, "correct-horse")
	assert.NotContains(t, body, "password")

	var user domain.User
	decodeResponse(t, rec, &user)
	assert.Equal(t, int64(1), user.ID)
	assert.Equal(t, "ana", user.Username)
	assert.Equal(t, domain.RoleUser, user.Role)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	ts := newTestServer(t)
	ts.signup(t, "ana")

	rec := ts.do(t, http.MethodPost, "/api/v1/auth/register", map[string]string{
		"email":    "ana@example.com",
		"username": "ana2",
		"password": "another-pass",
	})

	assert.Equal(t, http.StatusConflict, rec.Code)
	resp := decodeResponse(t, rec, nil)
	assert.Equal(t, "ALREADY_EXISTS", resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "email")

	// The first account still logs in with its own password.
	rec = ts.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email": "ana@example.com", "password": "correct-horse",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRegister_Validation(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/auth/register", map[string]string{
		"email":    "not-an-email",
		"username": "ana",
		"password": "short",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec, nil)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	assert.Contains(t, resp.Error.Fields, "email")
	assert.Contains(t, resp.Error.Fields, "password")
}

func TestLogin_ByEmailAndUsername(t *testing.T) {
	ts := newTestServer(t)
	id, _ := ts.signup(t, "ana")

	for _, body := range []map[string]string{
		{"email": "ana@example.com", "password": "correct-horse"},
		{"username": "ana", "password": "correct-horse"},
	} {
		rec := ts.do(t, http.MethodPost, "/api/v1/auth/login", body)
		require.Equal(t, http.StatusOK, rec.Code)

		var pair domain.TokenPair
		decodeResponse(t, rec, &pair)
		assert.Equal(t, id, pair.UserID)
		assert.Equal(t, domain.TokenTypeBearer, pair.TokenType)
		assert.NotEmpty(t, pair.AccessToken)
		assert.NotEmpty(t, pair.RefreshToken)
		assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	}
}

func TestLogin_WrongPasswordAndUnknownUserLookAlike(t *testing.T) {
	ts := newTestServer(t)
	ts.signup(t, "ana")

	wrong := ts.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{"username": "ana", "password": "nope-nope"})
	unknown := ts.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{"username": "bob", "password": "nope-nope"})

	var messages []string
	for _, rec := range []*httptest.ResponseRecorder{wrong, unknown} {
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
		messages = append(messages, decodeResponse(t, rec, nil).Error.Message)
	}
	assert.Equal(t, messages[0], messages[1])
}

func TestLogin_RequiresEmailOrUsername(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{"password": "whatever"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec, nil)
	assert.Equal(t, "is required when username is not provided", resp.Error.Fields["email"])
}

func TestRefresh_Rotates(t *testing.T) {
	ts := newTestServer(t)
	_, pair := ts.signup(t, "ana")

	rec := ts.do(t, http.MethodPost, "/api/v1/auth/refresh", map[string]string{"refresh_token": pair.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code)
	var next domain.TokenPair
	decodeResponse(t, rec, &next)
	assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	// The old refresh token is spent.
	rec = ts.do(t, http.MethodPost, "/api/v1/auth/refresh", map[string]string{"refresh_token": pair.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefresh_RejectsAccessToken(t *testing.T) {
	ts := newTestServer(t)
	_, pair := ts.signup(t, "ana")

	rec := ts.do(t, http.MethodPost, "/api/v1/auth/refresh", map[string]string{"refresh_token": pair.AccessToken})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogout_RevokesAccessToken(t *testing.T) {
	ts := newTestServer(t)
	_, pair := ts.signup(t, "ana")

	rec := ts.do(t, http.MethodGet, "/api/v1/users/me", nil, bearer(pair.AccessToken))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/auth/logout", nil, bearer(pair.AccessToken))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/users/me", nil, bearer(pair.AccessToken))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/auth/refresh", map[string]string{"refresh_token": pair.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMe(t *testing.T) {
	ts := newTestServer(t)
	id, pair := ts.signup(t, "ana")

	rec := ts.do(t, http.MethodGet, "/api/v1/users/me", nil, bearer(pair.AccessToken))

	require.Equal(t, http.StatusOK, rec.Code)
	var user domain.User
	decodeResponse(t, rec, &user)
	assert.Equal(t, id, user.ID)
	assert.Equal(t, "ana@example.com", user.Email)
}

func TestBearerGate_Failures(t *testing.T) {
	ts := newTestServer(t)
	_, pair := ts.signup(t, "ana")

	tests := []struct {
		name    string
		headers []header
	}{
		{"missing header", nil},
		{"basic scheme", []header{basic("ana", "correct-horse")}},
		{"lowercase scheme", []header{{"Authorization", "bearer " + pair.AccessToken}}},
		{"garbage token", []header{bearer("not.a.jwt")}},
		{"refresh token", []header{bearer(pair.RefreshToken)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodGet, "/api/v1/users/me", nil, tt.headers...)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
			resp := decodeResponse(t, rec, nil)
			assert.Equal(t, "invalid or expired token", resp.Error.Message)
		})
	}
}

func TestBearerGate_DeletedUser(t *testing.T) {
	ts := newTestServer(t)
	id, pair := ts.signup(t, "ana")

	rec := ts.do(t, http.MethodDelete, "/api/v1/admin/users/"+strconv.FormatInt(id, 10), nil, basic(adminUser, adminPassword))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/users/me", nil, bearer(pair.AccessToken))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminDeleteUser(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodDelete, "/api/v1/admin/users/99", nil, basic(adminUser, adminPassword))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodDelete, "/api/v1/admin/users/abc", nil, basic(adminUser, adminPassword))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodDelete, "/api/v1/admin/users/1", nil, basic(adminUser, "wrong"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, `Basic realm="admin"`, rec.Header().Get("WWW-Authenticate"))
}
