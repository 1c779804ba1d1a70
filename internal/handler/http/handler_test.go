package http

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/comeencasa/restaurant-api/internal/auth"
	"github.com/comeencasa/restaurant-api/internal/domain"
	"github.com/comeencasa/restaurant-api/internal/event"
	"github.com/comeencasa/restaurant-api/internal/service"
	apperrors "github.com/comeencasa/restaurant-api/pkg/errors"
	"github.com/comeencasa/restaurant-api/pkg/health"
	"github.com/comeencasa/restaurant-api/pkg/httputil"
	"github.com/comeencasa/restaurant-api/pkg/middleware"
	"github.com/comeencasa/restaurant-api/pkg/pagination"
)

const (
	adminUser     = "chef"
	adminPassword = "s3cret-kitchen"
)

// --- In-memory credential store ---

type memoryUsers struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*domain.User
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{byID: map[int64]*domain.User{}}
}

func (s *memoryUsers) Create(_ context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.byID {
		if existing.Email == u.Email {
			return apperrors.AlreadyExists("user", "email", u.Email)
		}
		if existing.Username == u.Username {
			return apperrors.AlreadyExists("user", "username", u.Username)
		}
	}
	s.nextID++
	u.ID = s.nextID
	u.CreatedAt = time.Now().UTC()
	cp := *u
	s.byID[u.ID] = &cp
	return nil
}

func (s *memoryUsers) find(match func(*domain.User) bool) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.byID {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (s *memoryUsers) GetByID(_ context.Context, id int64) (*domain.User, error) {
	return s.find(func(u *domain.User) bool { return u.ID == id })
}

func (s *memoryUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	return s.find(func(u *domain.User) bool { return u.Email == email })
}

func (s *memoryUsers) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	return s.find(func(u *domain.User) bool { return u.Username == username })
}

func (s *memoryUsers) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return apperrors.NotFound("user", id)
	}
	delete(s.byID, id)
	return nil
}

func (s *memoryUsers) setRole(id int64, role string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[id].Role = role
}

type memoryTokens struct {
	mu     sync.Mutex
	byHash map[string]*domain.RefreshToken
}

func newMemoryTokens() *memoryTokens {
	return &memoryTokens{byHash: map[string]*domain.RefreshToken{}}
}

func (s *memoryTokens) Create(_ context.Context, userID int64, hash string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byHash[hash] = &domain.RefreshToken{UserID: userID, TokenHash: hash, ExpiresAt: expiresAt}
	return nil
}

func (s *memoryTokens) GetByHash(_ context.Context, hash string) (*domain.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byHash[hash]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *memoryTokens) Revoke(_ context.Context, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byHash[hash]
	if !ok || t.RevokedAt != nil {
		return apperrors.ErrNotFound
	}
	now := time.Now()
	t.RevokedAt = &now
	return nil
}

func (s *memoryTokens) RevokeByUserID(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for _, t := range s.byHash {
		if t.UserID == userID && t.RevokedAt == nil {
			t.RevokedAt = &now
		}
	}
	return nil
}

// --- Mock MenuRepository ---

type mockMenuRepository struct {
	mock.Mock
}

func (m *mockMenuRepository) Create(ctx context.Context, item *domain.MenuItem) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *mockMenuRepository) GetByID(ctx context.Context, id int64) (*domain.MenuItem, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.MenuItem), args.Error(1)
}

func (m *mockMenuRepository) GetByIDs(ctx context.Context, ids []int64) (map[int64]domain.MenuItem, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[int64]domain.MenuItem), args.Error(1)
}

func (m *mockMenuRepository) List(ctx context.Context, filter domain.MenuFilter, page pagination.Params) ([]domain.MenuItem, int, error) {
	args := m.Called(ctx, filter, page)
	return args.Get(0).([]domain.MenuItem), args.Int(1), args.Error(2)
}

func (m *mockMenuRepository) Update(ctx context.Context, item *domain.MenuItem) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *mockMenuRepository) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// --- Mock OrderRepository ---

type mockOrderRepository struct {
	mock.Mock
}

func (m *mockOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *mockOrderRepository) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockOrderRepository) List(ctx context.Context, filter domain.OrderFilter, page pagination.Params) ([]domain.Order, int, error) {
	args := m.Called(ctx, filter, page)
	return args.Get(0).([]domain.Order), args.Int(1), args.Error(2)
}

func (m *mockOrderRepository) UpdateStatus(ctx context.Context, id int64, from, to string) (*domain.Order, error) {
	args := m.Called(ctx, id, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

// --- Test server ---

type testServer struct {
	handler http.Handler
	users   *memoryUsers
	tokens  *memoryTokens
	menu    *mockMenuRepository
	orders  *mockOrderRepository
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWithOptions(t, Options{ServiceName: "restaurant-api-test", CORS: middleware.DefaultCORSConfig()})
}

func newTestServerWithOptions(t *testing.T, opts Options) *testServer {
	t.Helper()
	logger := testLogger()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ts := &testServer{
		users:  newMemoryUsers(),
		tokens: newMemoryTokens(),
		menu:   &mockMenuRepository{},
		orders: &mockOrderRepository{},
	}

	jwtManager := auth.NewManager(auth.ManagerConfig{
		AccessSecret:  "access-secret-for-handler-tests-0000",
		RefreshSecret: "refresh-secret-for-handler-tests-000",
		Issuer:        "restaurant-api",
	})
	denylist := auth.NewRedisDenylist(client, "denylist")
	producer := event.NewProducer(event.Discard{})

	services := Services{
		Auth:   service.NewAuthService(ts.users, ts.tokens, auth.NewHasher(bcrypt.MinCost), jwtManager, denylist, logger),
		Menu:   service.NewMenuService(ts.menu, producer, logger),
		Orders: service.NewOrderService(ts.orders, ts.menu, producer, logger),
	}
	guards := Guards{
		Bearer: auth.NewBearerGuard(jwtManager, ts.users, denylist),
		Admin:  auth.NewBasicAuthGuard(map[string]string{adminUser: adminPassword}),
	}

	ts.handler = NewRouter(services, guards, health.NewHandler(), logger, opts)
	return ts
}

type header struct{ key, value string }

func bearer(token string) header { return header{"Authorization", "Bearer " + token} }

func basic(user, pass string) header {
	return header{"Authorization", "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))}
}

func (ts *testServer) do(t *testing.T, method, path string, body any, headers ...header) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, h := range headers {
		req.Header.Set(h.key, h.value)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

// decodeResponse reads the envelope and decodes data into dst when given.
func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder, dst any) httputil.Response {
	t.Helper()
	var raw struct {
		Data  json.RawMessage         `json:"data"`
		Error *httputil.ErrorResponse `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&raw))
	if dst != nil {
		require.NoError(t, json.Unmarshal(raw.Data, dst))
	}
	return httputil.Response{Data: raw.Data, Error: raw.Error}
}

// signup registers a user and logs them in, returning the user id and the
// token pair.
func (ts *testServer) signup(t *testing.T, username string) (int64, domain.TokenPair) {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/v1/auth/register", map[string]string{
		"email":    username + "@example.com",
		"username": username,
		"password": "correct-horse",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"username": username,
		"password": "correct-horse",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var pair domain.TokenPair
	decodeResponse(t, rec, &pair)
	return pair.UserID, pair
}

func (ts *testServer) signupAdmin(t *testing.T, username string) (int64, domain.TokenPair) {
	t.Helper()
	id, pair := ts.signup(t, username)
	ts.users.setRole(id, domain.RoleAdmin)
	return id, pair
}
