package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/rental-marketplace/internal/config"
	"github.com/iliyamo/rental-marketplace/internal/model"
	"github.com/iliyamo/rental-marketplace/internal/repository"
	"github.com/iliyamo/rental-marketplace/internal/service"
	"github.com/iliyamo/rental-marketplace/internal/utils"
)

const authSecret = "auth-test-secret"

type memUsers struct {
	mu    sync.Mutex
	users map[uint64]model.User
	next  uint64
}

func newMemUsers() *memUsers { return &memUsers{users: map[uint64]model.User{}} }

func (m *memUsers) Create(_ context.Context, in repository.NewUser, cost int) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == in.Email {
			return 0, repository.ErrEmailExists
		}
	}
	hash, err := utils.HashPassword(in.Password, cost)
	if err != nil {
		return 0, err
	}
	m.next++
	m.users[m.next] = model.User{ID: m.next, Email: in.Email, PasswordHash: hash, Role: in.Role, IsActive: true}
	return m.next, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == strings.ToLower(email) {
			return u, nil
		}
	}
	return model.User{}, service.ErrNoRecord
}

func (m *memUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return model.User{}, service.ErrNoRecord
	}
	return u, nil
}

type memTokens struct {
	mu      sync.Mutex
	owner   map[string]uint64
	revoked map[string]bool
}

func newMemTokens() *memTokens {
	return &memTokens{owner: map[string]uint64{}, revoked: map[string]bool{}}
}

func (m *memTokens) StoreRefresh(_ context.Context, userID uint64, hash string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.owner[hash] = userID
	return nil
}

func (m *memTokens) ValidateRefresh(_ context.Context, hash string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.owner[hash]
	if !ok || m.revoked[hash] {
		return 0, repository.ErrTokenInvalid
	}
	return id, nil
}

func (m *memTokens) RevokeByHash(_ context.Context, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[hash] = true
	return nil
}

func (m *memTokens) RevokeAllForUser(_ context.Context, userID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for h, id := range m.owner {
		if id == userID {
			m.revoked[h] = true
		}
	}
	return nil
}

func newAuth() (*AuthHandler, *memUsers, *memTokens) {
	users, tokens := newMemUsers(), newMemTokens()
	cfg := config.Config{JWTSecret: authSecret, AccessTTLMin: 15, RefreshTTLDays: 7, BcryptCost: bcrypt.MinCost}
	return NewAuthHandler(cfg, users, tokens), users, tokens
}

func refreshFrom(t *testing.T, body map[string]any) string {
	t.Helper()
	raw, ok := body["refresh"].(map[string]any)["token"].(string)
	require.True(t, ok)
	return raw
}

func TestRegister(t *testing.T) {
	h, users, _ := newAuth()

	rec := call(t, h.Register, model.Anonymous(), http.MethodPost, "/v1/auth/register",
		`{"email":" Jane@Example.com ","password":"correct-horse","role":"landlord"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	body := decode(t, rec)
	user := body["user"].(map[string]any)
	assert.Equal(t, "jane@example.com", user["email"])
	assert.Equal(t, "LANDLORD", user["role"])

	claims, err := utils.ParseAccessToken(authSecret, body["access"].(map[string]any)["token"].(string))
	require.NoError(t, err)
	assert.Equal(t, "LANDLORD", claims.Role)

	var names []string
	for _, ck := range rec.Result().Cookies() {
		names = append(names, ck.Name)
		assert.True(t, ck.HttpOnly)
	}
	assert.ElementsMatch(t, []string{"access_token", "refresh_token"}, names)
	assert.Len(t, users.users, 1)
}

func TestRegisterRejects(t *testing.T) {
	h, _, _ := newAuth()
	ok := call(t, h.Register, model.Anonymous(), http.MethodPost, "/v1/auth/register",
		`{"email":"a@example.com","password":"correct-horse"}`)
	require.Equal(t, http.StatusCreated, ok.Code)
	assert.Equal(t, "TENANT", decode(t, ok)["user"].(map[string]any)["role"])

	cases := map[string]int{
		`{"email":"a@example.com","password":"correct-horse"}`:                http.StatusConflict,
		`{"email":"b@example.com","password":"short"}`:                        http.StatusBadRequest,
		`{"email":"not-an-email","password":"correct-horse"}`:                 http.StatusBadRequest,
		`{"email":"c@example.com","password":"correct-horse","role":"ADMIN"}`: http.StatusBadRequest,
	}
	for body, status := range cases {
		rec := call(t, h.Register, model.Anonymous(), http.MethodPost, "/v1/auth/register", body)
		assert.Equal(t, status, rec.Code, body)
	}
}

func TestLogin(t *testing.T) {
	h, _, _ := newAuth()
	call(t, h.Register, model.Anonymous(), http.MethodPost, "/v1/auth/register",
		`{"email":"t@example.com","password":"correct-horse"}`)

	rec := call(t, h.Login, model.Anonymous(), http.MethodPost, "/v1/auth/login",
		`{"email":"t@example.com","password":"correct-horse"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = call(t, h.Login, model.Anonymous(), http.MethodPost, "/v1/auth/login",
		`{"email":"t@example.com","password":"wrong-horse"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = call(t, h.Login, model.Anonymous(), http.MethodPost, "/v1/auth/login",
		`{"email":"nobody@example.com","password":"correct-horse"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid credentials", decode(t, rec)["error"])
}

func TestLoginRejectsInactive(t *testing.T) {
	h, users, _ := newAuth()
	call(t, h.Register, model.Anonymous(), http.MethodPost, "/v1/auth/register",
		`{"email":"t@example.com","password":"correct-horse"}`)
	u := users.users[1]
	u.IsActive = false
	users.users[1] = u

	rec := call(t, h.Login, model.Anonymous(), http.MethodPost, "/v1/auth/login",
		`{"email":"t@example.com","password":"correct-horse"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefreshRotates(t *testing.T) {
	h, _, _ := newAuth()
	reg := call(t, h.Register, model.Anonymous(), http.MethodPost, "/v1/auth/register",
		`{"email":"t@example.com","password":"correct-horse"}`)
	first := refreshFrom(t, decode(t, reg))

	rec := call(t, h.Refresh, model.Anonymous(), http.MethodPost, "/v1/auth/refresh", `{"refresh_token":"`+first+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	second := refreshFrom(t, decode(t, rec))
	assert.NotEqual(t, first, second)

	rec = call(t, h.Refresh, model.Anonymous(), http.MethodPost, "/v1/auth/refresh", `{"refresh_token":"`+first+`"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = call(t, h.Refresh, model.Anonymous(), http.MethodPost, "/v1/auth/refresh", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogout(t *testing.T) {
	h, _, tokens := newAuth()
	reg := call(t, h.Register, model.Anonymous(), http.MethodPost, "/v1/auth/register",
		`{"email":"t@example.com","password":"correct-horse"}`)
	raw := refreshFrom(t, decode(t, reg))

	rec := call(t, h.Logout, model.Anonymous(), http.MethodPost, "/v1/auth/logout", `{"refresh_token":"`+raw+`"}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, tokens.revoked[utils.HashRefreshRaw(raw)])

	rec = call(t, h.Logout, model.Anonymous(), http.MethodPost, "/v1/auth/logout", `{"refresh_token":"`+raw+`"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = call(t, h.Logout, model.Anonymous(), http.MethodPost, "/v1/auth/logout", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogoutEverywhere(t *testing.T) {
	h, _, tokens := newAuth()
	reg := call(t, h.Register, model.Anonymous(), http.MethodPost, "/v1/auth/register",
		`{"email":"t@example.com","password":"correct-horse"}`)
	raw := refreshFrom(t, decode(t, reg))

	rec := call(t, h.Logout, model.Actor{ID: 1, Role: model.RoleTenant}, http.MethodPost, "/v1/auth/logout", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	_, err := tokens.ValidateRefresh(context.Background(), utils.HashRefreshRaw(raw))
	assert.True(t, errors.Is(err, repository.ErrTokenInvalid))
}

func TestMe(t *testing.T) {
	h, _, _ := newAuth()
	call(t, h.Register, model.Anonymous(), http.MethodPost, "/v1/auth/register",
		`{"email":"t@example.com","password":"correct-horse","first_name":"Tess"}`)

	rec := call(t, h.Me, model.Actor{ID: 1, Role: model.RoleTenant}, http.MethodGet, "/v1/me", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "t@example.com", decode(t, rec)["email"])

	rec = call(t, h.Me, model.Actor{ID: 99, Role: model.RoleTenant}, http.MethodGet, "/v1/me", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
