package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/rental-marketplace/internal/config"
	"github.com/iliyamo/rental-marketplace/internal/handler"
)

const secret = "router-test-secret"

// newServer registers every route group. Handlers are built without
// services; the tests only hit paths that never reach them.
func newServer() *echo.Echo {
	e := echo.New()
	e.Validator = handler.NewValidator()
	RegisterRoutes(e, nil)
	RegisterAuth(e, handler.NewAuthHandler(config.Config{JWTSecret: secret}, nil, nil), secret)
	RegisterListings(e, handler.NewListingHandler(nil), handler.NewReviewHandler(nil), secret, config.CacheConfig{}, nil)
	RegisterBookings(e, handler.NewBookingHandler(nil), secret)
	return e
}

func serve(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRouteTable(t *testing.T) {
	e := newServer()
	have := map[string]bool{}
	for _, r := range e.Routes() {
		have[r.Method+" "+r.Path] = true
	}
	for _, want := range []string{
		"GET /healthz",
		"GET /v1/room-types",
		"POST /v1/auth/register",
		"POST /v1/auth/login",
		"POST /v1/auth/refresh",
		"POST /v1/auth/logout",
		"GET /v1/me",
		"GET /v1/listings",
		"POST /v1/listings",
		"GET /v1/listings/:id",
		"PATCH /v1/listings/:id",
		"DELETE /v1/listings/:id",
		"GET /v1/listings/:id/rating",
		"GET /v1/listings/:id/reviews",
		"POST /v1/listings/:id/reviews",
		"GET /v1/reviews/:id",
		"PATCH /v1/reviews/:id",
		"DELETE /v1/reviews/:id",
		"GET /v1/bookings",
		"POST /v1/bookings",
		"GET /v1/bookings/:id",
		"PATCH /v1/bookings/:id",
		"GET /v1/bookings/:id/history",
		"POST /v1/bookings/:id/confirm",
		"POST /v1/bookings/:id/decline",
		"POST /v1/bookings/:id/cancel",
	} {
		assert.True(t, have[want], "missing route %s", want)
	}
}

func TestPublicRoutes(t *testing.T) {
	e := newServer()

	rec := serve(e, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(e, http.MethodGet, "/v1/room-types", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"LOFT"`)
}

func TestProtectedRoutesRejectAnonymous(t *testing.T) {
	e := newServer()
	cases := []struct{ method, target string }{
		{http.MethodGet, "/v1/me"},
		{http.MethodGet, "/v1/bookings"},
		{http.MethodPost, "/v1/bookings"},
		{http.MethodPost, "/v1/bookings/1/confirm"},
		{http.MethodPost, "/v1/listings"},
		{http.MethodPatch, "/v1/listings/1"},
		{http.MethodDelete, "/v1/listings/1"},
		{http.MethodPost, "/v1/listings/1/reviews"},
		{http.MethodPatch, "/v1/reviews/1"},
		{http.MethodDelete, "/v1/reviews/1"},
	}
	for _, tc := range cases {
		rec := serve(e, tc.method, tc.target, `{}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", tc.method, tc.target)
	}
}

func TestInvalidTokenRejectedOnOpenRoutes(t *testing.T) {
	e := newServer()
	req := httptest.NewRequest(http.MethodGet, "/v1/listings", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer not-a-jwt")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutWithoutCredentials(t *testing.T) {
	e := newServer()
	rec := serve(e, http.MethodPost, "/v1/auth/logout", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
