package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/rental-marketplace/internal/utils"
)

// AccessCookie is the cookie the login handler stores the access token
// in. Browser clients send it instead of an Authorization header.
const AccessCookie = "access_token"

// JWTAuth validates the access token from the Bearer header or the
// access_token cookie and stores the caller's actor in the context.
// Requests without a valid token are rejected with 401.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := tokenFrom(c)
			if raw == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			claims, err := utils.ParseAccessToken(secret, raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			actor, err := claims.Actor()
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
			}
			SetActor(c, actor)
			return next(c)
		}
	}
}

// OptionalAuth behaves like JWTAuth when a token is present but lets
// anonymous requests through. An invalid token is still rejected so a
// client never silently loses its identity.
func OptionalAuth(secret string) echo.MiddlewareFunc {
	auth := JWTAuth(secret)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		withAuth := auth(next)
		return func(c echo.Context) error {
			if tokenFrom(c) == "" {
				return next(c)
			}
			return withAuth(c)
		}
	}
}

func tokenFrom(c echo.Context) string {
	if h := c.Request().Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if ck, err := c.Cookie(AccessCookie); err == nil {
		return ck.Value
	}
	return ""
}
