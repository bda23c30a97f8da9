// Package router defines how HTTP routes are registered for the API.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/rental-marketplace/internal/config"
	"github.com/iliyamo/rental-marketplace/internal/handler"
	"github.com/iliyamo/rental-marketplace/internal/middleware"
)

// RegisterRoutes registers the routes that need neither a token nor a
// service: the health check and the room type catalogue.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health(db))
	e.GET("/v1/room-types", handler.RoomTypes)
}

// RegisterAuth registers the account endpoints. Register, login and
// refresh are anonymous; logout accepts either a refresh token or an
// access token, so it only runs the optional auth middleware.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout, middleware.OptionalAuth(jwtSecret))

	e.GET("/v1/me", a.Me, middleware.JWTAuth(jwtSecret))
}

// RegisterListings registers listing and review routes. Reads are open
// to guests and served through the Redis cache; writes need a token and
// bump the cache generation once they succeed.
func RegisterListings(e *echo.Echo, l *handler.ListingHandler, r *handler.ReviewHandler, jwtSecret string, cache config.CacheConfig, rdb *redis.Client) {
	read := []echo.MiddlewareFunc{middleware.OptionalAuth(jwtSecret), middleware.ListingCache(cache, rdb)}
	write := []echo.MiddlewareFunc{middleware.OptionalAuth(jwtSecret), middleware.RequireAuth(), middleware.InvalidateListings(cache, rdb)}

	g := e.Group("/v1/listings")
	g.GET("", l.List, read...)
	g.GET("/:id", l.Get, read...)
	g.GET("/:id/rating", l.Rating, read...)
	g.GET("/:id/reviews", r.List, read...)

	g.POST("", l.Create, write...)
	g.PATCH("/:id", l.Update, write...)
	g.DELETE("/:id", l.Delete, write...)
	g.POST("/:id/reviews", r.Create, write...)

	rv := e.Group("/v1/reviews")
	rv.GET("/:id", r.Get, read...)
	rv.PATCH("/:id", r.Update, write...)
	rv.DELETE("/:id", r.Delete, write...)
}

// RegisterBookings registers the booking endpoints. Every booking route
// requires an access token; visibility is decided per caller by the
// service, so responses are never cached.
func RegisterBookings(e *echo.Echo, b *handler.BookingHandler, jwtSecret string) {
	g := e.Group("/v1/bookings", middleware.JWTAuth(jwtSecret))
	g.GET("", b.List)
	g.POST("", b.Create)
	g.GET("/:id", b.Get)
	g.PATCH("/:id", b.Reschedule)
	g.GET("/:id/history", b.History)
	g.POST("/:id/confirm", b.Confirm)
	g.POST("/:id/decline", b.Decline)
	g.POST("/:id/cancel", b.Cancel)
}
