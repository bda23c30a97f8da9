package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/rental-marketplace/internal/model"
)

const actorKey = "actor"

// ActorFrom returns the actor stored by JWTAuth or OptionalAuth, or the
// anonymous actor when the request carries no valid token.
func ActorFrom(c echo.Context) model.Actor {
	if a, ok := c.Get(actorKey).(model.Actor); ok {
		return a
	}
	return model.Anonymous()
}

// SetActor stores a in the request context.
func SetActor(c echo.Context, a model.Actor) { c.Set(actorKey, a) }
