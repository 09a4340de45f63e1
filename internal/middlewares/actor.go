package middlewares

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/onurcolak/future-message-service/internal/domain"
	"github.com/onurcolak/future-message-service/pkg/response"
)

const (
	ActorIDHeader   = "x-actor-id"
	ActorNameHeader = "x-actor-name"

	actorContextKey = "actor"
)

// RequireActor resolves the user behind a mutation from x-actor-id and
// x-actor-name. Safe methods pass through untouched. The name falls back to
// the id when missing.
func RequireActor() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			switch c.Request().Method {
			case "GET", "HEAD", "OPTIONS":
				return next(c)
			}

			id := strings.TrimSpace(c.Request().Header.Get(ActorIDHeader))
			if id == "" {
				return response.BadRequestWithMessage(c, "missing "+ActorIDHeader+" header")
			}

			name := strings.TrimSpace(c.Request().Header.Get(ActorNameHeader))
			if name == "" {
				name = id
			}

			c.Set(actorContextKey, domain.Actor{ID: id, Name: name})

			return next(c)
		}
	}
}

// ActorFrom returns the actor stored by RequireActor.
func ActorFrom(c echo.Context) (domain.Actor, bool) {
	actor, ok := c.Get(actorContextKey).(domain.Actor)
	return actor, ok
}

// WithActor stores an actor on the context. Handlers behind RequireActor
// never need it; tests use it to skip the middleware.
func WithActor(c echo.Context, actor domain.Actor) {
	c.Set(actorContextKey, actor)
}
