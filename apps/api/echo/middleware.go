package echoapi

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// authorize lets through the requests of Users having the given role; the others get a 401 with msg.
// It must run after loadUser.
func authorize(role, msg string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx)
			if err != nil {
				return err
			}
			if usr.Role != role {
				return echo.NewHTTPError(http.StatusUnauthorized, msg)
			}
			return next(ctx)
		}
	}
}

// mustExist responds with the NotFoundError of get before the handler runs when the :id path param does not resolve.
func mustExist[T any](get func(context.Context, string) (T, error)) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if _, err := get(ctx.Request().Context(), ctx.Param("id")); err != nil {
				return errors.Wrap(err, "getting object")
			}
			return next(ctx)
		}
	}
}
