package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

func adminMiddleware() echo.MiddlewareFunc {
	return requireClaims(func(claims Claims) bool { return claims.IsAdmin })
}

// teacherMiddleware also lets admins through.
func teacherMiddleware() echo.MiddlewareFunc {
	return requireClaims(func(claims Claims) bool { return claims.IsTeacher || claims.IsAdmin })
}

func requireClaims(allowed func(Claims) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if allowed(claims) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}
