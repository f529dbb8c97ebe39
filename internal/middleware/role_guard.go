package middleware

import (
	"net/http"

	"textilemart/internal/domain/model"

	"github.com/labstack/echo/v4"
)

// AuthJWTの後ろに置く。roleが一致しなければ403
func RequireRole(roles ...model.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor, ok := ActorFrom(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, errorJSON("not authorized, no token"))
			}
			for _, r := range roles {
				if actor.Role == r {
					return next(c)
				}
			}
			return c.JSON(http.StatusForbidden, errorJSON(deniedMessage(roles)))
		}
	}
}

func deniedMessage(roles []model.Role) string {
	if len(roles) != 1 {
		return "not authorized for this resource"
	}
	switch roles[0] {
	case model.RoleAdmin:
		return "not authorized as admin"
	case model.RoleDelivery:
		return "not authorized as delivery person"
	case model.RoleBuyer:
		return "not authorized as buyer"
	}
	return "not authorized for this resource"
}
