package middleware

import (
	"textilemart/internal/infra/storage"

	"github.com/labstack/echo/v4"
)

// 画像URL用に scheme://host をctxへ載せる
func BaseURL() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			base := c.Scheme() + "://" + c.Request().Host
			req := c.Request()
			c.SetRequest(req.WithContext(storage.WithBaseURL(req.Context(), base)))
			return next(c)
		}
	}
}
