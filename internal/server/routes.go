package server

import (
	"textilemart/internal/infra/storage"
	"textilemart/internal/middleware"

	"github.com/labstack/echo/v4"
)

// 全ルートは /api 配下
func RegisterRoutes(e *echo.Echo, opts Options, h Handlers) {
	api := e.Group("/api")
	authn := middleware.AuthJWT(opts.Config.JWT.Secret, opts.Users)

	if opts.UploadDir != "" {
		e.Static(storage.UploadsPath, opts.UploadDir)
	}

	h.Health.RegisterRoutes(api)
	h.Auth.RegisterRoutes(api)
	h.Product.RegisterRoutes(api, authn)
	h.User.RegisterRoutes(api, authn)
	h.Order.RegisterRoutes(api, authn)
	h.Delivery.RegisterRoutes(api, authn)
	h.Refund.RegisterRoutes(api, authn)
	h.Payment.RegisterRoutes(api, authn)
	h.Audit.RegisterRoutes(api, authn)
}
