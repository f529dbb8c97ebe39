// Package server assembles the echo instance: middleware stack, routes and
// lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"textilemart/internal/config"
	"textilemart/internal/handler"
	"textilemart/internal/infra/metrics"
	"textilemart/internal/middleware"
	repo "textilemart/internal/repository"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

// ルート登録に使うハンドラ一式
type Handlers struct {
	Health   *handler.HealthHandler
	Auth     *handler.AuthHandler
	User     *handler.UserHandler
	Product  *handler.ProductHandler
	Order    *handler.OrderHandler
	Delivery *handler.DeliveryHandler
	Refund   *handler.RefundHandler
	Payment  *handler.PaymentHandler
	Audit    *handler.AuditHandler
}

type Options struct {
	Config  config.Config
	Log     *slog.Logger
	Users   repo.UserRepository
	Metrics *metrics.Metrics
	// 空ならローカル画像を配信しない（S3利用時）
	UploadDir string
}

type Server struct {
	echo *echo.Echo
	http *http.Server
	log  *slog.Logger
}

func New(opts Options, h Handlers) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(requestLogger(opts.Log))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: opts.Config.Server.CORSOrigins,
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
	}))
	e.Use(echomw.BodyLimit(opts.Config.Server.BodyLimit))
	if opts.Metrics != nil {
		e.Use(opts.Metrics.Middleware())
		e.GET("/metrics", echo.WrapHandler(opts.Metrics.Handler()))
	}
	e.Use(middleware.BaseURL())

	RegisterRoutes(e, opts, h)

	return &Server{
		echo: e,
		http: &http.Server{
			Addr:         fmt.Sprintf(":%d", opts.Config.Server.Port),
			Handler:      e,
			ReadTimeout:  opts.Config.Server.ReadTimeout,
			WriteTimeout: opts.Config.Server.WriteTimeout,
		},
		log: opts.Log,
	}
}

// テストから httptest で叩く用
func (s *Server) Handler() http.Handler { return s.echo }

// Shutdownで止まったときはnil
func (s *Server) Start() error {
	s.log.Info("http server listening", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// アクセスログ（slog）
func requestLogger(log *slog.Logger) echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("requestId", v.RequestID),
			}
			level := slog.LevelInfo
			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
				level = slog.LevelError
			}
			log.LogAttrs(c.Request().Context(), level, "request", attrs...)
			return nil
		},
	})
}
