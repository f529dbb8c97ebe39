package main

import (
	"context"
	"fmt"
	"log/slog"

	"textilemart/internal/config"
	"textilemart/internal/handler"
	"textilemart/internal/infra/broker"
	"textilemart/internal/infra/cache"
	"textilemart/internal/infra/db"
	"textilemart/internal/infra/mail"
	"textilemart/internal/infra/metrics"
	"textilemart/internal/infra/payment"
	infrarepo "textilemart/internal/infra/repository"
	"textilemart/internal/infra/storage"
	"textilemart/internal/lifecycle"
	"textilemart/internal/repository"
	"textilemart/internal/server"
	"textilemart/internal/usecase"
	auth "textilemart/internal/usecase/auth_usecase"
	"textilemart/internal/validator"
	"textilemart/internal/worker"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// 接続済みの依存とusecase一式
type app struct {
	cfg     config.Config
	log     *slog.Logger
	db      *gorm.DB
	redis   *redis.Client
	amqp    *amqp.Connection
	metrics *metrics.Metrics
	images  usecase.ImageStore

	userRepo repository.UserRepository
	mailer   usecase.Mailer

	auth     *usecase.AuthUsecase
	users    *usecase.UserUsecase
	products *usecase.ProductUsecase
	orders   *usecase.OrderUsecase
	delivery *usecase.DeliveryUsecase
	refunds  *usecase.RefundUsecase
	payments *usecase.PaymentUsecase
	audits   *usecase.AuditUsecase

	closers []func() error
}

func newApp(ctx context.Context, cfg config.Config, log *slog.Logger) (a *app, err error) {
	a = &app{cfg: cfg, log: log, metrics: metrics.New()}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	// DB
	a.db, err = db.Connect(cfg.DB)
	if err != nil {
		return nil, err
	}
	sqlDB, err := a.db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	a.closers = append(a.closers, sqlDB.Close)
	if err := db.Migrate(a.db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	log.Info("connected to database", "driver", cfg.DB.Driver)

	// Redis（任意）
	var productCache usecase.ProductCache = cache.NopCache{}
	if cfg.Cache.RedisAddr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		a.closers = append(a.closers, a.redis.Close)
		pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		defer cancel()
		if err := a.redis.Ping(pingCtx).Err(); err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		productCache = cache.NewRedisCache(a.redis, "textilemart:")
		log.Info("connected to redis")
	}

	// RabbitMQ（任意）
	var pub metrics.Publisher = broker.NewLogPublisher(log)
	if cfg.Broker.RabbitMQURL != "" {
		a.amqp, err = amqp.Dial(cfg.Broker.RabbitMQURL)
		if err != nil {
			return nil, fmt.Errorf("connect to rabbitmq: %w", err)
		}
		a.closers = append(a.closers, a.amqp.Close)
		ch, err := a.amqp.Channel()
		if err != nil {
			return nil, fmt.Errorf("open rabbitmq channel: %w", err)
		}
		amqpPub, err := broker.NewAMQPPublisher(ch, cfg.Broker.Exchange)
		if err != nil {
			return nil, err
		}
		pub = amqpPub
		log.Info("connected to rabbitmq", "exchange", cfg.Broker.Exchange)
	}
	events := a.metrics.WrapPublisher(pub)

	// 画像
	if cfg.Storage.UseS3() {
		a.images, err = storage.NewS3StoreFromConfig(ctx, cfg.Storage)
	} else {
		a.images, err = storage.NewLocalStore(cfg.Storage.UploadDir, cfg.PublicBaseURL)
	}
	if err != nil {
		return nil, err
	}

	// メール
	if cfg.Mail.Enabled() {
		a.mailer = mail.NewSMTPMailer(cfg.Mail)
	} else {
		a.mailer = mail.NewLogMailer(log)
	}

	// 決済（未設定なら502を返す）
	var gateway usecase.PaymentGateway
	if cfg.Payment.StripeSecretKey != "" {
		gateway = payment.NewStripeGateway(cfg.Payment.StripeSecretKey)
	}

	clock := usecase.SystemClock{}
	coord := lifecycle.NewCoordinator(lifecycle.WithObserver(a.metrics))
	tx := infrarepo.NewTxManagerGorm(a.db)
	a.userRepo = infrarepo.NewUserGormRepository(a.db)
	auditRepo := infrarepo.NewAuditLogGormRepository(a.db)
	v := validator.NewAuthValidator(a.userRepo)
	hasher := auth.NewBcryptPasswordHasher(bcrypt.DefaultCost)
	issuer := auth.NewJWTIssuer(cfg.JWT.Secret, cfg.JWT.TTL)

	a.auth = usecase.NewAuthUsecase(a.userRepo, v, hasher, issuer, a.mailer, clock, cfg.FrontendURL, log)
	a.users = usecase.NewUserUsecase(a.userRepo, auditRepo, v, hasher)
	a.products = usecase.NewProductUsecase(tx, infrarepo.NewProductGormRepository(a.db), a.images, productCache, cfg.Cache.ProductTTL, log)
	a.orders = usecase.NewOrderUsecase(tx, infrarepo.NewOrderGormRepository(a.db), coord, a.images, events, clock, log)
	a.delivery = usecase.NewDeliveryUsecase(tx, infrarepo.NewDeliveryGormRepository(a.db), coord, a.images, events, clock, log)
	a.refunds = usecase.NewRefundUsecase(tx, infrarepo.NewRefundGormRepository(a.db), coord, events, clock, log)
	a.payments = usecase.NewPaymentUsecase(gateway, cfg.Payment.Currency, log)
	a.audits = usecase.NewAuditUsecase(auditRepo)

	return a, nil
}

// 開いた順と逆に閉じる
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}

func (a *app) serverOptions() server.Options {
	opts := server.Options{
		Config:  a.cfg,
		Log:     a.log,
		Users:   a.userRepo,
		Metrics: a.metrics,
	}
	if local, ok := a.images.(*storage.LocalStore); ok {
		opts.UploadDir = local.Dir()
	}
	return opts
}

func (a *app) handlers() server.Handlers {
	return server.Handlers{
		Health:   handler.NewHealthHandler(a.healthChecks()...),
		Auth:     handler.NewAuthHandler(a.auth),
		User:     handler.NewUserHandler(a.users),
		Product:  handler.NewProductHandler(a.products, a.cfg.Storage.MaxImageBytes),
		Order:    handler.NewOrderHandler(a.orders),
		Delivery: handler.NewDeliveryHandler(a.delivery),
		Refund:   handler.NewRefundHandler(a.refunds),
		Payment:  handler.NewPaymentHandler(a.payments),
		Audit:    handler.NewAuditHandler(a.audits),
	}
}

func (a *app) healthChecks() []handler.Check {
	checks := []handler.Check{{
		Name: "database",
		Ping: func(ctx context.Context) error {
			sqlDB, err := a.db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}}
	if a.redis != nil {
		checks = append(checks, handler.Check{
			Name: "redis",
			Ping: func(ctx context.Context) error { return a.redis.Ping(ctx).Err() },
		})
	}
	if a.amqp != nil {
		checks = append(checks, handler.Check{
			Name: "rabbitmq",
			Ping: func(ctx context.Context) error {
				if a.amqp.IsClosed() {
					return amqp.ErrClosed
				}
				return nil
			},
		})
	}
	return checks
}

// 通知キューを宣言して消費を始める
func (a *app) notificationWorker(ctx context.Context) (*worker.NotificationWorker, error) {
	if a.amqp == nil {
		return nil, fmt.Errorf("notification worker needs RABBITMQ_URL")
	}
	ch, err := a.amqp.Channel()
	if err != nil {
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}
	if err := worker.Setup(ch, a.cfg.Broker.Exchange, a.cfg.Broker.NotifyQueue); err != nil {
		return nil, err
	}

	var dedup worker.Deduper
	if a.redis != nil {
		dedup = a.redis
	}
	w := worker.NewNotificationWorker(ch, a.cfg.Broker.NotifyQueue, a.userRepo, a.mailer, dedup, a.log)
	if err := w.Start(ctx); err != nil {
		return nil, err
	}
	return w, nil
}
