package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

const devJWTSecret = "dev_secret_change_me"

// Configはアプリ全体の設定
type Config struct {
	GoEnv       string `env:"GO_ENV" envDefault:"development"` // development/production/test
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	FrontendURL string `env:"FRONTEND_URL" envDefault:"http://localhost:3000"` // パスワード再設定リンクの生成先

	// 空ならリクエストのHostから画像URLを作る
	PublicBaseURL string `env:"PUBLIC_BASE_URL"`

	Server  ServerConfig
	DB      DBConfig
	JWT     JWTConfig
	Storage StorageConfig
	Mail    MailConfig
	Payment PaymentConfig
	Cache   CacheConfig
	Broker  BrokerConfig
}

type ServerConfig struct {
	Port            int           `env:"PORT" envDefault:"5000"`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"15s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	BodyLimit       string        `env:"SERVER_BODY_LIMIT" envDefault:"10M"`
	CORSOrigins     []string      `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
}

type DBConfig struct {
	Driver string `env:"DB_DRIVER" envDefault:"postgres"` // postgres/sqlite

	// DATABASE_URL があれば最優先で使う
	URL string `env:"DATABASE_URL"`

	Host     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port     int    `env:"POSTGRES_PORT" envDefault:"5432"`
	User     string `env:"POSTGRES_USER" envDefault:"postgres"`
	Password string `env:"POSTGRES_PASSWORD" envDefault:"postgres"`
	Name     string `env:"POSTGRES_DB" envDefault:"textilemart"`
	SSLMode  string `env:"POSTGRES_SSLMODE" envDefault:"disable"`

	SQLitePath string `env:"SQLITE_PATH" envDefault:"textilemart.db"`

	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m"`
}

// 接続文字列
func (c DBConfig) DSN() string {
	if c.Driver == "sqlite" {
		return c.SQLitePath
	}
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

type JWTConfig struct {
	Secret string        `env:"JWT_SECRET" envDefault:"dev_secret_change_me"`
	TTL    time.Duration `env:"JWT_TTL" envDefault:"24h"`
}

type StorageConfig struct {
	UploadDir     string        `env:"UPLOAD_DIR" envDefault:"uploads"`
	MaxImageBytes int64         `env:"MAX_IMAGE_BYTES" envDefault:"5242880"`
	S3Bucket      string        `env:"S3_BUCKET"` // 空ならローカル保存
	AWSRegion     string        `env:"AWS_REGION" envDefault:"us-east-1"`
	AWSAccessKey  string        `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretKey  string        `env:"AWS_SECRET_ACCESS_KEY"`
	PresignTTL    time.Duration `env:"S3_PRESIGN_TTL" envDefault:"1h"`
}

func (c StorageConfig) UseS3() bool { return c.S3Bucket != "" }

type MailConfig struct {
	SMTPHost string `env:"SMTP_HOST"` // 空ならメールは送らずログに出す
	SMTPPort int    `env:"SMTP_PORT" envDefault:"587"`
	User     string `env:"EMAIL_USER"`
	Password string `env:"EMAIL_PASS"`
	From     string `env:"EMAIL_FROM" envDefault:"no-reply@textilemart.local"`
}

func (c MailConfig) Enabled() bool { return c.SMTPHost != "" && c.User != "" && c.Password != "" }

type PaymentConfig struct {
	StripeSecretKey string `env:"STRIPE_SECRET_KEY"`
	Currency        string `env:"PAYMENT_CURRENCY" envDefault:"usd"`
}

type CacheConfig struct {
	RedisAddr     string        `env:"REDIS_ADDR"` // 空ならキャッシュ無し
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	ProductTTL    time.Duration `env:"PRODUCT_CACHE_TTL" envDefault:"60s"`
}

type BrokerConfig struct {
	RabbitMQURL string `env:"RABBITMQ_URL"` // 空ならイベントはログだけ
	Exchange    string `env:"RABBITMQ_EXCHANGE" envDefault:"textilemart.events"`
	NotifyQueue string `env:"RABBITMQ_NOTIFY_QUEUE" envDefault:"textilemart.notifications"`
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.GoEnv, "production") || strings.EqualFold(c.GoEnv, "prod")
}

// Loadは .env → 環境変数 の順で読み込む（既にある環境変数が優先）
func Load() (Config, error) {
	loadDotEnv()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	//必須チェック
	if c.Server.Port <= 0 {
		return fmt.Errorf("PORT must be > 0")
	}
	switch c.DB.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", c.DB.Driver)
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.IsProduction() && c.JWT.Secret == devJWTSecret {
		return fmt.Errorf("JWT_SECRET must be set in production")
	}
	if c.JWT.TTL <= 0 {
		return fmt.Errorf("JWT_TTL must be > 0")
	}
	if c.Storage.MaxImageBytes <= 0 {
		return fmt.Errorf("MAX_IMAGE_BYTES must be > 0")
	}
	return nil
}

// .env.<GO_ENV> と .env を読む（無ければ何もしない）
func loadDotEnv() {
	if goEnv := os.Getenv("GO_ENV"); goEnv != "" {
		_ = godotenv.Load(".env." + goEnv)
	}
	_ = godotenv.Load()
}
