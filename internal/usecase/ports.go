package usecase

import (
	"context"
	"io"
	"time"

	"textilemart/internal/domain/model"
	"textilemart/internal/lifecycle"
)

// 現在の時間
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// usecaseがValidatorInterfaceに依存する約束
type AuthValidator interface {
	ValidateRegister(ctx context.Context, in RegisterInput) error
	ValidateLogin(ctx context.Context, email string, password string) error
	ValidatePassword(password string) error
	ValidateEmail(email string) error
	// 自分以外が同じemailを使っていたら409
	ValidateProfile(ctx context.Context, userID int64, in ProfileInput) error
}

// 平文パスワードのハッシュ化と照合
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain string, hashed string) bool
}

// JWTを発行する約束
type AccessTokenIssuer interface {
	Issue(user model.User, now time.Time) (token string, expiresAt time.Time, err error)
}

// メール送信（SMTP or ログ出力）
type Mailer interface {
	Send(ctx context.Context, to string, subject string, body string) error
}

// アップロード画像（検証済み）
type ImageUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// 商品画像の保存先（ローカル or S3）
type ImageStore interface {
	Save(ctx context.Context, img ImageUpload) (key string, err error)
	Delete(ctx context.Context, key string) error
	URL(ctx context.Context, key string) (string, error)
}

// 商品一覧/詳細のキャッシュ。取得失敗はミス扱い
type ProductCache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// コミット後のイベント配信
type EventPublisher interface {
	Publish(ctx context.Context, ev lifecycle.Event) error
}

// 外部決済（Stripeなど）
type PaymentGateway interface {
	CreatePaymentIntent(ctx context.Context, amountCents int64, currency string, metadata map[string]string) (clientSecret string, err error)
}
