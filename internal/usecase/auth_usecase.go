package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"textilemart/internal/domain/model"
	"textilemart/internal/repository"
	auth "textilemart/internal/usecase/auth_usecase"
)

const resetMailSubject = "Password reset request"

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     string
}

type LoginInput struct {
	Email    string
	Password string
}

type AccessToken struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// register/login の出力
type AuthResult struct {
	User  model.User  `json:"user"`
	Token AccessToken `json:"token"`
}

type AuthUsecase struct {
	users       repository.UserRepository
	validator   AuthValidator
	hasher      PasswordHasher
	issuer      AccessTokenIssuer
	mailer      Mailer
	clock       Clock
	frontendURL string
	log         *slog.Logger
}

func NewAuthUsecase(
	users repository.UserRepository,
	validator AuthValidator,
	hasher PasswordHasher,
	issuer AccessTokenIssuer,
	mailer Mailer,
	clock Clock,
	frontendURL string,
	log *slog.Logger,
) *AuthUsecase {
	return &AuthUsecase{
		users:       users,
		validator:   validator,
		hasher:      hasher,
		issuer:      issuer,
		mailer:      mailer,
		clock:       clock,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		log:         log,
	}
}

// 自己登録はbuyer/deliveryだけ（adminは管理者が作る）
func (u *AuthUsecase) Register(ctx context.Context, in RegisterInput) (AuthResult, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	//入力検証（validatorに寄せる）
	if err := u.validator.ValidateRegister(ctx, in); err != nil {
		return AuthResult{}, err
	}

	role := model.RoleBuyer
	if strings.TrimSpace(in.Role) != "" {
		r, ok := model.ParseRole(in.Role)
		if !ok || r == model.RoleAdmin {
			return AuthResult{}, NewHTTPError(http.StatusBadRequest, "role must be buyer or delivery")
		}
		role = r
	}

	//パスワードは必ずハッシュ化して保存（平文保存しない）
	pwHash, err := u.hasher.Hash(in.Password)
	if err != nil {
		return AuthResult{}, NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	user := &model.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: pwHash,
		Role:         role,
	}
	if err := u.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return AuthResult{}, NewHTTPError(http.StatusConflict, "user already exists")
		}
		return AuthResult{}, errDB
	}

	return u.issue(*user)
}

func (u *AuthUsecase) Login(ctx context.Context, in LoginInput) (AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if err := u.validator.ValidateLogin(ctx, email, in.Password); err != nil {
		return AuthResult{}, err
	}

	user, err := u.users.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && user == nil) {
		return AuthResult{}, NewHTTPError(http.StatusUnauthorized, "invalid email or password")
	}
	if err != nil {
		return AuthResult{}, errDB
	}

	//パスワード照合（bcrypt）
	if !u.hasher.Verify(in.Password, user.PasswordHash) {
		return AuthResult{}, NewHTTPError(http.StatusUnauthorized, "invalid email or password")
	}

	//last_login更新
	now := u.clock.Now()
	user.LastLoginAt = &now
	if err := u.users.Update(ctx, user); err != nil {
		u.log.WarnContext(ctx, "update last login failed", "userId", user.ID, "error", err)
	}

	return u.issue(*user)
}

// 登録有無にかかわらず同じ応答を返す
func (u *AuthUsecase) ForgotPassword(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := u.validator.ValidateEmail(email); err != nil {
		return err
	}

	user, err := u.users.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && user == nil) {
		return nil
	}
	if err != nil {
		return errDB
	}

	plain, hash, err := auth.NewResetToken()
	if err != nil {
		return NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	expires := u.clock.Now().Add(auth.ResetTokenTTL)
	user.ResetPasswordTokenHash = &hash
	user.ResetPasswordExpiresAt = &expires
	if err := u.users.Update(ctx, user); err != nil {
		return errDB
	}

	link := fmt.Sprintf("%s/reset-password/%s", u.frontendURL, plain)
	body := fmt.Sprintf(
		"You requested a password reset.\n\nOpen the link below within %d minutes to choose a new password:\n\n%s\n\nIf you did not request this, you can ignore this email.\n",
		int(auth.ResetTokenTTL.Minutes()), link,
	)
	if err := u.mailer.Send(ctx, user.Email, resetMailSubject, body); err != nil {
		u.log.ErrorContext(ctx, "send reset mail failed", "userId", user.ID, "error", err)

		//送れなかったトークンは残さない
		user.ClearResetToken()
		if err := u.users.Update(ctx, user); err != nil {
			u.log.ErrorContext(ctx, "clear reset token failed", "userId", user.ID, "error", err)
		}
		return NewHTTPError(http.StatusInternalServerError, "email could not be sent")
	}
	return nil
}

func (u *AuthUsecase) VerifyResetToken(ctx context.Context, token string) error {
	_, err := u.findByResetToken(ctx, token)
	return err
}

// 新しいパスワードを設定し、既存のJWTを無効化する
func (u *AuthUsecase) ResetPassword(ctx context.Context, token string, password string) error {
	if err := u.validator.ValidatePassword(password); err != nil {
		return err
	}
	user, err := u.findByResetToken(ctx, token)
	if err != nil {
		return err
	}

	pwHash, err := u.hasher.Hash(password)
	if err != nil {
		return NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	user.PasswordHash = pwHash
	user.ClearResetToken()
	if err := u.users.Update(ctx, user); err != nil {
		return errDB
	}
	if err := u.users.IncrementTokenVersion(ctx, user.ID); err != nil {
		return errDB
	}
	return nil
}

func (u *AuthUsecase) findByResetToken(ctx context.Context, token string) (*model.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, NewHTTPError(http.StatusBadRequest, "invalid or expired token")
	}
	user, err := u.users.FindByResetTokenHash(ctx, auth.HashResetToken(token), u.clock.Now())
	if errors.Is(err, repository.ErrNotFound) || (err == nil && user == nil) {
		return nil, NewHTTPError(http.StatusBadRequest, "invalid or expired token")
	}
	if err != nil {
		return nil, errDB
	}
	return user, nil
}

// access token発行
func (u *AuthUsecase) issue(user model.User) (AuthResult, error) {
	token, exp, err := u.issuer.Issue(user, u.clock.Now())
	if err != nil {
		return AuthResult{}, NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return AuthResult{
		User:  user,
		Token: AccessToken{AccessToken: token, ExpiresAt: exp},
	}, nil
}
