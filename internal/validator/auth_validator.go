package validator

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strings"

	"textilemart/internal/repository"
	"textilemart/internal/usecase"
)

const (
	minPasswordLen = 8
	maxPasswordLen = 72 // bcryptの上限
	maxNameLen     = 100
)

// 簡易メール形式
var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type authValidator struct {
	users repository.UserRepository
}

// Usecaseは interface を依存注入
func NewAuthValidator(users repository.UserRepository) usecase.AuthValidator {
	return &authValidator{users: users}
}

// サインアップの入力を検証
func (v *authValidator) ValidateRegister(ctx context.Context, in usecase.RegisterInput) error {
	name := strings.TrimSpace(in.Name)
	email := strings.TrimSpace(in.Email)

	// 必須チェック
	if name == "" || email == "" || in.Password == "" {
		return badRequest("name, email and password are required")
	}
	if len(name) > maxNameLen {
		return badRequest("name too long")
	}
	if err := v.ValidateEmail(email); err != nil {
		return err
	}
	if err := v.ValidatePassword(in.Password); err != nil {
		return err
	}

	// email重複チェック（DBが必要）
	u, err := v.users.FindByEmail(ctx, email)
	if err == nil && u != nil {
		return usecase.NewHTTPError(http.StatusConflict, "user already exists")
	}
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return usecase.NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return nil
}

// ログインの入力を検証
func (v *authValidator) ValidateLogin(ctx context.Context, email string, password string) error {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return badRequest("email and password are required")
	}
	return v.ValidateEmail(email)
}

func (v *authValidator) ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return badRequest("email is required")
	}
	if !emailRe.MatchString(email) {
		return badRequest("invalid email")
	}
	return nil
}

func (v *authValidator) ValidatePassword(password string) error {
	if len(password) < minPasswordLen {
		return badRequest("password must be at least 8 characters")
	}
	if len(password) > maxPasswordLen {
		return badRequest("password too long")
	}
	return nil
}

// プロフィール更新: 指定されたフィールドだけ検証
func (v *authValidator) ValidateProfile(ctx context.Context, userID int64, in usecase.ProfileInput) error {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return badRequest("name must not be empty")
		}
		if len(name) > maxNameLen {
			return badRequest("name too long")
		}
	}
	if in.Password != nil {
		if err := v.ValidatePassword(*in.Password); err != nil {
			return err
		}
	}
	if in.Email != nil {
		email := strings.TrimSpace(*in.Email)
		if err := v.ValidateEmail(email); err != nil {
			return err
		}
		// 自分以外が使っていたら409
		u, err := v.users.FindByEmail(ctx, email)
		if err == nil && u != nil && u.ID != userID {
			return usecase.NewHTTPError(http.StatusConflict, "email already in use")
		}
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return usecase.NewHTTPError(http.StatusInternalServerError, "db error")
		}
	}
	return nil
}

func badRequest(msg string) error {
	return usecase.NewHTTPError(http.StatusBadRequest, msg)
}
