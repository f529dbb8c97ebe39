package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"textilemart/internal/domain/model"
	"textilemart/internal/domain/policy"
	"textilemart/internal/repository"
)

// 管理者によるユーザー管理と、本人のプロフィール
type UserUsecase struct {
	users     repository.UserRepository
	audits    repository.AuditLogRepository
	validator AuthValidator
	hasher    PasswordHasher
}

func NewUserUsecase(
	users repository.UserRepository,
	audits repository.AuditLogRepository,
	validator AuthValidator,
	hasher PasswordHasher,
) *UserUsecase {
	return &UserUsecase{users: users, audits: audits, validator: validator, hasher: hasher}
}

type CreateUserInput struct {
	Name     string
	Email    string
	Password string
	Role     string
}

// adminはどのroleでも作れる
func (u *UserUsecase) Create(ctx context.Context, actor policy.Actor, in CreateUserInput) (model.User, error) {
	if !actor.IsAdmin() {
		return model.User{}, NewHTTPError(http.StatusForbidden, "forbidden")
	}
	role := model.RoleBuyer
	if strings.TrimSpace(in.Role) != "" {
		r, ok := model.ParseRole(in.Role)
		if !ok {
			return model.User{}, NewHTTPError(http.StatusBadRequest, "invalid role")
		}
		role = r
	}
	return u.create(ctx, in, role)
}

// CLIから最初の管理者を作る（認証なし）
func (u *UserUsecase) CreateAdmin(ctx context.Context, in CreateUserInput) (model.User, error) {
	return u.create(ctx, in, model.RoleAdmin)
}

func (u *UserUsecase) create(ctx context.Context, in CreateUserInput, role model.Role) (model.User, error) {
	reg := RegisterInput{
		Name:     strings.TrimSpace(in.Name),
		Email:    strings.ToLower(strings.TrimSpace(in.Email)),
		Password: in.Password,
	}
	if err := u.validator.ValidateRegister(ctx, reg); err != nil {
		return model.User{}, err
	}

	pwHash, err := u.hasher.Hash(reg.Password)
	if err != nil {
		return model.User{}, NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	user := &model.User{Name: reg.Name, Email: reg.Email, PasswordHash: pwHash, Role: role}
	if err := u.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return model.User{}, NewHTTPError(http.StatusConflict, "user already exists")
		}
		return model.User{}, errDB
	}
	return *user, nil
}

func (u *UserUsecase) List(ctx context.Context, actor policy.Actor, role string) ([]model.User, error) {
	if !actor.IsAdmin() {
		return nil, NewHTTPError(http.StatusForbidden, "forbidden")
	}
	q := repository.UserListQuery{}
	if strings.TrimSpace(role) != "" {
		r, ok := model.ParseRole(role)
		if !ok {
			return nil, NewHTTPError(http.StatusBadRequest, "invalid role")
		}
		q.Role = &r
	}
	users, err := u.users.List(ctx, q)
	if err != nil {
		return nil, errDB
	}
	return users, nil
}

func (u *UserUsecase) Get(ctx context.Context, actor policy.Actor, userID int64) (model.User, error) {
	if !actor.IsAdmin() && actor.UserID != userID {
		return model.User{}, NewHTTPError(http.StatusForbidden, "forbidden")
	}
	return u.find(ctx, userID)
}

func (u *UserUsecase) find(ctx context.Context, userID int64) (model.User, error) {
	if userID <= 0 {
		return model.User{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	user, err := u.users.FindByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && user == nil) {
		return model.User{}, NewHTTPError(http.StatusNotFound, "user not found")
	}
	if err != nil {
		return model.User{}, errDB
	}
	return *user, nil
}

// 部分更新。nilのフィールドは変更しない
type ProfileInput struct {
	Name     *string
	Email    *string
	Password *string
}

type UpdateUserInput struct {
	ProfileInput
	Role *string
}

// admin: role変更時はtoken_versionを上げて既存のJWTを無効化する
func (u *UserUsecase) Update(ctx context.Context, actor policy.Actor, userID int64, in UpdateUserInput) (model.User, error) {
	if !actor.IsAdmin() {
		return model.User{}, NewHTTPError(http.StatusForbidden, "forbidden")
	}
	var role *model.Role
	if in.Role != nil {
		r, ok := model.ParseRole(*in.Role)
		if !ok {
			return model.User{}, NewHTTPError(http.StatusBadRequest, "invalid role")
		}
		role = &r
	}

	user, err := u.find(ctx, userID)
	if err != nil {
		return model.User{}, err
	}
	if err := u.applyProfile(ctx, &user, in.ProfileInput); err != nil {
		return model.User{}, err
	}

	before := user.Role
	if role != nil {
		if *role != model.RoleAdmin && user.ID == actor.UserID {
			return model.User{}, NewHTTPError(http.StatusBadRequest, "cannot remove your own admin role")
		}
		user.Role = *role
	}

	if err := u.save(ctx, &user); err != nil {
		return model.User{}, err
	}

	if user.Role != before {
		if err := u.users.IncrementTokenVersion(ctx, user.ID); err != nil {
			return model.User{}, errDB
		}
		if err := writeAudit(ctx, u.audits, actor.UserID, model.AuditActionUpdateUserRole, model.AuditResourceUser, user.ID,
			map[string]any{"role": before},
			map[string]any{"role": user.Role},
		); err != nil {
			return model.User{}, errDB
		}
	}
	return user, nil
}

// 物理削除
func (u *UserUsecase) Delete(ctx context.Context, actor policy.Actor, userID int64) error {
	if !actor.IsAdmin() {
		return NewHTTPError(http.StatusForbidden, "forbidden")
	}
	if userID <= 0 {
		return NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if userID == actor.UserID {
		return NewHTTPError(http.StatusBadRequest, "cannot delete yourself")
	}
	err := u.users.Delete(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return NewHTTPError(http.StatusNotFound, "user not found")
	}
	if err != nil {
		return errDB
	}
	return nil
}

func (u *UserUsecase) Me(ctx context.Context, actor policy.Actor) (model.User, error) {
	if actor.UserID <= 0 {
		return model.User{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	return u.find(ctx, actor.UserID)
}

// 本人のプロフィール更新（roleは変えられない）
func (u *UserUsecase) UpdateMe(ctx context.Context, actor policy.Actor, in ProfileInput) (model.User, error) {
	if actor.UserID <= 0 {
		return model.User{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	user, err := u.find(ctx, actor.UserID)
	if err != nil {
		return model.User{}, err
	}
	if err := u.applyProfile(ctx, &user, in); err != nil {
		return model.User{}, err
	}
	if err := u.save(ctx, &user); err != nil {
		return model.User{}, err
	}
	return user, nil
}

func (u *UserUsecase) applyProfile(ctx context.Context, user *model.User, in ProfileInput) error {
	if in.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*in.Email))
		in.Email = &email
	}
	if err := u.validator.ValidateProfile(ctx, user.ID, in); err != nil {
		return err
	}
	if in.Name != nil {
		user.Name = strings.TrimSpace(*in.Name)
	}
	if in.Email != nil {
		user.Email = *in.Email
	}
	if in.Password != nil {
		pwHash, err := u.hasher.Hash(*in.Password)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "internal error")
		}
		user.PasswordHash = pwHash
	}
	return nil
}

func (u *UserUsecase) save(ctx context.Context, user *model.User) error {
	err := u.users.Update(ctx, user)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrConflict):
		return NewHTTPError(http.StatusConflict, "email already in use")
	case errors.Is(err, repository.ErrNotFound):
		return NewHTTPError(http.StatusNotFound, "user not found")
	default:
		return errDB
	}
}
