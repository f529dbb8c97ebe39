package repository

import (
	"context"
	"time"

	"textilemart/internal/domain/model"
)

type UserListQuery struct {
	Role *model.Role
}

// 保存・取得を約束
type UserRepository interface {
	//新規ユーザー作成（email重複はErrConflict）
	Create(ctx context.Context, user *model.User) error
	// IDからユーザーを1件取得する。
	FindByID(ctx context.Context, userID int64) (*model.User, error)
	//メールからユーザーを一件取得する。
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	//有効期限内の再設定トークンを持つユーザー
	FindByResetTokenHash(ctx context.Context, tokenHash string, now time.Time) (*model.User, error)
	List(ctx context.Context, q UserListQuery) ([]model.User, error)
	// ユーザー情報の更新
	Update(ctx context.Context, user *model.User) error
	Delete(ctx context.Context, userID int64) error
	//トークンのバージョンを＋１
	IncrementTokenVersion(ctx context.Context, userID int64) error
}
