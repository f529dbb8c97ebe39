package repository

import (
	"context"
	"time"

	"textilemart/internal/domain/model"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 200
)

//監査ログの絞り込み条件。

type AuditLogFilter struct {
	ActorUserID  *int64
	Action       *model.AuditAction
	ResourceType *model.AuditResourceType
	ResourceID   *int64
	CreatedFrom  *time.Time
	CreatedTo    *time.Time
	Limit        int
	Offset       int
}

// 0や上限超えはデフォルトに丸める
func (f AuditLogFilter) NormalizedLimit() int {
	if f.Limit <= 0 || f.Limit > maxAuditLimit {
		return defaultAuditLimit
	}
	return f.Limit
}

// 監査ログの保存・一覧取得の約束。
type AuditLogRepository interface {
	//監査ログを1件保存
	Create(ctx context.Context, entry model.AuditLog) error

	//監査ログを条件で一覧取得（新しい順、totalは絞り込み後の件数）
	List(ctx context.Context, filter AuditLogFilter) ([]model.AuditLog, int64, error)
}
