package usecase

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"textilemart/internal/domain/model"
	"textilemart/internal/lifecycle"
	repo "textilemart/internal/repository"
)

var errDB = NewHTTPError(http.StatusInternalServerError, "db error")

// コミット後にイベントを流す。失敗してもリクエストは成功のまま
type emitter struct {
	pub EventPublisher
	log *slog.Logger
}

func (e emitter) emit(ctx context.Context, evs ...lifecycle.Event) {
	if e.pub == nil {
		return
	}
	for _, ev := range evs {
		if err := e.pub.Publish(ctx, ev); err != nil && e.log != nil {
			e.log.WarnContext(ctx, "publish event failed", "type", ev.Type, "orderId", ev.OrderID, "error", err)
		}
	}
}

// 画像キーをレスポンス用の絶対URLにする
type imageResolver struct {
	store ImageStore
	log   *slog.Logger
}

func (r imageResolver) product(ctx context.Context, p *model.Product) {
	if p == nil || p.Image == "" || r.store == nil {
		return
	}
	url, err := r.store.URL(ctx, p.Image)
	if err != nil {
		if r.log != nil {
			r.log.WarnContext(ctx, "resolve image url failed", "productId", p.ID, "error", err)
		}
		return
	}
	p.ImageURL = url
}

func (r imageResolver) products(ctx context.Context, ps []model.Product) {
	for i := range ps {
		r.product(ctx, &ps[i])
	}
}

func (r imageResolver) order(ctx context.Context, o *model.Order) {
	r.product(ctx, o.Product)
}

func (r imageResolver) orders(ctx context.Context, list []model.Order) {
	for i := range list {
		r.order(ctx, &list[i])
	}
}

// 監査ログを1件作る（before/afterはJSONにする）
func writeAudit(ctx context.Context, audits repo.AuditLogRepository, actorID int64, action model.AuditAction, rt model.AuditResourceType, id int64, before, after any) error {
	b, err := json.Marshal(before)
	if err != nil {
		return err
	}
	a, err := json.Marshal(after)
	if err != nil {
		return err
	}
	return audits.Create(ctx, model.AuditLog{
		ActorUserID:  actorID,
		Action:       action,
		ResourceType: rt,
		ResourceID:   id,
		BeforeJSON:   string(b),
		AfterJSON:    string(a),
	})
}

// tx内で作ったHTTPErrorはそのまま、それ以外はdb error
func txError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := AsHTTPError(err); ok {
		return err
	}
	return errDB
}

func normalizePage(page, limit, maxLimit int) (int, int, error) {
	if page < 0 {
		return 0, 0, NewHTTPError(http.StatusBadRequest, "invalid page")
	}
	if limit < 0 || limit > maxLimit {
		return 0, 0, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}
	if limit > 0 && page == 0 {
		page = 1
	}
	return page, limit, nil
}
