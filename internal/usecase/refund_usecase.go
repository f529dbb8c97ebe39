package usecase

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"textilemart/internal/domain/model"
	"textilemart/internal/domain/policy"
	"textilemart/internal/lifecycle"
	repo "textilemart/internal/repository"
)

const maxRefundReasonLen = 1000

// 返金の承認は注文/配送/在庫には連動しない
type RefundUsecase struct {
	tx      repo.TransactionManager
	refunds repo.RefundRepository
	coord   *lifecycle.Coordinator
	clock   Clock
	events  emitter
}

func NewRefundUsecase(
	tx repo.TransactionManager,
	refunds repo.RefundRepository,
	coord *lifecycle.Coordinator,
	publisher EventPublisher,
	clock Clock,
	log *slog.Logger,
) *RefundUsecase {
	return &RefundUsecase{
		tx:      tx,
		refunds: refunds,
		coord:   coord,
		clock:   clock,
		events:  emitter{pub: publisher, log: log},
	}
}

type CreateRefundInput struct {
	OrderID int64
	Reason  string
}

// 返金申請（本人の支払い済み・未キャンセル注文、有効な申請が無いこと）
func (u *RefundUsecase) Create(ctx context.Context, actor policy.Actor, in CreateRefundInput) (model.Refund, error) {
	if actor.UserID <= 0 {
		return model.Refund{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if in.OrderID <= 0 {
		return model.Refund{}, NewHTTPError(http.StatusBadRequest, "invalid orderId")
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return model.Refund{}, NewHTTPError(http.StatusBadRequest, "reason required")
	}
	if len(reason) > maxRefundReasonLen {
		return model.Refund{}, NewHTTPError(http.StatusBadRequest, "reason too long")
	}

	var created model.Refund
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, in.OrderID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "order not found")
		}
		if err != nil {
			return err
		}

		if err := u.coord.CheckRefundEligibility(ctx, r, actor, o); err != nil {
			return refundEligibilityError(err)
		}

		created, err = r.Refunds().Create(ctx, model.Refund{
			OrderID: o.ID,
			UserID:  actor.UserID,
			Reason:  reason,
			Status:  model.RefundStatusRequested,
		})
		return err
	})
	if err != nil {
		return model.Refund{}, txError(err)
	}

	u.events.emit(ctx, lifecycle.Event{
		Type:       lifecycle.EventRefundRequested,
		OrderID:    created.OrderID,
		UserID:     created.UserID,
		RefundID:   created.ID,
		Status:     string(created.Status),
		ActorID:    actor.UserID,
		OccurredAt: u.clock.Now(),
	})
	return created, nil
}

func refundEligibilityError(err error) error {
	switch {
	case errors.Is(err, lifecycle.ErrNotRefundable):
		return NewHTTPError(http.StatusForbidden, "not authorized to request a refund for this order")
	case errors.Is(err, lifecycle.ErrOrderNotPaid),
		errors.Is(err, lifecycle.ErrOrderCancelled),
		errors.Is(err, lifecycle.ErrRefundAlreadyActive):
		return NewHTTPError(http.StatusConflict, err.Error())
	default:
		return err
	}
}

// 自分の返金申請だけ
func (u *RefundUsecase) ListMine(ctx context.Context, actor policy.Actor) ([]model.Refund, error) {
	if actor.UserID <= 0 {
		return nil, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	userID := actor.UserID
	items, err := u.refunds.List(ctx, repo.RefundListFilter{UserID: &userID})
	if err != nil {
		return nil, errDB
	}
	return items, nil
}

func (u *RefundUsecase) ListAll(ctx context.Context, actor policy.Actor, status string) ([]model.Refund, error) {
	if !actor.IsAdmin() {
		return nil, NewHTTPError(http.StatusForbidden, "forbidden")
	}
	f := repo.RefundListFilter{}
	if strings.TrimSpace(status) != "" {
		st, err := model.ParseRefundStatus(status)
		if err != nil {
			return nil, NewHTTPError(http.StatusBadRequest, "invalid refund status")
		}
		f.Status = &st
	}
	items, err := u.refunds.List(ctx, f)
	if err != nil {
		return nil, errDB
	}
	return items, nil
}

func (u *RefundUsecase) Get(ctx context.Context, actor policy.Actor, refundID int64) (model.Refund, error) {
	if refundID <= 0 {
		return model.Refund{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	rf, err := u.refunds.FindByID(ctx, refundID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Refund{}, NewHTTPError(http.StatusNotFound, "refund not found")
	}
	if err != nil {
		return model.Refund{}, errDB
	}
	if !policy.CanReadRefund(actor, rf) {
		return model.Refund{}, NewHTTPError(http.StatusForbidden, "not authorized to view this refund")
	}
	return rf, nil
}

type UpdateRefundInput struct {
	Status *string
	Reason *string
}

// admin: ステータス/理由の変更
func (u *RefundUsecase) Update(ctx context.Context, actor policy.Actor, refundID int64, in UpdateRefundInput) (model.Refund, error) {
	if !actor.IsAdmin() {
		return model.Refund{}, NewHTTPError(http.StatusForbidden, "forbidden")
	}
	if refundID <= 0 {
		return model.Refund{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var next *model.RefundStatus
	if in.Status != nil {
		st, err := model.ParseRefundStatus(*in.Status)
		if err != nil {
			return model.Refund{}, NewHTTPError(http.StatusBadRequest, "invalid refund status")
		}
		next = &st
	}
	if in.Reason != nil {
		reason := strings.TrimSpace(*in.Reason)
		if reason == "" {
			return model.Refund{}, NewHTTPError(http.StatusBadRequest, "reason required")
		}
		if len(reason) > maxRefundReasonLen {
			return model.Refund{}, NewHTTPError(http.StatusBadRequest, "reason too long")
		}
	}

	var (
		updated model.Refund
		prev    model.RefundStatus
	)
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		rf, err := r.Refunds().FindByID(ctx, refundID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "refund not found")
		}
		if err != nil {
			return err
		}
		prev = rf.Status

		if next != nil {
			// 却下済みを再び有効にするときは他の有効な申請と重複させない
			if !prev.IsActive() && next.IsActive() {
				active, err := r.Refunds().HasActiveForOrder(ctx, rf.OrderID)
				if err != nil {
					return err
				}
				if active {
					return NewHTTPError(http.StatusConflict, lifecycle.ErrRefundAlreadyActive.Error())
				}
			}
			rf.Status = *next
		}
		if in.Reason != nil {
			rf.Reason = strings.TrimSpace(*in.Reason)
		}

		if err := r.Refunds().Update(ctx, rf); err != nil {
			return err
		}
		if rf.Status != prev {
			if err := writeAudit(ctx, r.AuditLogs(), actor.UserID, model.AuditActionUpdateRefundStatus, model.AuditResourceRefund, rf.ID,
				map[string]any{"status": prev},
				map[string]any{"status": rf.Status},
			); err != nil {
				return err
			}
		}

		updated, err = r.Refunds().FindByID(ctx, refundID)
		return err
	})
	if err != nil {
		return model.Refund{}, txError(err)
	}

	if updated.Status != prev {
		u.events.emit(ctx, lifecycle.Event{
			Type:       lifecycle.EventRefundStatusChanged,
			OrderID:    updated.OrderID,
			UserID:     updated.UserID,
			RefundID:   updated.ID,
			Status:     string(updated.Status),
			ActorID:    actor.UserID,
			OccurredAt: u.clock.Now(),
		})
	}
	return updated, nil
}

func (u *RefundUsecase) Delete(ctx context.Context, actor policy.Actor, refundID int64) error {
	if !actor.IsAdmin() {
		return NewHTTPError(http.StatusForbidden, "forbidden")
	}
	if refundID <= 0 {
		return NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	err := u.refunds.Delete(ctx, refundID)
	if errors.Is(err, repo.ErrNotFound) {
		return NewHTTPError(http.StatusNotFound, "refund not found")
	}
	if err != nil {
		return errDB
	}
	return nil
}
