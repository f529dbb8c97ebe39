package usecase

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"textilemart/internal/domain/model"
	"textilemart/internal/domain/policy"
	"textilemart/internal/lifecycle"
	repo "textilemart/internal/repository"
)

type DeliveryUsecase struct {
	tx         repo.TransactionManager
	deliveries repo.DeliveryRepository
	coord      *lifecycle.Coordinator
	clock      Clock
	events     emitter
	resolve    imageResolver
}

func NewDeliveryUsecase(
	tx repo.TransactionManager,
	deliveries repo.DeliveryRepository,
	coord *lifecycle.Coordinator,
	images ImageStore,
	publisher EventPublisher,
	clock Clock,
	log *slog.Logger,
) *DeliveryUsecase {
	return &DeliveryUsecase{
		tx:         tx,
		deliveries: deliveries,
		coord:      coord,
		clock:      clock,
		events:     emitter{pub: publisher, log: log},
		resolve:    imageResolver{store: images, log: log},
	}
}

type CreateDeliveryInput struct {
	OrderID        int64
	DeliveryPerson string
	DeliveryStatus string
	DeliveryDate   *time.Time
	TrackingNumber string
}

// 配送を直接作る（通常は注文作成時に自動で作られる）
func (u *DeliveryUsecase) Create(ctx context.Context, actor policy.Actor, in CreateDeliveryInput) (model.Delivery, error) {
	if !actor.IsAdmin() && !actor.IsDelivery() {
		return model.Delivery{}, NewHTTPError(http.StatusForbidden, "forbidden")
	}
	if in.OrderID <= 0 {
		return model.Delivery{}, NewHTTPError(http.StatusBadRequest, "invalid orderId")
	}
	person := strings.TrimSpace(in.DeliveryPerson)
	if person == "" {
		person = model.UnassignedDeliveryPerson
	}
	if !policy.CanAssignDelivery(actor, person) {
		return model.Delivery{}, NewHTTPError(http.StatusForbidden, "delivery personnel can only assign themselves")
	}
	status := model.DeliveryStatusPending
	if strings.TrimSpace(in.DeliveryStatus) != "" {
		st, err := model.ParseDeliveryStatus(in.DeliveryStatus)
		if err != nil {
			return model.Delivery{}, NewHTTPError(http.StatusBadRequest, "invalid delivery status")
		}
		status = st
	}
	tracking := strings.TrimSpace(in.TrackingNumber)
	if tracking == "" {
		tracking = lifecycle.NewTrackingNumber()
	}
	date := in.DeliveryDate
	if date == nil {
		due := u.clock.Now().Add(lifecycle.DefaultDeliveryLead)
		date = &due
	}

	var created model.Delivery
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, in.OrderID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "order not found")
		}
		if err != nil {
			return err
		}
		if o.Status == model.OrderStatusCancelled {
			return NewHTTPError(http.StatusBadRequest, "order is cancelled")
		}

		created, err = r.Deliveries().Create(ctx, model.Delivery{
			OrderID:        o.ID,
			DeliveryPerson: person,
			DeliveryStatus: status,
			DeliveryDate:   date,
			TrackingNumber: tracking,
		})
		if errors.Is(err, repo.ErrConflict) {
			return NewHTTPError(http.StatusConflict, "delivery already exists for this order or tracking number is taken")
		}
		return err
	})
	if err != nil {
		return model.Delivery{}, txError(err)
	}
	return created, nil
}

// 配達員: 自分の担当＋未割当。admin: 全件
func (u *DeliveryUsecase) List(ctx context.Context, actor policy.Actor, status string) ([]model.Delivery, error) {
	f := repo.DeliveryListFilter{}
	switch {
	case actor.IsAdmin():
	case actor.IsDelivery():
		name := actor.Name
		f.AssignedTo = &name
		f.IncludeUnassigned = true
	default:
		return nil, NewHTTPError(http.StatusForbidden, "forbidden")
	}
	return u.list(ctx, f, status)
}

// admin用の全件一覧
func (u *DeliveryUsecase) ListAll(ctx context.Context, actor policy.Actor, status string) ([]model.Delivery, error) {
	if !actor.IsAdmin() {
		return nil, NewHTTPError(http.StatusForbidden, "forbidden")
	}
	return u.list(ctx, repo.DeliveryListFilter{}, status)
}

func (u *DeliveryUsecase) list(ctx context.Context, f repo.DeliveryListFilter, status string) ([]model.Delivery, error) {
	if strings.TrimSpace(status) != "" {
		st, err := model.ParseDeliveryStatus(status)
		if err != nil {
			return nil, NewHTTPError(http.StatusBadRequest, "invalid delivery status")
		}
		f.Status = &st
	}
	items, err := u.deliveries.List(ctx, f)
	if err != nil {
		return nil, errDB
	}
	for i := range items {
		if items[i].Order != nil {
			u.resolve.order(ctx, items[i].Order)
		}
	}
	return items, nil
}

func (u *DeliveryUsecase) Get(ctx context.Context, actor policy.Actor, deliveryID int64) (model.Delivery, error) {
	if deliveryID <= 0 {
		return model.Delivery{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	d, err := u.deliveries.FindByID(ctx, deliveryID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Delivery{}, NewHTTPError(http.StatusNotFound, "delivery not found")
	}
	if err != nil {
		return model.Delivery{}, errDB
	}
	if !policy.CanManageDelivery(actor, d) {
		return model.Delivery{}, NewHTTPError(http.StatusForbidden, "not authorized to access this delivery")
	}
	if d.Order != nil {
		u.resolve.order(ctx, d.Order)
	}
	return d, nil
}

// 部分更新。nilのフィールドは変更しない
type UpdateDeliveryInput struct {
	DeliveryPerson *string
	DeliveryStatus *string
	TrackingNumber *string
	DeliveryDate   *time.Time
}

// ステータスがDelivered/Cancelledになったら注文側も同じトランザクションで更新する
func (u *DeliveryUsecase) Update(ctx context.Context, actor policy.Actor, deliveryID int64, in UpdateDeliveryInput) (model.Delivery, error) {
	if deliveryID <= 0 {
		return model.Delivery{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var next *model.DeliveryStatus
	if in.DeliveryStatus != nil {
		st, err := model.ParseDeliveryStatus(*in.DeliveryStatus)
		if err != nil {
			return model.Delivery{}, NewHTTPError(http.StatusBadRequest, "invalid delivery status")
		}
		next = &st
	}
	if in.TrackingNumber != nil && strings.TrimSpace(*in.TrackingNumber) == "" {
		return model.Delivery{}, NewHTTPError(http.StatusBadRequest, "trackingNumber must not be empty")
	}

	var (
		updated model.Delivery
		prev    model.DeliveryStatus
		sync    lifecycle.Sync
		buyerID int64
	)
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		d, err := r.Deliveries().FindByID(ctx, deliveryID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "delivery not found")
		}
		if err != nil {
			return err
		}
		if !policy.CanManageDelivery(actor, d) {
			return NewHTTPError(http.StatusForbidden, "not authorized to update this delivery")
		}
		if d.Order != nil {
			buyerID = d.Order.UserID
		}
		prev = d.DeliveryStatus

		if in.DeliveryPerson != nil {
			person := strings.TrimSpace(*in.DeliveryPerson)
			if person == "" {
				person = model.UnassignedDeliveryPerson
			}
			if !policy.CanAssignDelivery(actor, person) {
				return NewHTTPError(http.StatusForbidden, "delivery personnel can only assign themselves")
			}
			d.DeliveryPerson = person
		}
		if next != nil {
			d.DeliveryStatus = *next
		}
		if in.TrackingNumber != nil {
			d.TrackingNumber = strings.TrimSpace(*in.TrackingNumber)
		}
		if in.DeliveryDate != nil {
			date := *in.DeliveryDate
			d.DeliveryDate = &date
		}

		if err := r.Deliveries().Update(ctx, d); err != nil {
			if errors.Is(err, repo.ErrConflict) {
				return NewHTTPError(http.StatusConflict, "tracking number already in use")
			}
			return err
		}

		if d.DeliveryStatus != prev {
			if err := writeAudit(ctx, r.AuditLogs(), actor.UserID, model.AuditActionUpdateDeliveryStatus, model.AuditResourceDelivery, d.ID,
				map[string]any{"deliveryStatus": prev},
				map[string]any{"deliveryStatus": d.DeliveryStatus},
			); err != nil {
				return err
			}
			sync, err = u.coord.DeliveryStatusChanged(ctx, r, actor.UserID, d, prev, d.DeliveryStatus)
			if err != nil {
				return err
			}
		}

		updated, err = r.Deliveries().FindByID(ctx, deliveryID)
		return err
	})
	if err != nil {
		return model.Delivery{}, txError(err)
	}

	if updated.DeliveryStatus != prev {
		now := u.clock.Now()
		evs := []lifecycle.Event{{
			Type:       lifecycle.EventDeliveryStatusChanged,
			OrderID:    updated.OrderID,
			UserID:     buyerID,
			DeliveryID: updated.ID,
			Status:     string(updated.DeliveryStatus),
			Tracking:   updated.TrackingNumber,
			ActorID:    actor.UserID,
			OccurredAt: now,
		}}
		u.events.emit(ctx, append(evs, sync.Events(buyerID, actor.UserID, now)...)...)
	}
	if updated.Order != nil {
		u.resolve.order(ctx, updated.Order)
	}
	return updated, nil
}

func (u *DeliveryUsecase) Delete(ctx context.Context, actor policy.Actor, deliveryID int64) error {
	if !actor.IsAdmin() {
		return NewHTTPError(http.StatusForbidden, "forbidden")
	}
	if deliveryID <= 0 {
		return NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	err := u.deliveries.Delete(ctx, deliveryID)
	if errors.Is(err, repo.ErrNotFound) {
		return NewHTTPError(http.StatusNotFound, "delivery not found")
	}
	if err != nil {
		return errDB
	}
	return nil
}
