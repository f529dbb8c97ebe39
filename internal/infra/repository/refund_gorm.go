package repository

import (
	"context"

	"textilemart/internal/domain/model"
	repo "textilemart/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RefundGormRepository struct {
	db *gorm.DB
}

func NewRefundGormRepository(db *gorm.DB) *RefundGormRepository {
	return &RefundGormRepository{db: db}
}

func (r *RefundGormRepository) Create(ctx context.Context, rf model.Refund) (model.Refund, error) {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(&rf).Error; err != nil {
		return model.Refund{}, translate(err)
	}
	return rf, nil
}

func (r *RefundGormRepository) FindByID(ctx context.Context, id int64) (model.Refund, error) {
	var rf model.Refund
	err := r.db.WithContext(ctx).
		Preload("Order").
		Preload("User").
		Where("id = ?", id).
		First(&rf).Error
	if err != nil {
		return model.Refund{}, translate(err)
	}
	return rf, nil
}

func (r *RefundGormRepository) List(ctx context.Context, f repo.RefundListFilter) ([]model.Refund, error) {
	q := r.db.WithContext(ctx).Model(&model.Refund{})
	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}
	if f.OrderID != nil {
		q = q.Where("order_id = ?", *f.OrderID)
	}
	if f.Status != nil {
		q = q.Where("status = ?", *f.Status)
	}

	var items []model.Refund
	if err := q.Preload("Order").Preload("User").Order("id desc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *RefundGormRepository) HasActiveForOrder(ctx context.Context, orderID int64) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Refund{}).
		Where("order_id = ? AND status <> ?", orderID, model.RefundStatusRejected).
		Count(&n).Error
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *RefundGormRepository) Update(ctx context.Context, rf model.Refund) error {
	res := r.db.WithContext(ctx).Model(&model.Refund{}).
		Where("id = ?", rf.ID).
		Updates(map[string]interface{}{
			"reason": rf.Reason,
			"status": rf.Status,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *RefundGormRepository) Delete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Delete(&model.Refund{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *RefundGormRepository) DeleteByOrderID(ctx context.Context, orderID int64) error {
	return r.db.WithContext(ctx).Where("order_id = ?", orderID).Delete(&model.Refund{}).Error
}
