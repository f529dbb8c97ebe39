package repository

import (
	"context"
	"strings"

	"textilemart/internal/domain/model"
	repo "textilemart/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DeliveryGormRepository struct {
	db *gorm.DB
}

func NewDeliveryGormRepository(db *gorm.DB) *DeliveryGormRepository {
	return &DeliveryGormRepository{db: db}
}

// 配送には注文と商品をぶら下げて返す
func (r *DeliveryGormRepository) withOrder(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Order").
		Preload("Order.Product", withProduct)
}

func (r *DeliveryGormRepository) Create(ctx context.Context, d model.Delivery) (model.Delivery, error) {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(&d).Error; err != nil {
		return model.Delivery{}, translate(err)
	}
	return d, nil
}

func (r *DeliveryGormRepository) FindByID(ctx context.Context, id int64) (model.Delivery, error) {
	var d model.Delivery
	if err := r.withOrder(ctx).Where("id = ?", id).First(&d).Error; err != nil {
		return model.Delivery{}, translate(err)
	}
	return d, nil
}

func (r *DeliveryGormRepository) FindByOrderID(ctx context.Context, orderID int64) (model.Delivery, error) {
	var d model.Delivery
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&d).Error; err != nil {
		return model.Delivery{}, translate(err)
	}
	return d, nil
}

func (r *DeliveryGormRepository) List(ctx context.Context, f repo.DeliveryListFilter) ([]model.Delivery, error) {
	q := r.withOrder(ctx).Model(&model.Delivery{})

	if f.Status != nil {
		q = q.Where("delivery_status = ?", *f.Status)
	}
	if f.AssignedTo != nil {
		person := strings.ToLower(strings.TrimSpace(*f.AssignedTo))
		if f.IncludeUnassigned {
			q = q.Where("(LOWER(delivery_person) = ? OR delivery_person = ?)", person, model.UnassignedDeliveryPerson)
		} else {
			q = q.Where("LOWER(delivery_person) = ?", person)
		}
	}

	var items []model.Delivery
	if err := q.Order("id desc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *DeliveryGormRepository) Update(ctx context.Context, d model.Delivery) error {
	res := r.db.WithContext(ctx).Model(&model.Delivery{}).
		Where("id = ?", d.ID).
		Updates(map[string]interface{}{
			"delivery_person": d.DeliveryPerson,
			"delivery_status": d.DeliveryStatus,
			"delivery_date":   d.DeliveryDate,
			"tracking_number": d.TrackingNumber,
		})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *DeliveryGormRepository) UpdateStatusByOrderID(ctx context.Context, orderID int64, status model.DeliveryStatus) error {
	res := r.db.WithContext(ctx).Model(&model.Delivery{}).
		Where("order_id = ?", orderID).
		Update("delivery_status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *DeliveryGormRepository) Delete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Delete(&model.Delivery{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *DeliveryGormRepository) DeleteByOrderID(ctx context.Context, orderID int64) error {
	return r.db.WithContext(ctx).Where("order_id = ?", orderID).Delete(&model.Delivery{}).Error
}
