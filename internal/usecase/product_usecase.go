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
	"textilemart/internal/domain/policy"
	repo "textilemart/internal/repository"

	"github.com/shopspring/decimal"
)

const productCachePrefix = "products:"

type ProductUsecase struct {
	tx       repo.TransactionManager
	products repo.ProductRepository
	images   ImageStore
	cache    ProductCache
	cacheTTL time.Duration
	log      *slog.Logger
	resolve  imageResolver
}

// DI
func NewProductUsecase(
	tx repo.TransactionManager,
	products repo.ProductRepository,
	images ImageStore,
	cache ProductCache,
	cacheTTL time.Duration,
	log *slog.Logger,
) *ProductUsecase {
	return &ProductUsecase{
		tx:       tx,
		products: products,
		images:   images,
		cache:    cache,
		cacheTTL: cacheTTL,
		log:      log,
		resolve:  imageResolver{store: images, log: log},
	}
}

// GET /productsの入力DTO
type ListProductsInput struct {
	Page     int
	Limit    int
	Q        string
	Category string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	Sort     string
}

type ProductListOutput struct {
	Items []model.Product `json:"items"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
}

func (in ListProductsInput) cacheKey() string {
	price := func(d *decimal.Decimal) string {
		if d == nil {
			return ""
		}
		return d.String()
	}
	return fmt.Sprintf("%slist:p=%d:l=%d:q=%s:c=%s:min=%s:max=%s:s=%s",
		productCachePrefix, in.Page, in.Limit,
		strings.ToLower(strings.TrimSpace(in.Q)), strings.ToLower(strings.TrimSpace(in.Category)),
		price(in.MinPrice), price(in.MaxPrice), in.Sort)
}

func (u *ProductUsecase) List(ctx context.Context, in ListProductsInput) (ProductListOutput, error) {
	page, limit, err := normalizePage(in.Page, in.Limit, 100)
	if err != nil {
		return ProductListOutput{}, err
	}
	in.Page, in.Limit = page, limit

	if len(in.Q) > 100 {
		return ProductListOutput{}, NewHTTPError(http.StatusBadRequest, "q too long")
	}
	if in.MinPrice != nil && in.MinPrice.IsNegative() {
		return ProductListOutput{}, NewHTTPError(http.StatusBadRequest, "min_price must be >= 0")
	}
	if in.MaxPrice != nil && in.MaxPrice.IsNegative() {
		return ProductListOutput{}, NewHTTPError(http.StatusBadRequest, "max_price must be >= 0")
	}
	if in.MinPrice != nil && in.MaxPrice != nil && in.MinPrice.GreaterThan(*in.MaxPrice) {
		return ProductListOutput{}, NewHTTPError(http.StatusBadRequest, "min_price must be <= max_price")
	}
	switch in.Sort {
	case "", "new", "price_asc", "price_desc", "name":
	default:
		return ProductListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid sort")
	}

	key := in.cacheKey()
	var out ProductListOutput
	if u.cacheGet(ctx, key, &out) {
		u.resolve.products(ctx, out.Items)
		return out, nil
	}

	items, total, err := u.products.List(ctx, repo.ProductListQuery{
		Page:     in.Page,
		Limit:    in.Limit,
		Q:        strings.TrimSpace(in.Q),
		Category: strings.TrimSpace(in.Category),
		MinPrice: in.MinPrice,
		MaxPrice: in.MaxPrice,
		Sort:     in.Sort,
	})
	if err != nil {
		return ProductListOutput{}, errDB
	}

	out = ProductListOutput{Items: items, Total: total, Page: in.Page, Limit: in.Limit}
	u.cacheSet(ctx, key, out)
	u.resolve.products(ctx, out.Items)
	return out, nil
}

func (u *ProductUsecase) Get(ctx context.Context, productID int64) (model.Product, error) {
	if productID <= 0 {
		return model.Product{}, NewHTTPError(http.StatusBadRequest, "invalid product id")
	}

	key := fmt.Sprintf("%sdetail:%d", productCachePrefix, productID)
	var p model.Product
	if u.cacheGet(ctx, key, &p) {
		u.resolve.product(ctx, &p)
		return p, nil
	}

	p, err := u.products.FindByID(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Product{}, NewHTTPError(http.StatusNotFound, "product not found")
	}
	if err != nil {
		return model.Product{}, errDB
	}

	u.cacheSet(ctx, key, p)
	u.resolve.product(ctx, &p)
	return p, nil
}

type CreateProductInput struct {
	Name        string
	Description string
	Price       string
	Stock       int64
	Category    string
	Image       *ImageUpload
}

func (u *ProductUsecase) Create(ctx context.Context, actor policy.Actor, in CreateProductInput) (model.Product, error) {
	if actor.UserID <= 0 {
		return model.Product{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if !actor.IsAdmin() {
		return model.Product{}, NewHTTPError(http.StatusForbidden, "forbidden")
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return model.Product{}, NewHTTPError(http.StatusBadRequest, "name required")
	}
	price, err := parsePrice(in.Price)
	if err != nil {
		return model.Product{}, err
	}
	if in.Stock < 0 {
		return model.Product{}, NewHTTPError(http.StatusBadRequest, "stock must be >= 0")
	}
	category := strings.TrimSpace(in.Category)
	if category == "" {
		return model.Product{}, NewHTTPError(http.StatusBadRequest, "category required")
	}

	imageKey, err := u.saveImage(ctx, in.Image)
	if err != nil {
		return model.Product{}, err
	}

	var created model.Product
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		p, err := r.Products().Create(ctx, model.Product{
			Name:        name,
			Description: strings.TrimSpace(in.Description),
			Price:       price,
			Stock:       in.Stock,
			Category:    category,
			Image:       imageKey,
		})
		if err != nil {
			return err
		}
		if p.Stock > 0 {
			if err := r.Inventory().CreateAdjustment(ctx, model.InventoryAdjustment{
				ProductID:   p.ID,
				ActorUserID: actor.UserID,
				Delta:       p.Stock,
				Reason:      "initial stock",
			}); err != nil {
				return err
			}
		}
		created = p
		return nil
	})
	if err != nil {
		u.dropImage(ctx, imageKey)
		return model.Product{}, txError(err)
	}

	u.invalidate(ctx)
	u.resolve.product(ctx, &created)
	return created, nil
}

// 部分更新。nilのフィールドは変更しない（stock=0は有効な更新）
type UpdateProductInput struct {
	Name        *string
	Description *string
	Price       *string
	Stock       *int64
	Category    *string
	Image       *ImageUpload
}

func (u *ProductUsecase) Update(ctx context.Context, actor policy.Actor, productID int64, in UpdateProductInput) (model.Product, error) {
	if actor.UserID <= 0 {
		return model.Product{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if !actor.IsAdmin() {
		return model.Product{}, NewHTTPError(http.StatusForbidden, "forbidden")
	}
	if productID <= 0 {
		return model.Product{}, NewHTTPError(http.StatusBadRequest, "invalid product id")
	}
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return model.Product{}, NewHTTPError(http.StatusBadRequest, "name required")
	}
	var price *decimal.Decimal
	if in.Price != nil {
		p, err := parsePrice(*in.Price)
		if err != nil {
			return model.Product{}, err
		}
		price = &p
	}
	if in.Stock != nil && *in.Stock < 0 {
		return model.Product{}, NewHTTPError(http.StatusBadRequest, "stock must be >= 0")
	}
	if in.Category != nil && strings.TrimSpace(*in.Category) == "" {
		return model.Product{}, NewHTTPError(http.StatusBadRequest, "category required")
	}

	newKey, err := u.saveImage(ctx, in.Image)
	if err != nil {
		return model.Product{}, err
	}

	var updated model.Product
	var oldKey string
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		p, err := r.Products().FindByID(ctx, productID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "product not found")
		}
		if err != nil {
			return err
		}
		beforeStock := p.Stock

		if in.Name != nil {
			p.Name = strings.TrimSpace(*in.Name)
		}
		if in.Description != nil {
			p.Description = strings.TrimSpace(*in.Description)
		}
		if price != nil {
			p.Price = *price
		}
		if in.Stock != nil {
			p.Stock = *in.Stock
		}
		if in.Category != nil {
			p.Category = strings.TrimSpace(*in.Category)
		}
		if newKey != "" {
			oldKey = p.Image
			p.Image = newKey
		}

		if err := r.Products().Update(ctx, p); err != nil {
			return err
		}
		if p.Stock != beforeStock {
			if err := recordStockChange(ctx, r, actor.UserID, p.ID, beforeStock, p.Stock, "admin update"); err != nil {
				return err
			}
		}
		updated = p
		return nil
	})
	if err != nil {
		u.dropImage(ctx, newKey)
		return model.Product{}, txError(err)
	}

	//差し替えた古い画像を消す
	u.dropImage(ctx, oldKey)
	u.invalidate(ctx)
	u.resolve.product(ctx, &updated)
	return updated, nil
}

// 在庫の現在値を直接設定（理由必須）
func (u *ProductUsecase) UpdateInventory(ctx context.Context, actor policy.Actor, productID int64, newStock int64, reason string) error {
	if actor.UserID <= 0 {
		return NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if !actor.IsAdmin() {
		return NewHTTPError(http.StatusForbidden, "forbidden")
	}
	if productID <= 0 {
		return NewHTTPError(http.StatusBadRequest, "invalid product id")
	}
	if newStock < 0 {
		return NewHTTPError(http.StatusBadRequest, "stock must be >= 0")
	}
	if strings.TrimSpace(reason) == "" {
		return NewHTTPError(http.StatusBadRequest, "reason required")
	}

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		//変更前の在庫（before）
		p, err := r.Products().FindByID(ctx, productID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "product not found")
		}
		if err != nil {
			return err
		}
		if err := r.Inventory().SetStock(ctx, productID, newStock); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return NewHTTPError(http.StatusNotFound, "product not found")
			}
			return err
		}
		return recordStockChange(ctx, r, actor.UserID, productID, p.Stock, newStock, strings.TrimSpace(reason))
	})
	if err != nil {
		return txError(err)
	}

	u.invalidate(ctx)
	return nil
}

// 論理削除。注文からは引き続き参照できる
func (u *ProductUsecase) Delete(ctx context.Context, actor policy.Actor, productID int64) error {
	if actor.UserID <= 0 {
		return NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if !actor.IsAdmin() {
		return NewHTTPError(http.StatusForbidden, "forbidden")
	}
	if productID <= 0 {
		return NewHTTPError(http.StatusBadRequest, "invalid product id")
	}

	err := u.products.SoftDelete(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return NewHTTPError(http.StatusNotFound, "product not found")
	}
	if err != nil {
		return errDB
	}

	u.invalidate(ctx)
	return nil
}

// 在庫の増減履歴と監査ログ
func recordStockChange(ctx context.Context, r repo.TxRepos, actorID, productID, before, after int64, reason string) error {
	if err := r.Inventory().CreateAdjustment(ctx, model.InventoryAdjustment{
		ProductID:   productID,
		ActorUserID: actorID,
		Delta:       after - before,
		Reason:      reason,
	}); err != nil {
		return err
	}
	return writeAudit(ctx, r.AuditLogs(), actorID, model.AuditActionUpdateStock, model.AuditResourceProduct, productID,
		map[string]int64{"stock": before},
		map[string]int64{"stock": after},
	)
}

func parsePrice(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Decimal{}, NewHTTPError(http.StatusBadRequest, "price required")
	}
	p, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, NewHTTPError(http.StatusBadRequest, "invalid price")
	}
	if p.IsNegative() {
		return decimal.Decimal{}, NewHTTPError(http.StatusBadRequest, "price must be >= 0")
	}
	return p.Round(2), nil
}

func (u *ProductUsecase) saveImage(ctx context.Context, img *ImageUpload) (string, error) {
	if img == nil {
		return "", nil
	}
	if u.images == nil {
		return "", NewHTTPError(http.StatusInternalServerError, "image storage not configured")
	}
	key, err := u.images.Save(ctx, *img)
	if err != nil {
		u.log.ErrorContext(ctx, "save image failed", "filename", img.Filename, "error", err)
		return "", NewHTTPError(http.StatusInternalServerError, "image upload failed")
	}
	return key, nil
}

func (u *ProductUsecase) dropImage(ctx context.Context, key string) {
	if key == "" || u.images == nil {
		return
	}
	if err := u.images.Delete(ctx, key); err != nil {
		u.log.WarnContext(ctx, "delete image failed", "key", key, "error", err)
	}
}

func (u *ProductUsecase) cacheGet(ctx context.Context, key string, dst any) bool {
	if u.cache == nil {
		return false
	}
	hit, err := u.cache.Get(ctx, key, dst)
	if err != nil {
		u.log.WarnContext(ctx, "product cache get failed", "key", key, "error", err)
		return false
	}
	return hit
}

func (u *ProductUsecase) cacheSet(ctx context.Context, key string, v any) {
	if u.cache == nil {
		return
	}
	if err := u.cache.Set(ctx, key, v, u.cacheTTL); err != nil {
		u.log.WarnContext(ctx, "product cache set failed", "key", key, "error", err)
	}
}

func (u *ProductUsecase) invalidate(ctx context.Context) {
	if u.cache == nil {
		return
	}
	if err := u.cache.DeletePrefix(ctx, productCachePrefix); err != nil {
		u.log.WarnContext(ctx, "product cache invalidate failed", "error", err)
	}
}
