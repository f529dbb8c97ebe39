package usecase_test

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"textilemart/internal/domain/model"
	"textilemart/internal/domain/policy"
	"textilemart/internal/testutil"
	"textilemart/internal/usecase"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func upload(name string) *usecase.ImageUpload {
	return &usecase.ImageUpload{Filename: name, ContentType: "image/png", Size: 4, Body: strings.NewReader("\x89PNG")}
}

func TestProductUsecase_Create(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	p, err := e.products.Create(ctx, actorOf(e.admin), usecase.CreateProductInput{
		Name: " Indigo Denim ", Description: "14oz", Price: "24.999", Stock: 30, Category: "denim",
		Image: upload("denim.PNG"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Indigo Denim", p.Name)
	assert.True(t, p.Price.Equal(decimal.RequireFromString("25.00")))
	assert.Equal(t, "img-1.png", p.Image)
	assert.Equal(t, "https://cdn.test/img-1.png", p.ImageURL)

	var adj model.InventoryAdjustment
	require.NoError(t, e.gdb.Where("product_id = ?", p.ID).First(&adj).Error)
	assert.Equal(t, int64(30), adj.Delta)
	assert.Equal(t, "initial stock", adj.Reason)
}

func TestProductUsecase_Create_Validation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	valid := usecase.CreateProductInput{Name: "Cotton", Price: "5", Stock: 1, Category: "cotton"}

	_, err := e.products.Create(ctx, actorOf(e.buyer), valid)
	assertHTTPError(t, err, http.StatusForbidden, "")
	_, err = e.products.Create(ctx, policy.Actor{}, valid)
	assertHTTPError(t, err, http.StatusUnauthorized, "")

	cases := []struct {
		name string
		edit func(in *usecase.CreateProductInput)
		msg  string
	}{
		{"no name", func(in *usecase.CreateProductInput) { in.Name = " " }, "name required"},
		{"no price", func(in *usecase.CreateProductInput) { in.Price = "" }, "price required"},
		{"bad price", func(in *usecase.CreateProductInput) { in.Price = "cheap" }, "invalid price"},
		{"negative price", func(in *usecase.CreateProductInput) { in.Price = "-1" }, "price must be >= 0"},
		{"negative stock", func(in *usecase.CreateProductInput) { in.Stock = -1 }, "stock must be >= 0"},
		{"no category", func(in *usecase.CreateProductInput) { in.Category = "" }, "category required"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := valid
			tc.edit(&in)
			_, err := e.products.Create(ctx, actorOf(e.admin), in)
			assertHTTPError(t, err, http.StatusBadRequest, tc.msg)
		})
	}
	assert.Empty(t, e.images.saved)
}

func TestProductUsecase_Create_ImageFailure(t *testing.T) {
	e := newEnv(t)
	e.images.saveErr = errBoom

	_, err := e.products.Create(context.Background(), actorOf(e.admin), usecase.CreateProductInput{
		Name: "Cotton", Price: "5", Category: "cotton", Image: upload("a.png"),
	})
	assertHTTPError(t, err, http.StatusInternalServerError, "image upload failed")

	var n int64
	require.NoError(t, e.gdb.Model(&model.Product{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestProductUsecase_Update_Partial(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p := testutil.CreateProduct(t, e.gdb, "Linen", "10", 5)
	zero := int64(0)

	got, err := e.products.Update(ctx, actorOf(e.admin), p.ID, usecase.UpdateProductInput{Stock: &zero})
	require.NoError(t, err)
	assert.Zero(t, got.Stock)
	assert.Equal(t, "Linen", got.Name)
	assert.True(t, got.Price.Equal(decimal.RequireFromString("10")))

	var adj model.InventoryAdjustment
	require.NoError(t, e.gdb.Where("product_id = ?", p.ID).First(&adj).Error)
	assert.Equal(t, int64(-5), adj.Delta)

	var entry model.AuditLog
	require.NoError(t, e.gdb.Where("action = ?", model.AuditActionUpdateStock).First(&entry).Error)
	assert.JSONEq(t, `{"stock":5}`, entry.BeforeJSON)
	assert.JSONEq(t, `{"stock":0}`, entry.AfterJSON)
}

func TestProductUsecase_Update_ReplacesImage(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p, err := e.products.Create(ctx, actorOf(e.admin), usecase.CreateProductInput{
		Name: "Linen", Price: "10", Category: "linen", Image: upload("a.png"),
	})
	require.NoError(t, err)

	got, err := e.products.Update(ctx, actorOf(e.admin), p.ID, usecase.UpdateProductInput{Image: upload("b.webp")})
	require.NoError(t, err)
	assert.Equal(t, "img-2.webp", got.Image)
	assert.Equal(t, []string{"img-1.png"}, e.images.deleted)

	// 存在しない商品なら新しい画像は捨てる
	_, err = e.products.Update(ctx, actorOf(e.admin), 999, usecase.UpdateProductInput{Image: upload("c.png")})
	assertHTTPError(t, err, http.StatusNotFound, "product not found")
	assert.Equal(t, []string{"img-1.png", "img-3.png"}, e.images.deleted)
}

func TestProductUsecase_ListUsesCacheUntilWrite(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	testutil.CreateProduct(t, e.gdb, "Linen", "10", 5)
	testutil.CreateProduct(t, e.gdb, "Silk", "30", 5)

	first, err := e.products.List(ctx, usecase.ListProductsInput{Sort: "price_desc"})
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	assert.Equal(t, "Silk", first.Items[0].Name)
	assert.Zero(t, e.cache.hits)

	_, err = e.products.List(ctx, usecase.ListProductsInput{Sort: "price_desc"})
	require.NoError(t, err)
	assert.Equal(t, 1, e.cache.hits)

	_, err = e.products.Create(ctx, actorOf(e.admin), usecase.CreateProductInput{Name: "Wool", Price: "20", Category: "wool"})
	require.NoError(t, err)

	after, err := e.products.List(ctx, usecase.ListProductsInput{Sort: "price_desc"})
	require.NoError(t, err)
	assert.Len(t, after.Items, 3)
	assert.Equal(t, 1, e.cache.hits)
}

func TestProductUsecase_List_Validation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	lo, hi := decimal.NewFromInt(50), decimal.NewFromInt(10)

	_, err := e.products.List(ctx, usecase.ListProductsInput{Sort: "random"})
	assertHTTPError(t, err, http.StatusBadRequest, "invalid sort")
	_, err = e.products.List(ctx, usecase.ListProductsInput{MinPrice: &lo, MaxPrice: &hi})
	assertHTTPError(t, err, http.StatusBadRequest, "min_price must be <= max_price")
	_, err = e.products.List(ctx, usecase.ListProductsInput{Limit: 101})
	assertHTTPError(t, err, http.StatusBadRequest, "invalid limit")
}

func TestProductUsecase_DeleteKeepsOrderHistory(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p := testutil.CreateProduct(t, e.gdb, "Linen", "10", 5)
	out := e.placeOrder(t, e.buyer, p.ID, 1, model.PaymentMethodCard)

	_, err := e.products.Get(ctx, p.ID)
	require.NoError(t, err)

	assertHTTPError(t, e.products.Delete(ctx, actorOf(e.buyer), p.ID), http.StatusForbidden, "")
	require.NoError(t, e.products.Delete(ctx, actorOf(e.admin), p.ID))

	_, err = e.products.Get(ctx, p.ID)
	assertHTTPError(t, err, http.StatusNotFound, "product not found")

	o, err := e.orders.Get(ctx, actorOf(e.buyer), out.Order.ID)
	require.NoError(t, err)
	require.NotNil(t, o.Product)
	assert.Equal(t, "Linen", o.Product.Name)

	assertHTTPError(t, e.products.Delete(ctx, actorOf(e.admin), p.ID), http.StatusNotFound, "")
}

func TestProductUsecase_UpdateInventory(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p := testutil.CreateProduct(t, e.gdb, "Linen", "10", 5)

	assertHTTPError(t, e.products.UpdateInventory(ctx, actorOf(e.admin), p.ID, 8, " "), http.StatusBadRequest, "reason required")
	assertHTTPError(t, e.products.UpdateInventory(ctx, actorOf(e.admin), p.ID, -1, "x"), http.StatusBadRequest, "stock must be >= 0")
	assertHTTPError(t, e.products.UpdateInventory(ctx, actorOf(e.courier), p.ID, 8, "x"), http.StatusForbidden, "")
	assertHTTPError(t, e.products.UpdateInventory(ctx, actorOf(e.admin), 999, 8, "x"), http.StatusNotFound, "")

	require.NoError(t, e.products.UpdateInventory(ctx, actorOf(e.admin), p.ID, 8, "restock"))
	assert.Equal(t, int64(8), testutil.ReloadProduct(t, e.gdb, p.ID).Stock)

	var adj model.InventoryAdjustment
	require.NoError(t, e.gdb.Where("product_id = ? AND reason = ?", p.ID, "restock").First(&adj).Error)
	assert.Equal(t, int64(3), adj.Delta)
}
