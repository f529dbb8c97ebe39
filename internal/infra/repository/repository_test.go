package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"textilemart/internal/domain/model"
	repo "textilemart/internal/repository"
	"textilemart/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOrder(userID, productID int64) model.Order {
	return model.Order{
		ProductID:     productID,
		UserID:        userID,
		Quantity:      1,
		TotalPrice:    decimal.RequireFromString("12.50"),
		PaymentMethod: model.PaymentMethodCashOnDelivery,
		Status:        model.OrderStatusPending,
		ShippingAddress: model.ShippingAddress{
			FullName: "Aiko Tanaka", Email: "aiko@example.com", Address: "1-2-3 Chuo",
			City: "Osaka", PostalCode: "530-0001", Country: "JP",
		},
	}
}

func TestInventory_DecreaseStockIfEnough(t *testing.T) {
	ctx := context.Background()
	gdb := testutil.NewDB(t)
	p := testutil.CreateProduct(t, gdb, "Linen", "20.00", 1)

	inv := NewInventoryGormRepository(gdb)

	ok, err := inv.DecreaseStockIfEnough(ctx, p.ID, 1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(0), testutil.ReloadProduct(t, gdb, p.ID).Stock)

	//在庫0からは減らない
	ok, err = inv.DecreaseStockIfEnough(ctx, p.ID, 1)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int64(0), testutil.ReloadProduct(t, gdb, p.ID).Stock)

	ok, err = inv.DecreaseStockIfEnough(ctx, 9999, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInventory_SetStockNotFound(t *testing.T) {
	gdb := testutil.NewDB(t)
	err := NewInventoryGormRepository(gdb).SetStock(context.Background(), 42, 3)
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestProduct_ListFiltersAndSoftDelete(t *testing.T) {
	ctx := context.Background()
	gdb := testutil.NewDB(t)
	products := NewProductGormRepository(gdb)

	silk, err := products.Create(ctx, model.Product{Name: "Silk Scarf", Price: decimal.RequireFromString("45.00"), Stock: 3, Category: "silk"})
	require.NoError(t, err)
	_, err = products.Create(ctx, model.Product{Name: "Cotton Towel", Price: decimal.RequireFromString("9.99"), Stock: 10, Category: "cotton"})
	require.NoError(t, err)

	items, total, err := products.List(ctx, repo.ProductListQuery{Category: "SILK"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, items, 1)
	assert.Equal(t, "Silk Scarf", items[0].Name)

	items, _, err = products.List(ctx, repo.ProductListQuery{Q: "towel"})
	require.NoError(t, err)
	require.Len(t, items, 1)

	items, _, err = products.List(ctx, repo.ProductListQuery{Sort: "price_asc"})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Cotton Towel", items[0].Name)

	require.NoError(t, products.SoftDelete(ctx, silk.ID))
	_, err = products.FindByID(ctx, silk.ID)
	assert.ErrorIs(t, err, repo.ErrNotFound)
	assert.ErrorIs(t, products.SoftDelete(ctx, silk.ID), repo.ErrNotFound)
}

func TestProduct_UpdateAllowsZeroStock(t *testing.T) {
	ctx := context.Background()
	gdb := testutil.NewDB(t)
	p := testutil.CreateProduct(t, gdb, "Denim", "30.00", 5)

	products := NewProductGormRepository(gdb)
	p.Stock = 0
	require.NoError(t, products.Update(ctx, p))
	assert.Equal(t, int64(0), testutil.ReloadProduct(t, gdb, p.ID).Stock)
}

func TestOrder_FindByIDKeepsDeletedProduct(t *testing.T) {
	ctx := context.Background()
	gdb := testutil.NewDB(t)
	u := testutil.CreateUser(t, gdb, "Aiko", "aiko@example.com", model.RoleBuyer)
	p := testutil.CreateProduct(t, gdb, "Wool Throw", "60.00", 2)

	orders := NewOrderGormRepository(gdb)
	o, err := orders.Create(ctx, newOrder(u.ID, p.ID))
	require.NoError(t, err)
	require.NotZero(t, o.ID)

	require.NoError(t, NewProductGormRepository(gdb).SoftDelete(ctx, p.ID))

	got, err := orders.FindByID(ctx, o.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Product)
	assert.Equal(t, "Wool Throw", got.Product.Name)
	require.NotNil(t, got.User)
	assert.Equal(t, "aiko@example.com", got.User.Email)
	assert.Equal(t, "Osaka", got.ShippingAddress.City)
	assert.True(t, decimal.RequireFromString("12.50").Equal(got.TotalPrice))
}

func TestOrder_MarkPaidAndList(t *testing.T) {
	ctx := context.Background()
	gdb := testutil.NewDB(t)
	u := testutil.CreateUser(t, gdb, "Aiko", "aiko@example.com", model.RoleBuyer)
	v := testutil.CreateUser(t, gdb, "Ben", "ben@example.com", model.RoleBuyer)
	p := testutil.CreateProduct(t, gdb, "Wool Throw", "60.00", 5)

	orders := NewOrderGormRepository(gdb)
	o1, err := orders.Create(ctx, newOrder(u.ID, p.ID))
	require.NoError(t, err)
	_, err = orders.Create(ctx, newOrder(v.ID, p.ID))
	require.NoError(t, err)

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, orders.MarkPaid(ctx, o1.ID, now, &model.PaymentResult{ID: "pi_1", Status: "succeeded"}))

	got, err := orders.FindByID(ctx, o1.ID)
	require.NoError(t, err)
	assert.True(t, got.IsPaid)
	require.NotNil(t, got.PaidAt)
	assert.Equal(t, "pi_1", got.PaymentResult.ID)

	mine, total, err := orders.List(ctx, repo.OrderListFilter{UserID: &u.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, mine, 1)
	assert.Equal(t, o1.ID, mine[0].ID)

	all, total, err := orders.List(ctx, repo.OrderListFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, all, 2)

	assert.ErrorIs(t, orders.MarkPaid(ctx, 999, now, nil), repo.ErrNotFound)
}

func TestDelivery_OnePerOrder(t *testing.T) {
	ctx := context.Background()
	gdb := testutil.NewDB(t)
	u := testutil.CreateUser(t, gdb, "Aiko", "aiko@example.com", model.RoleBuyer)
	p := testutil.CreateProduct(t, gdb, "Wool Throw", "60.00", 5)
	o, err := NewOrderGormRepository(gdb).Create(ctx, newOrder(u.ID, p.ID))
	require.NoError(t, err)

	deliveries := NewDeliveryGormRepository(gdb)
	d, err := deliveries.Create(ctx, model.Delivery{
		OrderID:        o.ID,
		DeliveryPerson: model.UnassignedDeliveryPerson,
		DeliveryStatus: model.DeliveryStatusPending,
		TrackingNumber: "TRK-AAAA1111",
	})
	require.NoError(t, err)

	_, err = deliveries.Create(ctx, model.Delivery{
		OrderID:        o.ID,
		DeliveryPerson: model.UnassignedDeliveryPerson,
		DeliveryStatus: model.DeliveryStatusPending,
		TrackingNumber: "TRK-BBBB2222",
	})
	assert.True(t, errors.Is(err, repo.ErrConflict), "err=%v", err)

	got, err := deliveries.FindByID(ctx, d.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Order)
	require.NotNil(t, got.Order.Product)
	assert.Equal(t, "Wool Throw", got.Order.Product.Name)

	require.NoError(t, deliveries.UpdateStatusByOrderID(ctx, o.ID, model.DeliveryStatusInTransit))
	got, err = deliveries.FindByOrderID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DeliveryStatusInTransit, got.DeliveryStatus)

	require.NoError(t, deliveries.DeleteByOrderID(ctx, o.ID))
	require.NoError(t, deliveries.DeleteByOrderID(ctx, o.ID))
	_, err = deliveries.FindByOrderID(ctx, o.ID)
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestDelivery_ListAssignedScope(t *testing.T) {
	ctx := context.Background()
	gdb := testutil.NewDB(t)
	u := testutil.CreateUser(t, gdb, "Aiko", "aiko@example.com", model.RoleBuyer)
	p := testutil.CreateProduct(t, gdb, "Wool Throw", "60.00", 5)
	orders := NewOrderGormRepository(gdb)
	deliveries := NewDeliveryGormRepository(gdb)

	for i, person := range []string{"Dana", model.UnassignedDeliveryPerson, "Eli"} {
		o, err := orders.Create(ctx, newOrder(u.ID, p.ID))
		require.NoError(t, err)
		_, err = deliveries.Create(ctx, model.Delivery{
			OrderID:        o.ID,
			DeliveryPerson: person,
			DeliveryStatus: model.DeliveryStatusPending,
			TrackingNumber: "TRK-" + string(rune('A'+i)) + "0000000",
		})
		require.NoError(t, err)
	}

	dana := "dana"
	items, err := deliveries.List(ctx, repo.DeliveryListFilter{AssignedTo: &dana, IncludeUnassigned: true})
	require.NoError(t, err)
	assert.Len(t, items, 2)

	items, err = deliveries.List(ctx, repo.DeliveryListFilter{AssignedTo: &dana})
	require.NoError(t, err)
	assert.Len(t, items, 1)

	items, err = deliveries.List(ctx, repo.DeliveryListFilter{})
	require.NoError(t, err)
	assert.Len(t, items, 3)
}

func TestRefund_HasActiveForOrder(t *testing.T) {
	ctx := context.Background()
	gdb := testutil.NewDB(t)
	u := testutil.CreateUser(t, gdb, "Aiko", "aiko@example.com", model.RoleBuyer)
	p := testutil.CreateProduct(t, gdb, "Wool Throw", "60.00", 5)
	o, err := NewOrderGormRepository(gdb).Create(ctx, newOrder(u.ID, p.ID))
	require.NoError(t, err)

	refunds := NewRefundGormRepository(gdb)
	active, err := refunds.HasActiveForOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.False(t, active)

	rf, err := refunds.Create(ctx, model.Refund{OrderID: o.ID, UserID: u.ID, Reason: "wrong size", Status: model.RefundStatusRequested})
	require.NoError(t, err)

	active, err = refunds.HasActiveForOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, active)

	rf.Status = model.RefundStatusRejected
	require.NoError(t, refunds.Update(ctx, rf))

	active, err = refunds.HasActiveForOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.False(t, active)

	mine, err := refunds.List(ctx, repo.RefundListFilter{UserID: &u.ID})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.NotNil(t, mine[0].Order)
}

func TestUser_CreateDuplicateAndResetToken(t *testing.T) {
	ctx := context.Background()
	gdb := testutil.NewDB(t)
	users := NewUserGormRepository(gdb)

	u := &model.User{Name: "Aiko", Email: "aiko@example.com", PasswordHash: "x", Role: model.RoleBuyer}
	require.NoError(t, users.Create(ctx, u))

	dup := &model.User{Name: "Other", Email: "aiko@example.com", PasswordHash: "y", Role: model.RoleBuyer}
	assert.ErrorIs(t, users.Create(ctx, dup), repo.ErrConflict)

	_, err := users.FindByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, repo.ErrNotFound)

	hash := "deadbeef"
	exp := time.Now().Add(30 * time.Minute)
	u.ResetPasswordTokenHash = &hash
	u.ResetPasswordExpiresAt = &exp
	require.NoError(t, users.Update(ctx, u))

	found, err := users.FindByResetTokenHash(ctx, hash, time.Now())
	require.NoError(t, err)
	assert.Equal(t, u.ID, found.ID)

	_, err = users.FindByResetTokenHash(ctx, hash, time.Now().Add(time.Hour))
	assert.ErrorIs(t, err, repo.ErrNotFound)

	require.NoError(t, users.IncrementTokenVersion(ctx, u.ID))
	found, err = users.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, found.TokenVersion)
}

func TestTxManager_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	gdb := testutil.NewDB(t)
	p := testutil.CreateProduct(t, gdb, "Linen", "20.00", 3)

	tm := NewTxManagerGorm(gdb)
	boom := errors.New("boom")
	err := tm.WithinTx(ctx, func(r repo.TxRepos) error {
		ok, err := r.Inventory().DecreaseStockIfEnough(ctx, p.ID, 2)
		require.NoError(t, err)
		require.True(t, ok)
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int64(3), testutil.ReloadProduct(t, gdb, p.ID).Stock)
}

func TestAuditLog_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	gdb := testutil.NewDB(t)
	logs := NewAuditLogGormRepository(gdb)

	require.NoError(t, logs.Create(ctx, model.AuditLog{ActorUserID: 1, Action: model.AuditActionUpdateStock, ResourceType: model.AuditResourceProduct, ResourceID: 7}))
	require.NoError(t, logs.Create(ctx, model.AuditLog{ActorUserID: 1, Action: model.AuditActionUpdateOrderStatus, ResourceType: model.AuditResourceOrder, ResourceID: 8}))

	items, total, err := logs.List(ctx, repo.AuditLogFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, items, 2)
	assert.Equal(t, model.AuditActionUpdateOrderStatus, items[0].Action)

	rt := model.AuditResourceProduct
	items, total, err = logs.List(ctx, repo.AuditLogFilter{ResourceType: &rt})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, int64(7), items[0].ResourceID)
}
