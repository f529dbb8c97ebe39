// Package testutil provides an in-memory database and fixtures for tests.
package testutil

import (
	"context"
	"testing"

	"textilemart/internal/domain/model"
	"textilemart/internal/infra/db"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// テストごとに独立したインメモリsqliteを作ってマイグレーションする
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared&_busy_timeout=5000"
	gdb, err := db.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("sql.DB: %v", err)
	}
	// 接続が全部閉じるとインメモリDBが消えるので最低1本は保持
	sqlDB.SetMaxIdleConns(4)
	sqlDB.SetConnMaxLifetime(0)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return gdb
}

// テスト用パスワード（bcryptコストは最小）
const Password = "password123"

func CreateUser(t *testing.T, gdb *gorm.DB, name string, email string, role model.Role) model.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(Password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u := model.User{Name: name, Email: email, PasswordHash: string(hash), Role: role}
	if err := gdb.WithContext(context.Background()).Create(&u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func CreateProduct(t *testing.T, gdb *gorm.DB, name string, price string, stock int64) model.Product {
	t.Helper()

	p := model.Product{
		Name:     name,
		Price:    decimal.RequireFromString(price),
		Stock:    stock,
		Category: "cotton",
	}
	if err := gdb.WithContext(context.Background()).Create(&p).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}
	return p
}

func ReloadProduct(t *testing.T, gdb *gorm.DB, id int64) model.Product {
	t.Helper()

	var p model.Product
	if err := gdb.Unscoped().First(&p, id).Error; err != nil {
		t.Fatalf("reload product: %v", err)
	}
	return p
}
