package usecase_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"sync"
	"testing"
	"time"

	"textilemart/internal/domain/model"
	"textilemart/internal/domain/policy"
	infrarepo "textilemart/internal/infra/repository"
	"textilemart/internal/lifecycle"
	repo "textilemart/internal/repository"
	"textilemart/internal/testutil"
	"textilemart/internal/usecase"
	auth "textilemart/internal/usecase/auth_usecase"
	"textilemart/internal/validator"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var testNow = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []lifecycle.Event
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, ev lifecycle.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type+":"+ev.Status)
	}
	return out
}

type fakeImageStore struct {
	n       int
	saved   []string
	deleted []string
	saveErr error
}

func (s *fakeImageStore) Save(ctx context.Context, img usecase.ImageUpload) (string, error) {
	if s.saveErr != nil {
		return "", s.saveErr
	}
	s.n++
	key := fmt.Sprintf("img-%d%s", s.n, strings.ToLower(path.Ext(img.Filename)))
	s.saved = append(s.saved, key)
	return key, nil
}

func (s *fakeImageStore) Delete(ctx context.Context, key string) error {
	s.deleted = append(s.deleted, key)
	return nil
}

func (s *fakeImageStore) URL(ctx context.Context, key string) (string, error) {
	return "https://cdn.test/" + key, nil
}

type memoryCache struct {
	data map[string][]byte
	hits int
}

func newMemoryCache() *memoryCache { return &memoryCache{data: map[string][]byte{}} }

func (c *memoryCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	b, ok := c.data[key]
	if !ok {
		return false, nil
	}
	c.hits++
	return true, json.Unmarshal(b, dst)
}

func (c *memoryCache) Set(ctx context.Context, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.data[key] = b
	return nil
}

func (c *memoryCache) DeletePrefix(ctx context.Context, prefix string) error {
	for k := range c.data {
		if strings.HasPrefix(k, prefix) {
			delete(c.data, k)
		}
	}
	return nil
}

// sqliteに実リポジトリを繋いだusecase一式
type env struct {
	gdb    *gorm.DB
	tx     repo.TransactionManager
	pub    *recordingPublisher
	images *fakeImageStore
	cache  *memoryCache

	orders     *usecase.OrderUsecase
	deliveries *usecase.DeliveryUsecase
	refunds    *usecase.RefundUsecase
	products   *usecase.ProductUsecase
	users      *usecase.UserUsecase
	audits     *usecase.AuditUsecase

	buyer   model.User
	other   model.User
	admin   model.User
	courier model.User
}

func newEnv(t *testing.T) env {
	t.Helper()
	gdb := testutil.NewDB(t)
	log := discardLogger()
	clock := fixedClock{now: testNow}

	tx := infrarepo.NewTxManagerGorm(gdb)
	userRepo := infrarepo.NewUserGormRepository(gdb)
	auditRepo := infrarepo.NewAuditLogGormRepository(gdb)
	coord := lifecycle.NewCoordinator(lifecycle.WithClock(clock.Now))
	pub := &recordingPublisher{}
	images := &fakeImageStore{}
	cache := newMemoryCache()

	return env{
		gdb:    gdb,
		tx:     tx,
		pub:    pub,
		images: images,
		cache:  cache,

		orders:     usecase.NewOrderUsecase(tx, infrarepo.NewOrderGormRepository(gdb), coord, images, pub, clock, log),
		deliveries: usecase.NewDeliveryUsecase(tx, infrarepo.NewDeliveryGormRepository(gdb), coord, images, pub, clock, log),
		refunds:    usecase.NewRefundUsecase(tx, infrarepo.NewRefundGormRepository(gdb), coord, pub, clock, log),
		products:   usecase.NewProductUsecase(tx, infrarepo.NewProductGormRepository(gdb), images, cache, time.Minute, log),
		users:      usecase.NewUserUsecase(userRepo, auditRepo, validator.NewAuthValidator(userRepo), auth.NewBcryptPasswordHasher(bcrypt.MinCost)),
		audits:     usecase.NewAuditUsecase(auditRepo),

		buyer:   testutil.CreateUser(t, gdb, "Aiko", "aiko@example.com", model.RoleBuyer),
		other:   testutil.CreateUser(t, gdb, "Ben", "ben@example.com", model.RoleBuyer),
		admin:   testutil.CreateUser(t, gdb, "Root", "root@example.com", model.RoleAdmin),
		courier: testutil.CreateUser(t, gdb, "Dana", "dana@example.com", model.RoleDelivery),
	}
}

func actorOf(u model.User) policy.Actor {
	return policy.Actor{UserID: u.ID, Role: u.Role, Name: u.Name}
}

func shipping() model.ShippingAddress {
	return model.ShippingAddress{
		FullName: "Aiko Tanaka", Email: "aiko@example.com", Address: "1-2-3 Chuo",
		City: "Osaka", PostalCode: "530-0001", Country: "JP",
	}
}

// 注文を1件作って返す
func (e env) placeOrder(t *testing.T, buyer model.User, productID int64, qty int64, method model.PaymentMethod) usecase.OrderWithDelivery {
	t.Helper()
	out, err := e.orders.Create(context.Background(), actorOf(buyer), usecase.CreateOrderInput{
		ProductID:       productID,
		Quantity:        qty,
		PaymentMethod:   string(method),
		ShippingAddress: shipping(),
	})
	require.NoError(t, err)
	return out
}

func assertHTTPError(t *testing.T, err error, status int, msgContains string) {
	t.Helper()
	require.Error(t, err)
	he, ok := usecase.AsHTTPError(err)
	require.True(t, ok, "expected *HTTPError, got %T: %v", err, err)
	require.Equal(t, status, he.Status, he.Message)
	if msgContains != "" {
		require.Contains(t, he.Message, msgContains)
	}
}

var errBoom = errors.New("boom")
