package cache

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =====================
// fake redis
// =====================

// SCANは1回に1件ずつ返してカーソルを進める
type fakeRedis struct {
	data    map[string]string
	ttls    map[string]time.Duration
	getErr  error
	scans   int
	deleted []string
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	b, _ := value.([]byte)
	f.data[key] = string(b)
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd {
	f.scans++
	prefix := strings.TrimSuffix(match, "*")
	var keys []string
	for k := range f.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if int(cursor) >= len(keys) {
		return redis.NewScanCmdResult(nil, 0, nil)
	}
	next := cursor + 1
	if int(next) >= len(keys) {
		next = 0
	}
	return redis.NewScanCmdResult([]string{keys[cursor]}, next, nil)
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	f.deleted = append(f.deleted, keys...)
	return redis.NewIntResult(int64(len(keys)), nil)
}

type product struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Price string `json:"price"`
}

// =====================
// tests
// =====================

func TestRedisCache_SetGet(t *testing.T) {
	f := newFakeRedis()
	c := NewRedisCache(f, "tm:")
	ctx := context.Background()

	var got product
	hit, err := c.Get(ctx, "products:detail:1", &got)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, c.Set(ctx, "products:detail:1", product{ID: 1, Name: "Linen", Price: "12.50"}, time.Minute))
	assert.Equal(t, time.Minute, f.ttls["tm:products:detail:1"])

	hit, err = c.Get(ctx, "products:detail:1", &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, product{ID: 1, Name: "Linen", Price: "12.50"}, got)
}

func TestRedisCache_GetErrors(t *testing.T) {
	f := newFakeRedis()
	c := NewRedisCache(f, "")
	ctx := context.Background()

	f.data["broken"] = "{not json"
	var got product
	_, err := c.Get(ctx, "broken", &got)
	require.Error(t, err)

	f.getErr = errors.New("connection refused")
	hit, err := c.Get(ctx, "x", &got)
	require.Error(t, err)
	assert.False(t, hit)
}

func TestRedisCache_DeletePrefix(t *testing.T) {
	f := newFakeRedis()
	c := NewRedisCache(f, "tm:")
	ctx := context.Background()

	f.data["tm:products:list:1"] = "{}"
	f.data["tm:products:detail:1"] = "{}"
	f.data["tm:products:detail:2"] = "{}"
	f.data["tm:sessions:9"] = "{}"

	require.NoError(t, c.DeletePrefix(ctx, "products:"))
	assert.ElementsMatch(t, []string{"tm:products:list:1", "tm:products:detail:1", "tm:products:detail:2"}, f.deleted)
	assert.Equal(t, 3, f.scans)
}

func TestNopCache(t *testing.T) {
	var c NopCache
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", 1, time.Second))
	hit, err := c.Get(ctx, "k", new(int))
	require.NoError(t, err)
	assert.False(t, hit)
	require.NoError(t, c.DeletePrefix(ctx, "k"))
}
