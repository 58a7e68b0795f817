package cache

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"redas-backend/internal/models"
)

type fakeKV struct {
	mu   sync.Mutex
	data map[string]string
	err  error
}

func newFakeKV() *fakeKV { return &fakeKV{data: map[string]string{}} }

func (f *fakeKV) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	v, ok := f.data[key]
	if !ok {
		return "", ErrMiss
	}
	return v, nil
}

func (f *fakeKV) Set(_ context.Context, key string, value string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.data[key] = value
	return nil
}

func (f *fakeKV) Incr(_ context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	n, _ := strconv.ParseInt(f.data[key], 10, 64)
	n++
	f.data[key] = strconv.FormatInt(n, 10)
	return n, nil
}

func TestStatsCache_RoundTripAndInvalidate(t *testing.T) {
	ctx := context.Background()
	c := NewStatsCache(newFakeKV(), time.Minute, zap.NewNop())

	_, slot, ok := c.Get(ctx, "all")
	assert.False(t, ok)

	stats := models.NewReportStatistics()
	stats.Total, stats.Pending = 4, 4
	slot.Set(ctx, stats)

	got, _, ok := c.Get(ctx, "all")
	require.True(t, ok)
	assert.Equal(t, 4, got.Pending)

	_, _, ok = c.Get(ctx, "owner:1")
	assert.False(t, ok)

	c.Invalidate(ctx)
	_, _, ok = c.Get(ctx, "all")
	assert.False(t, ok)
}

func TestStatsCache_SetAfterInvalidateIsOrphaned(t *testing.T) {
	ctx := context.Background()
	c := NewStatsCache(newFakeKV(), time.Minute, zap.NewNop())

	_, slot, ok := c.Get(ctx, "all")
	require.False(t, ok)

	// A write lands between the miss and the store of the stale value.
	c.Invalidate(ctx)
	stale := models.NewReportStatistics()
	stale.Pending = 1
	slot.Set(ctx, stale)

	_, _, ok = c.Get(ctx, "all")
	assert.False(t, ok)
}

func TestStatsCache_FailuresAreMisses(t *testing.T) {
	ctx := context.Background()
	kv := newFakeKV()
	kv.err = errors.New("connection refused")
	c := NewStatsCache(kv, time.Minute, zap.NewNop())

	_, slot, ok := c.Get(ctx, "all")
	assert.False(t, ok)
	slot.Set(ctx, models.NewReportStatistics())
	c.Invalidate(ctx)
	_, _, ok = c.Get(ctx, "all")
	assert.False(t, ok)
}

func TestStatsCache_NilIsNoop(t *testing.T) {
	var c *StatsCache
	ctx := context.Background()
	_, slot, ok := c.Get(ctx, "all")
	assert.False(t, ok)
	slot.Set(ctx, models.NewReportStatistics())
	c.Invalidate(ctx)
	_, _, ok = c.Get(ctx, "all")
	assert.False(t, ok)
}
