package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu     sync.Mutex
	counts map[string]int64
	ttls   map[string]time.Duration
	err    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{counts: map[string]int64{}, ttls: map[string]time.Duration{}}
}

func (f *fakeStore) IncrWithTTL(_ context.Context, key string, ttl time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.counts[key]++
	if f.counts[key] == 1 {
		f.ttls[key] = ttl
	}
	return f.counts[key], nil
}

func TestLimiterAllowsUpToLimit(t *testing.T) {
	store := newFakeStore()
	l := NewLimiter(store, "Login", time.Minute, 2)

	for i := 1; i <= 2; i++ {
		ok, count, err := l.Allow(context.Background(), "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, int64(i), count)
	}

	ok, count, err := l.Allow(context.Background(), "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int64(3), count)

	ok, _, err = l.Allow(context.Background(), "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, ok, "subjects are counted separately")

	assert.Equal(t, time.Minute, store.ttls["storefront:rl:login:10.0.0.1"])
}

func TestLimiterDisabled(t *testing.T) {
	var nilLimiter *Limiter
	assert.False(t, nilLimiter.Enabled())

	ok, _, err := NewLimiter(nil, "auth", time.Minute, 1).Allow(context.Background(), "x")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _, err = NewLimiter(newFakeStore(), "auth", 0, 1).Allow(context.Background(), "x")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLimiterPropagatesStoreErrors(t *testing.T) {
	store := newFakeStore()
	store.err = errors.New("redis down")

	ok, _, err := NewLimiter(store, "auth", time.Minute, 1).Allow(context.Background(), "x")
	require.Error(t, err)
	assert.False(t, ok)
}
