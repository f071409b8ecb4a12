package cache

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/spreadline/internal/ingest/cfbd"
)

func newTestCache(t *testing.T, ttl time.Duration) (*ResponseCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewResponseCache(client, ttl, nil), mr
}

func TestResponseCache_GetSet(t *testing.T) {
	rc, mr := newTestCache(t, time.Hour)
	ctx := context.Background()

	_, ok := rc.Get(ctx, "cfbd:/stats/season?year=2023")
	assert.False(t, ok)

	rc.Set(ctx, "cfbd:/stats/season?year=2023", []byte(`[]`))
	b, ok := rc.Get(ctx, "cfbd:/stats/season?year=2023")
	require.True(t, ok)
	assert.Equal(t, `[]`, string(b))

	assert.Equal(t, time.Hour, mr.TTL("cfbd:/stats/season?year=2023"))

	mr.FastForward(2 * time.Hour)
	_, ok = rc.Get(ctx, "cfbd:/stats/season?year=2023")
	assert.False(t, ok)
}

func TestResponseCache_Invalidate(t *testing.T) {
	rc, mr := newTestCache(t, 0)
	ctx := context.Background()

	rc.Set(ctx, "a", []byte("1"))
	rc.Set(ctx, "b", []byte("2"))
	require.NoError(t, rc.Invalidate(ctx, "a"))
	assert.False(t, mr.Exists("a"))
	assert.True(t, mr.Exists("b"))
	assert.NoError(t, rc.Invalidate(ctx))
}

func TestResponseCache_BackendDownIsMiss(t *testing.T) {
	rc, mr := newTestCache(t, time.Minute)
	mr.Close()

	ctx := context.Background()
	rc.Set(ctx, "k", []byte("v"))
	_, ok := rc.Get(ctx, "k")
	assert.False(t, ok)
}

func TestResponseCache_ServesClientRepeats(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"season":2023,"team":"Texas","statName":"games","statValue":4}]`))
	}))
	defer srv.Close()

	rc, _ := newTestCache(t, time.Hour)
	client := cfbd.New(srv.URL, "test-key", cfbd.WithRawCache(rc))
	ctx := context.Background()
	q := cfbd.StatsQuery{Year: 2023, EndWeek: 4, ExcludeGarbageTime: true}

	for i := 0; i < 3; i++ {
		rows, err := client.SeasonStats(ctx, q)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, 4.0, rows[0].StatValue)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestResponseCache_InvalidateForcesRefetch(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	rc, mr := newTestCache(t, time.Hour)
	client := cfbd.New(srv.URL, "test-key", cfbd.WithRawCache(rc))
	ctx := context.Background()
	q := cfbd.StatsQuery{Year: 2016, EndWeek: 2, ExcludeGarbageTime: true}

	_, err := client.SeasonStats(ctx, q)
	require.NoError(t, err)
	_, err = client.AdvancedSeasonStats(ctx, q)
	require.NoError(t, err)
	for _, key := range q.CacheKeys() {
		assert.True(t, mr.Exists(key), key)
	}

	require.NoError(t, rc.Invalidate(ctx, q.CacheKeys()...))
	_, err = client.SeasonStats(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestRedisCache_HealthCheck(t *testing.T) {
	mr := miniredis.RunT(t)
	rc, err := NewRedisCache("redis://" + mr.Addr())
	require.NoError(t, err)
	defer rc.Close()

	assert.NoError(t, rc.HealthCheck(context.Background()))
	assert.NotNil(t, rc.Client())
}

func TestNewRedisCache_BadURL(t *testing.T) {
	_, err := NewRedisCache("not a url")
	assert.Error(t, err)
}
