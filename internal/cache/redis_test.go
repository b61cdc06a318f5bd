package cache

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"surfsup-server/internal/config"
)

type fakeRedis struct {
	mu     sync.Mutex
	data   map[string]string
	ttls   map[string]time.Duration
	getErr error
	closed bool
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	}
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Incr(ctx context.Context, key string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, _ := strconv.ParseInt(f.data[key], 10, 64)
	n++
	f.data[key] = strconv.FormatInt(n, 10)
	return redis.NewIntResult(n, nil)
}

func (f *fakeRedis) Ping(ctx context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (f *fakeRedis) Close() error {
	f.closed = true
	return nil
}

type report struct {
	Start string     `json:"start"`
	Stats []*float64 `json:"stats"`
}

func TestRedis_MissThenHit(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	c := &Redis{client: fake}

	var got report
	hit, err := c.GetJSON(ctx, "stats:2017-08-18:2017-08-19", &got)
	require.NoError(t, err)
	assert.False(t, hit)

	avg := 72.5
	require.NoError(t, c.SetJSON(ctx, "stats:2017-08-18:2017-08-19", report{Start: "2017-08-18", Stats: []*float64{nil, &avg, nil}}, time.Minute))

	hit, err = c.GetJSON(ctx, "stats:2017-08-18:2017-08-19", &got)
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, "2017-08-18", got.Start)
	require.Len(t, got.Stats, 3)
	assert.Nil(t, got.Stats[0])
	assert.Equal(t, 72.5, *got.Stats[1])

	assert.Equal(t, time.Minute, fake.ttls["surfsup:g0:stats:2017-08-18:2017-08-19"])
}

func TestRedis_InvalidateOrphansEntries(t *testing.T) {
	ctx := context.Background()
	c := &Redis{client: newFakeRedis()}

	require.NoError(t, c.SetJSON(ctx, "stations", []string{"USC00519397"}, time.Minute))
	require.NoError(t, c.Invalidate(ctx))

	var ids []string
	hit, err := c.GetJSON(ctx, "stations", &ids)
	require.NoError(t, err)
	assert.False(t, hit, "entry from previous generation must not be served")

	require.NoError(t, c.SetJSON(ctx, "stations", []string{"USC00513117"}, time.Minute))
	hit, err = c.GetJSON(ctx, "stations", &ids)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []string{"USC00513117"}, ids)
}

func TestRedis_BackendErrorSurfaces(t *testing.T) {
	fake := newFakeRedis()
	fake.getErr = errors.New("connection refused")
	c := &Redis{client: fake}

	var ids []string
	hit, err := c.GetJSON(context.Background(), "stations", &ids)
	assert.False(t, hit)
	assert.ErrorContains(t, err, "connection refused")
}

func TestRedis_CorruptEntry(t *testing.T) {
	fake := newFakeRedis()
	fake.data["surfsup:g0:stations"] = "{not json"
	c := &Redis{client: fake}

	var ids []string
	hit, err := c.GetJSON(context.Background(), "stations", &ids)
	assert.False(t, hit)
	assert.Error(t, err)
}

func TestRedis_PingAndClose(t *testing.T) {
	fake := newFakeRedis()
	c := &Redis{client: fake}
	assert.NoError(t, c.Ping(context.Background()))
	assert.NoError(t, c.Close())
	assert.True(t, fake.closed)
}

func TestNewRedis_EmptyAddr(t *testing.T) {
	_, err := NewRedis(context.Background(), config.Config{})
	assert.Error(t, err)
}

func TestNewRedis_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	_, err := NewRedis(ctx, config.Config{RedisAddr: "127.0.0.1:1"})
	assert.Error(t, err)
}

func TestNop(t *testing.T) {
	ctx := context.Background()
	var c Cache = Nop{}
	var dest []string
	hit, err := c.GetJSON(ctx, "stations", &dest)
	assert.NoError(t, err)
	assert.False(t, hit)
	assert.NoError(t, c.SetJSON(ctx, "stations", []string{"x"}, time.Minute))
	assert.NoError(t, c.Invalidate(ctx))
	assert.NoError(t, c.Ping(ctx))
	assert.NoError(t, c.Close())
}
