package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sessionValue struct {
	UserID string `json:"userId"`
	Role   string `json:"userRole"`
}

func setupRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedis(client), mr
}

// Both drivers must behave the same for the operations sessions and the
// identity service rely on.
func drivers(t *testing.T) map[string]Store {
	r, _ := setupRedis(t)
	return map[string]Store{"memory": NewMemory(), "redis": r}
}

func TestSetGetDel(t *testing.T) {
	ctx := context.Background()
	for name, store := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Set(ctx, "s:1", sessionValue{UserID: "u1", Role: "seller"}, time.Hour))

			var got sessionValue
			require.True(t, store.Get(ctx, "s:1", &got))
			assert.Equal(t, sessionValue{UserID: "u1", Role: "seller"}, got)

			require.NoError(t, store.Del(ctx, "s:1", "s:missing"))
			assert.False(t, store.Get(ctx, "s:1", &got))
		})
	}
}

func TestGetMissOnWrongShape(t *testing.T) {
	ctx := context.Background()
	for name, store := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Set(ctx, "k", "plain string", 0))
			var got sessionValue
			assert.False(t, store.Get(ctx, "k", &got))
		})
	}
}

func TestIncr(t *testing.T) {
	ctx := context.Background()
	for name, store := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			for want := int64(1); want <= 3; want++ {
				n, err := store.Incr(ctx, "attempts", time.Minute)
				require.NoError(t, err)
				assert.Equal(t, want, n)
			}
		})
	}
}

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemory()
	m.SetClock(func() time.Time { return now })

	require.NoError(t, m.Set(ctx, "k", 1, time.Minute))
	n, err := m.Incr(ctx, "c", time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	now = now.Add(2 * time.Minute)
	var v int
	assert.False(t, m.Get(ctx, "k", &v))

	n, err = m.Incr(ctx, "c", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "an expired window starts again")
}

func TestRedisTTL(t *testing.T) {
	ctx := context.Background()
	r, mr := setupRedis(t)

	_, err := r.Incr(ctx, "attempts", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, mr.TTL("attempts"))

	require.NoError(t, r.Set(ctx, "k", "v", 0))
	mr.FastForward(time.Hour)
	var v string
	assert.True(t, r.Get(ctx, "k", &v))

	mr.FastForward(time.Minute)
	assert.False(t, mr.Exists("attempts"))
}

func TestDialFailsWithoutServer(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := Dial(ctx, addr, "")
	assert.Error(t, err)
}
