package clientdata

import (
	"context"
	"testing"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unreachableStore points at a port nothing listens on
func unreachableStore() *RedisStore {
	client := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	return NewRedisStoreWithClient(client, "", zerolog.Nop())
}

func TestRedisStore_Key(t *testing.T) {
	store := unreachableStore()
	defer store.Close()

	assert.Equal(t, "stockledger:current_prices:AAPL", store.key(TablePrices, "AAPL"))

	custom := NewRedisStoreWithClient(goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:1"}), "test", zerolog.Nop())
	defer custom.Close()
	assert.Equal(t, "test:price_history:AAPL:full", custom.key(TableHistory, "AAPL:full"))
}

func TestRedisStore_Validation(t *testing.T) {
	store := unreachableStore()
	defer store.Close()
	ctx := context.Background()

	err := store.Store(ctx, "bogus", "AAPL", "x", time.Minute)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid table name")

	err = store.Store(ctx, TablePrices, "AAPL", "x", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "positive ttl")

	_, err = store.GetIfFresh(ctx, "bogus", "AAPL")
	assert.Error(t, err)
}

func TestRedisStore_ConnectionErrors(t *testing.T) {
	store := unreachableStore()
	defer store.Close()
	ctx := context.Background()

	data, err := store.GetIfFresh(ctx, TablePrices, "AAPL")
	assert.Error(t, err, "a connection failure is not a cache miss")
	assert.Nil(t, data)

	assert.Error(t, store.Store(ctx, TablePrices, "AAPL", "x", time.Minute))
	assert.Error(t, store.Ping(ctx))
}

func TestNewRedisStore_PingFailure(t *testing.T) {
	_, err := NewRedisStore(context.Background(), RedisConfig{Addr: "127.0.0.1:1"}, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis ping")
}
