package redisclient

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisClient_Defaults(t *testing.T) {
	mr := miniredis.RunT(t)

	rdb, err := NewRedisClient(Options{Addr: mr.Addr()})
	require.NoError(t, err)
	defer rdb.Close()

	opts := rdb.Options()
	assert.Equal(t, 2*time.Second, opts.ReadTimeout)
	assert.Equal(t, 2*time.Second, opts.WriteTimeout)
	assert.Equal(t, 10, opts.PoolSize)
}

func TestNewRedisClient_ConfigOverrides(t *testing.T) {
	mr := miniredis.RunT(t)

	rdb, err := NewRedisClient(Options{
		Addr:        mr.Addr(),
		ReadTimeout: 500 * time.Millisecond,
		PoolSize:    4,
	})
	require.NoError(t, err)
	defer rdb.Close()

	opts := rdb.Options()
	assert.Equal(t, 500*time.Millisecond, opts.ReadTimeout)
	assert.Equal(t, 500*time.Millisecond, opts.WriteTimeout, "write timeout follows read timeout unless set")
	assert.Equal(t, 4, opts.PoolSize)
}

func TestNewRedisClient_UnreachableServer(t *testing.T) {
	_, err := NewRedisClient(Options{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}
