package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedis(t *testing.T) {
	r, err := NewRedis("localhost:6379")
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, "localhost:6379", r.Client.Options().Addr)
	assert.Equal(t, 2*time.Second, r.Client.Options().DialTimeout)

	u, err := NewRedis("redis://:secret@cache:6380/2")
	require.NoError(t, err)
	defer u.Close()
	opts := u.Client.Options()
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, time.Second, opts.ReadTimeout)

	_, err = NewRedis("redis://cache:6380/not-a-db")
	assert.Error(t, err)
}

func TestNilRedisUnhealthy(t *testing.T) {
	var r *Redis
	assert.Error(t, r.Ping(context.Background()))
	assert.False(t, r.Healthy(context.Background()))
	assert.NoError(t, r.Close())
}
