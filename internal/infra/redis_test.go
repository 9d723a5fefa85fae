package infra

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedisClient(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	defer client.Close()
	assert.Equal(t, redisIOTimeout, client.Options().ReadTimeout)

	_, err = NewRedisClient(context.Background(), "")
	assert.Error(t, err)

	_, err = NewRedisClient(context.Background(), "not a url")
	assert.Error(t, err)
}

func TestNewPostgresPoolRequiresURL(t *testing.T) {
	_, err := NewPostgresPool(context.Background(), "", 4)
	assert.Error(t, err)

	_, err = NewPostgresPool(context.Background(), "postgres://%zz", 4)
	assert.Error(t, err)
}
