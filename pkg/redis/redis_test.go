package redis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisClient_Unreachable(t *testing.T) {
	client, err := NewRedisClient(context.Background(), Options{Addr: "127.0.0.1:1"})

	require.Error(t, err)
	assert.Nil(t, client)
	assert.Contains(t, err.Error(), "127.0.0.1:1")
}
