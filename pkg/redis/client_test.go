package redis

import (
	"fmt"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/pkg/config"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "classicq:cq:abc", (&Client{prefix: "classicq"}).key("cq:abc"))
	assert.Equal(t, "cq:abc", (&Client{}).key("cq:abc"))
}

func TestIsNilError(t *testing.T) {
	assert.True(t, IsNilError(redis.Nil))
	assert.True(t, IsNilError(fmt.Errorf("get: %w", redis.Nil)))
	assert.False(t, IsNilError(fmt.Errorf("connection refused")))
}

func TestNewClient_Unreachable(t *testing.T) {
	_, err := NewClient(config.RedisConfig{Addr: "127.0.0.1:1", KeyPrefix: "classicq"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "127.0.0.1:1")
}
