package cfg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Run("defaults", func(t *testing.T) { //nolint:paralleltest // siblings set env, which may cause issues
		config, err := Parse()
		require.NoError(t, err)

		assert.Equal(t, int64(4096), config.Capacity)
		assert.Equal(t, int64(512), config.BlockSize)
		assert.Equal(t, uint16(5010), config.HTTPPort)
		assert.Equal(t, "memdev", config.ServiceName)
		assert.True(t, config.IsLocal())
		assert.False(t, config.NBDEnabled())
	})

	t.Run("overrides", func(t *testing.T) {
		t.Setenv("DEVICE_CAPACITY", "8192")
		t.Setenv("DEVICE_BLOCK_SIZE", "4096")
		t.Setenv("NBD_SOCKET_PATH", "/tmp/memdev.sock")
		t.Setenv("ENVIRONMENT", "prod")

		config, err := Parse()
		require.NoError(t, err)

		assert.Equal(t, int64(8192), config.Capacity)
		assert.Equal(t, int64(4096), config.BlockSize)
		assert.True(t, config.NBDEnabled())
		assert.False(t, config.IsLocal())
	})

	t.Run("non positive capacity is rejected", func(t *testing.T) {
		t.Setenv("DEVICE_CAPACITY", "0")

		_, err := Parse()
		require.ErrorContains(t, err, "DEVICE_CAPACITY must be positive")
	})

	t.Run("capacity must be a multiple of the block size", func(t *testing.T) {
		t.Setenv("DEVICE_CAPACITY", "1000")

		_, err := Parse()
		require.ErrorContains(t, err, "not a multiple")
	})

	t.Run("block size must be a power of two", func(t *testing.T) {
		t.Setenv("DEVICE_CAPACITY", "3000")
		t.Setenv("DEVICE_BLOCK_SIZE", "1000")

		_, err := Parse()
		require.ErrorContains(t, err, "not a power of two")
	})

	t.Run("block size must fit in 32 bits", func(t *testing.T) {
		t.Setenv("DEVICE_CAPACITY", "8589934592")
		t.Setenv("DEVICE_BLOCK_SIZE", "8589934592")

		_, err := Parse()
		require.ErrorContains(t, err, "does not fit in 32 bits")
	})

	t.Run("malformed values fail parsing", func(t *testing.T) {
		t.Setenv("HTTP_PORT", "seventy")

		_, err := Parse()
		require.Error(t, err)
	})
}
