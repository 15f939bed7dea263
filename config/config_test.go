package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsAndEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "6000")
	t.Setenv("STORE_TIMEOUT", "3s")

	require.NoError(t, Load())

	assert.Equal(t, "6000", Config("SERVER_PORT"))
	assert.Equal(t, 3*time.Second, Duration("STORE_TIMEOUT"))
	assert.Equal(t, "postgres", Config("DATABASE_DRIVER"))
	assert.Equal(t, 15, Int("JWT_ACCESS_EXPIRE"))
	assert.Equal(t, "DISABLE", Config("EVENT_MODE"))
}
