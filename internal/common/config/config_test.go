package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Name     string        `validate:"required"`
	Timeout  time.Duration `validate:"gt=0"`
	Interval time.Duration
	Hosts    []string
	Redis    RedisConfig
}

func writeFile(t *testing.T, dir, name, contents string) string {
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadConfig_MergesOverridesAndEnv(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "config.yaml", `
name: base
timeout: 30s
interval: 5
hosts: "a.example, b.example"
redis:
  addrs: ["localhost:6379"]
  poolSize: 10
  minRetryBackoff: 8ms
  maxRetryBackoff: 512ms
`)
	override := writeFile(t, dir, "override.yaml", "name: override\n")
	t.Setenv("INSIGHTS_TIMEOUT", "1m")

	var config testConfig
	_, err := LoadConfig(&config, dir, []string{override})
	require.NoError(t, err)

	assert.Equal(t, "override", config.Name)
	assert.Equal(t, time.Minute, config.Timeout)
	assert.Equal(t, 5*time.Second, config.Interval)
	assert.Equal(t, []string{"a.example", "b.example"}, config.Hosts)
	assert.Equal(t, []string{"localhost:6379"}, config.Redis.Addrs)

	options := config.Redis.AsUniversalOptions()
	assert.Equal(t, 8*time.Millisecond, options.MinRetryBackoff)
	assert.Equal(t, 512*time.Millisecond, options.MaxRetryBackoff)
	assert.Equal(t, 10, options.PoolSize)
}

func TestLoadConfig_MissingDefault(t *testing.T) {
	var config testConfig
	_, err := LoadConfig(&config, t.TempDir(), nil)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	err := Validate(testConfig{})
	require.Error(t, err)

	var merr *multierror.Error
	require.True(t, errors.As(err, &merr))
	// Name, Timeout, Redis.Addrs, Redis.PoolSize
	assert.Len(t, merr.Errors, 4)
	assert.Contains(t, err.Error(), "Field Name is required but was not found")

	valid := testConfig{
		Name:    "ok",
		Timeout: time.Second,
		Redis:   RedisConfig{Addrs: []string{"localhost:6379"}, PoolSize: 1},
	}
	assert.NoError(t, Validate(valid))
}
