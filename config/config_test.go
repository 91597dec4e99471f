package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeErrorMessage(t *testing.T) {
	fallback := "operazione non riuscita"
	testErr := errors.New("internal database error")

	assert.Equal(t, fallback, SafeErrorMessage(nil, fallback))

	// release hides details
	GlobalConfig = &Config{Server: ServerConfig{Mode: "release"}}
	defer func() { GlobalConfig = nil }()
	assert.Equal(t, fallback, SafeErrorMessage(testErr, fallback))

	GlobalConfig = &Config{Server: ServerConfig{Mode: "debug"}}
	assert.Equal(t, "internal database error", SafeErrorMessage(testErr, fallback))

	// no config counts as development
	GlobalConfig = nil
	assert.Equal(t, "internal database error", SafeErrorMessage(testErr, fallback))
}

func TestLoadConfig_Defaults(t *testing.T) {
	defer func() { GlobalConfig = nil }()

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, ":5050", cfg.Server.Port)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, 168, cfg.JWT.ExpireHours)
	assert.Equal(t, 7*24*time.Hour, cfg.JWT.ExpireTime)
	assert.Equal(t, 12, cfg.Security.BcryptCost)
	assert.Equal(t, int64(2<<20), cfg.Upload.MaxFileBytes)
	assert.Equal(t, 5<<20, cfg.Upload.MaxBase64Bytes)
	assert.Same(t, cfg, GlobalConfig)
}

func TestLoadConfig_ExternalFileAndEnv(t *testing.T) {
	defer func() { GlobalConfig = nil }()

	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  mode: release\njwt:\n  expire_hours: 2\n"), 0o600))
	t.Setenv("RENDICONTO_JWT_SECRET", "from-env")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "release", cfg.Server.Mode)
	assert.Equal(t, 2*time.Hour, cfg.JWT.ExpireTime)
	assert.Equal(t, "from-env", cfg.JWT.Secret)
	assert.True(t, IsRelease())
}
