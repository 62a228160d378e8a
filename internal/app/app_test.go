package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ddoubleg123/carrot-discovery/internal/config"
)

func baseConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Storage.LocalDir = t.TempDir()
	return cfg
}

func TestNewAppWithInMemoryProviders(t *testing.T) {
	cfg := baseConfig(t)

	a, err := New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, a.Runner)

	a.Close()
}

func TestNewAppRejectsBadPostgresDSN(t *testing.T) {
	cfg := baseConfig(t)
	cfg.DB.DSN = "://not-a-dsn"

	_, err := New(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database")
}

func TestNewAppRejectsUnwritableBlobDir(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Storage.LocalDir = "/proc/discovery-cannot-write-here"

	_, err := New(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage")
}
