package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"reqgather/internal/config"
	"reqgather/internal/session"
)

func testConfig(t *testing.T, driver config.StoreDriver) *config.Config {
	t.Helper()
	cfg, err := config.Load()
	require.NoError(t, err)
	dir := t.TempDir()
	cfg.StoreDriver = driver
	cfg.StorePath = filepath.Join(dir, "sessions")
	cfg.ExportDir = filepath.Join(dir, "exports")
	cfg.LLMProvider = config.ProviderOpenAI
	cfg.OpenAIAPIKey = "test"
	return cfg
}

func TestNewWiresServices(t *testing.T) {
	a, err := New(context.Background(), testConfig(t, config.StoreMemory), zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.Interview)
	assert.NotNil(t, a.Branding)
	assert.NotNil(t, a.Estimator)
	assert.NotEmpty(t, a.Prompts.Interview)

	s, err := a.Maintenance()
	require.NoError(t, err)
	assert.False(t, s.IsRunning())
}

func TestBadgerStoreSchedulesGC(t *testing.T) {
	a, err := Storage(testConfig(t, config.StoreBadger), zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.Store.Save(context.Background(), "s1", session.NewState()))
	ids, err := a.Store.IDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, ids)

	s, err := a.Maintenance()
	require.NoError(t, err)
	assert.True(t, s.IsRunning())
}

func TestUnknownDriver(t *testing.T) {
	_, err := Storage(testConfig(t, "redis"), zap.NewNop())
	assert.Error(t, err)
}

func TestUnknownProvider(t *testing.T) {
	cfg := testConfig(t, config.StoreMemory)
	cfg.LLMProvider = "mystery"
	_, err := New(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err)
}
