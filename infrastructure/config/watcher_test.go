package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeConfigFile(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "dynamic.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigFromFile(t *testing.T) {
	path := writeConfigFile(t, t.TempDir(), `{
		"limits": {"maxNotesPerList": 10, "maxTaskListsPerUser": 5, "maxSharesPerEntity": 3},
		"metadata": {"version": "2.1.0"}
	}`)

	cfg, err := loadConfigFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Limits.MaxNotesPerList)
	assert.Equal(t, "2.1.0", cfg.Metadata.Version)
	assert.False(t, cfg.Metadata.UpdatedAt.IsZero())
}

func TestLoadConfigFromFileDefaultsVersion(t *testing.T) {
	path := writeConfigFile(t, t.TempDir(), `{
		"limits": {"maxNotesPerList": 10, "maxTaskListsPerUser": 5, "maxSharesPerEntity": 3}
	}`)

	cfg, err := loadConfigFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", cfg.Metadata.Version)
}

func TestLoadConfigFromFileErrors(t *testing.T) {
	_, err := loadConfigFromFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	path := writeConfigFile(t, t.TempDir(), `{not json`)
	_, err = loadConfigFromFile(path)
	assert.Error(t, err)
}

func TestValidateConfig(t *testing.T) {
	valid := &DynamicConfig{Limits: DefaultLimits()}
	assert.NoError(t, validateConfig(valid))

	for _, limits := range []Limits{
		{MaxNotesPerList: 0, MaxTaskListsPerUser: 5, MaxSharesPerEntity: 3},
		{MaxNotesPerList: 10, MaxTaskListsPerUser: -1, MaxSharesPerEntity: 3},
		{MaxNotesPerList: 10, MaxTaskListsPerUser: 5, MaxSharesPerEntity: 0},
	} {
		assert.Error(t, validateConfig(&DynamicConfig{Limits: limits}))
	}
}

func TestWatcherReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, `{
		"limits": {"maxNotesPerList": 10, "maxTaskListsPerUser": 5, "maxSharesPerEntity": 3}
	}`)

	watcher, err := NewConfigWatcher(path, zap.NewNop())
	require.NoError(t, err)
	defer watcher.Stop()

	changed := make(chan *DynamicConfig, 1)
	watcher.OnChange(func(cfg *DynamicConfig) {
		select {
		case changed <- cfg:
		default:
		}
	})
	watcher.Start()

	assert.Equal(t, 10, watcher.GetLimits().MaxNotesPerList)

	require.NoError(t, os.WriteFile(path, []byte(`{
		"limits": {"maxNotesPerList": 42, "maxTaskListsPerUser": 5, "maxSharesPerEntity": 3},
		"metadata": {"version": "1.1.0"}
	}`), 0o644))

	select {
	case cfg := <-changed:
		assert.Equal(t, 42, cfg.Limits.MaxNotesPerList)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for config reload")
	}
	assert.Equal(t, 42, watcher.GetLimits().MaxNotesPerList)
}

func TestWatcherKeepsCurrentOnInvalidReload(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, `{
		"limits": {"maxNotesPerList": 10, "maxTaskListsPerUser": 5, "maxSharesPerEntity": 3}
	}`)

	watcher, err := NewConfigWatcher(path, zap.NewNop())
	require.NoError(t, err)
	defer watcher.Stop()
	watcher.Start()

	require.NoError(t, os.WriteFile(path, []byte(`{
		"limits": {"maxNotesPerList": 0, "maxTaskListsPerUser": 0, "maxSharesPerEntity": 0}
	}`), 0o644))

	time.Sleep(500 * time.Millisecond)
	assert.Equal(t, 10, watcher.GetLimits().MaxNotesPerList)
}
