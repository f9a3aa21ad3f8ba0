package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ServerAddress)
	assert.Equal(t, "development", cfg.Environment)
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())

	assert.Equal(t, "Users", cfg.UsersTable)
	assert.Equal(t, "TaskLists", cfg.TaskListsTable)
	assert.Equal(t, "Notes", cfg.NotesTable)
	assert.Equal(t, "TaskListShares", cfg.TaskListSharesTable)
	assert.Equal(t, "NoteShares", cfg.NoteSharesTable)
	assert.Equal(t, "TaskListNotes", cfg.TaskListNotesTable)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("SERVER_ADDRESS", ":9090")
	t.Setenv("USERS_TABLE", "Users-staging")
	t.Setenv("ENABLE_CORS", "false")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.ServerAddress)
	assert.Equal(t, "Users-staging", cfg.UsersTable)
	assert.False(t, cfg.EnableCORS)
}

func TestProductionRequiresJWTSecret(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("JWT_SECRET", "")

	_, err := LoadConfig()
	assert.Error(t, err)

	t.Setenv("JWT_SECRET", "a-real-secret")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
}

func TestGetEnvBool(t *testing.T) {
	t.Setenv("FLAG", "")
	assert.True(t, getEnvBool("FLAG", true))
	assert.False(t, getEnvBool("FLAG", false))

	for _, v := range []string{"true", "1", "yes"} {
		t.Setenv("FLAG", v)
		assert.True(t, getEnvBool("FLAG", false), "value %q", v)
	}
	t.Setenv("FLAG", "false")
	assert.False(t, getEnvBool("FLAG", true))
}
