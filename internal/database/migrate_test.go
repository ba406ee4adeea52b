package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationFilesOrder(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"000002_orders.up.sql",
		"000001_init.up.sql",
		"000001_init.down.sql",
		"000002_orders.down.sql",
		"README.md",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o644))
	}

	up, err := MigrationFiles(dir, MigrateUp)
	require.NoError(t, err)
	assert.Equal(t, []string{"000001_init.up.sql", "000002_orders.up.sql"}, up)

	down, err := MigrationFiles(dir, MigrateDown)
	require.NoError(t, err)
	assert.Equal(t, []string{"000002_orders.down.sql", "000001_init.down.sql"}, down)
}

func TestMigrationFilesRejectsDirection(t *testing.T) {
	_, err := MigrationFiles(t.TempDir(), "sideways")
	assert.Error(t, err)
}

func TestMigrationFilesShipped(t *testing.T) {
	up, err := MigrationFiles("../../migrations", MigrateUp)
	require.NoError(t, err)
	down, err := MigrationFiles("../../migrations", MigrateDown)
	require.NoError(t, err)
	assert.NotEmpty(t, up)
	assert.Len(t, down, len(up))
}
