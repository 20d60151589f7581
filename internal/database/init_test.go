package database

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrations(t *testing.T) {
	names, err := migrationNames()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, migration{version: 1, name: "001_ledger"}, names[0])

	src, err := migrationSource()
	require.NoError(t, err)
	defer src.Close()

	for _, mg := range names {
		up, _, err := src.ReadUp(mg.version)
		require.NoError(t, err, "up migration %s", mg.name)
		body, err := io.ReadAll(up)
		up.Close()
		require.NoError(t, err)
		assert.Contains(t, string(body), "CREATE TABLE")

		down, _, err := src.ReadDown(mg.version)
		require.NoError(t, err, "down migration %s", mg.name)
		body, err = io.ReadAll(down)
		down.Close()
		require.NoError(t, err)
		assert.Contains(t, string(body), "DROP TABLE")
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := SetupTestDB(t)

	applied, err := Migrate(context.Background(), db)
	require.NoError(t, err)
	assert.Empty(t, applied, "SetupTestDB already applied every migration")

	var version int64
	var dirty bool
	require.NoError(t, db.pool.QueryRow(context.Background(),
		"SELECT version, dirty FROM "+MigrationsTable).Scan(&version, &dirty))
	assert.Equal(t, int64(len(mustNames(t))), version)
	assert.False(t, dirty)
}

func mustNames(t *testing.T) []migration {
	t.Helper()
	names, err := migrationNames()
	require.NoError(t, err)
	return names
}
