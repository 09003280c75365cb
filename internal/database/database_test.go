package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAppliesMigrations(t *testing.T) {
	db, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })

	version, err := CurrentSchemaVersion(db)
	require.NoError(t, err)

	all, err := MigrationsNewerThan(0)
	require.NoError(t, err)
	require.NotEmpty(t, all)
	assert.Equal(t, all[len(all)-1].Version, version)

	assert.True(t, db.Migrator().HasTable("sensors"))
	assert.True(t, db.Migrator().HasTable("readings"))
}

func TestMigrateIsIdempotent(t *testing.T) {
	db, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })

	applied, err := Migrate(db)
	require.NoError(t, err)
	assert.Empty(t, applied)
}

func TestRollbackRevertsLatestMigration(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "rollback.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })

	before, err := CurrentSchemaVersion(db)
	require.NoError(t, err)

	reverted, err := Rollback(db)
	require.NoError(t, err)
	assert.Equal(t, before, reverted)
	assert.False(t, db.Migrator().HasTable("readings"))

	after, err := CurrentSchemaVersion(db)
	require.NoError(t, err)
	assert.Less(t, after, before)

	applied, err := Migrate(db)
	require.NoError(t, err)
	assert.Equal(t, []SchemaVersion{before}, applied)
	assert.True(t, db.Migrator().HasTable("readings"))
}

func TestMigrationsNewerThanIsOrdered(t *testing.T) {
	migrations, err := MigrationsNewerThan(0)
	require.NoError(t, err)

	for i := 1; i < len(migrations); i++ {
		assert.Less(t, migrations[i-1].Version, migrations[i].Version)
	}
}
