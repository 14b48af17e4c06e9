package migration

import (
	"io/fs"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestMigrateCreatesTablesOnSQLite(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, Migrate(db))
	for _, table := range []string{"users", "coin_balances", "coin_transactions", "subscriptions"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
	// idempotent
	require.NoError(t, Migrate(db))
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	files, err := fs.Glob(embeddedMigrations, migrationsDir+"/*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	ups, downs := 0, 0
	for _, f := range files {
		switch {
		case len(f) > 7 && f[len(f)-7:] == ".up.sql":
			ups++
		case len(f) > 9 && f[len(f)-9:] == ".down.sql":
			downs++
		}
	}
	assert.Equal(t, ups, downs)
}

func TestMigrateRejectsNilHandle(t *testing.T) {
	assert.Error(t, Migrate(nil))
}
