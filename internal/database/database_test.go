package database_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"communitylibrary/internal/config"
	"communitylibrary/internal/database"
)

func Test_Migrator_Up_CreatesSchemaOnSQLite(t *testing.T) {
	// arrange
	ctx := context.Background()
	db, err := database.Open(ctx, &config.Config{
		DBDriver:    config.DriverSQLite,
		DatabaseURL: filepath.Join(t.TempDir(), "library.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	migrator, err := db.Migrator()
	require.NoError(t, err)

	// act
	applied, err := migrator.Up(ctx)

	// assert
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, applied)

	version, err := migrator.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	for _, table := range []string{"books", "persons", "borrowings", "reservations", "attendance", "settings", "users", "api_tokens"} {
		assert.True(t, db.Gorm.Migrator().HasTable(table), "missing table %s", table)
	}
}

func Test_Migrator_Up_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "library.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	migrator, err := db.Migrator()
	require.NoError(t, err)
	_, err = migrator.Up(ctx)
	require.NoError(t, err)

	applied, err := migrator.Up(ctx)

	require.NoError(t, err)
	assert.Empty(t, applied)

	status, err := migrator.Status(ctx)
	require.NoError(t, err)
	require.Len(t, status, 1)
}

func Test_NewMigrator_RejectsUnknownDriver(t *testing.T) {
	_, err := database.NewMigrator(nil, "oracle")

	assert.Error(t, err)
}

func Test_Migrator_Up_AllowsOneOpenAttendancePerPerson(t *testing.T) {
	ctx := context.Background()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "library.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	migrator, err := db.Migrator()
	require.NoError(t, err)
	_, err = migrator.Up(ctx)
	require.NoError(t, err)

	exec := func(query string, args ...any) error { return db.Gorm.Exec(query, args...).Error }
	require.NoError(t, exec(`INSERT INTO persons (id, name, email, person_type, status, library_id) VALUES ('p1', 'Ana', 'ana@example.com', 'MEMBER', 'ACTIVE', 'LIB-1')`))
	require.NoError(t, exec(`INSERT INTO attendance (id, person_id, check_in_time) VALUES ('a1', 'p1', CURRENT_TIMESTAMP)`))

	err = exec(`INSERT INTO attendance (id, person_id, check_in_time) VALUES ('a2', 'p1', CURRENT_TIMESTAMP)`)
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	require.NoError(t, exec(`UPDATE attendance SET check_out_time = CURRENT_TIMESTAMP WHERE id = 'a1'`))
	assert.NoError(t, exec(`INSERT INTO attendance (id, person_id, check_in_time) VALUES ('a3', 'p1', CURRENT_TIMESTAMP)`))
}
