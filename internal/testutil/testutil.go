// Package testutil builds throwaway databases for package tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"communitylibrary/internal/database"
	"communitylibrary/internal/models"
)

// NewDatabase opens a fresh SQLite file under t.TempDir() and applies every
// migration to it.
func NewDatabase(t testing.TB) *database.Database {
	t.Helper()

	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "library.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	migrator, err := db.Migrator()
	require.NoError(t, err)
	_, err = migrator.Up(context.Background())
	require.NoError(t, err)

	return db
}

// Clock is a settable time source.
type Clock struct {
	now time.Time
}

func NewClock(now time.Time) *Clock {
	return &Clock{now: now.UTC()}
}

func (c *Clock) Now() time.Time { return c.now }

func (c *Clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func (c *Clock) Set(now time.Time) { c.now = now.UTC() }

// ─── Fixtures ─────────────────────────────────────────────────────────────────

func NewBook(title, isbn, category string) *models.Book {
	return &models.Book{
		Title:         title,
		Author:        "Author of " + title,
		ISBN:          isbn,
		Category:      category,
		Status:        models.BookStatusAvailable,
		PublishedYear: 2001,
	}
}

func NewPerson(name, email, libraryID string) *models.Person {
	return &models.Person{
		Name:       name,
		Email:      email,
		Phone:      "+15550000000",
		PersonType: models.PersonTypeMember,
		Status:     models.PersonStatusActive,
		LibraryID:  libraryID,
	}
}
