package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"communitylibrary/internal/models"
	"communitylibrary/internal/notifications"
	"communitylibrary/internal/repositories"
	"communitylibrary/internal/services"
	"communitylibrary/internal/testutil"
)

type fakeNotifier struct {
	mu   sync.Mutex
	msgs []notifications.Message
}

func (n *fakeNotifier) Enqueue(msg notifications.Message) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
	return true
}

func (n *fakeNotifier) events() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.msgs))
	for _, m := range n.msgs {
		out = append(out, m.Event)
	}
	return out
}

func (n *fakeNotifier) messages() []notifications.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notifications.Message(nil), n.msgs...)
}

type harness struct {
	ctx      context.Context
	db       *gorm.DB
	repos    *repositories.Registry
	clock    *testutil.Clock
	notifier *fakeNotifier

	library    services.LibraryService
	persons    services.PersonService
	attendance services.AttendanceService
	settings   services.SettingsService
	dashboard  services.DashboardService
	auth       services.AuthService
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db := testutil.NewDatabase(t)
	repos := repositories.NewRegistry(db.Gorm)
	clock := testutil.NewClock(time.Now().Truncate(time.Second))
	notifier := &fakeNotifier{}
	opts := []services.Option{services.WithClock(clock.Now), services.WithNotifier(notifier)}

	return &harness{
		ctx:        context.Background(),
		db:         db.Gorm,
		repos:      repos,
		clock:      clock,
		notifier:   notifier,
		library:    services.NewLibraryService(db.Gorm, repos, opts...),
		persons:    services.NewPersonService(db.Gorm, repos, opts...),
		attendance: services.NewAttendanceService(db.Gorm, repos, opts...),
		settings:   services.NewSettingsService(db.Gorm, repos.Settings, opts...),
		dashboard:  services.NewDashboardService(repos, opts...),
		auth:       services.NewAuthService(db.Gorm, repos, time.Hour, opts...),
	}
}

func (h *harness) book(t *testing.T, title, isbn, category string) *models.Book {
	t.Helper()
	book, err := h.library.CreateBook(h.ctx, services.BookInput{
		Title:    title,
		Author:   "Author of " + title,
		ISBN:     isbn,
		Category: category,
	})
	require.NoError(t, err)
	return book
}

func (h *harness) person(t *testing.T, name string) *models.Person {
	t.Helper()
	person, err := h.persons.Create(h.ctx, services.PersonInput{
		Name:  name,
		Email: name + "-" + uuid.NewString()[:6] + "@example.com",
		Phone: "+15550001111",
	})
	require.NoError(t, err)
	return person
}

func (h *harness) bookStatus(t *testing.T, id uuid.UUID) models.BookStatus {
	t.Helper()
	book, err := h.library.GetBook(h.ctx, id)
	require.NoError(t, err)
	return book.Status
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }
