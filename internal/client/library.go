package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"communitylibrary/internal/models"
)

// Library performs mutations through a Client and mirrors the results into a
// Store. Failed calls push an error notice and return the error unchanged.
type Library struct {
	api   *Client
	store *Store
	now   func() time.Time
}

func NewLibrary(api *Client, store *Store) *Library {
	return &Library{api: api, store: store, now: time.Now}
}

func (l *Library) Store() *Store { return l.store }

func (l *Library) notify(level NoticeLevel, format string, args ...any) {
	l.store.Dispatch(NotificationPushed{Notice: Notice{
		ID:      uuid.New(),
		Level:   level,
		Message: fmt.Sprintf(format, args...),
		At:      l.now(),
	}})
}

func (l *Library) fail(what string, err error) error {
	msg := err.Error()
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		msg = apiErr.Message
	}
	l.notify(NoticeError, "%s: %s", what, msg)
	return err
}

// ─── Session ──────────────────────────────────────────────────────────────────

func (l *Library) Login(ctx context.Context, username, password string) error {
	res, err := l.api.Login(ctx, username, password)
	if err != nil {
		return l.fail("login failed", err)
	}
	l.store.Dispatch(SessionStarted{Session: Session{User: res.User, Permissions: res.Permissions, ExpiresAt: res.ExpiresAt}})
	return nil
}

// Logout clears local state even when the server call fails.
func (l *Library) Logout(ctx context.Context) error {
	err := l.api.Logout(ctx)
	l.store.Dispatch(SessionEnded{})
	return err
}

// ─── Catalog ──────────────────────────────────────────────────────────────────

func (l *Library) LoadBooks(ctx context.Context, q BookQuery) error {
	books, err := l.api.ListBooks(ctx, q)
	if err != nil {
		return l.fail("load books", err)
	}
	l.store.Dispatch(BooksLoaded{Books: books})
	return nil
}

func (l *Library) AddBook(ctx context.Context, in BookRequest) (*models.Book, error) {
	book, err := l.api.CreateBook(ctx, in)
	if err != nil {
		return nil, l.fail("add book", err)
	}
	l.store.Dispatch(BookUpserted{Book: *book})
	l.notify(NoticeSuccess, "Added %q", book.Title)
	return book, nil
}

func (l *Library) UpdateBook(ctx context.Context, id uuid.UUID, in BookUpdate) (*models.Book, error) {
	book, err := l.api.UpdateBook(ctx, id, in)
	if err != nil {
		return nil, l.fail("update book", err)
	}
	l.store.Dispatch(BookUpserted{Book: *book})
	return book, nil
}

func (l *Library) RemoveBook(ctx context.Context, id uuid.UUID) error {
	if err := l.api.DeleteBook(ctx, id); err != nil {
		return l.fail("remove book", err)
	}
	l.store.Dispatch(BookRemoved{ID: id})
	return nil
}

// ─── Registry ─────────────────────────────────────────────────────────────────

func (l *Library) LoadPersons(ctx context.Context, q PersonQuery) error {
	persons, err := l.api.ListPersons(ctx, q)
	if err != nil {
		return l.fail("load persons", err)
	}
	l.store.Dispatch(PersonsLoaded{Persons: persons})
	return nil
}

func (l *Library) AddPerson(ctx context.Context, in PersonRequest) (*models.Person, error) {
	person, err := l.api.CreatePerson(ctx, in)
	if err != nil {
		return nil, l.fail("add person", err)
	}
	l.store.Dispatch(PersonUpserted{Person: *person})
	return person, nil
}

func (l *Library) RemovePerson(ctx context.Context, id uuid.UUID) error {
	if err := l.api.DeletePerson(ctx, id); err != nil {
		return l.fail("remove person", err)
	}
	l.store.Dispatch(PersonRemoved{ID: id})
	return nil
}

// ─── Circulation ──────────────────────────────────────────────────────────────

func (l *Library) LoadBorrowings(ctx context.Context, status models.BorrowingStatus) error {
	borrowings, err := l.api.ListBorrowings(ctx, status)
	if err != nil {
		return l.fail("load borrowings", err)
	}
	l.store.Dispatch(BorrowingsLoaded{Borrowings: borrowings})
	return nil
}

// Borrow records the loan and the book's new status.
func (l *Library) Borrow(ctx context.Context, bookID, personID uuid.UUID) (*models.Borrowing, error) {
	borrowing, err := l.api.Borrow(ctx, bookID, personID)
	if err != nil {
		return nil, l.fail("borrow", err)
	}
	l.store.Dispatch(BorrowingUpserted{Borrowing: *borrowing})
	if err := l.refreshBook(ctx, bookID, borrowing.Book); err != nil {
		return borrowing, err
	}
	l.notify(NoticeSuccess, "Borrowed, due %s", borrowing.DueDate.Format("2006-01-02"))
	return borrowing, nil
}

// Return records the return; the book comes back AVAILABLE or RESERVED.
func (l *Library) Return(ctx context.Context, borrowingID uuid.UUID) (*models.Borrowing, error) {
	borrowing, err := l.api.Return(ctx, borrowingID)
	if err != nil {
		return nil, l.fail("return", err)
	}
	l.store.Dispatch(BorrowingUpserted{Borrowing: *borrowing})
	if err := l.refreshBook(ctx, borrowing.BookID, borrowing.Book); err != nil {
		return borrowing, err
	}
	if borrowing.FineAmount.IsPositive() {
		l.notify(NoticeInfo, "Returned late, fine %s", borrowing.FineAmount.StringFixed(2))
	} else {
		l.notify(NoticeSuccess, "Returned")
	}
	return borrowing, nil
}

func (l *Library) LoadReservations(ctx context.Context, status models.ReservationStatus) error {
	reservations, err := l.api.ListReservations(ctx, status)
	if err != nil {
		return l.fail("load reservations", err)
	}
	l.store.Dispatch(ReservationsLoaded{Reservations: reservations})
	return nil
}

func (l *Library) Reserve(ctx context.Context, bookID, personID uuid.UUID) (*models.Reservation, error) {
	reservation, err := l.api.Reserve(ctx, bookID, personID)
	if err != nil {
		return nil, l.fail("reserve", err)
	}
	l.store.Dispatch(ReservationUpserted{Reservation: *reservation})
	return reservation, nil
}

// CancelReservation may release the book, so it is re-read afterwards.
func (l *Library) CancelReservation(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	reservation, err := l.api.CancelReservation(ctx, id)
	if err != nil {
		return nil, l.fail("cancel reservation", err)
	}
	l.store.Dispatch(ReservationUpserted{Reservation: *reservation})
	if err := l.refreshBook(ctx, reservation.BookID, nil); err != nil {
		return reservation, err
	}
	return reservation, nil
}

func (l *Library) MarkReservationReady(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	reservation, err := l.api.MarkReservationReady(ctx, id)
	if err != nil {
		return nil, l.fail("mark reservation ready", err)
	}
	l.store.Dispatch(ReservationUpserted{Reservation: *reservation})
	return reservation, nil
}

func (l *Library) DeleteReservation(ctx context.Context, id uuid.UUID) error {
	if err := l.api.DeleteReservation(ctx, id); err != nil {
		return l.fail("delete reservation", err)
	}
	l.store.Dispatch(ReservationRemoved{ID: id})
	return nil
}

// refreshBook upserts known when the server returned it, else fetches the book.
func (l *Library) refreshBook(ctx context.Context, id uuid.UUID, known *models.Book) error {
	book := known
	if book == nil {
		var err error
		if book, err = l.api.GetBook(ctx, id); err != nil {
			return l.fail("refresh book", err)
		}
	}
	l.store.Dispatch(BookUpserted{Book: *book})
	return nil
}

// ─── Front desk ───────────────────────────────────────────────────────────────

func (l *Library) LoadAttendance(ctx context.Context, day time.Time) error {
	records, err := l.api.ListAttendance(ctx, day, false)
	if err != nil {
		return l.fail("load attendance", err)
	}
	l.store.Dispatch(AttendanceLoaded{Records: records})
	return nil
}

func (l *Library) CheckIn(ctx context.Context, personID uuid.UUID) (*models.Attendance, error) {
	record, err := l.api.CheckIn(ctx, personID)
	if err != nil {
		return nil, l.fail("check in", err)
	}
	l.store.Dispatch(AttendanceUpserted{Record: *record})
	return record, nil
}

func (l *Library) CheckOut(ctx context.Context, personID uuid.UUID) (*models.Attendance, error) {
	record, err := l.api.CheckOut(ctx, personID)
	if err != nil {
		return nil, l.fail("check out", err)
	}
	l.store.Dispatch(AttendanceUpserted{Record: *record})
	return record, nil
}

// ─── Administration ───────────────────────────────────────────────────────────

func (l *Library) LoadSettings(ctx context.Context) error {
	settings, err := l.api.GetSettings(ctx)
	if err != nil {
		return l.fail("load settings", err)
	}
	l.store.Dispatch(SettingsLoaded{Settings: *settings})
	return nil
}

func (l *Library) SaveSettings(ctx context.Context, in SettingsUpdate) error {
	settings, err := l.api.UpdateSettings(ctx, in)
	if err != nil {
		return l.fail("save settings", err)
	}
	l.store.Dispatch(SettingsLoaded{Settings: *settings})
	l.notify(NoticeSuccess, "Settings saved")
	return nil
}

func (l *Library) LoadStats(ctx context.Context, timeRange string) error {
	stats, err := l.api.DashboardStats(ctx, timeRange)
	if err != nil {
		return l.fail("load dashboard", err)
	}
	l.store.Dispatch(StatsLoaded{Stats: *stats})
	return nil
}
