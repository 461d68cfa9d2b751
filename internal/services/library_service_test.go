package services_test

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"communitylibrary/internal/models"
	"communitylibrary/internal/notifications"
	"communitylibrary/internal/repositories"
	"communitylibrary/internal/services"
)

// ─── Books ────────────────────────────────────────────────────────────────────

func Test_CreateBook_StartsAvailable(t *testing.T) {
	h := newHarness(t)

	book := h.book(t, "Dune", "978-0441013593", "Fiction")

	assert.NotEqual(t, uuid.Nil, book.ID)
	assert.Equal(t, models.BookStatusAvailable, book.Status)
}

func Test_CreateBook_Validation(t *testing.T) {
	h := newHarness(t)

	_, err := h.library.CreateBook(h.ctx, services.BookInput{Title: "No ISBN", Author: "Someone"})

	require.ErrorIs(t, err, services.ErrValidation)
	var verr *services.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "isbn", verr.Field)
}

func Test_CreateBook_DuplicateISBNConflicts(t *testing.T) {
	h := newHarness(t)
	h.book(t, "Dune", "978-0441013593", "Fiction")

	_, err := h.library.CreateBook(h.ctx, services.BookInput{Title: "Dune (copy)", Author: "Herbert", ISBN: "978-0441013593"})

	assert.ErrorIs(t, err, services.ErrConflict)
}

func Test_UpdateBook_ChangesMetadataOnly(t *testing.T) {
	h := newHarness(t)
	book := h.book(t, "Dune", "111", "Fiction")
	person := h.person(t, "ana")
	_, err := h.library.Borrow(h.ctx, book.ID, person.ID)
	require.NoError(t, err)

	updated, err := h.library.UpdateBook(h.ctx, book.ID, services.BookPatch{
		Title:         strPtr("Dune Messiah"),
		PublishedYear: intPtr(1969),
	})

	require.NoError(t, err)
	assert.Equal(t, "Dune Messiah", updated.Title)
	assert.Equal(t, 1969, updated.PublishedYear)
	assert.Equal(t, "Author of Dune", updated.Author)
	assert.Equal(t, models.BookStatusBorrowed, updated.Status)
}

func Test_UpdateBook_NotFound(t *testing.T) {
	h := newHarness(t)

	_, err := h.library.UpdateBook(h.ctx, uuid.New(), services.BookPatch{Title: strPtr("x")})

	assert.ErrorIs(t, err, services.ErrBookNotFound)
	assert.ErrorIs(t, err, services.ErrNotFound)
}

func Test_DeleteBook(t *testing.T) {
	h := newHarness(t)
	free := h.book(t, "Free", "1", "Fiction")
	out := h.book(t, "Out", "2", "Fiction")
	_, err := h.library.Borrow(h.ctx, out.ID, h.person(t, "bo").ID)
	require.NoError(t, err)

	require.NoError(t, h.library.DeleteBook(h.ctx, free.ID))
	_, err = h.library.GetBook(h.ctx, free.ID)
	assert.ErrorIs(t, err, services.ErrNotFound)

	assert.ErrorIs(t, h.library.DeleteBook(h.ctx, out.ID), services.ErrBookInUse)
	assert.ErrorIs(t, h.library.DeleteBook(h.ctx, uuid.New()), services.ErrNotFound)
}

func Test_ListBooks_Filters(t *testing.T) {
	h := newHarness(t)
	h.book(t, "Dune", "1", "Fiction")
	h.book(t, "Cosmos", "2", "Science")
	h.book(t, "Emma", "3", "Fiction")

	fiction, err := h.library.ListBooks(h.ctx, repositories.BookFilter{Category: "Fiction"})
	require.NoError(t, err)
	search, err := h.library.ListBooks(h.ctx, repositories.BookFilter{Search: "COS"})
	require.NoError(t, err)

	require.Len(t, fiction, 2)
	assert.Equal(t, "Dune", fiction[0].Title)
	assert.Equal(t, "Emma", fiction[1].Title)
	require.Len(t, search, 1)
	assert.Equal(t, "Cosmos", search[0].Title)
}

// ─── Borrow / Return ──────────────────────────────────────────────────────────

func Test_Borrow_MarksBookBorrowed(t *testing.T) {
	// arrange
	h := newHarness(t)
	book := h.book(t, "Dune", "1", "Fiction")
	person := h.person(t, "ana")

	// act
	borrowing, err := h.library.Borrow(h.ctx, book.ID, person.ID)

	// assert
	require.NoError(t, err)
	assert.Equal(t, models.BorrowingStatusBorrowed, borrowing.Status)
	assert.Equal(t, h.clock.Now(), borrowing.BorrowDate)
	assert.Equal(t, h.clock.Now().AddDate(0, 0, services.DefaultMaxBorrowDays), borrowing.DueDate)
	assert.True(t, borrowing.FineAmount.IsZero())
	assert.Equal(t, models.BookStatusBorrowed, h.bookStatus(t, book.ID))

	msgs := h.notifier.messages()
	require.Len(t, msgs, 1, "sms is disabled by default")
	assert.Equal(t, notifications.ChannelEmail, msgs[0].Channel)
	assert.Equal(t, person.Email, msgs[0].To)
	assert.Equal(t, services.EventBookBorrowed, msgs[0].Event)
}

func Test_Borrow_Rejections(t *testing.T) {
	h := newHarness(t)
	book := h.book(t, "Dune", "1", "Fiction")
	ana := h.person(t, "ana")
	bo := h.person(t, "bo")
	_, err := h.library.Borrow(h.ctx, book.ID, ana.ID)
	require.NoError(t, err)

	banned := h.person(t, "cy")
	status := models.PersonStatusBanned
	_, err = h.persons.Update(h.ctx, banned.ID, services.PersonPatch{Status: &status})
	require.NoError(t, err)
	other := h.book(t, "Emma", "2", "Fiction")

	tests := []struct {
		name     string
		bookID   uuid.UUID
		personID uuid.UUID
		want     error
	}{
		{"book already out", book.ID, bo.ID, services.ErrBookNotAvailable},
		{"person not active", other.ID, banned.ID, services.ErrPersonNotActive},
		{"missing book", uuid.New(), bo.ID, services.ErrBookNotFound},
		{"missing person", other.ID, uuid.New(), services.ErrPersonNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.library.Borrow(h.ctx, tt.bookID, tt.personID)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Equal(t, models.BookStatusAvailable, h.bookStatus(t, other.ID))
}

func Test_Borrow_EnforcesBorrowLimit(t *testing.T) {
	h := newHarness(t)
	_, err := h.settings.Update(h.ctx, services.SettingsPatch{MaxBooksPerMember: intPtr(1)})
	require.NoError(t, err)
	person := h.person(t, "ana")
	first := h.book(t, "One", "1", "Fiction")
	second := h.book(t, "Two", "2", "Fiction")
	_, err = h.library.Borrow(h.ctx, first.ID, person.ID)
	require.NoError(t, err)

	_, err = h.library.Borrow(h.ctx, second.ID, person.ID)

	assert.ErrorIs(t, err, services.ErrBorrowLimitReached)
	assert.ErrorIs(t, err, services.ErrConflict)
}

func Test_Borrow_ConcurrentAttemptsYieldOneLoan(t *testing.T) {
	h := newHarness(t)
	book := h.book(t, "Dune", "1", "Fiction")
	const attempts = 8
	persons := make([]*models.Person, attempts)
	for i := range persons {
		persons[i] = h.person(t, "p")
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(p *models.Person) {
			defer wg.Done()
			_, err := h.library.Borrow(h.ctx, book.ID, p.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case assert.ErrorIs(t, err, services.ErrConflict):
				conflicts++
			}
		}(persons[i])
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, attempts-1, conflicts)
	active, err := h.library.ListBorrowings(h.ctx, repositories.BorrowingFilter{BookID: &book.ID, Status: models.BorrowingStatusBorrowed})
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func Test_Borrow_ConcurrentBorrowsBySamePersonRespectLimit(t *testing.T) {
	h := newHarness(t)
	_, err := h.settings.Update(h.ctx, services.SettingsPatch{MaxBooksPerMember: intPtr(2)})
	require.NoError(t, err)
	person := h.person(t, "ana")
	const attempts = 6
	books := make([]*models.Book, attempts)
	for i := range books {
		books[i] = h.book(t, "Book", uuid.NewString(), "Fiction")
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		limited   int
	)
	for _, b := range books {
		wg.Add(1)
		go func(bookID uuid.UUID) {
			defer wg.Done()
			_, err := h.library.Borrow(h.ctx, bookID, person.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case assert.ErrorIs(t, err, services.ErrBorrowLimitReached):
				limited++
			}
		}(b.ID)
	}
	wg.Wait()

	assert.Equal(t, 2, successes)
	assert.Equal(t, attempts-2, limited)
	active, err := h.library.ListBorrowings(h.ctx, repositories.BorrowingFilter{PersonID: &person.ID, Status: models.BorrowingStatusBorrowed})
	require.NoError(t, err)
	assert.Len(t, active, 2)
}

func Test_Return_RestoresAvailability(t *testing.T) {
	h := newHarness(t)
	book := h.book(t, "Dune", "1", "Fiction")
	borrowing, err := h.library.Borrow(h.ctx, book.ID, h.person(t, "ana").ID)
	require.NoError(t, err)
	h.clock.Advance(3 * 24 * time.Hour)

	returned, err := h.library.Return(h.ctx, borrowing.ID)

	require.NoError(t, err)
	assert.Equal(t, models.BorrowingStatusReturned, returned.Status)
	require.NotNil(t, returned.ReturnDate)
	assert.True(t, returned.ReturnDate.Equal(h.clock.Now()))
	assert.True(t, returned.FineAmount.IsZero())
	assert.False(t, returned.Overdue)
	assert.Equal(t, models.BookStatusAvailable, h.bookStatus(t, book.ID))
	assert.Equal(t, []string{services.EventBookBorrowed, services.EventBookReturned}, h.notifier.events())
}

func Test_Return_LateChargesFinePerDay(t *testing.T) {
	h := newHarness(t)
	book := h.book(t, "Dune", "1", "Fiction")
	borrowing, err := h.library.Borrow(h.ctx, book.ID, h.person(t, "ana").ID)
	require.NoError(t, err)
	h.clock.Set(borrowing.DueDate.AddDate(0, 0, 3))

	returned, err := h.library.Return(h.ctx, borrowing.ID)

	require.NoError(t, err)
	assert.True(t, returned.FineAmount.Equal(decimal.RequireFromString("1.50")), "fine %s", returned.FineAmount)
}

func Test_Return_Twice(t *testing.T) {
	h := newHarness(t)
	book := h.book(t, "Dune", "1", "Fiction")
	borrowing, err := h.library.Borrow(h.ctx, book.ID, h.person(t, "ana").ID)
	require.NoError(t, err)
	_, err = h.library.Return(h.ctx, borrowing.ID)
	require.NoError(t, err)

	_, err = h.library.Return(h.ctx, borrowing.ID)
	assert.ErrorIs(t, err, services.ErrBorrowingAlreadyReturned)

	_, err = h.library.Return(h.ctx, uuid.New())
	assert.ErrorIs(t, err, services.ErrBorrowingNotFound)
}

func Test_Return_WithWaitingReservation_HoldsBookForHolder(t *testing.T) {
	h := newHarness(t)
	book := h.book(t, "Dune", "1", "Fiction")
	ana := h.person(t, "ana")
	bo := h.person(t, "bo")
	cy := h.person(t, "cy")
	borrowing, err := h.library.Borrow(h.ctx, book.ID, ana.ID)
	require.NoError(t, err)
	h.clock.Advance(time.Minute)
	hold, err := h.library.Reserve(h.ctx, book.ID, bo.ID)
	require.NoError(t, err)
	h.clock.Advance(time.Minute)
	_, err = h.library.Reserve(h.ctx, book.ID, cy.ID)
	require.NoError(t, err)

	_, err = h.library.Return(h.ctx, borrowing.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookStatusReserved, h.bookStatus(t, book.ID))
	assert.Contains(t, h.notifier.events(), services.EventReservationAvailable)

	_, err = h.library.Borrow(h.ctx, book.ID, cy.ID)
	assert.ErrorIs(t, err, services.ErrBookReserved)

	second, err := h.library.Borrow(h.ctx, book.ID, bo.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookStatusBorrowed, second.Book.Status)

	fulfilled, err := h.library.GetReservation(h.ctx, hold.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationStatusFulfilled, fulfilled.Status)
}

func Test_ListBorrowings_DerivesOverdue(t *testing.T) {
	h := newHarness(t)
	person := h.person(t, "ana")
	late, err := h.library.Borrow(h.ctx, h.book(t, "Late", "1", "Fiction").ID, person.ID)
	require.NoError(t, err)
	h.clock.Advance(10 * 24 * time.Hour)
	_, err = h.library.Borrow(h.ctx, h.book(t, "Fresh", "2", "Fiction").ID, person.ID)
	require.NoError(t, err)
	h.clock.Advance(5 * 24 * time.Hour)

	overdue, err := h.library.ListBorrowings(h.ctx, repositories.BorrowingFilter{Status: models.BorrowingStatusOverdue})
	require.NoError(t, err)
	all, err := h.library.ListBorrowings(h.ctx, repositories.BorrowingFilter{PersonID: &person.ID})
	require.NoError(t, err)

	require.Len(t, overdue, 1)
	assert.Equal(t, late.ID, overdue[0].ID)
	assert.True(t, overdue[0].Overdue)
	assert.Equal(t, models.BorrowingStatusBorrowed, overdue[0].Status, "overdue is never stored")
	require.Len(t, all, 2)
	assert.False(t, all[0].Overdue)
	assert.True(t, all[1].Overdue)

	got, err := h.library.GetBorrowing(h.ctx, late.ID)
	require.NoError(t, err)
	assert.True(t, got.Overdue)

	_, err = h.library.ListBorrowings(h.ctx, repositories.BorrowingFilter{Status: "LOST"})
	assert.ErrorIs(t, err, services.ErrValidation)
}

// ─── Reservations ─────────────────────────────────────────────────────────────

func Test_Reserve_AvailableBookStaysAvailable(t *testing.T) {
	h := newHarness(t)
	book := h.book(t, "Dune", "1", "Fiction")
	person := h.person(t, "ana")

	reservation, err := h.library.Reserve(h.ctx, book.ID, person.ID)

	require.NoError(t, err)
	assert.Equal(t, models.ReservationStatusWaiting, reservation.Status)
	assert.Equal(t, models.BookStatusAvailable, h.bookStatus(t, book.ID))

	_, err = h.library.Reserve(h.ctx, book.ID, person.ID)
	assert.ErrorIs(t, err, services.ErrDuplicateReservation)

	_, err = h.library.Reserve(h.ctx, uuid.New(), person.ID)
	assert.ErrorIs(t, err, services.ErrBookNotFound)
}

func Test_Reservation_CancelThenDelete(t *testing.T) {
	h := newHarness(t)
	reservation, err := h.library.Reserve(h.ctx, h.book(t, "Dune", "1", "Fiction").ID, h.person(t, "ana").ID)
	require.NoError(t, err)

	err = h.library.DeleteReservation(h.ctx, reservation.ID)
	assert.ErrorIs(t, err, services.ErrInvalidState, "waiting reservations cannot be deleted")

	cancelled, err := h.library.CancelReservation(h.ctx, reservation.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationStatusCancelled, cancelled.Status)

	_, err = h.library.CancelReservation(h.ctx, reservation.ID)
	assert.ErrorIs(t, err, services.ErrInvalidState)

	require.NoError(t, h.library.DeleteReservation(h.ctx, reservation.ID))
	assert.ErrorIs(t, h.library.DeleteReservation(h.ctx, reservation.ID), services.ErrNotFound)
}

func Test_Reservation_ReadyOnlyFromWaiting(t *testing.T) {
	h := newHarness(t)
	reservation, err := h.library.Reserve(h.ctx, h.book(t, "Dune", "1", "Fiction").ID, h.person(t, "ana").ID)
	require.NoError(t, err)

	ready, err := h.library.MarkReservationReady(h.ctx, reservation.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationStatusReady, ready.Status)
	assert.Contains(t, h.notifier.events(), services.EventReservationReady)

	_, err = h.library.MarkReservationReady(h.ctx, reservation.ID)
	assert.ErrorIs(t, err, services.ErrReservationNotWaiting)
	assert.ErrorIs(t, h.library.DeleteReservation(h.ctx, reservation.ID), services.ErrInvalidState)

	cancelled, err := h.library.CancelReservation(h.ctx, reservation.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationStatusCancelled, cancelled.Status)

	_, err = h.library.CancelReservation(h.ctx, reservation.ID)
	assert.ErrorIs(t, err, services.ErrReservationNotActive)
	_, err = h.library.MarkReservationReady(h.ctx, reservation.ID)
	assert.ErrorIs(t, err, services.ErrInvalidState)
}

func Test_MarkReservationReady_NotifiesWithPickupWording(t *testing.T) {
	h := newHarness(t)
	ana := h.person(t, "ana")
	reservation, err := h.library.Reserve(h.ctx, h.book(t, "Dune", "1", "Fiction").ID, ana.ID)
	require.NoError(t, err)

	_, err = h.library.MarkReservationReady(h.ctx, reservation.ID)
	require.NoError(t, err)

	var subjects []string
	for _, m := range h.notifier.messages() {
		if m.Event == services.EventReservationReady && m.To == ana.Email {
			subjects = append(subjects, m.Subject)
		}
	}
	require.Len(t, subjects, 1)
	assert.Equal(t, "Reservation ready for pickup: Dune", subjects[0])
}

func Test_CancelReservation_FromReadyReleasesHeldBook(t *testing.T) {
	// arrange
	h := newHarness(t)
	book := h.book(t, "Dune", "1", "Fiction")
	borrowing, err := h.library.Borrow(h.ctx, book.ID, h.person(t, "ana").ID)
	require.NoError(t, err)
	bo := h.person(t, "bo")
	reservation, err := h.library.Reserve(h.ctx, book.ID, bo.ID)
	require.NoError(t, err)
	_, err = h.library.Return(h.ctx, borrowing.ID)
	require.NoError(t, err)
	_, err = h.library.MarkReservationReady(h.ctx, reservation.ID)
	require.NoError(t, err)
	suspended := models.PersonStatusSuspended
	_, err = h.persons.Update(h.ctx, bo.ID, services.PersonPatch{Status: &suspended})
	require.NoError(t, err)
	require.Equal(t, models.BookStatusReserved, h.bookStatus(t, book.ID))

	// act
	cancelled, err := h.library.CancelReservation(h.ctx, reservation.ID)

	// assert
	require.NoError(t, err)
	assert.Equal(t, models.ReservationStatusCancelled, cancelled.Status)
	assert.Equal(t, models.BookStatusAvailable, h.bookStatus(t, book.ID))
	_, err = h.library.Borrow(h.ctx, book.ID, h.person(t, "cy").ID)
	assert.NoError(t, err)
	assert.NoError(t, h.library.DeleteReservation(h.ctx, reservation.ID))
}

func Test_CancelReservation_HeadOfLinePromotesNextHolder(t *testing.T) {
	// arrange
	h := newHarness(t)
	book := h.book(t, "Dune", "1", "Fiction")
	borrowing, err := h.library.Borrow(h.ctx, book.ID, h.person(t, "ana").ID)
	require.NoError(t, err)
	bo, cy := h.person(t, "bo"), h.person(t, "cy")
	first, err := h.library.Reserve(h.ctx, book.ID, bo.ID)
	require.NoError(t, err)
	h.clock.Advance(time.Minute)
	_, err = h.library.Reserve(h.ctx, book.ID, cy.ID)
	require.NoError(t, err)
	_, err = h.library.Return(h.ctx, borrowing.ID)
	require.NoError(t, err)
	_, err = h.library.MarkReservationReady(h.ctx, first.ID)
	require.NoError(t, err)

	// act
	_, err = h.library.CancelReservation(h.ctx, first.ID)

	// assert
	require.NoError(t, err)
	assert.Equal(t, models.BookStatusReserved, h.bookStatus(t, book.ID))
	var toCy int
	for _, m := range h.notifier.messages() {
		if m.Event == services.EventReservationAvailable && m.To == cy.Email {
			toCy++
		}
	}
	assert.Equal(t, 1, toCy)
	_, err = h.library.Borrow(h.ctx, book.ID, cy.ID)
	assert.NoError(t, err)
}

func Test_CancelReservation_ReleasesReservedBook(t *testing.T) {
	h := newHarness(t)
	book := h.book(t, "Dune", "1", "Fiction")
	borrowing, err := h.library.Borrow(h.ctx, book.ID, h.person(t, "ana").ID)
	require.NoError(t, err)
	reservation, err := h.library.Reserve(h.ctx, book.ID, h.person(t, "bo").ID)
	require.NoError(t, err)
	_, err = h.library.Return(h.ctx, borrowing.ID)
	require.NoError(t, err)
	require.Equal(t, models.BookStatusReserved, h.bookStatus(t, book.ID))

	_, err = h.library.CancelReservation(h.ctx, reservation.ID)

	require.NoError(t, err)
	assert.Equal(t, models.BookStatusAvailable, h.bookStatus(t, book.ID))
}

func Test_ListReservations_Filters(t *testing.T) {
	h := newHarness(t)
	book := h.book(t, "Dune", "1", "Fiction")
	first, err := h.library.Reserve(h.ctx, book.ID, h.person(t, "ana").ID)
	require.NoError(t, err)
	h.clock.Advance(time.Minute)
	_, err = h.library.Reserve(h.ctx, book.ID, h.person(t, "bo").ID)
	require.NoError(t, err)
	_, err = h.library.CancelReservation(h.ctx, first.ID)
	require.NoError(t, err)

	waiting, err := h.library.ListReservations(h.ctx, repositories.ReservationFilter{BookID: &book.ID, Status: models.ReservationStatusWaiting})
	require.NoError(t, err)
	all, err := h.library.ListReservations(h.ctx, repositories.ReservationFilter{BookID: &book.ID})
	require.NoError(t, err)

	assert.Len(t, waiting, 1)
	require.Len(t, all, 2)
	assert.Equal(t, first.ID, all[0].ID)

	_, err = h.library.ListReservations(h.ctx, repositories.ReservationFilter{Status: "EXPIRED"})
	assert.ErrorIs(t, err, services.ErrValidation)
}
