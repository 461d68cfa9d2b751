package services

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"communitylibrary/internal/models"
	"communitylibrary/internal/repositories"
)

// ─── Service Interface ────────────────────────────────────────────────────────

// LibraryService defines the catalog and circulation operations: books,
// borrowings and reservations. Every state transition runs in one transaction
// and keeps Book.status in step with the borrowing and reservation tables.
type LibraryService interface {
	CreateBook(ctx context.Context, in BookInput) (*models.Book, error)
	ListBooks(ctx context.Context, filter repositories.BookFilter) ([]models.Book, error)
	GetBook(ctx context.Context, id uuid.UUID) (*models.Book, error)
	UpdateBook(ctx context.Context, id uuid.UUID, patch BookPatch) (*models.Book, error)
	DeleteBook(ctx context.Context, id uuid.UUID) error

	Borrow(ctx context.Context, bookID, personID uuid.UUID) (*models.Borrowing, error)
	Return(ctx context.Context, borrowingID uuid.UUID) (*models.Borrowing, error)
	GetBorrowing(ctx context.Context, id uuid.UUID) (*models.Borrowing, error)
	ListBorrowings(ctx context.Context, filter repositories.BorrowingFilter) ([]models.Borrowing, error)

	Reserve(ctx context.Context, bookID, personID uuid.UUID) (*models.Reservation, error)
	CancelReservation(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
	MarkReservationReady(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
	DeleteReservation(ctx context.Context, id uuid.UUID) error
	GetReservation(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
	ListReservations(ctx context.Context, filter repositories.ReservationFilter) ([]models.Reservation, error)
}

type BookInput struct {
	Title         string
	Author        string
	ISBN          string
	Category      string
	PublishedYear int
}

// BookPatch carries metadata changes. Status is not patchable.
type BookPatch struct {
	Title         *string
	Author        *string
	ISBN          *string
	Category      *string
	PublishedYear *int
}

// ─── Implementation ───────────────────────────────────────────────────────────

type libraryService struct {
	options
	db           *gorm.DB
	books        repositories.BookRepository
	persons      repositories.PersonRepository
	borrowings   repositories.BorrowingRepository
	reservations repositories.ReservationRepository
	settings     repositories.SettingsRepository
}

// NewLibraryService wires up all dependencies and returns a LibraryService.
func NewLibraryService(db *gorm.DB, repos *repositories.Registry, opts ...Option) LibraryService {
	return &libraryService{
		options:      buildOptions(opts),
		db:           db,
		books:        repos.Books,
		persons:      repos.Persons,
		borrowings:   repos.Borrowings,
		reservations: repos.Reservations,
		settings:     repos.Settings,
	}
}

// ─── Book Management ──────────────────────────────────────────────────────────

// CreateBook adds a title to the catalog. New books are always AVAILABLE.
func (s *libraryService) CreateBook(ctx context.Context, in BookInput) (*models.Book, error) {
	book := &models.Book{
		Title:         strings.TrimSpace(in.Title),
		Author:        strings.TrimSpace(in.Author),
		ISBN:          strings.TrimSpace(in.ISBN),
		Category:      strings.TrimSpace(in.Category),
		PublishedYear: in.PublishedYear,
		Status:        models.BookStatusAvailable,
	}
	if err := validateBook(book); err != nil {
		return nil, err
	}

	if err := s.books.Create(s.db.WithContext(ctx), book); err != nil {
		s.logger.Error("create book failed", zap.String("isbn", book.ISBN), zap.Error(err))
		return nil, translateDBError(err, ErrBookNotFound)
	}
	s.logger.Info("book created", zap.Stringer("book_id", book.ID), zap.String("title", book.Title))
	return book, nil
}

func (s *libraryService) ListBooks(ctx context.Context, filter repositories.BookFilter) ([]models.Book, error) {
	return s.books.List(s.db.WithContext(ctx), filter)
}

func (s *libraryService) GetBook(ctx context.Context, id uuid.UUID) (*models.Book, error) {
	book, err := s.books.GetByID(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, translateDBError(err, ErrBookNotFound)
	}
	return book, nil
}

// UpdateBook changes catalog metadata only; status is owned by circulation.
func (s *libraryService) UpdateBook(ctx context.Context, id uuid.UUID, patch BookPatch) (*models.Book, error) {
	var book *models.Book

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.books.GetByID(tx, id)
		if err != nil {
			return translateDBError(err, ErrBookNotFound)
		}
		patch.applyTo(current)
		if err := validateBook(current); err != nil {
			return err
		}
		if err := s.books.Update(tx, current); err != nil {
			return translateDBError(err, ErrBookNotFound)
		}
		book, err = s.books.GetByID(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("book updated", zap.Stringer("book_id", id))
	return book, nil
}

// DeleteBook removes a book that is not out and has no borrowing or
// reservation history.
func (s *libraryService) DeleteBook(ctx context.Context, id uuid.UUID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		book, err := s.books.GetByID(tx, id)
		if err != nil {
			return translateDBError(err, ErrBookNotFound)
		}
		if book.Status == models.BookStatusBorrowed {
			return ErrBookInUse
		}
		loans, err := s.borrowings.CountByBook(tx, id)
		if err != nil {
			return err
		}
		holds, err := s.reservations.CountByBook(tx, id)
		if err != nil {
			return err
		}
		if loans > 0 || holds > 0 {
			return ErrBookInUse
		}
		return translateDBError(s.books.Delete(tx, id), ErrBookNotFound)
	})
	if err != nil {
		return err
	}
	s.logger.Info("book deleted", zap.Stringer("book_id", id))
	return nil
}

func (p BookPatch) applyTo(b *models.Book) {
	if p.Title != nil {
		b.Title = strings.TrimSpace(*p.Title)
	}
	if p.Author != nil {
		b.Author = strings.TrimSpace(*p.Author)
	}
	if p.ISBN != nil {
		b.ISBN = strings.TrimSpace(*p.ISBN)
	}
	if p.Category != nil {
		b.Category = strings.TrimSpace(*p.Category)
	}
	if p.PublishedYear != nil {
		b.PublishedYear = *p.PublishedYear
	}
}

func validateBook(b *models.Book) error {
	switch {
	case b.Title == "":
		return invalid("title", "is required")
	case b.Author == "":
		return invalid("author", "is required")
	case b.ISBN == "":
		return invalid("isbn", "is required")
	case b.PublishedYear < 0:
		return invalid("publishedYear", "must not be negative")
	}
	return nil
}

// ─── Borrow ───────────────────────────────────────────────────────────────────

// Borrow implements the transactional borrow flow.
//
// Steps (all in one transaction):
//  1. Load the book and lock the person row; the person must be ACTIVE and
//     under the borrowing limit.
//  2. An AVAILABLE book may be borrowed by anyone. A RESERVED book only by the
//     holder of the oldest active reservation, which becomes FULFILLED.
//  3. Compare-and-set the book status from the observed value to BORROWED. Zero
//     rows updated means a concurrent borrow won.
//  4. Create the borrowing, due maxBorrowDays from now.
//
// A notification is queued after commit.
func (s *libraryService) Borrow(ctx context.Context, bookID, personID uuid.UUID) (*models.Borrowing, error) {
	var (
		borrowing *models.Borrowing
		cfg       *models.Settings
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		book, err := s.books.GetByID(tx, bookID)
		if err != nil {
			return translateDBError(err, ErrBookNotFound)
		}
		person, err := s.persons.GetByIDForUpdate(tx, personID)
		if err != nil {
			return translateDBError(err, ErrPersonNotFound)
		}
		if person.Status != models.PersonStatusActive {
			return ErrPersonNotActive
		}

		cfg, err = loadSettings(s.settings, tx)
		if err != nil {
			return err
		}
		open, err := s.borrowings.CountActiveByPerson(tx, personID)
		if err != nil {
			return err
		}
		if open >= int64(cfg.MaxBooksPerMember) {
			return ErrBorrowLimitReached
		}

		var claim *models.Reservation
		switch book.Status {
		case models.BookStatusAvailable:
		case models.BookStatusReserved:
			next, err := s.reservations.NextActiveForBook(tx, bookID)
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				// stale RESERVED with nobody in line; treat as available
			case err != nil:
				return err
			case next.PersonID != personID:
				return ErrBookReserved
			default:
				claim = next
			}
		default:
			return ErrBookNotAvailable
		}

		ok, err := s.books.CompareAndSetStatus(tx, bookID, book.Status, models.BookStatusBorrowed)
		if err != nil {
			return err
		}
		if !ok {
			s.logger.Warn("borrow lost race", zap.Stringer("book_id", bookID), zap.Stringer("person_id", personID))
			return ErrBookNotAvailable
		}

		if claim != nil {
			ok, err := s.reservations.TransitionStatus(tx, claim.ID, claim.Status, models.ReservationStatusFulfilled)
			if err != nil {
				return err
			}
			if !ok {
				return ErrBookNotAvailable
			}
		}

		now := s.now()
		borrowing = &models.Borrowing{
			BookID:     bookID,
			PersonID:   personID,
			BorrowDate: now,
			DueDate:    now.AddDate(0, 0, cfg.MaxBorrowDays),
			Status:     models.BorrowingStatusBorrowed,
			FineAmount: decimal.Zero,
		}
		if err := s.borrowings.Create(tx, borrowing); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrBookNotAvailable
			}
			return err
		}

		book.Status = models.BookStatusBorrowed
		borrowing.Book = book
		borrowing.Person = person
		return nil
	})
	if err != nil {
		if !isClientError(err) {
			s.logger.Error("borrow failed", zap.Stringer("book_id", bookID), zap.Stringer("person_id", personID), zap.Error(err))
		}
		return nil, err
	}

	s.logger.Info("book borrowed",
		zap.Stringer("borrowing_id", borrowing.ID),
		zap.Stringer("book_id", bookID),
		zap.Stringer("person_id", personID),
		zap.Time("due_date", borrowing.DueDate))
	s.publish(cfg.Notifications, borrowedEvent(borrowing.Person, borrowing.Book, borrowing))
	return borrowing, nil
}

// ─── Return ───────────────────────────────────────────────────────────────────

// Return implements the transactional return flow.
//
// Steps (all in one transaction):
//  1. Lock the borrowing row (FOR UPDATE) and guard against double-return.
//  2. Compute the fine and mark the borrowing RETURNED.
//  3. Set the book RESERVED when someone is waiting for it, otherwise AVAILABLE.
func (s *libraryService) Return(ctx context.Context, borrowingID uuid.UUID) (*models.Borrowing, error) {
	var (
		updated *models.Borrowing
		next    *models.Reservation
		cfg     *models.Settings
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		borrowing, err := s.borrowings.GetByIDForUpdate(tx, borrowingID)
		if err != nil {
			return translateDBError(err, ErrBorrowingNotFound)
		}
		if borrowing.Status != models.BorrowingStatusBorrowed {
			return ErrBorrowingAlreadyReturned
		}

		cfg, err = loadSettings(s.settings, tx)
		if err != nil {
			return err
		}

		now := s.now()
		fine := calculateFine(borrowing.DueDate, now, cfg.OverdueFinePerDay)
		ok, err := s.borrowings.MarkReturned(tx, borrowing.ID, now, fine)
		if err != nil {
			return err
		}
		if !ok {
			return ErrBorrowingAlreadyReturned
		}

		status := models.BookStatusAvailable
		next, err = s.reservations.NextActiveForBook(tx, borrowing.BookID)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			next = nil
		case err != nil:
			return err
		default:
			status = models.BookStatusReserved
		}
		if err := s.books.SetStatus(tx, borrowing.BookID, status); err != nil {
			return err
		}

		updated, err = s.borrowings.GetByID(tx, borrowingID)
		return err
	})
	if err != nil {
		if !isClientError(err) {
			s.logger.Error("return failed", zap.Stringer("borrowing_id", borrowingID), zap.Error(err))
		}
		return nil, err
	}

	s.logger.Info("book returned",
		zap.Stringer("borrowing_id", updated.ID),
		zap.Stringer("book_id", updated.BookID),
		zap.String("fine", updated.FineAmount.StringFixed(2)),
		zap.String("book_status", string(updated.Book.Status)))

	s.publish(cfg.Notifications, returnedEvent(updated.Person, updated.Book, updated))
	if next != nil {
		s.publish(cfg.Notifications, reservationEvent(EventReservationAvailable, next.Person, updated.Book))
	}
	updated.Overdue = updated.IsOverdue(s.now())
	return updated, nil
}

// ─── Borrowing Queries ────────────────────────────────────────────────────────

func (s *libraryService) GetBorrowing(ctx context.Context, id uuid.UUID) (*models.Borrowing, error) {
	borrowing, err := s.borrowings.GetByID(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, translateDBError(err, ErrBorrowingNotFound)
	}
	borrowing.Overdue = borrowing.IsOverdue(s.now())
	return borrowing, nil
}

// ListBorrowings lists loans. Status OVERDUE selects open loans past due.
func (s *libraryService) ListBorrowings(ctx context.Context, filter repositories.BorrowingFilter) ([]models.Borrowing, error) {
	switch filter.Status {
	case "", models.BorrowingStatusBorrowed, models.BorrowingStatusReturned, models.BorrowingStatusOverdue:
	default:
		return nil, invalid("status", "must be one of BORROWED, RETURNED, OVERDUE")
	}
	now := s.now()
	filter.Now = now

	borrowings, err := s.borrowings.List(s.db.WithContext(ctx), filter)
	if err != nil {
		return nil, err
	}
	for i := range borrowings {
		borrowings[i].Overdue = borrowings[i].IsOverdue(now)
	}
	return borrowings, nil
}

// ─── Reservations ─────────────────────────────────────────────────────────────

// Reserve queues a person for a book. Any book may be reserved whatever its
// status, and reserving never changes the book's status.
func (s *libraryService) Reserve(ctx context.Context, bookID, personID uuid.UUID) (*models.Reservation, error) {
	var reservation *models.Reservation

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		book, err := s.books.GetByID(tx, bookID)
		if err != nil {
			return translateDBError(err, ErrBookNotFound)
		}
		person, err := s.persons.GetByID(tx, personID)
		if err != nil {
			return translateDBError(err, ErrPersonNotFound)
		}

		existing, err := s.reservations.FindActiveByBookAndPerson(tx, bookID, personID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if existing != nil {
			return ErrDuplicateReservation
		}

		reservation = &models.Reservation{
			BookID:          bookID,
			PersonID:        personID,
			ReservationDate: s.now(),
			Status:          models.ReservationStatusWaiting,
		}
		if err := s.reservations.Create(tx, reservation); err != nil {
			return translateDBError(err, ErrReservationNotFound)
		}
		reservation.Book = book
		reservation.Person = person
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("reservation created",
		zap.Stringer("reservation_id", reservation.ID),
		zap.Stringer("book_id", bookID),
		zap.Stringer("person_id", personID))
	return reservation, nil
}

// CancelReservation cancels a WAITING or READY reservation. A RESERVED book
// with nobody else in line goes back to AVAILABLE. When the cancelled hold was
// first in line, the next holder is told the book is theirs.
func (s *libraryService) CancelReservation(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	var (
		reservation *models.Reservation
		book        *models.Book
		promoted    *models.Reservation
		cfg         *models.Settings
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.reservations.GetByIDForUpdate(tx, id)
		if err != nil {
			return translateDBError(err, ErrReservationNotFound)
		}
		head, err := s.reservations.NextActiveForBook(tx, current.BookID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		wasHead := head != nil && head.ID == current.ID

		if err := s.transitionReservation(tx, current, models.ReservationStatusCancelled,
			ErrReservationNotActive, models.ActiveReservationStatuses...); err != nil {
			return err
		}

		book, err = s.books.GetByID(tx, current.BookID)
		if err != nil {
			return translateDBError(err, ErrBookNotFound)
		}
		if book.Status == models.BookStatusReserved {
			next, err := s.reservations.NextActiveForBook(tx, current.BookID)
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				if _, err := s.books.CompareAndSetStatus(tx, book.ID, models.BookStatusReserved, models.BookStatusAvailable); err != nil {
					return err
				}
			case err != nil:
				return err
			case wasHead:
				promoted = next
				if cfg, err = loadSettings(s.settings, tx); err != nil {
					return err
				}
			}
		}

		reservation, err = s.reservations.GetByID(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("reservation cancelled", zap.Stringer("reservation_id", id), zap.Stringer("book_id", reservation.BookID))
	if promoted != nil {
		s.logger.Info("reservation promoted", zap.Stringer("reservation_id", promoted.ID), zap.Stringer("book_id", book.ID))
		s.publish(cfg.Notifications, reservationEvent(EventReservationAvailable, promoted.Person, book))
	}
	return reservation, nil
}

// MarkReservationReady flags a WAITING reservation for pickup. The book's
// status is left alone.
func (s *libraryService) MarkReservationReady(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	var (
		reservation *models.Reservation
		cfg         *models.Settings
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.reservations.GetByIDForUpdate(tx, id)
		if err != nil {
			return translateDBError(err, ErrReservationNotFound)
		}
		if err := s.transitionReservation(tx, current, models.ReservationStatusReady,
			ErrReservationNotWaiting, models.ReservationStatusWaiting); err != nil {
			return err
		}
		if cfg, err = loadSettings(s.settings, tx); err != nil {
			return err
		}
		reservation, err = s.reservations.GetByID(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("reservation ready", zap.Stringer("reservation_id", id), zap.Stringer("book_id", reservation.BookID))
	s.publish(cfg.Notifications, reservationEvent(EventReservationReady, reservation.Person, reservation.Book))
	return reservation, nil
}

// DeleteReservation hard-deletes a CANCELLED reservation.
func (s *libraryService) DeleteReservation(ctx context.Context, id uuid.UUID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.reservations.GetByIDForUpdate(tx, id)
		if err != nil {
			return translateDBError(err, ErrReservationNotFound)
		}
		if current.Status != models.ReservationStatusCancelled {
			return ErrReservationNotCancelled
		}
		return s.reservations.Delete(tx, id)
	})
	if err != nil {
		return err
	}
	s.logger.Info("reservation deleted", zap.Stringer("reservation_id", id))
	return nil
}

func (s *libraryService) GetReservation(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	reservation, err := s.reservations.GetByID(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, translateDBError(err, ErrReservationNotFound)
	}
	return reservation, nil
}

func (s *libraryService) ListReservations(ctx context.Context, filter repositories.ReservationFilter) ([]models.Reservation, error) {
	switch filter.Status {
	case "", models.ReservationStatusWaiting, models.ReservationStatusReady,
		models.ReservationStatusCancelled, models.ReservationStatusFulfilled:
	default:
		return nil, invalid("status", "must be one of WAITING, READY, CANCELLED, FULFILLED")
	}
	return s.reservations.List(s.db.WithContext(ctx), filter)
}

// transitionReservation moves r to status `to` if it is currently in one of
// from, returning notAllowed otherwise.
func (s *libraryService) transitionReservation(tx *gorm.DB, r *models.Reservation, to models.ReservationStatus, notAllowed error, from ...models.ReservationStatus) error {
	if !slices.Contains(from, r.Status) {
		return notAllowed
	}
	ok, err := s.reservations.TransitionStatus(tx, r.ID, r.Status, to)
	if err != nil {
		return err
	}
	if !ok {
		return notAllowed
	}
	return nil
}

// isClientError reports whether err belongs to the caller, not the system.
func isClientError(err error) bool {
	for _, kind := range []error{ErrValidation, ErrNotFound, ErrConflict, ErrInvalidState, ErrUnauthorized, ErrForbidden} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
