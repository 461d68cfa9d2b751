package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ─── Error Kinds ──────────────────────────────────────────────────────────────

var (
	// ErrValidation is returned when caller input is malformed or out of range.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a referenced entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when the request clashes with current state, such
	// as borrowing a book that is already out.
	ErrConflict = errors.New("conflict")

	// ErrInvalidState is returned when an entity is not in the state an
	// operation requires.
	ErrInvalidState = errors.New("invalid state")

	// ErrUnauthorized is returned when no valid credentials were presented.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is returned when the caller lacks the required permission.
	ErrForbidden = errors.New("forbidden")
)

// ─── Sentinel Errors ──────────────────────────────────────────────────────────

var (
	// ErrBookNotFound is returned when the requested book does not exist.
	ErrBookNotFound = fmt.Errorf("book %w", ErrNotFound)

	// ErrPersonNotFound is returned when the referenced person does not exist.
	ErrPersonNotFound = fmt.Errorf("person %w", ErrNotFound)

	// ErrBorrowingNotFound is returned when the referenced borrowing does not exist.
	ErrBorrowingNotFound = fmt.Errorf("borrowing %w", ErrNotFound)

	// ErrReservationNotFound is returned when the referenced reservation does not exist.
	ErrReservationNotFound = fmt.Errorf("reservation %w", ErrNotFound)

	// ErrAttendanceNotFound is returned when there is no open attendance record
	// to check out.
	ErrAttendanceNotFound = fmt.Errorf("open attendance record %w", ErrNotFound)

	// ErrBookNotAvailable is returned when a borrow finds the book already out,
	// or loses the race for it.
	ErrBookNotAvailable = fmt.Errorf("%w: book is not available", ErrConflict)

	// ErrBookReserved is returned when a reserved book is borrowed by someone
	// other than the first person in line.
	ErrBookReserved = fmt.Errorf("%w: book is reserved for another person", ErrConflict)

	// ErrPersonNotActive is returned when an inactive, banned or suspended
	// person tries to borrow.
	ErrPersonNotActive = fmt.Errorf("%w: person is not active", ErrConflict)

	// ErrBorrowLimitReached is returned when the person already holds
	// maxBooksPerMember open borrowings.
	ErrBorrowLimitReached = fmt.Errorf("%w: borrowing limit reached", ErrConflict)

	// ErrBorrowingAlreadyReturned is returned when a return is attempted on a
	// borrowing that has already been returned.
	ErrBorrowingAlreadyReturned = fmt.Errorf("%w: borrowing already returned", ErrConflict)

	// ErrDuplicateReservation is returned when the person already has an active
	// reservation for the same book.
	ErrDuplicateReservation = fmt.Errorf("%w: person already has an active reservation for this book", ErrConflict)

	// ErrReservationNotWaiting is returned when marking ready a reservation
	// that is no longer WAITING.
	ErrReservationNotWaiting = fmt.Errorf("%w: reservation is not waiting", ErrInvalidState)

	// ErrReservationNotActive is returned when cancelling a reservation that
	// is already CANCELLED or FULFILLED.
	ErrReservationNotActive = fmt.Errorf("%w: reservation is not waiting or ready", ErrInvalidState)

	// ErrReservationNotCancelled is returned when deleting a reservation that
	// has not been cancelled.
	ErrReservationNotCancelled = fmt.Errorf("%w: only cancelled reservations can be deleted", ErrInvalidState)

	// ErrAlreadyCheckedIn is returned when the person already has an open
	// attendance record.
	ErrAlreadyCheckedIn = fmt.Errorf("%w: person is already checked in", ErrConflict)

	// ErrBookInUse is returned when deleting a book that is out or still
	// referenced by borrowings or reservations.
	ErrBookInUse = fmt.Errorf("%w: book is referenced by borrowings or reservations", ErrConflict)

	// ErrPersonInUse is returned when deleting a person that is still
	// referenced by borrowings or reservations.
	ErrPersonInUse = fmt.Errorf("%w: person is referenced by borrowings or reservations", ErrConflict)

	// ErrInvalidCredentials is returned when login fails. It does not say which
	// half was wrong.
	ErrInvalidCredentials = fmt.Errorf("%w: invalid username or password", ErrUnauthorized)
)

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + " " + e.Message
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// translateDBError maps gorm's translated errors onto the service taxonomy.
// notFound is returned in place of gorm.ErrRecordNotFound.
func translateDBError(err, notFound error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return notFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: duplicate value", ErrConflict)
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return fmt.Errorf("%w: referenced entity missing or still in use", ErrConflict)
	default:
		return err
	}
}
