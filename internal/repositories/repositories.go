package repositories

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"communitylibrary/internal/models"
)

// Every method takes the *gorm.DB to run on so callers can pass a transaction;
// nil falls back to the repository's own handle.

type BookRepository interface {
	Create(db *gorm.DB, book *models.Book) error
	List(db *gorm.DB, filter BookFilter) ([]models.Book, error)
	GetByID(db *gorm.DB, id uuid.UUID) (*models.Book, error)
	Update(db *gorm.DB, book *models.Book) error
	Delete(db *gorm.DB, id uuid.UUID) error
	CompareAndSetStatus(db *gorm.DB, id uuid.UUID, from, to models.BookStatus) (bool, error)
	SetStatus(db *gorm.DB, id uuid.UUID, status models.BookStatus) error
}

type PersonRepository interface {
	Create(db *gorm.DB, person *models.Person) error
	List(db *gorm.DB, filter PersonFilter) ([]models.Person, error)
	GetByID(db *gorm.DB, id uuid.UUID) (*models.Person, error)
	GetByIDForUpdate(db *gorm.DB, id uuid.UUID) (*models.Person, error)
	Update(db *gorm.DB, person *models.Person) error
	Delete(db *gorm.DB, id uuid.UUID) error
}

type BorrowingRepository interface {
	Create(db *gorm.DB, borrowing *models.Borrowing) error
	GetByID(db *gorm.DB, id uuid.UUID) (*models.Borrowing, error)
	GetByIDForUpdate(db *gorm.DB, id uuid.UUID) (*models.Borrowing, error)
	MarkReturned(db *gorm.DB, id uuid.UUID, returnedAt time.Time, fine decimal.Decimal) (bool, error)
	CountActiveByPerson(db *gorm.DB, personID uuid.UUID) (int64, error)
	CountActiveByBook(db *gorm.DB, bookID uuid.UUID) (int64, error)
	CountByBook(db *gorm.DB, bookID uuid.UUID) (int64, error)
	CountByPerson(db *gorm.DB, personID uuid.UUID) (int64, error)
	List(db *gorm.DB, filter BorrowingFilter) ([]models.Borrowing, error)
}

type ReservationRepository interface {
	Create(db *gorm.DB, reservation *models.Reservation) error
	GetByID(db *gorm.DB, id uuid.UUID) (*models.Reservation, error)
	GetByIDForUpdate(db *gorm.DB, id uuid.UUID) (*models.Reservation, error)
	TransitionStatus(db *gorm.DB, id uuid.UUID, from, to models.ReservationStatus) (bool, error)
	Delete(db *gorm.DB, id uuid.UUID) error
	NextActiveForBook(db *gorm.DB, bookID uuid.UUID) (*models.Reservation, error)
	CountActiveForBook(db *gorm.DB, bookID uuid.UUID) (int64, error)
	FindActiveByBookAndPerson(db *gorm.DB, bookID, personID uuid.UUID) (*models.Reservation, error)
	CountByBook(db *gorm.DB, bookID uuid.UUID) (int64, error)
	CountByPerson(db *gorm.DB, personID uuid.UUID) (int64, error)
	List(db *gorm.DB, filter ReservationFilter) ([]models.Reservation, error)
}

type AttendanceRepository interface {
	Create(db *gorm.DB, attendance *models.Attendance) error
	GetByID(db *gorm.DB, id uuid.UUID) (*models.Attendance, error)
	FindOpenByPerson(db *gorm.DB, personID uuid.UUID) (*models.Attendance, error)
	MarkCheckedOut(db *gorm.DB, id uuid.UUID, at time.Time) (bool, error)
	List(db *gorm.DB, filter AttendanceFilter) ([]models.Attendance, error)
}

type SettingsRepository interface {
	CreateIfAbsent(db *gorm.DB, settings *models.Settings) error
	Get(db *gorm.DB) (*models.Settings, error)
	Save(db *gorm.DB, settings *models.Settings) error
}

type UserRepository interface {
	Create(db *gorm.DB, user *models.User) error
	GetByID(db *gorm.DB, id uuid.UUID) (*models.User, error)
	GetByUsername(db *gorm.DB, username string) (*models.User, error)
}

type TokenRepository interface {
	Create(db *gorm.DB, token *models.APIToken) error
	GetActive(db *gorm.DB, tokenHash string, now time.Time) (*models.APIToken, error)
	Delete(db *gorm.DB, tokenHash string) error
	DeleteExpired(db *gorm.DB, now time.Time) (int64, error)
}

// ─── Filters ──────────────────────────────────────────────────────────────────

type BookFilter struct {
	Status   models.BookStatus
	Category string
	Search   string
}

type PersonFilter struct {
	Type   models.PersonType
	Status models.PersonStatus
	Search string
}

// BorrowingFilter selects loans. Status OVERDUE is resolved against Now.
type BorrowingFilter struct {
	BookID   *uuid.UUID
	PersonID *uuid.UUID
	Status   models.BorrowingStatus
	Now      time.Time
}

type ReservationFilter struct {
	BookID   *uuid.UUID
	PersonID *uuid.UUID
	Status   models.ReservationStatus
}

type AttendanceFilter struct {
	PersonID *uuid.UUID
	From     *time.Time
	To       *time.Time
	OpenOnly bool
}

// ─── Registry ─────────────────────────────────────────────────────────────────

// Registry bundles every repository over one handle.
type Registry struct {
	Books        BookRepository
	Persons      PersonRepository
	Borrowings   BorrowingRepository
	Reservations ReservationRepository
	Attendance   AttendanceRepository
	Settings     SettingsRepository
	Users        UserRepository
	Tokens       TokenRepository
	Dashboard    *DashboardRepository
}

func NewRegistry(db *gorm.DB) *Registry {
	return &Registry{
		Books:        NewBookRepository(db),
		Persons:      NewPersonRepository(db),
		Borrowings:   NewBorrowingRepository(db),
		Reservations: NewReservationRepository(db),
		Attendance:   NewAttendanceRepository(db),
		Settings:     NewSettingsRepository(db),
		Users:        NewUserRepository(db),
		Tokens:       NewTokenRepository(db),
		Dashboard:    NewDashboardRepository(db),
	}
}

func likePattern(search string) string {
	return "%" + search + "%"
}
