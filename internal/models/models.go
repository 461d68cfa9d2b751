package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type BookStatus string

const (
	BookStatusAvailable BookStatus = "AVAILABLE"
	BookStatusBorrowed  BookStatus = "BORROWED"
	BookStatusReserved  BookStatus = "RESERVED"
)

type PersonType string

const (
	PersonTypeMember  PersonType = "MEMBER"
	PersonTypeVisitor PersonType = "VISITOR"
	PersonTypeStudent PersonType = "STUDENT"
	PersonTypeVIP     PersonType = "VIP"
	PersonTypeStaff   PersonType = "STAFF"
)

type PersonStatus string

const (
	PersonStatusActive    PersonStatus = "ACTIVE"
	PersonStatusInactive  PersonStatus = "INACTIVE"
	PersonStatusBanned    PersonStatus = "BANNED"
	PersonStatusSuspended PersonStatus = "SUSPENDED"
)

// BorrowingStatus is the stored lifecycle state of a loan. OVERDUE is never
// stored; it is derived from DueDate when a borrowing is read.
type BorrowingStatus string

const (
	BorrowingStatusBorrowed BorrowingStatus = "BORROWED"
	BorrowingStatusReturned BorrowingStatus = "RETURNED"
	BorrowingStatusOverdue  BorrowingStatus = "OVERDUE"
)

type ReservationStatus string

const (
	ReservationStatusWaiting   ReservationStatus = "WAITING"
	ReservationStatusReady     ReservationStatus = "READY"
	ReservationStatusCancelled ReservationStatus = "CANCELLED"
	ReservationStatusFulfilled ReservationStatus = "FULFILLED"
)

// ActiveReservationStatuses hold a claim on the book.
var ActiveReservationStatuses = []ReservationStatus{ReservationStatusWaiting, ReservationStatusReady}

type UserRole string

const (
	UserRoleAdmin     UserRole = "ADMIN"
	UserRoleLibrarian UserRole = "LIBRARIAN"
	UserRoleAssistant UserRole = "ASSISTANT"
	UserRoleViewer    UserRole = "VIEWER"
)

type Book struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Title         string     `gorm:"size:255;not null" json:"title"`
	Author        string     `gorm:"size:255;not null" json:"author"`
	ISBN          string     `gorm:"column:isbn;size:32;not null;uniqueIndex" json:"isbn"`
	Category      string     `gorm:"size:100;not null;default:''" json:"category"`
	Status        BookStatus `gorm:"type:varchar(16);not null;index" json:"status"`
	PublishedYear int        `gorm:"not null;default:0" json:"publishedYear"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

type Person struct {
	ID         uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	Name       string       `gorm:"size:255;not null" json:"name"`
	Email      string       `gorm:"size:255;not null;uniqueIndex" json:"email"`
	Phone      string       `gorm:"size:50;not null;default:''" json:"phone"`
	Address    string       `gorm:"size:500;not null;default:''" json:"address"`
	PersonType PersonType   `gorm:"type:varchar(16);not null;index" json:"personType"`
	Status     PersonStatus `gorm:"type:varchar(16);not null;index" json:"status"`
	LibraryID  string       `gorm:"column:library_id;size:32;not null;uniqueIndex" json:"libraryId"`
	CreatedAt  time.Time    `json:"createdAt"`
	UpdatedAt  time.Time    `json:"updatedAt"`
}

func (Person) TableName() string { return "persons" }

type Borrowing struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	BookID     uuid.UUID       `gorm:"type:uuid;not null;index" json:"bookId"`
	Book       *Book           `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"book,omitempty"`
	PersonID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"personId"`
	Person     *Person         `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"person,omitempty"`
	BorrowDate time.Time       `gorm:"not null;index" json:"borrowDate"`
	DueDate    time.Time       `gorm:"not null;index" json:"dueDate"`
	ReturnDate *time.Time      `json:"returnDate"`
	Status     BorrowingStatus `gorm:"type:varchar(16);not null;index" json:"status"`
	FineAmount decimal.Decimal `gorm:"type:numeric(10,2);not null;default:0" json:"fineAmount"`
	Overdue    bool            `gorm:"-" json:"overdue"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// IsOverdue reports whether the loan is still out past its due date.
func (b *Borrowing) IsOverdue(now time.Time) bool {
	return b.Status == BorrowingStatusBorrowed && b.DueDate.Before(now)
}

type Reservation struct {
	ID              uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	BookID          uuid.UUID         `gorm:"type:uuid;not null;index" json:"bookId"`
	Book            *Book             `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"book,omitempty"`
	PersonID        uuid.UUID         `gorm:"type:uuid;not null;index" json:"personId"`
	Person          *Person           `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"person,omitempty"`
	ReservationDate time.Time         `gorm:"not null;index" json:"reservationDate"`
	Status          ReservationStatus `gorm:"type:varchar(16);not null;index" json:"status"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

// IsActive reports whether the reservation still holds a claim on the book.
func (r *Reservation) IsActive() bool {
	return r.Status == ReservationStatusWaiting || r.Status == ReservationStatusReady
}

type Attendance struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	PersonID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"personId"`
	Person       *Person    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"person,omitempty"`
	CheckInTime  time.Time  `gorm:"not null;index" json:"checkInTime"`
	CheckOutTime *time.Time `json:"checkOutTime"`
	CreatedAt    time.Time  `json:"createdAt"`
}

func (Attendance) TableName() string { return "attendance" }

// SettingsID is the primary key of the one settings row.
const SettingsID = 1

type Settings struct {
	ID                uint               `gorm:"primaryKey" json:"-"`
	LibraryName       string             `gorm:"size:255;not null" json:"libraryName"`
	MaxBorrowDays     int                `gorm:"not null" json:"maxBorrowDays"`
	MaxBooksPerMember int                `gorm:"not null" json:"maxBooksPerMember"`
	OverdueFinePerDay decimal.Decimal    `gorm:"type:numeric(10,2);not null" json:"overdueFinePerDay"`
	Notifications     NotificationConfig `gorm:"type:text;not null" json:"notifications"`
	Theme             string             `gorm:"size:16;not null" json:"theme"`
	Language          string             `gorm:"size:16;not null" json:"language"`
	UpdatedAt         time.Time          `json:"updatedAt"`
}

func (Settings) TableName() string { return "settings" }

type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Username     string    `gorm:"size:100;not null;uniqueIndex" json:"username"`
	Name         string    `gorm:"size:255;not null" json:"name"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	Role         UserRole  `gorm:"type:varchar(16);not null" json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
}

// APIToken stores the sha256 of an issued bearer token, never the token itself.
type APIToken struct {
	TokenHash string    `gorm:"size:64;primaryKey" json:"-"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"userId"`
	User      *User     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	ExpiresAt time.Time `gorm:"not null" json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}

func (APIToken) TableName() string { return "api_tokens" }

// ─── ID Hooks ─────────────────────────────────────────────────────────────────

func (b *Book) BeforeCreate(*gorm.DB) error        { b.ID = ensureID(b.ID); return nil }
func (p *Person) BeforeCreate(*gorm.DB) error      { p.ID = ensureID(p.ID); return nil }
func (b *Borrowing) BeforeCreate(*gorm.DB) error   { b.ID = ensureID(b.ID); return nil }
func (r *Reservation) BeforeCreate(*gorm.DB) error { r.ID = ensureID(r.ID); return nil }
func (a *Attendance) BeforeCreate(*gorm.DB) error  { a.ID = ensureID(a.ID); return nil }
func (u *User) BeforeCreate(*gorm.DB) error        { u.ID = ensureID(u.ID); return nil }

func ensureID(id uuid.UUID) uuid.UUID {
	if id == uuid.Nil {
		return uuid.New()
	}
	return id
}
