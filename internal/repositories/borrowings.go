package repositories

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"communitylibrary/internal/models"
)

type borrowingRepository struct {
	db *gorm.DB
}

func NewBorrowingRepository(db *gorm.DB) BorrowingRepository {
	return &borrowingRepository{db: db}
}

func (r *borrowingRepository) Create(db *gorm.DB, borrowing *models.Borrowing) error {
	if db == nil {
		db = r.db
	}
	return db.Omit(clause.Associations).Create(borrowing).Error
}

func (r *borrowingRepository) GetByID(db *gorm.DB, id uuid.UUID) (*models.Borrowing, error) {
	if db == nil {
		db = r.db
	}
	var borrowing models.Borrowing
	err := db.
		Preload("Book").
		Preload("Person").
		First(&borrowing, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &borrowing, nil
}

func (r *borrowingRepository) GetByIDForUpdate(db *gorm.DB, id uuid.UUID) (*models.Borrowing, error) {
	if db == nil {
		db = r.db
	}
	var borrowing models.Borrowing
	err := db.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&borrowing, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &borrowing, nil
}

// MarkReturned closes an open loan. It reports false when the loan was not
// open anymore.
func (r *borrowingRepository) MarkReturned(db *gorm.DB, id uuid.UUID, returnedAt time.Time, fine decimal.Decimal) (bool, error) {
	if db == nil {
		db = r.db
	}
	res := db.Model(&models.Borrowing{}).
		Where("id = ? AND status = ?", id, models.BorrowingStatusBorrowed).
		Updates(map[string]interface{}{
			"return_date": returnedAt,
			"status":      models.BorrowingStatusReturned,
			"fine_amount": fine,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *borrowingRepository) CountActiveByPerson(db *gorm.DB, personID uuid.UUID) (int64, error) {
	return r.count(db, "person_id = ? AND status = ?", personID, models.BorrowingStatusBorrowed)
}

func (r *borrowingRepository) CountActiveByBook(db *gorm.DB, bookID uuid.UUID) (int64, error) {
	return r.count(db, "book_id = ? AND status = ?", bookID, models.BorrowingStatusBorrowed)
}

func (r *borrowingRepository) CountByBook(db *gorm.DB, bookID uuid.UUID) (int64, error) {
	return r.count(db, "book_id = ?", bookID)
}

func (r *borrowingRepository) CountByPerson(db *gorm.DB, personID uuid.UUID) (int64, error) {
	return r.count(db, "person_id = ?", personID)
}

func (r *borrowingRepository) count(db *gorm.DB, query string, args ...interface{}) (int64, error) {
	if db == nil {
		db = r.db
	}
	var n int64
	if err := db.Model(&models.Borrowing{}).Where(query, args...).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func (r *borrowingRepository) List(db *gorm.DB, filter BorrowingFilter) ([]models.Borrowing, error) {
	if db == nil {
		db = r.db
	}
	q := db.Model(&models.Borrowing{}).Preload("Book").Preload("Person")
	if filter.BookID != nil {
		q = q.Where("book_id = ?", *filter.BookID)
	}
	if filter.PersonID != nil {
		q = q.Where("person_id = ?", *filter.PersonID)
	}
	switch filter.Status {
	case "":
	case models.BorrowingStatusOverdue:
		q = q.Where("status = ? AND due_date < ?", models.BorrowingStatusBorrowed, filter.Now)
	default:
		q = q.Where("status = ?", filter.Status)
	}
	var borrowings []models.Borrowing
	if err := q.Order("borrow_date DESC").Find(&borrowings).Error; err != nil {
		return nil, err
	}
	return borrowings, nil
}
