package repositories

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"communitylibrary/internal/models"
)

type reservationRepository struct {
	db *gorm.DB
}

func NewReservationRepository(db *gorm.DB) ReservationRepository {
	return &reservationRepository{db: db}
}

func (r *reservationRepository) Create(db *gorm.DB, reservation *models.Reservation) error {
	if db == nil {
		db = r.db
	}
	return db.Omit(clause.Associations).Create(reservation).Error
}

func (r *reservationRepository) GetByID(db *gorm.DB, id uuid.UUID) (*models.Reservation, error) {
	if db == nil {
		db = r.db
	}
	var res models.Reservation
	err := db.
		Preload("Book").
		Preload("Person").
		First(&res, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *reservationRepository) GetByIDForUpdate(db *gorm.DB, id uuid.UUID) (*models.Reservation, error) {
	if db == nil {
		db = r.db
	}
	var res models.Reservation
	err := db.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&res, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// TransitionStatus applies from -> to only if the reservation is still in from.
func (r *reservationRepository) TransitionStatus(db *gorm.DB, id uuid.UUID, from, to models.ReservationStatus) (bool, error) {
	if db == nil {
		db = r.db
	}
	res := db.Model(&models.Reservation{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *reservationRepository) Delete(db *gorm.DB, id uuid.UUID) error {
	if db == nil {
		db = r.db
	}
	return db.Delete(&models.Reservation{}, "id = ?", id).Error
}

// NextActiveForBook returns the oldest WAITING or READY reservation.
func (r *reservationRepository) NextActiveForBook(db *gorm.DB, bookID uuid.UUID) (*models.Reservation, error) {
	if db == nil {
		db = r.db
	}
	var res models.Reservation
	err := db.
		Preload("Person").
		Where("book_id = ? AND status IN ?", bookID, models.ActiveReservationStatuses).
		Order("reservation_date ASC, created_at ASC").
		First(&res).Error
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *reservationRepository) CountActiveForBook(db *gorm.DB, bookID uuid.UUID) (int64, error) {
	return r.count(db, "book_id = ? AND status IN ?", bookID, models.ActiveReservationStatuses)
}

func (r *reservationRepository) FindActiveByBookAndPerson(db *gorm.DB, bookID, personID uuid.UUID) (*models.Reservation, error) {
	if db == nil {
		db = r.db
	}
	var res models.Reservation
	err := db.
		Where("book_id = ? AND person_id = ? AND status IN ?", bookID, personID, models.ActiveReservationStatuses).
		First(&res).Error
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *reservationRepository) CountByBook(db *gorm.DB, bookID uuid.UUID) (int64, error) {
	return r.count(db, "book_id = ?", bookID)
}

func (r *reservationRepository) CountByPerson(db *gorm.DB, personID uuid.UUID) (int64, error) {
	return r.count(db, "person_id = ?", personID)
}

func (r *reservationRepository) count(db *gorm.DB, query string, args ...interface{}) (int64, error) {
	if db == nil {
		db = r.db
	}
	var n int64
	if err := db.Model(&models.Reservation{}).Where(query, args...).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func (r *reservationRepository) List(db *gorm.DB, filter ReservationFilter) ([]models.Reservation, error) {
	if db == nil {
		db = r.db
	}
	q := db.Model(&models.Reservation{}).Preload("Book").Preload("Person")
	if filter.BookID != nil {
		q = q.Where("book_id = ?", *filter.BookID)
	}
	if filter.PersonID != nil {
		q = q.Where("person_id = ?", *filter.PersonID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	var res []models.Reservation
	if err := q.Order("reservation_date ASC").Find(&res).Error; err != nil {
		return nil, err
	}
	return res, nil
}
