package repositories

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"communitylibrary/internal/models"
)

type attendanceRepository struct {
	db *gorm.DB
}

func NewAttendanceRepository(db *gorm.DB) AttendanceRepository {
	return &attendanceRepository{db: db}
}

func (r *attendanceRepository) Create(db *gorm.DB, attendance *models.Attendance) error {
	if db == nil {
		db = r.db
	}
	return db.Omit(clause.Associations).Create(attendance).Error
}

func (r *attendanceRepository) GetByID(db *gorm.DB, id uuid.UUID) (*models.Attendance, error) {
	if db == nil {
		db = r.db
	}
	var a models.Attendance
	if err := db.Preload("Person").First(&a, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// FindOpenByPerson returns the latest record without a check-out time.
func (r *attendanceRepository) FindOpenByPerson(db *gorm.DB, personID uuid.UUID) (*models.Attendance, error) {
	if db == nil {
		db = r.db
	}
	var a models.Attendance
	err := db.
		Where("person_id = ? AND check_out_time IS NULL", personID).
		Order("check_in_time DESC").
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *attendanceRepository) MarkCheckedOut(db *gorm.DB, id uuid.UUID, at time.Time) (bool, error) {
	if db == nil {
		db = r.db
	}
	res := db.Model(&models.Attendance{}).
		Where("id = ? AND check_out_time IS NULL", id).
		Update("check_out_time", at)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *attendanceRepository) List(db *gorm.DB, filter AttendanceFilter) ([]models.Attendance, error) {
	if db == nil {
		db = r.db
	}
	q := db.Model(&models.Attendance{}).Preload("Person")
	if filter.PersonID != nil {
		q = q.Where("person_id = ?", *filter.PersonID)
	}
	if filter.From != nil {
		q = q.Where("check_in_time >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("check_in_time < ?", *filter.To)
	}
	if filter.OpenOnly {
		q = q.Where("check_out_time IS NULL")
	}
	var records []models.Attendance
	if err := q.Order("check_in_time DESC").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
