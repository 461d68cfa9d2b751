package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"communitylibrary/internal/models"
	"communitylibrary/internal/repositories"
)

// AttendanceService records visits. A person has at most one open record.
type AttendanceService interface {
	CheckIn(ctx context.Context, personID uuid.UUID) (*models.Attendance, error)
	CheckOut(ctx context.Context, personID uuid.UUID) (*models.Attendance, error)
	CheckOutRecord(ctx context.Context, recordID uuid.UUID) (*models.Attendance, error)
	List(ctx context.Context, filter repositories.AttendanceFilter) ([]models.Attendance, error)
}

type attendanceService struct {
	options
	db         *gorm.DB
	attendance repositories.AttendanceRepository
	persons    repositories.PersonRepository
}

func NewAttendanceService(db *gorm.DB, repos *repositories.Registry, opts ...Option) AttendanceService {
	return &attendanceService{
		options:    buildOptions(opts),
		db:         db,
		attendance: repos.Attendance,
		persons:    repos.Persons,
	}
}

func (s *attendanceService) CheckIn(ctx context.Context, personID uuid.UUID) (*models.Attendance, error) {
	var record *models.Attendance

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		person, err := s.persons.GetByID(tx, personID)
		if err != nil {
			return translateDBError(err, ErrPersonNotFound)
		}

		_, err = s.attendance.FindOpenByPerson(tx, personID)
		switch {
		case err == nil:
			return ErrAlreadyCheckedIn
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		record = &models.Attendance{PersonID: personID, CheckInTime: s.now()}
		if err := s.attendance.Create(tx, record); err != nil {
			// uniq_open_attendance catches a concurrent check-in.
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyCheckedIn
			}
			return err
		}
		record.Person = person
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("checked in", zap.Stringer("attendance_id", record.ID), zap.Stringer("person_id", personID))
	return record, nil
}

// CheckOut closes the person's open record.
func (s *attendanceService) CheckOut(ctx context.Context, personID uuid.UUID) (*models.Attendance, error) {
	return s.checkOut(ctx, func(tx *gorm.DB) (*models.Attendance, error) {
		return s.attendance.FindOpenByPerson(tx, personID)
	})
}

// CheckOutRecord closes one record by id. A record already closed counts as
// missing.
func (s *attendanceService) CheckOutRecord(ctx context.Context, recordID uuid.UUID) (*models.Attendance, error) {
	return s.checkOut(ctx, func(tx *gorm.DB) (*models.Attendance, error) {
		return s.attendance.GetByID(tx, recordID)
	})
}

func (s *attendanceService) checkOut(ctx context.Context, find func(tx *gorm.DB) (*models.Attendance, error)) (*models.Attendance, error) {
	var record *models.Attendance

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		open, err := find(tx)
		if err != nil {
			return translateDBError(err, ErrAttendanceNotFound)
		}
		if open.CheckOutTime != nil {
			return ErrAttendanceNotFound
		}
		ok, err := s.attendance.MarkCheckedOut(tx, open.ID, s.now())
		if err != nil {
			return err
		}
		if !ok {
			return ErrAttendanceNotFound
		}
		record, err = s.attendance.GetByID(tx, open.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("checked out",
		zap.Stringer("attendance_id", record.ID),
		zap.Stringer("person_id", record.PersonID),
		zap.Duration("visit", record.CheckOutTime.Sub(record.CheckInTime)))
	return record, nil
}

func (s *attendanceService) List(ctx context.Context, filter repositories.AttendanceFilter) ([]models.Attendance, error) {
	return s.attendance.List(s.db.WithContext(ctx), filter)
}
