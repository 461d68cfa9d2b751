package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"communitylibrary/internal/models"
	"communitylibrary/internal/repositories"
)

// PersonService manages the registry of members, visitors and staff.
type PersonService interface {
	Create(ctx context.Context, in PersonInput) (*models.Person, error)
	List(ctx context.Context, filter repositories.PersonFilter) ([]models.Person, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Person, error)
	Update(ctx context.Context, id uuid.UUID, patch PersonPatch) (*models.Person, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type PersonInput struct {
	Name       string
	Email      string
	Phone      string
	Address    string
	PersonType models.PersonType
	Status     models.PersonStatus
	LibraryID  string
}

type PersonPatch struct {
	Name       *string
	Email      *string
	Phone      *string
	Address    *string
	PersonType *models.PersonType
	Status     *models.PersonStatus
	LibraryID  *string
}

var (
	validPersonTypes = map[models.PersonType]bool{
		models.PersonTypeMember:  true,
		models.PersonTypeVisitor: true,
		models.PersonTypeStudent: true,
		models.PersonTypeVIP:     true,
		models.PersonTypeStaff:   true,
	}
	validPersonStatuses = map[models.PersonStatus]bool{
		models.PersonStatusActive:    true,
		models.PersonStatusInactive:  true,
		models.PersonStatusBanned:    true,
		models.PersonStatusSuspended: true,
	}
)

type personService struct {
	options
	db           *gorm.DB
	persons      repositories.PersonRepository
	borrowings   repositories.BorrowingRepository
	reservations repositories.ReservationRepository
}

func NewPersonService(db *gorm.DB, repos *repositories.Registry, opts ...Option) PersonService {
	return &personService{
		options:      buildOptions(opts),
		db:           db,
		persons:      repos.Persons,
		borrowings:   repos.Borrowings,
		reservations: repos.Reservations,
	}
}

// Create registers a person. Type defaults to MEMBER, status to ACTIVE, and a
// LIB-XXXXXXXX library id is generated when none is given.
func (s *personService) Create(ctx context.Context, in PersonInput) (*models.Person, error) {
	person := &models.Person{
		Name:       strings.TrimSpace(in.Name),
		Email:      strings.ToLower(strings.TrimSpace(in.Email)),
		Phone:      strings.TrimSpace(in.Phone),
		Address:    strings.TrimSpace(in.Address),
		PersonType: in.PersonType,
		Status:     in.Status,
		LibraryID:  strings.TrimSpace(in.LibraryID),
	}
	if person.PersonType == "" {
		person.PersonType = models.PersonTypeMember
	}
	if person.Status == "" {
		person.Status = models.PersonStatusActive
	}
	if person.LibraryID == "" {
		person.LibraryID = newLibraryID()
	}
	if err := validatePerson(person); err != nil {
		return nil, err
	}

	if err := s.persons.Create(s.db.WithContext(ctx), person); err != nil {
		return nil, translateDBError(err, ErrPersonNotFound)
	}
	s.logger.Info("person created",
		zap.Stringer("person_id", person.ID),
		zap.String("library_id", person.LibraryID),
		zap.String("type", string(person.PersonType)))
	return person, nil
}

func (s *personService) List(ctx context.Context, filter repositories.PersonFilter) ([]models.Person, error) {
	if filter.Type != "" && !validPersonTypes[filter.Type] {
		return nil, invalid("type", "is not a known person type")
	}
	if filter.Status != "" && !validPersonStatuses[filter.Status] {
		return nil, invalid("status", "is not a known person status")
	}
	return s.persons.List(s.db.WithContext(ctx), filter)
}

func (s *personService) Get(ctx context.Context, id uuid.UUID) (*models.Person, error) {
	person, err := s.persons.GetByID(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, translateDBError(err, ErrPersonNotFound)
	}
	return person, nil
}

// Update applies an administrative change, including status changes.
func (s *personService) Update(ctx context.Context, id uuid.UUID, patch PersonPatch) (*models.Person, error) {
	var person *models.Person

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.persons.GetByID(tx, id)
		if err != nil {
			return translateDBError(err, ErrPersonNotFound)
		}
		patch.applyTo(current)
		if err := validatePerson(current); err != nil {
			return err
		}
		if err := s.persons.Update(tx, current); err != nil {
			return translateDBError(err, ErrPersonNotFound)
		}
		person, err = s.persons.GetByID(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("person updated", zap.Stringer("person_id", id), zap.String("status", string(person.Status)))
	return person, nil
}

// Delete removes a person with no borrowing or reservation history.
// Attendance records go with them.
func (s *personService) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.persons.GetByID(tx, id); err != nil {
			return translateDBError(err, ErrPersonNotFound)
		}
		loans, err := s.borrowings.CountByPerson(tx, id)
		if err != nil {
			return err
		}
		holds, err := s.reservations.CountByPerson(tx, id)
		if err != nil {
			return err
		}
		if loans > 0 || holds > 0 {
			return ErrPersonInUse
		}
		return translateDBError(s.persons.Delete(tx, id), ErrPersonNotFound)
	})
	if err != nil {
		return err
	}
	s.logger.Info("person deleted", zap.Stringer("person_id", id))
	return nil
}

func (p PersonPatch) applyTo(person *models.Person) {
	if p.Name != nil {
		person.Name = strings.TrimSpace(*p.Name)
	}
	if p.Email != nil {
		person.Email = strings.ToLower(strings.TrimSpace(*p.Email))
	}
	if p.Phone != nil {
		person.Phone = strings.TrimSpace(*p.Phone)
	}
	if p.Address != nil {
		person.Address = strings.TrimSpace(*p.Address)
	}
	if p.PersonType != nil {
		person.PersonType = *p.PersonType
	}
	if p.Status != nil {
		person.Status = *p.Status
	}
	if p.LibraryID != nil {
		person.LibraryID = strings.TrimSpace(*p.LibraryID)
	}
}

func validatePerson(p *models.Person) error {
	switch {
	case p.Name == "":
		return invalid("name", "is required")
	case p.Email == "":
		return invalid("email", "is required")
	case !strings.Contains(p.Email, "@"):
		return invalid("email", "is not an email address")
	case !validPersonTypes[p.PersonType]:
		return invalid("personType", "is not a known person type")
	case !validPersonStatuses[p.Status]:
		return invalid("status", "is not a known person status")
	case p.LibraryID == "":
		return invalid("libraryId", "must not be empty")
	}
	return nil
}

func newLibraryID() string {
	return "LIB-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
