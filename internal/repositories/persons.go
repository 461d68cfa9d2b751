package repositories

import (
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"communitylibrary/internal/models"
)

type personRepository struct {
	db *gorm.DB
}

func NewPersonRepository(db *gorm.DB) PersonRepository {
	return &personRepository{db: db}
}

func (r *personRepository) Create(db *gorm.DB, person *models.Person) error {
	if db == nil {
		db = r.db
	}
	return db.Create(person).Error
}

func (r *personRepository) List(db *gorm.DB, filter PersonFilter) ([]models.Person, error) {
	if db == nil {
		db = r.db
	}
	q := db.Model(&models.Person{})
	if filter.Type != "" {
		q = q.Where("person_type = ?", filter.Type)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		p := likePattern(strings.ToLower(s))
		q = q.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR LOWER(library_id) LIKE ?", p, p, p)
	}
	var persons []models.Person
	if err := q.Order("name ASC").Find(&persons).Error; err != nil {
		return nil, err
	}
	return persons, nil
}

func (r *personRepository) GetByID(db *gorm.DB, id uuid.UUID) (*models.Person, error) {
	if db == nil {
		db = r.db
	}
	var person models.Person
	if err := db.First(&person, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &person, nil
}

// GetByIDForUpdate locks the person row so concurrent borrows by the same
// person are counted one at a time.
func (r *personRepository) GetByIDForUpdate(db *gorm.DB, id uuid.UUID) (*models.Person, error) {
	if db == nil {
		db = r.db
	}
	var person models.Person
	err := db.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&person, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &person, nil
}

func (r *personRepository) Update(db *gorm.DB, person *models.Person) error {
	if db == nil {
		db = r.db
	}
	return db.Model(person).
		Select("name", "email", "phone", "address", "person_type", "status", "library_id", "updated_at").
		Updates(person).Error
}

func (r *personRepository) Delete(db *gorm.DB, id uuid.UUID) error {
	if db == nil {
		db = r.db
	}
	return db.Delete(&models.Person{}, "id = ?", id).Error
}
