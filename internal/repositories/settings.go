package repositories

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"communitylibrary/internal/models"
)

type settingsRepository struct {
	db *gorm.DB
}

func NewSettingsRepository(db *gorm.DB) SettingsRepository {
	return &settingsRepository{db: db}
}

// CreateIfAbsent inserts the singleton row unless one already exists, so
// concurrent first reads never produce a second row.
func (r *settingsRepository) CreateIfAbsent(db *gorm.DB, settings *models.Settings) error {
	if db == nil {
		db = r.db
	}
	settings.ID = models.SettingsID
	return db.Clauses(clause.OnConflict{DoNothing: true}).Create(settings).Error
}

func (r *settingsRepository) Get(db *gorm.DB) (*models.Settings, error) {
	if db == nil {
		db = r.db
	}
	var s models.Settings
	if err := db.First(&s, "id = ?", models.SettingsID).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *settingsRepository) Save(db *gorm.DB, settings *models.Settings) error {
	if db == nil {
		db = r.db
	}
	settings.ID = models.SettingsID
	return db.Save(settings).Error
}
