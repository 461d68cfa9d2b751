package repositories

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"communitylibrary/internal/models"
)

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(db *gorm.DB, user *models.User) error {
	if db == nil {
		db = r.db
	}
	return db.Create(user).Error
}

func (r *userRepository) GetByID(db *gorm.DB, id uuid.UUID) (*models.User, error) {
	if db == nil {
		db = r.db
	}
	var user models.User
	if err := db.First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByUsername(db *gorm.DB, username string) (*models.User, error) {
	if db == nil {
		db = r.db
	}
	var user models.User
	if err := db.First(&user, "username = ?", username).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

type tokenRepository struct {
	db *gorm.DB
}

func NewTokenRepository(db *gorm.DB) TokenRepository {
	return &tokenRepository{db: db}
}

func (r *tokenRepository) Create(db *gorm.DB, token *models.APIToken) error {
	if db == nil {
		db = r.db
	}
	return db.Omit("User").Create(token).Error
}

func (r *tokenRepository) GetActive(db *gorm.DB, tokenHash string, now time.Time) (*models.APIToken, error) {
	if db == nil {
		db = r.db
	}
	var token models.APIToken
	err := db.
		Preload("User").
		Where("token_hash = ? AND expires_at > ?", tokenHash, now).
		First(&token).Error
	if err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *tokenRepository) Delete(db *gorm.DB, tokenHash string) error {
	if db == nil {
		db = r.db
	}
	return db.Delete(&models.APIToken{}, "token_hash = ?", tokenHash).Error
}

func (r *tokenRepository) DeleteExpired(db *gorm.DB, now time.Time) (int64, error) {
	if db == nil {
		db = r.db
	}
	res := db.Where("expires_at <= ?", now).Delete(&models.APIToken{})
	return res.RowsAffected, res.Error
}
