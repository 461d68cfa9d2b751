package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"communitylibrary/internal/models"
	"communitylibrary/internal/repositories"
)

// ─── Defaults ─────────────────────────────────────────────────────────────────

const (
	DefaultLibraryName       = "Community Library"
	DefaultMaxBorrowDays     = 14
	DefaultMaxBooksPerMember = 5
	DefaultTheme             = "light"
	DefaultLanguage          = "en"
)

// DefaultFinePerDay is the overdue fine charged per calendar day.
var DefaultFinePerDay = decimal.RequireFromString("0.50")

var validThemes = map[string]bool{"light": true, "dark": true, "system": true}

// DefaultSettings is the row created on first read.
func DefaultSettings() models.Settings {
	return models.Settings{
		ID:                models.SettingsID,
		LibraryName:       DefaultLibraryName,
		MaxBorrowDays:     DefaultMaxBorrowDays,
		MaxBooksPerMember: DefaultMaxBooksPerMember,
		OverdueFinePerDay: DefaultFinePerDay,
		Notifications: models.NotificationConfig{
			EmailEnabled:    true,
			SMSEnabled:      false,
			DueReminderDays: 2,
			OverdueAlerts:   true,
		},
		Theme:    DefaultTheme,
		Language: DefaultLanguage,
	}
}

// loadSettings returns the singleton, inserting defaults if it is missing.
func loadSettings(repo repositories.SettingsRepository, db *gorm.DB) (*models.Settings, error) {
	defaults := DefaultSettings()
	if err := repo.CreateIfAbsent(db, &defaults); err != nil {
		return nil, fmt.Errorf("create default settings: %w", err)
	}
	return repo.Get(db)
}

// ─── Service ──────────────────────────────────────────────────────────────────

// SettingsPatch carries the fields to change. Nil fields are left alone.
type SettingsPatch struct {
	LibraryName       *string
	MaxBorrowDays     *int
	MaxBooksPerMember *int
	OverdueFinePerDay *decimal.Decimal
	Notifications     *NotificationsPatch
	Theme             *string
	Language          *string
}

type NotificationsPatch struct {
	EmailEnabled    *bool
	SMSEnabled      *bool
	DueReminderDays *int
	OverdueAlerts   *bool
}

type SettingsService interface {
	Get(ctx context.Context) (*models.Settings, error)
	Update(ctx context.Context, patch SettingsPatch) (*models.Settings, error)
}

type settingsService struct {
	options
	db   *gorm.DB
	repo repositories.SettingsRepository
}

func NewSettingsService(db *gorm.DB, repo repositories.SettingsRepository, opts ...Option) SettingsService {
	return &settingsService{options: buildOptions(opts), db: db, repo: repo}
}

func (s *settingsService) Get(ctx context.Context) (*models.Settings, error) {
	return loadSettings(s.repo, s.db.WithContext(ctx))
}

// Update applies patch to the stored settings. The merged result is validated
// as a whole before anything is written.
func (s *settingsService) Update(ctx context.Context, patch SettingsPatch) (*models.Settings, error) {
	var updated *models.Settings

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := loadSettings(s.repo, tx)
		if err != nil {
			return err
		}
		patch.applyTo(current)
		if err := validateSettings(current); err != nil {
			return err
		}
		current.UpdatedAt = s.now()
		if err := s.repo.Save(tx, current); err != nil {
			return err
		}
		updated = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("settings updated",
		zap.String("library_name", updated.LibraryName),
		zap.Int("max_borrow_days", updated.MaxBorrowDays),
		zap.Int("max_books_per_member", updated.MaxBooksPerMember),
		zap.String("overdue_fine_per_day", updated.OverdueFinePerDay.StringFixed(2)))
	return updated, nil
}

func (p SettingsPatch) applyTo(s *models.Settings) {
	if p.LibraryName != nil {
		s.LibraryName = strings.TrimSpace(*p.LibraryName)
	}
	if p.MaxBorrowDays != nil {
		s.MaxBorrowDays = *p.MaxBorrowDays
	}
	if p.MaxBooksPerMember != nil {
		s.MaxBooksPerMember = *p.MaxBooksPerMember
	}
	if p.OverdueFinePerDay != nil {
		s.OverdueFinePerDay = *p.OverdueFinePerDay
	}
	if p.Theme != nil {
		s.Theme = *p.Theme
	}
	if p.Language != nil {
		s.Language = strings.TrimSpace(*p.Language)
	}
	if n := p.Notifications; n != nil {
		if n.EmailEnabled != nil {
			s.Notifications.EmailEnabled = *n.EmailEnabled
		}
		if n.SMSEnabled != nil {
			s.Notifications.SMSEnabled = *n.SMSEnabled
		}
		if n.DueReminderDays != nil {
			s.Notifications.DueReminderDays = *n.DueReminderDays
		}
		if n.OverdueAlerts != nil {
			s.Notifications.OverdueAlerts = *n.OverdueAlerts
		}
	}
}

func validateSettings(s *models.Settings) error {
	switch {
	case s.LibraryName == "":
		return invalid("libraryName", "must not be empty")
	case s.MaxBorrowDays <= 0:
		return invalid("maxBorrowDays", "must be positive")
	case s.MaxBooksPerMember <= 0:
		return invalid("maxBooksPerMember", "must be positive")
	case s.OverdueFinePerDay.IsNegative():
		return invalid("overdueFinePerDay", "must not be negative")
	case !validThemes[s.Theme]:
		return invalid("theme", "must be one of light, dark, system")
	case s.Language == "":
		return invalid("language", "must not be empty")
	case s.Notifications.DueReminderDays < 0:
		return invalid("notifications.dueReminderDays", "must not be negative")
	}
	return nil
}
