package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"communitylibrary/internal/models"
	"communitylibrary/internal/repositories"
)

// ─── Permissions ──────────────────────────────────────────────────────────────

type Permission string

const (
	PermissionAll Permission = "all"

	PermissionBooksRead         Permission = "books:read"
	PermissionBooksWrite        Permission = "books:write"
	PermissionPersonsRead       Permission = "persons:read"
	PermissionPersonsWrite      Permission = "persons:write"
	PermissionBorrowingsRead    Permission = "borrowings:read"
	PermissionBorrowingsWrite   Permission = "borrowings:write"
	PermissionReservationsRead  Permission = "reservations:read"
	PermissionReservationsWrite Permission = "reservations:write"
	PermissionAttendanceRead    Permission = "attendance:read"
	PermissionAttendanceWrite   Permission = "attendance:write"
	PermissionDashboardRead     Permission = "dashboard:read"
	PermissionSettingsRead      Permission = "settings:read"
	PermissionSettingsWrite     Permission = "settings:write"
	PermissionNotificationsSend Permission = "notifications:send"
)

var rolePermissions = map[models.UserRole][]Permission{
	models.UserRoleAdmin: {PermissionAll},
	models.UserRoleLibrarian: {
		PermissionBooksRead, PermissionBooksWrite,
		PermissionPersonsRead, PermissionPersonsWrite,
		PermissionBorrowingsRead, PermissionBorrowingsWrite,
		PermissionReservationsRead, PermissionReservationsWrite,
		PermissionAttendanceRead, PermissionAttendanceWrite,
		PermissionDashboardRead,
		PermissionSettingsRead,
		PermissionNotificationsSend,
	},
	models.UserRoleAssistant: {
		PermissionBooksRead,
		PermissionPersonsRead,
		PermissionBorrowingsRead, PermissionBorrowingsWrite,
		PermissionReservationsRead, PermissionReservationsWrite,
		PermissionAttendanceRead, PermissionAttendanceWrite,
		PermissionDashboardRead,
		PermissionSettingsRead,
	},
	models.UserRoleViewer: {PermissionBooksRead, PermissionDashboardRead},
}

// PermissionsFor lists what role may do. Unknown roles get nothing.
func PermissionsFor(role models.UserRole) []Permission {
	return append([]Permission(nil), rolePermissions[role]...)
}

// HasPermission reports whether role grants perm, directly or through "all".
func HasPermission(role models.UserRole, perm Permission) bool {
	for _, p := range rolePermissions[role] {
		if p == PermissionAll || p == perm {
			return true
		}
	}
	return false
}

// ValidRole reports whether role is one of the known roles.
func ValidRole(role models.UserRole) bool {
	_, ok := rolePermissions[role]
	return ok
}

// ─── Service ──────────────────────────────────────────────────────────────────

const (
	tokenBytes        = 32
	minPasswordLength = 8
)

type LoginResult struct {
	Token       string       `json:"token"`
	ExpiresAt   time.Time    `json:"expiresAt"`
	User        *models.User `json:"user"`
	Permissions []Permission `json:"permissions"`
}

type UserInput struct {
	Username string
	Name     string
	Password string
	Role     models.UserRole
}

type AuthService interface {
	CreateUser(ctx context.Context, in UserInput) (*models.User, error)
	Login(ctx context.Context, username, password string) (*LoginResult, error)
	Authenticate(ctx context.Context, token string) (*models.User, error)
	Logout(ctx context.Context, token string) error
}

type authService struct {
	options
	db       *gorm.DB
	users    repositories.UserRepository
	tokens   repositories.TokenRepository
	tokenTTL time.Duration
	cost     int
}

func NewAuthService(db *gorm.DB, repos *repositories.Registry, tokenTTL time.Duration, opts ...Option) AuthService {
	return &authService{
		options:  buildOptions(opts),
		db:       db,
		users:    repos.Users,
		tokens:   repos.Tokens,
		tokenTTL: tokenTTL,
		cost:     bcrypt.DefaultCost,
	}
}

// CreateUser registers a staff account with a bcrypt-hashed password.
func (s *authService) CreateUser(ctx context.Context, in UserInput) (*models.User, error) {
	username := strings.ToLower(strings.TrimSpace(in.Username))
	switch {
	case username == "":
		return nil, invalid("username", "is required")
	case strings.TrimSpace(in.Name) == "":
		return nil, invalid("name", "is required")
	case len(in.Password) < minPasswordLength:
		return nil, invalid("password", fmt.Sprintf("must be at least %d characters", minPasswordLength))
	case !ValidRole(in.Role):
		return nil, invalid("role", "must be one of ADMIN, LIBRARIAN, ASSISTANT, VIEWER")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Username:     username,
		Name:         strings.TrimSpace(in.Name),
		PasswordHash: string(hash),
		Role:         in.Role,
	}
	if err := s.users.Create(s.db.WithContext(ctx), user); err != nil {
		return nil, translateDBError(err, ErrNotFound)
	}
	s.logger.Info("user created", zap.Stringer("user_id", user.ID), zap.String("username", user.Username), zap.String("role", string(user.Role)))
	return user, nil
}

// Login checks the password and issues a bearer token. Only the token's hash
// is stored.
func (s *authService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	db := s.db.WithContext(ctx)

	user, err := s.users.GetByUsername(db, strings.ToLower(strings.TrimSpace(username)))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.Warn("login rejected", zap.String("username", user.Username))
		return nil, ErrInvalidCredentials
	}

	token, err := newToken()
	if err != nil {
		return nil, err
	}
	now := s.now()
	record := &models.APIToken{
		TokenHash: hashToken(token),
		UserID:    user.ID,
		ExpiresAt: now.Add(s.tokenTTL),
	}
	if err := s.tokens.Create(db, record); err != nil {
		return nil, fmt.Errorf("store token: %w", err)
	}

	if purged, err := s.tokens.DeleteExpired(db, now); err != nil {
		s.logger.Warn("purge expired tokens failed", zap.Error(err))
	} else if purged > 0 {
		s.logger.Debug("expired tokens purged", zap.Int64("count", purged))
	}

	s.logger.Info("user logged in", zap.Stringer("user_id", user.ID), zap.String("role", string(user.Role)))
	return &LoginResult{
		Token:       token,
		ExpiresAt:   record.ExpiresAt,
		User:        user,
		Permissions: PermissionsFor(user.Role),
	}, nil
}

func (s *authService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}
	record, err := s.tokens.GetActive(s.db.WithContext(ctx), hashToken(token), s.now())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	if record.User == nil {
		return nil, ErrUnauthorized
	}
	return record.User, nil
}

// Logout revokes token. Revoking an unknown token is not an error.
func (s *authService) Logout(ctx context.Context, token string) error {
	return s.tokens.Delete(s.db.WithContext(ctx), hashToken(token))
}

func newToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
