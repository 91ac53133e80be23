package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/notedeck/core/internal/database"
	"github.com/notedeck/core/internal/models"
	"github.com/notedeck/core/internal/pkg/apperr"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	minUsernameLen = 3
	maxUsernameLen = 30
	minPasswordLen = 6
)

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Register creates an account. Duplicate username/email surfaces as Conflict.
func (s *Service) Register(dto *RegisterDTO) (*models.UserModel, error) {
	username := strings.TrimSpace(dto.Username)
	if len(username) < minUsernameLen || len(username) > maxUsernameLen {
		return nil, apperr.Validation("username must be %d-%d characters", minUsernameLen, maxUsernameLen)
	}
	if len(dto.Password) < minPasswordLen {
		return nil, apperr.Validation("password must be at least %d characters", minPasswordLen)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(dto.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := models.UserModel{
		Username: username,
		Email:    strings.ToLower(strings.TrimSpace(dto.Email)),
		Password: string(hash),
	}
	if err := s.db.Create(&user).Error; err != nil {
		if database.IsDuplicateKeyError(err) {
			return nil, apperr.Conflict("username or email already taken")
		}
		return nil, err
	}
	return &user, nil
}

// Login verifies credentials and records the login time.
func (s *Service) Login(dto *LoginDTO) (*models.UserModel, error) {
	var user models.UserModel
	err := s.db.Where("username = ?", strings.TrimSpace(dto.Username)).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Forbidden("invalid credentials")
		}
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(dto.Password)) != nil {
		return nil, apperr.Forbidden("invalid credentials")
	}

	now := time.Now()
	user.LastLoginTime = &now
	if err := s.db.Model(&user).UpdateColumn("last_login_time", now).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByID loads a user profile.
func (s *Service) GetByID(id string) (*models.UserModel, error) {
	var user models.UserModel
	if err := s.db.First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user")
		}
		return nil, err
	}
	return &user, nil
}
