package category

import (
	"errors"
	"strings"

	"github.com/notedeck/core/internal/database"
	"github.com/notedeck/core/internal/models"
	"github.com/notedeck/core/internal/pkg/apperr"
	"gorm.io/gorm"
)

type CreateCategoryDTO struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Color       string `json:"color"`
	SortOrder   int    `json:"sortOrder"`
}

type UpdateCategoryDTO struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Icon        *string `json:"icon"`
	Color       *string `json:"color"`
	SortOrder   *int    `json:"sortOrder"`
}

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// List returns all category entries ordered for display. Note counters are
// refreshed first; they are advisory, so a refresh failure does not fail the
// listing.
func (s *Service) List() ([]models.CategoryModel, error) {
	_ = s.RefreshNoteCounts()

	var categories []models.CategoryModel
	err := s.db.Order("sort_order ASC, name ASC").Find(&categories).Error
	return categories, err
}

func (s *Service) Create(dto *CreateCategoryDTO) (*models.CategoryModel, error) {
	name := strings.TrimSpace(dto.Name)
	if name == "" {
		return nil, apperr.Validation("name is required")
	}

	cat := models.CategoryModel{
		Name:        name,
		Description: dto.Description,
		Icon:        dto.Icon,
		Color:       dto.Color,
		SortOrder:   dto.SortOrder,
	}
	if err := s.db.Create(&cat).Error; err != nil {
		if database.IsDuplicateKeyError(err) {
			return nil, apperr.Conflict("category %q already exists", name)
		}
		return nil, err
	}
	return &cat, nil
}

func (s *Service) Update(id string, dto *UpdateCategoryDTO) (*models.CategoryModel, error) {
	var cat models.CategoryModel
	if err := s.db.First(&cat, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("category")
		}
		return nil, err
	}

	updates := map[string]interface{}{}
	if dto.Name != nil {
		name := strings.TrimSpace(*dto.Name)
		if name == "" {
			return nil, apperr.Validation("name is required")
		}
		updates["name"] = name
	}
	if dto.Description != nil {
		updates["description"] = *dto.Description
	}
	if dto.Icon != nil {
		updates["icon"] = *dto.Icon
	}
	if dto.Color != nil {
		updates["color"] = *dto.Color
	}
	if dto.SortOrder != nil {
		updates["sort_order"] = *dto.SortOrder
	}

	if err := s.db.Model(&cat).Updates(updates).Error; err != nil {
		if database.IsDuplicateKeyError(err) {
			return nil, apperr.Conflict("category name already exists")
		}
		return nil, err
	}
	return &cat, nil
}

func (s *Service) Delete(id string) error {
	res := s.db.Unscoped().Delete(&models.CategoryModel{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("category")
	}
	return nil
}

// RefreshNoteCounts recomputes the denormalized note counters from the notes
// table. Called opportunistically, the counters are advisory.
func (s *Service) RefreshNoteCounts() error {
	return s.db.Exec(`
		UPDATE categories SET note_count = (
			SELECT COUNT(*) FROM notes
			WHERE notes.category = categories.name
			  AND notes.status = ? AND notes.is_public = ?
		)`, models.StatusPublished, true).Error
}
