package note

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/notedeck/core/internal/database"
	"github.com/notedeck/core/internal/models"
	"github.com/notedeck/core/internal/pkg/apperr"
	"github.com/notedeck/core/internal/pkg/blob"
	"github.com/notedeck/core/internal/pkg/pagination"
	pkgredis "github.com/notedeck/core/internal/pkg/redis"
	"github.com/notedeck/core/internal/pkg/response"
	"github.com/notedeck/core/internal/pkg/slug"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const popularCacheTTL = 60 * time.Second

type Service struct {
	db    *gorm.DB
	store blob.Store
	cache *pkgredis.Client // optional, nil disables the popular-feed cache
}

func NewService(db *gorm.DB, store blob.Store, cache *pkgredis.Client) *Service {
	return &Service{db: db, store: store, cache: cache}
}

// List returns the public catalog (or the caller's own notes when opts.Mine),
// newest first, with the optional refinements applied.
func (s *Service) List(opts ListOptions, q pagination.Query) ([]models.NoteModel, response.Pagination, error) {
	tx := opts.apply(s.db.Model(&models.NoteModel{})).
		Preload("Files").
		Order("created_at DESC")

	var notes []models.NoteModel
	pag, err := pagination.Paginate(tx, q, &notes)
	return notes, pag, err
}

// Search runs the text-search mode with relevance ordering.
func (s *Service) Search(opts ListOptions, q pagination.Query) ([]models.NoteModel, response.Pagination, error) {
	tx := opts.applySearch(opts.apply(s.db.Model(&models.NoteModel{}))).
		Preload("Files")

	var notes []models.NoteModel
	pag, err := pagination.Paginate(tx, q, &notes)
	return notes, pag, err
}

type popularPage struct {
	Items      []models.NoteModel  `json:"items"`
	Pagination response.Pagination `json:"pagination"`
}

// Popular ranks published notes by downloads, rating, then views, within the
// given time window. Results are briefly cached in redis.
func (s *Service) Popular(ctx context.Context, window string, q pagination.Query) ([]models.NoteModel, response.Pagination, error) {
	if window != WindowWeek && window != WindowMonth {
		window = WindowAll
	}

	cacheKey := fmt.Sprintf("nd:popular:%s:%d:%d", window, q.Page, q.Size)
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, cacheKey); err == nil && raw != "" {
			var page popularPage
			if json.Unmarshal([]byte(raw), &page) == nil {
				return page.Items, page.Pagination, nil
			}
		}
	}

	opts := ListOptions{Window: window}
	tx := popularityOrder(opts.apply(s.db.Model(&models.NoteModel{})))

	var notes []models.NoteModel
	pag, err := pagination.Paginate(tx, q, &notes)
	if err != nil {
		return nil, pag, err
	}

	if s.cache != nil {
		if raw, err := json.Marshal(popularPage{Items: notes, Pagination: pag}); err == nil {
			_ = s.cache.Set(ctx, cacheKey, raw, popularCacheTTL)
		}
	}
	return notes, pag, nil
}

// GetByID loads a note, enforcing visibility: unpublished or private notes
// resolve only for their author. Anyone else gets Forbidden.
func (s *Service) GetByID(id, callerID string) (*models.NoteModel, error) {
	return s.getVisible("id = ?", id, callerID)
}

// GetBySlug is GetByID keyed on the publication slug.
func (s *Service) GetBySlug(slugValue, callerID string) (*models.NoteModel, error) {
	return s.getVisible("slug = ?", slugValue, callerID)
}

func (s *Service) getVisible(cond, key, callerID string) (*models.NoteModel, error) {
	var note models.NoteModel
	if err := s.db.Preload("Files").First(&note, cond, key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("note")
		}
		return nil, err
	}
	if !note.Visible(callerID) {
		return nil, apperr.Forbidden("access denied")
	}
	return &note, nil
}

// Create validates all fields up front, derives summary and slug, and inserts
// the note. Slug collisions retry with a fresh suffix.
func (s *Service) Create(callerID, callerName string, dto *CreateNoteDTO) (*models.NoteModel, error) {
	// New notes go live immediately unless the caller asks for a draft.
	status := dto.Status
	if status == "" {
		status = models.StatusPublished
	}
	difficulty := dto.Difficulty
	if difficulty == "" {
		difficulty = models.DifficultyIntermediate
	}
	tags, err := normalizeTags(dto.Tags)
	if err != nil {
		return nil, err
	}
	if err := validateFields(dto.Title, dto.Content, dto.Summary, dto.Subject, dto.Category, difficulty, status); err != nil {
		return nil, err
	}

	const maxCreateRetries = 5
	for i := 0; i < maxCreateRetries; i++ {
		note := models.NoteModel{
			Title:      strings.TrimSpace(dto.Title),
			Content:    dto.Content,
			Summary:    strings.TrimSpace(dto.Summary),
			AuthorID:   callerID,
			AuthorName: callerName,
			Category:   dto.Category,
			Subject:    strings.TrimSpace(dto.Subject),
			Difficulty: difficulty,
			Status:     status,
			IsPublic:   true,
			Tags:       tags,
			Version:    1,
		}
		if dto.IsPublic != nil {
			note.IsPublic = *dto.IsPublic
		}
		note.DeriveSummary()

		// The time suffix makes collisions rare; the id fallback covers
		// titles that reduce to nothing. A retry after a slug collision mixes
		// in part of the fresh record id so same-millisecond creates diverge.
		note.ID = uuid.New().String()
		note.Slug = slug.Make(note.Title, note.ID)
		if i > 0 {
			note.Slug += "-" + note.ID[:6]
		}

		if status == models.StatusPublished {
			now := time.Now()
			note.PublishedAt = &now
		}

		if err := s.db.Create(&note).Error; err != nil {
			if database.IsDuplicateKeyError(err) && i < maxCreateRetries-1 {
				continue
			}
			return nil, err
		}
		return &note, nil
	}

	return nil, fmt.Errorf("failed to allocate unique slug after retries")
}

// Update applies a partial edit. Author only. Title or content changes cut a
// version snapshot of the pre-edit state first. The slug is immutable.
func (s *Service) Update(id, callerID string, dto *UpdateNoteDTO) (*models.NoteModel, error) {
	var updated *models.NoteModel
	err := s.db.Transaction(func(tx *gorm.DB) error {
		note, err := s.lockNote(tx, id)
		if err != nil {
			return err
		}
		if note.AuthorID != callerID {
			return apperr.Forbidden("only the author can edit this note")
		}

		title := note.Title
		if dto.Title != nil {
			title = strings.TrimSpace(*dto.Title)
		}
		content := note.Content
		if dto.Content != nil {
			content = *dto.Content
		}
		summary := note.Summary
		if dto.Summary != nil {
			summary = strings.TrimSpace(*dto.Summary)
		}
		category := note.Category
		if dto.Category != nil {
			category = *dto.Category
		}
		difficulty := note.Difficulty
		if dto.Difficulty != nil {
			difficulty = *dto.Difficulty
		}
		status := note.Status
		if dto.Status != nil {
			status = *dto.Status
		}
		subject := note.Subject
		if dto.Subject != nil {
			subject = strings.TrimSpace(*dto.Subject)
		}
		if err := validateFields(title, content, summary, subject, category, difficulty, status); err != nil {
			return err
		}

		var tags []string
		if dto.Tags != nil {
			tags, err = normalizeTags(dto.Tags)
			if err != nil {
				return err
			}
		}

		updates := map[string]interface{}{}
		contentEdit := title != note.Title || content != note.Content
		if contentEdit {
			// Snapshot captures the pre-edit state, then the version bump.
			note.SnapshotVersion(dto.ChangeDescription)
			updates["previous_versions"] = note.PreviousVersions
			updates["version"] = note.Version
		}

		if dto.Title != nil {
			updates["title"] = title
		}
		if dto.Content != nil {
			updates["content"] = content
		}
		if dto.Summary != nil {
			updates["summary"] = summary
		}
		if dto.Category != nil {
			updates["category"] = category
		}
		if dto.Subject != nil {
			updates["subject"] = subject
		}
		if dto.Difficulty != nil {
			updates["difficulty"] = difficulty
		}
		if dto.Tags != nil {
			updates["tags"] = tags
		}
		if dto.IsPublic != nil {
			updates["is_public"] = *dto.IsPublic
		}
		if dto.Status != nil {
			updates["status"] = status
			if status == models.StatusPublished && note.PublishedAt == nil {
				updates["published_at"] = time.Now()
			}
		}

		if len(updates) == 0 {
			updated = note
			return nil
		}
		if err := tx.Model(note).Updates(updates).Error; err != nil {
			return err
		}
		updated = note
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetByID(updated.ID, callerID)
}

// Delete removes the note and cascades to its attached files: each blob is
// deleted, then the file row, then the note. The cascade is synchronous and
// non-transactional; blob deletion is idempotent so a retry after a partial
// failure is safe.
func (s *Service) Delete(ctx context.Context, id, callerID string) error {
	var note models.NoteModel
	if err := s.db.First(&note, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("note")
		}
		return err
	}
	if note.AuthorID != callerID {
		return apperr.Forbidden("only the author can delete this note")
	}

	var files []models.FileModel
	if err := s.db.Find(&files, "note_id = ?", id).Error; err != nil {
		return err
	}
	for _, f := range files {
		if err := s.store.Delete(ctx, f.FileName); err != nil {
			return err
		}
		if err := s.db.Unscoped().Delete(&models.FileModel{}, "id = ?", f.ID).Error; err != nil {
			return err
		}
	}

	return s.db.Unscoped().Delete(&models.NoteModel{}, "id = ?", id).Error
}

// Rate adds or replaces the caller's review inside a row-locked transaction.
// Returns the refreshed aggregate.
func (s *Service) Rate(id, callerID, callerName string, dto *RateNoteDTO) (*models.NoteModel, error) {
	if dto.Rating < 1 || dto.Rating > 5 {
		return nil, apperr.Validation("rating must be between 1 and 5")
	}
	if len(dto.Comment) > models.MaxCommentLen {
		return nil, apperr.Validation("comment exceeds %d characters", models.MaxCommentLen)
	}

	var rated *models.NoteModel
	err := s.db.Transaction(func(tx *gorm.DB) error {
		note, err := s.lockNote(tx, id)
		if err != nil {
			return err
		}
		if !note.Visible(callerID) {
			return apperr.Forbidden("access denied")
		}

		note.ApplyRating(callerID, callerName, dto.Rating, dto.Comment)
		if err := tx.Model(note).Updates(map[string]interface{}{
			"rating":       note.Rating,
			"rating_count": note.RatingCount,
			"reviews":      note.Reviews,
		}).Error; err != nil {
			return err
		}
		rated = note
		return nil
	})
	return rated, err
}

// ToggleFavorite flips the caller's favorite inside a row-locked transaction.
func (s *Service) ToggleFavorite(id, callerID string) (favorited bool, count int, err error) {
	err = s.db.Transaction(func(tx *gorm.DB) error {
		note, lockErr := s.lockNote(tx, id)
		if lockErr != nil {
			return lockErr
		}
		if !note.Visible(callerID) {
			return apperr.Forbidden("access denied")
		}

		favorited = note.ToggleFavorite(callerID)
		count = note.FavoriteCount
		return tx.Model(note).Updates(map[string]interface{}{
			"favorited_by":   note.FavoritedBy,
			"favorite_count": note.FavoriteCount,
		}).Error
	})
	return favorited, count, err
}

// IncrementViewCount bumps the view counter and last-viewed timestamp as a
// single atomic statement, skipping document validation.
func (s *Service) IncrementViewCount(id string) error {
	return s.db.Model(&models.NoteModel{}).Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"view_count":     gorm.Expr("view_count + 1"),
			"last_viewed_at": time.Now(),
		}).Error
}

// IncrementDownloadCount bumps the download counter atomically and returns
// the new value. The note must be visible to the caller.
func (s *Service) IncrementDownloadCount(id, callerID string) (int, error) {
	if _, err := s.getVisible("id = ?", id, callerID); err != nil {
		return 0, err
	}

	res := s.db.Model(&models.NoteModel{}).Where("id = ?", id).
		UpdateColumn("download_count", gorm.Expr("download_count + 1"))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, apperr.NotFound("note")
	}

	var count int
	err := s.db.Model(&models.NoteModel{}).Where("id = ?", id).
		Select("download_count").Scan(&count).Error
	return count, err
}

// Versions returns the snapshot history newest-first. Author only.
func (s *Service) Versions(id, callerID string) ([]models.VersionSnapshot, error) {
	var note models.NoteModel
	if err := s.db.First(&note, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("note")
		}
		return nil, err
	}
	if note.AuthorID != callerID {
		return nil, apperr.Forbidden("only the author can view version history")
	}

	out := make([]models.VersionSnapshot, len(note.PreviousVersions))
	for i, snap := range note.PreviousVersions {
		out[len(out)-1-i] = snap
	}
	return out, nil
}

// lockNote fetches the note under a FOR UPDATE row lock so concurrent
// aggregate mutations serialize per note. The lock clause is MySQL only;
// sqlite (tests) is single-writer anyway.
func (s *Service) lockNote(tx *gorm.DB, id string) (*models.NoteModel, error) {
	if tx.Dialector.Name() == "mysql" {
		tx = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var note models.NoteModel
	if err := tx.First(&note, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("note")
		}
		return nil, err
	}
	return &note, nil
}

func validateFields(title, content, summary, subject, category, difficulty, status string) error {
	if strings.TrimSpace(title) == "" {
		return apperr.Validation("title is required")
	}
	if len([]rune(title)) > models.MaxTitleLen {
		return apperr.Validation("title exceeds %d characters", models.MaxTitleLen)
	}
	if strings.TrimSpace(content) == "" {
		return apperr.Validation("content is required")
	}
	if len([]rune(content)) > models.MaxContentLen {
		return apperr.Validation("content exceeds %d characters", models.MaxContentLen)
	}
	if len([]rune(summary)) > models.MaxSummaryLen {
		return apperr.Validation("summary exceeds %d characters", models.MaxSummaryLen)
	}
	if len([]rune(subject)) > models.MaxSubjectLen {
		return apperr.Validation("subject exceeds %d characters", models.MaxSubjectLen)
	}
	if !models.ValidCategory(category) {
		return apperr.Validation("unknown category %q", category)
	}
	if !models.ValidDifficulty(difficulty) {
		return apperr.Validation("unknown difficulty %q", difficulty)
	}
	if !models.ValidStatus(status) {
		return apperr.Validation("unknown status %q", status)
	}
	return nil
}

func normalizeTags(raw []string) ([]string, error) {
	tags := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, t := range raw {
		tag := strings.ToLower(strings.TrimSpace(t))
		if tag == "" {
			continue
		}
		if len([]rune(tag)) > models.MaxTagLen {
			return nil, apperr.Validation("tag %q exceeds %d characters", tag, models.MaxTagLen)
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	return tags, nil
}
