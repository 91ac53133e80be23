package file

import (
	"bytes"
	"context"
	"errors"
	"image"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/notedeck/core/internal/models"
	"github.com/notedeck/core/internal/pkg/apperr"
	"github.com/notedeck/core/internal/pkg/blob"
	"github.com/notedeck/core/internal/pkg/pagination"
	"github.com/notedeck/core/internal/pkg/response"
	"gorm.io/gorm"
)

// MaxFileSize caps uploads at 10 MiB.
const MaxFileSize = 10 << 20

// allowedMimeTypes is the upload allow-list.
var allowedMimeTypes = map[string]bool{
	"application/pdf": true,
	"image/jpeg":      true,
	"image/png":       true,
	"image/gif":       true,
	"text/plain":      true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
}

type Service struct {
	db    *gorm.DB
	store blob.Store
}

func NewService(db *gorm.DB, store blob.Store) *Service {
	return &Service{db: db, store: store}
}

// Upload validates the payload before any blob write, stores the bytes, then
// records the metadata row. noteID optionally attaches the file to one of the
// uploader's notes.
func (s *Service) Upload(ctx context.Context, uploaderID, noteID, originalName, mimeType string, data []byte) (*models.FileModel, error) {
	mimeType = normalizeMime(mimeType)
	if !allowedMimeTypes[mimeType] {
		return nil, apperr.Validation("file type %q is not allowed", mimeType)
	}
	if len(data) == 0 {
		return nil, apperr.Validation("file is empty")
	}
	if len(data) > MaxFileSize {
		return nil, apperr.Validation("file exceeds the %d byte limit", MaxFileSize)
	}

	var notePtr *string
	if noteID != "" {
		var note models.NoteModel
		if err := s.db.First(&note, "id = ?", noteID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperr.NotFound("note")
			}
			return nil, err
		}
		if note.AuthorID != uploaderID {
			return nil, apperr.Forbidden("files can only be attached to your own notes")
		}
		notePtr = &noteID
	}

	key := blob.BuildKey(originalName)
	if err := s.store.Put(ctx, key, data, mimeType); err != nil {
		return nil, err
	}

	f := models.FileModel{
		OriginalName: originalName,
		FileName:     key,
		MimeType:     mimeType,
		Size:         int64(len(data)),
		UploaderID:   uploaderID,
		NoteID:       notePtr,
		Metadata:     extractMetadata(mimeType, data),
	}
	if err := s.db.Create(&f).Error; err != nil {
		// Best effort, the blob is orphaned otherwise.
		_ = s.store.Delete(ctx, key)
		return nil, err
	}
	return &f, nil
}

// Download returns the file record and its bytes, then bumps the per-file
// download counter. Access follows the owning note's visibility; unattached
// files are uploader only.
func (s *Service) Download(ctx context.Context, id, callerID string) (*models.FileModel, []byte, error) {
	f, err := s.getAccessible(id, callerID)
	if err != nil {
		return nil, nil, err
	}

	data, err := s.store.Get(ctx, f.FileName)
	if err != nil {
		if errors.Is(err, blob.ErrNotExist) {
			return nil, nil, apperr.NotFound("file")
		}
		return nil, nil, err
	}

	_ = s.db.Model(&models.FileModel{}).Where("id = ?", f.ID).
		UpdateColumn("download_count", gorm.Expr("download_count + 1")).Error
	return f, data, nil
}

// Get returns the metadata record under the same access rules as Download.
func (s *Service) Get(id, callerID string) (*models.FileModel, error) {
	return s.getAccessible(id, callerID)
}

// MyFiles lists the caller's uploads, newest first.
func (s *Service) MyFiles(uploaderID string, q pagination.Query) ([]models.FileModel, response.Pagination, error) {
	tx := s.db.Model(&models.FileModel{}).
		Where("uploader_id = ?", uploaderID).
		Order("created_at DESC")

	var files []models.FileModel
	pag, err := pagination.Paginate(tx, q, &files)
	return files, pag, err
}

// Delete removes the blob, then the row. Uploader only. Blob deletion is
// idempotent so a retry after a partial failure converges.
func (s *Service) Delete(ctx context.Context, id, callerID string) error {
	var f models.FileModel
	if err := s.db.First(&f, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("file")
		}
		return err
	}
	if f.UploaderID != callerID {
		return apperr.Forbidden("only the uploader can delete this file")
	}

	if err := s.store.Delete(ctx, f.FileName); err != nil {
		return err
	}
	return s.db.Unscoped().Delete(&models.FileModel{}, "id = ?", f.ID).Error
}

func (s *Service) getAccessible(id, callerID string) (*models.FileModel, error) {
	var f models.FileModel
	if err := s.db.First(&f, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("file")
		}
		return nil, err
	}

	if f.UploaderID == callerID {
		return &f, nil
	}
	if f.NoteID == nil {
		return nil, apperr.Forbidden("access denied")
	}

	var note models.NoteModel
	if err := s.db.First(&note, "id = ?", *f.NoteID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("file")
		}
		return nil, err
	}
	if !note.Visible(callerID) {
		return nil, apperr.Forbidden("access denied")
	}
	return &f, nil
}

// extractMetadata fills image dimensions for image uploads. Other types carry
// no metadata.
func extractMetadata(mimeType string, data []byte) *models.FileMetadata {
	if !strings.HasPrefix(mimeType, "image/") {
		return nil
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil
	}
	return &models.FileMetadata{Width: cfg.Width, Height: cfg.Height}
}

// normalizeMime strips any parameters, "text/plain; charset=utf-8" matches
// the allow-list as "text/plain".
func normalizeMime(mimeType string) string {
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}
