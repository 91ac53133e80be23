package file

import (
	"time"

	"github.com/notedeck/core/internal/models"
)

type fileResponse struct {
	ID            string                `json:"id"`
	OriginalName  string                `json:"originalName"`
	MimeType      string                `json:"mimeType"`
	Size          int64                 `json:"size"`
	UploaderID    string                `json:"uploaderId"`
	NoteID        *string               `json:"noteId,omitempty"`
	Metadata      *models.FileMetadata  `json:"metadata,omitempty"`
	DownloadCount int                   `json:"downloadCount"`
	Created       time.Time             `json:"createdAt"`
}

func toResponse(f *models.FileModel) fileResponse {
	return fileResponse{
		ID:            f.ID,
		OriginalName:  f.OriginalName,
		MimeType:      f.MimeType,
		Size:          f.Size,
		UploaderID:    f.UploaderID,
		NoteID:        f.NoteID,
		Metadata:      f.Metadata,
		DownloadCount: f.DownloadCount,
		Created:       f.CreatedAt,
	}
}
