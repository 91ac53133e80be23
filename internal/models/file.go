package models

// FileMetadata holds optional sniffed properties of an uploaded file.
type FileMetadata struct {
	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`
	Pages  int `json:"pages,omitempty"`
}

// FileModel is an uploaded binary artifact, optionally attached to a note.
// Attached files are cascade-deleted with their note.
type FileModel struct {
	Base
	OriginalName  string        `json:"originalName" gorm:"not null"`
	FileName      string        `json:"fileName"     gorm:"uniqueIndex;not null"` // blob storage key
	MimeType      string        `json:"mimeType"     gorm:"not null"`
	Size          int64         `json:"size"         gorm:"not null"`
	UploaderID    string        `json:"uploaderId"   gorm:"index;not null"`
	NoteID        *string       `json:"noteId"       gorm:"index"`
	Metadata      *FileMetadata `json:"metadata,omitempty" gorm:"serializer:json"`
	DownloadCount int           `json:"downloadCount" gorm:"column:download_count;default:0"`
}

func (FileModel) TableName() string { return "files" }
