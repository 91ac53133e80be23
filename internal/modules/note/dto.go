package note

import (
	"time"

	"github.com/notedeck/core/internal/models"
)

type CreateNoteDTO struct {
	Title      string   `json:"title"    binding:"required"`
	Content    string   `json:"content"  binding:"required"`
	Summary    string   `json:"summary"`
	Category   string   `json:"category" binding:"required"`
	Subject    string   `json:"subject"`
	Difficulty string   `json:"difficulty"`
	Tags       []string `json:"tags"`
	Status     string   `json:"status"`
	IsPublic   *bool    `json:"isPublic"`
}

type UpdateNoteDTO struct {
	Title             *string  `json:"title"`
	Content           *string  `json:"content"`
	Summary           *string  `json:"summary"`
	Category          *string  `json:"category"`
	Subject           *string  `json:"subject"`
	Difficulty        *string  `json:"difficulty"`
	Tags              []string `json:"tags"`
	Status            *string  `json:"status"`
	IsPublic          *bool    `json:"isPublic"`
	ChangeDescription string   `json:"changeDescription"`
}

type RateNoteDTO struct {
	Rating  int    `json:"rating" binding:"required"`
	Comment string `json:"comment"`
}

type noteResponse struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	Content       string          `json:"content,omitempty"`
	Summary       string          `json:"summary"`
	AuthorID      string          `json:"authorId"`
	AuthorName    string          `json:"authorName"`
	Category      string          `json:"category"`
	Subject       string          `json:"subject,omitempty"`
	Difficulty    string          `json:"difficulty"`
	Status        string          `json:"status"`
	IsPublic      bool            `json:"isPublic"`
	Slug          string          `json:"slug"`
	Tags          []string        `json:"tags"`
	Reviews       []models.Review `json:"reviews,omitempty"`
	Rating        float64         `json:"rating"`
	RatingCount   int             `json:"ratingCount"`
	ViewCount     int             `json:"viewCount"`
	DownloadCount int             `json:"downloadCount"`
	FavoriteCount int             `json:"favoriteCount"`
	Version       int             `json:"version"`
	Files         []noteFileRef   `json:"files"`
	PublishedAt   *time.Time      `json:"publishedAt,omitempty"`
	LastViewedAt  *time.Time      `json:"lastViewedAt,omitempty"`
	Created       time.Time       `json:"createdAt"`
	Modified      *time.Time      `json:"updatedAt"`
}

type noteFileRef struct {
	ID           string `json:"id"`
	OriginalName string `json:"originalName"`
	MimeType     string `json:"mimeType"`
	Size         int64  `json:"size"`
}

func nullableModified(t time.Time) *time.Time {
	if t.IsZero() || t.Year() <= 1 {
		return nil
	}
	modifiedAt := t
	return &modifiedAt
}

// toResponse renders a note. Content and reviews are included only on detail
// views; list views pass withBody=false to keep payloads small.
func toResponse(n *models.NoteModel, withBody bool) noteResponse {
	tags := n.Tags
	if tags == nil {
		tags = []string{}
	}
	files := make([]noteFileRef, 0, len(n.Files))
	for _, f := range n.Files {
		files = append(files, noteFileRef{
			ID:           f.ID,
			OriginalName: f.OriginalName,
			MimeType:     f.MimeType,
			Size:         f.Size,
		})
	}
	resp := noteResponse{
		ID:            n.ID,
		Title:         n.Title,
		Summary:       n.Summary,
		AuthorID:      n.AuthorID,
		AuthorName:    n.AuthorName,
		Category:      n.Category,
		Subject:       n.Subject,
		Difficulty:    n.Difficulty,
		Status:        n.Status,
		IsPublic:      n.IsPublic,
		Slug:          n.Slug,
		Tags:          tags,
		Rating:        n.Rating,
		RatingCount:   n.RatingCount,
		ViewCount:     n.ViewCount,
		DownloadCount: n.DownloadCount,
		FavoriteCount: n.FavoriteCount,
		Version:       n.Version,
		Files:         files,
		PublishedAt:   n.PublishedAt,
		LastViewedAt:  n.LastViewedAt,
		Created:       n.CreatedAt,
		Modified:      nullableModified(n.UpdatedAt),
	}
	if withBody {
		resp.Content = n.Content
		resp.Reviews = n.Reviews
	}
	return resp
}
