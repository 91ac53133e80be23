package models

import (
	"time"
)

// Note status lifecycle states.
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
	StatusArchived  = "archived"
	StatusDeleted   = "deleted"
)

// Difficulty levels.
const (
	DifficultyBeginner     = "Beginner"
	DifficultyIntermediate = "Intermediate"
	DifficultyAdvanced     = "Advanced"
)

// Categories is the closed set of note categories.
var Categories = []string{
	"Mathematics", "Science", "History", "Literature", "Technology",
	"Business", "Engineering", "Medicine", "Arts", "Language",
	"Philosophy", "Psychology", "Other",
}

// Field length limits enforced before any write.
const (
	MaxTitleLen   = 200
	MaxContentLen = 50000
	MaxSummaryLen = 500
	MaxSubjectLen = 100
	MaxTagLen     = 30
	MaxCommentLen = 500

	summaryCutoff = 200
)

// ValidCategory reports whether c is one of the known categories.
func ValidCategory(c string) bool {
	for _, known := range Categories {
		if known == c {
			return true
		}
	}
	return false
}

// ValidDifficulty reports whether d is a known difficulty level.
func ValidDifficulty(d string) bool {
	return d == DifficultyBeginner || d == DifficultyIntermediate || d == DifficultyAdvanced
}

// ValidStatus reports whether s is a known lifecycle state.
func ValidStatus(s string) bool {
	return s == StatusDraft || s == StatusPublished || s == StatusArchived || s == StatusDeleted
}

// Review is a single reviewer's rating of a note. At most one per reviewer id.
type Review struct {
	ReviewerID   string    `json:"reviewerId"`
	ReviewerName string    `json:"reviewerName"`
	Rating       int       `json:"rating"`
	Comment      string    `json:"comment,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// VersionSnapshot is an immutable copy of a note's editable fields, captured
// before an edit is applied.
type VersionSnapshot struct {
	Version           int       `json:"version"`
	Title             string    `json:"title"`
	Content           string    `json:"content"`
	UpdatedAt         time.Time `json:"updatedAt"`
	ChangeDescription string    `json:"changeDescription,omitempty"`
}

// NoteModel is a shared study note with attached files and social metadata.
type NoteModel struct {
	Base
	Title      string `json:"title"      gorm:"not null"`
	Content    string `json:"content"    gorm:"type:longtext;not null"`
	Summary    string `json:"summary"`
	AuthorID   string `json:"authorId"   gorm:"index;not null"`
	AuthorName string `json:"authorName"` // display name snapshot at creation, never refreshed
	Category   string `json:"category"   gorm:"index;not null"`
	Subject    string `json:"subject"`
	Difficulty string `json:"difficulty" gorm:"default:Intermediate"`
	Status     string `json:"status"     gorm:"default:published;index"`
	IsPublic   bool   `json:"isPublic"   gorm:"default:true"`
	Slug       string `json:"slug"       gorm:"uniqueIndex;not null"`

	Tags             []string          `json:"tags"             gorm:"type:longtext;serializer:json"`
	Reviews          []Review          `json:"reviews"          gorm:"type:longtext;serializer:json"`
	FavoritedBy      []string          `json:"favoritedBy"      gorm:"type:longtext;serializer:json"`
	PreviousVersions []VersionSnapshot `json:"previousVersions" gorm:"type:longtext;serializer:json"`

	Rating        float64 `json:"rating"        gorm:"default:0"`
	RatingCount   int     `json:"ratingCount"   gorm:"column:rating_count;default:0"`
	ViewCount     int     `json:"viewCount"     gorm:"column:view_count;default:0"`
	DownloadCount int     `json:"downloadCount" gorm:"column:download_count;default:0"`
	FavoriteCount int     `json:"favoriteCount" gorm:"column:favorite_count;default:0"`
	Version       int     `json:"version"       gorm:"default:1"`

	PublishedAt  *time.Time `json:"publishedAt"`
	LastViewedAt *time.Time `json:"lastViewedAt"`

	Files []FileModel `json:"files,omitempty" gorm:"foreignKey:NoteID"`
}

func (NoteModel) TableName() string { return "notes" }

// ApplyRating adds or replaces the reviewer's rating and recomputes the
// aggregate mean incrementally. Returns true when the reviewer had already
// rated and the review was replaced in place.
func (n *NoteModel) ApplyRating(reviewerID, reviewerName string, rating int, comment string) bool {
	for i := range n.Reviews {
		if n.Reviews[i].ReviewerID == reviewerID {
			old := n.Reviews[i].Rating
			n.Rating = (n.Rating*float64(n.RatingCount) - float64(old) + float64(rating)) / float64(n.RatingCount)
			// Replacement keeps the original review timestamp.
			n.Reviews[i].Rating = rating
			n.Reviews[i].Comment = comment
			n.Reviews[i].ReviewerName = reviewerName
			return true
		}
	}

	n.Rating = (n.Rating*float64(n.RatingCount) + float64(rating)) / float64(n.RatingCount+1)
	n.RatingCount++
	n.Reviews = append(n.Reviews, Review{
		ReviewerID:   reviewerID,
		ReviewerName: reviewerName,
		Rating:       rating,
		Comment:      comment,
		CreatedAt:    time.Now(),
	})
	return false
}

// SnapshotVersion pushes the current editable state onto PreviousVersions and
// bumps Version. Invoke exactly once, immediately before applying an edit, so
// the snapshot captures pre-edit state.
func (n *NoteModel) SnapshotVersion(changeDescription string) {
	n.PreviousVersions = append(n.PreviousVersions, VersionSnapshot{
		Version:           n.Version,
		Title:             n.Title,
		Content:           n.Content,
		UpdatedAt:         n.UpdatedAt,
		ChangeDescription: changeDescription,
	})
	n.Version++
}

// ToggleFavorite flips the user's membership in FavoritedBy and keeps
// FavoriteCount in sync. Returns true when the note is now favorited.
func (n *NoteModel) ToggleFavorite(userID string) bool {
	for i, id := range n.FavoritedBy {
		if id == userID {
			n.FavoritedBy = append(n.FavoritedBy[:i], n.FavoritedBy[i+1:]...)
			if n.FavoriteCount > 0 {
				n.FavoriteCount--
			}
			return false
		}
	}
	n.FavoritedBy = append(n.FavoritedBy, userID)
	n.FavoriteCount++
	return true
}

// Visible reports whether the note may be read by the given caller. The
// author always sees their own notes; everyone else only sees published,
// public ones.
func (n *NoteModel) Visible(callerID string) bool {
	if callerID != "" && n.AuthorID == callerID {
		return true
	}
	return n.Status == StatusPublished && n.IsPublic
}

// DeriveSummary fills Summary from the first 200 characters of content when
// no summary was supplied.
func (n *NoteModel) DeriveSummary() {
	if n.Summary != "" {
		return
	}
	runes := []rune(n.Content)
	if len(runes) > summaryCutoff {
		n.Summary = string(runes[:summaryCutoff]) + "..."
		return
	}
	n.Summary = n.Content
}
