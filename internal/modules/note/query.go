package note

import (
	"strings"
	"time"

	"github.com/notedeck/core/internal/models"
	"gorm.io/gorm"
)

// Popularity windows.
const (
	WindowAll   = "all"
	WindowWeek  = "week"
	WindowMonth = "month"
)

// ListOptions assembles the filter predicates for listing and searching the
// catalog.
type ListOptions struct {
	Category   string
	Tags       []string
	Author     string
	Difficulty string
	Query      string // full-text search term
	Window     string // popularity window, WindowAll when unset

	// Mine switches to the owner listing: author = caller, no status or
	// visibility filter.
	Mine     bool
	CallerID string
}

// apply builds the WHERE clauses on tx. Ordering is applied separately.
func (o ListOptions) apply(tx *gorm.DB) *gorm.DB {
	if o.Mine {
		tx = tx.Where("author_id = ?", o.CallerID)
	} else {
		tx = tx.Where("status = ? AND is_public = ?", models.StatusPublished, true)
	}

	if o.Category != "" {
		tx = tx.Where("category = ?", o.Category)
	}
	if o.Difficulty != "" {
		tx = tx.Where("difficulty = ?", o.Difficulty)
	}
	if o.Author != "" && !o.Mine {
		tx = tx.Where("author_id = ?", o.Author)
	}

	// Match-any tag filter over the JSON-serialized tags column. Tags are
	// normalized to lowercase at write time, so the quoted form is exact.
	if len(o.Tags) > 0 {
		var (
			clause strings.Builder
			args   []interface{}
		)
		for i, tag := range o.Tags {
			if i > 0 {
				clause.WriteString(" OR ")
			}
			clause.WriteString("tags LIKE ?")
			args = append(args, `%"`+strings.ToLower(strings.TrimSpace(tag))+`"%`)
		}
		tx = tx.Where(clause.String(), args...)
	}

	switch o.Window {
	case WindowWeek:
		tx = tx.Where("created_at >= ?", time.Now().Add(-7*24*time.Hour))
	case WindowMonth:
		tx = tx.Where("created_at >= ?", time.Now().Add(-30*24*time.Hour))
	}

	return tx
}

// applySearch adds the text-search predicate and relevance ordering. MySQL
// uses the FULLTEXT index; other dialects fall back to LIKE with recency
// ordering.
func (o ListOptions) applySearch(tx *gorm.DB) *gorm.DB {
	q := strings.TrimSpace(o.Query)
	if q == "" {
		return tx.Order("created_at DESC")
	}

	like := "%" + q + "%"
	if tx.Dialector.Name() == "mysql" {
		return tx.
			Select("*, MATCH(title, content) AGAINST(?) AS relevance", q).
			Where("MATCH(title, content) AGAINST(?) OR tags LIKE ?", q, like).
			Order("relevance DESC")
	}

	return tx.
		Where("title LIKE ? OR content LIKE ? OR tags LIKE ?", like, like, like).
		Order("created_at DESC")
}

// popularityOrder ranks by downloads, then rating, then views.
func popularityOrder(tx *gorm.DB) *gorm.DB {
	return tx.Order("download_count DESC, rating DESC, view_count DESC")
}
