package models

// CategoryModel is display metadata for a catalog category. Notes validate
// their category against the closed enumeration, not this table.
type CategoryModel struct {
	Base
	Name        string `json:"name"  gorm:"uniqueIndex;not null"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Color       string `json:"color"`
	SortOrder   int    `json:"sortOrder" gorm:"default:0"`
	NoteCount   int    `json:"noteCount" gorm:"column:note_count;default:0"`
}

func (CategoryModel) TableName() string { return "categories" }
