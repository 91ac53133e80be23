package models

import "time"

// UserModel represents a registered account.
type UserModel struct {
	Base
	Username      string     `json:"username" gorm:"uniqueIndex;not null"`
	Email         string     `json:"email"    gorm:"uniqueIndex;not null"`
	Password      string     `json:"-"        gorm:"not null"`
	Avatar        string     `json:"avatar"`
	Bio           string     `json:"bio"`
	LastLoginTime *time.Time `json:"lastLoginTime"`
}

func (UserModel) TableName() string { return "users" }
