package auth

import (
	"time"

	"github.com/notedeck/core/internal/models"
)

type RegisterDTO struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email"    binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginDTO struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type userResponse struct {
	ID            string     `json:"id"`
	Username      string     `json:"username"`
	Email         string     `json:"email"`
	Avatar        string     `json:"avatar,omitempty"`
	Bio           string     `json:"bio,omitempty"`
	LastLoginTime *time.Time `json:"lastLoginTime,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

type tokenResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

func toUserResponse(u *models.UserModel) userResponse {
	return userResponse{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		Avatar:        u.Avatar,
		Bio:           u.Bio,
		LastLoginTime: u.LastLoginTime,
		CreatedAt:     u.CreatedAt,
	}
}
