package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role is the authorization level of an account
type Role string

const (
	RoleUser   Role = "user"
	RoleAuthor Role = "author"
	RoleAdmin  Role = "admin"
)

// ParseRole returns false for anything outside the three known roles
func ParseRole(s string) (Role, bool) {
	switch r := Role(s); r {
	case RoleUser, RoleAuthor, RoleAdmin:
		return r, true
	}
	return "", false
}

// User is a reader, author or administrator account
type User struct {
	ID           string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Email        string `gorm:"uniqueIndex;not null" json:"email,omitempty"`
	Username     string `gorm:"uniqueIndex;not null" json:"username"`
	DisplayName  string `gorm:"not null" json:"display_name"`
	Bio          string `gorm:"type:text" json:"bio"`
	AvatarURL    string `json:"avatar_url"`
	PasswordHash string `gorm:"type:text" json:"-"`
	Role         Role   `gorm:"type:varchar(16);not null;default:user;index" json:"role"`

	// Moderation
	IsBanned  bool       `gorm:"default:false;index" json:"is_banned"`
	BannedAt  *time.Time `json:"banned_at,omitempty"`
	BanReason string     `gorm:"type:text" json:"ban_reason,omitempty"`

	LastActiveAt *time.Time `json:"last_active_at,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// PublicUser is the subset of a User shown next to content
type PublicUser struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
}

func (u *User) Public() PublicUser {
	return PublicUser{ID: u.ID, Username: u.Username, DisplayName: u.DisplayName, AvatarURL: u.AvatarURL}
}

// PublicColumns limits a preloaded user to its public profile fields
func PublicColumns(db *gorm.DB) *gorm.DB {
	return db.Select("id", "username", "display_name", "avatar_url", "bio", "role")
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = generateUUID()
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	return nil
}

func generateUUID() string {
	return uuid.New().String()
}
