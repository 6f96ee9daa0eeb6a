package models

import (
	"time"

	"gorm.io/gorm"
)

// DeletedCommentBody replaces the text of a soft-deleted comment
const DeletedCommentBody = "[comment deleted]"

// Comment belongs to a story, episode or article. ParentID allows one level of replies.
type Comment struct {
	ID         string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	AuthorID   string     `gorm:"type:varchar(36);not null;index" json:"author_id"`
	Author     *User      `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	TargetType TargetKind `gorm:"type:varchar(16);not null" json:"target_type"`
	TargetID   string     `gorm:"type:varchar(36);not null" json:"target_id"`
	ParentID   *string    `gorm:"type:varchar(36)" json:"parent_id,omitempty"`
	Body       string     `gorm:"type:text;not null" json:"body"`

	LikeCount  int  `gorm:"default:0" json:"like_count"`
	ReplyCount int  `gorm:"-" json:"reply_count"`
	IsHidden   bool `gorm:"default:false" json:"is_hidden"`
	IsDeleted  bool `gorm:"default:false" json:"is_deleted"`

	EditedAt  *time.Time `json:"edited_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (c *Comment) Target() TargetRef {
	return TargetRef{Kind: c.TargetType, ID: c.TargetID}
}

// Reaction is a like on any reactable target. Un-liking deletes the row.
type Reaction struct {
	ID         string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID     string     `gorm:"type:varchar(36);not null;uniqueIndex:idx_reactions_user_target" json:"user_id"`
	TargetType TargetKind `gorm:"type:varchar(16);not null;uniqueIndex:idx_reactions_user_target;index:idx_reactions_target" json:"target_type"`
	TargetID   string     `gorm:"type:varchar(36);not null;uniqueIndex:idx_reactions_user_target;index:idx_reactions_target" json:"target_id"`
	Kind       string     `gorm:"type:varchar(16);not null;default:like" json:"kind"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Favorite bookmarks a story or article for a user
type Favorite struct {
	ID         string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID     string     `gorm:"type:varchar(36);not null;uniqueIndex:idx_favorites_user_target" json:"user_id"`
	TargetType TargetKind `gorm:"type:varchar(16);not null;uniqueIndex:idx_favorites_user_target" json:"target_type"`
	TargetID   string     `gorm:"type:varchar(36);not null;uniqueIndex:idx_favorites_user_target" json:"target_id"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Rating is a 1..5 score; one row per user and story
type Rating struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID    string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_ratings_user_story" json:"user_id"`
	StoryID   string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_ratings_user_story;index" json:"story_id"`
	Value     int       `gorm:"not null;check:chk_ratings_value,value >= 1 AND value <= 5" json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StoryView records a counted view of a story, episode or article
type StoryView struct {
	ID         string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	TargetType TargetKind `gorm:"type:varchar(16);not null" json:"target_type"`
	TargetID   string     `gorm:"type:varchar(36);not null" json:"target_id"`
	UserID     *string    `gorm:"type:varchar(36)" json:"user_id,omitempty"`
	IPAddress  string     `gorm:"type:varchar(64)" json:"ip_address"`
	UserAgent  string     `gorm:"type:text" json:"user_agent"`
	ViewedAt   time.Time  `gorm:"not null" json:"viewed_at"`
}

func (f *Favorite) Target() TargetRef {
	return TargetRef{Kind: f.TargetType, ID: f.TargetID}
}

func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = generateUUID()
	}
	return nil
}

func (r *Reaction) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = generateUUID()
	}
	if r.Kind == "" {
		r.Kind = "like"
	}
	return nil
}

func (f *Favorite) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = generateUUID()
	}
	return nil
}

func (r *Rating) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = generateUUID()
	}
	return nil
}

func (v *StoryView) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = generateUUID()
	}
	return nil
}
