package model

import "time"

type PostLike struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement:false"`
	UserID    uint64 `gorm:"not null;uniqueIndex:uk_like_user_post"`
	PostID    uint64 `gorm:"not null;uniqueIndex:uk_like_user_post;index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (PostLike) TableName() string {
	return "post_likes"
}

type PostSave struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement:false"`
	UserID    uint64 `gorm:"not null;uniqueIndex:uk_save_user_post"`
	PostID    uint64 `gorm:"not null;uniqueIndex:uk_save_user_post;index"`
	CreatedAt time.Time
}

func (PostSave) TableName() string { return "post_saves" }

type Comment struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement:false"`
	PostID    uint64 `gorm:"not null;index"`
	AuthorID  uint64 `gorm:"not null"`
	Content   string `gorm:"type:text"`
	CreatedAt time.Time
}
