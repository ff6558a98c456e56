package model

import "time"

const (
	PostNormal  = 0
	PostDeleted = 1
)

type Post struct {
	ID            uint64    `gorm:"primaryKey;autoIncrement:false"`
	AuthorID      uint64    `gorm:"not null;index:idx_author_time,priority:1"`
	Content       string    `gorm:"type:text"`
	IsFriendsOnly bool      `gorm:"not null;default:false"`
	Status        int       `gorm:"not null;default:0"` // 0=normal 1=deleted
	LikeCount     int64     `gorm:"not null;default:0"`
	CreatedAt     time.Time `gorm:"index:idx_author_time,priority:2,sort:desc;index:idx_created_at"`
	UpdatedAt     time.Time
}

// CuratedAuthor 外部维护的推荐作者名单
type CuratedAuthor struct {
	UserID    uint64 `gorm:"primaryKey;autoIncrement:false"`
	CreatedAt time.Time
}

func (CuratedAuthor) TableName() string { return "curated_authors" }
