package model

import "time"

type User struct {
	ID             uint64 `gorm:"primaryKey;autoIncrement:false"`
	Username       string `gorm:"uniqueIndex;size:32;not null"`
	IsPrivate      bool   `gorm:"not null;default:false"`
	Role           int    `gorm:"default:0"`
	FollowerCount  int64  `gorm:"not null;default:0"`
	FollowingCount int64  `gorm:"not null;default:0"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
