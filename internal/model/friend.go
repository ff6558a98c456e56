package model

import (
	"time"

	"gorm.io/gorm"
)

type FriendRequest struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement:false"`
	RequesterID uint64 `gorm:"not null;uniqueIndex:uk_friend_request"`
	RequesteeID uint64 `gorm:"not null;uniqueIndex:uk_friend_request;index"`
	CreatedAt   time.Time
}

func (FriendRequest) TableName() string { return "friend_requests" }

// Friendship 无向好友边，UserAID < UserBID
type Friendship struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement:false"`
	UserAID   uint64 `gorm:"not null;uniqueIndex:uk_friendship;index"`
	UserBID   uint64 `gorm:"not null;uniqueIndex:uk_friendship;index"`
	CreatedAt time.Time
}

func (Friendship) TableName() string { return "friendships" }

// BeforeCreate 保证同一对用户只有一种存储顺序
func (f *Friendship) BeforeCreate(_ *gorm.DB) error {
	if f.UserAID > f.UserBID {
		f.UserAID, f.UserBID = f.UserBID, f.UserAID
	}
	return nil
}

// FriendPair 返回规范化后的 (a, b)
func FriendPair(x, y uint64) (uint64, uint64) {
	if x > y {
		return y, x
	}
	return x, y
}

// Block 有向拉黑边，但判断时双向生效
type Block struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement:false"`
	BlockerID uint64 `gorm:"not null;uniqueIndex:uk_block"`
	BlockedID uint64 `gorm:"not null;uniqueIndex:uk_block;index"`
	CreatedAt time.Time
}

func (Block) TableName() string { return "blocks" }
