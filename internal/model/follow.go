package model

import "time"

const (
	FollowInactive int8 = 0
	FollowActive   int8 = 1
)

// Follow 单表有向关注边，两端都有索引
type Follow struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement:false"`
	FollowerID uint64 `gorm:"not null;index:idx_follower_id;uniqueIndex:uk_follower_followee"`
	FolloweeID uint64 `gorm:"not null;index:idx_followee_id;uniqueIndex:uk_follower_followee"`
	Status     int8   `gorm:"not null;default:1;comment:'1=follow,0=unfollow'"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TableName sets table name for Follow
func (Follow) TableName() string {
	return "follows"
}

// FollowRequest 关注私密账号时的待处理申请，处理后删除
type FollowRequest struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement:false"`
	RequesterID uint64 `gorm:"not null;uniqueIndex:uk_follow_request"`
	RequesteeID uint64 `gorm:"not null;uniqueIndex:uk_follow_request;index"`
	CreatedAt   time.Time
}

func (FollowRequest) TableName() string { return "follow_requests" }

// 关系事件类型
const (
	EventFollowRequested = "follow_requested"
	EventFollowed        = "followed"
	EventUnfollowed      = "unfollowed"
	EventFriendRequested = "friend_requested"
	EventFriendAccepted  = "friend_accepted"
	EventUnfriended      = "unfriended"
)

const (
	OutboxPending int8 = 0
	OutboxSent    int8 = 1
	OutboxFailed  int8 = 2
)

// SocialOutbox 关系事件表，和关系变更写在同一个事务里
type SocialOutbox struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement:false"`
	EventType string `gorm:"size:32;not null"`
	ActorID   uint64 `gorm:"not null"`
	TargetID  uint64 `gorm:"not null"`
	Payload   string `gorm:"type:text;not null"`
	Status    int8   `gorm:"not null;default:0;index;comment:'0=pending,1=sent,2=failed'"`
	Retry     int    `gorm:"not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (SocialOutbox) TableName() string { return "social_outbox" }
