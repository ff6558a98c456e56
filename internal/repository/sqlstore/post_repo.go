package sqlstore

import (
	"context"

	"Lee_Social/internal/model"

	"gorm.io/gorm"
)

type PostRepository struct {
	DB *gorm.DB
}

// SocialGraphAuthorIDs userID 关注的人、关注 userID 的人以及好友的并集
func (r *PostRepository) SocialGraphAuthorIDs(ctx context.Context, userID uint64) ([]uint64, error) {
	var ids []uint64
	err := r.DB.WithContext(ctx).Raw(`
		SELECT followee_id FROM follows WHERE follower_id = ? AND status = ?
		UNION
		SELECT follower_id FROM follows WHERE followee_id = ? AND status = ?
		UNION
		SELECT user_b_id FROM friendships WHERE user_a_id = ?
		UNION
		SELECT user_a_id FROM friendships WHERE user_b_id = ?`,
		userID, model.FollowActive, userID, model.FollowActive, userID, userID,
	).Scan(&ids).Error
	return ids, err
}

// TierQuery 单个 feed 层级的查询条件
type TierQuery struct {
	Viewer uint64
	// AuthorIDs 候选作者；LikedOnly 为 true 时忽略
	AuthorIDs []uint64
	// LikedOnly 兜底层：只取 viewer 点过赞的帖子
	LikedOnly  bool
	ExcludeIDs []uint64
	Offset     int
	Limit      int
}

// TierPosts 按时间倒序返回一个层级的候选帖子
func (r *PostRepository) TierPosts(ctx context.Context, q TierQuery) ([]model.Post, error) {
	db := r.DB.WithContext(ctx).Model(&model.Post{}).Scopes(tierScope(q))
	if len(q.ExcludeIDs) > 0 {
		db = db.Where("posts.id NOT IN ?", q.ExcludeIDs)
	}
	var list []model.Post
	err := db.
		Order("posts.created_at DESC, posts.id DESC").
		Offset(q.Offset).
		Limit(q.Limit).
		Find(&list).Error
	return list, err
}

// CountTier 层级候选总数，不考虑 ExcludeIDs，用于跨页估算后续层级的偏移
func (r *PostRepository) CountTier(ctx context.Context, q TierQuery) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&model.Post{}).Scopes(tierScope(q)).Count(&n).Error
	return n, err
}

func tierScope(q TierQuery) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		db = db.Where("posts.status = ?", model.PostNormal).
			Scopes(notBlockedScope("posts.author_id", q.Viewer))
		if q.LikedOnly {
			return db.
				Where("posts.id IN (SELECT post_id FROM post_likes WHERE user_id = ?)", q.Viewer).
				Scopes(friendsOnlyVisibleScope(q.Viewer))
		}
		return db.
			Where("posts.author_id IN ?", q.AuthorIDs).
			Where("posts.author_id <> ?", q.Viewer).
			Where("posts.id NOT IN (SELECT post_id FROM post_likes WHERE user_id = ?)", q.Viewer).
			Scopes(friendsOnlyVisibleScope(q.Viewer))
	}
}

// friendsOnlyVisibleScope 仅好友可见的帖子只对作者的好友展示
func friendsOnlyVisibleScope(viewer uint64) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(`(posts.is_friends_only = ?
			OR posts.author_id IN (SELECT user_b_id FROM friendships WHERE user_a_id = ?)
			OR posts.author_id IN (SELECT user_a_id FROM friendships WHERE user_b_id = ?))`,
			false, viewer, viewer)
	}
}

// ListByAuthor 个人主页帖子，withFriendsOnly 控制是否包含仅好友可见
func (r *PostRepository) ListByAuthor(ctx context.Context, authorID uint64, withFriendsOnly bool, offset, limit int) ([]model.Post, error) {
	q := r.DB.WithContext(ctx).
		Where("author_id = ? AND status = ?", authorID, model.PostNormal)
	if !withFriendsOnly {
		q = q.Where("is_friends_only = ?", false)
	}
	var list []model.Post
	err := q.Order("created_at DESC, id DESC").Offset(offset).Limit(limit).Find(&list).Error
	return list, err
}
