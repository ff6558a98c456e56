package sqlstore

import (
	"context"

	"Lee_Social/internal/model"

	"gorm.io/gorm"
)

// PostLikeRepository feed 标注用的点赞/收藏/评论聚合查询
type PostLikeRepository struct {
	DB *gorm.DB
}

type postCount struct {
	PostID uint64
	Total  int64
}

// LikeTotals 实时聚合点赞数，不依赖 posts.like_count 冗余计数
func (r *PostLikeRepository) LikeTotals(ctx context.Context, postIDs []uint64) (map[uint64]int64, error) {
	return r.countBy(ctx, &model.PostLike{}, postIDs)
}

func (r *PostLikeRepository) CommentCounts(ctx context.Context, postIDs []uint64) (map[uint64]int64, error) {
	return r.countBy(ctx, &model.Comment{}, postIDs)
}

func (r *PostLikeRepository) countBy(ctx context.Context, table any, postIDs []uint64) (map[uint64]int64, error) {
	out := make(map[uint64]int64, len(postIDs))
	if len(postIDs) == 0 {
		return out, nil
	}
	var rows []postCount
	if err := r.DB.WithContext(ctx).Model(table).
		Select("post_id, COUNT(*) AS total").
		Where("post_id IN ?", postIDs).
		Group("post_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.PostID] = row.Total
	}
	return out, nil
}

func (r *PostLikeRepository) LikedSet(ctx context.Context, userID uint64, postIDs []uint64) (map[uint64]bool, error) {
	return r.memberSet(ctx, &model.PostLike{}, userID, postIDs)
}

func (r *PostLikeRepository) SavedSet(ctx context.Context, userID uint64, postIDs []uint64) (map[uint64]bool, error) {
	return r.memberSet(ctx, &model.PostSave{}, userID, postIDs)
}

func (r *PostLikeRepository) memberSet(ctx context.Context, table any, userID uint64, postIDs []uint64) (map[uint64]bool, error) {
	out := make(map[uint64]bool, len(postIDs))
	if len(postIDs) == 0 {
		return out, nil
	}
	var ids []uint64
	if err := r.DB.WithContext(ctx).Model(table).
		Where("user_id = ? AND post_id IN ?", userID, postIDs).
		Pluck("post_id", &ids).Error; err != nil {
		return nil, err
	}
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}
