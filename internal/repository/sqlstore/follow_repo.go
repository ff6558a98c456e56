package sqlstore

import (
	"context"
	"errors"

	"Lee_Social/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FollowRepository 关注边与关注申请。DB 传事务句柄时所有操作都在该事务内。
type FollowRepository struct {
	DB *gorm.DB
}

// FindEdge 不存在时返回 nil, nil
func (r *FollowRepository) FindEdge(ctx context.Context, followerID, followeeID uint64) (*model.Follow, error) {
	var rel model.Follow
	err := r.DB.WithContext(ctx).
		Where("follower_id=? AND followee_id=?", followerID, followeeID).
		First(&rel).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rel, nil
}

// Activate 设置关系为关注（幂等）。如果状态从未关注切换为已关注，则返回 changed=true。
// id 仅在首次建边时使用。
func (r *FollowRepository) Activate(ctx context.Context, id, followerID, followeeID uint64) (bool, error) {
	rel, err := r.FindEdge(ctx, followerID, followeeID)
	if err != nil {
		return false, err
	}
	if rel == nil {
		rel = &model.Follow{
			ID:         id,
			FollowerID: followerID,
			FolloweeID: followeeID,
			Status:     model.FollowActive,
		}
		if err = r.DB.WithContext(ctx).Create(rel).Error; err != nil {
			return false, err
		}
		return true, r.adjustCounts(ctx, followerID, followeeID, +1)
	}
	// 做幂等，判断是否真的是新关注还是重复请求
	if rel.Status == model.FollowActive {
		return false, nil
	}
	res := r.DB.WithContext(ctx).Model(&model.Follow{}).
		Where("id=? AND status=?", rel.ID, model.FollowInactive).
		Update("status", model.FollowActive)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	return true, r.adjustCounts(ctx, followerID, followeeID, +1)
}

// Deactivate 取消关注（幂等），真正发生变化时返回 true
func (r *FollowRepository) Deactivate(ctx context.Context, followerID, followeeID uint64) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&model.Follow{}).
		Where("follower_id=? AND followee_id=? AND status=?", followerID, followeeID, model.FollowActive).
		Update("status", model.FollowInactive)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	return true, r.adjustCounts(ctx, followerID, followeeID, -1)
}

// IsFollowing 判断是否关注
func (r *FollowRepository) IsFollowing(ctx context.Context, followerID, followeeID uint64) (bool, error) {
	var n int64
	if err := r.DB.WithContext(ctx).
		Model(&model.Follow{}).
		Where("follower_id=? AND followee_id=? AND status=?", followerID, followeeID, model.FollowActive).
		Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// FollowingAmong 返回 ids 中 viewer 已关注的用户
func (r *FollowRepository) FollowingAmong(ctx context.Context, viewer uint64, ids []uint64) ([]uint64, error) {
	var out []uint64
	if len(ids) == 0 {
		return out, nil
	}
	err := r.DB.WithContext(ctx).Model(&model.Follow{}).
		Where("follower_id=? AND status=? AND followee_id IN ?", viewer, model.FollowActive, ids).
		Pluck("followee_id", &out).Error
	return out, err
}

// FindRequest 不存在时返回 nil, nil
func (r *FollowRepository) FindRequest(ctx context.Context, requesterID, requesteeID uint64) (*model.FollowRequest, error) {
	var req model.FollowRequest
	err := r.DB.WithContext(ctx).
		Where("requester_id=? AND requestee_id=?", requesterID, requesteeID).
		First(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// CreateRequest 幂等插入：若已存在 (requester_id, requestee_id) 则不报错
func (r *FollowRepository) CreateRequest(ctx context.Context, req *model.FollowRequest) error {
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "requester_id"}, {Name: "requestee_id"}},
		DoNothing: true,
	}).Create(req).Error
}

// DeleteRequest 返回删除的行数
func (r *FollowRepository) DeleteRequest(ctx context.Context, requesterID, requesteeID uint64) (int64, error) {
	res := r.DB.WithContext(ctx).
		Where("requester_id=? AND requestee_id=?", requesterID, requesteeID).
		Delete(&model.FollowRequest{})
	return res.RowsAffected, res.Error
}

// RequestedAmong 返回 ids 中 viewer 已发出关注申请的用户
func (r *FollowRepository) RequestedAmong(ctx context.Context, viewer uint64, ids []uint64) ([]uint64, error) {
	var out []uint64
	if len(ids) == 0 {
		return out, nil
	}
	err := r.DB.WithContext(ctx).Model(&model.FollowRequest{}).
		Where("requester_id=? AND requestee_id IN ?", viewer, ids).
		Pluck("requestee_id", &out).Error
	return out, err
}

// ListFollowings 获取关注列表，cursor 为上一页最后一条的 id
func (r *FollowRepository) ListFollowings(ctx context.Context, userID uint64, cursor uint64, limit int) ([]model.Follow, uint64, error) {
	q := r.DB.WithContext(ctx).Model(&model.Follow{}).
		Where("follower_id=? AND status=?", userID, model.FollowActive)
	return listFollows(q, cursor, limit)
}

// ListFollowers 获取粉丝列表
func (r *FollowRepository) ListFollowers(ctx context.Context, userID uint64, cursor uint64, limit int) ([]model.Follow, uint64, error) {
	q := r.DB.WithContext(ctx).Model(&model.Follow{}).
		Where("followee_id=? AND status=?", userID, model.FollowActive)
	return listFollows(q, cursor, limit)
}

// ListIncomingRequests 待 userID 处理的关注申请
func (r *FollowRepository) ListIncomingRequests(ctx context.Context, userID uint64, cursor uint64, limit int) ([]model.FollowRequest, uint64, error) {
	limit = normalizeLimit(limit)
	q := r.DB.WithContext(ctx).Where("requestee_id=?", userID)
	if cursor > 0 {
		q = q.Where("id < ?", cursor)
	}
	var rows []model.FollowRequest
	if err := q.Order("id DESC").Limit(limit + 1).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	var next uint64
	if len(rows) > limit {
		next = rows[limit-1].ID
		rows = rows[:limit]
	}
	return rows, next, nil
}

func listFollows(q *gorm.DB, cursor uint64, limit int) ([]model.Follow, uint64, error) {
	limit = normalizeLimit(limit)
	if cursor > 0 {
		q = q.Where("id < ?", cursor)
	}
	var rows []model.Follow
	// 这里limit+1是为了更好的继续分页
	if err := q.Order("id DESC").Limit(limit + 1).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	var next uint64
	if len(rows) > limit {
		next = rows[limit-1].ID
		rows = rows[:limit]
	}
	return rows, next, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 20
	}
	return limit
}

// adjustCounts 自动调整关注者或粉丝数量，不会减到负数
func (r *FollowRepository) adjustCounts(ctx context.Context, followerID, followeeID uint64, delta int64) error {
	if err := r.DB.WithContext(ctx).Model(&model.User{}).
		Where("id=?", followerID).
		UpdateColumn("following_count", gorm.Expr("CASE WHEN following_count + ? < 0 THEN 0 ELSE following_count + ? END", delta, delta)).Error; err != nil {
		return err
	}
	return r.DB.WithContext(ctx).Model(&model.User{}).
		Where("id=?", followeeID).
		UpdateColumn("follower_count", gorm.Expr("CASE WHEN follower_count + ? < 0 THEN 0 ELSE follower_count + ? END", delta, delta)).Error
}
