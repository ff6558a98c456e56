package sqlstore

import (
	"context"
	"errors"

	"Lee_Social/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type FriendRepository struct {
	DB *gorm.DB
}

func (r *FriendRepository) AreFriends(ctx context.Context, x, y uint64) (bool, error) {
	a, b := model.FriendPair(x, y)
	var n int64
	if err := r.DB.WithContext(ctx).Model(&model.Friendship{}).
		Where("user_a_id=? AND user_b_id=?", a, b).
		Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// CreateFriendship 幂等建边，已是好友时不报错，返回新插入的行数
func (r *FriendRepository) CreateFriendship(ctx context.Context, f *model.Friendship) (int64, error) {
	f.UserAID, f.UserBID = model.FriendPair(f.UserAID, f.UserBID)
	res := r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_a_id"}, {Name: "user_b_id"}},
		DoNothing: true,
	}).Create(f)
	return res.RowsAffected, res.Error
}

func (r *FriendRepository) DeleteFriendship(ctx context.Context, x, y uint64) (int64, error) {
	a, b := model.FriendPair(x, y)
	res := r.DB.WithContext(ctx).
		Where("user_a_id=? AND user_b_id=?", a, b).
		Delete(&model.Friendship{})
	return res.RowsAffected, res.Error
}

// FindRequest 不存在时返回 nil, nil
func (r *FriendRepository) FindRequest(ctx context.Context, requesterID, requesteeID uint64) (*model.FriendRequest, error) {
	var req model.FriendRequest
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

func (r *FriendRepository) CreateRequest(ctx context.Context, req *model.FriendRequest) error {
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "requester_id"}, {Name: "requestee_id"}},
		DoNothing: true,
	}).Create(req).Error
}

// DeleteRequests 删除 requester -> requestee 方向的全部待处理申请
func (r *FriendRepository) DeleteRequests(ctx context.Context, requesterID, requesteeID uint64) (int64, error) {
	res := r.DB.WithContext(ctx).
		Where("requester_id=? AND requestee_id=?", requesterID, requesteeID).
		Delete(&model.FriendRequest{})
	return res.RowsAffected, res.Error
}

// FriendIDs userIDs 中任一用户的全部好友
func (r *FriendRepository) FriendIDs(ctx context.Context, userIDs []uint64) ([]uint64, error) {
	var ids []uint64
	if len(userIDs) == 0 {
		return ids, nil
	}
	err := r.DB.WithContext(ctx).Raw(`
		SELECT user_b_id FROM friendships WHERE user_a_id IN ?
		UNION
		SELECT user_a_id FROM friendships WHERE user_b_id IN ?`,
		userIDs, userIDs,
	).Scan(&ids).Error
	return ids, err
}

// FriendsAmong 返回 ids 中与 viewer 是好友的用户
func (r *FriendRepository) FriendsAmong(ctx context.Context, viewer uint64, ids []uint64) ([]uint64, error) {
	var out []uint64
	if len(ids) == 0 {
		return out, nil
	}
	err := r.DB.WithContext(ctx).Raw(`
		SELECT user_b_id FROM friendships WHERE user_a_id = ? AND user_b_id IN ?
		UNION
		SELECT user_a_id FROM friendships WHERE user_b_id = ? AND user_a_id IN ?`,
		viewer, ids, viewer, ids,
	).Scan(&out).Error
	return out, err
}

// RequestsAmong viewer 与 ids 之间任一方向的待处理好友申请
func (r *FriendRepository) RequestsAmong(ctx context.Context, viewer uint64, ids []uint64) ([]model.FriendRequest, error) {
	var out []model.FriendRequest
	if len(ids) == 0 {
		return out, nil
	}
	err := r.DB.WithContext(ctx).
		Where("(requester_id = ? AND requestee_id IN ?) OR (requestee_id = ? AND requester_id IN ?)", viewer, ids, viewer, ids).
		Find(&out).Error
	return out, err
}

// ListFriends 按好友关系 id 游标分页
func (r *FriendRepository) ListFriends(ctx context.Context, userID uint64, cursor uint64, limit int) ([]model.Friendship, uint64, error) {
	limit = normalizeLimit(limit)
	q := r.DB.WithContext(ctx).Where("(user_a_id = ? OR user_b_id = ?)", userID, userID)
	if cursor > 0 {
		q = q.Where("id < ?", cursor)
	}
	var rows []model.Friendship
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

// ListIncomingRequests 待 userID 处理的好友申请
func (r *FriendRepository) ListIncomingRequests(ctx context.Context, userID uint64, cursor uint64, limit int) ([]model.FriendRequest, uint64, error) {
	limit = normalizeLimit(limit)
	q := r.DB.WithContext(ctx).Where("requestee_id=?", userID)
	if cursor > 0 {
		q = q.Where("id < ?", cursor)
	}
	var rows []model.FriendRequest
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
