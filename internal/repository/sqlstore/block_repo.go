package sqlstore

import (
	"context"

	"Lee_Social/internal/model"

	"gorm.io/gorm"
)

type BlockRepository struct {
	DB *gorm.DB
}

// IsBlocked 任一方向存在拉黑即视为拉黑
func (r *BlockRepository) IsBlocked(ctx context.Context, a, b uint64) (bool, error) {
	forward, err := r.blocks(ctx, a, b)
	if err != nil || forward {
		return forward, err
	}
	return r.blocks(ctx, b, a)
}

func (r *BlockRepository) blocks(ctx context.Context, blocker, blocked uint64) (bool, error) {
	var n int64
	if err := r.DB.WithContext(ctx).
		Model(&model.Block{}).
		Where("blocker_id = ? AND blocked_id = ?", blocker, blocked).
		Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// BlockedIDs 与 userID 之间存在任一方向拉黑的全部用户
func (r *BlockRepository) BlockedIDs(ctx context.Context, userID uint64) ([]uint64, error) {
	var ids []uint64
	err := r.DB.WithContext(ctx).Raw(`
		SELECT blocked_id FROM blocks WHERE blocker_id = ?
		UNION
		SELECT blocker_id FROM blocks WHERE blocked_id = ?`,
		userID, userID,
	).Scan(&ids).Error
	return ids, err
}

// notBlockedScope 过滤掉与 viewer 存在任一方向拉黑关系的作者，column 为作者列
func notBlockedScope(column string, viewer uint64) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.
			Where(column+" NOT IN (SELECT blocked_id FROM blocks WHERE blocker_id = ?)", viewer).
			Where(column+" NOT IN (SELECT blocker_id FROM blocks WHERE blocked_id = ?)", viewer)
	}
}
