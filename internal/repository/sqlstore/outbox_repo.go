package sqlstore

import (
	"context"

	"Lee_Social/internal/model"

	"gorm.io/gorm"
)

// MaxOutboxRetry 超过后不再投递，留给人工处理
const MaxOutboxRetry = 5

type OutboxRepository struct {
	DB *gorm.DB
}

// Insert 必须和关系变更使用同一个事务句柄
func (r *OutboxRepository) Insert(ctx context.Context, ob *model.SocialOutbox) error {
	return r.DB.WithContext(ctx).Create(ob).Error
}

// List 待投递事件，包含未超过重试上限的失败事件
func (r *OutboxRepository) List(ctx context.Context, batchSize int) ([]model.SocialOutbox, error) {
	var list []model.SocialOutbox
	if err := r.DB.WithContext(ctx).
		Where("status = ? OR (status = ? AND retry < ?)", model.OutboxPending, model.OutboxFailed, MaxOutboxRetry).
		Order("id ASC").
		Limit(batchSize).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// RetryUpdate outbox记录消息失败重试
func (r *OutboxRepository) RetryUpdate(ctx context.Context, id uint64) error {
	return r.DB.WithContext(ctx).Model(&model.SocialOutbox{}).Where("id=?", id).
		Updates(map[string]any{"status": model.OutboxFailed, "retry": gorm.Expr("retry + 1")}).Error
}

// SuccessUpdate outbox成功记录消息更新
func (r *OutboxRepository) SuccessUpdate(ctx context.Context, id uint64) error {
	return r.DB.WithContext(ctx).Model(&model.SocialOutbox{}).Where("id=?", id).
		Update("status", model.OutboxSent).Error
}
