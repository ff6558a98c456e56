package sqlstore

import (
	"context"

	"Lee_Social/internal/model"

	"gorm.io/gorm"
)

type CuratedRepository struct {
	DB *gorm.DB
}

// AuthorIDs 当前推荐作者名单
func (r *CuratedRepository) AuthorIDs(ctx context.Context) ([]uint64, error) {
	ids := make([]uint64, 0)
	err := r.DB.WithContext(ctx).Model(&model.CuratedAuthor{}).
		Order("user_id ASC").
		Pluck("user_id", &ids).Error
	return ids, err
}
