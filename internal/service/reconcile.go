package service

import (
	"context"
	"log/slog"
	"time"

	"Lee_Social/internal/repository/sqlstore"

	"gorm.io/gorm"
)

// FollowCountReconciler 用户关注计数对账，修正 users 表上的冗余计数
type FollowCountReconciler struct {
	repo      *sqlstore.FollowCountReconcilerRepo
	batchSize int
	interval  time.Duration
	logger    *slog.Logger
}

func NewFollowCountReconciler(db *gorm.DB, interval time.Duration, logger *slog.Logger) *FollowCountReconciler {
	if interval <= 0 {
		interval = 5 * time.Minute // 对账的间隔时间
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FollowCountReconciler{
		repo:      &sqlstore.FollowCountReconcilerRepo{DB: db},
		batchSize: 500, // 设置一次对账的大小
		interval:  interval,
		logger:    logger,
	}
}

// Run 对账定时任务启动器
func (r *FollowCountReconciler) Run(ctx context.Context) {
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.reconcileOnce(ctx)
		}
	}
}

// reconcileOnce 按 id 分批扫描全部用户，返回修正的用户数
func (r *FollowCountReconciler) reconcileOnce(ctx context.Context) int {
	fixed := 0
	var lastID uint64
	for {
		users, next, err := r.repo.ReconcileList(ctx, r.batchSize, lastID)
		if err != nil {
			r.logger.ErrorContext(ctx, "reconcile list failed", "last_id", lastID, "error", err)
			return fixed
		}
		if len(users) == 0 {
			return fixed
		}
		lastID = next

		for _, u := range users {
			// 先在follow表查询真实值，再和user表比对更新
			realFollowing, err := r.repo.RealFollowings(ctx, u.ID)
			if err != nil {
				r.logger.ErrorContext(ctx, "count followings failed", "user_id", u.ID, "error", err)
				continue
			}
			realFollower, err := r.repo.RealFollowers(ctx, u.ID)
			if err != nil {
				r.logger.ErrorContext(ctx, "count followers failed", "user_id", u.ID, "error", err)
				continue
			}
			changed := false
			if realFollowing != u.FollowingCount {
				if err := r.repo.ReconcileFollowings(ctx, u.ID, realFollowing); err == nil {
					changed = true
				}
			}
			if realFollower != u.FollowerCount {
				if err := r.repo.ReconcileFollowers(ctx, u.ID, realFollower); err == nil {
					changed = true
				}
			}
			if changed {
				fixed++
				r.logger.InfoContext(ctx, "follow counters reconciled",
					"user_id", u.ID, "following", realFollowing, "followers", realFollower)
			}
		}
		if len(users) < r.batchSize {
			return fixed
		}
	}
}
