package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"Lee_Social/internal/pkg/errs"
	redisrepo "Lee_Social/internal/repository/redis"
	"Lee_Social/internal/repository/sqlstore"

	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

const DefaultCuratedTTL = 6 * time.Hour

// CuratedLoader 回源加载推荐作者名单
type CuratedLoader func(ctx context.Context) ([]uint64, error)

// CuratedAuthors 进程内的推荐作者缓存，过期后由第一个读者惰性刷新，并发读者合并为一次回源。
type CuratedAuthors struct {
	load   CuratedLoader
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
	group  singleflight.Group

	mu       sync.RWMutex
	ids      []uint64
	loadedAt time.Time
	loaded   bool
}

type CuratedOption func(*CuratedAuthors)

// WithClock 测试时注入时钟
func WithClock(now func() time.Time) CuratedOption {
	return func(c *CuratedAuthors) { c.now = now }
}

func WithCuratedLogger(l *slog.Logger) CuratedOption {
	return func(c *CuratedAuthors) {
		if l != nil {
			c.logger = l
		}
	}
}

func NewCuratedAuthors(load CuratedLoader, ttl time.Duration, opts ...CuratedOption) *CuratedAuthors {
	if ttl <= 0 {
		ttl = DefaultCuratedTTL
	}
	c := &CuratedAuthors{load: load, ttl: ttl, now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *CuratedAuthors) fresh() ([]uint64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.loaded && c.now().Sub(c.loadedAt) < c.ttl {
		return c.ids, true
	}
	return nil, false
}

// AuthorIDs 刷新失败时，若之前加载过则返回旧名单，否则返回 ServerError
func (c *CuratedAuthors) AuthorIDs(ctx context.Context) ([]uint64, error) {
	if ids, ok := c.fresh(); ok {
		return ids, nil
	}
	v, err, _ := c.group.Do("curated", func() (any, error) {
		// 第二次检查，可能刚被其他读者刷新
		if ids, ok := c.fresh(); ok {
			return ids, nil
		}
		// 合并的等待者共享这次加载，不随首个调用方取消
		ids, err := c.load(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.ids = ids
		c.loadedAt = c.now()
		c.loaded = true
		c.mu.Unlock()
		return ids, nil
	})
	if err == nil {
		return v.([]uint64), nil
	}

	c.mu.RLock()
	stale, had := c.ids, c.loaded
	c.mu.RUnlock()
	if had {
		c.logger.WarnContext(ctx, "curated authors refresh failed, serving stale list", "error", err)
		return stale, nil
	}
	c.logger.ErrorContext(ctx, "curated authors load failed", "error", err)
	return nil, errs.Wrap(errs.ServerError, "load curated authors", err)
}

// DBCuratedLoader 直接读 curated_authors 表
func DBCuratedLoader(db *gorm.DB) CuratedLoader {
	repo := &sqlstore.CuratedRepository{DB: db}
	return repo.AuthorIDs
}

// SharedCuratedLoader 多实例共享 Redis 快照。未命中时抢锁回源，抢不到锁则稍后再读一次缓存。
func SharedCuratedLoader(cache *redisrepo.CuratedCacheRepository, lock *redisrepo.DistLock, source CuratedLoader, logger *slog.Logger) CuratedLoader {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context) ([]uint64, error) {
		// 第一次从缓存读
		if ids, ok, err := cache.Get(ctx); err == nil && ok {
			return ids, nil
		} else if err != nil {
			logger.WarnContext(ctx, "curated cache read failed", "error", err)
		}

		token := fmt.Sprintf("%d", time.Now().UnixNano())
		got, err := lock.Acquire(ctx, redisrepo.CuratedLockKey, token)
		if err != nil {
			logger.WarnContext(ctx, "curated lock acquire failed", "error", err)
		}
		if got {
			defer func() {
				if err := lock.Release(ctx, redisrepo.CuratedLockKey, token); err != nil {
					logger.WarnContext(ctx, "curated lock release failed", "error", err)
				}
			}()
			// 第二次检查
			if ids, ok, err := cache.Get(ctx); err == nil && ok {
				return ids, nil
			}
			ids, err := source(ctx)
			if err != nil {
				return nil, err
			}
			if err := cache.Set(ctx, ids); err != nil {
				logger.WarnContext(ctx, "curated cache write failed", "error", err)
			}
			return ids, nil
		}

		// 没拿到锁，短暂退避后再读一次缓存，避免全体打DB
		t := time.NewTimer(50 * time.Millisecond)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
		if ids, ok, err := cache.Get(ctx); err == nil && ok {
			return ids, nil
		}
		return source(ctx)
	}
}
