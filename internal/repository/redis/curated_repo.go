package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	CuratedKey     = "curated:authors"
	CuratedLockKey = "lock:curated:authors"
	LockTTL        = 3 * time.Second
)

// CuratedCacheRepository 多实例共享的推荐作者名单
type CuratedCacheRepository struct {
	RDB *redis.Client
	ttl time.Duration
}

func NewCuratedCacheRepository(rdb *redis.Client, ttl time.Duration) *CuratedCacheRepository {
	return &CuratedCacheRepository{RDB: rdb, ttl: ttl}
}

// Get 第二个返回值表示缓存是否命中
func (r *CuratedCacheRepository) Get(ctx context.Context) ([]uint64, bool, error) {
	raw, err := r.RDB.Get(ctx, CuratedKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var ids []uint64
	if err := json.Unmarshal(raw, &ids); err != nil {
		// 脏数据当作未命中，交给回源覆盖
		return nil, false, nil
	}
	return ids, true, nil
}

// Set 回填名单，空名单也写入，避免反复回源
func (r *CuratedCacheRepository) Set(ctx context.Context, ids []uint64) error {
	if ids == nil {
		ids = []uint64{}
	}
	raw, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return r.RDB.Set(ctx, CuratedKey, raw, r.ttl).Err()
}

// Invalidate 名单被外部修改后调用
func (r *CuratedCacheRepository) Invalidate(ctx context.Context) error {
	return r.RDB.Del(ctx, CuratedKey).Err()
}

type DistLock struct {
	RDB *redis.Client
}

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
else
  return 0
end`)

// Acquire 请求加分布式锁
func (l *DistLock) Acquire(ctx context.Context, key, token string) (bool, error) {
	return l.RDB.SetNX(ctx, key, token, LockTTL).Result()
}

// Release 用lua保证原子性，只释放自己持有的锁
func (l *DistLock) Release(ctx context.Context, key, token string) error {
	_, err := releaseScript.Run(ctx, l.RDB, []string{key}, token).Result()
	return err
}
