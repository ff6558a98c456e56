// Package dbtest 为测试提供内存 SQLite 存储和数据构造工具
package dbtest

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"Lee_Social/internal/model"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

// Open 每次调用返回一个独立的内存库，单连接避免 SQLite 写锁竞争
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:memdb%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(model.AllModels()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// Seq 顺序递增的 ID 源
type Seq struct {
	n atomic.Uint64
}

func (s *Seq) NextID() uint64 {
	return s.n.Add(1)
}

// Fixture 构造测试数据，ID 从 100000 开始以免与 Seq 冲突
type Fixture struct {
	T    testing.TB
	DB   *gorm.DB
	ids  atomic.Uint64
	Base time.Time
}

func NewFixture(t testing.TB, db *gorm.DB) *Fixture {
	f := &Fixture{T: t, DB: db, Base: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	f.ids.Store(100000)
	return f
}

func (f *Fixture) next() uint64 {
	return f.ids.Add(1)
}

func (f *Fixture) create(v any) {
	f.T.Helper()
	if err := f.DB.WithContext(context.Background()).Create(v).Error; err != nil {
		f.T.Fatalf("create %T: %v", v, err)
	}
}

func (f *Fixture) User(name string, private bool) uint64 {
	f.T.Helper()
	u := &model.User{ID: f.next(), Username: name, IsPrivate: private}
	f.create(u)
	return u.ID
}

func (f *Fixture) Follow(follower, followee uint64) {
	f.T.Helper()
	f.create(&model.Follow{ID: f.next(), FollowerID: follower, FolloweeID: followee, Status: model.FollowActive})
}

func (f *Fixture) FollowRequest(requester, requestee uint64) {
	f.T.Helper()
	f.create(&model.FollowRequest{ID: f.next(), RequesterID: requester, RequesteeID: requestee})
}

func (f *Fixture) Friends(x, y uint64) {
	f.T.Helper()
	f.create(&model.Friendship{ID: f.next(), UserAID: x, UserBID: y})
}

func (f *Fixture) FriendRequest(requester, requestee uint64) {
	f.T.Helper()
	f.create(&model.FriendRequest{ID: f.next(), RequesterID: requester, RequesteeID: requestee})
}

func (f *Fixture) Block(blocker, blocked uint64) {
	f.T.Helper()
	f.create(&model.Block{ID: f.next(), BlockerID: blocker, BlockedID: blocked})
}

// Post age 越大越旧
func (f *Fixture) Post(author uint64, age time.Duration, friendsOnly bool) uint64 {
	f.T.Helper()
	p := &model.Post{ID: f.next(), AuthorID: author, Content: "post", IsFriendsOnly: friendsOnly, CreatedAt: f.Base.Add(-age)}
	f.create(p)
	return p.ID
}

// Posts 连续创建 n 条帖子，按时间从新到旧返回
func (f *Fixture) Posts(author uint64, n int, start time.Duration) []uint64 {
	f.T.Helper()
	ids := make([]uint64, 0, n)
	for i := 0; i < n; i++ {
		ids = append(ids, f.Post(author, start+time.Duration(i)*time.Minute, false))
	}
	return ids
}

func (f *Fixture) Like(user, post uint64) {
	f.T.Helper()
	f.create(&model.PostLike{ID: f.next(), UserID: user, PostID: post})
}

func (f *Fixture) Save(user, post uint64) {
	f.T.Helper()
	f.create(&model.PostSave{ID: f.next(), UserID: user, PostID: post})
}

func (f *Fixture) Comment(author, post uint64) {
	f.T.Helper()
	f.create(&model.Comment{ID: f.next(), AuthorID: author, PostID: post, Content: "nice"})
}

func (f *Fixture) Curated(user uint64) {
	f.T.Helper()
	f.create(&model.CuratedAuthor{UserID: user})
}

// Count 表中满足条件的行数
func (f *Fixture) Count(m any, query string, args ...any) int64 {
	f.T.Helper()
	var n int64
	if err := f.DB.Model(m).Where(query, args...).Count(&n).Error; err != nil {
		f.T.Fatalf("count %T: %v", m, err)
	}
	return n
}
