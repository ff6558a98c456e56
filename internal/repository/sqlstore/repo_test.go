package sqlstore

import (
	"context"
	"sort"
	"testing"
	"time"

	"Lee_Social/internal/model"
	"Lee_Social/internal/repository/sqlstore/dbtest"
)

func sorted(ids []uint64) []uint64 {
	out := append([]uint64(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func equalIDs(a, b []uint64) bool {
	a, b = sorted(a), sorted(b)
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestBlockRepositoryIsBothDirections(t *testing.T) {
	db := dbtest.Open(t)
	f := dbtest.NewFixture(t, db)
	ctx := context.Background()
	a, b, c := f.User("a", false), f.User("b", false), f.User("c", false)
	f.Block(a, b)

	repo := &BlockRepository{DB: db}
	for _, pair := range [][2]uint64{{a, b}, {b, a}} {
		blocked, err := repo.IsBlocked(ctx, pair[0], pair[1])
		if err != nil {
			t.Fatalf("is blocked: %v", err)
		}
		if !blocked {
			t.Fatalf("expected %d and %d to be blocked", pair[0], pair[1])
		}
	}
	blocked, err := repo.IsBlocked(ctx, a, c)
	if err != nil {
		t.Fatalf("is blocked: %v", err)
	}
	if blocked {
		t.Fatal("expected a and c not blocked")
	}

	f.Block(c, a)
	ids, err := repo.BlockedIDs(ctx, a)
	if err != nil {
		t.Fatalf("blocked ids: %v", err)
	}
	if !equalIDs(ids, []uint64{b, c}) {
		t.Fatalf("expected [%d %d], got %v", b, c, ids)
	}
}

func TestSocialGraphAuthorIDsUnion(t *testing.T) {
	db := dbtest.Open(t)
	f := dbtest.NewFixture(t, db)
	v := f.User("viewer", false)
	followee, follower, friend, stranger := f.User("followee", false), f.User("follower", false), f.User("friend", false), f.User("stranger", false)
	f.Follow(v, followee)
	f.Follow(follower, v)
	f.Friends(friend, v)
	f.Follow(v, friend) // 同时是好友和关注，只出现一次
	f.Follow(stranger, followee)

	ids, err := (&PostRepository{DB: db}).SocialGraphAuthorIDs(context.Background(), v)
	if err != nil {
		t.Fatalf("social graph: %v", err)
	}
	if !equalIDs(ids, []uint64{followee, follower, friend}) {
		t.Fatalf("unexpected social graph %v", ids)
	}
}

func TestFollowRepositoryActivateIsIdempotent(t *testing.T) {
	db := dbtest.Open(t)
	f := dbtest.NewFixture(t, db)
	ctx := context.Background()
	a, b := f.User("a", false), f.User("b", false)
	repo := &FollowRepository{DB: db}

	changed, err := repo.Activate(ctx, 1, a, b)
	if err != nil || !changed {
		t.Fatalf("first activate: changed=%v err=%v", changed, err)
	}
	changed, err = repo.Activate(ctx, 2, a, b)
	if err != nil || changed {
		t.Fatalf("second activate: changed=%v err=%v", changed, err)
	}
	if n := f.Count(&model.Follow{}, "follower_id = ? AND followee_id = ?", a, b); n != 1 {
		t.Fatalf("expected one edge row, got %d", n)
	}

	changed, err = repo.Deactivate(ctx, a, b)
	if err != nil || !changed {
		t.Fatalf("deactivate: changed=%v err=%v", changed, err)
	}
	changed, err = repo.Activate(ctx, 3, a, b)
	if err != nil || !changed {
		t.Fatalf("reactivate: changed=%v err=%v", changed, err)
	}

	var ua, ub model.User
	db.First(&ua, a)
	db.First(&ub, b)
	if ua.FollowingCount != 1 || ub.FollowerCount != 1 {
		t.Fatalf("unexpected counters following=%d follower=%d", ua.FollowingCount, ub.FollowerCount)
	}
}

func TestFollowRepositoryListCursor(t *testing.T) {
	db := dbtest.Open(t)
	f := dbtest.NewFixture(t, db)
	ctx := context.Background()
	v := f.User("v", false)
	for i := 0; i < 5; i++ {
		f.Follow(v, f.User("u"+string(rune('a'+i)), false))
	}
	repo := &FollowRepository{DB: db}

	page1, next, err := repo.ListFollowings(ctx, v, 0, 3)
	if err != nil {
		t.Fatalf("page1: %v", err)
	}
	if len(page1) != 3 || next == 0 {
		t.Fatalf("expected 3 rows and a cursor, got %d rows next=%d", len(page1), next)
	}
	page2, next2, err := repo.ListFollowings(ctx, v, next, 3)
	if err != nil {
		t.Fatalf("page2: %v", err)
	}
	if len(page2) != 2 || next2 != 0 {
		t.Fatalf("expected last 2 rows, got %d rows next=%d", len(page2), next2)
	}
}

func TestTierPostsExclusions(t *testing.T) {
	db := dbtest.Open(t)
	f := dbtest.NewFixture(t, db)
	ctx := context.Background()
	v := f.User("viewer", false)
	author, blocker, friend := f.User("author", false), f.User("blocker", false), f.User("friend", false)
	f.Friends(v, friend)
	f.Block(blocker, v)

	visible := f.Post(author, time.Minute, false)
	liked := f.Post(author, 2*time.Minute, false)
	f.Like(v, liked)
	hiddenFriendsOnly := f.Post(author, 3*time.Minute, true)
	friendsOnly := f.Post(friend, 4*time.Minute, true)
	f.Post(blocker, 5*time.Minute, false)

	repo := &PostRepository{DB: db}
	q := TierQuery{Viewer: v, AuthorIDs: []uint64{author, blocker, friend}, Limit: 10}
	posts, err := repo.TierPosts(ctx, q)
	if err != nil {
		t.Fatalf("tier posts: %v", err)
	}
	got := make([]uint64, 0, len(posts))
	for _, p := range posts {
		got = append(got, p.ID)
	}
	if len(got) != 2 || got[0] != visible || got[1] != friendsOnly {
		t.Fatalf("expected [%d %d], got %v (hidden %d)", visible, friendsOnly, got, hiddenFriendsOnly)
	}

	n, err := repo.CountTier(ctx, q)
	if err != nil {
		t.Fatalf("count tier: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected count 2, got %d", n)
	}

	q.ExcludeIDs = []uint64{visible}
	posts, err = repo.TierPosts(ctx, q)
	if err != nil {
		t.Fatalf("tier posts: %v", err)
	}
	if len(posts) != 1 || posts[0].ID != friendsOnly {
		t.Fatalf("expected exclusion to apply, got %v", posts)
	}

	// 点过赞的非好友仅好友可见帖子不进入兜底层
	f.Like(v, hiddenFriendsOnly)
	fallback, err := repo.TierPosts(ctx, TierQuery{Viewer: v, LikedOnly: true, Limit: 10})
	if err != nil {
		t.Fatalf("fallback: %v", err)
	}
	if len(fallback) != 1 || fallback[0].ID != liked {
		t.Fatalf("expected liked post in fallback, got %v", fallback)
	}
}

func TestPostLikeAggregates(t *testing.T) {
	db := dbtest.Open(t)
	f := dbtest.NewFixture(t, db)
	ctx := context.Background()
	a, b := f.User("a", false), f.User("b", false)
	p1, p2 := f.Post(a, time.Minute, false), f.Post(a, 2*time.Minute, false)
	f.Like(a, p1)
	f.Like(b, p1)
	f.Comment(b, p2)
	f.Save(b, p2)

	repo := &PostLikeRepository{DB: db}
	likes, err := repo.LikeTotals(ctx, []uint64{p1, p2})
	if err != nil {
		t.Fatalf("like totals: %v", err)
	}
	if likes[p1] != 2 || likes[p2] != 0 {
		t.Fatalf("unexpected like totals %v", likes)
	}
	comments, err := repo.CommentCounts(ctx, []uint64{p1, p2})
	if err != nil {
		t.Fatalf("comment counts: %v", err)
	}
	if comments[p2] != 1 || comments[p1] != 0 {
		t.Fatalf("unexpected comment counts %v", comments)
	}
	saved, err := repo.SavedSet(ctx, b, []uint64{p1, p2})
	if err != nil {
		t.Fatalf("saved set: %v", err)
	}
	if saved[p1] || !saved[p2] {
		t.Fatalf("unexpected saved set %v", saved)
	}
}

func TestOutboxListIncludesRetryableFailures(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()
	repo := &OutboxRepository{DB: db}
	for i := uint64(1); i <= 3; i++ {
		if err := repo.Insert(ctx, &model.SocialOutbox{ID: i, EventType: model.EventFollowed, ActorID: 1, TargetID: 2, Payload: "{}"}); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	if err := repo.SuccessUpdate(ctx, 1); err != nil {
		t.Fatalf("success: %v", err)
	}
	if err := repo.RetryUpdate(ctx, 2); err != nil {
		t.Fatalf("retry: %v", err)
	}
	db.Model(&model.SocialOutbox{}).Where("id = ?", 3).Updates(map[string]any{"status": model.OutboxFailed, "retry": MaxOutboxRetry})

	list, err := repo.List(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID != 2 {
		t.Fatalf("expected only the retryable failure, got %v", list)
	}
}
