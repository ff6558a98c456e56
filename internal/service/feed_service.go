package service

import (
	"context"
	"log/slog"

	"Lee_Social/internal/model"
	"Lee_Social/internal/pkg/errs"
	"Lee_Social/internal/repository/sqlstore"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const DefaultFeedPageSize = 20

var ErrInvalidPage = errs.New(errs.InvalidArgument, "page must not be negative")

// CuratedSource 推荐作者名单
type CuratedSource interface {
	AuthorIDs(ctx context.Context) ([]uint64, error)
}

// FeedService 按层级拼装 feed：社交关系 > 好友的好友 > 推荐作者 > 已点赞内容。
// 读路径不加锁，跨页分页是尽力而为的。
type FeedService struct {
	db        *gorm.DB
	relations *RelationService
	curated   CuratedSource
	pageSize  int
	logger    *slog.Logger
	tracer    trace.Tracer
}

func NewFeedService(db *gorm.DB, relations *RelationService, curated CuratedSource, pageSize int, logger *slog.Logger) *FeedService {
	if pageSize <= 0 {
		pageSize = DefaultFeedPageSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FeedService{
		db:        db,
		relations: relations,
		curated:   curated,
		pageSize:  pageSize,
		logger:    logger,
		tracer:    otel.Tracer("Lee_Social/feed"),
	}
}

// tierSource 单个层级；authors 延迟计算，前一层级填满时不会查询
type tierSource struct {
	tier      model.FeedTier
	likedOnly bool
	authors   func(ctx context.Context) ([]uint64, error)
}

// Page 返回 viewer 的第 page 页（从 0 开始）
func (s *FeedService) Page(ctx context.Context, viewer uint64, page int) ([]model.FeedItem, error) {
	if viewer == 0 {
		return nil, ErrInvalidUser
	}
	if page < 0 {
		return nil, ErrInvalidPage
	}
	ctx, span := s.tracer.Start(ctx, "feed.Page",
		trace.WithAttributes(attribute.Int64("viewer", int64(viewer)), attribute.Int("page", page)))
	defer span.End()

	users := &sqlstore.UserRepository{DB: s.db}
	ok, err := users.Exists(ctx, viewer)
	if err != nil {
		return nil, s.fail(ctx, "load viewer", err)
	}
	if !ok {
		return nil, ErrUserNotFound
	}

	items, err := s.collect(ctx, viewer, page)
	if err != nil {
		return nil, err
	}
	if err := s.annotate(ctx, viewer, items); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("feed.items", len(items)))
	return items, nil
}

func (s *FeedService) collect(ctx context.Context, viewer uint64, page int) ([]model.FeedItem, error) {
	posts := &sqlstore.PostRepository{DB: s.db}
	friends := &sqlstore.FriendRepository{DB: s.db}

	var direct []uint64
	tiers := []tierSource{
		{tier: model.TierDirectGraph, authors: func(ctx context.Context) ([]uint64, error) {
			ids, err := posts.SocialGraphAuthorIDs(ctx, viewer)
			direct = ids
			return ids, err
		}},
		{tier: model.TierFriendOfFriend, authors: func(ctx context.Context) ([]uint64, error) {
			mine, err := friends.FriendIDs(ctx, []uint64{viewer})
			if err != nil || len(mine) == 0 {
				return nil, err
			}
			fof, err := friends.FriendIDs(ctx, mine)
			if err != nil {
				return nil, err
			}
			skip := make(map[uint64]struct{}, len(direct)+1)
			skip[viewer] = struct{}{}
			for _, id := range direct {
				skip[id] = struct{}{}
			}
			return subtract(fof, skip), nil
		}},
		{tier: model.TierCurated, authors: s.curated.AuthorIDs},
		{tier: model.TierFallback, likedOnly: true},
	}

	items := make([]model.FeedItem, 0, s.pageSize)
	collected := make([]uint64, 0, s.pageSize)
	remaining := s.pageSize
	// 越过前面各页已经展示过的条数，减去更高层级的总量后作为下一层级的偏移
	skip := page * s.pageSize

	for _, src := range tiers {
		if remaining <= 0 {
			break
		}
		tctx, span := s.tracer.Start(ctx, "feed.tier",
			trace.WithAttributes(attribute.String("tier", src.tier.String())))

		q := sqlstore.TierQuery{Viewer: viewer, LikedOnly: src.likedOnly}
		if !src.likedOnly {
			authors, err := src.authors(tctx)
			if err != nil {
				span.End()
				return nil, s.fail(ctx, "load "+src.tier.String()+" authors", err)
			}
			if len(authors) == 0 {
				span.End()
				continue
			}
			q.AuthorIDs = authors
		}
		q.ExcludeIDs = collected
		q.Offset = skip
		q.Limit = remaining

		list, err := posts.TierPosts(tctx, q)
		if err != nil {
			span.End()
			return nil, s.fail(ctx, "query "+src.tier.String()+" posts", err)
		}
		for _, p := range list {
			items = append(items, model.FeedItem{Post: p, Tier: src.tier})
			collected = append(collected, p.ID)
		}
		remaining -= len(list)
		span.SetAttributes(attribute.Int("tier.items", len(list)))

		if remaining > 0 && skip > 0 {
			total, err := posts.CountTier(tctx, q)
			if err != nil {
				span.End()
				return nil, s.fail(ctx, "count "+src.tier.String()+" posts", err)
			}
			skip = max(0, skip-int(total))
		}
		span.End()
	}
	return items, nil
}

// annotate 补充评论数、点赞总数、收藏状态和作者关系，并发查询
func (s *FeedService) annotate(ctx context.Context, viewer uint64, items []model.FeedItem) error {
	if len(items) == 0 {
		return nil
	}
	postIDs := make([]uint64, 0, len(items))
	authorSet := make(map[uint64]struct{}, len(items))
	authorIDs := make([]uint64, 0, len(items))
	for _, it := range items {
		postIDs = append(postIDs, it.Post.ID)
		if _, ok := authorSet[it.Post.AuthorID]; !ok {
			authorSet[it.Post.AuthorID] = struct{}{}
			authorIDs = append(authorIDs, it.Post.AuthorID)
		}
	}

	likes := &sqlstore.PostLikeRepository{DB: s.db}
	var comments, totals map[uint64]int64
	var saved map[uint64]bool
	var relations map[uint64]model.RelationStatus

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		comments, err = likes.CommentCounts(gctx, postIDs)
		return err
	})
	g.Go(func() error {
		var err error
		totals, err = likes.LikeTotals(gctx, postIDs)
		return err
	})
	g.Go(func() error {
		var err error
		saved, err = likes.SavedSet(gctx, viewer, postIDs)
		return err
	})
	g.Go(func() error {
		var err error
		relations, err = s.relations.RelationsWith(gctx, viewer, authorIDs)
		return err
	})
	if err := g.Wait(); err != nil {
		return s.fail(ctx, "annotate feed", err)
	}

	for i := range items {
		id := items[i].Post.ID
		items[i].CommentCount = comments[id]
		items[i].TotalLikes = totals[id]
		items[i].Saved = saved[id]
		// 前三层已排除点过赞的帖子，兜底层只包含点过赞的帖子
		items[i].Liked = items[i].Tier == model.TierFallback
		items[i].Author = relations[items[i].Post.AuthorID]
	}
	return nil
}

// ProfilePosts viewer 查看 target 的个人主页。私密账号需要已关注，仅好友可见需要是好友。
func (s *FeedService) ProfilePosts(ctx context.Context, viewer, target uint64, page int) ([]model.Post, error) {
	if viewer == 0 || target == 0 {
		return nil, ErrInvalidUser
	}
	if page < 0 {
		return nil, ErrInvalidPage
	}
	r := reposOn(s.db)
	u, err := r.users.FindByID(ctx, target)
	if err != nil {
		return nil, s.fail(ctx, "load profile", notFound(err))
	}

	self := viewer == target
	withFriendsOnly := self
	if !self {
		blocked, err := r.blocks.IsBlocked(ctx, viewer, target)
		if err != nil {
			return nil, s.fail(ctx, "check block", err)
		}
		if blocked {
			return nil, ErrBlocked
		}
		if u.IsPrivate {
			following, err := r.follows.IsFollowing(ctx, viewer, target)
			if err != nil {
				return nil, s.fail(ctx, "check follow", err)
			}
			if !following {
				return []model.Post{}, nil
			}
		}
		withFriendsOnly, err = r.friends.AreFriends(ctx, viewer, target)
		if err != nil {
			return nil, s.fail(ctx, "check friendship", err)
		}
	}

	posts := &sqlstore.PostRepository{DB: s.db}
	list, err := posts.ListByAuthor(ctx, target, withFriendsOnly, page*s.pageSize, s.pageSize)
	if err != nil {
		return nil, s.fail(ctx, "list profile posts", err)
	}
	return list, nil
}

func (s *FeedService) fail(ctx context.Context, op string, err error) error {
	return wrapServerError(ctx, s.logger, op, err)
}

func subtract(ids []uint64, skip map[uint64]struct{}) []uint64 {
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if _, ok := skip[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}
