package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"Lee_Social/internal/model"
	"Lee_Social/internal/pkg"
	"Lee_Social/internal/pkg/errs"
	"Lee_Social/internal/repository/sqlstore"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

var (
	ErrInvalidUser           = errs.New(errs.InvalidArgument, "invalid user id")
	ErrSelfRelation          = errs.New(errs.InvalidArgument, "cannot target self")
	ErrUserNotFound          = errs.New(errs.NotFound, "user not found")
	ErrBlocked               = errs.New(errs.BlockedRelationship, "relationship is blocked")
	ErrFollowRequestNotFound = errs.New(errs.NotFound, "follow request not found")
	ErrNotConnected          = errs.New(errs.NotFound, "users are not connected")
)

type FollowState string

const (
	FollowStateNone      FollowState = "none"
	FollowStateRequested FollowState = "requested"
	FollowStateFollowing FollowState = "following"
)

// FollowResult Changed 为 false 表示命中幂等，没有写入
type FollowResult struct {
	State   FollowState `json:"state"`
	Changed bool        `json:"changed"`
}

type UnfollowResult struct {
	Existed         bool `json:"existed"`
	CanceledRequest bool `json:"canceled_request"`
}

type FriendState string

const (
	FriendStateNone      FriendState = "none"
	FriendStateRequested FriendState = "requested"
	FriendStateFriends   FriendState = "friends"
	FriendStateNoRequest FriendState = "no_request"
)

type FriendResult struct {
	State   FriendState `json:"state"`
	Changed bool        `json:"changed"`
}

type UnfriendResult struct {
	RemovedRequest    bool `json:"removed_request"`
	RemovedFriendship bool `json:"removed_friendship"`
}

// RelationService 关注、好友关系的状态机。所有写操作都通过 Executor 在一个事务里完成，
// 拉黑检查先于任何写入。
type RelationService struct {
	db     *gorm.DB
	exec   *sqlstore.Executor
	ids    pkg.IDSource
	logger *slog.Logger
}

func NewRelationService(db *gorm.DB, exec *sqlstore.Executor, ids pkg.IDSource, logger *slog.Logger) *RelationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RelationService{db: db, exec: exec, ids: ids, logger: logger}
}

// repos 同一个句柄上的全部仓储，事务内必须只用 tx 构造
type repos struct {
	users   *sqlstore.UserRepository
	blocks  *sqlstore.BlockRepository
	follows *sqlstore.FollowRepository
	friends *sqlstore.FriendRepository
	outbox  *sqlstore.OutboxRepository
}

func reposOn(db *gorm.DB) repos {
	return repos{
		users:   &sqlstore.UserRepository{DB: db},
		blocks:  &sqlstore.BlockRepository{DB: db},
		follows: &sqlstore.FollowRepository{DB: db},
		friends: &sqlstore.FriendRepository{DB: db},
		outbox:  &sqlstore.OutboxRepository{DB: db},
	}
}

func validatePair(actor, target uint64) error {
	if actor == 0 || target == 0 {
		return ErrInvalidUser
	}
	if actor == target {
		return ErrSelfRelation
	}
	return nil
}

// guard 双方都存在且未拉黑，返回 target
func guard(ctx context.Context, r repos, actor, target uint64) (*model.User, error) {
	if _, err := r.users.FindByID(ctx, actor); err != nil {
		return nil, notFound(err)
	}
	u, err := r.users.FindByID(ctx, target)
	if err != nil {
		return nil, notFound(err)
	}
	blocked, err := r.blocks.IsBlocked(ctx, actor, target)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, ErrBlocked
	}
	return u, nil
}

func notFound(err error) error {
	if errors.Is(err, sqlstore.ErrUserNotFound) {
		return ErrUserNotFound
	}
	return err
}

// relationEvent outbox 消息体
type relationEvent struct {
	Type      string    `json:"type"`
	ActorID   uint64    `json:"actor_id"`
	TargetID  uint64    `json:"target_id"`
	EventTime time.Time `json:"event_time"`
}

// emit 写 outbox，必须和关系变更在同一个事务
func (s *RelationService) emit(ctx context.Context, r repos, eventType string, actor, target uint64) error {
	payload, err := json.Marshal(relationEvent{
		Type:      eventType,
		ActorID:   actor,
		TargetID:  target,
		EventTime: time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	return r.outbox.Insert(ctx, &model.SocialOutbox{
		ID:        s.ids.NextID(),
		EventType: eventType,
		ActorID:   actor,
		TargetID:  target,
		Payload:   string(payload),
		Status:    model.OutboxPending,
	})
}

// RequestFollow 公开账号直接建立关注边，私密账号创建关注申请（已存在则不重复创建）
func (s *RelationService) RequestFollow(ctx context.Context, requester, target uint64) (FollowResult, error) {
	if err := validatePair(requester, target); err != nil {
		return FollowResult{}, err
	}
	return sqlstore.RunTx(ctx, s.exec, func(tx *gorm.DB) (FollowResult, error) {
		r := reposOn(tx)
		targetUser, err := guard(ctx, r, requester, target)
		if err != nil {
			return FollowResult{}, err
		}
		following, err := r.follows.IsFollowing(ctx, requester, target)
		if err != nil {
			return FollowResult{}, err
		}
		if following {
			return FollowResult{State: FollowStateFollowing}, nil
		}

		if !targetUser.IsPrivate {
			// 账号从私密改为公开后可能残留申请，关注边和申请不能同时存在
			if _, err := r.follows.DeleteRequest(ctx, requester, target); err != nil {
				return FollowResult{}, err
			}
			changed, err := r.follows.Activate(ctx, s.ids.NextID(), requester, target)
			if err != nil {
				return FollowResult{}, err
			}
			if changed {
				if err := s.emit(ctx, r, model.EventFollowed, requester, target); err != nil {
					return FollowResult{}, err
				}
			}
			return FollowResult{State: FollowStateFollowing, Changed: changed}, nil
		}

		existing, err := r.follows.FindRequest(ctx, requester, target)
		if err != nil {
			return FollowResult{}, err
		}
		if existing != nil {
			return FollowResult{State: FollowStateRequested}, nil
		}
		if err := r.follows.CreateRequest(ctx, &model.FollowRequest{
			ID:          s.ids.NextID(),
			RequesterID: requester,
			RequesteeID: target,
		}); err != nil {
			return FollowResult{}, err
		}
		if err := s.emit(ctx, r, model.EventFollowRequested, requester, target); err != nil {
			return FollowResult{}, err
		}
		return FollowResult{State: FollowStateRequested, Changed: true}, nil
	})
}

// ResolveFollow actor 处理 requester 发来的关注申请。同意时删除申请并建立关注边。
func (s *RelationService) ResolveFollow(ctx context.Context, actor, requester uint64, accept bool) (FollowResult, error) {
	if err := validatePair(actor, requester); err != nil {
		return FollowResult{}, err
	}
	return sqlstore.RunTx(ctx, s.exec, func(tx *gorm.DB) (FollowResult, error) {
		r := reposOn(tx)
		if _, err := guard(ctx, r, actor, requester); err != nil {
			return FollowResult{}, err
		}
		n, err := r.follows.DeleteRequest(ctx, requester, actor)
		if err != nil {
			return FollowResult{}, err
		}
		if n == 0 {
			return FollowResult{}, ErrFollowRequestNotFound
		}
		if !accept {
			return FollowResult{State: FollowStateNone, Changed: true}, nil
		}
		if _, err := r.follows.Activate(ctx, s.ids.NextID(), requester, actor); err != nil {
			return FollowResult{}, err
		}
		if err := s.emit(ctx, r, model.EventFollowed, requester, actor); err != nil {
			return FollowResult{}, err
		}
		return FollowResult{State: FollowStateFollowing, Changed: true}, nil
	})
}

// Unfollow 优先撤回未处理的申请，否则取消关注。没有任何关系也返回成功。
func (s *RelationService) Unfollow(ctx context.Context, requester, target uint64) (UnfollowResult, error) {
	if err := validatePair(requester, target); err != nil {
		return UnfollowResult{}, err
	}
	return sqlstore.RunTx(ctx, s.exec, func(tx *gorm.DB) (UnfollowResult, error) {
		r := reposOn(tx)
		if _, err := guard(ctx, r, requester, target); err != nil {
			return UnfollowResult{}, err
		}
		n, err := r.follows.DeleteRequest(ctx, requester, target)
		if err != nil {
			return UnfollowResult{}, err
		}
		if n > 0 {
			return UnfollowResult{Existed: true, CanceledRequest: true}, nil
		}
		changed, err := r.follows.Deactivate(ctx, requester, target)
		if err != nil {
			return UnfollowResult{}, err
		}
		if changed {
			if err := s.emit(ctx, r, model.EventUnfollowed, requester, target); err != nil {
				return UnfollowResult{}, err
			}
		}
		return UnfollowResult{Existed: changed}, nil
	})
}

// RequestFriend 反方向的申请互相独立，不会自动合并为好友
func (s *RelationService) RequestFriend(ctx context.Context, requester, target uint64) (FriendResult, error) {
	if err := validatePair(requester, target); err != nil {
		return FriendResult{}, err
	}
	return sqlstore.RunTx(ctx, s.exec, func(tx *gorm.DB) (FriendResult, error) {
		r := reposOn(tx)
		if _, err := guard(ctx, r, requester, target); err != nil {
			return FriendResult{}, err
		}
		friends, err := r.friends.AreFriends(ctx, requester, target)
		if err != nil {
			return FriendResult{}, err
		}
		if friends {
			return FriendResult{State: FriendStateFriends}, nil
		}
		existing, err := r.friends.FindRequest(ctx, requester, target)
		if err != nil {
			return FriendResult{}, err
		}
		if existing != nil {
			return FriendResult{State: FriendStateRequested}, nil
		}
		if err := r.friends.CreateRequest(ctx, &model.FriendRequest{
			ID:          s.ids.NextID(),
			RequesterID: requester,
			RequesteeID: target,
		}); err != nil {
			return FriendResult{}, err
		}
		if err := s.emit(ctx, r, model.EventFriendRequested, requester, target); err != nil {
			return FriendResult{}, err
		}
		return FriendResult{State: FriendStateRequested, Changed: true}, nil
	})
}

// ResolveFriend actor 处理 requester 发来的好友申请。没有申请时返回 no_request，不报错。
func (s *RelationService) ResolveFriend(ctx context.Context, actor, requester uint64, accept bool) (FriendResult, error) {
	if err := validatePair(actor, requester); err != nil {
		return FriendResult{}, err
	}
	return sqlstore.RunTx(ctx, s.exec, func(tx *gorm.DB) (FriendResult, error) {
		r := reposOn(tx)
		if _, err := guard(ctx, r, actor, requester); err != nil {
			return FriendResult{}, err
		}
		n, err := r.friends.DeleteRequests(ctx, requester, actor)
		if err != nil {
			return FriendResult{}, err
		}
		if n == 0 {
			return FriendResult{State: FriendStateNoRequest}, nil
		}
		if !accept {
			return FriendResult{State: FriendStateNone, Changed: true}, nil
		}
		created, err := r.friends.CreateFriendship(ctx, &model.Friendship{
			ID:      s.ids.NextID(),
			UserAID: requester,
			UserBID: actor,
		})
		if err != nil {
			return FriendResult{}, err
		}
		// 反向申请已被接受过，好友关系已存在
		if created == 0 {
			return FriendResult{State: FriendStateFriends}, nil
		}
		if err := s.emit(ctx, r, model.EventFriendAccepted, actor, requester); err != nil {
			return FriendResult{}, err
		}
		return FriendResult{State: FriendStateFriends, Changed: true}, nil
	})
}

// Unfriend 先删除 target 发给 requester 的待处理申请，再删除好友关系。两者都不存在时报 ErrNotConnected。
func (s *RelationService) Unfriend(ctx context.Context, requester, target uint64) (UnfriendResult, error) {
	if err := validatePair(requester, target); err != nil {
		return UnfriendResult{}, err
	}
	return sqlstore.RunTx(ctx, s.exec, func(tx *gorm.DB) (UnfriendResult, error) {
		r := reposOn(tx)
		if _, err := guard(ctx, r, requester, target); err != nil {
			return UnfriendResult{}, err
		}
		var res UnfriendResult
		n, err := r.friends.DeleteRequests(ctx, target, requester)
		if err != nil {
			return res, err
		}
		res.RemovedRequest = n > 0

		m, err := r.friends.DeleteFriendship(ctx, requester, target)
		if err != nil {
			return res, err
		}
		res.RemovedFriendship = m > 0

		if !res.RemovedRequest && !res.RemovedFriendship {
			return UnfriendResult{}, ErrNotConnected
		}
		if res.RemovedFriendship {
			if err := s.emit(ctx, r, model.EventUnfriended, requester, target); err != nil {
				return res, err
			}
		}
		return res, nil
	})
}

// Relation viewer 视角下与 other 的关系
func (s *RelationService) Relation(ctx context.Context, viewer, other uint64) (model.RelationStatus, error) {
	if viewer == 0 || other == 0 {
		return model.RelationStatus{}, ErrInvalidUser
	}
	m, err := s.RelationsWith(ctx, viewer, []uint64{other})
	if err != nil {
		return model.RelationStatus{}, err
	}
	return m[other], nil
}

// RelationsWith 批量查询关系状态，四类查询并发执行
func (s *RelationService) RelationsWith(ctx context.Context, viewer uint64, ids []uint64) (map[uint64]model.RelationStatus, error) {
	out := make(map[uint64]model.RelationStatus, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	r := reposOn(s.db)

	var following, requested, friends []uint64
	var friendReqs []model.FriendRequest
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		following, err = r.follows.FollowingAmong(gctx, viewer, ids)
		return err
	})
	g.Go(func() error {
		var err error
		requested, err = r.follows.RequestedAmong(gctx, viewer, ids)
		return err
	})
	g.Go(func() error {
		var err error
		friends, err = r.friends.FriendsAmong(gctx, viewer, ids)
		return err
	})
	g.Go(func() error {
		var err error
		friendReqs, err = r.friends.RequestsAmong(gctx, viewer, ids)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, s.serverError(ctx, "query relation status", err)
	}

	for _, id := range ids {
		out[id] = model.RelationStatus{}
	}
	update := func(id uint64, f func(*model.RelationStatus)) {
		st := out[id]
		f(&st)
		out[id] = st
	}
	for _, id := range following {
		update(id, func(st *model.RelationStatus) { st.Following = true })
	}
	for _, id := range requested {
		update(id, func(st *model.RelationStatus) { st.FollowRequested = true })
	}
	for _, id := range friends {
		update(id, func(st *model.RelationStatus) { st.Friends = true })
	}
	for _, req := range friendReqs {
		if req.RequesterID == viewer {
			update(req.RequesteeID, func(st *model.RelationStatus) { st.FriendRequestSent = true })
		} else {
			update(req.RequesterID, func(st *model.RelationStatus) { st.FriendRequestReceived = true })
		}
	}
	return out, nil
}

func (s *RelationService) ListFollowings(ctx context.Context, userID, cursor uint64, limit int) ([]model.Follow, uint64, error) {
	if userID == 0 {
		return nil, 0, ErrInvalidUser
	}
	rows, next, err := reposOn(s.db).follows.ListFollowings(ctx, userID, cursor, limit)
	if err != nil {
		return nil, 0, s.serverError(ctx, "list followings", err)
	}
	return rows, next, nil
}

func (s *RelationService) ListFollowers(ctx context.Context, userID, cursor uint64, limit int) ([]model.Follow, uint64, error) {
	if userID == 0 {
		return nil, 0, ErrInvalidUser
	}
	rows, next, err := reposOn(s.db).follows.ListFollowers(ctx, userID, cursor, limit)
	if err != nil {
		return nil, 0, s.serverError(ctx, "list followers", err)
	}
	return rows, next, nil
}

func (s *RelationService) ListFriends(ctx context.Context, userID, cursor uint64, limit int) ([]model.Friendship, uint64, error) {
	if userID == 0 {
		return nil, 0, ErrInvalidUser
	}
	rows, next, err := reposOn(s.db).friends.ListFriends(ctx, userID, cursor, limit)
	if err != nil {
		return nil, 0, s.serverError(ctx, "list friends", err)
	}
	return rows, next, nil
}

func (s *RelationService) ListIncomingFollowRequests(ctx context.Context, userID, cursor uint64, limit int) ([]model.FollowRequest, uint64, error) {
	if userID == 0 {
		return nil, 0, ErrInvalidUser
	}
	rows, next, err := reposOn(s.db).follows.ListIncomingRequests(ctx, userID, cursor, limit)
	if err != nil {
		return nil, 0, s.serverError(ctx, "list follow requests", err)
	}
	return rows, next, nil
}

func (s *RelationService) ListIncomingFriendRequests(ctx context.Context, userID, cursor uint64, limit int) ([]model.FriendRequest, uint64, error) {
	if userID == 0 {
		return nil, 0, ErrInvalidUser
	}
	rows, next, err := reposOn(s.db).friends.ListIncomingRequests(ctx, userID, cursor, limit)
	if err != nil {
		return nil, 0, s.serverError(ctx, "list friend requests", err)
	}
	return rows, next, nil
}

func (s *RelationService) serverError(ctx context.Context, op string, err error) error {
	return wrapServerError(ctx, s.logger, op, err)
}

// wrapServerError 领域错误原样返回，其余记 ERROR 日志后包装为 ServerError
func wrapServerError(ctx context.Context, logger *slog.Logger, op string, err error) error {
	var de *errs.Error
	if errors.As(err, &de) {
		return err
	}
	logger.ErrorContext(ctx, op+" failed", "error", err)
	return errs.Wrap(errs.ServerError, op, err)
}
