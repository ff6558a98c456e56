package model

// FeedTier 候选来源，数值越小优先级越高
type FeedTier int

const (
	TierDirectGraph FeedTier = iota + 1
	TierFriendOfFriend
	TierCurated
	TierFallback
)

func (t FeedTier) String() string {
	switch t {
	case TierDirectGraph:
		return "direct_graph"
	case TierFriendOfFriend:
		return "friend_of_friend"
	case TierCurated:
		return "curated"
	case TierFallback:
		return "fallback"
	}
	return "unknown"
}

// RelationStatus viewer 视角下与另一个用户的关系
type RelationStatus struct {
	Following             bool `json:"following"`
	FollowRequested       bool `json:"follow_requested"`
	Friends               bool `json:"friends"`
	FriendRequestSent     bool `json:"friend_request_sent"`
	FriendRequestReceived bool `json:"friend_request_received"`
}

// FeedItem 不落库，一页 feed 中的单条内容
type FeedItem struct {
	Post         Post           `json:"post"`
	Liked        bool           `json:"liked"`
	Saved        bool           `json:"saved"`
	CommentCount int64          `json:"comment_count"`
	TotalLikes   int64          `json:"total_likes"`
	Tier         FeedTier       `json:"source_tier"`
	Author       RelationStatus `json:"author"`
}

// AllModels 自动建表用
func AllModels() []any {
	return []any{
		&User{}, &Follow{}, &FollowRequest{}, &FriendRequest{}, &Friendship{}, &Block{},
		&Post{}, &PostLike{}, &PostSave{}, &Comment{}, &CuratedAuthor{}, &SocialOutbox{},
	}
}
