package router

import (
	"log/slog"
	"net/http"

	"Lee_Social/internal/handler"
	"Lee_Social/internal/middleware"
	"Lee_Social/internal/service"

	"github.com/gin-gonic/gin"
)

// Deps 路由依赖，由 main 统一构造
type Deps struct {
	Relations    *service.RelationService
	Feed         *service.FeedService
	AccessSecret []byte
	Logger       *slog.Logger
}

func InitRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(d.Logger))

	relation := handler.NewRelationHandler(d.Relations)
	feed := handler.NewFeedHandler(d.Feed)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	auth := middleware.AuthMiddleware(d.AccessSecret)

	// 关注、好友关系接口
	relationGroup := r.Group("/api/relation")
	relationGroup.Use(auth)
	{
		relationGroup.POST("/follow", relation.Follow)
		relationGroup.POST("/follow/resolve", relation.ResolveFollow)
		relationGroup.POST("/unfollow", relation.Unfollow)
		relationGroup.POST("/friend", relation.Friend)
		relationGroup.POST("/friend/resolve", relation.ResolveFriend)
		relationGroup.POST("/unfriend", relation.Unfriend)
		relationGroup.GET("/status", relation.Status)
		relationGroup.GET("/followings", relation.ListFollowings)
		relationGroup.GET("/followers", relation.ListFollowers)
		relationGroup.GET("/friends", relation.ListFriends)
		relationGroup.GET("/requests/follow", relation.ListFollowRequests)
		relationGroup.GET("/requests/friend", relation.ListFriendRequests)
	}

	// 信息流接口
	feedGroup := r.Group("/api")
	feedGroup.Use(auth)
	{
		feedGroup.GET("/feed", feed.Feed)
		feedGroup.GET("/users/:id/posts", feed.ProfilePosts)
	}

	return r
}
