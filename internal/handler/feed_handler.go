package handler

import (
	"net/http"
	"strconv"

	"Lee_Social/internal/service"

	"github.com/gin-gonic/gin"
)

type FeedHandler struct {
	svc *service.FeedService
}

func NewFeedHandler(svc *service.FeedService) *FeedHandler {
	return &FeedHandler{svc: svc}
}

// Feed 首页信息流，page 从 0 开始
func (h *FeedHandler) Feed(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "0"))
	if err != nil {
		badRequest(c, "invalid page")
		return
	}
	items, err := h.svc.Page(c.Request.Context(), userIDFromCtx(c), page)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"list": items, "page": page})
}

// ProfilePosts 个人主页帖子
func (h *FeedHandler) ProfilePosts(c *gin.Context) {
	target, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "invalid user id")
		return
	}
	page, err := strconv.Atoi(c.DefaultQuery("page", "0"))
	if err != nil {
		badRequest(c, "invalid page")
		return
	}
	posts, err := h.svc.ProfilePosts(c.Request.Context(), userIDFromCtx(c), target, page)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"list": posts, "page": page})
}
