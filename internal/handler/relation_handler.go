package handler

import (
	"net/http"
	"strconv"

	"Lee_Social/internal/service"

	"github.com/gin-gonic/gin"
)

type RelationHandler struct {
	svc *service.RelationService
}

func NewRelationHandler(svc *service.RelationService) *RelationHandler {
	return &RelationHandler{svc: svc}
}

type targetReq struct {
	TargetID uint64 `json:"target_id" binding:"required"`
}

type resolveReq struct {
	RequesterID uint64 `json:"requester_id" binding:"required"`
	Accept      *bool  `json:"accept" binding:"required"`
}

// Follow 关注或申请关注
func (h *RelationHandler) Follow(c *gin.Context) {
	var req targetReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid params")
		return
	}
	res, err := h.svc.RequestFollow(c.Request.Context(), userIDFromCtx(c), req.TargetID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ResolveFollow 处理别人发来的关注申请
func (h *RelationHandler) ResolveFollow(c *gin.Context) {
	var req resolveReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid params")
		return
	}
	res, err := h.svc.ResolveFollow(c.Request.Context(), userIDFromCtx(c), req.RequesterID, *req.Accept)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *RelationHandler) Unfollow(c *gin.Context) {
	var req targetReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid params")
		return
	}
	res, err := h.svc.Unfollow(c.Request.Context(), userIDFromCtx(c), req.TargetID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *RelationHandler) Friend(c *gin.Context) {
	var req targetReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid params")
		return
	}
	res, err := h.svc.RequestFriend(c.Request.Context(), userIDFromCtx(c), req.TargetID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *RelationHandler) ResolveFriend(c *gin.Context) {
	var req resolveReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid params")
		return
	}
	res, err := h.svc.ResolveFriend(c.Request.Context(), userIDFromCtx(c), req.RequesterID, *req.Accept)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *RelationHandler) Unfriend(c *gin.Context) {
	var req targetReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid params")
		return
	}
	res, err := h.svc.Unfriend(c.Request.Context(), userIDFromCtx(c), req.TargetID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Status 当前用户与 user_id 之间的关系
func (h *RelationHandler) Status(c *gin.Context) {
	other, err := strconv.ParseUint(c.Query("user_id"), 10, 64)
	if err != nil {
		badRequest(c, "invalid user_id")
		return
	}
	st, err := h.svc.Relation(c.Request.Context(), userIDFromCtx(c), other)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// ListFollowings 获取关注列表，不传 user_id 时查自己
func (h *RelationHandler) ListFollowings(c *gin.Context) {
	cursor, limit, ok := pageParams(c)
	if !ok {
		return
	}
	rows, next, err := h.svc.ListFollowings(c.Request.Context(), h.subject(c), cursor, limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"list": rows, "next_cursor": next})
}

// ListFollowers 获取粉丝列表
func (h *RelationHandler) ListFollowers(c *gin.Context) {
	cursor, limit, ok := pageParams(c)
	if !ok {
		return
	}
	rows, next, err := h.svc.ListFollowers(c.Request.Context(), h.subject(c), cursor, limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"list": rows, "next_cursor": next})
}

func (h *RelationHandler) ListFriends(c *gin.Context) {
	cursor, limit, ok := pageParams(c)
	if !ok {
		return
	}
	rows, next, err := h.svc.ListFriends(c.Request.Context(), h.subject(c), cursor, limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"list": rows, "next_cursor": next})
}

// ListFollowRequests 待自己处理的关注申请
func (h *RelationHandler) ListFollowRequests(c *gin.Context) {
	cursor, limit, ok := pageParams(c)
	if !ok {
		return
	}
	rows, next, err := h.svc.ListIncomingFollowRequests(c.Request.Context(), userIDFromCtx(c), cursor, limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"list": rows, "next_cursor": next})
}

// ListFriendRequests 待自己处理的好友申请
func (h *RelationHandler) ListFriendRequests(c *gin.Context) {
	cursor, limit, ok := pageParams(c)
	if !ok {
		return
	}
	rows, next, err := h.svc.ListIncomingFriendRequests(c.Request.Context(), userIDFromCtx(c), cursor, limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"list": rows, "next_cursor": next})
}

func (h *RelationHandler) subject(c *gin.Context) uint64 {
	if id, err := strconv.ParseUint(c.Query("user_id"), 10, 64); err == nil && id > 0 {
		return id
	}
	return userIDFromCtx(c)
}
