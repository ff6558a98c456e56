package handler

import (
	"net/http"
	"strconv"

	"Lee_Social/internal/pkg/errs"

	"github.com/gin-gonic/gin"
)

// fail 按错误类别返回状态码，服务端错误不向调用方暴露细节
func fail(c *gin.Context, err error) {
	kind := errs.KindOf(err)
	msg := err.Error()
	if kind == errs.ServerError {
		msg = "server error"
	}
	c.JSON(errs.HTTPStatus(kind), gin.H{"kind": kind, "msg": msg})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"kind": errs.InvalidArgument, "msg": msg})
}

func userIDFromCtx(c *gin.Context) uint64 {
	if v, ok := c.Get("user_id"); ok {
		if id, ok2 := v.(uint64); ok2 {
			return id
		}
	}
	return 0
}

// pageParams 解析游标分页参数，缺省时 cursor=0、limit 由仓储层兜底。格式错误时已写入 400。
func pageParams(c *gin.Context) (cursor uint64, limit int, ok bool) {
	var err error
	if v := c.Query("cursor"); v != "" {
		if cursor, err = strconv.ParseUint(v, 10, 64); err != nil {
			badRequest(c, "invalid cursor")
			return 0, 0, false
		}
	}
	if v := c.Query("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 0 {
			badRequest(c, "invalid limit")
			return 0, 0, false
		}
	}
	return cursor, limit, true
}
