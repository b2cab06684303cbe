package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/backtestengine/internal/backtest/domain"
)

const tokenContextKey = "backtest_token"

// bearerToken 从 Authorization: Bearer <token> 头中取出令牌；也接受裸令牌
// 以兼容不便设置 Authorization 头的调用方。
func bearerToken(c *gin.Context) string {
	raw := c.GetHeader("Authorization")
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(raw, "Bearer ") {
		return strings.TrimPrefix(raw, "Bearer ")
	}
	return raw
}

// authMiddleware 校验 bearer token 并把它注入 gin.Context，交由各 handler
// 转发给 application 层做真正的账户解析（spec §6 Authentication）。
// 未知/非法令牌本身不在此处判定——Registry.Lookup 才是唯一真源，这里只负责
// 拒绝完全没带令牌的请求。
func authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, envelope{
				Status:  "failed",
				Code:    domain.ErrUnauthorized.Code,
				Message: "missing bearer token",
			})
			return
		}
		c.Set(tokenContextKey, token)
		c.Next()
	}
}

func tokenFrom(c *gin.Context) string {
	v, _ := c.Get(tokenContextKey)
	token, _ := v.(string)
	return token
}

// adminMiddleware 限制批量删除等跨账户操作只能由管理员令牌调用
// （spec §6：admin token authorizes cross-account operations）。
func adminMiddleware(adminToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if adminToken == "" || tokenFrom(c) != adminToken {
			c.AbortWithStatusJSON(http.StatusForbidden, envelope{
				Status:  "failed",
				Code:    domain.ErrUnauthorized.Code,
				Message: "admin token required",
			})
			return
		}
		c.Next()
	}
}
