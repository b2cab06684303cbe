// Package http 承载回测服务对外的 HTTP 接口层：路由、鉴权中间件、以及
// {status, code, message, data} 响应信封（spec §6/§7）。
package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/backtestengine/internal/backtest/domain"
)

// envelope 是所有接口统一返回的响应形状。
type envelope struct {
	Status  string `json:"status"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, envelope{Status: "success", Data: data})
}

// failed 把领域错误映射为 HTTP 状态码与响应信封。PARTIAL 成交不是错误，
// 走 success 分支，data 是成交 DTO（实际成交股数与均价），其中不含委托状态。
func failed(c *gin.Context, err error) {
	var derr *domain.Error
	if !errors.As(err, &derr) {
		c.JSON(http.StatusInternalServerError, envelope{
			Status:  "failed",
			Code:    "INTERNAL",
			Message: err.Error(),
		})
		return
	}

	c.JSON(statusForKind(derr.Kind), envelope{
		Status:  "failed",
		Code:    derr.Code,
		Message: derr.Message,
	})
}

// badRequest wraps a JSON-binding error as a domain.BadParameter so it flows
// through the same failed() mapping as every other validation failure.
func badRequest(err error) error {
	return domain.ErrBadDatetime.WithDetail("%v", err)
}

func statusForKind(kind domain.Kind) int {
	switch kind {
	case domain.KindBadParameter:
		return http.StatusBadRequest
	case domain.KindTradeRejected:
		return http.StatusUnprocessableEntity
	case domain.KindAccountError:
		return http.StatusForbidden
	case domain.KindInfra:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
