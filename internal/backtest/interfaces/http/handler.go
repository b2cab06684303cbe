package http

import (
	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/backtestengine/internal/backtest/application"
)

// Handler 把 gin 路由映射到 BacktestApplicationService 的用例（spec §6）。
// 沿用 internal/order/interfaces/http/handler.go 的路由分组方式，去除了对
// 外部 pkg/logging、pkg/response 模块的依赖，改用本包自带的 response.go 信封。
type Handler struct {
	app        *application.BacktestApplicationService
	adminToken string
}

// NewHandler 创建 HTTP 处理器。adminToken 为空则禁用批量删除等跨账户接口。
func NewHandler(app *application.BacktestApplicationService, adminToken string) *Handler {
	return &Handler{app: app, adminToken: adminToken}
}

// RegisterRoutes 在 prefix 下挂载全部接口（如 /backtest/api/trade/v0.3）。
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/start_backtest", h.startBacktest)

	authed := router.Group("")
	authed.Use(authMiddleware())
	{
		authed.POST("/buy", h.buy)
		authed.POST("/sell", h.sell)
		authed.POST("/market_buy", h.marketBuy)
		authed.POST("/market_sell", h.marketSell)
		authed.POST("/sell_percent", h.sellPercent)

		authed.GET("/info", h.info)
		authed.GET("/positions", h.positions)
		authed.GET("/bills", h.bills)
		authed.GET("/get_assets", h.assets)
		authed.GET("/metrics", h.metrics)

		authed.POST("/stop_backtest", h.stopBacktest)
		authed.POST("/save_backtest", h.saveBacktest)
		authed.POST("/load_backtest", h.loadBacktest)

		admin := authed.Group("")
		admin.Use(adminMiddleware(h.adminToken))
		admin.POST("/delete_accounts", h.deleteAccounts)
	}
}

type startBacktestRequest struct {
	Name        string `json:"name" binding:"required"`
	Token       string `json:"token" binding:"required"`
	Description string `json:"description"`
	Principal   string `json:"principal" binding:"required"`
	Commission  string `json:"commission"`
	Start       string `json:"start" binding:"required"`
	End         string `json:"end" binding:"required"`
}

func (h *Handler) startBacktest(c *gin.Context) {
	var req startBacktestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failed(c, badRequest(err))
		return
	}
	dto, err := h.app.StartAccount(c.Request.Context(), application.StartAccountCommand{
		Name:        req.Name,
		Token:       req.Token,
		Description: req.Description,
		Principal:   req.Principal,
		Commission:  req.Commission,
		StartDate:   req.Start,
		EndDate:     req.End,
	})
	if err != nil {
		failed(c, err)
		return
	}
	success(c, dto)
}

// deleteAccountsRequest.Tokens is optional: an admin-authenticated request
// that omits it (or sends an empty array) deletes every account (spec §6:
// "admin token deletes all").
type deleteAccountsRequest struct {
	Tokens []string `json:"tokens"`
}

func (h *Handler) deleteAccounts(c *gin.Context) {
	var req deleteAccountsRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			failed(c, badRequest(err))
			return
		}
	}
	if err := h.app.DeleteAccounts(c.Request.Context(), req.Tokens); err != nil {
		failed(c, err)
		return
	}
	if len(req.Tokens) == 0 {
		success(c, gin.H{"deleted_all": true})
		return
	}
	success(c, gin.H{"deleted": req.Tokens})
}

type tradeRequest struct {
	Symbol    string `json:"symbol" binding:"required"`
	Price     string `json:"price"`
	Shares    string `json:"qty" binding:"required"`
	OrderTime string `json:"order_time" binding:"required"`
}

func (r tradeRequest) toCommand() application.TradeCommand {
	return application.TradeCommand{Symbol: r.Symbol, Price: r.Price, Shares: r.Shares, OrderTime: r.OrderTime}
}

func (h *Handler) buy(c *gin.Context) {
	var req tradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failed(c, badRequest(err))
		return
	}
	dto, err := h.app.Buy(c.Request.Context(), tokenFrom(c), req.toCommand())
	if err != nil {
		failed(c, err)
		return
	}
	success(c, dto)
}

func (h *Handler) sell(c *gin.Context) {
	var req tradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failed(c, badRequest(err))
		return
	}
	dto, err := h.app.Sell(c.Request.Context(), tokenFrom(c), req.toCommand())
	if err != nil {
		failed(c, err)
		return
	}
	success(c, dto)
}

func (h *Handler) marketBuy(c *gin.Context) {
	var req tradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failed(c, badRequest(err))
		return
	}
	dto, err := h.app.MarketBuy(c.Request.Context(), tokenFrom(c), req.toCommand())
	if err != nil {
		failed(c, err)
		return
	}
	success(c, dto)
}

func (h *Handler) marketSell(c *gin.Context) {
	var req tradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failed(c, badRequest(err))
		return
	}
	dto, err := h.app.MarketSell(c.Request.Context(), tokenFrom(c), req.toCommand())
	if err != nil {
		failed(c, err)
		return
	}
	success(c, dto)
}

func (h *Handler) sellPercent(c *gin.Context) {
	var req tradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failed(c, badRequest(err))
		return
	}
	dto, err := h.app.SellPercent(c.Request.Context(), tokenFrom(c), req.toCommand())
	if err != nil {
		failed(c, err)
		return
	}
	success(c, dto)
}

func (h *Handler) info(c *gin.Context) {
	dto, err := h.app.Info(c.Request.Context(), tokenFrom(c))
	if err != nil {
		failed(c, err)
		return
	}
	success(c, dto)
}

func (h *Handler) positions(c *gin.Context) {
	dtos, err := h.app.Positions(c.Request.Context(), tokenFrom(c), c.Query("date"))
	if err != nil {
		failed(c, err)
		return
	}
	success(c, dtos)
}

func (h *Handler) bills(c *gin.Context) {
	dtos, err := h.app.Bills(c.Request.Context(), tokenFrom(c))
	if err != nil {
		failed(c, err)
		return
	}
	success(c, dtos)
}

func (h *Handler) assets(c *gin.Context) {
	dtos, err := h.app.Assets(c.Request.Context(), tokenFrom(c))
	if err != nil {
		failed(c, err)
		return
	}
	success(c, dtos)
}

func (h *Handler) metrics(c *gin.Context) {
	cmd := application.MetricsCommand{
		Start:    c.Query("start"),
		End:      c.Query("end"),
		Baseline: c.Query("baseline"),
	}
	dto, err := h.app.Metrics(c.Request.Context(), tokenFrom(c), cmd)
	if err != nil {
		failed(c, err)
		return
	}
	success(c, dto)
}

func (h *Handler) stopBacktest(c *gin.Context) {
	if err := h.app.Stop(c.Request.Context(), tokenFrom(c)); err != nil {
		failed(c, err)
		return
	}
	success(c, gin.H{"stopped": true})
}

func (h *Handler) saveBacktest(c *gin.Context) {
	if err := h.app.Save(c.Request.Context(), tokenFrom(c)); err != nil {
		failed(c, err)
		return
	}
	success(c, gin.H{"saved": true})
}

type loadBacktestRequest struct {
	Name string `json:"name" binding:"required"`
}

func (h *Handler) loadBacktest(c *gin.Context) {
	var req loadBacktestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failed(c, badRequest(err))
		return
	}
	dto, err := h.app.Load(c.Request.Context(), req.Name, tokenFrom(c))
	if err != nil {
		failed(c, err)
		return
	}
	success(c, dto)
}
