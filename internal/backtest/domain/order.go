package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side 是委托方向。
type Side string

const (
	SideBuy         Side = "BUY"
	SideSell        Side = "SELL"
	SideMarketBuy   Side = "MARKET_BUY"
	SideMarketSell  Side = "MARKET_SELL"
	SideSellPercent Side = "SELL_PERCENT"
	SideXDXR        Side = "XDXR"
)

// IsBuy 报告该方向是否为买入方向。
func (s Side) IsBuy() bool {
	return s == SideBuy || s == SideMarketBuy
}

// IsSell 报告该方向是否为卖出方向（含比例卖出）。
func (s Side) IsSell() bool {
	return s == SideSell || s == SideMarketSell || s == SideSellPercent
}

// IsMarket 报告该方向是否为市价委托。
func (s Side) IsMarket() bool {
	return s == SideMarketBuy || s == SideMarketSell || s == SideSellPercent
}

// EntrustStatus 是委托状态。
type EntrustStatus string

const (
	EntrustNew      EntrustStatus = "NEW"
	EntrustFilled   EntrustStatus = "FILLED"
	EntrustPartial  EntrustStatus = "PARTIAL"
	EntrustRejected EntrustStatus = "REJECTED"
)

// Entrust 是一笔已被服务端接受的委托（Order）。一经接受即不可变；
// 对某个账户而言，被接受的委托按 OrderTime 严格递增（datetime 精度）。
type Entrust struct {
	OrderID   string
	AccountID string
	Symbol    string
	Side      Side
	Price     decimal.Decimal // MARKET_*/XDXR 委托无此字段，取零值
	HasPrice  bool
	Shares    decimal.Decimal // SELL_PERCENT 时是按比例折算后的股数，原始比例不保留
	OrderTime time.Time
	Status    EntrustStatus
	Reason    string
}

// NewEntrust 创建一笔待撮合的委托。
func NewEntrust(orderID, accountID, symbol string, side Side, price decimal.Decimal, hasPrice bool, shares decimal.Decimal, orderTime time.Time) *Entrust {
	return &Entrust{
		OrderID:   orderID,
		AccountID: accountID,
		Symbol:    symbol,
		Side:      side,
		Price:     price,
		HasPrice:  hasPrice,
		Shares:    shares,
		OrderTime: orderTime,
		Status:    EntrustNew,
	}
}

// Reject 将委托标记为拒绝，记录理由（错误码）。
func (e *Entrust) Reject(reason string) {
	e.Status = EntrustRejected
	e.Reason = reason
}
