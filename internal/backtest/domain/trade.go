package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade 是一笔成交（Fill）。一经生成即不可变。Shares 对 SELL/XDXR 可以是小数，
// 但 BUY/MARKET_BUY 必须是 100 的整数倍。Price 是跨多根 K 线撮合后的加权均价；
// 对 XDXR 而言 Price 仅作记账用途。
type Trade struct {
	TradeID        string
	OrderID        string
	AccountID      string
	Symbol         string
	Side           Side
	Shares         decimal.Decimal
	Price          decimal.Decimal
	Fee            decimal.Decimal
	TradeTime      time.Time
	EventualProfit decimal.Decimal // pprofit，仅卖出成交计算，相对于 lot 成本价
	HasProfit      bool
}

// BillEntry 组合一笔委托及其产生的全部成交，对应 spec 词汇表中的 "Bill"。
type BillEntry struct {
	Entrust Entrust
	Trades  []Trade
}
