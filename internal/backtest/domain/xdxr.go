package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// XDXREvent 是除权除息引擎为某个 symbol 在某一天产生的一次合成事件：
// CashDelta 计入账户现金，ShareDelta 是送转部分新增的股数（已经写入 Ledger）。
type XDXREvent struct {
	Symbol     string
	Date       time.Time
	Dividend   Dividend
	CashDelta  decimal.Decimal
	ShareDelta decimal.Decimal
}

// XDXREngine 沿交易日历向前走，把持仓上发生的除权除息事件转换为合成成交，
// 使得复权前后的净值保持连续，同时从不修改原始持仓股数（spec §4.3）。
type XDXREngine struct{}

// NewXDXREngine 创建一个 XDXREngine。它不持有状态。
func NewXDXREngine() XDXREngine {
	return XDXREngine{}
}

// Advance 处理 (cursor, orderDate] 区间内的每个交易日，对该日持仓的每个 symbol
// 查询除权除息事件并应用到 ledger。返回产生的事件列表和推进后的新 cursor。
func (XDXREngine) Advance(ctx context.Context, feed FeedAdapter, ledger *PositionLedger, cursor, orderDate time.Time) ([]XDXREvent, time.Time, error) {
	if !orderDate.After(cursor) {
		return nil, cursor, nil
	}

	days, err := feed.TradingDays(ctx, cursor, orderDate)
	if err != nil {
		return nil, cursor, err
	}

	var events []XDXREvent
	for _, d := range days {
		for _, symbol := range ledger.Symbols() {
			held := ledger.TotalShares(symbol)
			if held.LessThanOrEqual(decimal.Zero) {
				continue
			}

			divs, err := feed.Dividends(ctx, symbol, d, d)
			if err != nil {
				return nil, cursor, err
			}
			if len(divs) == 0 || divs[0].IsZero() {
				continue
			}
			div := divs[0]

			factor, err := feed.AdjustFactor(ctx, symbol, d)
			if err != nil {
				return nil, cursor, err
			}

			shareDelta := ledger.ApplyCorporateAction(symbol, div, factor)
			cashDelta := div.CashPerShare.Mul(held)

			events = append(events, XDXREvent{
				Symbol:     symbol,
				Date:       d,
				Dividend:   div,
				CashDelta:  cashDelta,
				ShareDelta: shareDelta,
			})
		}
	}

	return events, orderDate, nil
}
