package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// dust 是浮点/十进制误差下可以直接视为零的份额门槛（修复原始实现的 issue #30）。
var dust = decimal.New(1, -6)

// Lot 是一笔连续的持仓建仓批次，用于按 FIFO 顺序计算卖出的成本基础。
// Shares 是未复权的原始股数，除权除息事件从不修改它（只追加新的 Lot），
// 复权因子承担全部的估值换算工作。
type Lot struct {
	Symbol         string
	Shares         decimal.Decimal
	CostBasis      decimal.Decimal // 建仓时每股成本（建仓时复权坐标系下）
	AcquiredDate   time.Time
	AcquiredFactor float64
}

// PositionLedger 是单个账户内 symbol -> FIFO lot 列表的映射。
type PositionLedger struct {
	lots map[string][]*Lot
}

// NewPositionLedger 创建一个空持仓台账。
func NewPositionLedger() *PositionLedger {
	return &PositionLedger{lots: make(map[string][]*Lot)}
}

// Symbols 返回当前持有非零仓位的证券代码列表。
func (l *PositionLedger) Symbols() []string {
	out := make([]string, 0, len(l.lots))
	for sym, lots := range l.lots {
		if len(lots) > 0 {
			out = append(out, sym)
		}
	}
	return out
}

// TotalShares 返回 symbol 的未复权总持仓股数。
func (l *PositionLedger) TotalShares(symbol string) decimal.Decimal {
	total := decimal.Zero
	for _, lot := range l.lots[symbol] {
		total = total.Add(lot.Shares)
	}
	return total
}

// ApplyBuy 追加一笔新建仓的 lot。
func (l *PositionLedger) ApplyBuy(symbol string, shares, price decimal.Decimal, acquiredDate time.Time, acquiredFactor float64) {
	l.lots[symbol] = append(l.lots[symbol], &Lot{
		Symbol:         symbol,
		Shares:         shares,
		CostBasis:      price,
		AcquiredDate:   acquiredDate,
		AcquiredFactor: acquiredFactor,
	})
}

// SellResult 汇总一次 FIFO 卖出消耗的明细，用于计算已实现盈亏。
type SellResult struct {
	Consumed    decimal.Decimal
	RealizedPnL decimal.Decimal
}

// ApplySell 按 FIFO 顺序消耗 symbol 的持仓 shares 股，用 currentFactor 把每个
// lot 的成本基础换算到卖出日的复权坐标系下计算已实现盈亏：
// effective_cost = cost_basis * (acquired_factor / current_factor)。
// 调用方必须先用 Sellable 确认 shares 不超过可卖数量。
func (l *PositionLedger) ApplySell(symbol string, shares, sellPrice decimal.Decimal, currentFactor float64) SellResult {
	remaining := shares
	realized := decimal.Zero
	lots := l.lots[symbol]

	kept := lots[:0:0]
	for _, lot := range lots {
		if remaining.LessThanOrEqual(decimal.Zero) {
			kept = append(kept, lot)
			continue
		}

		take := decimal.Min(remaining, lot.Shares)
		effectiveCost := lot.CostBasis
		if lot.AcquiredFactor != 0 && currentFactor != 0 {
			effectiveCost = lot.CostBasis.Mul(decimal.NewFromFloat(lot.AcquiredFactor / currentFactor))
		}
		realized = realized.Add(sellPrice.Sub(effectiveCost).Mul(take))

		lot.Shares = lot.Shares.Sub(take)
		remaining = remaining.Sub(take)

		if lot.Shares.GreaterThan(dust) {
			kept = append(kept, lot)
		}
	}
	l.lots[symbol] = kept

	return SellResult{Consumed: shares.Sub(remaining), RealizedPnL: realized}
}

// ApplyCorporateAction 处理一次除权除息事件：现金分红部分由调用方（Account）
// 计入现金；送转部分在此追加一笔零成本的新 lot，原有 lot 的股数保持不变。
// 返回新增股数（送转部分），调用方据此生成一笔 XDXR 合成成交。
func (l *PositionLedger) ApplyCorporateAction(symbol string, div Dividend, factorOnDate float64) decimal.Decimal {
	held := l.TotalShares(symbol)
	if held.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}

	ratio := div.ShareRatio.Add(div.NewShareRatio)
	if ratio.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}

	newShares := held.Mul(ratio)
	l.lots[symbol] = append(l.lots[symbol], &Lot{
		Symbol:         symbol,
		Shares:         newShares,
		CostBasis:      decimal.Zero,
		AcquiredDate:   div.Date,
		AcquiredFactor: factorOnDate,
	})
	return newShares
}

// Sellable 返回截至 asOf 交易日（不含当日买入，遵循 T+1 规则）可卖出的股数，
// 若请求量与可卖量之差小于 100 股，则直接吸收零头返回全部可卖量
// （原始实现 _get_sellable_shares 的行为，避免留下不足一手的尾数持仓）。
func (l *PositionLedger) Sellable(symbol string, requested decimal.Decimal, asOf time.Time) decimal.Decimal {
	sellable := decimal.Zero
	day := asOf.Truncate(24 * time.Hour)
	for _, lot := range l.lots[symbol] {
		if lot.AcquiredDate.Truncate(24 * time.Hour).Before(day) {
			sellable = sellable.Add(lot.Shares)
		}
	}

	hundred := decimal.NewFromInt(100)
	if sellable.Sub(requested).LessThan(hundred) {
		return sellable
	}
	return decimal.Min(requested, sellable)
}

// MarketValue 返回 symbol 在日期 date 的持仓市值，参见 spec §4.2：
// 若无持仓返回 0；若当日可交易用当日收盘价；若停牌则回溯至多 500 个交易日的
// 最近一个可交易收盘价；超出该窗口则退化为使用加权平均成本价估值。
func (l *PositionLedger) MarketValue(ctx context.Context, feed FeedAdapter, symbol string, date time.Time) (decimal.Decimal, error) {
	total := l.TotalShares(symbol)
	if total.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, nil
	}

	factorOnDate, err := feed.AdjustFactor(ctx, symbol, date)
	if err != nil {
		return decimal.Zero, err
	}

	price, foundLive, err := l.resolvePrice(ctx, feed, symbol, date)
	if err != nil {
		return decimal.Zero, err
	}
	if !foundLive {
		return l.weightedCostValue(symbol), nil
	}

	value := decimal.Zero
	for _, lot := range l.lots[symbol] {
		af := lot.AcquiredFactor
		if af == 0 {
			af = 1
		}
		v := price.Mul(lot.Shares).Mul(decimal.NewFromFloat(factorOnDate / af))
		value = value.Add(v)
	}
	return value, nil
}

func (l *PositionLedger) resolvePrice(ctx context.Context, feed FeedAdapter, symbol string, date time.Time) (decimal.Decimal, bool, error) {
	suspended, err := feed.IsSuspended(ctx, symbol, date)
	if err != nil {
		return decimal.Zero, false, err
	}
	if !suspended {
		bar, err := feed.Close(ctx, symbol, date)
		if err != nil {
			return decimal.Zero, false, err
		}
		return bar.Close, true, nil
	}

	bar, ok, err := feed.LastTradableClose(ctx, symbol, date, 500)
	if err != nil {
		return decimal.Zero, false, err
	}
	if !ok {
		return decimal.Zero, false, nil
	}
	return bar.Close, true, nil
}

func (l *PositionLedger) weightedCostValue(symbol string) decimal.Decimal {
	value := decimal.Zero
	for _, lot := range l.lots[symbol] {
		value = value.Add(lot.Shares.Mul(lot.CostBasis))
	}
	return value
}

// SnapshotRow 是持仓查询接口 (positions) 单个 symbol 的展示行。
type SnapshotRow struct {
	Symbol       string
	Shares       decimal.Decimal
	Cost         decimal.Decimal // 加权平均成本
	MarketPrice  decimal.Decimal
	MarketValue  decimal.Decimal
	Sellable     decimal.Decimal
}

// Snapshot 返回 date 当天全部持仓的展示行。
func (l *PositionLedger) Snapshot(ctx context.Context, feed FeedAdapter, date time.Time) ([]SnapshotRow, error) {
	rows := make([]SnapshotRow, 0, len(l.lots))
	for symbol := range l.lots {
		shares := l.TotalShares(symbol)
		if shares.LessThanOrEqual(decimal.Zero) {
			continue
		}

		value, err := l.MarketValue(ctx, feed, symbol, date)
		if err != nil {
			return nil, err
		}

		price := decimal.Zero
		if !shares.IsZero() {
			price = value.Div(shares)
		}

		rows = append(rows, SnapshotRow{
			Symbol:      symbol,
			Shares:      shares,
			Cost:        l.weightedCost(symbol),
			MarketPrice: price,
			MarketValue: value,
			Sellable:    l.Sellable(symbol, shares, date),
		})
	}
	return rows, nil
}

// LotRecord 是 Lot 的可序列化形式，供 SnapshotRepository 落盘/恢复使用。
type LotRecord struct {
	Symbol         string
	Shares         decimal.Decimal
	CostBasis      decimal.Decimal
	AcquiredDate   time.Time
	AcquiredFactor float64
}

// Export 导出全部 lot，用于持久化快照。
func (l *PositionLedger) Export() []LotRecord {
	out := make([]LotRecord, 0)
	for _, lots := range l.lots {
		for _, lot := range lots {
			out = append(out, LotRecord{
				Symbol:         lot.Symbol,
				Shares:         lot.Shares,
				CostBasis:      lot.CostBasis,
				AcquiredDate:   lot.AcquiredDate,
				AcquiredFactor: lot.AcquiredFactor,
			})
		}
	}
	return out
}

// RestorePositionLedger 从快照记录重建持仓台账，保持记录原有顺序
// （FIFO 消耗顺序依赖于此）。
func RestorePositionLedger(records []LotRecord) *PositionLedger {
	l := NewPositionLedger()
	for _, r := range records {
		l.lots[r.Symbol] = append(l.lots[r.Symbol], &Lot{
			Symbol:         r.Symbol,
			Shares:         r.Shares,
			CostBasis:      r.CostBasis,
			AcquiredDate:   r.AcquiredDate,
			AcquiredFactor: r.AcquiredFactor,
		})
	}
	return l
}

func (l *PositionLedger) weightedCost(symbol string) decimal.Decimal {
	shares := l.TotalShares(symbol)
	if shares.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	return l.weightedCostValue(symbol).Div(shares)
}
