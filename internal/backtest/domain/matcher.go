package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// openRuleHour/openRuleMinute 是 spec 中 "9:31 开盘价特例" 的分界线：委托时间不晚于当天
// 09:31 的，第一根被考察的 K 线用其开盘价而非收盘价参与撮合，用于支持
// "次日开盘买入" 类策略。
const openRuleHour, openRuleMinute = 9, 31

// closeHour/closeMinute 是撮合搜索窗口的收盘时刻（A股 15:00 收盘）。
const closeHour, closeMinute = 15, 0

// MatchOutcome 是撮合的最终结果分类。
type MatchOutcome string

const (
	MatchFilled  MatchOutcome = "FILLED"
	MatchPartial MatchOutcome = "PARTIAL"
)

// MatchRequest 描述一次撮合请求。
type MatchRequest struct {
	Symbol          string
	Side            Side
	LimitPrice      decimal.Decimal
	HasLimit        bool // false 表示市价委托，撮合时不做价格过滤
	RequestedShares decimal.Decimal
	OrderTime       time.Time
}

// MatchResult 是一次成功撮合（FILLED 或 PARTIAL）的结果。
type MatchResult struct {
	Outcome      MatchOutcome
	FilledShares decimal.Decimal
	AvgPrice     decimal.Decimal
	FillTime     time.Time
}

// Matcher 是无状态的撮合函数对象：给定一笔委托与来自 FeedAdapter 的 K 线流，
// 产出一个成交决定（成交股数、加权均价、成交时刻），或者一个拒绝理由。
//
// 同一分钟出现多根价格相同但成交量不同的 K 线时，按 FeedAdapter 返回的顺序
// （即 feed 顺序）依次消耗，不做额外排序（spec §9 未解决问题的显式约定）。
type Matcher struct{}

// NewMatcher 创建一个 Matcher。Matcher 本身不持有任何状态，可以安全地在多个
// goroutine 间共享同一个实例。
func NewMatcher() Matcher {
	return Matcher{}
}

// Match 执行 spec §4.1 描述的限价/市价撮合算法。
func (Matcher) Match(ctx context.Context, feed FeedAdapter, req MatchRequest) (*MatchResult, error) {
	limits, err := feed.PriceLimits(ctx, req.Symbol, req.OrderTime)
	if err != nil {
		return nil, err
	}

	end := endOfTradingDay(req.OrderTime)
	bars, err := feed.Bars(ctx, req.Symbol, req.OrderTime, end)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, ErrNoMatch
	}

	useOpenForFirst := usesOpenPriceRule(req.OrderTime)

	remaining := req.RequestedShares
	matched := decimal.Zero
	weightedSum := decimal.Zero
	var lastFillTime time.Time
	consideredBars := 0
	limitExcludedBars := 0

	for i, bar := range bars {
		if remaining.LessThanOrEqual(decimal.Zero) {
			break
		}

		price := bar.Close
		if i == 0 && useOpenForFirst {
			price = bar.Open
		}

		// 一侧市场的涨跌停 bar 不参与撮合。
		if req.Side.IsBuy() && price.Equal(limits.UpperLimit) {
			limitExcludedBars++
			continue
		}
		if !req.Side.IsBuy() && price.Equal(limits.LowerLimit) {
			limitExcludedBars++
			continue
		}

		consideredBars++

		if req.HasLimit {
			if req.Side.IsBuy() && price.GreaterThan(req.LimitPrice) {
				continue
			}
			if !req.Side.IsBuy() && price.LessThan(req.LimitPrice) {
				continue
			}
		}

		if bar.Volume.LessThanOrEqual(decimal.Zero) {
			// 价格满足但成交量为零：拒绝整笔委托，而非悄悄产生除零 (issue #31)。
			return nil, ErrVolumeNotEnough
		}

		take := decimal.Min(remaining, bar.Volume)
		matched = matched.Add(take)
		weightedSum = weightedSum.Add(take.Mul(price))
		remaining = remaining.Sub(take)
		lastFillTime = bar.Time
	}

	if matched.LessThanOrEqual(decimal.Zero) {
		// 全天可考察的 bar 全部停留在涨跌停价：拒绝理由是"封死了"而非单纯的
		// 限价未被满足，两者都归入 TradeRejected 但消息不同，便于运营排障。
		if consideredBars == 0 && limitExcludedBars > 0 {
			return nil, ErrPriceLimit
		}
		return nil, ErrNoMatch
	}

	// 均价是各 bar 实际穿越股数的加权平均，取自手数对齐之前的累计量。
	avgPrice := weightedSum.Div(matched)

	if req.Side.IsBuy() {
		// 买入成交股数是实体不变量，不只是请求参数：多根 bar 的成交量之和
		// 未必是100的整数倍，累计成交必须再对齐一次手数（对应 broker.py:708
		// 的取整点）；均价沿用对齐前的加权平均，不随取整改变。
		matched = matched.Div(decimal.NewFromInt(100)).Floor().Mul(decimal.NewFromInt(100))
		if matched.LessThanOrEqual(decimal.Zero) {
			return nil, ErrVolumeNotEnough
		}
	}

	outcome := MatchFilled
	if matched.LessThan(req.RequestedShares) {
		outcome = MatchPartial
	}

	return &MatchResult{
		Outcome:      outcome,
		FilledShares: matched,
		AvgPrice:     avgPrice,
		FillTime:     lastFillTime,
	}, nil
}

func usesOpenPriceRule(orderTime time.Time) bool {
	cutoff := time.Date(orderTime.Year(), orderTime.Month(), orderTime.Day(), openRuleHour, openRuleMinute, 0, 0, orderTime.Location())
	return !orderTime.After(cutoff)
}

func endOfTradingDay(orderTime time.Time) time.Time {
	return time.Date(orderTime.Year(), orderTime.Month(), orderTime.Day(), closeHour, closeMinute, 0, 0, orderTime.Location())
}
