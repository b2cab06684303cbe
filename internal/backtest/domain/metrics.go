package domain

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/backtestengine/pkg/algos"
)

// annualTradingDays 是年化换算使用的交易日数（A股惯例，与原始实现一致）。
const annualTradingDays = 252.0

// Metrics 汇总账户在 [start, end] 区间内的策略表现，字段命名对齐
// original_source 的 metrics() 返回字典（spec §4.5）。TotalTx 为 0 时
// 除 Start/End/Window/TotalTx 外全部字段保持零值，调用方据此判断
// "NO_TRADES_YET"。
type Metrics struct {
	Start            time.Time
	End              time.Time
	Window           int
	TotalTx          int
	TotalProfit      decimal.Decimal
	TotalProfitRate  decimal.Decimal
	WinRate          float64
	MeanReturn       float64
	Sharpe           float64
	Sortino          float64
	Calmar           float64
	MaxDrawdown      float64
	AnnualReturn     float64
	AnnualVolatility float64
	HasData          bool
}

// MetricsCalculator 从一段资产曲线和成交流水计算策略指标。无状态，
// 算法移植自 _examples/original_source/backtest/trade/broker.py::metrics
// 及其调用的 empyrical 系列公式（sharpe_ratio/sortino_ratio/calmar_ratio/
// max_drawdown/annual_return/annual_volatility）。
type MetricsCalculator struct {
	riskFreeRate float64 // 年化无风险利率，会按 annualTradingDays 折算到日频
}

// NewMetricsCalculator 创建一个计算器，riskFreeRate 为年化无风险利率。
func NewMetricsCalculator(riskFreeRate float64) MetricsCalculator {
	return MetricsCalculator{riskFreeRate: riskFreeRate}
}

// Compute 计算 [start, end] 区间内的账户指标。assets 必须按日期升序排列，
// trades 只需要包含用于胜率统计的已实现盈亏成交（HasProfit=true）。
func (m MetricsCalculator) Compute(assets []AssetPoint, trades []Trade, principal decimal.Decimal, start, end time.Time) Metrics {
	window := countCalendarDays(start, end)
	res := Metrics{Start: start, End: end, Window: window}

	filtered := make([]AssetPoint, 0, len(assets))
	for _, p := range assets {
		if !p.Date.Before(start) && !p.Date.After(end) {
			filtered = append(filtered, p)
		}
	}
	if len(filtered) < 2 {
		return res
	}

	var wins, closedTx int
	for _, t := range trades {
		if !t.HasProfit || t.TradeTime.Before(start) || t.TradeTime.After(end) {
			continue
		}
		closedTx++
		if t.EventualProfit.IsPositive() {
			wins++
		}
	}
	res.TotalTx = closedTx
	if closedTx == 0 {
		return res
	}

	res.WinRate = float64(wins) / float64(closedTx)
	res.TotalProfit = filtered[len(filtered)-1].Total.Sub(filtered[0].Total)
	if principal.IsPositive() {
		res.TotalProfitRate = res.TotalProfit.Div(principal)
	}

	returns := dailyReturns(filtered)
	if len(returns) == 0 {
		res.HasData = true
		return res
	}

	rf := m.riskFreeRate / annualTradingDays

	res.MeanReturn = mean(returns)
	res.Sharpe = sharpeRatio(returns, rf)
	res.Sortino = sortinoRatio(returns, rf)
	res.AnnualReturn = annualReturn(returns)
	res.AnnualVolatility = annualVolatility(returns)
	res.MaxDrawdown = maxDrawdown(assetTotals(filtered))
	res.Calmar = calmarRatio(res.AnnualReturn, res.MaxDrawdown)
	res.HasData = true
	return res
}

// BaselineMetrics 计算一个持有到底的参考标的（如指数）在 closes 序列上的
// 表现指标，用于 metrics 接口的 baseline 对比字段（spec 附加功能）。
// 与 Compute 不同，这里没有配对交易的概念，WinRate/MeanReturn 直接来自日收益。
func (m MetricsCalculator) BaselineMetrics(closes []decimal.Decimal, start, end time.Time) Metrics {
	res := Metrics{Start: start, End: end, Window: countCalendarDays(start, end)}
	if len(closes) < 2 {
		return res
	}

	totals := make([]float64, len(closes))
	for i, c := range closes {
		totals[i], _ = c.Float64()
	}
	returns := make([]float64, 0, len(totals)-1)
	var wins int
	for i := 1; i < len(totals); i++ {
		if totals[i-1] == 0 {
			returns = append(returns, 0)
			continue
		}
		r := totals[i]/totals[i-1] - 1
		returns = append(returns, r)
		if r > 0 {
			wins++
		}
	}

	rf := m.riskFreeRate / annualTradingDays
	res.WinRate = float64(wins) / float64(len(returns))
	res.MeanReturn = mean(returns)
	res.Sharpe = sharpeRatio(returns, rf)
	res.Sortino = sortinoRatio(returns, rf)
	res.AnnualReturn = annualReturn(returns)
	res.AnnualVolatility = annualVolatility(returns)
	res.MaxDrawdown = maxDrawdown(totals)
	res.Calmar = calmarRatio(res.AnnualReturn, res.MaxDrawdown)
	res.TotalProfitRate = closes[len(closes)-1].Sub(closes[0]).Div(closes[0])
	res.HasData = true
	return res
}

func countCalendarDays(start, end time.Time) int {
	if end.Before(start) {
		return 0
	}
	return int(end.Sub(start).Hours()/24) + 1
}

func assetTotals(points []AssetPoint) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i], _ = p.Total.Float64()
	}
	return out
}

func dailyReturns(points []AssetPoint) []float64 {
	totals := assetTotals(points)
	if len(totals) < 2 {
		return nil
	}
	out := make([]float64, 0, len(totals)-1)
	for i := 1; i < len(totals); i++ {
		if totals[i-1] == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, totals[i]/totals[i-1]-1)
	}
	return out
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stddev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	mu := mean(xs)
	var sq float64
	for _, x := range xs {
		d := x - mu
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(xs)-1))
}

func downsideDeviation(xs []float64, threshold float64) float64 {
	var sq float64
	var n int
	for _, x := range xs {
		if x < threshold {
			d := x - threshold
			sq += d * d
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return math.Sqrt(sq / float64(n))
}

// sharpeRatio 是超额日收益均值与日收益标准差之比，按年化交易日数折算到年频。
func sharpeRatio(returns []float64, rf float64) float64 {
	sd := stddev(returns)
	if sd == 0 {
		return 0
	}
	return (mean(returns) - rf) / sd * math.Sqrt(annualTradingDays)
}

// sortinoRatio 与 sharpeRatio 相同，但分母只统计低于 rf 的下行波动。
func sortinoRatio(returns []float64, rf float64) float64 {
	dd := downsideDeviation(returns, rf)
	if dd == 0 {
		return 0
	}
	return (mean(returns) - rf) / dd * math.Sqrt(annualTradingDays)
}

// annualReturn 把区间累计收益率按几何方式年化。
func annualReturn(returns []float64) float64 {
	cumulative := 1.0
	for _, r := range returns {
		cumulative *= 1 + r
	}
	n := float64(len(returns))
	if n == 0 || cumulative <= 0 {
		return 0
	}
	return math.Pow(cumulative, annualTradingDays/n) - 1
}

func annualVolatility(returns []float64) float64 {
	return stddev(returns) * math.Sqrt(annualTradingDays)
}

// maxDrawdown 用区间最大值线段树求每个位置之前的历史峰值，取
// (value-peak)/peak 的最小值（最深回撤，负数或零）。总资产序列上做一次
// O(n log n) 扫描，借用 pkg/algos 的 RangeMaxSegmentTree 而非线性维护
// running max，为 registry/metrics 层将来支持增量重算留出接口。
func maxDrawdown(totals []float64) float64 {
	if len(totals) < 2 {
		return 0
	}
	decimals := make([]decimal.Decimal, len(totals))
	for i, v := range totals {
		decimals[i] = decimal.NewFromFloat(v)
	}
	tree := algos.NewRangeMaxSegmentTree(decimals)

	worst := 0.0
	for i, v := range totals {
		peakDec, err := tree.Query(0, i)
		if err != nil {
			continue
		}
		peak, _ := peakDec.Float64()
		if peak <= 0 {
			continue
		}
		dd := (v - peak) / peak
		if dd < worst {
			worst = dd
		}
	}
	return worst
}

func calmarRatio(annualRet, maxDD float64) float64 {
	if maxDD == 0 {
		return 0
	}
	return annualRet / math.Abs(maxDD)
}
