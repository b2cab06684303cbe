package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func assetPoint(dateStr, total string) AssetPoint {
	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		panic(err)
	}
	return AssetPoint{Date: date, Total: d(total), Cash: d(total), MarketValue: decimal.Zero}
}

func TestMetricsCalculator_NoTradesYetLeavesZeroFields(t *testing.T) {
	t.Parallel()

	calc := NewMetricsCalculator(0)
	start, _ := time.Parse("2006-01-02", "2022-01-01")
	end, _ := time.Parse("2006-01-02", "2022-01-31")

	assets := []AssetPoint{assetPoint("2022-01-01", "100000"), assetPoint("2022-01-31", "100000")}
	res := calc.Compute(assets, nil, d("100000"), start, end)

	assert.Equal(t, 0, res.TotalTx)
	assert.False(t, res.HasData)
	assert.Equal(t, 0.0, res.Sharpe)
}

func TestMetricsCalculator_WinRateFromClosedTrades(t *testing.T) {
	t.Parallel()

	calc := NewMetricsCalculator(0)
	start, _ := time.Parse("2006-01-02", "2022-01-01")
	end, _ := time.Parse("2006-01-02", "2022-01-05")

	assets := []AssetPoint{
		assetPoint("2022-01-01", "100000"),
		assetPoint("2022-01-02", "101000"),
		assetPoint("2022-01-03", "99500"),
		assetPoint("2022-01-04", "102000"),
		assetPoint("2022-01-05", "103000"),
	}
	trades := []Trade{
		{TradeTime: mustDate("2022-01-02"), HasProfit: true, EventualProfit: d("500")},
		{TradeTime: mustDate("2022-01-03"), HasProfit: true, EventualProfit: d("-200")},
		{TradeTime: mustDate("2022-01-04"), HasProfit: false},
	}

	res := calc.Compute(assets, trades, d("100000"), start, end)
	assert.Equal(t, 2, res.TotalTx)
	assert.InDelta(t, 0.5, res.WinRate, 1e-9)
	assert.True(t, res.HasData)
	assert.True(t, res.TotalProfit.Equal(d("3000")))
}

func TestMetricsCalculator_MaxDrawdownIsNegativeOrZero(t *testing.T) {
	t.Parallel()

	calc := NewMetricsCalculator(0)
	start, _ := time.Parse("2006-01-02", "2022-01-01")
	end, _ := time.Parse("2006-01-02", "2022-01-05")

	assets := []AssetPoint{
		assetPoint("2022-01-01", "100000"),
		assetPoint("2022-01-02", "110000"),
		assetPoint("2022-01-03", "90000"),
		assetPoint("2022-01-04", "95000"),
		assetPoint("2022-01-05", "120000"),
	}
	trades := []Trade{{TradeTime: mustDate("2022-01-02"), HasProfit: true, EventualProfit: d("1")}}

	res := calc.Compute(assets, trades, d("100000"), start, end)
	assert.LessOrEqual(t, res.MaxDrawdown, 0.0)
	// peak 110000 -> trough 90000 is the deepest drawdown seen.
	assert.InDelta(t, (90000.0-110000.0)/110000.0, res.MaxDrawdown, 1e-9)
}

func TestMetricsCalculator_BaselineMetricsHoldToEnd(t *testing.T) {
	t.Parallel()

	calc := NewMetricsCalculator(0)
	start, _ := time.Parse("2006-01-02", "2022-01-01")
	end, _ := time.Parse("2006-01-02", "2022-01-03")

	closes := []decimal.Decimal{d("10.0"), d("11.0"), d("9.9")}
	res := calc.BaselineMetrics(closes, start, end)

	assert.True(t, res.HasData)
	want := d("9.9").Sub(d("10.0")).Div(d("10.0"))
	assert.True(t, res.TotalProfitRate.Sub(want).Abs().LessThan(d("0.0001")))
}

func mustDate(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}
