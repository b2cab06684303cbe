package domain

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFeed is a minimal in-memory FeedAdapter stand-in; only the methods
// Matcher actually calls are exercised, the rest panic if reached.
type fakeFeed struct {
	bars   []Bar
	limits PriceLimits
}

func (f *fakeFeed) Bars(ctx context.Context, symbol string, start, end time.Time) ([]Bar, error) {
	return f.bars, nil
}
func (f *fakeFeed) DailyBars(ctx context.Context, symbol string, start, end time.Time) ([]DailyBar, error) {
	panic("not used")
}
func (f *fakeFeed) PriceLimits(ctx context.Context, symbol string, date time.Time) (PriceLimits, error) {
	return f.limits, nil
}
func (f *fakeFeed) Close(ctx context.Context, symbol string, date time.Time) (Bar, error) {
	panic("not used")
}
func (f *fakeFeed) LastTradableClose(ctx context.Context, symbol string, date time.Time, maxLookback int) (Bar, bool, error) {
	panic("not used")
}
func (f *fakeFeed) Dividends(ctx context.Context, symbol string, start, end time.Time) ([]Dividend, error) {
	panic("not used")
}
func (f *fakeFeed) AdjustFactor(ctx context.Context, symbol string, date time.Time) (float64, error) {
	return 1, nil
}
func (f *fakeFeed) IsSuspended(ctx context.Context, symbol string, date time.Time) (bool, error) {
	return false, nil
}
func (f *fakeFeed) TradingDays(ctx context.Context, start, end time.Time) ([]time.Time, error) {
	panic("not used")
}

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func minuteBar(hh, mm int, open, close, volume string) Bar {
	t := time.Date(2022, 3, 1, hh, mm, 0, 0, time.UTC)
	return Bar{Time: t, Open: d(open), Close: d(close), High: d(close), Low: d(open), Volume: d(volume)}
}

func TestMatcher_OpenPriceRuleAt0931(t *testing.T) {
	t.Parallel()

	feed := &fakeFeed{
		bars: []Bar{minuteBar(9, 31, "9.80", "9.90", "100000")},
		limits: PriceLimits{UpperLimit: d("11.00"), LowerLimit: d("9.00")},
	}
	m := NewMatcher()

	req := MatchRequest{
		Side:            SideBuy,
		HasLimit:        true,
		LimitPrice:      d("10.00"),
		RequestedShares: d("1000"),
		OrderTime:       time.Date(2022, 3, 1, 9, 29, 0, 0, time.UTC),
	}
	res, err := m.Match(context.Background(), feed, req)
	require.NoError(t, err)
	assert.Equal(t, MatchFilled, res.Outcome)
	assert.True(t, res.AvgPrice.Equal(d("9.80")), "expected open price 9.80, got %s", res.AvgPrice)
}

func TestMatcher_PartialFillWeightedAverage(t *testing.T) {
	t.Parallel()

	feed := &fakeFeed{
		bars: []Bar{
			minuteBar(9, 40, "9.90", "9.90", "3000"),
			minuteBar(9, 41, "9.95", "9.95", "4000"),
			minuteBar(9, 42, "10.01", "10.01", "999999999"),
		},
		limits: PriceLimits{UpperLimit: d("11.00"), LowerLimit: d("9.00")},
	}
	m := NewMatcher()

	req := MatchRequest{
		Side:            SideBuy,
		HasLimit:        true,
		LimitPrice:      d("10.00"),
		RequestedShares: d("10000"),
		OrderTime:       time.Date(2022, 3, 2, 9, 40, 0, 0, time.UTC),
	}
	res, err := m.Match(context.Background(), feed, req)
	require.NoError(t, err)
	assert.Equal(t, MatchPartial, res.Outcome)
	assert.True(t, res.FilledShares.Equal(d("7000")))

	want := d("9.9").Mul(d("3000")).Add(d("9.95").Mul(d("4000"))).Div(d("7000"))
	assert.True(t, res.AvgPrice.Sub(want).Abs().LessThan(d("0.0001")), "got avg %s want %s", res.AvgPrice, want)
}

func TestMatcher_BuyFillFlooredToLotSizeAcrossBars(t *testing.T) {
	t.Parallel()

	feed := &fakeFeed{
		bars: []Bar{
			minuteBar(9, 40, "9.90", "9.90", "350"),
			minuteBar(9, 41, "9.95", "9.95", "460"),
		},
		limits: PriceLimits{UpperLimit: d("11.00"), LowerLimit: d("9.00")},
	}
	m := NewMatcher()

	req := MatchRequest{
		Side:            SideBuy,
		HasLimit:        false,
		RequestedShares: d("10000"),
		OrderTime:       time.Date(2022, 3, 2, 9, 40, 0, 0, time.UTC),
	}
	res, err := m.Match(context.Background(), feed, req)
	require.NoError(t, err)

	// 350 + 460 = 810 shares actually crossed, but a BUY fill must be a
	// multiple of 100 (spec.md Data Model), so the trade floors to 800.
	assert.True(t, res.FilledShares.Equal(d("800")), "got %s", res.FilledShares)
	assert.True(t, res.FilledShares.Mod(d("100")).IsZero())

	// the fill price stays the volume-weighted average of the 810 crossed shares.
	wantAvg := d("9.90").Mul(d("350")).Add(d("9.95").Mul(d("460"))).Div(d("810"))
	assert.True(t, res.AvgPrice.Sub(wantAvg).Abs().LessThan(d("0.0001")), "got avg %s want %s", res.AvgPrice, wantAvg)
}

func TestMatcher_VolumeNotEnoughRejectsWholeOrder(t *testing.T) {
	t.Parallel()

	feed := &fakeFeed{
		bars:   []Bar{minuteBar(10, 0, "9.90", "9.90", "0")},
		limits: PriceLimits{UpperLimit: d("11.00"), LowerLimit: d("9.00")},
	}
	m := NewMatcher()

	req := MatchRequest{
		Side:            SideBuy,
		HasLimit:        true,
		LimitPrice:      d("10.00"),
		RequestedShares: d("1000"),
		OrderTime:       time.Date(2022, 3, 3, 10, 0, 0, 0, time.UTC),
	}
	_, err := m.Match(context.Background(), feed, req)
	assert.ErrorIs(t, err, ErrVolumeNotEnough)
}

func TestMatcher_PriceLimitBarExcluded(t *testing.T) {
	t.Parallel()

	feed := &fakeFeed{
		bars: []Bar{
			minuteBar(10, 0, "11.00", "11.00", "500"), // 涨停，买单跳过
			minuteBar(10, 1, "10.50", "10.50", "500"),
		},
		limits: PriceLimits{UpperLimit: d("11.00"), LowerLimit: d("9.00")},
	}
	m := NewMatcher()

	req := MatchRequest{
		Side:            SideBuy,
		HasLimit:        false,
		RequestedShares: d("500"),
		OrderTime:       time.Date(2022, 3, 4, 10, 0, 0, 0, time.UTC),
	}
	res, err := m.Match(context.Background(), feed, req)
	require.NoError(t, err)
	assert.True(t, res.AvgPrice.Equal(d("10.50")))
}

func TestMatcher_NoMatchWhenNoBars(t *testing.T) {
	t.Parallel()

	feed := &fakeFeed{limits: PriceLimits{UpperLimit: d("11.00"), LowerLimit: d("9.00")}}
	m := NewMatcher()

	req := MatchRequest{
		Side:            SideBuy,
		HasLimit:        true,
		LimitPrice:      d("10.00"),
		RequestedShares: d("100"),
		OrderTime:       time.Date(2022, 3, 5, 10, 0, 0, 0, time.UTC),
	}
	_, err := m.Match(context.Background(), feed, req)
	assert.ErrorIs(t, err, ErrNoMatch)
}

func TestMatcher_AllBarsAtLimitReturnsPriceLimit(t *testing.T) {
	t.Parallel()

	feed := &fakeFeed{
		bars: []Bar{
			minuteBar(10, 0, "11.00", "11.00", "500"),
			minuteBar(10, 1, "11.00", "11.00", "500"),
		},
		limits: PriceLimits{UpperLimit: d("11.00"), LowerLimit: d("9.00")},
	}
	m := NewMatcher()

	req := MatchRequest{
		Side:            SideBuy,
		HasLimit:        false,
		RequestedShares: d("500"),
		OrderTime:       time.Date(2022, 3, 6, 10, 0, 0, 0, time.UTC),
	}
	_, err := m.Match(context.Background(), feed, req)
	assert.ErrorIs(t, err, ErrPriceLimit)
}
