package domain

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// xdxrFeed is a configurable FeedAdapter stub for XDXREngine tests: it
// serves a fixed trading-day calendar and one dividend keyed by date.
type xdxrFeed struct {
	tradingDays []time.Time
	dividends   map[string]Dividend // key: date.Format("2006-01-02")
	factors     map[string]float64
}

func (f *xdxrFeed) Bars(ctx context.Context, symbol string, start, end time.Time) ([]Bar, error) {
	panic("not used")
}
func (f *xdxrFeed) DailyBars(ctx context.Context, symbol string, start, end time.Time) ([]DailyBar, error) {
	panic("not used")
}
func (f *xdxrFeed) PriceLimits(ctx context.Context, symbol string, date time.Time) (PriceLimits, error) {
	panic("not used")
}
func (f *xdxrFeed) Close(ctx context.Context, symbol string, date time.Time) (Bar, error) {
	panic("not used")
}
func (f *xdxrFeed) LastTradableClose(ctx context.Context, symbol string, date time.Time, maxLookback int) (Bar, bool, error) {
	panic("not used")
}
func (f *xdxrFeed) Dividends(ctx context.Context, symbol string, start, end time.Time) ([]Dividend, error) {
	if div, ok := f.dividends[start.Format("2006-01-02")]; ok {
		return []Dividend{div}, nil
	}
	return nil, nil
}
func (f *xdxrFeed) AdjustFactor(ctx context.Context, symbol string, date time.Time) (float64, error) {
	if factor, ok := f.factors[date.Format("2006-01-02")]; ok {
		return factor, nil
	}
	return 1, nil
}
func (f *xdxrFeed) IsSuspended(ctx context.Context, symbol string, date time.Time) (bool, error) {
	return false, nil
}
func (f *xdxrFeed) TradingDays(ctx context.Context, start, end time.Time) ([]time.Time, error) {
	var out []time.Time
	for _, day := range f.tradingDays {
		if day.After(start) && !day.After(end) {
			out = append(out, day)
		}
	}
	return out, nil
}

func TestXDXREngine_SplitPreservesValuationContinuity(t *testing.T) {
	t.Parallel()

	splitDay := time.Date(2022, 4, 1, 0, 0, 0, 0, time.UTC)
	feed := &xdxrFeed{
		tradingDays: []time.Time{splitDay},
		dividends: map[string]Dividend{
			"2022-04-01": {Symbol: "000001", Date: splitDay, ShareRatio: d("1.0")},
		},
		factors: map[string]float64{"2022-04-01": 2},
	}

	ledger := NewPositionLedger()
	acquired := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	ledger.ApplyBuy("000001", d("1000"), d("10.00"), acquired, 1)

	beforeValue := d("1000").Mul(d("10.00")) // 1000 @ 10, factor 1

	engine := NewXDXREngine()
	cursor := time.Date(2022, 3, 31, 0, 0, 0, 0, time.UTC)
	events, newCursor, err := engine.Advance(context.Background(), feed, ledger, cursor, splitDay)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, newCursor.Equal(splitDay))
	assert.True(t, events[0].ShareDelta.Equal(d("1000")))
	assert.True(t, ledger.TotalShares("000001").Equal(d("2000")))

	// close=5 after the split: market value is price times total shares,
	// independent of how those shares are split across lots.
	afterValue := d("5").Mul(ledger.TotalShares("000001"))
	assert.True(t, afterValue.Equal(beforeValue), "before=%s after=%s", beforeValue, afterValue)
}

func TestXDXREngine_NoOpWhenOrderDateNotAfterCursor(t *testing.T) {
	t.Parallel()

	feed := &xdxrFeed{}
	ledger := NewPositionLedger()
	cursor := time.Date(2022, 3, 31, 0, 0, 0, 0, time.UTC)

	events, newCursor, err := NewXDXREngine().Advance(context.Background(), feed, ledger, cursor, cursor)
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.True(t, newCursor.Equal(cursor))
}
