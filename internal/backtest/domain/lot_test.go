package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPositionLedger_ApplyBuyThenFIFOSell(t *testing.T) {
	t.Parallel()

	l := NewPositionLedger()
	day1 := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2022, 1, 2, 0, 0, 0, 0, time.UTC)

	l.ApplyBuy("000001", d("500"), d("9.00"), day1, 1)
	l.ApplyBuy("000001", d("500"), d("11.00"), day2, 1)

	assert.True(t, l.TotalShares("000001").Equal(d("1000")))

	res := l.ApplySell("000001", d("700"), d("12.00"), 1)
	assert.True(t, res.Consumed.Equal(d("700")))

	// FIFO: first 500 @ cost 9.00 fully consumed, next 200 @ cost 11.00
	want := d("12.00").Sub(d("9.00")).Mul(d("500")).Add(d("12.00").Sub(d("11.00")).Mul(d("200")))
	assert.True(t, res.RealizedPnL.Equal(want), "got %s want %s", res.RealizedPnL, want)
	assert.True(t, l.TotalShares("000001").Equal(d("300")))
}

func TestPositionLedger_SellableAbsorbsSmallRemainder(t *testing.T) {
	t.Parallel()

	l := NewPositionLedger()
	acquired := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	l.ApplyBuy("000001", d("1000"), d("10.00"), acquired, 1)

	asOf := time.Date(2022, 1, 5, 0, 0, 0, 0, time.UTC)
	// requesting 950 leaves a 50-share remainder below the 100-share
	// absorption threshold, so the whole 1000 is returned instead.
	got := l.Sellable("000001", d("950"), asOf)
	assert.True(t, got.Equal(d("1000")), "got %s", got)
}

func TestPositionLedger_SellableExcludesSameDayBuys(t *testing.T) {
	t.Parallel()

	l := NewPositionLedger()
	today := time.Date(2022, 1, 5, 0, 0, 0, 0, time.UTC)
	l.ApplyBuy("000001", d("500"), d("10.00"), today, 1)

	got := l.Sellable("000001", d("500"), today)
	assert.True(t, got.IsZero(), "same-day buy must not be sellable, got %s", got)
}

func TestPositionLedger_ApplyCorporateActionAddsZeroCostLot(t *testing.T) {
	t.Parallel()

	l := NewPositionLedger()
	acquired := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	l.ApplyBuy("000001", d("1000"), d("10.00"), acquired, 1)

	div := Dividend{Symbol: "000001", Date: time.Date(2022, 6, 1, 0, 0, 0, 0, time.UTC), ShareRatio: d("1.0")}
	added := l.ApplyCorporateAction("000001", div, 2)
	assert.True(t, added.Equal(d("1000")), "10-for-10 split should add equal shares, got %s", added)
	assert.True(t, l.TotalShares("000001").Equal(d("2000")))
}

func TestPositionLedger_ExportRestoreRoundTrip(t *testing.T) {
	t.Parallel()

	l := NewPositionLedger()
	acquired := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	l.ApplyBuy("000001", d("500"), d("9.00"), acquired, 1)
	l.ApplyBuy("600000", d("300"), d("20.00"), acquired, 1)

	restored := RestorePositionLedger(l.Export())
	assert.True(t, restored.TotalShares("000001").Equal(d("500")))
	assert.True(t, restored.TotalShares("600000").Equal(d("300")))
}
