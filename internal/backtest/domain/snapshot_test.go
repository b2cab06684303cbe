package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSnapshot_JSONRoundTripPreservesDecimalPrecision guards the payload
// shape persisted by infrastructure/persistence/mysql.snapshotRepository,
// which marshals a Snapshot to JSON before writing it to a single row.
func TestSnapshot_JSONRoundTripPreservesDecimalPrecision(t *testing.T) {
	t.Parallel()

	acquired := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	orig := Snapshot{
		Name:       "strat-a",
		Token:      "tok-a",
		Principal:  d("100000.00"),
		Cash:       d("87654.321"),
		Commission: d("0.0003"),
		StartDate:  acquired,
		EndDate:    acquired.AddDate(1, 0, 0),
		XDXRCursor: acquired,
		Lots: []LotRecord{
			{Symbol: "000001", Shares: d("500"), CostBasis: d("9.876"), AcquiredDate: acquired, AcquiredFactor: 1},
		},
		Trades: []Trade{
			{TradeID: "t1", Symbol: "000001", Side: SideBuy, Shares: d("500"), Price: d("9.876"), Fee: decimal.Zero, TradeTime: acquired},
		},
		Assets: []AssetPoint{
			{Date: acquired, Cash: d("100000"), MarketValue: decimal.Zero, Total: d("100000")},
		},
	}

	raw, err := json.Marshal(orig)
	require.NoError(t, err)

	var restored Snapshot
	require.NoError(t, json.Unmarshal(raw, &restored))

	assert.True(t, restored.Cash.Equal(orig.Cash))
	assert.True(t, restored.Commission.Equal(orig.Commission))
	require.Len(t, restored.Lots, 1)
	assert.True(t, restored.Lots[0].CostBasis.Equal(orig.Lots[0].CostBasis))
	assert.True(t, restored.StartDate.Equal(orig.StartDate))
}
