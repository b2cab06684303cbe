package application

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/backtestengine/internal/backtest/domain"
)

// stubFeed is a minimal FeedAdapter double: single-symbol, single-bar,
// never-suspended, factor-1 market data, enough to drive a full
// start->buy->sell->metrics round trip through the application service.
// Minute bars are served stamped on the requested day, as a real feed would.
type stubFeed struct {
	bars        map[string][]domain.Bar
	dailyBars   map[string][]domain.DailyBar
	tradingDays []time.Time
}

func newStubFeed() *stubFeed {
	return &stubFeed{bars: make(map[string][]domain.Bar), dailyBars: make(map[string][]domain.DailyBar)}
}

func (f *stubFeed) Bars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	out := make([]domain.Bar, 0, len(f.bars[symbol]))
	for _, b := range f.bars[symbol] {
		b.Time = time.Date(start.Year(), start.Month(), start.Day(), b.Time.Hour(), b.Time.Minute(), 0, 0, start.Location())
		out = append(out, b)
	}
	return out, nil
}
func (f *stubFeed) DailyBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.DailyBar, error) {
	return f.dailyBars[symbol], nil
}
func (f *stubFeed) PriceLimits(ctx context.Context, symbol string, date time.Time) (domain.PriceLimits, error) {
	return domain.PriceLimits{UpperLimit: decimal.NewFromInt(1000), LowerLimit: decimal.NewFromFloat(0.01)}, nil
}
func (f *stubFeed) Close(ctx context.Context, symbol string, date time.Time) (domain.Bar, error) {
	bars := f.bars[symbol]
	if len(bars) == 0 {
		return domain.Bar{}, domain.ErrFeedDataMissing
	}
	return bars[len(bars)-1], nil
}
func (f *stubFeed) LastTradableClose(ctx context.Context, symbol string, date time.Time, maxLookback int) (domain.Bar, bool, error) {
	bar, err := f.Close(ctx, symbol, date)
	if err != nil {
		return domain.Bar{}, false, nil
	}
	return bar, true, nil
}
func (f *stubFeed) Dividends(ctx context.Context, symbol string, start, end time.Time) ([]domain.Dividend, error) {
	return nil, nil
}
func (f *stubFeed) AdjustFactor(ctx context.Context, symbol string, date time.Time) (float64, error) {
	return 1, nil
}
func (f *stubFeed) IsSuspended(ctx context.Context, symbol string, date time.Time) (bool, error) {
	return false, nil
}
func (f *stubFeed) TradingDays(ctx context.Context, start, end time.Time) ([]time.Time, error) {
	return f.tradingDays, nil
}

// memoryRepo is an in-process SnapshotRepository double.
type memoryRepo struct {
	byName map[string]domain.Snapshot
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{byName: make(map[string]domain.Snapshot)}
}

func (r *memoryRepo) Save(ctx context.Context, snap domain.Snapshot) error {
	r.byName[snap.Name] = snap
	return nil
}
func (r *memoryRepo) Load(ctx context.Context, name string) (*domain.Snapshot, error) {
	snap, ok := r.byName[name]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &snap, nil
}
func (r *memoryRepo) Delete(ctx context.Context, name string) error {
	delete(r.byName, name)
	return nil
}
func (r *memoryRepo) ListNames(ctx context.Context) ([]string, error) {
	out := make([]string, 0, len(r.byName))
	for name := range r.byName {
		out = append(out, name)
	}
	return out, nil
}

// noopPublisher discards trade notifications, matching the best-effort
// semantics of the real Kafka-backed publisher.
type noopPublisher struct{ published []domain.Trade }

func (p *noopPublisher) PublishTrade(ctx context.Context, accountID string, trade domain.Trade) {
	p.published = append(p.published, trade)
}

func newTestService(feed domain.FeedAdapter, repo domain.SnapshotRepository, pub domain.TradeEventPublisher) *BacktestApplicationService {
	registry := domain.NewRegistry(nil)
	logger := slog.New(slog.NewTextHandler(discardWriter{}, nil))
	cfg := Config{StrictSuspensionBlocksAccount: false, RiskFreeRate: 0}
	return NewBacktestApplicationService(registry, feed, repo, pub, logger, cfg)
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func minuteBarAt(hh, mm int, price, volume string) domain.Bar {
	t := time.Date(2022, 3, 1, hh, mm, 0, 0, time.UTC)
	return domain.Bar{Time: t, Open: decStr(price), Close: decStr(price), High: decStr(price), Low: decStr(price), Volume: decStr(volume)}
}

func decStr(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestBacktestApplicationService_StartAccountRejectsBadDateRange(t *testing.T) {
	t.Parallel()

	svc := newTestService(newStubFeed(), newMemoryRepo(), &noopPublisher{})
	_, err := svc.StartAccount(context.Background(), StartAccountCommand{
		Name: "strat-a", Token: "tok-a", Principal: "100000",
		StartDate: "2022-06-01", EndDate: "2022-01-01",
	})
	assert.ErrorIs(t, err, domain.ErrBadDatetime)
}

func TestBacktestApplicationService_StartBuySellInfoRoundTrip(t *testing.T) {
	t.Parallel()

	feed := newStubFeed()
	feed.bars["000001"] = []domain.Bar{minuteBarAt(9, 40, "10.00", "100000")}

	pub := &noopPublisher{}
	svc := newTestService(feed, newMemoryRepo(), pub)

	_, err := svc.StartAccount(context.Background(), StartAccountCommand{
		Name: "strat-a", Token: "tok-a", Principal: "100000",
		StartDate: "2022-01-01", EndDate: "2022-12-31",
	})
	require.NoError(t, err)

	buyTrade, err := svc.Buy(context.Background(), "tok-a", TradeCommand{
		Symbol: "000001", Price: "10.00", Shares: "1000",
		OrderTime: time.Date(2022, 1, 5, 9, 40, 0, 0, time.UTC).Format(time.RFC3339),
	})
	require.NoError(t, err)
	assert.Equal(t, "1000", buyTrade.Shares)
	assert.Len(t, pub.published, 1)

	info, err := svc.Info(context.Background(), "tok-a")
	require.NoError(t, err)
	assert.Equal(t, "90000", info.Cash)

	positions, err := svc.Positions(context.Background(), "tok-a", "2022-01-05")
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, "000001", positions[0].Symbol)

	feed.bars["000001"] = []domain.Bar{minuteBarAt(9, 40, "11.00", "100000")}
	sellTrade, err := svc.Sell(context.Background(), "tok-a", TradeCommand{
		Symbol: "000001", Price: "11.00", Shares: "1000",
		OrderTime: time.Date(2022, 1, 6, 9, 40, 0, 0, time.UTC).Format(time.RFC3339),
	})
	require.NoError(t, err)
	assert.Equal(t, "1000", sellTrade.Shares)
	assert.NotEmpty(t, sellTrade.EventualProfit)

	bills, err := svc.Bills(context.Background(), "tok-a")
	require.NoError(t, err)
	require.Len(t, bills, 2)
}

func TestBacktestApplicationService_LookupUnknownTokenFails(t *testing.T) {
	t.Parallel()

	svc := newTestService(newStubFeed(), newMemoryRepo(), &noopPublisher{})
	_, err := svc.Info(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestBacktestApplicationService_DeleteAccountsWithEmptyTokensDeletesAll(t *testing.T) {
	t.Parallel()

	svc := newTestService(newStubFeed(), newMemoryRepo(), &noopPublisher{})
	_, err := svc.StartAccount(context.Background(), StartAccountCommand{
		Name: "strat-d1", Token: "tok-d1", Principal: "100000",
		StartDate: "2022-01-01", EndDate: "2022-12-31",
	})
	require.NoError(t, err)
	_, err = svc.StartAccount(context.Background(), StartAccountCommand{
		Name: "strat-d2", Token: "tok-d2", Principal: "100000",
		StartDate: "2022-01-01", EndDate: "2022-12-31",
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteAccounts(context.Background(), nil))

	_, err = svc.Info(context.Background(), "tok-d1")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = svc.Info(context.Background(), "tok-d2")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestBacktestApplicationService_SaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	feed := newStubFeed()
	feed.bars["000001"] = []domain.Bar{minuteBarAt(9, 40, "10.00", "100000")}
	repo := newMemoryRepo()
	svc := newTestService(feed, repo, &noopPublisher{})

	_, err := svc.StartAccount(context.Background(), StartAccountCommand{
		Name: "strat-b", Token: "tok-b", Principal: "50000",
		StartDate: "2022-01-01", EndDate: "2022-12-31",
	})
	require.NoError(t, err)

	_, err = svc.Buy(context.Background(), "tok-b", TradeCommand{
		Symbol: "000001", Price: "10.00", Shares: "1000",
		OrderTime: time.Date(2022, 1, 5, 9, 40, 0, 0, time.UTC).Format(time.RFC3339),
	})
	require.NoError(t, err)

	require.NoError(t, svc.Save(context.Background(), "tok-b"))
	require.NoError(t, svc.DeleteAccounts(context.Background(), []string{"tok-b"}))

	_, err = svc.Info(context.Background(), "tok-b")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	info, err := svc.Load(context.Background(), "strat-b", "tok-b-2")
	require.NoError(t, err)
	assert.Equal(t, "40000", info.Cash)

	positions, err := svc.Positions(context.Background(), "tok-b-2", "2022-01-05")
	require.NoError(t, err)
	require.Len(t, positions, 1)
}

func TestBacktestApplicationService_MetricsNoTradesYet(t *testing.T) {
	t.Parallel()

	feed := newStubFeed()
	svc := newTestService(feed, newMemoryRepo(), &noopPublisher{})

	_, err := svc.StartAccount(context.Background(), StartAccountCommand{
		Name: "strat-c", Token: "tok-c", Principal: "100000",
		StartDate: "2022-01-01", EndDate: "2022-12-31",
	})
	require.NoError(t, err)

	metrics, err := svc.Metrics(context.Background(), "tok-c", MetricsCommand{})
	require.NoError(t, err)
	assert.Equal(t, 0, metrics.TotalTx)
}
