package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wyfcoding/backtestengine/internal/backtest/domain"
)

// CachingFeed 是 domain.FeedAdapter 的缓存装饰器：先查 Redis，miss 时穿透到
// 底层 feed 并回填，cache-aside 模式沿用
// internal/marketdata/infrastructure/persistence/redis/kline_repository.go。
// 只缓存对已收盘历史数据的查询（Bars/DailyBars/PriceLimits/Dividends/
// AdjustFactor/TradingDays），不缓存 IsSuspended/Close/LastTradableClose
// 这类可能在同一交易日内变化或依赖"最新"语义的查询。
type CachingFeed struct {
	next   domain.FeedAdapter
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewCachingFeed 用 client 包装 next。
func NewCachingFeed(next domain.FeedAdapter, client redis.UniversalClient) *CachingFeed {
	return &CachingFeed{
		next:   next,
		client: client,
		prefix: "backtest:feed:",
		ttl:    24 * time.Hour,
	}
}

func (f *CachingFeed) cacheGet(ctx context.Context, key string, out any) bool {
	data, err := f.client.Get(ctx, f.prefix+key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(data, out) == nil
}

func (f *CachingFeed) cacheSet(ctx context.Context, key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	f.client.Set(ctx, f.prefix+key, data, f.ttl)
}

func rangeKey(kind, symbol string, start, end time.Time) string {
	return fmt.Sprintf("%s:%s:%s:%s", kind, symbol, start.Format(time.RFC3339), end.Format(time.RFC3339))
}

func (f *CachingFeed) Bars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	key := rangeKey("bars", symbol, start, end)
	var cached []domain.Bar
	if f.cacheGet(ctx, key, &cached) {
		return cached, nil
	}
	bars, err := f.next.Bars(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}
	f.cacheSet(ctx, key, bars)
	return bars, nil
}

func (f *CachingFeed) DailyBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.DailyBar, error) {
	key := rangeKey("daily", symbol, start, end)
	var cached []domain.DailyBar
	if f.cacheGet(ctx, key, &cached) {
		return cached, nil
	}
	bars, err := f.next.DailyBars(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}
	f.cacheSet(ctx, key, bars)
	return bars, nil
}

func (f *CachingFeed) PriceLimits(ctx context.Context, symbol string, date time.Time) (domain.PriceLimits, error) {
	key := fmt.Sprintf("limits:%s:%s", symbol, date.Format("2006-01-02"))
	var cached domain.PriceLimits
	if f.cacheGet(ctx, key, &cached) {
		return cached, nil
	}
	limits, err := f.next.PriceLimits(ctx, symbol, date)
	if err != nil {
		return domain.PriceLimits{}, err
	}
	f.cacheSet(ctx, key, limits)
	return limits, nil
}

func (f *CachingFeed) Close(ctx context.Context, symbol string, date time.Time) (domain.Bar, error) {
	return f.next.Close(ctx, symbol, date)
}

func (f *CachingFeed) LastTradableClose(ctx context.Context, symbol string, date time.Time, maxLookback int) (domain.Bar, bool, error) {
	return f.next.LastTradableClose(ctx, symbol, date, maxLookback)
}

func (f *CachingFeed) Dividends(ctx context.Context, symbol string, start, end time.Time) ([]domain.Dividend, error) {
	key := rangeKey("dividends", symbol, start, end)
	var cached []domain.Dividend
	if f.cacheGet(ctx, key, &cached) {
		return cached, nil
	}
	divs, err := f.next.Dividends(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}
	f.cacheSet(ctx, key, divs)
	return divs, nil
}

func (f *CachingFeed) AdjustFactor(ctx context.Context, symbol string, date time.Time) (float64, error) {
	key := fmt.Sprintf("factor:%s:%s", symbol, date.Format("2006-01-02"))
	var cached float64
	if f.cacheGet(ctx, key, &cached) {
		return cached, nil
	}
	factor, err := f.next.AdjustFactor(ctx, symbol, date)
	if err != nil {
		return 0, err
	}
	f.cacheSet(ctx, key, factor)
	return factor, nil
}

func (f *CachingFeed) IsSuspended(ctx context.Context, symbol string, date time.Time) (bool, error) {
	return f.next.IsSuspended(ctx, symbol, date)
}

func (f *CachingFeed) TradingDays(ctx context.Context, start, end time.Time) ([]time.Time, error) {
	key := rangeKey("trading_days", "*", start, end)
	var cached []time.Time
	if f.cacheGet(ctx, key, &cached) {
		return cached, nil
	}
	days, err := f.next.TradingDays(ctx, start, end)
	if err != nil {
		return nil, err
	}
	f.cacheSet(ctx, key, days)
	return days, nil
}
