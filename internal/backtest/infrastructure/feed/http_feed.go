// Package feed 提供 domain.FeedAdapter 的具体实现：一个访问外部行情服务的
// HTTP 客户端，以及一层 Redis 缓存装饰器。外部行情源本身不在本系统职责内
// （spec §1 Non-goals），这里只负责把它的响应适配成 domain 需要的形状。
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/backtestengine/internal/backtest/domain"
)

// HTTPFeed 通过 JSON-over-HTTP 访问外部行情服务，实现风格借鉴
// internal/notification/infrastructure/sender/webhook.go 的最小 http.Client
// 封装（无第三方 HTTP 客户端库可用时，教师代码在系统外部边界上直接用
// net/http）。
type HTTPFeed struct {
	baseURL string
	client  *http.Client
}

// NewHTTPFeed 创建一个 HTTPFeed，baseURL 指向行情服务根路径
// （如 http://marketdata.internal/v1）。
func NewHTTPFeed(baseURL string, timeout time.Duration) *HTTPFeed {
	return &HTTPFeed{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (f *HTTPFeed) get(ctx context.Context, path string, query url.Values, out any) error {
	u := f.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return domain.ErrFeedTimeout.WithDetail("%v", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return domain.ErrFeedTimeout.WithDetail("%v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return domain.ErrUnknownSymbol
	}
	if resp.StatusCode != http.StatusOK {
		return domain.ErrFeedDataMissing.WithDetail("status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type barDTO struct {
	Time   time.Time       `json:"time"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume decimal.Decimal `json:"volume"`
}

func (b barDTO) toBar(symbol string) domain.Bar {
	return domain.Bar{Symbol: symbol, Time: b.Time, Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: b.Volume}
}

func (b barDTO) toDailyBar(symbol string) domain.DailyBar {
	return domain.DailyBar{Symbol: symbol, Date: b.Time, Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: b.Volume}
}

func rangeQuery(start, end time.Time) url.Values {
	return url.Values{
		"start": {start.Format(time.RFC3339)},
		"end":   {end.Format(time.RFC3339)},
	}
}

// Bars 返回分钟线。
func (f *HTTPFeed) Bars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	var dtos []barDTO
	if err := f.get(ctx, "/bars/"+symbol, rangeQuery(start, end), &dtos); err != nil {
		return nil, err
	}
	out := make([]domain.Bar, len(dtos))
	for i, d := range dtos {
		out[i] = d.toBar(symbol)
	}
	return out, nil
}

// DailyBars 返回日线。
func (f *HTTPFeed) DailyBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.DailyBar, error) {
	var dtos []barDTO
	if err := f.get(ctx, "/daily/"+symbol, rangeQuery(start, end), &dtos); err != nil {
		return nil, err
	}
	out := make([]domain.DailyBar, len(dtos))
	for i, d := range dtos {
		out[i] = d.toDailyBar(symbol)
	}
	return out, nil
}

// PriceLimits 返回涨跌停价。
func (f *HTTPFeed) PriceLimits(ctx context.Context, symbol string, date time.Time) (domain.PriceLimits, error) {
	var dto struct {
		Upper decimal.Decimal `json:"upper_limit"`
		Lower decimal.Decimal `json:"lower_limit"`
	}
	q := url.Values{"date": {date.Format("2006-01-02")}}
	if err := f.get(ctx, "/limits/"+symbol, q, &dto); err != nil {
		return domain.PriceLimits{}, err
	}
	return domain.PriceLimits{Symbol: symbol, Date: date, UpperLimit: dto.Upper, LowerLimit: dto.Lower}, nil
}

// Close 返回给定交易日的收盘价。
func (f *HTTPFeed) Close(ctx context.Context, symbol string, date time.Time) (domain.Bar, error) {
	var dto struct {
		Suspended bool    `json:"suspended"`
		Bar       barDTO  `json:"bar"`
	}
	q := url.Values{"date": {date.Format("2006-01-02")}}
	if err := f.get(ctx, "/close/"+symbol, q, &dto); err != nil {
		return domain.Bar{}, err
	}
	if dto.Suspended {
		return domain.Bar{}, domain.ErrSuspended
	}
	return dto.Bar.toBar(symbol), nil
}

// LastTradableClose 回溯查找最近一个可交易收盘价。
func (f *HTTPFeed) LastTradableClose(ctx context.Context, symbol string, date time.Time, maxLookback int) (domain.Bar, bool, error) {
	var dto struct {
		Found bool   `json:"found"`
		Bar   barDTO `json:"bar"`
	}
	q := url.Values{
		"date":         {date.Format("2006-01-02")},
		"max_lookback": {fmt.Sprintf("%d", maxLookback)},
	}
	if err := f.get(ctx, "/last_tradable/"+symbol, q, &dto); err != nil {
		return domain.Bar{}, false, err
	}
	if !dto.Found {
		return domain.Bar{}, false, nil
	}
	return dto.Bar.toBar(symbol), true, nil
}

// Dividends 返回区间内的除权除息事件。
func (f *HTTPFeed) Dividends(ctx context.Context, symbol string, start, end time.Time) ([]domain.Dividend, error) {
	var dtos []struct {
		Date          time.Time       `json:"date"`
		CashPerShare  decimal.Decimal `json:"cash_per_share"`
		ShareRatio    decimal.Decimal `json:"share_ratio"`
		NewShareRatio decimal.Decimal `json:"new_share_ratio"`
	}
	if err := f.get(ctx, "/dividends/"+symbol, rangeQuery(start, end), &dtos); err != nil {
		return nil, err
	}
	out := make([]domain.Dividend, len(dtos))
	for i, d := range dtos {
		out[i] = domain.Dividend{Symbol: symbol, Date: d.Date, CashPerShare: d.CashPerShare, ShareRatio: d.ShareRatio, NewShareRatio: d.NewShareRatio}
	}
	return out, nil
}

// AdjustFactor 返回复权因子。
func (f *HTTPFeed) AdjustFactor(ctx context.Context, symbol string, date time.Time) (float64, error) {
	var dto struct {
		Factor float64 `json:"factor"`
	}
	q := url.Values{"date": {date.Format("2006-01-02")}}
	if err := f.get(ctx, "/adjust_factor/"+symbol, q, &dto); err != nil {
		return 0, err
	}
	return dto.Factor, nil
}

// IsSuspended 报告某交易日是否停牌。
func (f *HTTPFeed) IsSuspended(ctx context.Context, symbol string, date time.Time) (bool, error) {
	var dto struct {
		Suspended bool `json:"suspended"`
	}
	q := url.Values{"date": {date.Format("2006-01-02")}}
	if err := f.get(ctx, "/suspended/"+symbol, q, &dto); err != nil {
		return false, err
	}
	return dto.Suspended, nil
}

// TradingDays 返回交易日历。
func (f *HTTPFeed) TradingDays(ctx context.Context, start, end time.Time) ([]time.Time, error) {
	var dto struct {
		Days []time.Time `json:"days"`
	}
	if err := f.get(ctx, "/trading_days", rangeQuery(start, end), &dto); err != nil {
		return nil, err
	}
	return dto.Days, nil
}
