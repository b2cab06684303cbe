// Package domain 提供回测撮合引擎、账户状态机与除权除息引擎的核心模型。
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bar 表示一根分钟线，用于撮合；Close 在成交时兼作代表价。
type Bar struct {
	Symbol string
	Time   time.Time
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume decimal.Decimal
}

// DailyBar 表示一根日线，用于估值与基准指标计算。
type DailyBar struct {
	Symbol string
	Date   time.Time
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume decimal.Decimal
}

// PriceLimits 表示某证券在某交易日的涨跌停价。
type PriceLimits struct {
	Symbol     string
	Date       time.Time
	UpperLimit decimal.Decimal
	LowerLimit decimal.Decimal
}

// Dividend 表示一次除权除息事件。CashPerShare 为每股现金分红，
// ShareRatio/NewShareRatio 分别为送股比例与转增比例（十送十即 ShareRatio=1.0）。
type Dividend struct {
	Symbol        string
	Date          time.Time
	CashPerShare  decimal.Decimal
	ShareRatio    decimal.Decimal
	NewShareRatio decimal.Decimal
}

// IsZero 报告该除权除息事件是否为空事件（无现金、无送转）。
func (d Dividend) IsZero() bool {
	return d.CashPerShare.IsZero() && d.ShareRatio.IsZero() && d.NewShareRatio.IsZero()
}
