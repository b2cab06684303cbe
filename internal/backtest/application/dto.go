package application

import "github.com/wyfcoding/backtestengine/internal/backtest/domain"

// 命令与结果 DTO 一律用字符串承载 decimal / 时间字段，避免 JSON 编解码引入
// 浮点误差（沿用 internal/order/application/dto.go 的做法）。

// StartAccountCommand 对应 spec §4.4 的 start 操作。
type StartAccountCommand struct {
	Name        string
	Token       string
	Description string
	Principal   string
	Commission  string
	StartDate   string // YYYY-MM-DD
	EndDate     string // YYYY-MM-DD
}

// TradeCommand 承载 buy/sell/market_buy/market_sell/sell_percent 共用的字段。
// 限价/市价由调用的用例（Buy/Sell 与 MarketBuy/MarketSell/SellPercent）决定：
// Price 只被限价用例解析，市价用例忽略它；Shares 对 SELL_PERCENT 是 (0,1] 的比例。
type TradeCommand struct {
	Symbol    string
	Price     string
	Shares    string
	OrderTime string // RFC3339
}

// TradeDTO 是一次成交的对外表示。
type TradeDTO struct {
	TradeID        string `json:"trade_id"`
	OrderID        string `json:"order_id"`
	Symbol         string `json:"symbol"`
	Side           string `json:"side"`
	Shares         string `json:"shares"`
	Price          string `json:"price"`
	Fee            string `json:"fee"`
	TradeTime      string `json:"trade_time"`
	EventualProfit string `json:"eventual_profit,omitempty"`
}

// AccountInfoDTO 对应 GET .../info。
type AccountInfoDTO struct {
	Name       string `json:"name"`
	Cash       string `json:"cash"`
	Principal  string `json:"principal"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
}

// PositionDTO 是单个 symbol 的持仓展示行。
type PositionDTO struct {
	Symbol      string `json:"symbol"`
	Shares      string `json:"shares"`
	Sellable    string `json:"sellable"`
	Cost        string `json:"cost"`
	MarketPrice string `json:"price"`
	MarketValue string `json:"market_value"`
}

// BillDTO 组合一笔委托及其全部成交。
type BillDTO struct {
	OrderID   string     `json:"order_id"`
	Symbol    string     `json:"symbol"`
	Side      string     `json:"side"`
	Status    string     `json:"status"`
	Reason    string     `json:"reason,omitempty"`
	OrderTime string     `json:"order_time"`
	Trades    []TradeDTO `json:"trades"`
}

// AssetPointDTO 是资产曲线上一天的快照。
type AssetPointDTO struct {
	Date        string `json:"date"`
	Cash        string `json:"cash"`
	MarketValue string `json:"market_value"`
	Total       string `json:"total"`
}

// MetricsCommand 承载 GET .../metrics 的查询参数。
type MetricsCommand struct {
	Start    string
	End      string
	Baseline string
}

// MetricsDTO 是策略表现指标的对外表示，字段直接对应 domain.Metrics。
type MetricsDTO struct {
	Start            string  `json:"start"`
	End              string  `json:"end"`
	Window           int     `json:"window"`
	TotalTx          int     `json:"total_tx"`
	TotalProfit      string  `json:"total_profit,omitempty"`
	TotalProfitRate  string  `json:"total_profit_rate,omitempty"`
	WinRate          float64 `json:"win_rate,omitempty"`
	MeanReturn       float64 `json:"mean_return,omitempty"`
	Sharpe           float64 `json:"sharpe,omitempty"`
	Sortino          float64 `json:"sortino,omitempty"`
	Calmar           float64 `json:"calmar,omitempty"`
	MaxDrawdown      float64 `json:"max_drawdown,omitempty"`
	AnnualReturn     float64 `json:"annual_return,omitempty"`
	AnnualVolatility float64 `json:"volatility,omitempty"`
	Baseline         *MetricsDTO `json:"baseline,omitempty"`
}

func tradeToDTO(t domain.Trade) TradeDTO {
	dto := TradeDTO{
		TradeID:   t.TradeID,
		OrderID:   t.OrderID,
		Symbol:    t.Symbol,
		Side:      string(t.Side),
		Shares:    t.Shares.String(),
		Price:     t.Price.String(),
		Fee:       t.Fee.String(),
		TradeTime: t.TradeTime.Format(timeLayout),
	}
	if t.HasProfit {
		dto.EventualProfit = t.EventualProfit.String()
	}
	return dto
}

func positionToDTO(row domain.SnapshotRow) PositionDTO {
	return PositionDTO{
		Symbol:      row.Symbol,
		Shares:      row.Shares.String(),
		Sellable:    row.Sellable.String(),
		Cost:        row.Cost.String(),
		MarketPrice: row.MarketPrice.String(),
		MarketValue: row.MarketValue.String(),
	}
}

func assetToDTO(p domain.AssetPoint) AssetPointDTO {
	return AssetPointDTO{
		Date:        p.Date.Format(dateLayout),
		Cash:        p.Cash.String(),
		MarketValue: p.MarketValue.String(),
		Total:       p.Total.String(),
	}
}

func metricsToDTO(m domain.Metrics) MetricsDTO {
	dto := MetricsDTO{
		Start:   m.Start.Format(dateLayout),
		End:     m.End.Format(dateLayout),
		Window:  m.Window,
		TotalTx: m.TotalTx,
	}
	if !m.HasData {
		return dto
	}
	dto.TotalProfit = m.TotalProfit.String()
	dto.TotalProfitRate = m.TotalProfitRate.String()
	dto.WinRate = m.WinRate
	dto.MeanReturn = m.MeanReturn
	dto.Sharpe = m.Sharpe
	dto.Sortino = m.Sortino
	dto.Calmar = m.Calmar
	dto.MaxDrawdown = m.MaxDrawdown
	dto.AnnualReturn = m.AnnualReturn
	dto.AnnualVolatility = m.AnnualVolatility
	return dto
}
