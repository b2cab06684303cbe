// Package messaging 把账户成交事件以 best-effort 方式发布到 Kafka，供下游
// 分析/审计消费。发布失败只记日志，绝不影响撮合结果（spec §4.4 附加行为）。
package messaging

import (
	"context"
	"log/slog"

	"github.com/wyfcoding/backtestengine/internal/backtest/domain"
	"github.com/wyfcoding/backtestengine/pkg/mq"
)

const tradeTopic = "backtest.trade.executed"

// tradeEvent 是发往 Kafka 的成交事件负载。
type tradeEvent struct {
	AccountID string `json:"account_id"`
	TradeID   string `json:"trade_id"`
	OrderID   string `json:"order_id"`
	Symbol    string `json:"symbol"`
	Side      string `json:"side"`
	Shares    string `json:"shares"`
	Price     string `json:"price"`
	Fee       string `json:"fee"`
	TradeTime string `json:"trade_time"`
}

// KafkaTradePublisher 实现 domain.TradeEventPublisher。
type KafkaTradePublisher struct {
	producer *mq.KafkaProducer
	logger   *slog.Logger
}

// NewKafkaTradePublisher 创建一个 Kafka 成交事件发布器。
func NewKafkaTradePublisher(producer *mq.KafkaProducer, logger *slog.Logger) *KafkaTradePublisher {
	return &KafkaTradePublisher{producer: producer, logger: logger}
}

// PublishTrade 尝试发布一条成交事件，失败仅记录日志。
func (p *KafkaTradePublisher) PublishTrade(ctx context.Context, accountID string, trade domain.Trade) {
	event := tradeEvent{
		AccountID: accountID,
		TradeID:   trade.TradeID,
		OrderID:   trade.OrderID,
		Symbol:    trade.Symbol,
		Side:      string(trade.Side),
		Shares:    trade.Shares.String(),
		Price:     trade.Price.String(),
		Fee:       trade.Fee.String(),
		TradeTime: trade.TradeTime.Format("2006-01-02T15:04:05Z07:00"),
	}

	if err := p.producer.SendMessage(ctx, tradeTopic, trade.TradeID, event); err != nil {
		p.logger.Warn("failed to publish trade event", "trade_id", trade.TradeID, "error", err)
	}
}
