package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/backtestengine/internal/backtest/domain"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = time.RFC3339
)

// Config 是账户创建/指标计算的可配置行为，覆盖 SPEC_FULL.md 的 Open
// Question 决策项。
type Config struct {
	StrictSuspensionBlocksAccount bool
	RiskFreeRate                  float64
	DefaultBaseline               string
}

// BacktestApplicationService 编排账户生命周期与交易用例，是
// interfaces/http 层唯一依赖的应用服务（沿用
// internal/order/application 的分层：接口层不直接触碰 domain 聚合）。
type BacktestApplicationService struct {
	registry  *domain.Registry
	feed      domain.FeedAdapter
	repo      domain.SnapshotRepository
	publisher domain.TradeEventPublisher
	logger    *slog.Logger
	cfg       Config
}

// NewBacktestApplicationService 组装应用服务。
func NewBacktestApplicationService(registry *domain.Registry, feed domain.FeedAdapter, repo domain.SnapshotRepository, publisher domain.TradeEventPublisher, logger *slog.Logger, cfg Config) *BacktestApplicationService {
	return &BacktestApplicationService{
		registry:  registry,
		feed:      feed,
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		cfg:       cfg,
	}
}

// StartAccount 创建一个新的回测账户（spec §4.4 start）。
func (s *BacktestApplicationService) StartAccount(ctx context.Context, cmd StartAccountCommand) (*AccountInfoDTO, error) {
	principal, err := decimal.NewFromString(cmd.Principal)
	if err != nil {
		return nil, domain.ErrBadDatetime.WithDetail("principal: %v", err)
	}
	commission := decimal.Zero
	if cmd.Commission != "" {
		commission, err = decimal.NewFromString(cmd.Commission)
		if err != nil {
			return nil, domain.ErrBadDatetime.WithDetail("commission: %v", err)
		}
	}
	start, err := time.Parse(dateLayout, cmd.StartDate)
	if err != nil {
		return nil, domain.ErrBadDatetime.WithDetail("start_date: %v", err)
	}
	end, err := time.Parse(dateLayout, cmd.EndDate)
	if err != nil {
		return nil, domain.ErrBadDatetime.WithDetail("end_date: %v", err)
	}
	if !end.After(start) {
		return nil, domain.ErrBadDatetime.WithDetail("end_date must be after start_date")
	}

	acc := domain.NewAccount(cmd.Name, cmd.Token, cmd.Description, principal, commission, start, end, s.cfg.StrictSuspensionBlocksAccount)
	acc.SetPublisher(s.publisher)

	if err := s.registry.Create(acc); err != nil {
		return nil, err
	}

	s.logger.Info("account started", "name", cmd.Name, "principal", cmd.Principal, "start", cmd.StartDate, "end", cmd.EndDate)
	return s.infoDTO(acc), nil
}

func (s *BacktestApplicationService) lookup(token string) (*domain.Account, error) {
	return s.registry.Lookup(token)
}

func parseOrderTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, domain.ErrBadDatetime.WithDetail("order_time is required")
	}
	t, err := time.Parse(timeLayout, raw)
	if err != nil {
		return time.Time{}, domain.ErrBadDatetime.WithDetail("order_time: %v", err)
	}
	return t, nil
}

// Buy 提交限价买入委托。
func (s *BacktestApplicationService) Buy(ctx context.Context, token string, cmd TradeCommand) (*TradeDTO, error) {
	acc, err := s.lookup(token)
	if err != nil {
		return nil, err
	}
	price, err := decimal.NewFromString(cmd.Price)
	if err != nil {
		return nil, domain.ErrBadDatetime.WithDetail("price: %v", err)
	}
	shares, err := decimal.NewFromString(cmd.Shares)
	if err != nil {
		return nil, domain.ErrBadDatetime.WithDetail("shares: %v", err)
	}
	orderTime, err := parseOrderTime(cmd.OrderTime)
	if err != nil {
		return nil, err
	}

	trade, err := acc.Buy(ctx, s.feed, cmd.Symbol, price, true, shares, orderTime)
	if err != nil {
		return nil, err
	}
	dto := tradeToDTO(*trade)
	return &dto, nil
}

// MarketBuy 提交市价买入委托。
func (s *BacktestApplicationService) MarketBuy(ctx context.Context, token string, cmd TradeCommand) (*TradeDTO, error) {
	acc, err := s.lookup(token)
	if err != nil {
		return nil, err
	}
	shares, err := decimal.NewFromString(cmd.Shares)
	if err != nil {
		return nil, domain.ErrBadDatetime.WithDetail("shares: %v", err)
	}
	orderTime, err := parseOrderTime(cmd.OrderTime)
	if err != nil {
		return nil, err
	}

	trade, err := acc.Buy(ctx, s.feed, cmd.Symbol, decimal.Zero, false, shares, orderTime)
	if err != nil {
		return nil, err
	}
	dto := tradeToDTO(*trade)
	return &dto, nil
}

// Sell 提交限价卖出委托。
func (s *BacktestApplicationService) Sell(ctx context.Context, token string, cmd TradeCommand) (*TradeDTO, error) {
	acc, err := s.lookup(token)
	if err != nil {
		return nil, err
	}
	price, err := decimal.NewFromString(cmd.Price)
	if err != nil {
		return nil, domain.ErrBadDatetime.WithDetail("price: %v", err)
	}
	shares, err := decimal.NewFromString(cmd.Shares)
	if err != nil {
		return nil, domain.ErrBadDatetime.WithDetail("shares: %v", err)
	}
	orderTime, err := parseOrderTime(cmd.OrderTime)
	if err != nil {
		return nil, err
	}

	trade, err := acc.Sell(ctx, s.feed, cmd.Symbol, price, true, shares, orderTime)
	if err != nil {
		return nil, err
	}
	dto := tradeToDTO(*trade)
	return &dto, nil
}

// MarketSell 提交市价卖出委托。
func (s *BacktestApplicationService) MarketSell(ctx context.Context, token string, cmd TradeCommand) (*TradeDTO, error) {
	acc, err := s.lookup(token)
	if err != nil {
		return nil, err
	}
	shares, err := decimal.NewFromString(cmd.Shares)
	if err != nil {
		return nil, domain.ErrBadDatetime.WithDetail("shares: %v", err)
	}
	orderTime, err := parseOrderTime(cmd.OrderTime)
	if err != nil {
		return nil, err
	}

	trade, err := acc.Sell(ctx, s.feed, cmd.Symbol, decimal.Zero, false, shares, orderTime)
	if err != nil {
		return nil, err
	}
	dto := tradeToDTO(*trade)
	return &dto, nil
}

// SellPercent 按当前持仓比例市价卖出。cmd.Shares 承载 (0,1] 的比例。
func (s *BacktestApplicationService) SellPercent(ctx context.Context, token string, cmd TradeCommand) (*TradeDTO, error) {
	acc, err := s.lookup(token)
	if err != nil {
		return nil, err
	}
	fraction, err := decimal.NewFromString(cmd.Shares)
	if err != nil {
		return nil, domain.ErrBadDatetime.WithDetail("shares: %v", err)
	}
	if fraction.LessThanOrEqual(decimal.Zero) || fraction.GreaterThan(decimal.NewFromInt(1)) {
		return nil, domain.ErrBadDatetime.WithDetail("shares must be a fraction in (0,1]")
	}
	orderTime, err := parseOrderTime(cmd.OrderTime)
	if err != nil {
		return nil, err
	}

	trade, err := acc.SellPercent(ctx, s.feed, cmd.Symbol, fraction, orderTime)
	if err != nil {
		return nil, err
	}
	dto := tradeToDTO(*trade)
	return &dto, nil
}

func (s *BacktestApplicationService) infoDTO(acc *domain.Account) *AccountInfoDTO {
	cash, principal, start, end := acc.Info()
	return &AccountInfoDTO{
		Name:      acc.Name,
		Cash:      cash.String(),
		Principal: principal.String(),
		StartDate: start.Format(dateLayout),
		EndDate:   end.Format(dateLayout),
	}
}

// Info 返回账户概览。
func (s *BacktestApplicationService) Info(ctx context.Context, token string) (*AccountInfoDTO, error) {
	acc, err := s.lookup(token)
	if err != nil {
		return nil, err
	}
	return s.infoDTO(acc), nil
}

// Positions 返回 date 当天的持仓明细，date 为空表示使用当前时刻。
func (s *BacktestApplicationService) Positions(ctx context.Context, token, date string) ([]PositionDTO, error) {
	acc, err := s.lookup(token)
	if err != nil {
		return nil, err
	}

	asOf := time.Now()
	if date != "" {
		asOf, err = time.Parse(dateLayout, date)
		if err != nil {
			return nil, domain.ErrBadDatetime.WithDetail("date: %v", err)
		}
	}

	rows, err := acc.Positions(ctx, s.feed, asOf)
	if err != nil {
		return nil, err
	}
	out := make([]PositionDTO, 0, len(rows))
	for _, r := range rows {
		out = append(out, positionToDTO(r))
	}
	return out, nil
}

// Bills 返回全部委托及其成交流水。
func (s *BacktestApplicationService) Bills(ctx context.Context, token string) ([]BillDTO, error) {
	acc, err := s.lookup(token)
	if err != nil {
		return nil, err
	}

	entries := acc.Bills()
	out := make([]BillDTO, 0, len(entries))
	for _, e := range entries {
		trades := make([]TradeDTO, 0, len(e.Trades))
		for _, t := range e.Trades {
			trades = append(trades, tradeToDTO(t))
		}
		out = append(out, BillDTO{
			OrderID:   e.Entrust.OrderID,
			Symbol:    e.Entrust.Symbol,
			Side:      string(e.Entrust.Side),
			Status:    string(e.Entrust.Status),
			Reason:    e.Entrust.Reason,
			OrderTime: e.Entrust.OrderTime.Format(timeLayout),
			Trades:    trades,
		})
	}
	return out, nil
}

// Assets 返回按日期升序排列的资产曲线。
func (s *BacktestApplicationService) Assets(ctx context.Context, token string) ([]AssetPointDTO, error) {
	acc, err := s.lookup(token)
	if err != nil {
		return nil, err
	}
	points := acc.Assets()
	out := make([]AssetPointDTO, 0, len(points))
	for _, p := range points {
		out = append(out, assetToDTO(p))
	}
	return out, nil
}

// Metrics 计算账户在给定区间内的策略表现，可选与一个基准标的比较
// （SUPPLEMENTED FEATURES：original_source 的 baseline 对比）。
func (s *BacktestApplicationService) Metrics(ctx context.Context, token string, cmd MetricsCommand) (*MetricsDTO, error) {
	acc, err := s.lookup(token)
	if err != nil {
		return nil, err
	}

	_, principal, accStart, accEnd := acc.Info()
	start, end := accStart, accEnd
	if cmd.Start != "" {
		if start, err = time.Parse(dateLayout, cmd.Start); err != nil {
			return nil, domain.ErrBadDatetime.WithDetail("start: %v", err)
		}
	}
	if cmd.End != "" {
		if end, err = time.Parse(dateLayout, cmd.End); err != nil {
			return nil, domain.ErrBadDatetime.WithDetail("end: %v", err)
		}
	}

	calc := domain.NewMetricsCalculator(s.cfg.RiskFreeRate)
	result := calc.Compute(acc.Assets(), acc.TradesLog(), principal, start, end)
	dto := metricsToDTO(result)

	baseline := cmd.Baseline
	if baseline == "" {
		baseline = s.cfg.DefaultBaseline
	}
	if baseline != "" {
		bars, err := s.feed.DailyBars(ctx, baseline, start, end)
		if err == nil && len(bars) >= 2 {
			closes := make([]decimal.Decimal, len(bars))
			for i, b := range bars {
				closes[i] = b.Close
			}
			baseDTO := metricsToDTO(calc.BaselineMetrics(closes, start, end))
			dto.Baseline = &baseDTO
		}
	}

	return &dto, nil
}

// Stop 停止账户交易并把资产曲线补齐到 EndDate。
func (s *BacktestApplicationService) Stop(ctx context.Context, token string) error {
	acc, err := s.lookup(token)
	if err != nil {
		return err
	}
	_, _, start, end := acc.Info()
	days, err := s.feed.TradingDays(ctx, start, end)
	if err != nil {
		return domain.ErrFeedTimeout.WithDetail("%v", err)
	}
	return acc.Stop(ctx, s.feed, days)
}

// Save 把账户当前状态落盘。
func (s *BacktestApplicationService) Save(ctx context.Context, token string) error {
	acc, err := s.lookup(token)
	if err != nil {
		return err
	}
	return s.repo.Save(ctx, acc.ToSnapshot())
}

// Load 从持久化的快照恢复一个账户并注册到内存中，token 用于覆盖快照中原有的
// 令牌（支持给同一个策略换发新 token 而不丢失历史）。
func (s *BacktestApplicationService) Load(ctx context.Context, name, token string) (*AccountInfoDTO, error) {
	snap, err := s.repo.Load(ctx, name)
	if err != nil {
		return nil, err
	}
	if token != "" {
		snap.Token = token
	}
	acc := domain.RestoreAccount(*snap)
	acc.SetPublisher(s.publisher)
	if err := s.registry.Restore(acc); err != nil {
		return nil, err
	}
	return s.infoDTO(acc), nil
}

// DeleteAccounts 批量移除内存中的账户（不影响已持久化的快照）。空 tokens
// 表示由管理员令牌发起的"删除全部"（spec §6："admin token deletes all"）。
func (s *BacktestApplicationService) DeleteAccounts(ctx context.Context, tokens []string) error {
	if len(tokens) == 0 {
		s.registry.DeleteAll()
		return nil
	}
	for _, token := range tokens {
		if err := s.registry.Delete(token); err != nil {
			return err
		}
	}
	return nil
}
