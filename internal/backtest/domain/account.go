package domain

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TradeEventPublisher 是账户成交后触发的下游通知端口（Kafka 等），
// 发布失败不影响交易结果，调用方按 best-effort 语义处理错误。
type TradeEventPublisher interface {
	PublishTrade(ctx context.Context, accountID string, trade Trade)
}

// AssetPoint 是资产曲线上某一天的快照，用于绘制净值曲线与计算指标。
type AssetPoint struct {
	Date        time.Time
	Cash        decimal.Decimal
	MarketValue decimal.Decimal
	Total       decimal.Decimal
}

// Account 是模拟交易的核心聚合根：一个账户拥有独立的现金、持仓台账、委托/成交
// 流水与资产曲线。所有对外操作都在持有 mu 的临界区内完成（spec §5），
// 借鉴 rustyeddy-trader/broker/sim/engine.go 的"整笔交易一把锁"模式。
type Account struct {
	mu sync.Mutex

	Name        string
	Token       string
	Description string

	Principal  decimal.Decimal
	Cash       decimal.Decimal
	Commission decimal.Decimal
	StartDate  time.Time
	EndDate    time.Time
	stopped    bool

	Ledger   *PositionLedger
	Entrusts []Entrust
	Trades   []Trade
	assets   map[string]AssetPoint

	xdxrCursor          time.Time
	lastAcceptedOrder   time.Time
	strictSuspension    bool

	matcher Matcher
	xdxr    XDXREngine

	publisher TradeEventPublisher
}

// NewAccount 创建一个新账户，等价于 spec §4.4 的 start 操作。principal 全部计入
// 初始现金，assets 表的第一行落在 start 当天。strictSuspension 对应 Open
// Question 的可配置项：true 时任一持仓停牌会阻塞账户对其它证券的交易
// （旧版 0.4.5 之前的行为），false（默认）时只阻塞被停牌证券自身的交易。
func NewAccount(name, token, description string, principal, commission decimal.Decimal, start, end time.Time, strictSuspension bool) *Account {
	a := &Account{
		Name:             name,
		Token:            token,
		Description:      description,
		Principal:        principal,
		Cash:             principal,
		Commission:       commission,
		StartDate:        start,
		EndDate:          end,
		Ledger:           NewPositionLedger(),
		assets:           make(map[string]AssetPoint),
		xdxrCursor:       start,
		strictSuspension: strictSuspension,
		matcher:          NewMatcher(),
		xdxr:             NewXDXREngine(),
	}
	a.assets[dateKey(start)] = AssetPoint{Date: start, Cash: principal, MarketValue: decimal.Zero, Total: principal}
	return a
}

// SetPublisher 装配一个 best-effort 的成交事件发布器，nil 表示不发布。
func (a *Account) SetPublisher(p TradeEventPublisher) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.publisher = p
}

func dateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// Buy 提交一笔限价或市价买入委托，hasPrice=false 表示市价。
func (a *Account) Buy(ctx context.Context, feed FeedAdapter, symbol string, price decimal.Decimal, hasPrice bool, shares decimal.Decimal, orderTime time.Time) (*Trade, error) {
	side := SideBuy
	if !hasPrice {
		side = SideMarketBuy
	}
	return a.trade(ctx, feed, symbol, side, price, hasPrice, shares, orderTime)
}

// Sell 提交一笔限价或市价卖出委托。
func (a *Account) Sell(ctx context.Context, feed FeedAdapter, symbol string, price decimal.Decimal, hasPrice bool, shares decimal.Decimal, orderTime time.Time) (*Trade, error) {
	side := SideSell
	if !hasPrice {
		side = SideMarketSell
	}
	return a.trade(ctx, feed, symbol, side, price, hasPrice, shares, orderTime)
}

// SellPercent 卖出当前持仓的一个比例 (0,1]，按当前未复权总股数折算成股数后
// 走市价卖出流程。持仓读取与折算必须留在下面同一把 a.mu 临界区内：先解锁
// 读持仓、再调用 trade 重新加锁，会在两次加锁之间留出窗口，被并发的买卖或
// 除权改写后这里的 shares 就是过期快照（spec §5 的"一个临界区"要求）。
func (a *Account) SellPercent(ctx context.Context, feed FeedAdapter, symbol string, fraction decimal.Decimal, orderTime time.Time) (*Trade, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	shares := a.Ledger.TotalShares(symbol).Mul(fraction)
	en := NewEntrust(uuid.NewString(), a.Token, symbol, SideSellPercent, decimal.Zero, false, shares, orderTime)
	return a.submitLocked(ctx, feed, en)
}

// trade 是 buy/sell 共用的临界区：校验时间与手数、按需推进 XDXR、撮合、
// 提交或拒绝。整个过程持有 a.mu（spec §5）。被拒绝的委托不产生成交，也不
// 改动本笔委托涉及的现金与持仓；但通过 rewind 检查后时间游标即已前移，撮合
// 前已应用的 XDXR 事件保留，被拒绝的委托本身也会记入委托流水。
func (a *Account) trade(ctx context.Context, feed FeedAdapter, symbol string, side Side, price decimal.Decimal, hasPrice bool, requested decimal.Decimal, orderTime time.Time) (*Trade, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	en := NewEntrust(uuid.NewString(), a.Token, symbol, side, price, hasPrice, requested, orderTime)
	return a.submitLocked(ctx, feed, en)
}

// submitLocked 执行撮合并记账，调用方必须已经持有 a.mu。
func (a *Account) submitLocked(ctx context.Context, feed FeedAdapter, en *Entrust) (*Trade, error) {
	trade, err := a.doTrade(ctx, feed, en)
	if err != nil {
		if derr, ok := err.(*Error); ok {
			en.Reject(derr.Code)
		} else {
			en.Reject(ErrPersistence.Code)
		}
		a.Entrusts = append(a.Entrusts, *en)
		return nil, err
	}

	a.Entrusts = append(a.Entrusts, *en)
	return trade, nil
}

func (a *Account) doTrade(ctx context.Context, feed FeedAdapter, en *Entrust) (*Trade, error) {
	if a.stopped {
		return nil, ErrUnauthorized.WithDetail("账户已停止")
	}
	if en.OrderTime.After(a.EndDate) || en.OrderTime.Before(a.StartDate) {
		return nil, ErrBadDatetime
	}
	if !en.OrderTime.After(a.lastAcceptedOrder) {
		return nil, ErrTimeRewind
	}
	// 时间游标一旦通过 rewind 检查就前移，即使委托随后被拒绝也不回退——
	// 与 original_source 的 _before_trade 一致（在校验现金/撮合之前无条件
	// 推进 _last_trade_time），否则同一 order_time 的第二笔委托仍可能通过。
	a.lastAcceptedOrder = en.OrderTime

	if en.Side.IsBuy() && !en.Shares.Mod(decimal.NewFromInt(100)).IsZero() {
		return nil, ErrLotSize
	}

	suspended, err := feed.IsSuspended(ctx, en.Symbol, en.OrderTime)
	if err != nil {
		return nil, ErrFeedTimeout.WithDetail("%v", err)
	}
	if suspended {
		return nil, ErrSuspended
	}
	if a.strictSuspension {
		if blocked, err := a.anyHeldSymbolSuspended(ctx, feed, en.OrderTime, en.Symbol); err != nil {
			return nil, err
		} else if blocked {
			return nil, ErrSuspended.WithDetail("持仓中存在停牌证券，账户交易被阻塞")
		}
	}

	events, newCursor, err := a.xdxr.Advance(ctx, feed, a.Ledger, a.xdxrCursor, en.OrderTime)
	if err != nil {
		return nil, ErrFeedTimeout.WithDetail("%v", err)
	}
	a.xdxrCursor = newCursor
	a.applyXDXREvents(ctx, events)

	if en.Side.IsBuy() {
		return a.executeBuy(ctx, feed, en)
	}
	return a.executeSell(ctx, feed, en)
}

func (a *Account) anyHeldSymbolSuspended(ctx context.Context, feed FeedAdapter, date time.Time, exclude string) (bool, error) {
	for _, symbol := range a.Ledger.Symbols() {
		if symbol == exclude {
			continue
		}
		if a.Ledger.TotalShares(symbol).LessThanOrEqual(decimal.Zero) {
			continue
		}
		suspended, err := feed.IsSuspended(ctx, symbol, date)
		if err != nil {
			return false, ErrFeedTimeout.WithDetail("%v", err)
		}
		if suspended {
			return true, nil
		}
	}
	return false, nil
}

// applyXDXREvents 把除权除息合成事件写入现金与成交流水。持仓台账本身已经
// 由 XDXREngine.Advance 通过 Ledger.ApplyCorporateAction 更新过，这里只
// 负责账户层面的现金记账和审计轨迹，并把合成成交交给发布器；资产曲线的重估
// 交给调用方在撮合完成后统一进行，避免为每个事件单独打一次（可能缺 feed 的）估值。
func (a *Account) applyXDXREvents(ctx context.Context, events []XDXREvent) {
	for _, ev := range events {
		a.Cash = a.Cash.Add(ev.CashDelta)
		trade := Trade{
			TradeID:   uuid.NewString(),
			OrderID:   "XDXR",
			AccountID: a.Token,
			Symbol:    ev.Symbol,
			Side:      SideXDXR,
			Shares:    ev.ShareDelta,
			Price:     ev.Dividend.CashPerShare,
			Fee:       decimal.Zero,
			TradeTime: ev.Date,
		}
		a.Trades = append(a.Trades, trade)
		a.notify(ctx, trade)
	}
}

func (a *Account) executeBuy(ctx context.Context, feed FeedAdapter, en *Entrust) (*Trade, error) {
	requested := en.Shares
	limitPrice := en.Price
	hasLimit := en.HasPrice

	// 按可用资金预先夹紧委托股数，市价单也不例外：original_source 的 _buy
	// 用 `bid_price = bid_price or buy_limit_price` 把限价单和市价单统一到
	// 同一条夹紧路径，市价单以当日涨停价作为估算的名义价格。
	notionalPrice := limitPrice
	if !hasLimit {
		limits, err := feed.PriceLimits(ctx, en.Symbol, en.OrderTime)
		if err != nil {
			return nil, ErrFeedTimeout.WithDetail("%v", err)
		}
		notionalPrice = limits.UpperLimit
	}
	feeMultiplier := decimal.NewFromInt(1).Add(a.Commission)
	affordableShares := a.Cash.Div(notionalPrice.Mul(feeMultiplier)).Div(decimal.NewFromInt(100)).Floor().Mul(decimal.NewFromInt(100))
	if affordableShares.LessThan(requested) {
		requested = affordableShares
	}
	if requested.LessThan(decimal.NewFromInt(100)) {
		return nil, ErrCashShortage
	}

	result, err := a.matcher.Match(ctx, feed, MatchRequest{
		Symbol:          en.Symbol,
		Side:            en.Side,
		LimitPrice:      limitPrice,
		HasLimit:        hasLimit,
		RequestedShares: requested,
		OrderTime:       en.OrderTime,
	})
	if err != nil {
		return nil, err
	}

	fee := result.FilledShares.Mul(result.AvgPrice).Mul(a.Commission)
	cost := result.FilledShares.Mul(result.AvgPrice).Add(fee)
	if cost.GreaterThan(a.Cash) {
		return nil, ErrCashShortage
	}

	factor, err := feed.AdjustFactor(ctx, en.Symbol, result.FillTime)
	if err != nil {
		return nil, ErrFeedTimeout.WithDetail("%v", err)
	}

	a.Cash = a.Cash.Sub(cost)
	a.Ledger.ApplyBuy(en.Symbol, result.FilledShares, result.AvgPrice, result.FillTime, factor)

	if result.Outcome == MatchPartial {
		en.Status = EntrustPartial
	} else {
		en.Status = EntrustFilled
	}

	trade := Trade{
		TradeID:   uuid.NewString(),
		OrderID:   en.OrderID,
		AccountID: a.Token,
		Symbol:    en.Symbol,
		Side:      en.Side,
		Shares:    result.FilledShares,
		Price:     result.AvgPrice,
		Fee:       fee,
		TradeTime: result.FillTime,
	}
	a.Trades = append(a.Trades, trade)
	a.revalue(ctx, feed, result.FillTime)
	a.notify(ctx, trade)
	return &trade, nil
}

func (a *Account) executeSell(ctx context.Context, feed FeedAdapter, en *Entrust) (*Trade, error) {
	held := a.Ledger.TotalShares(en.Symbol)
	if en.Shares.GreaterThan(held) {
		return nil, ErrPositionShort
	}

	sellable := a.Ledger.Sellable(en.Symbol, en.Shares, en.OrderTime)
	if sellable.LessThanOrEqual(decimal.Zero) {
		return nil, ErrPositionShort
	}

	result, err := a.matcher.Match(ctx, feed, MatchRequest{
		Symbol:          en.Symbol,
		Side:            en.Side,
		LimitPrice:      en.Price,
		HasLimit:        en.HasPrice,
		RequestedShares: sellable,
		OrderTime:       en.OrderTime,
	})
	if err != nil {
		return nil, err
	}

	factor, err := feed.AdjustFactor(ctx, en.Symbol, result.FillTime)
	if err != nil {
		return nil, ErrFeedTimeout.WithDetail("%v", err)
	}

	fee := result.FilledShares.Mul(result.AvgPrice).Mul(a.Commission)
	sellRes := a.Ledger.ApplySell(en.Symbol, result.FilledShares, result.AvgPrice, factor)
	proceeds := result.FilledShares.Mul(result.AvgPrice).Sub(fee)
	a.Cash = a.Cash.Add(proceeds)

	if result.Outcome == MatchPartial {
		en.Status = EntrustPartial
	} else {
		en.Status = EntrustFilled
	}

	trade := Trade{
		TradeID:        uuid.NewString(),
		OrderID:        en.OrderID,
		AccountID:      a.Token,
		Symbol:         en.Symbol,
		Side:           en.Side,
		Shares:         result.FilledShares,
		Price:          result.AvgPrice,
		Fee:            fee,
		TradeTime:      result.FillTime,
		EventualProfit: sellRes.RealizedPnL,
		HasProfit:      true,
	}
	a.Trades = append(a.Trades, trade)
	a.revalue(ctx, feed, result.FillTime)
	a.notify(ctx, trade)
	return &trade, nil
}

// revalue 重写 date 当天的资产曲线行：市值是各 symbol 的 Ledger.MarketValue 之和，
// 现金取账户当前余额。同一天多笔成交会反复覆盖同一行，这是预期行为。
func (a *Account) revalue(ctx context.Context, feed FeedAdapter, date time.Time) {
	total := decimal.Zero
	for _, symbol := range a.Ledger.Symbols() {
		mv, err := a.Ledger.MarketValue(ctx, feed, symbol, date)
		if err != nil {
			continue
		}
		total = total.Add(mv)
	}
	a.assets[dateKey(date)] = AssetPoint{Date: date, Cash: a.Cash, MarketValue: total, Total: a.Cash.Add(total)}
}

func (a *Account) notify(ctx context.Context, trade Trade) {
	if a.publisher == nil {
		return
	}
	a.publisher.PublishTrade(ctx, a.Token, trade)
}

// Info 返回账户概览：现金、本金、起止日期等，用于 GET .../info。
func (a *Account) Info() (cash, principal decimal.Decimal, start, end time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Cash, a.Principal, a.StartDate, a.EndDate
}

// Positions 返回 date 当天的全部持仓明细。
func (a *Account) Positions(ctx context.Context, feed FeedAdapter, date time.Time) ([]SnapshotRow, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Ledger.Snapshot(ctx, feed, date)
}

// Bills 返回按委托聚合的委托/成交流水，用于审计（spec 附加功能，来自
// original_source 的 bills() 视图）。
func (a *Account) Bills() []BillEntry {
	a.mu.Lock()
	defer a.mu.Unlock()

	byOrder := make(map[string]*BillEntry, len(a.Entrusts))
	order := make([]string, 0, len(a.Entrusts))
	for _, en := range a.Entrusts {
		byOrder[en.OrderID] = &BillEntry{Entrust: en}
		order = append(order, en.OrderID)
	}
	for _, tr := range a.Trades {
		if entry, ok := byOrder[tr.OrderID]; ok {
			entry.Trades = append(entry.Trades, tr)
		}
	}
	out := make([]BillEntry, 0, len(order))
	for _, id := range order {
		out = append(out, *byOrder[id])
	}
	return out
}

// TradesLog 返回全部成交记录的只读副本，供指标计算使用。
func (a *Account) TradesLog() []Trade {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Trade(nil), a.Trades...)
}

// Assets 返回按日期升序排列的资产曲线。
func (a *Account) Assets() []AssetPoint {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.assetsLocked()
}

// assetsLocked 是 Assets 的内部实现，调用方必须已经持有 a.mu。
func (a *Account) assetsLocked() []AssetPoint {
	out := make([]AssetPoint, 0, len(a.assets))
	for _, p := range a.assets {
		out = append(out, p)
	}
	sortAssetPoints(out)
	return out
}

func sortAssetPoints(points []AssetPoint) {
	for i := 1; i < len(points); i++ {
		j := i
		for j > 0 && points[j-1].Date.After(points[j].Date) {
			points[j-1], points[j] = points[j], points[j-1]
			j--
		}
	}
}

// Snapshot 是 Account 在某一时刻的完整可序列化状态，供 SnapshotRepository
// 落盘/恢复使用（spec §6）。
type Snapshot struct {
	Name             string
	Token            string
	Description      string
	Principal        decimal.Decimal
	Cash             decimal.Decimal
	Commission       decimal.Decimal
	StartDate        time.Time
	EndDate          time.Time
	Stopped          bool
	StrictSuspension bool
	XDXRCursor       time.Time
	LastOrderTime    time.Time
	Lots             []LotRecord
	Entrusts         []Entrust
	Trades           []Trade
	Assets           []AssetPoint
}

// ToSnapshot 导出账户当前状态。
func (a *Account) ToSnapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	return Snapshot{
		Name:             a.Name,
		Token:            a.Token,
		Description:      a.Description,
		Principal:        a.Principal,
		Cash:             a.Cash,
		Commission:       a.Commission,
		StartDate:        a.StartDate,
		EndDate:          a.EndDate,
		Stopped:          a.stopped,
		StrictSuspension: a.strictSuspension,
		XDXRCursor:       a.xdxrCursor,
		LastOrderTime:    a.lastAcceptedOrder,
		Lots:             a.Ledger.Export(),
		Entrusts:         append([]Entrust(nil), a.Entrusts...),
		Trades:           append([]Trade(nil), a.Trades...),
		Assets:           a.assetsLocked(),
	}
}

// RestoreAccount 从快照重建一个可继续交易的账户。
func RestoreAccount(snap Snapshot) *Account {
	a := &Account{
		Name:             snap.Name,
		Token:            snap.Token,
		Description:      snap.Description,
		Principal:        snap.Principal,
		Cash:             snap.Cash,
		Commission:       snap.Commission,
		StartDate:        snap.StartDate,
		EndDate:          snap.EndDate,
		stopped:          snap.Stopped,
		strictSuspension: snap.StrictSuspension,
		Ledger:           RestorePositionLedger(snap.Lots),
		Entrusts:         append([]Entrust(nil), snap.Entrusts...),
		Trades:           append([]Trade(nil), snap.Trades...),
		assets:           make(map[string]AssetPoint, len(snap.Assets)),
		xdxrCursor:       snap.XDXRCursor,
		lastAcceptedOrder: snap.LastOrderTime,
		matcher:          NewMatcher(),
		xdxr:             NewXDXREngine(),
	}
	for _, p := range snap.Assets {
		a.assets[dateKey(p.Date)] = p
	}
	return a
}

// Stop 将账户资产曲线向前补齐至 EndDate（未发生交易的日子沿用最后一次估值），
// 并禁止后续交易，对应 spec §4.4 的 stop 操作。
func (a *Account) Stop(ctx context.Context, feed FeedAdapter, tradingDays []time.Time) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, d := range tradingDays {
		if d.Before(a.StartDate) || d.After(a.EndDate) {
			continue
		}
		if _, ok := a.assets[dateKey(d)]; ok {
			continue
		}
		a.revalue(ctx, feed, d)
	}
	a.stopped = true
	return nil
}
