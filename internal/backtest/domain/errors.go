package domain

import "fmt"

// Kind 是错误的顶层分类，客户端据此重建具体的错误子类。
type Kind string

const (
	KindBadParameter Kind = "BAD_PARAMETER"
	KindTradeRejected Kind = "TRADE_REJECTED"
	KindAccountError Kind = "ACCOUNT_ERROR"
	KindInfra        Kind = "INFRA"
)

// Error 是本系统所有领域错误的统一载体：一个稳定的机器码 + 人类可读消息，
// 并携带分类 Kind 以便跨进程边界序列化后按 Kind 重建子类（变更说明 0.4.20）。
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is 支持 errors.Is(err, ErrCashShortage) 之类的按 Code 匹配。
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func newErr(kind Kind, code, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

// BadParameter 错误码
var (
	ErrLotSize       = &Error{Kind: KindBadParameter, Code: "LOT_SIZE", Message: "买入数量必须是100的整数倍"}
	ErrTimeRewind    = &Error{Kind: KindBadParameter, Code: "TIME_REWIND", Message: "委托时间必须严格递增"}
	ErrUnknownSymbol = &Error{Kind: KindBadParameter, Code: "UNKNOWN_SYMBOL", Message: "未知的证券代码"}
	ErrBadDatetime   = &Error{Kind: KindBadParameter, Code: "BAD_DATETIME", Message: "非法的时间"}
)

// TradeRejected 错误码
var (
	ErrCashShortage      = &Error{Kind: KindTradeRejected, Code: "CASH_SHORTAGE", Message: "可用资金不足"}
	ErrPositionShort     = &Error{Kind: KindTradeRejected, Code: "POSITION_SHORT", Message: "可卖持仓不足"}
	ErrNoMatch           = &Error{Kind: KindTradeRejected, Code: "NO_MATCH", Message: "委托价格未被满足"}
	ErrVolumeNotEnough   = &Error{Kind: KindTradeRejected, Code: "VOLUME_NOT_ENOUGH", Message: "匹配到的成交量为零"}
	ErrPriceLimit        = &Error{Kind: KindTradeRejected, Code: "PRICE_LIMIT", Message: "当前处于涨跌停，无法成交"}
	ErrSuspended         = &Error{Kind: KindTradeRejected, Code: "SUSPENDED", Message: "证券已停牌"}
)

// AccountError 错误码
var (
	ErrAccountExists = &Error{Kind: KindAccountError, Code: "ACCOUNT_EXISTS", Message: "账户已存在"}
	ErrNotFound      = &Error{Kind: KindAccountError, Code: "NOT_FOUND", Message: "账户或快照不存在"}
	ErrUnauthorized  = &Error{Kind: KindAccountError, Code: "UNAUTHORIZED", Message: "无效或越权的令牌"}
)

// Infra 错误码
var (
	ErrFeedTimeout     = &Error{Kind: KindInfra, Code: "FEED_TIMEOUT", Message: "行情数据源超时"}
	ErrFeedDataMissing = &Error{Kind: KindInfra, Code: "FEED_DATA_MISSING", Message: "行情数据缺失"}
	ErrPersistence     = &Error{Kind: KindInfra, Code: "PERSISTENCE", Message: "持久化失败"}
)

// WithDetail 返回携带附加上下文的错误副本，保留原始 Kind/Code 以便 errors.Is 继续匹配。
func (e *Error) WithDetail(format string, args ...any) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: e.Message + ": " + fmt.Sprintf(format, args...)}
}
