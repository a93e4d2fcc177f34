package events

// Enum is a decoded code with its text. Codes missing from the lookup table
// keep Known=false and carry the raw code as Text.
type Enum struct {
	Code  string
	Text  string
	Known bool
}

// String returns the enum text
func (e Enum) String() string {
	return e.Text
}

// MarshalText renders the enum as its text so events serialize as plain strings
func (e Enum) MarshalText() ([]byte, error) {
	return []byte(e.Text), nil
}

// IsZero reports whether the field was absent from the message
func (e Enum) IsZero() bool {
	return e.Code == ""
}

type table map[string]string

func (t table) lookup(code string) Enum {
	if code == "" {
		return Enum{}
	}
	if text, ok := t[code]; ok {
		return Enum{Code: code, Text: text, Known: true}
	}
	return Enum{Code: code, Text: code}
}

// ExecType (150) texts
const (
	ExecNew            = "NEW"
	ExecCanceled       = "CANCELED"
	ExecReplaced       = "REPLACED"
	ExecRejected       = "REJECTED"
	ExecExpired        = "EXPIRED"
	ExecTrade          = "TRADE"
	ExecPendingCancel  = "PENDING_CANCEL"
	ExecPendingReplace = "PENDING_REPLACE"
	ExecPendingNew     = "PENDING_NEW"
	ExecRestated       = "RESTATED"
	ExecOrderStatus    = "ORDER_STATUS"
)

var execTypes = table{
	"0": ExecNew,
	"4": ExecCanceled,
	"5": ExecReplaced,
	"6": ExecPendingCancel,
	"8": ExecRejected,
	"A": ExecPendingNew,
	"C": ExecExpired,
	"D": ExecRestated,
	"E": ExecPendingReplace,
	"F": ExecTrade,
	"I": ExecOrderStatus,
	// pre-5.0 fill codes still emitted by some venues
	"1": ExecTrade,
	"2": ExecTrade,
}

var ordStatuses = table{
	"0": "NEW",
	"1": "PARTIALLY_FILLED",
	"2": "FILLED",
	"4": "CANCELED",
	"5": "REPLACED",
	"6": "PENDING_CANCEL",
	"8": "REJECTED",
	"A": "PENDING_NEW",
	"C": "EXPIRED",
	"E": "PENDING_REPLACE",
}

// Side texts
const (
	SideBuy             = "BUY"
	SideSell            = "SELL"
	SideSellShort       = "SELL_SHORT"
	SideSellShortExempt = "SELL_SHORT_EXEMPT"
)

var sides = table{
	"1": SideBuy,
	"2": SideSell,
	"5": SideSellShort,
	"6": SideSellShortExempt,
}

// MDEntryType (269) texts
const (
	EntryBid   = "BID"
	EntryOffer = "OFFER"
	EntryTrade = "TRADE"
	EntryLow   = "LOW"
	EntryHigh  = "HIGH"
	EntryMid   = "MID"
)

var entryTypes = table{
	"0": EntryBid,
	"1": EntryOffer,
	"2": EntryTrade,
	"4": "OPENING",
	"5": "CLOSING",
	"7": EntryHigh,
	"8": EntryLow,
	"H": EntryMid,
}

var updateActions = table{
	"0": "NEW",
	"1": "CHANGE",
	"2": "DELETE",
}

var tradingPhases = table{
	"1": "PRE_TRADING",
	"2": "OPENING_AUCTION",
	"3": "CONTINUOUS_TRADING",
	"4": "CLOSING_AUCTION",
	"5": "POST_TRADING",
	"6": "INTRADAY_AUCTION",
	"7": "QUIESCENT",
}

var securityStatuses = table{
	"2":  "TRADING_HALT",
	"3":  "RESUME",
	"17": "READY_TO_TRADE",
	"18": "NOT_AVAILABLE_FOR_TRADING",
	"20": "UNKNOWN_OR_INVALID",
	"21": "PRE_OPEN",
	"22": "OPENING_ROTATION",
	"23": "FAST_MARKET",
}

var ordRejReasons = table{
	"0":  "BROKER_OPTION",
	"1":  "UNKNOWN_SYMBOL",
	"2":  "EXCHANGE_CLOSED",
	"3":  "ORDER_EXCEEDS_LIMIT",
	"4":  "TOO_LATE_TO_ENTER",
	"5":  "UNKNOWN_ORDER",
	"6":  "DUPLICATE_ORDER",
	"11": "UNSUPPORTED_ORDER_CHARACTERISTIC",
	"13": "INCORRECT_QUANTITY",
	"99": "OTHER",
}

var cxlRejReasons = table{
	"0":  "TOO_LATE_TO_CANCEL",
	"1":  "UNKNOWN_ORDER",
	"2":  "BROKER_OPTION",
	"3":  "ALREADY_PENDING",
	"6":  "DUPLICATE_CLORDID",
	"99": "OTHER",
}

var cxlRejResponses = table{
	"1": "CANCEL_REQUEST",
	"2": "CANCEL_REPLACE_REQUEST",
}

var mdRejReasons = table{
	"0": "UNKNOWN_SYMBOL",
	"1": "DUPLICATE_MDREQID",
	"2": "INSUFFICIENT_BANDWIDTH",
	"3": "INSUFFICIENT_PERMISSIONS",
	"4": "UNSUPPORTED_SUBSCRIPTION_REQUEST_TYPE",
	"5": "UNSUPPORTED_MARKET_DEPTH",
	"6": "UNSUPPORTED_MDUPDATETYPE",
	"8": "UNSUPPORTED_MDENTRYTYPE",
}

var businessRejReasons = table{
	"0": "OTHER",
	"1": "UNKNOWN_ID",
	"2": "UNKNOWN_SECURITY",
	"3": "UNSUPPORTED_MESSAGE_TYPE",
	"4": "APPLICATION_NOT_AVAILABLE",
	"5": "CONDITIONALLY_REQUIRED_FIELD_MISSING",
	"6": "NOT_AUTHORIZED",
}

var sessionRejReasons = table{
	"0":  "INVALID_TAG_NUMBER",
	"1":  "REQUIRED_TAG_MISSING",
	"2":  "TAG_NOT_DEFINED_FOR_MESSAGE_TYPE",
	"5":  "VALUE_INCORRECT",
	"6":  "INCORRECT_DATA_FORMAT",
	"9":  "COMPID_PROBLEM",
	"10": "SENDINGTIME_ACCURACY_PROBLEM",
	"11": "INVALID_MSGTYPE",
	"99": "OTHER",
}

// SessionRejectReason decodes tag 373 of a session-level Reject
func SessionRejectReason(code string) Enum {
	return sessionRejReasons.lookup(code)
}
