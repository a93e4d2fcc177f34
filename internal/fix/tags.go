package fix

// Header and trailer tags
const (
	TagBeginString  = 8
	TagBodyLength   = 9
	TagCheckSum     = 10
	TagMsgSeqNum    = 34
	TagMsgType      = 35
	TagSenderCompID = 49
	TagSendingTime  = 52
	TagTargetCompID = 56
)

// Session tags
const (
	TagEncryptMethod    = 98
	TagHeartBtInt       = 108
	TagTestReqID        = 112
	TagDefaultApplVerID = 1137
	TagRefSeqNum        = 45
	TagRefMsgType       = 372
	TagSessionRejectRsn = 373
)

// Order entry tags
const (
	TagAvgPx         = 6
	TagClOrdID       = 11
	TagCumQty        = 14
	TagExecID        = 17
	TagHandlInst     = 21
	TagLastPx        = 31
	TagLastQty       = 32
	TagOrderID       = 37
	TagOrderQty      = 38
	TagOrdStatus     = 39
	TagOrdType       = 40
	TagOrigClOrdID   = 41
	TagPrice         = 44
	TagSide          = 54
	TagSymbol        = 55
	TagText          = 58
	TagTimeInForce   = 59
	TagTransactTime  = 60
	TagCxlRejReason  = 102
	TagOrdRejReason  = 103
	TagExpireTime    = 126
	TagExecType      = 150
	TagLeavesQty     = 151
	TagCxlRejRespTo  = 434
	TagBizRejectRef  = 379
	TagBizRejectRsn  = 380
	TagSecStatusReq  = 324
	TagSecTradingSts = 326
	TagTradingSubID  = 625
)

// Market data tags
const (
	TagNoRelatedSym     = 146
	TagMDReqID          = 262
	TagSubscriptionType = 263
	TagMarketDepth      = 264
	TagMDUpdateType     = 265
	TagNoMDEntryTypes   = 267
	TagNoMDEntries      = 268
	TagMDEntryType      = 269
	TagMDEntryPx        = 270
	TagMDEntrySize      = 271
	TagMDEntryDate      = 272
	TagMDEntryTime      = 273
	TagMDUpdateAction   = 279
	TagMDReqRejReason   = 281
	TagMDEntryID        = 278
)

// Message types
const (
	MsgTypeHeartbeat             = "0"
	MsgTypeTestRequest           = "1"
	MsgTypeResendRequest         = "2"
	MsgTypeReject                = "3"
	MsgTypeSequenceReset         = "4"
	MsgTypeLogout                = "5"
	MsgTypeExecutionReport       = "8"
	MsgTypeOrderCancelReject     = "9"
	MsgTypeLogon                 = "A"
	MsgTypeNewOrderSingle        = "D"
	MsgTypeOrderCancelRequest    = "F"
	MsgTypeOrderCancelReplace    = "G"
	MsgTypeMarketDataRequest     = "V"
	MsgTypeMarketDataSnapshot    = "W"
	MsgTypeMarketDataIncremental = "X"
	MsgTypeMarketDataReject      = "Y"
	MsgTypeSecurityStatusRequest = "e"
	MsgTypeSecurityStatus        = "f"
	MsgTypeBusinessReject        = "j"
)

// SOH is the field delimiter.
const SOH byte = 0x01

// TimestampLayout is the UTCTimestamp layout used for SendingTime and TransactTime.
const TimestampLayout = "20060102-15:04:05.000"
