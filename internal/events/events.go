package events

import "github.com/ismaiel54/agent-trading-gateway/internal/fix"

// Kind identifies the domain event variant
type Kind string

const (
	KindExecutionReport    Kind = "execution_report"
	KindOrderCancelReject  Kind = "order_cancel_reject"
	KindMarketDataSnapshot Kind = "market_data_snapshot"
	KindMarketDataUpdate   Kind = "market_data_update"
	KindMarketDataReject   Kind = "market_data_reject"
	KindSecurityStatus     Kind = "security_status"
	KindBusinessReject     Kind = "business_reject"
)

// Event is one of the seven inbound domain events
type Event interface {
	Kind() Kind
}

// ExecutionReport is an order acknowledgement, fill, cancel, replace, reject or expiry.
// Pointer fields are nil when the venue omitted the tag.
type ExecutionReport struct {
	SeqNum       int64    `json:"seq_num"`
	OrderID      string   `json:"order_id"`
	ClOrdID      string   `json:"cl_ord_id"`
	OrigClOrdID  string   `json:"orig_cl_ord_id,omitempty"`
	ExecID       string   `json:"exec_id"`
	ExecType     Enum     `json:"exec_type"`
	OrdStatus    Enum     `json:"ord_status"`
	Symbol       string   `json:"symbol"`
	Side         Enum     `json:"side"`
	OrderQty     *int64   `json:"order_qty,omitempty"`
	Price        *float64 `json:"price,omitempty"`
	LastQty      int64    `json:"last_qty"`
	LastPx       float64  `json:"last_px"`
	LeavesQty    *int64   `json:"leaves_qty,omitempty"`
	CumQty       *int64   `json:"cum_qty,omitempty"`
	AvgPx        float64  `json:"avg_px"`
	OrdRejReason Enum     `json:"ord_rej_reason"`
	Text         string   `json:"text,omitempty"`
	TransactTime string   `json:"transact_time,omitempty"`
}

func (*ExecutionReport) Kind() Kind { return KindExecutionReport }

// IsFill reports whether the report carries executed quantity
func (e *ExecutionReport) IsFill() bool {
	return e.ExecType.Text == ExecTrade && e.LastQty > 0
}

// OrderCancelReject is the venue declining a cancel or replace request
type OrderCancelReject struct {
	SeqNum       int64  `json:"seq_num"`
	OrderID      string `json:"order_id"`
	ClOrdID      string `json:"cl_ord_id"`
	OrigClOrdID  string `json:"orig_cl_ord_id"`
	OrdStatus    Enum   `json:"ord_status"`
	ResponseTo   Enum   `json:"response_to"`
	CxlRejReason Enum   `json:"cxl_rej_reason"`
	Text         string `json:"text,omitempty"`
}

func (*OrderCancelReject) Kind() Kind { return KindOrderCancelReject }

// MarketDataEntry is one repeating-group record. Tags without a typed field
// are kept in Extra in message order.
type MarketDataEntry struct {
	Action    Enum        `json:"action"`
	EntryType Enum        `json:"entry_type"`
	EntryID   string      `json:"entry_id,omitempty"`
	Symbol    string      `json:"symbol,omitempty"`
	Price     *float64    `json:"price,omitempty"`
	Size      *float64    `json:"size,omitempty"`
	Date      string      `json:"date,omitempty"`
	Time      string      `json:"time,omitempty"`
	Extra     []fix.Field `json:"extra,omitempty"`
}

// MarketDataSnapshot is a full refresh for one symbol
type MarketDataSnapshot struct {
	SeqNum  int64             `json:"seq_num"`
	MDReqID string            `json:"md_req_id"`
	Symbol  string            `json:"symbol"`
	Entries []MarketDataEntry `json:"entries"`
}

func (*MarketDataSnapshot) Kind() Kind { return KindMarketDataSnapshot }

// MarketDataUpdate is an incremental refresh; entries may span symbols
type MarketDataUpdate struct {
	SeqNum  int64             `json:"seq_num"`
	MDReqID string            `json:"md_req_id"`
	Entries []MarketDataEntry `json:"entries"`
}

func (*MarketDataUpdate) Kind() Kind { return KindMarketDataUpdate }

// MarketDataReject is the venue refusing a market data request
type MarketDataReject struct {
	SeqNum  int64  `json:"seq_num"`
	MDReqID string `json:"md_req_id"`
	Reason  Enum   `json:"reason"`
	Text    string `json:"text,omitempty"`
}

func (*MarketDataReject) Kind() Kind { return KindMarketDataReject }

// SecurityStatus reports the trading state of an instrument
type SecurityStatus struct {
	SeqNum        int64  `json:"seq_num"`
	ReqID         string `json:"req_id,omitempty"`
	Symbol        string `json:"symbol"`
	TradingStatus Enum   `json:"trading_status"`
	TradingPhase  Enum   `json:"trading_phase"`
	Text          string `json:"text,omitempty"`
}

func (*SecurityStatus) Kind() Kind { return KindSecurityStatus }

// BusinessReject is an application-level reject of an otherwise valid message
type BusinessReject struct {
	SeqNum     int64  `json:"seq_num"`
	RefSeqNum  int64  `json:"ref_seq_num"`
	RefMsgType string `json:"ref_msg_type"`
	RefID      string `json:"ref_id,omitempty"`
	Reason     Enum   `json:"reason"`
	Text       string `json:"text,omitempty"`
}

func (*BusinessReject) Kind() Kind { return KindBusinessReject }
