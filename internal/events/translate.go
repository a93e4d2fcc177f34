package events

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/ismaiel54/agent-trading-gateway/internal/fix"
	"github.com/shopspring/decimal"
)

// ErrUnsupportedMessage is returned for message types that map to no domain event
var ErrUnsupportedMessage = errors.New("unsupported message type")

// Translate converts a decoded message into its domain event. Unknown enum codes
// never fail translation; only an unrecognized message type does.
func Translate(m *fix.Message) (Event, error) {
	switch msgType := m.MsgType(); msgType {
	case fix.MsgTypeExecutionReport:
		return executionReport(m), nil
	case fix.MsgTypeOrderCancelReject:
		return cancelReject(m), nil
	case fix.MsgTypeMarketDataSnapshot:
		return &MarketDataSnapshot{
			SeqNum:  m.SeqNum(),
			MDReqID: str(m, fix.TagMDReqID),
			Symbol:  headSymbol(m, fix.TagMDEntryType),
			Entries: entries(m, fix.TagMDEntryType),
		}, nil
	case fix.MsgTypeMarketDataIncremental:
		return &MarketDataUpdate{
			SeqNum:  m.SeqNum(),
			MDReqID: str(m, fix.TagMDReqID),
			Entries: entries(m, fix.TagMDUpdateAction),
		}, nil
	case fix.MsgTypeMarketDataReject:
		return &MarketDataReject{
			SeqNum:  m.SeqNum(),
			MDReqID: str(m, fix.TagMDReqID),
			Reason:  mdRejReasons.lookup(str(m, fix.TagMDReqRejReason)),
			Text:    str(m, fix.TagText),
		}, nil
	case fix.MsgTypeSecurityStatus:
		return &SecurityStatus{
			SeqNum:        m.SeqNum(),
			ReqID:         str(m, fix.TagSecStatusReq),
			Symbol:        str(m, fix.TagSymbol),
			TradingStatus: securityStatuses.lookup(str(m, fix.TagSecTradingSts)),
			TradingPhase:  tradingPhases.lookup(str(m, fix.TagTradingSubID)),
			Text:          str(m, fix.TagText),
		}, nil
	case fix.MsgTypeBusinessReject:
		refSeq, _ := strconv.ParseInt(str(m, fix.TagRefSeqNum), 10, 64)
		return &BusinessReject{
			SeqNum:     m.SeqNum(),
			RefSeqNum:  refSeq,
			RefMsgType: str(m, fix.TagRefMsgType),
			RefID:      str(m, fix.TagBizRejectRef),
			Reason:     businessRejReasons.lookup(str(m, fix.TagBizRejectRsn)),
			Text:       str(m, fix.TagText),
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMessage, msgType)
	}
}

func executionReport(m *fix.Message) *ExecutionReport {
	er := &ExecutionReport{
		SeqNum:       m.SeqNum(),
		OrderID:      str(m, fix.TagOrderID),
		ClOrdID:      str(m, fix.TagClOrdID),
		OrigClOrdID:  str(m, fix.TagOrigClOrdID),
		ExecID:       str(m, fix.TagExecID),
		ExecType:     execTypes.lookup(str(m, fix.TagExecType)),
		OrdStatus:    ordStatuses.lookup(str(m, fix.TagOrdStatus)),
		Symbol:       str(m, fix.TagSymbol),
		Side:         sides.lookup(str(m, fix.TagSide)),
		OrderQty:     qtyPtr(m, fix.TagOrderQty),
		Price:        pricePtr(m, fix.TagPrice),
		LeavesQty:    qtyPtr(m, fix.TagLeavesQty),
		CumQty:       qtyPtr(m, fix.TagCumQty),
		OrdRejReason: ordRejReasons.lookup(str(m, fix.TagOrdRejReason)),
		Text:         str(m, fix.TagText),
		TransactTime: str(m, fix.TagTransactTime),
	}
	if q := qtyPtr(m, fix.TagLastQty); q != nil {
		er.LastQty = *q
	}
	if p := pricePtr(m, fix.TagLastPx); p != nil {
		er.LastPx = *p
	}
	if p := pricePtr(m, fix.TagAvgPx); p != nil {
		er.AvgPx = *p
	}
	return er
}

func cancelReject(m *fix.Message) *OrderCancelReject {
	return &OrderCancelReject{
		SeqNum:       m.SeqNum(),
		OrderID:      str(m, fix.TagOrderID),
		ClOrdID:      str(m, fix.TagClOrdID),
		OrigClOrdID:  str(m, fix.TagOrigClOrdID),
		OrdStatus:    ordStatuses.lookup(str(m, fix.TagOrdStatus)),
		ResponseTo:   cxlRejResponses.lookup(str(m, fix.TagCxlRejRespTo)),
		CxlRejReason: cxlRejReasons.lookup(str(m, fix.TagCxlRejReason)),
		Text:         str(m, fix.TagText),
	}
}

// entries walks the repeating group. Each occurrence of boundary opens a new
// entry and every following tag is folded into it until the next boundary.
func entries(m *fix.Message, boundary int) []MarketDataEntry {
	var (
		out     []MarketDataEntry
		current *MarketDataEntry
	)
	for _, f := range m.Fields {
		if f.Tag == boundary {
			out = append(out, MarketDataEntry{})
			current = &out[len(out)-1]
		}
		if current == nil || f.Tag == fix.TagCheckSum {
			continue
		}
		switch f.Tag {
		case fix.TagMDUpdateAction:
			current.Action = updateActions.lookup(f.Value)
		case fix.TagMDEntryType:
			current.EntryType = entryTypes.lookup(f.Value)
		case fix.TagMDEntryID:
			current.EntryID = f.Value
		case fix.TagSymbol:
			current.Symbol = f.Value
		case fix.TagMDEntryPx:
			current.Price = parsePrice(f.Value)
		case fix.TagMDEntrySize:
			current.Size = parsePrice(f.Value)
		case fix.TagMDEntryDate:
			current.Date = f.Value
		case fix.TagMDEntryTime:
			current.Time = f.Value
		default:
			current.Extra = append(current.Extra, f)
		}
	}
	return out
}

// headSymbol returns the Symbol that precedes the first group boundary
func headSymbol(m *fix.Message, boundary int) string {
	for _, f := range m.Fields {
		if f.Tag == boundary {
			break
		}
		if f.Tag == fix.TagSymbol {
			return f.Value
		}
	}
	return ""
}

func str(m *fix.Message, tag int) string {
	v, _ := m.Get(tag)
	return v
}

func qtyPtr(m *fix.Message, tag int) *int64 {
	v, ok := m.Get(tag)
	if !ok {
		return nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return nil
	}
	q := d.IntPart()
	return &q
}

func pricePtr(m *fix.Message, tag int) *float64 {
	v, ok := m.Get(tag)
	if !ok {
		return nil
	}
	return parsePrice(v)
}

func parsePrice(v string) *float64 {
	d, err := decimal.NewFromString(v)
	if err != nil {
		return nil
	}
	f := d.InexactFloat64()
	return &f
}
