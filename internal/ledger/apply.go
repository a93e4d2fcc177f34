package ledger

import (
	"errors"
	"fmt"

	"github.com/ismaiel54/agent-trading-gateway/internal/events"
)

// ErrUnknownSide is returned for a fill whose side cannot be resolved
var ErrUnknownSide = errors.New("fill side unknown")

// Apply maps a domain event onto the ledger and reports whether state changed.
// Trades record a fill, terminal reports release the order, replace
// confirmations move the lock and cancel rejects drop a pending replace hold.
// Fills repeating an already seen ExecID are ignored.
func (l *Ledger) Apply(ev events.Event) (bool, error) {
	if rej, ok := ev.(*events.OrderCancelReject); ok {
		return l.ReleaseReplacement(rej.ClOrdID), nil
	}
	er, ok := ev.(*events.ExecutionReport)
	if !ok {
		return false, nil
	}

	switch er.ExecType.Text {
	case events.ExecTrade:
		return l.applyFill(er)
	case events.ExecCanceled, events.ExecExpired, events.ExecRejected:
		if er.OrigClOrdID != "" && l.CancelOrder(er.OrigClOrdID) {
			return true, nil
		}
		return l.CancelOrder(er.ClOrdID), nil
	case events.ExecReplaced:
		return l.applyReplaced(er), nil
	}
	return false, nil
}

func (l *Ledger) applyFill(er *events.ExecutionReport) (bool, error) {
	if er.LastQty <= 0 {
		return false, nil
	}
	if er.ExecID != "" {
		if l.execIDs[er.ExecID] {
			return false, nil
		}
	}

	order, known := l.active[er.ClOrdID]
	var side Side
	switch er.Side.Text {
	case events.SideBuy:
		side = Buy
	case events.SideSell, events.SideSellShort, events.SideSellShortExempt:
		side = Sell
	default:
		if !known {
			return false, fmt.Errorf("%w: exec %s side %q", ErrUnknownSide, er.ExecID, er.Side.Code)
		}
		side = order.Side
	}
	symbol := er.Symbol
	if symbol == "" && known {
		symbol = order.Symbol
	}

	if er.ExecID != "" {
		l.execIDs[er.ExecID] = true
	}
	l.recordFill(er.ClOrdID, er.ExecID, symbol, side, er.LastQty, er.LastPx)
	return true, nil
}

// applyReplaced derives the remaining quantity from LeavesQty, else from
// OrderQty-CumQty; with neither the replace is treated as price-only.
func (l *Ledger) applyReplaced(er *events.ExecutionReport) bool {
	var qty *int64
	switch {
	case er.LeavesQty != nil:
		q := *er.LeavesQty
		qty = &q
	case er.OrderQty != nil && er.CumQty != nil:
		q := *er.OrderQty - *er.CumQty
		qty = &q
	}

	var symbol *string
	if er.Symbol != "" {
		symbol = &er.Symbol
	}
	var side *Side
	switch er.Side.Text {
	case events.SideBuy:
		s := Buy
		side = &s
	case events.SideSell, events.SideSellShort, events.SideSellShortExempt:
		s := Sell
		side = &s
	}

	return l.ApplyReplacement(er.OrigClOrdID, er.ClOrdID, qty, er.Price, symbol, side)
}
