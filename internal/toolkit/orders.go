package toolkit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ismaiel54/agent-trading-gateway/internal/ledger"
	"github.com/ismaiel54/agent-trading-gateway/internal/router"
)

// PlaceRequest is an agent order. Side, OrdType and TimeInForce are names in
// any case; OrdType defaults to LIMIT and TimeInForce to DAY.
type PlaceRequest struct {
	Symbol      string    `json:"symbol"`
	Side        string    `json:"side"`
	Qty         int64     `json:"qty"`
	Price       float64   `json:"price"`
	OrdType     string    `json:"ord_type,omitempty"`
	TimeInForce string    `json:"time_in_force,omitempty"`
	ExpireTime  time.Time `json:"expire_time,omitempty"`
}

// PlaceResult reports the new order and the fills that arrived right after it
type PlaceResult struct {
	OrderID        string `json:"order_id"`
	ImmediateFills int    `json:"immediate_fills"`
}

// ReplaceRequest amends a working order. Qty is the new total order quantity.
// Symbol and Side default to the working order's.
type ReplaceRequest struct {
	OrderID     string    `json:"order_id"`
	Symbol      string    `json:"symbol,omitempty"`
	Side        string    `json:"side,omitempty"`
	Qty         int64     `json:"qty"`
	Price       float64   `json:"price"`
	OrdType     string    `json:"ord_type,omitempty"`
	TimeInForce string    `json:"time_in_force,omitempty"`
	ExpireTime  time.Time `json:"expire_time,omitempty"`
}

func orderTerms(ordType, tif string) (router.OrdType, router.TimeInForce, error) {
	ot := router.OrdTypeLimit
	if ordType != "" {
		var err error
		if ot, err = router.ParseOrdType(ordType); err != nil {
			return "", "", err
		}
	}
	t := router.TIFDay
	if tif != "" {
		var err error
		if t, err = router.ParseTimeInForce(tif); err != nil {
			return "", "", err
		}
	}
	return ot, t, nil
}

func ledgerSide(s router.Side) ledger.Side {
	if s.IsBuy() {
		return ledger.Buy
	}
	return ledger.Sell
}

// PlaceOrder locks funds or shares in the ledger, then sends the order. If the
// send fails the lock is released. A MARKET order without a price takes the
// symbol's last fill price as reference; MARKET buys lock the reference plus
// the configured slippage, since the venue may fill above it.
func (t *Toolkit) PlaceOrder(ctx context.Context, req PlaceRequest) (PlaceResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.step()

	side, err := router.ParseSide(req.Side)
	if err != nil {
		return PlaceResult{}, err
	}
	ordType, tif, err := orderTerms(req.OrdType, req.TimeInForce)
	if err != nil {
		return PlaceResult{}, err
	}

	lockPrice := req.Price
	if ordType == router.OrdTypeMarket && !(lockPrice > 0) {
		last, ok := t.ledger.LastPrice(req.Symbol)
		if !ok {
			return PlaceResult{}, &router.ValidationError{
				Field:  "price",
				Reason: fmt.Sprintf("MARKET order on %s needs a reference price until the symbol has a fill", req.Symbol),
			}
		}
		lockPrice = last
	}
	if ordType == router.OrdTypeMarket && side.IsBuy() {
		lockPrice *= 1 + t.cfg.MarketSlippage
	}

	order := router.NewOrder{
		ClOrdID:     router.NewID(),
		Symbol:      req.Symbol,
		Side:        side,
		Qty:         req.Qty,
		OrdType:     ordType,
		Price:       req.Price,
		TimeInForce: tif,
		ExpireTime:  req.ExpireTime,
	}
	if _, err := router.BuildNewOrder(order, t.now()); err != nil {
		return PlaceResult{}, err
	}

	if err := t.ledger.PlaceOrder(order.ClOrdID, order.Symbol, ledgerSide(side), order.Qty, lockPrice); err != nil {
		return PlaceResult{}, err
	}
	if _, err := t.router.PlaceOrder(order); err != nil {
		t.ledger.CancelOrder(order.ClOrdID)
		t.logger.Warn("order send failed, lock released",
			zap.String("order_id", order.ClOrdID),
			zap.Error(err),
		)
		return PlaceResult{}, err
	}

	before := len(t.ledger.Fills())
	t.pumpLocked(ctx)
	immediate := 0
	for _, f := range t.ledger.Fills()[before:] {
		if f.OrderID == order.ClOrdID {
			immediate++
		}
	}
	return PlaceResult{OrderID: order.ClOrdID, ImmediateFills: immediate}, nil
}

// CancelResult names the cancel request sent for an order
type CancelResult struct {
	OrderID  string `json:"order_id"`
	CancelID string `json:"cancel_id"`
}

// CancelOrder asks the venue to cancel a working order. The ledger lock is
// released when the venue confirms. symbol and side may be empty for orders
// the ledger still tracks.
func (t *Toolkit) CancelOrder(ctx context.Context, orderID, symbol, side string) (CancelResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.step()

	req := router.CancelRequest{OrigClOrdID: orderID, Symbol: symbol}
	if o, ok := t.ledger.ActiveOrder(orderID); ok {
		if req.Symbol == "" {
			req.Symbol = o.Symbol
		}
		if side == "" {
			side = string(o.Side)
		}
	} else if symbol == "" || side == "" {
		return CancelResult{}, fmt.Errorf("%w: %s", ErrUnknownOrder, orderID)
	}
	s, err := router.ParseSide(side)
	if err != nil {
		return CancelResult{}, err
	}
	req.Side = s

	cancelID, err := t.router.CancelOrder(req)
	if err != nil {
		return CancelResult{}, err
	}
	t.pumpLocked(ctx)
	return CancelResult{OrderID: orderID, CancelID: cancelID}, nil
}

// ReplaceResult names the replacement order
type ReplaceResult struct {
	OrderID    string `json:"order_id"`
	NewOrderID string `json:"new_order_id"`
}

// ReplaceOrder reserves what the amended order needs beyond its current lock
// and sends the replace. The reservation is consumed when the venue confirms
// and released when it rejects the replace or the send fails.
func (t *Toolkit) ReplaceOrder(ctx context.Context, req ReplaceRequest) (ReplaceResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.step()

	o, ok := t.ledger.ActiveOrder(req.OrderID)
	if !ok {
		return ReplaceResult{}, fmt.Errorf("%w: %s", ErrUnknownOrder, req.OrderID)
	}
	symbol := req.Symbol
	if symbol == "" {
		symbol = o.Symbol
	}
	sideName := req.Side
	if sideName == "" {
		sideName = string(o.Side)
	}
	side, err := router.ParseSide(sideName)
	if err != nil {
		return ReplaceResult{}, err
	}
	ordType, tif, err := orderTerms(req.OrdType, req.TimeInForce)
	if err != nil {
		return ReplaceResult{}, err
	}

	checkPrice := req.Price
	if ordType == router.OrdTypeMarket {
		if !(checkPrice > 0) {
			// the working order's lock price already carries any slippage
			checkPrice = o.Price
		} else if side.IsBuy() {
			checkPrice *= 1 + t.cfg.MarketSlippage
		}
	}
	newID := router.NewID()
	if err := t.ledger.ReserveReplacement(req.OrderID, newID, req.Qty, checkPrice); err != nil {
		return ReplaceResult{}, err
	}

	_, err = t.router.ReplaceOrder(router.ReplaceRequest{
		ClOrdID:     newID,
		OrigClOrdID: req.OrderID,
		Symbol:      symbol,
		Side:        side,
		Qty:         req.Qty,
		OrdType:     ordType,
		Price:       req.Price,
		TimeInForce: tif,
		ExpireTime:  req.ExpireTime,
	})
	if err != nil {
		t.ledger.ReleaseReplacement(newID)
		t.logger.Warn("replace send failed, reservation released",
			zap.String("order_id", req.OrderID),
			zap.String("new_order_id", newID),
			zap.Error(err),
		)
		return ReplaceResult{}, err
	}
	t.pumpLocked(ctx)
	return ReplaceResult{OrderID: req.OrderID, NewOrderID: newID}, nil
}
