package ledger

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

var (
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInsufficientPosition = errors.New("insufficient position")
	ErrDuplicateOrder       = errors.New("duplicate order id")
	ErrInvalidOrder         = errors.New("invalid order")
	ErrUnknownOrder         = errors.New("unknown order")
	ErrReplacePending       = errors.New("replace already pending")
	ErrInvariant            = errors.New("ledger invariant violated")
)

// epsilon absorbs float noise when comparing and releasing cash locks
const epsilon = 1e-9

// Side of a ledger order. Every non-buy side reduces a held position.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Position is the held quantity and its weighted average cost
type Position struct {
	Qty      int64   `json:"qty"`
	AvgPrice float64 `json:"avg_price"`
}

// Order is a working order and the lock it holds. Qty is the remaining
// quantity; the lock is Qty*Price for buys and Qty shares for sells.
type Order struct {
	ID     string  `json:"order_id"`
	Symbol string  `json:"symbol"`
	Side   Side    `json:"side"`
	Qty    int64   `json:"qty"`
	Price  float64 `json:"price"`
	Filled int64   `json:"filled"`
}

func (o *Order) lockedCash() float64 {
	if o.Side == Buy {
		return float64(o.Qty) * o.Price
	}
	return 0
}

// hold reserves the extra funds or shares a sent replace needs until the
// venue confirms or rejects it
type hold struct {
	origID string
	symbol string
	cash   float64
	shares int64
}

// Fill is one execution. The fill history is append-only.
type Fill struct {
	OrderID string    `json:"order_id"`
	ExecID  string    `json:"exec_id,omitempty"`
	Symbol  string    `json:"symbol"`
	Side    Side      `json:"side"`
	Qty     int64     `json:"qty"`
	Price   float64   `json:"price"`
	At      time.Time `json:"ts"`
}

// Ledger tracks cash, positions and the locks held by working orders for one
// episode. It has no internal locking: callers serialize access.
type Ledger struct {
	initialCash     float64
	cash            float64
	lockedCash      float64
	positions       map[string]*Position
	lockedPositions map[string]int64
	active          map[string]*Order
	holds           map[string]*hold
	fills           []Fill
	execIDs         map[string]bool
	now             func() time.Time
}

// New creates a ledger holding initialCash and nothing else
func New(initialCash float64) *Ledger {
	l := &Ledger{now: time.Now}
	l.Reset(initialCash)
	return l
}

// Reset clears cash, positions, locks and fills for a new episode
func (l *Ledger) Reset(initialCash float64) {
	l.initialCash = initialCash
	l.cash = initialCash
	l.lockedCash = 0
	l.positions = make(map[string]*Position)
	l.lockedPositions = make(map[string]int64)
	l.active = make(map[string]*Order)
	l.holds = make(map[string]*hold)
	l.fills = nil
	l.execIDs = make(map[string]bool)
}

// InitialCash returns the cash the episode started with
func (l *Ledger) InitialCash() float64 { return l.initialCash }

// Cash returns the cash balance including locked funds
func (l *Ledger) Cash() float64 { return l.cash }

// LockedCash returns the funds reserved by working buy orders
func (l *Ledger) LockedCash() float64 { return l.lockedCash }

// AvailableCash returns cash not reserved by working orders
func (l *Ledger) AvailableCash() float64 { return l.cash - l.lockedCash }

// Position returns the held position for symbol
func (l *Ledger) Position(symbol string) Position {
	if p, ok := l.positions[symbol]; ok {
		return *p
	}
	return Position{}
}

// LockedPosition returns the shares reserved by working sell orders
func (l *Ledger) LockedPosition(symbol string) int64 {
	return l.lockedPositions[symbol]
}

// PlaceOrder checks availability and locks funds (buy) or shares (sell) for
// a new order. On failure nothing is changed.
func (l *Ledger) PlaceOrder(id, symbol string, side Side, qty int64, price float64) error {
	if id == "" || symbol == "" || qty <= 0 || price < 0 || math.IsNaN(price) {
		return fmt.Errorf("%w: id=%q symbol=%q qty=%d price=%v", ErrInvalidOrder, id, symbol, qty, price)
	}
	if _, exists := l.active[id]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateOrder, id)
	}

	order := &Order{ID: id, Symbol: symbol, Side: normalize(side), Qty: qty, Price: price}
	if order.Side == Buy {
		need := float64(qty) * price
		if available := l.AvailableCash(); available+epsilon < need {
			return fmt.Errorf("%w: need %.2f, available %.2f", ErrInsufficientFunds, need, available)
		}
		l.lockedCash += need
	} else {
		if free := l.Position(symbol).Qty - l.lockedPositions[symbol]; free < qty {
			return fmt.Errorf("%w: need %d %s, available %d", ErrInsufficientPosition, qty, symbol, free)
		}
		l.lockedPositions[symbol] += qty
	}

	l.active[id] = order
	return nil
}

// CancelOrder releases the remaining lock of an order and forgets it, along
// with any replace still pending on it. id may also name a pending replace.
// Unknown ids are ignored; the result reports whether anything was released.
func (l *Ledger) CancelOrder(id string) bool {
	released := l.ReleaseReplacement(id)
	order, ok := l.active[id]
	if !ok {
		return released
	}
	for replID, h := range l.holds {
		if h.origID == id {
			l.ReleaseReplacement(replID)
		}
	}
	l.release(order, order.Qty)
	delete(l.active, id)
	return true
}

// CheckReplacement verifies that replacing origID with newQty (total order
// quantity) at newPrice would not exceed available cash or shares.
func (l *Ledger) CheckReplacement(origID string, newQty int64, newPrice float64) error {
	_, err := l.replacementHold(origID, newQty, newPrice)
	return err
}

// ReserveReplacement locks the extra funds or shares replacing origID needs
// under replID, so later orders cannot claim them before the venue answers.
// The hold is released by ReleaseReplacement (rejected) or ApplyReplacement
// (confirmed). Only one replace may be pending per order.
func (l *Ledger) ReserveReplacement(origID, replID string, newQty int64, newPrice float64) error {
	if replID == "" {
		return fmt.Errorf("%w: empty replace id", ErrInvalidOrder)
	}
	if _, exists := l.holds[replID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateOrder, replID)
	}
	for _, h := range l.holds {
		if h.origID == origID {
			return fmt.Errorf("%w: %s", ErrReplacePending, origID)
		}
	}
	h, err := l.replacementHold(origID, newQty, newPrice)
	if err != nil {
		return err
	}
	l.lockedCash += h.cash
	if h.shares > 0 {
		l.lockedPositions[h.symbol] += h.shares
	}
	l.holds[replID] = h
	return nil
}

// ReleaseReplacement drops the hold of a replace the venue declined
func (l *Ledger) ReleaseReplacement(replID string) bool {
	h, ok := l.holds[replID]
	if !ok {
		return false
	}
	delete(l.holds, replID)
	l.lockedCash -= h.cash
	l.snapLockedCash()
	if h.shares > 0 {
		l.lockedPositions[h.symbol] -= h.shares
		l.tidyLockedPosition(h.symbol)
	}
	return true
}

// PendingReplacements returns the ids of replaces awaiting the venue
func (l *Ledger) PendingReplacements() []string {
	out := make([]string, 0, len(l.holds))
	for id := range l.holds {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (l *Ledger) replacementHold(origID string, newQty int64, newPrice float64) (*hold, error) {
	order, ok := l.active[origID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOrder, origID)
	}
	remaining := clampQty(newQty - order.Filled)
	price := clampPrice(newPrice)
	h := &hold{origID: origID, symbol: order.Symbol}

	if order.Side == Buy {
		// the working order may still fill at its own price before the
		// venue applies a cheaper replacement
		need := float64(remaining) * price
		if order.Price > price {
			need += float64(min(order.Qty, remaining)) * (order.Price - price)
		}
		extra := need - order.lockedCash()
		if available := l.AvailableCash(); extra > available+epsilon {
			return nil, fmt.Errorf("%w: replace needs %.2f more, available %.2f", ErrInsufficientFunds, extra, available)
		}
		h.cash = math.Max(extra, 0)
		return h, nil
	}
	extra := remaining - order.Qty
	if free := l.Position(order.Symbol).Qty - l.lockedPositions[order.Symbol]; extra > free {
		return nil, fmt.Errorf("%w: replace needs %d more %s, available %d", ErrInsufficientPosition, extra, order.Symbol, free)
	}
	h.shares = clampQty(extra)
	return h, nil
}

// ApplyReplacement moves the lock of origID to replID once the venue confirms
// a replace, consuming the hold reserved for replID. Nil arguments keep the
// original value; newQty is the remaining quantity. Negative quantities and
// prices are clamped to zero.
func (l *Ledger) ApplyReplacement(origID, replID string, newQty *int64, newPrice *float64, newSymbol *string, newSide *Side) bool {
	l.ReleaseReplacement(replID)
	order, ok := l.active[origID]
	if !ok {
		return false
	}

	next := *order
	next.ID = replID
	if newQty != nil {
		next.Qty = clampQty(*newQty)
	}
	if newPrice != nil {
		next.Price = clampPrice(*newPrice)
	}
	if newSymbol != nil && *newSymbol != "" {
		next.Symbol = *newSymbol
	}
	if newSide != nil && *newSide != "" {
		next.Side = normalize(*newSide)
	}

	if next.Symbol == order.Symbol && next.Side == order.Side {
		// same instrument and direction: adjust by the delta only
		if order.Side == Buy {
			l.lockedCash += next.lockedCash() - order.lockedCash()
			l.snapLockedCash()
		} else {
			l.lockedPositions[order.Symbol] += next.Qty - order.Qty
			l.tidyLockedPosition(order.Symbol)
		}
	} else {
		l.release(order, order.Qty)
		l.lock(&next)
	}

	delete(l.active, origID)
	if next.Qty > 0 {
		l.active[replID] = &next
	}
	return true
}

// RecordFill releases the matched part of the order's lock at the order's
// placement price, then applies the actual trade to cash and position and
// appends it to the history. Fills for unknown orders still move cash and
// position.
func (l *Ledger) RecordFill(id, symbol string, side Side, qty int64, price float64) Fill {
	return l.recordFill(id, "", symbol, side, qty, price)
}

func (l *Ledger) recordFill(id, execID, symbol string, side Side, qty int64, price float64) Fill {
	side = normalize(side)

	if order, ok := l.active[id]; ok {
		matched := qty
		if matched > order.Qty {
			matched = order.Qty
		}
		l.release(order, matched)
		order.Qty -= matched
		order.Filled += matched
		if order.Qty == 0 {
			delete(l.active, id)
		}
	}

	pos, ok := l.positions[symbol]
	if !ok {
		pos = &Position{}
		l.positions[symbol] = pos
	}
	notional := float64(qty) * price
	if side == Buy {
		l.cash -= notional
		total := pos.AvgPrice*float64(pos.Qty) + notional
		pos.Qty += qty
		if pos.Qty > 0 {
			pos.AvgPrice = total / float64(pos.Qty)
		}
	} else {
		l.cash += notional
		pos.Qty -= qty
		if pos.Qty <= 0 {
			pos.Qty = 0
			pos.AvgPrice = 0
		}
		// a sell beyond the lock cannot leave more shares locked than held
		if l.lockedPositions[symbol] > pos.Qty {
			l.lockedPositions[symbol] = pos.Qty
			l.tidyLockedPosition(symbol)
		}
	}

	fill := Fill{OrderID: id, ExecID: execID, Symbol: symbol, Side: side, Qty: qty, Price: price, At: l.now()}
	l.fills = append(l.fills, fill)
	return fill
}

// LastPrice returns the most recent fill price for symbol
func (l *Ledger) LastPrice(symbol string) (float64, bool) {
	for i := len(l.fills) - 1; i >= 0; i-- {
		if l.fills[i].Symbol == symbol {
			return l.fills[i].Price, true
		}
	}
	return 0, false
}

// NetProfit marks open positions at their last fill price. A position with
// no fill price contributes nothing.
func (l *Ledger) NetProfit() float64 {
	value := l.cash
	for symbol, pos := range l.positions {
		if pos.Qty <= 0 {
			continue
		}
		if px, ok := l.LastPrice(symbol); ok {
			value += float64(pos.Qty) * px
		}
	}
	return value - l.initialCash
}

// LastFill returns the most recent fill
func (l *Ledger) LastFill() (Fill, bool) {
	if len(l.fills) == 0 {
		return Fill{}, false
	}
	return l.fills[len(l.fills)-1], true
}

// Fills returns a copy of the fill history
func (l *Ledger) Fills() []Fill {
	out := make([]Fill, len(l.fills))
	copy(out, l.fills)
	return out
}

// ActiveOrder returns the working order with id
func (l *Ledger) ActiveOrder(id string) (Order, bool) {
	if o, ok := l.active[id]; ok {
		return *o, true
	}
	return Order{}, false
}

// ActiveOrders returns the working orders sorted by id
func (l *Ledger) ActiveOrders() []Order {
	out := make([]Order, 0, len(l.active))
	for _, o := range l.active {
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Verify checks the lock invariants
func (l *Ledger) Verify() error {
	if l.lockedCash < -epsilon {
		return fmt.Errorf("%w: locked cash %.6f is negative", ErrInvariant, l.lockedCash)
	}
	if l.lockedCash > l.cash+epsilon {
		return fmt.Errorf("%w: locked cash %.6f exceeds cash %.6f", ErrInvariant, l.lockedCash, l.cash)
	}

	var wantCash float64
	wantShares := make(map[string]int64)
	for _, o := range l.active {
		if o.Side == Buy {
			wantCash += o.lockedCash()
		} else {
			wantShares[o.Symbol] += o.Qty
		}
	}
	for _, h := range l.holds {
		wantCash += h.cash
		if h.shares > 0 {
			wantShares[h.symbol] += h.shares
		}
	}
	if math.Abs(wantCash-l.lockedCash) > 1e-6 {
		return fmt.Errorf("%w: locked cash %.6f, orders hold %.6f", ErrInvariant, l.lockedCash, wantCash)
	}
	for symbol, locked := range l.lockedPositions {
		if locked < 0 || locked > l.Position(symbol).Qty {
			return fmt.Errorf("%w: %s locked %d of %d held", ErrInvariant, symbol, locked, l.Position(symbol).Qty)
		}
		if locked != wantShares[symbol] {
			return fmt.Errorf("%w: %s locked %d, orders hold %d", ErrInvariant, symbol, locked, wantShares[symbol])
		}
	}
	for symbol, qty := range wantShares {
		if l.lockedPositions[symbol] != qty {
			return fmt.Errorf("%w: %s orders hold %d, locked %d", ErrInvariant, symbol, qty, l.lockedPositions[symbol])
		}
	}
	return nil
}

func (l *Ledger) lock(o *Order) {
	if o.Side == Buy {
		l.lockedCash += o.lockedCash()
		return
	}
	l.lockedPositions[o.Symbol] += o.Qty
}

func (l *Ledger) release(o *Order, qty int64) {
	if o.Side == Buy {
		l.lockedCash -= float64(qty) * o.Price
		l.snapLockedCash()
		return
	}
	l.lockedPositions[o.Symbol] -= qty
	l.tidyLockedPosition(o.Symbol)
}

func (l *Ledger) snapLockedCash() {
	if l.lockedCash < epsilon {
		l.lockedCash = 0
	}
}

func (l *Ledger) tidyLockedPosition(symbol string) {
	if l.lockedPositions[symbol] <= 0 {
		delete(l.lockedPositions, symbol)
	}
}

func normalize(side Side) Side {
	if side == Buy {
		return Buy
	}
	return Sell
}

func clampQty(q int64) int64 {
	if q < 0 {
		return 0
	}
	return q
}

func clampPrice(p float64) float64 {
	if p < 0 || math.IsNaN(p) {
		return 0
	}
	return p
}
