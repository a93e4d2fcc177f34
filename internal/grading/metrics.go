package grading

import (
	"math"
	"sort"

	"github.com/ismaiel54/agent-trading-gateway/internal/ledger"
)

// Match pairs part of a SELL fill with the BUY lot it closed
type Match struct {
	Symbol    string  `json:"symbol"`
	Qty       int64   `json:"qty"`
	BuyPrice  float64 `json:"buy_price"`
	SellPrice float64 `json:"sell_price"`
	PnL       float64 `json:"pnl"`
	// SellIndex is the position of the closing fill in the history
	SellIndex int `json:"sell_index"`
}

type lot struct {
	qty   int64
	price float64
}

// MatchFIFO replays fills oldest-first. BUY fills open lots; each SELL consumes
// the oldest lots of its symbol. Sell quantity beyond the open lots is dropped.
func MatchFIFO(fills []ledger.Fill) []Match {
	queues := make(map[string][]lot)
	var matches []Match

	for i, f := range fills {
		if f.Qty <= 0 {
			continue
		}
		if f.Side == ledger.Buy {
			queues[f.Symbol] = append(queues[f.Symbol], lot{qty: f.Qty, price: f.Price})
			continue
		}

		remaining := f.Qty
		q := queues[f.Symbol]
		for remaining > 0 && len(q) > 0 {
			take := remaining
			if q[0].qty < take {
				take = q[0].qty
			}
			matches = append(matches, Match{
				Symbol:    f.Symbol,
				Qty:       take,
				BuyPrice:  q[0].price,
				SellPrice: f.Price,
				PnL:       (f.Price - q[0].price) * float64(take),
				SellIndex: i,
			})
			q[0].qty -= take
			remaining -= take
			if q[0].qty == 0 {
				q = q[1:]
			}
		}
		queues[f.Symbol] = q
	}
	return matches
}

// RealizedBySymbol sums matched P&L per symbol
func RealizedBySymbol(matches []Match) map[string]float64 {
	out := make(map[string]float64)
	for _, m := range matches {
		out[m.Symbol] += m.PnL
	}
	return out
}

// RoundTrip is one SELL fill and the P&L of the lots it closed
type RoundTrip struct {
	Symbol string  `json:"symbol"`
	Qty    int64   `json:"qty"`
	PnL    float64 `json:"pnl"`
}

// RoundTrips groups matches by their closing SELL fill, in fill order
func RoundTrips(matches []Match) []RoundTrip {
	var trips []RoundTrip
	last := -1
	for _, m := range matches {
		if m.SellIndex != last {
			trips = append(trips, RoundTrip{Symbol: m.Symbol})
			last = m.SellIndex
		}
		t := &trips[len(trips)-1]
		t.Qty += m.Qty
		t.PnL += m.PnL
	}
	return trips
}

// ProfitFactor is gross matched profit over gross matched loss: +Inf when
// there is profit and no loss, 0 when there is no profit.
func ProfitFactor(matches []Match) float64 {
	var profit, loss float64
	for _, m := range matches {
		if m.PnL > 0 {
			profit += m.PnL
		} else {
			loss -= m.PnL
		}
	}
	if profit <= 0 {
		return 0
	}
	if loss == 0 {
		return math.Inf(1)
	}
	return profit / loss
}

// MaxDrawdown replays fills and returns the largest fall of equity (cash plus
// positions marked at each symbol's latest fill price) from its running peak.
// The peak starts at initialCash.
func MaxDrawdown(fills []ledger.Fill, initialCash float64) float64 {
	cash := initialCash
	positions := make(map[string]int64)
	marks := make(map[string]float64)
	peak := initialCash
	var maxDD float64

	for _, f := range fills {
		notional := float64(f.Qty) * f.Price
		if f.Side == ledger.Buy {
			cash -= notional
			positions[f.Symbol] += f.Qty
		} else {
			cash += notional
			positions[f.Symbol] -= f.Qty
			if positions[f.Symbol] < 0 {
				positions[f.Symbol] = 0
			}
		}
		marks[f.Symbol] = f.Price

		equity := cash
		for symbol, qty := range positions {
			equity += float64(qty) * marks[symbol]
		}
		if equity > peak {
			peak = equity
		}
		if dd := peak - equity; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// Inventory is the peak open quantity seen while replaying fills
type Inventory struct {
	Aggregate int64            `json:"aggregate"`
	PerSymbol map[string]int64 `json:"per_symbol"`
}

// MaxSymbol returns the largest per-symbol peak
func (inv Inventory) MaxSymbol() int64 {
	var out int64
	for _, q := range inv.PerSymbol {
		if q > out {
			out = q
		}
	}
	return out
}

// PeakInventory replays fills and records the largest open positions
func PeakInventory(fills []ledger.Fill) Inventory {
	inv := Inventory{PerSymbol: make(map[string]int64)}
	positions := make(map[string]int64)
	var total int64

	for _, f := range fills {
		before := positions[f.Symbol]
		after := before
		if f.Side == ledger.Buy {
			after += f.Qty
		} else {
			after -= f.Qty
			if after < 0 {
				after = 0
			}
		}
		positions[f.Symbol] = after
		total += after - before

		if after > inv.PerSymbol[f.Symbol] {
			inv.PerSymbol[f.Symbol] = after
		}
		if total > inv.Aggregate {
			inv.Aggregate = total
		}
	}
	return inv
}

// TradedSymbols returns the distinct symbols with at least one fill, sorted
func TradedSymbols(fills []ledger.Fill) []string {
	seen := make(map[string]bool)
	var out []string
	for _, f := range fills {
		if !seen[f.Symbol] {
			seen[f.Symbol] = true
			out = append(out, f.Symbol)
		}
	}
	sort.Strings(out)
	return out
}
