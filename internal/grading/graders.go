package grading

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/ismaiel54/agent-trading-gateway/internal/ledger"
)

// Grader names as they appear in a Grade
const (
	NamePnL             = "PnLGrader"
	NameTradeActivity   = "TradeActivityGrader"
	NameEndFlat         = "EndFlatGrader"
	NameMaxDrawdown     = "MaxDrawdownGrader"
	NameRoundTrip       = "RoundTripGrader"
	NameSymbolsCovered  = "SymbolsCoveredGrader"
	NameProfitFactor    = "ProfitFactorGrader"
	NamePerSymbolProfit = "PerSymbolProfitGrader"
	NameMaxInventory    = "MaxInventoryGrader"
	NameStepBudget      = "StepBudgetGrader"
)

// Portfolio is what the graders look at: the final ledger state and the fill
// history that produced it.
type Portfolio struct {
	Snapshot ledger.Snapshot
	Fills    []ledger.Fill
}

// FromLedger captures a live ledger
func FromLedger(l *ledger.Ledger) Portfolio {
	return Portfolio{Snapshot: l.Snapshot(), Fills: l.Fills()}
}

// Replay rebuilds a portfolio from a recorded fill history
func Replay(initialCash float64, fills []ledger.Fill) Portfolio {
	l := ledger.New(initialCash)
	for _, f := range fills {
		l.RecordFill(f.OrderID, f.Symbol, f.Side, f.Qty, f.Price)
	}
	return Portfolio{Snapshot: l.Snapshot(), Fills: fills}
}

func round2(v float64) float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return v
	}
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// PnL scores net profit against target
func PnL(weight float64, p Portfolio, targetProfit float64) SubGrade {
	profit := p.Snapshot.NetProfit
	var score float64
	if targetProfit > 0 {
		score = clamp01(profit / targetProfit)
	}
	return SubGrade{
		Name:       NamePnL,
		Score:      score,
		Weight:     weight,
		Parameters: map[string]any{"target_profit": targetProfit},
		Metadata: map[string]any{
			"actual_profit": round2(profit),
			"target_profit": targetProfit,
			"final_cash":    round2(p.Snapshot.Cash),
		},
	}
}

// TradeActivity is 0 with no fills, 0.5 with fills on one side, 1 with both
func TradeActivity(weight float64, p Portfolio) SubGrade {
	var buys, sells int
	for _, f := range p.Fills {
		if f.Side == ledger.Buy {
			buys++
		} else {
			sells++
		}
	}
	var score float64
	switch {
	case buys > 0 && sells > 0:
		score = 1
	case len(p.Fills) > 0:
		score = 0.5
	}
	return SubGrade{
		Name:   NameTradeActivity,
		Score:  score,
		Weight: weight,
		Metadata: map[string]any{
			"total_fills": len(p.Fills),
			"buy_fills":   buys,
			"sell_fills":  sells,
		},
	}
}

// EndFlat is 1 when no position is left open
func EndFlat(weight float64, p Portfolio) SubGrade {
	open := make(map[string]int64, len(p.Snapshot.Positions))
	for symbol, pos := range p.Snapshot.Positions {
		open[symbol] = pos.Qty
	}
	var score float64
	if p.Snapshot.Flat() {
		score = 1
	}
	return SubGrade{
		Name:     NameEndFlat,
		Score:    score,
		Weight:   weight,
		Metadata: map[string]any{"open_positions": open},
	}
}

// MaxDrawdownGrade penalizes drawdown beyond maxDrawdown
func MaxDrawdownGrade(weight float64, p Portfolio, maxDrawdown float64) SubGrade {
	dd := MaxDrawdown(p.Fills, p.Snapshot.InitialCash)
	return SubGrade{
		Name:       NameMaxDrawdown,
		Score:      violationScore(dd, maxDrawdown),
		Weight:     weight,
		Parameters: map[string]any{"max_drawdown": maxDrawdown},
		Metadata: map[string]any{
			"max_drawdown_observed": round2(dd),
			"max_drawdown_allowed":  maxDrawdown,
		},
	}
}

// RoundTripGrade counts SELL fills whose matched lots closed at a profit
func RoundTripGrade(weight float64, p Portfolio, minProfitableTrips int) SubGrade {
	trips := RoundTrips(MatchFIFO(p.Fills))
	var profitable int
	for _, t := range trips {
		if t.PnL > 0 {
			profitable++
		}
	}
	return SubGrade{
		Name:       NameRoundTrip,
		Score:      achievementScore(float64(profitable), float64(minProfitableTrips)),
		Weight:     weight,
		Parameters: map[string]any{"min_profitable_trips": minProfitableTrips},
		Metadata: map[string]any{
			"round_trips":            len(trips),
			"profitable_round_trips": profitable,
		},
	}
}

// SymbolsCovered counts distinct traded symbols
func SymbolsCovered(weight float64, p Portfolio, minSymbols int) SubGrade {
	symbols := TradedSymbols(p.Fills)
	return SubGrade{
		Name:       NameSymbolsCovered,
		Score:      achievementScore(float64(len(symbols)), float64(minSymbols)),
		Weight:     weight,
		Parameters: map[string]any{"min_symbols": minSymbols},
		Metadata:   map[string]any{"symbols": symbols},
	}
}

// ProfitFactorGrade scores the matched profit factor against target
func ProfitFactorGrade(weight float64, p Portfolio, targetProfitFactor float64) SubGrade {
	pf := ProfitFactor(MatchFIFO(p.Fills))
	// +Inf has no JSON form
	var observed any = round2(pf)
	if math.IsInf(pf, 1) {
		observed = "inf"
	}
	return SubGrade{
		Name:       NameProfitFactor,
		Score:      achievementScore(pf, targetProfitFactor),
		Weight:     weight,
		Parameters: map[string]any{"target_profit_factor": targetProfitFactor},
		Metadata:   map[string]any{"profit_factor": observed},
	}
}

// PerSymbolProfit counts symbols whose realized P&L reaches minProfitPerSymbol
func PerSymbolProfit(weight float64, p Portfolio, requiredSymbols int, minProfitPerSymbol float64) SubGrade {
	realized := RealizedBySymbol(MatchFIFO(p.Fills))
	qualifying := 0
	rounded := make(map[string]float64, len(realized))
	for symbol, pnl := range realized {
		rounded[symbol] = round2(pnl)
		if pnl >= minProfitPerSymbol {
			qualifying++
		}
	}
	return SubGrade{
		Name:   NamePerSymbolProfit,
		Score:  achievementScore(float64(qualifying), float64(requiredSymbols)),
		Weight: weight,
		Parameters: map[string]any{
			"required_symbols":      requiredSymbols,
			"min_profit_per_symbol": minProfitPerSymbol,
		},
		Metadata: map[string]any{
			"realized_by_symbol": rounded,
			"qualifying_symbols": qualifying,
		},
	}
}

// MaxInventory penalizes peak open quantity beyond limit, per symbol or summed
// across symbols.
func MaxInventory(weight float64, p Portfolio, limit float64, perSymbol bool) SubGrade {
	inv := PeakInventory(p.Fills)
	peak := inv.Aggregate
	if perSymbol {
		peak = inv.MaxSymbol()
	}
	return SubGrade{
		Name:   NameMaxInventory,
		Score:  violationScore(float64(peak), limit),
		Weight: weight,
		Parameters: map[string]any{
			"inventory_limit": limit,
			"per_symbol":      perSymbol,
		},
		Metadata: map[string]any{
			"peak_inventory": peak,
			"peak_by_symbol": inv.PerSymbol,
			"peak_aggregate": inv.Aggregate,
		},
	}
}

// StepBudget penalizes tool calls beyond maxSteps
func StepBudget(weight float64, steps, maxSteps int) SubGrade {
	return SubGrade{
		Name:       NameStepBudget,
		Score:      violationScore(float64(steps), float64(maxSteps)),
		Weight:     weight,
		Parameters: map[string]any{"max_steps": maxSteps},
		Metadata:   map[string]any{"steps": steps},
	}
}
