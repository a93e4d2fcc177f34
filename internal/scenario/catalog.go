package scenario

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ismaiel54/agent-trading-gateway/internal/grading"
)

const (
	TakeProfitBasic       = "take-profit-basic"
	MakerDiscipline       = "maker-discipline"
	UnderwaterUnwind      = "underwater-unwind"
	BalancedCrossSymbol   = "balanced-cross-symbol"
	SmallCapitalPrecision = "small-capital-precision"
	QuantGauntletHard     = "quant-gauntlet-hard"
)

func init() {
	register(Scenario{
		Name:     TakeProfitBasic,
		Defaults: Params{Symbol: "AMZ", InitialCash: 15_000, TargetProfit: 200},
		prompt: func(p Params) string {
			return fmt.Sprintf(`You are a trader on XETRA. Starting cash: %s.

Goal: make at least %s net profit trading %s.

Use the provided tools to place/cancel orders, poll fills, and track your portfolio.
Your score is based on your portfolio state (not explanations).`,
				money(p.InitialCash), money(p.TargetProfit), p.Symbol)
		},
		grade: func(pf grading.Portfolio, p Params) []grading.SubGrade {
			return []grading.SubGrade{
				grading.PnL(0.80, pf, p.TargetProfit),
				grading.TradeActivity(0.20, pf),
			}
		},
	})

	register(Scenario{
		Name: MakerDiscipline,
		Defaults: Params{
			Symbol:             "AMZ",
			InitialCash:        15_000,
			TargetProfit:       180,
			MinProfitableTrips: 8,
			TargetProfitFactor: 1.6,
			MaxInventory:       80,
			MaxDrawdown:        250,
		},
		prompt: func(p Params) string {
			return fmt.Sprintf(`You are a trader on XETRA. Cash: %s.
On %s, make at least %s net profit.
Complete at least %d profitable round trips.
Keep peak open position at or below %.0f shares.
Keep max drawdown at or below %s.
End with zero position.`,
				money(p.InitialCash), p.Symbol, money(p.TargetProfit), p.MinProfitableTrips,
				p.MaxInventory, money(p.MaxDrawdown))
		},
		grade: func(pf grading.Portfolio, p Params) []grading.SubGrade {
			return []grading.SubGrade{
				grading.PnL(0.18, pf, p.TargetProfit),
				grading.RoundTripGrade(0.24, pf, p.MinProfitableTrips),
				grading.ProfitFactorGrade(0.22, pf, p.TargetProfitFactor),
				grading.MaxInventory(0.16, pf, p.MaxInventory, true),
				grading.MaxDrawdownGrade(0.10, pf, p.MaxDrawdown),
				grading.EndFlat(0.10, pf),
			}
		},
	})

	register(Scenario{
		Name: UnderwaterUnwind,
		Defaults: Params{
			InitialCash:        35_000,
			SetupSymbol:        "AMZ",
			SetupQty:           220,
			SetupAvgPrice:      103,
			TargetProfit:       250,
			TargetProfitFactor: 1.3,
			MaxDrawdown:        300,
			MinProfitableTrips: 3,
		},
		prompt: func(p Params) string {
			return fmt.Sprintf(`You start with an open %s long: %d shares at average %.2f.
Recover this book and finish with at least %s net profit.
Keep max drawdown at or below %s.
Complete at least %d profitable round trips.
End with zero position.`,
				p.SetupSymbol, p.SetupQty, p.SetupAvgPrice, money(p.TargetProfit),
				money(p.MaxDrawdown), p.MinProfitableTrips)
		},
		grade: func(pf grading.Portfolio, p Params) []grading.SubGrade {
			return []grading.SubGrade{
				grading.PnL(0.25, pf, p.TargetProfit),
				grading.EndFlat(0.20, pf),
				grading.MaxDrawdownGrade(0.20, pf, p.MaxDrawdown),
				grading.ProfitFactorGrade(0.20, pf, p.TargetProfitFactor),
				grading.RoundTripGrade(0.10, pf, p.MinProfitableTrips),
				grading.TradeActivity(0.05, pf),
			}
		},
	})

	register(Scenario{
		Name: BalancedCrossSymbol,
		Defaults: Params{
			InitialCash:               20_000,
			TargetProfit:              260,
			MinSymbols:                3,
			RequiredProfitableSymbols: 2,
			MinProfitPerSymbol:        60,
			MaxDrawdown:               350,
			TargetProfitFactor:        1.4,
		},
		prompt: func(p Params) string {
			return fmt.Sprintf(`You are a trader on XETRA. Cash: %s.
Make at least %s net profit.
Trade at least %d symbols.
At least %d symbols must each make %s+ realized profit.
Keep max drawdown at or below %s.
End with zero positions.`,
				money(p.InitialCash), money(p.TargetProfit), p.MinSymbols,
				p.RequiredProfitableSymbols, money(p.MinProfitPerSymbol), money(p.MaxDrawdown))
		},
		grade: func(pf grading.Portfolio, p Params) []grading.SubGrade {
			return []grading.SubGrade{
				grading.PnL(0.20, pf, p.TargetProfit),
				grading.SymbolsCovered(0.20, pf, p.MinSymbols),
				grading.PerSymbolProfit(0.25, pf, p.RequiredProfitableSymbols, p.MinProfitPerSymbol),
				grading.MaxDrawdownGrade(0.15, pf, p.MaxDrawdown),
				grading.EndFlat(0.10, pf),
				grading.ProfitFactorGrade(0.10, pf, p.TargetProfitFactor),
			}
		},
	})

	register(Scenario{
		Name: SmallCapitalPrecision,
		Defaults: Params{
			InitialCash:        6_000,
			TargetProfit:       120,
			MinProfitableTrips: 6,
			TargetProfitFactor: 1.8,
			MaxDrawdown:        120,
			MaxInventory:       35,
		},
		prompt: func(p Params) string {
			return fmt.Sprintf(`You are a trader on XETRA. Cash: %s.
Make at least %s net profit.
Complete at least %d profitable round trips.
Keep profit factor at or above %.1f.
Keep max drawdown at or below %s.
Keep peak position at or below %.0f shares.
End with zero position.`,
				money(p.InitialCash), money(p.TargetProfit), p.MinProfitableTrips,
				p.TargetProfitFactor, money(p.MaxDrawdown), p.MaxInventory)
		},
		grade: func(pf grading.Portfolio, p Params) []grading.SubGrade {
			return []grading.SubGrade{
				grading.PnL(0.20, pf, p.TargetProfit),
				grading.RoundTripGrade(0.20, pf, p.MinProfitableTrips),
				grading.ProfitFactorGrade(0.20, pf, p.TargetProfitFactor),
				grading.MaxDrawdownGrade(0.20, pf, p.MaxDrawdown),
				grading.MaxInventory(0.10, pf, p.MaxInventory, true),
				grading.EndFlat(0.10, pf),
			}
		},
	})

	register(Scenario{
		Name: QuantGauntletHard,
		Defaults: Params{
			InitialCash:               25_000,
			TargetProfit:              450,
			MinSymbols:                3,
			RequiredProfitableSymbols: 3,
			MinProfitPerSymbol:        70,
			MinProfitableTrips:        10,
			TargetProfitFactor:        1.8,
			MaxDrawdown:               400,
			MaxInventory:              120,
		},
		prompt: func(p Params) string {
			return fmt.Sprintf(`You are a trader on XETRA. Cash: %s.
Make at least %s net profit.
Trade at least %d symbols.
Each of those %d symbols must make at least %s realized profit.
Complete at least %d profitable round trips.
Keep profit factor at or above %.1f.
Keep max drawdown at or below %s.
Keep peak position per symbol at or below %.0f shares.
End with zero positions.`,
				money(p.InitialCash), money(p.TargetProfit), p.MinSymbols,
				p.RequiredProfitableSymbols, money(p.MinProfitPerSymbol), p.MinProfitableTrips,
				p.TargetProfitFactor, money(p.MaxDrawdown), p.MaxInventory)
		},
		grade: func(pf grading.Portfolio, p Params) []grading.SubGrade {
			return []grading.SubGrade{
				grading.PnL(0.18, pf, p.TargetProfit),
				grading.SymbolsCovered(0.12, pf, p.MinSymbols),
				grading.PerSymbolProfit(0.12, pf, p.RequiredProfitableSymbols, p.MinProfitPerSymbol),
				grading.RoundTripGrade(0.14, pf, p.MinProfitableTrips),
				grading.ProfitFactorGrade(0.14, pf, p.TargetProfitFactor),
				grading.MaxDrawdownGrade(0.14, pf, p.MaxDrawdown),
				grading.MaxInventory(0.08, pf, p.MaxInventory, true),
				grading.EndFlat(0.08, pf),
			}
		},
	})
}

// money renders whole currency units with thousands separators, e.g. $15,000
func money(v float64) string {
	s := decimal.NewFromFloat(v).Round(0).Abs().String()
	var b strings.Builder
	if v < 0 {
		b.WriteByte('-')
	}
	b.WriteByte('$')
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return b.String()
}
