package scenario

import (
	"errors"
	"fmt"
	"sort"

	"github.com/mitchellh/mapstructure"

	"github.com/ismaiel54/agent-trading-gateway/internal/grading"
	"github.com/ismaiel54/agent-trading-gateway/internal/ledger"
)

var (
	// ErrUnknownScenario is returned by Lookup for an unregistered name
	ErrUnknownScenario = errors.New("unknown scenario")
	// ErrInvalidParams is returned by Resolve for unknown or mistyped overrides
	ErrInvalidParams = errors.New("invalid scenario params")
)

// StepBudgetWeight is the share given to the step budget when MaxSteps is set.
// The scenario's own weights are scaled down to make room.
const StepBudgetWeight = 0.1

// Params holds every tunable a scenario may read. Zero values mean the
// parameter does not apply.
type Params struct {
	Symbol                    string  `mapstructure:"symbol" json:"symbol,omitempty"`
	InitialCash               float64 `mapstructure:"initial_cash" json:"initial_cash"`
	TargetProfit              float64 `mapstructure:"target_profit" json:"target_profit"`
	MinProfitableTrips        int     `mapstructure:"min_profitable_trips" json:"min_profitable_trips,omitempty"`
	TargetProfitFactor        float64 `mapstructure:"target_profit_factor" json:"target_profit_factor,omitempty"`
	MaxInventory              float64 `mapstructure:"max_inventory" json:"max_inventory,omitempty"`
	MaxDrawdown               float64 `mapstructure:"max_drawdown" json:"max_drawdown,omitempty"`
	MinSymbols                int     `mapstructure:"min_symbols" json:"min_symbols,omitempty"`
	RequiredProfitableSymbols int     `mapstructure:"required_profitable_symbols" json:"required_profitable_symbols,omitempty"`
	MinProfitPerSymbol        float64 `mapstructure:"min_profit_per_symbol" json:"min_profit_per_symbol,omitempty"`
	SetupSymbol               string  `mapstructure:"setup_symbol" json:"setup_symbol,omitempty"`
	SetupQty                  int64   `mapstructure:"setup_qty" json:"setup_qty,omitempty"`
	SetupAvgPrice             float64 `mapstructure:"setup_avg_price" json:"setup_avg_price,omitempty"`
	MaxSteps                  int     `mapstructure:"max_steps" json:"max_steps,omitempty"`
}

// Scenario is a named episode: ledger setup, agent prompt and grade composition
type Scenario struct {
	Name     string
	Defaults Params
	prompt   func(Params) string
	grade    func(grading.Portfolio, Params) []grading.SubGrade
}

// Resolve applies overrides onto the defaults. Keys use the snake_case names
// of Params; numeric strings are accepted.
func (s Scenario) Resolve(overrides map[string]any) (Params, error) {
	p := s.Defaults
	if len(overrides) == 0 {
		return p, nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &p,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return Params{}, fmt.Errorf("failed to build params decoder: %w", err)
	}
	if err := dec.Decode(overrides); err != nil {
		return Params{}, fmt.Errorf("%w: %s: %v", ErrInvalidParams, s.Name, err)
	}
	return p, nil
}

// Prompt renders the task text shown to the agent
func (s Scenario) Prompt(p Params) string {
	return s.prompt(p)
}

// Setup resets the ledger and seeds any opening position
func (s Scenario) Setup(l *ledger.Ledger, p Params) {
	l.Reset(p.InitialCash)
	if p.SetupSymbol != "" && p.SetupQty > 0 {
		l.RecordFill("setup", p.SetupSymbol, ledger.Buy, p.SetupQty, p.SetupAvgPrice)
	}
}

// Grade scores a finished episode. steps is the number of agent actions taken.
func (s Scenario) Grade(portfolio grading.Portfolio, p Params, steps int) (grading.Grade, error) {
	subs := s.grade(portfolio, p)
	if p.MaxSteps > 0 {
		for i := range subs {
			subs[i].Weight *= 1 - StepBudgetWeight
		}
		subs = append(subs, grading.StepBudget(StepBudgetWeight, steps, p.MaxSteps))
	}
	return grading.FromSubgrades(subs...)
}

var registry = map[string]Scenario{}

func register(s Scenario) {
	if _, dup := registry[s.Name]; dup {
		panic("scenario registered twice: " + s.Name)
	}
	registry[s.Name] = s
}

// Lookup returns the named scenario
func Lookup(name string) (Scenario, error) {
	s, ok := registry[name]
	if !ok {
		return Scenario{}, fmt.Errorf("%w: %q", ErrUnknownScenario, name)
	}
	return s, nil
}

// Names lists registered scenarios, sorted
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
