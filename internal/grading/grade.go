package grading

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrInvalidWeights is returned when weights and subscores disagree or the
// weights do not sum to one.
var ErrInvalidWeights = errors.New("invalid grade weights")

const weightTolerance = 1e-6

// SubGrade is one scored component of a grade
type SubGrade struct {
	Name       string         `json:"name"`
	Score      float64        `json:"score"`
	Weight     float64        `json:"weight"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Grade is a weighted combination of named subscores
type Grade struct {
	Subscores map[string]float64        `json:"subscores"`
	Weights   map[string]float64        `json:"weights"`
	Metadata  map[string]map[string]any `json:"metadata,omitempty"`
	// Names keeps the subgrade order
	Names []string `json:"names"`
}

// FromSubgrades combines subgrades. A repeated name is suffixed _2, _3 and so
// on in first-seen order.
func FromSubgrades(subs ...SubGrade) (Grade, error) {
	g := Grade{
		Subscores: make(map[string]float64, len(subs)),
		Weights:   make(map[string]float64, len(subs)),
		Metadata:  make(map[string]map[string]any),
	}
	counts := make(map[string]int)
	for _, sg := range subs {
		name := uniqueName(sg.Name, counts, g.Subscores)
		g.Names = append(g.Names, name)
		g.Subscores[name] = sg.Score
		g.Weights[name] = sg.Weight
		if len(sg.Metadata) > 0 || len(sg.Parameters) > 0 {
			md := make(map[string]any, len(sg.Metadata)+1)
			for k, v := range sg.Metadata {
				md[k] = v
			}
			if len(sg.Parameters) > 0 {
				md["parameters"] = sg.Parameters
			}
			g.Metadata[name] = md
		}
	}
	if err := g.Validate(); err != nil {
		return Grade{}, err
	}
	return g, nil
}

func uniqueName(name string, counts map[string]int, taken map[string]float64) string {
	counts[name]++
	if counts[name] == 1 {
		if _, dup := taken[name]; !dup {
			return name
		}
	}
	for n := counts[name]; ; n++ {
		candidate := fmt.Sprintf("%s_%d", name, n)
		if _, dup := taken[candidate]; !dup {
			counts[name] = n
			return candidate
		}
	}
}

// Validate checks that every subscore has a weight and the weights sum to one
func (g Grade) Validate() error {
	if len(g.Subscores) != len(g.Weights) {
		return fmt.Errorf("%w: %d subscores, %d weights", ErrInvalidWeights, len(g.Subscores), len(g.Weights))
	}
	var sum float64
	for name := range g.Subscores {
		w, ok := g.Weights[name]
		if !ok {
			return fmt.Errorf("%w: no weight for %s", ErrInvalidWeights, name)
		}
		sum += w
	}
	if math.Abs(sum-1) > weightTolerance {
		return fmt.Errorf("%w: weights sum to %.6f", ErrInvalidWeights, sum)
	}
	return nil
}

// Score is the weighted sum of subscores clamped to [0,1]
func (g Grade) Score() float64 {
	names := make([]string, 0, len(g.Subscores))
	for name := range g.Subscores {
		names = append(names, name)
	}
	// fixed order keeps the float sum reproducible
	sort.Strings(names)

	var s float64
	for _, name := range names {
		s += g.Subscores[name] * g.Weights[name]
	}
	return clamp01(s)
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// violationScore is 1 at or under threshold, falling linearly to 0 when value
// reaches twice the threshold. A non-positive threshold tolerates nothing.
func violationScore(value, threshold float64) float64 {
	if threshold <= 0 {
		if value <= 0 {
			return 1
		}
		return 0
	}
	if value <= threshold {
		return 1
	}
	return clamp01(1 - (value-threshold)/threshold)
}

// achievementScore is value/required clamped to [0,1]
func achievementScore(value, required float64) float64 {
	if required <= 0 {
		return 1
	}
	if math.IsInf(value, 1) {
		return 1
	}
	return clamp01(value / required)
}
