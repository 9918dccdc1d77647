package dice

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// WeightedRange is an inclusive integer range chosen with probability
// proportional to Weight.
type WeightedRange struct {
	Min    int     `yaml:"min"`
	Max    int     `yaml:"max"`
	Weight float64 `yaml:"weight"`
}

func (r WeightedRange) String() string {
	return fmt.Sprintf("[%d..%d]x%g", r.Min, r.Max, r.Weight)
}

// Table is an ordered sequence of weighted ranges. Weights need not sum to 1.
type Table []WeightedRange

// DefaultTable is the stock delta distribution: a rare large loss, common
// small losses and gains, and an occasional large gain.
func DefaultTable() Table {
	return Table{
		{Min: -179, Max: -178, Weight: 0.001},
		{Min: -10, Max: -6, Weight: 0.05},
		{Min: -5, Max: -1, Weight: 0.25},
		{Min: 1, Max: 7, Weight: 0.599},
		{Min: 8, Max: 14, Weight: 0.1},
	}
}

// Validate checks that every range is well formed and the total weight is
// positive and finite.
//
// Postcondition: Returns nil, or an error naming every violation.
func (t Table) Validate() error {
	if len(t) == 0 {
		return errors.New("dice: table has no ranges")
	}
	var errs []string
	total := 0.0
	for i, r := range t {
		switch {
		case r.Min > r.Max:
			errs = append(errs, fmt.Sprintf("range %d: min %d exceeds max %d", i, r.Min, r.Max))
		case r.Max-r.Min < 0 || r.Max-r.Min == math.MaxInt:
			// The width Max-Min+1 must be a positive int.
			errs = append(errs, fmt.Sprintf("range %d: span %d..%d is too wide", i, r.Min, r.Max))
		}
		switch {
		case math.IsNaN(r.Weight) || math.IsInf(r.Weight, 0):
			errs = append(errs, fmt.Sprintf("range %d: weight %g is not finite", i, r.Weight))
		case r.Weight < 0:
			errs = append(errs, fmt.Sprintf("range %d: negative weight %g", i, r.Weight))
		default:
			total += r.Weight
		}
	}
	if total <= 0 {
		errs = append(errs, "total weight must be positive")
	}
	if math.IsInf(total, 1) {
		errs = append(errs, "total weight overflows")
	}
	if len(errs) > 0 {
		return fmt.Errorf("dice: invalid table: %s", strings.Join(errs, "; "))
	}
	return nil
}

// TotalWeight returns the sum of all weights.
func (t Table) TotalWeight() float64 {
	total := 0.0
	for _, r := range t {
		total += r.Weight
	}
	return total
}

// Pick draws a range and a value from it. It rolls a uniform real in
// [0, total) and walks the ranges in order, subtracting each weight until the
// remainder is <= 0. Zero-weight ranges are never chosen. If accumulated
// rounding leaves no range chosen, the last positive-weight range is used.
//
// Precondition: t.Validate() == nil; src must be non-nil.
// Postcondition: t[idx].Min <= value <= t[idx].Max.
func (t Table) Pick(src Source) (idx int, value int) {
	if len(t) == 0 {
		panic("dice: Pick called on an empty table")
	}
	roll := src.Float64() * t.TotalWeight()
	idx = -1
	for i, r := range t {
		if r.Weight <= 0 {
			continue
		}
		idx = i
		roll -= r.Weight
		if roll <= 0 {
			break
		}
	}
	if idx < 0 {
		idx = len(t) - 1
	}
	r := t[idx]
	return idx, r.Min + src.Intn(r.Max-r.Min+1)
}

// Draw returns a value drawn from the table.
//
// Precondition: t.Validate() == nil; src must be non-nil.
func (t Table) Draw(src Source) int {
	_, v := t.Pick(src)
	return v
}
