package scoring

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// DefaultBaselinePerSqm is used for localities missing from the table.
const DefaultBaselinePerSqm = 25000.0

// BaselineTable maps a locality to its expected price per square meter.
// It is immutable after construction and safe to share between goroutines.
type BaselineTable struct {
	perSqm   map[string]float64
	fallback float64
}

// NewBaselineTable copies perSqm into a new table. Every entry and the
// fallback must be positive so that Lookup never returns zero.
func NewBaselineTable(perSqm map[string]float64, fallback float64) (*BaselineTable, error) {
	if !positive(fallback) {
		return nil, fmt.Errorf("scoring: default baseline must be positive, got %v", fallback)
	}
	t := &BaselineTable{
		perSqm:   make(map[string]float64, len(perSqm)),
		fallback: fallback,
	}
	for locality, v := range perSqm {
		key := normaliseLocality(locality)
		if key == "" {
			return nil, fmt.Errorf("scoring: empty locality in baseline table")
		}
		if !positive(v) {
			return nil, fmt.Errorf("scoring: baseline for %q must be positive, got %v", locality, v)
		}
		t.perSqm[key] = v
	}
	return t, nil
}

// DefaultBaselineTable returns the built-in city baselines (Hebrew names
// as they appear in the Israeli listing feeds, plus English aliases).
func DefaultBaselineTable() *BaselineTable {
	t, err := NewBaselineTable(map[string]float64{
		"תל אביב":    35000,
		"רמת גן":     32000,
		"חיפה":       25000,
		"ירושלים":    28000,
		"באר שבע":    18000,
		"tel aviv":   35000,
		"ramat gan":  32000,
		"haifa":      25000,
		"jerusalem":  28000,
		"beer sheva": 18000,
	}, DefaultBaselinePerSqm)
	if err != nil {
		panic(err)
	}
	return t
}

// Lookup resolves the expected price per square meter for locality,
// falling back to the table default.
func (t *BaselineTable) Lookup(locality string) float64 {
	if v, ok := t.perSqm[normaliseLocality(locality)]; ok {
		return v
	}
	return t.fallback
}

// Has reports whether locality has its own entry.
func (t *BaselineTable) Has(locality string) bool {
	_, ok := t.perSqm[normaliseLocality(locality)]
	return ok
}

// Default returns the fallback baseline.
func (t *BaselineTable) Default() float64 { return t.fallback }

// Localities lists the table keys in sorted order.
func (t *BaselineTable) Localities() []string {
	out := make([]string, 0, len(t.perSqm))
	for k := range t.perSqm {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func normaliseLocality(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
