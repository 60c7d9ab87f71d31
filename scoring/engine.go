// Package scoring computes hot-deal scores and market comparisons for
// property listings. Every function here is pure: no I/O, no logging and no
// shared mutable state, so an Engine may be used from any number of
// goroutines at once.
package scoring

import (
	"fmt"
	"math"
	"sort"

	"realestate-leads/models"
)

// Canonical tuning. With a scale factor of 6 a listing 15% below its
// locality baseline scores exactly 90. The threshold applies to the rounded
// score, so any discount of about 14.92% or more (raw score >= 89.5) is hot.
const (
	DefaultScaleFactor       = 6.0
	DefaultHotDealThreshold  = 90
	DefaultGoodDealThreshold = 90
)

// Params holds the tunable constants of the scoring formula.
type Params struct {
	// ScaleFactor multiplies the discount percentage before clamping.
	ScaleFactor float64
	// HotDealThreshold is the minimum score flagged as a hot deal.
	HotDealThreshold int
	// GoodDealThreshold is the price-comparison percentage below which
	// a listing is a good deal against its cohort.
	GoodDealThreshold int
}

// DefaultParams returns the canonical tuning.
func DefaultParams() Params {
	return Params{
		ScaleFactor:       DefaultScaleFactor,
		HotDealThreshold:  DefaultHotDealThreshold,
		GoodDealThreshold: DefaultGoodDealThreshold,
	}
}

func (p Params) validate() error {
	if !positive(p.ScaleFactor) {
		return fmt.Errorf("scoring: scale factor must be positive, got %v", p.ScaleFactor)
	}
	if p.HotDealThreshold < 0 || p.HotDealThreshold > 100 {
		return fmt.Errorf("scoring: hot deal threshold must be in [0,100], got %d", p.HotDealThreshold)
	}
	if p.GoodDealThreshold <= 0 {
		return fmt.Errorf("scoring: good deal threshold must be positive, got %d", p.GoodDealThreshold)
	}
	return nil
}

// Engine scores listings against an injected baseline table.
type Engine struct {
	baselines *BaselineTable
	params    Params
}

// NewEngine validates params and binds them to baselines.
func NewEngine(baselines *BaselineTable, params Params) (*Engine, error) {
	if baselines == nil {
		return nil, fmt.Errorf("scoring: nil baseline table")
	}
	if err := params.validate(); err != nil {
		return nil, err
	}
	return &Engine{baselines: baselines, params: params}, nil
}

// Baselines returns the table the engine scores against.
func (e *Engine) Baselines() *BaselineTable { return e.baselines }

// Params returns the engine tuning.
func (e *Engine) Params() Params { return e.params }

// Score computes the hot-deal score of l:
//
//	discount = (expected - price/size) / expected
//	score    = clamp(round(discount * 100 * ScaleFactor), 0, 100)
//
// where expected is the baseline for l.City.
func (e *Engine) Score(l *models.Listing) (models.ScoreResult, error) {
	if err := validateListing(l, true); err != nil {
		return models.ScoreResult{}, err
	}

	pricePerArea := l.Price / l.Size
	expected := e.baselines.Lookup(l.City)
	discount := (expected - pricePerArea) / expected

	score := clamp(round(discount*100*e.params.ScaleFactor), 0, 100)
	return models.ScoreResult{
		IsHotDeal:    int(score) >= e.params.HotDealThreshold,
		HotDealScore: int(score),
	}, nil
}

// Analyze compares l against cohort. The cohort is echoed back unmodified;
// an empty cohort compares l against itself (100%, zero savings).
// Cohort members without a positive price do not contribute to the average.
func (e *Engine) Analyze(l *models.Listing, cohort []*models.Listing) (models.MarketAnalysis, error) {
	if err := validateListing(l, false); err != nil {
		return models.MarketAnalysis{}, err
	}

	average := l.Price
	var sum float64
	var n int
	for _, c := range cohort {
		if c == nil || !positive(c.Price) {
			continue
		}
		sum += c.Price
		n++
	}
	if n > 0 {
		average = sum / float64(n)
	}

	percent := int(round(l.Price / average * 100))
	return models.MarketAnalysis{
		AveragePriceInArea:     round(average),
		PriceComparisonPercent: percent,
		PotentialSavings:       round(average - l.Price),
		IsGoodDeal:             percent < e.params.GoodDealThreshold,
		ComparableListings:     cohort,
	}, nil
}

var defaultEngine = mustEngine(DefaultBaselineTable(), DefaultParams())

func mustEngine(b *BaselineTable, p Params) *Engine {
	e, err := NewEngine(b, p)
	if err != nil {
		panic(err)
	}
	return e
}

// ScoreListing scores l against table with the default tuning.
func ScoreListing(l *models.Listing, table *BaselineTable) (models.ScoreResult, error) {
	if table == nil {
		return defaultEngine.Score(l)
	}
	return (&Engine{baselines: table, params: DefaultParams()}).Score(l)
}

// AnalyzeAgainstCohort runs Analyze with the default tuning.
func AnalyzeAgainstCohort(l *models.Listing, cohort []*models.Listing) (models.MarketAnalysis, error) {
	return defaultEngine.Analyze(l, cohort)
}

// PricePerArea returns the rounded price per square meter, or 0 when the
// listing has no usable size.
func PricePerArea(l *models.Listing) float64 {
	if l == nil || !positive(l.Size) || !positive(l.Price) {
		return 0
	}
	return round(l.Price / l.Size)
}

// Rank orders listings best deal first: hot deals before the rest, then by
// score, then newest first. The sort is stable.
func Rank(listings []*models.Listing) {
	sort.SliceStable(listings, func(i, j int) bool {
		a, b := listings[i], listings[j]
		if a.IsHotDeal != b.IsHotDeal {
			return a.IsHotDeal
		}
		if a.HotDealScore != b.HotDealScore {
			return a.HotDealScore > b.HotDealScore
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
}

func validateListing(l *models.Listing, needSize bool) error {
	if l == nil {
		return &InvalidInputError{Field: "listing", Reason: "missing"}
	}
	if !positive(l.Price) {
		return &InvalidInputError{Field: "price", Value: l.Price, Reason: "must be positive"}
	}
	if needSize && !positive(l.Size) {
		return &InvalidInputError{Field: "areaSize", Value: l.Size, Reason: "must be positive"}
	}
	return nil
}

// round breaks ties toward +Inf.
func round(x float64) float64 {
	return math.Floor(x + 0.5)
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
