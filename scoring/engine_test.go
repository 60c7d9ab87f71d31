package scoring

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"realestate-leads/models"
)

func testTable(t *testing.T) *BaselineTable {
	t.Helper()
	table, err := NewBaselineTable(map[string]float64{"X": 35000, "Y": 20000}, DefaultBaselinePerSqm)
	if err != nil {
		t.Fatalf("NewBaselineTable: %v", err)
	}
	return table
}

func testEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(testTable(t), DefaultParams())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func TestScoreDeepDiscountClampsTo100(t *testing.T) {
	e := testEngine(t)
	got, err := e.Score(&models.Listing{Price: 850000, Size: 65, City: "X"})
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if got.HotDealScore != 100 {
		t.Errorf("HotDealScore: got %d, want 100", got.HotDealScore)
	}
	if !got.IsHotDeal {
		t.Error("expected IsHotDeal for a 62% discount")
	}
}

func TestScoreAtBaselineIsNotHot(t *testing.T) {
	e := testEngine(t)
	got, err := e.Score(&models.Listing{Price: 35000 * 80, Size: 80, City: "X"})
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if got.HotDealScore != 0 {
		t.Errorf("HotDealScore: got %d, want 0", got.HotDealScore)
	}
	if got.IsHotDeal {
		t.Error("listing priced at baseline must not be a hot deal")
	}
}

func TestScoreThresholdMatchesFifteenPercentRule(t *testing.T) {
	e := testEngine(t)

	tests := []struct {
		name      string
		perSqm    float64
		wantHot   bool
		wantScore int
	}{
		{"15% below", 35000 * 0.85, true, 90},
		{"20% below", 35000 * 0.80, true, 100},
		{"14.92% below rounds up to 90", 35000 * 0.8508, true, 90},
		{"14.9% below", 35000 * 0.851, false, 89},
		{"14% below", 35000 * 0.86, false, 84},
		{"10% below", 35000 * 0.90, false, 60},
		{"above baseline", 35000 * 1.2, false, 0},
	}

	for _, tt := range tests {
		got, err := e.Score(&models.Listing{Price: tt.perSqm * 100, Size: 100, City: "X"})
		if err != nil {
			t.Fatalf("%s: Score: %v", tt.name, err)
		}
		if got.HotDealScore != tt.wantScore {
			t.Errorf("%s: score got %d, want %d", tt.name, got.HotDealScore, tt.wantScore)
		}
		if got.IsHotDeal != tt.wantHot {
			t.Errorf("%s: IsHotDeal got %v, want %v", tt.name, got.IsHotDeal, tt.wantHot)
		}
	}
}

func TestScoreUnknownLocalityUsesDefault(t *testing.T) {
	e := testEngine(t)
	// 25000 default, 20000/m² is a 20% discount.
	got, err := e.Score(&models.Listing{Price: 2000000, Size: 100, City: "nowhere"})
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if got.HotDealScore != 100 || !got.IsHotDeal {
		t.Errorf("got %+v, want score 100 hot", got)
	}
}

func TestScoreRangeAndMonotonicity(t *testing.T) {
	e := testEngine(t)
	prev := -1
	for price := 5000000.0; price >= 10000; price -= 17500 {
		got, err := e.Score(&models.Listing{Price: price, Size: 90, City: "Y"})
		if err != nil {
			t.Fatalf("Score(%v): %v", price, err)
		}
		if got.HotDealScore < 0 || got.HotDealScore > 100 {
			t.Fatalf("score %d out of range at price %v", got.HotDealScore, price)
		}
		if got.HotDealScore < prev {
			t.Fatalf("score decreased from %d to %d when price dropped to %v", prev, got.HotDealScore, price)
		}
		prev = got.HotDealScore
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	e := testEngine(t)
	l := &models.Listing{Price: 1234567, Size: 71, City: "X"}
	first, _ := e.Score(l)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, _ := e.Score(l)
			if got != first {
				t.Errorf("got %+v, want %+v", got, first)
			}
		}()
	}
	wg.Wait()
}

func TestScoreRejectsInvalidInput(t *testing.T) {
	e := testEngine(t)

	tests := []struct {
		name  string
		l     *models.Listing
		field string
	}{
		{"nil listing", nil, "listing"},
		{"zero price", &models.Listing{Price: 0, Size: 50, City: "X"}, "price"},
		{"negative price", &models.Listing{Price: -1, Size: 50, City: "X"}, "price"},
		{"zero size", &models.Listing{Price: 100000, Size: 0, City: "X"}, "areaSize"},
		{"NaN price", &models.Listing{Price: math.NaN(), Size: 50, City: "X"}, "price"},
		{"Inf size", &models.Listing{Price: 100000, Size: math.Inf(1), City: "X"}, "areaSize"},
	}

	for _, tt := range tests {
		_, err := e.Score(tt.l)
		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("%s: expected ErrInvalidInput, got %v", tt.name, err)
			continue
		}
		var inv *InvalidInputError
		if !errors.As(err, &inv) {
			t.Errorf("%s: expected *InvalidInputError, got %T", tt.name, err)
			continue
		}
		if inv.Field != tt.field {
			t.Errorf("%s: field got %q, want %q", tt.name, inv.Field, tt.field)
		}
	}
}

func TestScoreListingDefaultTuning(t *testing.T) {
	_, err := ScoreListing(&models.Listing{Price: 0, Size: 50, City: "X"}, testTable(t))
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}

	got, err := ScoreListing(&models.Listing{Price: 850000, Size: 65, City: "תל אביב"}, nil)
	if err != nil {
		t.Fatalf("ScoreListing: %v", err)
	}
	if !got.IsHotDeal {
		t.Errorf("expected hot deal against built-in Tel Aviv baseline, got %+v", got)
	}
}

func TestAnalyzeSymmetricCohort(t *testing.T) {
	got, err := AnalyzeAgainstCohort(
		&models.Listing{Price: 2000000},
		[]*models.Listing{{Price: 1800000}, {Price: 2200000}},
	)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if got.AveragePriceInArea != 2000000 {
		t.Errorf("AveragePriceInArea: got %.0f, want 2000000", got.AveragePriceInArea)
	}
	if got.PriceComparisonPercent != 100 {
		t.Errorf("PriceComparisonPercent: got %d, want 100", got.PriceComparisonPercent)
	}
	if got.IsGoodDeal {
		t.Error("IsGoodDeal should be false at 100%")
	}
	if got.PotentialSavings != 0 {
		t.Errorf("PotentialSavings: got %.0f, want 0", got.PotentialSavings)
	}
	if len(got.ComparableListings) != 2 {
		t.Errorf("ComparableListings len: got %d, want 2", len(got.ComparableListings))
	}
}

func TestAnalyzeEmptyCohort(t *testing.T) {
	got, err := AnalyzeAgainstCohort(&models.Listing{Price: 1500000}, nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if got.PriceComparisonPercent != 100 {
		t.Errorf("PriceComparisonPercent: got %d, want 100", got.PriceComparisonPercent)
	}
	if got.PotentialSavings != 0 {
		t.Errorf("PotentialSavings: got %.0f, want 0", got.PotentialSavings)
	}
	if got.AveragePriceInArea != 1500000 {
		t.Errorf("AveragePriceInArea: got %.0f, want 1500000", got.AveragePriceInArea)
	}
}

func TestAnalyzeGoodDealAndNegativeSavings(t *testing.T) {
	cohort := []*models.Listing{{Price: 2000000}, {Price: 2000000}}

	cheap, err := AnalyzeAgainstCohort(&models.Listing{Price: 1700000}, cohort)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if cheap.PriceComparisonPercent != 85 || !cheap.IsGoodDeal {
		t.Errorf("cheap: got %d%% good=%v, want 85%% good=true", cheap.PriceComparisonPercent, cheap.IsGoodDeal)
	}
	if cheap.PotentialSavings != 300000 {
		t.Errorf("cheap savings: got %.0f, want 300000", cheap.PotentialSavings)
	}

	pricey, err := AnalyzeAgainstCohort(&models.Listing{Price: 2300000}, cohort)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if pricey.PotentialSavings != -300000 {
		t.Errorf("pricey savings: got %.0f, want -300000", pricey.PotentialSavings)
	}
	if pricey.IsGoodDeal {
		t.Error("listing above average must not be a good deal")
	}
}

func TestAnalyzeRejectsMissingPrice(t *testing.T) {
	_, err := AnalyzeAgainstCohort(&models.Listing{}, []*models.Listing{{Price: 1}})
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestNewEngineValidatesParams(t *testing.T) {
	table := testTable(t)
	if _, err := NewEngine(nil, DefaultParams()); err == nil {
		t.Error("expected error for nil table")
	}
	if _, err := NewEngine(table, Params{ScaleFactor: 0, HotDealThreshold: 90, GoodDealThreshold: 90}); err == nil {
		t.Error("expected error for zero scale factor")
	}
	if _, err := NewEngine(table, Params{ScaleFactor: 6, HotDealThreshold: 101, GoodDealThreshold: 90}); err == nil {
		t.Error("expected error for threshold above 100")
	}
}

func TestRankOrdersHotDealsFirst(t *testing.T) {
	now := time.Now()
	ls := []*models.Listing{
		{ID: "cold", HotDealScore: 70, CreatedAt: now},
		{ID: "hot-old", IsHotDeal: true, HotDealScore: 95, CreatedAt: now.Add(-time.Hour)},
		{ID: "hot-new", IsHotDeal: true, HotDealScore: 95, CreatedAt: now},
		{ID: "hotter", IsHotDeal: true, HotDealScore: 100, CreatedAt: now.Add(-2 * time.Hour)},
	}
	Rank(ls)

	want := []string{"hotter", "hot-new", "hot-old", "cold"}
	for i, id := range want {
		if ls[i].ID != id {
			t.Errorf("rank[%d]: got %s, want %s", i, ls[i].ID, id)
		}
	}
}

func TestPricePerArea(t *testing.T) {
	if got := PricePerArea(&models.Listing{Price: 850000, Size: 65}); got != 13077 {
		t.Errorf("PricePerArea: got %.0f, want 13077", got)
	}
	if got := PricePerArea(&models.Listing{Price: 850000}); got != 0 {
		t.Errorf("PricePerArea without size: got %.0f, want 0", got)
	}
}
