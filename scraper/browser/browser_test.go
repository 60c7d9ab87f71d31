package browser

import (
	"strings"
	"testing"
	"time"

	"realestate-leads/models"
	"realestate-leads/utils"
)

func TestExtractScriptEmbedsSelectors(t *testing.T) {
	script, err := extractScript(DefaultSelectors(".property-card"), 25)
	if err != nil {
		t.Fatalf("extractScript: %v", err)
	}
	for _, want := range []string{`"card":".property-card"`, `"idAttr":"data-id"`, ", 25)"} {
		if !strings.Contains(script, want) {
			t.Errorf("script missing %q", want)
		}
	}

	if _, err := extractScript(Selectors{}, 10); err == nil {
		t.Error("expected error for empty card selector")
	}
}

func TestToRawDedupsAcrossPages(t *testing.T) {
	s := New(Options{Name: "winwin", Selectors: DefaultSelectors(".property-item")}, utils.Discard())
	now := time.Now()
	seen := utils.NewKeySet()

	first := s.toRaw([]card{
		{ID: "1", URL: "https://w.test/1", Price: "₪1,000,000", City: "חיפה"},
		{URL: "https://w.test/2", City: "חיפה"},
		{},
	}, models.SearchFilter{}, seen, now)
	if len(first) != 2 {
		t.Fatalf("first page: got %d, want 2", len(first))
	}
	if first[0].Source != "winwin" || first[0].SourceID != "1" || first[0].RawPrice != "₪1,000,000" {
		t.Errorf("first card: %+v", first[0])
	}

	second := s.toRaw([]card{{ID: "1"}, {ID: "3", City: "חיפה"}}, models.SearchFilter{}, seen, now)
	if len(second) != 1 || second[0].SourceID != "3" {
		t.Errorf("second page: got %+v", second)
	}
}

func TestToRawFiltersCities(t *testing.T) {
	s := New(Options{Name: "madlan", Selectors: DefaultSelectors(".property-card")}, utils.Discard())
	got := s.toRaw([]card{
		{ID: "1", City: " תל אביב "},
		{ID: "2", City: "חיפה"},
	}, models.SearchFilter{Cities: []string{"תל אביב"}}, utils.NewKeySet(), time.Now())

	if len(got) != 1 || got[0].SourceID != "1" {
		t.Errorf("filtered: got %+v", got)
	}
}

func TestToRawFreshRunKeepsFilteredOutCards(t *testing.T) {
	s := New(Options{Name: "winwin", Selectors: DefaultSelectors(".property-item")}, utils.Discard())
	cards := []card{{ID: "h1", City: "חיפה"}, {ID: "h2", City: "חיפה"}}

	seen := utils.NewKeySet()
	if got := s.toRaw(cards, models.SearchFilter{Cities: []string{"תל אביב"}}, seen, time.Now()); len(got) != 0 {
		t.Errorf("Tel Aviv run: got %d, want 0", len(got))
	}
	if seen.Size() != 0 {
		t.Errorf("rejected cards were marked seen: %d", seen.Size())
	}

	got := s.toRaw(cards, models.SearchFilter{Cities: []string{"חיפה"}}, seen, time.Now())
	if len(got) != 2 {
		t.Errorf("Haifa run: got %d, want 2", len(got))
	}

	// a later run starts from an empty set
	if again := s.toRaw(cards, models.SearchFilter{}, utils.NewKeySet(), time.Now()); len(again) != 2 {
		t.Errorf("next run: got %d, want 2", len(again))
	}
}

func TestFindChromeBinaryHonoursEnv(t *testing.T) {
	t.Setenv("CHROME_BIN", "/opt/custom/chrome")
	if got := findChromeBinary(); got != "/opt/custom/chrome" {
		t.Errorf("findChromeBinary: got %q", got)
	}
}
