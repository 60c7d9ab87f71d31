package services

import (
	"testing"
	"time"

	"realestate-leads/models"
	"realestate-leads/utils"
)

func newTestLogger() *utils.Logger { return utils.Discard() }

func TestCleanerParsePrice(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
	}{
		{"₪1,850,000", 1850000},
		{"2,400,000 ש״ח", 2400000},
		{"מחיר: 950000", 950000},
		{"", 0},
		{"לא צוין", 0},
	}

	for _, tt := range tests {
		got := parsePrice(tt.raw)
		if got != tt.want {
			t.Errorf("parsePrice(%q) = %.2f; want %.2f", tt.raw, got, tt.want)
		}
	}
}

func TestCleanerParseRoomsAndSize(t *testing.T) {
	rooms := []struct {
		raw  string
		want float64
	}{
		{"3", 3},
		{"4.5 חדרים", 4.5},
		{"", 0},
	}
	for _, tt := range rooms {
		if got := parseRooms(tt.raw); got != tt.want {
			t.Errorf("parseRooms(%q) = %.2f; want %.2f", tt.raw, got, tt.want)
		}
	}

	sizes := []struct {
		raw  string
		want float64
	}{
		{"85 מ״ר", 85},
		{"120.5 sqm", 120},
		{"n/a", 0},
	}
	for _, tt := range sizes {
		if got := parseSize(tt.raw); got != tt.want {
			t.Errorf("parseSize(%q) = %.2f; want %.2f", tt.raw, got, tt.want)
		}
	}
}

func TestCleanerClassifiers(t *testing.T) {
	types := map[string]string{
		"פנטהאוז":          models.PropertyTypePenthouse,
		"Garden apartment": models.PropertyTypeGardenApartment,
		"בית פרטי":         models.PropertyTypeHouse,
		"duplex":           models.PropertyTypeDuplex,
		"":                 models.PropertyTypeApartment,
	}
	for raw, want := range types {
		if got := determinePropertyType(raw); got != want {
			t.Errorf("determinePropertyType(%q) = %q; want %q", raw, got, want)
		}
	}

	conditions := map[string]string{
		"חדש מקבלן":   "new",
		"Excellent":   "excellent",
		"דרוש שיפוץ":  "needs_renovation",
		"fair":        "fair",
		"":            "good",
	}
	for raw, want := range conditions {
		if got := determineCondition(raw); got != want {
			t.Errorf("determineCondition(%q) = %q; want %q", raw, got, want)
		}
	}

	if !parseBool("כן") || !parseBool("Yes") || !parseBool("true") || parseBool("לא") || parseBool("") {
		t.Error("parseBool misclassified a value")
	}
}

func TestCleanerDropsIncomplete(t *testing.T) {
	c := NewCleaner(newTestLogger())
	raw := []*models.RawListing{
		{Source: "yad2", SourceID: "1", Address: "הרצל 10", City: "תל אביב", RawPrice: "", RawRooms: "3", RawSize: "70"},
		{Source: "yad2", SourceID: "2", Address: "", City: "תל אביב", RawPrice: "1,000,000", RawRooms: "3", RawSize: "70"},
		{Source: "yad2", SourceID: "3", Address: "הרצל 12", City: "תל אביב", RawPrice: "1,000,000", RawRooms: "3", RawSize: "70", ScrapedAt: time.Now()},
	}

	cleaned := c.Clean(raw)
	if len(cleaned) != 1 {
		t.Fatalf("expected 1 listing after dropping incomplete rows, got %d", len(cleaned))
	}
	l := cleaned[0]
	if l.SourceID != "3" || l.Price != 1000000 || l.Rooms != 3 || l.Size != 70 {
		t.Errorf("unexpected cleaned listing: %+v", l)
	}
	if l.Status != models.StatusActive || l.ID == "" {
		t.Errorf("cleaned listing missing status or id: %+v", l)
	}
}

func TestCleanerDeduplicatesSourceID(t *testing.T) {
	c := NewCleaner(newTestLogger())
	raw := []*models.RawListing{
		{Source: "Yad2", SourceID: "77", Address: "A", RawPrice: "1", RawRooms: "1", RawSize: "10"},
		{Source: "yad2", SourceID: "77", Address: "B", RawPrice: "2", RawRooms: "2", RawSize: "20"},
		{Source: "madlan", SourceID: "77", Address: "C", RawPrice: "3", RawRooms: "3", RawSize: "30"},
	}

	cleaned := c.Clean(raw)
	if len(cleaned) != 2 {
		t.Errorf("expected 2 listings after deduplication, got %d", len(cleaned))
	}
}

func TestCleanerAppendsNeighborhood(t *testing.T) {
	c := NewCleaner(newTestLogger())
	cleaned := c.Clean([]*models.RawListing{{
		Source: "yad2", SourceID: "9", Address: "  ביאליק   5 ", Neighborhood: "מרכז העיר",
		RawPrice: "1,500,000", RawRooms: "3.5", RawSize: "80", Parking: "כן",
	}})
	if len(cleaned) != 1 {
		t.Fatalf("expected 1 listing, got %d", len(cleaned))
	}
	if got := cleaned[0].Address; got != "ביאליק 5, מרכז העיר" {
		t.Errorf("Address: got %q", got)
	}
	if !cleaned[0].Parking {
		t.Error("Parking should be true")
	}
}
