package storage

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"realestate-leads/models"
)

func TestCSVWriterWritesHeaderAndCapsRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "raw.csv")
	w, err := NewCSVWriter(path, 2)
	if err != nil {
		t.Fatalf("NewCSVWriter: %v", err)
	}

	raw := []*models.RawListing{
		{Source: "yad2", SourceID: "1", City: "חיפה", RawPrice: "₪1,000,000", ScrapedAt: time.Unix(0, 0).UTC()},
		{Source: "yad2", SourceID: "2"},
		{Source: "yad2", SourceID: "3"},
	}
	if err := w.WriteRaw(raw); err != nil {
		t.Fatalf("WriteRaw: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}

	if len(rows) != 3 {
		t.Fatalf("rows: got %d, want header + 2", len(rows))
	}
	if rows[0][0] != "source" || len(rows[0]) != len(rawHeader) {
		t.Errorf("header: got %v", rows[0])
	}
	if rows[1][4] != "חיפה" || rows[1][6] != "₪1,000,000" || rows[1][12] != "1970-01-01T00:00:00Z" {
		t.Errorf("first row: got %v", rows[1])
	}
}
