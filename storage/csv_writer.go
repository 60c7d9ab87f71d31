package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"realestate-leads/models"
)

var rawHeader = []string{
	"source", "source_id", "url", "address", "city", "neighborhood",
	"raw_price", "raw_rooms", "raw_size", "property_type", "condition",
	"contact_phone", "scraped_at",
}

// CSVWriter writes raw (uncleaned) listings to a CSV file as an audit trail
// of what each source returned. It is safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
	limit  int
}

// NewCSVWriter creates (or truncates) the CSV file at the given path and
// writes the header row. Intermediate directories are created automatically.
// A positive limit caps the number of rows written per WriteRaw call.
func NewCSVWriter(path string, limit int) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(rawHeader); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	w.Flush()

	return &CSVWriter{file: f, writer: w, limit: limit}, nil
}

func (c *CSVWriter) WriteRaw(listings []*models.RawListing) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.limit > 0 && len(listings) > c.limit {
		listings = listings[:c.limit]
	}

	for _, l := range listings {
		row := []string{
			l.Source,
			l.SourceID,
			l.URL,
			l.Address,
			l.City,
			l.Neighborhood,
			l.RawPrice,
			l.RawRooms,
			l.RawSize,
			l.PropertyType,
			l.Condition,
			l.ContactPhone,
			l.ScrapedAt.Format(time.RFC3339),
		}
		if err := c.writer.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.writer.Flush()
	return c.file.Close()
}
