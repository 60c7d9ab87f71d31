// Package fixture serves raw listings from a JSON file. It stands in for live
// feeds in demos and tests.
package fixture

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"realestate-leads/models"
)

// Source reads a JSON array of models.RawListing on every fetch.
type Source struct {
	name string
	path string
	now  func() time.Time
}

// New creates a fixture Source named name reading path.
func New(name, path string) *Source {
	if name == "" {
		name = "fixture"
	}
	return &Source{name: name, path: path, now: time.Now}
}

func (s *Source) Name() string { return s.name }

// FetchCandidateListings returns the file's listings that fall within
// filter.Cities, if any are given. Listings without a source are attributed
// to this Source and missing scrape times are set to now.
func (s *Source) FetchCandidateListings(ctx context.Context, filter models.SearchFilter) ([]*models.RawListing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("fixture: read %s: %w", s.path, err)
	}

	var raw []*models.RawListing
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("fixture: parse %s: %w", s.path, err)
	}

	cityFilter := models.SearchFilter{Cities: filter.Cities}
	now := s.now()
	out := raw[:0]
	for _, r := range raw {
		if r == nil {
			continue
		}
		if len(filter.Cities) > 0 && !cityFilter.Matches(&models.Listing{City: r.City}) {
			continue
		}
		if r.Source == "" {
			r.Source = s.name
		}
		if r.ScrapedAt.IsZero() {
			r.ScrapedAt = now
		}
		out = append(out, r)
	}
	return out, nil
}
