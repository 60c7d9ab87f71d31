package scraper

import (
	"context"
	"errors"
	"testing"

	"realestate-leads/models"
	"realestate-leads/utils"
)

type stubSource struct {
	name     string
	listings []*models.RawListing
	err      error
	panics   bool
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) FetchCandidateListings(context.Context, models.SearchFilter) ([]*models.RawListing, error) {
	if s.panics {
		panic("boom")
	}
	return s.listings, s.err
}

func TestFetchAllIsolatesFailures(t *testing.T) {
	ok := &stubSource{name: "ok", listings: []*models.RawListing{{SourceID: "1"}, {SourceID: "2"}}}
	failing := &stubSource{name: "failing", err: errors.New("upstream down")}
	panicking := &stubSource{name: "panicking", panics: true}

	results := FetchAll(context.Background(), utils.NewWorkerPool(3, 0), utils.Discard(), models.SearchFilter{}, failing, ok, panicking)

	if len(results) != 3 {
		t.Fatalf("results: got %d, want 3", len(results))
	}
	if results[0].Source != "failing" || results[0].Err == nil {
		t.Errorf("failing source: %+v", results[0])
	}
	if results[1].Source != "ok" || results[1].Err != nil || len(results[1].Listings) != 2 {
		t.Errorf("ok source: %+v", results[1])
	}
	if results[2].Err == nil {
		t.Error("panicking source should surface an error")
	}
	if got := Flatten(results); len(got) != 2 {
		t.Errorf("Flatten: got %d, want 2", len(got))
	}
}

func TestFetchAllCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := FetchAll(ctx, utils.NewWorkerPool(1, 0), utils.Discard(), models.SearchFilter{}, &stubSource{name: "a"})
	if !errors.Is(results[0].Err, context.Canceled) {
		t.Errorf("Err: got %v, want context.Canceled", results[0].Err)
	}
}
