package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"realestate-leads/models"
	"realestate-leads/utils"
)

const haifaFeed = `{"feed":[
	{"id": 101, "url": "https://example.test/101", "address": "הרצל 10", "neighborhood": "הדר",
	 "price": 1200000, "rooms": 3.5, "size": "80 מ״ר", "parking": true, "elevator": "כן"},
	{"id": "x-2", "street": "מוריה 5", "price_text": "₪2,100,000", "room_text": "4 חדרים", "size_text": "110",
	 "eviction_building": null}
]}`

func TestFetchCandidateListingsParsesFeed(t *testing.T) {
	var gotCity, gotLimit string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCity = r.URL.Query().Get("city")
		gotLimit = r.URL.Query().Get("limit")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(haifaFeed))
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL, Cities: []string{"חיפה"}, PageSize: 25}, utils.Discard())
	listings, err := c.FetchCandidateListings(context.Background(), models.SearchFilter{})
	if err != nil {
		t.Fatalf("FetchCandidateListings: %v", err)
	}

	if gotCity != "חיפה" || gotLimit != "25" {
		t.Errorf("query: city=%q limit=%q", gotCity, gotLimit)
	}
	if len(listings) != 2 {
		t.Fatalf("listings: got %d, want 2", len(listings))
	}

	first := listings[0]
	if first.Source != "yad2" || first.SourceID != "101" || first.City != "חיפה" {
		t.Errorf("first identity: %+v", first)
	}
	if first.RawPrice != "1200000" || first.RawRooms != "3.5" || first.RawSize != "80 מ״ר" {
		t.Errorf("first raw values: price=%q rooms=%q size=%q", first.RawPrice, first.RawRooms, first.RawSize)
	}
	if first.Parking != "true" || first.Elevator != "כן" {
		t.Errorf("first amenities: parking=%q elevator=%q", first.Parking, first.Elevator)
	}

	second := listings[1]
	if second.SourceID != "x-2" || second.Address != "מוריה 5" || second.RawPrice != "₪2,100,000" || second.RawRooms != "4 חדרים" {
		t.Errorf("second: %+v", second)
	}
	if second.Eviction != "" {
		t.Errorf("null eviction should be empty, got %q", second.Eviction)
	}
}

func TestFetchCandidateListingsFilterCitiesOverride(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`{"feed":[]}`))
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL, Cities: []string{"a", "b", "c"}}, utils.Discard())
	if _, err := c.FetchCandidateListings(context.Background(), models.SearchFilter{Cities: []string{"only"}}); err != nil {
		t.Fatalf("FetchCandidateListings: %v", err)
	}
	if calls != 1 {
		t.Errorf("requests: got %d, want 1", calls)
	}
}

func TestFetchCandidateListingsRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(haifaFeed))
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL, Cities: []string{"חיפה"}, MaxRetries: 3, RetryDelay: time.Millisecond}, utils.Discard())
	listings, err := c.FetchCandidateListings(context.Background(), models.SearchFilter{})
	if err != nil {
		t.Fatalf("FetchCandidateListings: %v", err)
	}
	if calls != 2 || len(listings) != 2 {
		t.Errorf("calls=%d listings=%d, want 2 and 2", calls, len(listings))
	}
}

func TestFetchCandidateListingsClientErrorIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL, Cities: []string{"a"}, MaxRetries: 5, RetryDelay: time.Millisecond}, utils.Discard())
	_, err := c.FetchCandidateListings(context.Background(), models.SearchFilter{})
	if err == nil {
		t.Fatal("expected error when every city fails")
	}
	if calls != 1 {
		t.Errorf("403 should not be retried, got %d calls", calls)
	}
}

func TestFetchCandidateListingsPartialFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("city") == "bad" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(haifaFeed))
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL, Cities: []string{"bad", "good"}}, utils.Discard())
	listings, err := c.FetchCandidateListings(context.Background(), models.SearchFilter{})
	if err != nil {
		t.Fatalf("one failing city should not fail the source: %v", err)
	}
	if len(listings) != 2 || listings[0].City != "good" {
		t.Errorf("listings: got %d", len(listings))
	}
}
