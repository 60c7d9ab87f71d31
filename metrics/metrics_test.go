package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandlerExposesCounters(t *testing.T) {
	r := NewRegistry()
	r.Fetched.WithLabelValues("yad2").Add(3)
	r.Stored.Inc()
	r.HTTPRequests.WithLabelValues("GET", "/api/properties", "200").Inc()

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	for _, want := range []string{
		`leads_listings_fetched_total{source="yad2"} 3`,
		`leads_listings_stored_total 1`,
		`leads_http_requests_total{method="GET",route="/api/properties",status="200"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
