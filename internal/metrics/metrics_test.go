package metrics

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNormalizeRoute(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		// Known exact routes.
		{"/healthz", "/healthz"},
		{"/readyz", "/readyz"},
		{"/metrics", "/metrics"},

		// Mission lookups collapse to one label.
		{"/tle/CRS-20", "/tle/{mission_id}"},
		{"/tle/F3364BF", "/tle/{mission_id}"},
		{"/tle/9D1B7E0", "/tle/{mission_id}"},

		// Unknown/bot paths collapse to "other".
		{"/", "other"},
		{"/tle/", "other"},
		{"/tle/a/b", "other"},
		{"/wp-admin", "other"},
		{"/robots.txt", "other"},
		{"/.env", "other"},
		{"/favicon.ico", "other"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got := normalizeRoute(tt.path)
			if got != tt.want {
				t.Errorf("normalizeRoute(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

// TestMetricsCardinality verifies that 100 unique mission IDs produce
// exactly 1 distinct path label, not 100.
func TestMetricsCardinality(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		label := normalizeRoute("/tle/MISSION" + strconv.Itoa(i))
		seen[label] = true
	}
	if len(seen) != 1 {
		t.Errorf("expected 1 unique label for parameterized paths, got %d: %v", len(seen), seen)
	}
}

func TestMiddlewareCountsByRoute(t *testing.T) {
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("/tle/{mission_id}", "GET", "404"))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/tle/UNKNOWN", nil))
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("/tle/{mission_id}", "GET", "404"))

	if after-before != 1 {
		t.Errorf("request counter delta = %v, want 1", after-before)
	}
}

func TestObserveAggregation(t *testing.T) {
	foundBefore := testutil.ToFloat64(aggregationsTotal.WithLabelValues("found"))
	truncatedBefore := testutil.ToFloat64(truncatedTotal)

	ObserveAggregation("found", 2, true)
	ObserveAggregation("found", 6, false)

	if got := testutil.ToFloat64(aggregationsTotal.WithLabelValues("found")) - foundBefore; got != 2 {
		t.Errorf("found delta = %v, want 2", got)
	}
	if got := testutil.ToFloat64(truncatedTotal) - truncatedBefore; got != 1 {
		t.Errorf("truncated delta = %v, want 1", got)
	}
}

func TestObserveUpstream(t *testing.T) {
	before := testutil.ToFloat64(upstreamRequestsTotal.WithLabelValues("n2yo", "ok"))
	ObserveUpstream("n2yo", "ok", 15*time.Millisecond)
	if got := testutil.ToFloat64(upstreamRequestsTotal.WithLabelValues("n2yo", "ok")) - before; got != 1 {
		t.Errorf("upstream delta = %v, want 1", got)
	}
}
