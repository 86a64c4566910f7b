package mission

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"strings"
	"testing"

	"github.com/star/missiontle/internal/budget"
	"github.com/star/missiontle/internal/upstream"
)

var testLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))

func newTestResolver(t *testing.T, body string) (*Resolver, *url.URL) {
	t.Helper()
	last := &url.URL{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*last = *r.URL
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	resolver, err := NewResolver(upstream.NewClient(upstream.Config{}, testLogger), server.URL+"/v3/", testLogger)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	return resolver, last
}

func TestResolveFlattensLaunches(t *testing.T) {
	body := `[
		{"rocket":{"second_stage":{"payloads":[
			{"payload_id":"P1","norad_id":[100,101]},
			{"payload_id":"P2","norad_id":[200]}
		]}}},
		{"rocket":{"second_stage":{"payloads":[
			{"payload_id":"P3","norad_id":[]}
		]}}}
	]`
	resolver, last := newTestResolver(t, body)
	b := budget.New(6)

	payloads, err := resolver.Resolve(context.Background(), "M1", b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payloads == nil {
		t.Fatal("expected payloads, got nil")
	}

	want := []Payload{
		{ID: "P1", CatalogIDs: []int64{100, 101}},
		{ID: "P2", CatalogIDs: []int64{200}},
		{ID: "P3", CatalogIDs: []int64{}},
	}
	if got := payloads.Payloads(); !reflect.DeepEqual(got, want) {
		t.Errorf("payloads = %+v, want %+v", got, want)
	}
	if b.Spent() != 1 {
		t.Errorf("spent = %d, want exactly 1", b.Spent())
	}

	if last.Path != "/v3/launches" {
		t.Errorf("path = %q, want /v3/launches", last.Path)
	}
	if got := last.Query().Get("mission_id"); got != "M1" {
		t.Errorf("mission_id = %q, want M1", got)
	}
	if got := last.Query().Get("filter"); got != payloadFilter {
		t.Errorf("filter = %q, want %q", got, payloadFilter)
	}
}

func TestResolveNoLaunchesIsNotFound(t *testing.T) {
	resolver, _ := newTestResolver(t, `[]`)
	payloads, err := resolver.Resolve(context.Background(), "M2", budget.New(6))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payloads != nil {
		t.Fatalf("expected nil for unknown mission, got %+v", payloads.Payloads())
	}
}

// TestResolveDuplicatePayloadLastWins verifies a payload repeated across
// launches keeps the later catalog IDs and its first position.
func TestResolveDuplicatePayloadLastWins(t *testing.T) {
	body := `[
		{"rocket":{"second_stage":{"payloads":[{"payload_id":"P1","norad_id":[1]},{"payload_id":"P2","norad_id":[2]}]}}},
		{"rocket":{"second_stage":{"payloads":[{"payload_id":"P1","norad_id":[9,8]}]}}}
	]`
	resolver, _ := newTestResolver(t, body)
	payloads, err := resolver.Resolve(context.Background(), "M", budget.New(6))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []Payload{
		{ID: "P1", CatalogIDs: []int64{9, 8}},
		{ID: "P2", CatalogIDs: []int64{2}},
	}
	if got := payloads.Payloads(); !reflect.DeepEqual(got, want) {
		t.Errorf("payloads = %+v, want %+v", got, want)
	}
}

func TestResolveMalformed(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{"error envelope", `{"error":"Not Found"}`, "provider error: Not Found"},
		{"object without envelope", `{"launches":[]}`, "not an array"},
		{"null body", `null`, "not an array"},
		{"missing rocket", `[{}]`, "missing rocket"},
		{"missing second stage", `[{"rocket":{}}]`, "missing rocket.second_stage"},
		{"missing payloads", `[{"rocket":{"second_stage":{}}}]`, "missing rocket.second_stage.payloads"},
		{"null payloads", `[{"rocket":{"second_stage":{"payloads":null}}}]`, "missing rocket.second_stage.payloads"},
		{"missing payload id", `[{"rocket":{"second_stage":{"payloads":[{"norad_id":[1]}]}}}]`, "missing payload_id"},
		{"missing norad ids", `[{"rocket":{"second_stage":{"payloads":[{"payload_id":"P1"}]}}}]`, "missing norad_id"},
		{"non-integer norad id", `[{"rocket":{"second_stage":{"payloads":[{"payload_id":"P1","norad_id":["x"]}]}}}]`, "decoding launches"},
		// The second launch is malformed even though the first is fine.
		{"partially malformed", `[{"rocket":{"second_stage":{"payloads":[]}}},{"rocket":null}]`, "launch 1: missing rocket"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver, _ := newTestResolver(t, tt.body)
			payloads, err := resolver.Resolve(context.Background(), "M", budget.New(6))
			if err == nil {
				t.Fatalf("expected error, got payloads %+v", payloads)
			}
			if !upstream.IsKind(err, upstream.KindMalformed) {
				t.Fatalf("error = %v, want malformed", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not contain %q", err, tt.wantMsg)
			}
		})
	}
}

func TestNewResolverRejectsRelativeURL(t *testing.T) {
	if _, err := NewResolver(upstream.NewClient(upstream.Config{}, testLogger), "/v3/", testLogger); err == nil {
		t.Fatal("expected error for relative base URL")
	}
}

func TestPayloadMapOrder(t *testing.T) {
	m := NewPayloadMap()
	m.Set("b", []int64{2})
	m.Set("a", []int64{1})
	m.Set("b", []int64{3})

	if m.Len() != 2 {
		t.Fatalf("len = %d, want 2", m.Len())
	}
	got := m.Payloads()
	if got[0].ID != "b" || got[1].ID != "a" {
		t.Errorf("order = %v, want [b a]", got)
	}
	if ids, _ := m.Get("b"); !reflect.DeepEqual(ids, []int64{3}) {
		t.Errorf("b = %v, want [3]", ids)
	}
}
