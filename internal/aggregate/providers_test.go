package aggregate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/star/missiontle/internal/mission"
	"github.com/star/missiontle/internal/tle"
	"github.com/star/missiontle/internal/upstream"
)

// fakeProviders serves both the mission and TLE providers from one
// httptest server and counts every request it receives.
func fakeProviders(t *testing.T, tles map[string]string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v3/launches", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("mission_id") {
		case "M1":
			w.Write([]byte(`[{"rocket":{"second_stage":{"payloads":[
				{"payload_id":"P1","norad_id":[100,101]},
				{"payload_id":"P2","norad_id":[200]}]}}}]`))
		default:
			w.Write([]byte(`[]`))
		}
	})
	mux.HandleFunc("GET /rest/v1/satellite/tle/{id}", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Query().Get("apiKey") != "KEY" {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"error":"Invalid API Key!"}`))
			return
		}
		text, ok := tles[r.PathValue("id")]
		if !ok {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"info":{"satid":` + r.PathValue("id") + `,"satname":"SAT","transactionscount":1},"tle":"` + text + `"}`))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, &hits
}

func newProviderAggregator(t *testing.T, server *httptest.Server, apiKey string, limit int) *Aggregator {
	t.Helper()
	logger := testLogger()
	client := upstream.NewClient(upstream.Config{}, logger)
	resolver, err := mission.NewResolver(client, server.URL+"/v3/", logger)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	fetcher, err := tle.NewFetcher(client, server.URL+"/rest/v1/satellite/", apiKey, logger)
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}
	agg, err := New(resolver, fetcher, Config{TransactionLimit: limit}, logger)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return agg
}

var providerTLEs = map[string]string{
	"100": `1 00100U\r\n2 00100`,
	"101": ``,
	"200": `1 00200U\r\n2 00200`,
}

func TestProvidersEndToEnd(t *testing.T) {
	tests := []struct {
		name     string
		limit    int
		want     []PayloadTLEs
		wantHits int32
	}{
		{
			name:  "budget 6",
			limit: 6,
			want: []PayloadTLEs{
				{ID: "P1", Lines: []string{"1 00100U", "2 00100"}},
				{ID: "P2", Lines: []string{"1 00200U", "2 00200"}},
			},
			wantHits: 4,
		},
		{
			name:     "budget 2",
			limit:    2,
			want:     []PayloadTLEs{{ID: "P1", Lines: []string{"1 00100U", "2 00100"}}},
			wantHits: 2,
		},
		{
			name:     "budget 1",
			limit:    1,
			want:     nil,
			wantHits: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, hits := fakeProviders(t, providerTLEs)
			agg := newProviderAggregator(t, server, "KEY", tt.limit)

			res, err := agg.GetMissionTLEs(context.Background(), "M1")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(res.Payloads, tt.want) {
				t.Errorf("payloads = %+v, want %+v", res.Payloads, tt.want)
			}
			if hits.Load() != tt.wantHits {
				t.Errorf("upstream hits = %d, want %d", hits.Load(), tt.wantHits)
			}
		})
	}
}

func TestProvidersUnknownMission(t *testing.T) {
	server, hits := fakeProviders(t, providerTLEs)
	agg := newProviderAggregator(t, server, "KEY", 6)

	res, err := agg.GetMissionTLEs(context.Background(), "NOPE")
	if err != nil || res != nil {
		t.Fatalf("got (%v, %v), want (nil, nil)", res, err)
	}
	if hits.Load() != 1 {
		t.Errorf("upstream hits = %d, want 1", hits.Load())
	}
}

func TestProvidersFailures(t *testing.T) {
	t.Run("bad api key", func(t *testing.T) {
		server, _ := fakeProviders(t, providerTLEs)
		agg := newProviderAggregator(t, server, "WRONG", 6)

		res, err := agg.GetMissionTLEs(context.Background(), "M1")
		if res != nil || !upstream.IsKind(err, upstream.KindMalformed) {
			t.Fatalf("got (%v, %v), want (nil, malformed)", res, err)
		}
		if strings.Contains(err.Error(), "WRONG") {
			t.Errorf("error leaks API key: %v", err)
		}
	})

	t.Run("tle provider down", func(t *testing.T) {
		server, _ := fakeProviders(t, map[string]string{"100": `1 00100U\r\n2 00100`})
		agg := newProviderAggregator(t, server, "KEY", 6)

		res, err := agg.GetMissionTLEs(context.Background(), "M1")
		if res != nil || !upstream.IsKind(err, upstream.KindUnavailable) {
			t.Fatalf("got (%v, %v), want (nil, unavailable)", res, err)
		}
	})
}
