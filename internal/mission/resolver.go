package mission

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/star/missiontle/internal/budget"
	"github.com/star/missiontle/internal/upstream"
)

const (
	// Provider is the upstream name used in errors, logs and metrics.
	Provider = "spacexdata"

	// DefaultBaseURL is the SpaceX data API root.
	DefaultBaseURL = "https://api.spacexdata.com/v3/"

	// payloadFilter limits launch records to the payload/catalog sub-tree.
	payloadFilter = "rocket/second_stage/payloads/(payload_id,norad_id)"

	opResolve = "mission.resolve"
)

// Resolver maps a mission ID to its payloads and their catalog IDs.
type Resolver struct {
	client  *upstream.Client
	baseURL *url.URL
	logger  *slog.Logger
}

// NewResolver creates a Resolver querying the mission provider at baseURL.
func NewResolver(client *upstream.Client, baseURL string, logger *slog.Logger) (*Resolver, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing mission base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("mission base URL %q must be absolute", baseURL)
	}
	return &Resolver{client: client, baseURL: u, logger: logger}, nil
}

// Resolve spends exactly one transaction from b. It returns nil without
// error when the provider has no launch for missionID.
func (r *Resolver) Resolve(ctx context.Context, missionID string, b *budget.Budget) (*PayloadMap, error) {
	start := time.Now()
	r.logger.Debug("resolving mission", "component", "mission", "mission_id", missionID)

	endpoint := r.baseURL.JoinPath("launches")
	q := url.Values{}
	q.Set("mission_id", missionID)
	q.Set("filter", payloadFilter)
	endpoint.RawQuery = q.Encode()

	var raw json.RawMessage
	if err := r.client.GetJSON(ctx, opResolve, Provider, endpoint, b, &raw); err != nil {
		return nil, err
	}

	launches, err := decodeLaunches(raw)
	if err != nil {
		return nil, err
	}
	if len(launches) == 0 {
		r.logger.Debug("no launches found", "component", "mission", "mission_id", missionID)
		return nil, nil
	}

	payloads := NewPayloadMap()
	for i, launch := range launches {
		records, err := launch.payloads(i)
		if err != nil {
			return nil, err
		}
		r.logger.Debug("launch payloads",
			"component", "mission",
			"mission_id", missionID,
			"launch", i+1,
			"payloads", len(records),
		)
		for j, p := range records {
			if p.PayloadID == nil {
				return nil, upstream.Malformed(opResolve, Provider, "launch %d payload %d: missing payload_id", i, j)
			}
			if p.NoradIDs == nil {
				return nil, upstream.Malformed(opResolve, Provider, "launch %d payload %q: missing norad_id", i, *p.PayloadID)
			}
			payloads.Set(*p.PayloadID, *p.NoradIDs)
		}
	}

	r.logger.Info("mission resolved",
		"component", "mission",
		"mission_id", missionID,
		"launches", len(launches),
		"payloads", payloads.Len(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return payloads, nil
}

// decodeLaunches requires the body to be a JSON array of launch records.
// An object body is the provider's error envelope.
func decodeLaunches(raw json.RawMessage) ([]launchRecord, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		var envelope errorEnvelope
		if json.Unmarshal(trimmed, &envelope) == nil && envelope.Error != "" {
			return nil, upstream.Malformed(opResolve, Provider, "provider error: %s", envelope.Error)
		}
		return nil, upstream.Malformed(opResolve, Provider, "response is not an array of launches")
	}

	var launches []launchRecord
	if err := json.Unmarshal(trimmed, &launches); err != nil {
		return nil, &upstream.Error{Op: opResolve, Provider: Provider, Kind: upstream.KindMalformed,
			Err: fmt.Errorf("decoding launches: %w", err)}
	}
	return launches, nil
}

func (l launchRecord) payloads(index int) ([]payloadRecord, error) {
	switch {
	case l.Rocket == nil:
		return nil, upstream.Malformed(opResolve, Provider, "launch %d: missing rocket", index)
	case l.Rocket.SecondStage == nil:
		return nil, upstream.Malformed(opResolve, Provider, "launch %d: missing rocket.second_stage", index)
	case l.Rocket.SecondStage.Payloads == nil:
		return nil, upstream.Malformed(opResolve, Provider, "launch %d: missing rocket.second_stage.payloads", index)
	}
	return *l.Rocket.SecondStage.Payloads, nil
}
