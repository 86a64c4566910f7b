// Package aggregate composes the mission resolver and the TLE fetcher into
// a single budgeted lookup: mission → payloads → catalog IDs → TLE lines.
//
// Every upstream call of a lookup draws from one budget.Budget. Payloads
// are served in resolution order; once the budget is spent the remaining
// payloads are left out of the result. Running out of budget is a normal,
// truncated outcome. Any upstream failure aborts the whole lookup.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/star/missiontle/internal/budget"
	"github.com/star/missiontle/internal/metrics"
	"github.com/star/missiontle/internal/mission"
	"github.com/star/missiontle/internal/tle"
)

// Resolver maps a mission ID to its payloads, spending from b.
type Resolver interface {
	Resolve(ctx context.Context, missionID string, b *budget.Budget) (*mission.PayloadMap, error)
}

// Fetcher returns the TLE for one catalog ID, spending from b.
type Fetcher interface {
	Fetch(ctx context.Context, catalogID int64, b *budget.Budget) (tle.Element, error)
}

// Config holds the per-request limits.
type Config struct {
	// TransactionLimit is the maximum number of upstream calls per
	// lookup, mission query included. Must be at least 1.
	TransactionLimit int

	// Concurrency bounds parallel TLE queries within one payload.
	// Values below 2 keep queries strictly sequential.
	Concurrency int
}

// Aggregator runs mission TLE lookups.
type Aggregator struct {
	resolver    Resolver
	fetcher     Fetcher
	limit       int
	concurrency int
	logger      *slog.Logger
	tracer      trace.Tracer
}

// New creates an Aggregator.
func New(resolver Resolver, fetcher Fetcher, cfg Config, logger *slog.Logger) (*Aggregator, error) {
	if cfg.TransactionLimit < 1 {
		return nil, fmt.Errorf("transaction limit must be at least 1, got %d", cfg.TransactionLimit)
	}
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &Aggregator{
		resolver:    resolver,
		fetcher:     fetcher,
		limit:       cfg.TransactionLimit,
		concurrency: concurrency,
		logger:      logger,
		tracer:      otel.Tracer("github.com/star/missiontle/internal/aggregate"),
	}, nil
}

// GetMissionTLEs looks up every payload TLE for missionID with a fresh
// budget. It returns nil without error when the mission is unknown.
func (a *Aggregator) GetMissionTLEs(ctx context.Context, missionID string) (*Result, error) {
	ctx, span := a.tracer.Start(ctx, "aggregate.GetMissionTLEs",
		trace.WithAttributes(attribute.String("mission.id", missionID)))
	defer span.End()

	start := time.Now()
	b := budget.New(a.limit)

	payloads, err := a.resolver.Resolve(ctx, missionID, b)
	if err != nil {
		metrics.ObserveAggregation("error", b.Spent(), false)
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolve failed")
		return nil, fmt.Errorf("resolving mission %q: %w", missionID, err)
	}
	if payloads == nil {
		metrics.ObserveAggregation("not_found", b.Spent(), false)
		span.SetAttributes(attribute.Bool("mission.found", false))
		return nil, nil
	}
	a.logger.Debug("elapsed", "component", "aggregate", "stage", "resolve", "duration_ms", time.Since(start).Milliseconds())

	res, err := a.Aggregate(ctx, payloads, b)
	if err != nil {
		metrics.ObserveAggregation("error", b.Spent(), false)
		span.RecordError(err)
		span.SetStatus(codes.Error, "aggregate failed")
		return nil, fmt.Errorf("aggregating mission %q: %w", missionID, err)
	}
	res.MissionID = missionID

	metrics.ObserveAggregation("found", res.Spent, res.Truncated)
	span.SetAttributes(
		attribute.Bool("mission.found", true),
		attribute.Int("budget.spent", res.Spent),
		attribute.Bool("result.truncated", res.Truncated),
	)
	a.logger.Info("mission TLEs aggregated",
		"component", "aggregate",
		"mission_id", missionID,
		"payloads", len(res.Payloads),
		"payloads_resolved", payloads.Len(),
		"txn_spent", res.Spent,
		"txn_limit", res.Limit,
		"truncated", res.Truncated,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

// Aggregate queries TLEs for payloads in order, spending from b. A payload
// is skipped entirely once b has nothing left; otherwise its first
// min(remaining, len(catalogIDs)) catalog IDs are queried. A nil payloads
// map yields an empty result.
func (a *Aggregator) Aggregate(ctx context.Context, payloads *mission.PayloadMap, b *budget.Budget) (*Result, error) {
	res := &Result{Limit: b.Limit()}
	if payloads == nil {
		res.Spent = b.Spent()
		return res, nil
	}

	for _, p := range payloads.Payloads() {
		remaining := b.Remaining()
		if remaining <= 0 {
			a.logger.Info("transaction limit reached, skipping payload",
				"component", "aggregate",
				"txn_limit", b.Limit(),
				"payload_id", p.ID,
			)
			res.Truncated = true
			continue
		}

		ids := p.CatalogIDs
		if len(ids) > remaining {
			ids = ids[:remaining]
			res.Truncated = true
		}

		start := time.Now()
		a.logger.Debug("fetching TLEs", "component", "aggregate", "payload_id", p.ID, "catalog_ids", ids)

		lines, complete, err := a.fetchPayload(ctx, p.ID, ids, b)
		if err != nil {
			return nil, err
		}
		if !complete {
			res.Truncated = true
		}
		res.Payloads = append(res.Payloads, PayloadTLEs{ID: p.ID, Lines: lines})

		a.logger.Debug("elapsed",
			"component", "aggregate",
			"stage", "payload",
			"payload_id", p.ID,
			"lines", len(lines),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}

	res.Spent = b.Spent()
	return res, nil
}

// fetchPayload returns the lines for ids in catalog-ID order. complete is
// false when the budget refused a query.
func (a *Aggregator) fetchPayload(ctx context.Context, payloadID string, ids []int64, b *budget.Budget) (lines []string, complete bool, err error) {
	if a.concurrency < 2 || len(ids) < 2 {
		return a.fetchSequential(ctx, payloadID, ids, b)
	}
	return a.fetchConcurrent(ctx, payloadID, ids, b)
}

func (a *Aggregator) fetchSequential(ctx context.Context, payloadID string, ids []int64, b *budget.Budget) ([]string, bool, error) {
	lines := []string{}
	for _, id := range ids {
		el, err := a.fetcher.Fetch(ctx, id, b)
		if errors.Is(err, budget.ErrExhausted) {
			return lines, false, nil
		}
		if err != nil {
			return nil, false, fmt.Errorf("payload %q catalog %d: %w", payloadID, id, err)
		}
		lines = append(lines, el.Lines...)
	}
	return lines, true, nil
}

// fetchConcurrent issues up to a.concurrency queries at once. Each query
// reserves its transaction before it is sent, and results are placed by
// catalog-ID index so completion order never affects line order.
func (a *Aggregator) fetchConcurrent(ctx context.Context, payloadID string, ids []int64, b *budget.Budget) ([]string, bool, error) {
	slots := make([][]string, len(ids))
	queried := make([]bool, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			el, err := a.fetcher.Fetch(gctx, id, b)
			if errors.Is(err, budget.ErrExhausted) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("payload %q catalog %d: %w", payloadID, id, err)
			}
			slots[i] = el.Lines
			queried[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, false, err
	}

	lines := []string{}
	complete := true
	for i := range ids {
		if !queried[i] {
			complete = false
			continue
		}
		lines = append(lines, slots[i]...)
	}
	return lines, complete, nil
}
