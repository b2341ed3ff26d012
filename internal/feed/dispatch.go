package feed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"example.com/casefeed/internal/domain"
)

const tracerName = "example.com/casefeed/internal/feed"

// SourceResult is one provider's outcome. Err is a *SourceError when set.
type SourceResult struct {
	Source    string
	Records   []ActivityRecord
	Truncated bool
	Err       error
}

// Dispatcher fans a filter out to the providers serving its activity type.
type Dispatcher struct {
	providers []Provider
	resolver  NameResolver
	logger    *zap.Logger
	tracer    trace.Tracer
}

// NewDispatcher constructs a Dispatcher. Providers are dispatched, and their results
// returned, in the order given.
func NewDispatcher(providers []Provider, resolver NameResolver, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		providers: providers,
		resolver:  resolver,
		logger:    logger,
		tracer:    otel.Tracer(tracerName),
	}
}

// Active returns the providers serving activityType.
func (d *Dispatcher) Active(activityType string) []Provider {
	active := make([]Provider, 0, len(d.providers))
	for _, p := range d.providers {
		if p.Serves(activityType) {
			active = append(active, p)
		}
	}
	return active
}

// Dispatch runs every active provider concurrently and waits for all of them. A provider's
// failure is isolated to its own SourceResult; cancelling ctx cancels every in-flight call.
func (d *Dispatcher) Dispatch(ctx context.Context, f Filter) []SourceResult {
	active := d.Active(f.ActivityType)
	results := make([]SourceResult, len(active))
	if len(active) == 0 {
		return results
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(len(active))
	for i, p := range active {
		g.Go(func() error {
			results[i] = d.run(gctx, p, f)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (d *Dispatcher) run(ctx context.Context, p Provider, f Filter) (result SourceResult) {
	name := p.Name()
	result.Source = name

	ctx, span := d.tracer.Start(ctx, "feed.source.fetch", trace.WithAttributes(attribute.String("feed.source", name)))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			result = SourceResult{Source: name, Err: &SourceError{Source: name, Err: fmt.Errorf("panic: %v", r)}}
		}
		if result.Err != nil {
			recordSourceFailure(name)
			span.RecordError(result.Err)
			span.SetStatus(codes.Error, "source unavailable")
			d.logger.Warn("activity source failed", zap.String("source", name), zap.Error(result.Err))
		}
	}()

	start := time.Now()
	records, err := p.Fetch(ctx, f)
	observeSourceFetch(name, time.Since(start))
	if err != nil {
		result.Err = &SourceError{Source: name, Err: err}
		return result
	}

	if limiter, ok := p.(RowLimiter); ok && limiter.RowLimit() > 0 && len(records) >= limiter.RowLimit() {
		result.Truncated = true
	}

	records = d.ownedOnly(name, records)
	records, err = d.widen(ctx, name, records, f)
	if err != nil {
		result.Err = &SourceError{Source: name, Err: err}
		return result
	}

	span.SetAttributes(attribute.Int("feed.records", len(records)))
	result.Records = records
	return result
}

// ownedOnly drops records typed outside the provider's partition.
func (d *Dispatcher) ownedOnly(name string, records []ActivityRecord) []ActivityRecord {
	out := records[:0]
	for _, rec := range records {
		if BaseType(rec.Type) != name {
			d.logger.Debug("dropping record outside source partition",
				zap.String("source", name), zap.String("type", rec.Type), zap.String("id", rec.ID))
			continue
		}
		out = append(out, rec)
	}
	return out
}

// widen applies the free-text union law: a record is kept when its own fields matched the
// query or its client's name contains it. In search mode every kept record must also carry
// a resolved client name. Each call makes at most one resolver round-trip.
func (d *Dispatcher) widen(ctx context.Context, source string, records []ActivityRecord, f Filter) ([]ActivityRecord, error) {
	needNames := f.Mode() == ModeSearch
	if f.Query == "" && !needNames {
		return records, nil
	}

	seen := make(map[string]struct{})
	ids := make([]string, 0)
	for _, rec := range records {
		if rec.ClientID == "" {
			continue
		}
		if !needNames && rec.textMatched {
			continue
		}
		if _, ok := seen[rec.ClientID]; ok {
			continue
		}
		seen[rec.ClientID] = struct{}{}
		ids = append(ids, rec.ClientID)
	}

	names := map[string]string{}
	if len(ids) > 0 {
		lookup := f.Query
		if needNames {
			lookup = ""
		}
		resolveCtx, span := d.tracer.Start(ctx, "feed.names.resolve", trace.WithAttributes(
			attribute.String("feed.source", source),
			attribute.Int("feed.client_ids", len(ids)),
		))
		resolved, err := d.resolver.Resolve(resolveCtx, ids, lookup)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "resolve failed")
			span.End()
			return nil, fmt.Errorf("resolve client names: %w", err)
		}
		span.End()
		names = resolved
	}

	folded := domain.Fold(f.Query)
	out := make([]ActivityRecord, 0, len(records))
	for _, rec := range records {
		name, known := names[rec.ClientID]
		if needNames {
			if !known {
				continue
			}
			rec.ClientName = name
		}
		if f.Query != "" && !rec.textMatched {
			if !known || !strings.Contains(domain.Fold(name), folded) {
				continue
			}
		}
		out = append(out, rec)
	}
	return out, nil
}
