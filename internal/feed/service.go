package feed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"example.com/casefeed/internal/domain"
)

// Audit event names emitted by the Service.
const (
	EventFeedViewed      = "activity_feed.viewed"
	EventSearchPerformed = "activity_search.performed"
	EventFeedDenied      = "activity_feed.denied"
)

// Actor is the verified identity behind a request.
type Actor struct {
	ID   string
	Role string
}

// Authorizer decides whether an actor may read the feed.
type Authorizer interface {
	Allowed(ctx context.Context, actorID, role string) bool
}

// AuditSink receives fire-and-forget audit events. Implementations must not block.
type AuditSink interface {
	Record(ctx context.Context, event, actorID string, metadata map[string]any)
}

// Service assembles activity feeds.
type Service struct {
	dispatcher *Dispatcher
	directory  domain.ClientDirectory
	authorizer Authorizer
	audit      AuditSink
	logger     *zap.Logger
	timeout    time.Duration
}

// Option configures optional behaviour for the Service.
type Option func(*Service)

// WithLogger overrides the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithTimeout bounds every Feed call.
func WithTimeout(timeout time.Duration) Option {
	return func(s *Service) {
		s.timeout = timeout
	}
}

// NewService constructs a Service.
func NewService(dispatcher *Dispatcher, directory domain.ClientDirectory, authorizer Authorizer, audit AuditSink, opts ...Option) *Service {
	s := &Service{
		dispatcher: dispatcher,
		directory:  directory,
		authorizer: authorizer,
		audit:      audit,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Feed authorizes the actor, fans out to the sources serving f, and returns the requested
// page. A failed source is left out and reported through Page.Partial; only when every
// active source fails does Feed return ErrInternal.
func (s *Service) Feed(ctx context.Context, actor Actor, f Filter) (*Page, error) {
	mode := f.Mode()
	if actor.ID == "" {
		recordRequest(mode, "unauthorized")
		return nil, ErrUnauthorized
	}
	if s.authorizer != nil && !s.authorizer.Allowed(ctx, actor.ID, actor.Role) {
		recordRequest(mode, "forbidden")
		s.record(ctx, EventFeedDenied, actor, map[string]any{
			"mode":      string(mode),
			"role":      actor.Role,
			"client_id": f.ClientID,
		})
		return nil, ErrForbidden
	}
	if err := validateFilter(f); err != nil {
		recordRequest(mode, "invalid")
		return nil, err
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	ctx, span := s.dispatcher.tracer.Start(ctx, "feed.assemble")
	defer span.End()
	span.SetAttributes(
		attribute.String("feed.mode", string(mode)),
		attribute.String("feed.activity_type", f.ActivityType),
	)

	page, err := s.assemble(ctx, f)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "feed failed")
		recordRequest(mode, outcomeFor(err))
		return nil, err
	}

	outcome := "ok"
	if page.Partial {
		outcome = "partial"
		partialCounter.Inc()
	}
	recordRequest(mode, outcome)

	event := EventFeedViewed
	if mode == ModeSearch {
		event = EventSearchPerformed
	}
	s.record(ctx, event, actor, map[string]any{
		"role":           actor.Role,
		"client_id":      f.ClientID,
		"query":          f.Query,
		"activity_type":  f.ActivityType,
		"page":           f.Page,
		"limit":          f.Limit,
		"total":          page.Pagination.Total,
		"partial":        page.Partial,
		"failed_sources": page.FailedSources,
	})
	return page, nil
}

func (s *Service) assemble(ctx context.Context, f Filter) (*Page, error) {
	var client *domain.Client
	if f.Mode() == ModeClient {
		c, err := s.directory.GetClient(ctx, f.ClientID)
		if err != nil {
			if errors.Is(err, domain.ErrClientNotFound) || ctx.Err() != nil {
				return nil, contextOr(ctx, err)
			}
			return nil, fmt.Errorf("%w: load client: %v", ErrInternal, err)
		}
		client = c
	}

	results := s.dispatcher.Dispatch(ctx, f)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var failed, truncated []string
	var causes []error
	for _, res := range results {
		if res.Err != nil {
			failed = append(failed, res.Source)
			causes = append(causes, res.Err)
			continue
		}
		if res.Truncated {
			truncated = append(truncated, res.Source)
		}
	}
	if len(results) > 0 && len(failed) == len(results) {
		s.logger.Error("every activity source failed", zap.Strings("sources", failed))
		return nil, fmt.Errorf("%w: %w", ErrInternal, errors.Join(causes...))
	}
	if len(truncated) > 0 {
		s.logger.Warn("activity sources hit their row limit", zap.Strings("sources", truncated))
	}

	merged := Merge(results)
	if client != nil {
		for i := range merged {
			merged[i].ClientName = client.Name
		}
	}

	data, meta := Paginate(merged, f.Page, f.Limit)
	page := &Page{
		Data:             data,
		Pagination:       meta,
		Partial:          len(failed) > 0,
		FailedSources:    failed,
		TruncatedSources: truncated,
	}
	if f.Mode() == ModeSearch {
		page.Grouped = Aggregate(merged)
	}
	return page, nil
}

func (s *Service) record(ctx context.Context, event string, actor Actor, metadata map[string]any) {
	if s.audit == nil {
		return
	}
	// Audit delivery must never affect the response.
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("audit sink panicked", zap.String("event", event), zap.Any("panic", r))
		}
	}()
	s.audit.Record(context.WithoutCancel(ctx), event, actor.ID, metadata)
}

func validateFilter(f Filter) error {
	verr := &ValidationError{}
	if f.Page < 1 {
		verr.add("page", "must be a positive integer")
	}
	if f.Limit < 1 {
		verr.add("limit", "must be a positive integer")
	}
	if _, ok := parseActivityType(f.ActivityType); !ok || f.ActivityType == "" {
		verr.add("activity_type", "unsupported activity type")
	}
	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		verr.add("end_date", "must not be before start_date")
	}
	return verr.orNil()
}

func contextOr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

func outcomeFor(err error) string {
	switch {
	case errors.Is(err, domain.ErrClientNotFound):
		return "not_found"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}
