package feed

import (
	"context"
	"strings"
	"time"

	"example.com/casefeed/internal/domain"
)

// Provider owns the query logic for one record kind.
type Provider interface {
	// Name is the base activity type the provider emits.
	Name() string
	// Serves reports whether the provider is active for the requested activity type.
	Serves(activityType string) bool
	// Fetch returns normalized records ordered by date descending. When f.Query is set,
	// each record is marked with whether its own text fields match; no record is dropped
	// for failing to match, since the dispatcher may still match it by client name.
	Fetch(ctx context.Context, f Filter) ([]ActivityRecord, error)
}

// RowLimiter is implemented by providers that cap the rows read from their store.
type RowLimiter interface {
	RowLimit() int
}

// SourceOptions configures the store-backed providers.
type SourceOptions struct {
	// RowLimit caps rows per fetch. Zero means unlimited.
	RowLimit int
	// Location is used to truncate timestamps to calendar dates. Nil means UTC.
	Location *time.Location
}

func (o SourceOptions) location() *time.Location {
	if o.Location == nil {
		return time.UTC
	}
	return o.Location
}

// NewProviders returns one provider per record kind, in dispatch order.
func NewProviders(store domain.RecordStore, opts SourceOptions) []Provider {
	return []Provider{
		NewConsultationSource(store, opts),
		NewAssessmentSource(store, opts),
		NewCustomizationSource(store, opts),
		NewRentalSource(store, opts),
		NewScheduleSource(store, opts),
	}
}

type rowSource[T any] struct {
	name      string
	find      func(context.Context, domain.RecordQuery) ([]T, error)
	normalize func(T, *time.Location) ActivityRecord
	opts      SourceOptions
}

func (s *rowSource[T]) Name() string { return s.name }

func (s *rowSource[T]) RowLimit() int { return s.opts.RowLimit }

func (s *rowSource[T]) Serves(activityType string) bool {
	return activityType == TypeAll || activityType == s.name
}

func (s *rowSource[T]) Fetch(ctx context.Context, f Filter) ([]ActivityRecord, error) {
	rows, err := s.find(ctx, s.query(f))
	if err != nil {
		return nil, err
	}
	return s.records(rows, f.Query), nil
}

func (s *rowSource[T]) query(f Filter) domain.RecordQuery {
	return domain.RecordQuery{
		ClientID: f.ClientID,
		ActorID:  f.ActorID,
		From:     f.From,
		To:       f.To,
		Limit:    s.opts.RowLimit,
	}
}

func (s *rowSource[T]) records(rows []T, query string) []ActivityRecord {
	loc := s.opts.location()
	folded := domain.Fold(query)
	out := make([]ActivityRecord, 0, len(rows))
	for _, row := range rows {
		rec := s.normalize(row, loc)
		if query != "" {
			rec.textMatched = matchesAny(rec.searchable, folded)
		}
		out = append(out, rec)
	}
	return out
}

func matchesAny(fields []string, foldedQuery string) bool {
	for _, field := range fields {
		if strings.Contains(domain.Fold(field), foldedQuery) {
			return true
		}
	}
	return false
}

// NewConsultationSource reads consultation notes.
func NewConsultationSource(store domain.RecordStore, opts SourceOptions) Provider {
	return &rowSource[domain.Consultation]{
		name: TypeConsultation,
		find: store.FindConsultations,
		opts: opts,
		normalize: func(c domain.Consultation, loc *time.Location) ActivityRecord {
			return ActivityRecord{
				ID:       c.ID,
				Type:     TypeConsultation,
				Title:    c.Title,
				Date:     calendarDate(c.Date),
				ClientID: c.ClientID,
				Metadata: map[string]any{
					"method":   c.Method,
					"status":   c.Status,
					"content":  c.Content,
					"actor_id": c.ActorID,
				},
				CreatedAt:  c.CreatedAt,
				searchable: []string{c.Title, c.Content},
			}
		},
	}
}

// NewAssessmentSource reads assessments.
func NewAssessmentSource(store domain.RecordStore, opts SourceOptions) Provider {
	return &rowSource[domain.Assessment]{
		name: TypeAssessment,
		find: store.FindAssessments,
		opts: opts,
		normalize: func(a domain.Assessment, loc *time.Location) ActivityRecord {
			meta := map[string]any{
				"category": a.Category,
				"summary":  a.Summary,
				"actor_id": a.ActorID,
			}
			if a.Score != nil {
				meta["score"] = *a.Score
			}
			return ActivityRecord{
				ID:         a.ID,
				Type:       TypeAssessment,
				Title:      a.Title,
				Date:       calendarDate(a.Date),
				ClientID:   a.ClientID,
				Metadata:   meta,
				CreatedAt:  a.CreatedAt,
				searchable: []string{a.Title, a.Summary},
			}
		},
	}
}

// NewCustomizationSource reads customization requests.
func NewCustomizationSource(store domain.RecordStore, opts SourceOptions) Provider {
	return &rowSource[domain.CustomizationRequest]{
		name: TypeCustomization,
		find: store.FindCustomizations,
		opts: opts,
		normalize: func(c domain.CustomizationRequest, loc *time.Location) ActivityRecord {
			return ActivityRecord{
				ID:       c.ID,
				Type:     TypeCustomization,
				Title:    c.Title,
				Date:     calendarDate(c.Date),
				ClientID: c.ClientID,
				Metadata: map[string]any{
					"device":      c.Device,
					"status":      c.Status,
					"description": c.Description,
					"actor_id":    c.ActorID,
				},
				CreatedAt:  c.CreatedAt,
				searchable: []string{c.Title, c.Description},
			}
		},
	}
}

// NewRentalSource reads equipment rentals.
func NewRentalSource(store domain.RecordStore, opts SourceOptions) Provider {
	return &rowSource[domain.Rental]{
		name: TypeRental,
		find: store.FindRentals,
		opts: opts,
		normalize: func(r domain.Rental, loc *time.Location) ActivityRecord {
			meta := map[string]any{
				"quantity":    r.Quantity,
				"status":      r.Status,
				"description": r.Description,
				"actor_id":    r.ActorID,
			}
			if r.DueDate != nil {
				meta["due_date"] = r.DueDate.Format(time.DateOnly)
			}
			return ActivityRecord{
				ID:         r.ID,
				Type:       TypeRental,
				Title:      r.Title,
				Date:       calendarDate(r.Date),
				ClientID:   r.ClientID,
				Metadata:   meta,
				CreatedAt:  r.CreatedAt,
				searchable: []string{r.Title, r.Description},
			}
		},
	}
}

// scheduleSource partitions one store finder by schedule kind.
type scheduleSource struct {
	*rowSource[domain.Schedule]
}

// NewScheduleSource reads calendar schedules. Records are typed schedule_<kind> and dated
// by their start time truncated to a calendar date.
func NewScheduleSource(store domain.RecordStore, opts SourceOptions) Provider {
	return &scheduleSource{rowSource: &rowSource[domain.Schedule]{
		name: TypeSchedule,
		find: store.FindSchedules,
		opts: opts,
		normalize: func(s domain.Schedule, loc *time.Location) ActivityRecord {
			meta := map[string]any{
				"kind":      s.Kind,
				"memo":      s.Memo,
				"location":  s.Location,
				"starts_at": s.StartsAt,
				"actor_id":  s.ActorID,
			}
			if s.EndsAt != nil {
				meta["ends_at"] = *s.EndsAt
			}
			return ActivityRecord{
				ID:         s.ID,
				Type:       ScheduleType(s.Kind),
				Title:      s.Title,
				Date:       calendarDate(s.StartsAt.In(loc)),
				ClientID:   s.ClientID,
				Metadata:   meta,
				CreatedAt:  s.CreatedAt,
				searchable: []string{s.Title, s.Memo, s.Location},
			}
		},
	}}
}

func (s *scheduleSource) Serves(activityType string) bool {
	return activityType == TypeAll || BaseType(activityType) == TypeSchedule
}

func (s *scheduleSource) Fetch(ctx context.Context, f Filter) ([]ActivityRecord, error) {
	q := s.query(f)
	q.ScheduleKind = strings.TrimPrefix(f.ActivityType, SchedulePrefix)
	if q.ScheduleKind == f.ActivityType {
		q.ScheduleKind = ""
	}
	rows, err := s.find(ctx, q)
	if err != nil {
		return nil, err
	}
	return s.records(rows, f.Query), nil
}

// calendarDate keeps the calendar date of t as seen in its own location, as UTC midnight.
func calendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
