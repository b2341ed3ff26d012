// Package memory stores case records in memory for local development and tests.
package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"example.com/casefeed/internal/domain"
)

// Store implements domain.RecordStore and domain.ClientDirectory.
type Store struct {
	mu            sync.RWMutex
	clients       map[string]domain.Client
	consultations []domain.Consultation
	assessments   []domain.Assessment
	customization []domain.CustomizationRequest
	rentals       []domain.Rental
	schedules     []domain.Schedule
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{clients: make(map[string]domain.Client)}
}

// AddClient inserts or replaces a client, assigning an id when empty.
func (s *Store) AddClient(c domain.Client) domain.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	if strings.TrimSpace(c.ID) == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	s.clients[c.ID] = c
	return c
}

// AddConsultation appends a consultation.
func (s *Store) AddConsultation(c domain.Consultation) domain.Consultation {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID, c.CreatedAt = ensureIdentity(c.ID, c.CreatedAt)
	s.consultations = append(s.consultations, c)
	return c
}

// AddAssessment appends an assessment.
func (s *Store) AddAssessment(a domain.Assessment) domain.Assessment {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID, a.CreatedAt = ensureIdentity(a.ID, a.CreatedAt)
	s.assessments = append(s.assessments, a)
	return a
}

// AddCustomization appends a customization request.
func (s *Store) AddCustomization(c domain.CustomizationRequest) domain.CustomizationRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID, c.CreatedAt = ensureIdentity(c.ID, c.CreatedAt)
	s.customization = append(s.customization, c)
	return c
}

// AddRental appends a rental.
func (s *Store) AddRental(r domain.Rental) domain.Rental {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID, r.CreatedAt = ensureIdentity(r.ID, r.CreatedAt)
	s.rentals = append(s.rentals, r)
	return r
}

// AddSchedule appends a schedule.
func (s *Store) AddSchedule(sc domain.Schedule) domain.Schedule {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc.ID, sc.CreatedAt = ensureIdentity(sc.ID, sc.CreatedAt)
	s.schedules = append(s.schedules, sc)
	return sc
}

func ensureIdentity(id string, createdAt time.Time) (string, time.Time) {
	if strings.TrimSpace(id) == "" {
		id = uuid.NewString()
	}
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	return id, createdAt
}

// FindConsultations implements domain.RecordStore.
func (s *Store) FindConsultations(ctx context.Context, q domain.RecordQuery) ([]domain.Consultation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return find(ctx, s.consultations, q, func(c domain.Consultation) row {
		return row{clientID: c.ClientID, actorID: c.ActorID, date: c.Date, createdAt: c.CreatedAt}
	})
}

// FindAssessments implements domain.RecordStore.
func (s *Store) FindAssessments(ctx context.Context, q domain.RecordQuery) ([]domain.Assessment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return find(ctx, s.assessments, q, func(a domain.Assessment) row {
		return row{clientID: a.ClientID, actorID: a.ActorID, date: a.Date, createdAt: a.CreatedAt}
	})
}

// FindCustomizations implements domain.RecordStore.
func (s *Store) FindCustomizations(ctx context.Context, q domain.RecordQuery) ([]domain.CustomizationRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return find(ctx, s.customization, q, func(c domain.CustomizationRequest) row {
		return row{clientID: c.ClientID, actorID: c.ActorID, date: c.Date, createdAt: c.CreatedAt}
	})
}

// FindRentals implements domain.RecordStore.
func (s *Store) FindRentals(ctx context.Context, q domain.RecordQuery) ([]domain.Rental, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return find(ctx, s.rentals, q, func(r domain.Rental) row {
		return row{clientID: r.ClientID, actorID: r.ActorID, date: r.Date, createdAt: r.CreatedAt}
	})
}

// FindSchedules implements domain.RecordStore. Schedules are dated by their start time.
func (s *Store) FindSchedules(ctx context.Context, q domain.RecordQuery) ([]domain.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return find(ctx, s.schedules, q, func(sc domain.Schedule) row {
		return row{clientID: sc.ClientID, actorID: sc.ActorID, kind: sc.Kind, date: sc.StartsAt, timestamp: true, createdAt: sc.CreatedAt}
	})
}

type row struct {
	clientID  string
	actorID   string
	kind      string
	date      time.Time
	timestamp bool
	createdAt time.Time
}

func (r row) matches(q domain.RecordQuery) bool {
	if q.ClientID != "" && r.clientID != q.ClientID {
		return false
	}
	if q.ActorID != "" && r.actorID != q.ActorID {
		return false
	}
	if q.ScheduleKind != "" && r.kind != q.ScheduleKind {
		return false
	}
	if q.From != nil && r.before(*q.From) {
		return false
	}
	if q.To != nil && r.after(*q.To) {
		return false
	}
	return true
}

// before reports whether the row falls on a day earlier than bound.
func (r row) before(bound time.Time) bool {
	if r.timestamp {
		return r.date.Before(bound)
	}
	return civil(r.date) < civil(bound)
}

// after reports whether the row falls on a day later than bound.
func (r row) after(bound time.Time) bool {
	if r.timestamp {
		return !r.date.Before(bound.AddDate(0, 0, 1))
	}
	return civil(r.date) > civil(bound)
}

func civil(t time.Time) int {
	y, m, d := t.Date()
	return y*10000 + int(m)*100 + d
}

func find[T any](ctx context.Context, items []T, q domain.RecordQuery, key func(T) row) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	type keyed struct {
		item T
		row  row
	}
	matched := make([]keyed, 0)
	for _, item := range items {
		r := key(item)
		if r.matches(q) {
			matched = append(matched, keyed{item: item, row: r})
		}
	}
	slices.SortStableFunc(matched, func(a, b keyed) int {
		if c := b.row.date.Compare(a.row.date); c != 0 {
			return c
		}
		return cmp.Compare(b.row.createdAt.UnixNano(), a.row.createdAt.UnixNano())
	})
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}
	out := make([]T, len(matched))
	for i, k := range matched {
		out[i] = k.item
	}
	return out, nil
}

// FindClients implements domain.ClientDirectory.
func (s *Store) FindClients(ctx context.Context, ids []string, nameContains string) ([]domain.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Client, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		c, ok := s.clients[id]
		if !ok || !domain.ContainsFold(c.Name, nameContains) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// GetClient implements domain.ClientDirectory.
func (s *Store) GetClient(ctx context.Context, id string) (*domain.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clients[id]
	if !ok {
		return nil, domain.ErrClientNotFound
	}
	return &c, nil
}

// Ping reports whether ctx is still live; the in-memory store is always reachable.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}
