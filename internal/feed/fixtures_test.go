package feed

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"example.com/casefeed/internal/domain"
	"example.com/casefeed/internal/persistence/memory"
)

// countingDirectory records every batched lookup.
type countingDirectory struct {
	domain.ClientDirectory
	mu      sync.Mutex
	batches [][]string
	queries []string
	err     error
}

func (d *countingDirectory) FindClients(ctx context.Context, ids []string, nameContains string) ([]domain.Client, error) {
	d.mu.Lock()
	d.batches = append(d.batches, append([]string(nil), ids...))
	d.queries = append(d.queries, nameContains)
	d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	return d.ClientDirectory.FindClients(ctx, ids, nameContains)
}

func (d *countingDirectory) calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.batches)
}

// stubProvider returns canned records, an error, or blocks until cancelled.
type stubProvider struct {
	name    string
	records []ActivityRecord
	err     error
	block   bool
	calls   atomic.Int32
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Serves(activityType string) bool {
	return activityType == TypeAll || BaseType(activityType) == p.name
}

func (p *stubProvider) Fetch(ctx context.Context, f Filter) ([]ActivityRecord, error) {
	p.calls.Add(1)
	if p.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if p.err != nil {
		return nil, p.err
	}
	return append([]ActivityRecord(nil), p.records...), nil
}

type allowAll struct{}

func (allowAll) Allowed(context.Context, string, string) bool { return true }

type denyAll struct{}

func (denyAll) Allowed(context.Context, string, string) bool { return false }

type auditEntry struct {
	event    string
	actorID  string
	metadata map[string]any
}

type recordingSink struct {
	mu      sync.Mutex
	entries []auditEntry
}

func (s *recordingSink) Record(_ context.Context, event, actorID string, metadata map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, auditEntry{event: event, actorID: actorID, metadata: metadata})
}

func (s *recordingSink) events() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.event)
	}
	return out
}

type panickingSink struct{}

func (panickingSink) Record(context.Context, string, string, map[string]any) {
	panic("sink exploded")
}

var errStoreDown = errors.New("connection refused")

var counselor = Actor{ID: "staff-1", Role: "counselor"}

// seedStore builds the data used across the scenario tests.
//
//	C1 "Park Jiwoo": consultations 2024-01-01 and 2024-01-10, rental 2024-01-05
//	S7 "Kim Minsu":  schedule (fitting) "Fitting" 2024-02-01
//	S8 "Lee":        rental "Kim's wheelchair" 2024-02-02
func seedStore() *memory.Store {
	store := memory.NewStore()
	store.AddClient(domain.Client{ID: "C1", Name: "Park Jiwoo"})
	store.AddClient(domain.Client{ID: "S7", Name: "Kim Minsu"})
	store.AddClient(domain.Client{ID: "S8", Name: "Lee"})

	created := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	store.AddConsultation(domain.Consultation{ID: "cons-1", ClientID: "C1", ActorID: "staff-1", Date: day("2024-01-01"), Title: "Intake interview", Content: "first visit", CreatedAt: created})
	store.AddConsultation(domain.Consultation{ID: "cons-2", ClientID: "C1", ActorID: "staff-2", Date: day("2024-01-10"), Title: "Follow-up call", Content: "checked seating", CreatedAt: created})
	store.AddRental(domain.Rental{ID: "rent-1", ClientID: "C1", ActorID: "staff-1", Date: day("2024-01-05"), Title: "Walker", Quantity: 1, Status: "active", CreatedAt: created})
	store.AddSchedule(domain.Schedule{ID: "sch-1", ClientID: "S7", ActorID: "staff-1", Kind: "fitting", Title: "Fitting", StartsAt: time.Date(2024, 2, 1, 14, 0, 0, 0, time.UTC), CreatedAt: created})
	store.AddRental(domain.Rental{ID: "rent-2", ClientID: "S8", ActorID: "staff-2", Date: day("2024-02-02"), Title: "Kim's wheelchair", Quantity: 1, Status: "active", CreatedAt: created})
	return store
}

func newTestService(store *memory.Store, directory domain.ClientDirectory, providers []Provider, sink AuditSink) *Service {
	if directory == nil {
		directory = store
	}
	if providers == nil {
		providers = NewProviders(store, SourceOptions{})
	}
	dispatcher := NewDispatcher(providers, NewDirectoryResolver(directory), nil)
	return NewService(dispatcher, directory, allowAll{}, sink)
}

func searchFilter(query string) Filter {
	return Filter{Query: query, ActivityType: TypeAll, Page: 1, Limit: 25}
}

func clientFilter(clientID string) Filter {
	return Filter{ClientID: clientID, ActivityType: TypeAll, Page: 1, Limit: 10}
}
