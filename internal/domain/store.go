package domain

import (
	"context"
	"errors"
	"time"
)

// ErrClientNotFound is returned when a client cannot be located.
var ErrClientNotFound = errors.New("client not found")

// RecordQuery is the predicate every record finder accepts. Zero values disable a clause.
// From and To are inclusive calendar dates; stores compare schedule start times against
// [From, To+1d) in the location carried by the dates.
type RecordQuery struct {
	ClientID     string
	ActorID      string
	From         *time.Time
	To           *time.Time
	ScheduleKind string
	Limit        int
}

// RecordStore finds case records. Every finder returns rows ordered by date descending,
// then created_at descending.
type RecordStore interface {
	FindConsultations(ctx context.Context, q RecordQuery) ([]Consultation, error)
	FindAssessments(ctx context.Context, q RecordQuery) ([]Assessment, error)
	FindCustomizations(ctx context.Context, q RecordQuery) ([]CustomizationRequest, error)
	FindRentals(ctx context.Context, q RecordQuery) ([]Rental, error)
	FindSchedules(ctx context.Context, q RecordQuery) ([]Schedule, error)
}

// ClientDirectory resolves clients.
type ClientDirectory interface {
	// FindClients returns the clients among ids whose name contains nameContains,
	// case-insensitively. An empty nameContains returns every client in ids.
	FindClients(ctx context.Context, ids []string, nameContains string) ([]Client, error)
	// GetClient returns ErrClientNotFound when the id is unknown.
	GetClient(ctx context.Context, id string) (*Client, error)
}
