// Package postgres reads case records from Postgres.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/casefeed/internal/domain"
	"example.com/casefeed/internal/persistence"
)

// Repository implements domain.RecordStore and domain.ClientDirectory on a pgx pool.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type encoder struct{}

func (encoder) Day(t time.Time) any     { return persistence.CivilDay(t) }
func (encoder) Instant(t time.Time) any { return t.UTC() }

// readOnly runs fn inside a read-only transaction so every finder sees one snapshot.
func (r *Repository) readOnly(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func collect[T any](ctx context.Context, r *Repository, table persistence.Table, q domain.RecordQuery, scan func(pgx.Rows) (T, error)) ([]T, error) {
	query, args := persistence.Select(table, q, persistence.Dollar, encoder{})
	var results []T
	err := r.readOnly(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		results = make([]T, 0)
		for rows.Next() {
			item, err := scan(rows)
			if err != nil {
				return err
			}
			results = append(results, item)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// FindConsultations implements domain.RecordStore.
func (r *Repository) FindConsultations(ctx context.Context, q domain.RecordQuery) ([]domain.Consultation, error) {
	return collect(ctx, r, persistence.Consultations, q, func(rows pgx.Rows) (domain.Consultation, error) {
		var c domain.Consultation
		err := rows.Scan(&c.ID, &c.ClientID, &c.ActorID, &c.Date, &c.Title, &c.Content, &c.Method, &c.Status, &c.CreatedAt)
		return c, err
	})
}

// FindAssessments implements domain.RecordStore.
func (r *Repository) FindAssessments(ctx context.Context, q domain.RecordQuery) ([]domain.Assessment, error) {
	return collect(ctx, r, persistence.Assessments, q, func(rows pgx.Rows) (domain.Assessment, error) {
		var a domain.Assessment
		err := rows.Scan(&a.ID, &a.ClientID, &a.ActorID, &a.Date, &a.Title, &a.Category, &a.Summary, &a.Score, &a.CreatedAt)
		return a, err
	})
}

// FindCustomizations implements domain.RecordStore.
func (r *Repository) FindCustomizations(ctx context.Context, q domain.RecordQuery) ([]domain.CustomizationRequest, error) {
	return collect(ctx, r, persistence.Customizations, q, func(rows pgx.Rows) (domain.CustomizationRequest, error) {
		var c domain.CustomizationRequest
		err := rows.Scan(&c.ID, &c.ClientID, &c.ActorID, &c.Date, &c.Title, &c.Description, &c.Device, &c.Status, &c.CreatedAt)
		return c, err
	})
}

// FindRentals implements domain.RecordStore.
func (r *Repository) FindRentals(ctx context.Context, q domain.RecordQuery) ([]domain.Rental, error) {
	return collect(ctx, r, persistence.Rentals, q, func(rows pgx.Rows) (domain.Rental, error) {
		var rent domain.Rental
		err := rows.Scan(&rent.ID, &rent.ClientID, &rent.ActorID, &rent.Date, &rent.Title, &rent.Description, &rent.Quantity, &rent.Status, &rent.DueDate, &rent.CreatedAt)
		return rent, err
	})
}

// FindSchedules implements domain.RecordStore.
func (r *Repository) FindSchedules(ctx context.Context, q domain.RecordQuery) ([]domain.Schedule, error) {
	return collect(ctx, r, persistence.Schedules, q, func(rows pgx.Rows) (domain.Schedule, error) {
		var s domain.Schedule
		err := rows.Scan(&s.ID, &s.ClientID, &s.ActorID, &s.Kind, &s.Title, &s.Memo, &s.Location, &s.StartsAt, &s.EndsAt, &s.CreatedAt)
		return s, err
	})
}

// FindClients implements domain.ClientDirectory. Names are matched with the same case
// folding the feed applies to record text.
func (r *Repository) FindClients(ctx context.Context, ids []string, nameContains string) ([]domain.Client, error) {
	ids = persistence.Unique(ids)
	if len(ids) == 0 {
		return []domain.Client{}, nil
	}

	const query = `SELECT id, name, created_at FROM clients WHERE id = ANY($1) ORDER BY id`

	var clients []domain.Client
	err := r.readOnly(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, ids)
		if err != nil {
			return err
		}
		defer rows.Close()

		clients = make([]domain.Client, 0, len(ids))
		for rows.Next() {
			var c domain.Client
			if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt); err != nil {
				return err
			}
			if domain.ContainsFold(c.Name, nameContains) {
				clients = append(clients, c)
			}
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return clients, nil
}

// GetClient implements domain.ClientDirectory.
func (r *Repository) GetClient(ctx context.Context, id string) (*domain.Client, error) {
	const query = `SELECT id, name, created_at FROM clients WHERE id = $1`

	var c domain.Client
	err := r.readOnly(ctx, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, query, id).Scan(&c.ID, &c.Name, &c.CreatedAt)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrClientNotFound
		}
		return nil, err
	}
	return &c, nil
}

// Ping verifies the pool can reach the database.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
