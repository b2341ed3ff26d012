// Package sqlite reads case records from an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"example.com/casefeed/internal/domain"
	"example.com/casefeed/internal/persistence"
	"example.com/casefeed/internal/persistence/sqlite/migrations"
)

// Store implements domain.RecordStore and domain.ClientDirectory on SQLite.
type Store struct {
	sqlDB *sql.DB
}

// Open opens and migrates a SQLite store at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := filepath.Clean(path) + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{sqlDB: sqlDB}
	if err := store.runMigrations(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.sqlDB.PingContext(ctx)
}

func (s *Store) runMigrations() error {
	if _, err := s.sqlDB.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (name TEXT PRIMARY KEY, applied_at INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}
	names, err := fs.Glob(migrations.FS, "*.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)

	for _, name := range names {
		var applied int
		if err := s.sqlDB.QueryRow(`SELECT COUNT(1) FROM schema_migrations WHERE name = ?`, name).Scan(&applied); err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if applied > 0 {
			continue
		}
		body, err := fs.ReadFile(migrations.FS, name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		tx, err := s.sqlDB.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(string(body)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations (name, applied_at) VALUES (?, ?)`, name, time.Now().UTC().UnixMilli()); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

type encoder struct{}

func (encoder) Day(t time.Time) any     { return dayToText(t) }
func (encoder) Instant(t time.Time) any { return t.UTC().UnixMilli() }

func dayToText(t time.Time) string {
	return persistence.CivilDay(t).Format(time.DateOnly)
}

func textToDay(value string) (time.Time, error) {
	return time.ParseInLocation(time.DateOnly, value, time.UTC)
}

func unixMillisToTime(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func collect[T any](ctx context.Context, s *Store, table persistence.Table, q domain.RecordQuery, scan func(*sql.Rows) (T, error)) ([]T, error) {
	query, args := persistence.Select(table, q, persistence.Question, encoder{})
	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table.Name, err)
	}
	defer rows.Close()

	results := make([]T, 0)
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", table.Name, err)
		}
		results = append(results, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// FindConsultations implements domain.RecordStore.
func (s *Store) FindConsultations(ctx context.Context, q domain.RecordQuery) ([]domain.Consultation, error) {
	return collect(ctx, s, persistence.Consultations, q, func(rows *sql.Rows) (domain.Consultation, error) {
		var (
			c         domain.Consultation
			date      string
			createdAt int64
		)
		if err := rows.Scan(&c.ID, &c.ClientID, &c.ActorID, &date, &c.Title, &c.Content, &c.Method, &c.Status, &createdAt); err != nil {
			return c, err
		}
		var err error
		c.Date, err = textToDay(date)
		c.CreatedAt = unixMillisToTime(createdAt)
		return c, err
	})
}

// FindAssessments implements domain.RecordStore.
func (s *Store) FindAssessments(ctx context.Context, q domain.RecordQuery) ([]domain.Assessment, error) {
	return collect(ctx, s, persistence.Assessments, q, func(rows *sql.Rows) (domain.Assessment, error) {
		var (
			a         domain.Assessment
			date      string
			score     sql.NullInt64
			createdAt int64
		)
		if err := rows.Scan(&a.ID, &a.ClientID, &a.ActorID, &date, &a.Title, &a.Category, &a.Summary, &score, &createdAt); err != nil {
			return a, err
		}
		if score.Valid {
			v := int(score.Int64)
			a.Score = &v
		}
		var err error
		a.Date, err = textToDay(date)
		a.CreatedAt = unixMillisToTime(createdAt)
		return a, err
	})
}

// FindCustomizations implements domain.RecordStore.
func (s *Store) FindCustomizations(ctx context.Context, q domain.RecordQuery) ([]domain.CustomizationRequest, error) {
	return collect(ctx, s, persistence.Customizations, q, func(rows *sql.Rows) (domain.CustomizationRequest, error) {
		var (
			c         domain.CustomizationRequest
			date      string
			createdAt int64
		)
		if err := rows.Scan(&c.ID, &c.ClientID, &c.ActorID, &date, &c.Title, &c.Description, &c.Device, &c.Status, &createdAt); err != nil {
			return c, err
		}
		var err error
		c.Date, err = textToDay(date)
		c.CreatedAt = unixMillisToTime(createdAt)
		return c, err
	})
}

// FindRentals implements domain.RecordStore.
func (s *Store) FindRentals(ctx context.Context, q domain.RecordQuery) ([]domain.Rental, error) {
	return collect(ctx, s, persistence.Rentals, q, func(rows *sql.Rows) (domain.Rental, error) {
		var (
			r         domain.Rental
			date      string
			dueDate   sql.NullString
			createdAt int64
		)
		if err := rows.Scan(&r.ID, &r.ClientID, &r.ActorID, &date, &r.Title, &r.Description, &r.Quantity, &r.Status, &dueDate, &createdAt); err != nil {
			return r, err
		}
		d, err := textToDay(date)
		if err != nil {
			return r, err
		}
		r.Date = d
		if dueDate.Valid {
			due, err := textToDay(dueDate.String)
			if err != nil {
				return r, err
			}
			r.DueDate = &due
		}
		r.CreatedAt = unixMillisToTime(createdAt)
		return r, nil
	})
}

// FindSchedules implements domain.RecordStore.
func (s *Store) FindSchedules(ctx context.Context, q domain.RecordQuery) ([]domain.Schedule, error) {
	return collect(ctx, s, persistence.Schedules, q, func(rows *sql.Rows) (domain.Schedule, error) {
		var (
			sc        domain.Schedule
			startsAt  int64
			endsAt    sql.NullInt64
			createdAt int64
		)
		if err := rows.Scan(&sc.ID, &sc.ClientID, &sc.ActorID, &sc.Kind, &sc.Title, &sc.Memo, &sc.Location, &startsAt, &endsAt, &createdAt); err != nil {
			return sc, err
		}
		sc.StartsAt = unixMillisToTime(startsAt)
		if endsAt.Valid {
			end := unixMillisToTime(endsAt.Int64)
			sc.EndsAt = &end
		}
		sc.CreatedAt = unixMillisToTime(createdAt)
		return sc, nil
	})
}

// FindClients implements domain.ClientDirectory.
func (s *Store) FindClients(ctx context.Context, ids []string, nameContains string) ([]domain.Client, error) {
	ids = persistence.Unique(ids)
	if len(ids) == 0 {
		return []domain.Client{}, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := `SELECT id, name, created_at FROM clients WHERE id IN ` + persistence.In(len(ids), 0, persistence.Question) + ` ORDER BY id`
	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query clients: %w", err)
	}
	defer rows.Close()

	clients := make([]domain.Client, 0, len(ids))
	for rows.Next() {
		var (
			c         domain.Client
			createdAt int64
		)
		if err := rows.Scan(&c.ID, &c.Name, &createdAt); err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		c.CreatedAt = unixMillisToTime(createdAt)
		if domain.ContainsFold(c.Name, nameContains) {
			clients = append(clients, c)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return clients, nil
}

// GetClient implements domain.ClientDirectory.
func (s *Store) GetClient(ctx context.Context, id string) (*domain.Client, error) {
	var (
		c         domain.Client
		createdAt int64
	)
	err := s.sqlDB.QueryRowContext(ctx, `SELECT id, name, created_at FROM clients WHERE id = ?`, id).Scan(&c.ID, &c.Name, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrClientNotFound
		}
		return nil, fmt.Errorf("get client: %w", err)
	}
	c.CreatedAt = unixMillisToTime(createdAt)
	return &c, nil
}
