// Package persistence contains helpers shared by the SQL record stores.
package persistence

import (
	"strconv"
	"strings"
	"time"

	"example.com/casefeed/internal/domain"
)

// Placeholder renders the n-th (1-based) bind parameter for a driver.
type Placeholder func(n int) string

// Dollar renders Postgres-style placeholders.
func Dollar(n int) string { return "$" + strconv.Itoa(n) }

// Question renders SQLite-style placeholders.
func Question(int) string { return "?" }

// Table describes one case record table.
type Table struct {
	Name    string
	Columns string
	// DateColumn orders and bounds the rows.
	DateColumn string
	// Timestamp is set when DateColumn holds instants rather than calendar days.
	Timestamp bool
	// KindColumn is set for tables partitioned by kind.
	KindColumn string
}

// Record tables, with columns in the order the stores scan them.
var (
	Consultations = Table{
		Name:       "consultations",
		Columns:    "id, client_id, actor_id, date, title, content, method, status, created_at",
		DateColumn: "date",
	}
	Assessments = Table{
		Name:       "assessments",
		Columns:    "id, client_id, actor_id, date, title, category, summary, score, created_at",
		DateColumn: "date",
	}
	Customizations = Table{
		Name:       "customization_requests",
		Columns:    "id, client_id, actor_id, date, title, description, device, status, created_at",
		DateColumn: "date",
	}
	Rentals = Table{
		Name:       "rentals",
		Columns:    "id, client_id, actor_id, date, title, description, quantity, status, due_date, created_at",
		DateColumn: "date",
	}
	Schedules = Table{
		Name:       "schedules",
		Columns:    "id, client_id, actor_id, kind, title, memo, location, starts_at, ends_at, created_at",
		DateColumn: "starts_at",
		Timestamp:  true,
		KindColumn: "kind",
	}
)

// Encoder converts a bound into the driver's representation of the bounded column.
type Encoder interface {
	Day(t time.Time) any
	Instant(t time.Time) any
}

// Select builds the filtered query for t. Day bounds are inclusive; instant bounds cover
// [From, To+1d).
func Select(t Table, q domain.RecordQuery, ph Placeholder, enc Encoder) (string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		where = append(where, strings.Replace(clause, "?", ph(len(args)), 1))
	}

	if q.ClientID != "" {
		add("client_id = ?", q.ClientID)
	}
	if q.ActorID != "" {
		add("actor_id = ?", q.ActorID)
	}
	if t.KindColumn != "" && q.ScheduleKind != "" {
		add(t.KindColumn+" = ?", q.ScheduleKind)
	}
	if q.From != nil {
		if t.Timestamp {
			add(t.DateColumn+" >= ?", enc.Instant(*q.From))
		} else {
			add(t.DateColumn+" >= ?", enc.Day(*q.From))
		}
	}
	if q.To != nil {
		if t.Timestamp {
			add(t.DateColumn+" < ?", enc.Instant(q.To.AddDate(0, 0, 1)))
		} else {
			add(t.DateColumn+" <= ?", enc.Day(*q.To))
		}
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(t.Columns)
	b.WriteString(" FROM ")
	b.WriteString(t.Name)
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY ")
	b.WriteString(t.DateColumn)
	b.WriteString(" DESC, created_at DESC, id")
	if q.Limit > 0 {
		args = append(args, q.Limit)
		b.WriteString(" LIMIT ")
		b.WriteString(ph(len(args)))
	}
	return b.String(), args
}

// In renders an IN list for n values starting at placeholder offset+1.
func In(n, offset int, ph Placeholder) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = ph(offset + i + 1)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// CivilDay returns midnight UTC of t's calendar date in its own location.
func CivilDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Unique drops empty and duplicate ids, preserving order.
func Unique(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
