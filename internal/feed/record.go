// Package feed unifies case records of every kind into one chronologically ordered,
// filterable and paginated activity feed.
package feed

import (
	"strings"
	"time"
)

// Base activity types. Schedules are emitted as SchedulePrefix + kind.
const (
	TypeConsultation  = "consultation"
	TypeAssessment    = "assessment"
	TypeCustomization = "customization"
	TypeRental        = "rental"
	TypeSchedule      = "schedule"

	// TypeAll selects every provider.
	TypeAll = "all"

	SchedulePrefix = TypeSchedule + "_"
)

// BaseTypes lists the base types in dispatch order.
var BaseTypes = []string{TypeConsultation, TypeAssessment, TypeCustomization, TypeRental, TypeSchedule}

// ScheduleType returns the namespaced activity type for a schedule kind.
func ScheduleType(kind string) string {
	return SchedulePrefix + kind
}

// BaseType collapses schedule sub-types into TypeSchedule.
func BaseType(activityType string) string {
	if strings.HasPrefix(activityType, SchedulePrefix) {
		return TypeSchedule
	}
	return activityType
}

// ActivityRecord is the unified projection of one case record.
// ID is unique within Type only. Date is a calendar date held as UTC midnight.
type ActivityRecord struct {
	ID          string
	Type        string
	Title       string
	Date        time.Time
	ClientID    string
	ClientName  string
	Metadata    map[string]any
	CreatedAt   time.Time
	searchable  []string
	textMatched bool
}

// DateString renders the calendar date.
func (r ActivityRecord) DateString() string {
	return r.Date.Format(time.DateOnly)
}

// Mode distinguishes the two feed shapes.
type Mode string

const (
	ModeClient Mode = "client"
	ModeSearch Mode = "search"
)

// Filter is the immutable, validated request input shared by every provider.
type Filter struct {
	Query string
	// ActivityType is TypeAll, a base type, or a schedule sub-type.
	ActivityType string
	From         *time.Time
	To           *time.Time
	ActorID      string
	ClientID     string
	Page         int
	Limit        int
}

// Mode reports whether the filter is scoped to a client or searches across clients.
func (f Filter) Mode() Mode {
	if f.ClientID != "" {
		return ModeClient
	}
	return ModeSearch
}

// PageMeta describes the pagination window.
type PageMeta struct {
	Page       int
	Limit      int
	Total      int
	TotalPages int
}

// Page is the response envelope.
type Page struct {
	Data       []ActivityRecord
	Pagination PageMeta
	// Grouped is nil in client mode.
	Grouped          map[string]int
	Partial          bool
	FailedSources    []string
	TruncatedSources []string
}
