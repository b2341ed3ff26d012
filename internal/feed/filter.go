package feed

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var scheduleKindPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// FilterInput is the raw, unvalidated request input.
type FilterInput struct {
	Query        string
	ActivityType string
	StartDate    string
	EndDate      string
	ActorID      string
	ClientID     string
	Page         string
	Limit        string
}

// Limits bounds and defaults page sizes.
type Limits struct {
	DefaultLimit int
	MaxLimit     int
	// Location interprets calendar dates. Nil means UTC.
	Location *time.Location
}

// ParseFilter validates the raw input. A limit above MaxLimit is clamped rather than rejected.
func ParseFilter(in FilterInput, limits Limits) (Filter, error) {
	loc := limits.Location
	if loc == nil {
		loc = time.UTC
	}
	verr := &ValidationError{}
	f := Filter{
		Query:    strings.TrimSpace(in.Query),
		ActorID:  strings.TrimSpace(in.ActorID),
		ClientID: strings.TrimSpace(in.ClientID),
		Page:     1,
		Limit:    limits.DefaultLimit,
	}

	activityType, ok := parseActivityType(in.ActivityType)
	if !ok {
		verr.add("activity_type", "must be one of all, consultation, assessment, customization, rental, schedule or schedule_<kind>")
	}
	f.ActivityType = activityType

	if from, err := parseDate(in.StartDate, loc); err != nil {
		verr.add("start_date", "must be a YYYY-MM-DD date")
	} else {
		f.From = from
	}
	if to, err := parseDate(in.EndDate, loc); err != nil {
		verr.add("end_date", "must be a YYYY-MM-DD date")
	} else {
		f.To = to
	}
	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		verr.add("end_date", "must not be before start_date")
	}

	if raw := strings.TrimSpace(in.Page); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			verr.add("page", "must be a positive integer")
		} else {
			f.Page = page
		}
	}
	if raw := strings.TrimSpace(in.Limit); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			verr.add("limit", "must be a positive integer")
		} else {
			f.Limit = limit
		}
	}
	if limits.MaxLimit > 0 && f.Limit > limits.MaxLimit {
		f.Limit = limits.MaxLimit
	}

	if err := verr.orNil(); err != nil {
		return Filter{}, err
	}
	return f, nil
}

func parseActivityType(raw string) (string, bool) {
	value := strings.ToLower(strings.TrimSpace(raw))
	switch value {
	case "", TypeAll:
		return TypeAll, true
	case TypeConsultation, TypeAssessment, TypeCustomization, TypeRental, TypeSchedule:
		return value, true
	}
	if kind, ok := strings.CutPrefix(value, SchedulePrefix); ok && scheduleKindPattern.MatchString(kind) {
		return value, true
	}
	return "", false
}

func parseDate(raw string, loc *time.Location) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.ParseInLocation(time.DateOnly, raw, loc)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}
