package api

import (
	"time"

	"example.com/casefeed/internal/feed"
)

// ActivityView is one feed entry.
type ActivityView struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Title      string         `json:"title"`
	Date       string         `json:"date"`
	ClientID   string         `json:"client_id"`
	ClientName string         `json:"client_name"`
	Metadata   map[string]any `json:"metadata"`
	CreatedAt  time.Time      `json:"created_at"`
}

// PaginationView describes the returned window.
type PaginationView struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// FeedResponse is the body of GET /v1/clients/{clientID}/activities.
type FeedResponse struct {
	Data             []ActivityView `json:"data"`
	Pagination       PaginationView `json:"pagination"`
	Partial          bool           `json:"partial"`
	FailedSources    []string       `json:"failedSources,omitempty"`
	TruncatedSources []string       `json:"truncatedSources,omitempty"`
}

// SearchResponse is the body of GET /v1/activities.
type SearchResponse struct {
	FeedResponse
	Grouped map[string]int `json:"grouped"`
}

// ErrorResponse is every non-2xx body. Fields is set only for validation failures.
type ErrorResponse struct {
	Type   string            `json:"type"`
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields,omitempty"`
}

func toFeedResponse(page *feed.Page) FeedResponse {
	data := make([]ActivityView, 0, len(page.Data))
	for _, rec := range page.Data {
		data = append(data, toActivityView(rec))
	}
	return FeedResponse{
		Data: data,
		Pagination: PaginationView{
			Page:       page.Pagination.Page,
			Limit:      page.Pagination.Limit,
			Total:      page.Pagination.Total,
			TotalPages: page.Pagination.TotalPages,
		},
		Partial:          page.Partial,
		FailedSources:    page.FailedSources,
		TruncatedSources: page.TruncatedSources,
	}
}

func toActivityView(rec feed.ActivityRecord) ActivityView {
	meta := rec.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	return ActivityView{
		ID:         rec.ID,
		Type:       rec.Type,
		Title:      rec.Title,
		Date:       rec.DateString(),
		ClientID:   rec.ClientID,
		ClientName: rec.ClientName,
		Metadata:   meta,
		CreatedAt:  rec.CreatedAt,
	}
}
