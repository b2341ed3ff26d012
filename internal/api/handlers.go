// Package api exposes the activity feed over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"example.com/casefeed/internal/auth"
	"example.com/casefeed/internal/domain"
	"example.com/casefeed/internal/feed"
	"example.com/casefeed/internal/observability"
)

// Feeder assembles activity feeds.
type Feeder interface {
	Feed(ctx context.Context, actor feed.Actor, f feed.Filter) (*feed.Page, error)
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler coordinates HTTP requests with the feed service.
type Handler struct {
	feeds  Feeder
	limits feed.Limits
	ready  Pinger
	logger *zap.Logger
}

// Option configures optional behaviour for the Handler.
type Option func(*Handler)

// WithLogger overrides the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithReadiness makes /readyz ping p.
func WithReadiness(p Pinger) Option {
	return func(h *Handler) {
		h.ready = p
	}
}

// NewHandler builds a Handler.
func NewHandler(feeds Feeder, limits feed.Limits, opts ...Option) *Handler {
	h := &Handler{feeds: feeds, limits: limits, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/activities", h.searchActivities)
	mux.HandleFunc("GET /v1/clients/{clientID}/activities", h.clientActivities)
	mux.HandleFunc("GET /healthz", healthz)
	mux.HandleFunc("GET /readyz", h.readyz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.ready.Ping(ctx); err != nil {
			h.logger.Warn("readiness check failed", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "not_ready", "store unreachable")
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (h *Handler) searchActivities(w http.ResponseWriter, r *http.Request) {
	in := filterInput(r)
	h.serveFeed(w, r, in)
}

func (h *Handler) clientActivities(w http.ResponseWriter, r *http.Request) {
	in := filterInput(r)
	in.ClientID = r.PathValue("clientID")
	h.serveFeed(w, r, in)
}

func filterInput(r *http.Request) feed.FilterInput {
	q := r.URL.Query()
	return feed.FilterInput{
		Query:        q.Get("query"),
		ActivityType: q.Get("activity_type"),
		StartDate:    q.Get("start_date"),
		EndDate:      q.Get("end_date"),
		ActorID:      q.Get("actor_id"),
		Page:         q.Get("page"),
		Limit:        q.Get("limit"),
	}
}

func (h *Handler) serveFeed(w http.ResponseWriter, r *http.Request, in feed.FilterInput) {
	var actor feed.Actor
	if claims, ok := auth.FromContext(r.Context()); ok {
		actor = feed.Actor{ID: claims.Subject, Role: claims.Role}
	}
	if actor.ID == "" {
		writeFeedError(w, feed.ErrUnauthorized)
		return
	}

	f, err := feed.ParseFilter(in, h.limits)
	if err != nil {
		writeFeedError(w, err)
		return
	}

	page, err := h.feeds.Feed(r.Context(), actor, f)
	if err != nil {
		if status, _, _ := classify(err); status == http.StatusInternalServerError {
			h.logger.Error("activity feed failed", zap.String("actor_id", actor.ID), zap.String("client_id", f.ClientID), zap.Error(err))
		}
		writeFeedError(w, err)
		return
	}

	observability.RecordFeedServed(time.Now())
	if f.Mode() == feed.ModeSearch {
		writeJSON(w, http.StatusOK, SearchResponse{FeedResponse: toFeedResponse(page), Grouped: grouped(page.Grouped)})
		return
	}
	writeJSON(w, http.StatusOK, toFeedResponse(page))
}

// classify maps the feed error taxonomy onto HTTP.
func classify(err error) (status int, code, detail string) {
	var verr *feed.ValidationError
	switch {
	case errors.Is(err, feed.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized", "a verified actor is required"
	case errors.Is(err, feed.ErrForbidden):
		return http.StatusForbidden, "forbidden", "role may not read activity feeds"
	case errors.As(err, &verr):
		return http.StatusBadRequest, "validation_failed", "invalid filter"
	case errors.Is(err, domain.ErrClientNotFound):
		return http.StatusNotFound, "not_found", "client not found"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout", "activity feed timed out"
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, "request_cancelled", "request cancelled"
	default:
		return http.StatusInternalServerError, "server_error", "activity feed unavailable"
	}
}

func writeFeedError(w http.ResponseWriter, err error) {
	status, code, detail := classify(err)
	var verr *feed.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, status, ErrorResponse{Type: code, Detail: detail, Fields: verr.Fields})
		return
	}
	writeError(w, status, code, detail)
}

func grouped(counts map[string]int) map[string]int {
	if counts == nil {
		return map[string]int{}
	}
	return counts
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	writeJSON(w, status, ErrorResponse{Type: code, Detail: detail})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
