// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/openoutings/outings/internal/adapters/repository"
	"github.com/openoutings/outings/internal/domain/model"
	"github.com/openoutings/outings/pkg/logger"
)

const maxBodyBytes = 1 << 20

// ProfileDependencies stores and reads user profiles.
type ProfileDependencies interface {
	UpsertProfile(ctx context.Context, p repository.ProfileRow) error
	Profile(ctx context.Context, userID string) (model.UserForMatching, error)
}

// EventDependencies stores events and attendance.
type EventDependencies interface {
	UpsertEvent(ctx context.Context, e repository.EventRow) error
	RefreshEvent(ctx context.Context, eventID string) error
	JoinEvent(ctx context.Context, eventID, userID string) error
	LeaveEvent(ctx context.Context, eventID, userID string) error
}

// MatchDependencies serves stored-record recommendations.
type MatchDependencies interface {
	BuddyMatches(ctx context.Context, eventID, userID string) ([]model.PotentialMatch, error)
	SimilarEvents(ctx context.Context, eventID string, limit int) ([]model.ScoredEvent, error)
}

// ScoringDependencies scores caller-supplied records.
type ScoringDependencies interface {
	ScoreBuddies(ctx context.Context, requester repository.ProfileRow, candidates []repository.ProfileRow) ([]model.PotentialMatch, error)
	ScoreEvents(ctx context.Context, reference repository.EventRow, candidates []repository.EventRow, limit int) ([]model.ScoredEvent, error)
}

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	ProfileDependencies
	EventDependencies
	MatchDependencies
	ScoringDependencies
	StatsProvider
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	profilesHandler *ProfilesHandler
	eventsHandler   *EventsHandler
	matchesHandler  *MatchesHandler
	scoringHandler  *ScoringHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(deps),
		profilesHandler: NewProfilesHandler(deps),
		eventsHandler:   NewEventsHandler(deps),
		matchesHandler:  NewMatchesHandler(deps),
		scoringHandler:  NewScoringHandler(deps),
	}
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(_ context.Context, r chi.Router) {
	r.Get("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	r.Get("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	r.Put("/profiles/{id}", MetricsMiddleware(s.profilesHandler.HandlePutProfile, "profiles"))
	r.Get("/profiles/{id}", MetricsMiddleware(s.profilesHandler.HandleGetProfile, "profiles"))

	r.Put("/events/{id}", MetricsMiddleware(s.eventsHandler.HandlePutEvent, "events"))
	r.Post("/events/{id}/refresh", MetricsMiddleware(s.eventsHandler.HandleRefresh, "refresh"))
	r.Post("/events/{id}/attendees", MetricsMiddleware(s.eventsHandler.HandleJoin, "attendees"))
	r.Delete("/events/{id}/attendees/{userID}", MetricsMiddleware(s.eventsHandler.HandleLeave, "attendees"))
	r.Get("/events/{id}/buddies", MetricsMiddleware(s.matchesHandler.HandleGetBuddies, "buddies"))
	r.Get("/events/{id}/similar", MetricsMiddleware(s.matchesHandler.HandleGetSimilar, "similar"))

	r.Post("/score/buddies", MetricsMiddleware(s.scoringHandler.HandleScoreBuddies, "score_buddies"))
	r.Post("/score/events", MetricsMiddleware(s.scoringHandler.HandleScoreEvents, "score_events"))
}

// RouterOption configures NewRouter.
type RouterOption func(*routerConfig)

type routerConfig struct {
	origins []string
	log     logger.Logger
}

// WithAllowedOrigins sets the CORS origins. An empty list disables CORS.
func WithAllowedOrigins(origins ...string) RouterOption {
	return func(c *routerConfig) {
		c.origins = origins
	}
}

// WithRequestLogger logs every request at debug level.
func WithRequestLogger(l logger.Logger) RouterOption {
	return func(c *routerConfig) {
		c.log = l
	}
}

// NewRouter returns a chi router with the shared middleware stack installed.
func NewRouter(opts ...RouterOption) *chi.Mux {
	cfg := &routerConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if cfg.log != nil {
		r.Use(RequestLogger(cfg.log))
	}
	r.Use(middleware.Recoverer)
	if len(cfg.origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.origins,
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
			ExposedHeaders: []string{"X-Request-Id"},
			MaxAge:         300,
		}))
	}
	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError sends err with the status its kind maps to. Unclassified errors
// are logged and answered with the bare status text.
func writeError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	msg := http.StatusText(status)
	if status == http.StatusInternalServerError {
		logger.Named("http").Error(context.Background(), "request failed", logger.Error(err))
	} else if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// decodeJSON reads a single JSON document of at most maxBodyBytes into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return fmt.Errorf("body exceeds %d bytes", mbe.Limit)
		}
		return err
	}
	if dec.More() {
		return errors.New("body must contain a single JSON document")
	}
	return nil
}

// pathID returns the trimmed URL parameter name or an error if it is blank.
func pathID(r *http.Request, name string) (string, error) {
	v := strings.TrimSpace(chi.URLParam(r, name))
	if v == "" {
		return "", fmt.Errorf("missing %s", name)
	}
	return v, nil
}
