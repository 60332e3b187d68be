package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/openoutings/outings/internal/domain/model"
)

// MatchesHandler serves buddy and similar-event recommendations.
type MatchesHandler struct {
	deps MatchDependencies
}

// NewMatchesHandler creates a new matches handler.
func NewMatchesHandler(deps MatchDependencies) *MatchesHandler {
	return &MatchesHandler{deps: deps}
}

type buddiesResponse struct {
	EventID string                 `json:"event_id"`
	UserID  string                 `json:"user_id"`
	Matches []model.PotentialMatch `json:"matches"`
}

type similarResponse struct {
	EventID string              `json:"event_id"`
	Events  []model.ScoredEvent `json:"events"`
}

// HandleGetBuddies handles GET /events/{id}/buddies?user_id=.
func (h *MatchesHandler) HandleGetBuddies(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_buddies"
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		writeError(w, WrapKind(op, ErrBadRequest, errors.New("missing user_id")))
		return
	}

	matches, err := h.deps.BuddyMatches(r.Context(), id, userID)
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	if matches == nil {
		matches = []model.PotentialMatch{}
	}
	writeJSON(w, http.StatusOK, buddiesResponse{EventID: id, UserID: userID, Matches: matches})
}

// HandleGetSimilar handles GET /events/{id}/similar?limit=. An absent limit
// selects the service maximum.
func (h *MatchesHandler) HandleGetSimilar(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_similar"
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}

	events, err := h.deps.SimilarEvents(r.Context(), id, limit)
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	if events == nil {
		events = []model.ScoredEvent{}
	}
	writeJSON(w, http.StatusOK, similarResponse{EventID: id, Events: events})
}

func parseLimit(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, errors.New("limit must be a positive integer")
	}
	return n, nil
}
