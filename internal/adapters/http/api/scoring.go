package api

import (
	"net/http"

	"github.com/openoutings/outings/internal/adapters/repository"
	"github.com/openoutings/outings/internal/domain/model"
)

// ScoringHandler scores records supplied in the request body.
type ScoringHandler struct {
	deps ScoringDependencies
}

// NewScoringHandler creates a new scoring handler.
func NewScoringHandler(deps ScoringDependencies) *ScoringHandler {
	return &ScoringHandler{deps: deps}
}

type scoreBuddiesRequest struct {
	Requester  repository.ProfileRow   `json:"requester"`
	Candidates []repository.ProfileRow `json:"candidates"`
}

type scoreEventsRequest struct {
	Reference  repository.EventRow   `json:"reference"`
	Candidates []repository.EventRow `json:"candidates"`
	Limit      int                   `json:"limit,omitempty"`
}

// HandleScoreBuddies handles POST /score/buddies.
func (h *ScoringHandler) HandleScoreBuddies(w http.ResponseWriter, r *http.Request) {
	const op = "api.score_buddies"
	var req scoreBuddiesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	matches, err := h.deps.ScoreBuddies(r.Context(), req.Requester, req.Candidates)
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	if matches == nil {
		matches = []model.PotentialMatch{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"matches": matches})
}

// HandleScoreEvents handles POST /score/events.
func (h *ScoringHandler) HandleScoreEvents(w http.ResponseWriter, r *http.Request) {
	const op = "api.score_events"
	var req scoreEventsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if req.Limit < 0 {
		writeError(w, NewKind(op, ErrBadRequest))
		return
	}
	events, err := h.deps.ScoreEvents(r.Context(), req.Reference, req.Candidates, req.Limit)
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	if events == nil {
		events = []model.ScoredEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}
