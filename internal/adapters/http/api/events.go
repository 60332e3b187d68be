package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/openoutings/outings/internal/adapters/repository"
)

// EventsHandler handles event and attendance writes.
type EventsHandler struct {
	deps EventDependencies
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(deps EventDependencies) *EventsHandler {
	return &EventsHandler{deps: deps}
}

type joinRequest struct {
	UserID string `json:"user_id"`
}

// HandlePutEvent handles PUT /events/{id}.
func (h *EventsHandler) HandlePutEvent(w http.ResponseWriter, r *http.Request) {
	const op = "api.put_event"
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	var row repository.EventRow
	if err := decodeJSON(w, r, &row); err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if row.ID != "" && row.ID != id {
		writeError(w, WrapKind(op, ErrBadRequest, fmt.Errorf("body id %q does not match path", row.ID)))
		return
	}
	row.ID = id

	if err := h.deps.UpsertEvent(r.Context(), row); err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{Status: "stored", ID: id})
}

// HandleRefresh handles POST /events/{id}/refresh.
func (h *EventsHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	const op = "api.refresh_event"
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := h.deps.RefreshEvent(r.Context(), id); err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", ID: id})
}

// HandleJoin handles POST /events/{id}/attendees.
func (h *EventsHandler) HandleJoin(w http.ResponseWriter, r *http.Request) {
	const op = "api.join_event"
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	var req joinRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		writeError(w, WrapKind(op, ErrBadRequest, errors.New("missing user_id")))
		return
	}

	if err := h.deps.JoinEvent(r.Context(), id, userID); err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{Status: "joined", ID: id})
}

// HandleLeave handles DELETE /events/{id}/attendees/{userID}.
func (h *EventsHandler) HandleLeave(w http.ResponseWriter, r *http.Request) {
	const op = "api.leave_event"
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	userID, err := pathID(r, "userID")
	if err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := h.deps.LeaveEvent(r.Context(), id, userID); err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
