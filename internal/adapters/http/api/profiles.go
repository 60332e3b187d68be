package api

import (
	"fmt"
	"net/http"

	"github.com/openoutings/outings/internal/adapters/repository"
)

// ProfilesHandler handles profile reads and writes.
type ProfilesHandler struct {
	deps ProfileDependencies
}

// NewProfilesHandler creates a new profiles handler.
func NewProfilesHandler(deps ProfileDependencies) *ProfilesHandler {
	return &ProfilesHandler{deps: deps}
}

// HandlePutProfile handles PUT /profiles/{id}. The path id wins over an
// absent body id; a conflicting body id is rejected.
func (h *ProfilesHandler) HandlePutProfile(w http.ResponseWriter, r *http.Request) {
	const op = "api.put_profile"
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	var row repository.ProfileRow
	if err := decodeJSON(w, r, &row); err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if row.ID != "" && row.ID != id {
		writeError(w, WrapKind(op, ErrBadRequest, fmt.Errorf("body id %q does not match path", row.ID)))
		return
	}
	row.ID = id

	if err := h.deps.UpsertProfile(r.Context(), row); err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{Status: "stored", ID: id})
}

// HandleGetProfile handles GET /profiles/{id}, returning the profile as the
// buddy scorer sees it (age derived, interests deduplicated).
func (h *ProfilesHandler) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_profile"
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	u, err := h.deps.Profile(r.Context(), id)
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, u)
}

type ackResponse struct {
	Status string `json:"status"`
	ID     string `json:"id,omitempty"`
}
