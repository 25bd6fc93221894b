package handler

import (
	"net/http"
	"strconv"

	"github.com/bcnelson/l2vpn-manager/internal/provisioning"
)

// DirectoryHandler serves entity, connection and user lookups.
type DirectoryHandler struct {
	dir provisioning.Directory
}

// NewDirectoryHandler creates a new DirectoryHandler.
func NewDirectoryHandler(dir provisioning.Directory) *DirectoryHandler {
	return &DirectoryHandler{dir: dir}
}

// Entities returns an entity with its children. Without parent_id the
// workgroup's root entity is returned.
func (h *DirectoryHandler) Entities(w http.ResponseWriter, r *http.Request) {
	wg, err := intParam(r, "workgroup_id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid workgroup id")
		return
	}

	var parentID *int
	if v := r.URL.Query().Get("parent_id"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid parent_id")
			return
		}
		parentID = &id
	}

	entity, err := h.dir.ListEntities(r.Context(), wg, parentID)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, entity)
}

// Connections lists the workgroup's circuits.
func (h *DirectoryHandler) Connections(w http.ResponseWriter, r *http.Request) {
	wg, err := intParam(r, "workgroup_id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid workgroup id")
		return
	}

	conns, err := h.dir.ListConnections(r.Context(), wg)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, conns)
}

// Users lists all users.
func (h *DirectoryHandler) Users(w http.ResponseWriter, r *http.Request) {
	users, err := h.dir.ListUsers(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, users)
}
