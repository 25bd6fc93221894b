package handler

import (
	"net/http"

	"github.com/bcnelson/l2vpn-manager/internal/domain"
	"github.com/bcnelson/l2vpn-manager/internal/logger"
	"github.com/bcnelson/l2vpn-manager/internal/provisioning"
)

// CircuitHandler serves circuit loads and saves.
type CircuitHandler struct {
	backend provisioning.CircuitClient
	log     logger.Logger
}

// NewCircuitHandler creates a new CircuitHandler.
func NewCircuitHandler(backend provisioning.CircuitClient, log logger.Logger) *CircuitHandler {
	return &CircuitHandler{backend: backend, log: log}
}

// Get returns one of the workgroup's circuits with its details and history.
func (h *CircuitHandler) Get(w http.ResponseWriter, r *http.Request) {
	wg, err := intParam(r, "workgroup_id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid workgroup id")
		return
	}
	id, err := intParam(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid circuit id")
		return
	}

	circuit, err := h.backend.LoadCircuit(r.Context(), wg, id)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, circuit)
}

// Save creates or updates a circuit. A rejected circuit is still a 200
// response carrying success 0 and the reason.
func (h *CircuitHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req domain.SaveCircuitRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.backend.SaveCircuit(r.Context(), &req)
	if err != nil {
		h.log.Error("saving circuit",
			logger.Int("circuit_id", req.CircuitID),
			logger.Err(err),
		)
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}
