package handler

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bcnelson/l2vpn-manager/internal/api/middleware"
	"github.com/bcnelson/l2vpn-manager/internal/domain"
	"github.com/bcnelson/l2vpn-manager/internal/storage"
	"github.com/bcnelson/l2vpn-manager/internal/validation"
)

// APIKeyHandler manages the keys editor instances use to reach this backend.
// A key is named after the instance holding it, so names are unique.
type APIKeyHandler struct {
	store storage.Storage
}

// NewAPIKeyHandler creates a new APIKeyHandler.
func NewAPIKeyHandler(store storage.Storage) *APIKeyHandler {
	return &APIKeyHandler{store: store}
}

// Create issues a key for an editor instance. The plaintext key is only in
// this response.
func (h *APIKeyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateAPIKeyRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if errs := validation.ValidateAPIKeyRequest(&req); errs.HasErrors() {
		handleError(w, errs)
		return
	}

	existing, err := h.store.ListAPIKeys(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}
	for _, k := range existing {
		if strings.EqualFold(k.Name, req.Name) {
			respondError(w, http.StatusConflict, fmt.Sprintf("an API key named %q already exists", k.Name))
			return
		}
	}

	key, hash, prefix, err := generateAPIKey()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to generate API key")
		return
	}

	apiKey := &domain.APIKey{
		ID:        generateID(),
		Name:      req.Name,
		KeyHash:   hash,
		KeyPrefix: prefix,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.store.CreateAPIKey(r.Context(), apiKey); err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, &domain.CreateAPIKeyResponse{
		ID:        apiKey.ID,
		Name:      apiKey.Name,
		Key:       key,
		KeyPrefix: apiKey.KeyPrefix,
		CreatedAt: apiKey.CreatedAt,
	})
}

// List returns key metadata without hashes. With ?unused=1 only keys that
// never authenticated a request are listed, which finds instances that were
// never configured.
func (h *APIKeyHandler) List(w http.ResponseWriter, r *http.Request) {
	keys, err := h.store.ListAPIKeys(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}
	if r.URL.Query().Get("unused") == "1" {
		unused := make([]*domain.APIKey, 0, len(keys))
		for _, k := range keys {
			if !k.Used() {
				unused = append(unused, k)
			}
		}
		keys = unused
	}
	respondJSON(w, http.StatusOK, keys)
}

// Delete revokes a key. The key authenticating the request can't revoke
// itself; the instance would lock itself out.
func (h *APIKeyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "id is required")
		return
	}
	if current := middleware.APIKeyFromContext(r.Context()); current != nil && current.ID == id {
		respondError(w, http.StatusConflict, "cannot revoke the API key in use")
		return
	}
	if err := h.store.DeleteAPIKey(r.Context(), id); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
