package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ClareAI/astra-receptionist-service/internal/domain"
	"github.com/ClareAI/astra-receptionist-service/internal/services/lookup"
	"github.com/ClareAI/astra-receptionist-service/internal/services/provisioning"
	"github.com/ClareAI/astra-receptionist-service/pkg/logger"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// ReceptionistHandler handles HTTP requests for receptionist records.
type ReceptionistHandler struct {
	provisioningService *provisioning.Service
	lookupService       *lookup.Service
}

// NewReceptionistHandler creates a new receptionist handler
func NewReceptionistHandler(provisioningService *provisioning.Service, lookupService *lookup.Service) *ReceptionistHandler {
	return &ReceptionistHandler{
		provisioningService: provisioningService,
		lookupService:       lookupService,
	}
}

// ResolveReceptionist handles GET /receptionists/{slug}. The public path
// answers found or not-found only; no internal detail leaks to visitors, and
// an inactive record is indistinguishable from a missing one.
func (h *ReceptionistHandler) ResolveReceptionist(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["slug"]

	receptionist, err := h.lookupService.Resolve(r.Context(), slug)
	if err != nil {
		var notFound *domain.NotFoundError
		if errors.As(err, &notFound) {
			writeJSONError(w, http.StatusNotFound, "Receptionist not found")
			return
		}
		logger.Base().Error("public lookup failed", zap.String("slug", slug), zap.Error(err))
		writeJSONError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"receptionist": receptionist})
}

// ListReceptionists handles GET /admin/receptionists, newest first.
func (h *ReceptionistHandler) ListReceptionists(w http.ResponseWriter, r *http.Request) {
	receptionists, err := h.provisioningService.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"receptionists": receptionists})
}

// CreateReceptionist handles POST /admin/receptionists.
func (h *ReceptionistHandler) CreateReceptionist(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateReceptionistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	receptionist, err := h.provisioningService.Create(r.Context(), UserFromContext(r.Context()), &req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{"receptionist": receptionist})
}

// GetReceptionist handles GET /admin/receptionists/{id}.
func (h *ReceptionistHandler) GetReceptionist(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	receptionist, err := h.provisioningService.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"receptionist": receptionist})
}

// UpdateReceptionist handles PATCH /admin/receptionists/{id}.
func (h *ReceptionistHandler) UpdateReceptionist(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var upd domain.ReceptionistUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	receptionist, err := h.provisioningService.Update(r.Context(), id, &upd)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"receptionist": receptionist})
}

// DeleteReceptionist handles DELETE /admin/receptionists/{id}. A failed
// remote-agent deletion never blocks the local delete; it is surfaced as a
// notice alongside success.
func (h *ReceptionistHandler) DeleteReceptionist(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	result, err := h.provisioningService.Delete(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	response := map[string]interface{}{"success": true}
	if result.RemoteCleanup != nil {
		response["notice"] = "remote agent deletion failed; the agent may be orphaned at the provider"
	}
	writeJSON(w, http.StatusOK, response)
}

// ListAgents handles GET /admin/agents, proxying the provider's live agent
// listing. Read-only by design: agents are created and changed through the
// receptionist operations so record and agent cannot diverge.
func (h *ReceptionistHandler) ListAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := h.provisioningService.Agents(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, agents)
}

// GetAgent handles GET /admin/agents/{agentId}, proxying the provider's live
// agent state for auditing drift against the stored snapshot.
func (h *ReceptionistHandler) GetAgent(w http.ResponseWriter, r *http.Request) {
	agentID := mux.Vars(r)["agentId"]

	agent, err := h.provisioningService.Agent(r.Context(), agentID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"agent": agent})
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Base().Warn("failed to encode response", zap.Error(err))
	}
}

// writeJSONError writes a JSON error body with the given status.
func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeError maps a domain error to its HTTP status.
func writeError(w http.ResponseWriter, err error) {
	var (
		validationErr *domain.ValidationError
		notFoundErr   *domain.NotFoundError
		conflictErr   *domain.ConflictError
		providerErr   *domain.ProviderError
		storageErr    *domain.StorageError
	)

	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		writeJSONError(w, http.StatusUnauthorized, "Unauthorized")
	case errors.As(err, &validationErr):
		writeJSONError(w, http.StatusBadRequest, validationErr.Error())
	case errors.Is(err, domain.ErrAgentNotProvisioned):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &notFoundErr):
		writeJSONError(w, http.StatusNotFound, notFoundErr.Error())
	case errors.As(err, &conflictErr):
		writeJSONError(w, http.StatusConflict, conflictErr.Error())
	case errors.As(err, &providerErr):
		writeJSONError(w, http.StatusBadGateway, providerErr.Error())
	case errors.As(err, &storageErr):
		writeJSONError(w, http.StatusInternalServerError, storageErr.Error())
	default:
		writeJSONError(w, http.StatusInternalServerError, err.Error())
	}
}
