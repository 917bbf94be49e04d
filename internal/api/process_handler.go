package api

import (
	"encoding/json"
	"net/http"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/telemetry"
)

// GetProcess возвращает состояние процесса по ID.
// GET /api/v1/processes/{id}
func (h *Handler) GetProcess(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseProcessID(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid process id")
		return
	}

	proc, err := h.processes.Get(r.Context(), id)
	if HandleError(w, h.logger, err) {
		return
	}

	Success(w, ProcessFromDomain(proc))
}

// RescheduleProcess заменяет незапущенные задачи процесса.
// POST /api/v1/processes/{id}/reschedule
func (h *Handler) RescheduleProcess(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseProcessID(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid process id")
		return
	}

	var req RescheduleRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMessageSize)).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	proc, err := h.rescheduler.Reschedule(r.Context(), id, req.Tasks)
	if HandleError(w, telemetry.FromContext(r.Context()), err) {
		return
	}

	Success(w, ProcessFromDomain(proc))
}
