package api

import (
	"encoding/json"
	"net/http"
	"slices"

	"github.com/shaiso/WasteOps/internal/domain"
	"github.com/shaiso/WasteOps/internal/repo"
)

const maxHistoryLimit = 500

// ListWorkers возвращает отфильтрованную и отсортированную коллекцию.
// GET /api/v1/workers?status=...&workerType=...&zone=...&search=...&sortBy=...
func (h *Handler) ListWorkers(w http.ResponseWriter, r *http.Request) {
	req := CriteriaFromQuery(r.URL.Query())
	if err := h.validate.Struct(req); err != nil {
		BadRequest(w, validationMessage(err))
		return
	}

	workers := h.engine.Apply(h.directory.Workers(), req.Criteria())
	List(w, WorkersFromDomain(workers, h.zones.Zones(r.Context())), len(workers))
}

// RefreshWorkers перезагружает справочник с бэкенда.
// POST /api/v1/workers/refresh
func (h *Handler) RefreshWorkers(w http.ResponseWriter, r *http.Request) {
	if HandleError(w, h.logger, h.directory.Refresh(r.Context())) {
		return
	}
	Success(w, h.state())
}

// WorkerStats возвращает число работников по статусам.
// GET /api/v1/workers/stats
func (h *Handler) WorkerStats(w http.ResponseWriter, r *http.Request) {
	Success(w, h.state())
}

func (h *Handler) state() DirectoryStateResponse {
	stats := h.directory.Stats()
	resp := DirectoryStateResponse{Total: stats.Total, ByStatus: stats.ByStatus}
	if updated := h.directory.UpdatedAt(); !updated.IsZero() {
		resp.UpdatedAt = &updated
	}
	if err := h.directory.LastError(); err != nil {
		resp.LastError = err.Error()
	}
	return resp
}

// GetWorker возвращает работника по ID записи или табельному номеру.
// GET /api/v1/workers/{id}
func (h *Handler) GetWorker(w http.ResponseWriter, r *http.Request) {
	worker, err := h.directory.Get(r.PathValue("id"))
	if HandleError(w, h.logger, err) {
		return
	}
	Success(w, WorkersFromDomain([]domain.Worker{worker}, h.zones.Zones(r.Context()))[0])
}

// ChangeWorkerStatus переводит работника в новый статус.
// PATCH /api/v1/workers/{id}/status
func (h *Handler) ChangeWorkerStatus(w http.ResponseWriter, r *http.Request) {
	var req ChangeStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		BadRequest(w, validationMessage(err))
		return
	}

	to, ok := domain.ParseWorkerStatus(req.Status)
	if !ok {
		BadRequest(w, "unknown status "+req.Status)
		return
	}

	worker, err := h.directory.ChangeStatus(r.Context(), r.PathValue("id"), to, ActorIsAdmin(r.Context()))
	if HandleError(w, h.logger, err) {
		return
	}
	Success(w, WorkersFromDomain([]domain.Worker{worker}, h.zones.Zones(r.Context()))[0])
}

// ApproveWorker одобряет заявку работника (pending → inactive).
// POST /api/v1/workers/{id}/approve
func (h *Handler) ApproveWorker(w http.ResponseWriter, r *http.Request) {
	worker, err := h.directory.Approve(r.Context(), r.PathValue("id"), ActorIsAdmin(r.Context()))
	if HandleError(w, h.logger, err) {
		return
	}
	Success(w, WorkersFromDomain([]domain.Worker{worker}, h.zones.Zones(r.Context()))[0])
}

// RejectWorker отклоняет заявку работника (pending → rejected).
// POST /api/v1/workers/{id}/reject
func (h *Handler) RejectWorker(w http.ResponseWriter, r *http.Request) {
	worker, err := h.directory.Reject(r.Context(), r.PathValue("id"), ActorIsAdmin(r.Context()))
	if HandleError(w, h.logger, err) {
		return
	}
	Success(w, WorkersFromDomain([]domain.Worker{worker}, h.zones.Zones(r.Context()))[0])
}

// ListWorkerTransitions возвращает переходы из текущего статуса работника.
// GET /api/v1/workers/{id}/transitions
func (h *Handler) ListWorkerTransitions(w http.ResponseWriter, r *http.Request) {
	worker, err := h.directory.Get(r.PathValue("id"))
	if HandleError(w, h.logger, err) {
		return
	}
	Success(w, TransitionsFromDomain(worker.WorkerStatus, ActorIsAdmin(r.Context())))
}

// WorkerHistory возвращает журнал смен статуса работника.
// GET /api/v1/workers/{id}/history?limit=...
func (h *Handler) WorkerHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		NotConfigured(w, "status history is not configured")
		return
	}

	limit, err := parseLimit(r.URL.Query().Get("limit"), repo.DefaultHistoryLimit, maxHistoryLimit)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	history, err := h.history.History(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}
	List(w, history, len(history))
}

// RecentEvents возвращает последние смены статуса в этом процессе, от новых к старым.
// GET /api/v1/events?limit=...
func (h *Handler) RecentEvents(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		NotConfigured(w, "event feed is not configured")
		return
	}

	limit, err := parseLimit(r.URL.Query().Get("limit"), repo.DefaultHistoryLimit, maxHistoryLimit)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	events := h.events.Events()
	slices.Reverse(events)
	if len(events) > limit {
		events = events[:limit]
	}
	List(w, events, len(events))
}
