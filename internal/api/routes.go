package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	chain := Chain(
		Recovery(h.logger),
		Actor(),
		Logging(h.logger),
	)

	// Workers
	mux.Handle("GET /api/v1/workers", chain(http.HandlerFunc(h.ListWorkers)))
	mux.Handle("POST /api/v1/workers/refresh", chain(http.HandlerFunc(h.RefreshWorkers)))
	mux.Handle("GET /api/v1/workers/stats", chain(http.HandlerFunc(h.WorkerStats)))
	mux.Handle("GET /api/v1/workers/{id}", chain(http.HandlerFunc(h.GetWorker)))
	mux.Handle("PATCH /api/v1/workers/{id}/status", chain(http.HandlerFunc(h.ChangeWorkerStatus)))
	mux.Handle("POST /api/v1/workers/{id}/approve", chain(http.HandlerFunc(h.ApproveWorker)))
	mux.Handle("POST /api/v1/workers/{id}/reject", chain(http.HandlerFunc(h.RejectWorker)))
	mux.Handle("GET /api/v1/workers/{id}/transitions", chain(http.HandlerFunc(h.ListWorkerTransitions)))
	mux.Handle("GET /api/v1/workers/{id}/history", chain(http.HandlerFunc(h.WorkerHistory)))

	// Events
	mux.Handle("GET /api/v1/events", chain(http.HandlerFunc(h.RecentEvents)))

	// View
	mux.Handle("GET /api/v1/view", chain(http.HandlerFunc(h.GetView)))
	mux.Handle("PUT /api/v1/view/criteria", chain(http.HandlerFunc(h.SetViewCriteria)))

	// Zones
	mux.Handle("GET /api/v1/zones", chain(http.HandlerFunc(h.ListZones)))
	mux.Handle("POST /api/v1/zones/refresh", chain(http.HandlerFunc(h.RefreshZones)))

	// Employee IDs
	mux.Handle("POST /api/v1/employee-ids", chain(http.HandlerFunc(h.NextEmployeeID)))
}
