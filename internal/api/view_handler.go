package api

import (
	"encoding/json"
	"net/http"
)

// GetView возвращает последнюю опубликованную проекцию.
// GET /api/v1/view
func (h *Handler) GetView(w http.ResponseWriter, r *http.Request) {
	if h.view == nil {
		NotConfigured(w, "view is not configured")
		return
	}

	workers := h.view.View()
	Success(w, ViewResponse{
		Criteria: h.view.Criteria(),
		Loading:  h.view.Loading(),
		Workers:  WorkersFromDomain(workers, h.zones.Zones(r.Context())),
		Total:    len(workers),
	})
}

// SetViewCriteria меняет критерии проекции. Пересчёт выполняется
// асинхронно, поэтому ответ — 202.
// PUT /api/v1/view/criteria
func (h *Handler) SetViewCriteria(w http.ResponseWriter, r *http.Request) {
	if h.view == nil {
		NotConfigured(w, "view is not configured")
		return
	}

	var req CriteriaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		BadRequest(w, validationMessage(err))
		return
	}

	criteria := req.Criteria()
	h.view.SetCriteria(criteria)
	Accepted(w, criteria)
}
