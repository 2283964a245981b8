package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/shaiso/WasteOps/internal/domain"
)

// ListZones возвращает зоны (из кэша или встроенный набор).
// GET /api/v1/zones
func (h *Handler) ListZones(w http.ResponseWriter, r *http.Request) {
	Success(w, h.zonesResponse(h.zones.Zones(r.Context())))
}

// RefreshZones заново запрашивает зоны у бэкенда.
// POST /api/v1/zones/refresh
func (h *Handler) RefreshZones(w http.ResponseWriter, r *http.Request) {
	Success(w, h.zonesResponse(h.zones.Refresh(r.Context())))
}

func (h *Handler) zonesResponse(zoneList []domain.Zone) ZonesResponse {
	resp := ZonesResponse{Zones: zoneList}
	if err := h.zones.LastError(); err != nil {
		resp.Fallback = true
		resp.Error = err.Error()
	}
	return resp
}

// NextEmployeeID выдаёт табельный номер. Тело запроса необязательно.
// POST /api/v1/employee-ids
func (h *Handler) NextEmployeeID(w http.ResponseWriter, r *http.Request) {
	var req NextEmployeeIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		BadRequest(w, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		BadRequest(w, validationMessage(err))
		return
	}

	role := domain.WorkerTypeCollector
	if strings.TrimSpace(req.Role) != "" {
		parsed, ok := domain.ParseWorkerType(req.Role)
		if !ok {
			BadRequest(w, "unknown role "+req.Role)
			return
		}
		role = parsed
	}

	Created(w, h.ids.Next(r.Context(), role))
}
