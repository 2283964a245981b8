package api

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/shaiso/WasteOps/internal/domain"
	"github.com/shaiso/WasteOps/internal/filter"
	"github.com/shaiso/WasteOps/internal/lifecycle"
	"github.com/shaiso/WasteOps/internal/zones"
)

// newValidator регистрирует проверку sortkey для filter.SortKey.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("sortkey", func(fl validator.FieldLevel) bool {
		key := filter.SortKey(fl.Field().String())
		return key == "" || key.IsValid()
	})
	return v
}

// validationMessage превращает ошибки validator в одну строку.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Field(), fe.Tag()))
	}
	return strings.Join(msgs, "; ")
}

// CriteriaRequest — параметры фильтра и сортировки.
type CriteriaRequest struct {
	Status     string `json:"status" validate:"max=32"`
	WorkerType string `json:"workerType" validate:"max=32"`
	Zone       string `json:"zone" validate:"max=128"`
	SearchTerm string `json:"searchTerm" validate:"max=200"`
	SortBy     string `json:"sortBy" validate:"sortkey"`
}

// CriteriaFromQuery читает критерии из query: status, workerType, zone, search, sortBy.
func CriteriaFromQuery(q url.Values) CriteriaRequest {
	return CriteriaRequest{
		Status:     q.Get("status"),
		WorkerType: q.Get("workerType"),
		Zone:       q.Get("zone"),
		SearchTerm: q.Get("search"),
		SortBy:     q.Get("sortBy"),
	}
}

// Criteria конвертирует запрос в filter.Criteria. Пустые поля — "all" и name-asc.
func (r CriteriaRequest) Criteria() filter.Criteria {
	c := filter.DefaultCriteria()
	if r.Status != "" {
		c.Status = r.Status
	}
	if r.WorkerType != "" {
		c.WorkerType = r.WorkerType
	}
	if r.Zone != "" {
		c.Zone = r.Zone
	}
	c.SearchTerm = r.SearchTerm
	if r.SortBy != "" {
		c.SortBy = filter.SortKey(r.SortBy)
	}
	return c
}

// ChangeStatusRequest — запрос смены статуса.
type ChangeStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// NextEmployeeIDRequest — запрос табельного номера.
type NextEmployeeIDRequest struct {
	Role string `json:"role" validate:"max=32"`
}

// parseLimit читает limit из query. Пусто — def.
func parseLimit(v string, def, maxLimit int) (int, error) {
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 || n > maxLimit {
		return 0, fmt.Errorf("limit must be between 1 and %d", maxLimit)
	}
	return n, nil
}

// WorkerResponse — работник с отображаемым именем зоны.
type WorkerResponse struct {
	domain.Worker
	ZoneName string `json:"zoneName"`
}

// WorkersFromDomain конвертирует коллекцию, разрешая имена зон по zoneList.
func WorkersFromDomain(workers []domain.Worker, zoneList []domain.Zone) []WorkerResponse {
	out := make([]WorkerResponse, len(workers))
	for i, w := range workers {
		out[i] = WorkerResponse{Worker: w, ZoneName: zones.ZoneNameFor(w.Zone, zoneList)}
	}
	return out
}

// TransitionResponse — один исходящий переход.
type TransitionResponse struct {
	To        domain.WorkerStatus `json:"to"`
	AdminOnly bool                `json:"adminOnly"`
	Allowed   bool                `json:"allowed"`
}

// TransitionsResponse — переходы из текущего статуса работника.
type TransitionsResponse struct {
	From        domain.WorkerStatus  `json:"from"`
	Transitions []TransitionResponse `json:"transitions"`
}

// TransitionsFromDomain строит ответ для актора с правами actorIsAdmin.
func TransitionsFromDomain(from domain.WorkerStatus, actorIsAdmin bool) TransitionsResponse {
	resp := TransitionsResponse{From: from, Transitions: []TransitionResponse{}}
	for _, t := range lifecycle.Transitions(from) {
		resp.Transitions = append(resp.Transitions, TransitionResponse{
			To:        t.To,
			AdminOnly: t.AdminOnly,
			Allowed:   actorIsAdmin || !t.AdminOnly,
		})
	}
	return resp
}

// DirectoryStateResponse — состояние справочника после обновления.
type DirectoryStateResponse struct {
	Total     int                         `json:"total"`
	ByStatus  map[domain.WorkerStatus]int `json:"byStatus"`
	UpdatedAt *time.Time                  `json:"updatedAt,omitempty"`
	LastError string                      `json:"lastError,omitempty"`
}

// ViewResponse — текущая проекция.
type ViewResponse struct {
	Criteria filter.Criteria  `json:"criteria"`
	Loading  bool             `json:"loading"`
	Workers  []WorkerResponse `json:"workers"`
	Total    int              `json:"total"`
}

// ZonesResponse — список зон и признак запасного набора.
type ZonesResponse struct {
	Zones    []domain.Zone `json:"zones"`
	Fallback bool          `json:"fallback"`
	Error    string        `json:"error,omitempty"`
}
