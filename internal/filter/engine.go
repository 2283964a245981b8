// Package filter — детерминированная проекция коллекции работников:
// фильтрация по статусу, типу и зоне, поиск и стабильная сортировка.
package filter

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/shaiso/WasteOps/internal/domain"
)

// All — значение критерия, отключающее фильтр.
const All = "all"

// SortKey — порядок сортировки.
type SortKey string

const (
	SortNameAsc    SortKey = "name-asc"
	SortNameDesc   SortKey = "name-desc"
	SortRatingHigh SortKey = "rating-high"
	SortRatingLow  SortKey = "rating-low"
	SortTasksHigh  SortKey = "tasks-high"
	SortLastActive SortKey = "last-active"
)

// SortKeys — все поддерживаемые ключи сортировки.
var SortKeys = []SortKey{SortNameAsc, SortNameDesc, SortRatingHigh, SortRatingLow, SortTasksHigh, SortLastActive}

// IsValid проверяет, что ключ поддерживается.
func (k SortKey) IsValid() bool {
	return slices.Contains(SortKeys, k)
}

// Criteria — параметры проекции.
//
// Status, WorkerType и Zone сравниваются без учёта регистра;
// пустое значение или "all" отключает критерий.
type Criteria struct {
	Status     string  `json:"status"`
	WorkerType string  `json:"workerType"`
	Zone       string  `json:"zone"`
	SearchTerm string  `json:"searchTerm"`
	SortBy     SortKey `json:"sortBy"`
}

// DefaultCriteria — всё без фильтров, по имени.
func DefaultCriteria() Criteria {
	return Criteria{Status: All, WorkerType: All, Zone: All, SortBy: SortNameAsc}
}

// Engine применяет Criteria к коллекции.
type Engine struct {
	logger *slog.Logger
}

// NewEngine создаёт Engine. logger == nil — slog.Default().
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

// Apply возвращает новый срез: отфильтрованные и отсортированные работники.
//
// collection не изменяется. Равные по ключу сортировки записи сохраняют
// исходный относительный порядок. Если проекция паникует, ошибка
// логируется и возвращается копия нефильтрованной коллекции.
func (e *Engine) Apply(collection []domain.Worker, c Criteria) []domain.Worker {
	return guard(e.logger, collection, func() []domain.Worker {
		return project(collection, c)
	})
}

// guard выполняет fn; при панике возвращает копию collection.
func guard(logger *slog.Logger, collection []domain.Worker, fn func() []domain.Worker) (out []domain.Worker) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("worker projection failed, returning unfiltered collection",
				"panic", fmt.Sprint(r),
				"workers", len(collection),
			)
			out = cloneAll(collection)
		}
	}()
	return fn()
}

func project(collection []domain.Worker, c Criteria) []domain.Worker {
	status := normalizeCriterion(c.Status)
	workerType := normalizeCriterion(c.WorkerType)
	zone := normalizeCriterion(c.Zone)
	term := strings.ToLower(strings.TrimSpace(c.SearchTerm))

	out := make([]domain.Worker, 0, len(collection))
	for i := range collection {
		w := &collection[i]
		if status != "" && !strings.EqualFold(string(w.WorkerStatus), status) {
			continue
		}
		if workerType != "" && !strings.EqualFold(string(w.WorkerType), workerType) {
			continue
		}
		if zone != "" && !strings.EqualFold(strings.TrimSpace(w.Zone), zone) {
			continue
		}
		if term != "" && !matchesSearch(w, term) {
			continue
		}
		out = append(out, w.Clone())
	}

	if less := comparator(c.SortBy); less != nil {
		slices.SortStableFunc(out, less)
	}
	return out
}

// normalizeCriterion возвращает "" для отключённого критерия.
func normalizeCriterion(v string) string {
	v = strings.TrimSpace(v)
	if v == "" || strings.EqualFold(v, All) {
		return ""
	}
	return v
}

// matchesSearch — term входит хотя бы в одно из полей поиска. term уже в нижнем регистре.
func matchesSearch(w *domain.Worker, term string) bool {
	for _, field := range []string{w.Name, w.WorkerID, string(w.WorkerType), w.Email, w.Phone} {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}

// comparator возвращает функцию сравнения для ключа; nil — порядок не меняется.
func comparator(key SortKey) func(a, b domain.Worker) int {
	switch key {
	case SortNameAsc:
		return func(a, b domain.Worker) int {
			return cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		}
	case SortNameDesc:
		return func(a, b domain.Worker) int {
			return cmp.Compare(strings.ToLower(b.Name), strings.ToLower(a.Name))
		}
	case SortRatingHigh:
		return func(a, b domain.Worker) int {
			return cmp.Compare(b.Performance.Rating, a.Performance.Rating)
		}
	case SortRatingLow:
		return func(a, b domain.Worker) int {
			return cmp.Compare(a.Performance.Rating, b.Performance.Rating)
		}
	case SortTasksHigh:
		return func(a, b domain.Worker) int {
			return cmp.Compare(b.Performance.TasksCompleted, a.Performance.TasksCompleted)
		}
	case SortLastActive:
		// Никогда не входившие — в конце.
		return func(a, b domain.Worker) int {
			return b.LastActive().Compare(a.LastActive())
		}
	default:
		return nil
	}
}

func cloneAll(collection []domain.Worker) []domain.Worker {
	out := make([]domain.Worker, len(collection))
	for i := range collection {
		out[i] = collection[i].Clone()
	}
	return out
}
