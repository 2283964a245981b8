package lifecycle

import (
	"github.com/shaiso/WasteOps/internal/domain"
)

// ApproveTarget — статус одобренной заявки: работник неактивен, пока его не поставят в смены.
const ApproveTarget = domain.WorkerStatusInactive

// Transition — одно ребро автомата.
type Transition struct {
	To        domain.WorkerStatus `json:"to"`
	AdminOnly bool                `json:"adminOnly"`
}

// transitions — таблица допустимых переходов. Порядок рёбер — порядок отображения.
// Входящих рёбер в available нет: статус выставляет только бэкенд.
var transitions = map[domain.WorkerStatus][]Transition{
	domain.WorkerStatusPending: {
		{To: domain.WorkerStatusActive, AdminOnly: true},
		{To: domain.WorkerStatusInactive, AdminOnly: true},
		{To: domain.WorkerStatusRejected, AdminOnly: true},
	},
	domain.WorkerStatusActive: {
		{To: domain.WorkerStatusOnLeave},
		{To: domain.WorkerStatusSuspended, AdminOnly: true},
		{To: domain.WorkerStatusInactive, AdminOnly: true},
	},
	domain.WorkerStatusAvailable: {
		{To: domain.WorkerStatusActive},
		{To: domain.WorkerStatusOnLeave},
		{To: domain.WorkerStatusSuspended, AdminOnly: true},
		{To: domain.WorkerStatusInactive, AdminOnly: true},
	},
	domain.WorkerStatusOnLeave: {
		{To: domain.WorkerStatusActive},
		{To: domain.WorkerStatusInactive, AdminOnly: true},
	},
	domain.WorkerStatusSuspended: {
		{To: domain.WorkerStatusActive, AdminOnly: true},
		{To: domain.WorkerStatusInactive, AdminOnly: true},
	},
	domain.WorkerStatusInactive: {
		{To: domain.WorkerStatusActive},
	},
	domain.WorkerStatusRejected: {
		{To: domain.WorkerStatusPending, AdminOnly: true},
	},
}

// Transitions возвращает все рёбра из from (копию таблицы).
func Transitions(from domain.WorkerStatus) []Transition {
	edges := transitions[from]
	out := make([]Transition, len(edges))
	copy(out, edges)
	return out
}

// AllowedTargets возвращает статусы, в которые актор может перевести работника из from.
func AllowedTargets(from domain.WorkerStatus, actorIsAdmin bool) []domain.WorkerStatus {
	var out []domain.WorkerStatus
	for _, t := range transitions[from] {
		if t.AdminOnly && !actorIsAdmin {
			continue
		}
		out = append(out, t.To)
	}
	return out
}

// Check проверяет переход from → to для актора.
//
// Сначала проверяется наличие ребра (*InvalidTransitionError),
// затем права (*PermissionError).
func Check(from, to domain.WorkerStatus, actorIsAdmin bool) error {
	edge, ok := lookup(from, to)
	if !ok {
		return &InvalidTransitionError{From: from, To: to}
	}
	if edge.AdminOnly && !actorIsAdmin {
		return &PermissionError{From: from, To: to}
	}
	return nil
}

// ApplyTransition возвращает копию w со статусом to.
// Входная запись не изменяется.
func ApplyTransition(w domain.Worker, to domain.WorkerStatus, actorIsAdmin bool) (domain.Worker, error) {
	if err := Check(w.WorkerStatus, to, actorIsAdmin); err != nil {
		return domain.Worker{}, err
	}
	next := w.Clone()
	next.WorkerStatus = to
	return next, nil
}

// Approve одобряет заявку: pending → ApproveTarget.
// Для работника не в pending — *InvalidTransitionError.
func Approve(w domain.Worker, actorIsAdmin bool) (domain.Worker, error) {
	return decide(w, ApproveTarget, actorIsAdmin)
}

// Reject отклоняет заявку: pending → rejected.
func Reject(w domain.Worker, actorIsAdmin bool) (domain.Worker, error) {
	return decide(w, domain.WorkerStatusRejected, actorIsAdmin)
}

func decide(w domain.Worker, to domain.WorkerStatus, actorIsAdmin bool) (domain.Worker, error) {
	if w.WorkerStatus != domain.WorkerStatusPending {
		return domain.Worker{}, &InvalidTransitionError{From: w.WorkerStatus, To: to}
	}
	return ApplyTransition(w, to, actorIsAdmin)
}

func lookup(from, to domain.WorkerStatus) (Transition, bool) {
	for _, t := range transitions[from] {
		if t.To == to {
			return t, true
		}
	}
	return Transition{}, false
}
