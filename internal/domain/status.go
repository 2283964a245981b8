package domain

import "strings"

// WorkerStatus — статус работника в жизненном цикле.
//
// Жизненный цикл:
//
//	PENDING → ACTIVE ⇄ ON_LEAVE
//	        ↘ INACTIVE ⇄ ACTIVE → SUSPENDED
//	        ↘ REJECTED → PENDING (повторное открытие)
//
// Терминальных статусов нет: администратор может вернуть работника
// из любого состояния. Допустимые переходы описаны в пакете lifecycle.
type WorkerStatus string

const (
	// WorkerStatusPending — заявка создана, ожидает решения администратора.
	WorkerStatusPending WorkerStatus = "pending"

	// WorkerStatusActive — работник на смене.
	WorkerStatusActive WorkerStatus = "active"

	// WorkerStatusAvailable — свободен и готов принять маршрут.
	WorkerStatusAvailable WorkerStatus = "available"

	// WorkerStatusOnLeave — в отпуске.
	WorkerStatusOnLeave WorkerStatus = "onLeave"

	// WorkerStatusInactive — одобрен, но не назначен на смены.
	WorkerStatusInactive WorkerStatus = "inactive"

	// WorkerStatusSuspended — временно отстранён.
	WorkerStatusSuspended WorkerStatus = "suspended"

	// WorkerStatusRejected — заявка отклонена.
	WorkerStatusRejected WorkerStatus = "rejected"
)

// WorkerStatuses — все статусы в порядке отображения.
var WorkerStatuses = []WorkerStatus{
	WorkerStatusPending,
	WorkerStatusActive,
	WorkerStatusAvailable,
	WorkerStatusOnLeave,
	WorkerStatusInactive,
	WorkerStatusSuspended,
	WorkerStatusRejected,
}

// String возвращает строковое представление WorkerStatus.
func (s WorkerStatus) String() string {
	return string(s)
}

// IsValid проверяет, что статус входит в перечисление (в канонической форме).
func (s WorkerStatus) IsValid() bool {
	for _, status := range WorkerStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// ParseWorkerStatus парсит статус без учёта регистра и разделителей.
// "on_leave", "On-Leave" и "ONLEAVE" дают WorkerStatusOnLeave.
// Второе значение false, если статус не распознан; тогда возвращается PENDING.
func ParseWorkerStatus(s string) (WorkerStatus, bool) {
	switch compactKey(s) {
	case "pending":
		return WorkerStatusPending, true
	case "active":
		return WorkerStatusActive, true
	case "available":
		return WorkerStatusAvailable, true
	case "onleave", "leave":
		return WorkerStatusOnLeave, true
	case "inactive":
		return WorkerStatusInactive, true
	case "suspended":
		return WorkerStatusSuspended, true
	case "rejected":
		return WorkerStatusRejected, true
	default:
		return WorkerStatusPending, false
	}
}

// WorkerType — специализация работника.
type WorkerType string

const (
	WorkerTypeCollector  WorkerType = "collector"
	WorkerTypeDriver     WorkerType = "driver"
	WorkerTypeSupervisor WorkerType = "supervisor"
	WorkerTypeSweeper    WorkerType = "sweeper"
	WorkerTypeCleaner    WorkerType = "cleaner"
)

// ParseWorkerType парсит тип работника. Неизвестное значение даёт COLLECTOR и false.
func ParseWorkerType(s string) (WorkerType, bool) {
	switch compactKey(s) {
	case "collector":
		return WorkerTypeCollector, true
	case "driver":
		return WorkerTypeDriver, true
	case "supervisor":
		return WorkerTypeSupervisor, true
	case "sweeper":
		return WorkerTypeSweeper, true
	case "cleaner":
		return WorkerTypeCleaner, true
	default:
		return WorkerTypeCollector, false
	}
}

// Shift — смена работника.
type Shift string

const (
	ShiftMorning   Shift = "morning"
	ShiftAfternoon Shift = "afternoon"
	ShiftNight     Shift = "night"
)

// ParseShift парсит смену. Неизвестное значение даёт MORNING и false.
func ParseShift(s string) (Shift, bool) {
	switch compactKey(s) {
	case "morning":
		return ShiftMorning, true
	case "afternoon":
		return ShiftAfternoon, true
	case "night":
		return ShiftNight, true
	default:
		return ShiftMorning, false
	}
}

// compactKey приводит строку к нижнему регистру и убирает пробелы, '_' и '-'.
func compactKey(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch r {
		case '_', '-', ' ':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
