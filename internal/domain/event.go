package domain

import (
	"time"

	"github.com/google/uuid"
)

// StatusChanged — событие успешной смены статуса работника.
//
// Публикуется directory после того, как бэкенд подтвердил PATCH.
// Потребители: audit (история изменений), внешние подписчики через RabbitMQ.
type StatusChanged struct {
	// EventID — уникальный идентификатор события.
	EventID uuid.UUID `json:"eventId"`

	// RecordID — Worker.ID записи.
	RecordID string `json:"recordId"`

	// WorkerID — бизнес-ключ работника.
	WorkerID string `json:"workerId"`

	PreviousStatus WorkerStatus `json:"previousStatus"`
	NewStatus      WorkerStatus `json:"newStatus"`

	// ByAdmin — переход выполнил администратор.
	ByAdmin bool `json:"byAdmin"`

	OccurredAt time.Time `json:"occurredAt"`
}

// NewStatusChanged создаёт событие для перехода previous → next.
func NewStatusChanged(w Worker, previous WorkerStatus, byAdmin bool) StatusChanged {
	return StatusChanged{
		EventID:        uuid.New(),
		RecordID:       w.ID,
		WorkerID:       w.WorkerID,
		PreviousStatus: previous,
		NewStatus:      w.WorkerStatus,
		ByAdmin:        byAdmin,
		OccurredAt:     time.Now().UTC(),
	}
}
