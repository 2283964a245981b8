// Package audit ведёт журнал смен статуса работников.
//
// События приходят либо из RabbitMQ (Handler для mq.Consumer),
// либо напрямую от directory (Sink) и записываются в Store.
// Повторная доставка одного события журнал не меняет.
package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/shaiso/WasteOps/internal/domain"
	"github.com/shaiso/WasteOps/internal/mq"
	"github.com/shaiso/WasteOps/internal/repo"
	"github.com/shaiso/WasteOps/internal/telemetry"
)

// ErrInvalidEvent — событие не проходит проверку и не будет записано.
var ErrInvalidEvent = errors.New("invalid status change event")

// Store — хранилище журнала.
type Store interface {
	Insert(ctx context.Context, e domain.StatusChanged) error
	ListByWorker(ctx context.Context, id string, limit int) ([]domain.StatusChanged, error)
}

// Journal записывает и читает историю смен статуса.
type Journal struct {
	store  Store
	logger *slog.Logger
}

// New создаёт Journal.
func New(store Store, logger *slog.Logger) *Journal {
	if logger == nil {
		logger = slog.Default()
	}
	return &Journal{store: store, logger: logger}
}

// Record проверяет и сохраняет событие. Дубликат не считается ошибкой.
func (j *Journal) Record(ctx context.Context, e domain.StatusChanged) error {
	if err := Validate(e); err != nil {
		telemetry.AuditRecords.WithLabelValues("rejected").Inc()
		return err
	}

	log := telemetry.WithWorkerID(j.logger, e.RecordID).With("event_id", e.EventID)

	err := j.store.Insert(ctx, e)
	switch {
	case err == nil:
		telemetry.AuditRecords.WithLabelValues("stored").Inc()
		log.Info("status change recorded", "from", e.PreviousStatus, "to", e.NewStatus)
		return nil
	case errors.Is(err, repo.ErrDuplicate):
		telemetry.AuditRecords.WithLabelValues("duplicate").Inc()
		log.Debug("duplicate status change skipped")
		return nil
	default:
		telemetry.AuditRecords.WithLabelValues("failed").Inc()
		return fmt.Errorf("record status change: %w", err)
	}
}

// History возвращает историю работника по Worker.ID или табельному номеру.
func (j *Journal) History(ctx context.Context, id string, limit int) ([]domain.StatusChanged, error) {
	return j.store.ListByWorker(ctx, id, limit)
}

// Handler — обработчик очереди аудита. Чужие типы и битые события
// помечаются mq.ErrPoison и уходят в DLQ.
func (j *Journal) Handler() mq.Handler {
	return func(ctx context.Context, env mq.Envelope) error {
		if env.Type != mq.MessageTypeStatusChanged {
			return fmt.Errorf("%w: unexpected type %q", mq.ErrPoison, env.Type)
		}
		event, err := mq.ParsePayload[domain.StatusChanged](env)
		if err != nil {
			return fmt.Errorf("%w: %w", mq.ErrPoison, err)
		}
		if err := j.Record(ctx, event); err != nil {
			if errors.Is(err, ErrInvalidEvent) {
				return fmt.Errorf("%w: %w", mq.ErrPoison, err)
			}
			return err
		}
		return nil
	}
}

// StatusChanged реализует directory.EventSink: запись в журнал без брокера.
func (j *Journal) StatusChanged(ctx context.Context, e domain.StatusChanged) error {
	return j.Record(ctx, e)
}

// Validate проверяет обязательные поля события.
func Validate(e domain.StatusChanged) error {
	switch {
	case e.EventID == uuid.Nil:
		return fmt.Errorf("%w: empty event id", ErrInvalidEvent)
	case e.RecordID == "":
		return fmt.Errorf("%w: empty record id", ErrInvalidEvent)
	case !e.PreviousStatus.IsValid() || !e.NewStatus.IsValid():
		return fmt.Errorf("%w: unknown status %q -> %q", ErrInvalidEvent, e.PreviousStatus, e.NewStatus)
	case e.OccurredAt.IsZero():
		return fmt.Errorf("%w: missing timestamp", ErrInvalidEvent)
	}
	return nil
}
