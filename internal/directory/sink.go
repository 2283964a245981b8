package directory

import (
	"context"
	"log/slog"
	"sync"

	"github.com/shaiso/WasteOps/internal/domain"
)

// EventSink получает события подтверждённой смены статуса.
type EventSink interface {
	StatusChanged(ctx context.Context, event domain.StatusChanged) error
}

// SinkFunc — адаптер функции к EventSink.
type SinkFunc func(ctx context.Context, event domain.StatusChanged) error

// StatusChanged вызывает f.
func (f SinkFunc) StatusChanged(ctx context.Context, event domain.StatusChanged) error {
	return f(ctx, event)
}

// LoggingSink пишет события в лог.
type LoggingSink struct {
	Logger *slog.Logger
}

// StatusChanged логирует событие.
func (s LoggingSink) StatusChanged(_ context.Context, event domain.StatusChanged) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("status changed event",
		"event_id", event.EventID,
		"worker_id", event.WorkerID,
		"previous_status", event.PreviousStatus,
		"new_status", event.NewStatus,
		"by_admin", event.ByAdmin,
	)
	return nil
}

// MemorySink хранит последние события в памяти (для ленты в консоли и тестов).
type MemorySink struct {
	mu     sync.Mutex
	limit  int
	events []domain.StatusChanged
}

// NewMemorySink создаёт MemorySink на limit последних событий (limit <= 0 — 100).
func NewMemorySink(limit int) *MemorySink {
	if limit <= 0 {
		limit = 100
	}
	return &MemorySink{limit: limit}
}

// StatusChanged сохраняет событие, вытесняя самое старое.
func (s *MemorySink) StatusChanged(_ context.Context, event domain.StatusChanged) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, event)
	if over := len(s.events) - s.limit; over > 0 {
		s.events = append([]domain.StatusChanged(nil), s.events[over:]...)
	}
	return nil
}

// Events возвращает копию сохранённых событий, от старых к новым.
func (s *MemorySink) Events() []domain.StatusChanged {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.StatusChanged(nil), s.events...)
}
