package lifecycle

import (
	"errors"
	"fmt"

	"github.com/shaiso/WasteOps/internal/domain"
)

var (
	// ErrTransitionNotAllowed — переход отсутствует в таблице.
	ErrTransitionNotAllowed = errors.New("status transition not allowed")

	// ErrAdminRequired — переход разрешён только администратору.
	ErrAdminRequired = errors.New("status transition requires admin")
)

// InvalidTransitionError — запрошенный статус недостижим из текущего.
type InvalidTransitionError struct {
	From domain.WorkerStatus
	To   domain.WorkerStatus
}

// Error реализует интерфейс error.
func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition %s -> %s", e.From, e.To)
}

// Unwrap возвращает ErrTransitionNotAllowed.
func (e *InvalidTransitionError) Unwrap() error {
	return ErrTransitionNotAllowed
}

// PermissionError — не-администратор запросил переход, доступный только администратору.
type PermissionError struct {
	From domain.WorkerStatus
	To   domain.WorkerStatus
}

// Error реализует интерфейс error.
func (e *PermissionError) Error() string {
	return fmt.Sprintf("transition %s -> %s requires admin", e.From, e.To)
}

// Unwrap возвращает ErrAdminRequired.
func (e *PermissionError) Unwrap() error {
	return ErrAdminRequired
}
