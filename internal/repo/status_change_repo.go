package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/WasteOps/internal/domain"
)

// DefaultHistoryLimit — сколько записей истории отдавать без явного лимита.
const DefaultHistoryLimit = 50

const statusChangesSchema = `
	CREATE TABLE IF NOT EXISTS worker_status_changes (
		event_id        uuid PRIMARY KEY,
		record_id       text        NOT NULL,
		worker_id       text        NOT NULL DEFAULT '',
		previous_status text        NOT NULL,
		new_status      text        NOT NULL,
		by_admin        boolean     NOT NULL DEFAULT false,
		occurred_at     timestamptz NOT NULL,
		recorded_at     timestamptz NOT NULL DEFAULT now()
	);
	CREATE INDEX IF NOT EXISTS worker_status_changes_record_idx
		ON worker_status_changes (record_id, occurred_at DESC);
	CREATE INDEX IF NOT EXISTS worker_status_changes_worker_idx
		ON worker_status_changes (worker_id, occurred_at DESC);
`

// DB — часть pgxpool.Pool, которой пользуется репозиторий.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

var _ DB = (*pgxpool.Pool)(nil)

// StatusChangeRepo — журнал смен статуса работников.
type StatusChangeRepo struct {
	db DB
}

// NewStatusChangeRepo создаёт StatusChangeRepo.
func NewStatusChangeRepo(db DB) *StatusChangeRepo {
	return &StatusChangeRepo{db: db}
}

// EnsureSchema создаёт таблицу журнала, если её нет.
func (r *StatusChangeRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, statusChangesSchema); err != nil {
		return fmt.Errorf("ensure status change schema: %w", err)
	}
	return nil
}

// Insert записывает событие. Повторная запись того же EventID
// возвращает ErrDuplicate и ничего не меняет.
func (r *StatusChangeRepo) Insert(ctx context.Context, e domain.StatusChanged) error {
	query := `
		INSERT INTO worker_status_changes
			(event_id, record_id, worker_id, previous_status, new_status, by_admin, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (event_id) DO NOTHING
	`
	tag, err := r.db.Exec(ctx, query,
		e.EventID,
		e.RecordID,
		e.WorkerID,
		string(e.PreviousStatus),
		string(e.NewStatus),
		e.ByAdmin,
		e.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("insert status change: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicate
	}
	return nil
}

// ListByWorker возвращает историю работника, новые записи первыми.
// id сравнивается и с record_id, и с worker_id.
func (r *StatusChangeRepo) ListByWorker(ctx context.Context, id string, limit int) ([]domain.StatusChanged, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	query := `
		SELECT event_id, record_id, worker_id, previous_status, new_status, by_admin, occurred_at
		FROM worker_status_changes
		WHERE record_id = $1 OR (worker_id <> '' AND worker_id = $1)
		ORDER BY occurred_at DESC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, id, limit)
	if err != nil {
		return nil, fmt.Errorf("list status changes: %w", err)
	}
	defer rows.Close()

	history := []domain.StatusChanged{}
	for rows.Next() {
		var (
			e              domain.StatusChanged
			previous, next string
		)
		if err := rows.Scan(&e.EventID, &e.RecordID, &e.WorkerID, &previous, &next, &e.ByAdmin, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan status change: %w", err)
		}
		e.PreviousStatus = domain.WorkerStatus(previous)
		e.NewStatus = domain.WorkerStatus(next)
		e.OccurredAt = e.OccurredAt.UTC()
		history = append(history, e)
	}
	return history, rows.Err()
}
