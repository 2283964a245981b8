package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/shaiso/WasteOps/internal/domain"
	"github.com/shaiso/WasteOps/internal/lifecycle"
	"github.com/shaiso/WasteOps/internal/normalize"
	"github.com/shaiso/WasteOps/internal/resolver"
	"github.com/shaiso/WasteOps/internal/telemetry"
)

// IDPlaceholder подставляется в URL кандидатов обновления вместо Worker.ID.
const IDPlaceholder = "{id}"

var (
	// ErrWorkerNotFound — работника нет в текущей коллекции.
	ErrWorkerNotFound = errors.New("worker not found")

	// ErrSuperseded — результат загрузки отброшен: после неё стартовала более новая.
	ErrSuperseded = errors.New("refresh superseded by a newer fetch")
)

// Resolver — перебор кандидатов-эндпоинтов.
type Resolver interface {
	Resolve(ctx context.Context, candidates []resolver.RequestSpec) (*resolver.Result, error)
}

// Directory владеет канонической коллекцией работников.
//
// Коллекция целиком пересобирается при каждой загрузке. Между загрузками
// меняется только статус — после подтверждённого бэкендом PATCH.
type Directory struct {
	resolver   Resolver
	normalizer *normalize.Normalizer
	list       []resolver.RequestSpec
	update     []resolver.RequestSpec
	sinks      []EventSink
	logger     *slog.Logger

	mu         sync.RWMutex
	byID       map[string]domain.Worker
	order      []string
	generation uint64
	lastErr    error
	updatedAt  time.Time
	listeners  []func()
}

// Config — конфигурация Directory.
type Config struct {
	Resolver   Resolver
	Normalizer *normalize.Normalizer

	// ListCandidates — эндпоинты списка работников.
	ListCandidates []resolver.RequestSpec

	// UpdateCandidates — эндпоинты PATCH записи; URL содержит {id}.
	UpdateCandidates []resolver.RequestSpec

	// Sinks — получатели событий StatusChanged.
	Sinks []EventSink

	Logger *slog.Logger
}

// New создаёт Directory с пустой коллекцией.
func New(cfg Config) *Directory {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	normalizer := cfg.Normalizer
	if normalizer == nil {
		normalizer = normalize.New(normalize.Config{Logger: logger})
	}
	return &Directory{
		resolver:   cfg.Resolver,
		normalizer: normalizer,
		list:       cfg.ListCandidates,
		update:     cfg.UpdateCandidates,
		sinks:      cfg.Sinks,
		logger:     logger,
		byID:       make(map[string]domain.Worker),
	}
}

// OnChange регистрирует fn, вызываемую после каждого изменения коллекции.
func (d *Directory) OnChange(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, fn)
}

// Refresh загружает коллекцию заново.
//
// Побеждает последняя начатая загрузка: если во время запроса стартовала
// другая, результат отбрасывается и возвращается ErrSuperseded.
// Если все кандидаты отказали, коллекция очищается, ошибка сохраняется
// в LastError и возвращается.
func (d *Directory) Refresh(ctx context.Context) error {
	d.mu.Lock()
	d.generation++
	gen := d.generation
	d.mu.Unlock()

	logger := d.logger.With("generation", gen)
	start := time.Now()

	res, err := d.resolver.Resolve(ctx, d.list)
	telemetry.DirectoryRefreshDuration.Observe(time.Since(start).Seconds())

	if err != nil && ctx.Err() != nil {
		// Остановка процесса: коллекцию не трогаем.
		return err
	}

	var workers []domain.Worker
	if err == nil {
		workers = d.normalizer.NormalizeList(res.Body)
	}

	d.mu.Lock()
	if gen != d.generation {
		latest := d.generation
		d.mu.Unlock()
		telemetry.DirectoryRefreshes.WithLabelValues("stale").Inc()
		logger.Info("discarding stale directory fetch", "latest_generation", latest)
		return ErrSuperseded
	}

	d.replaceLocked(workers)
	d.lastErr = err
	d.updatedAt = time.Now()
	count := len(d.order)
	d.mu.Unlock()

	telemetry.DirectoryWorkers.Set(float64(count))
	d.notify()

	if err != nil {
		telemetry.DirectoryRefreshes.WithLabelValues("failed").Inc()
		logger.Error("directory refresh failed", "error", err)
		return err
	}

	telemetry.DirectoryRefreshes.WithLabelValues("applied").Inc()
	logger.Info("directory refreshed",
		"candidate", res.Candidate,
		"workers", count,
		"duration", time.Since(start),
	)
	return nil
}

// replaceLocked атомарно заменяет коллекцию. Вызывается под d.mu.
func (d *Directory) replaceLocked(workers []domain.Worker) {
	byID := make(map[string]domain.Worker, len(workers))
	order := make([]string, 0, len(workers))
	for _, w := range workers {
		if _, seen := byID[w.ID]; !seen {
			order = append(order, w.ID)
		}
		byID[w.ID] = w
	}
	d.byID = byID
	d.order = order
}

// Workers возвращает копию коллекции в порядке загрузки.
func (d *Directory) Workers() []domain.Worker {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]domain.Worker, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.byID[id].Clone())
	}
	return out
}

// Get ищет работника по ID записи или по табельному номеру.
func (d *Directory) Get(id string) (domain.Worker, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	w, ok := d.findLocked(id)
	if !ok {
		return domain.Worker{}, fmt.Errorf("%w: %s", ErrWorkerNotFound, id)
	}
	return w.Clone(), nil
}

func (d *Directory) findLocked(id string) (domain.Worker, bool) {
	if w, ok := d.byID[id]; ok {
		return w, true
	}
	if id == "" || id == domain.PendingWorkerID {
		return domain.Worker{}, false
	}
	for _, recordID := range d.order {
		if w := d.byID[recordID]; w.WorkerID == id {
			return w, true
		}
	}
	return domain.Worker{}, false
}

// LastError — ошибка последней применённой загрузки.
func (d *Directory) LastError() error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lastErr
}

// UpdatedAt — время последней применённой загрузки (zero, если её не было).
func (d *Directory) UpdatedAt() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.updatedAt
}

// Stats — сводка по коллекции.
type Stats struct {
	Total    int                         `json:"total"`
	ByStatus map[domain.WorkerStatus]int `json:"byStatus"`
}

// Stats считает работников по статусам. Все статусы присутствуют в карте.
func (d *Directory) Stats() Stats {
	d.mu.RLock()
	defer d.mu.RUnlock()

	stats := Stats{Total: len(d.order), ByStatus: make(map[domain.WorkerStatus]int, len(domain.WorkerStatuses))}
	for _, s := range domain.WorkerStatuses {
		stats.ByStatus[s] = 0
	}
	for _, w := range d.byID {
		stats.ByStatus[w.WorkerStatus]++
	}
	return stats
}

// ChangeStatus переводит работника в статус to.
//
// Переход проверяется автоматом (lifecycle), затем сохраняется PATCH'ем
// через resolver. Только после успеха запись обновляется локально
// и получатели событий получают StatusChanged.
func (d *Directory) ChangeStatus(ctx context.Context, id string, to domain.WorkerStatus, actorIsAdmin bool) (domain.Worker, error) {
	current, err := d.Get(id)
	if err != nil {
		return domain.Worker{}, err
	}

	next, err := lifecycle.ApplyTransition(current, to, actorIsAdmin)
	if err != nil {
		return domain.Worker{}, err
	}
	return d.commit(ctx, current, next, actorIsAdmin)
}

// Approve одобряет заявку работника id (pending → inactive).
func (d *Directory) Approve(ctx context.Context, id string, actorIsAdmin bool) (domain.Worker, error) {
	return d.decide(ctx, id, actorIsAdmin, lifecycle.Approve)
}

// Reject отклоняет заявку работника id (pending → rejected).
func (d *Directory) Reject(ctx context.Context, id string, actorIsAdmin bool) (domain.Worker, error) {
	return d.decide(ctx, id, actorIsAdmin, lifecycle.Reject)
}

func (d *Directory) decide(ctx context.Context, id string, actorIsAdmin bool, fn func(domain.Worker, bool) (domain.Worker, error)) (domain.Worker, error) {
	current, err := d.Get(id)
	if err != nil {
		return domain.Worker{}, err
	}

	next, err := fn(current, actorIsAdmin)
	if err != nil {
		return domain.Worker{}, err
	}
	return d.commit(ctx, current, next, actorIsAdmin)
}

// commit сохраняет переход current → next на бэкенде, затем обновляет
// локальную запись и рассылает StatusChanged.
func (d *Directory) commit(ctx context.Context, current, next domain.Worker, actorIsAdmin bool) (domain.Worker, error) {
	to := next.WorkerStatus
	logger := telemetry.WithWorkerID(d.logger, current.WorkerID).With("record_id", current.ID)

	if _, err := d.resolver.Resolve(ctx, d.updateCandidates(current.ID, to)); err != nil {
		logger.Error("failed to persist status change",
			"from", current.WorkerStatus,
			"to", to,
			"error", err,
		)
		return domain.Worker{}, fmt.Errorf("persist status change: %w", err)
	}

	d.mu.Lock()
	if stored, ok := d.byID[current.ID]; ok {
		stored.WorkerStatus = to
		d.byID[current.ID] = stored
	}
	d.mu.Unlock()

	telemetry.StatusChanges.WithLabelValues(string(current.WorkerStatus), string(to)).Inc()
	logger.Info("worker status changed", "from", current.WorkerStatus, "to", to, "by_admin", actorIsAdmin)

	d.publish(ctx, domain.NewStatusChanged(next, current.WorkerStatus, actorIsAdmin))
	d.notify()

	return next, nil
}

// updateCandidates строит PATCH-запросы для записи id.
func (d *Directory) updateCandidates(id string, to domain.WorkerStatus) []resolver.RequestSpec {
	escaped := url.PathEscape(id)

	out := make([]resolver.RequestSpec, len(d.update))
	for i, spec := range d.update {
		spec.URL = strings.ReplaceAll(spec.URL, IDPlaceholder, escaped)
		if spec.Method == "" {
			spec.Method = "PATCH"
		}
		spec.Body = map[string]any{"workerStatus": to}
		out[i] = spec
	}
	return out
}

func (d *Directory) publish(ctx context.Context, event domain.StatusChanged) {
	for _, sink := range d.sinks {
		if err := sink.StatusChanged(ctx, event); err != nil {
			d.logger.Warn("status change event not delivered",
				"event_id", event.EventID,
				"worker_id", event.WorkerID,
				"error", err,
			)
		}
	}
}

func (d *Directory) notify() {
	d.mu.RLock()
	listeners := append([]func(){}, d.listeners...)
	d.mu.RUnlock()

	for _, fn := range listeners {
		fn()
	}
}
