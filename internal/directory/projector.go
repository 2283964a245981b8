package directory

import (
	"log/slog"
	"sync"
	"time"

	"github.com/shaiso/WasteOps/internal/domain"
	"github.com/shaiso/WasteOps/internal/filter"
)

const (
	defaultDebounce      = 50 * time.Millisecond
	defaultSafetyTimeout = 3 * time.Second
)

// Source — источник коллекции для проекции.
type Source interface {
	Workers() []domain.Worker
}

// Projector поддерживает отфильтрованное представление коллекции.
//
// Любое изменение источника или критериев помечает представление
// устаревшим (Loading) и планирует пересчёт через debounce. Частые
// изменения склеиваются в один пересчёт. Если пересчёт не завершился
// за safety timeout, флаг Loading снимается принудительно.
type Projector struct {
	source   Source
	engine   *filter.Engine
	debounce time.Duration
	safety   time.Duration
	logger   *slog.Logger
	onUpdate func(view []domain.Worker)

	mu          sync.Mutex
	criteria    filter.Criteria
	view        []domain.Worker
	loading     bool
	seq         uint64
	debounceT   *time.Timer
	safetyT     *time.Timer
	safetyEpoch uint64
	closed      bool
}

// ProjectorConfig — конфигурация Projector.
type ProjectorConfig struct {
	Source Source
	Engine *filter.Engine

	// Criteria — начальные критерии (default: filter.DefaultCriteria()).
	Criteria *filter.Criteria

	// Debounce — задержка склейки изменений (default: 50ms).
	Debounce time.Duration

	// SafetyTimeout — предел, после которого Loading снимается (default: 3s).
	SafetyTimeout time.Duration

	// OnUpdate вызывается после каждого пересчёта (опционально).
	OnUpdate func(view []domain.Worker)

	Logger *slog.Logger
}

// NewProjector создаёт Projector. Первое представление строится сразу.
func NewProjector(cfg ProjectorConfig) *Projector {
	p := &Projector{
		source:   cfg.Source,
		engine:   cfg.Engine,
		debounce: cfg.Debounce,
		safety:   cfg.SafetyTimeout,
		logger:   cfg.Logger,
		onUpdate: cfg.OnUpdate,
		criteria: filter.DefaultCriteria(),
	}
	if cfg.Criteria != nil {
		p.criteria = *cfg.Criteria
	}
	if p.debounce <= 0 {
		p.debounce = defaultDebounce
	}
	if p.safety <= 0 {
		p.safety = defaultSafetyTimeout
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.engine == nil {
		p.engine = filter.NewEngine(p.logger)
	}

	p.view = p.engine.Apply(p.source.Workers(), p.criteria)
	return p
}

// Invalidate помечает представление устаревшим и планирует пересчёт.
func (p *Projector) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scheduleLocked()
}

// SetCriteria меняет критерии и планирует пересчёт.
func (p *Projector) SetCriteria(c filter.Criteria) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.criteria = c
	p.scheduleLocked()
}

// Criteria возвращает текущие критерии.
func (p *Projector) Criteria() filter.Criteria {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.criteria
}

// View возвращает последнее вычисленное представление.
// Срез никогда не изменяется после публикации.
func (p *Projector) View() []domain.Worker {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.view
}

// Loading — идёт ли пересчёт.
func (p *Projector) Loading() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loading
}

// Close останавливает таймеры. Последующие Invalidate игнорируются.
func (p *Projector) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	if p.debounceT != nil {
		p.debounceT.Stop()
	}
	if p.safetyT != nil {
		p.safetyT.Stop()
	}
	p.loading = false
}

func (p *Projector) scheduleLocked() {
	if p.closed {
		return
	}
	p.seq++
	p.loading = true

	if p.debounceT != nil {
		p.debounceT.Stop()
	}
	seq := p.seq
	p.debounceT = time.AfterFunc(p.debounce, func() { p.recompute(seq) })

	if p.safetyT == nil {
		p.safetyEpoch++
		epoch := p.safetyEpoch
		p.safetyT = time.AfterFunc(p.safety, func() { p.expire(epoch) })
	}
}

// recompute строит представление для изменения seq.
func (p *Projector) recompute(seq uint64) {
	p.mu.Lock()
	if p.closed || seq != p.seq {
		p.mu.Unlock()
		return
	}
	criteria := p.criteria
	p.mu.Unlock()

	view := p.engine.Apply(p.source.Workers(), criteria)

	p.mu.Lock()
	if p.closed || seq != p.seq {
		// За время пересчёта пришло новое изменение: его таймер уже запущен.
		p.mu.Unlock()
		return
	}
	p.view = view
	p.loading = false
	if p.safetyT != nil {
		p.safetyT.Stop()
		p.safetyT = nil
	}
	onUpdate := p.onUpdate
	p.mu.Unlock()

	if onUpdate != nil {
		onUpdate(view)
	}
}

// expire снимает Loading по safety timeout.
func (p *Projector) expire(epoch uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if epoch != p.safetyEpoch || p.safetyT == nil {
		return
	}
	p.safetyT = nil
	if p.loading {
		p.loading = false
		p.logger.Warn("worker view recomputation exceeded safety timeout", "timeout", p.safety)
	}
}
