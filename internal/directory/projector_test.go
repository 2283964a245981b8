package directory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/WasteOps/internal/domain"
	"github.com/shaiso/WasteOps/internal/filter"
	"github.com/shaiso/WasteOps/internal/telemetry"
)

// staticSource — источник с подменяемой коллекцией и счётчиком чтений.
type staticSource struct {
	mu      sync.Mutex
	workers []domain.Worker
	reads   atomic.Int32
	block   chan struct{}
}

func (s *staticSource) Workers() []domain.Worker {
	s.reads.Add(1)
	s.mu.Lock()
	block := s.block
	out := append([]domain.Worker(nil), s.workers...)
	s.mu.Unlock()
	if block != nil {
		<-block
	}
	return out
}

func (s *staticSource) set(workers []domain.Worker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workers = workers
}

func projectorWorkers() []domain.Worker {
	return []domain.Worker{
		{ID: "1", Name: "Zed", WorkerStatus: domain.WorkerStatusActive},
		{ID: "2", Name: "Amy", WorkerStatus: domain.WorkerStatusPending},
		{ID: "3", Name: "Bea", WorkerStatus: domain.WorkerStatusActive},
	}
}

func viewIDs(view []domain.Worker) []string {
	out := make([]string, len(view))
	for i, w := range view {
		out[i] = w.ID
	}
	return out
}

func newTestProjector(src Source, debounce, safety time.Duration) *Projector {
	p := NewProjector(ProjectorConfig{
		Source:        src,
		Engine:        filter.NewEngine(telemetry.Discard()),
		Debounce:      debounce,
		SafetyTimeout: safety,
		Logger:        telemetry.Discard(),
	})
	return p
}

func TestProjector_InitialView(t *testing.T) {
	src := &staticSource{workers: projectorWorkers()}
	p := newTestProjector(src, 10*time.Millisecond, time.Second)
	defer p.Close()

	assert.Equal(t, []string{"2", "3", "1"}, viewIDs(p.View()))
	assert.False(t, p.Loading())
	assert.Equal(t, filter.DefaultCriteria(), p.Criteria())
}

func TestProjector_DebouncesCriteriaChanges(t *testing.T) {
	src := &staticSource{workers: projectorWorkers()}
	p := newTestProjector(src, 30*time.Millisecond, time.Second)
	defer p.Close()
	initialReads := src.reads.Load()

	for i := 0; i < 5; i++ {
		p.SetCriteria(filter.Criteria{Status: "active", SortBy: filter.SortNameDesc})
	}
	assert.True(t, p.Loading())

	require.Eventually(t, func() bool { return !p.Loading() }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"1", "3"}, viewIDs(p.View()))
	assert.Equal(t, initialReads+1, src.reads.Load(), "rapid changes coalesce into one recomputation")
}

func TestProjector_InvalidateOnSourceChange(t *testing.T) {
	src := &staticSource{workers: projectorWorkers()}
	updates := make(chan []domain.Worker, 1)
	p := NewProjector(ProjectorConfig{
		Source:   src,
		Debounce: 5 * time.Millisecond,
		OnUpdate: func(view []domain.Worker) { updates <- view },
		Logger:   telemetry.Discard(),
	})
	defer p.Close()

	src.set([]domain.Worker{{ID: "9", Name: "New"}})
	p.Invalidate()

	select {
	case view := <-updates:
		assert.Equal(t, []string{"9"}, viewIDs(view))
	case <-time.After(time.Second):
		t.Fatal("view was not recomputed")
	}
	assert.Equal(t, []string{"9"}, viewIDs(p.View()))
}

func TestProjector_PublishedViewIsNotMutated(t *testing.T) {
	src := &staticSource{workers: projectorWorkers()}
	p := newTestProjector(src, 5*time.Millisecond, time.Second)
	defer p.Close()

	before := p.View()
	snapshot := viewIDs(before)

	p.SetCriteria(filter.Criteria{Status: "pending"})
	require.Eventually(t, func() bool { return !p.Loading() }, time.Second, time.Millisecond)

	assert.Equal(t, []string{"2"}, viewIDs(p.View()))
	assert.Equal(t, snapshot, viewIDs(before))
}

func TestProjector_SafetyTimeoutClearsLoading(t *testing.T) {
	src := &staticSource{workers: projectorWorkers()}
	p := newTestProjector(src, time.Millisecond, 40*time.Millisecond)
	defer p.Close()

	block := make(chan struct{})
	src.mu.Lock()
	src.block = block
	src.mu.Unlock()

	p.Invalidate()
	assert.True(t, p.Loading())

	require.Eventually(t, func() bool { return !p.Loading() }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"2", "3", "1"}, viewIDs(p.View()), "stalled recomputation keeps the previous view")

	close(block)
}

func TestProjector_ClosedIgnoresChanges(t *testing.T) {
	src := &staticSource{workers: projectorWorkers()}
	p := newTestProjector(src, time.Millisecond, time.Second)
	p.Close()

	p.SetCriteria(filter.Criteria{Status: "pending"})
	assert.False(t, p.Loading())
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, p.View(), 3)
}

func TestPoller_RunsDueJobs(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	var workersRuns, zonesRuns atomic.Int32
	p, err := NewPoller(PollerConfig{
		Jobs: []Job{
			{Name: "workers", Schedule: DefaultWorkersSchedule, Run: func(context.Context) error { workersRuns.Add(1); return nil }},
			{Name: "zones", Schedule: DefaultZonesSchedule, Run: func(context.Context) error { zonesRuns.Add(1); return errors.New("down") }},
		},
		Now:    func() time.Time { return start },
		Logger: telemetry.Discard(),
	})
	require.NoError(t, err)

	next, ok := p.NextDue("workers")
	require.True(t, ok)
	assert.Equal(t, start.Add(time.Minute), next)

	ctx := context.Background()
	p.Tick(ctx, start.Add(30*time.Second))
	assert.Equal(t, int32(0), workersRuns.Load())

	p.Tick(ctx, start.Add(time.Minute))
	assert.Equal(t, int32(1), workersRuns.Load())
	assert.Equal(t, int32(0), zonesRuns.Load())

	p.Tick(ctx, start.Add(5*time.Minute))
	assert.Equal(t, int32(2), workersRuns.Load())
	assert.Equal(t, int32(1), zonesRuns.Load(), "failing job is still rescheduled")

	next, _ = p.NextDue("zones")
	assert.Equal(t, start.Add(10*time.Minute), next)

	_, ok = p.NextDue("unknown")
	assert.False(t, ok)
}

func TestPoller_InvalidSchedule(t *testing.T) {
	_, err := NewPoller(PollerConfig{Jobs: []Job{{Name: "bad", Schedule: "every minute"}}})
	assert.Error(t, err)

	_, err = ParseSchedule("*/5 * * * *")
	assert.NoError(t, err)
}

func TestPoller_RunStopsOnCancel(t *testing.T) {
	var runs, clock atomic.Int32
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	p, err := NewPoller(PollerConfig{
		Jobs: []Job{{Name: "workers", Schedule: "@every 1s", Run: func(context.Context) error { runs.Add(1); return nil }}},
		Tick: 5 * time.Millisecond,
		// Каждый вызов сдвигает часы на секунду.
		Now:    func() time.Time { return base.Add(time.Duration(clock.Add(1)) * time.Second) },
		Logger: telemetry.Discard(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool { return runs.Load() > 0 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}
