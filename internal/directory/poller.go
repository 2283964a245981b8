package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Расписания по умолчанию.
const (
	DefaultWorkersSchedule = "@every 60s"
	DefaultZonesSchedule   = "@every 5m"
)

// scheduleParser понимает стандартные cron-выражения и дескрипторы (@every, @hourly).
var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSchedule проверяет и разбирает расписание.
func ParseSchedule(expr string) (cron.Schedule, error) {
	schedule, err := scheduleParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", expr, err)
	}
	return schedule, nil
}

// Job — периодическая задача поллера.
type Job struct {
	Name     string
	Schedule string
	Run      func(ctx context.Context) error
}

type scheduledJob struct {
	Job
	schedule cron.Schedule
	nextDue  time.Time
}

// Poller периодически запускает задачи по расписанию.
type Poller struct {
	jobs   []*scheduledJob
	tick   time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// PollerConfig — конфигурация Poller.
type PollerConfig struct {
	Jobs []Job

	// Tick — период проверки расписаний (default: 1s).
	Tick time.Duration

	// Now — источник времени (default: time.Now).
	Now func() time.Time

	Logger *slog.Logger
}

// NewPoller создаёт Poller. Ошибка, если какое-либо расписание некорректно.
func NewPoller(cfg PollerConfig) (*Poller, error) {
	p := &Poller{tick: cfg.Tick, now: cfg.Now, logger: cfg.Logger}
	if p.tick <= 0 {
		p.tick = time.Second
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}

	start := p.now()
	for _, job := range cfg.Jobs {
		schedule, err := ParseSchedule(job.Schedule)
		if err != nil {
			return nil, fmt.Errorf("job %s: %w", job.Name, err)
		}
		p.jobs = append(p.jobs, &scheduledJob{
			Job:      job,
			schedule: schedule,
			nextDue:  schedule.Next(start),
		})
	}
	return p, nil
}

// Tick запускает задачи, срок которых наступил к now, и сдвигает их следующий запуск.
// Ошибки одной задачи не блокируют остальные.
func (p *Poller) Tick(ctx context.Context, now time.Time) {
	for _, job := range p.jobs {
		if now.Before(job.nextDue) {
			continue
		}
		job.nextDue = job.schedule.Next(now)

		if err := job.Run(ctx); err != nil {
			if errors.Is(err, ErrSuperseded) || ctx.Err() != nil {
				continue
			}
			p.logger.Warn("poll job failed", "job", job.Name, "error", err)
			continue
		}
		p.logger.Debug("poll job completed", "job", job.Name, "next_due", job.nextDue)
	}
}

// NextDue возвращает время следующего запуска задачи name.
func (p *Poller) NextDue(name string) (time.Time, bool) {
	for _, job := range p.jobs {
		if job.Name == name {
			return job.nextDue, true
		}
	}
	return time.Time{}, false
}

// Run выполняет цикл поллера до отмены ctx.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("poller started", "jobs", len(p.jobs), "tick", p.tick)

	tk := time.NewTicker(p.tick)
	defer tk.Stop()

	for {
		select {
		case <-tk.C:
			p.Tick(ctx, p.now())
		case <-ctx.Done():
			p.logger.Info("poller stopped")
			return nil
		}
	}
}
