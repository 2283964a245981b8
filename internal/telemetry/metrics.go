package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Исходы одной попытки resolver'а.
const (
	OutcomeSuccess     = "success"
	OutcomeAuth        = "unauthorized"
	OutcomeRateLimited = "rate_limited"
	OutcomeFailure     = "failure"
)

var (
	// ResolverAttempts — попытки запросов к кандидатам по исходу.
	ResolverAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wasteops_resolver_attempts_total",
		Help: "Requests issued by the endpoint resolver, by candidate and outcome",
	}, []string{"candidate", "outcome"})

	// ResolverExhausted — сколько раз все кандидаты оказались недоступны.
	ResolverExhausted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wasteops_resolver_exhausted_total",
		Help: "Resolutions that failed on every candidate",
	})

	// DirectoryRefreshes — обновления справочника по результату.
	DirectoryRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wasteops_directory_refreshes_total",
		Help: "Directory refresh cycles, by result (applied, stale, failed)",
	}, []string{"result"})

	// DirectoryRefreshDuration — длительность загрузки справочника.
	DirectoryRefreshDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "wasteops_directory_refresh_duration_seconds",
		Help:    "Time spent fetching and normalizing the worker directory",
		Buckets: prometheus.DefBuckets,
	})

	// DirectoryWorkers — размер канонической коллекции.
	DirectoryWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wasteops_directory_workers",
		Help: "Workers currently held in the canonical collection",
	})

	// StatusChanges — подтверждённые смены статуса.
	StatusChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wasteops_worker_status_changes_total",
		Help: "Worker status transitions persisted to the backend",
	}, []string{"from", "to"})

	// ZoneFallbacks — сколько раз вместо зон бэкенда выданы встроенные.
	ZoneFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wasteops_zone_fallbacks_total",
		Help: "Zone resolutions answered with the built-in default zones",
	})

	// ProvisionalEmployeeIDs — выданные непроверенные табельные номера.
	ProvisionalEmployeeIDs = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wasteops_provisional_employee_ids_total",
		Help: "Employee ids generated locally because the sequence service failed",
	})

	// EventsPublished — публикация событий в брокер по результату.
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wasteops_events_published_total",
		Help: "Domain events sent to RabbitMQ, by type and result",
	}, []string{"type", "result"})

	// AuditRecords — обработанные журналом аудита события по результату.
	AuditRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wasteops_audit_records_total",
		Help: "Status change events handled by the audit consumer, by result (stored, duplicate, rejected, failed)",
	}, []string{"result"})
)
