// Package telemetry обеспечивает наблюдаемость консоли.
//
// Включает:
//   - logging.go — structured logging через slog
//   - metrics.go — Prometheus метрики resolver'а и справочника
//
// Все бинарники используют единый формат логирования
// и экспортируют метрики на /metrics endpoint.
package telemetry
