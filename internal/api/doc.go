// Package api содержит HTTP API консоли справочника работников.
//
// Структура:
//   - handler.go        — Handler и его зависимости
//   - routes.go         — регистрация маршрутов
//   - middleware.go     — logging, recovery, роль актора
//   - response.go       — JSON-конверт ответов и отображение ошибок
//   - dto.go            — запросы и ответы
//   - worker_handler.go — /workers и /events
//   - view_handler.go   — /view (отложенная проекция)
//   - zone_handler.go   — /zones и /employee-ids
//
// Роль актора передаётся заголовком X-Actor-Role: значение "admin"
// разрешает переходы, помеченные как административные.
package api
