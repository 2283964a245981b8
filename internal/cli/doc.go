// Package cli реализует утилиту командной строки консоли WasteOps.
//
// CLI работает только через HTTP API и не импортирует внутренние
// пакеты справочника.
//
// Client инкапсулирует запросы, разбор конвертов ответа
// (data/total/error) и роль актора: с флагом --admin каждый запрос
// несёт X-Actor-Role: admin.
//
// Output печатает таблицы (text/tabwriter) или JSON с флагом --json.
// Данные идут в stdout, сообщения в stderr:
//
//	wasteops workers list --status active --json | jq .
//
// Команды:
//   - workers: list, show, refresh, stats, set-status, transitions, history
//   - zones: list
//   - ids: next
//
// Фабрики команд (NewWorkersCmd и т.д.) принимают clientFn и outputFn,
// чтобы Client и Output создавались после разбора PersistentFlags.
package cli
