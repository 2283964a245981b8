// Package resolver выполняет запрос к бэкенду через упорядоченный список
// равнозначных эндпоинтов (кандидатов).
//
// # Обзор
//
// Бэкенд консоли ненадёжен: одна и та же операция доступна по нескольким
// путям, часть из них периодически отвечает 5xx, требует другой токен
// или ограничивает частоту запросов. Resolver перебирает кандидатов по
// порядку, пока один не ответит 2xx:
//
//	res, err := r.Resolve(ctx, []resolver.RequestSpec{
//	    {Name: "workers", Method: http.MethodGet, URL: base + "/api/workers"},
//	    {Name: "users-role-worker", Method: http.MethodGet, URL: base + "/api/users?role=worker"},
//	})
//
// # Политика
//
// Для каждого кандидата:
//   - 2xx — сразу возвращаем тело, остальные кандидаты не трогаем
//   - 401/403 — без retry, переходим к следующему кандидату
//   - 429 — ждём backoff + RateLimitExtraDelay и повторяем
//   - всё остальное (сеть, 5xx, невалидный JSON) — exponential backoff
//     BaseDelay * 2^attempt, не больше MaxRetries повторов
//
// Если все кандидаты исчерпаны, возвращается *ResolutionExhaustedError
// со списком причин по каждому кандидату. Частичные результаты
// не возвращаются никогда.
//
// Ожидание между попытками прерывается по ctx.
package resolver
