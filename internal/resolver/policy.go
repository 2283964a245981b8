package resolver

import "time"

// maxBackoff ограничивает задержку между попытками.
const maxBackoff = 30 * time.Second

// Policy — политика повторных попыток для одного кандидата.
type Policy struct {
	// MaxRetries — количество повторов после первой попытки.
	MaxRetries int

	// BaseDelay — базовая задержка; перед повтором n ждём BaseDelay * 2^n.
	BaseDelay time.Duration

	// RateLimitExtraDelay — добавка к backoff после ответа 429.
	RateLimitExtraDelay time.Duration
}

// DefaultPolicy возвращает политику по умолчанию.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:          2,
		BaseDelay:           500 * time.Millisecond,
		RateLimitExtraDelay: 2 * time.Second,
	}
}

// Backoff вычисляет задержку после неудачной попытки attempt (с нуля).
func (p Policy) Backoff(attempt int) time.Duration {
	delay := p.BaseDelay
	if delay <= 0 {
		return 0
	}
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}

// normalized возвращает копию политики без отрицательных значений.
func (p Policy) normalized() Policy {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.BaseDelay < 0 {
		p.BaseDelay = 0
	}
	if p.RateLimitExtraDelay < 0 {
		p.RateLimitExtraDelay = 0
	}
	return p
}

// rateLimitExtra — добавка к задержке после 429: RateLimitExtraDelay
// или Retry-After бэкенда, если он больше (но не выше maxBackoff).
func (p Policy) rateLimitExtra(retryAfter time.Duration) time.Duration {
	return max(p.RateLimitExtraDelay, min(retryAfter, maxBackoff))
}
