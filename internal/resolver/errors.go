package resolver

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidBody — ответ 2xx, но тело не является JSON.
var ErrInvalidBody = errors.New("response body is not valid JSON")

// NetworkError — временная ошибка кандидата: сеть, 5xx, неожиданный статус.
// Такие ошибки повторяются с exponential backoff.
type NetworkError struct {
	Candidate  string
	StatusCode int // 0, если ответа не было
	Err        error
}

// Error реализует интерфейс error.
func (e *NetworkError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("candidate %s: HTTP %d: %v", e.Candidate, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("candidate %s: %v", e.Candidate, e.Err)
}

// Unwrap возвращает базовую ошибку.
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// AuthorizationError — кандидат ответил 401/403. Не повторяется.
type AuthorizationError struct {
	Candidate  string
	StatusCode int
}

// Error реализует интерфейс error.
func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("candidate %s: not authorized (HTTP %d)", e.Candidate, e.StatusCode)
}

// RateLimitError — кандидат ответил 429.
type RateLimitError struct {
	Candidate string

	// RetryAfter — значение заголовка Retry-After, если бэкенд его прислал.
	RetryAfter time.Duration
}

// Error реализует интерфейс error.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("candidate %s: rate limited", e.Candidate)
}

// Failure — итоговая причина отказа одного кандидата.
type Failure struct {
	// Candidate — имя кандидата (RequestSpec.Name).
	Candidate string

	// Attempts — сколько запросов было отправлено этому кандидату.
	Attempts int

	// Err — ошибка последней попытки.
	Err error
}

// String возвращает строковое представление Failure.
func (f Failure) String() string {
	return fmt.Sprintf("%s (%d attempts): %v", f.Candidate, f.Attempts, f.Err)
}

// ResolutionExhaustedError — ни один кандидат не ответил успешно.
type ResolutionExhaustedError struct {
	// Failures — причины отказа в порядке кандидатов.
	Failures []Failure
}

// Error реализует интерфейс error.
func (e *ResolutionExhaustedError) Error() string {
	if len(e.Failures) == 0 {
		return "resolution exhausted: no candidates"
	}
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = f.String()
	}
	return fmt.Sprintf("resolution exhausted after %d candidates: %s", len(e.Failures), strings.Join(parts, "; "))
}

// Unwrap возвращает ошибки всех кандидатов (для errors.Is / errors.As).
func (e *ResolutionExhaustedError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f.Err
	}
	return errs
}

// IsExhausted проверяет, что err — *ResolutionExhaustedError.
func IsExhausted(err error) bool {
	var exhausted *ResolutionExhaustedError
	return errors.As(err, &exhausted)
}
