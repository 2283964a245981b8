package resolver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shaiso/WasteOps/internal/telemetry"
)

const (
	defaultRequestTimeout = 15 * time.Second

	// maxBodySize ограничивает чтение ответа бэкенда.
	maxBodySize = 10 << 20
)

// RequestSpec — описание одного кандидата-эндпоинта.
type RequestSpec struct {
	// Name — имя кандидата для логов и метрик. По умолчанию "METHOD URL".
	Name string

	// Method — HTTP-метод. Default: GET
	Method string

	// URL — полный адрес запроса (обязательно).
	URL string

	// Headers — дополнительные заголовки (например, Authorization).
	Headers map[string]string

	// Body — тело запроса, сериализуется в JSON. nil — без тела.
	Body any
}

// label возвращает имя кандидата.
func (s RequestSpec) label() string {
	if s.Name != "" {
		return s.Name
	}
	return s.method() + " " + s.URL
}

func (s RequestSpec) method() string {
	if s.Method == "" {
		return http.MethodGet
	}
	return strings.ToUpper(s.Method)
}

// Doer — минимальный HTTP-клиент. *http.Client удовлетворяет интерфейсу.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Sleeper ожидает d или отмены ctx.
type Sleeper func(ctx context.Context, d time.Duration) error

// Result — успешный ответ кандидата.
type Result struct {
	// Candidate — имя ответившего кандидата.
	Candidate string

	// Index — позиция кандидата в списке.
	Index int

	StatusCode int

	// Body — тело ответа (валидный JSON; "null" для пустого тела).
	Body json.RawMessage

	// Attempts — сколько запросов ушло к этому кандидату.
	Attempts int

	// Failures — отказы предыдущих кандидатов, по одному на кандидата.
	Failures []Failure
}

// Resolver перебирает кандидатов согласно Policy.
type Resolver struct {
	client  Doer
	policy  Policy
	timeout time.Duration
	sleep   Sleeper
	logger  *slog.Logger
}

// Config — конфигурация Resolver.
type Config struct {
	// Client — HTTP-клиент (опционально; по умолчанию &http.Client{}).
	Client Doer

	// Policy — политика повторов.
	Policy Policy

	// Timeout — таймаут одного запроса (default: 15s).
	Timeout time.Duration

	// Sleep — функция ожидания (опционально; подменяется в тестах).
	Sleep Sleeper

	Logger *slog.Logger
}

// New создаёт Resolver.
func New(cfg Config) *Resolver {
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	sleep := cfg.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Resolver{
		client:  client,
		policy:  cfg.Policy.normalized(),
		timeout: timeout,
		sleep:   sleep,
		logger:  logger,
	}
}

// Policy возвращает действующую политику.
func (r *Resolver) Policy() Policy {
	return r.policy
}

// Resolve перебирает кандидатов по порядку и возвращает первый успешный ответ.
//
// Если все кандидаты отказали, возвращает *ResolutionExhaustedError.
// При отмене ctx возвращает ctx.Err().
func (r *Resolver) Resolve(ctx context.Context, candidates []RequestSpec) (*Result, error) {
	failures := make([]Failure, 0, len(candidates))

	for i, spec := range candidates {
		result, failure, err := r.tryCandidate(ctx, spec)
		if err != nil {
			return nil, err
		}

		if result != nil {
			result.Index = i
			result.Failures = failures
			if len(failures) > 0 {
				r.logger.Info("resolved after fallback",
					"candidate", result.Candidate,
					"failed_candidates", len(failures),
				)
			}
			return result, nil
		}

		failures = append(failures, failure)
		r.logger.Warn("candidate failed, trying next",
			"candidate", failure.Candidate,
			"attempts", failure.Attempts,
			"error", failure.Err,
		)
	}

	telemetry.ResolverExhausted.Inc()
	return nil, &ResolutionExhaustedError{Failures: failures}
}

// tryCandidate выполняет запросы к одному кандидату с retry.
// Возвращает либо результат, либо Failure; error — только отмена ctx.
func (r *Resolver) tryCandidate(ctx context.Context, spec RequestSpec) (*Result, Failure, error) {
	name := spec.label()
	logger := telemetry.WithCandidate(r.logger, name)

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, Failure{}, err
		}

		status, body, attemptErr := r.attempt(ctx, spec, name)
		if attemptErr == nil {
			telemetry.ResolverAttempts.WithLabelValues(name, telemetry.OutcomeSuccess).Inc()
			return &Result{
				Candidate:  name,
				StatusCode: status,
				Body:       body,
				Attempts:   attempt + 1,
			}, Failure{}, nil
		}

		failure := Failure{Candidate: name, Attempts: attempt + 1, Err: attemptErr}

		var authErr *AuthorizationError
		if errors.As(attemptErr, &authErr) {
			telemetry.ResolverAttempts.WithLabelValues(name, telemetry.OutcomeAuth).Inc()
			return nil, failure, nil
		}

		delay := r.policy.Backoff(attempt)

		var rateErr *RateLimitError
		if errors.As(attemptErr, &rateErr) {
			telemetry.ResolverAttempts.WithLabelValues(name, telemetry.OutcomeRateLimited).Inc()
			delay += r.policy.rateLimitExtra(rateErr.RetryAfter)
		} else {
			telemetry.ResolverAttempts.WithLabelValues(name, telemetry.OutcomeFailure).Inc()
		}

		if attempt >= r.policy.MaxRetries {
			return nil, failure, nil
		}

		logger.Debug("retrying candidate",
			"attempt", attempt+1,
			"delay", delay,
			"error", attemptErr,
		)

		if err := r.sleep(ctx, delay); err != nil {
			return nil, Failure{}, err
		}
	}
}

// attempt выполняет один HTTP-запрос и классифицирует ответ.
func (r *Resolver) attempt(ctx context.Context, spec RequestSpec, name string) (int, json.RawMessage, error) {
	if spec.URL == "" {
		return 0, nil, &NetworkError{Candidate: name, Err: errors.New("url is required")}
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var bodyReader io.Reader
	if spec.Body != nil {
		payload, err := json.Marshal(spec.Body)
		if err != nil {
			return 0, nil, &NetworkError{Candidate: name, Err: fmt.Errorf("marshal body: %w", err)}
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, spec.method(), spec.URL, bodyReader)
	if err != nil {
		return 0, nil, &NetworkError{Candidate: name, Err: fmt.Errorf("create request: %w", err)}
	}

	req.Header.Set("Accept", "application/json")
	if bodyReader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, val := range spec.Headers {
		req.Header.Set(key, val)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, nil, &NetworkError{Candidate: name, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return resp.StatusCode, nil, &NetworkError{
			Candidate:  name,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("read response: %w", err),
		}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return resp.StatusCode, nil, &AuthorizationError{Candidate: name, StatusCode: resp.StatusCode}

	case resp.StatusCode == http.StatusTooManyRequests:
		return resp.StatusCode, nil, &RateLimitError{
			Candidate:  name,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}

	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		body := bytes.TrimSpace(raw)
		if len(body) == 0 {
			return resp.StatusCode, json.RawMessage("null"), nil
		}
		if !json.Valid(body) {
			return resp.StatusCode, nil, &NetworkError{
				Candidate:  name,
				StatusCode: resp.StatusCode,
				Err:        ErrInvalidBody,
			}
		}
		return resp.StatusCode, json.RawMessage(body), nil

	default:
		msg := truncate(strings.TrimSpace(string(raw)), 200)
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return resp.StatusCode, nil, &NetworkError{
			Candidate:  name,
			StatusCode: resp.StatusCode,
			Err:        errors.New(msg),
		}
	}
}

// sleepContext ждёт d или отмены ctx.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// parseRetryAfter разбирает Retry-After в секундах; иные форматы игнорируются.
func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// truncate обрезает строку до указанной длины.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
