// Package config загружает конфигурацию консоли.
//
// Порядок: значения по умолчанию → YAML-файл → переменные окружения
// с префиксом WASTEOPS_ → валидация.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/shaiso/WasteOps/internal/resolver"
)

// EnvPrefix — префикс переменных окружения.
const EnvPrefix = "WASTEOPS"

// Config — конфигурация консоли.
type Config struct {
	Server     Server     `yaml:"server" split_words:"true"`
	Backend    Backend    `yaml:"backend" split_words:"true"`
	Endpoints  Endpoints  `yaml:"endpoints" ignored:"true"`
	Retry      Retry      `yaml:"retry" split_words:"true"`
	Polling    Polling    `yaml:"polling" split_words:"true"`
	View       View       `yaml:"view" split_words:"true"`
	EmployeeID EmployeeID `yaml:"employeeId" split_words:"true"`
	AMQP       AMQP       `yaml:"amqp" split_words:"true"`
	Database   Database   `yaml:"database" split_words:"true"`
	Audit      Audit      `yaml:"audit" split_words:"true"`
}

// Server — HTTP API консоли.
type Server struct {
	Addr string `yaml:"addr" split_words:"true" validate:"required"`
}

// Backend — общий адрес и токен бэкенда.
type Backend struct {
	BaseURL string        `yaml:"baseUrl" split_words:"true" validate:"required,url"`
	Token   string        `yaml:"token" split_words:"true"`
	Timeout time.Duration `yaml:"timeout" split_words:"true" validate:"gte=0"`
}

// Endpoint — один кандидат. Path относителен Backend.BaseURL,
// если не начинается с http:// или https://.
type Endpoint struct {
	Name    string            `yaml:"name"`
	Method  string            `yaml:"method" validate:"omitempty,oneof=GET POST PUT PATCH get post put patch"`
	Path    string            `yaml:"path" validate:"required"`
	Headers map[string]string `yaml:"headers"`
}

// Endpoints — кандидаты по операциям, в порядке приоритета.
type Endpoints struct {
	Workers  []Endpoint `yaml:"workers" validate:"required,min=1,dive"`
	Zones    []Endpoint `yaml:"zones" validate:"dive"`
	Update   []Endpoint `yaml:"update" validate:"required,min=1,dive"`
	Sequence Endpoint   `yaml:"sequence"`
}

// Retry — политика повторов resolver'а.
type Retry struct {
	MaxRetries          int           `yaml:"maxRetries" split_words:"true" validate:"gte=0,lte=10"`
	BaseDelay           time.Duration `yaml:"baseDelay" split_words:"true" validate:"gte=0"`
	RateLimitExtraDelay time.Duration `yaml:"rateLimitExtraDelay" split_words:"true" validate:"gte=0"`
}

// Polling — расписания обновления (cron или @every).
type Polling struct {
	Workers string `yaml:"workers" split_words:"true" validate:"required"`
	Zones   string `yaml:"zones" split_words:"true" validate:"required"`
}

// View — параметры пересчёта отфильтрованного представления.
type View struct {
	Debounce      time.Duration `yaml:"debounce" split_words:"true" validate:"gt=0"`
	SafetyTimeout time.Duration `yaml:"safetyTimeout" split_words:"true" validate:"gtfield=Debounce"`
}

// EmployeeID — параметры табельных номеров.
type EmployeeID struct {
	Prefix string `yaml:"prefix" split_words:"true" validate:"required,alpha,uppercase"`
}

// AMQP — публикация событий в RabbitMQ. Пустой URL отключает публикацию.
type AMQP struct {
	URL string `yaml:"url" split_words:"true" validate:"omitempty,url"`
}

// Database — Postgres для журнала смен статуса.
type Database struct {
	DSN string `yaml:"dsn" split_words:"true"`
}

// Audit — потребитель журнала смен статуса.
type Audit struct {
	// MetricsAddr — адрес /healthz и /metrics процесса аудита.
	MetricsAddr string `yaml:"metricsAddr" split_words:"true" validate:"required"`
	Prefetch    int    `yaml:"prefetch" split_words:"true" validate:"gte=1,lte=1000"`
}

// Default возвращает рабочую конфигурацию без файла.
func Default() Config {
	return Config{
		Server: Server{Addr: ":8080"},
		Backend: Backend{
			BaseURL: "http://localhost:5000",
			Timeout: 15 * time.Second,
		},
		Endpoints: Endpoints{
			Workers: []Endpoint{
				{Name: "workers", Path: "/api/workers"},
				{Name: "users-by-role", Path: "/api/users?role=worker"},
				{Name: "admin-workers", Path: "/api/admin/workers"},
			},
			Zones: []Endpoint{
				{Name: "zones", Path: "/api/zones"},
				{Name: "admin-zones", Path: "/api/admin/zones"},
			},
			Update: []Endpoint{
				{Name: "worker-patch", Method: "PATCH", Path: "/api/workers/{id}"},
				{Name: "user-patch", Method: "PATCH", Path: "/api/users/{id}"},
			},
			Sequence: Endpoint{Name: "sequence", Path: "/api/sequences/worker/next"},
		},
		Retry: Retry{
			MaxRetries:          2,
			BaseDelay:           500 * time.Millisecond,
			RateLimitExtraDelay: 2 * time.Second,
		},
		Polling: Polling{
			Workers: "@every 60s",
			Zones:   "@every 5m",
		},
		View: View{
			Debounce:      50 * time.Millisecond,
			SafetyTimeout: 3 * time.Second,
		},
		EmployeeID: EmployeeID{Prefix: "WRK"},
		Audit:      Audit{MetricsAddr: ":9091", Prefetch: 10},
	}
}

// Load читает конфигурацию. path == "" — только значения по умолчанию и окружение.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("env overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var validate = validator.New()

// Validate проверяет конфигурацию.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Policy — политика повторов для resolver.
func (c Config) Policy() resolver.Policy {
	return resolver.Policy{
		MaxRetries:          c.Retry.MaxRetries,
		BaseDelay:           c.Retry.BaseDelay,
		RateLimitExtraDelay: c.Retry.RateLimitExtraDelay,
	}
}

// WorkerCandidates — кандидаты списка работников.
func (c Config) WorkerCandidates() []resolver.RequestSpec {
	return c.specs(c.Endpoints.Workers)
}

// ZoneCandidates — кандидаты списка зон.
func (c Config) ZoneCandidates() []resolver.RequestSpec {
	return c.specs(c.Endpoints.Zones)
}

// UpdateCandidates — кандидаты PATCH записи (URL с {id}).
func (c Config) UpdateCandidates() []resolver.RequestSpec {
	return c.specs(c.Endpoints.Update)
}

// SequenceCandidate — эндпоинт сервиса последовательностей.
func (c Config) SequenceCandidate() resolver.RequestSpec {
	return c.spec(c.Endpoints.Sequence)
}

func (c Config) specs(endpoints []Endpoint) []resolver.RequestSpec {
	out := make([]resolver.RequestSpec, 0, len(endpoints))
	for _, e := range endpoints {
		out = append(out, c.spec(e))
	}
	return out
}

func (c Config) spec(e Endpoint) resolver.RequestSpec {
	headers := make(map[string]string, len(e.Headers)+1)
	if c.Backend.Token != "" {
		headers["Authorization"] = "Bearer " + c.Backend.Token
	}
	for k, v := range e.Headers {
		headers[k] = v
	}

	return resolver.RequestSpec{
		Name:    e.Name,
		Method:  strings.ToUpper(e.Method),
		URL:     c.resolveURL(e.Path),
		Headers: headers,
	}
}

func (c Config) resolveURL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return strings.TrimRight(c.Backend.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}
