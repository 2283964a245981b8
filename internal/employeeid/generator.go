// Package employeeid выдаёт табельные номера работников.
//
// Номер запрашивается у сервиса последовательностей. Если сервис
// недоступен, генерируется временный номер со случайным суффиксом:
// он не авторитетен и может совпасть с уже выданным.
package employeeid

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/shaiso/WasteOps/internal/domain"
	"github.com/shaiso/WasteOps/internal/normalize"
	"github.com/shaiso/WasteOps/internal/resolver"
	"github.com/shaiso/WasteOps/internal/telemetry"
)

// DefaultPrefix — префикс номеров для всех типов работников.
const DefaultPrefix = "WRK"

// formatted — уже отформатированный номер, например "WRK-25-0042".
var formatted = regexp.MustCompile(`^[A-Z]+-\d{2}-\d{4,}$`)

// Resolver — перебор кандидатов-эндпоинтов.
type Resolver interface {
	Resolve(ctx context.Context, candidates []resolver.RequestSpec) (*resolver.Result, error)
}

// EmployeeID — выданный номер.
type EmployeeID struct {
	Value string `json:"employeeId"`

	// Provisional — номер сгенерирован локально и может совпасть с существующим.
	Provisional bool `json:"provisional"`
}

// String возвращает значение номера.
func (id EmployeeID) String() string {
	return id.Value
}

// Generator выдаёт номера формата {PREFIX}-{YY}-{NNNN}.
type Generator struct {
	resolver  Resolver
	candidate resolver.RequestSpec
	prefix    string
	now       func() time.Time
	randN     func(n int) int
	logger    *slog.Logger
}

// Config — конфигурация Generator.
type Config struct {
	Resolver Resolver

	// Sequence — эндпоинт сервиса последовательностей.
	Sequence resolver.RequestSpec

	// Prefix — префикс номера (default: "WRK").
	Prefix string

	// Now — источник времени для года (default: time.Now).
	Now func() time.Time

	// RandN — генератор случайного числа в [0, n) (default: math/rand/v2).
	RandN func(n int) int

	Logger *slog.Logger
}

// New создаёт Generator.
func New(cfg Config) *Generator {
	g := &Generator{
		resolver:  cfg.Resolver,
		candidate: cfg.Sequence,
		prefix:    cfg.Prefix,
		now:       cfg.Now,
		randN:     cfg.RandN,
		logger:    cfg.Logger,
	}
	if g.prefix == "" {
		g.prefix = DefaultPrefix
	}
	if g.now == nil {
		g.now = time.Now
	}
	if g.randN == nil {
		g.randN = rand.IntN
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	return g
}

// Next возвращает следующий номер для работника с типом role.
// Не возвращает ошибок: при сбое сервиса выдаётся временный номер.
func (g *Generator) Next(ctx context.Context, role domain.WorkerType) EmployeeID {
	logger := g.logger.With("role", role)

	res, err := g.resolver.Resolve(ctx, []resolver.RequestSpec{g.candidate})
	if err != nil {
		logger.Warn("sequence service unavailable, issuing provisional employee id", "error", err)
		return g.provisional()
	}

	if value, ok := g.fromResponse(res.Body); ok {
		logger.Debug("employee id issued", "employee_id", value)
		return EmployeeID{Value: value}
	}

	logger.Warn("sequence service returned unusable payload, issuing provisional employee id",
		"candidate", res.Candidate,
		"body", string(res.Body),
	)
	return g.provisional()
}

// Format собирает номер из порядкового числа.
func (g *Generator) Format(seq int) string {
	return fmt.Sprintf("%s-%02d-%04d", g.prefix, g.now().Year()%100, seq)
}

// fromResponse извлекает номер из {employeeId} | {nextId} (в корне или в data).
func (g *Generator) fromResponse(body []byte) (string, bool) {
	raw := gjson.ParseBytes(body)

	value := normalize.FirstString(raw, "employeeId", "nextId", "data.employeeId", "data.nextId")
	if value == "" && raw.Type == gjson.Number {
		value = raw.Raw
	}
	if value == "" {
		return "", false
	}

	if formatted.MatchString(value) {
		return value, true
	}
	seq, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || seq < 0 {
		return "", false
	}
	return g.Format(seq), true
}

func (g *Generator) provisional() EmployeeID {
	telemetry.ProvisionalEmployeeIDs.Inc()
	return EmployeeID{Value: g.Format(g.randN(10000)), Provisional: true}
}
