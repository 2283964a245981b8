// Package zones разрешает операционные зоны и их отображаемые имена.
//
// Источники зон перебираются через resolver. Если ни один не ответил,
// возвращается встроенный набор domain.DefaultZones: вызывающий код
// никогда не получает пустой список.
package zones

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/tidwall/gjson"

	"github.com/shaiso/WasteOps/internal/domain"
	"github.com/shaiso/WasteOps/internal/normalize"
	"github.com/shaiso/WasteOps/internal/resolver"
	"github.com/shaiso/WasteOps/internal/telemetry"
)

// Unassigned — отображаемое имя для пустой зоны.
const Unassigned = "Unassigned"

var (
	// ErrDefaultsUsed — источники недоступны, возвращены встроенные зоны.
	ErrDefaultsUsed = errors.New("zone sources unavailable, using default zones")

	// ErrNoZones — источник ответил, но зон в ответе нет.
	ErrNoZones = errors.New("zone source returned no zones")
)

// Resolver — перебор кандидатов-эндпоинтов.
type Resolver interface {
	Resolve(ctx context.Context, candidates []resolver.RequestSpec) (*resolver.Result, error)
}

// Service разрешает и кэширует список зон.
type Service struct {
	resolver   Resolver
	candidates []resolver.RequestSpec
	defaults   []domain.Zone
	logger     *slog.Logger

	mu      sync.RWMutex
	loaded  bool
	zones   []domain.Zone
	lastErr error
}

// Config — конфигурация Service.
type Config struct {
	Resolver Resolver

	// Candidates — источники списка зон в порядке приоритета.
	Candidates []resolver.RequestSpec

	// Defaults — запасной набор (default: domain.DefaultZones()).
	Defaults []domain.Zone

	Logger *slog.Logger
}

// New создаёт Service.
func New(cfg Config) *Service {
	defaults := cfg.Defaults
	if len(defaults) == 0 {
		defaults = domain.DefaultZones()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		resolver:   cfg.Resolver,
		candidates: cfg.Candidates,
		defaults:   defaults,
		logger:     logger,
	}
}

// ResolveZones запрашивает зоны у источников без кэша.
//
// Результат никогда не пуст. Ошибка (ErrDefaultsUsed) лишь сообщает,
// что вместо ответа бэкенда возвращены встроенные зоны.
func (s *Service) ResolveZones(ctx context.Context) ([]domain.Zone, error) {
	res, err := s.resolver.Resolve(ctx, s.candidates)
	if err != nil {
		telemetry.ZoneFallbacks.Inc()
		s.logger.Warn("zone resolution failed, using defaults", "error", err)
		return s.defaultZones(), fmt.Errorf("%w: %w", ErrDefaultsUsed, err)
	}

	zones := ParseZones(res.Body)
	if len(zones) == 0 {
		telemetry.ZoneFallbacks.Inc()
		s.logger.Warn("zone source returned no zones, using defaults", "candidate", res.Candidate)
		return s.defaultZones(), fmt.Errorf("%w: %w", ErrDefaultsUsed, ErrNoZones)
	}

	s.logger.Debug("zones resolved", "candidate", res.Candidate, "zones", len(zones))
	return zones, nil
}

// Zones возвращает закэшированные зоны, загружая их при первом вызове.
func (s *Service) Zones(ctx context.Context) []domain.Zone {
	s.mu.RLock()
	if s.loaded {
		zones := cloneZones(s.zones)
		s.mu.RUnlock()
		return zones
	}
	s.mu.RUnlock()

	return s.Refresh(ctx)
}

// Refresh перезапрашивает зоны и обновляет кэш.
func (s *Service) Refresh(ctx context.Context) []domain.Zone {
	zones, err := s.ResolveZones(ctx)

	s.mu.Lock()
	s.zones = zones
	s.loaded = true
	s.lastErr = err
	s.mu.Unlock()

	return cloneZones(zones)
}

// Loaded возвращает true, если кэш заполнен.
func (s *Service) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// LastError — ошибка последней загрузки (nil, если ответил бэкенд).
func (s *Service) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Reset сбрасывает кэш: следующий Zones снова обратится к источникам.
func (s *Service) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = false
	s.zones = nil
	s.lastErr = nil
}

// NameFor — ZoneNameFor по текущему кэшу.
func (s *Service) NameFor(ctx context.Context, idOrName string) string {
	return ZoneNameFor(idOrName, s.Zones(ctx))
}

func (s *Service) defaultZones() []domain.Zone {
	return cloneZones(s.defaults)
}

var zoneShape = normalize.Shape{
	Wrappers: []string{"data", "zones", "data.zones"},
	Identity: []string{"_id", "id", "zoneId", "code", "name", "zoneName", "title"},
}

// ParseZones разворачивает ответ Zone[] | {data: Zone[]} | {zones: Zone[]}
// и приводит записи к domain.Zone. Записи без id и имени пропускаются.
func ParseZones(body []byte) []domain.Zone {
	records := normalize.Records(body, zoneShape)

	zones := make([]domain.Zone, 0, len(records))
	for _, raw := range records {
		if z, ok := parseZone(raw); ok {
			zones = append(zones, z)
		}
	}
	return zones
}

func parseZone(raw gjson.Result) (domain.Zone, bool) {
	z := domain.Zone{
		ID:   normalize.FirstString(raw, "_id", "id", "zoneId", "code"),
		Name: normalize.FirstString(raw, "name", "zoneName", "title"),
		Code: normalize.FirstString(raw, "code", "zoneCode"),
	}
	if z.ID == "" && z.Name == "" {
		return domain.Zone{}, false
	}
	if z.ID == "" {
		z.ID = z.Name
	}
	if z.Name == "" {
		z.Name = z.ID
	}
	return z, true
}

// ZoneNameFor возвращает отображаемое имя зоны.
//
// Порядок: точное совпадение id → точное совпадение имени → код →
// вхождение подстроки (без учёта регистра) → сам вход без изменений.
// Пустой вход даёт Unassigned. Результат никогда не пуст.
func ZoneNameFor(idOrName string, zones []domain.Zone) string {
	key := strings.TrimSpace(idOrName)
	if key == "" {
		return Unassigned
	}

	for _, z := range zones {
		if z.ID == key {
			return displayName(z, key)
		}
	}
	for _, z := range zones {
		if z.Name == key {
			return displayName(z, key)
		}
	}
	for _, z := range zones {
		if z.Code != "" && strings.EqualFold(z.Code, key) {
			return displayName(z, key)
		}
	}

	lower := strings.ToLower(key)
	for _, z := range zones {
		name := strings.ToLower(z.Name)
		if name == "" {
			continue
		}
		if strings.Contains(name, lower) || strings.Contains(lower, name) {
			return displayName(z, key)
		}
	}

	return idOrName
}

func displayName(z domain.Zone, fallback string) string {
	if z.Name != "" {
		return z.Name
	}
	return fallback
}

func cloneZones(zones []domain.Zone) []domain.Zone {
	out := make([]domain.Zone, len(zones))
	copy(out, zones)
	return out
}
