package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/shaiso/WasteOps/internal/directory"
	"github.com/shaiso/WasteOps/internal/domain"
	"github.com/shaiso/WasteOps/internal/employeeid"
	"github.com/shaiso/WasteOps/internal/filter"
)

// Directory — справочник работников.
type Directory interface {
	Workers() []domain.Worker
	Get(id string) (domain.Worker, error)
	Refresh(ctx context.Context) error
	ChangeStatus(ctx context.Context, id string, to domain.WorkerStatus, actorIsAdmin bool) (domain.Worker, error)
	Approve(ctx context.Context, id string, actorIsAdmin bool) (domain.Worker, error)
	Reject(ctx context.Context, id string, actorIsAdmin bool) (domain.Worker, error)
	Stats() directory.Stats
	LastError() error
	UpdatedAt() time.Time
}

// Zones — источник зон.
type Zones interface {
	Zones(ctx context.Context) []domain.Zone
	Refresh(ctx context.Context) []domain.Zone
	LastError() error
}

// EmployeeIDs — генератор табельных номеров.
type EmployeeIDs interface {
	Next(ctx context.Context, role domain.WorkerType) employeeid.EmployeeID
}

// History — журнал смен статуса.
type History interface {
	History(ctx context.Context, id string, limit int) ([]domain.StatusChanged, error)
}

// Events — лента последних смен статуса.
type Events interface {
	Events() []domain.StatusChanged
}

// View — отложенная проекция для дашборда.
type View interface {
	View() []domain.Worker
	Loading() bool
	Criteria() filter.Criteria
	SetCriteria(c filter.Criteria)
}

var (
	_ Directory   = (*directory.Directory)(nil)
	_ View        = (*directory.Projector)(nil)
	_ EmployeeIDs = (*employeeid.Generator)(nil)
	_ Events      = (*directory.MemorySink)(nil)
)

// Handler — обработчик API с зависимостями.
type Handler struct {
	directory Directory
	zones     Zones
	ids       EmployeeIDs
	history   History
	events    Events
	view      View
	engine    *filter.Engine
	validate  *validator.Validate
	logger    *slog.Logger
}

// Config — зависимости Handler. History, Events и View опциональны:
// без них соответствующие маршруты отвечают 503.
type Config struct {
	Directory   Directory
	Zones       Zones
	EmployeeIDs EmployeeIDs
	History     History
	Events      Events
	View        View
	Engine      *filter.Engine
	Logger      *slog.Logger
}

// NewHandler создаёт Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	engine := cfg.Engine
	if engine == nil {
		engine = filter.NewEngine(logger)
	}
	return &Handler{
		directory: cfg.Directory,
		zones:     cfg.Zones,
		ids:       cfg.EmployeeIDs,
		history:   cfg.History,
		events:    cfg.Events,
		view:      cfg.View,
		engine:    engine,
		validate:  newValidator(),
		logger:    logger,
	}
}
