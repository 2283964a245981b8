package normalize

import (
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/shaiso/WasteOps/internal/domain"
)

// RecentWindow — запись, созданная не дальше этого окна от момента
// нормализации, всегда считается PENDING: бэкенд сразу после создания
// может вернуть устаревший статус.
const RecentWindow = 5 * time.Minute

// DefaultName — имя работника, если ни одно правило не сработало.
const DefaultName = "Unnamed worker"

// Правила полей. Порядок внутри списка — приоритет.
var (
	idRules = []rule[string]{
		stringAt("_id"),
		stringAt("_id.$oid"),
		stringAt("id"),
		stringAt("userId"),
	}

	workerIDRules = []rule[string]{
		stringAt("workerId"),
		stringAt("userId"),
		stringAt("workerDetails.employeeId"),
		stringAt("employeeId"),
	}

	nameRules = []rule[string]{
		stringAt("name"),
		stringAt("fullName"),
		stringAt("workerDetails.name"),
		fullNameFromParts(),
	}

	emailRules = []rule[string]{
		stringAt("email"),
		stringAt("workerDetails.email"),
		stringAt("contact.email"),
	}

	phoneRules = []rule[string]{
		stringAt("phone"),
		stringAt("phoneNumber"),
		stringAt("workerDetails.phone"),
		stringAt("contact.phone"),
	}

	avatarRules = []rule[string]{
		stringAt("avatar"),
		stringAt("profileImage"),
		stringAt("workerDetails.avatar"),
	}

	workerTypeRules = []rule[domain.WorkerType]{
		workerTypeAt("workerType"),
		workerTypeAt("workerDetails.workerType"),
		roleDerivedType(),
	}

	zoneRules = []rule[string]{
		refAt("zone"),
		refAt("workerDetails.zone"),
		refAt("zoneId"),
		refAt("assignedZone"),
	}

	statusRules = []rule[domain.WorkerStatus]{
		statusAt("workerStatus"),
		statusAt("status"),
		statusAt("workerDetails.status"),
	}

	shiftRules = []rule[domain.Shift]{
		shiftAt("shift"),
		shiftAt("workerDetails.shift"),
	}

	lastLoginRules = []rule[time.Time]{
		timeAt("lastLogin"),
		timeAt("lastActive"),
		timeAt("workerDetails.lastLogin"),
	}

	createdAtRules = []rule[time.Time]{
		timeAt("createdAt"),
		timeAt("created_at"),
	}

	joinedDateRules = []rule[time.Time]{
		timeAt("joinedDate"),
		timeAt("workerDetails.joinedDate"),
		timeAt("createdAt"),
		timeAt("created_at"),
	}
)

// performanceRules строит правила для показателя field:
// performance.X → workerDetails.performance.X → X.
func performanceRules(field string) []rule[float64] {
	return []rule[float64]{
		numberAt("performance." + field),
		numberAt("workerDetails.performance." + field),
		numberAt(field),
	}
}

var (
	ratingRules          = performanceRules("rating")
	efficiencyRules      = performanceRules("efficiency")
	tasksCompletedRules  = performanceRules("tasksCompleted")
	binsCollectedRules   = performanceRules("binsCollected")
	distanceCoveredRules = performanceRules("distanceCovered")
)

// Normalizer собирает domain.Worker из сырых записей.
type Normalizer struct {
	now    func() time.Time
	newID  func() string
	logger *slog.Logger
}

// Config — конфигурация Normalizer.
type Config struct {
	// Now — источник текущего времени (default: time.Now).
	Now func() time.Time

	// NewID — генератор ID для записей без идентификатора (default: uuid).
	NewID func() string

	Logger *slog.Logger
}

// New создаёт Normalizer.
func New(cfg Config) *Normalizer {
	n := &Normalizer{now: cfg.Now, newID: cfg.NewID, logger: cfg.Logger}
	if n.now == nil {
		n.now = time.Now
	}
	if n.newID == nil {
		n.newID = uuid.NewString
	}
	if n.logger == nil {
		n.logger = slog.Default()
	}
	return n
}

// Normalize строит канонического работника из одной сырой записи.
func (n *Normalizer) Normalize(raw gjson.Result) domain.Worker {
	now := n.now()

	w := domain.Worker{
		ID:           firstMatch(raw, idRules, ""),
		WorkerID:     firstMatch(raw, workerIDRules, domain.PendingWorkerID),
		Name:         firstMatch(raw, nameRules, DefaultName),
		Email:        firstMatch(raw, emailRules, ""),
		Phone:        firstMatch(raw, phoneRules, ""),
		Avatar:       firstMatch(raw, avatarRules, ""),
		WorkerType:   firstMatch(raw, workerTypeRules, domain.WorkerTypeCollector),
		Zone:         firstMatch(raw, zoneRules, ""),
		WorkerStatus: firstMatch(raw, statusRules, domain.WorkerStatusPending),
		Shift:        firstMatch(raw, shiftRules, domain.ShiftMorning),
		Performance: domain.Performance{
			Rating:          firstMatch(raw, ratingRules, 0),
			Efficiency:      firstMatch(raw, efficiencyRules, 0),
			TasksCompleted:  firstMatch(raw, tasksCompletedRules, 0),
			BinsCollected:   firstMatch(raw, binsCollectedRules, 0),
			DistanceCovered: firstMatch(raw, distanceCoveredRules, 0),
		},
		CreatedAt:  firstMatch(raw, createdAtRules, time.Time{}),
		JoinedDate: firstMatch(raw, joinedDateRules, time.Time{}),
	}

	if lastLogin := firstMatch(raw, lastLoginRules, time.Time{}); !lastLogin.IsZero() {
		w.LastLogin = &lastLogin
	}

	if w.ID == "" {
		w.ID = n.newID()
	}

	if isRecent(w.CreatedAt, now) && w.WorkerStatus != domain.WorkerStatusPending {
		n.logger.Debug("recently created worker forced to pending",
			"worker_id", w.WorkerID,
			"reported_status", w.WorkerStatus,
			"created_at", w.CreatedAt,
		)
		w.WorkerStatus = domain.WorkerStatusPending
	}

	return w
}

// NormalizeJSON — Normalize для одной записи в виде JSON.
func (n *Normalizer) NormalizeJSON(data []byte) domain.Worker {
	return n.Normalize(gjson.ParseBytes(data))
}

// workerShape — обёртки списка работников и поля, выдающие одиночную запись.
var workerShape = Shape{
	Wrappers: []string{"workers", "data", "data.workers"},
	Identity: []string{"_id", "id", "userId", "workerId", "email", "name"},
}

// NormalizeList разворачивает ответ списка работников и нормализует каждую запись.
//
// Поддерживаемые формы: Worker[], {workers: Worker[]}, {data: Worker[]},
// {data: {workers: Worker[]}}, одиночный Worker. Обёртка без массива
// и объект без полей работника дают пустой список.
func (n *Normalizer) NormalizeList(body []byte) []domain.Worker {
	records := Records(body, workerShape)

	workers := make([]domain.Worker, 0, len(records))
	for _, raw := range records {
		workers = append(workers, n.Normalize(raw))
	}
	return workers
}

// isRecent проверяет, что createdAt известен и лежит в окне RecentWindow от now.
func isRecent(createdAt, now time.Time) bool {
	if createdAt.IsZero() {
		return false
	}
	diff := now.Sub(createdAt)
	if diff < 0 {
		diff = -diff
	}
	return diff <= RecentWindow
}

// fullNameFromParts — firstName + lastName, если есть хотя бы одна часть.
func fullNameFromParts() rule[string] {
	join := func(raw gjson.Result) string {
		first, _ := scalarString(raw.Get("firstName"))
		last, _ := scalarString(raw.Get("lastName"))
		return strings.TrimSpace(first + " " + last)
	}
	return rule[string]{
		name:      "firstName+lastName",
		predicate: func(raw gjson.Result) bool { return join(raw) != "" },
		extract:   join,
	}
}

// workerTypeAt — распознанный тип работника по пути path.
func workerTypeAt(path string) rule[domain.WorkerType] {
	return rule[domain.WorkerType]{
		name: path,
		predicate: func(raw gjson.Result) bool {
			s, ok := scalarString(raw.Get(path))
			if !ok {
				return false
			}
			_, known := domain.ParseWorkerType(s)
			return known
		},
		extract: func(raw gjson.Result) domain.WorkerType {
			t, _ := domain.ParseWorkerType(raw.Get(path).String())
			return t
		},
	}
}

// roleDerivedType выводит тип работника из поля role.
// Роли driver/supervisor/sweeper/cleaner совпадают с типом, остальные — collector.
func roleDerivedType() rule[domain.WorkerType] {
	return rule[domain.WorkerType]{
		name: "role",
		predicate: func(raw gjson.Result) bool {
			_, ok := scalarString(raw.Get("role"))
			return ok
		},
		extract: func(raw gjson.Result) domain.WorkerType {
			t, _ := domain.ParseWorkerType(raw.Get("role").String())
			return t
		},
	}
}

// statusAt — распознанный статус по пути path. Нераспознанные значения пропускаются.
func statusAt(path string) rule[domain.WorkerStatus] {
	return rule[domain.WorkerStatus]{
		name: path,
		predicate: func(raw gjson.Result) bool {
			s, ok := scalarString(raw.Get(path))
			if !ok {
				return false
			}
			_, known := domain.ParseWorkerStatus(s)
			return known
		},
		extract: func(raw gjson.Result) domain.WorkerStatus {
			st, _ := domain.ParseWorkerStatus(raw.Get(path).String())
			return st
		},
	}
}

// shiftAt — распознанная смена по пути path.
func shiftAt(path string) rule[domain.Shift] {
	return rule[domain.Shift]{
		name: path,
		predicate: func(raw gjson.Result) bool {
			s, ok := scalarString(raw.Get(path))
			if !ok {
				return false
			}
			_, known := domain.ParseShift(s)
			return known
		},
		extract: func(raw gjson.Result) domain.Shift {
			sh, _ := domain.ParseShift(raw.Get(path).String())
			return sh
		},
	}
}
