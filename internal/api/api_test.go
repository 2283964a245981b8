package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/WasteOps/internal/directory"
	"github.com/shaiso/WasteOps/internal/domain"
	"github.com/shaiso/WasteOps/internal/employeeid"
	"github.com/shaiso/WasteOps/internal/filter"
	"github.com/shaiso/WasteOps/internal/normalize"
	"github.com/shaiso/WasteOps/internal/resolver"
	"github.com/shaiso/WasteOps/internal/telemetry"
	"github.com/shaiso/WasteOps/internal/zones"
)

const workersBody = `{"data":[
	{"_id":"r1","workerId":"WRK-25-0001","name":"Ann","email":"ann@city.example","workerStatus":"active","workerType":"driver","zone":"z1","performance":{"rating":4.5}},
	{"_id":"r2","workerId":"WRK-25-0002","name":"Bob","workerStatus":"pending","workerType":"collector"},
	{"_id":"r3","workerId":"WRK-25-0003","name":"Cid","workerStatus":"active","workerType":"sweeper","zone":"z2"}
]}`

const zonesBody = `[{"_id":"z1","name":"North Depot","code":"N"},{"_id":"z2","name":"River Side","code":"R"}]`

// fakeBackend — бэкенд со списком, PATCH, зонами и последовательностью.
type fakeBackend struct {
	mu          sync.Mutex
	listStatus  int
	patchStatus int
	patches     int
}

func (b *fakeBackend) set(fn func(b *fakeBackend)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(b)
}

func (b *fakeBackend) patchCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.patches
}

func (b *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /workers", func(w http.ResponseWriter, _ *http.Request) {
		b.mu.Lock()
		status := b.listStatus
		b.mu.Unlock()
		w.WriteHeader(status)
		io.WriteString(w, workersBody)
	})
	mux.HandleFunc("PATCH /workers/{id}", func(w http.ResponseWriter, _ *http.Request) {
		b.mu.Lock()
		b.patches++
		status := b.patchStatus
		b.mu.Unlock()
		w.WriteHeader(status)
		io.WriteString(w, `{}`)
	})
	mux.HandleFunc("GET /zones", func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, zonesBody)
	})
	mux.HandleFunc("GET /seq", func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, `{"nextId":42}`)
	})
	return mux
}

// fakeHistory — журнал в памяти.
type fakeHistory struct {
	events []domain.StatusChanged
	err    error
}

func (f *fakeHistory) History(_ context.Context, id string, limit int) ([]domain.StatusChanged, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := []domain.StatusChanged{}
	for _, e := range f.events {
		if (e.RecordID == id || e.WorkerID == id) && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

type testEnv struct {
	backend   *fakeBackend
	directory *directory.Directory
	events    *directory.MemorySink
	history   *fakeHistory
	view      *directory.Projector
	server    *httptest.Server
}

func noSleep(context.Context, time.Duration) error { return nil }

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	b := &fakeBackend{listStatus: http.StatusOK, patchStatus: http.StatusOK}
	upstream := httptest.NewServer(b.handler())
	t.Cleanup(upstream.Close)

	logger := telemetry.Discard()
	res := resolver.New(resolver.Config{
		Policy: resolver.Policy{MaxRetries: 0, BaseDelay: time.Millisecond},
		Sleep:  noSleep,
		Logger: logger,
	})

	events := directory.NewMemorySink(10)
	dir := directory.New(directory.Config{
		Resolver:         res,
		Normalizer:       normalize.New(normalize.Config{Logger: logger}),
		ListCandidates:   []resolver.RequestSpec{{Name: "workers", URL: upstream.URL + "/workers"}},
		UpdateCandidates: []resolver.RequestSpec{{Name: "patch", URL: upstream.URL + "/workers/{id}"}},
		Sinks:            []directory.EventSink{events},
		Logger:           logger,
	})
	require.NoError(t, dir.Refresh(context.Background()))

	engine := filter.NewEngine(logger)
	view := directory.NewProjector(directory.ProjectorConfig{
		Source:   dir,
		Engine:   engine,
		Debounce: 5 * time.Millisecond,
		Logger:   logger,
	})
	t.Cleanup(view.Close)

	history := &fakeHistory{}
	h := NewHandler(Config{
		Directory: dir,
		Zones: zones.New(zones.Config{
			Resolver:   res,
			Candidates: []resolver.RequestSpec{{Name: "zones", URL: upstream.URL + "/zones"}},
			Logger:     logger,
		}),
		EmployeeIDs: employeeid.New(employeeid.Config{
			Resolver: res,
			Sequence: resolver.RequestSpec{Name: "seq", URL: upstream.URL + "/seq"},
			Now:      func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) },
			Logger:   logger,
		}),
		History: history,
		Events:  events,
		View:    view,
		Engine:  engine,
		Logger:  logger,
	})

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return &testEnv{backend: b, directory: dir, events: events, history: history, view: view, server: server}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, admin bool) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	if admin {
		req.Header.Set(ActorRoleHeader, "admin")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

type workersList struct {
	Data  []WorkerResponse `json:"data"`
	Total int              `json:"total"`
}

func names(list workersList) []string {
	out := make([]string, len(list.Data))
	for i, w := range list.Data {
		out[i] = w.Name
	}
	return out
}

func errorCode(t *testing.T, data []byte) ErrorCode {
	t.Helper()
	return decode[ErrorResponse](t, data).Error.Code
}

func TestListWorkers(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodGet, "/api/v1/workers", nil, false)
	require.Equal(t, http.StatusOK, status)
	list := decode[workersList](t, body)
	assert.Equal(t, []string{"Ann", "Bob", "Cid"}, names(list))
	assert.Equal(t, 3, list.Total)
	assert.Equal(t, "North Depot", list.Data[0].ZoneName)
	assert.Equal(t, zones.Unassigned, list.Data[1].ZoneName)

	status, body = env.do(t, http.MethodGet, "/api/v1/workers?status=ACTIVE&sortBy=name-desc", nil, false)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{"Cid", "Ann"}, names(decode[workersList](t, body)))

	status, body = env.do(t, http.MethodGet, "/api/v1/workers?search=city.example", nil, false)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{"Ann"}, names(decode[workersList](t, body)))

	status, body = env.do(t, http.MethodGet, "/api/v1/workers?zone=z2&workerType=sweeper", nil, false)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{"Cid"}, names(decode[workersList](t, body)))

	status, body = env.do(t, http.MethodGet, "/api/v1/workers?sortBy=age", nil, false)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, ErrCodeBadRequest, errorCode(t, body))
}

func TestGetWorker(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodGet, "/api/v1/workers/WRK-25-0003", nil, false)
	require.Equal(t, http.StatusOK, status)
	w := decode[DataResponse](t, body)
	assert.Equal(t, "r3", w.Data.(map[string]any)["id"])
	assert.Equal(t, "River Side", w.Data.(map[string]any)["zoneName"])

	status, body = env.do(t, http.MethodGet, "/api/v1/workers/nobody", nil, false)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, ErrCodeNotFound, errorCode(t, body))
}

func TestChangeWorkerStatus(t *testing.T) {
	tests := []struct {
		name       string
		id         string
		status     string
		admin      bool
		wantStatus int
		wantCode   ErrorCode
	}{
		{name: "worker transition", id: "r1", status: "on_leave", wantStatus: http.StatusOK},
		{name: "admin-only without admin", id: "r1", status: "suspended", wantStatus: http.StatusForbidden, wantCode: ErrCodeForbidden},
		{name: "admin-only as admin", id: "r1", status: "suspended", admin: true, wantStatus: http.StatusOK},
		{name: "approve pending", id: "WRK-25-0002", status: "inactive", admin: true, wantStatus: http.StatusOK},
		{name: "not in table", id: "r2", status: "onLeave", admin: true, wantStatus: http.StatusConflict, wantCode: ErrCodeInvalidTransition},
		{name: "unknown status", id: "r1", status: "retired", wantStatus: http.StatusBadRequest, wantCode: ErrCodeBadRequest},
		{name: "missing status", id: "r1", status: "", wantStatus: http.StatusBadRequest, wantCode: ErrCodeBadRequest},
		{name: "unknown worker", id: "r9", status: "active", wantStatus: http.StatusNotFound, wantCode: ErrCodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)

			status, body := env.do(t, http.MethodPatch, "/api/v1/workers/"+tt.id+"/status",
				ChangeStatusRequest{Status: tt.status}, tt.admin)
			require.Equal(t, tt.wantStatus, status, string(body))

			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, errorCode(t, body))
				assert.Zero(t, env.backend.patchCount())
				assert.Empty(t, env.events.Events())
				return
			}

			assert.Equal(t, 1, env.backend.patchCount())
			require.Len(t, env.events.Events(), 1)
			assert.Equal(t, tt.admin, env.events.Events()[0].ByAdmin)
		})
	}
}

func TestApproveRejectWorker(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		admin      bool
		wantStatus int
		wantCode   ErrorCode
		wantWorker domain.WorkerStatus
	}{
		{name: "approve pending", path: "/api/v1/workers/r2/approve", admin: true, wantStatus: http.StatusOK, wantWorker: domain.WorkerStatusInactive},
		{name: "reject pending", path: "/api/v1/workers/r2/reject", admin: true, wantStatus: http.StatusOK, wantWorker: domain.WorkerStatusRejected},
		{name: "approve without admin", path: "/api/v1/workers/r2/approve", wantStatus: http.StatusForbidden, wantCode: ErrCodeForbidden},
		{name: "approve active", path: "/api/v1/workers/r1/approve", admin: true, wantStatus: http.StatusConflict, wantCode: ErrCodeInvalidTransition},
		{name: "reject active", path: "/api/v1/workers/r1/reject", admin: true, wantStatus: http.StatusConflict, wantCode: ErrCodeInvalidTransition},
		{name: "unknown worker", path: "/api/v1/workers/r9/approve", admin: true, wantStatus: http.StatusNotFound, wantCode: ErrCodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)

			status, body := env.do(t, http.MethodPost, tt.path, nil, tt.admin)
			require.Equal(t, tt.wantStatus, status, string(body))

			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, errorCode(t, body))
				assert.Zero(t, env.backend.patchCount())
				return
			}

			w := decode[DataResponse](t, body)
			assert.Equal(t, string(tt.wantWorker), w.Data.(map[string]any)["workerStatus"])
			assert.Equal(t, 1, env.backend.patchCount())
		})
	}

	// Одобрение активного работника не меняет его статус.
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/v1/workers/r1/approve", nil, true)
	w, err := env.directory.Get("r1")
	require.NoError(t, err)
	assert.Equal(t, domain.WorkerStatusActive, w.WorkerStatus)
}

func TestRecentEvents(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodGet, "/api/v1/events", nil, false)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 0, decode[ListResponse](t, body).Total)

	env.do(t, http.MethodPatch, "/api/v1/workers/r1/status", ChangeStatusRequest{Status: "onLeave"}, false)
	env.do(t, http.MethodPost, "/api/v1/workers/r2/approve", nil, true)

	status, body = env.do(t, http.MethodGet, "/api/v1/events", nil, false)
	require.Equal(t, http.StatusOK, status)

	var feed struct {
		Data  []domain.StatusChanged `json:"data"`
		Total int                    `json:"total"`
	}
	require.NoError(t, json.Unmarshal(body, &feed))
	require.Equal(t, 2, feed.Total)
	assert.Equal(t, "r2", feed.Data[0].RecordID)
	assert.Equal(t, domain.WorkerStatusInactive, feed.Data[0].NewStatus)
	assert.Equal(t, "r1", feed.Data[1].RecordID)

	status, body = env.do(t, http.MethodGet, "/api/v1/events?limit=1", nil, false)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, decode[ListResponse](t, body).Total)

	status, _ = env.do(t, http.MethodGet, "/api/v1/events?limit=0", nil, false)
	assert.Equal(t, http.StatusBadRequest, status)

	// Лента не изменяет порядок в источнике.
	assert.Equal(t, "r1", env.events.Events()[0].RecordID)
}

func TestChangeWorkerStatus_BackendUnavailable(t *testing.T) {
	env := newTestEnv(t)
	env.backend.set(func(b *fakeBackend) { b.patchStatus = http.StatusInternalServerError })

	status, body := env.do(t, http.MethodPatch, "/api/v1/workers/r1/status", ChangeStatusRequest{Status: "onLeave"}, false)
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, ErrCodeBackendUnavailable, errorCode(t, body))

	w, err := env.directory.Get("r1")
	require.NoError(t, err)
	assert.Equal(t, domain.WorkerStatusActive, w.WorkerStatus)
}

func TestChangeWorkerStatus_InvalidBody(t *testing.T) {
	env := newTestEnv(t)

	req, err := http.NewRequest(http.MethodPatch, env.server.URL+"/api/v1/workers/r1/status", bytes.NewBufferString("{"))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListWorkerTransitions(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodGet, "/api/v1/workers/r2/transitions", nil, false)
	require.Equal(t, http.StatusOK, status)
	resp := decode[struct {
		Data TransitionsResponse `json:"data"`
	}](t, body).Data
	assert.Equal(t, domain.WorkerStatusPending, resp.From)
	require.NotEmpty(t, resp.Transitions)
	for _, tr := range resp.Transitions {
		assert.True(t, tr.AdminOnly)
		assert.False(t, tr.Allowed)
	}

	status, body = env.do(t, http.MethodGet, "/api/v1/workers/r2/transitions", nil, true)
	require.Equal(t, http.StatusOK, status)
	resp = decode[struct {
		Data TransitionsResponse `json:"data"`
	}](t, body).Data
	for _, tr := range resp.Transitions {
		assert.True(t, tr.Allowed)
	}
}

func TestWorkerHistory(t *testing.T) {
	env := newTestEnv(t)
	event := domain.StatusChanged{
		EventID:        uuid.New(),
		RecordID:       "r1",
		WorkerID:       "WRK-25-0001",
		PreviousStatus: domain.WorkerStatusInactive,
		NewStatus:      domain.WorkerStatusActive,
		OccurredAt:     time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	env.history.events = []domain.StatusChanged{event}

	status, body := env.do(t, http.MethodGet, "/api/v1/workers/WRK-25-0001/history", nil, false)
	require.Equal(t, http.StatusOK, status)
	resp := decode[struct {
		Data  []domain.StatusChanged `json:"data"`
		Total int                    `json:"total"`
	}](t, body)
	assert.Equal(t, []domain.StatusChanged{event}, resp.Data)

	status, _ = env.do(t, http.MethodGet, "/api/v1/workers/r1/history?limit=0", nil, false)
	assert.Equal(t, http.StatusBadRequest, status)

	env.history.err = errors.New("db down")
	status, body = env.do(t, http.MethodGet, "/api/v1/workers/r1/history", nil, false)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, ErrCodeInternalError, errorCode(t, body))
}

func TestWorkerHistory_NotConfigured(t *testing.T) {
	h := NewHandler(Config{Logger: telemetry.Discard()})
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/workers/r1/history", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/view", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRefreshAndStats(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodGet, "/api/v1/workers/stats", nil, false)
	require.Equal(t, http.StatusOK, status)
	stats := decode[struct {
		Data DirectoryStateResponse `json:"data"`
	}](t, body).Data
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.ByStatus[domain.WorkerStatusActive])
	assert.Equal(t, 0, stats.ByStatus[domain.WorkerStatusRejected])
	assert.NotNil(t, stats.UpdatedAt)

	env.backend.set(func(b *fakeBackend) { b.listStatus = http.StatusServiceUnavailable })
	status, body = env.do(t, http.MethodPost, "/api/v1/workers/refresh", nil, false)
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, ErrCodeBackendUnavailable, errorCode(t, body))

	_, body = env.do(t, http.MethodGet, "/api/v1/workers/stats", nil, false)
	stats = decode[struct {
		Data DirectoryStateResponse `json:"data"`
	}](t, body).Data
	assert.Zero(t, stats.Total)
	assert.NotEmpty(t, stats.LastError)

	env.backend.set(func(b *fakeBackend) { b.listStatus = http.StatusOK })
	status, _ = env.do(t, http.MethodPost, "/api/v1/workers/refresh", nil, false)
	assert.Equal(t, http.StatusOK, status)
}

func TestView(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodPut, "/api/v1/view/criteria",
		CriteriaRequest{Status: "active", SortBy: "name-desc"}, false)
	require.Equal(t, http.StatusAccepted, status)
	accepted := decode[struct {
		Data filter.Criteria `json:"data"`
	}](t, body).Data
	assert.Equal(t, filter.Criteria{Status: "active", WorkerType: filter.All, Zone: filter.All, SortBy: filter.SortNameDesc}, accepted)

	require.Eventually(t, func() bool { return !env.view.Loading() }, time.Second, 5*time.Millisecond)

	status, body = env.do(t, http.MethodGet, "/api/v1/view", nil, false)
	require.Equal(t, http.StatusOK, status)
	view := decode[struct {
		Data ViewResponse `json:"data"`
	}](t, body).Data
	assert.False(t, view.Loading)
	assert.Equal(t, 2, view.Total)
	assert.Equal(t, "Cid", view.Workers[0].Name)

	status, _ = env.do(t, http.MethodPut, "/api/v1/view/criteria", CriteriaRequest{SortBy: "oldest"}, false)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestZones(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodGet, "/api/v1/zones", nil, false)
	require.Equal(t, http.StatusOK, status)
	resp := decode[struct {
		Data ZonesResponse `json:"data"`
	}](t, body).Data
	assert.False(t, resp.Fallback)
	assert.Equal(t, []domain.Zone{
		{ID: "z1", Name: "North Depot", Code: "N"},
		{ID: "z2", Name: "River Side", Code: "R"},
	}, resp.Zones)

	status, _ = env.do(t, http.MethodPost, "/api/v1/zones/refresh", nil, false)
	assert.Equal(t, http.StatusOK, status)
}

func TestNextEmployeeID(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodPost, "/api/v1/employee-ids", NextEmployeeIDRequest{Role: "driver"}, false)
	require.Equal(t, http.StatusCreated, status)
	id := decode[struct {
		Data employeeid.EmployeeID `json:"data"`
	}](t, body).Data
	assert.Equal(t, employeeid.EmployeeID{Value: "WRK-25-0042"}, id)

	status, _ = env.do(t, http.MethodPost, "/api/v1/employee-ids", nil, false)
	assert.Equal(t, http.StatusCreated, status, "body is optional")

	status, body = env.do(t, http.MethodPost, "/api/v1/employee-ids", NextEmployeeIDRequest{Role: "astronaut"}, false)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, ErrCodeBadRequest, errorCode(t, body))
}

func TestRecovery(t *testing.T) {
	handler := Recovery(telemetry.Discard())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, ErrCodeInternalError, errorCode(t, rec.Body.Bytes()))
}

func TestActor(t *testing.T) {
	var seen []bool
	handler := Actor()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = append(seen, ActorIsAdmin(r.Context()))
	}))

	for _, role := range []string{"admin", " ADMIN ", "worker", ""} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if role != "" {
			req.Header.Set(ActorRoleHeader, role)
		}
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
	assert.Equal(t, []bool{true, true, false, false}, seen)
	assert.False(t, ActorIsAdmin(context.Background()))
}
