package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// PerformanceResponse — показатели работника.
type PerformanceResponse struct {
	Rating          float64 `json:"rating"`
	Efficiency      float64 `json:"efficiency"`
	TasksCompleted  float64 `json:"tasksCompleted"`
	BinsCollected   float64 `json:"binsCollected"`
	DistanceCovered float64 `json:"distanceCovered"`
}

// WorkerResponse — работник из API.
type WorkerResponse struct {
	ID           string              `json:"id"`
	WorkerID     string              `json:"workerId"`
	Name         string              `json:"name"`
	Email        string              `json:"email"`
	Phone        string              `json:"phone"`
	WorkerType   string              `json:"workerType"`
	Zone         string              `json:"zone"`
	ZoneName     string              `json:"zoneName"`
	WorkerStatus string              `json:"workerStatus"`
	Shift        string              `json:"shift"`
	Performance  PerformanceResponse `json:"performance"`
	LastLogin    *time.Time          `json:"lastLogin"`
	JoinedDate   time.Time           `json:"joinedDate"`
}

// TransitionResponse — исходящий переход.
type TransitionResponse struct {
	To        string `json:"to"`
	AdminOnly bool   `json:"adminOnly"`
	Allowed   bool   `json:"allowed"`
}

// TransitionsResponse — переходы из текущего статуса.
type TransitionsResponse struct {
	From        string               `json:"from"`
	Transitions []TransitionResponse `json:"transitions"`
}

// StatusChangeResponse — запись журнала.
type StatusChangeResponse struct {
	EventID        string    `json:"eventId"`
	RecordID       string    `json:"recordId"`
	WorkerID       string    `json:"workerId"`
	PreviousStatus string    `json:"previousStatus"`
	NewStatus      string    `json:"newStatus"`
	ByAdmin        bool      `json:"byAdmin"`
	OccurredAt     time.Time `json:"occurredAt"`
}

// StatsResponse — сводка справочника.
type StatsResponse struct {
	Total     int            `json:"total"`
	ByStatus  map[string]int `json:"byStatus"`
	UpdatedAt *time.Time     `json:"updatedAt,omitempty"`
	LastError string         `json:"lastError,omitempty"`
}

// ZoneResponse — зона.
type ZoneResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Code string `json:"code,omitempty"`
}

// ZonesResponse — список зон.
type ZonesResponse struct {
	Zones    []ZoneResponse `json:"zones"`
	Fallback bool           `json:"fallback"`
	Error    string         `json:"error,omitempty"`
}

// EmployeeIDResponse — выданный табельный номер.
type EmployeeIDResponse struct {
	EmployeeID  string `json:"employeeId"`
	Provisional bool   `json:"provisional"`
}

// ListWorkersOpts — фильтр и сортировка списка.
type ListWorkersOpts struct {
	Status     string
	WorkerType string
	Zone       string
	Search     string
	SortBy     string
}

func (o ListWorkersOpts) values() url.Values {
	params := url.Values{}
	for key, value := range map[string]string{
		"status":     o.Status,
		"workerType": o.WorkerType,
		"zone":       o.Zone,
		"search":     o.Search,
		"sortBy":     o.SortBy,
	} {
		if value != "" {
			params.Set(key, value)
		}
	}
	return params
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// APIError — ответ API с ошибкой.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("API error: HTTP %d", e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// --- Client ---

// Client — HTTP-клиент для API консоли.
type Client struct {
	baseURL    string
	admin      bool
	httpClient *http.Client
}

// NewClient создаёт клиент. admin добавляет X-Actor-Role: admin ко всем запросам.
func NewClient(baseURL string, admin bool) *Client {
	return &Client{
		baseURL: baseURL,
		admin:   admin,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Workers ---

// ListWorkers возвращает отфильтрованный список.
func (c *Client) ListWorkers(ctx context.Context, opts ListWorkersOpts) ([]WorkerResponse, error) {
	var workers []WorkerResponse
	err := c.list(ctx, "/api/v1/workers", opts.values(), &workers)
	return workers, err
}

// GetWorker возвращает работника по ID записи или табельному номеру.
func (c *Client) GetWorker(ctx context.Context, id string) (*WorkerResponse, error) {
	var worker WorkerResponse
	err := c.doData(ctx, http.MethodGet, "/api/v1/workers/"+url.PathEscape(id), nil, &worker)
	return &worker, err
}

// RefreshWorkers перезагружает справочник.
func (c *Client) RefreshWorkers(ctx context.Context) (*StatsResponse, error) {
	var stats StatsResponse
	err := c.doData(ctx, http.MethodPost, "/api/v1/workers/refresh", nil, &stats)
	return &stats, err
}

// Stats возвращает сводку по статусам.
func (c *Client) Stats(ctx context.Context) (*StatsResponse, error) {
	var stats StatsResponse
	err := c.doData(ctx, http.MethodGet, "/api/v1/workers/stats", nil, &stats)
	return &stats, err
}

// SetStatus меняет статус работника.
func (c *Client) SetStatus(ctx context.Context, id, status string) (*WorkerResponse, error) {
	var worker WorkerResponse
	body := map[string]string{"status": status}
	err := c.doData(ctx, http.MethodPatch, "/api/v1/workers/"+url.PathEscape(id)+"/status", body, &worker)
	return &worker, err
}

// Decide одобряет (decision = "approve") или отклоняет ("reject") заявку.
func (c *Client) Decide(ctx context.Context, id, decision string) (*WorkerResponse, error) {
	var worker WorkerResponse
	err := c.doData(ctx, http.MethodPost, "/api/v1/workers/"+url.PathEscape(id)+"/"+decision, nil, &worker)
	return &worker, err
}

// Transitions возвращает переходы из текущего статуса.
func (c *Client) Transitions(ctx context.Context, id string) (*TransitionsResponse, error) {
	var resp TransitionsResponse
	err := c.doData(ctx, http.MethodGet, "/api/v1/workers/"+url.PathEscape(id)+"/transitions", nil, &resp)
	return &resp, err
}

// History возвращает журнал смен статуса.
func (c *Client) History(ctx context.Context, id string, limit int) ([]StatusChangeResponse, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	var history []StatusChangeResponse
	err := c.list(ctx, "/api/v1/workers/"+url.PathEscape(id)+"/history", params, &history)
	return history, err
}

// --- Zones & IDs ---

// ListZones возвращает зоны. refresh — запросить заново у бэкенда.
func (c *Client) ListZones(ctx context.Context, refresh bool) (*ZonesResponse, error) {
	method, path := http.MethodGet, "/api/v1/zones"
	if refresh {
		method, path = http.MethodPost, "/api/v1/zones/refresh"
	}
	var resp ZonesResponse
	err := c.doData(ctx, method, path, nil, &resp)
	return &resp, err
}

// NextEmployeeID запрашивает табельный номер для роли.
func (c *Client) NextEmployeeID(ctx context.Context, role string) (*EmployeeIDResponse, error) {
	var resp EmployeeIDResponse
	err := c.doData(ctx, http.MethodPost, "/api/v1/employee-ids", map[string]string{"role": role}, &resp)
	return &resp, err
}

// --- HTTP helpers ---

func (c *Client) list(ctx context.Context, path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(ctx context.Context, method, path string, body any, result any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.admin {
		req.Header.Set("X-Actor-Role", "admin")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	apiErr := &APIError{Status: resp.StatusCode}
	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err == nil {
		apiErr.Code = er.Error.Code
		apiErr.Message = er.Error.Message
	}
	return apiErr
}
