package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shaiso/Conveyor/internal/domain"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// ProcessResponse — процесс из API.
type ProcessResponse struct {
	ID             string              `json:"id"`
	NodeName       string              `json:"node_name"`
	TaskListID     string              `json:"task_list_id"`
	ParentPosition string              `json:"parent_position,omitempty"`
	Version        int                 `json:"version"`
	Finished       bool                `json:"finished"`
	Succeeded      bool                `json:"succeeded"`
	Config         map[string]any      `json:"config,omitempty"`
	Tasks          []TaskEntryResponse `json:"tasks"`
}

// TaskEntryResponse — запись списка задач из API.
type TaskEntryResponse struct {
	Position   string               `json:"position"`
	TaskType   string               `json:"task_type"`
	Definition map[string]any       `json:"definition"`
	Status     string               `json:"status"`
	StartedAt  string               `json:"started_at,omitempty"`
	FinishedAt string               `json:"finished_at,omitempty"`
	Log        []LogMessageResponse `json:"log,omitempty"`
}

// LogMessageResponse — запись журнала задачи из API.
type LogMessageResponse struct {
	UUID      string         `json:"uuid"`
	Level     string         `json:"level"`
	Code      int            `json:"code"`
	Message   string         `json:"message"`
	Params    map[string]any `json:"params,omitempty"`
	CreatedAt string         `json:"created_at"`
}

// MessageAcceptedResponse — принятое сообщение из API.
type MessageAcceptedResponse struct {
	UUID   string `json:"uuid"`
	Name   string `json:"name"`
	Target string `json:"target"`
}

// DefinitionResponse — определение процесса из API.
type DefinitionResponse struct {
	MessageName string         `json:"message_name"`
	Definition  map[string]any `json:"definition"`
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

// --- Client ---

// Client — HTTP-клиент для Conveyor API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Processes ---

// GetProcess возвращает процесс по ID.
func (c *Client) GetProcess(id string) (*ProcessResponse, error) {
	var proc ProcessResponse
	err := c.get("/api/v1/processes/"+url.PathEscape(id), &proc)
	return &proc, err
}

// RescheduleProcess заменяет незапущенные задачи процесса.
func (c *Client) RescheduleProcess(id string, tasks []domain.TaskDefinition) (*ProcessResponse, error) {
	var proc ProcessResponse
	body := map[string]any{"tasks": tasks}
	err := c.post("/api/v1/processes/"+url.PathEscape(id)+"/reschedule", body, &proc)
	return &proc, err
}

// --- Messages ---

// SendMessage отправляет конверт сообщения в узел.
func (c *Client) SendMessage(envelope json.RawMessage) (*MessageAcceptedResponse, error) {
	var accepted MessageAcceptedResponse
	err := c.post("/api/v1/messages", envelope, &accepted)
	return &accepted, err
}

// --- Definitions ---

// ListDefinitions возвращает определения процессов узла.
func (c *Client) ListDefinitions() ([]DefinitionResponse, error) {
	var defs []DefinitionResponse
	err := c.list("/api/v1/definitions", nil, &defs)
	return defs, err
}

// GetDefinition возвращает определение по имени стартового сообщения.
func (c *Client) GetDefinition(name string) (*DefinitionResponse, error) {
	var def DefinitionResponse
	err := c.get("/api/v1/definitions/"+url.PathEscape(name), &def)
	return &def, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
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

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
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

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
