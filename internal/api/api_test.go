package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/engine"
	"github.com/shaiso/Conveyor/internal/lock"
	"github.com/shaiso/Conveyor/internal/message"
	"github.com/shaiso/Conveyor/internal/mq"
	"github.com/shaiso/Conveyor/internal/process"
	"github.com/shaiso/Conveyor/internal/repo"
	"github.com/shaiso/Conveyor/internal/telemetry"
)

const testNode domain.NodeName = "node-a"

type recordingDispatcher struct {
	sent []message.Message
	err  error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, msg message.Message) error {
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, msg)
	return nil
}

// repoRescheduler перепланирует задачи напрямую через репозиторий.
type repoRescheduler struct {
	repo    *repo.ProcessRepo
	factory *process.Factory
}

func (r *repoRescheduler) Reschedule(ctx context.Context, id domain.ProcessID, defs []domain.TaskDefinition) (*process.Process, error) {
	tasks, err := r.factory.BuildTasks(defs)
	if err != nil {
		return nil, err
	}
	proc, err := r.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := proc.RescheduleTaskList(tasks, time.Now()); err != nil {
		return nil, err
	}
	if err := r.repo.Save(ctx, proc); err != nil {
		return nil, err
	}
	return proc, nil
}

type fixture struct {
	server  *httptest.Server
	repo    *repo.ProcessRepo
	factory *process.Factory
	out     *recordingDispatcher
	health  error
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	factory, err := process.NewFactory(map[string]domain.ProcessDefinition{
		"processing-message-customer-data-collected": {
			ProcessType: domain.ProcessTypeLinearMessaging,
			Tasks: []domain.TaskDefinition{
				{TaskType: domain.TaskTypeProcessData, Target: "warehouse", AllowedTypes: []string{"Customer"}},
			},
		},
	}, nil)
	if err != nil {
		t.Fatalf("NewFactory: %v", err)
	}

	f := &fixture{
		repo:    repo.NewProcessRepo(repo.NewMemoryEventStore()),
		factory: factory,
		out:     &recordingDispatcher{},
	}

	h := NewHandler(Config{
		Node:        testNode,
		Processes:   f.repo,
		Dispatcher:  f.out,
		Definitions: factory,
		Rescheduler: &repoRescheduler{repo: f.repo, factory: factory},
		Checks: map[string]HealthCheck{
			"amqp": func() error { return f.health },
		},
		Gatherer: prometheus.NewRegistry(),
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fixture) startProcess(t *testing.T) *process.Process {
	t.Helper()
	now := time.Now()
	trigger := message.NewDataCollectedEvent(
		message.Payload{TypeClass: "Customer", Data: map[string]any{"name": "Ada"}},
		nil,
		message.Route{Target: testNode.String(), Origin: "crm"},
	)
	proc, err := f.factory.CreateFromMessage(trigger, testNode, now)
	if err != nil {
		t.Fatalf("CreateFromMessage: %v", err)
	}
	if _, err := proc.Perform(trigger, now); err != nil {
		t.Fatalf("Perform: %v", err)
	}
	if err := f.repo.Save(context.Background(), proc); err != nil {
		t.Fatalf("Save: %v", err)
	}
	return proc
}

func decodeData(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	var body struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if err := json.Unmarshal(body.Data, out); err != nil {
		t.Fatalf("decode data: %v", err)
	}
}

// --- Process Tests ---

func TestGetProcess(t *testing.T) {
	f := newFixture(t)
	proc := f.startProcess(t)

	resp, err := http.Get(f.server.URL + "/api/v1/processes/" + proc.ID().String())
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var got ProcessResponse
	decodeData(t, resp, &got)

	if got.ID != proc.ID().String() || got.NodeName != testNode.String() {
		t.Errorf("unexpected process identity: %+v", got)
	}
	if got.Finished {
		t.Error("expected running process")
	}
	if len(got.Tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(got.Tasks))
	}
	if got.Tasks[0].Status != domain.TaskStatusInProgress {
		t.Errorf("expected in_progress, got %s", got.Tasks[0].Status)
	}
	if got.Tasks[0].TaskType != domain.TaskTypeProcessData {
		t.Errorf("expected process_data, got %s", got.Tasks[0].TaskType)
	}
}

func TestGetProcess_NotFound(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.server.URL + "/api/v1/processes/" + domain.NewProcessID().String())
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestGetProcess_InvalidID(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.server.URL + "/api/v1/processes/not-a-uuid")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestRescheduleProcess(t *testing.T) {
	f := newFixture(t)
	proc := f.startProcess(t)

	body := `{"tasks": [{"task_type": "process_data", "target": "archive", "allowed_types": ["Customer"]}]}`
	resp, err := http.Post(f.server.URL+"/api/v1/processes/"+proc.ID().String()+"/reschedule", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var got ProcessResponse
	decodeData(t, resp, &got)

	if len(got.Tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(got.Tasks))
	}
	if got.Tasks[0].Status != domain.TaskStatusInProgress {
		t.Errorf("running task must stay in progress, got %s", got.Tasks[0].Status)
	}
	if got.Tasks[1].Status != domain.TaskStatusNotStarted {
		t.Errorf("expected appended task not started, got %s", got.Tasks[1].Status)
	}
}

func TestRescheduleProcess_Errors(t *testing.T) {
	f := newFixture(t)
	proc := f.startProcess(t)

	tests := []struct {
		name   string
		id     string
		body   string
		status int
		code   ErrorCode
	}{
		{"unknown task type", proc.ID().String(), `{"tasks": [{"task_type": "teleport"}]}`, http.StatusBadRequest, ErrCodeBadRequest},
		{"malformed body", proc.ID().String(), `{"tasks":`, http.StatusBadRequest, ErrCodeBadRequest},
		{"missing process", domain.NewProcessID().String(), `{"tasks": []}`, http.StatusNotFound, ErrCodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(f.server.URL+"/api/v1/processes/"+tt.id+"/reschedule", "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatalf("POST: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, resp.StatusCode)
			}
			var body ErrorResponse
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Error.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, body.Error.Code)
			}
		})
	}
}

// --- Error Mapping Tests ---

func TestHandleError(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name   string
		err    error
		status int
		code   ErrorCode
	}{
		{"not found", fmt.Errorf("load process: %w", repo.ErrNotFound), http.StatusNotFound, ErrCodeNotFound},
		{"finished", process.ErrProcessFinished, http.StatusConflict, ErrCodeInvalidState},
		{"locked", fmt.Errorf("acquire: %w", lock.ErrLocked), http.StatusConflict, ErrCodeConflict},
		{"conflict", repo.ErrConcurrencyConflict, http.StatusConflict, ErrCodeConflict},
		{"no definition", process.ErrDefinitionNotFound, http.StatusUnprocessableEntity, ErrCodeUnroutable},
		{"no handler", engine.ErrNoHandler, http.StatusUnprocessableEntity, ErrCodeUnroutable},
		{"invalid definition", process.ErrInvalidDefinition, http.StatusBadRequest, ErrCodeBadRequest},
		{"bus down", mq.ErrDisconnected, http.StatusServiceUnavailable, ErrCodeUnavailable},
		{"store closed", repo.ErrStoreClosed, http.StatusServiceUnavailable, ErrCodeUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, ErrCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			if !HandleError(rec, logger, tt.err) {
				t.Fatal("expected error to be handled")
			}
			if rec.Code != tt.status {
				t.Errorf("expected %d, got %d", tt.status, rec.Code)
			}
			var body ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Error.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, body.Error.Code)
			}
		})
	}

	if HandleError(httptest.NewRecorder(), logger, nil) {
		t.Error("nil error must not be handled")
	}
}

// --- Message Tests ---

func TestSubmitMessage(t *testing.T) {
	f := newFixture(t)

	body := `{
		"name": "processing-message-customer-data-collected",
		"origin": "crm",
		"body": {"typeClass": "Customer", "data": {"name": "Ada"}}
	}`
	resp, err := http.Post(f.server.URL+"/api/v1/messages", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}

	var got MessageAcceptedResponse
	decodeData(t, resp, &got)

	if got.Target != testNode.String() {
		t.Errorf("expected target defaulted to node, got %s", got.Target)
	}
	if len(f.out.sent) != 1 {
		t.Fatalf("expected 1 dispatched message, got %d", len(f.out.sent))
	}
	sent := f.out.sent[0]
	if sent.Header().UUID != got.UUID {
		t.Errorf("response uuid %s does not match dispatched %s", got.UUID, sent.Header().UUID)
	}
	if sent.Header().Kind != message.KindEvent {
		t.Errorf("expected event header, got %s", sent.Header().Kind)
	}
}

func TestSubmitMessage_Invalid(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{`},
		{"empty name", `{"body": {}}`},
		{"unknown name", `{"name": "hello", "body": {}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(f.server.URL+"/api/v1/messages", "application/json", bytes.NewBufferString(tt.body))
			if err != nil {
				t.Fatalf("POST: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", resp.StatusCode)
			}
		})
	}
	if len(f.out.sent) != 0 {
		t.Errorf("expected nothing dispatched, got %d", len(f.out.sent))
	}
}

func TestSubmitMessage_Unroutable(t *testing.T) {
	f := newFixture(t)
	f.out.err = fmt.Errorf("dispatch: %w", engine.ErrNoHandler)

	body := `{"name": "processing-message-customer-data-collected", "body": {"typeClass": "Customer"}}`
	resp, err := http.Post(f.server.URL+"/api/v1/messages", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", resp.StatusCode)
	}
}

func TestSubmitMessage_DispatchError(t *testing.T) {
	f := newFixture(t)
	f.out.err = errors.New("bus down")

	body := `{"name": "processing-message-customer-data-collected", "body": {"typeClass": "Customer"}}`
	resp, err := http.Post(f.server.URL+"/api/v1/messages", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", resp.StatusCode)
	}
}

// --- Definition Tests ---

func TestListDefinitions(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.server.URL + "/api/v1/definitions")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	var got []DefinitionResponse
	decodeData(t, resp, &got)

	if len(got) != 1 || got[0].MessageName != "processing-message-customer-data-collected" {
		t.Errorf("unexpected definitions: %+v", got)
	}
}

func TestGetDefinition_NotFound(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.server.URL + "/api/v1/definitions/unknown")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

// --- Middleware Tests ---

func TestRecovery(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := Recovery(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}

func TestLogging_RequestLoggerInContext(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	h := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		telemetry.FromContext(r.Context()).Info("inside")
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/messages", nil))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d: %q", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], `"path":"/api/v1/messages"`) {
		t.Errorf("handler log lacks request path: %s", lines[0])
	}
	if !strings.Contains(lines[1], `"status":418`) {
		t.Errorf("request log lacks status: %s", lines[1])
	}
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.server.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(string(body), "ok node-a") {
		t.Errorf("unexpected healthz response %d %q", resp.StatusCode, body)
	}
}

func TestHealthz_FailingCheck(t *testing.T) {
	f := newFixture(t)
	f.health = mq.ErrDisconnected

	resp, err := http.Get(f.server.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
	var body ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.HasPrefix(body.Error.Message, "amqp: ") {
		t.Errorf("expected failing check name in message, got %q", body.Error.Message)
	}
}
