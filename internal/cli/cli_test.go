package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	return path
}

func testOutput(jsonMode bool) (*Output, *bytes.Buffer, *bytes.Buffer) {
	var stdout, stderr bytes.Buffer
	return NewOutputTo(jsonMode, &stdout, &stderr), &stdout, &stderr
}

// --- Client Tests ---

func TestClient_GetProcess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/processes/abc" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"data":{"id":"abc","node_name":"node-a","finished":true,"succeeded":true,
			"tasks":[{"position":"node-a:abc:1","task_type":"process_data","status":"done"}]}}`))
	}))
	defer server.Close()

	proc, err := NewClient(server.URL).GetProcess("abc")
	if err != nil {
		t.Fatalf("GetProcess: %v", err)
	}
	if proc.ID != "abc" || len(proc.Tasks) != 1 || proc.Tasks[0].Status != "done" {
		t.Errorf("unexpected process %+v", proc)
	}
}

func TestClient_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"code":"NOT_FOUND","message":"process not found"}}`))
	}))
	defer server.Close()

	_, err := NewClient(server.URL).GetProcess("abc")
	if err == nil || err.Error() != "NOT_FOUND: process not found" {
		t.Errorf("expected API error, got %v", err)
	}
}

// --- Command Tests ---

func TestProcessShowCmd(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"data":{"id":"abc","node_name":"node-a","finished":false,
			"tasks":[{"position":"node-a:abc:1","task_type":"collect_data","status":"in_progress",
			"log":[{"level":"error","code":502,"message":"crm unavailable"}]}]}}`))
	}))
	defer server.Close()

	out, stdout, stderr := testOutput(false)
	cmd := NewProcessCmd(func() *Client { return NewClient(server.URL) }, func() *Output { return out })
	cmd.SetArgs([]string{"show", "abc", "--log"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(stderr.String(), "running") {
		t.Errorf("expected state in summary, got %q", stderr.String())
	}
	if !strings.Contains(stdout.String(), "in_progress") || !strings.Contains(stdout.String(), "crm unavailable") {
		t.Errorf("expected task and log rows, got %q", stdout.String())
	}
}

func TestProcessRescheduleCmd(t *testing.T) {
	var gotPath string
	var received struct {
		Tasks []map[string]any `json:"tasks"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		json.NewDecoder(r.Body).Decode(&received)
		w.Write([]byte(`{"data":{"id":"abc","node_name":"node-a","version":4,
			"tasks":[{"position":"node-a:abc:1","task_type":"collect_data","status":"in_progress"},
			{"position":"node-a:abc:2","task_type":"process_data","status":"not_started"}]}}`))
	}))
	defer server.Close()

	path := writeFile(t, "tasks.yaml", `
tasks:
  - task_type: process_data
    target: archive
    allowed_types: [Customer]
`)

	out, stdout, stderr := testOutput(false)
	cmd := NewProcessCmd(func() *Client { return NewClient(server.URL) }, func() *Output { return out })
	cmd.SetArgs([]string{"reschedule", "abc", path})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if gotPath != "/api/v1/processes/abc/reschedule" {
		t.Errorf("path = %q", gotPath)
	}
	if len(received.Tasks) != 1 || received.Tasks[0]["task_type"] != "process_data" || received.Tasks[0]["target"] != "archive" {
		t.Errorf("unexpected request tasks %+v", received.Tasks)
	}
	if !strings.Contains(stderr.String(), "version 4") {
		t.Errorf("expected version in summary, got %q", stderr.String())
	}
	if !strings.Contains(stdout.String(), "not_started") {
		t.Errorf("expected rescheduled task row, got %q", stdout.String())
	}
}

func TestReadTasks(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
		wantErr bool
	}{
		{"plain list", "- task_type: collect_data\n  source: crm\n  payload_type: Customer\n", 1, false},
		{"tasks key", "tasks:\n  - task_type: process_data\n    target: a\n  - task_type: process_data\n    target: b\n", 2, false},
		{"empty list", "tasks: []\n", 0, false},
		{"scalar", "just text", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tasks, err := readTasks(writeFile(t, "tasks.yaml", tt.content))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if len(tasks) != tt.want {
				t.Errorf("expected %d tasks, got %d", tt.want, len(tasks))
			}
		})
	}
}

func TestDefinitionShowCmd(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"data":{"message_name":"processing-message-customer-data-collected",
			"definition":{"process_type":"linear_messaging","tasks":[{"task_type":"process_data","target":"warehouse"}]}}}`))
	}))
	defer server.Close()

	out, stdout, _ := testOutput(false)
	cmd := NewDefinitionCmd(func() *Client { return NewClient(server.URL) }, func() *Output { return out })
	cmd.SetArgs([]string{"show", "processing-message-customer-data-collected"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if gotPath != "/api/v1/definitions/processing-message-customer-data-collected" {
		t.Errorf("path = %q", gotPath)
	}
	if !strings.Contains(stdout.String(), "process_type: linear_messaging") {
		t.Errorf("expected YAML definition, got %q", stdout.String())
	}
	if !strings.Contains(stdout.String(), "target: warehouse") {
		t.Errorf("expected task target in output, got %q", stdout.String())
	}
}

func TestMessageSendCmd_YAML(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &received)
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"data":{"uuid":"u-1","name":"processing-message-customer-data-collected","target":"node-a"}}`))
	}))
	defer server.Close()

	path := writeFile(t, "msg.yaml", `
name: processing-message-customer-data-collected
origin: crm
body:
  typeClass: Customer
  data:
    name: Ada
`)

	out, stdout, _ := testOutput(true)
	cmd := NewMessageCmd(func() *Client { return NewClient(server.URL) }, func() *Output { return out })
	cmd.SetArgs([]string{"send", path})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	body, _ := received["body"].(map[string]any)
	if received["name"] != "processing-message-customer-data-collected" || body["typeClass"] != "Customer" {
		t.Errorf("unexpected envelope sent: %v", received)
	}
	if !strings.Contains(stdout.String(), `"uuid": "u-1"`) {
		t.Errorf("expected JSON output, got %q", stdout.String())
	}
}

func TestReadEnvelope_MissingName(t *testing.T) {
	path := writeFile(t, "msg.json", `{"body": {}}`)
	if _, err := readEnvelope(path); err == nil {
		t.Error("expected error for envelope without name")
	}
}

func TestDefinitionValidateCmd(t *testing.T) {
	valid := `
processing-message-customer-data-collected:
  process_type: linear_messaging
  tasks:
    - task_type: process_data
      target: warehouse
      allowed_types: [Customer]
`
	invalid := `
processing-message-customer-data-collected:
  process_type: parallel
  tasks: []
`
	single := `
process_type: linear_messaging
tasks:
  - task_type: collect_data
    source: crm
    payload_type: Customer
`

	tests := []struct {
		name    string
		content string
		args    []string
		wantErr bool
	}{
		{"valid map", valid, nil, false},
		{"single definition", single, nil, false},
		{"unsupported process type", invalid, nil, true},
		{"unknown payload type", valid, []string{"--types", "Order"}, true},
		{"known payload type", valid, []string{"--types", "Customer,Order"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "defs.yaml", tt.content)
			out, _, _ := testOutput(false)
			cmd := NewDefinitionCmd(func() *Client { return nil }, func() *Output { return out })
			cmd.SetArgs(append([]string{"validate", path}, tt.args...))
			cmd.SilenceUsage = true
			cmd.SilenceErrors = true

			err := cmd.Execute()
			if (err != nil) != tt.wantErr {
				t.Errorf("wantErr=%v, got %v", tt.wantErr, err)
			}
		})
	}
}
