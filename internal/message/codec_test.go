package message

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shaiso/Conveyor/internal/domain"
)

// --- Codec Tests ---

func TestCodec_WorkflowMessage(t *testing.T) {
	pos := testPosition(t)
	in := NewDataCollectedEvent(
		Payload{TypeClass: "Customer", Data: map[string]any{"name": "Ada"}},
		domain.Metadata{"source": "crm"},
		Route{Target: "node-a", Origin: "crm"},
	).ConnectToProcessTask(pos)

	data, err := Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	out, ok := decoded.(*WorkflowMessage)
	if !ok {
		t.Fatalf("expected *WorkflowMessage, got %T", decoded)
	}
	if out.Name() != in.Name() {
		t.Errorf("name: got %q, want %q", out.Name(), in.Name())
	}
	if out.Header().UUID != in.Header().UUID || !out.Header().CreatedAt.Equal(in.Header().CreatedAt) {
		t.Error("header should be preserved")
	}
	if got, _ := out.ProcessTaskListPosition(); got != pos {
		t.Errorf("position: got %s, want %s", got, pos)
	}
	data2 := out.Payload().Data.(map[string]any)
	if data2["name"] != "Ada" {
		t.Errorf("payload data lost: %v", out.Payload().Data)
	}
}

func TestCodec_Log(t *testing.T) {
	pos := testPosition(t)
	entry := domain.NewLogMessage(pos, 500, "boom", map[string]any{"k": "v"})

	data, err := Encode(NewLog(entry, "node-b"))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	log, ok := decoded.(*Log)
	if !ok {
		t.Fatalf("expected *Log, got %T", decoded)
	}
	got := log.LogMessage()
	if got.UUID != entry.UUID || got.Code != 500 || got.Message != "boom" || got.Position != pos {
		t.Errorf("log entry not preserved: %+v", got)
	}
	if log.Target() != "node-a" {
		t.Errorf("log should target the process node, got %q", log.Target())
	}
}

func TestCodec_SubProcessMessages(t *testing.T) {
	parent := testPosition(t)
	def := domain.ProcessDefinition{
		ProcessType: domain.ProcessTypeLinearMessaging,
		Tasks: []domain.TaskDefinition{
			{TaskType: domain.TaskTypeProcessData, Target: "wh", AllowedTypes: []string{"Customer"}},
		},
	}
	prev := NewDataCollectedEvent(Payload{TypeClass: "Customer", Data: 1.0}, nil, Route{Origin: "crm"})

	data, err := Encode(NewStartSubProcess(parent, def, true, prev, "node-b"))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	start, ok := decoded.(*StartSubProcess)
	if !ok {
		t.Fatalf("expected *StartSubProcess, got %T", decoded)
	}
	if start.Target() != "node-b" || start.ParentTaskListPosition() != parent || !start.SyncLogMessages() {
		t.Error("start sub process fields not preserved")
	}
	if start.PreviousMessage() == nil || start.PreviousMessage().Name() != prev.Name() {
		t.Error("previous message not preserved")
	}
	if len(start.ProcessDefinition().Tasks) != 1 {
		t.Error("definition not preserved")
	}
	if _, ok := start.ProcessTaskListPosition(); ok {
		t.Error("start sub process should not address an existing task")
	}

	childID := domain.NewProcessID()
	last := NewLog(domain.NewLogMessage(parent, 210, "ok", nil), "node-b")
	data, err = Encode(NewSubProcessFinished("node-b", childID, false, last, parent))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err = Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	finished, ok := decoded.(*SubProcessFinished)
	if !ok {
		t.Fatalf("expected *SubProcessFinished, got %T", decoded)
	}
	if finished.SubProcessID() != childID || finished.Succeed() || finished.Target() != "node-a" {
		t.Error("sub process finished fields not preserved")
	}
	if pos, ok := finished.ProcessTaskListPosition(); !ok || pos != parent {
		t.Error("finished event should address the parent position")
	}
	if _, ok := finished.LastMessage().(*Log); !ok {
		t.Errorf("expected last message *Log, got %T", finished.LastMessage())
	}
}

func TestDecode_StartSubProcessNestedPrevious(t *testing.T) {
	parent := testPosition(t)
	def := domain.ProcessDefinition{
		ProcessType: domain.ProcessTypeLinearMessaging,
		Tasks: []domain.TaskDefinition{
			{TaskType: domain.TaskTypeProcessData, Target: "wh", AllowedTypes: []string{"Customer"}},
		},
	}

	startWith := func(t *testing.T, prev Message) Envelope {
		t.Helper()
		prevEnv, err := ToEnvelope(prev)
		if err != nil {
			t.Fatalf("ToEnvelope: %v", err)
		}
		raw, err := json.Marshal(startSubProcessBody{Parent: parent, Definition: def, Previous: &prevEnv})
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		return Envelope{
			Name:   StartSubProcessName,
			Header: NewHeader(KindCommand, "node-a"),
			Target: "node-b",
			Body:   raw,
		}
	}

	t.Run("workflow previous", func(t *testing.T) {
		prev := NewDataCollectedEvent(Payload{TypeClass: "Customer", Data: "x"}, nil, Route{Origin: "crm"})
		decoded, err := FromEnvelope(startWith(t, prev))
		if err != nil {
			t.Fatalf("FromEnvelope: %v", err)
		}
		start := decoded.(*StartSubProcess)
		if start.PreviousMessage() == nil || start.PreviousMessage().Header().UUID != prev.Header().UUID {
			t.Error("previous message identity not preserved")
		}
	})

	t.Run("log previous rejected", func(t *testing.T) {
		prev := NewLog(domain.NewLogMessage(parent, 210, "ok", nil), "node-a")
		_, err := FromEnvelope(startWith(t, prev))
		if !errors.Is(err, ErrInvalidEnvelope) {
			t.Errorf("expected ErrInvalidEnvelope, got %v", err)
		}
	})
}

func TestDecode_Unknown(t *testing.T) {
	_, err := Decode([]byte(`{"name":"something-else","header":{},"body":{}}`))
	if !errors.Is(err, ErrUnknownMessage) {
		t.Errorf("expected ErrUnknownMessage, got %v", err)
	}

	_, err = Decode([]byte(`{"name":"processing-message-order-data-collected","header":{},"body":{"typeClass":"Customer"}}`))
	if !errors.Is(err, ErrInvalidEnvelope) {
		t.Errorf("expected ErrInvalidEnvelope, got %v", err)
	}
}
