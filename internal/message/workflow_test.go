package message

import (
	"errors"
	"testing"

	"github.com/shaiso/Conveyor/internal/domain"
)

func testPosition(t *testing.T) domain.TaskListPosition {
	t.Helper()
	pos, err := domain.NewTaskListPosition(domain.NewTaskListID("node-a", domain.NewProcessID()), 1)
	if err != nil {
		t.Fatalf("NewTaskListPosition: %v", err)
	}
	return pos
}

// --- WorkflowMessage Tests ---

func TestWorkflowMessage_Answer(t *testing.T) {
	pos := testPosition(t)
	cmd := NewCollectDataCommand("Customer", domain.Metadata{"limit": 5}, Route{
		Target: "crm",
		Origin: "node-a",
	}).ConnectToProcessTask(pos)

	if !cmd.IsCollectDataCommand() || cmd.Header().Kind != KindCommand {
		t.Fatal("expected collect-data command")
	}
	if cmd.Header().Sender != "node-a" {
		t.Errorf("sender should default to origin, got %q", cmd.Header().Sender)
	}

	answer, err := cmd.Answer(Payload{Data: map[string]any{"name": "Ada"}}, "crm")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if answer.Suffix() != SuffixDataCollected {
		t.Errorf("expected data-collected, got %s", answer.Suffix())
	}
	if answer.PayloadType() != "Customer" {
		t.Errorf("payload type should be inherited, got %q", answer.PayloadType())
	}
	if answer.Target() != "node-a" || answer.Origin() != "crm" {
		t.Errorf("answer should go back: target=%q origin=%q", answer.Target(), answer.Origin())
	}
	got, ok := answer.ProcessTaskListPosition()
	if !ok || got != pos {
		t.Error("answer should keep the task position")
	}
	if answer.Metadata()["limit"] != 5 {
		t.Error("answer should keep metadata")
	}

	if _, err := answer.Answer(Payload{}, "x"); !errors.Is(err, ErrNotAnswerable) {
		t.Errorf("expected ErrNotAnswerable, got %v", err)
	}
}

func TestWorkflowMessage_PrepareDataProcessing(t *testing.T) {
	event := NewDataCollectedEvent(Payload{TypeClass: "Customer", Data: "x"}, domain.Metadata{"a": 1}, Route{Origin: "crm"})
	pos := testPosition(t)

	cmd, err := event.PrepareDataProcessing(pos, domain.Metadata{"b": 2}, Route{Target: "wh", Origin: "node-a"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !cmd.IsProcessDataCommand() {
		t.Errorf("expected process-data, got %s", cmd.Name())
	}
	if cmd.Target() != "wh" {
		t.Errorf("expected target wh, got %q", cmd.Target())
	}
	md := cmd.Metadata()
	if md["a"] != 1 || md["b"] != 2 {
		t.Errorf("metadata should be merged, got %v", md)
	}
	if cmd.Payload().Data != "x" {
		t.Error("payload should be carried")
	}
	if _, ok := event.ProcessTaskListPosition(); ok {
		t.Error("original event should stay unconnected")
	}

	if _, err := cmd.PrepareDataProcessing(pos, nil, Route{}); !errors.Is(err, ErrNotProcessable) {
		t.Errorf("expected ErrNotProcessable, got %v", err)
	}
}
