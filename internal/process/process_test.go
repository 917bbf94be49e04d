package process

import (
	"errors"
	"testing"
	"time"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/message"
)

const nodeA domain.NodeName = "node-a"

func processDataDef(target string, allowed ...string) domain.TaskDefinition {
	return domain.TaskDefinition{TaskType: domain.TaskTypeProcessData, Target: target, AllowedTypes: allowed}
}

func collectDataDef(source, typ string) domain.TaskDefinition {
	return domain.TaskDefinition{TaskType: domain.TaskTypeCollectData, Source: source, PayloadType: typ}
}

func linear(tasks ...domain.TaskDefinition) domain.ProcessDefinition {
	return domain.ProcessDefinition{ProcessType: domain.ProcessTypeLinearMessaging, Tasks: tasks}
}

func customerCollected() *message.WorkflowMessage {
	return message.NewDataCollectedEvent(
		message.Payload{TypeClass: "Customer", Data: map[string]any{"name": "Ada"}},
		nil,
		message.Route{Target: nodeA.String(), Origin: "crm"},
	)
}

func newTestFactory(t *testing.T, defs map[string]domain.ProcessDefinition) *Factory {
	t.Helper()
	f, err := NewFactory(defs, domain.NewPayloadTypeSet("Customer", "Order"))
	if err != nil {
		t.Fatalf("NewFactory: %v", err)
	}
	return f
}

func singleMessage(t *testing.T, d Directive) message.Message {
	t.Helper()
	if len(d.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d (%s)", len(d.Messages), d.Kind)
	}
	return d.Messages[0]
}

func answer(t *testing.T, msg message.Message, sender string) *message.WorkflowMessage {
	t.Helper()
	cmd, ok := msg.(*message.WorkflowMessage)
	if !ok {
		t.Fatalf("expected *WorkflowMessage, got %T", msg)
	}
	a, err := cmd.Answer(message.Payload{Data: "ok"}, sender)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	return a
}

func entryAt(t *testing.T, p *Process, n int) *domain.TaskListEntry {
	t.Helper()
	return p.TaskList().Entries()[n-1]
}

// --- Process Tests ---

func TestProcess_SingleProcessData(t *testing.T) {
	trigger := customerCollected()
	f := newTestFactory(t, map[string]domain.ProcessDefinition{
		trigger.Name(): linear(processDataDef("warehouse", "Customer")),
	})

	p, err := f.CreateFromMessage(trigger, nodeA, time.Now().UTC())
	if err != nil {
		t.Fatalf("CreateFromMessage: %v", err)
	}
	if p.IsSubProcess() {
		t.Error("process should be a root process")
	}

	d, err := p.Perform(trigger, time.Now().UTC())
	if err != nil {
		t.Fatalf("Perform: %v", err)
	}
	if d.Kind != DirectiveDispatch {
		t.Fatalf("expected dispatch, got %s", d.Kind)
	}
	cmd := singleMessage(t, d).(*message.WorkflowMessage)
	if !cmd.IsProcessDataCommand() || cmd.Target() != "warehouse" {
		t.Errorf("expected process-data to warehouse, got %s to %s", cmd.Name(), cmd.Target())
	}
	if entryAt(t, p, 1).Status() != domain.TaskStatusInProgress {
		t.Errorf("expected in_progress, got %s", entryAt(t, p, 1).Status())
	}

	d, err = p.ReceiveMessage(answer(t, cmd, "warehouse"), time.Now().UTC())
	if err != nil {
		t.Fatalf("ReceiveMessage: %v", err)
	}
	if d.Kind != DirectiveFinished || len(d.Messages) != 0 {
		t.Errorf("expected finished without messages, got %s with %d", d.Kind, len(d.Messages))
	}
	if entryAt(t, p, 1).Status() != domain.TaskStatusDone {
		t.Errorf("expected done, got %s", entryAt(t, p, 1).Status())
	}
	if !p.IsSuccessfulDone() {
		t.Error("process should be successfully done")
	}
}

func TestProcess_CollectThenProcess(t *testing.T) {
	f := newTestFactory(t, nil)
	p, err := f.CreateFromDefinition(linear(
		collectDataDef("crm", "Customer"),
		processDataDef("warehouse", "Customer"),
	), nodeA, time.Now().UTC())
	if err != nil {
		t.Fatalf("CreateFromDefinition: %v", err)
	}

	d, _ := p.Perform(nil, time.Now().UTC())
	collect := singleMessage(t, d).(*message.WorkflowMessage)
	if !collect.IsCollectDataCommand() || collect.Target() != "crm" || collect.Origin() != "node-a" {
		t.Fatalf("unexpected first command %s target=%s origin=%s", collect.Name(), collect.Target(), collect.Origin())
	}

	d, err = p.ReceiveMessage(answer(t, collect, "crm"), time.Now().UTC())
	if err != nil {
		t.Fatalf("ReceiveMessage: %v", err)
	}
	process := singleMessage(t, d).(*message.WorkflowMessage)
	if !process.IsProcessDataCommand() || process.Payload().Data != "ok" {
		t.Errorf("collected data should be forwarded to process-data, got %s %v", process.Name(), process.Payload().Data)
	}
	pos, _ := process.ProcessTaskListPosition()
	if pos.Position != 2 {
		t.Errorf("expected position 2, got %d", pos.Position)
	}
}

func TestProcess_DuplicateAnswerIgnored(t *testing.T) {
	f := newTestFactory(t, nil)
	p, _ := f.CreateFromDefinition(linear(
		collectDataDef("crm", "Customer"),
		collectDataDef("crm", "Order"),
	), nodeA, time.Now().UTC())

	d, _ := p.Perform(nil, time.Now().UTC())
	ans := answer(t, singleMessage(t, d), "crm")

	if _, err := p.ReceiveMessage(ans, time.Now().UTC()); err != nil {
		t.Fatalf("ReceiveMessage: %v", err)
	}
	version := p.Version()

	d, err := p.ReceiveMessage(ans, time.Now().UTC())
	if err != nil {
		t.Fatalf("duplicate ReceiveMessage: %v", err)
	}
	if d.Kind != DirectiveNoOp || len(d.Messages) != 0 {
		t.Errorf("duplicate should be a no-op, got %s", d.Kind)
	}
	if p.Version() != version {
		t.Errorf("duplicate should not record events: version %d → %d", version, p.Version())
	}
}

func TestProcess_ErrorLogFailsProcess(t *testing.T) {
	f := newTestFactory(t, nil)
	p, _ := f.CreateFromDefinition(linear(
		collectDataDef("crm", "Customer"),
		collectDataDef("crm", "Order"),
	), nodeA, time.Now().UTC())

	d, _ := p.Perform(nil, time.Now().UTC())
	pos, _ := singleMessage(t, d).ProcessTaskListPosition()

	log := message.NewLog(domain.LogError(pos, errors.New("crm is down")), "crm")
	d, err := p.ReceiveMessage(log, time.Now().UTC())
	if err != nil {
		t.Fatalf("ReceiveMessage: %v", err)
	}

	if d.Kind != DirectiveFinished {
		t.Errorf("expected finished, got %s", d.Kind)
	}
	entry := entryAt(t, p, 1)
	if !entry.IsFailed() {
		t.Errorf("expected failed, got %s", entry.Status())
	}
	if len(entry.MessageLog()) != 1 || entry.MessageLog()[0].Code != 500 {
		t.Errorf("error should be in the task log: %v", entry.MessageLog())
	}
	if entryAt(t, p, 2).IsStarted() {
		t.Error("failed task should halt the process")
	}
	if !p.IsFinished() || p.IsSuccessfulDone() {
		t.Error("process should be finished unsuccessfully")
	}

	d, _ = p.ReceiveMessage(log, time.Now().UTC())
	if d.Kind != DirectiveNoOp {
		t.Errorf("duplicate log should be a no-op, got %s", d.Kind)
	}
}

func TestProcess_InfoLogKeepsRunning(t *testing.T) {
	f := newTestFactory(t, nil)
	p, _ := f.CreateFromDefinition(linear(collectDataDef("crm", "Customer")), nodeA, time.Now().UTC())

	d, _ := p.Perform(nil, time.Now().UTC())
	pos, _ := singleMessage(t, d).ProcessTaskListPosition()

	d, err := p.ReceiveMessage(message.NewLog(domain.LogInfo(pos, "fetching", nil), "crm"), time.Now().UTC())
	if err != nil {
		t.Fatalf("ReceiveMessage: %v", err)
	}
	if d.Kind != DirectiveNoOp {
		t.Errorf("expected no-op, got %s", d.Kind)
	}
	if !entryAt(t, p, 1).IsRunning() {
		t.Error("info log should not finish the task")
	}
}

func TestProcess_ProcessDataWrongType(t *testing.T) {
	f := newTestFactory(t, nil)
	p, _ := f.CreateFromDefinition(linear(processDataDef("warehouse", "Order")), nodeA, time.Now().UTC())

	d, err := p.Perform(customerCollected(), time.Now().UTC())
	if err != nil {
		t.Fatalf("Perform: %v", err)
	}

	if d.Kind != DirectiveFinished {
		t.Errorf("expected finished, got %s", d.Kind)
	}
	entry := entryAt(t, p, 1)
	if !entry.IsFailed() {
		t.Fatalf("expected failed, got %s", entry.Status())
	}
	if code := entry.MessageLog()[0].Code; code != domain.CodeWrongMessageReceived {
		t.Errorf("expected code %d, got %d", domain.CodeWrongMessageReceived, code)
	}
}

func TestProcess_ProcessDataWithoutMessage(t *testing.T) {
	f := newTestFactory(t, nil)
	p, _ := f.CreateFromDefinition(linear(processDataDef("warehouse", "Order")), nodeA, time.Now().UTC())

	if _, err := p.Perform(nil, time.Now().UTC()); err != nil {
		t.Fatalf("Perform: %v", err)
	}
	if code := entryAt(t, p, 1).MessageLog()[0].Code; code != domain.CodeNoMessageReceived {
		t.Errorf("expected code %d, got %d", domain.CodeNoMessageReceived, code)
	}
}

func TestProcess_RunSubProcess(t *testing.T) {
	child := linear(processDataDef("warehouse", "Customer"))
	f := newTestFactory(t, nil)
	parent, err := f.CreateFromDefinition(linear(domain.TaskDefinition{
		TaskType:          domain.TaskTypeRunSubProcess,
		TargetNodeName:    "node-b",
		ProcessDefinition: &child,
	}), nodeA, time.Now().UTC())
	if err != nil {
		t.Fatalf("CreateFromDefinition: %v", err)
	}

	d, err := parent.Perform(customerCollected(), time.Now().UTC())
	if err != nil {
		t.Fatalf("Perform: %v", err)
	}
	if d.Kind != DirectiveStartSubProcess {
		t.Fatalf("expected start_sub_process, got %s", d.Kind)
	}
	start, ok := singleMessage(t, d).(*message.StartSubProcess)
	if !ok {
		t.Fatalf("expected *StartSubProcess, got %T", d.Messages[0])
	}
	if start.Target() != "node-b" {
		t.Errorf("expected target node-b, got %s", start.Target())
	}
	parentPos := start.ParentTaskListPosition()
	if !entryAt(t, parent, 1).IsRunning() {
		t.Error("parent entry should be in progress")
	}

	sub, err := f.CreateSubProcess(start, "node-b", time.Now().UTC())
	if err != nil {
		t.Fatalf("CreateSubProcess: %v", err)
	}
	if got, ok := sub.ParentPosition(); !ok || got != parentPos {
		t.Fatal("sub process should link to the parent position")
	}

	d, _ = sub.Perform(start.PreviousMessage(), time.Now().UTC())
	cmd := singleMessage(t, d)
	d, err = sub.ReceiveMessage(answer(t, cmd, "warehouse"), time.Now().UTC())
	if err != nil {
		t.Fatalf("sub ReceiveMessage: %v", err)
	}
	if d.Kind != DirectiveFinished {
		t.Fatalf("expected finished, got %s", d.Kind)
	}
	finished, ok := singleMessage(t, d).(*message.SubProcessFinished)
	if !ok {
		t.Fatalf("expected *SubProcessFinished, got %T", d.Messages[0])
	}
	if !finished.Succeed() || finished.Target() != "node-a" || finished.SubProcessID() != sub.ID() {
		t.Errorf("unexpected finished event: succeed=%v target=%s", finished.Succeed(), finished.Target())
	}

	if !entryAt(t, parent, 1).IsRunning() {
		t.Error("parent entry should stay in progress until the finished event arrives")
	}
	d, err = parent.ReceiveMessage(finished, time.Now().UTC())
	if err != nil {
		t.Fatalf("parent ReceiveMessage: %v", err)
	}
	if d.Kind != DirectiveFinished || !parent.IsSuccessfulDone() {
		t.Errorf("parent should be done, got %s", d.Kind)
	}
}

func TestProcess_SubProcessFinishesOnce(t *testing.T) {
	f := newTestFactory(t, nil)
	parentPos, _ := domain.NewTaskListPosition(domain.NewTaskListID(nodeA, domain.NewProcessID()), 1)
	start := message.NewStartSubProcess(parentPos, linear(
		collectDataDef("crm", "Customer"),
		collectDataDef("crm", "Order"),
	), false, nil, "node-b")

	sub, err := f.CreateSubProcess(start, "node-b", time.Now().UTC())
	if err != nil {
		t.Fatalf("CreateSubProcess: %v", err)
	}

	finishedEvents := 0
	count := func(d Directive) {
		for _, m := range d.Messages {
			if _, ok := m.(*message.SubProcessFinished); ok {
				finishedEvents++
			}
		}
	}

	d, _ := sub.Perform(nil, time.Now().UTC())
	first := singleMessage(t, d)
	pos1, _ := first.ProcessTaskListPosition()

	answer1 := answer(t, first, "crm")
	d, err = sub.ReceiveMessage(answer1, time.Now().UTC())
	if err != nil {
		t.Fatalf("answer task 1: %v", err)
	}
	count(d)
	second := singleMessage(t, d)

	late := domain.LogError(pos1, errors.New("late failure"))
	late.CreatedAt = answer1.Header().CreatedAt.Add(time.Second)
	d, err = sub.ReceiveMessage(message.NewLog(late, "crm"), time.Now().UTC())
	if err != nil {
		t.Fatalf("late error log: %v", err)
	}
	if d.Kind != DirectiveFinished {
		t.Fatalf("late error should finish the sub process, got %s", d.Kind)
	}
	count(d)

	answer2 := answer(t, second, "crm")
	d, err = sub.ReceiveMessage(answer2, time.Now().UTC())
	if err != nil {
		t.Fatalf("answer task 2: %v", err)
	}
	if d.Kind != DirectiveNoOp {
		t.Errorf("answer after finish should be a no-op, got %s", d.Kind)
	}
	count(d)

	if finishedEvents != 1 {
		t.Errorf("expected one finished event, got %d", finishedEvents)
	}
	if !entryAt(t, sub, 2).IsSuccessfulDone() {
		t.Errorf("task 2 should still record its answer, got %s", entryAt(t, sub, 2).Status())
	}
	if sub.IsSuccessfulDone() {
		t.Error("sub process should stay unsuccessful")
	}
}

func TestProcess_SubProcessSyncLogs(t *testing.T) {
	f := newTestFactory(t, nil)
	parentPos, _ := domain.NewTaskListPosition(domain.NewTaskListID(nodeA, domain.NewProcessID()), 1)
	start := message.NewStartSubProcess(parentPos, linear(collectDataDef("crm", "Customer")), true, nil, "node-b")

	sub, err := f.CreateSubProcess(start, "node-b", time.Now().UTC())
	if err != nil {
		t.Fatalf("CreateSubProcess: %v", err)
	}
	d, _ := sub.Perform(nil, time.Now().UTC())
	pos, _ := singleMessage(t, d).ProcessTaskListPosition()

	d, err = sub.ReceiveMessage(message.NewLog(domain.LogWarning(pos, "slow", nil), "crm"), time.Now().UTC())
	if err != nil {
		t.Fatalf("ReceiveMessage: %v", err)
	}
	fwd, ok := singleMessage(t, d).(*message.Log)
	if !ok {
		t.Fatalf("expected forwarded *Log, got %T", d.Messages[0])
	}
	if fwd.LogMessage().Position != parentPos || fwd.Target() != "node-a" {
		t.Errorf("log should be forwarded to the parent position, got %s", fwd.LogMessage().Position)
	}
}

func TestProcess_FromHistory(t *testing.T) {
	f := newTestFactory(t, nil)
	p, _ := f.CreateFromDefinition(linear(
		collectDataDef("crm", "Customer"),
		processDataDef("warehouse", "Customer"),
	), nodeA, time.Now().UTC())
	d, _ := p.Perform(nil, time.Now().UTC())
	if _, err := p.ReceiveMessage(answer(t, singleMessage(t, d), "crm"), time.Now().UTC()); err != nil {
		t.Fatalf("ReceiveMessage: %v", err)
	}

	var history []Event
	for _, e := range p.PopRecordedEvents() {
		data, err := EncodeEvent(e)
		if err != nil {
			t.Fatalf("EncodeEvent: %v", err)
		}
		decoded, err := DecodeEvent(e.EventName(), data)
		if err != nil {
			t.Fatalf("DecodeEvent: %v", err)
		}
		history = append(history, decoded)
	}
	if len(p.PendingEvents()) != 0 {
		t.Error("PopRecordedEvents should clear pending events")
	}

	restored, err := FromHistory(history)
	if err != nil {
		t.Fatalf("FromHistory: %v", err)
	}
	if restored.ID() != p.ID() || restored.Version() != p.Version() {
		t.Errorf("restored id/version mismatch: %s/%d vs %s/%d", restored.ID(), restored.Version(), p.ID(), p.Version())
	}
	for i, e := range p.TaskList().Entries() {
		r := restored.TaskList().Entries()[i]
		if r.Status() != e.Status() {
			t.Errorf("entry %d: status %s, want %s", i+1, r.Status(), e.Status())
		}
		if !r.Task().Equal(e.Task()) {
			t.Errorf("entry %d: task mismatch", i+1)
		}
	}
}

func TestFromHistory_Invalid(t *testing.T) {
	if _, err := FromHistory(nil); !errors.Is(err, ErrEmptyHistory) {
		t.Errorf("expected ErrEmptyHistory, got %v", err)
	}

	pos, _ := domain.NewTaskListPosition(domain.NewTaskListID(nodeA, domain.NewProcessID()), 1)
	_, err := FromHistory([]Event{&TaskEntryMarkedAsRunning{newEntryEvent(pos.ProcessID(), pos, time.Now())}})
	if !errors.Is(err, ErrNotSetUp) {
		t.Errorf("expected ErrNotSetUp, got %v", err)
	}
}

func TestProcess_RescheduleTaskList(t *testing.T) {
	f := newTestFactory(t, nil)
	p, _ := f.CreateFromDefinition(linear(
		collectDataDef("crm", "Customer"),
		collectDataDef("crm", "Customer"),
	), nodeA, time.Now().UTC())
	_, _ = p.Perform(nil, time.Now().UTC())

	order, _ := domain.NewCollectData("erp", "Order", nil, nil)
	if err := p.RescheduleTaskList([]domain.Task{order, order}, time.Now().UTC()); err != nil {
		t.Fatalf("RescheduleTaskList: %v", err)
	}

	entries := p.TaskList().Entries()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if !entries[0].IsRunning() {
		t.Error("running entry should be kept")
	}
	if !entries[2].Task().Equal(order) {
		t.Error("new tasks should follow the kept entries")
	}

	restored, err := FromHistory(p.PendingEvents())
	if err != nil {
		t.Fatalf("FromHistory: %v", err)
	}
	if restored.TaskList().Len() != 3 {
		t.Errorf("replay should rebuild rescheduled list, got %d entries", restored.TaskList().Len())
	}
}

func TestProcess_ForeignMessage(t *testing.T) {
	f := newTestFactory(t, nil)
	p, _ := f.CreateFromDefinition(linear(collectDataDef("crm", "Customer")), nodeA, time.Now().UTC())

	if _, err := p.ReceiveMessage(customerCollected(), time.Now().UTC()); !errors.Is(err, ErrMissingPosition) {
		t.Errorf("expected ErrMissingPosition, got %v", err)
	}

	other, _ := domain.NewTaskListPosition(domain.NewTaskListID(nodeA, domain.NewProcessID()), 1)
	_, err := p.ReceiveMessage(customerCollected().ConnectToProcessTask(other), time.Now().UTC())
	if !errors.Is(err, ErrForeignMessage) {
		t.Errorf("expected ErrForeignMessage, got %v", err)
	}
}
