package domain

import (
	"errors"
	"testing"
	"time"
)

func testTaskListID() TaskListID {
	return NewTaskListID("node-a", NewProcessID())
}

func testPosition(t *testing.T, id TaskListID, n int) TaskListPosition {
	t.Helper()
	pos, err := NewTaskListPosition(id, n)
	if err != nil {
		t.Fatalf("NewTaskListPosition: %v", err)
	}
	return pos
}

func testCollectData(t *testing.T) *CollectData {
	t.Helper()
	task, err := NewCollectData("crm", "Customer", nil, nil)
	if err != nil {
		t.Fatalf("NewCollectData: %v", err)
	}
	return task
}

// --- TaskListEntry Tests ---

func TestTaskListEntry_New(t *testing.T) {
	pos := testPosition(t, testTaskListID(), 1)
	e := NewTaskListEntry(pos, testCollectData(t))

	if e.Status() != TaskStatusNotStarted {
		t.Errorf("expected not_started, got %s", e.Status())
	}
	if e.IsStarted() || e.IsFinished() {
		t.Error("new entry should be neither started nor finished")
	}
	if e.StartedAt() != nil || e.FinishedAt() != nil {
		t.Error("timestamps should be empty")
	}
}

func TestTaskListEntry_MarkAsRunning_Idempotent(t *testing.T) {
	e := NewTaskListEntry(testPosition(t, testTaskListID(), 1), testCollectData(t))
	t1 := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Minute)

	if !e.MarkAsRunning(t1) {
		t.Fatal("first MarkAsRunning should change state")
	}
	if e.MarkAsRunning(t2) {
		t.Error("second MarkAsRunning should be ignored")
	}

	if e.Status() != TaskStatusInProgress {
		t.Errorf("expected in_progress, got %s", e.Status())
	}
	if !e.StartedAt().Equal(t1) {
		t.Errorf("startedAt should stay %v, got %v", t1, e.StartedAt())
	}
}

func TestTaskListEntry_MarkAsRunning_AfterFinishIgnored(t *testing.T) {
	e := NewTaskListEntry(testPosition(t, testTaskListID(), 1), testCollectData(t))
	at := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	e.MarkAsSuccessfulDone(at)
	if e.MarkAsRunning(at.Add(time.Hour)) {
		t.Error("MarkAsRunning on finished entry should be ignored")
	}
	if e.Status() != TaskStatusDone {
		t.Errorf("expected done, got %s", e.Status())
	}
}

func TestTaskListEntry_MarkAsDone_ImplicitlyRuns(t *testing.T) {
	e := NewTaskListEntry(testPosition(t, testTaskListID(), 1), testCollectData(t))
	at := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	if !e.MarkAsSuccessfulDone(at) {
		t.Fatal("MarkAsSuccessfulDone should change state")
	}

	if !e.IsSuccessfulDone() {
		t.Errorf("expected done, got %s", e.Status())
	}
	if e.StartedAt() == nil || !e.StartedAt().Equal(at) {
		t.Error("startedAt should be set to finish time")
	}
	if !e.FinishedAt().Equal(at) {
		t.Error("finishedAt should be set")
	}
}

func TestTaskListEntry_Finish_DuplicateIgnored(t *testing.T) {
	e := NewTaskListEntry(testPosition(t, testTaskListID(), 1), testCollectData(t))
	at := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	e.MarkAsRunning(at)
	e.MarkAsSuccessfulDone(at.Add(time.Second))

	if e.MarkAsFailed(at.Add(time.Second)) {
		t.Error("finish with the same time should be ignored")
	}
	if e.MarkAsFailed(at) {
		t.Error("finish with an earlier time should be ignored")
	}
	if !e.IsSuccessfulDone() {
		t.Errorf("expected done, got %s", e.Status())
	}
}

func TestTaskListEntry_Finish_LaterOverwrites(t *testing.T) {
	e := NewTaskListEntry(testPosition(t, testTaskListID(), 1), testCollectData(t))
	at := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	e.MarkAsSuccessfulDone(at)
	later := at.Add(time.Minute)
	if !e.MarkAsFailed(later) {
		t.Fatal("finish with a later time should overwrite")
	}

	if !e.IsFailed() {
		t.Errorf("expected failed, got %s", e.Status())
	}
	if !e.FinishedAt().Equal(later) {
		t.Errorf("finishedAt should be %v, got %v", later, e.FinishedAt())
	}
	if !e.StartedAt().Equal(at) {
		t.Error("startedAt should not change")
	}
}

func TestTaskListEntry_LogMessage(t *testing.T) {
	id := testTaskListID()
	pos := testPosition(t, id, 1)
	e := NewTaskListEntry(pos, testCollectData(t))

	msg := LogInfo(pos, "collected", nil)
	if err := e.LogMessage(msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(e.MessageLog()) != 1 {
		t.Fatalf("expected 1 log message, got %d", len(e.MessageLog()))
	}
	if !e.HasLogMessage(msg.UUID) {
		t.Error("HasLogMessage should find logged message")
	}

	foreign := LogInfo(testPosition(t, id, 2), "other", nil)
	err := e.LogMessage(foreign)
	if !errors.Is(err, ErrPositionMismatch) {
		t.Errorf("expected ErrPositionMismatch, got %v", err)
	}
	if len(e.MessageLog()) != 1 {
		t.Error("rejected message should not be logged")
	}
}
