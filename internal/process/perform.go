package process

import (
	"fmt"
	"time"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/message"
)

// Perform запускает следующую незапущенную задачу.
//
// previous — последнее сообщение с данными (стартовое событие процесса
// или ответ на предыдущую задачу); может быть nil.
func (p *Process) Perform(previous *message.WorkflowMessage, now time.Time) (Directive, error) {
	return p.performNext(previous, workflowOrNil(previous), now)
}

// ReceiveMessage обрабатывает ответ на задачу и продвигает процесс.
//
// Повторная доставка ответа не меняет состояние и возвращает DirectiveNoOp.
func (p *Process) ReceiveMessage(msg message.Message, now time.Time) (Directive, error) {
	pos, ok := msg.ProcessTaskListPosition()
	if !ok {
		return Directive{}, fmt.Errorf("%w: %s", ErrMissingPosition, msg.Name())
	}
	if pos.TaskListID != p.taskList.ID() {
		return Directive{}, fmt.Errorf("%w: %s", ErrForeignMessage, pos)
	}
	entry, err := p.taskList.Entry(pos)
	if err != nil {
		return Directive{}, err
	}

	at := msg.Header().CreatedAt
	if at.IsZero() {
		at = now
	}

	switch m := msg.(type) {
	case *message.WorkflowMessage:
		return p.receiveAnswer(entry, m, at, now)
	case *message.Log:
		return p.receiveLog(entry, m)
	case *message.SubProcessFinished:
		return p.receiveSubProcessFinished(entry, m, at, now)
	default:
		return Directive{}, fmt.Errorf("%w: %s", ErrUnsupportedMessage, msg.Name())
	}
}

// --- Performing ---

func (p *Process) perform(entry *domain.TaskListEntry, previous *message.WorkflowMessage, now time.Time) (Directive, error) {
	pos := entry.Position()
	route := message.Route{Origin: p.NodeName().String()}

	switch task := entry.Task().(type) {
	case *domain.CollectData:
		if err := p.markRunning(entry, now); err != nil {
			return Directive{}, err
		}
		route.Target = task.Source()
		cmd := message.NewCollectDataCommand(task.PayloadType(), task.Metadata(), route).ConnectToProcessTask(pos)
		return Directive{Kind: DirectiveDispatch, Messages: []message.Message{cmd}}, nil

	case *domain.ProcessData:
		if previous == nil || !previous.IsEvent() {
			return p.failTask(entry, domain.NewProcessingError(domain.CodeNoMessageReceived,
				"process data task started without a data message", nil), now)
		}
		if !task.Allows(previous.PayloadType()) {
			return p.failTask(entry, domain.NewProcessingError(domain.CodeWrongMessageReceived,
				fmt.Sprintf("payload type %q is not allowed for target %s", previous.PayloadType(), task.Target()),
				map[string]any{"payload_type": previous.PayloadType(), "allowed_types": task.AllowedTypes()}), now)
		}
		if err := p.markRunning(entry, now); err != nil {
			return Directive{}, err
		}
		route.Target = task.Target()
		cmd, err := previous.PrepareDataProcessing(pos, task.Metadata(), route)
		if err != nil {
			return Directive{}, err
		}
		return Directive{Kind: DirectiveDispatch, Messages: []message.Message{cmd}}, nil

	case *domain.RunSubProcess:
		if err := p.markRunning(entry, now); err != nil {
			return Directive{}, err
		}
		cmd := message.NewStartSubProcess(pos, task.ProcessDefinition(), task.SyncLogMessages(), previous, task.TargetNodeName())
		return Directive{Kind: DirectiveStartSubProcess, Messages: []message.Message{cmd}}, nil

	default:
		return Directive{}, fmt.Errorf("%w: %T", domain.ErrUnknownTaskType, task)
	}
}

// performNext запускает следующую задачу или завершает процесс.
func (p *Process) performNext(previous *message.WorkflowMessage, last message.Message, now time.Time) (Directive, error) {
	if p.IsFinished() {
		return p.finished(last), nil
	}
	next := p.taskList.NextNotStartedEntry()
	if next == nil {
		// задачи ещё выполняются
		return noop(), nil
	}
	return p.perform(next, previous, now)
}

// --- Answers ---

func (p *Process) receiveAnswer(entry *domain.TaskListEntry, answer *message.WorkflowMessage, at, now time.Time) (Directive, error) {
	if !answer.IsEvent() {
		return Directive{}, fmt.Errorf("%w: %s is a command", ErrUnsupportedMessage, answer.Name())
	}
	if collect, ok := entry.Task().(*domain.CollectData); ok && !entry.IsFinished() &&
		message.NormalizeTypeName(collect.PayloadType()) != message.NormalizeTypeName(answer.PayloadType()) {
		return p.failTask(entry, domain.NewProcessingError(domain.CodeWrongMessageReceived,
			fmt.Sprintf("expected %q from %s, got %q", collect.PayloadType(), collect.Source(), answer.PayloadType()),
			map[string]any{"payload_type": answer.PayloadType()}), at)
	}

	// ответ после завершения процесса только обновляет задачу
	wasFinished := entry.IsFinished() || p.IsFinished()
	changed, err := p.markDone(entry, at)
	if err != nil || !changed || wasFinished {
		return noop(), err
	}
	return p.performNext(answer, answer, now)
}

func (p *Process) receiveLog(entry *domain.TaskListEntry, log *message.Log) (Directive, error) {
	lm := log.LogMessage()
	if entry.HasLogMessage(lm.UUID) {
		return noop(), nil
	}
	if err := p.record(&LogMessageReceived{
		eventMeta: eventMeta{ID: p.id, At: lm.CreatedAt},
		Message:   lm,
	}); err != nil {
		return Directive{}, err
	}

	var forwarded []message.Message
	if p.parentPosition != nil && p.syncLogMessages {
		forwarded = append(forwarded, log.ForwardTo(*p.parentPosition, p.NodeName().String()))
	}

	if !lm.IsError() {
		return noop(forwarded...), nil
	}
	wasFinished := p.IsFinished()
	if _, err := p.markFailed(entry, lm.CreatedAt); err != nil {
		return Directive{}, err
	}
	if wasFinished || !p.IsFinished() {
		return noop(forwarded...), nil
	}
	return p.finished(log).with(forwarded...), nil
}

func (p *Process) receiveSubProcessFinished(entry *domain.TaskListEntry, m *message.SubProcessFinished, at, now time.Time) (Directive, error) {
	if !entry.AcceptsFinishAt(at) {
		return noop(), nil
	}
	wasFinished := entry.IsFinished()

	info := domain.NewLogMessage(entry.Position(), domain.CodeSubProcessFinished, "sub process finished", map[string]any{
		"sub_process_id": m.SubProcessID().String(),
		"node":           m.NodeName().String(),
		"succeed":        m.Succeed(),
	})
	if err := p.record(&LogMessageReceived{eventMeta: eventMeta{ID: p.id, At: at}, Message: info}); err != nil {
		return Directive{}, err
	}

	// без синхронизации логов последняя запись дочернего процесса копируется сюда
	last := m.LastMessage()
	if task, ok := entry.Task().(*domain.RunSubProcess); ok && !task.SyncLogMessages() {
		if log, ok := last.(*message.Log); ok {
			copied := log.ForwardTo(entry.Position(), p.NodeName().String()).LogMessage()
			if err := p.record(&LogMessageReceived{eventMeta: eventMeta{ID: p.id, At: at}, Message: copied}); err != nil {
				return Directive{}, err
			}
		}
	}

	if !m.Succeed() {
		wasProcessFinished := p.IsFinished()
		if _, err := p.markFailed(entry, at); err != nil {
			return Directive{}, err
		}
		if wasProcessFinished || !p.IsFinished() {
			return noop(), nil
		}
		return p.finished(m), nil
	}

	wasProcessFinished := p.IsFinished()
	if _, err := p.markDone(entry, at); err != nil {
		return Directive{}, err
	}
	if wasFinished || wasProcessFinished {
		return noop(), nil
	}
	previous, _ := last.(*message.WorkflowMessage)
	return p.performNext(previous, m, now)
}

// failTask записывает ошибку в журнал задачи и помечает её как failed.
// Упавшая задача завершает процесс.
func (p *Process) failTask(entry *domain.TaskListEntry, cause error, at time.Time) (Directive, error) {
	lm := domain.LogError(entry.Position(), cause)
	lm.CreatedAt = at
	if err := p.record(&LogMessageReceived{eventMeta: eventMeta{ID: p.id, At: at}, Message: lm}); err != nil {
		return Directive{}, err
	}
	wasFinished := p.IsFinished()
	if _, err := p.markFailed(entry, at); err != nil {
		return Directive{}, err
	}

	log := message.NewLog(lm, p.NodeName().String())
	if wasFinished {
		return noop(), nil
	}
	d := p.finished(log)
	if p.parentPosition != nil && p.syncLogMessages {
		d = d.with(log.ForwardTo(*p.parentPosition, p.NodeName().String()))
	}
	return d, nil
}

// finished строит директиву завершения.
func (p *Process) finished(last message.Message) Directive {
	d := Directive{Kind: DirectiveFinished}
	if p.parentPosition != nil {
		d.Messages = append(d.Messages, message.NewSubProcessFinished(
			p.NodeName(), p.id, p.IsSuccessfulDone(), last, *p.parentPosition,
		))
	}
	return d
}

// --- Transitions ---

func (p *Process) markRunning(entry *domain.TaskListEntry, at time.Time) error {
	if !entry.CanMarkAsRunning() {
		return nil
	}
	return p.record(&TaskEntryMarkedAsRunning{newEntryEvent(p.id, entry.Position(), at)})
}

func (p *Process) markDone(entry *domain.TaskListEntry, at time.Time) (bool, error) {
	if !entry.AcceptsFinishAt(at) {
		return false, nil
	}
	return true, p.record(&TaskEntryMarkedAsDone{newEntryEvent(p.id, entry.Position(), at)})
}

func (p *Process) markFailed(entry *domain.TaskListEntry, at time.Time) (bool, error) {
	if !entry.AcceptsFinishAt(at) {
		return false, nil
	}
	return true, p.record(&TaskEntryMarkedAsFailed{newEntryEvent(p.id, entry.Position(), at)})
}

func workflowOrNil(m *message.WorkflowMessage) message.Message {
	if m == nil {
		return nil
	}
	return m
}
