package message

import (
	"github.com/shaiso/Conveyor/internal/domain"
)

// StartSubProcess — команда запуска дочернего процесса на целевом узле.
type StartSubProcess struct {
	base
	parentPosition  domain.TaskListPosition
	definition      domain.ProcessDefinition
	syncLogMessages bool
	previous        *WorkflowMessage
}

// NewStartSubProcess создаёт команду запуска дочернего процесса.
//
// previous — последнее сообщение родителя, с которого стартует дочерний процесс.
func NewStartSubProcess(parent domain.TaskListPosition, def domain.ProcessDefinition, syncLogMessages bool, previous *WorkflowMessage, targetNode domain.NodeName) *StartSubProcess {
	node := parent.NodeName().String()
	return &StartSubProcess{
		base: base{
			header: NewHeader(KindCommand, node),
			target: targetNode.String(),
			origin: node,
		},
		parentPosition:  parent,
		definition:      def.Clone(),
		syncLogMessages: syncLogMessages,
		previous:        previous,
	}
}

// Name реализует Message.
func (m *StartSubProcess) Name() string { return StartSubProcessName }

// ParentTaskListPosition возвращает позицию задачи RunSubProcess родителя.
func (m *StartSubProcess) ParentTaskListPosition() domain.TaskListPosition { return m.parentPosition }

// ProcessDefinition возвращает определение дочернего процесса.
func (m *StartSubProcess) ProcessDefinition() domain.ProcessDefinition { return m.definition.Clone() }

// SyncLogMessages — пересылать ли логи родителю.
func (m *StartSubProcess) SyncLogMessages() bool { return m.syncLogMessages }

// PreviousMessage возвращает последнее сообщение родителя или nil.
func (m *StartSubProcess) PreviousMessage() *WorkflowMessage { return m.previous }

// SubProcessFinished — событие завершения дочернего процесса.
//
// Адресуется узлу родителя и несёт позицию его задачи RunSubProcess.
type SubProcessFinished struct {
	base
	node         domain.NodeName
	subProcessID domain.ProcessID
	succeed      bool
	last         Message
}

// NewSubProcessFinished создаёт событие завершения.
//
// last — сообщение, завершившее дочерний процесс (WorkflowMessage или Log), может быть nil.
func NewSubProcessFinished(node domain.NodeName, subProcessID domain.ProcessID, succeed bool, last Message, parent domain.TaskListPosition) *SubProcessFinished {
	return &SubProcessFinished{
		base: base{
			header:   NewHeader(KindEvent, node.String()),
			target:   parent.NodeName().String(),
			origin:   node.String(),
			position: positionPtr(parent),
		},
		node:         node,
		subProcessID: subProcessID,
		succeed:      succeed,
		last:         last,
	}
}

// Name реализует Message.
func (m *SubProcessFinished) Name() string { return SubProcessFinishedName }

// NodeName возвращает узел дочернего процесса.
func (m *SubProcessFinished) NodeName() domain.NodeName { return m.node }

// SubProcessID возвращает ID дочернего процесса.
func (m *SubProcessFinished) SubProcessID() domain.ProcessID { return m.subProcessID }

// Succeed — завершился ли дочерний процесс успешно.
func (m *SubProcessFinished) Succeed() bool { return m.succeed }

// LastMessage возвращает последнее сообщение дочернего процесса или nil.
func (m *SubProcessFinished) LastMessage() Message { return m.last }

func (m *SubProcessFinished) parentPosition() domain.TaskListPosition {
	pos, _ := m.ProcessTaskListPosition()
	return pos
}
