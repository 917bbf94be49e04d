package message

import (
	"fmt"

	"github.com/shaiso/Conveyor/internal/domain"
)

// Route — адресация исходящего сообщения.
type Route struct {
	Target string
	Origin string
	Sender string // если пусто, используется Origin
}

func (r Route) sender() string {
	if r.Sender != "" {
		return r.Sender
	}
	return r.Origin
}

// Payload — данные workflow-сообщения.
type Payload struct {
	TypeClass string `json:"typeClass"`
	Data      any    `json:"data"`
}

// WorkflowMessage — команда или событие с данными определённого типа.
//
// Сообщения неизменяемы: методы преобразования возвращают копию.
type WorkflowMessage struct {
	base
	suffix   Suffix
	payload  Payload
	metadata domain.Metadata
}

func newWorkflowMessage(suffix Suffix, payload Payload, metadata domain.Metadata, route Route) *WorkflowMessage {
	return &WorkflowMessage{
		base: base{
			header: NewHeader(suffix.Kind(), route.sender()),
			target: route.Target,
			origin: route.Origin,
		},
		suffix:   suffix,
		payload:  payload,
		metadata: metadata,
	}
}

// NewCollectDataCommand создаёт команду запроса данных типа payloadType.
func NewCollectDataCommand(payloadType string, metadata domain.Metadata, route Route) *WorkflowMessage {
	return newWorkflowMessage(SuffixCollectData, Payload{TypeClass: payloadType}, metadata, route)
}

// NewDataCollectedEvent создаёт событие с собранными данными.
//
// Такие события запускают процессы, определения которых
// зарегистрированы под именем события.
func NewDataCollectedEvent(payload Payload, metadata domain.Metadata, route Route) *WorkflowMessage {
	return newWorkflowMessage(SuffixDataCollected, payload, metadata, route)
}

// Name реализует Message.
func (m *WorkflowMessage) Name() string {
	return NameFor(m.payload.TypeClass, m.suffix)
}

// Suffix возвращает вид workflow-сообщения.
func (m *WorkflowMessage) Suffix() Suffix { return m.suffix }

// PayloadType возвращает тип данных сообщения.
func (m *WorkflowMessage) PayloadType() string { return m.payload.TypeClass }

// Payload возвращает данные сообщения.
func (m *WorkflowMessage) Payload() Payload { return m.payload }

// Metadata возвращает копию metadata.
func (m *WorkflowMessage) Metadata() domain.Metadata { return m.metadata.Merge(nil) }

// IsCommand возвращает true для collect-data и process-data.
func (m *WorkflowMessage) IsCommand() bool { return m.suffix.Kind() == KindCommand }

// IsEvent возвращает true для data-collected и data-processed.
func (m *WorkflowMessage) IsEvent() bool { return m.suffix.Kind() == KindEvent }

// IsCollectDataCommand возвращает true для collect-data.
func (m *WorkflowMessage) IsCollectDataCommand() bool { return m.suffix == SuffixCollectData }

// IsProcessDataCommand возвращает true для process-data.
func (m *WorkflowMessage) IsProcessDataCommand() bool { return m.suffix == SuffixProcessData }

func (m *WorkflowMessage) clone() *WorkflowMessage {
	c := *m
	c.metadata = m.metadata.Merge(nil)
	if m.position != nil {
		pos := *m.position
		c.position = &pos
	}
	return &c
}

// ConnectToProcessTask возвращает копию, привязанную к позиции задачи.
func (m *WorkflowMessage) ConnectToProcessTask(pos domain.TaskListPosition) *WorkflowMessage {
	c := m.clone()
	c.position = positionPtr(pos)
	return c
}

// Answer создаёт ответ на команду.
//
// collect-data → data-collected, process-data → data-processed.
// Ответ адресуется отправителю команды и сохраняет позицию задачи.
func (m *WorkflowMessage) Answer(payload Payload, sender string) (*WorkflowMessage, error) {
	var suffix Suffix
	switch m.suffix {
	case SuffixCollectData:
		suffix = SuffixDataCollected
	case SuffixProcessData:
		suffix = SuffixDataProcessed
	default:
		return nil, fmt.Errorf("%w: %s", ErrNotAnswerable, m.Name())
	}
	if payload.TypeClass == "" {
		payload.TypeClass = m.payload.TypeClass
	}

	answer := newWorkflowMessage(suffix, payload, m.Metadata(), Route{
		Target: m.origin,
		Origin: m.target,
		Sender: sender,
	})
	answer.position = m.clone().position
	return answer, nil
}

// PrepareDataProcessing превращает событие с данными в команду process-data.
func (m *WorkflowMessage) PrepareDataProcessing(pos domain.TaskListPosition, metadata domain.Metadata, route Route) (*WorkflowMessage, error) {
	if !m.IsEvent() {
		return nil, fmt.Errorf("%w: %s", ErrNotProcessable, m.Name())
	}
	cmd := newWorkflowMessage(SuffixProcessData, m.payload, m.metadata.Merge(metadata), route)
	cmd.position = positionPtr(pos)
	return cmd, nil
}
