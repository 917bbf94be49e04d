package domain

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// idSeparator разделяет части строкового представления TaskListID и TaskListPosition.
const idSeparator = ":"

// NodeName — имя узла обработки.
//
// Узел владеет процессами, которые на нём запущены, и служит
// origin по умолчанию для исходящих сообщений.
type NodeName string

// NewNodeName создаёт NodeName с проверкой.
func NewNodeName(name string) (NodeName, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyNodeName
	}
	if strings.ContainsAny(name, idSeparator+" \t\n") {
		return "", fmt.Errorf("%w: %q", ErrInvalidNodeName, name)
	}
	return NodeName(name), nil
}

// String возвращает имя узла.
func (n NodeName) String() string {
	return string(n)
}

// ProcessID — глобально уникальный идентификатор процесса.
type ProcessID uuid.UUID

// NewProcessID генерирует новый ProcessID.
func NewProcessID() ProcessID {
	return ProcessID(uuid.New())
}

// ParseProcessID парсит ProcessID из строки.
func ParseProcessID(s string) (ProcessID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return ProcessID{}, fmt.Errorf("%w: %v", ErrInvalidProcessID, err)
	}
	return ProcessID(id), nil
}

// String возвращает каноническое представление UUID.
func (id ProcessID) String() string {
	return uuid.UUID(id).String()
}

// IsZero возвращает true для нулевого ID.
func (id ProcessID) IsZero() bool {
	return uuid.UUID(id) == uuid.Nil
}

// MarshalText реализует encoding.TextMarshaler.
func (id ProcessID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText реализует encoding.TextUnmarshaler.
func (id *ProcessID) UnmarshalText(b []byte) error {
	parsed, err := ParseProcessID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// TaskListID — идентификатор списка задач: узел + процесс.
type TaskListID struct {
	NodeName  NodeName
	ProcessID ProcessID
}

// NewTaskListID связывает узел и процесс.
func NewTaskListID(node NodeName, processID ProcessID) TaskListID {
	return TaskListID{NodeName: node, ProcessID: processID}
}

// String возвращает "<node>:<process-id>".
func (id TaskListID) String() string {
	return id.NodeName.String() + idSeparator + id.ProcessID.String()
}

// ParseTaskListID парсит TaskListID из строки.
func ParseTaskListID(s string) (TaskListID, error) {
	node, rawID, ok := strings.Cut(s, idSeparator)
	if !ok {
		return TaskListID{}, fmt.Errorf("%w: %q", ErrInvalidPosition, s)
	}
	nodeName, err := NewNodeName(node)
	if err != nil {
		return TaskListID{}, err
	}
	processID, err := ParseProcessID(rawID)
	if err != nil {
		return TaskListID{}, err
	}
	return NewTaskListID(nodeName, processID), nil
}

// MarshalText реализует encoding.TextMarshaler.
func (id TaskListID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText реализует encoding.TextUnmarshaler.
func (id *TaskListID) UnmarshalText(b []byte) error {
	parsed, err := ParseTaskListID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// TaskListPosition — адрес задачи внутри процесса.
//
// Позиция начинается с 1. По ней коррелируются ответы на команды
// и адресуются LogMessage.
type TaskListPosition struct {
	TaskListID TaskListID
	Position   int
}

// NewTaskListPosition создаёт позицию.
func NewTaskListPosition(id TaskListID, position int) (TaskListPosition, error) {
	if position < 1 {
		return TaskListPosition{}, fmt.Errorf("%w: position %d", ErrInvalidPosition, position)
	}
	return TaskListPosition{TaskListID: id, Position: position}, nil
}

// String возвращает "<node>:<process-id>:<position>".
func (p TaskListPosition) String() string {
	return p.TaskListID.String() + idSeparator + strconv.Itoa(p.Position)
}

// ParseTaskListPosition парсит позицию из строки.
func ParseTaskListPosition(s string) (TaskListPosition, error) {
	i := strings.LastIndex(s, idSeparator)
	if i < 0 {
		return TaskListPosition{}, fmt.Errorf("%w: %q", ErrInvalidPosition, s)
	}
	id, err := ParseTaskListID(s[:i])
	if err != nil {
		return TaskListPosition{}, err
	}
	n, err := strconv.Atoi(s[i+1:])
	if err != nil {
		return TaskListPosition{}, fmt.Errorf("%w: %q", ErrInvalidPosition, s)
	}
	return NewTaskListPosition(id, n)
}

// ProcessID возвращает ID процесса, которому принадлежит позиция.
func (p TaskListPosition) ProcessID() ProcessID {
	return p.TaskListID.ProcessID
}

// NodeName возвращает узел, на котором живёт процесс.
func (p TaskListPosition) NodeName() NodeName {
	return p.TaskListID.NodeName
}

// IsZero возвращает true для незаданной позиции.
func (p TaskListPosition) IsZero() bool {
	return p.Position == 0
}

// MarshalText реализует encoding.TextMarshaler.
func (p TaskListPosition) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText реализует encoding.TextUnmarshaler.
func (p *TaskListPosition) UnmarshalText(b []byte) error {
	parsed, err := ParseTaskListPosition(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
