package message

import (
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Conveyor/internal/domain"
)

// Kind — команда или событие.
type Kind string

const (
	KindCommand Kind = "command"
	KindEvent   Kind = "event"
)

// headerVersion — версия формата заголовка.
const headerVersion = 1

// Header — заголовок сообщения.
type Header struct {
	UUID      uuid.UUID `json:"uuid"`
	CreatedAt time.Time `json:"created_at"`
	Version   int       `json:"version"`
	Sender    string    `json:"sender"`
	Kind      Kind      `json:"type"`
}

// NewHeader создаёт заголовок с новым UUID и текущим временем.
func NewHeader(kind Kind, sender string) Header {
	return Header{
		UUID:      uuid.New(),
		CreatedAt: time.Now().UTC(),
		Version:   headerVersion,
		Sender:    sender,
		Kind:      kind,
	}
}

// Message — общий интерфейс всех сообщений.
type Message interface {
	// Name — логическое имя сообщения.
	Name() string

	// Header — заголовок.
	Header() Header

	// Target — получатель (handler или узел).
	Target() string

	// Origin — отправитель в терминах маршрутизации.
	Origin() string

	// ProcessTaskListPosition — позиция задачи, к которой относится сообщение.
	ProcessTaskListPosition() (domain.TaskListPosition, bool)
}

// base — общие поля сообщений.
type base struct {
	header   Header
	target   string
	origin   string
	position *domain.TaskListPosition
}

func (b *base) Header() Header { return b.header }
func (b *base) Target() string { return b.target }
func (b *base) Origin() string { return b.origin }

func (b *base) ProcessTaskListPosition() (domain.TaskListPosition, bool) {
	if b.position == nil {
		return domain.TaskListPosition{}, false
	}
	return *b.position, true
}

func positionPtr(pos domain.TaskListPosition) *domain.TaskListPosition {
	if pos.IsZero() {
		return nil
	}
	return &pos
}
