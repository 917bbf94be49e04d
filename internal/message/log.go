package message

import (
	"maps"

	"github.com/shaiso/Conveyor/internal/domain"
)

// Log — сообщение с записью журнала задачи.
//
// Адресуется узлу, на котором живёт процесс позиции.
type Log struct {
	base
	entry domain.LogMessage
}

// NewLog оборачивает LogMessage в сообщение.
// UUID и время заголовка совпадают с UUID и временем записи.
func NewLog(entry domain.LogMessage, sender string) *Log {
	header := NewHeader(KindEvent, sender)
	header.UUID = entry.UUID
	header.CreatedAt = entry.CreatedAt
	return &Log{
		base: base{
			header:   header,
			target:   entry.Position.NodeName().String(),
			origin:   sender,
			position: positionPtr(entry.Position),
		},
		entry: entry,
	}
}

// Name реализует Message.
func (l *Log) Name() string { return LogMessageName }

// LogMessage возвращает запись журнала.
func (l *Log) LogMessage() domain.LogMessage { return l.entry }

// ForwardTo создаёт копию записи для позиции родительского процесса.
func (l *Log) ForwardTo(parent domain.TaskListPosition, sender string) *Log {
	params := make(map[string]any, len(l.entry.Params)+1)
	maps.Copy(params, l.entry.Params)
	params["sub_process_position"] = l.entry.Position.String()

	fwd := domain.NewLogMessage(parent, l.entry.Code, l.entry.Message, params)
	return NewLog(fwd, sender)
}
