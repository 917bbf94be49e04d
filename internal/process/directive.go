package process

import "github.com/shaiso/Conveyor/internal/message"

// DirectiveKind — что процесс просит сделать после перехода.
type DirectiveKind int

const (
	// DirectiveNoOp — отправлять нечего (кроме, возможно, пересланных логов).
	DirectiveNoOp DirectiveKind = iota

	// DirectiveDispatch — отправить команду задачи.
	DirectiveDispatch

	// DirectiveStartSubProcess — отправить StartSubProcess на целевой узел.
	DirectiveStartSubProcess

	// DirectiveFinished — процесс завершён; для дочернего процесса
	// Messages содержит SubProcessFinished.
	DirectiveFinished
)

// String возвращает имя вида директивы.
func (k DirectiveKind) String() string {
	switch k {
	case DirectiveDispatch:
		return "dispatch"
	case DirectiveStartSubProcess:
		return "start_sub_process"
	case DirectiveFinished:
		return "finished"
	default:
		return "noop"
	}
}

// Directive — результат перехода процесса.
type Directive struct {
	Kind     DirectiveKind
	Messages []message.Message
}

// with добавляет сообщения в директиву, сохраняя вид.
func (d Directive) with(msgs ...message.Message) Directive {
	d.Messages = append(d.Messages, msgs...)
	return d
}

func noop(msgs ...message.Message) Directive {
	return Directive{Kind: DirectiveNoOp, Messages: msgs}
}
