package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// LogLevel — уровень LogMessage, вычисляется по коду.
type LogLevel string

const (
	LogLevelDebug   LogLevel = "debug"
	LogLevelWarning LogLevel = "warning"
	LogLevelInfo    LogLevel = "info"
	LogLevelError   LogLevel = "error"
)

// Коды сообщений.
const (
	CodeDebug   = 10
	CodeWarning = 110
	CodeInfo    = 210

	// CodeSubProcessFinished — дочерний процесс сообщил о завершении.
	CodeSubProcessFinished = 220

	// CodeNoMessageReceived — ProcessData запущен без входящих данных.
	CodeNoMessageReceived = 412

	// CodeWrongMessageReceived — тип входящих данных не разрешён задачей.
	CodeWrongMessageReceived = 415

	// CodeError — код ошибки по умолчанию.
	CodeError = 500
)

// LevelForCode вычисляет уровень по коду:
// <100 debug, <200 warning, <400 info, иначе error.
func LevelForCode(code int) LogLevel {
	switch {
	case code < 100:
		return LogLevelDebug
	case code < 200:
		return LogLevelWarning
	case code < 400:
		return LogLevelInfo
	default:
		return LogLevelError
	}
}

// CodedError — ошибка с числовым кодом.
type CodedError interface {
	error
	Code() int
}

// ProcessingError — ошибка обработки с кодом и параметрами.
type ProcessingError struct {
	code   int
	msg    string
	params map[string]any
}

// NewProcessingError создаёт ProcessingError.
func NewProcessingError(code int, msg string, params map[string]any) *ProcessingError {
	return &ProcessingError{code: code, msg: msg, params: params}
}

// Error реализует интерфейс error.
func (e *ProcessingError) Error() string { return e.msg }

// Code реализует CodedError.
func (e *ProcessingError) Code() int { return e.code }

// Params возвращает параметры ошибки.
func (e *ProcessingError) Params() map[string]any { return e.params }

// CodeForError вычисляет код ошибки.
//
// Код берётся из CodedError в цепочке; по умолчанию 500.
// Коды ниже 400 поднимаются до 500, чтобы ошибка не попала в info.
func CodeForError(err error) int {
	var coded CodedError
	if !errors.As(err, &coded) {
		return CodeError
	}
	code := coded.Code()
	if code < 400 {
		return CodeError
	}
	return code
}

// LogMessage — запись журнала задачи.
type LogMessage struct {
	UUID      uuid.UUID        `json:"uuid"`
	Position  TaskListPosition `json:"processTaskListPosition"`
	Code      int              `json:"msgCode"`
	Message   string           `json:"technicalMsg"`
	Params    map[string]any   `json:"msgParams,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
}

// NewLogMessage создаёт LogMessage.
func NewLogMessage(pos TaskListPosition, code int, msg string, params map[string]any) LogMessage {
	return LogMessage{
		UUID:      uuid.New(),
		Position:  pos,
		Code:      code,
		Message:   msg,
		Params:    params,
		CreatedAt: time.Now().UTC(),
	}
}

// LogError создаёт LogMessage уровня error из ошибки.
func LogError(pos TaskListPosition, err error) LogMessage {
	var params map[string]any
	var pe *ProcessingError
	if errors.As(err, &pe) {
		params = pe.Params()
	}
	return NewLogMessage(pos, CodeForError(err), err.Error(), params)
}

// LogInfo создаёт LogMessage уровня info.
func LogInfo(pos TaskListPosition, msg string, params map[string]any) LogMessage {
	return NewLogMessage(pos, CodeInfo, msg, params)
}

// LogWarning создаёт LogMessage уровня warning.
func LogWarning(pos TaskListPosition, msg string, params map[string]any) LogMessage {
	return NewLogMessage(pos, CodeWarning, msg, params)
}

// LogDebug создаёт LogMessage уровня debug.
func LogDebug(pos TaskListPosition, msg string, params map[string]any) LogMessage {
	return NewLogMessage(pos, CodeDebug, msg, params)
}

// Level возвращает уровень сообщения.
func (m LogMessage) Level() LogLevel {
	return LevelForCode(m.Code)
}

// IsError возвращает true для сообщений уровня error.
func (m LogMessage) IsError() bool {
	return m.Level() == LogLevelError
}

// IsWarning возвращает true для сообщений уровня warning.
func (m LogMessage) IsWarning() bool {
	return m.Level() == LogLevelWarning
}

// String возвращает сообщение с кодом.
func (m LogMessage) String() string {
	return fmt.Sprintf("[%s %d] %s", m.Level(), m.Code, m.Message)
}
