package domain

import "errors"

// Ошибки идентификаторов.
var (
	// ErrEmptyNodeName — имя узла не задано.
	ErrEmptyNodeName = errors.New("node name is empty")

	// ErrInvalidNodeName — имя узла содержит недопустимые символы.
	ErrInvalidNodeName = errors.New("node name is invalid")

	// ErrInvalidProcessID — ProcessID не является UUID.
	ErrInvalidProcessID = errors.New("invalid process id")

	// ErrInvalidPosition — позиция не парсится или меньше 1.
	ErrInvalidPosition = errors.New("invalid task list position")
)

// Ошибки валидации задач.
var (
	// ErrEmptySource — у CollectData не задан source.
	ErrEmptySource = errors.New("task source is empty")

	// ErrEmptyTarget — у ProcessData/RunSubProcess не задан target.
	ErrEmptyTarget = errors.New("task target is empty")

	// ErrEmptyPayloadType — тип payload не задан.
	ErrEmptyPayloadType = errors.New("payload type is empty")

	// ErrEmptyAllowedTypes — у ProcessData пустой список allowed_types.
	ErrEmptyAllowedTypes = errors.New("allowed types are empty")

	// ErrNotPayloadType — тип не зарегистрирован как payload-тип.
	ErrNotPayloadType = errors.New("type is not a payload type")

	// ErrPreferredTypeNotAllowed — preferred_type не входит в allowed_types.
	ErrPreferredTypeNotAllowed = errors.New("preferred type is not in allowed types")

	// ErrInvalidMetadata — metadata содержит не-скалярные значения.
	ErrInvalidMetadata = errors.New("metadata must contain only scalars and arrays")

	// ErrUnknownTaskType — неизвестный task_type.
	ErrUnknownTaskType = errors.New("unknown task type")

	// ErrMissingDefinition — RunSubProcess без определения дочернего процесса.
	ErrMissingDefinition = errors.New("sub process definition is missing")
)

// Ошибки списка задач.
var (
	// ErrEmptyTaskList — список задач пуст.
	ErrEmptyTaskList = errors.New("task list is empty")

	// ErrPositionMismatch — LogMessage адресован другой позиции.
	ErrPositionMismatch = errors.New("log message position does not match entry position")

	// ErrForeignPosition — позиция принадлежит другому TaskList.
	ErrForeignPosition = errors.New("position belongs to another task list")

	// ErrPositionNotFound — в списке нет entry с такой позицией.
	ErrPositionNotFound = errors.New("task list position not found")
)

// ValidationError — ошибка валидации с контекстом.
type ValidationError struct {
	Field   string // поле, вызвавшее ошибку
	Message string // описание ошибки
	Err     error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return e.Field + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

func newValidationError(field, message string, err error) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Err:     err,
	}
}
