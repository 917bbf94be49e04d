package process

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"go.uber.org/multierr"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/message"
)

// Factory создаёт процессы по определениям.
//
// Определения регистрируются под именем стартового сообщения,
// например processing-message-customer-data-collected.
type Factory struct {
	definitions map[string]domain.ProcessDefinition
	types       domain.PayloadTypes
}

// NewFactory создаёт Factory и проверяет все определения.
//
// types может быть nil: тогда payload-типы не проверяются.
func NewFactory(definitions map[string]domain.ProcessDefinition, types domain.PayloadTypes) (*Factory, error) {
	f := &Factory{
		definitions: make(map[string]domain.ProcessDefinition, len(definitions)),
		types:       types,
	}

	var errs error
	for _, name := range sortedKeys(definitions) {
		def := definitions[name]
		if err := f.ValidateDefinition(def); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("definition %q: %w", name, err))
			continue
		}
		f.definitions[name] = def.Clone()
	}
	if errs != nil {
		return nil, errs
	}
	return f, nil
}

// ValidateDefinition проверяет определение процесса.
//
// Определения дочерних процессов проверяются структурно:
// их payload-типы проверяет узел, на котором они запускаются.
func (f *Factory) ValidateDefinition(def domain.ProcessDefinition) error {
	return validateDefinition(def, f.types)
}

func validateDefinition(def domain.ProcessDefinition, types domain.PayloadTypes) error {
	tasks, err := def.BuildTasks(types)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDefinition, err)
	}
	for i, task := range tasks {
		sub, ok := task.(*domain.RunSubProcess)
		if !ok {
			continue
		}
		if err := validateDefinition(sub.ProcessDefinition(), nil); err != nil {
			return fmt.Errorf("tasks[%d].process_definition: %w", i, err)
		}
	}
	return nil
}

// BuildTasks проверяет определения задач и создаёт задачи для
// перепланирования процесса. Пустой список допустим.
func (f *Factory) BuildTasks(defs []domain.TaskDefinition) ([]domain.Task, error) {
	if len(defs) == 0 {
		return nil, nil
	}
	def := domain.ProcessDefinition{ProcessType: domain.ProcessTypeLinearMessaging, Tasks: defs}
	if err := f.ValidateDefinition(def); err != nil {
		return nil, err
	}
	tasks, err := def.BuildTasks(f.types)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDefinition, err)
	}
	return tasks, nil
}

// Definition возвращает определение, зарегистрированное под именем сообщения.
func (f *Factory) Definition(messageName string) (domain.ProcessDefinition, bool) {
	def, ok := f.definitions[messageName]
	if !ok {
		return domain.ProcessDefinition{}, false
	}
	return def.Clone(), true
}

// MessageNames возвращает имена стартовых сообщений в алфавитном порядке.
func (f *Factory) MessageNames() []string {
	return sortedKeys(f.definitions)
}

// CreateFromMessage создаёт корневой процесс по стартовому сообщению.
func (f *Factory) CreateFromMessage(msg message.Message, node domain.NodeName, now time.Time) (*Process, error) {
	def, ok := f.definitions[msg.Name()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDefinitionNotFound, msg.Name())
	}
	return f.CreateFromDefinition(def, node, now)
}

// CreateFromDefinition создаёт корневой процесс на узле node.
func (f *Factory) CreateFromDefinition(def domain.ProcessDefinition, node domain.NodeName, now time.Time) (*Process, error) {
	taskList, err := f.taskList(def, node)
	if err != nil {
		return nil, err
	}
	return SetUp(taskList, def.Config, now)
}

// CreateSubProcess создаёт дочерний процесс по команде StartSubProcess.
func (f *Factory) CreateSubProcess(cmd *message.StartSubProcess, node domain.NodeName, now time.Time) (*Process, error) {
	def := cmd.ProcessDefinition()
	taskList, err := f.taskList(def, node)
	if err != nil {
		return nil, err
	}
	return SetUpAsSubProcess(cmd.ParentTaskListPosition(), taskList, def.Config, cmd.SyncLogMessages(), now)
}

func (f *Factory) taskList(def domain.ProcessDefinition, node domain.NodeName) (*domain.TaskList, error) {
	if err := f.ValidateDefinition(def); err != nil {
		return nil, err
	}
	tasks, err := def.BuildTasks(f.types)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDefinition, err)
	}
	return domain.NewTaskList(domain.NewTaskListID(node, domain.NewProcessID()), tasks)
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
