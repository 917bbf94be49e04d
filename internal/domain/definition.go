package domain

import (
	"fmt"
	"slices"
)

// ProcessTypeLinearMessaging — единственный поддерживаемый тип процесса:
// задачи выполняются строго по порядку.
const ProcessTypeLinearMessaging = "linear_messaging"

// ProcessDefinition — декларативное описание процесса.
//
// Пример (YAML):
//
//	process_type: linear_messaging
//	tasks:
//	  - task_type: collect_data
//	    source: crm
//	    payload_type: Customer
//	  - task_type: process_data
//	    target: warehouse
//	    allowed_types: [Customer]
type ProcessDefinition struct {
	ProcessType string           `json:"process_type" yaml:"process_type"`
	Tasks       []TaskDefinition `json:"tasks" yaml:"tasks"`
	Config      map[string]any   `json:"config,omitempty" yaml:"config,omitempty"`
}

// TaskDefinition — описание одной задачи.
//
// Набор заполненных полей зависит от TaskType.
type TaskDefinition struct {
	TaskType TaskType `json:"task_type" yaml:"task_type"`

	// collect_data
	Source      string `json:"source,omitempty" yaml:"source,omitempty"`
	PayloadType string `json:"payload_type,omitempty" yaml:"payload_type,omitempty"`

	// process_data
	Target        string   `json:"target,omitempty" yaml:"target,omitempty"`
	AllowedTypes  []string `json:"allowed_types,omitempty" yaml:"allowed_types,omitempty"`
	PreferredType string   `json:"preferred_type,omitempty" yaml:"preferred_type,omitempty"`

	// run_sub_process
	TargetNodeName    string             `json:"target_node_name,omitempty" yaml:"target_node_name,omitempty"`
	ProcessDefinition *ProcessDefinition `json:"process_definition,omitempty" yaml:"process_definition,omitempty"`
	SyncLogMessages   bool               `json:"sync_log_messages,omitempty" yaml:"sync_log_messages,omitempty"`

	Metadata Metadata `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Clone возвращает глубокую копию определения.
func (d ProcessDefinition) Clone() ProcessDefinition {
	out := ProcessDefinition{
		ProcessType: d.ProcessType,
		Config:      cloneMap(d.Config),
	}
	if d.Tasks != nil {
		out.Tasks = make([]TaskDefinition, len(d.Tasks))
		for i, t := range d.Tasks {
			out.Tasks[i] = t.Clone()
		}
	}
	return out
}

// Clone возвращает глубокую копию определения задачи.
func (d TaskDefinition) Clone() TaskDefinition {
	out := d
	out.AllowedTypes = slices.Clone(d.AllowedTypes)
	out.Metadata = Metadata(cloneMap(d.Metadata))
	if d.ProcessDefinition != nil {
		def := d.ProcessDefinition.Clone()
		out.ProcessDefinition = &def
	}
	return out
}

// BuildTasks создаёт задачи по определению процесса.
//
// Ошибка возвращается на первой невалидной задаче.
func (d ProcessDefinition) BuildTasks(types PayloadTypes) ([]Task, error) {
	if d.ProcessType != ProcessTypeLinearMessaging {
		return nil, newValidationError("process_type",
			fmt.Sprintf("unsupported process type %q", d.ProcessType), nil)
	}
	if len(d.Tasks) == 0 {
		return nil, ErrEmptyTaskList
	}

	tasks := make([]Task, 0, len(d.Tasks))
	for i, def := range d.Tasks {
		task, err := NewTaskFromDefinition(def, types)
		if err != nil {
			return nil, fmt.Errorf("tasks[%d]: %w", i, err)
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneMap(val)
	case Metadata:
		return Metadata(cloneMap(val))
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return slices.Clone(val)
	default:
		return v
	}
}
