package domain

import (
	"fmt"
	"slices"
	"strings"
)

// TaskType — дискриминатор варианта задачи.
type TaskType string

const (
	// TaskTypeCollectData — запросить данные у source.
	TaskTypeCollectData TaskType = "collect_data"

	// TaskTypeProcessData — передать данные в target.
	TaskTypeProcessData TaskType = "process_data"

	// TaskTypeRunSubProcess — запустить дочерний процесс.
	TaskTypeRunSubProcess TaskType = "run_sub_process"
)

// PayloadTypes — реестр типов, пригодных как payload workflow-сообщений.
type PayloadTypes interface {
	IsPayloadType(name string) bool
}

// PayloadTypeSet — простая реализация PayloadTypes на множестве имён.
type PayloadTypeSet map[string]struct{}

// NewPayloadTypeSet создаёт PayloadTypeSet.
func NewPayloadTypeSet(names ...string) PayloadTypeSet {
	set := make(PayloadTypeSet, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

// IsPayloadType проверяет, зарегистрирован ли тип.
func (s PayloadTypeSet) IsPayloadType(name string) bool {
	_, ok := s[name]
	return ok
}

// Task — неизменяемое описание единицы работы.
//
// Варианты: CollectData, ProcessData, RunSubProcess.
// Definition и NewTaskFromDefinition взаимно обратны:
//
//	t.Equal(NewTaskFromDefinition(t.Definition(), nil))
type Task interface {
	Type() TaskType
	Definition() TaskDefinition
	Equal(other Task) bool
}

// taskDecoder восстанавливает вариант задачи из определения.
type taskDecoder func(def TaskDefinition, types PayloadTypes) (Task, error)

// taskDecoders — реестр декодеров по task_type.
var taskDecoders = map[TaskType]taskDecoder{
	TaskTypeCollectData:   decodeCollectData,
	TaskTypeProcessData:   decodeProcessData,
	TaskTypeRunSubProcess: decodeRunSubProcess,
}

func decodeCollectData(def TaskDefinition, types PayloadTypes) (Task, error) {
	t, err := NewCollectData(def.Source, def.PayloadType, def.Metadata, types)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func decodeProcessData(def TaskDefinition, types PayloadTypes) (Task, error) {
	t, err := NewProcessData(def.Target, def.AllowedTypes, def.PreferredType, def.Metadata, types)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func decodeRunSubProcess(def TaskDefinition, _ PayloadTypes) (Task, error) {
	if def.ProcessDefinition == nil {
		return nil, newValidationError("process_definition", "sub process definition is required", ErrMissingDefinition)
	}
	t, err := NewRunSubProcess(NodeName(def.TargetNodeName), *def.ProcessDefinition, def.SyncLogMessages)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// NewTaskFromDefinition создаёт задачу по её определению.
//
// types может быть nil: тогда проверка payload-типов пропускается
// (используется при восстановлении из журнала событий).
func NewTaskFromDefinition(def TaskDefinition, types PayloadTypes) (Task, error) {
	decode, ok := taskDecoders[def.TaskType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTaskType, def.TaskType)
	}
	return decode(def, types)
}

// --- CollectData ---

// CollectData — запросить данные типа PayloadType у Source.
type CollectData struct {
	source      string
	payloadType string
	metadata    Metadata
}

// NewCollectData создаёт CollectData с проверкой.
func NewCollectData(source, payloadType string, metadata Metadata, types PayloadTypes) (*CollectData, error) {
	if strings.TrimSpace(source) == "" {
		return nil, newValidationError("source", "source is required", ErrEmptySource)
	}
	if err := checkPayloadType("payload_type", payloadType, types); err != nil {
		return nil, err
	}
	if err := metadata.Validate(); err != nil {
		return nil, err
	}
	return &CollectData{
		source:      source,
		payloadType: payloadType,
		metadata:    Metadata(cloneMap(metadata)),
	}, nil
}

// Type реализует Task.
func (t *CollectData) Type() TaskType { return TaskTypeCollectData }

// Source возвращает источник данных.
func (t *CollectData) Source() string { return t.source }

// PayloadType возвращает запрашиваемый тип.
func (t *CollectData) PayloadType() string { return t.payloadType }

// Metadata возвращает копию metadata.
func (t *CollectData) Metadata() Metadata { return Metadata(cloneMap(t.metadata)) }

// Definition реализует Task.
func (t *CollectData) Definition() TaskDefinition {
	return TaskDefinition{
		TaskType:    TaskTypeCollectData,
		Source:      t.source,
		PayloadType: t.payloadType,
		Metadata:    t.Metadata(),
	}
}

// Equal реализует Task.
func (t *CollectData) Equal(other Task) bool {
	o, ok := other.(*CollectData)
	if !ok {
		return false
	}
	return t.source == o.source &&
		t.payloadType == o.payloadType &&
		t.metadata.Equal(o.metadata)
}

// --- ProcessData ---

// ProcessData — передать данные в Target.
type ProcessData struct {
	target        string
	allowedTypes  []string
	preferredType string
	metadata      Metadata
}

// NewProcessData создаёт ProcessData с проверкой.
//
// Если preferredType пуст, используется первый из allowedTypes.
func NewProcessData(target string, allowedTypes []string, preferredType string, metadata Metadata, types PayloadTypes) (*ProcessData, error) {
	if strings.TrimSpace(target) == "" {
		return nil, newValidationError("target", "target is required", ErrEmptyTarget)
	}
	if len(allowedTypes) == 0 {
		return nil, newValidationError("allowed_types", "at least one allowed type is required", ErrEmptyAllowedTypes)
	}
	for i, typ := range allowedTypes {
		if err := checkPayloadType(fmt.Sprintf("allowed_types[%d]", i), typ, types); err != nil {
			return nil, err
		}
	}
	if preferredType == "" {
		preferredType = allowedTypes[0]
	}
	if !slices.Contains(allowedTypes, preferredType) {
		return nil, newValidationError("preferred_type",
			fmt.Sprintf("%q is not in allowed types", preferredType), ErrPreferredTypeNotAllowed)
	}
	if err := metadata.Validate(); err != nil {
		return nil, err
	}
	return &ProcessData{
		target:        target,
		allowedTypes:  slices.Clone(allowedTypes),
		preferredType: preferredType,
		metadata:      Metadata(cloneMap(metadata)),
	}, nil
}

// Type реализует Task.
func (t *ProcessData) Type() TaskType { return TaskTypeProcessData }

// Target возвращает получателя данных.
func (t *ProcessData) Target() string { return t.target }

// AllowedTypes возвращает допустимые типы payload.
func (t *ProcessData) AllowedTypes() []string { return slices.Clone(t.allowedTypes) }

// PreferredType возвращает предпочтительный тип.
func (t *ProcessData) PreferredType() string { return t.preferredType }

// Metadata возвращает копию metadata.
func (t *ProcessData) Metadata() Metadata { return Metadata(cloneMap(t.metadata)) }

// Allows проверяет, принимает ли задача payload данного типа.
func (t *ProcessData) Allows(payloadType string) bool {
	return slices.Contains(t.allowedTypes, payloadType)
}

// Definition реализует Task.
func (t *ProcessData) Definition() TaskDefinition {
	return TaskDefinition{
		TaskType:      TaskTypeProcessData,
		Target:        t.target,
		AllowedTypes:  t.AllowedTypes(),
		PreferredType: t.preferredType,
		Metadata:      t.Metadata(),
	}
}

// Equal реализует Task.
func (t *ProcessData) Equal(other Task) bool {
	o, ok := other.(*ProcessData)
	if !ok {
		return false
	}
	return t.target == o.target &&
		slices.Equal(t.allowedTypes, o.allowedTypes) &&
		t.preferredType == o.preferredType &&
		t.metadata.Equal(o.metadata)
}

// --- RunSubProcess ---

// RunSubProcess — запустить дочерний процесс на узле TargetNodeName.
type RunSubProcess struct {
	targetNode      NodeName
	definition      ProcessDefinition
	syncLogMessages bool
}

// NewRunSubProcess создаёт RunSubProcess с проверкой.
//
// Payload-типы дочернего определения проверяет целевой узел.
func NewRunSubProcess(targetNode NodeName, definition ProcessDefinition, syncLogMessages bool) (*RunSubProcess, error) {
	node, err := NewNodeName(string(targetNode))
	if err != nil {
		return nil, newValidationError("target_node_name", err.Error(), ErrEmptyTarget)
	}
	if len(definition.Tasks) == 0 {
		return nil, newValidationError("process_definition", "sub process needs at least one task", ErrMissingDefinition)
	}
	return &RunSubProcess{
		targetNode:      node,
		definition:      definition.Clone(),
		syncLogMessages: syncLogMessages,
	}, nil
}

// Type реализует Task.
func (t *RunSubProcess) Type() TaskType { return TaskTypeRunSubProcess }

// TargetNodeName возвращает узел, на котором запускается дочерний процесс.
func (t *RunSubProcess) TargetNodeName() NodeName { return t.targetNode }

// ProcessDefinition возвращает копию определения дочернего процесса.
func (t *RunSubProcess) ProcessDefinition() ProcessDefinition { return t.definition.Clone() }

// SyncLogMessages — пересылать ли логи дочернего процесса родителю.
func (t *RunSubProcess) SyncLogMessages() bool { return t.syncLogMessages }

// Definition реализует Task.
func (t *RunSubProcess) Definition() TaskDefinition {
	def := t.definition.Clone()
	return TaskDefinition{
		TaskType:          TaskTypeRunSubProcess,
		TargetNodeName:    t.targetNode.String(),
		ProcessDefinition: &def,
		SyncLogMessages:   t.syncLogMessages,
	}
}

// Equal реализует Task.
func (t *RunSubProcess) Equal(other Task) bool {
	o, ok := other.(*RunSubProcess)
	if !ok {
		return false
	}
	return t.targetNode == o.targetNode &&
		t.syncLogMessages == o.syncLogMessages &&
		definitionsEqual(t.definition, o.definition)
}

func definitionsEqual(a, b ProcessDefinition) bool {
	if a.ProcessType != b.ProcessType || len(a.Tasks) != len(b.Tasks) {
		return false
	}
	if !Metadata(a.Config).Equal(b.Config) {
		return false
	}
	for i := range a.Tasks {
		x, y := a.Tasks[i], b.Tasks[i]
		if x.TaskType != y.TaskType ||
			x.Source != y.Source ||
			x.PayloadType != y.PayloadType ||
			x.Target != y.Target ||
			!slices.Equal(x.AllowedTypes, y.AllowedTypes) ||
			x.PreferredType != y.PreferredType ||
			x.TargetNodeName != y.TargetNodeName ||
			x.SyncLogMessages != y.SyncLogMessages ||
			!x.Metadata.Equal(y.Metadata) {
			return false
		}
		if (x.ProcessDefinition == nil) != (y.ProcessDefinition == nil) {
			return false
		}
		if x.ProcessDefinition != nil && !definitionsEqual(*x.ProcessDefinition, *y.ProcessDefinition) {
			return false
		}
	}
	return true
}

func checkPayloadType(field, name string, types PayloadTypes) error {
	if strings.TrimSpace(name) == "" {
		return newValidationError(field, "payload type is required", ErrEmptyPayloadType)
	}
	if types != nil && !types.IsPayloadType(name) {
		return newValidationError(field, fmt.Sprintf("%q is not a payload type", name), ErrNotPayloadType)
	}
	return nil
}
