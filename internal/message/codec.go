package message

import (
	"encoding/json"
	"fmt"

	"github.com/shaiso/Conveyor/internal/domain"
)

// Envelope — транспортное представление сообщения.
type Envelope struct {
	Name   string          `json:"name"`
	Header Header          `json:"header"`
	Target string          `json:"target,omitempty"`
	Origin string          `json:"origin,omitempty"`
	Body   json.RawMessage `json:"body"`
}

type workflowBody struct {
	TypeClass string                   `json:"typeClass"`
	Data      any                      `json:"data"`
	Metadata  domain.Metadata          `json:"metadata,omitempty"`
	Position  *domain.TaskListPosition `json:"processTaskListPosition,omitempty"`
}

type logBody struct {
	Position domain.TaskListPosition `json:"processTaskListPosition"`
	Msg      string                  `json:"technicalMsg"`
	Params   map[string]any          `json:"msgParams,omitempty"`
	Code     int                     `json:"msgCode"`
}

type startSubProcessBody struct {
	Parent     domain.TaskListPosition  `json:"parentTaskListPosition"`
	Definition domain.ProcessDefinition `json:"subProcessDefinition"`
	Sync       bool                     `json:"syncLogMessages"`
	Previous   *Envelope                `json:"previousMessage,omitempty"`
}

type subProcessFinishedBody struct {
	Node         domain.NodeName         `json:"nodeName"`
	SubProcessID domain.ProcessID        `json:"subProcessId"`
	Succeed      bool                    `json:"succeed"`
	Last         *Envelope               `json:"lastMessage,omitempty"`
	Parent       domain.TaskListPosition `json:"parentTaskListPosition"`
}

// Encode кодирует сообщение в JSON.
func Encode(m Message) ([]byte, error) {
	env, err := ToEnvelope(m)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

// Decode восстанавливает сообщение из JSON.
func Decode(data []byte) (Message, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}
	return FromEnvelope(env)
}

// ToEnvelope упаковывает сообщение в конверт.
func ToEnvelope(m Message) (Envelope, error) {
	var body any
	switch msg := m.(type) {
	case *WorkflowMessage:
		body = workflowBody{
			TypeClass: msg.payload.TypeClass,
			Data:      msg.payload.Data,
			Metadata:  msg.metadata,
			Position:  msg.position,
		}
	case *Log:
		body = logBody{
			Position: msg.entry.Position,
			Msg:      msg.entry.Message,
			Params:   msg.entry.Params,
			Code:     msg.entry.Code,
		}
	case *StartSubProcess:
		b := startSubProcessBody{
			Parent:     msg.parentPosition,
			Definition: msg.definition,
			Sync:       msg.syncLogMessages,
		}
		if msg.previous != nil {
			prev, err := ToEnvelope(msg.previous)
			if err != nil {
				return Envelope{}, fmt.Errorf("previous message: %w", err)
			}
			b.Previous = &prev
		}
		body = b
	case *SubProcessFinished:
		b := subProcessFinishedBody{
			Node:         msg.node,
			SubProcessID: msg.subProcessID,
			Succeed:      msg.succeed,
			Parent:       msg.parentPosition(),
		}
		if msg.last != nil {
			last, err := ToEnvelope(msg.last)
			if err != nil {
				return Envelope{}, fmt.Errorf("last message: %w", err)
			}
			b.Last = &last
		}
		body = b
	default:
		return Envelope{}, fmt.Errorf("%w: %T", ErrUnknownMessage, m)
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s body: %w", m.Name(), err)
	}
	return Envelope{
		Name:   m.Name(),
		Header: m.Header(),
		Target: m.Target(),
		Origin: m.Origin(),
		Body:   raw,
	}, nil
}

// FromEnvelope восстанавливает сообщение из конверта.
//
// Служебные сообщения разбираются по имени, остальные как workflow-сообщения.
func FromEnvelope(env Envelope) (Message, error) {
	switch {
	case env.Name == "":
		return nil, fmt.Errorf("%w: name is empty", ErrInvalidEnvelope)
	case env.Name == LogMessageName:
		return decodeLog(env)
	case env.Name == StartSubProcessName:
		return decodeStartSubProcess(env)
	case env.Name == SubProcessFinishedName:
		return decodeSubProcessFinished(env)
	case IsWorkflowMessageName(env.Name):
		return decodeWorkflow(env)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, env.Name)
}

func envelopeBase(env Envelope, pos *domain.TaskListPosition) base {
	return base{
		header:   env.Header,
		target:   env.Target,
		origin:   env.Origin,
		position: pos,
	}
}

func decodeWorkflow(env Envelope) (Message, error) {
	typ, suffix, err := ParseName(env.Name)
	if err != nil {
		return nil, err
	}
	var body workflowBody
	if err := json.Unmarshal(env.Body, &body); err != nil {
		return nil, fmt.Errorf("unmarshal %s body: %w", env.Name, err)
	}
	if NormalizeTypeName(body.TypeClass) != typ {
		return nil, fmt.Errorf("%w: type %q does not match name %q", ErrInvalidEnvelope, body.TypeClass, env.Name)
	}
	return &WorkflowMessage{
		base:     envelopeBase(env, body.Position),
		suffix:   suffix,
		payload:  Payload{TypeClass: body.TypeClass, Data: body.Data},
		metadata: body.Metadata,
	}, nil
}

func decodeLog(env Envelope) (Message, error) {
	var body logBody
	if err := json.Unmarshal(env.Body, &body); err != nil {
		return nil, fmt.Errorf("unmarshal %s body: %w", env.Name, err)
	}
	if body.Position.IsZero() {
		return nil, fmt.Errorf("%w: log message without position", ErrInvalidEnvelope)
	}
	entry := domain.LogMessage{
		UUID:      env.Header.UUID,
		Position:  body.Position,
		Code:      body.Code,
		Message:   body.Msg,
		Params:    body.Params,
		CreatedAt: env.Header.CreatedAt,
	}
	return &Log{
		base:  envelopeBase(env, positionPtr(body.Position)),
		entry: entry,
	}, nil
}

func decodeStartSubProcess(env Envelope) (Message, error) {
	var body startSubProcessBody
	if err := json.Unmarshal(env.Body, &body); err != nil {
		return nil, fmt.Errorf("unmarshal %s body: %w", env.Name, err)
	}
	msg := &StartSubProcess{
		base:            envelopeBase(env, nil),
		parentPosition:  body.Parent,
		definition:      body.Definition,
		syncLogMessages: body.Sync,
	}
	if body.Previous != nil {
		prev, err := FromEnvelope(*body.Previous)
		if err != nil {
			return nil, fmt.Errorf("previous message: %w", err)
		}
		wm, ok := prev.(*WorkflowMessage)
		if !ok {
			return nil, fmt.Errorf("%w: previous message is %s", ErrInvalidEnvelope, prev.Name())
		}
		msg.previous = wm
	}
	return msg, nil
}

func decodeSubProcessFinished(env Envelope) (Message, error) {
	var body subProcessFinishedBody
	if err := json.Unmarshal(env.Body, &body); err != nil {
		return nil, fmt.Errorf("unmarshal %s body: %w", env.Name, err)
	}
	msg := &SubProcessFinished{
		base:         envelopeBase(env, positionPtr(body.Parent)),
		node:         body.Node,
		subProcessID: body.SubProcessID,
		succeed:      body.Succeed,
	}
	if body.Last != nil {
		last, err := FromEnvelope(*body.Last)
		if err != nil {
			return nil, fmt.Errorf("last message: %w", err)
		}
		msg.last = last
	}
	return msg, nil
}
