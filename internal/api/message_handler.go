package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/shaiso/Conveyor/internal/message"
	"github.com/shaiso/Conveyor/internal/telemetry"
)

// maxMessageSize — ограничение размера тела запроса.
const maxMessageSize = 1 << 20

// SubmitMessage принимает сообщение и отправляет его в движок узла.
// POST /api/v1/messages
//
// Тело — конверт сообщения (как в очереди). Пустой header заполняется
// новым UUID и текущим временем, пустой target — именем узла.
func (h *Handler) SubmitMessage(w http.ResponseWriter, r *http.Request) {
	var env message.Envelope
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMessageSize)).Decode(&env); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if env.Header.UUID == uuid.Nil {
		env.Header = message.NewHeader(kindOf(env.Name), env.Origin)
	}
	if env.Target == "" {
		env.Target = h.node.String()
	}

	msg, err := message.FromEnvelope(env)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	log := telemetry.FromContext(r.Context())
	if HandleError(w, log, h.dispatcher.Dispatch(r.Context(), msg)) {
		return
	}

	log.Info("message accepted",
		"message_name", msg.Name(),
		"message_uuid", msg.Header().UUID,
		"target", msg.Target(),
	)

	Accepted(w, MessageAcceptedResponse{
		UUID:   msg.Header().UUID,
		Name:   msg.Name(),
		Target: msg.Target(),
	})
}

// kindOf определяет вид сообщения по имени; служебные сообщения — события.
func kindOf(name string) message.Kind {
	if name == message.StartSubProcessName {
		return message.KindCommand
	}
	if _, suffix, err := message.ParseName(name); err == nil {
		return suffix.Kind()
	}
	return message.KindEvent
}
