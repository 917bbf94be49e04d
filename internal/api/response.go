package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/engine"
	"github.com/shaiso/Conveyor/internal/lock"
	"github.com/shaiso/Conveyor/internal/message"
	"github.com/shaiso/Conveyor/internal/mq"
	"github.com/shaiso/Conveyor/internal/process"
	"github.com/shaiso/Conveyor/internal/repo"
)

// ErrorCode — код ошибки API.
type ErrorCode string

const (
	ErrCodeBadRequest    ErrorCode = "BAD_REQUEST"
	ErrCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrCodeConflict      ErrorCode = "CONFLICT"
	ErrCodeInvalidState  ErrorCode = "INVALID_STATE"
	ErrCodeUnroutable    ErrorCode = "UNROUTABLE"
	ErrCodeUnavailable   ErrorCode = "UNAVAILABLE"
	ErrCodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// ErrorResponse — структура ответа с ошибкой.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail — детали ошибки.
type ErrorDetail struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// DataResponse — структура успешного ответа.
type DataResponse struct {
	Data any `json:"data"`
}

// ListResponse — структура ответа со списком.
type ListResponse struct {
	Data  any `json:"data"`
	Total int `json:"total,omitempty"`
}

// JSON отправляет JSON ответ.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Success отправляет успешный ответ с данными.
func Success(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, DataResponse{Data: data})
}

// Accepted отправляет ответ о принятии сообщения в обработку (202).
func Accepted(w http.ResponseWriter, data any) {
	JSON(w, http.StatusAccepted, DataResponse{Data: data})
}

// List отправляет ответ со списком.
func List(w http.ResponseWriter, data any, total int) {
	JSON(w, http.StatusOK, ListResponse{Data: data, Total: total})
}

// Error отправляет ответ с ошибкой.
func Error(w http.ResponseWriter, status int, code ErrorCode, message string) {
	JSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// BadRequest отправляет ошибку 400.
func BadRequest(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// NotFound отправляет ошибку 404.
func NotFound(w http.ResponseWriter, message string) {
	Error(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// Unavailable отправляет ошибку 503.
func Unavailable(w http.ResponseWriter, message string) {
	Error(w, http.StatusServiceUnavailable, ErrCodeUnavailable, message)
}

// InternalError отправляет ошибку 500.
func InternalError(w http.ResponseWriter, logger *slog.Logger, err error) {
	logger.Error("internal error", "error", err)
	Error(w, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")
}

// errorMapping сопоставляет ошибку узла с HTTP статусом.
type errorMapping struct {
	target error
	status int
	code   ErrorCode
}

// errorMappings проверяются по порядку; первое совпадение выигрывает.
var errorMappings = []errorMapping{
	{repo.ErrNotFound, http.StatusNotFound, ErrCodeNotFound},
	{process.ErrDefinitionNotFound, http.StatusUnprocessableEntity, ErrCodeUnroutable},
	{engine.ErrNoHandler, http.StatusUnprocessableEntity, ErrCodeUnroutable},
	{engine.ErrDispatchRejected, http.StatusUnprocessableEntity, ErrCodeUnroutable},

	{repo.ErrConcurrencyConflict, http.StatusConflict, ErrCodeConflict},
	{lock.ErrLocked, http.StatusConflict, ErrCodeConflict},
	{process.ErrProcessFinished, http.StatusConflict, ErrCodeInvalidState},

	{process.ErrInvalidDefinition, http.StatusBadRequest, ErrCodeBadRequest},
	{domain.ErrEmptyTaskList, http.StatusBadRequest, ErrCodeBadRequest},
	{domain.ErrInvalidProcessID, http.StatusBadRequest, ErrCodeBadRequest},
	{message.ErrInvalidEnvelope, http.StatusBadRequest, ErrCodeBadRequest},
	{message.ErrUnknownMessage, http.StatusBadRequest, ErrCodeBadRequest},

	{repo.ErrStoreClosed, http.StatusServiceUnavailable, ErrCodeUnavailable},
	{engine.ErrBusConstruction, http.StatusServiceUnavailable, ErrCodeUnavailable},
	{mq.ErrDisconnected, http.StatusServiceUnavailable, ErrCodeUnavailable},
	{mq.ErrConnectionClosed, http.StatusServiceUnavailable, ErrCodeUnavailable},
}

// HandleError преобразует ошибку узла в HTTP ответ.
// Неизвестные ошибки логируются и отдаются как 500.
func HandleError(w http.ResponseWriter, logger *slog.Logger, err error) bool {
	if err == nil {
		return false
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			Error(w, m.status, m.code, err.Error())
			return true
		}
	}

	InternalError(w, logger, err)
	return true
}
