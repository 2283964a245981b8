package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shaiso/WasteOps/internal/directory"
	"github.com/shaiso/WasteOps/internal/lifecycle"
	"github.com/shaiso/WasteOps/internal/resolver"
)

// ErrorCode — код ошибки API.
type ErrorCode string

const (
	ErrCodeBadRequest         ErrorCode = "BAD_REQUEST"
	ErrCodeNotFound           ErrorCode = "NOT_FOUND"
	ErrCodeForbidden          ErrorCode = "FORBIDDEN"
	ErrCodeInvalidTransition  ErrorCode = "INVALID_TRANSITION"
	ErrCodeConflict           ErrorCode = "CONFLICT"
	ErrCodeBackendUnavailable ErrorCode = "BACKEND_UNAVAILABLE"
	ErrCodeNotConfigured      ErrorCode = "NOT_CONFIGURED"
	ErrCodeInternalError      ErrorCode = "INTERNAL_ERROR"
)

// ErrorResponse — ответ с ошибкой.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail — детали ошибки.
type ErrorDetail struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// DataResponse — успешный ответ.
type DataResponse struct {
	Data any `json:"data"`
}

// ListResponse — ответ со списком.
type ListResponse struct {
	Data  any `json:"data"`
	Total int `json:"total"`
}

// JSON отправляет JSON ответ.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Success отправляет 200 с данными.
func Success(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, DataResponse{Data: data})
}

// Created отправляет 201 с данными.
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, DataResponse{Data: data})
}

// Accepted отправляет 202 с данными.
func Accepted(w http.ResponseWriter, data any) {
	JSON(w, http.StatusAccepted, DataResponse{Data: data})
}

// List отправляет список.
func List(w http.ResponseWriter, data any, total int) {
	JSON(w, http.StatusOK, ListResponse{Data: data, Total: total})
}

// Error отправляет ответ с ошибкой.
func Error(w http.ResponseWriter, status int, code ErrorCode, message string) {
	JSON(w, status, ErrorResponse{
		Error: ErrorDetail{Code: code, Message: message},
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

// NotConfigured отправляет 503 для выключенной подсистемы.
func NotConfigured(w http.ResponseWriter, message string) {
	Error(w, http.StatusServiceUnavailable, ErrCodeNotConfigured, message)
}

// InternalError отправляет ошибку 500.
func InternalError(w http.ResponseWriter, logger *slog.Logger, err error) {
	logger.Error("internal error", "error", err)
	Error(w, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")
}

// HandleError отображает ошибку справочника на HTTP ответ.
// Возвращает false, если err == nil.
func HandleError(w http.ResponseWriter, logger *slog.Logger, err error) bool {
	if err == nil {
		return false
	}

	var (
		permErr       *lifecycle.PermissionError
		transitionErr *lifecycle.InvalidTransitionError
	)

	switch {
	case errors.As(err, &permErr):
		Error(w, http.StatusForbidden, ErrCodeForbidden, permErr.Error())
	case errors.As(err, &transitionErr):
		Error(w, http.StatusConflict, ErrCodeInvalidTransition, transitionErr.Error())
	case errors.Is(err, directory.ErrWorkerNotFound):
		NotFound(w, "worker not found")
	case errors.Is(err, directory.ErrSuperseded):
		Error(w, http.StatusConflict, ErrCodeConflict, "superseded by a newer refresh")
	case resolver.IsExhausted(err):
		logger.Warn("backend unavailable", "error", err)
		Error(w, http.StatusBadGateway, ErrCodeBackendUnavailable, err.Error())
	default:
		InternalError(w, logger, err)
	}
	return true
}
