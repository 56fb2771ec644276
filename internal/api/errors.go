package api

import (
	"errors"
	"net/http"

	"github.com/phrazzld/genserve/internal/api/shared"
	"github.com/phrazzld/genserve/internal/domain"
)

// Client-facing error messages
const (
	MsgEmptyPrompt      = "Prompt vacío"
	MsgInvalidFormat    = "Formato de solicitud inválido"
	MsgImageNotFound    = "Imagen no encontrada"
	MsgQueueUnavailable = "Servicio de generación no disponible"
	MsgInternalError    = "Error interno del servidor"
	MsgRequestTooLarge  = "Solicitud demasiado grande"
	MsgMethodNotAllowed = "Método no permitido"
	MsgRouteNotFound    = "Ruta no encontrada"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a fixed, client-facing message for err.
func GetSafeErrorMessage(err error) string {
	switch {
	case err == nil:
		return MsgInternalError
	case errors.Is(err, domain.ErrEmptyPrompt), errors.Is(err, domain.ErrInvalidRequest):
		return MsgEmptyPrompt
	case errors.Is(err, domain.ErrNotFound):
		return MsgImageNotFound
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		return MsgQueueUnavailable
	default:
		return MsgInternalError
	}
}

// HandleAPIError writes the error response for err and logs the details.
// An empty message selects the safe message for err.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, message string) {
	status := MapErrorToStatusCode(err)
	if message == "" {
		message = GetSafeErrorMessage(err)
	}
	shared.RespondWithErrorAndLog(w, r, status, message, err)
}
