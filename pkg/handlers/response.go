package handlers

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/backsoul/shikkhapro/pkg/attempt"
	"github.com/backsoul/shikkhapro/pkg/client"
	"github.com/backsoul/shikkhapro/pkg/models"
	"github.com/backsoul/shikkhapro/pkg/services"
	"github.com/backsoul/shikkhapro/pkg/store"
	"github.com/backsoul/shikkhapro/pkg/validation"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

const internalErrorMessage = "Error interno del servidor"

// respondWithJSON envía una respuesta JSON
func respondWithJSON(ctx *fasthttp.RequestCtx, statusCode int, response interface{}) {
	ctx.Response.Header.Set("Content-Type", "application/json")
	ctx.SetStatusCode(statusCode)

	jsonData, err := json.Marshal(response)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		ctx.SetBodyString(`{"success": false, "error": "Error al serializar respuesta"}`)
		return
	}

	ctx.SetBody(jsonData)
}

// respondWithError envía una respuesta de error
func respondWithError(ctx *fasthttp.RequestCtx, statusCode int, message string) {
	respondWithJSON(ctx, statusCode, models.APIResponse{
		Success: false,
		Error:   message,
	})
}

func respondWithFields(ctx *fasthttp.RequestCtx, statusCode int, message string, fields map[string]string) {
	respondWithJSON(ctx, statusCode, models.APIResponse{
		Success: false,
		Error:   message,
		Fields:  fields,
	})
}

// respondWithSuccess envía una respuesta exitosa
func respondWithSuccess(ctx *fasthttp.RequestCtx, data interface{}, message string) {
	respondWithJSON(ctx, fasthttp.StatusOK, models.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// respondWithServiceError traduce errores de servicios, del controlador y
// del backend a un código HTTP
func respondWithServiceError(ctx *fasthttp.RequestCtx, logger *zap.Logger, err error) {
	var fieldErrs validation.Errors
	if errors.As(err, &fieldErrs) {
		respondWithFields(ctx, fasthttp.StatusUnprocessableEntity, "Datos inválidos", fieldErrs)
		return
	}

	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		status := apiErr.StatusCode
		if status < 400 || status >= 500 {
			status = fasthttp.StatusBadGateway
		}
		respondWithFields(ctx, status, client.Message(err), apiErr.Fields)
		return
	}

	status := statusFor(err)
	message := err.Error()
	if status >= 500 {
		logger.Error("Error procesando petición",
			zap.String("path", string(ctx.Path())),
			zap.Error(err),
		)
		if status == fasthttp.StatusInternalServerError {
			message = internalErrorMessage
		}
	}
	respondWithError(ctx, status, message)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrUnauthenticated):
		return fasthttp.StatusUnauthorized
	case errors.Is(err, services.ErrNoActiveAttempt),
		errors.Is(err, store.ErrSessionNotFound),
		errors.Is(err, attempt.ErrUnknownQuestion):
		return fasthttp.StatusNotFound
	case errors.Is(err, attempt.ErrFrozen),
		errors.Is(err, attempt.ErrNotStarted),
		errors.Is(err, attempt.ErrAlreadyStarted),
		errors.Is(err, attempt.ErrClosed):
		return fasthttp.StatusConflict
	case errors.Is(err, attempt.ErrIndexOutOfRange),
		errors.Is(err, models.ErrAnswerKind),
		errors.Is(err, models.ErrUnknownOption),
		errors.Is(err, models.ErrEmptyAnswer),
		errors.Is(err, models.ErrEmptyQuiz),
		errors.Is(err, models.ErrInvalidQuestion):
		return fasthttp.StatusBadRequest
	case errors.Is(err, client.ErrUnavailable):
		return fasthttp.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return fasthttp.StatusGatewayTimeout
	default:
		return fasthttp.StatusInternalServerError
	}
}

// decodeAndValidate lee el cuerpo JSON en dst y valida sus etiquetas
func decodeAndValidate(ctx *fasthttp.RequestCtx, v *validation.Validator, dst interface{}) bool {
	if err := json.Unmarshal(ctx.PostBody(), dst); err != nil {
		respondWithError(ctx, fasthttp.StatusBadRequest, "JSON inválido")
		return false
	}
	if err := v.Struct(dst); err != nil {
		var fieldErrs validation.Errors
		if errors.As(err, &fieldErrs) {
			respondWithFields(ctx, fasthttp.StatusUnprocessableEntity, "Datos inválidos", fieldErrs)
			return false
		}
		respondWithError(ctx, fasthttp.StatusBadRequest, err.Error())
		return false
	}
	return true
}
