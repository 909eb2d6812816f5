package handlers

import (
	"github.com/backsoul/shikkhapro/pkg/models"
	"github.com/backsoul/shikkhapro/pkg/services"
	"github.com/backsoul/shikkhapro/pkg/validation"
	websocketHub "github.com/backsoul/shikkhapro/pkg/websocket"
	"github.com/fasthttp/websocket"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// AttemptHandler maneja el intento activo de la sesión y su canal WebSocket
type AttemptHandler struct {
	*sessionResolver
	attempts  *services.AttemptService
	hub       *websocketHub.Hub
	validator *validation.Validator
	upgrader  websocket.FastHTTPUpgrader
}

// NewAttemptHandler crea una nueva instancia del handler de intentos.
// allowedOrigin "*" acepta WebSocket desde cualquier origen.
func NewAttemptHandler(
	sessions *services.SessionService,
	attempts *services.AttemptService,
	hub *websocketHub.Hub,
	cookie SessionCookie,
	validator *validation.Validator,
	allowedOrigin string,
	logger *zap.Logger,
) *AttemptHandler {
	return &AttemptHandler{
		sessionResolver: &sessionResolver{sessions: sessions, cookie: cookie, logger: logger},
		attempts:        attempts,
		hub:             hub,
		validator:       validator,
		upgrader: websocket.FastHTTPUpgrader{
			CheckOrigin: func(ctx *fasthttp.RequestCtx) bool {
				origin := string(ctx.Request.Header.Peek("Origin"))
				return allowedOrigin == "*" || origin == "" || origin == allowedOrigin
			},
		},
	}
}

// StartAttempt maneja POST /api/quizzes/{id}/attempt
func (h *AttemptHandler) StartAttempt(ctx *fasthttp.RequestCtx) {
	session, ok := h.authorize(ctx)
	if !ok {
		return
	}
	quizID := ctx.UserValue("id").(string)

	snapshot, err := h.attempts.Start(ctx, session, quizID)
	if err != nil {
		respondWithServiceError(ctx, h.logger, err)
		return
	}
	respondWithSuccess(ctx, snapshot, "Intento iniciado")
}

// GetAttempt maneja GET /api/attempt
func (h *AttemptHandler) GetAttempt(ctx *fasthttp.RequestCtx) {
	session, ok := h.authorize(ctx)
	if !ok {
		return
	}
	snapshot, err := h.attempts.Snapshot(ctx, session)
	if err != nil {
		respondWithServiceError(ctx, h.logger, err)
		return
	}
	respondWithSuccess(ctx, snapshot, "Intento obtenido")
}

// Answer maneja POST /api/attempt/answer
func (h *AttemptHandler) Answer(ctx *fasthttp.RequestCtx) {
	session, ok := h.authorize(ctx)
	if !ok {
		return
	}
	var request models.AnswerRequest
	if !decodeAndValidate(ctx, h.validator, &request) {
		return
	}

	snapshot, err := h.attempts.Answer(ctx, session, request)
	if err != nil {
		respondWithServiceError(ctx, h.logger, err)
		return
	}
	respondWithSuccess(ctx, snapshot, "Respuesta guardada")
}

// Next maneja POST /api/attempt/next. En la última pregunta responde
// confirmSubmit=true en lugar de avanzar.
func (h *AttemptHandler) Next(ctx *fasthttp.RequestCtx) {
	session, ok := h.authorize(ctx)
	if !ok {
		return
	}
	snapshot, confirm, err := h.attempts.Next(ctx, session)
	if err != nil {
		respondWithServiceError(ctx, h.logger, err)
		return
	}
	respondWithSuccess(ctx, map[string]interface{}{
		"attempt":       snapshot,
		"confirmSubmit": confirm,
	}, "Navegación actualizada")
}

// Previous maneja POST /api/attempt/previous
func (h *AttemptHandler) Previous(ctx *fasthttp.RequestCtx) {
	session, ok := h.authorize(ctx)
	if !ok {
		return
	}
	snapshot, err := h.attempts.Previous(ctx, session)
	if err != nil {
		respondWithServiceError(ctx, h.logger, err)
		return
	}
	respondWithSuccess(ctx, snapshot, "Navegación actualizada")
}

// GoTo maneja POST /api/attempt/goto
func (h *AttemptHandler) GoTo(ctx *fasthttp.RequestCtx) {
	session, ok := h.authorize(ctx)
	if !ok {
		return
	}
	var request models.GoToRequest
	if !decodeAndValidate(ctx, h.validator, &request) {
		return
	}

	snapshot, err := h.attempts.GoTo(ctx, session, *request.Index)
	if err != nil {
		respondWithServiceError(ctx, h.logger, err)
		return
	}
	respondWithSuccess(ctx, snapshot, "Navegación actualizada")
}

// Flag maneja POST /api/attempt/flag
func (h *AttemptHandler) Flag(ctx *fasthttp.RequestCtx) {
	session, ok := h.authorize(ctx)
	if !ok {
		return
	}
	var request models.FlagRequest
	if !decodeAndValidate(ctx, h.validator, &request) {
		return
	}

	snapshot, flagged, err := h.attempts.ToggleFlag(ctx, session, request.QuestionID)
	if err != nil {
		respondWithServiceError(ctx, h.logger, err)
		return
	}
	message := "Pregunta desmarcada"
	if flagged {
		message = "Pregunta marcada para revisión"
	}
	respondWithSuccess(ctx, snapshot, message)
}

// Submit maneja POST /api/attempt/submit
func (h *AttemptHandler) Submit(ctx *fasthttp.RequestCtx) {
	session, ok := h.authorize(ctx)
	if !ok {
		return
	}
	view, err := h.attempts.Submit(ctx, session)
	if err != nil {
		respondWithServiceError(ctx, h.logger, err)
		return
	}
	respondWithSuccess(ctx, view, "Intento enviado")
}

// Abandon maneja POST /api/attempt/abandon
func (h *AttemptHandler) Abandon(ctx *fasthttp.RequestCtx) {
	session, ok := h.authorize(ctx)
	if !ok {
		return
	}
	if err := h.attempts.Abandon(ctx, session); err != nil {
		respondWithServiceError(ctx, h.logger, err)
		return
	}
	respondWithSuccess(ctx, nil, "Intento abandonado")
}

// Result maneja GET /api/attempts/{id}/result
func (h *AttemptHandler) Result(ctx *fasthttp.RequestCtx) {
	session, ok := h.authorize(ctx)
	if !ok {
		return
	}
	attemptID := ctx.UserValue("id").(string)

	view, err := h.attempts.Result(ctx, session, attemptID)
	if err != nil {
		respondWithServiceError(ctx, h.logger, err)
		return
	}
	respondWithSuccess(ctx, view, "Resultado obtenido")
}

// HandleWebSocket maneja GET /ws: eventos del intento de la sesión
func (h *AttemptHandler) HandleWebSocket(ctx *fasthttp.RequestCtx) {
	session, ok := h.authorize(ctx)
	if !ok {
		return
	}
	topic := services.AttemptTopic(session.ID)

	err := h.upgrader.Upgrade(ctx, func(ws *websocket.Conn) {
		h.hub.Serve(ws, topic)
	})
	if err != nil {
		h.logger.Warn("Error upgrading to WebSocket", zap.String("session_id", session.ID), zap.Error(err))
	}
}
