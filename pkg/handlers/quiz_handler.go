package handlers

import (
	"strconv"

	"github.com/backsoul/shikkhapro/pkg/models"
	"github.com/backsoul/shikkhapro/pkg/services"
	"github.com/backsoul/shikkhapro/pkg/validation"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// QuizHandler maneja las peticiones HTTP de quizzes y dashboard
type QuizHandler struct {
	*sessionResolver
	quizzes   *services.QuizService
	validator *validation.Validator
}

// NewQuizHandler crea una nueva instancia del handler de quizzes
func NewQuizHandler(sessions *services.SessionService, quizzes *services.QuizService, cookie SessionCookie, validator *validation.Validator, logger *zap.Logger) *QuizHandler {
	return &QuizHandler{
		sessionResolver: &sessionResolver{sessions: sessions, cookie: cookie, logger: logger},
		quizzes:         quizzes,
		validator:       validator,
	}
}

// ListQuizzes maneja GET /api/quizzes?page=1&limit=10&subject=&search=
func (h *QuizHandler) ListQuizzes(ctx *fasthttp.RequestCtx) {
	session, ok := h.authorize(ctx)
	if !ok {
		return
	}

	args := ctx.QueryArgs()
	params := models.QuizListParams{
		Subject: string(args.Peek("subject")),
		Search:  string(args.Peek("search")),
	}
	var err error
	if raw := args.Peek("page"); len(raw) > 0 {
		if params.Page, err = strconv.Atoi(string(raw)); err != nil {
			respondWithError(ctx, fasthttp.StatusBadRequest, "Parámetro 'page' debe ser un número")
			return
		}
	}
	if raw := args.Peek("limit"); len(raw) > 0 {
		if params.Limit, err = strconv.Atoi(string(raw)); err != nil {
			respondWithError(ctx, fasthttp.StatusBadRequest, "Parámetro 'limit' debe ser un número")
			return
		}
	}
	if err := h.validator.Struct(params); err != nil {
		respondWithServiceError(ctx, h.logger, err)
		return
	}

	list, err := h.quizzes.ListQuizzes(ctx, session, params)
	if err != nil {
		respondWithServiceError(ctx, h.logger, err)
		return
	}
	respondWithSuccess(ctx, list, "Quizzes obtenidos exitosamente")
}

// GenerateQuiz maneja POST /api/quizzes/generate
func (h *QuizHandler) GenerateQuiz(ctx *fasthttp.RequestCtx) {
	session, ok := h.authorize(ctx)
	if !ok {
		return
	}
	var request models.GenerateQuizRequest
	if !decodeAndValidate(ctx, h.validator, &request) {
		return
	}

	quiz, err := h.quizzes.GenerateQuiz(ctx, session, request)
	if err != nil {
		respondWithServiceError(ctx, h.logger, err)
		return
	}
	respondWithSuccess(ctx, withoutSolutions(quiz), "Quiz generado exitosamente")
}

// GetQuiz maneja GET /api/quizzes/{id}. Las soluciones no se envían.
func (h *QuizHandler) GetQuiz(ctx *fasthttp.RequestCtx) {
	session, ok := h.authorize(ctx)
	if !ok {
		return
	}
	id := ctx.UserValue("id").(string)

	quiz, err := h.quizzes.GetQuiz(ctx, session, id)
	if err != nil {
		respondWithServiceError(ctx, h.logger, err)
		return
	}
	respondWithSuccess(ctx, withoutSolutions(quiz), "Quiz obtenido exitosamente")
}

// DeleteQuiz maneja DELETE /api/quizzes/{id}
func (h *QuizHandler) DeleteQuiz(ctx *fasthttp.RequestCtx) {
	session, ok := h.authorize(ctx)
	if !ok {
		return
	}
	id := ctx.UserValue("id").(string)

	if err := h.quizzes.DeleteQuiz(ctx, session, id); err != nil {
		respondWithServiceError(ctx, h.logger, err)
		return
	}
	respondWithSuccess(ctx, nil, "Quiz eliminado")
}

// Dashboard maneja GET /api/dashboard
func (h *QuizHandler) Dashboard(ctx *fasthttp.RequestCtx) {
	session, ok := h.authorize(ctx)
	if !ok {
		return
	}
	stats, err := h.quizzes.Dashboard(ctx, session)
	if err != nil {
		respondWithServiceError(ctx, h.logger, err)
		return
	}
	respondWithSuccess(ctx, stats, "Estadísticas obtenidas")
}

func withoutSolutions(quiz *models.Quiz) *models.Quiz {
	out := *quiz
	out.Questions = make([]models.Question, len(quiz.Questions))
	for i, q := range quiz.Questions {
		out.Questions[i] = q.WithoutSolution()
	}
	return &out
}
