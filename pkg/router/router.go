package router

import (
	"strings"

	"github.com/backsoul/shikkhapro/pkg/handlers"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// Handlers agrupa los handlers que expone el gateway
type Handlers struct {
	Auth    *handlers.AuthHandler
	Quiz    *handlers.QuizHandler
	Attempt *handlers.AttemptHandler
	Health  *handlers.HealthHandler
}

// New arma el handler raíz con sus middlewares
func New(h Handlers, serverName, allowedOrigin string, log *zap.Logger) fasthttp.RequestHandler {
	r := &router{h: h, serverName: serverName}
	return Chain(r.handle,
		Recover(log),
		RequestLogger(log),
		CORS(allowedOrigin),
	)
}

type router struct {
	h          Handlers
	serverName string
}

func (r *router) handle(ctx *fasthttp.RequestCtx) {
	path := string(ctx.Path())
	method := string(ctx.Method())

	ctx.Response.Header.Set("Server", r.serverName)
	ctx.Response.Header.Set("Cache-Control", "no-cache")

	switch {
	case path == "/api/health" && method == fasthttp.MethodGet:
		r.h.Health.HealthCheck(ctx)

	// Sesión y autenticación
	case path == "/api/session" && method == fasthttp.MethodGet:
		r.h.Auth.GetSession(ctx)
	case path == "/api/auth/login" && method == fasthttp.MethodPost:
		r.h.Auth.Login(ctx)
	case path == "/api/auth/register" && method == fasthttp.MethodPost:
		r.h.Auth.Register(ctx)
	case path == "/api/auth/verify-otp" && method == fasthttp.MethodPost:
		r.h.Auth.VerifyOTP(ctx)
	case path == "/api/auth/resend-otp" && method == fasthttp.MethodPost:
		r.h.Auth.ResendOTP(ctx)
	case path == "/api/auth/forgot-password" && method == fasthttp.MethodPost:
		r.h.Auth.ForgotPassword(ctx)
	case path == "/api/auth/reset-password" && method == fasthttp.MethodPost:
		r.h.Auth.ResetPassword(ctx)
	case path == "/api/auth/logout" && method == fasthttp.MethodPost:
		r.h.Auth.Logout(ctx)
	case path == "/api/auth/me" && method == fasthttp.MethodGet:
		r.h.Auth.Me(ctx)
	case path == "/api/profile" && method == fasthttp.MethodGet:
		r.h.Auth.GetProfile(ctx)
	case path == "/api/profile" && method == fasthttp.MethodPut:
		r.h.Auth.UpdateProfile(ctx)
	case path == "/api/preferences/theme" && method == fasthttp.MethodPut:
		r.h.Auth.SetTheme(ctx)

	// Quizzes
	case path == "/api/dashboard" && method == fasthttp.MethodGet:
		r.h.Quiz.Dashboard(ctx)
	case path == "/api/quizzes" && method == fasthttp.MethodGet:
		r.h.Quiz.ListQuizzes(ctx)
	case path == "/api/quizzes/generate" && method == fasthttp.MethodPost:
		r.h.Quiz.GenerateQuiz(ctx)
	case strings.HasPrefix(path, "/api/quizzes/"):
		r.quizRoutes(ctx, path, method)

	// Intento activo
	case path == "/api/attempt" && method == fasthttp.MethodGet:
		r.h.Attempt.GetAttempt(ctx)
	case strings.HasPrefix(path, "/api/attempt/") && method == fasthttp.MethodPost:
		r.attemptRoutes(ctx, path)
	case strings.HasPrefix(path, "/api/attempts/") && method == fasthttp.MethodGet:
		r.resultRoutes(ctx, path)

	// WebSocket
	case path == "/ws":
		r.h.Attempt.HandleWebSocket(ctx)

	default:
		serve404(ctx)
	}
}

func (r *router) quizRoutes(ctx *fasthttp.RequestCtx, path, method string) {
	parts := strings.Split(path, "/")

	// /api/quizzes/{id}
	if len(parts) == 4 && parts[3] != "" {
		ctx.SetUserValue("id", parts[3])
		switch method {
		case fasthttp.MethodGet:
			r.h.Quiz.GetQuiz(ctx)
		case fasthttp.MethodDelete:
			r.h.Quiz.DeleteQuiz(ctx)
		default:
			serve405(ctx)
		}
		return
	}

	// /api/quizzes/{id}/attempt
	if len(parts) == 5 && parts[3] != "" && parts[4] == "attempt" {
		if method != fasthttp.MethodPost {
			serve405(ctx)
			return
		}
		ctx.SetUserValue("id", parts[3])
		r.h.Attempt.StartAttempt(ctx)
		return
	}

	serve404(ctx)
}

func (r *router) attemptRoutes(ctx *fasthttp.RequestCtx, path string) {
	switch strings.TrimPrefix(path, "/api/attempt/") {
	case "answer":
		r.h.Attempt.Answer(ctx)
	case "next":
		r.h.Attempt.Next(ctx)
	case "previous":
		r.h.Attempt.Previous(ctx)
	case "goto":
		r.h.Attempt.GoTo(ctx)
	case "flag":
		r.h.Attempt.Flag(ctx)
	case "submit":
		r.h.Attempt.Submit(ctx)
	case "abandon":
		r.h.Attempt.Abandon(ctx)
	default:
		serve404(ctx)
	}
}

func (r *router) resultRoutes(ctx *fasthttp.RequestCtx, path string) {
	parts := strings.Split(path, "/")

	// /api/attempts/{id}/result
	if len(parts) == 5 && parts[3] != "" && parts[4] == "result" {
		ctx.SetUserValue("id", parts[3])
		r.h.Attempt.Result(ctx)
		return
	}
	serve404(ctx)
}

func serve404(ctx *fasthttp.RequestCtx) {
	ctx.Response.Header.Set("Content-Type", "application/json")
	ctx.SetStatusCode(fasthttp.StatusNotFound)
	ctx.SetBodyString(`{"success": false, "error": "Ruta no encontrada"}`)
}

func serve405(ctx *fasthttp.RequestCtx) {
	ctx.Response.Header.Set("Content-Type", "application/json")
	ctx.SetStatusCode(fasthttp.StatusMethodNotAllowed)
	ctx.SetBodyString(`{"success": false, "error": "Método no permitido"}`)
}
