package handlers

import (
	"time"

	"github.com/backsoul/shikkhapro/pkg/models"
	"github.com/backsoul/shikkhapro/pkg/services"
	"github.com/backsoul/shikkhapro/pkg/store"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// SessionHeader alternativa a la cookie para clientes que no la guardan
const SessionHeader = "X-Session-ID"

// SessionCookie configuración de la cookie de sesión
type SessionCookie struct {
	Name   string
	Secure bool
	TTL    time.Duration
}

// SessionView sesión tal como la ve el cliente; nunca incluye el token
type SessionView struct {
	SessionID       string       `json:"sessionId"`
	Authenticated   bool         `json:"authenticated"`
	User            *models.User `json:"user,omitempty"`
	Theme           string       `json:"theme"`
	ActiveAttemptID string       `json:"activeAttemptId,omitempty"`
	ActiveQuizID    string       `json:"activeQuizId,omitempty"`
	LastAttemptID   string       `json:"lastAttemptId,omitempty"`
	PendingEmail    string       `json:"pendingEmail,omitempty"`
}

func newSessionView(s *store.Session) SessionView {
	return SessionView{
		SessionID:       s.ID,
		Authenticated:   s.Authenticated(time.Now()),
		User:            s.User,
		Theme:           s.Theme,
		ActiveAttemptID: s.ActiveAttemptID,
		ActiveQuizID:    s.ActiveQuizID,
		LastAttemptID:   s.LastAttemptID,
		PendingEmail:    s.PendingEmail,
	}
}

// sessionResolver obtiene la sesión de la petición
type sessionResolver struct {
	sessions *services.SessionService
	cookie   SessionCookie
	logger   *zap.Logger
}

func (r *sessionResolver) requestSessionID(ctx *fasthttp.RequestCtx) string {
	if id := ctx.Request.Header.Cookie(r.cookie.Name); len(id) > 0 {
		return string(id)
	}
	if id := ctx.Request.Header.Peek(SessionHeader); len(id) > 0 {
		return string(id)
	}
	// los navegadores no envían cabeceras propias al abrir un WebSocket
	return string(ctx.QueryArgs().Peek("session"))
}

// ensure devuelve la sesión de la petición o crea una nueva
func (r *sessionResolver) ensure(ctx *fasthttp.RequestCtx) (*store.Session, bool) {
	requested := r.requestSessionID(ctx)
	session, err := r.sessions.Ensure(ctx, requested)
	if err != nil {
		respondWithServiceError(ctx, r.logger, err)
		return nil, false
	}
	if session.ID != requested {
		r.setCookie(ctx, session.ID)
	}
	return session, true
}

// authorize exige una sesión autenticada; si no la hay responde 401
func (r *sessionResolver) authorize(ctx *fasthttp.RequestCtx) (*store.Session, bool) {
	session, err := r.sessions.Authorize(ctx, r.requestSessionID(ctx))
	if err != nil {
		respondWithServiceError(ctx, r.logger, err)
		return nil, false
	}
	return session, true
}

func (r *sessionResolver) setCookie(ctx *fasthttp.RequestCtx, id string) {
	cookie := fasthttp.AcquireCookie()
	defer fasthttp.ReleaseCookie(cookie)
	cookie.SetKey(r.cookie.Name)
	cookie.SetValue(id)
	cookie.SetPath("/")
	cookie.SetHTTPOnly(true)
	cookie.SetSecure(r.cookie.Secure)
	cookie.SetSameSite(fasthttp.CookieSameSiteLaxMode)
	cookie.SetMaxAge(int(r.cookie.TTL.Seconds()))
	ctx.Response.Header.SetCookie(cookie)
	ctx.Response.Header.Set(SessionHeader, id)
}
