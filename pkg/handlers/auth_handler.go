package handlers

import (
	"github.com/backsoul/shikkhapro/pkg/models"
	"github.com/backsoul/shikkhapro/pkg/services"
	"github.com/backsoul/shikkhapro/pkg/validation"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// AuthHandler maneja autenticación, perfil y preferencias
type AuthHandler struct {
	*sessionResolver
	validator *validation.Validator
}

// NewAuthHandler crea una nueva instancia del handler de autenticación
func NewAuthHandler(sessions *services.SessionService, cookie SessionCookie, validator *validation.Validator, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		sessionResolver: &sessionResolver{sessions: sessions, cookie: cookie, logger: logger},
		validator:       validator,
	}
}

// Login maneja POST /api/auth/login
func (h *AuthHandler) Login(ctx *fasthttp.RequestCtx) {
	var request models.LoginRequest
	if !decodeAndValidate(ctx, h.validator, &request) {
		return
	}
	session, ok := h.ensure(ctx)
	if !ok {
		return
	}

	session, err := h.sessions.Login(ctx, session.ID, request)
	if err != nil {
		respondWithServiceError(ctx, h.logger, err)
		return
	}
	respondWithSuccess(ctx, newSessionView(session), "Sesión iniciada")
}

// Register maneja POST /api/auth/register
func (h *AuthHandler) Register(ctx *fasthttp.RequestCtx) {
	var request models.RegisterRequest
	if !decodeAndValidate(ctx, h.validator, &request) {
		return
	}
	session, ok := h.ensure(ctx)
	if !ok {
		return
	}

	resp, err := h.sessions.Register(ctx, session.ID, request)
	if err != nil {
		respondWithServiceError(ctx, h.logger, err)
		return
	}
	message := resp.Message
	if message == "" {
		message = "Te enviamos un código de verificación"
	}
	respondWithSuccess(ctx, resp, message)
}

// VerifyOTP maneja POST /api/auth/verify-otp
func (h *AuthHandler) VerifyOTP(ctx *fasthttp.RequestCtx) {
	var request models.VerifyOTPRequest
	if !decodeAndValidate(ctx, h.validator, &request) {
		return
	}
	session, ok := h.ensure(ctx)
	if !ok {
		return
	}

	session, err := h.sessions.VerifyOTP(ctx, session.ID, request)
	if err != nil {
		respondWithServiceError(ctx, h.logger, err)
		return
	}
	respondWithSuccess(ctx, newSessionView(session), "Cuenta verificada")
}

// ResendOTP maneja POST /api/auth/resend-otp
func (h *AuthHandler) ResendOTP(ctx *fasthttp.RequestCtx) {
	var request models.EmailRequest
	if !decodeAndValidate(ctx, h.validator, &request) {
		return
	}
	if err := h.sessions.ResendOTP(ctx, request); err != nil {
		respondWithServiceError(ctx, h.logger, err)
		return
	}
	respondWithSuccess(ctx, nil, "Código reenviado")
}

// ForgotPassword maneja POST /api/auth/forgot-password
func (h *AuthHandler) ForgotPassword(ctx *fasthttp.RequestCtx) {
	var request models.EmailRequest
	if !decodeAndValidate(ctx, h.validator, &request) {
		return
	}
	if err := h.sessions.ForgotPassword(ctx, request); err != nil {
		respondWithServiceError(ctx, h.logger, err)
		return
	}
	respondWithSuccess(ctx, nil, "Si el correo existe recibirás instrucciones")
}

// ResetPassword maneja POST /api/auth/reset-password
func (h *AuthHandler) ResetPassword(ctx *fasthttp.RequestCtx) {
	var request models.ResetPasswordRequest
	if !decodeAndValidate(ctx, h.validator, &request) {
		return
	}
	if err := h.sessions.ResetPassword(ctx, request); err != nil {
		respondWithServiceError(ctx, h.logger, err)
		return
	}
	respondWithSuccess(ctx, nil, "Contraseña actualizada")
}

// Logout maneja POST /api/auth/logout
func (h *AuthHandler) Logout(ctx *fasthttp.RequestCtx) {
	if err := h.sessions.Logout(ctx, h.requestSessionID(ctx)); err != nil {
		respondWithServiceError(ctx, h.logger, err)
		return
	}
	respondWithSuccess(ctx, nil, "Sesión cerrada")
}

// Me maneja GET /api/auth/me
func (h *AuthHandler) Me(ctx *fasthttp.RequestCtx) {
	session, ok := h.authorize(ctx)
	if !ok {
		return
	}
	user, err := h.sessions.CurrentUser(ctx, session)
	if err != nil {
		respondWithServiceError(ctx, h.logger, err)
		return
	}
	view := newSessionView(session)
	view.User = user
	respondWithSuccess(ctx, view, "Usuario obtenido")
}

// GetProfile maneja GET /api/profile
func (h *AuthHandler) GetProfile(ctx *fasthttp.RequestCtx) {
	session, ok := h.authorize(ctx)
	if !ok {
		return
	}
	user, err := h.sessions.Profile(ctx, session)
	if err != nil {
		respondWithServiceError(ctx, h.logger, err)
		return
	}
	respondWithSuccess(ctx, user, "Perfil obtenido")
}

// UpdateProfile maneja PUT /api/profile
func (h *AuthHandler) UpdateProfile(ctx *fasthttp.RequestCtx) {
	session, ok := h.authorize(ctx)
	if !ok {
		return
	}
	var request models.ProfileUpdateRequest
	if !decodeAndValidate(ctx, h.validator, &request) {
		return
	}
	user, err := h.sessions.UpdateProfile(ctx, session, request)
	if err != nil {
		respondWithServiceError(ctx, h.logger, err)
		return
	}
	respondWithSuccess(ctx, user, "Perfil actualizado")
}

// SetTheme maneja PUT /api/preferences/theme. No requiere login.
func (h *AuthHandler) SetTheme(ctx *fasthttp.RequestCtx) {
	var request models.ThemeRequest
	if !decodeAndValidate(ctx, h.validator, &request) {
		return
	}
	session, ok := h.ensure(ctx)
	if !ok {
		return
	}
	session, err := h.sessions.SetTheme(ctx, session.ID, request.Theme)
	if err != nil {
		respondWithServiceError(ctx, h.logger, err)
		return
	}
	respondWithSuccess(ctx, newSessionView(session), "Tema actualizado")
}

// GetSession maneja GET /api/session
func (h *AuthHandler) GetSession(ctx *fasthttp.RequestCtx) {
	session, ok := h.ensure(ctx)
	if !ok {
		return
	}
	respondWithSuccess(ctx, newSessionView(session), "Sesión obtenida")
}
