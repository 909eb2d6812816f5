package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/backsoul/shikkhapro/pkg/client"
	"github.com/backsoul/shikkhapro/pkg/models"
	"github.com/backsoul/shikkhapro/pkg/store"
	"github.com/benbjohnson/clock"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// SessionService maneja las sesiones del gateway y la autenticación contra
// el backend
type SessionService struct {
	store  *store.Store
	auth   AuthBackend
	clock  clock.Clock
	logger *zap.Logger

	onLogout []func(sessionID string)
}

// NewSessionService crea una nueva instancia del servicio de sesiones
func NewSessionService(st *store.Store, auth AuthBackend, clk clock.Clock, logger *zap.Logger) *SessionService {
	if clk == nil {
		clk = clock.New()
	}
	return &SessionService{store: st, auth: auth, clock: clk, logger: logger}
}

// Ensure devuelve la sesión indicada o crea una nueva si no existe o expiró
func (s *SessionService) Ensure(ctx context.Context, sessionID string) (*store.Session, error) {
	if sessionID != "" {
		session, err := s.store.Get(ctx, sessionID)
		if err == nil {
			return session, nil
		}
		if !errors.Is(err, store.ErrSessionNotFound) {
			return nil, err
		}
	}
	return s.store.Create(ctx)
}

// OnLogout registra una función que se llama cuando la sesión pierde a su
// usuario: logout, token rechazado o login de otro usuario. Se registra al
// construir los servicios, antes de atender peticiones.
func (s *SessionService) OnLogout(fn func(sessionID string)) {
	s.onLogout = append(s.onLogout, fn)
}

func (s *SessionService) loggedOut(sessionID string) {
	for _, fn := range s.onLogout {
		fn(sessionID)
	}
}

func (s *SessionService) Get(ctx context.Context, sessionID string) (*store.Session, error) {
	return s.store.Get(ctx, sessionID)
}

// Authorize exige una sesión con token vigente
func (s *SessionService) Authorize(ctx context.Context, sessionID string) (*store.Session, error) {
	session, err := s.store.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	if !session.Authenticated(s.clock.Now()) {
		return nil, ErrUnauthenticated
	}
	return session, nil
}

// Login autentica contra el backend y guarda el token en la sesión
func (s *SessionService) Login(ctx context.Context, sessionID string, req models.LoginRequest) (*store.Session, error) {
	resp, err := s.auth.Login(ctx, req)
	if err != nil {
		return nil, err
	}
	session, err := s.loggedIn(ctx, sessionID, resp)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Usuario autenticado", zap.String("session_id", sessionID), zap.String("user_id", session.User.ID))
	return session, nil
}

// Register crea la cuenta; la sesión queda esperando el OTP
func (s *SessionService) Register(ctx context.Context, sessionID string, req models.RegisterRequest) (*models.RegisterResponse, error) {
	resp, err := s.auth.Register(ctx, req)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.Dispatch(ctx, sessionID, store.RegistrationPending{Email: resp.Email}); err != nil {
		return nil, err
	}
	return resp, nil
}

// VerifyOTP completa el registro e inicia sesión
func (s *SessionService) VerifyOTP(ctx context.Context, sessionID string, req models.VerifyOTPRequest) (*store.Session, error) {
	resp, err := s.auth.VerifyOTP(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.loggedIn(ctx, sessionID, resp)
}

func (s *SessionService) ResendOTP(ctx context.Context, req models.EmailRequest) error {
	return s.auth.ResendOTP(ctx, req)
}

func (s *SessionService) ForgotPassword(ctx context.Context, req models.EmailRequest) error {
	return s.auth.ForgotPassword(ctx, req)
}

func (s *SessionService) ResetPassword(ctx context.Context, req models.ResetPasswordRequest) error {
	return s.auth.ResetPassword(ctx, req)
}

// Logout borra las credenciales de la sesión
func (s *SessionService) Logout(ctx context.Context, sessionID string) error {
	s.loggedOut(sessionID)
	_, err := s.store.Dispatch(ctx, sessionID, store.LoggedOut{})
	if errors.Is(err, store.ErrSessionNotFound) {
		return nil
	}
	return err
}

// CurrentUser consulta /auth/me y refresca el usuario guardado. Si el
// backend rechaza el token la sesión se cierra.
func (s *SessionService) CurrentUser(ctx context.Context, session *store.Session) (*models.User, error) {
	user, err := s.auth.Me(ctx, session.Token)
	if err != nil {
		return nil, s.checkUnauthorized(ctx, session.ID, err)
	}
	if _, err := s.store.Dispatch(ctx, session.ID, store.ProfileUpdated{User: user}); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *SessionService) Profile(ctx context.Context, session *store.Session) (*models.User, error) {
	user, err := s.auth.GetProfile(ctx, session.Token)
	if err != nil {
		return nil, s.checkUnauthorized(ctx, session.ID, err)
	}
	return user, nil
}

func (s *SessionService) UpdateProfile(ctx context.Context, session *store.Session, req models.ProfileUpdateRequest) (*models.User, error) {
	user, err := s.auth.UpdateProfile(ctx, session.Token, req)
	if err != nil {
		return nil, s.checkUnauthorized(ctx, session.ID, err)
	}
	if _, err := s.store.Dispatch(ctx, session.ID, store.ProfileUpdated{User: user}); err != nil {
		return nil, err
	}
	return user, nil
}

// SetTheme guarda la preferencia de tema (light, dark, system)
func (s *SessionService) SetTheme(ctx context.Context, sessionID, theme string) (*store.Session, error) {
	return s.store.Dispatch(ctx, sessionID, store.ThemeChanged{Theme: theme})
}

// Dispatch aplica acciones a la sesión
func (s *SessionService) Dispatch(ctx context.Context, sessionID string, actions ...store.Action) (*store.Session, error) {
	return s.store.Dispatch(ctx, sessionID, actions...)
}

func (s *SessionService) loggedIn(ctx context.Context, sessionID string, resp *models.AuthResponse) (*store.Session, error) {
	if resp.Token == "" {
		return nil, fmt.Errorf("%w: el backend no devolvió token", ErrUnauthenticated)
	}
	subject, expiresAt := tokenClaims(resp.Token)
	user := resp.User
	if user == nil {
		user = &models.User{ID: subject}
	} else if user.ID == "" {
		user.ID = subject
	}
	if expiresAt != nil && !expiresAt.After(s.clock.Now()) {
		return nil, fmt.Errorf("%w: el token ya expiró", ErrUnauthenticated)
	}
	if previous, err := s.store.Get(ctx, sessionID); err == nil && previous.User != nil && previous.User.ID != user.ID {
		s.logger.Info("Otro usuario inicia sesión en la sesión",
			zap.String("session_id", sessionID),
			zap.String("previous_user_id", previous.User.ID),
			zap.String("user_id", user.ID),
		)
		s.loggedOut(sessionID)
	}
	return s.store.Dispatch(ctx, sessionID, store.LoggedIn{Token: resp.Token, User: user, ExpiresAt: expiresAt})
}

func (s *SessionService) checkUnauthorized(ctx context.Context, sessionID string, err error) error {
	if !errors.Is(err, client.ErrUnauthorized) {
		return err
	}
	s.logger.Info("Token rechazado por el backend, cerrando sesión", zap.String("session_id", sessionID))
	s.loggedOut(sessionID)
	if _, dispatchErr := s.store.Dispatch(ctx, sessionID, store.LoggedOut{}); dispatchErr != nil {
		s.logger.Warn("Error cerrando sesión", zap.String("session_id", sessionID), zap.Error(dispatchErr))
	}
	return fmt.Errorf("%w: %v", ErrUnauthenticated, err)
}

// tokenClaims lee sub y exp del JWT del backend sin verificar la firma; la
// firma la verifica el backend en cada llamada. Un token opaco no tiene
// claims y devuelve valores vacíos.
func tokenClaims(token string) (string, *time.Time) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", nil
	}
	if claims.ExpiresAt == nil {
		return claims.Subject, nil
	}
	exp := claims.ExpiresAt.Time
	return claims.Subject, &exp
}
