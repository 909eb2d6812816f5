package store

import (
	"time"

	"github.com/backsoul/shikkhapro/pkg/models"
)

// Session estado global de un usuario del gateway: autenticación, intento
// activo y preferencias
type Session struct {
	ID              string       `json:"id"`
	Token           string       `json:"token,omitempty"`
	User            *models.User `json:"user,omitempty"`
	TokenExpiresAt  *time.Time   `json:"tokenExpiresAt,omitempty"`
	ActiveAttemptID string       `json:"activeAttemptId,omitempty"`
	ActiveQuizID    string       `json:"activeQuizId,omitempty"`
	LastAttemptID   string       `json:"lastAttemptId,omitempty"`
	PendingEmail    string       `json:"pendingEmail,omitempty"`
	Theme           string       `json:"theme"`
	CreatedAt       time.Time    `json:"createdAt"`
	UpdatedAt       time.Time    `json:"updatedAt"`
}

// Authenticated indica si la sesión tiene un token vigente
func (s *Session) Authenticated(now time.Time) bool {
	if s.Token == "" {
		return false
	}
	return s.TokenExpiresAt == nil || now.Before(*s.TokenExpiresAt)
}

// Action cambio tipado sobre la sesión
type Action interface {
	apply(s Session) Session
}

// LoggedIn login o verificación OTP exitosa
type LoggedIn struct {
	Token     string
	User      *models.User
	ExpiresAt *time.Time
}

// LoggedOut limpia credenciales e intento activo
type LoggedOut struct{}

type ProfileUpdated struct {
	User *models.User
}

// RegistrationPending el registro espera el OTP enviado a Email
type RegistrationPending struct {
	Email string
}

type AttemptStarted struct {
	AttemptID string
	QuizID    string
}

// AttemptFinished el intento fue calificado
type AttemptFinished struct {
	AttemptID string
}

type AttemptAbandoned struct {
	AttemptID string
}

type ThemeChanged struct {
	Theme string
}

func (a LoggedIn) apply(s Session) Session {
	s.Token = a.Token
	s.User = a.User
	s.TokenExpiresAt = a.ExpiresAt
	s.PendingEmail = ""
	return s
}

func (LoggedOut) apply(s Session) Session {
	s.Token = ""
	s.User = nil
	s.TokenExpiresAt = nil
	s.ActiveAttemptID = ""
	s.ActiveQuizID = ""
	s.LastAttemptID = ""
	return s
}

func (a ProfileUpdated) apply(s Session) Session {
	s.User = a.User
	return s
}

func (a RegistrationPending) apply(s Session) Session {
	s.PendingEmail = a.Email
	return s
}

func (a AttemptStarted) apply(s Session) Session {
	s.ActiveAttemptID = a.AttemptID
	s.ActiveQuizID = a.QuizID
	return s
}

func (a AttemptFinished) apply(s Session) Session {
	if s.ActiveAttemptID == a.AttemptID {
		s.ActiveAttemptID = ""
		s.ActiveQuizID = ""
	}
	s.LastAttemptID = a.AttemptID
	return s
}

func (a AttemptAbandoned) apply(s Session) Session {
	if s.ActiveAttemptID == a.AttemptID {
		s.ActiveAttemptID = ""
		s.ActiveQuizID = ""
	}
	return s
}

func (a ThemeChanged) apply(s Session) Session {
	s.Theme = a.Theme
	return s
}

// Reduce aplica una acción y devuelve la sesión nueva. No modifica s.
func Reduce(s Session, a Action, now time.Time) Session {
	next := a.apply(s)
	next.UpdatedAt = now
	return next
}
