package services

import (
	"context"
	"errors"

	"github.com/backsoul/shikkhapro/pkg/models"
)

var (
	ErrUnauthenticated = errors.New("debes iniciar sesión")
	ErrNoActiveAttempt = errors.New("no hay un intento activo")
)

// AuthBackend operaciones de autenticación y perfil del backend
type AuthBackend interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error)
	Register(ctx context.Context, req models.RegisterRequest) (*models.RegisterResponse, error)
	VerifyOTP(ctx context.Context, req models.VerifyOTPRequest) (*models.AuthResponse, error)
	ResendOTP(ctx context.Context, req models.EmailRequest) error
	ForgotPassword(ctx context.Context, req models.EmailRequest) error
	ResetPassword(ctx context.Context, req models.ResetPasswordRequest) error
	Me(ctx context.Context, token string) (*models.User, error)
	GetProfile(ctx context.Context, token string) (*models.User, error)
	UpdateProfile(ctx context.Context, token string, req models.ProfileUpdateRequest) (*models.User, error)
}

// QuizBackend quizzes y estadísticas
type QuizBackend interface {
	ListQuizzes(ctx context.Context, token string, params models.QuizListParams) (*models.QuizList, error)
	GenerateQuiz(ctx context.Context, token string, req models.GenerateQuizRequest) (*models.Quiz, error)
	GetQuiz(ctx context.Context, token, id string) (*models.Quiz, error)
	DeleteQuiz(ctx context.Context, token, id string) error
	Dashboard(ctx context.Context, token string) (*models.DashboardStats, error)
}

// AttemptBackend registro y calificación de intentos
type AttemptBackend interface {
	StartAttempt(ctx context.Context, token, quizID string) (*models.StartAttemptResponse, error)
	SubmitAttempt(ctx context.Context, token string, req *models.SubmitRequest) (*models.Result, error)
	GetResult(ctx context.Context, token, attemptID string) (*models.Result, error)
}

// Publisher envía eventos a los clientes conectados
type Publisher interface {
	Publish(topic, msgType string, data interface{})
}
