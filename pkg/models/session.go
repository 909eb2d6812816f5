package models

import "time"

// User usuario autenticado en el backend
type User struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Role          string    `json:"role,omitempty"`
	AcademicLevel string    `json:"academicLevel,omitempty"`
	Institution   string    `json:"institution,omitempty"`
	Avatar        string    `json:"avatar,omitempty"`
	IsVerified    bool      `json:"isVerified"`
	CreatedAt     time.Time `json:"createdAt,omitempty"`
}

// AuthResponse respuesta del backend para login y verificación OTP
type AuthResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

// LoginRequest credenciales de inicio de sesión
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// RegisterRequest datos de registro
type RegisterRequest struct {
	Name            string `json:"name" validate:"required,min=2,max=80"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
	AcademicLevel   string `json:"academicLevel,omitempty"`
}

// RegisterResponse el backend envía un OTP antes de emitir el token
type RegisterResponse struct {
	Email   string `json:"email"`
	Message string `json:"message,omitempty"`
}

// VerifyOTPRequest código de verificación
type VerifyOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,len=6,numeric"`
}

// EmailRequest usado por reenviar OTP y olvidé mi contraseña
type EmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest nueva contraseña con el código recibido
type ResetPasswordRequest struct {
	Email           string `json:"email" validate:"required,email"`
	OTP             string `json:"otp" validate:"required,len=6,numeric"`
	Password        string `json:"password" validate:"required,min=8"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

// ProfileUpdateRequest campos editables del perfil
type ProfileUpdateRequest struct {
	Name          string `json:"name" validate:"required,min=2,max=80"`
	AcademicLevel string `json:"academicLevel,omitempty" validate:"max=50"`
	Institution   string `json:"institution,omitempty" validate:"max=120"`
	Avatar        string `json:"avatar,omitempty" validate:"omitempty,url"`
}

// ThemeRequest preferencia de tema del usuario
type ThemeRequest struct {
	Theme string `json:"theme" validate:"required,oneof=light dark system"`
}

// RecentAttempt fila de actividad reciente del dashboard
type RecentAttempt struct {
	AttemptID   string    `json:"attemptId"`
	QuizID      string    `json:"quizId"`
	QuizTitle   string    `json:"quizTitle"`
	Percentage  float64   `json:"percentage"`
	Grade       string    `json:"grade"`
	CompletedAt time.Time `json:"completedAt"`
}

// SubjectStat rendimiento por materia
type SubjectStat struct {
	Subject        string  `json:"subject"`
	Attempts       int     `json:"attempts"`
	AveragePercent float64 `json:"averagePercent"`
}

// DashboardStats estadísticas del usuario
type DashboardStats struct {
	TotalQuizzes    int             `json:"totalQuizzes"`
	TotalAttempts   int             `json:"totalAttempts"`
	AverageScore    float64         `json:"averageScore"`
	StudyStreak     int             `json:"studyStreak"`
	TimeSpent       int             `json:"timeSpent"`
	RecentAttempts  []RecentAttempt `json:"recentAttempts"`
	SubjectStats    []SubjectStat   `json:"subjectStats,omitempty"`
	Recommendations []string        `json:"recommendations,omitempty"`
}
