package models

import (
	"encoding/json"
	"time"
)

// Attempt representa el paso de un usuario por un quiz
type Attempt struct {
	ID             string            `json:"id"`
	QuizID         string            `json:"quizId"`
	UserID         string            `json:"userId"`
	Answers        map[string]Answer `json:"answers"`
	StartedAt      time.Time         `json:"startedAt"`
	CompletedAt    *time.Time        `json:"completedAt,omitempty"`
	CorrectAnswers int               `json:"correctAnswers"`
	TimeSpent      int               `json:"timeSpent"` // en segundos
	IsCompleted    bool              `json:"isCompleted"`
	Flagged        []string          `json:"flagged,omitempty"`
	AutoSubmitted  bool              `json:"autoSubmitted,omitempty"`
}

// StartAttemptResponse respuesta del backend al iniciar un intento
type StartAttemptResponse struct {
	AttemptID string    `json:"attemptId"`
	StartedAt time.Time `json:"startedAt,omitempty"`
}

// SubmitRequest cuerpo enviado al servicio de calificación
type SubmitRequest struct {
	QuizID        string            `json:"quizId"`
	AttemptID     string            `json:"attemptId"`
	Answers       map[string]Answer `json:"answers"`
	TimeSpent     int               `json:"timeSpent"`
	Flagged       []string          `json:"flagged,omitempty"`
	AutoSubmitted bool              `json:"autoSubmitted"`
}

// AnswerRequest cuerpo de /api/attempt/answer. El valor se decodifica con el
// tipo de la pregunta.
type AnswerRequest struct {
	QuestionID string          `json:"questionId" validate:"required"`
	Value      json.RawMessage `json:"value" validate:"required"`
}

// GoToRequest cuerpo de /api/attempt/goto
type GoToRequest struct {
	Index *int `json:"index" validate:"required,min=0"`
}

// FlagRequest cuerpo de /api/attempt/flag
type FlagRequest struct {
	QuestionID string `json:"questionId" validate:"required"`
}
