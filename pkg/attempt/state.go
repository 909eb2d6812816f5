package attempt

import (
	"time"

	"github.com/backsoul/shikkhapro/pkg/models"
)

// State estado del intento
type State string

const (
	StateNotStarted State = "not_started"
	StateInProgress State = "in_progress"
	StateSubmitting State = "submitting"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
	StateClosed     State = "closed"
)

// EventType tipo de evento emitido por el controlador
type EventType string

const (
	EventStarted    EventType = "started"
	EventTick       EventType = "tick"
	EventAnswer     EventType = "answer"
	EventNavigate   EventType = "navigate"
	EventFlag       EventType = "flag"
	EventConfirm    EventType = "confirm"
	EventSubmitting EventType = "submitting"
	EventSubmitted  EventType = "submitted"
	EventFailed     EventType = "failed"
	EventClosed     EventType = "closed"
)

// Event cambio de estado o tick del temporizador
type Event struct {
	Type          EventType      `json:"type"`
	AttemptID     string         `json:"attemptId"`
	State         State          `json:"state"`
	Index         int            `json:"index"`
	Remaining     int            `json:"remaining"`
	QuestionID    string         `json:"questionId,omitempty"`
	AutoSubmitted bool           `json:"autoSubmitted,omitempty"`
	Error         string         `json:"error,omitempty"`
	Result        *models.Result `json:"result,omitempty"`
}

// Snapshot copia del intento para renderizar
type Snapshot struct {
	AttemptID     string                   `json:"attemptId"`
	QuizID        string                   `json:"quizId"`
	QuizTitle     string                   `json:"quizTitle"`
	State         State                    `json:"state"`
	Index         int                      `json:"index"`
	Total         int                      `json:"total"`
	Question      *models.Question         `json:"question,omitempty"`
	Answers       map[string]models.Answer `json:"answers"`
	Flagged       []string                 `json:"flagged"`
	Answered      int                      `json:"answered"`
	Complete      bool                     `json:"complete"`
	Timed         bool                     `json:"timed"`
	Remaining     int                      `json:"remaining"`
	AutoSubmitted bool                     `json:"autoSubmitted"`
	StartedAt     time.Time                `json:"startedAt"`
	Error         string                   `json:"error,omitempty"`
	Result        *models.Result           `json:"result,omitempty"`
}
