package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// QuestionType tipo de pregunta del quiz
type QuestionType string

const (
	QuestionTypeMCQ            QuestionType = "mcq"
	QuestionTypeTrueFalse      QuestionType = "true-false"
	QuestionTypeShortAnswer    QuestionType = "short-answer"
	QuestionTypeMultipleSelect QuestionType = "multiple-select"
)

var (
	ErrInvalidQuestion = errors.New("pregunta inválida")
	ErrEmptyQuiz       = errors.New("el quiz no tiene preguntas")
)

// Valid indica si el tipo es uno de los conocidos
func (t QuestionType) Valid() bool {
	switch t {
	case QuestionTypeMCQ, QuestionTypeTrueFalse, QuestionTypeShortAnswer, QuestionTypeMultipleSelect:
		return true
	}
	return false
}

// RequiresOptions indica si el tipo necesita una lista de opciones
func (t QuestionType) RequiresOptions() bool {
	return t == QuestionTypeMCQ || t == QuestionTypeTrueFalse || t == QuestionTypeMultipleSelect
}

// AnswerKind devuelve la variante de respuesta que corresponde al tipo
func (t QuestionType) AnswerKind() AnswerKind {
	switch t {
	case QuestionTypeMultipleSelect:
		return AnswerKindMultiChoice
	case QuestionTypeShortAnswer:
		return AnswerKindFreeText
	default:
		return AnswerKindChoice
	}
}

// Question estructura para representar una pregunta del quiz
type Question struct {
	ID            string       `json:"id"`
	Question      string       `json:"question"`
	Type          QuestionType `json:"type"`
	Options       []string     `json:"options,omitempty"`
	CorrectAnswer Answer       `json:"correctAnswer"`
	Explanation   string       `json:"explanation,omitempty"`
	Points        int          `json:"points"`
	Difficulty    string       `json:"difficulty,omitempty"`
}

// UnmarshalJSON decodifica la respuesta correcta según el tipo de la pregunta
func (q *Question) UnmarshalJSON(data []byte) error {
	type alias Question
	aux := struct {
		*alias
		CorrectAnswer json.RawMessage `json:"correctAnswer"`
	}{alias: (*alias)(q)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	answer, err := DecodeAnswer(q.Type, aux.CorrectAnswer)
	if err != nil {
		return fmt.Errorf("respuesta correcta de la pregunta %s: %w", q.ID, err)
	}
	q.CorrectAnswer = answer
	return nil
}

// HasOption indica si la opción existe en la pregunta
func (q *Question) HasOption(option string) bool {
	for _, o := range q.Options {
		if o == option {
			return true
		}
	}
	return false
}

// WithoutSolution copia la pregunta sin respuesta correcta ni explicación,
// para mostrarla mientras el intento sigue abierto
func (q Question) WithoutSolution() Question {
	q.CorrectAnswer = Answer{}
	q.Explanation = ""
	if q.Options != nil {
		q.Options = append([]string(nil), q.Options...)
	}
	return q
}

// Validate verifica las invariantes de la pregunta
func (q *Question) Validate() error {
	if q.ID == "" {
		return fmt.Errorf("%w: falta el id", ErrInvalidQuestion)
	}
	if !q.Type.Valid() {
		return fmt.Errorf("%w: tipo desconocido %q en %s", ErrInvalidQuestion, q.Type, q.ID)
	}
	if q.Type.RequiresOptions() && len(q.Options) == 0 {
		return fmt.Errorf("%w: %s requiere opciones", ErrInvalidQuestion, q.ID)
	}
	if !q.Type.RequiresOptions() && len(q.Options) > 0 {
		return fmt.Errorf("%w: %s no admite opciones", ErrInvalidQuestion, q.ID)
	}
	if q.CorrectAnswer.IsZero() {
		return nil
	}
	if err := q.CorrectAnswer.Compatible(q); err != nil {
		return fmt.Errorf("%w: respuesta correcta de %s: %v", ErrInvalidQuestion, q.ID, err)
	}
	return nil
}

// Quiz representa un quiz generado por el servicio de IA
type Quiz struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description,omitempty"`
	Subject       string     `json:"subject"`
	Topic         string     `json:"topic"`
	AcademicLevel string     `json:"academicLevel"`
	Difficulty    string     `json:"difficulty,omitempty"`
	Language      string     `json:"language,omitempty"`
	Questions     []Question `json:"questions"`
	TimeLimit     int        `json:"timeLimit,omitempty"` // en minutos, 0 = sin límite
	CreatedBy     string     `json:"createdBy,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// Question busca una pregunta por id
func (q *Quiz) Question(id string) (*Question, bool) {
	for i := range q.Questions {
		if q.Questions[i].ID == id {
			return &q.Questions[i], true
		}
	}
	return nil, false
}

// TimeLimitSeconds devuelve el límite de tiempo en segundos
func (q *Quiz) TimeLimitSeconds() int {
	if q.TimeLimit <= 0 {
		return 0
	}
	return q.TimeLimit * 60
}

// TotalPoints suma los puntos de todas las preguntas
func (q *Quiz) TotalPoints() int {
	total := 0
	for _, question := range q.Questions {
		total += question.Points
	}
	return total
}

// Validate verifica que el quiz se pueda tomar
func (q *Quiz) Validate() error {
	if q.ID == "" {
		return errors.New("quiz sin id")
	}
	if len(q.Questions) == 0 {
		return ErrEmptyQuiz
	}
	seen := make(map[string]bool, len(q.Questions))
	for i := range q.Questions {
		if err := q.Questions[i].Validate(); err != nil {
			return err
		}
		if seen[q.Questions[i].ID] {
			return fmt.Errorf("%w: id duplicado %s", ErrInvalidQuestion, q.Questions[i].ID)
		}
		seen[q.Questions[i].ID] = true
	}
	return nil
}

// QuizSummary entrada del listado de quizzes
type QuizSummary struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Subject        string    `json:"subject"`
	Topic          string    `json:"topic"`
	AcademicLevel  string    `json:"academicLevel"`
	Difficulty     string    `json:"difficulty,omitempty"`
	QuestionCount  int       `json:"questionCount"`
	TimeLimit      int       `json:"timeLimit,omitempty"`
	AttemptCount   int       `json:"attemptCount"`
	BestPercentage float64   `json:"bestPercentage,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// QuizListParams filtros del listado
type QuizListParams struct {
	Page    int    `json:"page" validate:"min=0"`
	Limit   int    `json:"limit" validate:"min=0,max=100"`
	Subject string `json:"subject,omitempty"`
	Search  string `json:"search,omitempty" validate:"max=100"`
}

// QuizList respuesta paginada del listado
type QuizList struct {
	Quizzes []QuizSummary `json:"quizzes"`
	Total   int           `json:"total"`
	Page    int           `json:"page"`
	Limit   int           `json:"limit"`
}

// GenerateQuizRequest parámetros para que el servicio de IA genere un quiz
type GenerateQuizRequest struct {
	Subject       string         `json:"subject" validate:"required,max=100"`
	Topic         string         `json:"topic" validate:"required,max=200"`
	AcademicLevel string         `json:"academicLevel" validate:"required"`
	QuestionCount int            `json:"questionCount" validate:"required,min=1,max=50"`
	QuestionTypes []QuestionType `json:"questionTypes" validate:"required,min=1,dive,oneof=mcq true-false short-answer multiple-select"`
	Difficulty    string         `json:"difficulty" validate:"required,oneof=easy medium hard mixed"`
	TimeLimit     int            `json:"timeLimit" validate:"min=0,max=180"`
	Language      string         `json:"language,omitempty" validate:"omitempty,oneof=english bangla"`
	Instructions  string         `json:"instructions,omitempty" validate:"max=500"`
}
