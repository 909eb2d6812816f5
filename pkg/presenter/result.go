package presenter

import (
	"fmt"
	"time"

	"github.com/backsoul/shikkhapro/pkg/models"
)

// QuestionStatus estado de una pregunta en la vista de resultados
type QuestionStatus string

const (
	StatusCorrect    QuestionStatus = "correct"
	StatusIncorrect  QuestionStatus = "incorrect"
	StatusUnanswered QuestionStatus = "unanswered"
	StatusUngraded   QuestionStatus = "ungraded"
)

type QuestionView struct {
	Number        int            `json:"number"`
	QuestionID    string         `json:"questionId"`
	Prompt        string         `json:"prompt"`
	Type          string         `json:"type"`
	Options       []string       `json:"options,omitempty"`
	UserAnswer    models.Answer  `json:"userAnswer"`
	CorrectAnswer models.Answer  `json:"correctAnswer"`
	Status        QuestionStatus `json:"status"`
	Explanation   string         `json:"explanation,omitempty"`
	PointsEarned  int            `json:"pointsEarned"`
	Points        int            `json:"points"`
}

type Summary struct {
	Score           int      `json:"score"`
	TotalPoints     int      `json:"totalPoints"`
	Percentage      float64  `json:"percentage"`
	Grade           string   `json:"grade"`
	Correct         int      `json:"correct"`
	Incorrect       int      `json:"incorrect"`
	Unanswered      int      `json:"unanswered"`
	TimeSpent       int      `json:"timeSpent"`
	TimeSpentText   string   `json:"timeSpentText"`
	AutoSubmitted   bool     `json:"autoSubmitted"`
	Recommendations []string `json:"recommendations,omitempty"`
}

// ResultView resultado listo para mostrar
type ResultView struct {
	AttemptID   string         `json:"attemptId"`
	QuizID      string         `json:"quizId"`
	QuizTitle   string         `json:"quizTitle"`
	Subject     string         `json:"subject,omitempty"`
	Summary     Summary        `json:"summary"`
	Questions   []QuestionView `json:"questions"`
	CompletedAt time.Time      `json:"completedAt"`
}

// BuildResultView une las preguntas del quiz con la calificación del
// servidor, en el orden del quiz. No califica nada. Si quiz es nil se usa el
// orden del resultado.
func BuildResultView(quiz *models.Quiz, result *models.Result) *ResultView {
	view := &ResultView{
		AttemptID: result.AttemptID,
		QuizID:    result.QuizID,
		Summary: Summary{
			Score:           result.Score,
			TotalPoints:     result.TotalPoints,
			Percentage:      result.Percentage,
			Grade:           result.Grade,
			Correct:         result.CorrectAnswers,
			Incorrect:       result.IncorrectAnswers,
			Unanswered:      result.Unanswered,
			TimeSpent:       result.TimeSpent,
			TimeSpentText:   FormatDuration(result.TimeSpent),
			AutoSubmitted:   result.AutoSubmitted,
			Recommendations: result.Recommendations,
		},
		CompletedAt: result.CompletedAt,
	}

	if quiz == nil {
		for i := range result.QuestionResults {
			qr := &result.QuestionResults[i]
			view.Questions = append(view.Questions, fromResult(i+1, nil, qr))
		}
		return view
	}

	view.QuizTitle = quiz.Title
	view.Subject = quiz.Subject
	for i := range quiz.Questions {
		q := &quiz.Questions[i]
		qr, ok := result.QuestionResult(q.ID)
		if !ok {
			view.Questions = append(view.Questions, QuestionView{
				Number:        i + 1,
				QuestionID:    q.ID,
				Prompt:        q.Question,
				Type:          string(q.Type),
				Options:       q.Options,
				CorrectAnswer: q.CorrectAnswer,
				Status:        StatusUngraded,
				Explanation:   q.Explanation,
				Points:        q.Points,
			})
			continue
		}
		view.Questions = append(view.Questions, fromResult(i+1, q, qr))
	}
	return view
}

func fromResult(number int, q *models.Question, qr *models.QuestionResult) QuestionView {
	v := QuestionView{
		Number:        number,
		QuestionID:    qr.QuestionID,
		UserAnswer:    qr.UserAnswer,
		CorrectAnswer: qr.CorrectAnswer,
		Explanation:   qr.Explanation,
		PointsEarned:  qr.PointsEarned,
		Points:        qr.Points,
	}
	switch {
	case qr.IsCorrect:
		v.Status = StatusCorrect
	case qr.UserAnswer.IsZero():
		v.Status = StatusUnanswered
	default:
		v.Status = StatusIncorrect
	}
	if q == nil {
		return v
	}

	v.Prompt = q.Question
	v.Type = string(q.Type)
	v.Options = q.Options
	// el resultado llega sin tipo: se normaliza con el tipo de la pregunta
	if a, err := v.UserAnswer.As(q.Type); err == nil {
		v.UserAnswer = a
	}
	if v.CorrectAnswer.IsZero() {
		v.CorrectAnswer = q.CorrectAnswer
	} else if a, err := v.CorrectAnswer.As(q.Type); err == nil {
		v.CorrectAnswer = a
	}
	if v.Explanation == "" {
		v.Explanation = q.Explanation
	}
	if v.Points == 0 {
		v.Points = q.Points
	}
	return v
}

// FormatDuration convierte segundos en "1h 05m 09s", "4m 05s" o "45s"
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %02dm %02ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %02ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}
