package models

import "time"

// QuestionResult resultado calificado por el servidor para una pregunta
type QuestionResult struct {
	QuestionID    string `json:"questionId"`
	UserAnswer    Answer `json:"userAnswer"`
	CorrectAnswer Answer `json:"correctAnswer"`
	IsCorrect     bool   `json:"isCorrect"`
	PointsEarned  int    `json:"pointsEarned"`
	Points        int    `json:"points"`
	Explanation   string `json:"explanation,omitempty"`
}

// Result calificación de un intento completado. Solo lectura.
type Result struct {
	AttemptID        string           `json:"attemptId"`
	QuizID           string           `json:"quizId"`
	Score            int              `json:"score"`
	TotalPoints      int              `json:"totalPoints"`
	Percentage       float64          `json:"percentage"`
	Grade            string           `json:"grade"`
	CorrectAnswers   int              `json:"correctAnswers"`
	IncorrectAnswers int              `json:"incorrectAnswers"`
	Unanswered       int              `json:"unanswered"`
	TimeSpent        int              `json:"timeSpent"`
	QuestionResults  []QuestionResult `json:"questionResults"`
	Recommendations  []string         `json:"recommendations,omitempty"`
	AutoSubmitted    bool             `json:"autoSubmitted,omitempty"`
	CompletedAt      time.Time        `json:"completedAt"`
}

// QuestionResult busca el resultado de una pregunta por id
func (r *Result) QuestionResult(questionID string) (*QuestionResult, bool) {
	for i := range r.QuestionResults {
		if r.QuestionResults[i].QuestionID == questionID {
			return &r.QuestionResults[i], true
		}
	}
	return nil, false
}
