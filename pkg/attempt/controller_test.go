package attempt_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/backsoul/shikkhapro/pkg/attempt"
	"github.com/backsoul/shikkhapro/pkg/models"
	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
)

// fakeScorer hace de servicio de calificación externo
type fakeScorer struct {
	mu       sync.Mutex
	quiz     *models.Quiz
	calls    int
	requests []*models.SubmitRequest
	release  chan struct{}
	errs     []error
}

func (f *fakeScorer) Submit(ctx context.Context, req *models.SubmitRequest) (*models.Result, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.requests = append(f.requests, req)
	release := f.release
	f.mu.Unlock()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if n <= len(f.errs) && f.errs[n-1] != nil {
		return nil, f.errs[n-1]
	}

	result := &models.Result{AttemptID: req.AttemptID, QuizID: req.QuizID, TimeSpent: req.TimeSpent}
	for _, q := range f.quiz.Questions {
		result.TotalPoints += q.Points
		answer, ok := req.Answers[q.ID]
		qr := models.QuestionResult{QuestionID: q.ID, UserAnswer: answer, CorrectAnswer: q.CorrectAnswer, Points: q.Points}
		switch {
		case !ok:
			result.Unanswered++
		case answer.Equal(q.CorrectAnswer):
			qr.IsCorrect = true
			qr.PointsEarned = q.Points
			result.Score += q.Points
			result.CorrectAnswers++
		default:
			result.IncorrectAnswers++
		}
		result.QuestionResults = append(result.QuestionResults, qr)
	}
	return result, nil
}

func (f *fakeScorer) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeScorer) LastRequest() *models.SubmitRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return nil
	}
	return f.requests[len(f.requests)-1]
}

// eventLog guarda los eventos emitidos
type eventLog struct {
	mu     sync.Mutex
	events []attempt.Event
}

func (l *eventLog) add(ev attempt.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) count(t attempt.EventType) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, ev := range l.events {
		if ev.Type == t {
			n++
		}
	}
	return n
}

func mcqQuiz(n, minutes int) *models.Quiz {
	quiz := &models.Quiz{ID: "quiz-1", Title: "Physics", TimeLimit: minutes}
	for i := 1; i <= n; i++ {
		quiz.Questions = append(quiz.Questions, models.Question{
			ID:            fmt.Sprintf("q%d", i),
			Question:      fmt.Sprintf("Question %d", i),
			Type:          models.QuestionTypeMCQ,
			Options:       []string{"A", "B", "C", "D"},
			CorrectAnswer: models.Choice("A"),
			Explanation:   "because",
			Points:        1,
		})
	}
	return quiz
}

func newController(t *testing.T, quiz *models.Quiz, scorer *fakeScorer) (*attempt.Controller, *clock.Mock, *eventLog) {
	t.Helper()
	mock := clock.NewMock()
	log := &eventLog{}
	scorer.quiz = quiz
	c := attempt.NewController(scorer,
		attempt.WithClock(mock),
		attempt.WithListener(log.add),
		attempt.WithAutoSubmitTimeout(5*time.Second),
	)
	t.Cleanup(c.Close)
	return c, mock, log
}

// advance mueve el reloj de a un segundo para que el ticker vea cada tick
func advance(mock *clock.Mock, seconds int) {
	for i := 0; i < seconds; i++ {
		mock.Add(time.Second)
	}
}

func waitState(t *testing.T, c *attempt.Controller, want attempt.State) {
	t.Helper()
	require.Eventually(t, func() bool { return c.State() == want }, 2*time.Second, 5*time.Millisecond,
		"estado esperado %s", want)
}

func TestIsCompleteAfterAnsweringEveryQuestion(t *testing.T) {
	for n := 1; n <= 6; n++ {
		t.Run(fmt.Sprintf("%d questions", n), func(t *testing.T) {
			quiz := mcqQuiz(n, 0)
			c, _, _ := newController(t, quiz, &fakeScorer{})
			require.NoError(t, c.Start(quiz, "attempt-1", "user-1"))

			for i, q := range quiz.Questions {
				require.False(t, c.IsComplete())
				require.NoError(t, c.SetAnswer(q.ID, models.Choice("B")))
				answered, total := c.Progress()
				require.Equal(t, i+1, answered)
				require.Equal(t, n, total)
			}
			require.True(t, c.IsComplete())
		})
	}
}

func TestNavigationStaysInBounds(t *testing.T) {
	quiz := mcqQuiz(3, 0)
	c, _, log := newController(t, quiz, &fakeScorer{})
	require.NoError(t, c.Start(quiz, "attempt-1", "user-1"))

	require.NoError(t, c.Previous())
	require.Equal(t, 0, c.Snapshot().Index)

	moves := []string{"next", "next", "next", "next", "prev", "next", "prev", "prev", "prev", "prev", "next"}
	for _, m := range moves {
		if m == "next" {
			_, err := c.Next()
			require.NoError(t, err)
		} else {
			require.NoError(t, c.Previous())
		}
		idx := c.Snapshot().Index
		require.GreaterOrEqual(t, idx, 0)
		require.LessOrEqual(t, idx, 2)
	}

	require.NoError(t, c.GoTo(2))
	confirm, err := c.Next()
	require.NoError(t, err)
	require.True(t, confirm)
	require.Equal(t, 2, c.Snapshot().Index)
	require.Equal(t, attempt.StateInProgress, c.State())
	require.GreaterOrEqual(t, log.count(attempt.EventConfirm), 1)

	confirm, err = c.Next()
	require.NoError(t, err)
	require.True(t, confirm)

	require.NoError(t, c.GoTo(0))
	confirm, err = c.Next()
	require.NoError(t, err)
	require.False(t, confirm)
	require.Equal(t, 1, c.Snapshot().Index)

	require.ErrorIs(t, c.GoTo(3), attempt.ErrIndexOutOfRange)
	require.ErrorIs(t, c.GoTo(-1), attempt.ErrIndexOutOfRange)
}

func TestUntimedQuizNeverStartsTimer(t *testing.T) {
	for _, minutes := range []int{0, -5} {
		quiz := mcqQuiz(2, minutes)
		scorer := &fakeScorer{}
		c, mock, log := newController(t, quiz, scorer)
		require.NoError(t, c.Start(quiz, "attempt-1", "user-1"))

		snap := c.Snapshot()
		require.False(t, snap.Timed)
		require.Equal(t, 0, snap.Remaining)

		mock.Add(3 * time.Hour)
		advance(mock, 5)

		require.Equal(t, attempt.StateInProgress, c.State())
		require.Equal(t, 0, scorer.Calls())
		require.Equal(t, 0, log.count(attempt.EventTick))
	}
}

func TestTimedQuizCountsDownOnePerSecond(t *testing.T) {
	quiz := mcqQuiz(2, 2)
	c, mock, log := newController(t, quiz, &fakeScorer{})
	require.NoError(t, c.Start(quiz, "attempt-1", "user-1"))

	snap := c.Snapshot()
	require.True(t, snap.Timed)
	require.Equal(t, 120, snap.Remaining)

	for elapsed := 1; elapsed <= 10; elapsed++ {
		mock.Add(time.Second)
		require.Equal(t, 120-elapsed, c.Remaining())
	}
	require.Eventually(t, func() bool { return log.count(attempt.EventTick) > 0 }, time.Second, 5*time.Millisecond)

	// los segundos parciales no cuentan
	mock.Add(500 * time.Millisecond)
	require.Equal(t, 110, c.Remaining())
}

func TestDoubleSubmitSendsOnce(t *testing.T) {
	quiz := mcqQuiz(2, 0)
	scorer := &fakeScorer{release: make(chan struct{})}
	c, _, _ := newController(t, quiz, scorer)
	require.NoError(t, c.Start(quiz, "attempt-1", "user-1"))
	require.NoError(t, c.SetAnswer("q1", models.Choice("A")))

	var wg sync.WaitGroup
	results := make([]*models.Result, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.Submit(context.Background())
		}(i)
	}

	waitState(t, c, attempt.StateSubmitting)
	close(scorer.release)
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	require.Same(t, results[0], results[1])
	require.Equal(t, 1, scorer.Calls())

	again, err := c.Submit(context.Background())
	require.NoError(t, err)
	require.Same(t, results[0], again)
	require.Equal(t, 1, scorer.Calls())
}

func TestTimerAndManualSubmitSendOnce(t *testing.T) {
	quiz := mcqQuiz(2, 1)
	scorer := &fakeScorer{release: make(chan struct{})}
	c, mock, _ := newController(t, quiz, scorer)
	require.NoError(t, c.Start(quiz, "attempt-1", "user-1"))

	done := make(chan error, 1)
	go func() {
		advance(mock, 60)
		_, err := c.Submit(context.Background())
		done <- err
	}()

	waitState(t, c, attempt.StateSubmitting)
	close(scorer.release)
	require.NoError(t, <-done)

	waitState(t, c, attempt.StateCompleted)
	require.Equal(t, 1, scorer.Calls())
}

func TestScoringComesFromServer(t *testing.T) {
	quiz := &models.Quiz{ID: "quiz-1", Questions: []models.Question{
		{ID: "q1", Type: models.QuestionTypeMCQ, Options: []string{"A", "B", "C"}, CorrectAnswer: models.Choice("A"), Points: 1},
		{ID: "q2", Type: models.QuestionTypeMCQ, Options: []string{"A", "B", "C"}, CorrectAnswer: models.Choice("C"), Points: 1},
	}}
	scorer := &fakeScorer{}
	c, _, _ := newController(t, quiz, scorer)
	require.NoError(t, c.Start(quiz, "attempt-1", "user-1"))
	require.NoError(t, c.SetAnswer("q1", models.Choice("A")))
	require.NoError(t, c.SetAnswer("q2", models.Choice("B")))

	result, err := c.Submit(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, result.CorrectAnswers)
	require.Equal(t, 1, result.IncorrectAnswers)

	req := scorer.LastRequest()
	require.Equal(t, "quiz-1", req.QuizID)
	require.Equal(t, "attempt-1", req.AttemptID)
	require.True(t, req.Answers["q1"].Equal(models.Choice("A")))
	require.True(t, req.Answers["q2"].Equal(models.Choice("B")))
	require.False(t, req.AutoSubmitted)

	a := c.Attempt()
	require.True(t, a.IsCompleted)
	require.NotNil(t, a.CompletedAt)
	require.Equal(t, 1, a.CorrectAnswers)
}

func TestAutoSubmitWhenTimeRunsOut(t *testing.T) {
	quiz := mcqQuiz(3, 1)
	scorer := &fakeScorer{}
	c, mock, log := newController(t, quiz, scorer)
	require.NoError(t, c.Start(quiz, "attempt-1", "user-1"))
	require.NoError(t, c.SetAnswer("q2", models.Choice("D")))

	advance(mock, 59)
	require.Equal(t, 1, c.Remaining())
	require.Equal(t, 0, scorer.Calls())

	advance(mock, 1)
	waitState(t, c, attempt.StateCompleted)
	require.Equal(t, 1, scorer.Calls())

	req := scorer.LastRequest()
	require.True(t, req.AutoSubmitted)
	require.Len(t, req.Answers, 1)
	require.Equal(t, 60, req.TimeSpent)
	require.Eventually(t, func() bool { return log.count(attempt.EventSubmitted) == 1 }, time.Second, 5*time.Millisecond)

	snap := c.Snapshot()
	require.True(t, snap.AutoSubmitted)
	require.Equal(t, 0, snap.Remaining)
	require.Equal(t, 2, snap.Result.Unanswered)
}

func TestAutoSubmitWithNoAnswers(t *testing.T) {
	quiz := mcqQuiz(2, 1)
	scorer := &fakeScorer{}
	c, mock, _ := newController(t, quiz, scorer)
	require.NoError(t, c.Start(quiz, "attempt-1", "user-1"))

	advance(mock, 60)
	waitState(t, c, attempt.StateCompleted)
	require.Equal(t, 1, scorer.Calls())
	require.Empty(t, scorer.LastRequest().Answers)
}

func TestMultiSelectAnswerOverwrites(t *testing.T) {
	quiz := &models.Quiz{ID: "quiz-1", Questions: []models.Question{
		{ID: "q1", Type: models.QuestionTypeMultipleSelect, Options: []string{"A", "B", "C"}, Points: 2},
	}}
	scorer := &fakeScorer{}
	c, _, _ := newController(t, quiz, scorer)
	require.NoError(t, c.Start(quiz, "attempt-1", "user-1"))

	require.NoError(t, c.SetAnswer("q1", models.MultiChoice("A", "C")))
	require.NoError(t, c.SetAnswer("q1", models.MultiChoice("A")))
	require.Equal(t, []string{"A"}, c.Snapshot().Answers["q1"].Choices())

	_, err := c.Submit(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"A"}, scorer.LastRequest().Answers["q1"].Choices())
}

func TestSetAnswerChecksShapeOnly(t *testing.T) {
	quiz := mcqQuiz(2, 0)
	c, _, _ := newController(t, quiz, &fakeScorer{})
	require.NoError(t, c.Start(quiz, "attempt-1", "user-1"))

	require.ErrorIs(t, c.SetAnswer("q9", models.Choice("A")), attempt.ErrUnknownQuestion)
	require.ErrorIs(t, c.SetAnswer("q1", models.MultiChoice("A")), models.ErrAnswerKind)
	require.ErrorIs(t, c.SetAnswer("q1", models.Choice("E")), models.ErrUnknownOption)
	// una respuesta incorrecta se guarda igual
	require.NoError(t, c.SetAnswer("q1", models.Choice("D")))
	require.False(t, c.IsComplete())
}

func TestStartRequiresQuestions(t *testing.T) {
	c := attempt.NewController(&fakeScorer{})
	defer c.Close()

	require.ErrorIs(t, c.Start(nil, "attempt-1", "user-1"), attempt.ErrEmptyQuiz)
	require.ErrorIs(t, c.Start(&models.Quiz{ID: "quiz-1"}, "attempt-1", "user-1"), attempt.ErrEmptyQuiz)
	require.Equal(t, attempt.StateNotStarted, c.State())

	require.ErrorIs(t, c.SetAnswer("q1", models.Choice("A")), attempt.ErrNotStarted)
	_, err := c.Next()
	require.ErrorIs(t, err, attempt.ErrNotStarted)
	_, err = c.Submit(context.Background())
	require.ErrorIs(t, err, attempt.ErrNotStarted)

	quiz := mcqQuiz(1, 0)
	require.NoError(t, c.Start(quiz, "attempt-1", "user-1"))
	require.ErrorIs(t, c.Start(quiz, "attempt-2", "user-1"), attempt.ErrAlreadyStarted)
}

func TestFailedSubmissionKeepsErrorAndAllowsRetry(t *testing.T) {
	quiz := mcqQuiz(2, 0)
	boom := errors.New("backend caído")
	scorer := &fakeScorer{errs: []error{boom}}
	c, _, log := newController(t, quiz, scorer)
	require.NoError(t, c.Start(quiz, "attempt-1", "user-1"))
	require.NoError(t, c.SetAnswer("q1", models.Choice("A")))

	_, err := c.Submit(context.Background())
	require.ErrorIs(t, err, boom)
	require.Equal(t, attempt.StateFailed, c.State())
	require.False(t, c.Attempt().IsCompleted)
	require.Equal(t, boom.Error(), c.Snapshot().Error)
	require.Equal(t, 1, log.count(attempt.EventFailed))

	result, err := c.Submit(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result)
	require.Equal(t, attempt.StateCompleted, c.State())
	require.Equal(t, 2, scorer.Calls())
	require.Empty(t, c.Snapshot().Error)
}

func TestMutationAfterFailureResumesAttempt(t *testing.T) {
	quiz := mcqQuiz(2, 1)
	scorer := &fakeScorer{errs: []error{errors.New("timeout")}}
	c, mock, _ := newController(t, quiz, scorer)
	require.NoError(t, c.Start(quiz, "attempt-1", "user-1"))

	advance(mock, 10)
	_, err := c.Submit(context.Background())
	require.Error(t, err)
	require.Equal(t, attempt.StateFailed, c.State())
	require.Equal(t, 50, c.Remaining())

	// la cuenta regresiva sigue desde donde quedó
	mock.Add(time.Second)
	require.Equal(t, 49, c.Remaining())

	require.NoError(t, c.SetAnswer("q2", models.Choice("B")))
	require.Equal(t, attempt.StateInProgress, c.State())
	require.Empty(t, c.Snapshot().Error)

	advance(mock, 49)
	waitState(t, c, attempt.StateCompleted)
	require.Equal(t, 2, scorer.Calls())
	require.True(t, scorer.LastRequest().AutoSubmitted)
}

func TestExpiredFailureIsNotResubmitted(t *testing.T) {
	quiz := mcqQuiz(2, 1)
	scorer := &fakeScorer{errs: []error{errors.New("sin conexión")}}
	c, mock, _ := newController(t, quiz, scorer)
	require.NoError(t, c.Start(quiz, "attempt-1", "user-1"))

	advance(mock, 60)
	waitState(t, c, attempt.StateFailed)
	require.Equal(t, 0, c.Remaining())

	advance(mock, 120)
	require.Equal(t, 1, scorer.Calls())
	require.Equal(t, attempt.StateFailed, c.State())

	_, err := c.Submit(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, scorer.Calls())
}

func TestMutationFrozenWhileSubmitting(t *testing.T) {
	quiz := mcqQuiz(2, 0)
	scorer := &fakeScorer{release: make(chan struct{})}
	c, _, _ := newController(t, quiz, scorer)
	require.NoError(t, c.Start(quiz, "attempt-1", "user-1"))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.Submit(context.Background())
	}()
	waitState(t, c, attempt.StateSubmitting)

	require.ErrorIs(t, c.SetAnswer("q1", models.Choice("A")), attempt.ErrFrozen)
	_, err := c.Next()
	require.ErrorIs(t, err, attempt.ErrFrozen)
	_, err = c.ToggleFlag("q1")
	require.ErrorIs(t, err, attempt.ErrFrozen)

	close(scorer.release)
	<-done
	require.ErrorIs(t, c.Previous(), attempt.ErrFrozen)
}

func TestWaitingSubmitHonoursContext(t *testing.T) {
	quiz := mcqQuiz(1, 0)
	scorer := &fakeScorer{release: make(chan struct{})}
	c, _, _ := newController(t, quiz, scorer)
	require.NoError(t, c.Start(quiz, "attempt-1", "user-1"))

	go func() { _, _ = c.Submit(context.Background()) }()
	waitState(t, c, attempt.StateSubmitting)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Submit(ctx)
	require.ErrorIs(t, err, context.Canceled)

	close(scorer.release)
	waitState(t, c, attempt.StateCompleted)
	require.Equal(t, 1, scorer.Calls())
}

func TestToggleFlagKeepsQuizOrder(t *testing.T) {
	quiz := mcqQuiz(4, 0)
	scorer := &fakeScorer{}
	c, _, _ := newController(t, quiz, scorer)
	require.NoError(t, c.Start(quiz, "attempt-1", "user-1"))

	for _, id := range []string{"q3", "q1", "q4"} {
		flagged, err := c.ToggleFlag(id)
		require.NoError(t, err)
		require.True(t, flagged)
	}
	flagged, err := c.ToggleFlag("q4")
	require.NoError(t, err)
	require.False(t, flagged)
	require.Equal(t, []string{"q1", "q3"}, c.Snapshot().Flagged)

	_, err = c.ToggleFlag("nope")
	require.ErrorIs(t, err, attempt.ErrUnknownQuestion)

	_, err = c.Submit(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"q1", "q3"}, scorer.LastRequest().Flagged)
}

func TestCloseStopsTimer(t *testing.T) {
	quiz := mcqQuiz(2, 1)
	scorer := &fakeScorer{}
	c, mock, log := newController(t, quiz, scorer)
	require.NoError(t, c.Start(quiz, "attempt-1", "user-1"))

	advance(mock, 5)
	c.Close()
	require.Equal(t, attempt.StateClosed, c.State())
	remaining := c.Remaining()

	advance(mock, 120)
	require.Equal(t, 0, scorer.Calls())
	require.Equal(t, remaining, c.Remaining())
	require.Equal(t, 1, log.count(attempt.EventClosed))

	require.ErrorIs(t, c.SetAnswer("q1", models.Choice("A")), attempt.ErrClosed)
	_, err := c.Submit(context.Background())
	require.ErrorIs(t, err, attempt.ErrClosed)

	c.Close()
	require.Equal(t, 1, log.count(attempt.EventClosed))
}

func TestSnapshotHidesSolutionUntilCompleted(t *testing.T) {
	quiz := mcqQuiz(1, 0)
	c, _, _ := newController(t, quiz, &fakeScorer{})
	require.NoError(t, c.Start(quiz, "attempt-1", "user-1"))

	snap := c.Snapshot()
	require.Equal(t, "q1", snap.Question.ID)
	require.True(t, snap.Question.CorrectAnswer.IsZero())
	require.Empty(t, snap.Question.Explanation)
	require.False(t, quiz.Questions[0].CorrectAnswer.IsZero())

	_, err := c.Submit(context.Background())
	require.NoError(t, err)
	snap = c.Snapshot()
	require.Equal(t, "A", snap.Question.CorrectAnswer.Text())
	require.NotNil(t, snap.Result)
}
