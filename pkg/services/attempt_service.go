package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/backsoul/shikkhapro/pkg/attempt"
	"github.com/backsoul/shikkhapro/pkg/models"
	"github.com/backsoul/shikkhapro/pkg/presenter"
	"github.com/backsoul/shikkhapro/pkg/store"
	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

const storeTimeout = 5 * time.Second

// AttemptTopic tópico del hub donde se publican los eventos del intento de
// una sesión
func AttemptTopic(sessionID string) string {
	return "attempt:" + sessionID
}

type activeAttempt struct {
	attemptID  string
	controller *attempt.Controller
	quiz       *models.Quiz
}

// AttemptService mantiene un controlador de intento por sesión
type AttemptService struct {
	mu       sync.Mutex
	attempts map[string]*activeAttempt

	quizzes           *QuizService
	sessions          *SessionService
	backend           AttemptBackend
	publisher         Publisher
	clock             clock.Clock
	autoSubmitTimeout time.Duration
	logger            *zap.Logger
}

// NewAttemptService crea una nueva instancia del servicio de intentos
func NewAttemptService(
	quizzes *QuizService,
	sessions *SessionService,
	backend AttemptBackend,
	publisher Publisher,
	clk clock.Clock,
	autoSubmitTimeout time.Duration,
	logger *zap.Logger,
) *AttemptService {
	if clk == nil {
		clk = clock.New()
	}
	s := &AttemptService{
		attempts:          make(map[string]*activeAttempt),
		quizzes:           quizzes,
		sessions:          sessions,
		backend:           backend,
		publisher:         publisher,
		clock:             clk,
		autoSubmitTimeout: autoSubmitTimeout,
		logger:            logger,
	}
	sessions.OnLogout(s.discard)
	return s
}

// Start registra el intento en el backend y crea su controlador. Un intento
// anterior de la misma sesión se descarta.
func (s *AttemptService) Start(ctx context.Context, session *store.Session, quizID string) (*attempt.Snapshot, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, session, quizID)
	if err != nil {
		return nil, err
	}

	started, err := s.backend.StartAttempt(ctx, session.Token, quiz.ID)
	if err != nil {
		return nil, err
	}

	sessionID := session.ID
	submitter := attempt.SubmitterFunc(func(ctx context.Context, req *models.SubmitRequest) (*models.Result, error) {
		// el token puede haber cambiado desde Start (nuevo login)
		current, err := s.sessions.Authorize(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		return s.backend.SubmitAttempt(ctx, current.Token, req)
	})
	controller := attempt.NewController(submitter,
		attempt.WithClock(s.clock),
		attempt.WithLogger(s.logger),
		attempt.WithListener(s.listener(session.ID)),
		attempt.WithAutoSubmitTimeout(s.autoSubmitTimeout),
	)
	if err := controller.Start(quiz, started.AttemptID, userID(session)); err != nil {
		return nil, err
	}

	s.mu.Lock()
	previous := s.attempts[session.ID]
	s.attempts[session.ID] = &activeAttempt{attemptID: started.AttemptID, controller: controller, quiz: quiz}
	s.mu.Unlock()

	if previous != nil {
		s.logger.Info("Reemplazando intento anterior",
			zap.String("session_id", session.ID),
			zap.String("attempt_id", previous.controller.AttemptID()),
		)
		previous.controller.Close()
	}

	if _, err := s.sessions.Dispatch(ctx, session.ID, store.AttemptStarted{AttemptID: started.AttemptID, QuizID: quiz.ID}); err != nil {
		s.logger.Warn("Error guardando intento activo", zap.String("session_id", session.ID), zap.Error(err))
	}

	snap := controller.Snapshot()
	return &snap, nil
}

// Snapshot estado del intento activo
func (s *AttemptService) Snapshot(ctx context.Context, session *store.Session) (*attempt.Snapshot, error) {
	active, err := s.active(ctx, session)
	if err != nil {
		return nil, err
	}
	snap := active.controller.Snapshot()
	return &snap, nil
}

// Answer decodifica el valor con el tipo de la pregunta y lo guarda
func (s *AttemptService) Answer(ctx context.Context, session *store.Session, req models.AnswerRequest) (*attempt.Snapshot, error) {
	active, err := s.active(ctx, session)
	if err != nil {
		return nil, err
	}
	q, ok := active.quiz.Question(req.QuestionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", attempt.ErrUnknownQuestion, req.QuestionID)
	}
	answer, err := models.DecodeAnswer(q.Type, req.Value)
	if err != nil {
		return nil, err
	}
	if err := active.controller.SetAnswer(q.ID, answer); err != nil {
		return nil, err
	}
	snap := active.controller.Snapshot()
	return &snap, nil
}

// Next avanza una pregunta. confirm es true cuando ya estaba en la última y
// el cliente debe confirmar el envío.
func (s *AttemptService) Next(ctx context.Context, session *store.Session) (*attempt.Snapshot, bool, error) {
	active, err := s.active(ctx, session)
	if err != nil {
		return nil, false, err
	}
	confirm, err := active.controller.Next()
	if err != nil {
		return nil, false, err
	}
	snap := active.controller.Snapshot()
	return &snap, confirm, nil
}

func (s *AttemptService) Previous(ctx context.Context, session *store.Session) (*attempt.Snapshot, error) {
	active, err := s.active(ctx, session)
	if err != nil {
		return nil, err
	}
	if err := active.controller.Previous(); err != nil {
		return nil, err
	}
	snap := active.controller.Snapshot()
	return &snap, nil
}

func (s *AttemptService) GoTo(ctx context.Context, session *store.Session, index int) (*attempt.Snapshot, error) {
	active, err := s.active(ctx, session)
	if err != nil {
		return nil, err
	}
	if err := active.controller.GoTo(index); err != nil {
		return nil, err
	}
	snap := active.controller.Snapshot()
	return &snap, nil
}

// ToggleFlag marca o desmarca la pregunta para revisión
func (s *AttemptService) ToggleFlag(ctx context.Context, session *store.Session, questionID string) (*attempt.Snapshot, bool, error) {
	active, err := s.active(ctx, session)
	if err != nil {
		return nil, false, err
	}
	flagged, err := active.controller.ToggleFlag(questionID)
	if err != nil {
		return nil, false, err
	}
	snap := active.controller.Snapshot()
	return &snap, flagged, nil
}

// Submit envía el intento y devuelve la vista del resultado. Calificado el
// intento, su controlador se libera y el resultado queda en
// /api/attempts/{id}/result.
func (s *AttemptService) Submit(ctx context.Context, session *store.Session) (*presenter.ResultView, error) {
	active, err := s.active(ctx, session)
	if err != nil {
		return nil, err
	}
	result, err := active.controller.Submit(ctx)
	if err != nil {
		return nil, err
	}
	return presenter.BuildResultView(active.quiz, result), nil
}

// Abandon descarta el intento activo sin enviarlo
func (s *AttemptService) Abandon(ctx context.Context, session *store.Session) error {
	s.mu.Lock()
	active := s.attempts[session.ID]
	delete(s.attempts, session.ID)
	s.mu.Unlock()

	if active == nil {
		return ErrNoActiveAttempt
	}
	attemptID := active.controller.AttemptID()
	active.controller.Close()
	if _, err := s.sessions.Dispatch(ctx, session.ID, store.AttemptAbandoned{AttemptID: attemptID}); err != nil {
		s.logger.Warn("Error limpiando intento activo", zap.String("session_id", session.ID), zap.Error(err))
	}
	s.logger.Info("Intento abandonado", zap.String("session_id", session.ID), zap.String("attempt_id", attemptID))
	return nil
}

// Result obtiene el resultado calificado de un intento. Sin la definición del
// quiz la vista se arma solo con lo que devuelve el backend.
func (s *AttemptService) Result(ctx context.Context, session *store.Session, attemptID string) (*presenter.ResultView, error) {
	result, err := s.backend.GetResult(ctx, session.Token, attemptID)
	if err != nil {
		return nil, err
	}
	var quiz *models.Quiz
	if result.QuizID != "" {
		quiz, err = s.quizzes.GetQuiz(ctx, session, result.QuizID)
		if err != nil {
			s.logger.Warn("No se pudo obtener el quiz del resultado",
				zap.String("attempt_id", attemptID),
				zap.String("quiz_id", result.QuizID),
				zap.Error(err),
			)
		}
	}
	return presenter.BuildResultView(quiz, result), nil
}

// discard cierra el intento de una sesión que perdió a su usuario. No toca
// la sesión: LoggedOut ya limpia el intento activo.
func (s *AttemptService) discard(sessionID string) {
	s.mu.Lock()
	active := s.attempts[sessionID]
	delete(s.attempts, sessionID)
	s.mu.Unlock()

	if active == nil {
		return
	}
	active.controller.Close()
	s.logger.Info("Intento descartado al cerrar sesión",
		zap.String("session_id", sessionID),
		zap.String("attempt_id", active.attemptID),
	)
}

// release quita el intento calificado si sigue siendo el de la sesión
func (s *AttemptService) release(sessionID, attemptID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if active := s.attempts[sessionID]; active != nil && active.attemptID == attemptID {
		delete(s.attempts, sessionID)
	}
}

// ActiveCount intentos con controlador en memoria
func (s *AttemptService) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.attempts)
}

// CloseAll detiene todos los temporizadores. Se usa al apagar el servidor.
func (s *AttemptService) CloseAll() {
	s.mu.Lock()
	attempts := s.attempts
	s.attempts = make(map[string]*activeAttempt)
	s.mu.Unlock()

	for _, active := range attempts {
		active.controller.Close()
	}
}

func (s *AttemptService) active(ctx context.Context, session *store.Session) (*activeAttempt, error) {
	s.mu.Lock()
	active := s.attempts[session.ID]
	s.mu.Unlock()
	if active != nil {
		return active, nil
	}
	// la sesión recuerda un intento cuyo controlador ya no existe (reinicio
	// del gateway): se limpia
	if session.ActiveAttemptID != "" {
		if _, err := s.sessions.Dispatch(ctx, session.ID, store.AttemptAbandoned{AttemptID: session.ActiveAttemptID}); err != nil && !errors.Is(err, store.ErrSessionNotFound) {
			s.logger.Warn("Error limpiando intento huérfano", zap.String("session_id", session.ID), zap.Error(err))
		}
	}
	return nil, ErrNoActiveAttempt
}

func (s *AttemptService) listener(sessionID string) func(attempt.Event) {
	topic := AttemptTopic(sessionID)
	return func(ev attempt.Event) {
		if s.publisher != nil {
			s.publisher.Publish(topic, string(ev.Type), ev)
		}
		if ev.Type != attempt.EventSubmitted {
			return
		}
		s.release(sessionID, ev.AttemptID)
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		if _, err := s.sessions.Dispatch(ctx, sessionID, store.AttemptFinished{AttemptID: ev.AttemptID}); err != nil {
			s.logger.Warn("Error registrando intento terminado",
				zap.String("session_id", sessionID),
				zap.String("attempt_id", ev.AttemptID),
				zap.Error(err),
			)
		}
	}
}
