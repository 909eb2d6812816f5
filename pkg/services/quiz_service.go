package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/backsoul/shikkhapro/pkg/models"
	"github.com/backsoul/shikkhapro/pkg/redis"
	"github.com/backsoul/shikkhapro/pkg/store"
	"go.uber.org/zap"
)

const (
	defaultPage  = 1
	defaultLimit = 10
	maxLimit     = 100
)

// QuizService obtiene quizzes del backend usando Redis como caché. Las
// definiciones de quiz no cambian después de generadas.
type QuizService struct {
	redis   *redis.RedisClient
	backend QuizBackend
	ttl     time.Duration
	logger  *zap.Logger
}

// NewQuizService crea una nueva instancia del servicio de quizzes
func NewQuizService(redisClient *redis.RedisClient, backend QuizBackend, ttl time.Duration, logger *zap.Logger) *QuizService {
	return &QuizService{
		redis:   redisClient,
		backend: backend,
		ttl:     ttl,
		logger:  logger,
	}
}

// GetQuiz devuelve el quiz desde el caché o, si no está, desde el backend.
// Un quiz en caché de otro autor se vuelve a pedir al backend para que este
// decida el acceso.
func (s *QuizService) GetQuiz(ctx context.Context, session *store.Session, id string) (*models.Quiz, error) {
	cached, err := s.redis.GetQuiz(ctx, id)
	switch {
	case err == nil:
		if cached.CreatedBy == "" || cached.CreatedBy == userID(session) {
			s.logger.Debug("Quiz obtenido del caché", zap.String("quiz_id", id))
			return cached, nil
		}
	case errors.Is(err, redis.ErrNotFound):
	default:
		s.logger.Warn("Error leyendo quiz del caché", zap.String("quiz_id", id), zap.Error(err))
	}

	quiz, err := s.backend.GetQuiz(ctx, session.Token, id)
	if err != nil {
		return nil, err
	}
	if err := quiz.Validate(); err != nil {
		return nil, fmt.Errorf("quiz %s inválido: %w", id, err)
	}
	s.cache(ctx, quiz)
	return quiz, nil
}

// ListQuizzes lista los quizzes del usuario
func (s *QuizService) ListQuizzes(ctx context.Context, session *store.Session, params models.QuizListParams) (*models.QuizList, error) {
	if params.Page < 1 {
		params.Page = defaultPage
	}
	if params.Limit < 1 {
		params.Limit = defaultLimit
	}
	if params.Limit > maxLimit {
		params.Limit = maxLimit
	}
	return s.backend.ListQuizzes(ctx, session.Token, params)
}

// GenerateQuiz pide al backend un quiz nuevo y lo guarda en caché
func (s *QuizService) GenerateQuiz(ctx context.Context, session *store.Session, req models.GenerateQuizRequest) (*models.Quiz, error) {
	quiz, err := s.backend.GenerateQuiz(ctx, session.Token, req)
	if err != nil {
		return nil, err
	}
	if err := quiz.Validate(); err != nil {
		return nil, fmt.Errorf("quiz generado inválido: %w", err)
	}
	s.cache(ctx, quiz)
	s.logger.Info("Quiz generado",
		zap.String("quiz_id", quiz.ID),
		zap.String("subject", quiz.Subject),
		zap.Int("questions", len(quiz.Questions)),
	)
	return quiz, nil
}

// DeleteQuiz elimina el quiz en el backend y lo saca del caché
func (s *QuizService) DeleteQuiz(ctx context.Context, session *store.Session, id string) error {
	if err := s.backend.DeleteQuiz(ctx, session.Token, id); err != nil {
		return err
	}
	if err := s.redis.DeleteQuiz(ctx, id); err != nil {
		s.logger.Warn("Error eliminando quiz del caché", zap.String("quiz_id", id), zap.Error(err))
	}
	return nil
}

// Dashboard estadísticas del usuario
func (s *QuizService) Dashboard(ctx context.Context, session *store.Session) (*models.DashboardStats, error) {
	return s.backend.Dashboard(ctx, session.Token)
}

// CachedCount número de quizzes en caché
func (s *QuizService) CachedCount(ctx context.Context) (int, error) {
	return s.redis.GetQuizCount(ctx)
}

func (s *QuizService) cache(ctx context.Context, quiz *models.Quiz) {
	if err := s.redis.SaveQuiz(ctx, quiz, s.ttl); err != nil {
		s.logger.Warn("Error guardando quiz en caché", zap.String("quiz_id", quiz.ID), zap.Error(err))
	}
}

func userID(session *store.Session) string {
	if session.User == nil {
		return ""
	}
	return session.User.ID
}
