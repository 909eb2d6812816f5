package handlers

import (
	"fmt"

	"github.com/backsoul/shikkhapro/pkg/redis"
	"github.com/backsoul/shikkhapro/pkg/services"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// HealthHandler estado del gateway
type HealthHandler struct {
	redis    *redis.RedisClient
	quizzes  *services.QuizService
	attempts *services.AttemptService
	logger   *zap.Logger
}

func NewHealthHandler(redisClient *redis.RedisClient, quizzes *services.QuizService, attempts *services.AttemptService, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		redis:    redisClient,
		quizzes:  quizzes,
		attempts: attempts,
		logger:   logger,
	}
}

// HealthCheck maneja GET /api/health
func (h *HealthHandler) HealthCheck(ctx *fasthttp.RequestCtx) {
	if err := h.redis.HealthCheck(ctx); err != nil {
		h.logger.Warn("Redis no responde", zap.Error(err))
		respondWithError(ctx, fasthttp.StatusServiceUnavailable, fmt.Sprintf("Servicio no disponible: %v", err))
		return
	}

	cached, err := h.quizzes.CachedCount(ctx)
	if err != nil {
		h.logger.Warn("Error contando quizzes en caché", zap.Error(err))
	}

	respondWithSuccess(ctx, map[string]interface{}{
		"status":         "healthy",
		"redis":          "connected",
		"cachedQuizzes":  cached,
		"activeAttempts": h.attempts.ActiveCount(),
	}, "Servicio funcionando correctamente")
}
