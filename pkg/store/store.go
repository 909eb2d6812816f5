package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/backsoul/shikkhapro/pkg/redis"
	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	sessionKeyPrefix  = "shikkha:session:"
	activeSessionsKey = "shikkha:active_sessions"
	defaultTheme      = "system"
)

var ErrSessionNotFound = errors.New("sesión no encontrada")

// Store guarda las sesiones en Redis con TTL
type Store struct {
	redis  *redis.RedisClient
	ttl    time.Duration
	clock  clock.Clock
	logger *zap.Logger
}

func NewStore(redisClient *redis.RedisClient, ttl time.Duration, clk clock.Clock, logger *zap.Logger) *Store {
	if clk == nil {
		clk = clock.New()
	}
	return &Store{redis: redisClient, ttl: ttl, clock: clk, logger: logger}
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

// Create crea una sesión anónima
func (s *Store) Create(ctx context.Context) (*Session, error) {
	now := s.clock.Now()
	session := &Session{
		ID:        uuid.New().String(),
		Theme:     defaultTheme,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.save(ctx, session); err != nil {
		return nil, err
	}
	if err := s.redis.AddToSet(ctx, activeSessionsKey, session.ID); err != nil {
		s.logger.Warn("Error registrando sesión activa", zap.String("session_id", session.ID), zap.Error(err))
	}
	s.logger.Debug("Sesión creada", zap.String("session_id", session.ID))
	return session, nil
}

// Get obtiene una sesión y renueva su TTL
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, ErrSessionNotFound
	}
	var session Session
	if err := s.redis.GetJSON(ctx, sessionKey(id), &session); err != nil {
		if errors.Is(err, redis.ErrNotFound) {
			_ = s.redis.RemoveFromSet(ctx, activeSessionsKey, id)
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("error obteniendo sesión: %w", err)
	}
	if err := s.redis.Expire(ctx, sessionKey(id), s.ttlFor(&session)); err != nil && !errors.Is(err, redis.ErrNotFound) {
		s.logger.Warn("Error renovando TTL de sesión", zap.String("session_id", id), zap.Error(err))
	}
	return &session, nil
}

// Dispatch carga la sesión, aplica las acciones y la guarda
func (s *Store) Dispatch(ctx context.Context, id string, actions ...Action) (*Session, error) {
	session, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	next := *session
	now := s.clock.Now()
	for _, a := range actions {
		next = Reduce(next, a, now)
	}
	if err := s.save(ctx, &next); err != nil {
		return nil, err
	}
	return &next, nil
}

// Delete elimina la sesión
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.redis.Delete(ctx, sessionKey(id)); err != nil {
		return fmt.Errorf("error eliminando sesión: %w", err)
	}
	return s.redis.RemoveFromSet(ctx, activeSessionsKey, id)
}

// ActiveSessions ids de sesiones registradas
func (s *Store) ActiveSessions(ctx context.Context) ([]string, error) {
	return s.redis.GetSetMembers(ctx, activeSessionsKey)
}

func (s *Store) save(ctx context.Context, session *Session) error {
	if err := s.redis.SetJSON(ctx, sessionKey(session.ID), session, s.ttlFor(session)); err != nil {
		return fmt.Errorf("error guardando sesión: %w", err)
	}
	return nil
}

// ttlFor no deja que la sesión viva más que el token del backend
func (s *Store) ttlFor(session *Session) time.Duration {
	ttl := s.ttl
	if session.TokenExpiresAt != nil {
		left := session.TokenExpiresAt.Sub(s.clock.Now())
		if left > 0 && left < ttl {
			ttl = left
		}
	}
	return ttl
}
