package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/backsoul/shikkhapro/pkg/models"
	"github.com/redis/go-redis/v9"
)

// ErrNotFound la clave no existe o expiró
var ErrNotFound = errors.New("clave no encontrada en redis")

const (
	quizKeyPrefix = "shikkha:quiz:"
	quizIDsKey    = "shikkha:quiz_ids"
)

// RedisClient estructura para manejar conexiones con Redis
type RedisClient struct {
	client *redis.Client
}

// NewRedisClient crea una nueva instancia del cliente Redis y verifica la conexión
func NewRedisClient(ctx context.Context, addr, password string, db int) (*RedisClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("error conectando a Redis en %s: %w", addr, err)
	}

	return &RedisClient{client: rdb}, nil
}

// SetJSON guarda un valor serializado; ttl 0 = sin expiración
func (r *RedisClient) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("error serializando %s: %w", key, err)
	}
	return r.client.Set(ctx, key, data, ttl).Err()
}

// GetJSON lee y deserializa un valor. Devuelve ErrNotFound si no existe.
func (r *RedisClient) GetJSON(ctx context.Context, key string, dst interface{}) error {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return fmt.Errorf("error obteniendo %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("error deserializando %s: %w", key, err)
	}
	return nil
}

// Delete elimina claves
func (r *RedisClient) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

// Expire renueva el TTL de una clave
func (r *RedisClient) Expire(ctx context.Context, key string, ttl time.Duration) error {
	ok, err := r.client.Expire(ctx, key, ttl).Result()
	if err != nil {
		return fmt.Errorf("error renovando %s: %w", key, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return nil
}

func (r *RedisClient) AddToSet(ctx context.Context, key string, members ...string) error {
	values := make([]interface{}, len(members))
	for i, m := range members {
		values[i] = m
	}
	return r.client.SAdd(ctx, key, values...).Err()
}

func (r *RedisClient) RemoveFromSet(ctx context.Context, key string, members ...string) error {
	values := make([]interface{}, len(members))
	for i, m := range members {
		values[i] = m
	}
	return r.client.SRem(ctx, key, values...).Err()
}

func (r *RedisClient) GetSetMembers(ctx context.Context, key string) ([]string, error) {
	members, err := r.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("error obteniendo miembros de %s: %w", key, err)
	}
	return members, nil
}

// GetKeysByPattern recorre las claves con SCAN
func (r *RedisClient) GetKeysByPattern(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := r.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("error buscando claves %s: %w", pattern, err)
	}
	return keys, nil
}

// SaveQuiz guarda la definición de un quiz en el caché
func (r *RedisClient) SaveQuiz(ctx context.Context, quiz *models.Quiz, ttl time.Duration) error {
	if err := r.SetJSON(ctx, quizKeyPrefix+quiz.ID, quiz, ttl); err != nil {
		return err
	}
	return r.AddToSet(ctx, quizIDsKey, quiz.ID)
}

// GetQuiz obtiene un quiz del caché
func (r *RedisClient) GetQuiz(ctx context.Context, id string) (*models.Quiz, error) {
	var quiz models.Quiz
	if err := r.GetJSON(ctx, quizKeyPrefix+id, &quiz); err != nil {
		if errors.Is(err, ErrNotFound) {
			// expiró: se limpia el índice
			_ = r.RemoveFromSet(ctx, quizIDsKey, id)
		}
		return nil, err
	}
	return &quiz, nil
}

// DeleteQuiz saca un quiz del caché
func (r *RedisClient) DeleteQuiz(ctx context.Context, id string) error {
	if err := r.Delete(ctx, quizKeyPrefix+id); err != nil {
		return fmt.Errorf("error eliminando quiz %s: %w", id, err)
	}
	return r.RemoveFromSet(ctx, quizIDsKey, id)
}

// GetQuizCount número de quizzes en caché
func (r *RedisClient) GetQuizCount(ctx context.Context) (int, error) {
	count, err := r.client.SCard(ctx, quizIDsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("error contando quizzes: %w", err)
	}
	return int(count), nil
}

// ClearQuizzes vacía el caché de quizzes
func (r *RedisClient) ClearQuizzes(ctx context.Context) error {
	ids, err := r.GetSetMembers(ctx, quizIDsKey)
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, quizKeyPrefix+id)
	}
	keys = append(keys, quizIDsKey)
	return r.Delete(ctx, keys...)
}

// Close cierra la conexión con Redis
func (r *RedisClient) Close() error {
	return r.client.Close()
}

// HealthCheck verifica que Redis esté funcionando
func (r *RedisClient) HealthCheck(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}
