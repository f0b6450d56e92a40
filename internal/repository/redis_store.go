package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"storyteller-bot/internal/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "storyteller:"

var (
	_ ProfileRepository = (*RedisProfileRepository)(nil)
	_ StatsRepository   = (*RedisStatsRepository)(nil)
)

// redisJSON хранит значение пользователя как JSON-строку под ключом storyteller:<kind>:<userID>.
type redisJSON[V any] struct {
	client *redis.Client
	kind   string
	logger *zap.Logger
}

func (r *redisJSON[V]) key(userID int64) string {
	return keyPrefix + r.kind + ":" + strconv.FormatInt(userID, 10)
}

func (r *redisJSON[V]) get(ctx context.Context, userID int64) (V, error) {
	var v V
	raw, err := r.client.Get(ctx, r.key(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return v, models.ErrNotFound
		}
		r.logger.Error("Failed to get value from redis", zap.Int64("userID", userID), zap.Error(err))
		return v, fmt.Errorf("failed to get %s from redis: %w", r.kind, err)
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		r.logger.Error("Corrupted value in redis", zap.Int64("userID", userID), zap.Error(err))
		return v, fmt.Errorf("failed to decode %s: %w", r.kind, err)
	}
	return v, nil
}

func (r *redisJSON[V]) set(ctx context.Context, userID int64, v V) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", r.kind, err)
	}
	if err := r.client.Set(ctx, r.key(userID), raw, 0).Err(); err != nil {
		r.logger.Error("Failed to save value to redis", zap.Int64("userID", userID), zap.Error(err))
		return fmt.Errorf("failed to save %s to redis: %w", r.kind, err)
	}
	return nil
}

func (r *redisJSON[V]) delete(ctx context.Context, userID int64) error {
	if err := r.client.Del(ctx, r.key(userID)).Err(); err != nil {
		r.logger.Error("Failed to delete value from redis", zap.Int64("userID", userID), zap.Error(err))
		return fmt.Errorf("failed to delete %s from redis: %w", r.kind, err)
	}
	return nil
}

// RedisProfileRepository - профили в Redis (STORAGE_BACKEND=redis).
type RedisProfileRepository struct {
	store redisJSON[models.UserProfile]
}

func NewRedisProfileRepository(client *redis.Client, logger *zap.Logger) *RedisProfileRepository {
	return &RedisProfileRepository{store: redisJSON[models.UserProfile]{
		client: client, kind: "profile", logger: logger.Named("RedisProfileRepo"),
	}}
}

func (r *RedisProfileRepository) Get(ctx context.Context, userID int64) (models.UserProfile, error) {
	return r.store.get(ctx, userID)
}

func (r *RedisProfileRepository) Save(ctx context.Context, userID int64, profile models.UserProfile) error {
	return r.store.set(ctx, userID, profile)
}

func (r *RedisProfileRepository) Delete(ctx context.Context, userID int64) error {
	return r.store.delete(ctx, userID)
}

// RedisStatsRepository - счетчики в Redis.
type RedisStatsRepository struct {
	store redisJSON[models.UserStats]
}

func NewRedisStatsRepository(client *redis.Client, logger *zap.Logger) *RedisStatsRepository {
	return &RedisStatsRepository{store: redisJSON[models.UserStats]{
		client: client, kind: "stats", logger: logger.Named("RedisStatsRepo"),
	}}
}

func (r *RedisStatsRepository) Get(ctx context.Context, userID int64) (models.UserStats, error) {
	return r.store.get(ctx, userID)
}

func (r *RedisStatsRepository) Save(ctx context.Context, userID int64, stats models.UserStats) error {
	return r.store.set(ctx, userID, stats)
}

func (r *RedisStatsRepository) Delete(ctx context.Context, userID int64) error {
	return r.store.delete(ctx, userID)
}

// NewRedisClient подключается к Redis и проверяет соединение.
func NewRedisClient(ctx context.Context, addr string, db int, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db, Password: password})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return client, nil
}
