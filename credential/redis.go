package credential

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"colabatr/db"
)

const otpKeyPrefix = "otp:phone:"

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, addr, password string, dbIndex int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       dbIndex,
	})

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("credential: redis ping %s: %w", addr, err)
	}
	return client, nil
}

// RedisCodeStore keeps OTP codes in Redis with a TTL.
type RedisCodeStore struct {
	client redis.Cmdable
}

func NewRedisCodeStore(client redis.Cmdable) *RedisCodeStore {
	return &RedisCodeStore{client: client}
}

func (s *RedisCodeStore) Save(ctx context.Context, phone, code string, ttl time.Duration) error {
	if err := s.client.Set(ctx, otpKeyPrefix+phone, code, ttl).Err(); err != nil {
		return redisError("save code", err)
	}
	return nil
}

// Take uses GETDEL so concurrent verifications cannot both read the code.
func (s *RedisCodeStore) Take(ctx context.Context, phone string) (string, error) {
	code, err := s.client.GetDel(ctx, otpKeyPrefix+phone).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrCodeNotFound
		}
		return "", redisError("take code", err)
	}
	return code, nil
}

func redisError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("credential: %s: %w", op, err)
	}
	return fmt.Errorf("credential: %s: %w: %v", op, db.ErrStorageUnavailable, err)
}
