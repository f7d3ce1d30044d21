package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"taskmaster/internal/models"
	"taskmaster/internal/storage"

	"github.com/redis/go-redis/v9"
)

type RedisRepo struct {
	client *redis.Client
}

func New(ctx context.Context, addr, pass string, db int) (*RedisRepo, error) {
	const op = "storage.redis.New"

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     pass,
		DB:           db,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &RedisRepo{
		client: client,
	}, nil
}

// SaveChallenge stores a pending challenge for its email, replacing any
// earlier one.
func (r *RedisRepo) SaveChallenge(ctx context.Context, c models.Challenge, ttl time.Duration) error {
	const op = "storage.redis.SaveChallenge"

	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := r.client.Set(ctx, challengeKey(c.Email), data, ttl).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// readChallenge returns the challenge for email. A missing key is
// reported as a challenge in the Absent state, not as an error.
func readChallenge(ctx context.Context, c redis.Cmdable, email string) (models.Challenge, error) {
	raw, err := c.Get(ctx, challengeKey(email)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.Challenge{State: models.ChallengeAbsent, Email: email}, nil
	}
	if err != nil {
		return models.Challenge{}, err
	}

	return decodeChallenge(raw)
}

// ConsumeChallenge deletes the challenge for email only if match accepts
// it. The read and the delete run under WATCH, so of two concurrent
// consumers at most one succeeds; the loser gets ErrChallengeAbsent.
func (r *RedisRepo) ConsumeChallenge(
	ctx context.Context,
	email string,
	match func(models.Challenge) bool,
) (models.Challenge, error) {
	const op = "storage.redis.ConsumeChallenge"

	key := challengeKey(email)

	var consumed models.Challenge

	txf := func(tx *redis.Tx) error {
		c, err := readChallenge(ctx, tx, email)
		if err != nil {
			return err
		}
		if c.State == models.ChallengeAbsent {
			return storage.ErrChallengeAbsent
		}

		if !match(c) {
			return storage.ErrCodeMismatch
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			return nil
		})
		if err != nil {
			return err
		}

		consumed = c

		return nil
	}

	err := r.client.Watch(ctx, txf, key)
	switch {
	case err == nil:
		return consumed, nil
	case errors.Is(err, redis.TxFailedErr):
		return models.Challenge{}, storage.ErrChallengeAbsent
	case errors.Is(err, storage.ErrChallengeAbsent), errors.Is(err, storage.ErrCodeMismatch):
		return models.Challenge{}, err
	default:
		return models.Challenge{}, fmt.Errorf("%s: %w", op, err)
	}
}

// * Close closes the underlying client.
func (r *RedisRepo) Close() {
	_ = r.client.Close()
}

func decodeChallenge(raw []byte) (models.Challenge, error) {
	var c models.Challenge
	if err := json.Unmarshal(raw, &c); err != nil {
		return models.Challenge{}, fmt.Errorf("storage.redis.decodeChallenge: %w", err)
	}
	c.State = models.ChallengePending

	return c, nil
}

func challengeKey(email string) string {
	return "auth:" + email
}
