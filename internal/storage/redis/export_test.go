package redis

import (
	"context"

	"taskmaster/internal/models"
)

func (r *RedisRepo) Challenge(ctx context.Context, email string) (models.Challenge, error) {
	return readChallenge(ctx, r.client, email)
}
