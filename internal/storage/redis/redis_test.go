package redis_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"taskmaster/internal/models"
	"taskmaster/internal/storage"
	redisrepo "taskmaster/internal/storage/redis"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepo(t *testing.T) (*redisrepo.RedisRepo, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)

	repo, err := redisrepo.New(context.Background(), mr.Addr(), "", 0)
	require.NoError(t, err)
	t.Cleanup(repo.Close)

	return repo, mr
}

func pending(email, code string) models.Challenge {
	return models.Challenge{
		Email:     email,
		CodeHash:  []byte(code),
		ExpiresAt: time.Now().Add(5 * time.Minute),
	}
}

func codeIs(code string) func(models.Challenge) bool {
	return func(c models.Challenge) bool { return string(c.CodeHash) == code }
}

func TestChallengeStates(t *testing.T) {
	repo, mr := newRepo(t)
	ctx := context.Background()

	c, err := repo.Challenge(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.ChallengeAbsent, c.State)

	require.NoError(t, repo.SaveChallenge(ctx, pending("a@example.com", "123456"), time.Minute))
	assert.True(t, mr.Exists("auth:a@example.com"))

	c, err = repo.Challenge(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.ChallengePending, c.State)
	assert.Equal(t, "a@example.com", c.Email)

	mr.FastForward(2 * time.Minute)

	c, err = repo.Challenge(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.ChallengeAbsent, c.State)
}

func TestSaveChallengeOverwrites(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveChallenge(ctx, pending("a@example.com", "111111"), time.Minute))
	require.NoError(t, repo.SaveChallenge(ctx, pending("a@example.com", "222222"), time.Minute))

	_, err := repo.ConsumeChallenge(ctx, "a@example.com", codeIs("111111"))
	assert.ErrorIs(t, err, storage.ErrCodeMismatch)

	c, err := repo.ConsumeChallenge(ctx, "a@example.com", codeIs("222222"))
	require.NoError(t, err)
	assert.Equal(t, "222222", string(c.CodeHash))
}

func TestConsumeChallenge(t *testing.T) {
	repo, mr := newRepo(t)
	ctx := context.Background()

	_, err := repo.ConsumeChallenge(ctx, "a@example.com", codeIs("123456"))
	assert.ErrorIs(t, err, storage.ErrChallengeAbsent)

	require.NoError(t, repo.SaveChallenge(ctx, pending("a@example.com", "123456"), time.Minute))

	_, err = repo.ConsumeChallenge(ctx, "a@example.com", codeIs("000000"))
	assert.ErrorIs(t, err, storage.ErrCodeMismatch)
	assert.True(t, mr.Exists("auth:a@example.com"), "mismatch must keep the challenge")

	_, err = repo.ConsumeChallenge(ctx, "a@example.com", codeIs("123456"))
	require.NoError(t, err)
	assert.False(t, mr.Exists("auth:a@example.com"))

	_, err = repo.ConsumeChallenge(ctx, "a@example.com", codeIs("123456"))
	assert.ErrorIs(t, err, storage.ErrChallengeAbsent)
}

func TestConsumeChallengeConcurrent(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveChallenge(ctx, pending("a@example.com", "123456"), time.Minute))

	const workers = 8

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.ConsumeChallenge(ctx, "a@example.com", codeIs("123456")); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
}
