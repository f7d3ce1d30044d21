package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"taskmaster/internal/lib/jwt"
	sl "taskmaster/internal/lib/logger/sl"
	"taskmaster/internal/mail"
	"taskmaster/internal/models"
	"taskmaster/internal/storage"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrInvalidOTP covers a wrong code, an expired code and a code that
	// was never requested alike.
	ErrInvalidOTP   = errors.New("invalid otp")
	ErrUnauthorized = errors.New("unauthorized")
	ErrMailDelivery = errors.New("failed to send otp")
)

type UserStorage interface {
	SaveUser(ctx context.Context, email string) (models.User, error)
	UserByEmail(ctx context.Context, email string) (models.User, error)
	UserByID(ctx context.Context, id uuid.UUID) (models.User, error)
}

type ChallengeStorage interface {
	SaveChallenge(ctx context.Context, c models.Challenge, ttl time.Duration) error
	ConsumeChallenge(ctx context.Context, email string, match func(models.Challenge) bool) (models.Challenge, error)
}

type Mailer interface {
	SendOTP(ctx context.Context, msg mail.Message) error
}

type TokenIssuer interface {
	NewToken(user models.User, kind models.TokenKind) (string, error)
}

type Auth struct {
	log        *slog.Logger
	users      UserStorage
	challenges ChallengeStorage
	mailer     Mailer
	tokens     TokenIssuer
	otpLength  int
	otpExpiry  time.Duration
	hashCost   int
}

func New(
	log *slog.Logger,
	users UserStorage,
	challenges ChallengeStorage,
	mailer Mailer,
	tokens TokenIssuer,
	otpLength int,
	otpExpiry time.Duration,
) *Auth {
	return &Auth{
		log:        log,
		users:      users,
		challenges: challenges,
		mailer:     mailer,
		tokens:     tokens,
		otpLength:  otpLength,
		otpExpiry:  otpExpiry,
		hashCost:   bcrypt.DefaultCost,
	}
}

// Initiate issues a fresh code for email and mails it. The caller gets
// the same answer whether or not the email belongs to a user.
func (a *Auth) Initiate(ctx context.Context, email string) error {
	const op = "auth.Initiate"

	log := a.log.With(slog.String("op", op))

	user, err := a.users.UserByEmail(ctx, email)
	if err != nil && !errors.Is(err, storage.ErrUserNotFound) {
		log.Error("failed to look up user", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	code, err := generateCode(a.otpLength)
	if err != nil {
		log.Error("failed to generate otp", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	codeHash, err := bcrypt.GenerateFromPassword([]byte(code), a.hashCost)
	if err != nil {
		log.Error("failed to hash otp", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	challenge := models.Challenge{
		State:     models.ChallengePending,
		Email:     email,
		CodeHash:  codeHash,
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(a.otpExpiry),
	}

	if err := a.challenges.SaveChallenge(ctx, challenge, a.otpExpiry); err != nil {
		log.Error("failed to store otp challenge", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	purpose := models.MailPurposeLogin
	if challenge.IsNewUser() {
		purpose = models.MailPurposeWelcome
	}

	msg := mail.Message{
		To:      email,
		Code:    code,
		Purpose: purpose,
		Expiry:  a.otpExpiry,
	}

	if err := a.mailer.SendOTP(ctx, msg); err != nil {
		log.Error("failed to send otp", sl.Err(err))
		return fmt.Errorf("%s: %w", op, ErrMailDelivery)
	}

	log.Info("otp sent", slog.String("purpose", purpose))

	return nil
}

// VerifyOTP consumes the challenge for email if code matches, creates
// the user on first login and returns a fresh token pair.
func (a *Auth) VerifyOTP(ctx context.Context, email, code string) (models.TokenPair, error) {
	const op = "auth.VerifyOTP"

	log := a.log.With(slog.String("op", op))

	challenge, err := a.challenges.ConsumeChallenge(ctx, email, func(c models.Challenge) bool {
		return bcrypt.CompareHashAndPassword(c.CodeHash, []byte(code)) == nil
	})
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrChallengeAbsent), errors.Is(err, storage.ErrCodeMismatch):
			log.Info("otp rejected", sl.Err(err))
		default:
			// The cache being down degrades to a rejected code.
			log.Error("failed to consume otp challenge", sl.Err(err))
		}
		return models.TokenPair{}, ErrInvalidOTP
	}

	user := models.User{ID: challenge.UserID, Email: email}

	if challenge.IsNewUser() {
		user, err = a.createUser(ctx, email)
		if err != nil {
			log.Error("failed to create user", sl.Err(err))
			return models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
		}
		log.Info("user created", slog.String("uid", user.ID))
	}

	pair, err := a.issuePair(ctx, user)
	if err != nil {
		log.Error("failed to issue tokens", sl.Err(err))
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user logged in", slog.String("uid", user.ID))

	return pair, nil
}

// RefreshBothTokens issues a new access and refresh token for the
// subject of a verified refresh token.
func (a *Auth) RefreshBothTokens(ctx context.Context, claims *jwt.Claims) (models.TokenPair, error) {
	const op = "auth.RefreshBothTokens"

	log := a.log.With(slog.String("op", op))

	if claims == nil || claims.Subject == "" || claims.Type == "" {
		return models.TokenPair{}, ErrUnauthorized
	}

	user, err := a.resolveUser(ctx, claims.Subject)
	if err != nil {
		log.Warn("refresh for unknown subject", sl.Err(err))
		return models.TokenPair{}, err
	}

	pair, err := a.issuePair(ctx, user)
	if err != nil {
		log.Error("failed to issue tokens", sl.Err(err))
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	return pair, nil
}

// RefreshAccessToken issues a new access token only.
func (a *Auth) RefreshAccessToken(ctx context.Context, claims *jwt.Claims) (string, error) {
	const op = "auth.RefreshAccessToken"

	log := a.log.With(slog.String("op", op))

	if claims == nil || claims.Subject == "" {
		return "", ErrUnauthorized
	}

	user, err := a.resolveUser(ctx, claims.Subject)
	if err != nil {
		log.Warn("refresh for unknown subject", sl.Err(err))
		return "", err
	}

	token, err := a.tokens.NewToken(user, models.TokenAccess)
	if err != nil {
		log.Error("failed to issue access token", sl.Err(err))
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return token, nil
}

func (a *Auth) UserProfile(ctx context.Context, userID string) (models.User, error) {
	return a.resolveUser(ctx, userID)
}

func (a *Auth) resolveUser(ctx context.Context, subject string) (models.User, error) {
	const op = "auth.resolveUser"

	id, err := uuid.Parse(subject)
	if err != nil {
		return models.User{}, ErrUnauthorized
	}

	user, err := a.users.UserByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return models.User{}, ErrUnauthorized
		}
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// createUser saves a user for email. A concurrent first login may have
// created the row already, in which case that row is returned.
func (a *Auth) createUser(ctx context.Context, email string) (models.User, error) {
	user, err := a.users.SaveUser(ctx, email)
	if errors.Is(err, storage.ErrUserExists) {
		return a.users.UserByEmail(ctx, email)
	}

	return user, err
}

func (a *Auth) issuePair(ctx context.Context, user models.User) (models.TokenPair, error) {
	var pair models.TokenPair

	g, _ := errgroup.WithContext(ctx)

	g.Go(func() error {
		token, err := a.tokens.NewToken(user, models.TokenAccess)
		pair.AccessToken = token
		return err
	})
	g.Go(func() error {
		token, err := a.tokens.NewToken(user, models.TokenRefresh)
		pair.RefreshToken = token
		return err
	})

	if err := g.Wait(); err != nil {
		return models.TokenPair{}, err
	}

	return pair, nil
}

// generateCode returns a uniformly random decimal code of exactly length
// digits.
func generateCode(length int) (string, error) {
	lo := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length-1)), nil)
	span := new(big.Int).Sub(new(big.Int).Mul(lo, big.NewInt(10)), lo)

	n, err := rand.Int(rand.Reader, span)
	if err != nil {
		return "", err
	}

	return n.Add(n, lo).String(), nil
}
