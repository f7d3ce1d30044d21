package jwt

import (
	"errors"
	"fmt"
	"time"

	"taskmaster/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrWrongKind    = errors.New("unexpected token type")
)

// Claims is the payload of both access and refresh tokens.
type Claims struct {
	Email string           `json:"email"`
	Type  models.TokenKind `json:"type"`
	jwt.RegisteredClaims
}

type key struct {
	secret []byte
	ttl    time.Duration
}

// Issuer signs and parses access and refresh tokens. Each kind has its
// own secret and lifetime.
type Issuer struct {
	keys map[models.TokenKind]key
	now  func() time.Time
}

func NewIssuer(accessSecret string, accessTTL time.Duration, refreshSecret string, refreshTTL time.Duration) *Issuer {
	return &Issuer{
		keys: map[models.TokenKind]key{
			models.TokenAccess:  {secret: []byte(accessSecret), ttl: accessTTL},
			models.TokenRefresh: {secret: []byte(refreshSecret), ttl: refreshTTL},
		},
		now: time.Now,
	}
}

// NewToken signs a token of the given kind for user.
func (i *Issuer) NewToken(user models.User, kind models.TokenKind) (string, error) {
	const op = "jwt.NewToken"

	k, ok := i.keys[kind]
	if !ok {
		return "", fmt.Errorf("%s: %w: %q", op, ErrWrongKind, kind)
	}

	now := i.now()

	claims := Claims{
		Email: user.Email,
		Type:  kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(k.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(k.secret)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return signed, nil
}

// Parse verifies tokenStr against the secret of kind and checks that the
// token carries a subject and the matching type claim.
func (i *Issuer) Parse(tokenStr string, kind models.TokenKind) (*Claims, error) {
	const op = "jwt.Parse"

	k, ok := i.keys[kind]
	if !ok {
		return nil, fmt.Errorf("%s: %w: %q", op, ErrWrongKind, kind)
	}

	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return k.secret, nil
	},
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidToken, err)
	}

	if !token.Valid {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	if claims.Subject == "" || claims.Type == "" {
		return nil, fmt.Errorf("%s: %w: missing sub or type claim", op, ErrInvalidToken)
	}

	if claims.Type != kind {
		return nil, fmt.Errorf("%s: %w", op, ErrWrongKind)
	}

	return claims, nil
}

// ParseAny accepts a token of any known kind, trying access first.
func (i *Issuer) ParseAny(tokenStr string) (*Claims, error) {
	claims, err := i.Parse(tokenStr, models.TokenAccess)
	if err == nil {
		return claims, nil
	}

	return i.Parse(tokenStr, models.TokenRefresh)
}

// SetClock replaces the time source. Tests only.
func (i *Issuer) SetClock(now func() time.Time) {
	i.now = now
}
