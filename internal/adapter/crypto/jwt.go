package crypto

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"gitlab.com/autograder.net/internal/config"
	"gitlab.com/autograder.net/internal/core/ports/primary"
	"gitlab.com/autograder.net/internal/domain"
)

var _ primary.JWTService = (*JWTServiceImpl)(nil)

var (
	ErrInvalidToken = errors.New("invalid token")
)

// Claims are the token claims the grader understands. The subject is the user id.
type Claims struct {
	Permissions []string `json:"permissions"`
	jwt.RegisteredClaims
}

type JWTServiceImpl struct {
	HMACSecretKey string
	now           func() time.Time
}

func NewJWTService(jwtConfig *config.JwtConfig) *JWTServiceImpl {
	return &JWTServiceImpl{
		HMACSecretKey: jwtConfig.Secret,
		now:           time.Now,
	}
}

func (j *JWTServiceImpl) GenerateTokenHMAC(ctx context.Context, principal *domain.Principal, ttl time.Duration) (string, error) {
	if j.HMACSecretKey == "" {
		return "", errors.New("jwt secret is not configured")
	}
	now := j.now()
	claims := Claims{
		Permissions: principal.Permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(principal.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(j.HMACSecretKey))
}

func (j *JWTServiceImpl) VerifyTokenHMAC(ctx context.Context, token string) (*domain.Principal, error) {
	claims := &Claims{}
	parsedToken, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(j.HMACSecretKey), nil
	}, jwt.WithTimeFunc(j.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !parsedToken.Valid {
		return nil, ErrInvalidToken
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: subject %q is not a user id", ErrInvalidToken, claims.Subject)
	}
	return &domain.Principal{
		UserID:      userID,
		Permissions: claims.Permissions,
	}, nil
}
