package primary

import (
	"context"
	"time"

	"gitlab.com/autograder.net/internal/domain"
)

// JWTService issues and verifies the bearer tokens carrying a principal
type JWTService interface {
	GenerateTokenHMAC(ctx context.Context, principal *domain.Principal, ttl time.Duration) (string, error)
	VerifyTokenHMAC(ctx context.Context, token string) (*domain.Principal, error)
}
