package secondary

import (
	"context"

	"gitlab.com/autograder.net/internal/domain"
)

// Sandbox runs untrusted code in an isolated execution engine.
type Sandbox interface {
	// Execute runs one program once. No retry happens behind this call.
	Execute(ctx context.Context, req *domain.ExecutionRequest) (*domain.ExecutionResult, error)

	// ListRuntimes lists the language/version pairs the engine supports
	ListRuntimes(ctx context.Context) ([]domain.Runtime, error)
}

// RuntimeCatalog is a sandbox whose runtime list is cached.
type RuntimeCatalog interface {
	Sandbox
	InvalidateRuntimes()
}
