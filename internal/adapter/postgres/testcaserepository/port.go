package testcaserepository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"gitlab.com/autograder.net/internal/adapter/postgres"
	"gitlab.com/autograder.net/internal/core/ports/primary"
	"gitlab.com/autograder.net/internal/core/ports/secondary"
	"gitlab.com/autograder.net/internal/domain"
	querybuilder "gitlab.com/autograder.net/internal/utils"
)

// TestCaseRepository reads instructor test cases. Problem authoring lives elsewhere.
type TestCaseRepository struct {
	db     *sqlx.DB
	logger primary.Logger
}

var _ secondary.TestCaseRepository = &TestCaseRepository{}

func NewTestCaseRepository(db *sqlx.DB, logger primary.Logger) *TestCaseRepository {
	return &TestCaseRepository{
		db:     db,
		logger: logger,
	}
}

func (r *TestCaseRepository) GetTestCasesByProblem(ctx context.Context, problemID int64) ([]*domain.TestCase, error) {
	query, args := querybuilder.NewQueryBuilder(postgres.Schema).
		Select("id", "problem_id", "input", "expected_output", "position").
		From("test_cases").
		Where("problem_id = ?", problemID).
		OrderBy("position", true).
		OrderBy("id", true).
		Build()

	testCases := make([]*domain.TestCase, 0)
	if err := r.db.SelectContext(ctx, &testCases, query, args...); err != nil {
		r.logger.Error("Failed to get test cases", "problemId", problemID, "error", err)
		return nil, postgres.Classify("failed to get test cases", err)
	}
	return testCases, nil
}
