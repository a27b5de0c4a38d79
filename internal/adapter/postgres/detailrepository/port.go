package detailrepository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"gitlab.com/autograder.net/internal/adapter/postgres"
	"gitlab.com/autograder.net/internal/core/ports/primary"
	"gitlab.com/autograder.net/internal/core/ports/secondary"
	"gitlab.com/autograder.net/internal/domain"
	"gitlab.com/autograder.net/internal/static/errs"
	querybuilder "gitlab.com/autograder.net/internal/utils"
)

var detailColumns = []string{
	"id", "submission_id", "test_case_id", "position", "input", "expected_output",
	"actual_output", "test_case_is_passed", "execution_error", "created_at",
}

// DetailRepository stores one row per (submission, test case)
type DetailRepository struct {
	db     *sqlx.DB
	logger primary.Logger
}

var _ secondary.SubmissionDetailRepository = &DetailRepository{}

func NewDetailRepository(db *sqlx.DB, logger primary.Logger) *DetailRepository {
	return &DetailRepository{
		db:     db,
		logger: logger,
	}
}

// SaveDetail upserts the detail. Nothing is written unless the submission still
// carries the given attempt; that case reports errs.ErrClaimLost.
func (r *DetailRepository) SaveDetail(ctx context.Context, d *domain.SubmissionDetail, attempt int) error {
	query, args := querybuilder.NewQueryBuilder(postgres.Schema).
		Insert(
			"submission_id", "test_case_id", "position", "input", "expected_output",
			"actual_output", "test_case_is_passed", "execution_error", "created_at",
		).
		Into("submission_details").
		Values(
			d.SubmissionID, d.TestCaseID, d.Position, d.Input, d.ExpectedOutput,
			d.ActualOutput, d.TestCaseIsPassed, d.ExecutionError, d.CreatedAt,
		).
		InsertIf("EXISTS (SELECT 1 FROM submissions WHERE id = ? AND attempt = ?)", d.SubmissionID, attempt).
		OnConflict("submission_id", "test_case_id").
		SetExclude("actual_output", "test_case_is_passed", "execution_error").
		Returning("id").
		Build()

	ids := make([]int64, 0, 1)
	err := r.db.SelectContext(ctx, &ids, query, args...)
	if err != nil {
		r.logger.Error("Failed to save submission detail", "submissionId", d.SubmissionID, "testCaseId", d.TestCaseID, "error", err)
		return postgres.Classify("failed to save submission detail", err)
	}
	if len(ids) == 0 {
		r.logger.Warn("Submission detail save fenced off", "submissionId", d.SubmissionID, "attempt", attempt)
		return fmt.Errorf("submission %d attempt %d: %w", d.SubmissionID, attempt, errs.ErrClaimLost)
	}
	d.ID = ids[0]
	return nil
}

// GetDetails retrieves the details of a submission in test case order
func (r *DetailRepository) GetDetails(ctx context.Context, submissionID int64) ([]*domain.SubmissionDetail, error) {
	query, args := querybuilder.NewQueryBuilder(postgres.Schema).
		Select(detailColumns...).
		From("submission_details").
		Where("submission_id = ?", submissionID).
		OrderBy("position", true).
		OrderBy("test_case_id", true).
		Build()

	details := make([]*domain.SubmissionDetail, 0)
	if err := r.db.SelectContext(ctx, &details, query, args...); err != nil {
		r.logger.Error("Failed to get submission details", "submissionId", submissionID, "error", err)
		return nil, postgres.Classify("failed to get submission details", err)
	}
	return details, nil
}
