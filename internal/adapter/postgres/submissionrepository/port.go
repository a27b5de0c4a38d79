package submissionrepository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"gitlab.com/autograder.net/internal/adapter/postgres"
	"gitlab.com/autograder.net/internal/core/ports/primary"
	"gitlab.com/autograder.net/internal/core/ports/secondary"
	"gitlab.com/autograder.net/internal/domain"
	"gitlab.com/autograder.net/internal/static/errs"
	querybuilder "gitlab.com/autograder.net/internal/utils"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// SubmissionRepository implements secondary.SubmissionRepository with PostgreSQL
type SubmissionRepository struct {
	db     *sqlx.DB
	logger primary.Logger
}

var _ secondary.SubmissionRepository = &SubmissionRepository{}

func NewSubmissionRepository(db *sqlx.DB, logger primary.Logger) *SubmissionRepository {
	return &SubmissionRepository{
		db:     db,
		logger: logger,
	}
}

// CreateSubmission inserts a NEW submission and fills its ID
func (r *SubmissionRepository) CreateSubmission(ctx context.Context, s *domain.Submission) error {
	tbl := domain.GetSubmissionTable()
	query, args := querybuilder.NewQueryBuilder(postgres.Schema).
		Insert(
			tbl.ProblemID, tbl.UserID, tbl.Language, tbl.Version, tbl.Filename, tbl.Code,
			tbl.Status, tbl.TotalTestCases, tbl.ProcessedTestCases, tbl.CorrectTestCases,
			tbl.Attempt, tbl.CreatedAt, tbl.UpdatedAt,
		).
		Into(tbl.TableName()).
		Values(
			s.ProblemID, s.UserID, s.Language, s.Version, s.Filename, s.Code,
			s.Status, s.TotalTestCases, s.ProcessedTestCases, s.CorrectTestCases,
			s.Attempt, s.CreatedAt, s.UpdatedAt,
		).
		Returning(tbl.ID).
		Build()

	if err := r.db.QueryRowxContext(ctx, query, args...).Scan(&s.ID); err != nil {
		r.logger.Error("Failed to create submission", "error", err)
		return postgres.Classify("failed to create submission", err)
	}
	return nil
}

// GetSubmission retrieves a submission by ID
func (r *SubmissionRepository) GetSubmission(ctx context.Context, submissionID int64) (*domain.Submission, error) {
	tbl := domain.GetSubmissionTable()
	query, args := querybuilder.NewQueryBuilder(postgres.Schema).
		Select(tbl.Columns()...).
		From(tbl.TableName()).
		Where(tbl.ID+" = ?", submissionID).
		Build()

	var s domain.Submission
	if err := r.db.GetContext(ctx, &s, query, args...); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			r.logger.Error("Failed to get submission", "submissionId", submissionID, "error", err)
		}
		return nil, postgres.Classify(fmt.Sprintf("failed to get submission %d", submissionID), err)
	}
	return &s, nil
}

// SaveSubmission writes the full row. The update only applies while the stored
// attempt matches and the counters do not move backwards.
func (r *SubmissionRepository) SaveSubmission(ctx context.Context, s *domain.Submission) error {
	s.UpdatedAt = time.Now()
	tbl := domain.GetSubmissionTable()
	query, args := querybuilder.NewQueryBuilder(postgres.Schema).
		Insert(tbl.Columns()...).
		Into(tbl.TableName()).
		Values(
			s.ID, s.ProblemID, s.UserID, s.Language, s.Version, s.Filename, s.Code,
			s.Status, s.TotalTestCases, s.ProcessedTestCases, s.CorrectTestCases,
			s.Attempt, s.CreatedAt, s.UpdatedAt,
		).
		OnConflict(tbl.ID).
		SetExclude(tbl.Status, tbl.TotalTestCases, tbl.ProcessedTestCases, tbl.CorrectTestCases, tbl.UpdatedAt).
		ConflictWhere("submissions.attempt = EXCLUDED.attempt AND submissions.processed_test_cases <= EXCLUDED.processed_test_cases").
		Build()

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to save submission", "submissionId", s.ID, "error", err)
		return postgres.Classify("failed to save submission", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return errs.Store("failed to save submission", err)
	}
	if affected == 0 {
		r.logger.Warn("Submission save fenced off", "submissionId", s.ID, "attempt", s.Attempt)
		return fmt.Errorf("submission %d attempt %d: %w", s.ID, s.Attempt, errs.ErrClaimLost)
	}
	return nil
}

// ClaimSubmission moves a NEW submission to PROCESSING in one transaction
func (r *SubmissionRepository) ClaimSubmission(ctx context.Context, submissionID int64, total int) (*domain.Submission, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		r.logger.Error("Failed to begin transaction", "error", err)
		return nil, errs.Store("failed to begin transaction", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE submissions SET
			status = $1,
			total_test_cases = $2,
			processed_test_cases = 0,
			correct_test_cases = 0,
			attempt = attempt + 1,
			updated_at = now()
		WHERE id = $3 AND status = $4
		RETURNING id, problem_id, user_id, language, version, filename, code, status,
			total_test_cases, processed_test_cases, correct_test_cases, attempt,
			created_at, updated_at
	`

	var s domain.Submission
	err = tx.GetContext(ctx, &s, query, domain.SubmissionStatusProcessing, total, submissionID, domain.SubmissionStatusNew)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("submission %d: %w", submissionID, errs.ErrAlreadyClaimed)
	}
	if err != nil {
		r.logger.Error("Failed to claim submission", "submissionId", submissionID, "error", err)
		return nil, postgres.Classify("failed to claim submission", err)
	}

	deleteQuery, args := querybuilder.NewQueryBuilder(postgres.Schema).
		Delete("submission_details").
		Where("submission_id = ?", submissionID).
		Build()
	if _, err := tx.ExecContext(ctx, deleteQuery, args...); err != nil {
		r.logger.Error("Failed to clear submission details", "submissionId", submissionID, "error", err)
		return nil, postgres.Classify("failed to clear submission details", err)
	}

	if err := tx.Commit(); err != nil {
		r.logger.Error("Failed to commit claim", "submissionId", submissionID, "error", err)
		return nil, errs.Store("failed to commit claim", err)
	}
	return &s, nil
}

// ListSubmissions lists submissions newest first. PageNo starts at 1.
func (r *SubmissionRepository) ListSubmissions(ctx context.Context, filter domain.SubmissionFilter) ([]*domain.Submission, error) {
	tbl := domain.GetSubmissionTable()
	qb := querybuilder.NewQueryBuilder(postgres.Schema).
		Select(tbl.Columns()...).
		From(tbl.TableName())
	if filter.ProblemID != nil {
		qb.Where(tbl.ProblemID+" = ?", *filter.ProblemID)
	}
	if filter.UserID != nil {
		qb.Where(tbl.UserID+" = ?", *filter.UserID)
	}

	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	pageNo := filter.PageNo
	if pageNo < 1 {
		pageNo = 1
	}

	query, args := qb.
		OrderBy(tbl.CreatedAt, false).
		OrderBy(tbl.ID, false).
		Limit(pageSize).
		Offset((pageNo - 1) * pageSize).
		Build()

	submissions := make([]*domain.Submission, 0)
	if err := r.db.SelectContext(ctx, &submissions, query, args...); err != nil {
		r.logger.Error("Failed to list submissions", "error", err)
		return nil, postgres.Classify("failed to list submissions", err)
	}
	return submissions, nil
}

// ResetStaleProcessing puts abandoned PROCESSING submissions back to NEW. The attempt
// is bumped so a worker that is still alive loses its claim on the next write.
func (r *SubmissionRepository) ResetStaleProcessing(ctx context.Context, cutoff time.Time, limit int) ([]int64, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		r.logger.Error("Failed to begin transaction", "error", err)
		return nil, errs.Store("failed to begin transaction", err)
	}
	defer tx.Rollback()

	ids := make([]int64, 0)
	err = tx.SelectContext(ctx, &ids, `
		SELECT id FROM submissions
		WHERE status = $1 AND updated_at < $2
		ORDER BY updated_at ASC
		LIMIT $3
		FOR UPDATE SKIP LOCKED
	`, domain.SubmissionStatusProcessing, cutoff, limit)
	if err != nil {
		r.logger.Error("Failed to select stale submissions", "error", err)
		return nil, postgres.Classify("failed to select stale submissions", err)
	}
	if len(ids) == 0 {
		return ids, nil
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE submissions SET
			status = $1,
			total_test_cases = 0,
			processed_test_cases = 0,
			correct_test_cases = 0,
			attempt = attempt + 1,
			updated_at = now()
		WHERE id = ANY($2)
	`, domain.SubmissionStatusNew, pq.Array(ids))
	if err != nil {
		r.logger.Error("Failed to reset stale submissions", "error", err)
		return nil, postgres.Classify("failed to reset stale submissions", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM submission_details WHERE submission_id = ANY($1)`, pq.Array(ids)); err != nil {
		r.logger.Error("Failed to delete stale details", "error", err)
		return nil, postgres.Classify("failed to delete stale details", err)
	}

	if err := tx.Commit(); err != nil {
		r.logger.Error("Failed to commit stale reset", "error", err)
		return nil, errs.Store("failed to commit stale reset", err)
	}
	return ids, nil
}

// TouchStaleNew bumps updated_at of NEW submissions nobody picked up since cutoff
func (r *SubmissionRepository) TouchStaleNew(ctx context.Context, cutoff time.Time, limit int) ([]int64, error) {
	ids := make([]int64, 0)
	err := r.db.SelectContext(ctx, &ids, `
		UPDATE submissions SET updated_at = now()
		WHERE id IN (
			SELECT id FROM submissions
			WHERE status = $1 AND updated_at < $2
			ORDER BY id ASC
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id
	`, domain.SubmissionStatusNew, cutoff, limit)
	if err != nil {
		r.logger.Error("Failed to touch stale new submissions", "error", err)
		return nil, postgres.Classify("failed to touch stale new submissions", err)
	}
	return ids, nil
}
