package testcaserepository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/autograder.net/internal/adapter/logging"
	"gitlab.com/autograder.net/internal/static/errs"
)

func TestGetTestCasesByProblemIsOrdered(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewTestCaseRepository(sqlx.NewDb(db, "postgres"), logging.NewNopLogger())

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, problem_id, input, expected_output, position FROM public.test_cases WHERE problem_id = $1 ORDER BY position ASC, id ASC")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "problem_id", "input", "expected_output", "position"}).
			AddRow(int64(2), int64(7), "1 2", "3", 0).
			AddRow(int64(1), int64(7), "2 2", "4", 1))

	cases, err := repo.GetTestCasesByProblem(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, cases, 2)
	assert.Equal(t, int64(2), cases[0].ID)
	assert.Equal(t, "3", cases[0].ExpectedOutput)
	assert.Equal(t, 1, cases[1].Position)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTestCasesByProblemEmptyAndFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewTestCaseRepository(sqlx.NewDb(db, "postgres"), logging.NewNopLogger())

	mock.ExpectQuery("FROM public.test_cases").
		WillReturnRows(sqlmock.NewRows([]string{"id", "problem_id", "input", "expected_output", "position"}))
	cases, err := repo.GetTestCasesByProblem(context.Background(), 1)
	require.NoError(t, err)
	assert.NotNil(t, cases)
	assert.Empty(t, cases)

	mock.ExpectQuery("FROM public.test_cases").WillReturnError(errors.New("read tcp: i/o timeout"))
	_, err = repo.GetTestCasesByProblem(context.Background(), 1)
	assert.ErrorIs(t, err, errs.ErrStoreUnavailable)
}
