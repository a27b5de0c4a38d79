package domain

import "time"

// SubmissionDetail is the persisted outcome of running one test case for one submission.
// Input and ExpectedOutput are copied from the test case when it is executed.
type SubmissionDetail struct {
	ID               int64     `db:"id" json:"id"`
	SubmissionID     int64     `db:"submission_id" json:"submissionId"`
	TestCaseID       int64     `db:"test_case_id" json:"testCaseId"`
	Position         int       `db:"position" json:"position"`
	Input            string    `db:"input" json:"input"`
	ExpectedOutput   string    `db:"expected_output" json:"expectedOutput"`
	ActualOutput     *string   `db:"actual_output" json:"actualOutput"`
	TestCaseIsPassed *bool     `db:"test_case_is_passed" json:"testCaseIsPassed"`
	ExecutionError   *string   `db:"execution_error" json:"executionError"`
	CreatedAt        time.Time `db:"created_at" json:"createdAt"`
}

// NewSubmissionDetail creates a detail for a test case that has not been judged yet
func NewSubmissionDetail(submissionID int64, tc *TestCase) *SubmissionDetail {
	return &SubmissionDetail{
		SubmissionID:   submissionID,
		TestCaseID:     tc.ID,
		Position:       tc.Position,
		Input:          tc.Input,
		ExpectedOutput: tc.ExpectedOutput,
		CreatedAt:      time.Now(),
	}
}

// Pass records a successful comparison.
func (d *SubmissionDetail) Pass(actual string) {
	passed := true
	d.ActualOutput = &actual
	d.TestCaseIsPassed = &passed
	d.ExecutionError = nil
}

// Fail records a wrong answer.
func (d *SubmissionDetail) Fail(actual string) {
	passed := false
	d.ActualOutput = &actual
	d.TestCaseIsPassed = &passed
	d.ExecutionError = nil
}

// Error records a compile, runtime or sandbox error. The actual output stays unset.
func (d *SubmissionDetail) Error(msg string) {
	passed := false
	d.ActualOutput = nil
	d.TestCaseIsPassed = &passed
	d.ExecutionError = &msg
}

func (d *SubmissionDetail) Passed() bool {
	return d.TestCaseIsPassed != nil && *d.TestCaseIsPassed
}

// SubmissionSnapshot is what live viewers receive
type SubmissionSnapshot struct {
	Submission *Submission          `json:"submission"`
	Details    []*SubmissionDetail `json:"details"`
}
