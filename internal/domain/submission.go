package domain

import (
	"time"
)

// SubmissionStatus represents the grading status of a submission
type SubmissionStatus string

const (
	SubmissionStatusNew        SubmissionStatus = "NEW"
	SubmissionStatusProcessing SubmissionStatus = "PROCESSING"
	SubmissionStatusDone       SubmissionStatus = "DONE"
)

func (s SubmissionStatus) IsTerminal() bool {
	return s == SubmissionStatusDone
}

// Submission represents one student's attempt at one problem
type Submission struct {
	ID                 int64            `db:"id" json:"id"`
	ProblemID          int64            `db:"problem_id" json:"problemId"`
	UserID             int64            `db:"user_id" json:"userId"`
	Language           string           `db:"language" json:"language"`
	Version            string           `db:"version" json:"version"`
	Filename           string           `db:"filename" json:"filename"`
	Code               string           `db:"code" json:"code"`
	Status             SubmissionStatus `db:"status" json:"status"`
	TotalTestCases     int              `db:"total_test_cases" json:"totalTestCases"`
	ProcessedTestCases int              `db:"processed_test_cases" json:"processedTestCases"`
	CorrectTestCases   int              `db:"correct_test_cases" json:"correctTestCases"`
	Attempt            int              `db:"attempt" json:"-"`
	CreatedAt          time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time        `db:"updated_at" json:"updatedAt"`
}

// NewSubmission creates a new submission waiting to be graded
func NewSubmission(problemID, userID int64, language, version, filename, code string) *Submission {
	now := time.Now()
	return &Submission{
		ProblemID: problemID,
		UserID:    userID,
		Language:  language,
		Version:   version,
		Filename:  filename,
		Code:      code,
		Status:    SubmissionStatusNew,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// RecordResult advances the progress counters by one executed test case.
func (s *Submission) RecordResult(passed bool) {
	if s.ProcessedTestCases >= s.TotalTestCases {
		return
	}
	s.ProcessedTestCases++
	if passed {
		s.CorrectTestCases++
	}
}

// Finish moves the submission to its terminal state.
func (s *Submission) Finish() {
	s.Status = SubmissionStatusDone
}

// SubmissionFilter narrows a submission listing
type SubmissionFilter struct {
	ProblemID *int64
	UserID    *int64
	PageNo    int
	PageSize  int
}

type SubmissionTable struct {
	ID                 string
	ProblemID          string
	UserID             string
	Language           string
	Version            string
	Filename           string
	Code               string
	Status             string
	TotalTestCases     string
	ProcessedTestCases string
	CorrectTestCases   string
	Attempt            string
	CreatedAt          string
	UpdatedAt          string
}

func GetSubmissionTable() SubmissionTable {
	return SubmissionTable{
		ID:                 "id",
		ProblemID:          "problem_id",
		UserID:             "user_id",
		Language:           "language",
		Version:            "version",
		Filename:           "filename",
		Code:               "code",
		Status:             "status",
		TotalTestCases:     "total_test_cases",
		ProcessedTestCases: "processed_test_cases",
		CorrectTestCases:   "correct_test_cases",
		Attempt:            "attempt",
		CreatedAt:          "created_at",
		UpdatedAt:          "updated_at",
	}
}

func (SubmissionTable) TableName() string {
	return "submissions"
}

func (t SubmissionTable) Columns() []string {
	return []string{
		t.ID, t.ProblemID, t.UserID, t.Language, t.Version, t.Filename, t.Code,
		t.Status, t.TotalTestCases, t.ProcessedTestCases, t.CorrectTestCases,
		t.Attempt, t.CreatedAt, t.UpdatedAt,
	}
}
