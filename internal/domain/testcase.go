package domain

// TestCase represents an instructor-defined input/output pair of a problem
type TestCase struct {
	ID             int64  `db:"id" json:"id"`
	ProblemID      int64  `db:"problem_id" json:"problemId"`
	Input          string `db:"input" json:"input"`
	ExpectedOutput string `db:"expected_output" json:"expectedOutput"`
	Position       int    `db:"position" json:"position"`
}
