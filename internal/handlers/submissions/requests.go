package submissions

// CreateSubmissionRequest represents a request to submit code for grading
type CreateSubmissionRequest struct {
	ProblemID int64  `json:"problemId"`
	Language  string `json:"language"`
	Version   string `json:"version"`
	Filename  string `json:"filename"`
	Code      string `json:"code"`
}

// CreateSubmissionResponse represents a response to a create submission request
type CreateSubmissionResponse struct {
	SubmissionID int64  `json:"submissionId"`
	Status       string `json:"status"`
}
