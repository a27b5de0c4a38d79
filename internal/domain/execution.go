package domain

// ExecutionRequest is a single sandbox run. It lives for one call only.
type ExecutionRequest struct {
	Language string
	Version  string
	Filename string
	Code     string
	Stdin    string
}

// ExecutionResult is what the sandbox captured for one run
type ExecutionResult struct {
	Language string
	Version  string
	Stdout   string
	Stderr   string
	ExitCode *int
	Signal   *string
}

// Runtime is a language/version pair supported by the sandbox
type Runtime struct {
	Language string   `json:"language"`
	Version  string   `json:"version"`
	Aliases  []string `json:"aliases"`
}
