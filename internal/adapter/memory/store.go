// Package memory is test support: in-process adapters with the same contracts
// as the Postgres and Redis ones, plus call counters, failure injection and
// delivery history for assertions. No command wires them; the queue keeps every
// delivery it has seen and requeues without delay.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"gitlab.com/autograder.net/internal/core/ports/secondary"
	"gitlab.com/autograder.net/internal/domain"
	"gitlab.com/autograder.net/internal/static/errs"
)

type failure struct {
	after int
	err   error
}

// Store implements the submission, test case and detail repositories
type Store struct {
	mu          sync.Mutex
	nextID      int64
	submissions map[int64]domain.Submission
	history     map[int64][]domain.Submission
	testCases   map[int64][]domain.TestCase
	details     map[int64]map[int64]domain.SubmissionDetail
	calls       map[string]int
	failures    map[string]failure
	now         func() time.Time
}

var (
	_ secondary.SubmissionRepository       = &Store{}
	_ secondary.TestCaseRepository         = &Store{}
	_ secondary.SubmissionDetailRepository = &Store{}
)

func NewStore() *Store {
	return &Store{
		submissions: map[int64]domain.Submission{},
		history:     map[int64][]domain.Submission{},
		testCases:   map[int64][]domain.TestCase{},
		details:     map[int64]map[int64]domain.SubmissionDetail{},
		calls:       map[string]int{},
		failures:    map[string]failure{},
		now:         time.Now,
	}
}

// FailAfter makes op return err once it has succeeded n times
func (s *Store) FailAfter(op string, n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = failure{after: n, err: err}
}

func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) check(op string) error {
	s.calls[op]++
	if f, ok := s.failures[op]; ok && s.calls[op] > f.after {
		return errs.Store(op, f.err)
	}
	return nil
}

// Calls reports how many times op was invoked
func (s *Store) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

func (s *Store) AddTestCase(tc domain.TestCase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tc.ID == 0 {
		tc.ID = int64(len(s.testCases[tc.ProblemID]) + 1)
	}
	s.testCases[tc.ProblemID] = append(s.testCases[tc.ProblemID], tc)
}

// History lists every state the submission was written with, oldest first
func (s *Store) History(submissionID int64) []domain.Submission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Submission(nil), s.history[submissionID]...)
}

// Put stores a submission as-is, bypassing the state machine
func (s *Store) Put(sub domain.Submission) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub.ID > s.nextID {
		s.nextID = sub.ID
	}
	s.submissions[sub.ID] = sub
}

func (s *Store) CreateSubmission(ctx context.Context, sub *domain.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("CreateSubmission"); err != nil {
		return err
	}
	s.nextID++
	sub.ID = s.nextID
	s.record(*sub)
	return nil
}

func (s *Store) GetSubmission(ctx context.Context, submissionID int64) (*domain.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("GetSubmission"); err != nil {
		return nil, err
	}
	sub, ok := s.submissions[submissionID]
	if !ok {
		return nil, fmt.Errorf("submission %d: %w", submissionID, errs.ErrNotFound)
	}
	return &sub, nil
}

func (s *Store) SaveSubmission(ctx context.Context, sub *domain.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("SaveSubmission"); err != nil {
		return err
	}
	current, ok := s.submissions[sub.ID]
	if ok && (current.Attempt != sub.Attempt || current.ProcessedTestCases > sub.ProcessedTestCases) {
		return fmt.Errorf("submission %d attempt %d: %w", sub.ID, sub.Attempt, errs.ErrClaimLost)
	}
	sub.UpdatedAt = s.now()
	s.record(*sub)
	return nil
}

func (s *Store) ClaimSubmission(ctx context.Context, submissionID int64, total int) (*domain.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("ClaimSubmission"); err != nil {
		return nil, err
	}
	sub, ok := s.submissions[submissionID]
	if !ok || sub.Status != domain.SubmissionStatusNew {
		return nil, fmt.Errorf("submission %d: %w", submissionID, errs.ErrAlreadyClaimed)
	}
	sub.Status = domain.SubmissionStatusProcessing
	sub.TotalTestCases = total
	sub.ProcessedTestCases = 0
	sub.CorrectTestCases = 0
	sub.Attempt++
	sub.UpdatedAt = s.now()
	delete(s.details, submissionID)
	s.record(sub)
	return &sub, nil
}

func (s *Store) ListSubmissions(ctx context.Context, filter domain.SubmissionFilter) ([]*domain.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("ListSubmissions"); err != nil {
		return nil, err
	}
	out := make([]*domain.Submission, 0)
	for _, sub := range s.submissions {
		if filter.ProblemID != nil && sub.ProblemID != *filter.ProblemID {
			continue
		}
		if filter.UserID != nil && sub.UserID != *filter.UserID {
			continue
		}
		sub := sub
		out = append(out, &sub)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })

	if filter.PageSize > 0 {
		page := filter.PageNo
		if page < 1 {
			page = 1
		}
		start := (page - 1) * filter.PageSize
		if start >= len(out) {
			return []*domain.Submission{}, nil
		}
		end := start + filter.PageSize
		if end > len(out) {
			end = len(out)
		}
		out = out[start:end]
	}
	return out, nil
}

func (s *Store) ResetStaleProcessing(ctx context.Context, cutoff time.Time, limit int) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("ResetStaleProcessing"); err != nil {
		return nil, err
	}
	ids := s.stale(domain.SubmissionStatusProcessing, cutoff, limit)
	for _, id := range ids {
		sub := s.submissions[id]
		sub.Status = domain.SubmissionStatusNew
		sub.TotalTestCases = 0
		sub.ProcessedTestCases = 0
		sub.CorrectTestCases = 0
		sub.Attempt++
		sub.UpdatedAt = s.now()
		delete(s.details, id)
		s.record(sub)
	}
	return ids, nil
}

func (s *Store) TouchStaleNew(ctx context.Context, cutoff time.Time, limit int) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("TouchStaleNew"); err != nil {
		return nil, err
	}
	ids := s.stale(domain.SubmissionStatusNew, cutoff, limit)
	for _, id := range ids {
		sub := s.submissions[id]
		sub.UpdatedAt = s.now()
		s.submissions[id] = sub
	}
	return ids, nil
}

func (s *Store) GetTestCasesByProblem(ctx context.Context, problemID int64) ([]*domain.TestCase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("GetTestCasesByProblem"); err != nil {
		return nil, err
	}
	out := make([]*domain.TestCase, 0, len(s.testCases[problemID]))
	for _, tc := range s.testCases[problemID] {
		tc := tc
		out = append(out, &tc)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) SaveDetail(ctx context.Context, d *domain.SubmissionDetail, attempt int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("SaveDetail"); err != nil {
		return err
	}
	if sub, ok := s.submissions[d.SubmissionID]; !ok || sub.Attempt != attempt {
		return fmt.Errorf("submission %d attempt %d: %w", d.SubmissionID, attempt, errs.ErrClaimLost)
	}
	if s.details[d.SubmissionID] == nil {
		s.details[d.SubmissionID] = map[int64]domain.SubmissionDetail{}
	}
	if existing, ok := s.details[d.SubmissionID][d.TestCaseID]; ok {
		d.ID = existing.ID
	} else {
		d.ID = int64(len(s.details[d.SubmissionID]) + 1)
	}
	s.details[d.SubmissionID][d.TestCaseID] = *d
	return nil
}

func (s *Store) GetDetails(ctx context.Context, submissionID int64) ([]*domain.SubmissionDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("GetDetails"); err != nil {
		return nil, err
	}
	out := make([]*domain.SubmissionDetail, 0, len(s.details[submissionID]))
	for _, d := range s.details[submissionID] {
		d := d
		out = append(out, &d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].TestCaseID < out[j].TestCaseID
	})
	return out, nil
}

func (s *Store) record(sub domain.Submission) {
	s.submissions[sub.ID] = sub
	s.history[sub.ID] = append(s.history[sub.ID], sub)
}

func (s *Store) stale(status domain.SubmissionStatus, cutoff time.Time, limit int) []int64 {
	ids := make([]int64, 0)
	for id, sub := range s.submissions {
		if sub.Status == status && sub.UpdatedAt.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids
}
