package broadcaster

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/autograder.net/internal/adapter/logging"
	"gitlab.com/autograder.net/internal/domain"
	"gitlab.com/autograder.net/internal/static/errs"
)

type fakePublisher struct {
	subject string
	data    []byte
	err     error
}

func (f *fakePublisher) Publish(subj string, data []byte) error {
	f.subject, f.data = subj, data
	return f.err
}

type fakeSource map[int64]*domain.SubmissionSnapshot

func (f fakeSource) GetSnapshot(ctx context.Context, id int64) (*domain.SubmissionSnapshot, error) {
	if id == 500 {
		return nil, errs.ErrStoreUnavailable
	}
	s, ok := f[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return s, nil
}

func TestBroadcastPublishesSnapshot(t *testing.T) {
	pub := &fakePublisher{}
	b := &Broadcaster{nc: pub, subject: "submissions.results", logger: logging.NewNopLogger()}

	err := b.Broadcast(context.Background(), &domain.SubmissionSnapshot{Submission: &domain.Submission{ID: 4}})
	require.NoError(t, err)
	assert.Equal(t, "submissions.results", pub.subject)

	var got domain.SubmissionSnapshot
	require.NoError(t, json.Unmarshal(pub.data, &got))
	assert.Equal(t, int64(4), got.Submission.ID)
}

func TestBroadcastPublishFailure(t *testing.T) {
	pub := &fakePublisher{err: errors.New("nats: connection closed")}
	b := &Broadcaster{nc: pub, subject: "s", logger: logging.NewNopLogger()}
	assert.Error(t, b.Broadcast(context.Background(), &domain.SubmissionSnapshot{Submission: &domain.Submission{ID: 1}}))
}

func TestResponderReply(t *testing.T) {
	r := &Responder{
		source: fakeSource{7: {Submission: &domain.Submission{ID: 7}, Details: []*domain.SubmissionDetail{}}},
		logger: logging.NewNopLogger(),
	}

	tests := []struct {
		name      string
		request   string
		wantError string
		wantID    int64
	}{
		{"found", `{"submissionId":7}`, "", 7},
		{"missing", `{"submissionId":8}`, errs.ErrNotFound.Error(), 0},
		{"store down", `{"submissionId":500}`, errs.ErrStoreUnavailable.Error(), 0},
		{"garbage", `nope`, errs.ErrInvalidRequest.Error(), 0},
		{"zero id", `{}`, errs.ErrInvalidRequest.Error(), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rep snapshotReply
			require.NoError(t, json.Unmarshal(r.reply(context.Background(), []byte(tt.request)), &rep))
			assert.Equal(t, tt.wantError, rep.Error)
			if tt.wantID != 0 {
				require.NotNil(t, rep.Snapshot)
				assert.Equal(t, tt.wantID, rep.Snapshot.Submission.ID)
			} else {
				assert.Nil(t, rep.Snapshot)
			}
		})
	}
}
