package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/autograder.net/internal/adapter/logging"
	"gitlab.com/autograder.net/internal/domain"
)

type frame struct {
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

func startHub(t *testing.T, handler MessageHandler) (*Hub, string) {
	t.Helper()
	h := NewHub(logging.NewNopLogger())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = h.Serve(w, r, handler)
	}))
	t.Cleanup(func() {
		h.Close()
		srv.Close()
	})
	return h, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestBroadcastReachesEveryClient(t *testing.T) {
	h, url := startHub(t, func(ctx context.Context, c *Client, msg []byte) {})
	a := dial(t, url)
	b := dial(t, url)
	require.Eventually(t, func() bool { return h.Size() == 2 }, 2*time.Second, 10*time.Millisecond)

	snapshot := &domain.SubmissionSnapshot{
		Submission: &domain.Submission{ID: 9, Status: domain.SubmissionStatusDone, TotalTestCases: 1, ProcessedTestCases: 1},
		Details:    []*domain.SubmissionDetail{},
	}
	require.NoError(t, h.Broadcast(context.Background(), snapshot))

	for _, conn := range []*websocket.Conn{a, b} {
		f := readFrame(t, conn)
		assert.Equal(t, TopicTestResults, f.Topic)
		var got domain.SubmissionSnapshot
		require.NoError(t, json.Unmarshal(f.Payload, &got))
		assert.Equal(t, int64(9), got.Submission.ID)
		assert.Equal(t, domain.SubmissionStatusDone, got.Submission.Status)
	}
}

func TestHandlerCanReplyToSender(t *testing.T) {
	_, url := startHub(t, func(ctx context.Context, c *Client, msg []byte) {
		_ = c.Send(TopicErrors, map[string]string{"echo": string(msg)})
	})
	conn := dial(t, url)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`ping`)))
	f := readFrame(t, conn)
	assert.Equal(t, TopicErrors, f.Topic)
	assert.JSONEq(t, `{"echo":"ping"}`, string(f.Payload))
}

func TestDisconnectedClientIsForgotten(t *testing.T) {
	h, url := startHub(t, func(ctx context.Context, c *Client, msg []byte) {})
	conn := dial(t, url)
	require.Eventually(t, func() bool { return h.Size() == 1 }, 2*time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return h.Size() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestSlowClientIsDropped(t *testing.T) {
	c := &Client{ID: "slow", send: make(chan []byte, 1), closed: make(chan struct{})}
	require.NoError(t, c.enqueue([]byte("1")))
	assert.ErrorIs(t, c.enqueue([]byte("2")), ErrClientGone)
	assert.ErrorIs(t, c.Send(TopicTestResults, "3"), ErrClientGone)
}
