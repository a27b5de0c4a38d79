package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/autograder.net/internal/adapter/crypto"
	"gitlab.com/autograder.net/internal/adapter/logging"
	"gitlab.com/autograder.net/internal/adapter/memory"
	"gitlab.com/autograder.net/internal/adapter/websocket/hub"
	"gitlab.com/autograder.net/internal/config"
	"gitlab.com/autograder.net/internal/core/services/notifier"
	"gitlab.com/autograder.net/internal/core/services/submission"
	"gitlab.com/autograder.net/internal/domain"
	"gitlab.com/autograder.net/internal/handlers"
)

const secret = "test-secret"

type staticCatalog struct {
	invalidated int
}

func (c *staticCatalog) Execute(ctx context.Context, req *domain.ExecutionRequest) (*domain.ExecutionResult, error) {
	return nil, errors.New("not used")
}

func (c *staticCatalog) ListRuntimes(ctx context.Context) ([]domain.Runtime, error) {
	return []domain.Runtime{{Language: "python", Version: "3.10.0", Aliases: []string{"py"}}}, nil
}

func (c *staticCatalog) InvalidateRuntimes() {
	c.invalidated++
}

type testServer struct {
	url     string
	store   *memory.Store
	queue   *memory.Queue
	catalog *staticCatalog
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := logging.NewNopLogger()
	ts := &testServer{
		store:   memory.NewStore(),
		queue:   memory.NewQueue(),
		catalog: &staticCatalog{},
	}
	wsHub := hub.NewHub(logger)
	notifierService := notifier.NewNotifierService(ts.store, ts.store, logger, wsHub)
	submissionService := submission.NewSubmissionService(ts.store, ts.store, ts.queue, ts.catalog, notifierService, logger)

	provider := NewServiceProvider(submissionService, wsHub,
		handlers.New(crypto.NewJWTService(&config.JwtConfig{Secret: secret})),
		map[string]handlers.HealthCheck{"store": func(ctx context.Context) error { return nil }})
	server := NewServer(0, "autograder", *provider, logger)
	require.NoError(t, server.Init())

	srv := httptest.NewServer(server.Handler())
	t.Cleanup(func() {
		wsHub.Close()
		srv.Close()
	})
	ts.url = srv.URL
	return ts
}

func token(t *testing.T, userID int64, perms ...domain.Permission) string {
	t.Helper()
	names := make([]string, 0, len(perms))
	for _, p := range perms {
		names = append(names, string(p))
	}
	signed, err := crypto.NewJWTService(&config.JwtConfig{Secret: secret}).
		GenerateTokenHMAC(context.Background(), &domain.Principal{UserID: userID, Permissions: names}, time.Hour)
	require.NoError(t, err)
	return signed
}

func (ts *testServer) do(t *testing.T, method, path, tok, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, ts.url+path, strings.NewReader(body))
	require.NoError(t, err)
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

const submitBody = `{"problemId":1,"language":"py","version":"3.10.0","filename":"main.py","code":"print(1)"}`

func TestHealthIsPublic(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRequestsNeedAValidToken(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/api/runtimes", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/api/runtimes", "not-a-jwt", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "1"}).SignedString([]byte("other"))
	require.NoError(t, err)
	resp = ts.do(t, http.MethodGet, "/api/runtimes", forged, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSubmitAndView(t *testing.T) {
	ts := newTestServer(t)
	owner := token(t, 7, domain.PermissionCreateSubmission, domain.PermissionViewOwnSubmission)

	resp := ts.do(t, http.MethodPost, "/api/submissions", owner, submitBody)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	var created struct {
		SubmissionID int64  `json:"submissionId"`
		Status       string `json:"status"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.Equal(t, "NEW", created.Status)
	assert.Equal(t, 1, ts.queue.Len())

	path := "/api/submissions/" + strconv.FormatInt(created.SubmissionID, 10)

	resp = ts.do(t, http.MethodGet, path, owner, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var snapshot domain.SubmissionSnapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snapshot))
	assert.Equal(t, created.SubmissionID, snapshot.Submission.ID)

	resp = ts.do(t, http.MethodGet, path+"/detail", owner, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	stranger := token(t, 8, domain.PermissionViewOwnSubmission)
	resp = ts.do(t, http.MethodGet, path, stranger, "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/api/submissions/999", owner, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSubmitRejectsBadInput(t *testing.T) {
	ts := newTestServer(t)
	owner := token(t, 7, domain.PermissionCreateSubmission)

	resp := ts.do(t, http.MethodPost, "/api/submissions", owner, "{")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/api/submissions", owner, `{"problemId":1,"language":"cobol","version":"1","filename":"a","code":"x"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	viewer := token(t, 7, domain.PermissionViewOwnSubmission)
	resp = ts.do(t, http.MethodPost, "/api/submissions", viewer, submitBody)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestListSubmissions(t *testing.T) {
	ts := newTestServer(t)
	owner := token(t, 7, domain.PermissionCreateSubmission, domain.PermissionViewOwnSubmission)
	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusAccepted, ts.do(t, http.MethodPost, "/api/submissions", owner, submitBody).StatusCode)
	}

	resp := ts.do(t, http.MethodGet, "/api/submissions?own=true&pageNo=1&pageSize=2", owner, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var page []domain.Submission
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&page))
	assert.Len(t, page, 2)

	resp = ts.do(t, http.MethodGet, "/api/submissions", owner, "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/api/submissions?own=true&pageNo=x", owner, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRuntimeRoutes(t *testing.T) {
	ts := newTestServer(t)
	student := token(t, 7)
	admin := token(t, 1, domain.PermissionManageRuntimes)

	resp := ts.do(t, http.MethodGet, "/api/runtimes", student, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var runtimes []domain.Runtime
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&runtimes))
	assert.Equal(t, "python", runtimes[0].Language)

	resp = ts.do(t, http.MethodPost, "/api/runtimes/invalidate", student, "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/api/runtimes/invalidate", admin, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, 1, ts.catalog.invalidated)
}

func TestWebSocketSnapshotRequest(t *testing.T) {
	ts := newTestServer(t)
	ts.store.Put(domain.Submission{ID: 5, ProblemID: 1, UserID: 7, Status: domain.SubmissionStatusDone, TotalTestCases: 0})

	wsURL := "ws" + strings.TrimPrefix(ts.url, "http") + "/ws/submissions?access_token="
	owner, _, err := websocket.DefaultDialer.Dial(wsURL+token(t, 7, domain.PermissionViewOwnSubmission), nil)
	require.NoError(t, err)
	defer owner.Close()

	require.NoError(t, owner.WriteJSON(map[string]int64{"submissionId": 5}))
	var frame struct {
		Topic   string                    `json:"topic"`
		Payload domain.SubmissionSnapshot `json:"payload"`
	}
	require.NoError(t, owner.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, owner.ReadJSON(&frame))
	assert.Equal(t, hub.TopicTestResults, frame.Topic)
	assert.Equal(t, int64(5), frame.Payload.Submission.ID)

	stranger, _, err := websocket.DefaultDialer.Dial(wsURL+token(t, 8, domain.PermissionViewOwnSubmission), nil)
	require.NoError(t, err)
	defer stranger.Close()

	require.NoError(t, stranger.WriteJSON(map[string]int64{"submissionId": 5}))
	var denied struct {
		Topic   string `json:"topic"`
		Payload struct {
			Message string `json:"message"`
		} `json:"payload"`
	}
	require.NoError(t, stranger.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, stranger.ReadJSON(&denied))
	assert.Equal(t, hub.TopicErrors, denied.Topic)
	assert.Equal(t, "forbidden", denied.Payload.Message)
}
