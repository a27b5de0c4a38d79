package piston

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/autograder.net/internal/adapter/logging"
	"gitlab.com/autograder.net/internal/config"
	"gitlab.com/autograder.net/internal/domain"
	"gitlab.com/autograder.net/internal/static/errs"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, timeout time.Duration) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(&config.SandboxConfig{Url: srv.URL + "/api/v2/", Timeout: timeout}, logging.NewNopLogger())
}

func TestExecuteSendsPistonRequest(t *testing.T) {
	t.Parallel()
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v2/execute", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body executeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "python", body.Language)
		assert.Equal(t, "3.10.0", body.Version)
		assert.Equal(t, "4 5", body.Stdin)
		require.Len(t, body.Files, 1)
		assert.Equal(t, "main.py", body.Files[0].Name)
		assert.Equal(t, "print(9)", body.Files[0].Content)

		_, _ = w.Write([]byte(`{"language":"python","version":"3.10.0","run":{"stdout":"9\n","stderr":"","code":0,"signal":null,"output":"9\n"}}`))
	}, time.Second)

	res, err := client.Execute(context.Background(), &domain.ExecutionRequest{
		Language: "python", Version: "3.10.0", Filename: "main.py", Code: "print(9)", Stdin: "4 5",
	})
	require.NoError(t, err)
	assert.Equal(t, "9\n", res.Stdout)
	assert.Empty(t, res.Stderr)
	require.NotNil(t, res.ExitCode)
	assert.Equal(t, 0, *res.ExitCode)
	assert.Nil(t, res.Signal)
}

func TestExecuteCompileFailureBecomesStderr(t *testing.T) {
	t.Parallel()
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"language":"c","version":"10.2.0","compile":{"stdout":"","stderr":"","output":"main.c:1: error","code":1}}`))
	}, time.Second)

	res, err := client.Execute(context.Background(), &domain.ExecutionRequest{Language: "c", Version: "10.2.0"})
	require.NoError(t, err)
	assert.Equal(t, "main.c:1: error", res.Stderr)
	require.NotNil(t, res.ExitCode)
	assert.Equal(t, 1, *res.ExitCode)
}

func TestExecuteErrorTaxonomy(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    error
	}{
		{
			name: "non 2xx is rejected",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"message":"python-9.9.9 runtime is unknown"}`))
			},
			want: errs.ErrSandboxRejected,
		},
		{
			name: "garbage body is a protocol error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`<html>`))
			},
			want: errs.ErrSandboxProtocol,
		},
		{
			name: "missing run is a protocol error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"language":"python"}`))
			},
			want: errs.ErrSandboxProtocol,
		},
		{
			name: "timeout is unavailable",
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-time.After(time.Second):
				case <-r.Context().Done():
				}
			},
			want: errs.ErrSandboxUnavailable,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			client := newTestClient(t, tt.handler, 50*time.Millisecond)
			_, err := client.Execute(context.Background(), &domain.ExecutionRequest{Language: "python"})
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestRejectedErrorCarriesStatusAndBody(t *testing.T) {
	t.Parallel()
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte("bad files"))
	}, time.Second)

	_, err := client.Execute(context.Background(), &domain.ExecutionRequest{})
	var rejected *errs.SandboxRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, http.StatusUnprocessableEntity, rejected.StatusCode)
	assert.Equal(t, "bad files", rejected.Body)
}

func TestUnreachableSandboxIsUnavailable(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewClient(&config.SandboxConfig{Url: url, Timeout: time.Second}, logging.NewNopLogger())
	_, err := client.ListRuntimes(context.Background())
	assert.ErrorIs(t, err, errs.ErrSandboxUnavailable)
}

func TestListRuntimes(t *testing.T) {
	t.Parallel()
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v2/runtimes", r.URL.Path)
		_, _ = w.Write([]byte(`[{"language":"python","version":"3.10.0","aliases":["py","py3"]},{"language":"java","version":"15.0.2","aliases":[]}]`))
	}, time.Second)

	runtimes, err := client.ListRuntimes(context.Background())
	require.NoError(t, err)
	require.Len(t, runtimes, 2)
	assert.Equal(t, domain.Runtime{Language: "python", Version: "3.10.0", Aliases: []string{"py", "py3"}}, runtimes[0])
}

func TestListRuntimesNullIsEmpty(t *testing.T) {
	t.Parallel()
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`null`))
	}, time.Second)

	runtimes, err := client.ListRuntimes(context.Background())
	require.NoError(t, err)
	assert.Empty(t, runtimes)
}
