package daemon

import (
	"context"
	"encoding/json"
	"net"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/wordindex/internal/errors"
	"github.com/Aman-CERP/wordindex/internal/store"
)

func TestServer_QueryMethods(t *testing.T) {
	// Given: a server over a fake index
	_, client := startServer(t, newFakeIndex())
	ctx := context.Background()

	// When/Then: search returns entries with validity
	res, err := client.Search(ctx, "  cat ")
	require.NoError(t, err)
	assert.Equal(t, "cat", res.Word)
	assert.Equal(t, []store.FileEntry{{Path: "/t/a.txt", Valid: true}, {Path: "/t/b.txt", Valid: false}}, res.Files)

	// And: files carry their state
	files, err := client.Files(ctx)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, store.StateProcessing, files[1].State)

	words, err := client.Words(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"cat", "dog"}, words)

	stats, err := client.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Processing)

	status, err := client.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.Running)
	assert.Equal(t, os.Getpid(), status.PID)
	assert.Equal(t, "test-instance", status.InstanceID)
	assert.True(t, status.Idle)
}

func TestServer_RootRegistration(t *testing.T) {
	_, client := startServer(t, newFakeIndex())
	ctx := context.Background()

	roots, err := client.Add(ctx, "/srv/a")
	require.NoError(t, err)
	assert.Equal(t, []string{"/srv/a"}, roots)

	roots, err = client.Remove(ctx, "/srv/a")
	require.NoError(t, err)
	assert.Empty(t, roots)
}

func TestServer_ErrorsKeepTheirCode(t *testing.T) {
	_, client := startServer(t, newFakeIndex())
	ctx := context.Background()

	// A failing registration surfaces the index's code.
	_, err := client.Add(ctx, "/missing")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidPath, errors.GetCode(err))
	assert.Contains(t, err.Error(), "cannot register /missing")

	// An empty path is rejected by the server.
	_, err = client.Add(ctx, "")
	assert.Equal(t, errors.ErrCodeInvalidPath, errors.GetCode(err))

	// An empty word is rejected before a connection is made.
	_, err = client.Search(ctx, " ")
	assert.Equal(t, errors.ErrCodeQueryEmpty, errors.GetCode(err))
}

func rawCall(t *testing.T, socket string, payload string) Response {
	t.Helper()
	conn, err := net.DialTimeout("unix", socket, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte(payload + "\n"))
	require.NoError(t, err)
	var resp Response
	require.NoError(t, json.NewDecoder(conn).Decode(&resp))
	return resp
}

func TestServer_ProtocolErrors(t *testing.T) {
	srv, _ := startServer(t, newFakeIndex())

	tests := []struct {
		name    string
		payload string
		code    int
	}{
		{"malformed json", `{"jsonrpc":`, ErrCodeParseError},
		{"wrong version", `{"jsonrpc":"1.0","method":"ping","id":"1"}`, ErrCodeInvalidRequest},
		{"unknown method", `{"jsonrpc":"2.0","method":"compact","id":"2"}`, ErrCodeMethodNotFound},
		{"bad params", `{"jsonrpc":"2.0","method":"search","params":[1],"id":"3"}`, ErrCodeInvalidParams},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := rawCall(t, srv.socketPath, tt.payload)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestServer_QueriesNotifyActivity(t *testing.T) {
	calls := make(chan struct{}, 4)
	_, client := startServer(t, newFakeIndex(), func(s *Server) {
		s.onQuery = func() { calls <- struct{}{} }
	})

	_, err := client.Search(context.Background(), "cat")
	require.NoError(t, err)

	select {
	case <-calls:
	case <-time.After(time.Second):
		t.Fatal("query hook not called")
	}
}

func TestClient_DaemonUnavailable(t *testing.T) {
	cfg := testConfig(t)
	client := NewClient(cfg)

	assert.False(t, client.IsRunning())
	err := client.Ping(context.Background())
	assert.Equal(t, errors.ErrCodeDaemonUnavailable, errors.GetCode(err))
	assert.True(t, errors.IsRetryable(err))
}
