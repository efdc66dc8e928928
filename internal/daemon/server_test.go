package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoHandler struct{}

func (echoHandler) Handle(_ context.Context, req Request) Response {
	if req.Command == CmdPing {
		return OK("pong", nil)
	}
	return Fail(fmt.Errorf("unknown command %q", req.Command))
}

func startTestServer(t *testing.T, maxBytes int) (string, context.CancelFunc) {
	t.Helper()
	socketPath := filepath.Join(t.TempDir(), "ragex.sock")
	srv := NewServer(socketPath, echoHandler{}, maxBytes, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.ListenAndServe(ctx)
	}()

	require.Eventually(t, func() bool {
		conn, err := net.Dial("unix", socketPath)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	}, 2*time.Second, 10*time.Millisecond)

	t.Cleanup(func() {
		cancel()
		<-done
	})
	return socketPath, cancel
}

func TestServer_PingRoundTrip(t *testing.T) {
	socketPath, _ := startTestServer(t, 0)

	client := NewClient(socketPath, time.Second)
	require.NoError(t, client.Ping(context.Background()))
}

func TestServer_SocketPermissions(t *testing.T) {
	socketPath, _ := startTestServer(t, 0)

	info, err := os.Stat(socketPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestServer_MalformedRequest(t *testing.T) {
	socketPath, _ := startTestServer(t, 0)

	conn, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("this is not json\n"))
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.NewDecoder(conn).Decode(&resp))
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Error)
}

func TestServer_OversizedRequestRejected(t *testing.T) {
	socketPath, _ := startTestServer(t, 256)

	conn, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	defer conn.Close()

	big := Request{Command: CmdPing, Args: []string{strings.Repeat("x", 1024)}}
	require.NoError(t, json.NewEncoder(conn).Encode(big))

	var resp Response
	require.NoError(t, json.NewDecoder(conn).Decode(&resp))
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "exceeds")
}

func TestServer_SocketRemovedOnShutdown(t *testing.T) {
	socketPath, cancel := startTestServer(t, 0)

	cancel()
	require.Eventually(t, func() bool {
		_, err := os.Stat(socketPath)
		return os.IsNotExist(err)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestServer_RefusesSecondDaemonOnLiveSocket(t *testing.T) {
	socketPath, _ := startTestServer(t, 0)

	second := NewServer(socketPath, echoHandler{}, 0, nil)
	err := second.ListenAndServe(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already served")
}
