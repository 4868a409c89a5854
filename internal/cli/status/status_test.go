package status

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwopitz/anylist-daemon/internal/anylist"
	"github.com/mwopitz/anylist-daemon/internal/rpc"
	"github.com/mwopitz/anylist-daemon/internal/server"
	"github.com/mwopitz/anylist-daemon/internal/version"
)

func startDaemon(t *testing.T, opts server.Options) string {
	t.Helper()
	sock := filepath.Join(t.TempDir(), "anylist-daemon.sock")
	srv := server.New(opts)
	done := make(chan error, 1)
	go func() { done <- srv.Serve("unix", sock, "127.0.0.1:0") }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, srv.StopGracefully(ctx))
		assert.NoError(t, <-done)
	})
	require.Eventually(t, func() bool {
		_, err := os.Stat(sock)
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)
	return sock
}

func TestStatusJSON(t *testing.T) {
	out := &bytes.Buffer{}
	e := &Executor{SockFile: startDaemon(t, server.Options{}), Format: "json", Out: out}
	require.NoError(t, e.Execute(context.Background()))

	var st rpc.Status
	require.NoError(t, json.NewDecoder(out).Decode(&st))
	assert.Equal(t, os.Getpid(), st.Process.PID)
	assert.Equal(t, version.Semantic(), st.Version)
	assert.Nil(t, st.BinaryServer)
}

func TestStatusText(t *testing.T) {
	out := &bytes.Buffer{}
	e := &Executor{SockFile: startDaemon(t, server.Options{}), Format: "text", Out: out}
	require.NoError(t, e.Execute(context.Background()))
	assert.True(t, strings.HasPrefix(out.String(), "AnyList Daemon "+version.Semantic()+"\n"))
}

func TestStatusInvalidFormat(t *testing.T) {
	e := &Executor{SockFile: startDaemon(t, server.Options{}), Format: "xml", Out: &bytes.Buffer{}}
	assert.ErrorContains(t, e.Execute(context.Background()), "invalid output format: xml")
}

func TestStatusCheck(t *testing.T) {
	healthy := startDaemon(t, server.Options{Backend: anylist.New("http://127.0.0.1:28597", "")})
	out := &bytes.Buffer{}
	e := &Executor{SockFile: healthy, Format: "text", Check: true, Out: out}
	require.NoError(t, e.Execute(context.Background()))
	assert.Contains(t, out.String(), "server:   http://127.0.0.1:28597\n")

	// Without a server address or a binary server, the address cannot be
	// resolved.
	unhealthy := startDaemon(t, server.Options{Backend: anylist.New("", "")})
	out.Reset()
	e = &Executor{SockFile: unhealthy, Format: "text", Check: true, Out: out}
	assert.ErrorIs(t, e.Execute(context.Background()), ErrUnhealthy)
	assert.Contains(t, out.String(), "server:   ")

	out.Reset()
	e.Check = false
	assert.NoError(t, e.Execute(context.Background()))
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name    string
		status  *rpc.Status
		healthy bool
	}{
		{"external server", &rpc.Status{ServerAddr: "http://anylist.local"}, true},
		{
			"running binary",
			&rpc.Status{ServerAddr: "http://127.0.0.1:28597", BinaryServer: &rpc.ProcessStatus{Running: true, PID: 42}},
			true,
		},
		{"stopped binary", &rpc.Status{BinaryServer: &rpc.ProcessStatus{}}, false},
		{"unresolved address", &rpc.Status{ServerError: "AnyList server not running"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Health(tt.status)
			if tt.healthy {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrUnhealthy)
			}
		})
	}
}
