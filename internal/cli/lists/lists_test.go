package lists

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwopitz/anylist-daemon/internal/anylist"
	"github.com/mwopitz/anylist-daemon/internal/anylist/anylisttest"
	"github.com/mwopitz/anylist-daemon/internal/server"
	"github.com/mwopitz/anylist-daemon/internal/todo"
)

func TestLists(t *testing.T) {
	backend := anylisttest.NewServer("Shopping", "Hardware")
	t.Cleanup(backend.Close)
	backend.Add("Shopping", "milk", false)
	backend.Add("Shopping", "bread", false)
	backend.Add("Hardware", "nails", true)

	client := anylist.New(backend.URL, "")
	platform, err := todo.Setup(context.Background(), client, time.Minute, nil)
	require.NoError(t, err)

	sock := filepath.Join(t.TempDir(), "anylist-daemon.sock")
	srv := server.New(server.Options{Entities: platform, Backend: client})
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

	out := &bytes.Buffer{}
	e := &Executor{SockFile: sock, Out: out}
	require.NoError(t, e.Execute(context.Background()))
	assert.Equal(t,
		"Shopping (anylist_Shopping) 2 to do\nHardware (anylist_Hardware) 0 to do\n",
		out.String())
}
