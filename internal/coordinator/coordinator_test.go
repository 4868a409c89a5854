package coordinator

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwopitz/anylist-daemon/internal/anylist"
)

var errBackend = errors.New("backend unavailable")

// sequence returns a fetch function that yields the given results in order
// and repeats the last one.
func sequence(results ...func() (int, error)) (FetchFunc[int], *atomic.Int32) {
	calls := &atomic.Int32{}
	return func(context.Context) (int, error) {
		i := int(calls.Add(1)) - 1
		if i >= len(results) {
			i = len(results) - 1
		}
		return results[i]()
	}, calls
}

func ok(v int) func() (int, error) { return func() (int, error) { return v, nil } }

func fail() func() (int, error) { return func() (int, error) { return 0, errBackend } }

func TestRefreshKeepsLastSnapshot(t *testing.T) {
	fetch, _ := sequence(ok(1), fail(), ok(3))
	c := New("test", time.Minute, fetch, nil)

	_, hasData := c.Data()
	assert.False(t, hasData)
	assert.False(t, c.LastUpdateSuccess())

	require.NoError(t, c.Refresh(context.Background()))
	data, hasData := c.Data()
	assert.True(t, hasData)
	assert.Equal(t, 1, data)
	assert.True(t, c.LastUpdateSuccess())
	assert.False(t, c.LastUpdate().IsZero())

	err := c.Refresh(context.Background())
	assert.ErrorIs(t, err, errBackend)
	data, _ = c.Data()
	assert.Equal(t, 1, data)
	assert.False(t, c.LastUpdateSuccess())
	assert.ErrorIs(t, c.LastError(), errBackend)

	require.NoError(t, c.Refresh(context.Background()))
	data, _ = c.Data()
	assert.Equal(t, 3, data)
	assert.True(t, c.LastUpdateSuccess())
	assert.NoError(t, c.LastError())
}

func TestFirstRefresh(t *testing.T) {
	fetch, _ := sequence(fail())
	c := New("test", time.Minute, fetch, nil)

	err := c.FirstRefresh(context.Background())
	assert.ErrorIs(t, err, ErrNotReady)
	assert.ErrorIs(t, err, errBackend)

	fetch, _ = sequence(ok(7))
	c = New("test", time.Minute, fetch, nil)
	assert.NoError(t, c.FirstRefresh(context.Background()))
}

func TestListeners(t *testing.T) {
	fetch, _ := sequence(ok(1), fail())
	c := New("test", time.Minute, fetch, nil)

	var notified atomic.Int32
	remove := c.AddListener(func() { notified.Add(1) })

	_ = c.Refresh(context.Background())
	_ = c.Refresh(context.Background())
	assert.Equal(t, int32(2), notified.Load())

	remove()
	_ = c.Refresh(context.Background())
	assert.Equal(t, int32(2), notified.Load())
}

func TestRun(t *testing.T) {
	fetch, calls := sequence(ok(1))
	c := New("test", 10*time.Millisecond, fetch, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return calls.Load() >= 2 }, 5*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

type fakeFetcher struct {
	code  int
	items []anylist.Item
	err   error
	lists []string
}

func (f *fakeFetcher) GetDetailedItems(_ context.Context, list string) (int, []anylist.Item, error) {
	f.lists = append(f.lists, list)
	return f.code, f.items, f.err
}

func TestNewList(t *testing.T) {
	items := []anylist.Item{{ID: "1", Name: "milk"}}
	fetcher := &fakeFetcher{code: http.StatusOK, items: items}
	c := NewList(fetcher, "Shopping", time.Minute, nil)
	assert.Equal(t, "Anylist Shopping", c.Name())

	require.NoError(t, c.Refresh(context.Background()))
	data, _ := c.Data()
	assert.Equal(t, items, data)
	assert.Equal(t, []string{"Shopping"}, fetcher.lists)

	fetcher.code = http.StatusInternalServerError
	err := c.Refresh(context.Background())
	require.Error(t, err)
	assert.True(t, IsUpdateFailedError(err))
	assert.EqualError(t, err, "error fetching data for list 'Shopping': code 500")
	data, _ = c.Data()
	assert.Equal(t, items, data)

	fetcher.code = 0
	fetcher.err = anylist.ErrServerNotRunning
	err = c.Refresh(context.Background())
	assert.True(t, IsUpdateFailedError(err))
	assert.ErrorIs(t, err, anylist.ErrServerNotRunning)
}
