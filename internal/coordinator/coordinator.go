// Package coordinator polls a data source on a fixed interval and caches the
// latest successful snapshot for readers.
//
// A failed refresh keeps the previous snapshot but marks the coordinator as
// unsuccessful, which entities report as unavailable. The last successful
// fetch always wins; nothing is batched or merged.
package coordinator

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrNotReady is returned by [Coordinator.FirstRefresh] when the first fetch
// fails.
var ErrNotReady = errors.New("coordinator not ready")

// UpdateFailedError reports a recoverable failure of a single refresh.
type UpdateFailedError struct {
	// Message describes the failure.
	Message string
	// Err is the underlying cause, if any.
	Err error
}

// NewUpdateFailedError creates an [UpdateFailedError] with a formatted
// message.
func NewUpdateFailedError(cause error, format string, args ...any) *UpdateFailedError {
	return &UpdateFailedError{Message: fmt.Sprintf(format, args...), Err: cause}
}

func (e *UpdateFailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *UpdateFailedError) Unwrap() error {
	return e.Err
}

// IsUpdateFailedError checks if the provided error is an [UpdateFailedError].
func IsUpdateFailedError(err error) bool {
	var e *UpdateFailedError
	return err != nil && errors.As(err, &e)
}

// FetchFunc retrieves a fresh snapshot.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Coordinator caches the result of a periodically called [FetchFunc].
type Coordinator[T any] struct {
	name     string
	interval time.Duration
	fetch    FetchFunc[T]
	logger   *slog.Logger

	// refreshMu serializes refreshes so a manual refresh never races the
	// ticker.
	refreshMu sync.Mutex

	mu          sync.RWMutex
	data        T
	hasData     bool
	lastSuccess bool
	lastErr     error
	lastUpdate  time.Time
	listeners   map[int]func()
	nextID      int
}

// New creates a coordinator that calls fetch every interval once [Run] is
// called.
func New[T any](name string, interval time.Duration, fetch FetchFunc[T], logger *slog.Logger) *Coordinator[T] {
	return &Coordinator[T]{
		name:      name,
		interval:  interval,
		fetch:     fetch,
		logger:    cmp.Or(logger, slog.Default()),
		listeners: make(map[int]func()),
	}
}

// Name returns the name of the coordinator.
func (c *Coordinator[T]) Name() string {
	return c.name
}

// Interval returns the refresh interval.
func (c *Coordinator[T]) Interval() time.Duration {
	return c.interval
}

// Data returns the latest snapshot. The boolean is false until the first
// successful refresh.
func (c *Coordinator[T]) Data() (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data, c.hasData
}

// LastUpdateSuccess reports whether the most recent refresh succeeded.
func (c *Coordinator[T]) LastUpdateSuccess() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastSuccess
}

// LastError returns the error of the most recent refresh, if it failed.
func (c *Coordinator[T]) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// LastUpdate returns the time of the most recent successful refresh.
func (c *Coordinator[T]) LastUpdate() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastUpdate
}

// AddListener registers fn to be called after every refresh, successful or
// not. The returned function removes the listener.
func (c *Coordinator[T]) AddListener(fn func()) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

// Refresh fetches a new snapshot and notifies the listeners. The returned
// error is the fetch error; the previous snapshot is kept in that case.
func (c *Coordinator[T]) Refresh(ctx context.Context) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	data, err := c.fetch(ctx)

	c.mu.Lock()
	wasSuccess := c.lastSuccess || !c.hasData && c.lastErr == nil
	if err != nil {
		c.lastSuccess = false
		c.lastErr = err
	} else {
		c.data = data
		c.hasData = true
		c.lastSuccess = true
		c.lastErr = nil
		c.lastUpdate = time.Now()
	}
	listeners := make([]func(), 0, len(c.listeners))
	for _, fn := range c.listeners {
		listeners = append(listeners, fn)
	}
	c.mu.Unlock()

	switch {
	case err != nil && wasSuccess:
		c.logger.ErrorContext(ctx, "error fetching data", "coordinator", c.name, "cause", err)
	case err != nil:
		c.logger.DebugContext(ctx, "error fetching data", "coordinator", c.name, "cause", err)
	case !wasSuccess:
		c.logger.InfoContext(ctx, "fetching data recovered", "coordinator", c.name)
	}

	for _, fn := range listeners {
		fn()
	}
	return err
}

// FirstRefresh performs the initial refresh. It returns an error wrapping
// [ErrNotReady] and the cause if the fetch fails.
func (c *Coordinator[T]) FirstRefresh(ctx context.Context) error {
	if err := c.Refresh(ctx); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrNotReady, c.name, err)
	}
	return nil
}

// Run refreshes the snapshot every interval until ctx is done. Refresh
// errors are recorded, not returned.
func (c *Coordinator[T]) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = c.Refresh(ctx)
		}
	}
}
