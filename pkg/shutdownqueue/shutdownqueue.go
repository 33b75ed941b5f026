// Package shutdownqueue is a process-wide LIFO queue of named cleanup tasks.
//
// Components register their cleanup as they are opened:
//
//	shutdownqueue.Add("db", func(ctx context.Context) error { return db.Close() })
//
// and main drains the queue once on exit with Shutdown. Tasks run once, in
// reverse order of registration, so a dependency opened first is closed last.
// Task errors and recovered panics are prefixed with the task name and joined.
package shutdownqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Task is a shutdown function. It should honor ctx.
type Task func(ctx context.Context) error

type entry struct {
	name string
	task Task
}

type queue struct {
	mu      sync.Mutex
	entries []entry
	closed  bool
}

var q = &queue{entries: make([]entry, 0, 8)}

// Add registers a named task. Nil tasks and tasks added after Shutdown has
// started are ignored.
func Add(name string, t Task) {
	if t == nil {
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		slog.Warn("shutdown task registered after shutdown started", "task", name)
		return
	}

	q.entries = append(q.entries, entry{name: name, task: t})
}

// Len is the number of pending tasks.
func Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.entries)
}

// Shutdown drains the queue in LIFO order. Later calls are no-ops.
// If ctx ends mid-drain the remaining tasks are skipped and ctx.Err() is
// part of the returned error.
func Shutdown(ctx context.Context) error {
	q.mu.Lock()

	if q.closed && len(q.entries) == 0 {
		q.mu.Unlock()

		return nil
	}

	q.closed = true
	entries := q.entries
	q.entries = nil

	q.mu.Unlock()

	var errs []error

	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]

		err := ctx.Err()
		if err != nil {
			skipped := make([]string, 0, i+1)
			for j := i; j >= 0; j-- {
				skipped = append(skipped, entries[j].name)
			}

			errs = append(errs, fmt.Errorf("shutdown canceled, skipped %v: %w", skipped, err))

			return errors.Join(errs...)
		}

		start := time.Now()

		err = runTask(ctx, e)
		if err != nil {
			errs = append(errs, err)
		}

		slog.Debug("shutdown task finished", "task", e.name, "duration", time.Since(start), "error", err)
	}

	return errors.Join(errs...)
}

func runTask(ctx context.Context, e entry) (err error) {
	defer func() {
		r := recover()
		if r != nil {
			err = fmt.Errorf("%s: panic: %v", e.name, r)
		}
	}()

	err = e.task(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", e.name, err)
	}

	return nil
}
