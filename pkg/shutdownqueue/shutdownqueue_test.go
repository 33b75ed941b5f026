package shutdownqueue

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// resetQueue clears the global queue after the test.
func resetQueue(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		q.mu.Lock()

		q.entries = nil
		q.closed = false

		q.mu.Unlock()
	})
}

func noop(context.Context) error { return nil }

//nolint:paralleltest
func TestAdd_NilIgnored(t *testing.T) {
	resetQueue(t)

	Add("nil", nil)

	if Len() != 0 {
		t.Fatalf("nil task must not be queued")
	}

	err := Shutdown(t.Context())
	if err != nil {
		t.Fatalf("expected nil; got %v", err)
	}
}

//nolint:paralleltest
func TestShutdown_LIFO(t *testing.T) {
	resetQueue(t)

	var (
		mu    sync.Mutex
		order []string
	)

	for _, name := range []string{"db", "redis", "http"} {
		Add(name, func(context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()

			return nil
		})
	}

	if Len() != 3 {
		t.Fatalf("want 3 pending tasks, got %d", Len())
	}

	err := Shutdown(t.Context())
	if err != nil {
		t.Fatalf("Shutdown error: %v", err)
	}

	if got := strings.Join(order, ","); got != "http,redis,db" {
		t.Fatalf("order: got %s, want http,redis,db", got)
	}
}

//nolint:paralleltest
func TestShutdown_PanicIsNamedAndDrainContinues(t *testing.T) {
	resetQueue(t)

	var ranDB atomic.Bool

	Add("db", func(context.Context) error {
		ranDB.Store(true)
		return nil
	})
	Add("cache", func(context.Context) error { panic("boom") })

	err := Shutdown(t.Context())
	if err == nil || !strings.Contains(err.Error(), "cache: panic: boom") {
		t.Fatalf("expected named panic error; got %v", err)
	}

	if !ranDB.Load() {
		t.Fatalf("tasks registered before the panicking one must still run")
	}
}

//nolint:paralleltest
func TestShutdown_ErrorsJoinedWithNames(t *testing.T) {
	resetQueue(t)

	errDB := errors.New("close db")
	errHTTP := errors.New("drain http")

	Add("db", func(context.Context) error { return errDB })
	Add("http", func(context.Context) error { return errHTTP })

	err := Shutdown(t.Context())
	if !errors.Is(err, errDB) || !errors.Is(err, errHTTP) {
		t.Fatalf("expected both errors; got %v", err)
	}

	if !strings.Contains(err.Error(), "db: close db") || !strings.Contains(err.Error(), "http: drain http") {
		t.Fatalf("expected task names in error; got %q", err.Error())
	}
}

//nolint:paralleltest
func TestShutdown_CancelSkipsRemaining(t *testing.T) {
	resetQueue(t)

	var ranDB atomic.Bool

	Add("db", func(context.Context) error {
		ranDB.Store(true)
		return nil
	})

	ctx, cancel := context.WithCancel(t.Context())
	entered := make(chan struct{})

	Add("http", func(ctx context.Context) error {
		close(entered)
		<-ctx.Done()

		return nil
	})

	errCh := make(chan error, 1)

	go func() { errCh <- Shutdown(ctx) }()

	<-entered
	cancel()

	err := <-errCh
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled; got %v", err)
	}

	if !strings.Contains(err.Error(), "[db]") {
		t.Fatalf("expected skipped task names; got %q", err.Error())
	}

	if ranDB.Load() {
		t.Fatalf("db task must be skipped after cancel")
	}
}

//nolint:paralleltest
func TestShutdown_RunsOnce(t *testing.T) {
	resetQueue(t)

	var count atomic.Int32

	Add("once", func(context.Context) error {
		count.Add(1)
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	for range 2 {
		err := Shutdown(ctx)
		if err != nil {
			t.Fatalf("Shutdown: %v", err)
		}
	}

	if got := count.Load(); got != 1 {
		t.Fatalf("want 1 run, got %d", got)
	}
}

//nolint:paralleltest
func TestAdd_AfterShutdownIgnored(t *testing.T) {
	resetQueue(t)

	started := make(chan struct{})
	release := make(chan struct{})

	Add("noop", noop)
	Add("blocker", func(context.Context) error {
		close(started)
		<-release

		return nil
	})

	done := make(chan struct{})

	go func() {
		_ = Shutdown(context.Background())
		close(done)
	}()

	<-started

	var ran atomic.Bool

	Add("late", func(context.Context) error {
		ran.Store(true)
		return nil
	})

	close(release)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Shutdown did not finish")
	}

	if ran.Load() {
		t.Fatalf("task added after shutdown started must not run")
	}
}
