package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Gurkunwar/dailybot-engine/internal/services"
)

type mockPasses struct {
	openCalls  atomic.Int32
	closeCalls atomic.Int32

	openFunc  func(ctx context.Context) (services.PassResult, error)
	closeFunc func(ctx context.Context) (services.PassResult, error)
}

func (m *mockPasses) OpenDueSessions(ctx context.Context) (services.PassResult, error) {
	m.openCalls.Add(1)
	if m.openFunc != nil {
		return m.openFunc(ctx)
	}
	return services.PassResult{}, nil
}

func (m *mockPasses) CloseExpiredSessions(ctx context.Context) (services.PassResult, error) {
	m.closeCalls.Add(1)
	if m.closeFunc != nil {
		return m.closeFunc(ctx)
	}
	return services.PassResult{}, nil
}

type mockLocker struct {
	ok       bool
	err      error
	released atomic.Int32
}

func (l *mockLocker) Acquire(context.Context, string) (func(context.Context) error, bool, error) {
	return func(context.Context) error {
		l.released.Add(1)
		return nil
	}, l.ok, l.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestDriver_StartRunsBothPassesUntilStop(t *testing.T) {
	passes := &mockPasses{}
	d := NewDriver(passes, 10*time.Millisecond, 15*time.Millisecond, testLogger())

	if err := d.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := d.Start(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Start() error = %v, want ErrAlreadyRunning", err)
	}

	waitFor(t, func() bool { return passes.openCalls.Load() >= 3 && passes.closeCalls.Load() >= 3 })
	d.Stop()

	open, closed := passes.openCalls.Load(), passes.closeCalls.Load()
	time.Sleep(40 * time.Millisecond)
	if passes.openCalls.Load() != open || passes.closeCalls.Load() != closed {
		t.Error("passes kept running after Stop")
	}

	// Stop is safe to repeat.
	d.Stop()
}

func TestDriver_PassErrorsDoNotStopLoop(t *testing.T) {
	passes := &mockPasses{
		closeFunc: func(context.Context) (services.PassResult, error) {
			return services.PassResult{Failed: 1}, errors.New("db unavailable")
		},
	}
	d := NewDriver(passes, time.Hour, 5*time.Millisecond, testLogger())
	if err := d.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer d.Stop()

	waitFor(t, func() bool { return passes.closeCalls.Load() >= 3 })
}

func TestDriver_SingleFlightPerPass(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	passes := &mockPasses{
		closeFunc: func(context.Context) (services.PassResult, error) {
			entered <- struct{}{}
			<-release
			return services.PassResult{Closed: 2}, nil
		},
	}
	d := NewDriver(passes, time.Hour, time.Hour, testLogger())
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make(chan services.PassResult, 3)
	wg.Add(1)
	go func() {
		defer wg.Done()
		res, _ := d.RunClosePass(ctx)
		results <- res
	}()
	<-entered

	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, _ := d.RunClosePass(ctx)
			results <- res
		}()
	}

	// The open pass is independent of the close pass in flight.
	if _, err := d.RunOpenPass(ctx); err != nil {
		t.Fatal(err)
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	close(results)

	if n := passes.closeCalls.Load(); n != 1 {
		t.Errorf("close pass ran %d times, want 1", n)
	}
	for res := range results {
		if res.Closed != 2 {
			t.Errorf("caller got %+v, want shared result", res)
		}
	}
	if passes.openCalls.Load() != 1 {
		t.Errorf("open pass ran %d times, want 1", passes.openCalls.Load())
	}
}

func TestDriver_Locker(t *testing.T) {
	ctx := context.Background()

	t.Run("held elsewhere skips", func(t *testing.T) {
		passes := &mockPasses{}
		locker := &mockLocker{ok: false}
		d := NewDriver(passes, time.Hour, time.Hour, testLogger())
		d.Locker = locker

		if _, err := d.RunOpenPass(ctx); err != nil {
			t.Fatal(err)
		}
		if passes.openCalls.Load() != 0 {
			t.Error("pass ran while lock was held elsewhere")
		}
	})

	t.Run("acquired runs and releases", func(t *testing.T) {
		passes := &mockPasses{}
		locker := &mockLocker{ok: true}
		d := NewDriver(passes, time.Hour, time.Hour, testLogger())
		d.Locker = locker

		if _, err := d.RunClosePass(ctx); err != nil {
			t.Fatal(err)
		}
		if passes.closeCalls.Load() != 1 || locker.released.Load() != 1 {
			t.Errorf("calls = %d, released = %d", passes.closeCalls.Load(), locker.released.Load())
		}
	})

	t.Run("lock error falls back to local run", func(t *testing.T) {
		passes := &mockPasses{}
		locker := &mockLocker{err: errors.New("redis down")}
		d := NewDriver(passes, time.Hour, time.Hour, testLogger())
		d.Locker = locker

		if _, err := d.RunClosePass(ctx); err != nil {
			t.Fatal(err)
		}
		if passes.closeCalls.Load() != 1 {
			t.Error("pass did not run after lock error")
		}
		if locker.released.Load() != 0 {
			t.Error("release called for a lock that was never taken")
		}
	})
}
