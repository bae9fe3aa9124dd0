// Package worker runs the recurring open and close passes.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Gurkunwar/dailybot-engine/internal/metrics"
	"github.com/Gurkunwar/dailybot-engine/internal/services"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	PassOpen  = "open"
	PassClose = "close"
)

type Passes interface {
	OpenDueSessions(ctx context.Context) (services.PassResult, error)
	CloseExpiredSessions(ctx context.Context) (services.PassResult, error)
}

// Locker coordinates passes across processes. store.PassLock implements it.
type Locker interface {
	Acquire(ctx context.Context, name string) (release func(context.Context) error, ok bool, err error)
}

var ErrAlreadyRunning = errors.New("driver already running")

// Driver ticks both passes on their own intervals. A pass never overlaps
// with itself inside a process; with a Locker it also does not overlap
// across processes.
type Driver struct {
	Passes        Passes
	Locker        Locker
	OpenInterval  time.Duration
	CloseInterval time.Duration
	Metrics       metrics.Recorder
	Logger        *slog.Logger

	flight singleflight.Group

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewDriver(passes Passes, openInterval, closeInterval time.Duration, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	if openInterval <= 0 {
		openInterval = time.Minute
	}
	if closeInterval <= 0 {
		closeInterval = time.Minute
	}
	return &Driver{
		Passes:        passes,
		OpenInterval:  openInterval,
		CloseInterval: closeInterval,
		Metrics:       metrics.Nop{},
		Logger:        logger,
	}
}

// Start launches both loops in the background. Stop ends them.
func (d *Driver) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		return ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		if err := d.Run(runCtx); err != nil {
			d.Logger.Error("driver stopped with error", slog.String("error", err.Error()))
		}
	}(d.done)
	return nil
}

// Stop cancels the loops and waits for an in-flight pass to return.
func (d *Driver) Stop() {
	d.mu.Lock()
	cancel, done := d.cancel, d.done
	d.cancel, d.done = nil, nil
	d.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Run blocks until ctx is cancelled.
func (d *Driver) Run(ctx context.Context) error {
	d.Logger.Info("standup driver started",
		slog.Duration("open_interval", d.OpenInterval),
		slog.Duration("close_interval", d.CloseInterval),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d.loop(gctx, d.OpenInterval, func(ctx context.Context) { d.RunOpenPass(ctx) })
		return nil
	})
	g.Go(func() error {
		d.loop(gctx, d.CloseInterval, func(ctx context.Context) { d.RunClosePass(ctx) })
		return nil
	})
	err := g.Wait()

	d.Logger.Info("standup driver stopped")
	return err
}

func (d *Driver) loop(ctx context.Context, interval time.Duration, tick func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Run once right away so a restart does not wait a full interval.
	tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick(ctx)
		}
	}
}

func (d *Driver) RunOpenPass(ctx context.Context) (services.PassResult, error) {
	return d.runPass(ctx, PassOpen, d.Passes.OpenDueSessions)
}

func (d *Driver) RunClosePass(ctx context.Context) (services.PassResult, error) {
	return d.runPass(ctx, PassClose, d.Passes.CloseExpiredSessions)
}

// runPass joins a caller to a pass already running under the same name
// instead of starting a second one.
func (d *Driver) runPass(ctx context.Context, name string, pass func(context.Context) (services.PassResult, error)) (services.PassResult, error) {
	v, err, _ := d.flight.Do(name, func() (interface{}, error) {
		return d.execute(ctx, name, pass)
	})
	res, _ := v.(services.PassResult)
	return res, err
}

func (d *Driver) execute(ctx context.Context, name string, pass func(context.Context) (services.PassResult, error)) (services.PassResult, error) {
	log := d.Logger.With(slog.String("pass", name))

	if d.Locker != nil {
		release, ok, err := d.Locker.Acquire(ctx, name)
		switch {
		case err != nil:
			// Uniqueness constraints keep a concurrent pass safe, so keep going.
			log.Warn("pass lock unavailable, running without it", slog.String("error", err.Error()))
		case !ok:
			log.Debug("pass held by another driver, skipping")
			return services.PassResult{}, nil
		default:
			defer func() {
				releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
				defer cancel()
				if err := release(releaseCtx); err != nil {
					log.Warn("failed to release pass lock", slog.String("error", err.Error()))
				}
			}()
		}
	}

	start := time.Now()
	res, err := pass(ctx)
	duration := time.Since(start)

	d.recorder().RecordPass(name, duration, res.Failed)

	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("pass failed", slog.String("error", err.Error()))
		return res, err
	}

	level := slog.LevelDebug
	if res.Opened > 0 || res.Closed > 0 || res.Failed > 0 {
		level = slog.LevelInfo
	}
	log.Log(ctx, level, "pass completed",
		slog.Int("processed", res.Processed),
		slog.Int("opened", res.Opened),
		slog.Int("closed", res.Closed),
		slog.Int("skipped", res.Skipped),
		slog.Int("failed", res.Failed),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)
	return res, err
}

func (d *Driver) recorder() metrics.Recorder {
	if d.Metrics == nil {
		return metrics.Nop{}
	}
	return d.Metrics
}
