package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

// Handler executes one claimed job. Implementations must be safe for
// concurrent use; the worker runs handlers from a bounded pool.
type Handler interface {
	Run(ctx context.Context, data json.RawMessage) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, data json.RawMessage) error

func (f HandlerFunc) Run(ctx context.Context, data json.RawMessage) error {
	return f(ctx, data)
}

// Registry is the closed set of handlers a worker dispatches to. It is
// populated once during wiring; Register rejects duplicates so a misconfigured
// worker fails at startup, not at claim time.
type Registry struct {
	handlers map[JobName]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: map[JobName]Handler{}}
}

func (r *Registry) Register(name JobName, h Handler) error {
	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("handler already registered for %q", name)
	}
	r.handlers[name] = h
	return nil
}

func (r *Registry) resolve(name JobName) (Handler, bool) {
	h, ok := r.handlers[name]
	return h, ok
}

type WorkerConfig struct {
	PollInterval time.Duration
	LockLifetime time.Duration
	Concurrency  int
}

// Worker is the executing half of the scheduler. Exactly one Run loop per
// Worker; multiple worker processes may poll the same store concurrently, the
// atomic claim keeps them from double-firing.
type Worker struct {
	store    Store
	registry *Registry
	cfg      WorkerConfig
	log      *slog.Logger

	wg  sync.WaitGroup
	sem chan struct{}
}

func NewWorker(store Store, registry *Registry, cfg WorkerConfig, log *slog.Logger) *Worker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Worker{
		store:    store,
		registry: registry,
		cfg:      cfg,
		log:      log,
		sem:      make(chan struct{}, cfg.Concurrency),
	}
}

// Run reclaims locks abandoned by a crashed predecessor, then polls for due
// jobs until the context is cancelled. It waits for in-flight handlers before
// returning. A failing job never stops the loop.
func (w *Worker) Run(ctx context.Context) error {
	reclaimed, err := w.store.ReclaimStale(ctx)
	if err != nil {
		return fmt.Errorf("reclaim stale locks: %w", err)
	}
	if reclaimed > 0 {
		w.log.InfoContext(ctx, "reclaimed stale job locks", "count", reclaimed)
	}

	w.log.InfoContext(ctx, "scheduler worker started",
		"poll_interval", w.cfg.PollInterval, "lock_lifetime", w.cfg.LockLifetime, "concurrency", w.cfg.Concurrency)

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.wg.Wait()
			w.log.Info("scheduler worker stopped")
			return nil
		case now := <-ticker.C:
			if err := w.poll(ctx, now); err != nil {
				w.log.WarnContext(ctx, "poll failed", "error", err)
			}
		}
	}
}

func (w *Worker) poll(ctx context.Context, now time.Time) error {
	jobs, err := w.store.ClaimDue(ctx, now, w.cfg.LockLifetime)
	if err != nil {
		return err
	}

	for _, job := range jobs {
		select {
		case w.sem <- struct{}{}:
		case <-ctx.Done():
			// Claimed but never run; release so another worker picks it up.
			if err := w.store.Fail(context.WithoutCancel(ctx), job.ID); err != nil {
				w.log.Warn("failed to release job on shutdown", "job_id", job.ID, "error", err)
			}
			continue
		}

		w.wg.Add(1)
		go func(job Job) {
			defer w.wg.Done()
			defer func() { <-w.sem }()
			w.execute(ctx, job)
		}(job)
	}
	return nil
}

func (w *Worker) execute(ctx context.Context, job Job) {
	// Bookkeeping must still reach the store when the run context is
	// cancelled mid-handler, otherwise the lock lingers until it goes stale.
	bookCtx := context.WithoutCancel(ctx)

	handler, ok := w.registry.resolve(job.Name)
	if !ok {
		// A name without a handler means scheduling and wiring disagree.
		// Loud error, lock released; the row stays visible instead of
		// silently vanishing.
		w.log.ErrorContext(ctx, "no handler registered for job", "job_id", job.ID, "name", string(job.Name))
		if err := w.store.Fail(bookCtx, job.ID); err != nil {
			w.log.ErrorContext(ctx, "failed to release job", "job_id", job.ID, "error", err)
		}
		return
	}

	start := time.Now()
	err := w.runHandler(ctx, handler, job)
	if err != nil {
		w.log.ErrorContext(ctx, "job handler failed",
			"job_id", job.ID, "name", string(job.Name), "duration", time.Since(start), "error", err)
		if ferr := w.store.Fail(bookCtx, job.ID); ferr != nil {
			w.log.ErrorContext(ctx, "failed to release job", "job_id", job.ID, "error", ferr)
		}
		return
	}

	if cerr := w.store.Complete(bookCtx, job.ID, time.Now()); cerr != nil {
		w.log.ErrorContext(ctx, "failed to complete job", "job_id", job.ID, "error", cerr)
		return
	}
	w.log.InfoContext(ctx, "job completed",
		"job_id", job.ID, "name", string(job.Name), "recurring", job.Recurring(), "duration", time.Since(start))
}

func (w *Worker) runHandler(ctx context.Context, handler Handler, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v\n%s", r, debug.Stack())
		}
	}()
	return handler.Run(ctx, job.Data)
}
