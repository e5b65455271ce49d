// Package orchestrator drives search and order tasks: it fans probes out
// across the configured storefronts, records their results through the
// registry, and publishes progress through the broadcaster.
package orchestrator

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fairyhunter13/price-hunter/internal/config"
	"github.com/fairyhunter13/price-hunter/internal/events"
	"github.com/fairyhunter13/price-hunter/internal/registry"
	"github.com/fairyhunter13/price-hunter/internal/storefront"
)

// Orchestrator launches tasks and tracks them until terminal. It holds no
// task state itself; the registry is the single source of truth.
type Orchestrator struct {
	cfg    config.Config
	reg    *registry.Registry
	bus    *events.Broadcaster
	fronts *storefront.Set

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	closing atomic.Bool
	started atomic.Uint64
	done    atomic.Uint64
}

// New constructs an Orchestrator over the given registry, broadcaster, and
// storefront set.
func New(cfg config.Config, reg *registry.Registry, bus *events.Broadcaster, fronts *storefront.Set) *Orchestrator {
	return &Orchestrator{cfg: cfg, reg: reg, bus: bus, fronts: fronts}
}

// Start establishes the background context for task goroutines.
func (o *Orchestrator) Start(parent context.Context) {
	o.ctx, o.cancel = context.WithCancel(parent)
}

// Stop cancels all running task goroutines and waits for them to return.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()
}

// CloseIntake rejects future StartSearch/StartOrder calls.
func (o *Orchestrator) CloseIntake() { o.closing.Store(true) }

// IsShuttingDown reports whether intake has been closed.
func (o *Orchestrator) IsShuttingDown() bool { return o.closing.Load() }

// InFlight returns the number of tasks still running.
func (o *Orchestrator) InFlight() int {
	return int(o.started.Load() - o.done.Load())
}

// Metrics returns lifetime started/finished task counts.
func (o *Orchestrator) Metrics() (started, finished uint64) {
	return o.started.Load(), o.done.Load()
}

// DrainUntil blocks until no task is in flight or the context is done.
func (o *Orchestrator) DrainUntil(ctx context.Context) bool {
	for {
		if o.InFlight() == 0 {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// Storefronts returns the configured storefront names in precedence order.
func (o *Orchestrator) Storefronts() []string { return o.fronts.Names() }

func (o *Orchestrator) spawn(run func(ctx context.Context)) {
	o.started.Add(1)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer o.done.Add(1)
		run(o.ctx)
	}()
}
